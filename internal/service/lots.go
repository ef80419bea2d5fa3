package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coastie-uk/convention-auction/internal/model"
	"github.com/coastie-uk/convention-auction/internal/queue"
	"github.com/coastie-uk/convention-auction/internal/repository"
)

// Lifecycle phases in which lots may be sold or un-sold.
var saleStates = []model.AuctionStatus{model.StatusLive, model.StatusSettlement}

// Lifecycle phases in which the catalogue order may change.
var orderingStates = []model.AuctionStatus{model.StatusSetup, model.StatusLocked}

// LotLedger records lot sales and keeps item numbering dense.
type LotLedger struct {
	db     *sql.DB
	repos  Repos
	guard  *AuctionStateGuard
	audit  *AuditTrail
	events EventPublisher
}

// NewLotLedger wires a LotLedger.
func NewLotLedger(db *sql.DB, repos Repos, guard *AuctionStateGuard, audit *AuditTrail, events EventPublisher) *LotLedger {
	return &LotLedger{db: db, repos: repos, guard: guard, audit: audit, events: events}
}

// FinalizeLotInput describes a hammer-fall.
type FinalizeLotInput struct {
	AuctionID int64
	ItemID    int64
	Paddle    int
	Price     decimal.Decimal
	TestBid   bool
}

// LotResult is the outcome of a finalize.
type LotResult struct {
	Item   *model.Item   `json:"item"`
	Bidder *model.Bidder `json:"bidder"`

	// AuctionAdvanced is set when this sale was the last one and moved
	// the auction into settlement.
	AuctionAdvanced bool `json:"auction_advanced"`
}

// FinalizeLot records the winning paddle and hammer price on an item. The
// bidder is registered in the item's auction on first use. Selling an
// already sold item is refused. When no unsold items remain the auction
// moves to settlement.
func (l *LotLedger) FinalizeLot(ctx context.Context, who model.Identity, in FinalizeLotInput) (*LotResult, error) {
	if in.ItemID <= 0 {
		return nil, invalid("item id is required")
	}
	if in.Paddle <= 0 {
		return nil, invalid("paddle number must be positive")
	}
	if !in.Price.IsPositive() {
		return nil, invalid("price must be greater than zero")
	}
	if _, err := model.MajorToMinor(in.Price); err != nil {
		return nil, invalid("%v", err)
	}
	auctionID, err := l.guard.Check(ctx, Ref{AuctionID: in.AuctionID, ItemID: in.ItemID}, saleStates...)
	if err != nil {
		return nil, err
	}

	var (
		bidder        *model.Bidder
		bidderCreated bool
		advanced      bool
	)
	err = repository.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		var err error
		bidder, bidderCreated, err = l.repos.Bidders.GetOrCreateTx(ctx, tx, auctionID, in.Paddle)
		if err != nil {
			return err
		}
		if err := l.repos.Items.SetSaleTx(ctx, tx, in.ItemID, bidder.ID, in.Price, in.TestBid); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return conflict("item %d is already sold", in.ItemID)
			}
			return lookupErr(err, "item", in.ItemID)
		}
		unsold, err := l.repos.Items.CountUnsoldTx(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if unsold > 0 {
			return nil
		}
		a, err := l.repos.Auctions.GetByID(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if a.Status == model.StatusSettlement {
			return nil
		}
		advanced = true
		return l.repos.Auctions.UpdateStatusTx(ctx, tx, auctionID, model.StatusSettlement)
	})
	if err != nil {
		return nil, err
	}
	if advanced {
		l.guard.Invalidate(ctx, auctionID)
	}

	item, err := l.repos.Items.GetByID(ctx, l.db, in.ItemID)
	if err != nil {
		return nil, err
	}
	slog.Info("lot finalized", slog.Int64("item_id", item.ID), slog.Int("paddle", in.Paddle), slog.String("price", in.Price.StringFixed(2)))

	if bidderCreated {
		l.audit.Record(ctx, who.Username, "register bidder", model.ObjectBidder, bidder.ID, map[string]any{"paddle_number": bidder.PaddleNumber})
	}
	l.audit.Record(ctx, who.Username, "finalize lot", model.ObjectItem, item.ID, map[string]any{
		"bidder_id":     bidder.ID,
		"paddle_number": bidder.PaddleNumber,
		"price":         in.Price.StringFixed(2),
		"test_bid":      in.TestBid,
	})
	ev := queue.NewEvent(queue.EventLotSold)
	ev.AuctionID, ev.ItemID, ev.BidderID, ev.Paddle = auctionID, item.ID, bidder.ID, bidder.PaddleNumber
	ev.Amount, ev.User = in.Price.StringFixed(2), who.Username
	emit(ctx, l.events, ev)

	if advanced {
		l.audit.Record(ctx, who.Username, "change status", model.ObjectAuction, auctionID, map[string]any{
			"new_status": string(model.StatusSettlement),
			"reason":     "all lots sold",
		})
		emit(ctx, l.events, statusEvent(who, auctionID, model.StatusSettlement))
	}
	return &LotResult{Item: item, Bidder: bidder, AuctionAdvanced: advanced}, nil
}

// UndoLot clears the sale on an item. It is refused while the winning
// bidder has money on the ledger (net payments above zero) or a live
// pending intent; reversing those payments or failing the intent
// unblocks it. The auction status is left alone.
func (l *LotLedger) UndoLot(ctx context.Context, who model.Identity, auctionID, itemID int64) (*model.Item, error) {
	auctionID, err := l.guard.Check(ctx, Ref{AuctionID: auctionID, ItemID: itemID}, saleStates...)
	if err != nil {
		return nil, err
	}

	var before *model.Item
	err = repository.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		var err error
		before, err = l.repos.Items.GetByID(ctx, tx, itemID)
		if err != nil {
			return lookupErr(err, "item", itemID)
		}
		if !before.Sold() || before.WinningBidderID == nil {
			return conflict("item %d is not sold", itemID)
		}
		paid, err := l.repos.Payments.SumByBidder(ctx, tx, *before.WinningBidderID)
		if err != nil {
			return err
		}
		if paid.IsPositive() {
			return conflict("bidder %d has payments recorded; reverse them first", *before.WinningBidderID)
		}
		pending, err := l.repos.Intents.PendingMinorForBidder(ctx, tx, *before.WinningBidderID, time.Now())
		if err != nil {
			return err
		}
		if pending > 0 {
			return conflict("bidder %d has a card payment in progress; fail or expire the intent first", *before.WinningBidderID)
		}
		return l.repos.Items.ClearSaleTx(ctx, tx, itemID)
	})
	if err != nil {
		return nil, err
	}

	after, err := l.repos.Items.GetByID(ctx, l.db, itemID)
	if err != nil {
		return nil, err
	}
	l.audit.Record(ctx, who.Username, "undo lot", model.ObjectItem, itemID, map[string]any{
		"auction_id":     auctionID,
		"bidder_id":      *before.WinningBidderID,
		"previous_price": before.HammerPrice.Decimal.StringFixed(2),
	})
	ev := queue.NewEvent(queue.EventLotUndone)
	ev.AuctionID, ev.ItemID, ev.BidderID, ev.User = auctionID, itemID, *before.WinningBidderID, who.Username
	emit(ctx, l.events, ev)
	return after, nil
}

// RenumberAuctionItems makes the auction's item numbers 1..N in their
// current order. Running it on an already dense auction changes nothing.
func (l *LotLedger) RenumberAuctionItems(ctx context.Context, who model.Identity, auctionID int64) (int, error) {
	auctionID, err := l.guard.Check(ctx, Ref{AuctionID: auctionID}, model.StatusSetup, model.StatusLocked, model.StatusLive)
	if err != nil {
		return 0, err
	}
	var changed int
	err = repository.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		var err error
		changed, err = renumberTx(ctx, tx, l.repos.Items, auctionID)
		return err
	})
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		l.audit.Record(ctx, who.Username, "renumber items", model.ObjectAuction, auctionID, map[string]any{"changed": changed})
	}
	return changed, nil
}

// MoveItemAfter moves an item to sit directly after afterItemID, or to
// the front when afterItemID is nil, and renumbers the auction.
func (l *LotLedger) MoveItemAfter(ctx context.Context, who model.Identity, auctionID, itemID int64, afterItemID *int64) error {
	auctionID, err := l.guard.Check(ctx, Ref{AuctionID: auctionID, ItemID: itemID}, orderingStates...)
	if err != nil {
		return err
	}
	if afterItemID != nil && *afterItemID == itemID {
		return invalid("an item cannot be moved after itself")
	}

	err = repository.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		ids, _, err := l.repos.Items.OrderedIDsTx(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		rest := make([]int64, 0, len(ids))
		found := false
		for _, id := range ids {
			if id == itemID {
				found = true
				continue
			}
			rest = append(rest, id)
		}
		if !found {
			return notFound("item in auction")
		}
		pos := 0
		if afterItemID != nil {
			pos = -1
			for i, id := range rest {
				if id == *afterItemID {
					pos = i + 1
					break
				}
			}
			if pos < 0 {
				return notFound("item to move after")
			}
		}
		order := make([]int64, 0, len(ids))
		order = append(order, rest[:pos]...)
		order = append(order, itemID)
		order = append(order, rest[pos:]...)
		_, err = assignNumbersTx(ctx, tx, l.repos.Items, auctionID, order)
		return err
	})
	if err != nil {
		return err
	}
	details := map[string]any{"auction_id": auctionID}
	if afterItemID != nil {
		details["after_item_id"] = *afterItemID
	}
	l.audit.Record(ctx, who.Username, "move item", model.ObjectItem, itemID, details)
	return nil
}

// MoveItemToAuction moves an unsold item to the end of another auction's
// catalogue and closes the gap it leaves in the source auction. Both
// happen in one transaction. The destination is never compacted.
func (l *LotLedger) MoveItemToAuction(ctx context.Context, who model.Identity, itemID, fromAuctionID, toAuctionID int64) (*model.Item, error) {
	if toAuctionID <= 0 {
		return nil, invalid("destination auction is required")
	}
	fromAuctionID, err := l.guard.Check(ctx, Ref{AuctionID: fromAuctionID, ItemID: itemID}, orderingStates...)
	if err != nil {
		return nil, err
	}
	if fromAuctionID == toAuctionID {
		return nil, invalid("item is already in auction %d", toAuctionID)
	}
	if _, err := l.guard.Check(ctx, Ref{AuctionID: toAuctionID}, orderingStates...); err != nil {
		return nil, err
	}

	var number int
	err = repository.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		item, err := l.repos.Items.GetByID(ctx, tx, itemID)
		if err != nil {
			return lookupErr(err, "item", itemID)
		}
		if item.Sold() {
			return conflict("item %d is sold and cannot change auction", itemID)
		}
		max, err := l.repos.Items.MaxNumberTx(ctx, tx, toAuctionID)
		if err != nil {
			return err
		}
		number = max + 1
		if err := l.repos.Items.MoveToAuctionTx(ctx, tx, itemID, toAuctionID, number); err != nil {
			return err
		}
		_, err = renumberTx(ctx, tx, l.repos.Items, fromAuctionID)
		return err
	})
	if err != nil {
		return nil, err
	}

	item, err := l.repos.Items.GetByID(ctx, l.db, itemID)
	if err != nil {
		return nil, err
	}
	l.audit.Record(ctx, who.Username, "move item to auction", model.ObjectItem, itemID, map[string]any{
		"from_auction_id": fromAuctionID,
		"new_item_number": number,
	})
	return item, nil
}

// summarize computes a bidder's position within the bidder's own auction
// from item and payment rows.
func summarize(ctx context.Context, q repository.DBTX, repos Repos, b *model.Bidder) (*model.BidderSummary, error) {
	lots, err := repos.Items.LotsByBidder(ctx, q, b.ID, b.AuctionID)
	if err != nil {
		return nil, err
	}
	lotsTotal := decimal.Zero
	for _, it := range lots {
		if it.HammerPrice.Valid {
			lotsTotal = lotsTotal.Add(it.HammerPrice.Decimal)
		}
	}
	paid, err := repos.Payments.SumByBidder(ctx, q, b.ID)
	if err != nil {
		return nil, err
	}
	return &model.BidderSummary{
		BidderID:      b.ID,
		AuctionID:     b.AuctionID,
		PaddleNumber:  b.PaddleNumber,
		LotsCount:     len(lots),
		LotsTotal:     lotsTotal,
		PaymentsTotal: paid,
		Balance:       lotsTotal.Sub(paid),
	}, nil
}

func (l *LotLedger) bidderIn(ctx context.Context, bidderID, auctionID int64) (*model.Bidder, error) {
	b, err := l.repos.Bidders.GetByID(ctx, l.db, bidderID)
	if err != nil {
		return nil, lookupErr(err, "bidder", bidderID)
	}
	if auctionID > 0 && b.AuctionID != auctionID {
		return nil, conflict("bidder %d does not belong to auction %d", bidderID, auctionID)
	}
	return b, nil
}

// GetBidderSummary returns lots_total, payments_total and balance for a
// bidder. A non-zero auctionID must match the bidder's auction.
func (l *LotLedger) GetBidderSummary(ctx context.Context, bidderID, auctionID int64) (*model.BidderSummary, error) {
	b, err := l.bidderIn(ctx, bidderID, auctionID)
	if err != nil {
		return nil, err
	}
	return summarize(ctx, l.db, l.repos, b)
}

// GetBidderDetail adds the won lots, payment rows and card intents to
// the summary.
func (l *LotLedger) GetBidderDetail(ctx context.Context, bidderID, auctionID int64) (*model.BidderDetail, error) {
	b, err := l.bidderIn(ctx, bidderID, auctionID)
	if err != nil {
		return nil, err
	}
	sum, err := summarize(ctx, l.db, l.repos, b)
	if err != nil {
		return nil, err
	}
	lots, err := l.repos.Items.LotsByBidder(ctx, l.db, b.ID, b.AuctionID)
	if err != nil {
		return nil, err
	}
	payments, err := l.repos.Payments.ListByBidder(ctx, l.db, b.ID)
	if err != nil {
		return nil, err
	}
	intents, err := l.repos.Intents.ListByBidder(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	return &model.BidderDetail{BidderSummary: *sum, Lots: lots, Payments: payments, Intents: intents}, nil
}

// ListBidderSummaries returns the settlement position of every bidder in
// the auction, ordered by paddle.
func (l *LotLedger) ListBidderSummaries(ctx context.Context, auctionID int64) ([]model.BidderSummary, error) {
	auctionID, err := l.guard.Resolve(ctx, Ref{AuctionID: auctionID})
	if err != nil {
		return nil, err
	}
	bidders, err := l.repos.Bidders.ListByAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	out := make([]model.BidderSummary, 0, len(bidders))
	for i := range bidders {
		s, err := summarize(ctx, l.db, l.repos, &bidders[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, nil
}

// BidderByPaddle finds the bidder holding paddle in the auction.
func (l *LotLedger) BidderByPaddle(ctx context.Context, auctionID int64, paddle int) (*model.Bidder, error) {
	auctionID, err := l.guard.Resolve(ctx, Ref{AuctionID: auctionID})
	if err != nil {
		return nil, err
	}
	b, err := l.repos.Bidders.GetByPaddle(ctx, l.db, auctionID, paddle)
	if err != nil {
		return nil, lookupErr(err, "paddle", paddle)
	}
	return b, nil
}
