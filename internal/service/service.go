// Package service holds the auction ledger: the state guard that gates
// every mutation on the auction lifecycle, the lot ledger, the item
// catalogue, auction administration, payment reconciliation and the
// audit trail.
//
// Every operation follows the same shape: resolve and authorize the
// auction, mutate inside one transaction, then (after commit) invalidate
// the state cache when status changed, write audit entries and publish
// events. Post-commit steps never fail the operation.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/coastie-uk/convention-auction/internal/database"
	"github.com/coastie-uk/convention-auction/internal/model"
	"github.com/coastie-uk/convention-auction/internal/queue"
	"github.com/coastie-uk/convention-auction/internal/repository"
)

// Repos bundles the repositories shared by the services.
type Repos struct {
	Auctions *repository.AuctionRepo
	Items    *repository.ItemRepo
	Bidders  *repository.BidderRepo
	Payments *repository.PaymentRepo
	Intents  *repository.IntentRepo
	Audit    *repository.AuditRepo
}

// NewRepos builds every repository on one database handle.
func NewRepos(db *sql.DB) Repos {
	return Repos{
		Auctions: repository.NewAuctionRepo(db),
		Items:    repository.NewItemRepo(db),
		Bidders:  repository.NewBidderRepo(db),
		Payments: repository.NewPaymentRepo(db),
		Intents:  repository.NewIntentRepo(db),
		Audit:    repository.NewAuditRepo(db),
	}
}

// EventPublisher delivers ledger events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(context.Context, queue.Event) error { return nil }

func emit(ctx context.Context, pub EventPublisher, ev queue.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, ev); err != nil {
		slog.Warn("publish event failed", slog.String("type", ev.Type), slog.Any("error", err))
	}
}

// lookupErr converts a repository miss into ErrNotFound naming what was
// looked up. Other errors pass through.
func lookupErr(err error, what string, id any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(fmt.Sprintf("%s %v", what, id))
	}
	return err
}

// renumberTx closes gaps in an auction's item numbering, keeping the
// current order. A uniqueness failure here means the numbering was
// corrupted beyond what the two-pass update can repair.
func renumberTx(ctx context.Context, tx *sql.Tx, items *repository.ItemRepo, auctionID int64) (int, error) {
	ids, _, err := items.OrderedIDsTx(ctx, tx, auctionID)
	if err != nil {
		return 0, err
	}
	return assignNumbersTx(ctx, tx, items, auctionID, ids)
}

func assignNumbersTx(ctx context.Context, tx *sql.Tx, items *repository.ItemRepo, auctionID int64, ids []int64) (int, error) {
	changed, err := items.AssignNumbersTx(ctx, tx, auctionID, ids)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return 0, fmt.Errorf("%w: renumber auction %d: %v", ErrIntegrity, auctionID, err)
		}
		return 0, fmt.Errorf("renumber auction %d: %w", auctionID, err)
	}
	return changed, nil
}

func statusEvent(who model.Identity, auctionID int64, status model.AuctionStatus) queue.Event {
	ev := queue.NewEvent(queue.EventStatusChanged)
	ev.AuctionID = auctionID
	ev.Status = string(status)
	ev.User = who.Username
	return ev
}
