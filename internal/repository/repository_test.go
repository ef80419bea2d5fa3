package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coastie-uk/convention-auction/internal/config"
	"github.com/coastie-uk/convention-auction/internal/database"
	"github.com/coastie-uk/convention-auction/internal/model"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(context.Background(), config.DBConfig{Driver: "sqlite3", Path: filepath.Join(t.TempDir(), "repo.db")})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedAuction(t *testing.T, db *sql.DB, name string, items int) (*model.Auction, []int64) {
	t.Helper()
	ctx := context.Background()
	a := &model.Auction{ShortName: name, FullName: name, Status: model.StatusSetup}
	if err := NewAuctionRepo(db).Create(ctx, a); err != nil {
		t.Fatalf("create auction: %v", err)
	}
	repo := NewItemRepo(db)
	var ids []int64
	err := WithTx(ctx, db, func(tx *sql.Tx) error {
		for i := 0; i < items; i++ {
			it := &model.Item{AuctionID: a.ID, Description: "item"}
			if err := repo.CreateTx(ctx, tx, it); err != nil {
				return err
			}
			ids = append(ids, it.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("create items: %v", err)
	}
	return a, ids
}

func numbers(t *testing.T, db *sql.DB, auctionID int64) map[int64]int {
	t.Helper()
	items, err := NewItemRepo(db).ListByAuction(context.Background(), db, auctionID)
	if err != nil {
		t.Fatal(err)
	}
	out := make(map[int64]int, len(items))
	for _, it := range items {
		out[it.ID] = it.ItemNumber
	}
	return out
}

func TestWithTxRollsBack(t *testing.T) {
	db := openDB(t)
	a, _ := seedAuction(t, db, "rb", 0)
	ctx := context.Background()
	boom := errors.New("boom")

	err := WithTx(ctx, db, func(tx *sql.Tx) error {
		if err := NewItemRepo(db).CreateTx(ctx, tx, &model.Item{AuctionID: a.ID, Description: "ghost"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}
	if got := numbers(t, db, a.ID); len(got) != 0 {
		t.Fatalf("rolled back item is visible: %v", got)
	}
}

func TestAuctionShortNameUnique(t *testing.T) {
	db := openDB(t)
	seedAuction(t, db, "dup", 0)
	err := NewAuctionRepo(db).Create(context.Background(), &model.Auction{ShortName: "dup", FullName: "again", Status: model.StatusSetup})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("Create() error = %v, want ErrDuplicate", err)
	}
}

func TestAssignNumbersTx(t *testing.T) {
	db := openDB(t)
	a, ids := seedAuction(t, db, "order", 3)
	repo := NewItemRepo(db)
	ctx := context.Background()

	assign := func(order []int64) (int, error) {
		var changed int
		err := WithTx(ctx, db, func(tx *sql.Tx) error {
			var err error
			changed, err = repo.AssignNumbersTx(ctx, tx, a.ID, order)
			return err
		})
		return changed, err
	}

	reversed := []int64{ids[2], ids[1], ids[0]}
	changed, err := assign(reversed)
	if err != nil {
		t.Fatalf("AssignNumbersTx() error = %v", err)
	}
	if changed != 2 {
		t.Fatalf("changed = %d, want 2", changed)
	}
	got := numbers(t, db, a.ID)
	for i, id := range reversed {
		if got[id] != i+1 {
			t.Fatalf("item %d number = %d, want %d", id, got[id], i+1)
		}
	}

	if changed, err := assign(reversed); err != nil || changed != 0 {
		t.Fatalf("second assign = %d, %v; want 0, nil", changed, err)
	}

	if _, err := assign([]int64{ids[0], ids[1]}); err == nil {
		t.Fatal("short id list accepted")
	}
	if _, err := assign([]int64{ids[0], ids[1], 9999}); err == nil {
		t.Fatal("foreign id accepted")
	}
}

func TestSetSaleTx(t *testing.T) {
	db := openDB(t)
	a, ids := seedAuction(t, db, "sale", 1)
	ctx := context.Background()
	items := NewItemRepo(db)
	bidders := NewBidderRepo(db)

	sell := func(itemID int64) error {
		return WithTx(ctx, db, func(tx *sql.Tx) error {
			b, _, err := bidders.GetOrCreateTx(ctx, tx, a.ID, 5)
			if err != nil {
				return err
			}
			return items.SetSaleTx(ctx, tx, itemID, b.ID, decimal.RequireFromString("12.50"), false)
		})
	}

	if err := sell(ids[0]); err != nil {
		t.Fatalf("first sale: %v", err)
	}
	if err := sell(ids[0]); !errors.Is(err, ErrConflict) {
		t.Fatalf("second sale error = %v, want ErrConflict", err)
	}
	if err := sell(424242); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown item error = %v, want ErrNotFound", err)
	}

	it, err := items.GetByID(ctx, db, ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if !it.HammerPrice.Valid || !it.HammerPrice.Decimal.Equal(decimal.RequireFromString("12.50")) {
		t.Fatalf("hammer price = %v", it.HammerPrice)
	}
}

func TestPaymentIdempotencyKey(t *testing.T) {
	db := openDB(t)
	a, _ := seedAuction(t, db, "pay", 0)
	ctx := context.Background()
	payments := NewPaymentRepo(db)

	var bidderID int64
	err := WithTx(ctx, db, func(tx *sql.Tx) error {
		b, created, err := NewBidderRepo(db).GetOrCreateTx(ctx, tx, a.ID, 11)
		if err != nil {
			return err
		}
		if !created {
			t.Error("bidder not reported as created")
		}
		bidderID = b.ID
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	provider, intent := model.ProviderSumUp, "intent-1"
	insert := func(p *model.Payment) error {
		return WithTx(ctx, db, func(tx *sql.Tx) error { return payments.InsertTx(ctx, tx, p) })
	}
	card := func() *model.Payment {
		return &model.Payment{BidderID: bidderID, Amount: decimal.RequireFromString("5"), Method: model.MethodSumUpApp,
			Provider: &provider, IntentID: &intent, CreatedBy: "system"}
	}
	if err := insert(card()); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := insert(card()); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second insert error = %v, want ErrDuplicate", err)
	}

	// manual payments carry no key and never collide
	for i := 0; i < 2; i++ {
		if err := insert(&model.Payment{BidderID: bidderID, Amount: decimal.RequireFromString("1"), Method: model.MethodCash, CreatedBy: "cass"}); err != nil {
			t.Fatalf("cash insert %d: %v", i, err)
		}
	}
	sum, err := payments.SumByBidder(ctx, db, bidderID)
	if err != nil {
		t.Fatal(err)
	}
	if !sum.Equal(decimal.RequireFromString("7")) {
		t.Fatalf("sum = %s, want 7", sum)
	}
}

func TestIntentTransitionsAndExpiry(t *testing.T) {
	db := openDB(t)
	a, _ := seedAuction(t, db, "intent", 0)
	ctx := context.Background()
	intents := NewIntentRepo(db)

	var bidderID int64
	if err := WithTx(ctx, db, func(tx *sql.Tx) error {
		b, _, err := NewBidderRepo(db).GetOrCreateTx(ctx, tx, a.ID, 3)
		if err != nil {
			return err
		}
		bidderID = b.ID
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	mk := func(id string, ttl time.Duration) {
		t.Helper()
		err := intents.Create(ctx, db, &model.PaymentIntent{
			IntentID: id, BidderID: bidderID, AmountMinor: 1000, Currency: "GBP",
			Channel: model.ChannelApp, Status: model.IntentPending, ExpiresAt: now.Add(ttl), CreatedBy: "cass",
		})
		if err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	mk("live", time.Hour)
	mk("stale", -time.Minute)

	pending, err := intents.PendingMinorForBidder(ctx, db, bidderID, now)
	if err != nil || pending != 1000 {
		t.Fatalf("pending = %d, %v; want 1000", pending, err)
	}

	if n, err := intents.ExpireStale(ctx, now); err != nil || n != 1 {
		t.Fatalf("ExpireStale() = %d, %v; want 1", n, err)
	}
	stale, err := intents.Get(ctx, db, "stale")
	if err != nil || stale.Status != model.IntentExpired {
		t.Fatalf("stale = %+v, %v", stale, err)
	}

	moved, err := intents.Transition(ctx, db, "live", model.IntentPending, model.IntentSucceeded)
	if err != nil || !moved {
		t.Fatalf("first transition = %v, %v", moved, err)
	}
	moved, err = intents.Transition(ctx, db, "live", model.IntentPending, model.IntentFailed)
	if err != nil || moved {
		t.Fatalf("second transition = %v, %v; want false", moved, err)
	}

	if _, err := intents.Get(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) error = %v", err)
	}
}
