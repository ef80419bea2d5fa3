package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/mock/gomock"

	"github.com/coastie-uk/convention-auction/internal/cache"
	"github.com/coastie-uk/convention-auction/internal/config"
	"github.com/coastie-uk/convention-auction/internal/database"
	"github.com/coastie-uk/convention-auction/internal/model"
	"github.com/coastie-uk/convention-auction/internal/queue"
	"github.com/coastie-uk/convention-auction/internal/repository"
	"github.com/coastie-uk/convention-auction/internal/sumup/mock"
)

var (
	maint   = model.Identity{Username: "mx", Role: model.RoleMaintenance}
	admin   = model.Identity{Username: "ada", Role: model.RoleAdmin}
	cashier = model.Identity{Username: "cass", Role: model.RoleCashier}
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) count(typ string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

// spyCache counts invalidations so tests can assert every status write
// drops the cached entry.
type spyCache struct {
	cache.StateCache
	mu          sync.Mutex
	invalidated map[int64]int
}

func (s *spyCache) Invalidate(ctx context.Context, id int64) {
	s.mu.Lock()
	s.invalidated[id]++
	s.mu.Unlock()
	s.StateCache.Invalidate(ctx, id)
}

func (s *spyCache) invalidations(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalidated[id]
}

type fixture struct {
	ctx       context.Context
	db        *sql.DB
	repos     Repos
	cache     *spyCache
	guard     *AuctionStateGuard
	audit     *AuditTrail
	lots      *LotLedger
	catalogue *Catalogue
	admin     *AuctionAdmin
	payments  *PaymentReconciler
	events    *recordingPublisher
	provider  *mock.MockProvider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, config.DBConfig{Driver: "sqlite3", Path: filepath.Join(t.TempDir(), "ledger.db")})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	// a long TTL makes any missed invalidation visible
	mem, err := cache.NewMemory(64, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	spy := &spyCache{StateCache: mem, invalidated: map[int64]int{}}

	repos := NewRepos(db)
	guard := NewAuctionStateGuard(repos.Auctions, repos.Items, spy)
	audit := NewAuditTrail(repos.Audit)
	events := &recordingPublisher{}
	provider := mock.NewMockProvider(gomock.NewController(t))
	cfg := config.SumUpConfig{
		Currency:      "GBP",
		IntentTTL:     15 * time.Minute,
		AffiliateKey:  "aff-key",
		HostedEnabled: true,
		AppEnabled:    true,
		AppIndEnabled: true,
	}
	return &fixture{
		ctx:       ctx,
		db:        db,
		repos:     repos,
		cache:     spy,
		guard:     guard,
		audit:     audit,
		lots:      NewLotLedger(db, repos, guard, audit, events),
		catalogue: NewCatalogue(db, repos, guard, audit),
		admin:     NewAuctionAdmin(db, repos, guard, audit, events),
		payments:  NewPaymentReconciler(db, repos, guard, audit, events, provider, cfg, "https://auction.example"),
		events:    events,
		provider:  provider,
	}
}

// newAuction creates an auction holding n items and moves it to status.
func (f *fixture) newAuction(t *testing.T, name string, n int, status model.AuctionStatus) (*model.Auction, []*model.Item) {
	t.Helper()
	a, err := f.admin.CreateAuction(f.ctx, maint, name, name+" auction", "")
	if err != nil {
		t.Fatalf("CreateAuction(%s) error = %v", name, err)
	}
	items := make([]*model.Item, 0, n)
	for i := 0; i < n; i++ {
		it, err := f.catalogue.CreateItem(f.ctx, admin, a.ID, ItemInput{Description: name + " lot"})
		if err != nil {
			t.Fatalf("CreateItem() error = %v", err)
		}
		items = append(items, it)
	}
	if status != model.StatusSetup {
		f.setStatus(t, a.ID, status)
	}
	return a, items
}

func (f *fixture) setStatus(t *testing.T, auctionID int64, status model.AuctionStatus) {
	t.Helper()
	if _, err := f.admin.UpdateAuctionStatus(f.ctx, maint, auctionID, string(status)); err != nil {
		t.Fatalf("UpdateAuctionStatus(%d, %s) error = %v", auctionID, status, err)
	}
}

func (f *fixture) sell(t *testing.T, auctionID, itemID int64, paddle int, price string) *LotResult {
	t.Helper()
	res, err := f.lots.FinalizeLot(f.ctx, admin, FinalizeLotInput{AuctionID: auctionID, ItemID: itemID, Paddle: paddle, Price: dec(price)})
	if err != nil {
		t.Fatalf("FinalizeLot(item %d) error = %v", itemID, err)
	}
	return res
}

func (f *fixture) assertDense(t *testing.T, auctionID int64) []model.Item {
	t.Helper()
	items, err := f.repos.Items.ListByAuction(f.ctx, f.db, auctionID)
	if err != nil {
		t.Fatal(err)
	}
	for i, it := range items {
		if it.ItemNumber != i+1 {
			t.Fatalf("auction %d: item %d has number %d at position %d", auctionID, it.ID, it.ItemNumber, i+1)
		}
	}
	return items
}

func (f *fixture) paymentRows(t *testing.T, bidderID int64) int {
	t.Helper()
	var n int
	if err := f.db.QueryRowContext(f.ctx, `SELECT COUNT(*) FROM payments WHERE bidder_id = ?`, bidderID).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func (f *fixture) auditActions(t *testing.T, objType model.ObjectType, objID int64) []string {
	t.Helper()
	entries, err := f.repos.Audit.List(f.ctx, repository.AuditFilter{ObjectType: objType, ObjectID: objID})
	if err != nil {
		t.Fatal(err)
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Action
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
