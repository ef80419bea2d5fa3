package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/mock/gomock"

	"github.com/coastie-uk/convention-auction/internal/cache"
	"github.com/coastie-uk/convention-auction/internal/config"
	"github.com/coastie-uk/convention-auction/internal/database"
	"github.com/coastie-uk/convention-auction/internal/middleware"
	"github.com/coastie-uk/convention-auction/internal/model"
	"github.com/coastie-uk/convention-auction/internal/service"
	"github.com/coastie-uk/convention-auction/internal/sumup"
	"github.com/coastie-uk/convention-auction/internal/sumup/mock"
)

type testEnv struct {
	e        *echo.Echo
	provider *mock.MockProvider
}

// withRole stands in for JWTAuth: the X-Test-Role header picks the role.
func withRole(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		role := c.Request().Header.Get("X-Test-Role")
		if role == "" {
			role = model.RoleMaintenance
		}
		middleware.SetIdentity(c, model.Identity{Username: "tester", Role: role})
		return next(c)
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, config.DBConfig{Driver: "sqlite3", Path: filepath.Join(t.TempDir(), "ledger.db")})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mem, err := cache.NewMemory(64, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	repos := service.NewRepos(db)
	guard := service.NewAuctionStateGuard(repos.Auctions, repos.Items, mem)
	audit := service.NewAuditTrail(repos.Audit)
	events := service.NopPublisher{}
	provider := mock.NewMockProvider(gomock.NewController(t))
	cfg := config.SumUpConfig{
		Currency:      "GBP",
		IntentTTL:     15 * time.Minute,
		AffiliateKey:  "aff",
		HostedEnabled: true,
		AppEnabled:    true,
		AppIndEnabled: true,
	}
	lots := service.NewLotLedger(db, repos, guard, audit, events)
	auctions := NewAuctionHandler(service.NewAuctionAdmin(db, repos, guard, audit, events))
	items := NewItemHandler(service.NewCatalogue(db, repos, guard, audit), lots)
	lotH := NewLotHandler(lots)
	pay := NewPaymentHandler(service.NewPaymentReconciler(db, repos, guard, audit, events, provider, cfg, "https://auction.example"))
	auditH := NewAuditHandler(audit)

	e := echo.New()
	e.GET("/healthz", NewHealthHandler(db).Health)
	e.GET("/v1/public/auctions/:short/items", items.PublicList)
	e.GET("/payments/intents/:intent_id/launch", pay.Launch)
	e.POST("/payments/sumup/webhook", pay.Webhook)
	e.GET("/payments/sumup/callback/success", pay.CallbackSuccess)
	e.GET("/payments/sumup/callback/fail", pay.CallbackFail)

	g := e.Group("/v1", withRole)
	g.POST("/auctions", auctions.Create)
	g.PATCH("/auctions/:id/status", auctions.UpdateStatus)
	g.DELETE("/auctions/:id", auctions.Delete)
	g.GET("/auctions/:id/items", items.List)
	g.POST("/auctions/:id/items", items.Create)
	g.POST("/auctions/:id/items/:item_id/move", items.Move)
	g.POST("/auctions/:id/items/:item_id/finalize", lotH.Finalize)
	g.GET("/auctions/:id/bidders/:bidder_id", lotH.Bidder)
	g.GET("/auctions/:id/paddles/:paddle", lotH.Paddle)
	g.POST("/payments/intents", pay.CreateIntent)
	g.GET("/payments/intents/:intent_id", pay.PollIntent)
	g.POST("/payments", pay.Record)
	g.GET("/audit", auditH.List)

	return &testEnv{e: e, provider: provider}
}

func (env *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		req = httptest.NewRequest(method, path, strings.NewReader(string(raw)))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, code int) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, code, rec.Body.String())
	}
}

// liveAuction creates an auction with n items and moves it to live.
func (env *testEnv) liveAuction(t *testing.T, name string, n int) (model.Auction, []model.Item) {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/v1/auctions", echo.Map{"short_name": name, "full_name": name + " auction"})
	expect(t, rec, http.StatusCreated)
	a := decode[model.Auction](t, rec)

	items := make([]model.Item, 0, n)
	for i := 0; i < n; i++ {
		rec := env.do(t, http.MethodPost, fmt.Sprintf("/v1/auctions/%d/items", a.ID), echo.Map{"description": fmt.Sprintf("lot %d", i+1)})
		expect(t, rec, http.StatusCreated)
		items = append(items, decode[model.Item](t, rec))
	}
	rec = env.do(t, http.MethodPatch, fmt.Sprintf("/v1/auctions/%d/status", a.ID), echo.Map{"status": "live"})
	expect(t, rec, http.StatusOK)
	return a, items
}

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantKey  string
	}{
		{"state conflict", &service.StateConflictError{Current: model.StatusLive, Allowed: []model.AuctionStatus{model.StatusSetup}}, http.StatusConflict, "allowed_states"},
		{"wrapped conflict", fmt.Errorf("%w: intent gone", service.ErrStateConflict), http.StatusConflict, "error"},
		{"balance", &service.BalanceError{OutstandingMinor: 4000}, http.StatusBadRequest, "outstanding_minor"},
		{"not found", fmt.Errorf("%w: item 9", service.ErrNotFound), http.StatusNotFound, "error"},
		{"invalid", fmt.Errorf("%w: bad", service.ErrInvalidInput), http.StatusBadRequest, "error"},
		{"forbidden", service.ErrForbidden, http.StatusForbidden, "error"},
		{"channel disabled", fmt.Errorf("%w: hosted", service.ErrChannelDisabled), http.StatusServiceUnavailable, "error"},
		{"provider", fmt.Errorf("%w: timeout", service.ErrTransientProvider), http.StatusBadGateway, "error"},
		{"integrity", fmt.Errorf("%w: duplicate number", service.ErrIntegrity), http.StatusInternalServerError, "error"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "error"},
	}
	e := echo.New()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			if err := respondError(c, tc.err); err != nil {
				t.Fatal(err)
			}
			expect(t, rec, tc.wantCode)
			body := decode[map[string]any](t, rec)
			if _, ok := body[tc.wantKey]; !ok {
				t.Fatalf("body %v lacks %q", body, tc.wantKey)
			}
		})
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	_ = respondError(c, errors.New("sql: connection refused at 10.0.0.5"))
	if strings.Contains(rec.Body.String(), "10.0.0.5") {
		t.Fatalf("internal error leaked: %s", rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", nil)
	expect(t, rec, http.StatusOK)
	if rec.Body.String() != "ok" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestInvalidPathID(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/auctions/abc/items", nil)
	expect(t, rec, http.StatusBadRequest)
}

func TestStateConflictCarriesAllowedStates(t *testing.T) {
	env := newTestEnv(t)
	a, _ := env.liveAuction(t, "conflict", 1)

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/v1/auctions/%d/items", a.ID), echo.Map{"description": "late entry"})
	expect(t, rec, http.StatusConflict)
	body := decode[struct {
		Current string   `json:"current_state"`
		Allowed []string `json:"allowed_states"`
	}](t, rec)
	if body.Current != "live" {
		t.Fatalf("current_state = %q", body.Current)
	}
	if strings.Join(body.Allowed, ",") != "setup,locked" {
		t.Fatalf("allowed_states = %v", body.Allowed)
	}
}

func TestStatusChangeForbiddenForCashier(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/auctions", echo.Map{"short_name": "roles", "full_name": "Roles"})
	expect(t, rec, http.StatusCreated)
	a := decode[model.Auction](t, rec)

	rec = env.do(t, http.MethodPatch, fmt.Sprintf("/v1/auctions/%d/status", a.ID), echo.Map{"status": "live"}, "X-Test-Role", model.RoleCashier)
	expect(t, rec, http.StatusForbidden)
}

func TestMoveReturnsReorderedList(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/auctions", echo.Map{"short_name": "order", "full_name": "Order"})
	expect(t, rec, http.StatusCreated)
	a := decode[model.Auction](t, rec)
	var ids []int64
	for i := 0; i < 3; i++ {
		rec := env.do(t, http.MethodPost, fmt.Sprintf("/v1/auctions/%d/items", a.ID), echo.Map{"description": fmt.Sprintf("item %d", i)})
		expect(t, rec, http.StatusCreated)
		ids = append(ids, decode[model.Item](t, rec).ID)
	}

	// last item to the front
	rec = env.do(t, http.MethodPost, fmt.Sprintf("/v1/auctions/%d/items/%d/move", a.ID, ids[2]), echo.Map{})
	expect(t, rec, http.StatusOK)
	list := decode[service.ItemList](t, rec)
	if len(list.Items) != 3 {
		t.Fatalf("items = %d", len(list.Items))
	}
	want := []int64{ids[2], ids[0], ids[1]}
	for i, it := range list.Items {
		if it.ID != want[i] || it.ItemNumber != i+1 {
			t.Fatalf("position %d: id %d number %d, want id %d number %d", i, it.ID, it.ItemNumber, want[i], i+1)
		}
	}
}

func TestSettlementOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	a, items := env.liveAuction(t, "settle", 1)

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/v1/auctions/%d/items/%d/finalize", a.ID, items[0].ID),
		echo.Map{"paddle": 101, "price": "50.00"})
	expect(t, rec, http.StatusOK)
	lot := decode[service.LotResult](t, rec)
	if !lot.AuctionAdvanced {
		t.Fatal("auction did not advance to settlement")
	}
	bidderID := lot.Bidder.ID

	rec = env.do(t, http.MethodPost, "/v1/payments", echo.Map{"bidder_id": bidderID, "amount": "10.00", "method": "cash"}, "X-Test-Role", model.RoleCashier)
	expect(t, rec, http.StatusCreated)

	rec = env.do(t, http.MethodPost, "/v1/payments/intents", echo.Map{"bidder_id": bidderID, "amount_minor": 4001, "channel": "app"})
	expect(t, rec, http.StatusBadRequest)
	if got := decode[map[string]any](t, rec)["outstanding_minor"]; got != float64(4000) {
		t.Fatalf("outstanding_minor = %v", got)
	}

	rec = env.do(t, http.MethodPost, "/v1/payments/intents", echo.Map{"bidder_id": bidderID, "amount_minor": 4000, "channel": "app"})
	expect(t, rec, http.StatusCreated)
	created := decode[service.IntentResult](t, rec)
	if !strings.HasPrefix(created.URL, "sumupmerchant://pay/1.0?") {
		t.Fatalf("url = %q", created.URL)
	}

	callback := "/payments/sumup/callback/success?smp-status=success&smp-tx-code=TX1&foreign-tx-id=" + created.Intent.IntentID
	rec = env.do(t, http.MethodGet, callback, nil)
	expect(t, rec, http.StatusOK)
	if got := decode[service.FinalizeResult](t, rec).Outcome; got != service.OutcomeSucceeded {
		t.Fatalf("first callback outcome = %s", got)
	}
	rec = env.do(t, http.MethodGet, callback, nil)
	expect(t, rec, http.StatusOK)
	if got := decode[service.FinalizeResult](t, rec).Outcome; got != service.OutcomeDuplicate {
		t.Fatalf("second callback outcome = %s", got)
	}

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/v1/auctions/%d/bidders/%d", a.ID, bidderID), nil)
	expect(t, rec, http.StatusOK)
	detail := decode[model.BidderDetail](t, rec)
	if !detail.Balance.IsZero() {
		t.Fatalf("balance = %s", detail.Balance)
	}
	if len(detail.Payments) != 2 {
		t.Fatalf("payments = %d, want 2", len(detail.Payments))
	}
	if len(detail.Intents) != 1 || detail.Intents[0].IntentID != created.Intent.IntentID || detail.Intents[0].Status != model.IntentSucceeded {
		t.Fatalf("intents = %+v, want the succeeded intent", detail.Intents)
	}

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/v1/auctions/%d/paddles/101", a.ID), nil)
	expect(t, rec, http.StatusOK)
	if s := decode[model.BidderSummary](t, rec); !s.LotsTotal.Equal(decimal.RequireFromString("50")) {
		t.Fatalf("lots_total = %s", s.LotsTotal)
	}
}

func settledBidder(t *testing.T, env *testEnv, name string) int64 {
	t.Helper()
	a, items := env.liveAuction(t, name, 1)
	rec := env.do(t, http.MethodPost, fmt.Sprintf("/v1/auctions/%d/items/%d/finalize", a.ID, items[0].ID),
		echo.Map{"paddle": 7, "price": "20.00"})
	expect(t, rec, http.StatusOK)
	return decode[service.LotResult](t, rec).Bidder.ID
}

func TestWebhook(t *testing.T) {
	env := newTestEnv(t)
	bidderID := settledBidder(t, env, "hook")

	env.provider.EXPECT().
		CreateHostedCheckout(gomock.Any(), int64(2000), "GBP", gomock.Any(), "Paddle 7").
		Return(&sumup.Checkout{ID: "chk_1", URL: "https://pay.example/chk_1"}, nil)
	rec := env.do(t, http.MethodPost, "/v1/payments/intents", echo.Map{"bidder_id": bidderID, "amount_minor": 2000, "channel": "hosted"})
	expect(t, rec, http.StatusCreated)
	intentID := decode[service.IntentResult](t, rec).Intent.IntentID

	t.Run("missing id", func(t *testing.T) {
		expect(t, env.do(t, http.MethodPost, "/payments/sumup/webhook", echo.Map{"event_type": "CHECKOUT_STATUS_CHANGED"}), http.StatusBadRequest)
	})
	t.Run("unknown checkout is acknowledged", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/payments/sumup/webhook", echo.Map{"id": "chk_unknown"})
		expect(t, rec, http.StatusOK)
	})
	t.Run("provider down", func(t *testing.T) {
		env.provider.EXPECT().GetCheckoutsByReference(gomock.Any(), intentID).Return(nil, sumup.ErrUnavailable)
		rec := env.do(t, http.MethodPost, "/payments/sumup/webhook", echo.Map{"id": "chk_1"})
		expect(t, rec, http.StatusAccepted)
	})
	t.Run("still pending", func(t *testing.T) {
		env.provider.EXPECT().GetCheckoutsByReference(gomock.Any(), intentID).
			Return([]sumup.CheckoutStatus{{ID: "chk_1", Status: sumup.StatusPending}}, nil)
		expect(t, env.do(t, http.MethodPost, "/payments/sumup/webhook", echo.Map{"id": "chk_1"}), http.StatusAccepted)
	})
	t.Run("paid", func(t *testing.T) {
		env.provider.EXPECT().GetCheckoutsByReference(gomock.Any(), intentID).
			Return([]sumup.CheckoutStatus{{
				ID:           "chk_1",
				Status:       sumup.StatusPaid,
				Transactions: []sumup.Transaction{{ID: "t1", TransactionCode: "TC1", Status: "SUCCESSFUL"}},
			}}, nil)
		rec := env.do(t, http.MethodPost, "/payments/sumup/webhook", echo.Map{"id": "chk_1"})
		expect(t, rec, http.StatusOK)
		if got := decode[service.FinalizeResult](t, rec).Outcome; got != service.OutcomeSucceeded {
			t.Fatalf("outcome = %s", got)
		}
	})
	t.Run("poll after payment", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/payments/intents/"+intentID, nil)
		expect(t, rec, http.StatusOK)
		if got := decode[service.FinalizeResult](t, rec).Intent.Status; got != model.IntentSucceeded {
			t.Fatalf("status = %s", got)
		}
	})
}

func TestLaunchRedirect(t *testing.T) {
	env := newTestEnv(t)
	bidderID := settledBidder(t, env, "launch")

	rec := env.do(t, http.MethodPost, "/v1/payments/intents", echo.Map{"bidder_id": bidderID, "amount_minor": 500, "channel": "app-ind"})
	expect(t, rec, http.StatusCreated)
	created := decode[service.IntentResult](t, rec)
	if created.URL != "https://auction.example/payments/intents/"+created.Intent.IntentID+"/launch" {
		t.Fatalf("url = %q", created.URL)
	}

	rec = env.do(t, http.MethodGet, "/payments/intents/"+created.Intent.IntentID+"/launch", nil)
	expect(t, rec, http.StatusFound)
	if loc := rec.Header().Get(echo.HeaderLocation); !strings.HasPrefix(loc, "sumupmerchant://pay/1.0?") {
		t.Fatalf("location = %q", loc)
	}

	fail := "/payments/sumup/callback/fail?smp-failure-cause=declined&foreign-tx-id=" + created.Intent.IntentID
	expect(t, env.do(t, http.MethodGet, fail, nil), http.StatusOK)
	expect(t, env.do(t, http.MethodGet, "/payments/intents/"+created.Intent.IntentID+"/launch", nil), http.StatusConflict)
}

func TestCallbackRequiresIntentID(t *testing.T) {
	env := newTestEnv(t)
	expect(t, env.do(t, http.MethodGet, "/payments/sumup/callback/success?smp-status=success", nil), http.StatusBadRequest)
	expect(t, env.do(t, http.MethodGet, "/payments/sumup/callback/fail", nil), http.StatusBadRequest)
	expect(t, env.do(t, http.MethodGet, "/payments/sumup/callback/success?foreign-tx-id=nope", nil), http.StatusNotFound)
}

func TestPublicListHidesArchived(t *testing.T) {
	env := newTestEnv(t)
	a, _ := env.liveAuction(t, "public", 2)

	rec := env.do(t, http.MethodGet, "/v1/public/auctions/public/items", nil)
	expect(t, rec, http.StatusOK)
	if got := decode[service.ItemList](t, rec).Totals.ItemCount; got != 2 {
		t.Fatalf("item_count = %d", got)
	}

	expect(t, env.do(t, http.MethodPatch, fmt.Sprintf("/v1/auctions/%d/status", a.ID), echo.Map{"status": "archived"}), http.StatusOK)
	expect(t, env.do(t, http.MethodGet, "/v1/public/auctions/public/items", nil), http.StatusNotFound)
}

func TestAuditQuery(t *testing.T) {
	env := newTestEnv(t)
	a, _ := env.liveAuction(t, "audited", 1)

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/v1/audit?object_type=auction&object_id=%d&limit=10", a.ID), nil)
	expect(t, rec, http.StatusOK)
	entries := decode[[]model.AuditEntry](t, rec)
	if len(entries) == 0 {
		t.Fatal("no audit entries for auction")
	}
	for _, e := range entries {
		if e.ObjectType != model.ObjectAuction || e.ObjectID != a.ID {
			t.Fatalf("unexpected entry %+v", e)
		}
	}

	for _, q := range []string{"object_type=seat", "limit=0", "object_id=x"} {
		expect(t, env.do(t, http.MethodGet, "/v1/audit?"+q, nil), http.StatusBadRequest)
	}
}

func TestDeleteAuctionWithItems(t *testing.T) {
	env := newTestEnv(t)
	a, _ := env.liveAuction(t, "busy", 1)
	expect(t, env.do(t, http.MethodDelete, fmt.Sprintf("/v1/auctions/%d", a.ID), nil), http.StatusConflict)
}
