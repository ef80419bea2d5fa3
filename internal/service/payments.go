package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coastie-uk/convention-auction/internal/config"
	"github.com/coastie-uk/convention-auction/internal/model"
	"github.com/coastie-uk/convention-auction/internal/queue"
	"github.com/coastie-uk/convention-auction/internal/repository"
	"github.com/coastie-uk/convention-auction/internal/sumup"
)

// Payments are taken only once the auction is in settlement.
var paymentStates = []model.AuctionStatus{model.StatusSettlement}

// Source names the trigger that delivered a completion signal.
type Source string

const (
	SourceWebhook  Source = "webhook"
	SourceCallback Source = "callback"
	SourcePoll     Source = "poll"
)

// Outcome is what a finalize attempt did.
type Outcome string

const (
	// OutcomeSucceeded means this call recorded the payment.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeDuplicate means the intent was already terminal or another
	// caller recorded the payment first. It is a success for the caller.
	OutcomeDuplicate Outcome = "duplicate"
	OutcomePending   Outcome = "pending"
	OutcomeFailed    Outcome = "failed"
	OutcomeExpired   Outcome = "expired"
)

// Signal is the raw completion data a trigger carries. App callbacks set
// Status and TransactionCode; webhooks and polls leave it empty and the
// provider is asked instead.
type Signal struct {
	Status          string
	TransactionCode string
}

// FinalizeResult reports the outcome and the intent's current state.
type FinalizeResult struct {
	Outcome Outcome              `json:"outcome"`
	Intent  *model.PaymentIntent `json:"intent"`
	Payment *model.Payment       `json:"payment,omitempty"`
}

// CreateIntentInput requests a card payment.
type CreateIntentInput struct {
	BidderID    int64  `json:"bidder_id"`
	AmountMinor int64  `json:"amount_minor"`
	Channel     string `json:"channel"`
	Note        string `json:"note"`
}

// IntentResult is a created intent plus the URL that starts collection.
type IntentResult struct {
	Intent *model.PaymentIntent `json:"intent"`
	URL    string               `json:"url"`
}

// ManualPaymentInput records money taken by hand.
type ManualPaymentInput struct {
	BidderID int64           `json:"bidder_id"`
	Amount   decimal.Decimal `json:"amount"`
	Method   string          `json:"method"`
	Note     string          `json:"note"`
}

// PaymentReconciler creates card payment intents and turns completion
// signals into payment rows exactly once per intent. It also records
// manual payments and reversals.
type PaymentReconciler struct {
	db       *sql.DB
	repos    Repos
	guard    *AuctionStateGuard
	audit    *AuditTrail
	events   EventPublisher
	provider sumup.Provider
	cfg      config.SumUpConfig
	baseURL  string
	now      func() time.Time
}

// NewPaymentReconciler wires a PaymentReconciler. baseURL is the public
// address used to build callback and launch links.
func NewPaymentReconciler(db *sql.DB, repos Repos, guard *AuctionStateGuard, audit *AuditTrail, events EventPublisher,
	provider sumup.Provider, cfg config.SumUpConfig, baseURL string) *PaymentReconciler {
	if cfg.IntentTTL <= 0 {
		cfg.IntentTTL = 15 * time.Minute
	}
	return &PaymentReconciler{
		db:       db,
		repos:    repos,
		guard:    guard,
		audit:    audit,
		events:   events,
		provider: provider,
		cfg:      cfg,
		baseURL:  strings.TrimRight(baseURL, "/"),
		now:      time.Now,
	}
}

// SetClock replaces the time source. Tests use it to age intents.
func (r *PaymentReconciler) SetClock(now func() time.Time) { r.now = now }

func (r *PaymentReconciler) channelEnabled(c model.Channel) bool {
	switch c {
	case model.ChannelHosted:
		return r.cfg.HostedEnabled
	case model.ChannelApp:
		return r.cfg.AppEnabled
	case model.ChannelAppInd:
		return r.cfg.AppIndEnabled
	}
	return false
}

// outstandingMinorTx is what the bidder still owes, less any live
// pending intents, in minor units. It never goes below zero.
func (r *PaymentReconciler) outstandingMinorTx(ctx context.Context, q repository.DBTX, b *model.Bidder) (int64, error) {
	sum, err := summarize(ctx, q, r.repos, b)
	if err != nil {
		return 0, err
	}
	balance, err := model.MajorToMinor(sum.Balance)
	if err != nil {
		return 0, fmt.Errorf("%w: bidder %d balance: %v", ErrIntegrity, b.ID, err)
	}
	pending, err := r.repos.Intents.PendingMinorForBidder(ctx, q, b.ID, r.now())
	if err != nil {
		return 0, err
	}
	out := balance - pending
	if out < 0 {
		out = 0
	}
	return out, nil
}

// ExpireIntents marks every pending intent past its TTL as expired.
func (r *PaymentReconciler) ExpireIntents(ctx context.Context) (int64, error) {
	n, err := r.repos.Intents.ExpireStale(ctx, r.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("expired stale payment intents", slog.Int64("count", n))
	}
	return n, nil
}

// RunExpirySweeper calls ExpireIntents every interval until ctx ends.
func (r *PaymentReconciler) RunExpirySweeper(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := r.ExpireIntents(ctx); err != nil {
				slog.Warn("intent expiry sweep failed", slog.Any("error", err))
			}
		}
	}
}

// CreateIntent opens a pending card payment for a bidder. The amount may
// not exceed what the bidder owes after other pending intents. Hosted
// intents get a provider checkout; app intents get a deep link carrying
// the intent id as the foreign transaction id.
func (r *PaymentReconciler) CreateIntent(ctx context.Context, who model.Identity, in CreateIntentInput) (*IntentResult, error) {
	channel, ok := model.ParseChannel(in.Channel)
	if !ok {
		return nil, invalid("unknown channel %q", in.Channel)
	}
	if !r.channelEnabled(channel) {
		return nil, fmt.Errorf("%w: %s", ErrChannelDisabled, channel)
	}
	if in.AmountMinor <= 0 {
		return nil, invalid("amount_minor must be positive")
	}
	bidder, err := r.repos.Bidders.GetByID(ctx, r.db, in.BidderID)
	if err != nil {
		return nil, lookupErr(err, "bidder", in.BidderID)
	}
	if _, err := r.guard.Authorize(ctx, bidder.AuctionID, paymentStates...); err != nil {
		return nil, err
	}
	if _, err := r.ExpireIntents(ctx); err != nil {
		return nil, err
	}

	now := r.now()
	intent := &model.PaymentIntent{
		IntentID:    uuid.NewString(),
		BidderID:    bidder.ID,
		AmountMinor: in.AmountMinor,
		Currency:    r.cfg.Currency,
		Channel:     channel,
		Status:      model.IntentPending,
		ExpiresAt:   now.Add(r.cfg.IntentTTL),
		Note:        strings.TrimSpace(in.Note),
		CreatedBy:   who.Username,
	}
	err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		outstanding, err := r.outstandingMinorTx(ctx, tx, bidder)
		if err != nil {
			return err
		}
		if in.AmountMinor > outstanding {
			return &BalanceError{OutstandingMinor: outstanding}
		}
		return r.repos.Intents.Create(ctx, tx, intent)
	})
	if err != nil {
		return nil, err
	}

	title := fmt.Sprintf("Paddle %d", bidder.PaddleNumber)
	var url string
	switch channel {
	case model.ChannelHosted:
		// outside any transaction: this is a network round-trip
		co, err := r.provider.CreateHostedCheckout(ctx, intent.AmountMinor, intent.Currency, intent.IntentID, title)
		if err != nil {
			// the intent stays pending and ages out through the sweeper
			slog.Warn("hosted checkout creation failed", slog.String("intent_id", intent.IntentID), slog.Any("error", err))
			return nil, fmt.Errorf("%w: %v", ErrTransientProvider, err)
		}
		if err := r.repos.Intents.SetCheckoutID(ctx, intent.IntentID, co.ID); err != nil {
			return nil, err
		}
		intent.SumUpCheckoutID = &co.ID
		url = co.URL
	case model.ChannelApp:
		url = r.appLink(intent, title)
	case model.ChannelAppInd:
		url = r.baseURL + "/payments/intents/" + intent.IntentID + "/launch"
	}

	slog.Info("payment intent created", slog.String("intent_id", intent.IntentID), slog.Int64("bidder_id", bidder.ID),
		slog.Int64("amount_minor", intent.AmountMinor), slog.String("channel", string(channel)))
	r.audit.Record(ctx, who.Username, "create payment intent", model.ObjectBidder, bidder.ID, map[string]any{
		"intent_id":    intent.IntentID,
		"amount_minor": intent.AmountMinor,
		"channel":      string(channel),
	})
	return &IntentResult{Intent: intent, URL: url}, nil
}

func (r *PaymentReconciler) appLink(intent *model.PaymentIntent, title string) string {
	return sumup.AppLink{
		AffiliateKey:    r.cfg.AffiliateKey,
		AppID:           r.cfg.AppID,
		AmountMinor:     intent.AmountMinor,
		Currency:        intent.Currency,
		Title:           title,
		ForeignTxID:     intent.IntentID,
		CallbackSuccess: r.baseURL + "/payments/sumup/callback/success",
		CallbackFail:    r.baseURL + "/payments/sumup/callback/fail",
	}.URL()
}

// LaunchURL returns the deep link for a pending app-ind intent.
func (r *PaymentReconciler) LaunchURL(ctx context.Context, intentID string) (string, error) {
	intent, err := r.repos.Intents.Get(ctx, r.db, intentID)
	if err != nil {
		return "", lookupErr(err, "intent", intentID)
	}
	if intent.Channel != model.ChannelAppInd {
		return "", invalid("intent %s is not an app-ind intent", intentID)
	}
	if intent.Status != model.IntentPending || intent.Expired(r.now()) {
		return "", fmt.Errorf("%w: intent %s is no longer awaiting payment", ErrStateConflict, intentID)
	}
	bidder, err := r.repos.Bidders.GetByID(ctx, r.db, intent.BidderID)
	if err != nil {
		return "", lookupErr(err, "bidder", intent.BidderID)
	}
	return r.appLink(intent, fmt.Sprintf("Paddle %d", bidder.PaddleNumber)), nil
}

// GetIntent loads an intent.
func (r *PaymentReconciler) GetIntent(ctx context.Context, intentID string) (*model.PaymentIntent, error) {
	intent, err := r.repos.Intents.Get(ctx, r.db, intentID)
	if err != nil {
		return nil, lookupErr(err, "intent", intentID)
	}
	return intent, nil
}

// FinalizeIntent is the single completion path for card payments. It may
// be called any number of times from any trigger; at most one payment row
// is ever written per intent. Terminal intents are never touched again.
func (r *PaymentReconciler) FinalizeIntent(ctx context.Context, intentID string, sig Signal, source Source) (*FinalizeResult, error) {
	intent, err := r.repos.Intents.Get(ctx, r.db, intentID)
	if err != nil {
		return nil, lookupErr(err, "intent", intentID)
	}
	if intent.Status.Terminal() {
		return &FinalizeResult{Outcome: OutcomeDuplicate, Intent: intent}, nil
	}
	if intent.Expired(r.now()) {
		return r.transition(ctx, intent, model.IntentExpired, OutcomeExpired)
	}

	txnCode := strings.TrimSpace(sig.TransactionCode)
	if intent.Channel == model.ChannelHosted {
		status, code, err := r.checkoutStatus(ctx, intent)
		if err != nil {
			slog.Warn("provider lookup failed, intent left pending", slog.String("intent_id", intentID), slog.String("source", string(source)), slog.Any("error", err))
			return nil, fmt.Errorf("%w: %v", ErrTransientProvider, err)
		}
		switch status {
		case sumup.StatusPaid:
			txnCode = code
		case sumup.StatusFailed:
			return r.transition(ctx, intent, model.IntentFailed, OutcomeFailed)
		default:
			return &FinalizeResult{Outcome: OutcomePending, Intent: intent}, nil
		}
	} else if !strings.EqualFold(strings.TrimSpace(sig.Status), "success") {
		return &FinalizeResult{Outcome: OutcomePending, Intent: intent}, nil
	}

	method := intent.Channel.PaymentMethod()
	provider := model.ProviderSumUp
	payment := &model.Payment{
		BidderID:  intent.BidderID,
		Amount:    model.MinorToMajor(intent.AmountMinor),
		Method:    method,
		Note:      intent.Note,
		Provider:  &provider,
		IntentID:  &intent.IntentID,
		CreatedBy: method,
	}
	if txnCode != "" {
		payment.ProviderTxnID = &txnCode
	}

	duplicate := false
	err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		exists, err := r.repos.Payments.ExistsForIntentTx(ctx, tx, provider, intent.IntentID)
		if err != nil {
			return err
		}
		if exists {
			duplicate = true
			return nil
		}
		moved, err := r.repos.Intents.Transition(ctx, tx, intent.IntentID, model.IntentPending, model.IntentSucceeded)
		if err != nil {
			return err
		}
		if !moved {
			duplicate = true
			return nil
		}
		if err := r.repos.Payments.InsertTx(ctx, tx, payment); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				duplicate = true
				return errDuplicateRollback
			}
			return err
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDuplicateRollback) {
		return nil, err
	}
	current, gerr := r.repos.Intents.Get(ctx, r.db, intentID)
	if gerr != nil {
		return nil, gerr
	}
	if duplicate {
		slog.Info("duplicate completion signal ignored", slog.String("intent_id", intentID), slog.String("source", string(source)))
		return &FinalizeResult{Outcome: OutcomeDuplicate, Intent: current}, nil
	}

	slog.Info("card payment recorded", slog.String("intent_id", intentID), slog.Int64("payment_id", payment.ID), slog.String("source", string(source)))
	r.afterPayment(ctx, model.System.Username, payment, map[string]any{
		"intent_id": intent.IntentID,
		"source":    string(source),
		"channel":   string(intent.Channel),
	})
	return &FinalizeResult{Outcome: OutcomeSucceeded, Intent: current, Payment: payment}, nil
}

// errDuplicateRollback aborts a finalize transaction that lost the
// uniqueness race so nothing it wrote survives.
var errDuplicateRollback = errors.New("duplicate payment for intent")

// checkoutStatus asks the provider about the intent's checkout and
// returns its status and the successful transaction code when paid.
func (r *PaymentReconciler) checkoutStatus(ctx context.Context, intent *model.PaymentIntent) (string, string, error) {
	checkouts, err := r.provider.GetCheckoutsByReference(ctx, intent.IntentID)
	if err != nil {
		return "", "", err
	}
	var match *sumup.CheckoutStatus
	for i := range checkouts {
		c := &checkouts[i]
		if intent.SumUpCheckoutID != nil && c.ID == *intent.SumUpCheckoutID {
			match = c
			break
		}
		if match == nil {
			match = c
		}
	}
	if match == nil {
		return sumup.StatusPending, "", nil
	}
	status := strings.ToUpper(match.Status)
	code := ""
	for _, t := range match.Transactions {
		if strings.EqualFold(t.Status, "SUCCESSFUL") {
			code = t.TransactionCode
			if code == "" {
				code = t.ID
			}
			break
		}
	}
	return status, code, nil
}

func (r *PaymentReconciler) transition(ctx context.Context, intent *model.PaymentIntent, to model.IntentStatus, outcome Outcome) (*FinalizeResult, error) {
	moved, err := r.repos.Intents.Transition(ctx, r.db, intent.IntentID, model.IntentPending, to)
	if err != nil {
		return nil, err
	}
	current, err := r.repos.Intents.Get(ctx, r.db, intent.IntentID)
	if err != nil {
		return nil, err
	}
	if !moved {
		return &FinalizeResult{Outcome: OutcomeDuplicate, Intent: current}, nil
	}
	slog.Info("payment intent closed", slog.String("intent_id", intent.IntentID), slog.String("status", string(to)))
	if to == model.IntentFailed {
		ev := queue.NewEvent(queue.EventIntentFailed)
		ev.IntentID, ev.BidderID = intent.IntentID, intent.BidderID
		emit(ctx, r.events, ev)
	}
	return &FinalizeResult{Outcome: outcome, Intent: current}, nil
}

// FinalizeByCheckout handles a provider webhook naming a checkout id.
func (r *PaymentReconciler) FinalizeByCheckout(ctx context.Context, checkoutID string) (*FinalizeResult, error) {
	intent, err := r.repos.Intents.GetByCheckoutID(ctx, checkoutID)
	if err != nil {
		return nil, lookupErr(err, "checkout", checkoutID)
	}
	return r.FinalizeIntent(ctx, intent.IntentID, Signal{}, SourceWebhook)
}

// FailIntentFromCallback marks a pending intent failed. Intents in any
// other state are left as they are.
func (r *PaymentReconciler) FailIntentFromCallback(ctx context.Context, intentID, cause string) (*FinalizeResult, error) {
	intent, err := r.repos.Intents.Get(ctx, r.db, intentID)
	if err != nil {
		return nil, lookupErr(err, "intent", intentID)
	}
	if intent.Status.Terminal() {
		return &FinalizeResult{Outcome: OutcomeDuplicate, Intent: intent}, nil
	}
	res, err := r.transition(ctx, intent, model.IntentFailed, OutcomeFailed)
	if err != nil {
		return nil, err
	}
	if res.Outcome == OutcomeFailed {
		r.audit.Record(ctx, model.System.Username, "payment intent failed", model.ObjectBidder, intent.BidderID, map[string]any{
			"intent_id": intentID,
			"cause":     cause,
		})
	}
	return res, nil
}

// PollIntent returns the intent, first driving finalization when it is
// still pending.
func (r *PaymentReconciler) PollIntent(ctx context.Context, intentID string) (*FinalizeResult, error) {
	intent, err := r.repos.Intents.Get(ctx, r.db, intentID)
	if err != nil {
		return nil, lookupErr(err, "intent", intentID)
	}
	if intent.Status.Terminal() {
		return &FinalizeResult{Outcome: Outcome(intent.Status), Intent: intent}, nil
	}
	return r.FinalizeIntent(ctx, intentID, Signal{}, SourcePoll)
}

// RecordPayment records money taken by a cashier. The amount must be
// positive and may not exceed the outstanding balance (pending intents
// included).
func (r *PaymentReconciler) RecordPayment(ctx context.Context, who model.Identity, in ManualPaymentInput) (*model.Payment, error) {
	method := strings.ToLower(strings.TrimSpace(in.Method))
	if !model.ManualMethods[method] {
		return nil, invalid("unsupported payment method %q", in.Method)
	}
	if !in.Amount.IsPositive() {
		return nil, invalid("amount must be greater than zero")
	}
	amountMinor, err := model.MajorToMinor(in.Amount)
	if err != nil {
		return nil, invalid("%v", err)
	}
	bidder, err := r.repos.Bidders.GetByID(ctx, r.db, in.BidderID)
	if err != nil {
		return nil, lookupErr(err, "bidder", in.BidderID)
	}
	if _, err := r.guard.Authorize(ctx, bidder.AuctionID, paymentStates...); err != nil {
		return nil, err
	}

	payment := &model.Payment{
		BidderID:  bidder.ID,
		Amount:    in.Amount,
		Method:    method,
		Note:      strings.TrimSpace(in.Note),
		CreatedBy: who.Username,
	}
	err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		outstanding, err := r.outstandingMinorTx(ctx, tx, bidder)
		if err != nil {
			return err
		}
		if amountMinor > outstanding {
			return &BalanceError{OutstandingMinor: outstanding}
		}
		return r.repos.Payments.InsertTx(ctx, tx, payment)
	})
	if err != nil {
		return nil, err
	}
	slog.Info("manual payment recorded", slog.Int64("payment_id", payment.ID), slog.Int64("bidder_id", bidder.ID), slog.String("amount", in.Amount.StringFixed(2)))
	r.afterPayment(ctx, who.Username, payment, map[string]any{"method": method})
	return payment, nil
}

// afterPayment audits and publishes a positive payment, adding a paid in
// full entry when it cleared the balance.
func (r *PaymentReconciler) afterPayment(ctx context.Context, user string, p *model.Payment, details map[string]any) {
	details["bidder_id"] = p.BidderID
	details["amount"] = p.Amount.StringFixed(2)
	r.audit.Record(ctx, user, "record payment", model.ObjectPayment, p.ID, details)

	ev := queue.NewEvent(queue.EventPaymentRecorded)
	ev.PaymentID, ev.BidderID, ev.Amount, ev.User = p.ID, p.BidderID, p.Amount.StringFixed(2), user
	if p.IntentID != nil {
		ev.IntentID = *p.IntentID
	}
	emit(ctx, r.events, ev)

	bidder, err := r.repos.Bidders.GetByID(ctx, r.db, p.BidderID)
	if err != nil {
		slog.Warn("paid in full check skipped", slog.Int64("bidder_id", p.BidderID), slog.Any("error", err))
		return
	}
	sum, err := summarize(ctx, r.db, r.repos, bidder)
	if err != nil {
		slog.Warn("paid in full check skipped", slog.Int64("bidder_id", p.BidderID), slog.Any("error", err))
		return
	}
	if sum.Balance.IsZero() {
		r.audit.Record(ctx, user, "paid in full", model.ObjectBidder, bidder.ID, map[string]any{
			"paddle_number": bidder.PaddleNumber,
			"lots_total":    sum.LotsTotal.StringFixed(2),
			"payment_id":    p.ID,
		})
	}
}

// ReversePayment writes an offsetting negative payment against an
// original one. The original row is never changed. The amount may not
// exceed what is left unreversed on the original and a reason is
// required. A non-zero auctionID must match the payment's auction.
func (r *PaymentReconciler) ReversePayment(ctx context.Context, who model.Identity, paymentID int64, reason string, amount decimal.Decimal, auctionID int64) (*model.Payment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("a reason is required")
	}
	if !amount.IsPositive() {
		return nil, invalid("amount must be greater than zero")
	}
	if _, err := model.MajorToMinor(amount); err != nil {
		return nil, invalid("%v", err)
	}
	orig, err := r.repos.Payments.GetByID(ctx, r.db, paymentID)
	if err != nil {
		return nil, lookupErr(err, "payment", paymentID)
	}
	bidder, err := r.repos.Bidders.GetByID(ctx, r.db, orig.BidderID)
	if err != nil {
		return nil, err
	}
	if auctionID > 0 && bidder.AuctionID != auctionID {
		return nil, conflict("payment %d does not belong to auction %d", paymentID, auctionID)
	}
	if _, err := r.guard.Authorize(ctx, bidder.AuctionID, saleStates...); err != nil {
		return nil, err
	}
	if orig.ReversesPaymentID != nil || !orig.Amount.IsPositive() {
		return nil, invalid("payment %d is itself a reversal", paymentID)
	}

	reversal := &model.Payment{
		BidderID:          orig.BidderID,
		Amount:            amount.Neg(),
		Method:            model.MethodReversal,
		Note:              reason,
		ReversesPaymentID: &orig.ID,
		CreatedBy:         who.Username,
	}
	err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		reversed, err := r.repos.Payments.ReversedTotalTx(ctx, tx, orig.ID)
		if err != nil {
			return err
		}
		remaining := orig.Amount.Sub(reversed)
		if amount.GreaterThan(remaining) {
			rem, _ := model.MajorToMinor(remaining)
			return &BalanceError{OutstandingMinor: rem}
		}
		return r.repos.Payments.InsertTx(ctx, tx, reversal)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("payment reversed", slog.Int64("payment_id", orig.ID), slog.Int64("reversal_id", reversal.ID), slog.String("amount", amount.StringFixed(2)))
	r.audit.Record(ctx, who.Username, "reverse payment", model.ObjectPayment, reversal.ID, map[string]any{
		"reverses_payment_id": orig.ID,
		"amount":              amount.StringFixed(2),
		"reason":              reason,
	})
	ev := queue.NewEvent(queue.EventPaymentReversed)
	ev.PaymentID, ev.BidderID, ev.Amount, ev.User = reversal.ID, reversal.BidderID, reversal.Amount.StringFixed(2), who.Username
	emit(ctx, r.events, ev)
	return reversal, nil
}
