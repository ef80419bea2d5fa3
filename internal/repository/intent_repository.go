package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/coastie-uk/convention-auction/internal/model"
)

// IntentRepo provides persistence for payment intents. Status changes are
// conditional on the current status so that a terminal intent can never
// be moved again.
type IntentRepo struct {
	db *sql.DB
}

// NewIntentRepo returns a new IntentRepo bound to the given database.
func NewIntentRepo(db *sql.DB) *IntentRepo { return &IntentRepo{db: db} }

const intentColumns = `intent_id, bidder_id, amount_minor, currency, channel, status, expires_at, sumup_checkout_id, note, created_by, created_at, updated_at`

func scanIntent(row interface{ Scan(...any) error }) (*model.PaymentIntent, error) {
	var p model.PaymentIntent
	var channel, status string
	var expires int64
	var checkout sql.NullString
	if err := row.Scan(&p.IntentID, &p.BidderID, &p.AmountMinor, &p.Currency, &channel, &status, &expires,
		&checkout, &p.Note, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Channel = model.Channel(channel)
	p.Status = model.IntentStatus(status)
	p.ExpiresAt = time.Unix(expires, 0).UTC()
	p.SumUpCheckoutID = stringPtr(checkout)
	return &p, nil
}

// Create inserts a new intent.
func (r *IntentRepo) Create(ctx context.Context, q DBTX, p *model.PaymentIntent) error {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	const stmt = `INSERT INTO payment_intents (intent_id, bidder_id, amount_minor, currency, channel, status, expires_at, sumup_checkout_id, note, created_by, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := q.ExecContext(ctx, stmt, p.IntentID, p.BidderID, p.AmountMinor, p.Currency, string(p.Channel), string(p.Status),
		p.ExpiresAt.Unix(), nullString(p.SumUpCheckoutID), p.Note, p.CreatedBy, p.CreatedAt, p.UpdatedAt)
	return err
}

// Get loads an intent by ID.
func (r *IntentRepo) Get(ctx context.Context, q DBTX, id string) (*model.PaymentIntent, error) {
	p, err := scanIntent(q.QueryRowContext(ctx, `SELECT `+intentColumns+` FROM payment_intents WHERE intent_id = ?`, id))
	return p, notFound(err)
}

// GetByCheckoutID finds the intent correlated with a provider checkout.
func (r *IntentRepo) GetByCheckoutID(ctx context.Context, checkoutID string) (*model.PaymentIntent, error) {
	p, err := scanIntent(r.db.QueryRowContext(ctx, `SELECT `+intentColumns+` FROM payment_intents WHERE sumup_checkout_id = ?`, checkoutID))
	return p, notFound(err)
}

// ListByBidder returns a bidder's intents newest first.
func (r *IntentRepo) ListByBidder(ctx context.Context, bidderID int64) ([]model.PaymentIntent, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+intentColumns+` FROM payment_intents WHERE bidder_id = ? ORDER BY created_at DESC`, bidderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.PaymentIntent, 0)
	for rows.Next() {
		p, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// SetCheckoutID stores the provider checkout id on a pending intent.
func (r *IntentRepo) SetCheckoutID(ctx context.Context, id, checkoutID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE payment_intents SET sumup_checkout_id = ?, updated_at = ? WHERE intent_id = ?`,
		checkoutID, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Transition moves an intent from one status to another. It returns
// false without error when the intent was not in the from status, which
// is how concurrent finalizers lose the race harmlessly.
func (r *IntentRepo) Transition(ctx context.Context, q DBTX, id string, from, to model.IntentStatus) (bool, error) {
	res, err := q.ExecContext(ctx, `UPDATE payment_intents SET status = ?, updated_at = ? WHERE intent_id = ? AND status = ?`,
		string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ExpireStale marks every pending intent whose TTL has elapsed at now as
// expired and returns how many were swept.
func (r *IntentRepo) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE payment_intents SET status = ?, updated_at = ? WHERE status = ? AND expires_at <= ?`,
		string(model.IntentExpired), now.UTC(), string(model.IntentPending), now.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PendingMinorForBidder totals the amounts of the bidder's live pending
// intents.
func (r *IntentRepo) PendingMinorForBidder(ctx context.Context, q DBTX, bidderID int64, now time.Time) (int64, error) {
	var total int64
	err := q.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount_minor), 0) FROM payment_intents WHERE bidder_id = ? AND status = ? AND expires_at > ?`,
		bidderID, string(model.IntentPending), now.Unix()).Scan(&total)
	return total, err
}
