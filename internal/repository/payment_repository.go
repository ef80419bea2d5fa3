package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coastie-uk/convention-auction/internal/database"
	"github.com/coastie-uk/convention-auction/internal/model"
)

// PaymentRepo provides persistence for payments. Payments are
// append-only: there is no update or delete outside the ledger reset.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }


const paymentColumns = `id, bidder_id, amount, method, note, provider, provider_txn_id, intent_id, reverses_payment_id, created_by, created_at`

func scanPayment(row interface{ Scan(...any) error }) (*model.Payment, error) {
	var p model.Payment
	var provider, txn, intent sql.NullString
	var reverses sql.NullInt64
	if err := row.Scan(&p.ID, &p.BidderID, &p.Amount, &p.Method, &p.Note, &provider, &txn, &intent, &reverses, &p.CreatedBy, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Provider = stringPtr(provider)
	p.ProviderTxnID = stringPtr(txn)
	p.IntentID = stringPtr(intent)
	p.ReversesPaymentID = int64Ptr(reverses)
	return &p, nil
}

// InsertTx appends a payment row and populates its ID. A second row for
// the same (provider, intent_id) yields ErrDuplicate.
func (r *PaymentRepo) InsertTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	const q = `INSERT INTO payments (bidder_id, amount, method, note, provider, provider_txn_id, intent_id, reverses_payment_id, created_by, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, p.BidderID, p.Amount, p.Method, p.Note, nullString(p.Provider),
		nullString(p.ProviderTxnID), nullString(p.IntentID), nullInt64(p.ReversesPaymentID), p.CreatedBy, p.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	p.ID, err = res.LastInsertId()
	return err
}

// GetByID loads a single payment.
func (r *PaymentRepo) GetByID(ctx context.Context, q DBTX, id int64) (*model.Payment, error) {
	p, err := scanPayment(q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id))
	return p, notFound(err)
}

// ListByBidder returns a bidder's payments oldest first.
func (r *PaymentRepo) ListByBidder(ctx context.Context, q DBTX, bidderID int64) ([]model.Payment, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE bidder_id = ? ORDER BY id`, bidderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// SumByBidder totals every payment row of the bidder, reversals included.
func (r *PaymentRepo) SumByBidder(ctx context.Context, q DBTX, bidderID int64) (decimal.Decimal, error) {
	return sumAmounts(ctx, q, `SELECT amount FROM payments WHERE bidder_id = ?`, bidderID)
}

// ExistsForIntentTx reports whether a payment was already recorded for
// the provider's intent.
func (r *PaymentRepo) ExistsForIntentTx(ctx context.Context, tx *sql.Tx, provider, intentID string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments WHERE provider = ? AND intent_id = ?`, provider, intentID).Scan(&n)
	return n > 0, err
}

// ReversedTotalTx returns the (positive) amount already reversed against
// a payment.
func (r *PaymentRepo) ReversedTotalTx(ctx context.Context, tx *sql.Tx, paymentID int64) (decimal.Decimal, error) {
	total, err := sumAmounts(ctx, tx, `SELECT amount FROM payments WHERE reverses_payment_id = ?`, paymentID)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Neg(), nil
}

// CountByAuction counts payment rows belonging to the auction's bidders.
func (r *PaymentRepo) CountByAuction(ctx context.Context, q DBTX, auctionID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments p JOIN bidders b ON b.id = p.bidder_id WHERE b.auction_id = ?`, auctionID).Scan(&n)
	return n, err
}
