package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/coastie-uk/convention-auction/internal/database"
	"github.com/coastie-uk/convention-auction/internal/model"
)

// AuctionRepo provides persistence for auctions and the whole-ledger reset
// performed when the last auction is removed.
type AuctionRepo struct {
	db *sql.DB
}

// NewAuctionRepo returns a new AuctionRepo bound to the given database.
func NewAuctionRepo(db *sql.DB) *AuctionRepo { return &AuctionRepo{db: db} }


const auctionColumns = `id, short_name, full_name, status, admin_can_change_state, logo, created_at`

func scanAuction(row interface{ Scan(...any) error }) (*model.Auction, error) {
	var a model.Auction
	var status string
	if err := row.Scan(&a.ID, &a.ShortName, &a.FullName, &status, &a.AdminCanChangeState, &a.Logo, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Status = model.AuctionStatus(status)
	return &a, nil
}

// Create inserts a new auction and populates its ID. A clashing short
// name yields ErrDuplicate.
func (r *AuctionRepo) Create(ctx context.Context, a *model.Auction) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	const q = `INSERT INTO auctions (short_name, full_name, status, admin_can_change_state, logo, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, a.ShortName, a.FullName, string(a.Status), a.AdminCanChangeState, a.Logo, a.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	a.ID, err = res.LastInsertId()
	return err
}

// GetByID loads a single auction.
func (r *AuctionRepo) GetByID(ctx context.Context, q DBTX, id int64) (*model.Auction, error) {
	a, err := scanAuction(q.QueryRowContext(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE id = ?`, id))
	return a, notFound(err)
}

// GetByShortName loads an auction by its public short name.
func (r *AuctionRepo) GetByShortName(ctx context.Context, name string) (*model.Auction, error) {
	a, err := scanAuction(r.db.QueryRowContext(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE short_name = ?`, name))
	return a, notFound(err)
}

// List returns every auction ordered by ID.
func (r *AuctionRepo) List(ctx context.Context) ([]model.Auction, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+auctionColumns+` FROM auctions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Auction, 0)
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// GetStatus reads the current lifecycle status straight from storage.
func (r *AuctionRepo) GetStatus(ctx context.Context, id int64) (model.AuctionStatus, error) {
	var s string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM auctions WHERE id = ?`, id).Scan(&s)
	if err != nil {
		return "", notFound(err)
	}
	return model.AuctionStatus(s), nil
}

// UpdateStatusTx writes a new status. Callers must invalidate the state
// cache after the transaction commits.
func (r *AuctionRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id int64, status model.AuctionStatus) error {
	res, err := tx.ExecContext(ctx, `UPDATE auctions SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAdminCanChangeState toggles whether admins may change the status.
func (r *AuctionRepo) SetAdminCanChangeState(ctx context.Context, id int64, allowed bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE auctions SET admin_can_change_state = ? WHERE id = ?`, allowed, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ItemCountTx returns how many items the auction holds.
func (r *AuctionRepo) ItemCountTx(ctx context.Context, q DBTX, id int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE auction_id = ?`, id).Scan(&n)
	return n, err
}

// CountTx returns the number of auctions.
func (r *AuctionRepo) CountTx(ctx context.Context, q DBTX) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM auctions`).Scan(&n)
	return n, err
}

// DeleteTx removes an auction together with its bidders and their intents.
// The caller guarantees the auction has no items; payments block deletion
// through the foreign key on bidders.
func (r *AuctionRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM payment_intents WHERE bidder_id IN (SELECT id FROM bidders WHERE auction_id = ?)`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM bidders WHERE auction_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM auctions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetLedgerTx empties every ledger table except the audit log.
func (r *AuctionRepo) ResetLedgerTx(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`DELETE FROM payments WHERE reverses_payment_id IS NOT NULL`,
		`DELETE FROM payments`,
		`DELETE FROM payment_intents`,
		`DELETE FROM items`,
		`DELETE FROM bidders`,
		`DELETE FROM auctions`,
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
