package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/coastie-uk/convention-auction/internal/database"
	"github.com/coastie-uk/convention-auction/internal/model"
)

// BidderRepo provides persistence for bidders. Bidders are scoped to one
// auction: (auction_id, paddle_number) is unique.
type BidderRepo struct {
	db *sql.DB
}

// NewBidderRepo returns a new BidderRepo bound to the given database.
func NewBidderRepo(db *sql.DB) *BidderRepo { return &BidderRepo{db: db} }

const bidderColumns = `id, auction_id, paddle_number, created_at`

func scanBidder(row interface{ Scan(...any) error }) (*model.Bidder, error) {
	var b model.Bidder
	if err := row.Scan(&b.ID, &b.AuctionID, &b.PaddleNumber, &b.CreatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetByID loads a single bidder.
func (r *BidderRepo) GetByID(ctx context.Context, q DBTX, id int64) (*model.Bidder, error) {
	b, err := scanBidder(q.QueryRowContext(ctx, `SELECT `+bidderColumns+` FROM bidders WHERE id = ?`, id))
	return b, notFound(err)
}

// GetByPaddle finds the bidder holding a paddle in an auction.
func (r *BidderRepo) GetByPaddle(ctx context.Context, q DBTX, auctionID int64, paddle int) (*model.Bidder, error) {
	b, err := scanBidder(q.QueryRowContext(ctx,
		`SELECT `+bidderColumns+` FROM bidders WHERE auction_id = ? AND paddle_number = ?`, auctionID, paddle))
	return b, notFound(err)
}

// ListByAuction returns the auction's bidders ordered by paddle number.
func (r *BidderRepo) ListByAuction(ctx context.Context, auctionID int64) ([]model.Bidder, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+bidderColumns+` FROM bidders WHERE auction_id = ? ORDER BY paddle_number`, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Bidder, 0)
	for rows.Next() {
		b, err := scanBidder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// GetOrCreateTx returns the bidder for (auctionID, paddle), registering
// it first if needed.
func (r *BidderRepo) GetOrCreateTx(ctx context.Context, tx *sql.Tx, auctionID int64, paddle int) (*model.Bidder, bool, error) {
	b, err := r.GetByPaddle(ctx, tx, auctionID, paddle)
	if err == nil {
		return b, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `INSERT INTO bidders (auction_id, paddle_number, created_at) VALUES (?, ?, ?)`, auctionID, paddle, now)
	if err != nil {
		if database.IsUniqueViolation(err) {
			b, err := r.GetByPaddle(ctx, tx, auctionID, paddle)
			return b, false, err
		}
		return nil, false, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, err
	}
	return &model.Bidder{ID: id, AuctionID: auctionID, PaddleNumber: paddle, CreatedAt: now}, true, nil
}
