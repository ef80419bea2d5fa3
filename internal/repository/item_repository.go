package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coastie-uk/convention-auction/internal/model"
)

// ItemRepo provides persistence for auction items, including the dense
// item_number ordering and the sale columns.
type ItemRepo struct {
	db *sql.DB
}

// NewItemRepo returns a new ItemRepo bound to the given database.
func NewItemRepo(db *sql.DB) *ItemRepo { return &ItemRepo{db: db} }


const itemColumns = `i.id, i.auction_id, i.item_number, i.description, i.contributor, i.artist, i.notes, i.photo,
	i.winning_bidder_id, i.hammer_price, i.test_item, i.test_bid, i.created_at, i.mod_date, b.paddle_number`

const itemFrom = ` FROM items i LEFT JOIN bidders b ON b.id = i.winning_bidder_id`

func scanItem(row interface{ Scan(...any) error }) (*model.Item, error) {
	var it model.Item
	var winner sql.NullInt64
	var paddle sql.NullInt64
	if err := row.Scan(&it.ID, &it.AuctionID, &it.ItemNumber, &it.Description, &it.Contributor, &it.Artist,
		&it.Notes, &it.Photo, &winner, &it.HammerPrice, &it.TestItem, &it.TestBid, &it.Date, &it.ModDate, &paddle); err != nil {
		return nil, err
	}
	it.WinningBidderID = int64Ptr(winner)
	if paddle.Valid {
		p := int(paddle.Int64)
		it.Paddle = &p
	}
	return &it, nil
}

func scanItems(rows *sql.Rows) ([]model.Item, error) {
	defer rows.Close()
	out := make([]model.Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

// GetByID loads a single item.
func (r *ItemRepo) GetByID(ctx context.Context, q DBTX, id int64) (*model.Item, error) {
	it, err := scanItem(q.QueryRowContext(ctx, `SELECT `+itemColumns+itemFrom+` WHERE i.id = ?`, id))
	return it, notFound(err)
}

// AuctionIDOf returns the auction an item belongs to.
func (r *ItemRepo) AuctionIDOf(ctx context.Context, id int64) (int64, error) {
	var auctionID int64
	err := r.db.QueryRowContext(ctx, `SELECT auction_id FROM items WHERE id = ?`, id).Scan(&auctionID)
	return auctionID, notFound(err)
}

// ListByAuction returns the auction's items in item_number order.
func (r *ItemRepo) ListByAuction(ctx context.Context, q DBTX, auctionID int64) ([]model.Item, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+itemColumns+itemFrom+` WHERE i.auction_id = ? ORDER BY i.item_number, i.id`, auctionID)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

// LotsByBidder returns the items won by a bidder within one auction.
func (r *ItemRepo) LotsByBidder(ctx context.Context, q DBTX, bidderID, auctionID int64) ([]model.Item, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+itemColumns+itemFrom+`
		WHERE i.winning_bidder_id = ? AND i.auction_id = ? ORDER BY i.item_number`, bidderID, auctionID)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

// MaxNumberTx returns the highest item_number in the auction, or 0.
func (r *ItemRepo) MaxNumberTx(ctx context.Context, q DBTX, auctionID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(item_number), 0) FROM items WHERE auction_id = ?`, auctionID).Scan(&n)
	return n, err
}

// CreateTx appends an item at the end of its auction's numbering and
// populates ID and ItemNumber.
func (r *ItemRepo) CreateTx(ctx context.Context, tx *sql.Tx, it *model.Item) error {
	max, err := r.MaxNumberTx(ctx, tx, it.AuctionID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	it.ItemNumber = max + 1
	it.Date, it.ModDate = now, now
	const q = `INSERT INTO items (auction_id, item_number, description, contributor, artist, notes, photo, test_item, test_bid, created_at, mod_date)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, it.AuctionID, it.ItemNumber, it.Description, it.Contributor, it.Artist,
		it.Notes, it.Photo, it.TestItem, it.TestBid, it.Date, it.ModDate)
	if err != nil {
		return err
	}
	it.ID, err = res.LastInsertId()
	return err
}

// UpdateDetailsTx rewrites the descriptive columns of an item. Sale
// columns and numbering are untouched.
func (r *ItemRepo) UpdateDetailsTx(ctx context.Context, tx *sql.Tx, it *model.Item) error {
	it.ModDate = time.Now().UTC()
	const q = `UPDATE items SET description = ?, contributor = ?, artist = ?, notes = ?, photo = ?, test_item = ?, mod_date = ? WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, it.Description, it.Contributor, it.Artist, it.Notes, it.Photo, it.TestItem, it.ModDate, it.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTx removes an unsold item. A sold item yields ErrConflict.
func (r *ItemRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ? AND hammer_price IS NULL`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, tx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// SetSaleTx records the winner and hammer price. The update only applies
// to an unsold item; if the item is already sold ErrConflict is returned
// and nothing is overwritten.
func (r *ItemRepo) SetSaleTx(ctx context.Context, tx *sql.Tx, itemID, bidderID int64, price decimal.Decimal, testBid bool) error {
	const q = `UPDATE items SET winning_bidder_id = ?, hammer_price = ?, test_bid = ?, mod_date = ? WHERE id = ? AND hammer_price IS NULL`
	res, err := tx.ExecContext(ctx, q, bidderID, price, testBid, time.Now().UTC(), itemID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, tx, itemID); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// ClearSaleTx removes the winner and hammer price from a sold item.
func (r *ItemRepo) ClearSaleTx(ctx context.Context, tx *sql.Tx, itemID int64) error {
	const q = `UPDATE items SET winning_bidder_id = NULL, hammer_price = NULL, test_bid = ?, mod_date = ? WHERE id = ? AND hammer_price IS NOT NULL`
	res, err := tx.ExecContext(ctx, q, false, time.Now().UTC(), itemID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// CountUnsoldTx counts the auction's items without a hammer price.
func (r *ItemRepo) CountUnsoldTx(ctx context.Context, tx *sql.Tx, auctionID int64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE auction_id = ? AND hammer_price IS NULL`, auctionID).Scan(&n)
	return n, err
}

// OrderedIDsTx returns the auction's item IDs ordered by current
// item_number (ties broken by ID) together with those numbers.
func (r *ItemRepo) OrderedIDsTx(ctx context.Context, tx *sql.Tx, auctionID int64) ([]int64, []int, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, item_number FROM items WHERE auction_id = ? ORDER BY item_number, id`, auctionID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	var ids []int64
	var numbers []int
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
		numbers = append(numbers, n)
	}
	return ids, numbers, rows.Err()
}

// AssignNumbersTx gives ids the item numbers 1..N in slice order. Every
// id must belong to auctionID. The write happens in two passes so the
// (auction_id, item_number) uniqueness constraint never sees a transient
// duplicate. It returns the number of items whose number changed; when
// the ordering is already dense nothing is written.
func (r *ItemRepo) AssignNumbersTx(ctx context.Context, tx *sql.Tx, auctionID int64, ids []int64) (int, error) {
	curIDs, curNumbers, err := r.OrderedIDsTx(ctx, tx, auctionID)
	if err != nil {
		return 0, err
	}
	if len(curIDs) != len(ids) {
		return 0, fmt.Errorf("renumber auction %d: %d ids supplied for %d items", auctionID, len(ids), len(curIDs))
	}
	current := make(map[int64]int, len(curIDs))
	for i, id := range curIDs {
		current[id] = curNumbers[i]
	}
	changed := 0
	for i, id := range ids {
		n, ok := current[id]
		if !ok {
			return 0, fmt.Errorf("renumber auction %d: item %d not in auction", auctionID, id)
		}
		if n != i+1 {
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}
	// park every row on a unique negative number first
	if _, err := tx.ExecContext(ctx, `UPDATE items SET item_number = -id WHERE auction_id = ?`, auctionID); err != nil {
		return 0, err
	}
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE items SET item_number = ? WHERE id = ?`, i+1, id); err != nil {
			return 0, err
		}
	}
	return changed, nil
}

// MoveToAuctionTx reassigns an item to another auction with the given
// item number.
func (r *ItemRepo) MoveToAuctionTx(ctx context.Context, tx *sql.Tx, itemID, toAuctionID int64, number int) error {
	res, err := tx.ExecContext(ctx, `UPDATE items SET auction_id = ?, item_number = ?, mod_date = ? WHERE id = ?`,
		toAuctionID, number, time.Now().UTC(), itemID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Totals summarises an auction's catalogue.
type Totals struct {
	ItemCount   int             `json:"item_count"`
	SoldCount   int             `json:"sold_count"`
	HammerTotal decimal.Decimal `json:"hammer_total"`
}

// TotalsFor computes catalogue totals for an auction.
func (r *ItemRepo) TotalsFor(ctx context.Context, auctionID int64) (Totals, error) {
	var t Totals
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(hammer_price) FROM items WHERE auction_id = ?`, auctionID).Scan(&t.ItemCount, &t.SoldCount); err != nil {
		return Totals{}, err
	}
	total, err := sumAmounts(ctx, r.db, `SELECT hammer_price FROM items WHERE auction_id = ? AND hammer_price IS NOT NULL`, auctionID)
	if err != nil {
		return Totals{}, err
	}
	t.HammerTotal = total
	return t, nil
}
