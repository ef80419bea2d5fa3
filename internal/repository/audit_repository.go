package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/coastie-uk/convention-auction/internal/model"
)

// AuditRepo provides append-only persistence for the audit log plus the
// lookups used to enrich entries with auction context.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo returns a new AuditRepo bound to the given database.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// Insert appends an entry and populates its ID.
func (r *AuditRepo) Insert(ctx context.Context, e *model.AuditEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return err
	}
	const q = `INSERT INTO audit_log (username, action, object_type, object_id, details, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, e.User, e.Action, string(e.ObjectType), e.ObjectID, string(raw), e.CreatedAt)
	if err != nil {
		return err
	}
	e.ID, err = res.LastInsertId()
	return err
}

// AuditFilter narrows an audit query. Zero values match everything.
type AuditFilter struct {
	ObjectType model.ObjectType
	ObjectID   int64
	Limit      int
}

// List returns matching entries newest first.
func (r *AuditRepo) List(ctx context.Context, f AuditFilter) ([]model.AuditEntry, error) {
	var where []string
	var args []any
	if f.ObjectType != "" {
		where = append(where, "object_type = ?")
		args = append(args, string(f.ObjectType))
	}
	if f.ObjectID != 0 {
		where = append(where, "object_id = ?")
		args = append(args, f.ObjectID)
	}
	q := `SELECT id, username, action, object_type, object_id, details, created_at FROM audit_log`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	q += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.AuditEntry, 0)
	for rows.Next() {
		var e model.AuditEntry
		var objType, raw string
		if err := rows.Scan(&e.ID, &e.User, &e.Action, &objType, &e.ObjectID, &raw, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ObjectType = model.ObjectType(objType)
		if err := json.Unmarshal([]byte(raw), &e.Details); err != nil {
			e.Details = map[string]any{"raw": raw}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AuctionContext is the enrichment attached to item, bidder and payment
// audit entries.
type AuctionContext struct {
	AuctionID        int64
	AuctionShortName string
	ItemDescription  string
}

// ContextForItem resolves an item's auction and description.
func (r *AuditRepo) ContextForItem(ctx context.Context, itemID int64) (AuctionContext, error) {
	var c AuctionContext
	err := r.db.QueryRowContext(ctx, `SELECT a.id, a.short_name, i.description FROM items i JOIN auctions a ON a.id = i.auction_id WHERE i.id = ?`,
		itemID).Scan(&c.AuctionID, &c.AuctionShortName, &c.ItemDescription)
	return c, notFound(err)
}

// ContextForBidder resolves a bidder's auction.
func (r *AuditRepo) ContextForBidder(ctx context.Context, bidderID int64) (AuctionContext, error) {
	var c AuctionContext
	err := r.db.QueryRowContext(ctx, `SELECT a.id, a.short_name FROM bidders b JOIN auctions a ON a.id = b.auction_id WHERE b.id = ?`,
		bidderID).Scan(&c.AuctionID, &c.AuctionShortName)
	return c, notFound(err)
}

// ContextForPayment resolves a payment's auction through its bidder.
func (r *AuditRepo) ContextForPayment(ctx context.Context, paymentID int64) (AuctionContext, error) {
	var c AuctionContext
	err := r.db.QueryRowContext(ctx, `SELECT a.id, a.short_name FROM payments p JOIN bidders b ON b.id = p.bidder_id JOIN auctions a ON a.id = b.auction_id WHERE p.id = ?`,
		paymentID).Scan(&c.AuctionID, &c.AuctionShortName)
	return c, notFound(err)
}
