package service

import (
	"context"
	"log/slog"

	"github.com/coastie-uk/convention-auction/internal/model"
	"github.com/coastie-uk/convention-auction/internal/repository"
)

// AuditTrail writes the append-only audit log. Recording never fails the
// caller: validation problems are logged and the entry is still written,
// and storage errors are logged and dropped.
type AuditTrail struct {
	repo *repository.AuditRepo
}

// NewAuditTrail returns an AuditTrail writing through repo.
func NewAuditTrail(repo *repository.AuditRepo) *AuditTrail {
	return &AuditTrail{repo: repo}
}

// Record appends an audit entry. Item, bidder and payment entries without
// auction context in details are enriched with the auction id and short
// name (and, for items, the description).
func (a *AuditTrail) Record(ctx context.Context, user, action string, objType model.ObjectType, objID int64, details map[string]any) {
	if !objType.Known() {
		slog.Warn("audit: unknown object type", slog.String("object_type", string(objType)), slog.String("action", action))
	}
	if details == nil {
		details = map[string]any{}
	}
	a.enrich(ctx, objType, objID, details)

	e := &model.AuditEntry{User: user, Action: action, ObjectType: objType, ObjectID: objID, Details: details}
	if err := a.repo.Insert(ctx, e); err != nil {
		slog.Warn("audit: write failed",
			slog.String("action", action),
			slog.String("object_type", string(objType)),
			slog.Int64("object_id", objID),
			slog.Any("error", err))
	}
}

func (a *AuditTrail) enrich(ctx context.Context, objType model.ObjectType, objID int64, details map[string]any) {
	_, hasID := details["auction_id"]
	_, hasName := details["auction_short_name"]
	if hasID && hasName {
		return
	}
	var (
		c   repository.AuctionContext
		err error
	)
	switch objType {
	case model.ObjectItem:
		c, err = a.repo.ContextForItem(ctx, objID)
	case model.ObjectBidder:
		c, err = a.repo.ContextForBidder(ctx, objID)
	case model.ObjectPayment:
		c, err = a.repo.ContextForPayment(ctx, objID)
	default:
		return
	}
	if err != nil {
		slog.Debug("audit: enrichment skipped", slog.String("object_type", string(objType)), slog.Int64("object_id", objID), slog.Any("error", err))
		return
	}
	if !hasID {
		details["auction_id"] = c.AuctionID
	}
	if !hasName {
		details["auction_short_name"] = c.AuctionShortName
	}
	if _, ok := details["description"]; !ok && objType == model.ObjectItem {
		details["description"] = c.ItemDescription
	}
}

// List returns audit entries matching the filter, newest first.
func (a *AuditTrail) List(ctx context.Context, f repository.AuditFilter) ([]model.AuditEntry, error) {
	if f.ObjectType != "" && !f.ObjectType.Known() {
		return nil, invalid("unknown object type %q", f.ObjectType)
	}
	return a.repo.List(ctx, f)
}
