package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/coastie-uk/convention-auction/internal/database"
	"github.com/coastie-uk/convention-auction/internal/model"
	"github.com/coastie-uk/convention-auction/internal/queue"
	"github.com/coastie-uk/convention-auction/internal/repository"
)

var shortNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// AuctionAdmin creates, reconfigures and removes auctions.
type AuctionAdmin struct {
	db     *sql.DB
	repos  Repos
	guard  *AuctionStateGuard
	audit  *AuditTrail
	events EventPublisher
}

// NewAuctionAdmin wires an AuctionAdmin.
func NewAuctionAdmin(db *sql.DB, repos Repos, guard *AuctionStateGuard, audit *AuditTrail, events EventPublisher) *AuctionAdmin {
	return &AuctionAdmin{db: db, repos: repos, guard: guard, audit: audit, events: events}
}

// CreateAuction registers a new auction in setup.
func (s *AuctionAdmin) CreateAuction(ctx context.Context, who model.Identity, shortName, fullName, logo string) (*model.Auction, error) {
	shortName = strings.TrimSpace(shortName)
	fullName = strings.TrimSpace(fullName)
	if !shortNameRe.MatchString(shortName) {
		return nil, invalid("short name must be 1-64 letters, digits, '-' or '_'")
	}
	if fullName == "" {
		return nil, invalid("full name is required")
	}
	a := &model.Auction{ShortName: shortName, FullName: fullName, Logo: logo, Status: model.StatusSetup}
	if err := s.repos.Auctions.Create(ctx, a); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, invalid("short name %q is already in use", shortName)
		}
		return nil, err
	}
	s.audit.Record(ctx, who.Username, "create auction", model.ObjectAuction, a.ID, map[string]any{
		"auction_short_name": a.ShortName,
		"full_name":          a.FullName,
	})
	return a, nil
}

// ListAuctions returns every auction.
func (s *AuctionAdmin) ListAuctions(ctx context.Context) ([]model.Auction, error) {
	return s.repos.Auctions.List(ctx)
}

// GetAuction loads one auction.
func (s *AuctionAdmin) GetAuction(ctx context.Context, id int64) (*model.Auction, error) {
	a, err := s.repos.Auctions.GetByID(ctx, s.db, id)
	if err != nil {
		return nil, lookupErr(err, "auction", id)
	}
	return a, nil
}

// UpdateAuctionStatus moves an auction to any lifecycle phase. The
// maintenance role may always do so; admins only while the auction's
// admin_can_change_state flag is set.
func (s *AuctionAdmin) UpdateAuctionStatus(ctx context.Context, who model.Identity, auctionID int64, status string) (*model.Auction, error) {
	next, ok := model.ParseStatus(status)
	if !ok {
		return nil, invalid("unknown status %q", status)
	}
	var prev model.AuctionStatus
	err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		a, err := s.repos.Auctions.GetByID(ctx, tx, auctionID)
		if err != nil {
			return lookupErr(err, "auction", auctionID)
		}
		switch who.Role {
		case model.RoleMaintenance:
		case model.RoleAdmin:
			if !a.AdminCanChangeState {
				return fmt.Errorf("%w: status changes by admin are disabled for this auction", ErrForbidden)
			}
		default:
			return ErrForbidden
		}
		prev = a.Status
		return s.repos.Auctions.UpdateStatusTx(ctx, tx, auctionID, next)
	})
	if err != nil {
		return nil, err
	}
	s.guard.Invalidate(ctx, auctionID)

	slog.Info("auction status changed", slog.Int64("auction_id", auctionID), slog.String("from", string(prev)), slog.String("to", string(next)))
	s.audit.Record(ctx, who.Username, "change status", model.ObjectAuction, auctionID, map[string]any{
		"old_status": string(prev),
		"new_status": string(next),
	})
	emit(ctx, s.events, statusEvent(who, auctionID, next))
	return s.GetAuction(ctx, auctionID)
}

// SetAdminCanChangeState toggles whether admins may change the status of
// the auction. Only the maintenance role may do this.
func (s *AuctionAdmin) SetAdminCanChangeState(ctx context.Context, who model.Identity, auctionID int64, allowed bool) (*model.Auction, error) {
	if who.Role != model.RoleMaintenance {
		return nil, ErrForbidden
	}
	if err := s.repos.Auctions.SetAdminCanChangeState(ctx, auctionID, allowed); err != nil {
		return nil, lookupErr(err, "auction", auctionID)
	}
	s.audit.Record(ctx, who.Username, "set admin state control", model.ObjectAuction, auctionID, map[string]any{"admin_can_change_state": allowed})
	return s.GetAuction(ctx, auctionID)
}

// DeleteAuction removes an auction that holds no items. Removing the last
// auction resets the whole ledger and the id sequences; the audit log is
// kept. It reports whether the reset happened.
func (s *AuctionAdmin) DeleteAuction(ctx context.Context, who model.Identity, auctionID int64) (bool, error) {
	var (
		reset     bool
		shortName string
	)
	err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		a, err := s.repos.Auctions.GetByID(ctx, tx, auctionID)
		if err != nil {
			return lookupErr(err, "auction", auctionID)
		}
		shortName = a.ShortName
		items, err := s.repos.Auctions.ItemCountTx(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if items > 0 {
			return conflict("auction %d still has %d items", auctionID, items)
		}
		total, err := s.repos.Auctions.CountTx(ctx, tx)
		if err != nil {
			return err
		}
		if total == 1 {
			reset = true
			return s.repos.Auctions.ResetLedgerTx(ctx, tx)
		}
		paid, err := s.repos.Payments.CountByAuction(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if paid > 0 {
			return conflict("auction %d has %d payment records", auctionID, paid)
		}
		return s.repos.Auctions.DeleteTx(ctx, tx, auctionID)
	})
	if err != nil {
		return false, err
	}
	s.guard.Invalidate(ctx, auctionID)

	s.audit.Record(ctx, who.Username, "delete auction", model.ObjectAuction, auctionID, map[string]any{"auction_short_name": shortName})
	if reset {
		if err := database.ResetSequences(ctx, s.db); err != nil {
			slog.Warn("reset id sequences failed", slog.Any("error", err))
		}
		s.audit.Record(ctx, who.Username, "reset database", model.ObjectDatabase, 0, map[string]any{"reason": "last auction deleted"})
		slog.Info("ledger reset after last auction deleted", slog.String("by", who.Username))
	}
	ev := queue.NewEvent(queue.EventAuctionDeleted)
	ev.AuctionID, ev.User = auctionID, who.Username
	emit(ctx, s.events, ev)
	return reset, nil
}
