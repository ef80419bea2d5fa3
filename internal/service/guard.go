package service

import (
	"context"
	"errors"
	"strings"

	"github.com/coastie-uk/convention-auction/internal/cache"
	"github.com/coastie-uk/convention-auction/internal/model"
	"github.com/coastie-uk/convention-auction/internal/repository"
)

// Ref identifies the auction a request targets. Precedence is AuctionID,
// then ItemID, then PublicID (the auction short name).
type Ref struct {
	AuctionID int64
	ItemID    int64
	PublicID  string
}

// AuctionStateGuard resolves auctions and gates operations on their
// lifecycle status. Status reads go through a short-lived cache; every
// status write in this package calls Invalidate after commit.
type AuctionStateGuard struct {
	auctions *repository.AuctionRepo
	items    *repository.ItemRepo
	cache    cache.StateCache
}

// NewAuctionStateGuard returns a guard backed by the given cache.
func NewAuctionStateGuard(auctions *repository.AuctionRepo, items *repository.ItemRepo, c cache.StateCache) *AuctionStateGuard {
	return &AuctionStateGuard{auctions: auctions, items: items, cache: c}
}

// Resolve returns the auction id the reference points at. When both an
// auction id and an item id are given the item must belong to that
// auction. Archived auctions are not reachable through their public id.
func (g *AuctionStateGuard) Resolve(ctx context.Context, ref Ref) (int64, error) {
	switch {
	case ref.AuctionID > 0:
		if _, err := g.Status(ctx, ref.AuctionID); err != nil {
			return 0, err
		}
		if ref.ItemID > 0 {
			owner, err := g.items.AuctionIDOf(ctx, ref.ItemID)
			if err != nil {
				return 0, lookupErr(err, "item", ref.ItemID)
			}
			if owner != ref.AuctionID {
				return 0, conflict("item %d does not belong to auction %d", ref.ItemID, ref.AuctionID)
			}
		}
		return ref.AuctionID, nil
	case ref.ItemID > 0:
		owner, err := g.items.AuctionIDOf(ctx, ref.ItemID)
		if err != nil {
			return 0, lookupErr(err, "item", ref.ItemID)
		}
		return owner, nil
	case strings.TrimSpace(ref.PublicID) != "":
		a, err := g.auctions.GetByShortName(ctx, strings.TrimSpace(ref.PublicID))
		if err != nil {
			return 0, lookupErr(err, "auction", ref.PublicID)
		}
		if a.Status == model.StatusArchived {
			return 0, notFound("auction " + ref.PublicID)
		}
		return a.ID, nil
	}
	return 0, invalid("no auction identifier supplied")
}

// Status returns the auction's status, reading through the cache.
func (g *AuctionStateGuard) Status(ctx context.Context, auctionID int64) (model.AuctionStatus, error) {
	if s, ok := g.cache.Get(ctx, auctionID); ok {
		return s, nil
	}
	s, err := g.auctions.GetStatus(ctx, auctionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", lookupErr(err, "auction", auctionID)
		}
		return "", err
	}
	g.cache.Set(ctx, auctionID, s)
	return s, nil
}

// Authorize succeeds when the auction's status is one of allowed.
func (g *AuctionStateGuard) Authorize(ctx context.Context, auctionID int64, allowed ...model.AuctionStatus) (model.AuctionStatus, error) {
	current, err := g.Status(ctx, auctionID)
	if err != nil {
		return "", err
	}
	for _, s := range allowed {
		if strings.EqualFold(string(s), string(current)) {
			return current, nil
		}
	}
	return current, &StateConflictError{Current: current, Allowed: allowed}
}

// Check resolves ref and authorizes it in one step.
func (g *AuctionStateGuard) Check(ctx context.Context, ref Ref, allowed ...model.AuctionStatus) (int64, error) {
	id, err := g.Resolve(ctx, ref)
	if err != nil {
		return 0, err
	}
	if _, err := g.Authorize(ctx, id, allowed...); err != nil {
		return 0, err
	}
	return id, nil
}

// Invalidate drops the cached status of an auction.
func (g *AuctionStateGuard) Invalidate(ctx context.Context, auctionID int64) {
	g.cache.Invalidate(ctx, auctionID)
}
