// Package cache holds the auction state cache consulted by the state
// guard. Entries live for a short fixed TTL, and every code path that
// writes an auction's status must call Invalidate for that auction.
package cache

import (
	"context"

	"github.com/coastie-uk/convention-auction/internal/model"
)

// StateCache maps auction IDs to their last known lifecycle status.
type StateCache interface {
	// Get returns the cached status and whether it was present and fresh.
	Get(ctx context.Context, auctionID int64) (model.AuctionStatus, bool)
	// Set stores a status for the configured TTL.
	Set(ctx context.Context, auctionID int64, status model.AuctionStatus)
	// Invalidate drops the entry so the next Get misses.
	Invalidate(ctx context.Context, auctionID int64)
}
