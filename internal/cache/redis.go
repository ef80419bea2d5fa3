package cache

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coastie-uk/convention-auction/internal/model"
)

// Redis is a StateCache shared between processes. Redis errors degrade to
// cache misses so that the guard falls back to storage.
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis returns a Redis-backed cache. Keys are "<prefix>:<auction id>".
func NewRedis(rdb *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "auction_state"
	}
	return &Redis{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (r *Redis) key(auctionID int64) string {
	return r.prefix + ":" + strconv.FormatInt(auctionID, 10)
}

// Get implements StateCache.
func (r *Redis) Get(ctx context.Context, auctionID int64) (model.AuctionStatus, bool) {
	v, err := r.rdb.Get(ctx, r.key(auctionID)).Result()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("state cache get failed", slog.Int64("auction_id", auctionID), slog.Any("error", err))
		}
		return "", false
	}
	return model.AuctionStatus(v), true
}

// Set implements StateCache.
func (r *Redis) Set(ctx context.Context, auctionID int64, status model.AuctionStatus) {
	if err := r.rdb.SetEx(ctx, r.key(auctionID), string(status), r.ttl).Err(); err != nil {
		slog.Warn("state cache set failed", slog.Int64("auction_id", auctionID), slog.Any("error", err))
	}
}

// Invalidate implements StateCache.
func (r *Redis) Invalidate(ctx context.Context, auctionID int64) {
	if err := r.rdb.Del(ctx, r.key(auctionID)).Err(); err != nil {
		slog.Error("state cache invalidate failed", slog.Int64("auction_id", auctionID), slog.Any("error", err))
	}
}
