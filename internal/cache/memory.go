package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/coastie-uk/convention-auction/internal/model"
)

type memoryEntry struct {
	status  model.AuctionStatus
	expires time.Time
}

// Memory is an in-process StateCache backed by a bounded LRU.
type Memory struct {
	lru *lru.Cache
	ttl time.Duration

	mu  sync.RWMutex
	now func() time.Time
}

// NewMemory returns a cache holding at most size auctions for ttl each.
func NewMemory(size int, ttl time.Duration) (*Memory, error) {
	if size < 1 {
		size = 1
	}
	l, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Memory{lru: l, ttl: ttl, now: time.Now}, nil
}

// SetClock replaces the time source. Tests use it to step past the TTL.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *Memory) clock() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now()
}

// Get implements StateCache.
func (m *Memory) Get(_ context.Context, auctionID int64) (model.AuctionStatus, bool) {
	v, ok := m.lru.Get(auctionID)
	if !ok {
		return "", false
	}
	e := v.(memoryEntry)
	if !m.clock().Before(e.expires) {
		m.lru.Remove(auctionID)
		return "", false
	}
	return e.status, true
}

// Set implements StateCache.
func (m *Memory) Set(_ context.Context, auctionID int64, status model.AuctionStatus) {
	m.lru.Add(auctionID, memoryEntry{status: status, expires: m.clock().Add(m.ttl)})
}

// Invalidate implements StateCache.
func (m *Memory) Invalidate(_ context.Context, auctionID int64) {
	m.lru.Remove(auctionID)
}
