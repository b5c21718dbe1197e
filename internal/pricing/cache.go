// Package pricing maintains the process-wide snapshot of plan prices fetched
// from the billing platform.
package pricing

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"expanse/internal/types"
)

// DefaultTTL is the maximum age at which a cached snapshot is still served
// without triggering a refresh.
const DefaultTTL = 10 * time.Minute

// Fetcher retrieves the current plan->price mapping from the billing
// platform. Implementations are fail-soft: they return an empty map instead
// of an error.
type Fetcher interface {
	FetchPrices(ctx context.Context) map[string]float64
}

// Snapshot is one immutable generation of price data. It is always replaced
// wholesale, never mutated in place, so readers can never observe a torn mix
// of old and new fields.
type Snapshot struct {
	Prices    map[string]float64
	FetchedAt time.Time
}

// Cache serves the most recent Snapshot and refreshes it on staleness.
//
// The snapshot is swapped atomically. Concurrent requests that observe a
// stale snapshot may each trigger an independent upstream fetch; this
// duplicated work is a bounded, rare cost and is tolerated rather than
// coalesced. A hung upstream call blocks only the requests that triggered
// it; readers of a still-fresh snapshot are unaffected.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	clock   types.Clock
	logger  *slog.Logger

	snapshot atomic.Pointer[Snapshot]
}

// NewCache creates a Cache with no initial snapshot. The first Get always
// fetches.
func NewCache(fetcher Fetcher, ttl time.Duration, clock types.Clock, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		fetcher: fetcher,
		ttl:     ttl,
		clock:   clock,
		logger:  logger,
	}
}

// Get returns the current snapshot and whether it was served from cache.
//
// A fresh snapshot (age < TTL) is returned directly. Otherwise the fetcher is
// invoked and its result, even an empty map, becomes the new snapshot for a
// full TTL, which keeps a misconfigured or failing upstream from being
// hammered on every request.
func (c *Cache) Get(ctx context.Context) (Snapshot, bool) {
	now := c.clock.Now()

	if snap := c.snapshot.Load(); snap != nil && now.Sub(snap.FetchedAt) < c.ttl {
		return *snap, true
	}

	prices := c.fetcher.FetchPrices(ctx)
	fresh := &Snapshot{
		Prices:    prices,
		FetchedAt: c.clock.Now(),
	}
	c.snapshot.Store(fresh)

	c.logger.Info("price snapshot refreshed",
		"plans", len(prices),
		"fetched_at", fresh.FetchedAt,
	)
	return *fresh, false
}

// Peek returns the current snapshot without triggering a refresh. The second
// return is false when no fetch has happened yet.
func (c *Cache) Peek() (Snapshot, bool) {
	snap := c.snapshot.Load()
	if snap == nil {
		return Snapshot{}, false
	}
	return *snap, true
}
