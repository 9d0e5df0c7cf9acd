package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/kjannette/moverbot/internal/logx"
	"github.com/kjannette/moverbot/internal/models"
	"github.com/kjannette/moverbot/internal/snapshot"
)

type PairsFetcher interface {
	FetchValidPairs(ctx context.Context) (map[string]struct{}, error)
}

// PairsCache serves the exchange's tradable pairs, refreshing after ttl.
// A failed refresh falls back to the persisted snapshot, then to the last
// value held in memory.
type PairsCache struct {
	fetcher PairsFetcher
	store   snapshot.Store
	ttl     time.Duration
	log     *zap.Logger

	mu        sync.Mutex
	pairs     map[string]struct{}
	fetchedAt time.Time
}

func NewPairsCache(fetcher PairsFetcher, store snapshot.Store, ttl time.Duration) *PairsCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &PairsCache{
		fetcher: fetcher,
		store:   store,
		ttl:     ttl,
		log:     logx.Named("pairs"),
	}
}

// Seed warms the cache, typically from the persisted snapshot at startup.
func (c *PairsCache) Seed(pairs map[string]struct{}, fetchedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pairs = pairs
	c.fetchedAt = fetchedAt
	c.log.Info("pairs.seeded", zap.Int("count", len(pairs)), zap.Time("fetchedAt", fetchedAt))
}

// SeedFromSnapshot loads the persisted pairs into the cache. ok is false
// when nothing was persisted.
func (c *PairsCache) SeedFromSnapshot(ctx context.Context) (bool, error) {
	pairs, at, ok, err := c.loadSnapshot(ctx)
	if err != nil || !ok {
		return false, err
	}
	c.Seed(pairs, at)
	return true, nil
}

// Get returns the cached pairs while fresh, otherwise refreshes them.
func (c *PairsCache) Get(ctx context.Context, now time.Time) (map[string]struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pairs != nil && now.Sub(c.fetchedAt) < c.ttl {
		return c.pairs, nil
	}

	pairs, err := c.fetcher.FetchValidPairs(ctx)
	if err == nil {
		c.pairs = pairs
		c.fetchedAt = now
		if c.store != nil {
			if err := snapshot.SaveSet(ctx, c.store, snapshot.KeyValidPairs, lo.Keys(pairs), now); err != nil {
				c.log.Error("pairs.save_failed", zap.Error(err))
			}
		}
		c.log.Info("pairs.refreshed", zap.Int("count", len(pairs)))
		return pairs, nil
	}

	c.log.Warn("pairs.refresh_failed", zap.Error(err))

	snap, _, ok, serr := c.loadSnapshot(ctx)
	if serr != nil {
		c.log.Error("pairs.snapshot_load_failed", zap.Error(serr))
	}
	if ok && len(snap) > 0 {
		c.log.Info("pairs.fallback_snapshot", zap.Int("count", len(snap)))
		return snap, nil
	}
	if c.pairs != nil {
		c.log.Info("pairs.fallback_memory", zap.Int("count", len(c.pairs)))
		return c.pairs, nil
	}
	return nil, fmt.Errorf("%w: valid pairs: %w", models.ErrDataUnavailable, err)
}

func (c *PairsCache) loadSnapshot(ctx context.Context) (map[string]struct{}, time.Time, bool, error) {
	if c.store == nil {
		return nil, time.Time{}, false, nil
	}
	items, at, ok, err := snapshot.LoadSet(ctx, c.store, snapshot.KeyValidPairs)
	if err != nil || !ok {
		return nil, time.Time{}, false, err
	}
	pairs := make(map[string]struct{}, len(items))
	for _, p := range items {
		pairs[p] = struct{}{}
	}
	return pairs, at, true, nil
}
