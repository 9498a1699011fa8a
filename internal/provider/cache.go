package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"TdxBridge/internal/logging"
	"TdxBridge/internal/model"
)

type barKey struct {
	symbol string
	adjust model.Adjust
}

// DefaultBarCacheSize bounds the number of series a BarCache holds.
const DefaultBarCacheSize = 256

type barEntry struct {
	bars    []model.OHLCV
	fetched time.Time
	used    time.Time
}

// BarCache keeps full daily series in memory per (symbol, adjust).
// A zero TTL keeps entries until the next Refresh. Once maxEntries series
// are cached, the least recently used one is evicted.
type BarCache struct {
	src        BarSource
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	logger     *logging.Logger

	mu      sync.RWMutex
	entries map[barKey]barEntry
}

// NewBarCache wraps src with a TTL cache. maxEntries <= 0 uses DefaultBarCacheSize.
func NewBarCache(src BarSource, ttl time.Duration, maxEntries int, logger *logging.Logger) *BarCache {
	if maxEntries <= 0 {
		maxEntries = DefaultBarCacheSize
	}
	return &BarCache{
		src:        src,
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		logger:     logger,
		entries:    make(map[barKey]barEntry),
	}
}

// Daily serves a cached series while fresh, otherwise reloads it from the source.
func (c *BarCache) Daily(ctx context.Context, symbol string, adjust model.Adjust) ([]model.OHLCV, error) {
	key := barKey{ExchangeCode(symbol), adjust}

	c.mu.Lock()
	entry, ok := c.entries[key]
	now := c.now()
	if ok && (c.ttl == 0 || now.Sub(entry.fetched) < c.ttl) {
		entry.used = now
		c.entries[key] = entry
		c.mu.Unlock()
		return entry.bars, nil
	}
	c.mu.Unlock()
	return c.load(ctx, key)
}

func (c *BarCache) load(ctx context.Context, key barKey) ([]model.OHLCV, error) {
	bars, err := c.src.Daily(ctx, key.symbol, key.adjust)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return bars, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	entry, ok := c.entries[key]
	if !ok {
		c.evictLocked()
		entry.used = now
	}
	entry.bars = bars
	entry.fetched = now
	c.entries[key] = entry
	return bars, nil
}

// evictLocked drops least recently used entries until one more fits.
func (c *BarCache) evictLocked() {
	for len(c.entries) >= c.maxEntries {
		var (
			oldest barKey
			at     time.Time
			found  bool
		)
		for k, e := range c.entries {
			if !found || e.used.Before(at) {
				oldest, at, found = k, e.used, true
			}
		}
		delete(c.entries, oldest)
		c.logger.Debug().Str("symbol", oldest.symbol).Str("adjust", string(oldest.adjust)).Msg("bar cache evicted series")
	}
}

// Len returns the number of cached series.
func (c *BarCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Refresh reloads every cached series. A series that fails to reload keeps
// its previous bars; all failures are returned joined.
func (c *BarCache) Refresh(ctx context.Context) error {
	c.mu.RLock()
	keys := make([]barKey, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.mu.RUnlock()

	var errs []error
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := c.load(ctx, k); err != nil {
			errs = append(errs, fmt.Errorf("refresh %s/%s: %w", k.symbol, k.adjust, err))
		}
	}
	c.logger.Info().Int("series", len(keys)).Int("failed", len(errs)).Msg("bar cache refreshed")
	return errors.Join(errs...)
}
