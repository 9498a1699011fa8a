package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TdxBridge/internal/logging"
	"TdxBridge/internal/model"
)

// countingSource records calls and serves bars from a map keyed by exchange code.
type countingSource struct {
	bars  map[string][]model.OHLCV
	err   error
	calls int
}

func (s *countingSource) Daily(_ context.Context, symbol string, _ model.Adjust) ([]model.OHLCV, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.bars[symbol], nil
}

func TestExchangeCode(t *testing.T) {
	tests := map[string]string{
		"600000":    "sh600000",
		"000001":    "sz000001",
		"300750":    "sz300750",
		"830799":    "bj830799",
		"SH600000":  "sh600000",
		" sz000001": "sz000001",
	}
	for in, want := range tests {
		assert.Equal(t, want, ExchangeCode(in), in)
	}
}

func TestBarCacheServesWithinTTL(t *testing.T) {
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	src := &countingSource{bars: map[string][]model.OHLCV{"sz000001": GenerateBars(10, 5, end)}}
	cache := NewBarCache(src, time.Hour, 0, logging.NewSilent())
	now := end
	cache.now = func() time.Time { return now }

	bars, err := cache.Daily(context.Background(), "000001", model.AdjustForward)
	require.NoError(t, err)
	assert.Len(t, bars, 5)

	_, err = cache.Daily(context.Background(), "sz000001", model.AdjustForward)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls, "bare and prefixed symbols share an entry")

	_, err = cache.Daily(context.Background(), "000001", model.AdjustBackward)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls, "adjust mode is part of the key")

	now = now.Add(2 * time.Hour)
	_, err = cache.Daily(context.Background(), "000001", model.AdjustForward)
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls, "expired entry reloads")
}

func TestBarCacheDoesNotStoreEmptySeries(t *testing.T) {
	src := &countingSource{bars: map[string][]model.OHLCV{}}
	cache := NewBarCache(src, time.Hour, 0, logging.NewSilent())

	bars, err := cache.Daily(context.Background(), "999999", model.AdjustNone)
	require.NoError(t, err)
	assert.Empty(t, bars)
	assert.Zero(t, cache.Len())
}

func TestBarCacheRefresh(t *testing.T) {
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	src := &countingSource{bars: map[string][]model.OHLCV{
		"sz000001": GenerateBars(10, 3, end),
		"sh600000": GenerateBars(8, 3, end),
	}}
	cache := NewBarCache(src, 0, 0, logging.NewSilent())

	for _, sym := range []string{"000001", "600000"} {
		_, err := cache.Daily(context.Background(), sym, model.AdjustForward)
		require.NoError(t, err)
	}
	require.Equal(t, 2, cache.Len())

	src.bars["sz000001"] = GenerateBars(10, 4, end)
	require.NoError(t, cache.Refresh(context.Background()))
	assert.Equal(t, 4, src.calls)

	bars, err := cache.Daily(context.Background(), "000001", model.AdjustForward)
	require.NoError(t, err)
	assert.Len(t, bars, 4)
	assert.Equal(t, 4, src.calls, "zero TTL serves from cache until refreshed")
}

func TestBarCacheRefreshKeepsStaleOnError(t *testing.T) {
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	src := &countingSource{bars: map[string][]model.OHLCV{"sz000001": GenerateBars(10, 3, end)}}
	cache := NewBarCache(src, 0, 0, logging.NewSilent())
	_, err := cache.Daily(context.Background(), "000001", model.AdjustForward)
	require.NoError(t, err)

	src.err = errors.New("quote server down")
	err = cache.Refresh(context.Background())
	assert.ErrorContains(t, err, "quote server down")

	bars, err := cache.Daily(context.Background(), "000001", model.AdjustForward)
	require.NoError(t, err)
	assert.Len(t, bars, 3)
}

func TestBarCacheEvictsLeastRecentlyUsed(t *testing.T) {
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	src := &countingSource{bars: map[string][]model.OHLCV{
		"sz000001": GenerateBars(10, 3, end),
		"sh600000": GenerateBars(8, 3, end),
		"sz300750": GenerateBars(20, 3, end),
	}}
	cache := NewBarCache(src, 0, 2, logging.NewSilent())
	now := end
	cache.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	ctx := context.Background()

	for _, sym := range []string{"000001", "600000", "000001", "300750"} {
		_, err := cache.Daily(ctx, sym, model.AdjustForward)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cache.Len())
	assert.Equal(t, 3, src.calls)

	// 000001 was used after 600000, so 600000 is the one that went.
	_, err := cache.Daily(ctx, "000001", model.AdjustForward)
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls)
	_, err = cache.Daily(ctx, "600000", model.AdjustForward)
	require.NoError(t, err)
	assert.Equal(t, 4, src.calls)

	require.NoError(t, cache.Refresh(ctx))
	assert.Equal(t, 6, src.calls, "refresh reloads only the capped set")
	assert.Equal(t, 2, cache.Len())
}
