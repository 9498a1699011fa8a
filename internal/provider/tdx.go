package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/injoyai/tdx"
	"github.com/injoyai/tdx/extend"
	"github.com/injoyai/tdx/protocol"

	"TdxBridge/internal/logging"
	"TdxBridge/internal/model"
)

// ExchangeCode prefixes a bare six digit symbol with its exchange marker.
// Symbols that already carry a prefix are lower-cased and returned as is.
func ExchangeCode(symbol string) string {
	s := strings.ToLower(strings.TrimSpace(symbol))
	if len(s) != 6 {
		return s
	}
	switch s[0] {
	case '6', '9', '5':
		return "sh" + s
	case '4', '8':
		return "bj" + s
	default:
		return "sz" + s
	}
}

// MarketLocation is the exchange time zone bar dates are expressed in.
var MarketLocation = loadMarketLocation()

func loadMarketLocation() *time.Location {
	if loc, err := time.LoadLocation("Asia/Shanghai"); err == nil {
		return loc
	}
	return time.FixedZone("CST", 8*60*60)
}

// TDXBars reads daily candlesticks from TDX quote servers. Unadjusted bars
// come from the quote protocol, adjusted ones from the THS extension.
type TDXBars struct {
	mu     sync.Mutex
	client *tdx.Client
	loc    *time.Location
	logger *logging.Logger
}

// NewTDXBars creates a bar source. The quote connection is dialed lazily.
func NewTDXBars(logger *logging.Logger) *TDXBars {
	return &TDXBars{loc: MarketLocation, logger: logger}
}

func (b *TDXBars) conn() (*tdx.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		return b.client, nil
	}
	c, err := tdx.DialDefault(tdx.WithDebug(false))
	if err != nil {
		return nil, fmt.Errorf("dial tdx: %w", err)
	}
	b.logger.Info().Msg("connected to tdx quote server")
	b.client = c
	return c, nil
}

// drop discards a connection that returned an error so the next call redials.
func (b *TDXBars) drop(c *tdx.Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client == c {
		b.client.Close()
		b.client = nil
	}
}

// Daily returns the full daily series of symbol, oldest first.
func (b *TDXBars) Daily(ctx context.Context, symbol string, adjust model.Adjust) ([]model.OHLCV, error) {
	code := ExchangeCode(symbol)
	type result struct {
		bars []model.OHLCV
		err  error
	}
	done := make(chan result, 1)
	go func() {
		bars, err := b.fetch(code, adjust)
		done <- result{bars, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.bars, r.err
	}
}

func (b *TDXBars) fetch(code string, adjust model.Adjust) ([]model.OHLCV, error) {
	if adjust == model.AdjustForward || adjust == model.AdjustBackward {
		return thsDaily(code, adjust, b.loc)
	}

	c, err := b.conn()
	if err != nil {
		return nil, err
	}
	resp, err := c.GetKlineDayAll(code)
	if err != nil {
		b.drop(c)
		return nil, fmt.Errorf("kline %s: %w", code, err)
	}
	bars := make([]model.OHLCV, 0, len(resp.List))
	for _, k := range resp.List {
		bars = append(bars, fromKline(k, b.loc))
	}
	return bars, nil
}

func thsDaily(code string, adjust model.Adjust, loc *time.Location) ([]model.OHLCV, error) {
	mode := extend.THS_QFQ
	if adjust == model.AdjustBackward {
		mode = extend.THS_HFQ
	}
	klines, err := extend.GetTHSDayKline(code, mode)
	if err != nil {
		return nil, fmt.Errorf("ths kline %s: %w", code, err)
	}
	bars := make([]model.OHLCV, 0, len(klines))
	for _, k := range klines {
		bars = append(bars, fromKline(&protocol.Kline{
			Time:   time.Unix(k.Date, 0),
			Open:   k.Open,
			High:   k.High,
			Low:    k.Low,
			Close:  k.Close,
			Volume: k.Volume,
			Amount: k.Amount,
		}, loc))
	}
	return bars, nil
}

// fromKline maps a quote kline to a bar whose time is in loc, so its
// calendar date does not depend on the host time zone.
func fromKline(k *protocol.Kline, loc *time.Location) model.OHLCV {
	return model.OHLCV{
		Time:   k.Time.In(loc),
		Open:   k.Open.Float64(),
		High:   k.High.Float64(),
		Low:    k.Low.Float64(),
		Close:  k.Close.Float64(),
		Volume: float64(k.Volume),
		Amount: k.Amount.Float64(),
	}
}

// Close closes the quote connection if one is open.
func (b *TDXBars) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		b.client.Close()
		b.client = nil
	}
	return nil
}

// TDX is the production provider: report archives from the finance file
// server, candlesticks from the quote servers behind a TTL cache.
type TDX struct {
	remote *Remote
	bars   *TDXBars
	cache  *BarCache
}

// CacheOptions configures the daily bar cache.
type CacheOptions struct {
	TTL        time.Duration
	MaxEntries int
}

// NewTDX assembles the production provider.
func NewTDX(opts RemoteOptions, cache CacheOptions, logger *logging.Logger) *TDX {
	bars := NewTDXBars(logger.Component("tdx"))
	return &TDX{
		remote: NewRemote(opts, logger.Component("remote")),
		bars:   bars,
		cache:  NewBarCache(bars, cache.TTL, cache.MaxEntries, logger.Component("bar_cache")),
	}
}

func (t *TDX) Name() string { return "tdx" }

func (t *TDX) ListRemoteFiles(ctx context.Context) ([]model.RemoteFile, error) {
	return t.remote.ListRemoteFiles(ctx)
}

func (t *TDX) Fetch(ctx context.Context, dir, filename string) error {
	return t.remote.Fetch(ctx, dir, filename)
}

func (t *TDX) Parse(dir, filename string) ([]model.FinancialRecord, error) {
	return parseArchive(dir, filename)
}

func (t *TDX) Daily(ctx context.Context, symbol string, adjust model.Adjust) ([]model.OHLCV, error) {
	return t.cache.Daily(ctx, symbol, adjust)
}

func (t *TDX) Refresh(ctx context.Context) error {
	return t.cache.Refresh(ctx)
}

// Close releases network resources.
func (t *TDX) Close() error {
	t.bars.Close()
	return t.remote.Close()
}
