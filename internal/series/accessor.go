// Package series serves filtered daily candlestick series.
package series

import (
	"context"
	"strings"
	"time"

	"TdxBridge/internal/logging"
	"TdxBridge/internal/model"
	"TdxBridge/internal/provider"
)

// Query selects a daily series. Empty fields take the accessor defaults.
type Query struct {
	Symbol    string
	Adjust    string
	StartDate string
	EndDate   string
}

// Accessor reads daily bars from a provider and applies date bounds.
type Accessor struct {
	src           provider.BarSource
	defaultAdjust model.Adjust
	window        int
	logger        *logging.Logger
}

// NewAccessor creates an Accessor. Without bounds at most window of the most
// recent bars are returned; window <= 0 returns the full series.
func NewAccessor(src provider.BarSource, defaultAdjust model.Adjust, window int, logger *logging.Logger) *Accessor {
	return &Accessor{src: src, defaultAdjust: defaultAdjust, window: window, logger: logger}
}

// Daily returns the bars of q.Symbol, oldest first, dates as YYYY-MM-DD.
func (a *Accessor) Daily(ctx context.Context, q Query) ([]model.DailyBar, error) {
	symbol := strings.TrimSpace(q.Symbol)
	if symbol == "" {
		return nil, model.Errorf(model.KindInvalidArgument, "symbol is required")
	}
	adjust, err := model.ParseAdjust(q.Adjust, a.defaultAdjust)
	if err != nil {
		return nil, model.Wrap(model.KindInvalidArgument, err, "invalid adjust")
	}
	start, err := parseBound(q.StartDate)
	if err != nil {
		return nil, model.Wrap(model.KindInvalidArgument, err, "invalid start_date")
	}
	end, err := parseBound(q.EndDate)
	if err != nil {
		return nil, model.Wrap(model.KindInvalidArgument, err, "invalid end_date")
	}
	if start != "" && end != "" && start > end {
		return nil, model.Errorf(model.KindInvalidArgument, "start_date %s is after end_date %s", start, end)
	}

	bars, err := a.src.Daily(ctx, symbol, adjust)
	if err != nil {
		a.logger.Warn().Err(err).Str("symbol", symbol).Str("adjust", string(adjust)).Msg("daily series unavailable")
		return nil, model.Wrap(model.KindProvider, err, "load daily series for %s", symbol)
	}
	if len(bars) == 0 {
		return nil, model.Errorf(model.KindSymbolNotFound, "no daily data for symbol %s", symbol)
	}

	out := make([]model.DailyBar, 0, len(bars))
	for _, b := range bars {
		bar := model.NewDailyBar(b)
		if start != "" && bar.Date < start {
			continue
		}
		if end != "" && bar.Date > end {
			continue
		}
		out = append(out, bar)
	}
	if start == "" && end == "" && a.window > 0 && len(out) > a.window {
		out = out[len(out)-a.window:]
	}
	return out, nil
}

// parseBound accepts YYYY-MM-DD or YYYYMMDD and returns YYYY-MM-DD.
func parseBound(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	layout := model.DateLayout
	if !strings.Contains(s, "-") {
		layout = "20060102"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return "", err
	}
	return t.Format(model.DateLayout), nil
}
