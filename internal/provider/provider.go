// Package provider adapts the TDX data sources behind small interfaces:
// the finance file server for report archives and the quote servers for
// daily candlesticks.
package provider

import (
	"context"

	"TdxBridge/internal/model"
)

// ReportSource lists, downloads and parses financial report archives.
type ReportSource interface {
	// ListRemoteFiles returns every archive the remote server offers.
	ListRemoteFiles(ctx context.Context) ([]model.RemoteFile, error)
	// Fetch downloads filename into dir. The file appears atomically.
	Fetch(ctx context.Context, dir, filename string) error
	// Parse decodes a downloaded archive into rows.
	Parse(dir, filename string) ([]model.FinancialRecord, error)
}

// BarSource returns the full daily series of a symbol.
type BarSource interface {
	Daily(ctx context.Context, symbol string, adjust model.Adjust) ([]model.OHLCV, error)
}

// Provider is everything the application needs from a data backend.
type Provider interface {
	ReportSource
	BarSource
	// Refresh re-warms any cached candlestick series.
	Refresh(ctx context.Context) error
	Name() string
}
