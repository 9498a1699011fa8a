package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"TdxBridge/internal/model"
)

// Mock is an in-memory Provider for tests and local development.
// Reports and Bars are keyed by filename and bare symbol.
type Mock struct {
	Remote     []model.RemoteFile
	ListErr    error
	FetchErrs  map[string]error
	Reports    map[string][]model.FinancialRecord
	ParseErrs  map[string]error
	Bars       map[string][]model.OHLCV
	DailyErr   error
	RefreshErr error
	FetchDelay time.Duration

	mu        sync.Mutex
	fetched   []string
	refreshes int
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) ListRemoteFiles(_ context.Context) ([]model.RemoteFile, error) {
	if m.ListErr != nil {
		return nil, model.Wrap(model.KindRemoteList, m.ListErr, "list remote files")
	}
	return m.Remote, nil
}

// Fetch writes a placeholder archive so the cache directory sees the file.
func (m *Mock) Fetch(ctx context.Context, dir, filename string) error {
	if m.FetchDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.FetchDelay):
		}
	}
	m.mu.Lock()
	m.fetched = append(m.fetched, filename)
	m.mu.Unlock()

	if err := m.FetchErrs[filename]; err != nil {
		return model.Wrap(model.KindFetch, err, "fetch %s", filename)
	}
	return os.WriteFile(filepath.Join(dir, filepath.Base(filename)), []byte("mock"), 0o644)
}

func (m *Mock) Parse(_, filename string) ([]model.FinancialRecord, error) {
	if err := m.ParseErrs[filename]; err != nil {
		return nil, model.Wrap(model.KindParse, err, "parse %s", filename)
	}
	return m.Reports[filename], nil
}

func (m *Mock) Daily(_ context.Context, symbol string, _ model.Adjust) ([]model.OHLCV, error) {
	if m.DailyErr != nil {
		return nil, m.DailyErr
	}
	return m.Bars[symbol], nil
}

func (m *Mock) Refresh(_ context.Context) error {
	m.mu.Lock()
	m.refreshes++
	m.mu.Unlock()
	if m.RefreshErr != nil {
		return fmt.Errorf("refresh: %w", m.RefreshErr)
	}
	return nil
}

// Fetched returns the filenames passed to Fetch, in call order.
func (m *Mock) Fetched() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.fetched...)
}

// Refreshes returns how many times Refresh was called.
func (m *Mock) Refreshes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshes
}

// GenerateBars builds count consecutive daily bars ending the day before end.
func GenerateBars(basePrice float64, count int, end time.Time) []model.OHLCV {
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.OHLCV{
			Time:   end.AddDate(0, 0, -(count - i)),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
			Amount: p * 1000000,
		}
	}
	return bars
}
