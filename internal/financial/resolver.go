package financial

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	"TdxBridge/internal/logging"
	"TdxBridge/internal/model"
)

// DefaultMaxRows caps the rows returned by one resolution.
const DefaultMaxRows = 1000

// Parser decodes a cached archive.
type Parser interface {
	Parse(dir, filename string) ([]model.FinancialRecord, error)
}

// Query selects report rows. Both fields are optional.
type Query struct {
	ReportDate string
	Symbol     string
}

// Resolution is the outcome of a successful query.
type Resolution struct {
	File       string                  `json:"file"`
	ReportDate string                  `json:"report_date"`
	Records    []model.FinancialRecord `json:"data"`
	Total      int                     `json:"total"`
}

// Resolver answers queries from the newest cached archive holding matching rows.
type Resolver struct {
	parser  Parser
	store   *Store
	maxRows int
	logger  *logging.Logger
}

// NewResolver creates a Resolver. maxRows <= 0 selects DefaultMaxRows.
func NewResolver(parser Parser, store *Store, maxRows int, logger *logging.Logger) *Resolver {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Resolver{parser: parser, store: store, maxRows: maxRows, logger: logger}
}

// Resolve finds rows for q. With a report date only that period's archive is
// consulted; without one, archives are tried newest first until one yields rows.
func (r *Resolver) Resolve(ctx context.Context, q Query) (Resolution, error) {
	files, err := r.store.List()
	if err != nil {
		return Resolution{}, model.Wrap(model.KindNoData, err, "list cached reports")
	}
	if len(files) == 0 {
		return Resolution{}, model.Errorf(model.KindNoData, "no financial report archives cached")
	}

	var date string
	if q.ReportDate != "" {
		date, err = NormalizeReportDate(q.ReportDate)
		if err != nil {
			return Resolution{}, model.Wrap(model.KindInvalidArgument, err, "invalid report_date")
		}
		if !slices.Contains(files, ArchiveName(date)) {
			return Resolution{}, model.Errorf(model.KindDateNotFound, "no financial report for %s", date)
		}
	}
	symbol := strings.TrimSpace(q.Symbol)

	for file := range candidates(files, date) {
		if err := ctx.Err(); err != nil {
			return Resolution{}, err
		}
		records, err := r.parser.Parse(r.store.Dir(), file)
		if err != nil {
			r.logger.Warn().Err(err).Str("file", file).Msg("skipping unreadable report archive")
			continue
		}
		if len(records) == 0 {
			r.logger.Debug().Str("file", file).Msg("report archive is empty")
			continue
		}
		if symbol != "" {
			records = filterSymbol(records, symbol)
			if len(records) == 0 {
				r.logger.Debug().Str("file", file).Str("symbol", symbol).Msg("symbol absent from report archive")
				continue
			}
		}
		if date != "" {
			records = filterDate(records, date)
			if len(records) == 0 {
				continue
			}
		}

		period, _ := ReportDateOf(file)
		res := Resolution{File: file, ReportDate: period, Total: len(records), Records: records}
		if len(res.Records) > r.maxRows {
			res.Records = res.Records[:r.maxRows]
		}
		return res, nil
	}

	if symbol != "" {
		return Resolution{}, model.Errorf(model.KindAllEmpty, "no financial data found for symbol %s", symbol)
	}
	return Resolution{}, model.Errorf(model.KindAllEmpty, "all cached report archives are empty")
}

// candidates yields the archives to try: the requested period only, or all newest first.
func candidates(files []string, date string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if date != "" {
			yield(ArchiveName(date))
			return
		}
		for _, f := range files {
			if !yield(f) {
				return
			}
		}
	}
}

func filterSymbol(records []model.FinancialRecord, symbol string) []model.FinancialRecord {
	var out []model.FinancialRecord
	for _, rec := range records {
		if rec.MatchesSymbol(symbol) {
			out = append(out, rec)
		}
	}
	return out
}

// filterDate keeps rows whose report_date (or date) column equals date.
// Rows without either column are kept.
func filterDate(records []model.FinancialRecord, date string) []model.FinancialRecord {
	var out []model.FinancialRecord
	for _, rec := range records {
		v, ok := rec["report_date"]
		if !ok {
			v, ok = rec["date"]
		}
		if !ok || strings.ReplaceAll(fmt.Sprint(v), "-", "") == date {
			out = append(out, rec)
		}
	}
	return out
}
