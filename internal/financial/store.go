// Package financial keeps the local cache of report archives in step with
// the finance file server and resolves queries against it.
package financial

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var archivePattern = regexp.MustCompile(`^gpcw(\d{8})\.zip$`)

// ArchiveName returns the cache filename for a YYYYMMDD report period.
func ArchiveName(reportDate string) string {
	return "gpcw" + reportDate + ".zip"
}

// ReportDateOf extracts the report period from an archive filename.
func ReportDateOf(filename string) (string, bool) {
	m := archivePattern.FindStringSubmatch(filename)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// NormalizeReportDate accepts YYYYMMDD or YYYY-MM-DD and returns YYYYMMDD.
func NormalizeReportDate(s string) (string, error) {
	d := strings.ReplaceAll(strings.TrimSpace(s), "-", "")
	if len(d) != 8 {
		return "", fmt.Errorf("report date %q must be YYYYMMDD", s)
	}
	for _, c := range d {
		if c < '0' || c > '9' {
			return "", fmt.Errorf("report date %q must be YYYYMMDD", s)
		}
	}
	return d, nil
}

// Store is the directory of downloaded report archives.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

// Ensure creates the cache directory if absent.
func (s *Store) Ensure() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	return nil
}

// Has reports whether filename is already cached.
func (s *Store) Has(filename string) bool {
	info, err := os.Stat(filepath.Join(s.dir, filepath.Base(filename)))
	return err == nil && info.Mode().IsRegular()
}

// List returns cached archive filenames, newest report period first.
// A missing directory yields an empty list.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && archivePattern.MatchString(e.Name()) {
			files = append(files, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	return files, nil
}

// Periods returns the cached report periods, newest first.
func (s *Store) Periods() ([]string, error) {
	files, err := s.List()
	if err != nil {
		return nil, err
	}
	periods := make([]string, 0, len(files))
	for _, f := range files {
		d, _ := ReportDateOf(f)
		periods = append(periods, d)
	}
	return periods, nil
}
