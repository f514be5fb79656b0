// Package csvfile stores period tables as CSV files under an output root.
//
// Layout: <root>/<subfolder>/<template with {year} substituted>. Every file
// starts with a header row carrying the column order.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"aeso-harvester/internal/domain"
	"aeso-harvester/internal/storage"
)

// Store is a CSV implementation of storage.PeriodStore.
type Store struct {
	root string
	mu   sync.Mutex
}

// Compile-time interface check.
var _ storage.OutputStore = (*Store)(nil)

// New creates a store rooted at dir. The directory is created on first write.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the output root directory.
func (s *Store) Root() string {
	return s.root
}

// PeriodPath returns the absolute file path for (cfg, year).
func (s *Store) PeriodPath(cfg domain.EndpointConfig, year int) string {
	return filepath.Join(s.root, cfg.Subfolder, cfg.FileName(year))
}

// WritePeriod writes or appends table to the period file.
func (s *Store) WritePeriod(_ context.Context, cfg domain.EndpointConfig, year int, table *domain.Table, mode storage.WriteMode) error {
	if table == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.PeriodPath(cfg, year)
	if mode == storage.Append {
		header, err := readHeader(path)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return writeFile(path, table)
		case err != nil:
			return err
		}
		if !sameColumns(header, table.Columns) {
			return fmt.Errorf("%s: %w", path, storage.ErrColumnMismatch)
		}
		return appendRows(path, table.Rows)
	}
	return writeFile(path, table)
}

// ReadPeriod loads the period file for (cfg, year).
func (s *Store) ReadPeriod(_ context.Context, cfg domain.EndpointConfig, year int) (*domain.Table, error) {
	return readFile(s.PeriodPath(cfg, year))
}

// ListPeriods scans the endpoint subfolder for files matching its template.
func (s *Store) ListPeriods(_ context.Context, cfg domain.EndpointConfig) ([]int, error) {
	if !cfg.IsTimeSliced() {
		if _, err := os.Stat(s.PeriodPath(cfg, 0)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, nil
			}
			return nil, err
		}
		return []int{0}, nil
	}

	entries, err := os.ReadDir(filepath.Join(s.root, cfg.Subfolder))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", cfg.ID, err)
	}

	pattern := yearPattern(cfg.FileTemplate)
	var years []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := pattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		y, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		years = append(years, y)
	}
	sort.Ints(years)
	return years, nil
}

// WriteSeries writes the consolidated file named after the series year range.
func (s *Store) WriteSeries(_ context.Context, cfg domain.EndpointConfig, series *domain.ConsolidatedSeries) (string, error) {
	if series == nil || series.Table == nil {
		return "", storage.ErrInvalidInput
	}
	rel := filepath.Join(cfg.Subfolder, cfg.RangeFileName(series.MinYear, series.MaxYear))

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFile(filepath.Join(s.root, rel), series.Table); err != nil {
		return "", err
	}
	return rel, nil
}

// RemoveSeries deletes a consolidated file relative to the root.
func (s *Store) RemoveSeries(_ context.Context, location string) error {
	if location == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.root, location))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Purge removes the endpoint's subfolder.
func (s *Store) Purge(_ context.Context, cfg domain.EndpointConfig) error {
	if cfg.Subfolder == "" {
		return fmt.Errorf("%s: refusing to purge output root: %w", cfg.ID, storage.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.RemoveAll(filepath.Join(s.root, cfg.Subfolder))
}

// WriteTable writes an arbitrary table to a path relative to the root.
func (s *Store) WriteTable(_ context.Context, rel string, table *domain.Table) error {
	if table == nil {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFile(filepath.Join(s.root, rel), table)
}

// ReadTable reads a table from a path relative to the root.
func (s *Store) ReadTable(_ context.Context, rel string) (*domain.Table, error) {
	return readFile(filepath.Join(s.root, rel))
}

func yearPattern(template string) *regexp.Regexp {
	prefix, suffix, _ := strings.Cut(template, domain.YearPlaceholder)
	return regexp.MustCompile("^" + regexp.QuoteMeta(prefix) + `(\d{4})` + regexp.QuoteMeta(suffix) + "$")
}

// writeFile writes to a temporary sibling and renames it over path.
func writeFile(path string, table *domain.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(table.Columns); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(table.Rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write rows: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func appendRows(path string, rows [][]string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("append rows: %w", err)
	}
	return f.Close()
}

func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if err != nil {
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}
	return header, nil
}

func readFile(path string) (*domain.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, storage.ErrNotFound)
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty file: %w", path, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}

	table := domain.NewTable(header...)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	table.Rows = rows
	return table, nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
