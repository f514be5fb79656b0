package memory

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"

	"aeso-harvester/internal/domain"
	"aeso-harvester/internal/storage"
)

type periodKey struct {
	endpoint string
	year     int
}

// PeriodStore is an in-memory implementation of storage.PeriodStore.
type PeriodStore struct {
	mu      sync.RWMutex
	periods map[periodKey]*domain.Table
	series  map[string]*domain.Table
	tables  map[string]*domain.Table
}

// Compile-time interface check.
var _ storage.OutputStore = (*PeriodStore)(nil)

// NewPeriodStore creates a new in-memory period store.
func NewPeriodStore() *PeriodStore {
	return &PeriodStore{
		periods: make(map[periodKey]*domain.Table),
		series:  make(map[string]*domain.Table),
		tables:  make(map[string]*domain.Table),
	}
}

// WritePeriod stores a copy of table.
func (s *PeriodStore) WritePeriod(_ context.Context, cfg domain.EndpointConfig, year int, table *domain.Table, mode storage.WriteMode) error {
	if table == nil {
		return storage.ErrInvalidInput
	}
	if !cfg.IsTimeSliced() {
		year = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := periodKey{cfg.ID, year}
	existing, ok := s.periods[k]
	if mode == storage.Append && ok {
		if !existing.SameColumns(table) {
			return fmt.Errorf("%s/%d: %w", cfg.ID, year, storage.ErrColumnMismatch)
		}
		existing.Rows = append(existing.Rows, copyRows(table.Rows)...)
		return nil
	}
	s.periods[k] = copyTable(table)
	return nil
}

// ReadPeriod returns a copy of the stored table.
func (s *PeriodStore) ReadPeriod(_ context.Context, cfg domain.EndpointConfig, year int) (*domain.Table, error) {
	if !cfg.IsTimeSliced() {
		year = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.periods[periodKey{cfg.ID, year}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyTable(t), nil
}

// ListPeriods returns stored years in ascending order.
func (s *PeriodStore) ListPeriods(_ context.Context, cfg domain.EndpointConfig) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var years []int
	for k := range s.periods {
		if k.endpoint == cfg.ID {
			years = append(years, k.year)
		}
	}
	sort.Ints(years)
	return years, nil
}

// WriteSeries stores the consolidated table under its range file name.
func (s *PeriodStore) WriteSeries(_ context.Context, cfg domain.EndpointConfig, series *domain.ConsolidatedSeries) (string, error) {
	if series == nil || series.Table == nil {
		return "", storage.ErrInvalidInput
	}
	loc := path.Join(cfg.Subfolder, cfg.RangeFileName(series.MinYear, series.MaxYear))

	s.mu.Lock()
	defer s.mu.Unlock()

	s.series[loc] = copyTable(series.Table)
	return loc, nil
}

// RemoveSeries deletes a stored series.
func (s *PeriodStore) RemoveSeries(_ context.Context, location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.series, location)
	return nil
}

// Series returns a stored series by location.
func (s *PeriodStore) Series(location string) (*domain.Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.series[location]
	if !ok {
		return nil, false
	}
	return copyTable(t), true
}

// SeriesLocations returns all stored series locations, sorted.
func (s *PeriodStore) SeriesLocations() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.series))
	for loc := range s.series {
		out = append(out, loc)
	}
	sort.Strings(out)
	return out
}

// Purge removes every period of the endpoint.
func (s *PeriodStore) Purge(_ context.Context, cfg domain.EndpointConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range s.periods {
		if k.endpoint == cfg.ID {
			delete(s.periods, k)
		}
	}
	return nil
}

// WriteTable stores an arbitrary table by relative path.
func (s *PeriodStore) WriteTable(_ context.Context, rel string, table *domain.Table) error {
	if table == nil {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tables[rel] = copyTable(table)
	return nil
}

// ReadTable returns a table stored with WriteTable, or a series at rel.
func (s *PeriodStore) ReadTable(_ context.Context, rel string) (*domain.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.tables[rel]; ok {
		return copyTable(t), nil
	}
	if t, ok := s.series[rel]; ok {
		return copyTable(t), nil
	}
	return nil, storage.ErrNotFound
}

func copyTable(t *domain.Table) *domain.Table {
	out := domain.NewTable(t.Columns...)
	out.Rows = copyRows(t.Rows)
	return out
}

func copyRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
