// Package consolidation concatenates an endpoint's yearly tables into one
// longitudinal series, gated by an hourly completeness check.
package consolidation

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"aeso-harvester/internal/domain"
	"aeso-harvester/internal/schedule"
)

// Consolidation errors.
var (
	ErrDuplicateYear  = errors.New("duplicate year")
	ErrIncompleteData = errors.New("incomplete data")
	ErrNoPeriods      = errors.New("no periods to consolidate")
	ErrNotTimeSliced  = errors.New("endpoint has no time column")
)

// IncompleteDataError names the first year that failed the completeness gate.
type IncompleteDataError struct {
	Endpoint string
	Year     int
	Expected int
	Got      int
}

func (e *IncompleteDataError) Error() string {
	return fmt.Sprintf("%s: year %d has %d of %d expected hourly periods", e.Endpoint, e.Year, e.Got, e.Expected)
}

func (e *IncompleteDataError) Unwrap() error { return ErrIncompleteData }

// Consolidate orders tables by year, applies the completeness gate and
// concatenates the rows with a stable sort on the endpoint's time column.
// When allowPartialFinal is set the most recent year is not gated; its
// status is still reported in FinalYearComplete.
func Consolidate(cfg domain.EndpointConfig, tables []domain.YearTable, allowPartialFinal bool) (*domain.ConsolidatedSeries, error) {
	if cfg.TimeColumn == "" {
		return nil, fmt.Errorf("%s: %w", cfg.ID, ErrNotTimeSliced)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("%s: %w", cfg.ID, ErrNoPeriods)
	}

	ordered := make([]domain.YearTable, len(tables))
	copy(ordered, tables)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Year < ordered[j].Year })

	for i := 1; i < len(ordered); i++ {
		if ordered[i].Year == ordered[i-1].Year {
			return nil, fmt.Errorf("%s: %w: %d", cfg.ID, ErrDuplicateYear, ordered[i].Year)
		}
	}

	series := &domain.ConsolidatedSeries{
		Endpoint: cfg.ID,
		MinYear:  ordered[0].Year,
		MaxYear:  ordered[len(ordered)-1].Year,
	}

	last := len(ordered) - 1
	for i, yt := range ordered {
		err := Check(cfg, yt)
		if i == last {
			var incomplete *IncompleteDataError
			if allowPartialFinal && errors.As(err, &incomplete) {
				break
			}
			series.FinalYearComplete = err == nil
		}
		if err != nil {
			return nil, err
		}
	}

	table, err := concat(cfg, ordered)
	if err != nil {
		return nil, err
	}
	series.Table = table
	return series, nil
}

// Check applies the completeness gate to one year.
//
// With HourlyRowsPerPeriod > 0 the row count must equal
// HoursInYear × HourlyRowsPerPeriod. Otherwise the number of distinct hours
// in the time column must equal HoursInYear.
func Check(cfg domain.EndpointConfig, yt domain.YearTable) error {
	expected := schedule.HoursInYear(yt.Year)
	var got int

	if cfg.HourlyRowsPerPeriod > 0 {
		expected *= cfg.HourlyRowsPerPeriod
		got = yt.Table.Len()
	} else {
		hours, err := distinctHours(cfg, yt.Table)
		if err != nil {
			return err
		}
		got = hours
	}

	if got != expected {
		return &IncompleteDataError{Endpoint: cfg.ID, Year: yt.Year, Expected: expected, Got: got}
	}
	return nil
}

func distinctHours(cfg domain.EndpointConfig, t *domain.Table) (int, error) {
	if t.Len() == 0 {
		return 0, nil
	}
	col, err := t.MustIndex(cfg.TimeColumn)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", cfg.ID, err)
	}
	seen := make(map[time.Time]struct{})
	for _, row := range t.Rows {
		ts, err := domain.ParseTimestamp(row[col])
		if err != nil {
			return 0, fmt.Errorf("%s: %w", cfg.ID, err)
		}
		seen[ts.Truncate(time.Hour)] = struct{}{}
	}
	return len(seen), nil
}

// concat joins the yearly tables and stable-sorts rows by the time column.
// Year order is kept for equal timestamps, so identical inputs always give
// identical output.
func concat(cfg domain.EndpointConfig, ordered []domain.YearTable) (*domain.Table, error) {
	first := ordered[0].Table
	out := domain.NewTable(first.Columns...)
	col, err := out.MustIndex(cfg.TimeColumn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.ID, err)
	}

	type keyed struct {
		at  time.Time
		row []string
	}
	var rows []keyed
	for _, yt := range ordered {
		if !yt.Table.SameColumns(first) {
			return nil, fmt.Errorf("%s: year %d column order differs from year %d", cfg.ID, yt.Year, ordered[0].Year)
		}
		for _, row := range yt.Table.Rows {
			ts, err := domain.ParseTimestamp(row[col])
			if err != nil {
				return nil, fmt.Errorf("%s: year %d: %w", cfg.ID, yt.Year, err)
			}
			rows = append(rows, keyed{at: ts, row: row})
		}
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].at.Before(rows[j].at) })

	out.Rows = make([][]string, len(rows))
	for i, r := range rows {
		out.Rows[i] = r.row
	}
	return out, nil
}
