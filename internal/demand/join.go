// Package demand joins the hourly AIL demand series with the aggregated
// tie-line series for one calendar year.
package demand

import (
	"errors"
	"fmt"
	"time"

	"aeso-harvester/internal/domain"
)

// Join keys.
const (
	DemandLocalColumn  = "begin_datetime_mpt"
	TieLineUTCColumn   = "begin_date_utc"
	TieLineLocalColumn = "begin_date_mpt"
)

// ErrYearNotFound is returned when either series has no rows in the
// requested year.
var ErrYearNotFound = errors.New("year not found")

// YearNotFoundError names the series missing the requested year.
type YearNotFoundError struct {
	Year   int
	Series string
}

func (e *YearNotFoundError) Error() string {
	return fmt.Sprintf("%s series has no rows in %d", e.Series, e.Year)
}

func (e *YearNotFoundError) Unwrap() error {
	return ErrYearNotFound
}

// Join left-joins the demand rows of year with the tie-line rows of the
// same year on local (MPT) time. Every demand row of the year is kept in
// input order. Tie-line columns follow the demand columns with the two
// timestamp keys dropped; hours without tie-line activity are "0".
//
// When a local hour repeats (the autumn DST change) the n-th demand row for
// that hour pairs with the n-th tie-line row for it.
func Join(demand, tieline *domain.Table, year int) (*domain.Table, error) {
	if demand == nil || tieline == nil {
		return nil, fmt.Errorf("join demand %d: nil table", year)
	}

	leftKey, err := demand.MustIndex(DemandLocalColumn)
	if err != nil {
		return nil, fmt.Errorf("demand: %w", err)
	}
	rightKey, err := tieline.MustIndex(TieLineLocalColumn)
	if err != nil {
		return nil, fmt.Errorf("tieline: %w", err)
	}

	// Right-hand columns carried into the output.
	var carried []int
	for i, c := range tieline.Columns {
		if c == TieLineUTCColumn || c == TieLineLocalColumn {
			continue
		}
		if demand.Index(c) >= 0 {
			return nil, fmt.Errorf("tieline column %q already in demand table", c)
		}
		carried = append(carried, i)
	}

	matches := make(map[time.Time][][]string)
	var tielineRows int
	for i, row := range tieline.Rows {
		ts, err := domain.ParseTimestamp(row[rightKey])
		if err != nil {
			return nil, fmt.Errorf("tieline row %d: %w", i, err)
		}
		if ts.Year() != year {
			continue
		}
		matches[ts] = append(matches[ts], row)
		tielineRows++
	}
	if tielineRows == 0 {
		return nil, &YearNotFoundError{Year: year, Series: "tieline"}
	}

	columns := append([]string{}, demand.Columns...)
	for _, i := range carried {
		columns = append(columns, tieline.Columns[i])
	}
	out := domain.NewTable(columns...)

	for i, row := range demand.Rows {
		ts, err := domain.ParseTimestamp(row[leftKey])
		if err != nil {
			return nil, fmt.Errorf("demand row %d: %w", i, err)
		}
		if ts.Year() != year {
			continue
		}

		joined := make([]string, 0, len(columns))
		joined = append(joined, row...)

		var match []string
		if queue := matches[ts]; len(queue) > 0 {
			match, matches[ts] = queue[0], queue[1:]
		}
		for _, j := range carried {
			cell := "0"
			if match != nil && match[j] != "" {
				cell = match[j]
			}
			joined = append(joined, cell)
		}
		out.Rows = append(out.Rows, joined)
	}

	if out.Len() == 0 {
		return nil, &YearNotFoundError{Year: year, Series: "demand"}
	}
	return out, nil
}
