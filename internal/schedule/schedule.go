// Package schedule plans the fetch windows for one endpoint.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"aeso-harvester/internal/domain"
)

// ErrInvalidRange is returned when the range end precedes its start.
var ErrInvalidRange = errors.New("invalid date range")

// Plan returns the ordered fetch windows covering [rangeStart, rangeEnd].
// Dates are truncated to calendar days in UTC.
//
//   - list: a single window spanning the whole range.
//   - annual: one window per calendar year; the first and last windows are
//     clipped to the range.
//   - daily: every annual window subdivided into single days.
func Plan(rangeStart, rangeEnd time.Time, g domain.Granularity) ([]domain.FetchWindow, error) {
	start := Day(rangeStart)
	end := Day(rangeEnd)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s before start %s", ErrInvalidRange,
			end.Format(domain.DateLayout), start.Format(domain.DateLayout))
	}

	switch g {
	case domain.GranularityList:
		return []domain.FetchWindow{{Start: start, End: end, Seq: 0, Year: start.Year()}}, nil
	case domain.GranularityAnnual:
		return annual(start, end), nil
	case domain.GranularityDaily:
		return daily(annual(start, end)), nil
	default:
		return nil, fmt.Errorf("unsupported granularity %q", g)
	}
}

// Years returns the calendar years touched by [rangeStart, rangeEnd] in order.
func Years(rangeStart, rangeEnd time.Time) []int {
	from, to := rangeStart.Year(), rangeEnd.Year()
	if to < from {
		return nil
	}
	years := make([]int, 0, to-from+1)
	for y := from; y <= to; y++ {
		years = append(years, y)
	}
	return years
}

func annual(start, end time.Time) []domain.FetchWindow {
	var windows []domain.FetchWindow
	for year := start.Year(); year <= end.Year(); year++ {
		ws := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		we := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
		if ws.Before(start) {
			ws = start
		}
		if we.After(end) {
			we = end
		}
		windows = append(windows, domain.FetchWindow{Start: ws, End: we, Seq: len(windows), Year: year})
	}
	return windows
}

func daily(years []domain.FetchWindow) []domain.FetchWindow {
	var windows []domain.FetchWindow
	for _, y := range years {
		for d := y.Start; !d.After(y.End); d = d.AddDate(0, 0, 1) {
			windows = append(windows, domain.FetchWindow{Start: d, End: d, Seq: len(windows), Year: y.Year})
		}
	}
	return windows
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsLeapYear reports whether year has 366 days.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInYear returns 365 or 366.
func DaysInYear(year int) int {
	if IsLeapYear(year) {
		return 366
	}
	return 365
}

// HoursInYear returns the expected number of hourly periods in a calendar year.
func HoursInYear(year int) int {
	return DaysInYear(year) * 24
}

// EndsMidYear reports whether t falls before December 31 of its year.
func EndsMidYear(t time.Time) bool {
	return t.Month() != time.December || t.Day() != 31
}
