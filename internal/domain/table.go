package domain

import (
	"fmt"
	"strings"
	"time"
)

// Table is a rectangular table of canonical string cells.
// Every row has exactly len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// NewTable creates an empty table with the given columns.
func NewTable(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of a column, or -1.
func (t *Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// MustIndex returns the position of a column or an error naming it.
func (t *Table) MustIndex(column string) (int, error) {
	i := t.Index(column)
	if i < 0 {
		return -1, fmt.Errorf("column %q not in table [%s]", column, strings.Join(t.Columns, ","))
	}
	return i, nil
}

// Append adds a row. The row length must match the column count.
func (t *Table) Append(row []string) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Column returns all values of one column.
func (t *Table) Column(column string) ([]string, error) {
	i, err := t.MustIndex(column)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out, nil
}

// SameColumns reports whether two tables share the exact column order.
func (t *Table) SameColumns(other *Table) bool {
	if len(t.Columns) != len(other.Columns) {
		return false
	}
	for i := range t.Columns {
		if t.Columns[i] != other.Columns[i] {
			return false
		}
	}
	return true
}

// Timestamp layouts emitted by the AESO API and by this module's writers.
var timestampLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	DateLayout,
}

// ParseTimestamp parses a report timestamp. Local (MPT) timestamps are read as
// wall-clock values; no zone conversion is applied.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// YearTable is one calendar year of a single endpoint's output.
type YearTable struct {
	Year  int
	Table *Table
}
