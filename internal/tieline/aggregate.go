package tieline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"aeso-harvester/internal/domain"
)

type tsKey struct {
	utc, mpt string
}

// Option adjusts Aggregate.
type Option func(*aggregateOptions)

type aggregateOptions struct {
	regions []string
}

// WithRegions guarantees an import and an export column for each region
// code even when no row mentions it.
func WithRegions(codes ...string) Option {
	return func(o *aggregateOptions) {
		o.regions = append(o.regions, codes...)
	}
}

// Aggregate pivots the export and import detail tables by region, outer
// joins them on the (utc, mpt) timestamp pair and appends the totals.
//
// Output columns: begin_date_utc, begin_date_mpt, import region columns
// (sorted), export region columns (sorted), TOTAL_IMPORTS, TOTAL_EXPORTS.
// Missing cells are 0 and rows are ordered by timestamp.
func Aggregate(exports, imports *domain.Table, opts ...Option) (*domain.Table, error) {
	var o aggregateOptions
	for _, opt := range opts {
		opt(&o)
	}

	expPivot, expCols, err := pivot(exports, Export)
	if err != nil {
		return nil, fmt.Errorf("exports: %w", err)
	}
	impPivot, impCols, err := pivot(imports, Import)
	if err != nil {
		return nil, fmt.Errorf("imports: %w", err)
	}
	for _, r := range o.regions {
		impCols[ImportPrefix+r] = struct{}{}
		expCols[ExportPrefix+r] = struct{}{}
	}

	importColumns := sortedSet(impCols)
	exportColumns := sortedSet(expCols)

	columns := []string{ColUTC, ColMPT}
	columns = append(columns, importColumns...)
	columns = append(columns, exportColumns...)
	columns = append(columns, ColTotalImports, ColTotalExports)
	out := domain.NewTable(columns...)

	keys := make(map[tsKey]struct{}, len(expPivot)+len(impPivot))
	for k := range expPivot {
		keys[k] = struct{}{}
	}
	for k := range impPivot {
		keys[k] = struct{}{}
	}
	ordered := make([]tsKey, 0, len(keys))
	for k := range keys {
		ordered = append(ordered, k)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if c := compareTimestamps(ordered[i].utc, ordered[j].utc); c != 0 {
			return c < 0
		}
		return ordered[i].mpt < ordered[j].mpt
	})

	for _, k := range ordered {
		row := make([]string, 0, len(columns))
		row = append(row, k.utc, k.mpt)

		var totalImports, totalExports float64
		for _, c := range importColumns {
			v := impPivot[k][c]
			totalImports += v
			row = append(row, formatMW(v))
		}
		for _, c := range exportColumns {
			v := expPivot[k][c]
			totalExports += v
			row = append(row, formatMW(v))
		}
		row = append(row, formatMW(totalImports), formatMW(totalExports))
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// pivot sums the direction's total column per (timestamp pair, region).
func pivot(t *domain.Table, dir Direction) (map[tsKey]map[string]float64, map[string]struct{}, error) {
	sums := make(map[tsKey]map[string]float64)
	cols := make(map[string]struct{})
	if t == nil {
		return sums, cols, nil
	}

	idx, err := indexes(t, ColUTC, ColMPT, ColRegion, dir.TotalColumn())
	if err != nil {
		return nil, nil, err
	}

	for i, row := range t.Rows {
		region := row[idx[2]]
		if region == "" {
			return nil, nil, fmt.Errorf("row %d: empty %s", i, ColRegion)
		}
		col := regionColumn(region, dir)

		v, err := parseMW(row[idx[3]])
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: %w", i, err)
		}

		k := tsKey{utc: row[idx[0]], mpt: row[idx[1]]}
		if sums[k] == nil {
			sums[k] = make(map[string]float64)
		}
		sums[k][col] += v
		cols[col] = struct{}{}
	}
	return sums, cols, nil
}

// regionColumn tags a region with its direction prefix unless present.
func regionColumn(region string, dir Direction) string {
	upper := strings.ToUpper(region)
	if strings.HasPrefix(upper, dir.Prefix()) {
		return upper
	}
	return dir.Prefix() + upper
}

func parseMW(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid volume %q", s)
	}
	return v, nil
}

func formatMW(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// compareTimestamps orders parsed timestamps, falling back to string order
// for values that do not parse.
func compareTimestamps(a, b string) int {
	ta, errA := domain.ParseTimestamp(a)
	tb, errB := domain.ParseTimestamp(b)
	if errA == nil && errB == nil {
		return ta.Compare(tb)
	}
	return strings.Compare(a, b)
}
