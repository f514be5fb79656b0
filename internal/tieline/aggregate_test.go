package tieline

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aeso-harvester/internal/domain"
)

func detail(dir Direction, rows ...[3]string) *domain.Table {
	t := domain.NewTable(ColUTC, ColMPT, ColRegion, dir.TotalColumn())
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{"2023-01-01 07:00", "2023-01-01 00:00", r[0], r[1]})
	}
	return t
}

func TestAggregate_EndToEndExample(t *testing.T) {
	exports := detail(Export,
		[3]string{"EXPORT_BC", "0"},
		[3]string{"EXPORT_MT", "34.696"},
		[3]string{"EXPORT_SK", "0"},
	)
	imports := detail(Import,
		[3]string{"IMPORT_BC", "935.0"},
		[3]string{"IMPORT_MT", "0"},
		[3]string{"IMPORT_SK", "0"},
	)

	out, err := Aggregate(exports, imports)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"begin_date_utc", "begin_date_mpt",
		"IMPORT_BC", "IMPORT_MT", "IMPORT_SK",
		"EXPORT_BC", "EXPORT_MT", "EXPORT_SK",
		"TOTAL_IMPORTS", "TOTAL_EXPORTS",
	}, out.Columns)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, []string{
		"2023-01-01 07:00", "2023-01-01 00:00",
		"935", "0", "0",
		"0", "34.696", "0",
		"935", "34.696",
	}, out.Rows[0])
}

func TestAggregate_WithRegionsZeroFills(t *testing.T) {
	exports := detail(Export, [3]string{"EXPORT_MT", "34.696"})
	imports := detail(Import, [3]string{"IMPORT_BC", "935.0"})

	out, err := Aggregate(exports, imports, WithRegions(DefaultRegions...))
	require.NoError(t, err)

	assert.Len(t, out.Columns, 10)
	row := out.Rows[0]
	assert.Equal(t, "0", row[out.Index("IMPORT_MT")])
	assert.Equal(t, "0", row[out.Index("EXPORT_BC")])
	assert.Equal(t, "935", row[out.Index(ColTotalImports)])
	assert.Equal(t, "34.696", row[out.Index(ColTotalExports)])
}

func TestAggregate_OuterJoinAndOrdering(t *testing.T) {
	exports := domain.NewTable(ColUTC, ColMPT, ColRegion, ColTotalExports)
	exports.Rows = [][]string{
		{"2023-01-01 09:00", "2023-01-01 02:00", "EXPORT_BC", "10"},
		{"2023-01-01 07:00", "2023-01-01 00:00", "EXPORT_BC", "5"},
		{"2023-01-01 07:00", "2023-01-01 00:00", "EXPORT_BC", "2.5"},
	}
	imports := domain.NewTable(ColUTC, ColMPT, ColRegion, ColTotalImports)
	imports.Rows = [][]string{
		{"2023-01-01 08:00", "2023-01-01 01:00", "MT", "7"},
	}

	out, err := Aggregate(exports, imports)
	require.NoError(t, err)

	assert.Equal(t, []string{ColUTC, ColMPT, "IMPORT_MT", "EXPORT_BC", ColTotalImports, ColTotalExports}, out.Columns)
	assert.Equal(t, [][]string{
		{"2023-01-01 07:00", "2023-01-01 00:00", "0", "7.5", "0", "7.5"},
		{"2023-01-01 08:00", "2023-01-01 01:00", "7", "0", "7", "0"},
		{"2023-01-01 09:00", "2023-01-01 02:00", "0", "10", "0", "10"},
	}, out.Rows)
}

func TestAggregate_TotalsInvariant(t *testing.T) {
	exports := domain.NewTable(ColUTC, ColMPT, ColRegion, ColTotalExports)
	imports := domain.NewTable(ColUTC, ColMPT, ColRegion, ColTotalImports)
	regions := []string{"BC", "MT", "SK"}
	for h := 0; h < 24; h++ {
		utc := "2023-03-01 " + pad(h) + ":00"
		for i, r := range regions {
			exports.Rows = append(exports.Rows, []string{utc, utc, "EXPORT_" + r, strconv.Itoa(h * (i + 1))})
			if h%2 == 0 {
				imports.Rows = append(imports.Rows, []string{utc, utc, r, strconv.FormatFloat(float64(h)+0.25*float64(i), 'f', -1, 64)})
			}
		}
	}

	out, err := Aggregate(exports, imports)
	require.NoError(t, err)
	require.Equal(t, 24, out.Len())

	for _, row := range out.Rows {
		var imp, exp float64
		for i, c := range out.Columns {
			v, err := strconv.ParseFloat(row[i], 64)
			if i >= 2 {
				require.NoError(t, err, "cell %s must be numeric", c)
			}
			switch {
			case len(c) > 7 && c[:7] == ImportPrefix:
				imp += v
			case len(c) > 7 && c[:7] == ExportPrefix:
				exp += v
			}
		}
		assert.Equal(t, formatMW(imp), row[out.Index(ColTotalImports)])
		assert.Equal(t, formatMW(exp), row[out.Index(ColTotalExports)])
	}
}

func TestAggregate_Errors(t *testing.T) {
	bad := domain.NewTable(ColUTC, ColMPT, ColRegion, ColTotalExports)
	bad.Rows = [][]string{{"2023-01-01 07:00", "2023-01-01 00:00", "EXPORT_BC", "abc"}}
	_, err := Aggregate(bad, nil)
	assert.Error(t, err)

	missing := domain.NewTable(ColUTC, ColMPT, ColTotalExports)
	_, err = Aggregate(missing, nil)
	assert.Error(t, err)

	noRegion := domain.NewTable(ColUTC, ColMPT, ColRegion, ColTotalImports)
	noRegion.Rows = [][]string{{"2023-01-01 07:00", "2023-01-01 00:00", "", "1"}}
	_, err = Aggregate(nil, noRegion)
	assert.Error(t, err)
}

func TestAggregate_EmptyInputs(t *testing.T) {
	out, err := Aggregate(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
	assert.Equal(t, []string{ColUTC, ColMPT, ColTotalImports, ColTotalExports}, out.Columns)
}

func pad(h int) string {
	if h < 10 {
		return "0" + strconv.Itoa(h)
	}
	return strconv.Itoa(h)
}
