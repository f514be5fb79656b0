package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aeso-harvester/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPlan_AnnualTilesRange(t *testing.T) {
	ranges := [][2]time.Time{
		{date(2023, 3, 15), date(2025, 10, 16)},
		{date(2020, 1, 1), date(2020, 12, 31)},
		{date(2019, 12, 31), date(2020, 1, 1)},
		{date(2024, 2, 29), date(2024, 2, 29)},
	}

	for _, r := range ranges {
		windows, err := Plan(r[0], r[1], domain.GranularityAnnual)
		require.NoError(t, err)
		require.NotEmpty(t, windows)

		assert.True(t, windows[0].Start.Equal(r[0]), "first window starts at range start")
		assert.True(t, windows[len(windows)-1].End.Equal(r[1]), "last window ends at range end")

		for i, w := range windows {
			assert.Equal(t, i, w.Seq)
			assert.False(t, w.End.Before(w.Start))
			assert.Equal(t, w.Start.Year(), w.End.Year(), "window confined to one year")
			assert.Equal(t, w.Year, w.Start.Year())
			if i > 0 {
				// next window starts the day after the previous one ends: no gap, no overlap
				assert.True(t, windows[i-1].End.AddDate(0, 0, 1).Equal(w.Start))
			}
		}
	}
}

func TestPlan_AnnualPartialFinalYear(t *testing.T) {
	windows, err := Plan(date(2024, 1, 1), date(2025, 10, 16), domain.GranularityAnnual)
	require.NoError(t, err)
	require.Len(t, windows, 2)

	assert.Equal(t, "2024-01-01..2024-12-31", windows[0].String())
	assert.Equal(t, "2025-01-01..2025-10-16", windows[1].String())
}

func TestPlan_DailyCountsLeapYears(t *testing.T) {
	leap, err := Plan(date(2024, 1, 1), date(2024, 12, 31), domain.GranularityDaily)
	require.NoError(t, err)
	assert.Len(t, leap, 366)

	common, err := Plan(date(2023, 1, 1), date(2023, 12, 31), domain.GranularityDaily)
	require.NoError(t, err)
	assert.Len(t, common, 365)

	for _, w := range leap {
		assert.True(t, w.Start.Equal(w.End))
		assert.Equal(t, 2024, w.Year)
	}
}

func TestPlan_DailyAcrossYearBoundary(t *testing.T) {
	windows, err := Plan(date(2023, 12, 30), date(2024, 1, 2), domain.GranularityDaily)
	require.NoError(t, err)
	require.Len(t, windows, 4)

	assert.Equal(t, 2023, windows[1].Year)
	assert.Equal(t, 2024, windows[2].Year)
	for i, w := range windows {
		assert.Equal(t, i, w.Seq)
	}
}

func TestPlan_ZeroLengthRange(t *testing.T) {
	d := date(2025, 6, 1)
	for _, g := range []domain.Granularity{domain.GranularityList, domain.GranularityAnnual, domain.GranularityDaily} {
		windows, err := Plan(d, d, g)
		require.NoError(t, err)
		require.Len(t, windows, 1, string(g))
		assert.True(t, windows[0].Start.Equal(d))
		assert.True(t, windows[0].End.Equal(d))
	}
}

func TestPlan_List(t *testing.T) {
	windows, err := Plan(date(2020, 1, 1), date(2025, 1, 1), domain.GranularityList)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, 5*365+2, windows[0].Days()-1)
}

func TestPlan_InvalidRange(t *testing.T) {
	_, err := Plan(date(2025, 1, 2), date(2025, 1, 1), domain.GranularityAnnual)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestPlan_TruncatesTimeOfDay(t *testing.T) {
	start := time.Date(2025, 1, 1, 17, 30, 0, 0, time.UTC)
	windows, err := Plan(start, start, domain.GranularityDaily)
	require.NoError(t, err)
	assert.True(t, windows[0].Start.Equal(date(2025, 1, 1)))
}

func TestHoursInYear(t *testing.T) {
	assert.Equal(t, 8760, HoursInYear(2023))
	assert.Equal(t, 8784, HoursInYear(2024))
	assert.Equal(t, 8760, HoursInYear(1900))
	assert.Equal(t, 8784, HoursInYear(2000))
}

func TestYears(t *testing.T) {
	assert.Equal(t, []int{2023, 2024, 2025}, Years(date(2023, 5, 1), date(2025, 1, 1)))
	assert.Nil(t, Years(date(2025, 1, 1), date(2023, 1, 1)))
}

func TestEndsMidYear(t *testing.T) {
	assert.True(t, EndsMidYear(date(2025, 10, 16)))
	assert.False(t, EndsMidYear(date(2024, 12, 31)))
}
