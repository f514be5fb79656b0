package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aeso-harvester/internal/domain"
)

func keyTable(keys ...string) *domain.Table {
	t := domain.NewTable("asset_ID", "metered_volume")
	for _, k := range keys {
		t.Rows = append(t.Rows, []string{k, "1"})
	}
	return t
}

func day(d int) domain.FetchWindow {
	ts := time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
	return domain.FetchWindow{Start: ts, End: ts, Seq: d - 1, Year: 2024}
}

func newTracker(t *testing.T) *Tracker {
	t.Helper()
	tr, err := NewTracker(domain.EndpointConfig{ID: "metered_volume", AssetKeyColumn: "asset_ID"})
	require.NoError(t, err)
	return tr
}

func TestNewTracker_RequiresKeyColumn(t *testing.T) {
	_, err := NewTracker(domain.EndpointConfig{ID: "pool_price"})
	assert.ErrorIs(t, err, ErrNoKeyColumn)
}

func TestObserve_NewKeysAndMonotonicity(t *testing.T) {
	tr := newTracker(t)

	s1, err := tr.Observe(day(1), keyTable("B", "A", "A"))
	require.NoError(t, err)
	assert.Equal(t, []domain.AssetKey{"A", "B"}, s1.Known)
	assert.Equal(t, []domain.AssetKey{"A", "B"}, s1.New)
	assert.Empty(t, s1.Absent)

	s2, err := tr.Observe(day(2), keyTable("C", "A"))
	require.NoError(t, err)
	assert.Equal(t, []domain.AssetKey{"A", "B", "C"}, s2.Known)
	assert.Equal(t, []domain.AssetKey{"C"}, s2.New)
	assert.Equal(t, []domain.AssetKey{"B"}, s2.Absent)

	// A window without B keeps B known.
	s3, err := tr.Observe(day(3), keyTable())
	require.NoError(t, err)
	assert.Equal(t, s2.Known, s3.Known)
	assert.Empty(t, s3.New)
	assert.Equal(t, []domain.AssetKey{"A", "B", "C"}, s3.Absent)

	for _, snaps := range [][2]domain.IdentitySnapshot{{s1, s2}, {s2, s3}} {
		assert.Subset(t, snaps[1].Known, snaps[0].Known)
	}
}

func TestObserve_NewIsDisjointFromPreviouslyKnown(t *testing.T) {
	tr := newTracker(t)
	prev, err := tr.Observe(day(1), keyTable("A", "B"))
	require.NoError(t, err)

	next, err := tr.Observe(day(2), keyTable("A", "B", "D"))
	require.NoError(t, err)

	for _, k := range next.New {
		assert.NotContains(t, prev.Known, k)
	}
}

func TestObserve_FirstSeen(t *testing.T) {
	tr := newTracker(t)
	_, _ = tr.Observe(day(1), keyTable("A"))
	_, _ = tr.Observe(day(4), keyTable("A", "Z"))

	w, ok := tr.FirstSeen("Z")
	require.True(t, ok)
	assert.Equal(t, 3, w.Seq)

	w, ok = tr.FirstSeen("A")
	require.True(t, ok)
	assert.Equal(t, 0, w.Seq)

	_, ok = tr.FirstSeen("nope")
	assert.False(t, ok)
}

func TestObserve_IgnoresEmptyKeys(t *testing.T) {
	tr := newTracker(t)
	s, err := tr.Observe(day(1), keyTable("", "A"))
	require.NoError(t, err)
	assert.Equal(t, []domain.AssetKey{"A"}, s.Known)
}

func TestObserve_MissingKeyColumn(t *testing.T) {
	tr := newTracker(t)
	_, err := tr.Observe(day(1), &domain.Table{Columns: []string{"x"}, Rows: [][]string{{"1"}}})
	assert.Error(t, err)
}
