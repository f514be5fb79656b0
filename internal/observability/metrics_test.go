package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "test")

	m.RecordWindow("pool_price", 0.2)
	m.RecordWindow("pool_price", 0.3)
	m.RecordRows("pool_price", 24)
	m.RecordNewKeys("metered_volume", 3)
	m.RecordNewKeys("metered_volume", 0)
	m.RecordFailure("merit_order", "fetch", "transport")
	m.RecordConsolidation("ail_demand", "ok")
	m.RecordRun("harvest", 12, true, 1700000000)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.WindowsFetched.WithLabelValues("pool_price")))
	assert.Equal(t, 24.0, testutil.ToFloat64(m.RowsWritten.WithLabelValues("pool_price")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.NewAssetKeys.WithLabelValues("metered_volume")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchFailures.WithLabelValues("merit_order", "fetch", "transport")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Consolidations.WithLabelValues("ail_demand", "ok")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.LastSuccessfulRun))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordWindow("x", 1)
	m.RecordRows("x", 1)
	m.RecordNewKeys("x", 1)
	m.RecordFailure("x", "y", "z")
	m.RecordConsolidation("x", "ok")
	m.RecordRun("x", 1, true, 1)
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "")
	m.RecordRows("asset_list", 5)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `aeso_harvester_output_rows_written_total{endpoint="asset_list"} 5`))
}
