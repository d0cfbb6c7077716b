package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()
	c.Backfilled("job")
	c.Backfilled("job")
	c.Rejected("quota")
	c.RecoveryResult(ResultRecovered)
	c.SetDiskBytes(2048)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.backfilled.WithLabelValues("job")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rejected.WithLabelValues("quota")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.recovered.WithLabelValues(ResultRecovered)))
	assert.Equal(t, 2048.0, testutil.ToFloat64(c.diskBytes))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.Backfilled("job")
	c.Rejected("job")
	c.RecoveryResult(ResultFailed)
	c.SetDiskBytes(1)
	c.ObserveScan(0.1)
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.Backfilled("task")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `stratum_backfill_records_total{kind="task"} 1`)
}
