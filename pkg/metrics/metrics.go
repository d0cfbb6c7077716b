package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recovery results
const (
	ResultRecovered = "recovered"
	ResultFailed    = "failed"
)

// Collector holds the stratum metrics on a private registry
type Collector struct {
	registry *prometheus.Registry

	backfilled   *prometheus.CounterVec
	rejected     *prometheus.CounterVec
	recovered    *prometheus.CounterVec
	diskBytes    prometheus.Gauge
	scanDuration prometheus.Histogram
}

// NewCollector creates and registers all collectors
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		backfilled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stratum_backfill_records_total",
			Help: "Records passed through schema backfill, by record kind",
		}, []string{"kind"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stratum_backfill_rejections_total",
			Help: "Records rejected by schema backfill, by record kind",
		}, []string{"kind"}),
		recovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stratum_recovery_tasks_total",
			Help: "Task directories processed by recovery, by result",
		}, []string{"result"}),
		diskBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stratum_recovery_disk_bytes",
			Help: "Disk consumed by recovered terminal tasks",
		}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stratum_recovery_scan_seconds",
			Help:    "Duration of executor root recovery scans",
			Buckets: prometheus.DefBuckets,
		}),
	}
	c.registry.MustRegister(c.backfilled, c.rejected, c.recovered, c.diskBytes, c.scanDuration)
	return c
}

// Backfilled counts a record of the given kind
func (c *Collector) Backfilled(kind string) {
	if c == nil {
		return
	}
	c.backfilled.WithLabelValues(kind).Inc()
}

// Rejected counts a rejected record of the given kind
func (c *Collector) Rejected(kind string) {
	if c == nil {
		return
	}
	c.rejected.WithLabelValues(kind).Inc()
}

// RecoveryResult counts a processed task directory
func (c *Collector) RecoveryResult(result string) {
	if c == nil {
		return
	}
	c.recovered.WithLabelValues(result).Inc()
}

// SetDiskBytes records the summed disk usage of recovered tasks
func (c *Collector) SetDiskBytes(n int64) {
	if c == nil {
		return
	}
	c.diskBytes.Set(float64(n))
}

// ObserveScan records a scan duration in seconds
func (c *Collector) ObserveScan(seconds float64) {
	if c == nil {
		return
	}
	c.scanDuration.Observe(seconds)
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
