package metricsutil

import "github.com/prometheus/client_golang/prometheus"

// PrometheusCollector adapts a Metrics instance to prometheus.Collector,
// for worlds that expose a /metrics endpoint (see cmd/simcore-bench).
type PrometheusCollector struct {
	m *Metrics

	tickTotal   *prometheus.Desc
	rollback    *prometheus.Desc
	workerStall *prometheus.Desc
	memoryBytes *prometheus.Desc
	ingress     *prometheus.Desc
}

// NewPrometheusCollector wraps m for registration with a
// prometheus.Registry.
func NewPrometheusCollector(m *Metrics) *PrometheusCollector {
	return &PrometheusCollector{
		m:           m,
		tickTotal:   prometheus.NewDesc("simcore_tick_total_ns", "Cumulative tick wall time in nanoseconds.", nil, nil),
		rollback:    prometheus.NewDesc("simcore_rollback_total", "Total number of rolled-back ticks.", nil, nil),
		workerStall: prometheus.NewDesc("simcore_worker_stall_total", "Total number of detected worker stalls.", nil, nil),
		memoryBytes: prometheus.NewDesc("simcore_memory_bytes", "Approximate live arena memory usage.", nil, nil),
		ingress:     prometheus.NewDesc("simcore_ingress_rejections_total", "Ingress rejections by reason.", []string{"reason"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tickTotal
	ch <- c.rollback
	ch <- c.workerStall
	ch <- c.memoryBytes
	ch <- c.ingress
}

// Collect implements prometheus.Collector.
func (c *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.m.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.tickTotal, prometheus.CounterValue, float64(s.TickTotalNs))
	ch <- prometheus.MustNewConstMetric(c.rollback, prometheus.CounterValue, float64(s.RollbackCount))
	ch <- prometheus.MustNewConstMetric(c.workerStall, prometheus.CounterValue, float64(s.WorkerStalls))
	ch <- prometheus.MustNewConstMetric(c.memoryBytes, prometheus.GaugeValue, float64(s.MemoryBytes))

	ch <- prometheus.MustNewConstMetric(c.ingress, prometheus.CounterValue, float64(s.IngressQueueFull), "queue_full")
	ch <- prometheus.MustNewConstMetric(c.ingress, prometheus.CounterValue, float64(s.IngressStale), "stale")
	ch <- prometheus.MustNewConstMetric(c.ingress, prometheus.CounterValue, float64(s.IngressTickDisabled), "tick_disabled")
	ch <- prometheus.MustNewConstMetric(c.ingress, prometheus.CounterValue, float64(s.IngressUnsupported), "unsupported_command")
	ch <- prometheus.MustNewConstMetric(c.ingress, prometheus.CounterValue, float64(s.IngressNotApplied), "not_applied")
}

var _ prometheus.Collector = (*PrometheusCollector)(nil)
