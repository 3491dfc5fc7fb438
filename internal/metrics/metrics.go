package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "netpulse"

// Metrics is the pipeline metric set, registered on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	SnapshotsTotal    prometheus.Counter
	ParseFailures     prometheus.Counter
	FindingsTotal     *prometheus.CounterVec
	AlertsEmitted     *prometheus.CounterVec
	AlertsDeduped     prometheus.Counter
	AlertsSuppressed  prometheus.Counter
	CorrelationsTotal *prometheus.CounterVec
	WriteRetries      prometheus.Counter
	ActiveGroups      prometheus.Gauge
	DeviceHealth      *prometheus.GaugeVec
	DeviceReachable   *prometheus.GaugeVec
	CycleDuration     prometheus.Histogram
	LastCycleTS       prometheus.Gauge
}

// New builds and registers the metric set.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	auto := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SnapshotsTotal: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Total device snapshots consumed",
		}),
		ParseFailures: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_parse_failures_total",
			Help:      "Total snapshots dropped as unparsable",
		}),
		FindingsTotal: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_total",
			Help:      "Total detector findings by alert type",
		}, []string{"alert_type"}),
		AlertsEmitted: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_emitted_total",
			Help:      "Total alerts emitted past the cooldown gate by severity",
		}, []string{"severity"}),
		AlertsDeduped: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_deduplicated_total",
			Help:      "Total alerts absorbed by an existing row inside its cooldown",
		}),
		AlertsSuppressed: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_suppressed_total",
			Help:      "Total alerts dropped by silences, maintenance windows or patterns",
		}),
		CorrelationsTotal: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "correlations_total",
			Help:      "Total correlation records by type",
		}, []string{"type"}),
		WriteRetries: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_retries_total",
			Help:      "Total writer retry attempts",
		}),
		ActiveGroups: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_groups_active",
			Help:      "Alert groups currently tracked by the aggregator",
		}),
		DeviceHealth: auto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_health_score",
			Help:      "Latest per-device health score",
		}, []string{"device"}),
		DeviceReachable: auto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_reachable",
			Help:      "Whether the last collection from the device succeeded",
		}, []string{"device"}),
		CycleDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Detection cycle duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		LastCycleTS: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp",
			Help:      "Unix timestamp of the last completed cycle",
		}),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveDevice records the per-device gauges after one analysis.
func (m *Metrics) ObserveDevice(deviceID string, health float64, reachable bool) {
	m.DeviceHealth.WithLabelValues(deviceID).Set(health)
	up := 0.0
	if reachable {
		up = 1.0
	}
	m.DeviceReachable.WithLabelValues(deviceID).Set(up)
}

// ObserveCycle records the duration and completion time of one cycle.
func (m *Metrics) ObserveCycle(d time.Duration, ts time.Time) {
	m.CycleDuration.Observe(d.Seconds())
	m.LastCycleTS.Set(float64(ts.Unix()))
}
