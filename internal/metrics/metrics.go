// Package metrics defines the Prometheus instrumentation surface,
// modeled on the teacher's internal/metrics/websocket_metrics.go
// (Gauge/Counter/Histogram per concern, registered once at construction).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every gauge/counter/histogram this core exports.
type Metrics struct {
	BlocksApplied      prometheus.Counter
	BlockApplyDuration prometheus.Histogram
	BacklogDepth       prometheus.Gauge
	ClientsConnected   prometheus.Gauge
	ClientsLaggedTotal prometheus.Counter
	SnapshotFetches    prometheus.Counter
	SnapshotFailures   prometheus.Counter
	SnapshotDivergence prometheus.Counter
	FramesSent         *prometheus.CounterVec
}

// New constructs and registers every metric against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BlocksApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketfeed", Name: "blocks_applied_total",
			Help: "Number of blocks successfully applied to the book engine.",
		}),
		BlockApplyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "marketfeed", Name: "block_apply_duration_seconds",
			Help:    "Time to apply one paired block across all touched coins.",
			Buckets: prometheus.DefBuckets,
		}),
		BacklogDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "marketfeed", Name: "batcher_backlog_blocks",
			Help: "Number of not-yet-committed blocks buffered in the batcher.",
		}),
		ClientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "marketfeed", Name: "clients_connected",
			Help: "Number of currently connected fan-out clients.",
		}),
		ClientsLaggedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketfeed", Name: "clients_lagged_total",
			Help: "Number of clients disconnected for a full outgoing queue.",
		}),
		SnapshotFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketfeed", Name: "snapshot_fetches_total",
			Help: "Number of authoritative snapshots received for pairing.",
		}),
		SnapshotFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketfeed", Name: "snapshot_fetch_failures_total",
			Help: "Number of authoritative snapshot fetch failures (SourceTransient).",
		}),
		SnapshotDivergence: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketfeed", Name: "snapshot_divergence_total",
			Help: "Number of fatal snapshot cross-check mismatches observed.",
		}),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketfeed", Name: "frames_sent_total",
			Help: "Number of wire frames sent to clients, by channel.",
		}, []string{"channel"}),
	}
	reg.MustRegister(
		m.BlocksApplied, m.BlockApplyDuration, m.BacklogDepth, m.ClientsConnected,
		m.ClientsLaggedTotal, m.SnapshotFetches, m.SnapshotFailures, m.SnapshotDivergence, m.FramesSent,
	)
	return m
}
