package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the marketplace ledger.
type Metrics struct {
	// --- Engine ---
	OpsApplied  *prometheus.CounterVec
	OpsRejected *prometheus.CounterVec
	OpDuration  *prometheus.HistogramVec
	Sequence    prometheus.Gauge

	// --- Ledger / escrow ---
	EscrowedValue  prometheus.Gauge
	AccruedValue   prometheus.Gauge
	ActiveListings prometheus.Gauge

	// --- Channels & fan-out ---
	ChannelSize    *prometheus.GaugeVec
	BroadcastDrops prometheus.Counter

	// --- Persistence ---
	PersistRowsWritten prometheus.Counter
	PersistBatchDur    prometheus.Histogram
	PersistBatchSize   prometheus.Histogram
	PersistErrors      *prometheus.CounterVec
	PersistLastSeq     prometheus.Gauge

	// --- Outbound publishing ---
	PublishOK     *prometheus.CounterVec
	PublishErrors *prometheus.CounterVec

	// --- HTTP API ---
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	opBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "market_ops_applied_total",
			Help: "Operations committed by the engine",
		}, []string{"op"}),

		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "market_ops_rejected_total",
			Help: "Operations rejected, by taxonomy class",
		}, []string{"op", "class"}),

		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "market_op_duration_seconds",
			Help:    "Time to execute one engine operation",
			Buckets: opBuckets,
		}, []string{"op"}),

		Sequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "market_sequence",
			Help: "Current global notification sequence",
		}),

		EscrowedValue: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "market_escrowed_value",
			Help: "Value held in escrow by active auctions",
		}),

		AccruedValue: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "market_accrued_value",
			Help: "Value owed through the withdrawal ledger",
		}),

		ActiveListings: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "market_active_listings",
			Help: "Number of active listings",
		}),

		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "market_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		BroadcastDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "market_broadcast_drops_total",
			Help: "Notifications dropped due to full broadcast channel",
		}),

		PersistRowsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "market_persist_rows_written_total",
			Help: "Notification rows written to Postgres",
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "market_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "market_persist_batch_size",
			Help:    "Notifications per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "market_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistLastSeq: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "market_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		PublishOK: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "market_publish_total",
			Help: "Notifications published outbound",
		}, []string{"sink"}),

		PublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "market_publish_errors_total",
			Help: "Outbound publish failures",
		}, []string{"sink"}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "market_http_requests_total",
			Help: "HTTP API requests",
		}, []string{"route", "status"}),

		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "market_http_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"route"}),
	}
}

// SetChannelSize updates a channel occupancy gauge.
func (m *Metrics) SetChannelSize(name string, size int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
}
