package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quake_map"

// Metrics holds the Prometheus counters, histograms, and gauges for the quake feed pipeline.
type Metrics struct {
	PipelineRunning prometheus.Gauge

	// Feed polling.
	Polls         *prometheus.CounterVec // labels: outcome={success,error}
	FetchAttempts prometheus.Counter
	FetchDuration prometheus.Histogram

	// Record flow.
	RecordsReceived   prometheus.Counter
	RecordsRejected   prometheus.Counter
	RecordsEmitted    prometheus.Counter
	RecordsDuplicate  prometheus.Counter
	DedupStoreErrors  prometheus.Counter
	SinkErrors        *prometheus.CounterVec // labels: sink
	IndexEntries      prometheus.Gauge
	IndexEvictions    prometheus.Counter
	BridgeTransitions *prometheus.CounterVec // labels: kind={hover,click}
	LiveClients       prometheus.Gauge
	LiveDropped       prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the poll loop is active, 0 when shut down.",
		}),
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_polls_total",
			Help:      "Feed ticks by outcome after retries.",
		}, []string{"outcome"}),
		FetchAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetch_attempts_total",
			Help:      "Individual feed HTTP requests, including retries.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_fetch_duration_seconds",
			Help:      "Duration of a single feed HTTP request.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		}),
		RecordsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_received_total",
			Help:      "Valid records decoded from the feed, before deduplication.",
		}),
		RecordsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_rejected_total",
			Help:      "Feed features that failed validation.",
		}),
		RecordsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_emitted_total",
			Help:      "First-seen records delivered to the sinks.",
		}),
		RecordsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_duplicate_total",
			Help:      "Records suppressed because their code was already seen.",
		}),
		DedupStoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dedup_store_errors_total",
			Help:      "Seen-set lookups that failed; the record is retried next tick.",
		}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Sink delivery failures by sink.",
		}, []string{"sink"}),
		IndexEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_entries",
			Help:      "Shapes currently registered in the identifier index.",
		}),
		IndexEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_evictions_total",
			Help:      "Shapes evicted from a bounded identifier index.",
		}),
		BridgeTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_transitions_total",
			Help:      "Row interactions applied to the map by kind.",
		}, []string{"kind"}),
		LiveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_clients",
			Help:      "Connected WebSocket clients.",
		}),
		LiveDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_events_dropped_total",
			Help:      "Live events dropped for slow WebSocket clients.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PipelineRunning,
		m.Polls,
		m.FetchAttempts,
		m.FetchDuration,
		m.RecordsReceived,
		m.RecordsRejected,
		m.RecordsEmitted,
		m.RecordsDuplicate,
		m.DedupStoreErrors,
		m.SinkErrors,
		m.IndexEntries,
		m.IndexEvictions,
		m.BridgeTransitions,
		m.LiveClients,
		m.LiveDropped,
	}
}
