package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "foot_traffic"

// Upsert outcome label values.
const (
	OutcomeCommitted = "committed"
	OutcomeEmpty     = "empty"
	OutcomeFailed    = "failed"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	ItemsReceived prometheus.Counter
	ItemsSkipped  *prometheus.CounterVec // labels: reason={no_timestamp,superseded}
	FilesFailed   *prometheus.CounterVec // labels: reason={decode,header}
	RowsExtracted prometheus.Counter
	RowsSkipped   prometheus.Counter

	RecordsUpserted prometheus.Counter
	Upserts         *prometheus.CounterVec // labels: outcome={committed,empty,failed}
	StoreRows       prometheus.Gauge

	PipelineRunning prometheus.Gauge
	BatchSize       prometheus.Histogram
	RunDuration     prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ItemsReceived,
		m.ItemsSkipped,
		m.FilesFailed,
		m.RowsExtracted,
		m.RowsSkipped,
		m.RecordsUpserted,
		m.Upserts,
		m.StoreRows,
		m.PipelineRunning,
		m.BatchSize,
		m.RunDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid "already
// registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ItemsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_received_total",
			Help:      "Total spreadsheet payloads handed to the runner.",
		}),
		ItemsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_skipped_total",
			Help:      "Payloads dropped before extraction, by reason.",
		}, []string{"reason"}),
		FilesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_failed_total",
			Help:      "Payloads that yielded no rows due to a structural failure.",
		}, []string{"reason"}),
		RowsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_extracted_total",
			Help:      "Raw venue-hour tuples extracted from spreadsheets.",
		}),
		RowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Spreadsheet data rows skipped for an unreadable or out-of-range hour.",
		}),
		RecordsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_upserted_total",
			Help:      "Records written to the merge store.",
		}),
		Upserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upserts_total",
			Help:      "Runs by store outcome.",
		}, []string{"outcome"}),
		StoreRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_rows",
			Help:      "Rows in the merge store after the last committed upsert.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of payloads per batch extracted from Kafka.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete resolve-extract-enrich-upsert run.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}
