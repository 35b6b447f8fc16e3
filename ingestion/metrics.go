package ingestion

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsPrefix is prepended to every metric name.
const MetricsPrefix = "logingest_"

type (
	FileOutcome  string
	LineOutcome  string
	BatchOutcome string
)

const (
	FileOutcomeStaged    FileOutcome  = "staged"
	FileOutcomeFailed    FileOutcome  = "failed"
	LineOutcomeParsed    LineOutcome  = "parsed"
	LineOutcomeDiscarded LineOutcome  = "discarded"
	LineOutcomeMalformed LineOutcome  = "malformed"
	BatchOutcomeSent     BatchOutcome = "sent"
	BatchOutcomeFailed   BatchOutcome = "failed"
)

// Metrics holds the Prometheus collectors updated by the pipeline stages.
type Metrics struct {
	files           *prometheus.CounterVec
	lines           *prometheus.CounterVec
	batches         *prometheus.CounterVec
	records         *prometheus.CounterVec
	dispatchLatency prometheus.Histogram
	outstanding     prometheus.Gauge
}

// NewMetrics creates the pipeline collectors and registers them with reg.
// A nil reg leaves them unregistered, which is what tests and library
// callers without a metrics endpoint want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		files: factory.NewCounterVec(prometheus.CounterOpts{
			Name: MetricsPrefix + "files_total",
			Help: "Number of input files grouped by staging outcome",
		}, []string{"outcome"}),
		lines: factory.NewCounterVec(prometheus.CounterOpts{
			Name: MetricsPrefix + "lines_total",
			Help: "Number of input lines grouped by parse outcome",
		}, []string{"outcome"}),
		batches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: MetricsPrefix + "batches_total",
			Help: "Number of dispatched batches grouped by outcome",
		}, []string{"outcome"}),
		records: factory.NewCounterVec(prometheus.CounterOpts{
			Name: MetricsPrefix + "records_dispatched_total",
			Help: "Number of records in dispatched batches grouped by outcome",
		}, []string{"outcome"}),
		dispatchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricsPrefix + "dispatch_duration_seconds",
			Help:    "Time spent in a single sink write",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
		outstanding: factory.NewGauge(prometheus.GaugeOpts{
			Name: MetricsPrefix + "outstanding_dispatches",
			Help: "Number of sink writes currently in flight",
		}),
	}
}

func (m *Metrics) RecordFile(outcome FileOutcome) {
	m.files.WithLabelValues(string(outcome)).Inc()
}

// RecordLines counts n lines with the same outcome.
func (m *Metrics) RecordLines(outcome LineOutcome, n int) {
	if n == 0 {
		return
	}
	m.lines.WithLabelValues(string(outcome)).Add(float64(n))
}

// RecordBatch counts one finished dispatch of size records.
func (m *Metrics) RecordBatch(outcome BatchOutcome, size int, elapsed time.Duration) {
	m.batches.WithLabelValues(string(outcome)).Inc()
	m.records.WithLabelValues(string(outcome)).Add(float64(size))
	m.dispatchLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) DispatchStarted() {
	m.outstanding.Inc()
}

func (m *Metrics) DispatchFinished() {
	m.outstanding.Dec()
}
