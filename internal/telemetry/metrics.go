package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "methodmap"

// Metrics are the counters and gauges of one run. Each Metrics owns its
// registry so that runs and tests do not share state.
type Metrics struct {
	Registry *prometheus.Registry

	FilesRead           *prometheus.CounterVec
	Records             *prometheus.CounterVec
	Diagnostics         prometheus.Counter
	Partition           *prometheus.GaugeVec
	InvariantViolations prometheus.Counter
	Duplicates          *prometheus.GaugeVec
	GraphNodes          prometheus.Gauge
	GraphEdges          prometheus.Gauge
	MalformedCalls      prometheus.Counter
	Pairings            prometheus.Gauge
	StageSeconds        *prometheus.HistogramVec
}

// NewMetrics registers the run metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		FilesRead: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Record documents read, by origin and status",
		}, []string{"origin", "status"}),
		Records: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records_total",
			Help:      "Method records loaded, by origin",
		}, []string{"origin"}),
		Diagnostics: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "diagnostics_total",
			Help:      "Non-fatal input problems recorded",
		}),
		Partition: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "join",
			Name:      "records",
			Help:      "Records per join partition",
		}, []string{"partition"}),
		InvariantViolations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "join",
			Name:      "invariant_violations_total",
			Help:      "Joins whose partitions did not account for every input record",
		}),
		Duplicates: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "records",
			Name:      "duplicates",
			Help:      "Same-origin duplicate records, by origin",
		}, []string{"origin"}),
		GraphNodes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "callgraph",
			Name:      "nodes",
			Help:      "Call graph nodes",
		}),
		GraphEdges: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "callgraph",
			Name:      "edges",
			Help:      "Distinct call graph edges",
		}),
		MalformedCalls: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "callgraph",
			Name:      "malformed_calls_total",
			Help:      "Call instructions skipped because they could not be decoded",
		}),
		Pairings: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pairing",
			Name:      "pairings",
			Help:      "Test pairings produced",
		}),
		StageSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time per pipeline stage",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
		}, []string{"stage"}),
	}
}

// ObserveStage records the time elapsed since start for stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.StageSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// WriteTextfile writes the registry in the Prometheus text format, for the
// node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
