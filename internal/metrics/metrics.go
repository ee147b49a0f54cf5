// Package metrics provides Prometheus metrics collection for the bird
// conservation predictor. It defines the prediction, artifact and dataset
// metrics exposed on the ops server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the predictor.
type Metrics struct {
	// Prediction metrics
	PredictionsTotal  prometheus.Counter     // Successful predictions
	FailuresTotal     *prometheus.CounterVec // Failed predictions by kind
	PredictionLatency prometheus.Histogram   // End-to-end predict latency

	// Artifact metrics
	ModelAge       prometheus.Gauge // Age of the loaded model file in seconds
	ArtifactLoaded prometheus.Gauge // 1 when classifier and codec are loaded

	// Data metrics
	DatasetRows   prometheus.Gauge   // Rows in the reference dataset
	HistoryWrites prometheus.Counter // Predictions persisted to history
	HistoryErrors prometheus.Counter // History writes that failed

	gatherer prometheus.Gatherer
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	gatherer := prometheus.DefaultGatherer
	if g, ok := registerer.(prometheus.Gatherer); ok {
		gatherer = g
	}

	return &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of successful conservation concern predictions",
		}),
		FailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prediction_failures_total",
			Help: "Total number of failed predictions by failure kind",
		}, []string{"kind"}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "Prediction latency in seconds (end-to-end)",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_age_seconds",
			Help: "Age of the loaded model artifact in seconds",
		}),
		ArtifactLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_artifact_loaded",
			Help: "1 when the classifier and label codec are loaded, 0 otherwise",
		}),
		DatasetRows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dataset_rows",
			Help: "Number of rows in the reference dataset",
		}),
		HistoryWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "history_writes_total",
			Help: "Total number of predictions written to history",
		}),
		HistoryErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "history_errors_total",
			Help: "Total number of failed history writes",
		}),
		gatherer: gatherer,
	}
}

// FailureRate returns failures / (failures + successes), or 0 before the
// first prediction.
func (m *Metrics) FailureRate() float64 {
	families, err := m.gatherer.Gather()
	if err != nil {
		return 0
	}

	var ok, failed float64
	for _, mf := range families {
		switch mf.GetName() {
		case "predictions_total":
			for _, metric := range mf.Metric {
				ok += metric.GetCounter().GetValue()
			}
		case "prediction_failures_total":
			for _, metric := range mf.Metric {
				failed += metric.GetCounter().GetValue()
			}
		}
	}

	if ok+failed == 0 {
		return 0
	}
	return failed / (ok + failed)
}

// Gatherer returns the gatherer holding these metrics, for the /metrics
// handler.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.gatherer }
