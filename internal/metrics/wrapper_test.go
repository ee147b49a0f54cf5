package metrics

import (
	"errors"
	"testing"

	"bird-conservation/internal/ml"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ ml.MetricsInterface = (*MetricsWrapper)(nil)

func TestNewWrapper(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	if wrapper == nil {
		t.Fatal("NewWrapper returned nil")
	}
	if wrapper.m != metrics {
		t.Error("Wrapper does not contain correct metrics instance")
	}
}

func TestMetricsWrapper_Predictions(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	if v := testutil.ToFloat64(metrics.PredictionsTotal); v != 0 {
		t.Errorf("Expected initial counter value 0, got %f", v)
	}

	wrapper.PredictionsInc()
	wrapper.PredictionsInc()
	if v := testutil.ToFloat64(metrics.PredictionsTotal); v != 2 {
		t.Errorf("Expected counter value 2, got %f", v)
	}

	wrapper.LatencyObserve(0.002)
	if n := testutil.CollectAndCount(metrics.PredictionLatency); n != 1 {
		t.Errorf("Expected one latency series, got %d", n)
	}
}

func TestMetricsWrapper_FailuresByKind(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	wrapper.FailuresInc(ml.KindInput.String())
	wrapper.FailuresInc(ml.KindInput.String())
	wrapper.FailuresInc(ml.KindUnavailable.String())

	if v := testutil.ToFloat64(metrics.FailuresTotal.WithLabelValues("input")); v != 2 {
		t.Errorf("Expected 2 input failures, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.FailuresTotal.WithLabelValues("unavailable")); v != 1 {
		t.Errorf("Expected 1 unavailable failure, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.FailuresTotal.WithLabelValues("internal")); v != 0 {
		t.Errorf("Expected no internal failures, got %f", v)
	}
}

func TestMetricsWrapper_Gauges(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	wrapper.ModelAgeSet(3600)
	if v := testutil.ToFloat64(metrics.ModelAge); v != 3600 {
		t.Errorf("Expected model age 3600, got %f", v)
	}

	wrapper.ArtifactLoadedSet(true)
	if v := testutil.ToFloat64(metrics.ArtifactLoaded); v != 1 {
		t.Errorf("Expected artifact loaded 1, got %f", v)
	}
	wrapper.ArtifactLoadedSet(false)
	if v := testutil.ToFloat64(metrics.ArtifactLoaded); v != 0 {
		t.Errorf("Expected artifact loaded 0, got %f", v)
	}

	wrapper.DatasetRowsSet(1240)
	if v := testutil.ToFloat64(metrics.DatasetRows); v != 1240 {
		t.Errorf("Expected dataset rows 1240, got %f", v)
	}
}

func TestMetricsWrapper_HistoryWrite(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	wrapper.HistoryWrite(nil)
	wrapper.HistoryWrite(errors.New("database is closed"))
	wrapper.HistoryWrite(nil)

	if v := testutil.ToFloat64(metrics.HistoryWrites); v != 2 {
		t.Errorf("Expected 2 history writes, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.HistoryErrors); v != 1 {
		t.Errorf("Expected 1 history error, got %f", v)
	}
}

func TestFailureRate(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	if r := metrics.FailureRate(); r != 0 {
		t.Errorf("Expected 0 before any prediction, got %f", r)
	}

	wrapper.PredictionsInc()
	wrapper.PredictionsInc()
	wrapper.PredictionsInc()
	wrapper.FailuresInc("input")

	if r := metrics.FailureRate(); r != 0.25 {
		t.Errorf("Expected failure rate 0.25, got %f", r)
	}
}

func TestNewWithRegistry_Isolated(t *testing.T) {
	// Two registries must not collide on metric names
	a := NewWithRegistry(prometheus.NewRegistry())
	b := NewWithRegistry(prometheus.NewRegistry())
	NewWrapper(a).PredictionsInc()

	if v := testutil.ToFloat64(b.PredictionsTotal); v != 0 {
		t.Errorf("Expected isolated registry, got %f", v)
	}
	if a.Gatherer() == nil {
		t.Error("Expected gatherer")
	}
}
