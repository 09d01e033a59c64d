package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

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

func TestMetricsWrapper_PredictionCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	if v := testutil.ToFloat64(metrics.PredictionsTotal); v != 0 {
		t.Errorf("Expected initial counter value 0, got %f", v)
	}

	wrapper.PredictionsInc()
	wrapper.PredictionsInc()
	if v := testutil.ToFloat64(metrics.PredictionsTotal); v != 2 {
		t.Errorf("Expected counter value 2, got %f", v)
	}

	wrapper.PredictionFailuresInc("INVALID_INPUT")
	wrapper.PredictionFailuresInc("INVALID_INPUT")
	wrapper.PredictionFailuresInc("PREDICTION_FAILED")
	wrapper.PredictionFailuresInc("")

	if v := testutil.ToFloat64(metrics.PredictionFailures.WithLabelValues("INVALID_INPUT")); v != 2 {
		t.Errorf("Expected 2 invalid input failures, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.PredictionFailures.WithLabelValues("PREDICTION_FAILED")); v != 1 {
		t.Errorf("Expected 1 prediction failure, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.PredictionFailures.WithLabelValues("unknown")); v != 1 {
		t.Errorf("Expected unlabelled failure to count as unknown, got %f", v)
	}
}

func TestMetricsWrapper_GaugeOperations(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	wrapper.ArtifactAgeSet(3600)
	if v := testutil.ToFloat64(metrics.ArtifactAge); v != 3600 {
		t.Errorf("Expected artifact age 3600, got %f", v)
	}

	wrapper.WSConnectionsAdd(1)
	wrapper.WSConnectionsAdd(1)
	wrapper.WSConnectionsAdd(-1)
	if v := testutil.ToFloat64(metrics.WSConnections); v != 1 {
		t.Errorf("Expected 1 open connection, got %f", v)
	}

	wrapper.DriftScoreSet("sqft", 0.4)
	wrapper.DriftScoreSet("sqft", 0.7)
	if v := testutil.ToFloat64(metrics.DriftScore.WithLabelValues("sqft")); v != 0.7 {
		t.Errorf("Expected drift score 0.7, got %f", v)
	}
}

func TestMetricsWrapper_Histograms(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	wrapper.PredictionLatencyObserve(0.002)
	wrapper.PredictedPriceObserve(489650.75)
	wrapper.BatchSizeObserve(12)

	for _, name := range []string{"prediction_latency_seconds", "predicted_price", "batch_size"} {
		count, err := testutil.GatherAndCount(registry, name)
		if err != nil {
			t.Fatalf("gather %s: %v", name, err)
		}
		if count != 1 {
			t.Errorf("Expected 1 series for %s, got %d", name, count)
		}
	}
}

func TestMetricsWrapper_RequestObserve(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	wrapper.RequestObserve("/predict", 200)
	wrapper.RequestObserve("/predict", 200)
	wrapper.RequestObserve("/predict", 422)
	wrapper.RequestTimeoutsInc()

	if v := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/predict", "200")); v != 2 {
		t.Errorf("Expected 2 ok requests, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/predict", "422")); v != 1 {
		t.Errorf("Expected 1 rejected request, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.RequestTimeouts); v != 1 {
		t.Errorf("Expected 1 timeout, got %f", v)
	}
}

func TestNewWithRegistry_Isolated(t *testing.T) {
	// Two registries must not collide on metric names.
	a := NewWithRegistry(prometheus.NewRegistry())
	b := NewWithRegistry(prometheus.NewRegistry())

	NewWrapper(a).PredictionsInc()
	if v := testutil.ToFloat64(b.PredictionsTotal); v != 0 {
		t.Errorf("Expected isolated registry to stay at 0, got %f", v)
	}
}
