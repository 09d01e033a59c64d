// Package metrics provides Prometheus metrics collection for the pricing service.
// It defines the prediction, batch, artifact and HTTP metrics exposed via the
// Prometheus metrics endpoint for monitoring and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the pricing service.
type Metrics struct {
	// Prediction metrics
	PredictionsTotal   prometheus.Counter     // Successful predictions
	PredictionFailures *prometheus.CounterVec // Failed predictions by error kind
	PredictionLatency  prometheus.Histogram   // Pipeline latency in seconds
	PredictedPrice     prometheus.Histogram   // Distribution of predicted prices
	BatchSize          prometheus.Histogram   // Requests per batch call
	ArtifactAge        prometheus.Gauge       // Age of the served artifacts in seconds
	DriftScore         *prometheus.GaugeVec   // Input drift score by feature

	// Transport metrics
	HTTPRequests    *prometheus.CounterVec // Requests by route and status code
	RequestTimeouts prometheus.Counter     // Requests cut off by the request deadline
	WSConnections   prometheus.Gauge       // Open websocket prediction streams
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of successful price predictions",
		}),
		PredictionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prediction_failures_total",
			Help: "Total number of failed price predictions by error kind",
		}, []string{"kind"}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "Prediction pipeline latency in seconds (end-to-end)",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		PredictedPrice: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "predicted_price",
			Help:    "Distribution of predicted house prices",
			Buckets: prometheus.ExponentialBuckets(50000, 2, 10),
		}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "batch_size",
			Help:    "Number of requests per batch prediction call",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		ArtifactAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "artifact_age_seconds",
			Help: "Age of the served model artifacts in seconds",
		}),
		DriftScore: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "feature_drift_score",
			Help: "Standardised shift of recent inputs from the fitted mean, by feature",
		}, []string{"feature"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
		RequestTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "request_timeouts_total",
			Help: "Total number of requests that exceeded the request deadline",
		}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Number of open websocket prediction streams",
		}),
	}
}
