// Package metrics provides Prometheus metrics collection for the placement
// predictor. It defines the prediction, model and HTTP metrics that are
// exposed via the /metrics endpoint for monitoring and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "placement"

// Metrics holds all Prometheus metrics for the predictor.
type Metrics struct {
	// Prediction metrics
	Predictions          *prometheus.CounterVec // Served predictions by label
	PredictionFailures   *prometheus.CounterVec // Rejected or failed predictions by kind
	PredictionLatency    prometheus.Histogram   // End-to-end prediction latency in seconds
	PredictionConfidence prometheus.Histogram   // Distribution of Placed probabilities
	ModelAge             prometheus.Gauge       // Age of the loaded bundle in seconds

	// HTTP metrics
	HTTPRequests    *prometheus.CounterVec   // Requests by method, path and status
	HTTPDuration    *prometheus.HistogramVec // Request duration by method and path
	RateLimited     prometheus.Counter       // Requests refused by the rate limiter
	HistoryFailures prometheus.Counter       // Predictions that could not be recorded
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Total number of predictions served, by predicted label",
		}, []string{"label"}),
		PredictionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_failures_total",
			Help:      "Total number of failed predictions, by error kind",
		}, []string{"kind"}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_latency_seconds",
			Help:      "Prediction latency in seconds (assembly and classification)",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		PredictionConfidence: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_confidence",
			Help:      "Distribution of the predicted probability of placement",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_age_seconds",
			Help:      "Age of the loaded model bundle in seconds",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Total number of requests refused by the rate limiter",
		}),
		HistoryFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_failures_total",
			Help:      "Total number of predictions that could not be stored",
		}),
	}
}
