package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placement-predictor/internal/ml"
)

var _ ml.MetricsInterface = (*MetricsWrapper)(nil)

func newTestWrapper(t *testing.T) (*Metrics, *MetricsWrapper, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	m := NewWithRegistry(registry)
	return m, NewWrapper(m), registry
}

func TestNewWrapper(t *testing.T) {
	m, w, _ := newTestWrapper(t)
	require.NotNil(t, w)
	assert.Same(t, m, w.m)
}

func TestMetricsWrapper_Predictions(t *testing.T) {
	m, w, _ := newTestWrapper(t)

	w.PredictionsInc("Placed")
	w.PredictionsInc("Placed")
	w.PredictionsInc("NotPlaced")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Predictions.WithLabelValues("Placed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Predictions.WithLabelValues("NotPlaced")))
}

func TestMetricsWrapper_Failures(t *testing.T) {
	m, w, _ := newTestWrapper(t)

	w.PredictionFailuresInc(ml.KindValidation)
	w.PredictionFailuresInc(ml.KindUnknownCategory)
	w.PredictionFailuresInc(ml.KindValidation)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PredictionFailures.WithLabelValues(ml.KindValidation)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PredictionFailures.WithLabelValues(ml.KindUnknownCategory)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PredictionFailures.WithLabelValues(ml.KindSchemaMismatch)))
}

func TestMetricsWrapper_GaugeAndCounters(t *testing.T) {
	m, w, _ := newTestWrapper(t)

	w.ModelAgeSet(3600)
	assert.Equal(t, 3600.0, testutil.ToFloat64(m.ModelAge))
	w.ModelAgeSet(7200)
	assert.Equal(t, 7200.0, testutil.ToFloat64(m.ModelAge))

	w.RateLimitedInc()
	w.HistoryFailuresInc()
	w.HistoryFailuresInc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HistoryFailures))
}

func TestMetricsWrapper_Histograms(t *testing.T) {
	_, w, registry := newTestWrapper(t)

	w.PredictionLatencyObserve(0.002)
	w.PredictionConfidenceObserve(0.83)
	w.PredictionConfidenceObserve(0.12)
	w.ObserveRequest("POST", "/predict", 200, 15*time.Millisecond)
	w.ObserveRequest("POST", "/predict", 400, time.Millisecond)

	families, err := registry.Gather()
	require.NoError(t, err)

	counts := make(map[string]uint64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			if h := metric.GetHistogram(); h != nil {
				counts[mf.GetName()] += h.GetSampleCount()
			}
		}
	}
	assert.Equal(t, uint64(1), counts["placement_prediction_latency_seconds"])
	assert.Equal(t, uint64(2), counts["placement_prediction_confidence"])
	assert.Equal(t, uint64(2), counts["placement_http_request_duration_seconds"])
}

func TestMetricsWrapper_RequestCounter(t *testing.T) {
	m, w, _ := newTestWrapper(t)

	w.ObserveRequest("GET", "/health", 200, time.Millisecond)
	w.ObserveRequest("GET", "/health", 200, time.Millisecond)
	w.ObserveRequest("POST", "/predict", 429, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/health", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/predict", "429")))
}
