package metrics

import (
	"strconv"
	"time"
)

// MetricsWrapper adapts Metrics to the narrow interfaces used by the
// predictor and the HTTP layer.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) PredictionsInc(label string) {
	w.m.Predictions.WithLabelValues(label).Inc()
}

func (w *MetricsWrapper) PredictionFailuresInc(kind string) {
	w.m.PredictionFailures.WithLabelValues(kind).Inc()
}

func (w *MetricsWrapper) PredictionLatencyObserve(seconds float64) {
	w.m.PredictionLatency.Observe(seconds)
}

func (w *MetricsWrapper) PredictionConfidenceObserve(p float64) {
	w.m.PredictionConfidence.Observe(p)
}

func (w *MetricsWrapper) ModelAgeSet(seconds float64) {
	w.m.ModelAge.Set(seconds)
}

// ObserveRequest records one finished HTTP request.
func (w *MetricsWrapper) ObserveRequest(method, path string, status int, d time.Duration) {
	w.m.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	w.m.HTTPDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (w *MetricsWrapper) RateLimitedInc() {
	w.m.RateLimited.Inc()
}

func (w *MetricsWrapper) HistoryFailuresInc() {
	w.m.HistoryFailures.Inc()
}
