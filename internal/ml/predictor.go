package ml

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"placement-predictor/internal/encoding"
	"placement-predictor/internal/features"
)

// MetricsInterface defines metrics methods needed by the predictor
type MetricsInterface interface {
	PredictionsInc(label string)
	PredictionFailuresInc(kind string)
	PredictionLatencyObserve(seconds float64)
	PredictionConfidenceObserve(p float64)
	ModelAgeSet(seconds float64)
}

// Failure kinds reported by ErrorKind.
const (
	KindSchemaMismatch  = "schema_mismatch"
	KindUnknownCategory = "unknown_category"
	KindValidation      = "validation"
	KindCanceled        = "canceled"
	KindInternal        = "internal"
)

// ErrorKind classifies a prediction error for metrics and HTTP mapping.
func ErrorKind(err error) string {
	var (
		mismatch *features.SchemaMismatchError
		unknown  *encoding.UnknownCategoryError
		invalid  *features.ValidationError
	)
	switch {
	case errors.As(err, &mismatch):
		return KindSchemaMismatch
	case errors.As(err, &unknown):
		return KindUnknownCategory
	case errors.As(err, &invalid):
		return KindValidation
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}

// IsInputError reports whether err was caused by the submitted record.
func IsInputError(err error) bool {
	switch ErrorKind(err) {
	case KindSchemaMismatch, KindUnknownCategory, KindValidation:
		return true
	}
	return false
}

// HealthStatus summarises the predictor for health endpoints.
type HealthStatus struct {
	Healthy      bool      `json:"healthy"`
	ModelVersion string    `json:"model_version"`
	LoadedAt     time.Time `json:"loaded_at"`
	Predictions  int64     `json:"predictions"`
	Failures     int64     `json:"failures"`
	LastError    string    `json:"last_error,omitempty"`
}

// Predictor serves predictions from one loaded bundle. It is safe for
// concurrent use; the bundle itself is never mutated.
type Predictor struct {
	bundle   *Bundle
	metrics  MetricsInterface
	loadedAt time.Time

	predictions atomic.Int64
	failures    atomic.Int64
	mu          sync.RWMutex
	lastError   string
}

// NewPredictor wraps bundle. metrics may be nil.
func NewPredictor(bundle *Bundle, metrics MetricsInterface) *Predictor {
	return &Predictor{bundle: bundle, metrics: metrics, loadedAt: time.Now()}
}

// LoadPredictor loads the bundle at path and wraps it.
func LoadPredictor(path string, metrics MetricsInterface) (*Predictor, error) {
	b, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewPredictor(b, metrics), nil
}

// Bundle returns the served bundle.
func (p *Predictor) Bundle() *Bundle { return p.bundle }

// Predict classifies one record.
func (p *Predictor) Predict(ctx context.Context, rec features.Record) (Prediction, error) {
	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.PredictionLatencyObserve(time.Since(start).Seconds())
			p.metrics.ModelAgeSet(time.Since(p.bundle.metadata.TrainedAt).Seconds())
		}
	}()

	if err := ctx.Err(); err != nil {
		p.recordFailure(err)
		return Prediction{}, err
	}

	pred, err := p.bundle.Predict(rec)
	if err != nil {
		p.recordFailure(err)
		return Prediction{}, err
	}

	p.predictions.Add(1)
	if p.metrics != nil {
		p.metrics.PredictionsInc(pred.Label.String())
		if pred.Confidence != nil {
			p.metrics.PredictionConfidenceObserve(*pred.Confidence)
		}
	}

	ev := log.Debug().
		Str("label", pred.Label.String()).
		Dur("latency", time.Since(start))
	if pred.Confidence != nil {
		ev = ev.Float64("confidence", *pred.Confidence)
	}
	ev.Msg("Prediction served")
	return pred, nil
}

func (p *Predictor) recordFailure(err error) {
	kind := ErrorKind(err)
	p.failures.Add(1)
	p.mu.Lock()
	p.lastError = err.Error()
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.PredictionFailuresInc(kind)
	}
	if kind == KindInternal {
		log.Error().Err(err).Msg("Prediction failed")
		return
	}
	log.Debug().Err(err).Str("kind", kind).Msg("Prediction rejected")
}

// Health reports the predictor state.
func (p *Predictor) Health() HealthStatus {
	p.mu.RLock()
	lastErr := p.lastError
	p.mu.RUnlock()
	return HealthStatus{
		Healthy:      p.bundle != nil,
		ModelVersion: p.bundle.metadata.Version,
		LoadedAt:     p.loadedAt,
		Predictions:  p.predictions.Load(),
		Failures:     p.failures.Load(),
		LastError:    lastErr,
	}
}
