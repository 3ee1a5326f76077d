// Package api serves placement predictions over HTTP: an HTML form for
// manual use, a JSON prediction endpoint, model and schema introspection,
// stored prediction history and Prometheus metrics.
package api

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"placement-predictor/internal/common"
	"placement-predictor/internal/ml"
	"placement-predictor/internal/storage"
)

//go:embed templates/*.html
var templateFS embed.FS

// History is the prediction log the server appends to.
type History interface {
	StorePrediction(rec storage.PredictionRecord) (storage.PredictionRecord, error)
	RecentPredictions(n int) ([]storage.PredictionRecord, error)
}

// HTTPMetrics receives request level measurements.
type HTTPMetrics interface {
	ObserveRequest(method, path string, status int, d time.Duration)
	RateLimitedInc()
	HistoryFailuresInc()
}

// Config holds the server tunables.
type Config struct {
	Port           int
	RequestTimeout time.Duration
	RateLimit      float64 // predictions per second
	RateBurst      int
	HistoryLimit   int
	// Gatherer backs /metrics. Nil uses the default Prometheus registry.
	Gatherer prometheus.Gatherer
}

func (c *Config) defaults() {
	if c.Port == 0 {
		c.Port = common.DefaultServerPort
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = common.DefaultRequestTimeout * time.Second
	}
	if c.RateLimit <= 0 {
		c.RateLimit = common.DefaultRateLimit
	}
	if c.RateBurst <= 0 {
		c.RateBurst = common.DefaultRateBurst
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = common.DefaultHistoryLimit
	}
	if c.Gatherer == nil {
		c.Gatherer = prometheus.DefaultGatherer
	}
}

// Server provides the HTTP API for model predictions.
type Server struct {
	predictor ml.PredictorInterface
	history   History     // optional
	metrics   HTTPMetrics // optional
	cfg       Config
	limiter   *rate.Limiter
	page      *template.Template
	handler   http.Handler
	server    *http.Server
}

// Option customises a Server.
type Option func(*Server)

// WithHistory records every served prediction in h.
func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

// WithMetrics reports request metrics to m.
func WithMetrics(m HTTPMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// NewServer creates a new HTTP server for model serving.
func NewServer(predictor ml.PredictorInterface, cfg Config, opts ...Option) (*Server, error) {
	if predictor == nil {
		return nil, errors.New("server needs a predictor")
	}
	cfg.defaults()

	page, err := template.New("index.html").Funcs(template.FuncMap{
		"pct": func(p float64) string { return fmt.Sprintf("%.1f%%", p*100) },
	}).ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		predictor: predictor,
		cfg:       cfg,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		page:      page,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.Handle("POST /predict", s.rateLimit(http.HandlerFunc(s.handlePredict)))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /model/info", s.handleModelInfo)
	mux.HandleFunc("GET /schema", s.handleSchema)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	s.handler = s.requestID(s.accessLog(mux))
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler { return s.handler }

// Addr is the listen address.
func (s *Server) Addr() string { return s.server.Addr }

// Start begins serving HTTP requests. It returns nil after Shutdown.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("Starting prediction server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
