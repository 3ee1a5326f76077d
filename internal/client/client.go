// Package client talks to a running prediction server.
package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"

	"placement-predictor/internal/api"
	"placement-predictor/internal/features"
	"placement-predictor/internal/ml"
	"placement-predictor/internal/storage"
)

// BreakerThreshold is the number of consecutive server failures that opens
// the circuit.
const BreakerThreshold = 5

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status    int
	Kind      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("server returned %d", e.Status)
	if e.Kind != "" {
		msg += " (" + e.Kind + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Rejected reports whether the server refused the input itself. Such answers
// are final and do not count against the circuit breaker.
func (e *APIError) Rejected() bool {
	return e.Status >= 400 && e.Status < 500
}

// IsCircuitOpen reports whether err came from an open circuit.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

type Client struct {
	base    string
	rest    *resty.Client
	breaker *gobreaker.CircuitBreaker[*resty.Response]
}

// New creates a client for the server at base, e.g. http://localhost:8501.
func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second) // default fallback
	}

	settings := gobreaker.Settings{
		Name:        "prediction-server",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= BreakerThreshold
		},
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Rejected()
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	}

	return &Client{
		base:    strings.TrimRight(base, "/"),
		rest:    r,
		breaker: gobreaker.NewCircuitBreaker[*resty.Response](settings),
	}
}

// do runs one request through the breaker and turns error statuses into
// *APIError.
func (c *Client) do(ctx context.Context, req func(*resty.Request) (*resty.Response, error)) error {
	_, err := c.breaker.Execute(func() (*resty.Response, error) {
		var errBody api.ErrorResponse
		resp, err := req(c.rest.R().SetContext(ctx).SetError(&errBody))
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		if resp.IsError() {
			return resp, &APIError{
				Status:    resp.StatusCode(),
				Kind:      errBody.Kind,
				Message:   errBody.Error,
				RequestID: errBody.RequestID,
			}
		}
		return resp, nil
	})
	return err
}

// Predict sends one record to POST /predict.
func (c *Client) Predict(ctx context.Context, rec features.Record) (api.PredictionResponse, error) {
	var out api.PredictionResponse
	err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(rec).SetResult(&out).Post(c.base + "/predict")
	})
	if err != nil {
		return api.PredictionResponse{}, err
	}
	return out, nil
}

// Health fetches GET /health.
func (c *Client) Health(ctx context.Context) (ml.HealthStatus, error) {
	var out ml.HealthStatus
	err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetResult(&out).Get(c.base + "/health")
	})
	return out, err
}

// History fetches up to limit stored predictions, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]storage.PredictionRecord, error) {
	var out struct {
		Predictions []storage.PredictionRecord `json:"predictions"`
	}
	err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParam("limit", strconv.Itoa(limit)).SetResult(&out).Get(c.base + "/history")
	})
	if err != nil {
		return nil, err
	}
	return out.Predictions, nil
}
