package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"placement-predictor/internal/features"
	"placement-predictor/internal/ml"
	"placement-predictor/internal/schema"
	"placement-predictor/internal/storage"
)

const (
	maxBodyBytes = 64 << 10
	maxHistory   = 1000
)

// PredictionResponse is the result of POST /predict.
type PredictionResponse struct {
	Label        string    `json:"label"`
	Confidence   *float64  `json:"confidence,omitempty"`
	RequestID    string    `json:"request_id"`
	ModelVersion string    `json:"model_version"`
	Latency      float64   `json:"latency_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
}

// FieldInfo describes one input field for /schema and the form.
type FieldInfo struct {
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	Range    string   `json:"range,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Integral bool     `json:"integral,omitempty"`
	Options  []string `json:"options,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, kind, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:     msg,
		Kind:      kind,
		RequestID: RequestIDFrom(r.Context()),
	})
}

// statusFor maps a prediction error to an HTTP status.
func statusFor(err error) int {
	if ml.IsInputError(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// fieldInfos lists the bundle's fields in feature order. Categorical options
// come from the fitted registry, so the form only offers encodable labels.
func (s *Server) fieldInfos() []FieldInfo {
	b := s.predictor.Bundle()
	names := b.Fields()
	out := make([]FieldInfo, 0, len(names))
	for _, name := range names {
		info := FieldInfo{Name: name}
		f, ok := schema.Lookup(name)
		if ok {
			info.Kind = f.Kind.String()
		}
		if ok && f.Kind == schema.Numeric {
			info.Range = f.Range.String()
			info.Min = bound(f.Range.Min)
			info.Max = bound(f.Range.Max)
			info.Integral = f.Range.Integral
		}
		if enc, found := b.Registry().Encoder(name); found {
			info.Kind = schema.Categorical.String()
			info.Options = enc.Labels()
		}
		out = append(out, info)
	}
	return out
}

func bound(v float64) *float64 {
	if math.IsInf(v, 0) {
		return nil
	}
	return &v
}

type pageData struct {
	Fields  []FieldInfo
	Values  map[string]string
	Version string
	Result  *PredictionResponse
	Error   string
}

func (s *Server) renderPage(w http.ResponseWriter, status int, data pageData) {
	data.Fields = s.fieldInfos()
	data.Version = s.predictor.Bundle().Metadata().Version
	if data.Values == nil {
		data.Values = map[string]string{}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.page.Execute(w, data); err != nil {
		log.Error().Err(err).Msg("Failed to render page")
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, pageData{})
}

// isForm reports whether the request body is an HTML form submission.
func isForm(r *http.Request) bool {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return ct == "application/x-www-form-urlencoded" || ct == "multipart/form-data"
}

// decodeRecord reads a JSON record or a form submission. Form values are kept
// as text; the assembler parses numeric fields.
func decodeRecord(r *http.Request) (features.Record, map[string]string, error) {
	if isForm(r) {
		if err := r.ParseForm(); err != nil {
			return nil, nil, fmt.Errorf("invalid form: %w", err)
		}
		rec := make(features.Record, len(r.PostForm))
		raw := make(map[string]string, len(r.PostForm))
		for name, vals := range r.PostForm {
			if len(vals) == 0 {
				continue
			}
			v := strings.TrimSpace(vals[0])
			raw[name] = v
			rec[name] = features.Cat(v)
		}
		return rec, raw, nil
	}

	var rec features.Record
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&rec); err != nil {
		return nil, nil, fmt.Errorf("invalid request: %w", err)
	}
	if rec == nil {
		return nil, nil, errors.New("invalid request: body must be a JSON object")
	}
	return rec, nil, nil
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := RequestIDFrom(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	form := isForm(r)

	rec, raw, err := decodeRecord(r)
	if err != nil {
		if form {
			s.renderPage(w, http.StatusBadRequest, pageData{Error: err.Error()})
			return
		}
		writeError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	// Perform prediction
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	pred, err := s.predictor.Predict(ctx, rec)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Str("request_id", requestID).Msg("Prediction failed")
		}
		if form {
			s.renderPage(w, status, pageData{Values: raw, Error: err.Error()})
			return
		}
		writeError(w, r, status, ml.ErrorKind(err), err.Error())
		return
	}

	resp := PredictionResponse{
		Label:        pred.Label.String(),
		Confidence:   pred.Confidence,
		RequestID:    requestID,
		ModelVersion: s.predictor.Bundle().Metadata().Version,
		Latency:      float64(time.Since(start).Microseconds()) / 1000,
		Timestamp:    time.Now().UTC(),
	}
	s.record(rec, resp)

	if form {
		s.renderPage(w, http.StatusOK, pageData{Values: raw, Result: &resp})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// record appends a served prediction to the history. Failures are counted and
// logged but never fail the request.
func (s *Server) record(rec features.Record, resp PredictionResponse) {
	if s.history == nil {
		return
	}
	_, err := s.history.StorePrediction(storage.PredictionRecord{
		RequestID:    resp.RequestID,
		Timestamp:    resp.Timestamp,
		ModelVersion: resp.ModelVersion,
		Label:        resp.Label,
		Confidence:   resp.Confidence,
		Record:       rec,
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.HistoryFailuresInc()
		}
		log.Warn().Err(err).Str("request_id", resp.RequestID).Msg("Failed to store prediction")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.predictor.Health()

	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.predictor.Bundle().Metadata())
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"fields": s.fieldInfos()})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, r, http.StatusNotFound, "history_disabled", "prediction history is not enabled")
		return
	}

	limit := s.cfg.HistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistory {
			writeError(w, r, http.StatusBadRequest, "bad_request",
				fmt.Sprintf("limit must be an integer between 1 and %d", maxHistory))
			return
		}
		limit = n
	}

	recs, err := s.history.RecentPredictions(limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read prediction history")
		writeError(w, r, http.StatusInternalServerError, ml.KindInternal, "failed to read history")
		return
	}
	if recs == nil {
		recs = []storage.PredictionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"predictions": recs})
}
