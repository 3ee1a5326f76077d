package encoding

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Registry holds one encoder per categorical field. It is written once by
// FitRegistry and read-only afterwards.
type Registry struct {
	encoders map[string]*Encoder
}

// FitRegistry fits an encoder for every column in columns.
func FitRegistry(columns map[string][]string) *Registry {
	r := &Registry{encoders: make(map[string]*Encoder, len(columns))}
	for field, values := range columns {
		r.encoders[field] = Fit(field, values)
	}
	return r
}

// Encoder returns the encoder of field.
func (r *Registry) Encoder(field string) (*Encoder, bool) {
	e, ok := r.encoders[field]
	return e, ok
}

// Encode maps a label of field to its code.
func (r *Registry) Encode(field, label string) (int, error) {
	e, ok := r.encoders[field]
	if !ok {
		return 0, fmt.Errorf("no encoder for field %s", field)
	}
	return e.Encode(label)
}

// Decode maps a code of field back to its label.
func (r *Registry) Decode(field string, code int) (string, error) {
	e, ok := r.encoders[field]
	if !ok {
		return "", fmt.Errorf("no encoder for field %s", field)
	}
	return e.Decode(code)
}

// Fields returns the encoded field names, sorted.
func (r *Registry) Fields() []string {
	out := make([]string, 0, len(r.encoders))
	for f := range r.encoders {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.encoders)
}

func (r *Registry) UnmarshalJSON(b []byte) error {
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	encoders := make(map[string]*Encoder, len(raw))
	for field, msg := range raw {
		e := &Encoder{field: field}
		if err := json.Unmarshal(msg, e); err != nil {
			return fmt.Errorf("encoder %s: %w", field, err)
		}
		encoders[field] = e
	}
	r.encoders = encoders
	return nil
}
