// Package encoding maps categorical labels to integer codes.
//
// An Encoder is fitted once per field from the labels observed in training
// data and never refitted: codes are assigned in sorted label order, so the
// same training column always yields the same mapping. A Registry groups the
// encoders of all categorical fields and is persisted inside the model bundle.
package encoding

import (
	"encoding/json"
	"fmt"
	"sort"
)

// UnknownCategoryError is returned when a label was not seen during fitting.
type UnknownCategoryError struct {
	Field string
	Label string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("field %s: unknown category %q", e.Field, e.Label)
}

// Encoder is a label <-> code bijection for a single field.
type Encoder struct {
	field  string
	labels []string
	codes  map[string]int
}

// Fit builds an encoder from the labels of one column. Duplicates are
// collapsed and the distinct labels are sorted before codes are assigned.
func Fit(field string, values []string) *Encoder {
	seen := make(map[string]struct{}, len(values))
	labels := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		labels = append(labels, v)
	}
	sort.Strings(labels)
	return newEncoder(field, labels)
}

func newEncoder(field string, labels []string) *Encoder {
	codes := make(map[string]int, len(labels))
	for i, l := range labels {
		codes[l] = i
	}
	return &Encoder{field: field, labels: labels, codes: codes}
}

// Field returns the name of the field this encoder was fitted on.
func (e *Encoder) Field() string { return e.field }

// Len returns the number of known labels.
func (e *Encoder) Len() int { return len(e.labels) }

// Encode returns the code of label.
func (e *Encoder) Encode(label string) (int, error) {
	code, ok := e.codes[label]
	if !ok {
		return 0, &UnknownCategoryError{Field: e.field, Label: label}
	}
	return code, nil
}

// Decode returns the label of code.
func (e *Encoder) Decode(code int) (string, error) {
	if code < 0 || code >= len(e.labels) {
		return "", fmt.Errorf("field %s: code %d out of range [0, %d)", e.field, code, len(e.labels))
	}
	return e.labels[code], nil
}

// Labels returns the known labels in code order.
func (e *Encoder) Labels() []string {
	out := make([]string, len(e.labels))
	copy(out, e.labels)
	return out
}

// MarshalJSON stores the labels in code order; the position is the code.
func (e *Encoder) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.labels)
}

func (e *Encoder) UnmarshalJSON(b []byte) error {
	var labels []string
	if err := json.Unmarshal(b, &labels); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			return fmt.Errorf("duplicate label %q in encoder", l)
		}
		seen[l] = struct{}{}
	}
	*e = *newEncoder(e.field, labels)
	return nil
}
