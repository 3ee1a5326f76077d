package features

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Value is one raw field value as supplied by a dataset row, a form or a
// JSON request: either a number or a label.
type Value struct {
	Number   float64
	Label    string
	IsNumber bool
}

// Num wraps a numeric value.
func Num(v float64) Value { return Value{Number: v, IsNumber: true} }

// Cat wraps a categorical label.
func Cat(label string) Value { return Value{Label: label} }

func (v Value) String() string {
	if v.IsNumber {
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	}
	return v.Label
}

// MarshalJSON writes numbers as JSON numbers and labels as JSON strings.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsNumber {
		return json.Marshal(v.Number)
	}
	return json.Marshal(v.Label)
}

// UnmarshalJSON accepts a JSON number or a JSON string.
func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Cat(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("value must be a number or a string: %s", string(b))
	}
	*v = Num(f)
	return nil
}

// Record holds one student's raw field values keyed by field name.
type Record map[string]Value

// ParseAssignments builds a record from "field=value" pairs. Values that parse
// as numbers become numbers; everything else is kept as a label.
func ParseAssignments(pairs []string) (Record, error) {
	rec := make(Record, len(pairs))
	for _, p := range pairs {
		name, raw, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected field=value", p)
		}
		rec[name] = guess(strings.TrimSpace(raw))
	}
	return rec, nil
}

func guess(raw string) Value {
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return Num(f)
	}
	return Cat(raw)
}
