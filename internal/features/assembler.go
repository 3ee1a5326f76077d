// Package features turns raw student records into the fixed-order numeric
// vectors the placement classifier consumes. Training and inference go
// through the same Assembler so the two can never disagree on column order or
// category codes.
package features

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"placement-predictor/internal/encoding"
	"placement-predictor/internal/schema"
)

// Assembler builds feature vectors for one schema and one fitted registry.
type Assembler struct {
	fields   []schema.Field
	registry *encoding.Registry
	known    map[string]struct{}
}

// NewAssembler checks that every categorical field of fields has an encoder.
func NewAssembler(fields []schema.Field, registry *encoding.Registry) (*Assembler, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("assembler needs at least one field")
	}
	if registry == nil {
		return nil, fmt.Errorf("assembler needs an encoder registry")
	}

	known := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, dup := known[f.Name]; dup {
			return nil, fmt.Errorf("duplicate field %s in schema", f.Name)
		}
		known[f.Name] = struct{}{}
		if f.Kind == schema.Categorical {
			if _, ok := registry.Encoder(f.Name); !ok {
				return nil, fmt.Errorf("no encoder fitted for categorical field %s", f.Name)
			}
		}
	}

	return &Assembler{fields: fields, registry: registry, known: known}, nil
}

// Fields returns the field names in vector order.
func (a *Assembler) Fields() []string {
	names := make([]string, len(a.fields))
	for i, f := range a.fields {
		names[i] = f.Name
	}
	return names
}

// Registry returns the encoder registry the assembler reads from.
func (a *Assembler) Registry() *encoding.Registry { return a.registry }

// CheckSchema reports missing and unexpected fields of rec.
func (a *Assembler) CheckSchema(rec Record) error {
	var missing, unexpected []string
	for _, f := range a.fields {
		if _, ok := rec[f.Name]; !ok {
			missing = append(missing, f.Name)
		}
	}
	for name := range rec {
		if _, ok := a.known[name]; !ok {
			unexpected = append(unexpected, name)
		}
	}
	if len(missing) == 0 && len(unexpected) == 0 {
		return nil
	}
	sort.Strings(unexpected)
	return &SchemaMismatchError{Missing: missing, Unexpected: unexpected}
}

// Assemble validates rec and returns its feature vector.
func (a *Assembler) Assemble(rec Record) ([]float64, error) {
	if err := a.CheckSchema(rec); err != nil {
		return nil, err
	}

	vec := make([]float64, len(a.fields))
	for i, f := range a.fields {
		v := rec[f.Name]
		switch f.Kind {
		case schema.Numeric:
			x, err := numericValue(f, v)
			if err != nil {
				return nil, err
			}
			vec[i] = x
		case schema.Categorical:
			if v.IsNumber {
				return nil, &ValidationError{Field: f.Name, Value: v.String(), Reason: "expected a category label"}
			}
			code, err := a.registry.Encode(f.Name, v.Label)
			if err != nil {
				return nil, err
			}
			vec[i] = float64(code)
		default:
			return nil, fmt.Errorf("field %s has unsupported kind %s", f.Name, f.Kind)
		}
	}
	return vec, nil
}

// AssembleAll assembles every record; the first failure aborts and names the
// row it happened on.
func (a *Assembler) AssembleAll(recs []Record) ([][]float64, error) {
	out := make([][]float64, len(recs))
	for i, rec := range recs {
		vec, err := a.Assemble(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func numericValue(f schema.Field, v Value) (float64, error) {
	x := v.Number
	if !v.IsNumber {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.Label), 64)
		if err != nil {
			return 0, &ValidationError{Field: f.Name, Value: v.Label, Reason: "expected a number"}
		}
		x = parsed
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, &ValidationError{Field: f.Name, Value: v.String(), Reason: "value must be finite"}
	}
	if !f.Range.Contains(x) {
		return 0, &ValidationError{Field: f.Name, Value: v.String(), Reason: "must be " + f.Range.String()}
	}
	return x, nil
}
