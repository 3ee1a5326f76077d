package features

import (
	"fmt"
	"strings"
)

// SchemaMismatchError is returned when a record's field set differs from the
// trained schema.
type SchemaMismatchError struct {
	Missing    []string
	Unexpected []string
	// Reordered is set when the field sets agree but their order does not.
	Reordered bool
}

func (e *SchemaMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing fields: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected fields: "+strings.Join(e.Unexpected, ", "))
	}
	if e.Reordered {
		parts = append(parts, "field order differs")
	}
	return "schema mismatch: " + strings.Join(parts, "; ")
}

// ValidationError is returned when a field value is of the wrong type or
// outside its physical range.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %s: invalid value %q: %s", e.Field, e.Value, e.Reason)
}
