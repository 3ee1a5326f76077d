// Package schema describes the fixed student record the placement model is
// trained on: the ordered list of fields, whether each one is numeric or
// categorical, the physical range of numeric fields and the closed label set
// offered for categorical fields.
//
// The order of Fields is the order of the assembled feature vector. Changing it
// invalidates every persisted model bundle.
package schema

import (
	"fmt"
	"math"
)

// Kind tells how a field enters the feature vector.
type Kind int

const (
	// Numeric fields pass through unchanged after range validation.
	Numeric Kind = iota
	// Categorical fields are replaced by their encoder code.
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Range bounds a numeric field. Bounds are inclusive.
type Range struct {
	Min      float64
	Max      float64
	Integral bool
}

var (
	// Percentage covers every *_percentage / *_percent field.
	Percentage = Range{Min: 0, Max: 100}
	// NonNegative covers scores and experience in years.
	NonNegative = Range{Min: 0, Max: math.Inf(1)}
	// Count covers whole-number counters.
	Count = Range{Min: 0, Max: math.Inf(1), Integral: true}
)

// Contains reports whether v is a finite value inside the range.
func (r Range) Contains(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	if v < r.Min || v > r.Max {
		return false
	}
	if r.Integral && v != math.Trunc(v) {
		return false
	}
	return true
}

func (r Range) String() string {
	if math.IsInf(r.Max, 1) {
		if r.Integral {
			return fmt.Sprintf("integer >= %g", r.Min)
		}
		return fmt.Sprintf(">= %g", r.Min)
	}
	return fmt.Sprintf("[%g, %g]", r.Min, r.Max)
}

// Field is one named column of a student record.
type Field struct {
	Name  string
	Kind  Kind
	Range Range
	// Vocabulary lists the labels the form offers for a categorical field.
	// Codes are never derived from it; the fitted encoder registry owns them.
	Vocabulary []string
}

// Field names, in training order.
const (
	Gender              = "gender"
	SSCPercentage       = "ssc_percentage"
	SSCBoard            = "ssc_board"
	HSCPercentage       = "hsc_percentage"
	HSCBoard            = "hsc_board"
	HSCSubject          = "hsc_subject"
	DegreePercentage    = "degree_percentage"
	UndergradDegree     = "undergrad_degree"
	WorkExperience      = "work_experience"
	EmpTestPercentage   = "emp_test_percentage"
	Specialisation      = "specialisation"
	MBAPercent          = "mba_percent"
	YearsExperience     = "years_experience"
	SkillsMatchPercent  = "skills_match_percent"
	NumCertifications   = "num_certifications"
	InternshipCompleted = "internship_completed"
	InterviewScore      = "interview_score"
	CompanyTier         = "company_tier"
	JobCompetitionLevel = "job_competition_level"
)

func numeric(name string, r Range) Field {
	return Field{Name: name, Kind: Numeric, Range: r}
}

func categorical(name string, vocab []string) Field {
	return Field{Name: name, Kind: Categorical, Vocabulary: vocab}
}

var fields = []Field{
	categorical(Gender, GenderValues()),
	numeric(SSCPercentage, Percentage),
	categorical(SSCBoard, BoardValues()),
	numeric(HSCPercentage, Percentage),
	categorical(HSCBoard, BoardValues()),
	categorical(HSCSubject, SubjectValues()),
	numeric(DegreePercentage, Percentage),
	categorical(UndergradDegree, DegreeValues()),
	categorical(WorkExperience, YesNoValues()),
	numeric(EmpTestPercentage, Percentage),
	categorical(Specialisation, SpecialisationValues()),
	numeric(MBAPercent, Percentage),
	numeric(YearsExperience, NonNegative),
	numeric(SkillsMatchPercent, Percentage),
	numeric(NumCertifications, Count),
	categorical(InternshipCompleted, YesNoValues()),
	numeric(InterviewScore, NonNegative),
	categorical(CompanyTier, CompanyTierValues()),
	categorical(JobCompetitionLevel, CompetitionLevelValues()),
}

var index = func() map[string]int {
	m := make(map[string]int, len(fields))
	for i, f := range fields {
		m[f.Name] = i
	}
	return m
}()

// Fields returns a copy of the record schema in feature-vector order.
func Fields() []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

// Names returns the field names in feature-vector order.
func Names() []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// Lookup returns the field with the given name.
func Lookup(name string) (Field, bool) {
	i, ok := index[name]
	if !ok {
		return Field{}, false
	}
	return fields[i], true
}

// CategoricalNames returns the names of the categorical fields in schema order.
func CategoricalNames() []string {
	return namesOf(Categorical)
}

// NumericNames returns the names of the numeric fields in schema order.
func NumericNames() []string {
	return namesOf(Numeric)
}

func namesOf(k Kind) []string {
	var out []string
	for _, f := range fields {
		if f.Kind == k {
			out = append(out, f.Name)
		}
	}
	return out
}

// Known reports whether label belongs to the vocabulary of a categorical field.
func (f Field) Known(label string) bool {
	for _, v := range f.Vocabulary {
		if v == label {
			return true
		}
	}
	return false
}
