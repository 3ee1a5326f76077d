package features

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placement-predictor/internal/encoding"
	"placement-predictor/internal/schema"
)

func sampleRecord() Record {
	return Record{
		schema.Gender:              Cat("M"),
		schema.SSCPercentage:       Num(88),
		schema.SSCBoard:            Cat("Central"),
		schema.HSCPercentage:       Num(79),
		schema.HSCBoard:            Cat("Central"),
		schema.HSCSubject:          Cat("Science"),
		schema.DegreePercentage:    Num(72),
		schema.UndergradDegree:     Cat("Sci&Tech"),
		schema.WorkExperience:      Cat("Yes"),
		schema.EmpTestPercentage:   Num(81),
		schema.Specialisation:      Cat("Mkt&Fin"),
		schema.MBAPercent:          Num(68.5),
		schema.YearsExperience:     Num(2),
		schema.SkillsMatchPercent:  Num(77),
		schema.NumCertifications:   Num(3),
		schema.InternshipCompleted: Cat("Yes"),
		schema.InterviewScore:      Num(8.5),
		schema.CompanyTier:         Cat("Tier 1"),
		schema.JobCompetitionLevel: Cat("Medium"),
	}
}

func otherRecord() Record {
	rec := sampleRecord()
	rec[schema.SSCPercentage] = Num(40)
	rec[schema.SSCBoard] = Cat("Others")
	return rec
}

func fitRegistry(recs ...Record) *encoding.Registry {
	cols := make(map[string][]string)
	for _, name := range schema.CategoricalNames() {
		for _, r := range recs {
			cols[name] = append(cols[name], r[name].Label)
		}
	}
	return encoding.FitRegistry(cols)
}

func newTestAssembler(t *testing.T, recs ...Record) *Assembler {
	t.Helper()
	a, err := NewAssembler(schema.Fields(), fitRegistry(recs...))
	require.NoError(t, err)
	return a
}

func TestNewAssembler_RequiresEncoders(t *testing.T) {
	_, err := NewAssembler(schema.Fields(), encoding.FitRegistry(map[string][]string{
		schema.Gender: {"M", "F"},
	}))
	assert.Error(t, err)

	_, err = NewAssembler(nil, encoding.FitRegistry(nil))
	assert.Error(t, err)

	_, err = NewAssembler(schema.Fields(), nil)
	assert.Error(t, err)
}

func TestAssemble_VectorOrder(t *testing.T) {
	a := newTestAssembler(t, sampleRecord(), otherRecord())
	assert.Equal(t, schema.Names(), a.Fields())

	vec, err := a.Assemble(sampleRecord())
	require.NoError(t, err)
	require.Len(t, vec, 19)

	assert.Equal(t, 88.0, vec[1])
	assert.Equal(t, 0.0, vec[2]) // Central sorts before Others
	assert.Equal(t, 68.5, vec[11])
	assert.Equal(t, 8.5, vec[16])
}

func TestAssemble_RowsDifferOnlyWhereRecordsDiffer(t *testing.T) {
	a := newTestAssembler(t, sampleRecord(), otherRecord())

	rows, err := a.AssembleAll([]Record{sampleRecord(), otherRecord()})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	for i := range rows[0] {
		switch i {
		case 1:
			assert.Equal(t, 88.0, rows[0][i])
			assert.Equal(t, 40.0, rows[1][i])
		case 2:
			assert.Equal(t, 0.0, rows[0][i])
			assert.Equal(t, 1.0, rows[1][i])
		default:
			assert.Equal(t, rows[0][i], rows[1][i], "column %d", i)
		}
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	a := newTestAssembler(t, sampleRecord(), otherRecord())
	first, err := a.Assemble(sampleRecord())
	require.NoError(t, err)
	second, err := a.Assemble(sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAssemble_NumericStringsAreParsed(t *testing.T) {
	a := newTestAssembler(t, sampleRecord())
	rec := sampleRecord()
	rec[schema.MBAPercent] = Cat(" 68.5 ")

	vec, err := a.Assemble(rec)
	require.NoError(t, err)
	assert.Equal(t, 68.5, vec[11])
}

func TestAssemble_SchemaMismatch(t *testing.T) {
	a := newTestAssembler(t, sampleRecord())

	rec := sampleRecord()
	delete(rec, schema.InterviewScore)
	delete(rec, schema.Gender)
	rec["shoe_size"] = Num(42)
	rec["age"] = Num(23)

	_, err := a.Assemble(rec)
	var mismatch *SchemaMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, []string{schema.Gender, schema.InterviewScore}, mismatch.Missing)
	assert.Equal(t, []string{"age", "shoe_size"}, mismatch.Unexpected)
	assert.Contains(t, err.Error(), "missing fields: gender, interview_score")
}

func TestAssemble_Validation(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value Value
	}{
		{"percentage above 100", schema.SSCPercentage, Num(120)},
		{"negative experience", schema.YearsExperience, Num(-1)},
		{"fractional certifications", schema.NumCertifications, Num(1.5)},
		{"text for numeric", schema.HSCPercentage, Cat("high")},
		{"number for categorical", schema.Gender, Num(1)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := newTestAssembler(t, sampleRecord())
			rec := sampleRecord()
			rec[tc.field] = tc.value

			_, err := a.Assemble(rec)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestAssemble_UnknownCategory(t *testing.T) {
	a := newTestAssembler(t, sampleRecord())
	rec := sampleRecord()
	rec[schema.SSCBoard] = Cat("Others")

	_, err := a.Assemble(rec)
	var unknown *encoding.UnknownCategoryError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, schema.SSCBoard, unknown.Field)
	assert.Equal(t, "Others", unknown.Label)
}

func TestAssembleAll_NamesRow(t *testing.T) {
	a := newTestAssembler(t, sampleRecord())
	bad := sampleRecord()
	bad[schema.SkillsMatchPercent] = Num(101)

	_, err := a.AssembleAll([]Record{sampleRecord(), bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1")

	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}
