package ml

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placement-predictor/internal/common"
	"placement-predictor/internal/encoding"
	"placement-predictor/internal/features"
	"placement-predictor/internal/schema"
)

func TestMain(m *testing.M) {
	RegisterStubClassifier()
	os.Exit(m.Run())
}

func TestBundle_Predict(t *testing.T) {
	b := StubBundle()

	pred, err := b.Predict(SampleRecord())
	require.NoError(t, err)
	assert.Equal(t, schema.Placed, pred.Label)
	require.NotNil(t, pred.Confidence)
	assert.InDelta(t, 0.815, *pred.Confidence, 1e-9)

	again, err := b.Predict(SampleRecord())
	require.NoError(t, err)
	assert.Equal(t, pred.Label, again.Label)
	assert.Equal(t, *pred.Confidence, *again.Confidence)

	rec := SampleRecord()
	rec[schema.SSCPercentage] = features.Num(40)
	pred, err = b.Predict(rec)
	require.NoError(t, err)
	assert.Equal(t, schema.NotPlaced, pred.Label)
	assert.InDelta(t, 0.05, *pred.Confidence, 1e-9)
}

type plainClassifier struct{ StubClassifier }

func (p *plainClassifier) Kind() string { return "plain" }

// PredictProba is shadowed so the classifier is not probabilistic.
func (p *plainClassifier) PredictProba() {}

func TestBundle_PredictWithoutProbability(t *testing.T) {
	stub := StubBundle()
	clf := &plainClassifier{StubClassifier{Index: 1, Threshold: 60, Fitted: true}}
	b, err := NewBundle(clf, stub.Registry(), schema.Fields(), Metadata{})
	require.NoError(t, err)

	pred, err := b.Predict(SampleRecord())
	require.NoError(t, err)
	assert.Equal(t, schema.Placed, pred.Label)
	assert.Nil(t, pred.Confidence)

	data, err := json.Marshal(pred)
	require.NoError(t, err)
	assert.JSONEq(t, `{"label":"Placed"}`, string(data))
}

func TestBundle_ErrorsLeaveBundleUsable(t *testing.T) {
	b := StubBundle()

	bad := SampleRecord()
	bad[schema.CompanyTier] = features.Cat("Tier 9")
	_, err := b.Predict(bad)
	var unknown *encoding.UnknownCategoryError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, schema.CompanyTier, unknown.Field)

	pred, err := b.Predict(SampleRecord())
	require.NoError(t, err)
	assert.Equal(t, schema.Placed, pred.Label)
}

func TestNewBundle_Validates(t *testing.T) {
	_, err := NewBundle(nil, StubBundle().Registry(), schema.Fields(), Metadata{})
	assert.Error(t, err)

	_, err = NewBundle(&StubClassifier{}, encoding.FitRegistry(nil), schema.Fields(), Metadata{})
	assert.Error(t, err)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	b := StubBundle()
	path := filepath.Join(t.TempDir(), "models", "bundle.json")

	require.NoError(t, Save(b, path))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file must be renamed away")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, b.Metadata(), loaded.Metadata())
	assert.Equal(t, b.Fields(), loaded.Fields())
	assert.Equal(t, b.Registry().Fields(), loaded.Registry().Fields())

	want, err := b.Predict(SampleRecord())
	require.NoError(t, err)
	got, err := loaded.Predict(SampleRecord())
	require.NoError(t, err)
	assert.Equal(t, want.Label, got.Label)
	assert.Equal(t, *want.Confidence, *got.Confidence)
}

func TestSave_FailureLeavesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.json")

	untrained, err := NewBundle(NewSVC(SVCParams{}), StubBundle().Registry(), schema.Fields(), Metadata{})
	require.NoError(t, err)
	require.Error(t, Save(untrained, path))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	assert.Error(t, Save(StubBundle(), filepath.Join(blocker, "bundle.json")))
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.True(t, errors.Is(err, common.ErrFileNotFound))

	path := filepath.Join(dir, "bundle.json")
	require.NoError(t, Save(StubBundle(), path))

	rewrite := func(t *testing.T, edit func(map[string]any)) string {
		t.Helper()
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var doc map[string]any
		require.NoError(t, json.Unmarshal(data, &doc))
		edit(doc)
		out, err := json.Marshal(doc)
		require.NoError(t, err)
		p := filepath.Join(t.TempDir(), "edited.json")
		require.NoError(t, os.WriteFile(p, out, 0o644))
		return p
	}

	t.Run("reordered fields", func(t *testing.T) {
		p := rewrite(t, func(doc map[string]any) {
			fields := doc["fields"].([]any)
			fields[0], fields[1] = fields[1], fields[0]
		})
		_, err := Load(p)
		var mismatch *features.SchemaMismatchError
		require.True(t, errors.As(err, &mismatch))
		assert.True(t, mismatch.Reordered)
	})

	t.Run("dropped field", func(t *testing.T) {
		p := rewrite(t, func(doc map[string]any) {
			fields := doc["fields"].([]any)
			doc["fields"] = append(fields[:0:0], fields[1:]...)
		})
		_, err := Load(p)
		var mismatch *features.SchemaMismatchError
		require.True(t, errors.As(err, &mismatch))
		assert.Equal(t, []string{schema.Gender}, mismatch.Missing)
	})

	t.Run("unknown classifier", func(t *testing.T) {
		p := rewrite(t, func(doc map[string]any) {
			doc["classifier"].(map[string]any)["kind"] = "forest"
		})
		_, err := Load(p)
		assert.ErrorContains(t, err, "unknown classifier kind")
	})

	t.Run("format", func(t *testing.T) {
		p := rewrite(t, func(doc map[string]any) { doc["format"] = 7 })
		_, err := Load(p)
		assert.ErrorContains(t, err, "unsupported format")
	})

	t.Run("corrupt", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "corrupt.json")
		require.NoError(t, os.WriteFile(p, []byte("{not json"), 0o644))
		_, err := Load(p)
		assert.Error(t, err)
	})
}
