package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"placement-predictor/internal/common"
	"placement-predictor/internal/encoding"
	"placement-predictor/internal/features"
	"placement-predictor/internal/schema"
)

// BundleFormat is the version of the on-disk bundle layout.
const BundleFormat = 1

// Metadata describes how and when a bundle was trained.
type Metadata struct {
	Version        string    `json:"version"`
	TrainedAt      time.Time `json:"trained_at"`
	Target         string    `json:"target"`
	Features       []string  `json:"features"`
	TrainingRows   int       `json:"training_rows"`
	ClassifierKind string    `json:"classifier_kind"`
	Accuracy       float64   `json:"accuracy"`
	Precision      float64   `json:"precision"`
	Recall         float64   `json:"recall"`
	F1             float64   `json:"f1"`

	Importance []FeatureImportance `json:"importance,omitempty"`
}

// Prediction is the outcome for one record. Confidence is the probability of
// Placed and is nil when the classifier gives no probability estimates.
type Prediction struct {
	Label      schema.Status `json:"label"`
	Confidence *float64      `json:"confidence,omitempty"`
}

// Bundle pairs a trained classifier with the encoder registry and field order
// it was trained with. It is immutable once built.
type Bundle struct {
	classifier Classifier
	registry   *encoding.Registry
	assembler  *features.Assembler
	metadata   Metadata
}

// NewBundle assembles a bundle from its trained parts.
func NewBundle(clf Classifier, registry *encoding.Registry, fields []schema.Field, meta Metadata) (*Bundle, error) {
	if clf == nil {
		return nil, errors.New("bundle needs a classifier")
	}
	asm, err := features.NewAssembler(fields, registry)
	if err != nil {
		return nil, err
	}
	meta.Features = asm.Fields()
	meta.ClassifierKind = clf.Kind()
	return &Bundle{classifier: clf, registry: registry, assembler: asm, metadata: meta}, nil
}

// Predict assembles rec and classifies it. A failed call leaves the bundle
// usable.
func (b *Bundle) Predict(rec features.Record) (Prediction, error) {
	vec, err := b.assembler.Assemble(rec)
	if err != nil {
		return Prediction{}, err
	}

	class, err := b.classifier.Predict(vec)
	if err != nil {
		return Prediction{}, fmt.Errorf("classify: %w", err)
	}
	pred := Prediction{Label: schema.NotPlaced}
	if class == int(schema.Placed) {
		pred.Label = schema.Placed
	}

	if pc, ok := b.classifier.(ProbabilisticClassifier); ok {
		p, err := pc.PredictProba(vec)
		if err != nil {
			return Prediction{}, fmt.Errorf("predict probability: %w", err)
		}
		pred.Confidence = &p
	}
	return pred, nil
}

// Metadata returns a copy of the bundle metadata.
func (b *Bundle) Metadata() Metadata {
	m := b.metadata
	m.Features = append([]string(nil), b.metadata.Features...)
	m.Importance = append([]FeatureImportance(nil), b.metadata.Importance...)
	return m
}

// Registry returns the fitted encoder registry.
func (b *Bundle) Registry() *encoding.Registry { return b.registry }

// Fields returns the feature names in vector order.
func (b *Bundle) Fields() []string { return b.assembler.Fields() }

type bundleFile struct {
	Format     int                `json:"format"`
	Classifier classifierState    `json:"classifier"`
	Registry   *encoding.Registry `json:"registry"`
	Fields     []string           `json:"fields"`
	Metadata   Metadata           `json:"metadata"`
}

type classifierState struct {
	Kind  string `json:"kind"`
	State []byte `json:"state"`
}

// Save writes the bundle to path as one JSON document. The file is written
// next to path and renamed into place, so path never holds a partial bundle.
func Save(b *Bundle, path string) error {
	state, err := b.classifier.MarshalBinary()
	if err != nil {
		return fmt.Errorf("serialize classifier: %w", err)
	}
	data, err := json.MarshalIndent(bundleFile{
		Format:     BundleFormat,
		Classifier: classifierState{Kind: b.classifier.Kind(), State: state},
		Registry:   b.registry,
		Fields:     b.Fields(),
		Metadata:   b.metadata,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create bundle directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp bundle: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write bundle: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync bundle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close bundle: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("install bundle: %w", err)
	}

	log.Info().
		Str("path", path).
		Str("version", b.metadata.Version).
		Int("bytes", len(data)).
		Msg("Model bundle saved")
	return nil
}

// Load reads a bundle written by Save. The stored field order must equal the
// compiled schema; bundles from another schema are rejected.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("model bundle %s: %w", path, common.ErrFileNotFound)
		}
		return nil, fmt.Errorf("read model bundle: %w", err)
	}

	var file bundleFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode model bundle %s: %w", path, err)
	}
	if file.Format != BundleFormat {
		return nil, fmt.Errorf("model bundle %s: unsupported format %d", path, file.Format)
	}
	if file.Registry == nil {
		return nil, fmt.Errorf("model bundle %s: missing encoder registry", path)
	}
	if err := compareFields(file.Fields, schema.Names()); err != nil {
		return nil, fmt.Errorf("model bundle %s: %w", path, err)
	}

	clf, err := NewClassifier(file.Classifier.Kind)
	if err != nil {
		return nil, fmt.Errorf("model bundle %s: %w", path, err)
	}
	if err := clf.UnmarshalBinary(file.Classifier.State); err != nil {
		return nil, fmt.Errorf("model bundle %s: %w", path, err)
	}

	b, err := NewBundle(clf, file.Registry, schema.Fields(), file.Metadata)
	if err != nil {
		return nil, fmt.Errorf("model bundle %s: %w", path, err)
	}

	log.Info().
		Str("path", path).
		Str("version", b.metadata.Version).
		Str("classifier", clf.Kind()).
		Msg("Model bundle loaded")
	return b, nil
}

func compareFields(stored, current []string) error {
	inStored := make(map[string]struct{}, len(stored))
	for _, f := range stored {
		inStored[f] = struct{}{}
	}
	inCurrent := make(map[string]struct{}, len(current))
	for _, f := range current {
		inCurrent[f] = struct{}{}
	}

	mismatch := &features.SchemaMismatchError{}
	for _, f := range current {
		if _, ok := inStored[f]; !ok {
			mismatch.Missing = append(mismatch.Missing, f)
		}
	}
	for _, f := range stored {
		if _, ok := inCurrent[f]; !ok {
			mismatch.Unexpected = append(mismatch.Unexpected, f)
		}
	}
	if len(mismatch.Missing) > 0 || len(mismatch.Unexpected) > 0 {
		return mismatch
	}
	if len(stored) != len(current) {
		mismatch.Reordered = true
		return mismatch
	}
	for i := range current {
		if stored[i] != current[i] {
			mismatch.Reordered = true
			return mismatch
		}
	}
	return nil
}
