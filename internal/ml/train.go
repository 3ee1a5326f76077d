package ml

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"placement-predictor/internal/encoding"
	"placement-predictor/internal/features"
	"placement-predictor/internal/schema"
)

// Table is the dataset view training needs.
type Table interface {
	Len() int
	Has(column string) bool
	Strings(column string) ([]string, error)
	Records(fields []schema.Field) ([]features.Record, error)
}

// TrainOptions tunes Train. The zero value trains an SVC with default
// parameters.
type TrainOptions struct {
	Classifier Classifier
	// ImportanceRepeats enables permutation importance with that many
	// shuffles per feature. Zero skips it.
	ImportanceRepeats int
	// Now stamps the bundle; defaults to time.Now.
	Now func() time.Time
}

// Evaluation holds in-sample scores with Placed as the positive class.
type Evaluation struct {
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
}

// Train fits the encoder registry and the classifier on tbl and returns the
// resulting bundle. Any error aborts training; nothing is persisted here.
func Train(ctx context.Context, tbl Table, target string, opts TrainOptions) (*Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if tbl.Len() == 0 {
		return nil, errors.New("training dataset is empty")
	}
	if !tbl.Has(target) {
		return nil, fmt.Errorf("target column: %w", &features.SchemaMismatchError{Missing: []string{target}})
	}

	y, err := targetLabels(tbl, target)
	if err != nil {
		return nil, err
	}

	fields := schema.Fields()
	recs, err := tbl.Records(fields)
	if err != nil {
		return nil, fmt.Errorf("training dataset: %w", err)
	}

	registry, err := fitRegistry(recs)
	if err != nil {
		return nil, err
	}
	asm, err := features.NewAssembler(fields, registry)
	if err != nil {
		return nil, err
	}
	X, err := asm.AssembleAll(recs)
	if err != nil {
		return nil, fmt.Errorf("assemble training matrix: %w", err)
	}

	clf := opts.Classifier
	if clf == nil {
		clf = NewSVC(SVCParams{})
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	if err := clf.Fit(X, y); err != nil {
		return nil, fmt.Errorf("fit %s: %w", clf.Kind(), err)
	}

	eval, err := Evaluate(clf, X, y)
	if err != nil {
		return nil, err
	}

	var importance []FeatureImportance
	if opts.ImportanceRepeats > 0 {
		importance, err = PermutationImportance(clf, X, y, asm.Fields(), PermutationConfig{
			Repeats: opts.ImportanceRepeats,
			Seed:    42,
		})
		if err != nil {
			return nil, fmt.Errorf("feature importance: %w", err)
		}
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	trainedAt := now().UTC()
	meta := Metadata{
		Version:      trainedAt.Format("20060102-150405"),
		TrainedAt:    trainedAt,
		Target:       target,
		TrainingRows: len(X),
		Accuracy:     eval.Accuracy,
		Precision:    eval.Precision,
		Recall:       eval.Recall,
		F1:           eval.F1,
		Importance:   importance,
	}

	log.Info().
		Str("classifier", clf.Kind()).
		Int("rows", len(X)).
		Int("features", len(fields)).
		Float64("accuracy", eval.Accuracy).
		Float64("f1", eval.F1).
		Dur("duration", time.Since(start)).
		Msg("Classifier trained")

	return NewBundle(clf, registry, fields, meta)
}

func targetLabels(tbl Table, target string) ([]int, error) {
	raw, err := tbl.Strings(target)
	if err != nil {
		return nil, fmt.Errorf("target column: %w", err)
	}

	y := make([]int, len(raw))
	var placed int
	for i, s := range raw {
		status, err := schema.ParseStatus(s)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, &features.ValidationError{Field: target, Value: s, Reason: err.Error()})
		}
		y[i] = int(status)
		if status == schema.Placed {
			placed++
		}
	}
	if placed == 0 || placed == len(y) {
		return nil, fmt.Errorf("target column %s must contain both Placed and NotPlaced rows", target)
	}
	return y, nil
}

func fitRegistry(recs []features.Record) (*encoding.Registry, error) {
	columns := make(map[string][]string)
	for _, name := range schema.CategoricalNames() {
		field, _ := schema.Lookup(name)
		values := make([]string, len(recs))
		warned := make(map[string]bool)
		for i, rec := range recs {
			label := rec[name].Label
			if label == "" {
				return nil, fmt.Errorf("row %d: %w", i, &features.ValidationError{Field: name, Reason: "missing value"})
			}
			if !field.Known(label) && !warned[label] {
				warned[label] = true
				log.Warn().
					Str("field", name).
					Str("label", label).
					Msg("Label not offered by the prediction form")
			}
			values[i] = label
		}
		columns[name] = values
	}
	return encoding.FitRegistry(columns), nil
}

// Evaluate scores clf on X against y.
func Evaluate(clf Classifier, X [][]float64, y []int) (Evaluation, error) {
	if len(X) == 0 {
		return Evaluation{}, errors.New("evaluate: no rows")
	}
	var tp, fp, fn, correct int
	for i, x := range X {
		pred, err := clf.Predict(x)
		if err != nil {
			return Evaluation{}, fmt.Errorf("evaluate row %d: %w", i, err)
		}
		if pred == y[i] {
			correct++
		}
		switch {
		case pred == 1 && y[i] == 1:
			tp++
		case pred == 1 && y[i] == 0:
			fp++
		case pred == 0 && y[i] == 1:
			fn++
		}
	}

	e := Evaluation{Accuracy: float64(correct) / float64(len(X))}
	if tp+fp > 0 {
		e.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		e.Recall = float64(tp) / float64(tp+fn)
	}
	if e.Precision+e.Recall > 0 {
		e.F1 = 2 * e.Precision * e.Recall / (e.Precision + e.Recall)
	}
	return e, nil
}
