package ml

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// FeatureImportance is the permutation importance of one feature: the mean
// drop in accuracy when that feature's column is shuffled.
type FeatureImportance struct {
	Name       string  `json:"name"`
	Importance float64 `json:"importance"`
	StdDev     float64 `json:"std_dev"`
}

// PermutationConfig configures PermutationImportance.
type PermutationConfig struct {
	Repeats int
	Seed    uint64
}

// PermutationImportance scores every column of X against clf. The result is
// sorted by decreasing importance. X is not modified.
func PermutationImportance(clf Classifier, X [][]float64, y []int, names []string, cfg PermutationConfig) ([]FeatureImportance, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("permutation importance: no rows")
	}
	if len(names) != len(X[0]) {
		return nil, fmt.Errorf("permutation importance: %d names for %d features", len(names), len(X[0]))
	}
	if cfg.Repeats <= 0 {
		cfg.Repeats = 5
	}

	base, err := Evaluate(clf, X, y)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	shuffled := make([][]float64, len(X))
	for i, row := range X {
		shuffled[i] = append([]float64(nil), row...)
	}

	out := make([]FeatureImportance, len(names))
	drops := make([]float64, cfg.Repeats)
	for j, name := range names {
		col := make([]float64, len(X))
		for i := range X {
			col[i] = X[i][j]
		}
		for r := 0; r < cfg.Repeats; r++ {
			rng.Shuffle(len(col), func(a, b int) { col[a], col[b] = col[b], col[a] })
			for i := range shuffled {
				shuffled[i][j] = col[i]
			}
			e, err := Evaluate(clf, shuffled, y)
			if err != nil {
				return nil, err
			}
			drops[r] = base.Accuracy - e.Accuracy
		}
		for i := range shuffled {
			shuffled[i][j] = X[i][j]
		}

		mean, std := stat.MeanStdDev(drops, nil)
		if math.IsNaN(std) {
			std = 0
		}
		out[j] = FeatureImportance{Name: name, Importance: mean, StdDev: std}
	}

	sort.SliceStable(out, func(a, b int) bool { return out[a].Importance > out[b].Importance })
	return out, nil
}
