package ml

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blobs returns two well separated gaussian clouds in three dimensions.
func blobs(n int) ([][]float64, []int) {
	rng := rand.New(rand.NewPCG(7, 11))
	X := make([][]float64, 0, 2*n)
	y := make([]int, 0, 2*n)
	for i := 0; i < n; i++ {
		X = append(X, []float64{2 + rng.NormFloat64()*0.3, 2 + rng.NormFloat64()*0.3, rng.NormFloat64() * 0.3})
		y = append(y, 1)
		X = append(X, []float64{-2 + rng.NormFloat64()*0.3, -2 + rng.NormFloat64()*0.3, rng.NormFloat64() * 0.3})
		y = append(y, 0)
	}
	return X, y
}

func TestScaleGamma(t *testing.T) {
	assert.InDelta(t, 0.5, scaleGamma([][]float64{{0, 2}, {2, 0}}), 1e-12)
	assert.Equal(t, 1.0, scaleGamma([][]float64{{3, 3}, {3, 3}}))
}

func TestSVC_FitPredict(t *testing.T) {
	X, y := blobs(30)
	svc := NewSVC(SVCParams{})
	require.NoError(t, svc.Fit(X, y))
	assert.Greater(t, svc.Gamma(), 0.0)

	eval, err := Evaluate(svc, X, y)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, eval.Accuracy, 0.95)

	pos := []float64{2, 2, 0}
	label, err := svc.Predict(pos)
	require.NoError(t, err)
	assert.Equal(t, 1, label)

	p1, err := svc.PredictProba(pos)
	require.NoError(t, err)
	p2, err := svc.PredictProba(pos)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
	assert.GreaterOrEqual(t, p1, 0.0)
	assert.LessOrEqual(t, p1, 1.0)
	assert.Greater(t, p1, 0.5)

	neg, err := svc.PredictProba([]float64{-2, -2, 0})
	require.NoError(t, err)
	assert.Less(t, neg, 0.5)
}

func TestSVC_PredictProba_TrainingRowOrder(t *testing.T) {
	X, y := blobs(30)

	// blobs starts with a Placed row; swap each pair so NotPlaced comes first
	swapped := make([][]float64, len(X))
	swappedY := make([]int, len(y))
	for i := 0; i < len(X); i += 2 {
		swapped[i], swapped[i+1] = X[i+1], X[i]
		swappedY[i], swappedY[i+1] = y[i+1], y[i]
	}
	require.Equal(t, 0, swappedY[0])

	tests := []struct {
		name string
		X    [][]float64
		y    []int
	}{
		{"placed first", X, y},
		{"not placed first", swapped, swappedY},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewSVC(SVCParams{})
			require.NoError(t, svc.Fit(tc.X, tc.y))

			pos, err := svc.PredictProba([]float64{2, 2, 0})
			require.NoError(t, err)
			assert.Greater(t, pos, 0.5)

			neg, err := svc.PredictProba([]float64{-2, -2, 0})
			require.NoError(t, err)
			assert.Less(t, neg, 0.5)

			state, err := svc.MarshalBinary()
			require.NoError(t, err)
			restored := NewSVC(SVCParams{})
			require.NoError(t, restored.UnmarshalBinary(state))

			again, err := restored.PredictProba([]float64{2, 2, 0})
			require.NoError(t, err)
			assert.Greater(t, again, 0.5)
		})
	}
}

func TestSVC_MarshalRoundTrip(t *testing.T) {
	X, y := blobs(20)
	svc := NewSVC(SVCParams{C: 2, Gamma: 0.2})
	require.NoError(t, svc.Fit(X, y))
	assert.Equal(t, 0.2, svc.Gamma())

	state, err := svc.MarshalBinary()
	require.NoError(t, err)
	require.NotEmpty(t, state)

	restored, err := NewClassifier(SVCKind)
	require.NoError(t, err)
	require.NoError(t, restored.UnmarshalBinary(state))

	for _, x := range X[:10] {
		want, err := svc.Predict(x)
		require.NoError(t, err)
		got, err := restored.Predict(x)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestSVC_Errors(t *testing.T) {
	svc := NewSVC(SVCParams{})
	_, err := svc.Predict([]float64{1})
	assert.Error(t, err)
	_, err = svc.MarshalBinary()
	assert.Error(t, err)
	assert.Error(t, svc.Fit(nil, nil))
	assert.Error(t, svc.Fit([][]float64{{1}}, []int{1, 0}))
	assert.Error(t, svc.UnmarshalBinary(nil))
}

func TestClassifierRegistry(t *testing.T) {
	assert.Contains(t, ClassifierKinds(), SVCKind)
	assert.Contains(t, ClassifierKinds(), StubKind)

	_, err := NewClassifier("forest")
	assert.Error(t, err)

	assert.Panics(t, func() {
		RegisterClassifier(SVCKind, func() Classifier { return NewSVC(SVCParams{}) })
	})
}
