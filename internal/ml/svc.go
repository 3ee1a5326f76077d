package ml

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	libSvm "github.com/ewalker544/libsvm-go"
	"gonum.org/v1/gonum/stat"
)

// SVCKind is the bundle name of the RBF support vector classifier.
const SVCKind = "svc"

func init() {
	RegisterClassifier(SVCKind, func() Classifier { return NewSVC(SVCParams{}) })
}

// SVCParams configures the RBF C-SVC. A zero C means 1 and a zero Gamma means
// "scale": 1 / (n_features * Var(X)) computed on the training matrix.
type SVCParams struct {
	C     float64
	Gamma float64
}

// SVC is an RBF-kernel C-SVC with probability estimates, backed by libsvm.
type SVC struct {
	params SVCParams
	gamma  float64
	model  *libSvm.Model
}

// NewSVC returns an untrained classifier.
func NewSVC(params SVCParams) *SVC {
	if params.C <= 0 {
		params.C = 1
	}
	return &SVC{params: params}
}

func (s *SVC) Kind() string { return SVCKind }

// Gamma returns the kernel coefficient used for the last Fit.
func (s *SVC) Gamma() float64 { return s.gamma }

func (s *SVC) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return errors.New("svc: empty training set")
	}
	if len(X) != len(y) {
		return fmt.Errorf("svc: %d rows but %d labels", len(X), len(y))
	}

	s.gamma = s.params.Gamma
	if s.gamma <= 0 {
		s.gamma = scaleGamma(X)
	}

	param := libSvm.NewParameter()
	param.SvmType = libSvm.C_SVC
	param.KernelType = libSvm.RBF
	param.C = s.params.C
	param.Gamma = s.gamma
	param.Probability = true
	param.QuietMode = true

	// libsvm reads problems from its text format only.
	path, err := writeProblem(X, y)
	if err != nil {
		return fmt.Errorf("svc: %w", err)
	}
	defer os.Remove(path)

	problem, err := libSvm.NewProblem(path, param)
	if err != nil {
		return fmt.Errorf("svc: read problem: %w", err)
	}
	model := libSvm.NewModel(param)
	if err := model.Train(problem); err != nil {
		return fmt.Errorf("svc: train: %w", err)
	}
	s.model = model
	return nil
}

func (s *SVC) Predict(x []float64) (int, error) {
	if s.model == nil {
		return 0, errors.New("svc: model not trained")
	}
	label := s.model.Predict(sparse(x))
	return int(math.Round(label)), nil
}

// PredictProba returns the Platt-scaled probability of class 1.
//
// libsvm orders the estimates by the order labels first appear in the
// training problem, not by class id, so the winning estimate is matched to
// the returned label instead of being read by index.
func (s *SVC) PredictProba(x []float64) (float64, error) {
	if s.model == nil {
		return 0, errors.New("svc: model not trained")
	}
	label, probs := s.model.PredictProbability(sparse(x))
	if len(probs) != 2 {
		return 0, fmt.Errorf("svc: expected 2 class probabilities, got %d", len(probs))
	}
	best := probs[0]
	if probs[1] > best {
		best = probs[1]
	}
	if int(math.Round(label)) == 1 {
		return best, nil
	}
	return 1 - best, nil
}

// MarshalBinary returns the model in libsvm's text model format.
func (s *SVC) MarshalBinary() ([]byte, error) {
	if s.model == nil {
		return nil, errors.New("svc: model not trained")
	}
	f, err := os.CreateTemp("", "svc-model-*.txt")
	if err != nil {
		return nil, err
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	if err := s.model.Dump(path); err != nil {
		return nil, fmt.Errorf("svc: dump model: %w", err)
	}
	return os.ReadFile(path)
}

func (s *SVC) UnmarshalBinary(data []byte) error {
	if len(data) == 0 {
		return errors.New("svc: empty model state")
	}
	f, err := os.CreateTemp("", "svc-model-*.txt")
	if err != nil {
		return err
	}
	path := f.Name()
	defer os.Remove(path)
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	model := libSvm.NewModel(libSvm.NewParameter())
	if err := model.ReadModel(path); err != nil {
		return fmt.Errorf("svc: read model: %w", err)
	}
	s.model = model
	return nil
}

// scaleGamma mirrors gamma="scale": 1 / (n_features * Var(X)) with the
// variance taken over every element of X.
func scaleGamma(X [][]float64) float64 {
	nFeatures := len(X[0])
	all := make([]float64, 0, len(X)*nFeatures)
	for _, row := range X {
		all = append(all, row...)
	}
	v := stat.PopVariance(all, nil)
	if v == 0 || nFeatures == 0 {
		return 1
	}
	return 1 / (float64(nFeatures) * v)
}

func sparse(x []float64) map[int]float64 {
	m := make(map[int]float64, len(x))
	for i, v := range x {
		m[i+1] = v
	}
	return m
}

func writeProblem(X [][]float64, y []int) (string, error) {
	f, err := os.CreateTemp("", "svc-problem-*.txt")
	if err != nil {
		return "", err
	}
	w := bufio.NewWriter(f)
	for i, row := range X {
		w.WriteString(strconv.Itoa(y[i]))
		for j, v := range row {
			w.WriteByte(' ')
			w.WriteString(strconv.Itoa(j + 1))
			w.WriteByte(':')
			w.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
