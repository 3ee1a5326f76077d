package ml

import (
	"encoding/json"
	"errors"
	"math"
	"sync"
	"time"

	"placement-predictor/internal/encoding"
	"placement-predictor/internal/features"
	"placement-predictor/internal/schema"
)

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu             sync.Mutex
	predictions    map[string]int
	failures       map[string]int
	latencySamples int
	confidences    []float64
	modelAge       float64
}

func (m *MockMetrics) PredictionsInc(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.predictions == nil {
		m.predictions = make(map[string]int)
	}
	m.predictions[label]++
}

func (m *MockMetrics) PredictionFailuresInc(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures == nil {
		m.failures = make(map[string]int)
	}
	m.failures[kind]++
}

func (m *MockMetrics) PredictionLatencyObserve(float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySamples++
}

func (m *MockMetrics) PredictionConfidenceObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confidences = append(m.confidences, v)
}

func (m *MockMetrics) ModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

// StubKind is the bundle kind of StubClassifier.
const StubKind = "stub"

var registerStub sync.Once

// RegisterStubClassifier makes stub bundles loadable. Only tests call it, so
// binaries never accept a bundle of kind "stub".
func RegisterStubClassifier() {
	registerStub.Do(func() {
		RegisterClassifier(StubKind, func() Classifier { return &StubClassifier{} })
	})
}

// StubClassifier predicts Placed when the feature at Index is at least
// Threshold. Fit learns Threshold as the midpoint between the class means of
// that feature. Its probability is a fixed function of the distance to the
// threshold, which keeps tests deterministic without libsvm.
type StubClassifier struct {
	Index     int     `json:"index"`
	Threshold float64 `json:"threshold"`
	Fitted    bool    `json:"fitted"`
}

func (s *StubClassifier) Kind() string { return StubKind }

func (s *StubClassifier) Fit(X [][]float64, y []int) error {
	var sum [2]float64
	var n [2]int
	for i, row := range X {
		sum[y[i]] += row[s.Index]
		n[y[i]]++
	}
	if n[0] == 0 || n[1] == 0 {
		return errors.New("stub: need both classes")
	}
	s.Threshold = (sum[0]/float64(n[0]) + sum[1]/float64(n[1])) / 2
	s.Fitted = true
	return nil
}

func (s *StubClassifier) Predict(x []float64) (int, error) {
	if !s.Fitted {
		return 0, errors.New("stub: not fitted")
	}
	if x[s.Index] >= s.Threshold {
		return 1, nil
	}
	return 0, nil
}

func (s *StubClassifier) PredictProba(x []float64) (float64, error) {
	if !s.Fitted {
		return 0, errors.New("stub: not fitted")
	}
	d := math.Max(-10, math.Min(10, x[s.Index]-s.Threshold))
	return 0.5 + d*0.045, nil
}

func (s *StubClassifier) MarshalBinary() ([]byte, error) { return json.Marshal(s) }

func (s *StubClassifier) UnmarshalBinary(data []byte) error { return json.Unmarshal(data, s) }

// Predictions returns how many predictions with label were counted.
func (m *MockMetrics) Predictions(label string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictions[label]
}

// Failures returns how many failures of kind were counted.
func (m *MockMetrics) Failures(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[kind]
}

// StubBundle returns a bundle whose registry knows every vocabulary label and
// whose stub classifier places a student when ssc_percentage >= 60.
func StubBundle() *Bundle {
	columns := make(map[string][]string)
	for _, f := range schema.Fields() {
		if f.Kind == schema.Categorical {
			columns[f.Name] = f.Vocabulary
		}
	}
	clf := &StubClassifier{Index: 1, Threshold: 60, Fitted: true}
	b, err := NewBundle(clf, encoding.FitRegistry(columns), schema.Fields(), Metadata{
		Version:   "20240101-000000",
		TrainedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Target:    "status",
	})
	if err != nil {
		panic(err)
	}
	return b
}

// SampleRecord returns a complete, valid record for the fixed schema.
func SampleRecord() features.Record {
	return features.Record{
		schema.Gender:              features.Cat("M"),
		schema.SSCPercentage:       features.Num(67),
		schema.SSCBoard:            features.Cat("Others"),
		schema.HSCPercentage:       features.Num(91),
		schema.HSCBoard:            features.Cat("Others"),
		schema.HSCSubject:          features.Cat("Commerce"),
		schema.DegreePercentage:    features.Num(58),
		schema.UndergradDegree:     features.Cat("Sci&Tech"),
		schema.WorkExperience:      features.Cat("No"),
		schema.EmpTestPercentage:   features.Num(55),
		schema.Specialisation:      features.Cat("Mkt&HR"),
		schema.MBAPercent:          features.Num(58.8),
		schema.YearsExperience:     features.Num(1),
		schema.SkillsMatchPercent:  features.Num(70),
		schema.NumCertifications:   features.Num(2),
		schema.InternshipCompleted: features.Cat("Yes"),
		schema.InterviewScore:      features.Num(7.5),
		schema.CompanyTier:         features.Cat("Tier 2"),
		schema.JobCompetitionLevel: features.Cat("Medium"),
	}
}
