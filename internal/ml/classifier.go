package ml

import (
	"fmt"
	"sort"
	"sync"
)

// Classifier is a binary classifier over assembled feature vectors. Class 1 is
// Placed, class 0 NotPlaced.
type Classifier interface {
	// Kind names the implementation; it selects the factory on load.
	Kind() string
	Fit(X [][]float64, y []int) error
	Predict(x []float64) (int, error)
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
}

// ProbabilisticClassifier is implemented by classifiers that estimate the
// probability of the positive class.
type ProbabilisticClassifier interface {
	Classifier
	PredictProba(x []float64) (float64, error)
}

// ClassifierFactory returns an untrained classifier ready for Fit or
// UnmarshalBinary.
type ClassifierFactory func() Classifier

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]ClassifierFactory)
)

// RegisterClassifier makes a classifier kind loadable from a bundle. It panics
// on a duplicate kind.
func RegisterClassifier(kind string, factory ClassifierFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, dup := factories[kind]; dup {
		panic(fmt.Sprintf("ml: classifier kind %q registered twice", kind))
	}
	factories[kind] = factory
}

// NewClassifier returns a fresh classifier of the given kind.
func NewClassifier(kind string) (Classifier, error) {
	factoriesMu.RLock()
	factory, ok := factories[kind]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown classifier kind %q (registered: %v)", kind, ClassifierKinds())
	}
	return factory(), nil
}

// ClassifierKinds lists the registered kinds, sorted.
func ClassifierKinds() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
