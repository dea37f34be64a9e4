package registry

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/gridbench/internal/hyper"
)

// Smoothing selects how classifiers smooth estimated probabilities.
type Smoothing int

const (
	SmoothingNone Smoothing = iota
	SmoothingOriginal
	SmoothingLaplace
	SmoothingCestnik
)

var smoothingNames = map[Smoothing]string{
	SmoothingNone:     "NONE",
	SmoothingOriginal: "ORIGINAL",
	SmoothingLaplace:  "LAPLACE",
	SmoothingCestnik:  "CESTNIK",
}

func (s Smoothing) String() string {
	if name, ok := smoothingNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Smoothing(%d)", int(s))
}

// ParseSmoothing maps a configuration token to a Smoothing.
func ParseSmoothing(name string) (Smoothing, error) {
	for s, n := range smoothingNames {
		if n == name {
			return s, nil
		}
	}
	return SmoothingNone, fmt.Errorf("unknown smoothing strategy: %s", name)
}

// TrainData is the input of Classifier.Fit. X is sample-major: X[i] holds
// the discrete feature values of sample i in Features order. States holds the
// number of states of every feature and of the class.
type TrainData struct {
	X         [][]int
	Y         []int
	Features  []string
	ClassName string
	States    map[string]int
}

// Classifier is the contract every model fulfils. The engine only builds
// classifiers through a Factory.
type Classifier interface {
	Fit(data TrainData, smoothing Smoothing) error
	// Score returns the accuracy on X, y.
	Score(X [][]int, y []int) (float64, error)
	ValidHyperparameters() []string
	SetHyperparameters(h hyper.Set) error
	NumberOfNodes() int
	NumberOfEdges() int
	NumberOfStates() int
	// Notes lists non-fatal remarks about the last fit.
	Notes() []string
}

// Discretizer maps continuous values to a small number of ordered states.
// It is fitted on training values only.
type Discretizer interface {
	Fit(values []float64) error
	Transform(v float64) int
	States() int
}

// ErrEmpty is returned when scoring or fitting on no samples.
var ErrEmpty = errors.New("no samples")

// Accuracy is the share of predictions equal to y.
func Accuracy(predicted, y []int) (float64, error) {
	if len(y) == 0 {
		return 0, ErrEmpty
	}
	if len(predicted) != len(y) {
		return 0, fmt.Errorf("accuracy: %d predictions for %d labels", len(predicted), len(y))
	}
	correct := 0
	for i := range y {
		if predicted[i] == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(y)), nil
}
