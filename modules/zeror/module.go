// Package zeror provides the majority-class baseline classifier.
package zeror

import (
	"github.com/specialistvlad/gridbench/internal/hyper"
	"github.com/specialistvlad/gridbench/internal/registry"
)

// Name is the model name used on the command line.
const Name = "zeror"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the classifier with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterModel(Name, func() registry.Classifier { return &Classifier{} })
}

// Classifier always predicts the most frequent training class; ties go to the
// lowest class code.
type Classifier struct {
	majority int
	states   int
}

func (c *Classifier) Fit(data registry.TrainData, _ registry.Smoothing) error {
	if len(data.Y) == 0 {
		return registry.ErrEmpty
	}
	counts := make(map[int]int)
	for _, label := range data.Y {
		counts[label]++
	}
	c.majority = data.Y[0]
	for label, n := range counts {
		best := counts[c.majority]
		if n > best || (n == best && label < c.majority) {
			c.majority = label
		}
	}
	c.states = data.States[data.ClassName]
	return nil
}

func (c *Classifier) Score(X [][]int, y []int) (float64, error) {
	predicted := make([]int, len(X))
	for i := range predicted {
		predicted[i] = c.majority
	}
	return registry.Accuracy(predicted, y)
}

func (c *Classifier) ValidHyperparameters() []string { return nil }

func (c *Classifier) SetHyperparameters(h hyper.Set) error {
	return h.Check(c.ValidHyperparameters())
}

func (c *Classifier) NumberOfNodes() int  { return 1 }
func (c *Classifier) NumberOfEdges() int  { return 0 }
func (c *Classifier) NumberOfStates() int { return c.states }
func (c *Classifier) Notes() []string     { return nil }
