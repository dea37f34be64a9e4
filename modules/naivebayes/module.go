// Package naivebayes provides a discrete naive Bayes classifier.
package naivebayes

import (
	"fmt"
	"math"

	"github.com/specialistvlad/gridbench/internal/hyper"
	"github.com/specialistvlad/gridbench/internal/registry"
)

// Name is the model name used on the command line.
const Name = "nb"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the classifier with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterModel(Name, func() registry.Classifier { return &Classifier{} })
}

// Classifier estimates class priors and per-feature conditional tables with
// additive smoothing. The pseudo-count comes from the smoothing strategy
// unless the alpha hyperparameter is set.
type Classifier struct {
	alpha *float64

	classes  int
	states   []int
	logPrior []float64
	// logCond[f][c][v] = log P(x_f = v | c)
	logCond [][][]float64
	notes   []string
}

func (c *Classifier) ValidHyperparameters() []string { return []string{"alpha"} }

func (c *Classifier) SetHyperparameters(h hyper.Set) error {
	if err := h.Check(c.ValidHyperparameters()); err != nil {
		return err
	}
	var alpha float64
	ok, err := h.Decode("alpha", &alpha)
	if err != nil {
		return err
	}
	if ok {
		if alpha < 0 {
			return fmt.Errorf("%w: alpha must not be negative, got %v", hyper.ErrInvalid, alpha)
		}
		c.alpha = &alpha
	}
	return nil
}

// pseudoCount returns the additive count for a feature with k states.
func (c *Classifier) pseudoCount(smoothing registry.Smoothing, samples, k int) float64 {
	if c.alpha != nil {
		return *c.alpha
	}
	switch smoothing {
	case registry.SmoothingLaplace:
		return 1
	case registry.SmoothingOriginal:
		return 1 / float64(samples)
	case registry.SmoothingCestnik:
		return 1 / float64(k)
	default:
		return 0
	}
}

func (c *Classifier) Fit(data registry.TrainData, smoothing registry.Smoothing) error {
	n := len(data.Y)
	if n == 0 {
		return registry.ErrEmpty
	}
	c.classes = data.States[data.ClassName]
	if c.classes == 0 {
		return fmt.Errorf("class %s has no states", data.ClassName)
	}
	c.notes = nil
	if c.alpha == nil && smoothing == registry.SmoothingNone {
		c.notes = append(c.notes, "No smoothing: values unseen in training get zero probability")
	}

	classCount := make([]float64, c.classes)
	for _, label := range data.Y {
		classCount[label]++
	}
	a := c.pseudoCount(smoothing, n, c.classes)
	c.logPrior = make([]float64, c.classes)
	for k := range c.classes {
		c.logPrior[k] = math.Log((classCount[k] + a) / (float64(n) + a*float64(c.classes)))
	}

	c.states = make([]int, len(data.Features))
	c.logCond = make([][][]float64, len(data.Features))
	for f, feature := range data.Features {
		k := data.States[feature]
		c.states[f] = k
		counts := make([][]float64, c.classes)
		for cl := range counts {
			counts[cl] = make([]float64, k)
		}
		for i, row := range data.X {
			counts[data.Y[i]][row[f]]++
		}
		a := c.pseudoCount(smoothing, n, k)
		c.logCond[f] = make([][]float64, c.classes)
		for cl := range c.classes {
			c.logCond[f][cl] = make([]float64, k)
			for v := range k {
				c.logCond[f][cl][v] = math.Log((counts[cl][v] + a) / (classCount[cl] + a*float64(k)))
			}
		}
	}
	return nil
}

func (c *Classifier) predict(row []int) int {
	best, bestLog := 0, math.Inf(-1)
	for cl := range c.classes {
		lp := c.logPrior[cl]
		for f, v := range row {
			if v < 0 || v >= c.states[f] {
				continue
			}
			lp += c.logCond[f][cl][v]
		}
		if lp > bestLog {
			best, bestLog = cl, lp
		}
	}
	return best
}

func (c *Classifier) Score(X [][]int, y []int) (float64, error) {
	if c.logPrior == nil {
		return 0, fmt.Errorf("naive bayes: score before fit")
	}
	predicted := make([]int, len(X))
	for i, row := range X {
		predicted[i] = c.predict(row)
	}
	return registry.Accuracy(predicted, y)
}

func (c *Classifier) NumberOfNodes() int { return len(c.states) + 1 }
func (c *Classifier) NumberOfEdges() int { return len(c.states) }

func (c *Classifier) NumberOfStates() int {
	total := c.classes
	for _, k := range c.states {
		total += k
	}
	return total
}

func (c *Classifier) Notes() []string { return c.notes }
