// Package decisiontree provides a multiway ID3 decision tree over discrete
// features.
package decisiontree

import (
	"fmt"
	"math"

	"github.com/specialistvlad/gridbench/internal/hyper"
	"github.com/specialistvlad/gridbench/internal/registry"
)

// Name is the model name used on the command line.
const Name = "tree"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the classifier with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterModel(Name, func() registry.Classifier { return New() })
}

type node struct {
	class    int
	feature  int // -1 for leaves
	children []*node
}

// Classifier grows a tree by information gain. Each feature splits at most
// once on a path. Features with a single state are dropped before growing.
type Classifier struct {
	// MaxDepth limits the depth of the tree; 0 means unlimited.
	MaxDepth int
	// MinSamplesSplit is the smallest node that may be split.
	MinSamplesSplit int

	root       *node
	states     []int
	classes    int
	nodes      int
	leaves     int
	depth      int
	usedStates int
	notes      []string
}

// New returns a tree with the default hyperparameters.
func New() *Classifier {
	return &Classifier{MinSamplesSplit: 2}
}

func (c *Classifier) ValidHyperparameters() []string {
	return []string{"max_depth", "min_samples_split"}
}

func (c *Classifier) SetHyperparameters(h hyper.Set) error {
	if err := h.Check(c.ValidHyperparameters()); err != nil {
		return err
	}
	if _, err := h.Decode("max_depth", &c.MaxDepth); err != nil {
		return err
	}
	if _, err := h.Decode("min_samples_split", &c.MinSamplesSplit); err != nil {
		return err
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("%w: max_depth must not be negative, got %d", hyper.ErrInvalid, c.MaxDepth)
	}
	if c.MinSamplesSplit < 2 {
		return fmt.Errorf("%w: min_samples_split must be at least 2, got %d", hyper.ErrInvalid, c.MinSamplesSplit)
	}
	return nil
}

func (c *Classifier) Fit(data registry.TrainData, _ registry.Smoothing) error {
	if len(data.Y) == 0 {
		return registry.ErrEmpty
	}
	c.classes = data.States[data.ClassName]
	c.states = make([]int, len(data.Features))
	c.notes = nil
	c.nodes, c.leaves, c.depth, c.usedStates = 0, 0, 0, c.classes

	var features []int
	for f, name := range data.Features {
		c.states[f] = data.States[name]
		if c.states[f] <= 1 {
			c.notes = append(c.notes, fmt.Sprintf("Feature %s dropped: single state", name))
			continue
		}
		features = append(features, f)
	}

	idx := make([]int, len(data.Y))
	for i := range idx {
		idx[i] = i
	}
	used := make(map[int]bool)
	c.root = c.grow(data, idx, features, 0, used)
	for f := range used {
		c.usedStates += c.states[f]
	}
	return nil
}

func (c *Classifier) grow(data registry.TrainData, idx, features []int, depth int, used map[int]bool) *node {
	c.nodes++
	c.depth = max(c.depth, depth)
	counts := c.classCounts(data.Y, idx)
	n := &node{class: argmax(counts), feature: -1}

	if len(features) == 0 || len(idx) < c.MinSamplesSplit || counts[n.class] == len(idx) ||
		(c.MaxDepth > 0 && depth >= c.MaxDepth) {
		c.leaves++
		return n
	}

	best, bestGain := -1, 1e-12
	parent := entropy(counts, len(idx))
	for _, f := range features {
		gain := parent - c.splitEntropy(data, idx, f)
		if gain > bestGain {
			best, bestGain = f, gain
		}
	}
	if best < 0 {
		c.leaves++
		return n
	}

	used[best] = true
	rest := make([]int, 0, len(features)-1)
	for _, f := range features {
		if f != best {
			rest = append(rest, f)
		}
	}
	n.feature = best
	n.children = make([]*node, c.states[best])
	for v, subset := range c.partition(data, idx, best) {
		if len(subset) == 0 {
			c.nodes++
			c.leaves++
			c.depth = max(c.depth, depth+1)
			n.children[v] = &node{class: n.class, feature: -1}
			continue
		}
		n.children[v] = c.grow(data, subset, rest, depth+1, used)
	}
	return n
}

func (c *Classifier) classCounts(y, idx []int) []int {
	counts := make([]int, c.classes)
	for _, i := range idx {
		counts[y[i]]++
	}
	return counts
}

func (c *Classifier) partition(data registry.TrainData, idx []int, f int) [][]int {
	parts := make([][]int, c.states[f])
	for _, i := range idx {
		v := data.X[i][f]
		parts[v] = append(parts[v], i)
	}
	return parts
}

func (c *Classifier) splitEntropy(data registry.TrainData, idx []int, f int) float64 {
	total := 0.0
	for _, subset := range c.partition(data, idx, f) {
		if len(subset) == 0 {
			continue
		}
		w := float64(len(subset)) / float64(len(idx))
		total += w * entropy(c.classCounts(data.Y, subset), len(subset))
	}
	return total
}

func entropy(counts []int, n int) float64 {
	h := 0.0
	for _, k := range counts {
		if k == 0 {
			continue
		}
		p := float64(k) / float64(n)
		h -= p * math.Log2(p)
	}
	return h
}

// argmax returns the first index of the largest count.
func argmax(counts []int) int {
	best := 0
	for i, k := range counts {
		if k > counts[best] {
			best = i
		}
	}
	return best
}

func (c *Classifier) predict(row []int) int {
	n := c.root
	for n.feature >= 0 {
		v := row[n.feature]
		if v < 0 || v >= len(n.children) {
			break
		}
		n = n.children[v]
	}
	return n.class
}

func (c *Classifier) Score(X [][]int, y []int) (float64, error) {
	if c.root == nil {
		return 0, fmt.Errorf("decision tree: score before fit")
	}
	predicted := make([]int, len(X))
	for i, row := range X {
		predicted[i] = c.predict(row)
	}
	return registry.Accuracy(predicted, y)
}

func (c *Classifier) NumberOfNodes() int { return c.nodes }

func (c *Classifier) NumberOfEdges() int { return max(c.nodes-1, 0) }

// NumberOfStates counts the states of the class and of every feature the
// tree splits on.
func (c *Classifier) NumberOfStates() int { return c.usedStates }

// Leaves is the number of leaf nodes.
func (c *Classifier) Leaves() int { return c.leaves }

// Depth is the length of the longest root-to-leaf path.
func (c *Classifier) Depth() int { return c.depth }

func (c *Classifier) Notes() []string { return c.notes }
