// Package dataset loads classification datasets and produces the discrete
// train/test matrices classifiers are fitted on.
//
// Numeric columns are discretized per split: the discretizer is fitted on the
// training rows of that split only, so test rows never influence the cut
// points.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/specialistvlad/gridbench/internal/registry"
)

var (
	// ErrUnknownDataset is returned when a catalog has no dataset by that name.
	ErrUnknownDataset = errors.New("unknown dataset")
	// ErrMalformed is returned for unusable dataset contents.
	ErrMalformed = errors.New("malformed dataset")
)

// Dataset is the contract the grid engine consumes.
type Dataset interface {
	Name() string
	Features() []string
	ClassName() string
	// Len is the number of samples.
	Len() int
	// Labels returns the class code of every sample.
	Labels() []int
	// Tensors returns the raw sample-major feature values and the labels.
	Tensors() ([][]float64, []int)
	// TrainTest builds the discrete matrices of a split.
	TrainTest(train, test []int) (Split, error)
}

// Split holds the discrete matrices of one train/test split. States is the
// number of states of every feature and of the class after discretization.
type Split struct {
	XTrain, XTest [][]int
	YTrain, YTest []int
	Features      []string
	ClassName     string
	States        map[string]int
}

// Train returns the training part as classifier input.
func (s Split) Train() registry.TrainData {
	return s.TrainRows(nil)
}

// TrainRows returns the training rows selected by idx as classifier input.
// A nil idx selects every row.
func (s Split) TrainRows(idx []int) registry.TrainData {
	X, y := s.XTrain, s.YTrain
	if idx != nil {
		X, y = Rows(s.XTrain, s.YTrain, idx)
	}
	return registry.TrainData{X: X, Y: y, Features: s.Features, ClassName: s.ClassName, States: s.States}
}

// Rows selects the samples idx of X and y.
func Rows(X [][]int, y []int, idx []int) ([][]int, []int) {
	xs := make([][]int, len(idx))
	ys := make([]int, len(idx))
	for i, j := range idx {
		xs[i] = X[j]
		ys[i] = y[j]
	}
	return xs, ys
}

// Options control how a Table turns columns into discrete states.
type Options struct {
	// Discretize enables per-split discretization of numeric columns with the
	// discretizer registered under Algo. Without it numeric columns must hold
	// non-negative integers, which are used as states directly.
	Discretize bool
	Algo       string
	Registry   *registry.Registry
}

type column struct {
	name    string
	numeric bool
	values  []float64
	codes   []int
	states  int
}

// Table is an in-memory dataset. The last column is the class.
type Table struct {
	name      string
	features  []string
	className string
	columns   []column
	labels    []int
	classes   int
	opts      Options
}

// NewTable builds a dataset from a header and string records.
func NewTable(name string, header []string, records [][]string, opts Options) (*Table, error) {
	if len(header) < 2 {
		return nil, fmt.Errorf("%w: %s needs at least one feature and the class, got %d columns", ErrMalformed, name, len(header))
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s has no samples", ErrMalformed, name)
	}
	for i, rec := range records {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("%w: %s row %d has %d fields, expected %d", ErrMalformed, name, i+1, len(rec), len(header))
		}
	}

	t := &Table{
		name:      name,
		features:  append([]string(nil), header[:len(header)-1]...),
		className: header[len(header)-1],
		opts:      opts,
	}
	cells := func(j int) []string {
		out := make([]string, len(records))
		for i, rec := range records {
			out[i] = strings.TrimSpace(rec[j])
		}
		return out
	}

	needDiscretizer := false
	for j, feature := range t.features {
		col, err := newColumn(feature, cells(j), opts.Discretize)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		needDiscretizer = needDiscretizer || (col.numeric && opts.Discretize)
		t.columns = append(t.columns, col)
	}
	t.labels, t.classes = nominal(cells(len(header) - 1))

	if needDiscretizer {
		if opts.Registry == nil {
			return nil, fmt.Errorf("%s: discretization requested without a registry", name)
		}
		if _, err := opts.Registry.CreateDiscretizer(opts.Algo); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return t, nil
}

func newColumn(name string, cells []string, discretize bool) (column, error) {
	values := make([]float64, len(cells))
	numeric := true
	for i, c := range cells {
		v, err := strconv.ParseFloat(c, 64)
		if err != nil {
			numeric = false
			break
		}
		values[i] = v
	}
	if !numeric {
		codes, states := nominal(cells)
		return column{name: name, codes: codes, states: states}, nil
	}
	if discretize {
		return column{name: name, numeric: true, values: values}, nil
	}
	codes := make([]int, len(values))
	states := 0
	for i, v := range values {
		if v < 0 || v != math.Trunc(v) {
			return column{}, fmt.Errorf("%w: column %s holds %v, which is not a state; enable discretization", ErrMalformed, name, v)
		}
		codes[i] = int(v)
		states = max(states, codes[i]+1)
	}
	return column{name: name, codes: codes, states: states}, nil
}

// nominal codes values by their position in the sorted distinct values.
func nominal(cells []string) ([]int, int) {
	distinct := make(map[string]int)
	for _, c := range cells {
		distinct[c] = 0
	}
	keys := make([]string, 0, len(distinct))
	for k := range distinct {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		distinct[k] = i
	}
	codes := make([]int, len(cells))
	for i, c := range cells {
		codes[i] = distinct[c]
	}
	return codes, len(keys)
}

// Name implements Dataset.
func (t *Table) Name() string { return t.name }

// Features implements Dataset.
func (t *Table) Features() []string { return append([]string(nil), t.features...) }

// ClassName implements Dataset.
func (t *Table) ClassName() string { return t.className }

// Len implements Dataset.
func (t *Table) Len() int { return len(t.labels) }

// Labels implements Dataset.
func (t *Table) Labels() []int { return append([]int(nil), t.labels...) }

// Tensors implements Dataset.
func (t *Table) Tensors() ([][]float64, []int) {
	X := make([][]float64, t.Len())
	for i := range X {
		row := make([]float64, len(t.columns))
		for j, col := range t.columns {
			if col.values != nil {
				row[j] = col.values[i]
			} else {
				row[j] = float64(col.codes[i])
			}
		}
		X[i] = row
	}
	return X, t.Labels()
}

// TrainTest implements Dataset.
func (t *Table) TrainTest(train, test []int) (Split, error) {
	for _, idx := range [][]int{train, test} {
		for _, i := range idx {
			if i < 0 || i >= t.Len() {
				return Split{}, fmt.Errorf("%s: sample index %d out of range [0, %d)", t.name, i, t.Len())
			}
		}
	}

	s := Split{
		XTrain:    makeMatrix(len(train), len(t.columns)),
		XTest:     makeMatrix(len(test), len(t.columns)),
		Features:  t.Features(),
		ClassName: t.className,
		States:    make(map[string]int, len(t.columns)+1),
	}
	for j, col := range t.columns {
		codes := col.codes
		states := col.states
		if col.numeric {
			d, err := t.opts.Registry.CreateDiscretizer(t.opts.Algo)
			if err != nil {
				return Split{}, err
			}
			fitValues := make([]float64, len(train))
			for i, idx := range train {
				fitValues[i] = col.values[idx]
			}
			if err := d.Fit(fitValues); err != nil {
				return Split{}, fmt.Errorf("%s: discretize %s: %w", t.name, col.name, err)
			}
			codes = make([]int, len(col.values))
			for i, v := range col.values {
				codes[i] = d.Transform(v)
			}
			states = d.States()
		}
		for i, idx := range train {
			s.XTrain[i][j] = codes[idx]
		}
		for i, idx := range test {
			s.XTest[i][j] = codes[idx]
		}
		s.States[col.name] = states
	}
	s.YTrain = pick(t.labels, train)
	s.YTest = pick(t.labels, test)
	s.States[t.className] = t.classes
	return s, nil
}

func makeMatrix(rows, cols int) [][]int {
	m := make([][]int, rows)
	for i := range m {
		m[i] = make([]int, cols)
	}
	return m
}

func pick(values, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}

var _ Dataset = (*Table)(nil)
