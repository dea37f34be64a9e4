package testutil

import (
	"errors"

	"github.com/specialistvlad/gridbench/internal/hyper"
	"github.com/specialistvlad/gridbench/internal/registry"
)

// FakeModelName is the name SimpleModule registers the fake model under in
// FakeRegistry.
const FakeModelName = "fake"

// ErrFakeFit is returned by FakeModel.Fit when the "fail" hyperparameter is set.
var ErrFakeFit = errors.New("fake fit failure")

// FakeModel is a classifier whose score is its "q" hyperparameter, so tests
// control which combination wins.
type FakeModel struct {
	Q    float64
	Fail bool
	// Rows is the number of training rows seen by the last Fit.
	Rows int
	// OnFit, if set, sees every training set passed to Fit.
	OnFit func(registry.TrainData)
}

var _ registry.Classifier = (*FakeModel)(nil)

func (m *FakeModel) Fit(data registry.TrainData, _ registry.Smoothing) error {
	if m.Fail {
		return ErrFakeFit
	}
	if len(data.X) == 0 {
		return registry.ErrEmpty
	}
	m.Rows = len(data.X)
	if m.OnFit != nil {
		m.OnFit(data)
	}
	return nil
}

func (m *FakeModel) Score(X [][]int, _ []int) (float64, error) {
	if len(X) == 0 {
		return 0, registry.ErrEmpty
	}
	return m.Q, nil
}

func (m *FakeModel) ValidHyperparameters() []string { return []string{"q", "fail"} }

func (m *FakeModel) SetHyperparameters(s hyper.Set) error {
	if _, err := s.Decode("q", &m.Q); err != nil {
		return err
	}
	_, err := s.Decode("fail", &m.Fail)
	return err
}

func (m *FakeModel) NumberOfNodes() int  { return 3 }
func (m *FakeModel) NumberOfEdges() int  { return 2 }
func (m *FakeModel) NumberOfStates() int { return 1 }
func (m *FakeModel) Notes() []string     { return []string{"fake model"} }

// FakeRegistry returns a registry holding the fake model plus any modules.
func FakeRegistry(modules ...registry.Module) *registry.Registry {
	fake := &SimpleModule{Name: FakeModelName, Factory: func() registry.Classifier { return &FakeModel{} }}
	return registry.New(append([]registry.Module{fake}, modules...)...)
}
