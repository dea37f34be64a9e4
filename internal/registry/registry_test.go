package registry

import (
	"errors"
	"testing"

	"github.com/specialistvlad/gridbench/internal/hyper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClassifier struct{}

func (stubClassifier) Fit(TrainData, Smoothing) error { return nil }
func (stubClassifier) Score([][]int, []int) (float64, error) { return 1, nil }
func (stubClassifier) ValidHyperparameters() []string { return nil }
func (stubClassifier) SetHyperparameters(hyper.Set) error { return nil }
func (stubClassifier) NumberOfNodes() int { return 0 }
func (stubClassifier) NumberOfEdges() int { return 0 }
func (stubClassifier) NumberOfStates() int { return 0 }
func (stubClassifier) Notes() []string { return nil }

type stubModule struct{}

func (stubModule) Register(r *Registry) {
	r.RegisterModel("stub", func() Classifier { return stubClassifier{} })
	r.RegisterModel("another", func() Classifier { return stubClassifier{} })
}

func TestRegistry_Models(t *testing.T) {
	r := New(stubModule{})

	assert.Equal(t, []string{"another", "stub"}, r.Models())
	assert.True(t, r.HasModel("stub"))
	assert.False(t, r.HasModel("svm"))

	clf, err := r.CreateModel("stub")
	require.NoError(t, err)
	assert.NotNil(t, clf)

	_, err = r.CreateModel("svm")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownModel))
	assert.Contains(t, err.Error(), "[another stub]")
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := New(stubModule{})
	assert.Panics(t, func() { stubModule{}.Register(r) })
	assert.Panics(t, func() {
		r.RegisterDiscretizer("d", nil)
		r.RegisterDiscretizer("d", nil)
	})
}

func TestRegistry_Discretizers(t *testing.T) {
	r := New()
	_, err := r.CreateDiscretizer("bin3u")
	assert.True(t, errors.Is(err, ErrUnknownDiscretizer))
	assert.Empty(t, r.Discretizers())
}

func TestParseSmoothing(t *testing.T) {
	for _, name := range []string{"NONE", "ORIGINAL", "LAPLACE", "CESTNIK"} {
		s, err := ParseSmoothing(name)
		require.NoError(t, err)
		assert.Equal(t, name, s.String())
	}
	_, err := ParseSmoothing("laplace")
	assert.Error(t, err)
	assert.Equal(t, "Smoothing(9)", Smoothing(9).String())
}

func TestAccuracy(t *testing.T) {
	acc, err := Accuracy([]int{0, 1, 1, 2}, []int{0, 1, 2, 2})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, acc, 1e-12)

	_, err = Accuracy(nil, nil)
	assert.True(t, errors.Is(err, ErrEmpty))
	_, err = Accuracy([]int{1}, []int{1, 2})
	assert.Error(t, err)
}
