package binning

import (
	"testing"

	"github.com/specialistvlad/gridbench/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	r := registry.New(&Module{})
	assert.Equal(t, []string{"bin3q", "bin3u", "bin4q", "bin4u"}, r.Discretizers())

	d, err := r.CreateDiscretizer("bin4q")
	require.NoError(t, err)
	assert.Equal(t, &Binner{Bins: 4, Quantile: true}, d)
}

func TestBinner_EqualWidth(t *testing.T) {
	b := &Binner{Bins: 3}
	require.NoError(t, b.Fit([]float64{0, 3, 6, 9}))
	assert.Equal(t, 3, b.States())

	for v, want := range map[float64]int{-5: 0, 0: 0, 2.9: 0, 3: 0, 3.1: 1, 6: 1, 6.5: 2, 9: 2, 100: 2} {
		assert.Equal(t, want, b.Transform(v), "value %v", v)
	}
}

func TestBinner_Quantile(t *testing.T) {
	b := &Binner{Bins: 4, Quantile: true}
	require.NoError(t, b.Fit([]float64{8, 1, 2, 3, 4, 5, 6, 7}))
	assert.Equal(t, 4, b.States())
	assert.Equal(t, 0, b.Transform(1))
	assert.Equal(t, 0, b.Transform(3))
	assert.Equal(t, 1, b.Transform(4))
	assert.Equal(t, 3, b.Transform(8))
}

func TestBinner_QuantileCollapsesTies(t *testing.T) {
	b := &Binner{Bins: 4, Quantile: true}
	require.NoError(t, b.Fit([]float64{1, 1, 1, 1, 1, 1, 2, 2}))
	assert.Equal(t, 3, b.States())
	assert.Equal(t, 0, b.Transform(1))
	assert.Equal(t, 1, b.Transform(2))
}

func TestBinner_Errors(t *testing.T) {
	assert.ErrorIs(t, (&Binner{Bins: 3}).Fit(nil), registry.ErrEmpty)
	assert.Error(t, (&Binner{Bins: 1}).Fit([]float64{1}))
}
