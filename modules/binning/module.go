// Package binning provides the equal-width and equal-frequency discretizers
// used to turn numeric dataset columns into discrete states.
package binning

import (
	"fmt"
	"slices"
	"sort"

	"github.com/specialistvlad/gridbench/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers bin3u, bin4u (equal width) and bin3q, bin4q (equal
// frequency).
func (m *Module) Register(r *registry.Registry) {
	for _, bins := range []int{3, 4} {
		r.RegisterDiscretizer(fmt.Sprintf("bin%du", bins), func() registry.Discretizer {
			return &Binner{Bins: bins}
		})
		r.RegisterDiscretizer(fmt.Sprintf("bin%dq", bins), func() registry.Discretizer {
			return &Binner{Bins: bins, Quantile: true}
		})
	}
}

// Binner cuts a numeric range into Bins intervals, of equal width or, when
// Quantile is set, holding roughly the same number of training values.
type Binner struct {
	Bins     int
	Quantile bool

	cuts []float64
}

// Fit computes the cut points from the training values.
func (b *Binner) Fit(values []float64) error {
	if len(values) == 0 {
		return registry.ErrEmpty
	}
	if b.Bins < 2 {
		return fmt.Errorf("binning needs at least 2 bins, got %d", b.Bins)
	}
	sorted := slices.Clone(values)
	sort.Float64s(sorted)

	b.cuts = b.cuts[:0]
	if b.Quantile {
		for i := 1; i < b.Bins; i++ {
			cut := sorted[i*len(sorted)/b.Bins]
			if len(b.cuts) == 0 || cut > b.cuts[len(b.cuts)-1] {
				b.cuts = append(b.cuts, cut)
			}
		}
		return nil
	}
	lo, hi := sorted[0], sorted[len(sorted)-1]
	width := (hi - lo) / float64(b.Bins)
	for i := 1; i < b.Bins; i++ {
		b.cuts = append(b.cuts, lo+float64(i)*width)
	}
	return nil
}

// Transform returns the state of v. Values outside the fitted range fall in
// the first or last interval.
func (b *Binner) Transform(v float64) int {
	return sort.SearchFloat64s(b.cuts, v)
}

// States is the number of intervals.
func (b *Binner) States() int {
	return len(b.cuts) + 1
}
