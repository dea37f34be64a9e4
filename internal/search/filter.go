package search

import (
	"errors"
	"fmt"
	"slices"

	"github.com/specialistvlad/gridbench/internal/config"
)

// ErrUnknownDataset is returned when a continue or exclude entry names a
// dataset that is not in the list.
var ErrUnknownDataset = errors.New("unknown dataset")

// FilterDatasets applies continue, only and exclude to names, keeping order.
//
// When continuing, every dataset before ContinueFrom is dropped; with Only,
// ContinueFrom is the single dataset kept. Excluded datasets are removed
// afterwards, each of which must still be present.
func FilterDatasets(names []string, cfg config.Grid) ([]string, error) {
	out := slices.Clone(names)
	if cfg.Continuing() {
		at := slices.Index(out, cfg.ContinueFrom)
		if at < 0 {
			return nil, fmt.Errorf("%w: dataset %s not found", ErrUnknownDataset, cfg.ContinueFrom)
		}
		if cfg.Only {
			out = []string{cfg.ContinueFrom}
		} else {
			out = out[at:]
		}
	}
	for _, name := range cfg.Excluded {
		at := slices.Index(out, name)
		if at < 0 {
			return nil, fmt.Errorf("%w: dataset %s already excluded or doesn't exist", ErrUnknownDataset, name)
		}
		out = slices.Delete(out, at, at+1)
	}
	return out, nil
}
