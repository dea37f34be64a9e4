package hyper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/specialistvlad/gridbench/internal/ctxlog"
)

// PerDataset binds one hyperparameter set to each dataset name.
type PerDataset map[string]Set

// Uniform binds the same set to every dataset.
func Uniform(datasets []string, s Set) PerDataset {
	out := make(PerDataset, len(datasets))
	for _, name := range datasets {
		out[name] = s
	}
	return out
}

// LoadFile reads a per-dataset hyperparameter file. The file maps a dataset
// name to an object holding a "hyperparameters" member, which is also the
// shape of a grid output "results" section. Datasets absent from the file get
// an empty set and a warning.
func LoadFile(ctx context.Context, path string, datasets []string) (PerDataset, error) {
	logger := ctxlog.FromContext(ctx)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hyperparameters file %s: %w", path, err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("hyperparameters file %s: %w", path, err)
	}
	// A whole grid output document is accepted as well.
	if inner, ok := doc["results"]; ok {
		doc = nil
		if err := json.Unmarshal(inner, &doc); err != nil {
			return nil, fmt.Errorf("hyperparameters file %s: results: %w", path, err)
		}
	}

	out := make(PerDataset, len(datasets))
	for _, name := range datasets {
		raw, ok := doc[name]
		if !ok {
			logger.Warn("Dataset not found in hyperparameters file, assuming default hyperparameters.", "dataset", name, "path", path)
			out[name] = Set{}
			continue
		}
		var entry struct {
			Hyperparameters Set `json:"hyperparameters"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("hyperparameters file %s: dataset %s: %w", path, name, err)
		}
		out[name] = entry.Hyperparameters
	}
	return out, nil
}
