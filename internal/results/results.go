// Package results models the files a grid run persists and reads back: the
// grid search output, the experiment output, and their metadata header.
package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/specialistvlad/gridbench/internal/config"
	"github.com/specialistvlad/gridbench/internal/hyper"
)

// DateLayout is the layout of every date stored in an output file.
const DateLayout = "2006-01-02 15:04:05"

// InputPath is the grid input file of a model.
func InputPath(gridDir, model string) string {
	return filepath.Join(gridDir, "grid_"+model+"_input.json")
}

// OutputPath is the grid search output file of a model.
func OutputPath(gridDir, model string) string {
	return filepath.Join(gridDir, "grid_"+model+"_output.json")
}

// ExperimentPath is the experiment output file of a model.
func ExperimentPath(gridDir, model string) string {
	return filepath.Join(gridDir, "grid_"+model+"_experiment.json")
}

// FormatDuration renders d with two decimals in seconds, minutes or hours,
// whichever unit keeps the number small.
func FormatDuration(d time.Duration) string {
	secs := d.Seconds()
	switch {
	case secs > 3600:
		return fmt.Sprintf("%.2f h", secs/3600)
	case secs > 60:
		return fmt.Sprintf("%.2f m", secs/60)
	default:
		return fmt.Sprintf("%.2f s", secs)
	}
}

// Metadata is the header shared by every output file.
type Metadata struct {
	Model      string `json:"model"`
	Score      string `json:"score"`
	Discretize bool   `json:"discretize"`
	Stratified bool   `json:"stratified"`
	NFolds     int    `json:"n_folds"`
	Seeds      []int  `json:"seeds"`
	Date       string `json:"date"`
	Nested     int    `json:"nested"`
	Platform   string `json:"platform"`
	Duration   string `json:"duration"`
	RunID      string `json:"run_id,omitempty"`
}

// NewMetadata describes a run of cfg that took elapsed and finished at now.
func NewMetadata(cfg config.Grid, runID string, elapsed time.Duration, now time.Time) Metadata {
	return Metadata{
		Model:      cfg.Model,
		Score:      cfg.Score,
		Discretize: cfg.Discretize,
		Stratified: cfg.Stratified,
		NFolds:     cfg.NFolds,
		Seeds:      cfg.Seeds,
		Date:       now.Format(DateLayout),
		Nested:     cfg.Nested,
		Platform:   cfg.Platform,
		Duration:   FormatDuration(elapsed),
		RunID:      runID,
	}
}

// Entry is the winning answer of a grid search for one dataset.
type Entry struct {
	Score           float64   `json:"score"`
	Hyperparameters hyper.Set `json:"hyperparameters"`
	Date            string    `json:"date"`
	// Grid is the input grid the winner was drawn from.
	Grid     json.RawMessage `json:"grid"`
	Duration string          `json:"duration"`
	Notes    []string        `json:"notes,omitempty"`
}

// Output is the grid search output file.
type Output struct {
	Metadata
	Results map[string]Entry `json:"results"`
}

// ExperimentEntry aggregates every task of one dataset in an experiment.
type ExperimentEntry struct {
	Score           float64   `json:"score"`
	ScoreStd        float64   `json:"score_std"`
	Scores          []float64 `json:"scores"`
	Nodes           float64   `json:"nodes"`
	Leaves          float64   `json:"leaves"`
	Depth           float64   `json:"depth"`
	Hyperparameters hyper.Set `json:"hyperparameters"`
	Date            string    `json:"date"`
	Duration        string    `json:"duration"`
	Notes           []string  `json:"notes,omitempty"`
}

// Experiment is the experiment output file.
type Experiment struct {
	Metadata
	Results map[string]ExperimentEntry `json:"results"`
}

// LoadOutput reads a grid search output file. A missing file yields an
// error wrapping fs.ErrNotExist.
func LoadOutput(path string) (*Output, error) {
	var out Output
	if err := load(path, &out); err != nil {
		return nil, err
	}
	if out.Results == nil {
		out.Results = make(map[string]Entry)
	}
	return &out, nil
}

// LoadExperiment reads an experiment output file.
func LoadExperiment(path string) (*Experiment, error) {
	var out Experiment
	if err := load(path, &out); err != nil {
		return nil, err
	}
	if out.Results == nil {
		out.Results = make(map[string]ExperimentEntry)
	}
	return &out, nil
}

func load(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to open results file [%s]: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse results file %s: %w", path, err)
	}
	return nil
}

// Save writes v as indented JSON to path. The file is replaced atomically so
// a reader never sees a partial document.
func Save(path string, v any) (err error) {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, os.Remove(tmp.Name()))
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
