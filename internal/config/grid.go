package config

import (
	"errors"
	"fmt"
	"slices"
)

// NoContinue is the ContinueFrom value of a fresh run.
const NoContinue = "NO_CONTINUE"

// ErrInvalid is returned by the Validate methods.
var ErrInvalid = errors.New("invalid configuration")

// Accepted token sets.
var (
	Scores              = []string{"accuracy"}
	SmoothingStrategies = []string{"ORIGINAL", "LAPLACE", "CESTNIK", "NONE"}
	DiscretizeAlgos     = []string{"bin3u", "bin3q", "bin4u", "bin4q"}
)

// Grid is the configuration of a single grid run.
type Grid struct {
	Model          string   `json:"model"`
	Score          string   `json:"score"`
	Platform       string   `json:"platform"`
	SourceData     string   `json:"source_data"`
	GridDir        string   `json:"grid_dir"`
	SmoothStrategy string   `json:"smooth_strategy"`
	ContinueFrom   string   `json:"continue_from"`
	Only           bool     `json:"only"`
	Excluded       []string `json:"excluded"`
	Quiet          bool     `json:"quiet"`
	Discretize     bool     `json:"discretize"`
	DiscretizeAlgo string   `json:"discretize_algo"`
	Stratified     bool     `json:"stratified"`
	NFolds         int      `json:"n_folds"`
	Nested         int      `json:"nested"`
	Seeds          []int    `json:"seeds"`
}

// Continuing reports whether the run resumes a previous one.
func (g Grid) Continuing() bool {
	return g.ContinueFrom != "" && g.ContinueFrom != NoContinue
}

// Validate checks the configuration before any distributed work starts.
func (g Grid) Validate() error {
	if g.Model == "" {
		return fmt.Errorf("%w: model is required", ErrInvalid)
	}
	if err := oneOf("score", g.Score, Scores); err != nil {
		return err
	}
	if err := oneOf("smoothing strategy", g.SmoothStrategy, SmoothingStrategies); err != nil {
		return err
	}
	if g.Discretize {
		if err := oneOf("discretize algorithm", g.DiscretizeAlgo, DiscretizeAlgos); err != nil {
			return err
		}
	}
	if g.Only && !g.Continuing() {
		return fmt.Errorf("%w: only is only valid when continuing from a dataset", ErrInvalid)
	}
	if g.NFolds < 2 {
		return fmt.Errorf("%w: n_folds must be at least 2, got %d", ErrInvalid, g.NFolds)
	}
	if g.Nested < 2 {
		return fmt.Errorf("%w: nested must be at least 2, got %d", ErrInvalid, g.Nested)
	}
	if len(g.Seeds) == 0 {
		return fmt.Errorf("%w: at least one seed is required", ErrInvalid)
	}
	if g.SourceData == "" || g.GridDir == "" {
		return fmt.Errorf("%w: source_data and grid_dir are required", ErrInvalid)
	}
	return nil
}

func oneOf(what, value string, allowed []string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return fmt.Errorf("%w: unknown %s %q, expected one of %v", ErrInvalid, what, value, allowed)
}

// Topology describes the process group of a run.
type Topology struct {
	Rank    int
	NProcs  int
	Manager int
}

// IsManager reports whether this rank orchestrates the run.
func (t Topology) IsManager() bool {
	return t.Rank == t.Manager
}

// Workers is the number of ranks executing tasks.
func (t Topology) Workers() int {
	return t.NProcs - 1
}

// Validate requires at least one worker and the manager on rank 0.
func (t Topology) Validate() error {
	if t.NProcs < 2 {
		return fmt.Errorf("%w: a grid run needs at least 2 processes, got %d", ErrInvalid, t.NProcs)
	}
	if t.Manager != 0 {
		return fmt.Errorf("%w: manager must be rank 0, got %d", ErrInvalid, t.Manager)
	}
	if t.Rank < 0 || t.Rank >= t.NProcs {
		return fmt.Errorf("%w: rank %d out of range [0, %d)", ErrInvalid, t.Rank, t.NProcs)
	}
	return nil
}
