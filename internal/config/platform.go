package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/gridbench/internal/ctxlog"
	"github.com/specialistvlad/gridbench/internal/hyper"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// DefaultPlatformFile is looked up in the working directory.
const DefaultPlatformFile = "gridbench.hcl"

// Platform holds site-wide defaults for grid runs.
type Platform struct {
	Platform       string
	SourceData     string
	GridDir        string
	Score          string
	NFolds         int
	Nested         int
	Seeds          []int
	Stratified     bool
	Discretize     bool
	DiscretizeAlgo string
	SmoothStrategy string

	// ExperimentHyperparameters is the fixed set used by experiments when no
	// other source is given on the command line.
	ExperimentHyperparameters hyper.Set
}

// DefaultPlatform returns the built-in defaults.
func DefaultPlatform() Platform {
	return Platform{
		Platform:       "gridbench",
		SourceData:     "datasets",
		GridDir:        "grid",
		Score:          "accuracy",
		NFolds:         5,
		Nested:         5,
		Seeds:          []int{271},
		Discretize:     true,
		DiscretizeAlgo: "bin3u",
		SmoothStrategy: "LAPLACE",
	}
}

// Grid returns a run configuration for model seeded from the platform values.
func (p Platform) Grid(model string) Grid {
	return Grid{
		Model:          model,
		Score:          p.Score,
		Platform:       p.Platform,
		SourceData:     p.SourceData,
		GridDir:        p.GridDir,
		SmoothStrategy: p.SmoothStrategy,
		ContinueFrom:   NoContinue,
		Discretize:     p.Discretize,
		DiscretizeAlgo: p.DiscretizeAlgo,
		Stratified:     p.Stratified,
		NFolds:         p.NFolds,
		Nested:         p.Nested,
		Seeds:          append([]int(nil), p.Seeds...),
	}
}

// hclPlatformFile is the decoding target of a platform file. Every attribute
// is optional and overrides the matching default when present.
type hclPlatformFile struct {
	Platform       *string        `hcl:"platform,optional"`
	SourceData     *string        `hcl:"source_data,optional"`
	GridDir        *string        `hcl:"grid_dir,optional"`
	Score          *string        `hcl:"score,optional"`
	NFolds         *int           `hcl:"n_folds,optional"`
	Nested         *int           `hcl:"nested,optional"`
	Seeds          *[]int         `hcl:"seeds,optional"`
	Stratified     *bool          `hcl:"stratified,optional"`
	Discretize     *bool          `hcl:"discretize,optional"`
	DiscretizeAlgo *string        `hcl:"discretize_algo,optional"`
	SmoothStrategy *string        `hcl:"smooth_strat,optional"`
	Experiment     *hclExperiment `hcl:"experiment,block"`
}

type hclExperiment struct {
	Hyperparameters cty.Value `hcl:"hyperparameters,optional"`
}

// LoadPlatform reads the platform file at path over the built-in defaults. A
// missing file is not an error.
func LoadPlatform(ctx context.Context, path string) (Platform, error) {
	logger := ctxlog.FromContext(ctx)
	p := DefaultPlatform()

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		logger.Debug("Platform file not found, using defaults.", "path", path)
		return p, nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return p, fmt.Errorf("failed to parse platform file %s: %w", path, diags)
	}
	var parsed hclPlatformFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return p, fmt.Errorf("failed to decode platform file %s: %w", path, diags)
	}

	setIf(&p.Platform, parsed.Platform)
	setIf(&p.SourceData, parsed.SourceData)
	setIf(&p.GridDir, parsed.GridDir)
	setIf(&p.Score, parsed.Score)
	setIf(&p.NFolds, parsed.NFolds)
	setIf(&p.Nested, parsed.Nested)
	setIf(&p.Seeds, parsed.Seeds)
	setIf(&p.Stratified, parsed.Stratified)
	setIf(&p.Discretize, parsed.Discretize)
	setIf(&p.DiscretizeAlgo, parsed.DiscretizeAlgo)
	setIf(&p.SmoothStrategy, parsed.SmoothStrategy)

	if parsed.Experiment != nil {
		set, err := ctyToSet(parsed.Experiment.Hyperparameters)
		if err != nil {
			return p, fmt.Errorf("platform file %s: experiment hyperparameters: %w", path, err)
		}
		p.ExperimentHyperparameters = set
	}

	if err := p.validate(); err != nil {
		return p, fmt.Errorf("platform file %s: %w", path, err)
	}
	logger.Debug("Platform file loaded.", "path", path, "platform", p.Platform)
	return p, nil
}

func (p Platform) validate() error {
	if err := oneOf("score", p.Score, Scores); err != nil {
		return err
	}
	if err := oneOf("smoothing strategy", p.SmoothStrategy, SmoothingStrategies); err != nil {
		return err
	}
	if err := oneOf("discretize algorithm", p.DiscretizeAlgo, DiscretizeAlgos); err != nil {
		return err
	}
	if p.NFolds < 2 || p.Nested < 2 {
		return fmt.Errorf("%w: n_folds and nested must be at least 2", ErrInvalid)
	}
	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// ctyToSet converts an HCL object into a hyperparameter set.
func ctyToSet(v cty.Value) (hyper.Set, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsWhollyKnown() {
		return nil, errors.New("value must be known")
	}
	if !v.Type().IsObjectType() && !v.Type().IsMapType() {
		return nil, fmt.Errorf("expected an object, got %s", v.Type().FriendlyName())
	}
	raw, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return nil, err
	}
	var set hyper.Set
	if err := set.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	return set, nil
}
