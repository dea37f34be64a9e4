package app

import (
	"fmt"
	"slices"

	"github.com/specialistvlad/gridbench/internal/config"
	"github.com/specialistvlad/gridbench/internal/report"
)

// Command names the action an App performs.
type Command string

const (
	CommandDump       Command = "dump"
	CommandReport     Command = "report"
	CommandCompute    Command = "compute"
	CommandExperiment Command = "experiment"
	CommandWorker     Command = "worker"
)

// DefaultLocalProcs is the number of in-process ranks when no topology is given.
const DefaultLocalProcs = 2

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Command      Command
	Model        string
	PlatformFile string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int

	// Overrides are the grid settings given on the command line.
	Overrides Overrides

	// Report output format.
	Format string

	// Experiment dataset selection and hyperparameter source.
	Datasets        []string
	Hyperparameters string
	HyperFile       string
	HyperBest       bool

	// Topology. Local runs every rank in this process; Listen and Procs make
	// this process the manager of socket.io workers; ManagerURL and Rank
	// make it a worker.
	Local      int
	Listen     string
	Procs      int
	ManagerURL string
	Rank       int
}

// Overrides replace platform values when set. Nil means not given.
type Overrides struct {
	Score          *string
	SmoothStrategy *string
	Discretize     *bool
	DiscretizeAlgo *string
	Stratified     *bool
	NFolds         *int
	Nested         *int
	Seeds          []int
	Quiet          *bool
	ContinueFrom   *string
	Only           *bool
	Excluded       []string
}

// Apply returns g with the overrides applied.
func (o Overrides) Apply(g config.Grid) config.Grid {
	set(&g.Score, o.Score)
	set(&g.SmoothStrategy, o.SmoothStrategy)
	set(&g.Discretize, o.Discretize)
	set(&g.DiscretizeAlgo, o.DiscretizeAlgo)
	set(&g.Stratified, o.Stratified)
	set(&g.NFolds, o.NFolds)
	set(&g.Nested, o.Nested)
	set(&g.Quiet, o.Quiet)
	set(&g.ContinueFrom, o.ContinueFrom)
	set(&g.Only, o.Only)
	if o.Seeds != nil {
		g.Seeds = slices.Clone(o.Seeds)
	}
	if o.Excluded != nil {
		g.Excluded = slices.Clone(o.Excluded)
	}
	return g
}

func set[T any](dst, src *T) {
	if src != nil {
		*dst = *src
	}
}

// NewConfig validates cfg. Errors wrap config.ErrInvalid.
func NewConfig(cfg Config) (*Config, error) {
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("%w: invalid log format %q: must be 'text' or 'json'", config.ErrInvalid, cfg.LogFormat)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("%w: invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", config.ErrInvalid, cfg.LogLevel)
	}
	if cfg.PlatformFile == "" {
		cfg.PlatformFile = config.DefaultPlatformFile
	}

	switch cfg.Command {
	case CommandWorker:
		if cfg.ManagerURL == "" {
			return nil, fmt.Errorf("%w: a worker needs the manager URL", config.ErrInvalid)
		}
		if cfg.Rank < 1 {
			return nil, fmt.Errorf("%w: worker rank must be at least 1, got %d", config.ErrInvalid, cfg.Rank)
		}
		return &cfg, nil
	case CommandDump, CommandReport, CommandCompute, CommandExperiment:
	default:
		return nil, fmt.Errorf("%w: unknown command %q", config.ErrInvalid, cfg.Command)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model is required", config.ErrInvalid)
	}

	switch cfg.Command {
	case CommandReport:
		if cfg.Format == "" {
			cfg.Format = report.FormatText
		}
		if !slices.Contains(report.Formats, cfg.Format) {
			return nil, fmt.Errorf("%w: unknown report format %q, expected one of %v", config.ErrInvalid, cfg.Format, report.Formats)
		}
	case CommandCompute, CommandExperiment:
		if cfg.Listen != "" {
			if cfg.Local != 0 {
				return nil, fmt.Errorf("%w: local and listen are mutually exclusive", config.ErrInvalid)
			}
			if cfg.Procs < 2 {
				return nil, fmt.Errorf("%w: listen needs at least 2 processes, got %d", config.ErrInvalid, cfg.Procs)
			}
			break
		}
		if cfg.Local == 0 {
			cfg.Local = DefaultLocalProcs
		}
		if cfg.Local < 2 {
			return nil, fmt.Errorf("%w: a grid run needs at least 2 processes, got %d", config.ErrInvalid, cfg.Local)
		}
	}
	return &cfg, nil
}
