package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/specialistvlad/gridbench/internal/app"
	"github.com/specialistvlad/gridbench/internal/config"
	"github.com/specialistvlad/gridbench/internal/experiment"
	"github.com/specialistvlad/gridbench/internal/report"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")

	var parsed *app.Config
	root := newRootCommand(func(cfg app.Config) error {
		cfg.LogFormat = strings.ToLower(cfg.LogFormat)
		cfg.LogLevel = strings.ToLower(cfg.LogLevel)
		c, err := app.NewConfig(cfg)
		if err != nil {
			return err
		}
		parsed = c
		return nil
	})
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(output)
	root.SetErr(output)

	if err := root.Execute(); err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if parsed == nil {
		slog.Debug("No command run, exiting.")
		return nil, true, nil
	}
	slog.Debug("CLI parser finished successfully.", "command", parsed.Command)
	return parsed, false, nil
}

// globalFlags are shared by every sub-command.
type globalFlags struct {
	logFormat       string
	logLevel        string
	healthcheckPort int
	platformFile    string
}

func (g *globalFlags) config(cmd app.Command) app.Config {
	return app.Config{
		Command:         cmd,
		LogFormat:       g.logFormat,
		LogLevel:        g.logLevel,
		HealthcheckPort: g.healthcheckPort,
		PlatformFile:    g.platformFile,
	}
}

func newRootCommand(done func(app.Config) error) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "gridbench",
		Short: "Distributed hyperparameter grid search for classifiers",
		Long: `GridBench - Distributed hyperparameter grid search and experiments.

Runs a nested cross-validated grid search (compute) or a fixed-hyperparameter
experiment over every dataset of the platform, spreading the work over a
manager and its workers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	pf.StringVar(&g.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.IntVar(&g.healthcheckPort, "healthcheck-port", 0, "Port for the HTTP health and progress server. 0 is disabled.")
	pf.StringVar(&g.platformFile, "platform-file", config.DefaultPlatformFile, "Path to the platform settings file.")

	root.AddCommand(
		newDumpCommand(g, done),
		newReportCommand(g, done),
		newComputeCommand(g, done),
		newExperimentCommand(g, done),
		newWorkerCommand(g, done),
	)
	return root
}

func addModelFlag(cmd *cobra.Command, model *string) {
	cmd.Flags().StringVarP(model, "model", "m", "", "Model to use.")
	_ = cmd.MarkFlagRequired("model")
}

func newDumpCommand(g *globalFlags, done func(app.Config) error) *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "List the grid input file of a model",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cfg := g.config(app.CommandDump)
			cfg.Model = model
			return done(cfg)
		},
	}
	addModelFlag(cmd, &model)
	return cmd
}

func newReportCommand(g *globalFlags, done func(app.Config) error) *cobra.Command {
	var model, format string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "List the computed hyperparameters of a model",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cfg := g.config(app.CommandReport)
			cfg.Model = model
			cfg.Format = strings.ToLower(format)
			return done(cfg)
		},
	}
	addModelFlag(cmd, &model)
	cmd.Flags().StringVar(&format, "format", report.FormatText, fmt.Sprintf("Output format. Options: %s.", strings.Join(report.Formats, ", ")))
	return cmd
}

// gridFlags are the run settings that override the platform file.
type gridFlags struct {
	score          string
	smoothStrategy string
	discretize     bool
	discretizeAlgo string
	stratified     bool
	nFolds         int
	nested         int
	seeds          []int
	quiet          bool

	local  int
	listen string
	procs  int
}

func addGridFlags(cmd *cobra.Command, f *gridFlags) {
	fs := cmd.Flags()
	fs.StringVar(&f.score, "score", "accuracy", "Score used to rank hyperparameters.")
	fs.StringVar(&f.smoothStrategy, "smooth-strat", "LAPLACE", "Smoothing strategy. Options: ORIGINAL, LAPLACE, CESTNIK, NONE.")
	fs.BoolVar(&f.discretize, "discretize", true, "Discretize numeric features.")
	fs.StringVar(&f.discretizeAlgo, "discretize-algo", "bin3u", "Discretization algorithm. Options: bin3u, bin3q, bin4u, bin4q.")
	fs.BoolVar(&f.stratified, "stratified", false, "Use stratified folds.")
	fs.IntVarP(&f.nFolds, "folds", "f", 5, "Number of outer folds.")
	fs.IntVar(&f.nested, "nested", 5, "Number of inner folds used to select hyperparameters.")
	fs.IntSliceVarP(&f.seeds, "seeds", "s", []int{271}, "Random seeds. -1 picks a random seed.")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "Do not print the per-worker summary.")

	fs.IntVar(&f.local, "local", 0, fmt.Sprintf("Run N ranks in this process, rank 0 being the manager (default %d).", app.DefaultLocalProcs))
	fs.StringVar(&f.listen, "listen", "", "Address to accept socket.io workers on, e.g. ':7070'.")
	fs.IntVar(&f.procs, "procs", 0, "Number of ranks, manager included, when listening for workers.")
}

// overrides keeps only the flags the user actually set.
func (f *gridFlags) overrides(cmd *cobra.Command) app.Overrides {
	fs := cmd.Flags()
	var o app.Overrides
	if fs.Changed("score") {
		o.Score = &f.score
	}
	if fs.Changed("smooth-strat") {
		s := strings.ToUpper(f.smoothStrategy)
		o.SmoothStrategy = &s
	}
	if fs.Changed("discretize") {
		o.Discretize = &f.discretize
	}
	if fs.Changed("discretize-algo") {
		o.DiscretizeAlgo = &f.discretizeAlgo
	}
	if fs.Changed("stratified") {
		o.Stratified = &f.stratified
	}
	if fs.Changed("folds") {
		o.NFolds = &f.nFolds
	}
	if fs.Changed("nested") {
		o.Nested = &f.nested
	}
	if fs.Changed("seeds") {
		o.Seeds = f.seeds
	}
	if fs.Changed("quiet") {
		o.Quiet = &f.quiet
	}
	return o
}

func (f *gridFlags) topology(cfg *app.Config) {
	cfg.Local = f.local
	cfg.Listen = f.listen
	cfg.Procs = f.procs
}

func newComputeCommand(g *globalFlags, done func(app.Config) error) *cobra.Command {
	var (
		model        string
		f            gridFlags
		continueFrom string
		only         bool
		exclude      string
	)
	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Search the best hyperparameters of a model with nested cross-validation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := g.config(app.CommandCompute)
			cfg.Model = model
			cfg.Overrides = f.overrides(cmd)
			f.topology(&cfg)
			if cmd.Flags().Changed("continue") {
				cfg.Overrides.ContinueFrom = &continueFrom
			}
			if cmd.Flags().Changed("only") {
				cfg.Overrides.Only = &only
			}
			if cmd.Flags().Changed("exclude") {
				excluded, err := parseExclude(exclude)
				if err != nil {
					return err
				}
				cfg.Overrides.Excluded = excluded
			}
			return done(cfg)
		},
	}
	addModelFlag(cmd, &model)
	addGridFlags(cmd, &f)
	cmd.Flags().StringVarP(&continueFrom, "continue", "c", config.NoContinue, "Continue computing from the given dataset.")
	cmd.Flags().BoolVar(&only, "only", false, "Compute only the dataset given with --continue.")
	cmd.Flags().StringVar(&exclude, "exclude", "[]", `Datasets to exclude as a JSON array, e.g. '["iris","wine"]'.`)
	return cmd
}

func parseExclude(raw string) ([]string, error) {
	excluded := []string{}
	if err := json.Unmarshal([]byte(raw), &excluded); err != nil {
		return nil, fmt.Errorf("invalid exclude list %q: must be a JSON array of dataset names: %w", raw, err)
	}
	return excluded, nil
}

func newExperimentCommand(g *globalFlags, done func(app.Config) error) *cobra.Command {
	var (
		model     string
		f         gridFlags
		dataset   string
		datasets  []string
		hyperJSON string
		hyperFile string
		hyperBest bool
	)
	cmd := &cobra.Command{
		Use:   "experiment",
		Short: "Run a model with fixed hyperparameters over the datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := g.config(app.CommandExperiment)
			cfg.Model = model
			cfg.Overrides = f.overrides(cmd)
			f.topology(&cfg)
			if len(datasets) > 0 {
				cfg.Datasets = datasets
			} else {
				cfg.Datasets = []string{dataset}
			}
			cfg.Hyperparameters = hyperJSON
			cfg.HyperFile = hyperFile
			cfg.HyperBest = hyperBest
			return done(cfg)
		},
	}
	addModelFlag(cmd, &model)
	addGridFlags(cmd, &f)
	cmd.Flags().StringVarP(&dataset, "dataset", "d", experiment.AllDatasets, "Dataset to use, or 'all'.")
	cmd.Flags().StringSliceVar(&datasets, "datasets", nil, "Datasets to use.")
	cmd.Flags().StringVar(&hyperJSON, "hyperparameters", "{}", "Hyperparameters as a JSON object, applied to every dataset.")
	cmd.Flags().StringVar(&hyperFile, "hyper-file", "", "Per-dataset hyperparameters file.")
	cmd.Flags().BoolVar(&hyperBest, "hyper-best", false, "Use the best hyperparameters found by compute.")
	cmd.MarkFlagsMutuallyExclusive("dataset", "datasets")
	return cmd
}

func newWorkerCommand(g *globalFlags, done func(app.Config) error) *cobra.Command {
	var (
		managerURL string
		rank       int
	)
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Join a run as a worker rank",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cfg := g.config(app.CommandWorker)
			cfg.ManagerURL = managerURL
			cfg.Rank = rank
			return done(cfg)
		},
	}
	cmd.Flags().StringVar(&managerURL, "manager", "", "URL of the manager, e.g. 'http://localhost:7070'.")
	cmd.Flags().IntVar(&rank, "rank", 0, "Rank of this worker, starting at 1.")
	_ = cmd.MarkFlagRequired("manager")
	_ = cmd.MarkFlagRequired("rank")
	return cmd
}
