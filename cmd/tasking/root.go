package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bpradana/tasking"
	"github.com/bpradana/tasking/internal/config"
	"github.com/bpradana/tasking/internal/logging"
	"github.com/bpradana/tasking/taskfile"
)

// app carries state shared by every subcommand.
type app struct {
	configPath  string
	file        string
	logLevel    string
	logFormat   string
	metricsFile string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "tasking",
		Short: "Run namespaced tasks declared in a YAML task file",
		Long: `tasking declares namespaces and tasks from a YAML task file and runs
them by name. Options flow from outer namespaces to inner ones, then to the
task and finally to --set values given on the command line.

Examples:
  tasking list
  tasking run build::compile --set target=darwin
  tasking graph | dot -Tsvg > tasks.svg`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", config.DefaultPath, "config file path")
	flags.StringVarP(&a.file, "file", "f", "", "task file (overrides config)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: json, console")
	flags.StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after run")

	root.AddCommand(
		newRunCmd(a),
		newListCmd(a),
		newGraphCmd(a),
		newValidateCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads the configuration, applies explicit flags, validates the
// result and builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.NewLoader().WithPath(a.configPath).SkipValidation().Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("file") {
		cfg.File = a.file
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = a.logFormat
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.File = a.metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// engine builds an engine and declares the configured task file into it.
func (a *app) engine(cmd *cobra.Command, opts ...tasking.EngineOption) (*tasking.Engine, error) {
	e := tasking.New(append([]tasking.EngineOption{tasking.WithLogger(a.logger)}, opts...)...)

	runner := taskfile.ShellRunner{
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
	}
	loader := taskfile.NewLoader(e, taskfile.WithRunner(runner), taskfile.WithLogger(a.logger))
	if err := loader.LoadFile(a.cfg.File); err != nil {
		return nil, err
	}
	return e, nil
}
