package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bpradana/tasking"
	"github.com/bpradana/tasking/internal/metrics"
	"github.com/bpradana/tasking/taskfile"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		sets    []string
		summary bool
	)

	cmd := &cobra.Command{
		Use:   "run TASK [TASK...]",
		Short: "Run one or more tasks in order",
		Long: `Run executes each named task with its before and after filters.

--set key=value adds call-site options, which take precedence over every
declared option. A value starting with "=" is an expression, just like in
the task file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parseSets(sets)
			if err != nil {
				return err
			}
			return a.run(cmd, args, opts, summary)
		},
	}
	cmd.Flags().StringArrayVarP(&sets, "set", "s", nil, "call-site option as key=value (repeatable)")
	cmd.Flags().BoolVar(&summary, "summary", false, "print every invocation with its status and duration to stderr")
	return cmd
}

// parseSets turns key=value pairs into call-site options.
func parseSets(sets []string) (*tasking.Options, error) {
	opts := &tasking.Options{}
	for _, kv := range sets {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: expected key=value", kv)
		}
		v, err := taskfile.OptionValue(key, value)
		if err != nil {
			return nil, err
		}
		opts.Set(key, v)
	}
	return opts, nil
}

func (a *app) run(cmd *cobra.Command, names []string, opts *tasking.Options, summary bool) (err error) {
	var engineOpts []tasking.EngineOption
	if summary {
		rec := tasking.NewRecorder()
		engineOpts = append(engineOpts, tasking.WithHooks(rec.Hooks()))
		defer printSummary(cmd.ErrOrStderr(), rec)
	}
	var collector *metrics.Collector
	if a.cfg.Metrics.File != "" {
		collector = metrics.New("tasking", a.logger)
		engineOpts = append(engineOpts, tasking.WithHooks(collector.Hooks()))
	}

	e, err := a.engine(cmd, engineOpts...)
	if err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return err
	}

	if collector != nil {
		defer func() {
			if werr := collector.WriteFile(a.cfg.Metrics.File); werr != nil {
				a.logger.Warn("failed to write metrics", zap.String("path", a.cfg.Metrics.File), zap.Error(werr))
				if err == nil {
					err = werr
				}
			}
		}()
	}

	for _, name := range names {
		if err := e.Execute(cmd.Context(), name, opts); err != nil {
			return err
		}
	}
	return nil
}

func printSummary(w io.Writer, rec *tasking.Recorder) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tROLE\tSTATUS\tDURATION")
	for _, run := range rec.Runs() {
		meta := run.Metadata
		fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\n",
			strings.Repeat("  ", meta.Depth), meta.Task, meta.Role, run.Metrics.Status,
			run.Metrics.Duration.Round(time.Millisecond))
	}
	_ = tw.Flush()
}
