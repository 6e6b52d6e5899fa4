package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the task file without running anything",
		Long: `Validate loads the task file and checks that every before/after
filter resolves to a task and that no task reaches itself through its
filters.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.engine(cmd)
			if err != nil {
				return err
			}
			if err := e.Validate(); err != nil {
				return err
			}
			structure := e.Structure()
			tasks := 0
			for _, ns := range structure {
				tasks += len(ns.Tasks)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d tasks in %d namespaces\n", a.cfg.File, tasks, len(structure))
			return nil
		},
	}
}
