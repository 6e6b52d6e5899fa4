package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List namespaces and their tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.engine(cmd)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, ns := range e.Structure() {
				if len(ns.Tasks) == 0 {
					continue
				}
				fmt.Fprintf(w, "%s\n", ns.Namespace)
				for _, name := range ns.Tasks {
					task, _ := e.Registry().FindTaskInNamespace(ns.Namespace, name)
					fmt.Fprintf(w, "  %s\t%s\n", name, task.Description())
				}
			}
			return w.Flush()
		},
	}
}
