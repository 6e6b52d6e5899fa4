package main

import (
	"github.com/spf13/cobra"

	"github.com/bpradana/tasking"
)

func newGraphCmd(a *app) *cobra.Command {
	var (
		name, rankDir string
		clusters      bool
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the filter graph in Graphviz DOT format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.engine(cmd)
			if err != nil {
				return err
			}
			opts := []tasking.DOTOption{
				tasking.DOTWithGraphName(name),
				tasking.DOTWithRankDir(rankDir),
			}
			if clusters {
				opts = append(opts, tasking.DOTWithNamespaceClusters())
			}
			return e.ExportDOT(cmd.OutOrStdout(), opts...)
		},
	}
	cmd.Flags().StringVar(&name, "name", "tasking", "graph name")
	cmd.Flags().StringVar(&rankDir, "rankdir", "LR", "rank direction (LR, TB, ...)")
	cmd.Flags().BoolVar(&clusters, "clusters", false, "group tasks by namespace")
	return cmd
}
