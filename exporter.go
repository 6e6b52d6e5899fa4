package tasking

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNilWriter indicates that a nil writer was provided to an exporter.
var ErrNilWriter = errors.New("tasking: nil writer")

// DOTOption configures ExportDOT.
type DOTOption func(*dotConfig)

type dotConfig struct {
	graphName string
	rankDir   string
	clusters  bool
}

// DOTWithGraphName sets the graph identifier. The default is "tasking".
func DOTWithGraphName(name string) DOTOption {
	return func(cfg *dotConfig) {
		if name != "" {
			cfg.graphName = name
		}
	}
}

// DOTWithRankDir sets the rank direction ("LR", "TB", ...). The default is "LR".
func DOTWithRankDir(rankDir string) DOTOption {
	return func(cfg *dotConfig) {
		if rankDir != "" {
			cfg.rankDir = rankDir
		}
	}
}

// DOTWithNamespaceClusters draws the tasks of each namespace inside a
// labelled cluster.
func DOTWithNamespaceClusters() DOTOption {
	return func(cfg *dotConfig) {
		cfg.clusters = true
	}
}

// dotWriter keeps the first write error and turns later writes into no-ops.
type dotWriter struct {
	w   io.Writer
	err error
}

func (d *dotWriter) linef(indent int, format string, args ...any) {
	if d.err != nil {
		return
	}
	_, d.err = fmt.Fprintf(d.w, strings.Repeat("    ", indent)+format+"\n", args...)
}

// ExportDOT renders every task in Graphviz DOT format. Edges follow execution
// order: a before filter points at its task, a task points at its after
// filters. Pending filters are included; nothing is attached.
func (e *Engine) ExportDOT(w io.Writer, opts ...DOTOption) error {
	if w == nil {
		return ErrNilWriter
	}

	graph, err := e.analyzeFilters()
	if err != nil {
		return err
	}

	cfg := dotConfig{graphName: "tasking", rankDir: "LR"}
	for _, opt := range opts {
		opt(&cfg)
	}

	out := &dotWriter{w: w}
	out.linef(0, "digraph %s {", dotQuoteIdentifier(cfg.graphName))
	out.linef(1, "rankdir=%s;", cfg.rankDir)

	if cfg.clusters {
		e.writeClusters(out)
	} else {
		for _, name := range graph.tasks {
			out.linef(1, "%s;", dotQuoteIdentifier(name))
		}
	}

	for _, edge := range graph.edges {
		from, to := edge.filter, edge.owner
		if edge.kind == AfterFilter {
			from, to = edge.owner, edge.filter
		}
		out.linef(1, "%s -> %s [label=%s];",
			dotQuoteIdentifier(from), dotQuoteIdentifier(to), dotQuoteIdentifier(edge.kind.String()))
	}

	out.linef(0, "}")
	return out.err
}

// writeClusters emits one cluster per namespace holding tasks, in
// declaration order.
func (e *Engine) writeClusters(out *dotWriter) {
	for _, ns := range e.registry.Namespaces() {
		tasks := ns.Tasks()
		if len(tasks) == 0 {
			continue
		}
		out.linef(1, "subgraph %s {", dotQuoteIdentifier("cluster_"+ns.Path()))
		out.linef(2, "label=%s;", dotQuoteIdentifier(ns.Path()))
		for _, t := range tasks {
			out.linef(2, "%s [label=%s];", dotQuoteIdentifier(t.FullName()), dotQuoteIdentifier(t.Name()))
		}
		out.linef(1, "}")
	}
}

func dotQuoteIdentifier(name string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(name) + `"`
}
