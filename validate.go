package tasking

import (
	"fmt"
	"sort"
	"strings"
)

// filterEdge records that invoking owner invokes filter.
type filterEdge struct {
	owner  string
	filter string
	kind   FilterKind
}

type filterGraph struct {
	tasks []string
	edges []filterEdge
}

// analyzeFilters resolves every attached and pending filter reference
// without mutating the engine.
func (e *Engine) analyzeFilters() (*filterGraph, error) {
	tasks := e.registry.Tasks()
	filters := make(map[*Task]*[2][]string, len(tasks))
	for _, t := range tasks {
		lists := t.filters
		filters[t] = &lists
	}

	for _, p := range e.pending {
		owner, tried := e.resolve(p.scope, p.task)
		if owner == nil {
			return nil, &UnknownTaskError{Name: p.task, Tried: tried, Filter: true, Kind: p.kind}
		}
		lists := filters[owner]
		lists[p.kind] = append(append([]string(nil), lists[p.kind]...), p.refs...)
	}

	graph := &filterGraph{tasks: make([]string, 0, len(tasks))}
	for _, t := range tasks {
		graph.tasks = append(graph.tasks, t.FullName())
		for _, kind := range []FilterKind{BeforeFilter, AfterFilter} {
			for _, ref := range filters[t][kind] {
				filter, tried := e.resolve(t.namespace.path, ref)
				if filter == nil {
					return nil, &UnknownTaskError{
						Name:   ref,
						Tried:  tried,
						Filter: true,
						Kind:   kind,
						Owner:  t.FullName(),
					}
				}
				graph.edges = append(graph.edges, filterEdge{
					owner:  t.FullName(),
					filter: filter.FullName(),
					kind:   kind,
				})
			}
		}
	}
	sort.Strings(graph.tasks)
	return graph, nil
}

// Validate checks that every filter reference, attached or pending, resolves
// and that no task reaches itself through its filters. It does not attach
// pending filters.
func (e *Engine) Validate() error {
	graph, err := e.analyzeFilters()
	if err != nil {
		return err
	}

	indegree := make(map[string]int, len(graph.tasks))
	dependents := make(map[string][]string, len(graph.tasks))
	for _, name := range graph.tasks {
		indegree[name] = 0
	}
	for _, edge := range graph.edges {
		dependents[edge.owner] = append(dependents[edge.owner], edge.filter)
		indegree[edge.filter]++
	}

	queue := make([]string, 0, len(graph.tasks))
	for _, name := range graph.tasks {
		if indegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	visited := 0
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		visited++
		for _, dep := range dependents[name] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if visited != len(graph.tasks) {
		var stuck []string
		for _, name := range graph.tasks {
			if indegree[name] > 0 {
				stuck = append(stuck, name)
			}
		}
		return fmt.Errorf("%w: %s", ErrFilterCycle, strings.Join(stuck, ", "))
	}
	return nil
}
