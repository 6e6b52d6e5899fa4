package tasking

import (
	"fmt"
	"strings"
)

// Separator joins namespace segments and task names. A reference that starts
// with Separator is absolute.
const Separator = "::"

// Namespace is a named scope holding tasks and inheritable options.
type Namespace struct {
	path     string
	segments []string
	registry *Registry
	options  *Options
	tasks    map[string]*Task
	order    []string
}

func newNamespace(path string, registry *Registry, opts *Options) *Namespace {
	return &Namespace{
		path:     path,
		segments: splitPath(path),
		registry: registry,
		options:  opts.Clone(),
		tasks:    make(map[string]*Task),
	}
}

// Path returns the fully-qualified path, e.g. "outer::inner".
func (n *Namespace) Path() string {
	return n.path
}

// Name returns the last path segment.
func (n *Namespace) Name() string {
	return n.segments[len(n.segments)-1]
}

// Segments returns a copy of the path segments.
func (n *Namespace) Segments() []string {
	return append([]string(nil), n.segments...)
}

// Parent returns the enclosing namespace, or nil for a top-level namespace.
func (n *Namespace) Parent() *Namespace {
	if len(n.segments) < 2 || n.registry == nil {
		return nil
	}
	parent, _ := n.registry.FindNamespace(joinPath(n.segments[:len(n.segments)-1]))
	return parent
}

// Options returns a copy of the namespace's accumulated options.
func (n *Namespace) Options() *Options {
	return n.options.Clone()
}

// MergeOptions merges opts into the namespace's options.
func (n *Namespace) MergeOptions(opts *Options) {
	n.options.Merge(opts)
}

// Tasks returns the registered tasks in declaration order.
func (n *Namespace) Tasks() []*Task {
	out := make([]*Task, 0, len(n.order))
	for _, name := range n.order {
		out = append(out, n.tasks[name])
	}
	return out
}

// FindTask looks up a task by simple name.
func (n *Namespace) FindTask(name string) (*Task, bool) {
	t, ok := n.tasks[name]
	return t, ok
}

// register stores t, replacing a task with the same simple name in place.
func (n *Namespace) register(t *Task) {
	if _, exists := n.tasks[t.name]; !exists {
		n.order = append(n.order, t.name)
	}
	n.tasks[t.name] = t
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, Separator)
}

func joinPath(segments []string) string {
	return strings.Join(segments, Separator)
}

// splitTask splits a fully-qualified task name on its last separator.
func splitTask(full string) (namespace, task string) {
	idx := strings.LastIndex(full, Separator)
	if idx < 0 {
		return "", full
	}
	return full[:idx], full[idx+len(Separator):]
}

func validatePath(path string) error {
	for _, seg := range splitPath(path) {
		if seg == "" {
			return fmt.Errorf("%w: empty segment in %q", ErrInvalidDeclaration, path)
		}
	}
	return nil
}
