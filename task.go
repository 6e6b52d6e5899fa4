package tasking

import "context"

// TaskFunc is the body of a task. It receives the fully materialized options.
type TaskFunc func(ctx context.Context, opts Values) error

// FilterKind selects the filter list of a task.
type FilterKind int

const (
	// BeforeFilter tasks run ahead of the body.
	BeforeFilter FilterKind = iota
	// AfterFilter tasks run once the body has succeeded.
	AfterFilter
)

func (k FilterKind) String() string {
	switch k {
	case BeforeFilter:
		return "before"
	case AfterFilter:
		return "after"
	default:
		return "unknown"
	}
}

func (k FilterKind) valid() bool {
	return k == BeforeFilter || k == AfterFilter
}

// Task is a named unit of work owned by exactly one namespace.
type Task struct {
	name        string
	description string
	namespace   *Namespace
	options     *Options
	body        TaskFunc
	filters     [2][]string
}

func newTask(name string, ns *Namespace, opts *Options, body TaskFunc, description string) *Task {
	return &Task{
		name:        name,
		description: description,
		namespace:   ns,
		options:     opts.Clone(),
		body:        body,
	}
}

// Name returns the simple name.
func (t *Task) Name() string {
	return t.name
}

// FullName returns the fully-qualified name.
func (t *Task) FullName() string {
	return t.namespace.path + Separator + t.name
}

// Namespace returns the owning namespace.
func (t *Task) Namespace() *Namespace {
	return t.namespace
}

// Options returns a copy of the options fixed at declaration.
func (t *Task) Options() *Options {
	return t.options.Clone()
}

// Description returns the human readable description, empty when none was given.
func (t *Task) Description() string {
	return t.description
}

// Filters returns the filter references of the given kind, in attachment order.
func (t *Task) Filters(kind FilterKind) []string {
	if !kind.valid() {
		return nil
	}
	return append([]string(nil), t.filters[kind]...)
}

// AddFilters appends filter references of the given kind.
func (t *Task) AddFilters(kind FilterKind, refs ...string) {
	if !kind.valid() {
		return
	}
	t.filters[kind] = append(t.filters[kind], refs...)
}
