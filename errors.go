package tasking

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidDeclaration indicates a task or namespace declared with an empty name or path segment.
	ErrInvalidDeclaration = errors.New("tasking: invalid declaration")
	// ErrNotInNamespace indicates a declaration that needs an enclosing namespace but has none.
	ErrNotInNamespace = errors.New("tasking: not in a namespace")
	// ErrUnknownTask indicates a task reference that does not resolve to a registered task.
	ErrUnknownTask = errors.New("tasking: unknown task")
	// ErrFilterCycle indicates filters that would invoke a task from within its own filter chain.
	ErrFilterCycle = errors.New("tasking: filter cycle detected")
)

// UnknownTaskError describes a task reference that matched nothing.
// It unwraps to ErrUnknownTask.
type UnknownTaskError struct {
	// Name is the reference as written.
	Name string
	// Tried lists the fully-qualified names looked up, in order.
	Tried []string
	// Filter marks references made through a before/after filter.
	Filter bool
	Kind   FilterKind
	// Owner is the task the filter belongs to. It is empty when the filter
	// could not be attached because the target task itself is unknown.
	Owner string
}

func (e *UnknownTaskError) Error() string {
	var b strings.Builder
	b.WriteString("tasking: unknown ")
	if e.Filter && e.Owner != "" {
		b.WriteString(e.Kind.String())
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "task '%s'", e.Name)
	if alt := e.alternatives(); len(alt) > 0 {
		b.WriteString(" or '")
		b.WriteString(strings.Join(alt, "' or '"))
		b.WriteByte('\'')
	}
	if e.Filter {
		if e.Owner != "" {
			fmt.Fprintf(&b, " for task '%s'", e.Owner)
		} else {
			fmt.Fprintf(&b, " in %s filter", e.Kind)
		}
	}
	return b.String()
}

// alternatives returns the tried forms that differ from the name as written,
// only when a relative lookup preceded the absolute one.
func (e *UnknownTaskError) alternatives() []string {
	if len(e.Tried) < 2 {
		return nil
	}
	var out []string
	for _, t := range e.Tried {
		if t != e.Name {
			out = append(out, t)
		}
	}
	return out
}

func (e *UnknownTaskError) Unwrap() error {
	return ErrUnknownTask
}
