package tasking

import (
	"context"
	"time"
)

// TaskStatus is the state of a task invocation as reported to hooks.
type TaskStatus string

const (
	StatusRunning   TaskStatus = "running"
	StatusSucceeded TaskStatus = "succeeded"
	StatusFailed    TaskStatus = "failed"
)

// Role tells why a task was invoked.
type Role string

const (
	// RoleTask marks a task invoked through Execute.
	RoleTask Role = "task"
	// RoleBefore marks a task invoked as a before filter.
	RoleBefore Role = "before"
	// RoleAfter marks a task invoked as an after filter.
	RoleAfter Role = "after"
)

func roleFor(kind FilterKind) Role {
	if kind == AfterFilter {
		return RoleAfter
	}
	return RoleBefore
}

// TaskMetadata identifies a task invocation.
type TaskMetadata struct {
	// RunID is shared by every invocation below one top-level Execute.
	RunID     string
	Task      string
	Namespace string
	Role      Role
	// Depth is the number of enclosing invocations.
	Depth int
}

// TaskMetrics captures timing and outcome of a task invocation. The figures
// cover the whole filter chain, not just the body.
type TaskMetrics struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Status      TaskStatus
	Error       error
}

// TaskEvent is what every hook receives.
type TaskEvent struct {
	Metadata TaskMetadata
	Metrics  TaskMetrics
}

// HookFunc observes one step of an invocation. Hooks cannot fail or
// alter the run.
type HookFunc func(context.Context, TaskEvent)

// Hooks is a set of optional callbacks fired around every invocation,
// filters included.
//
// For one invocation the order is OnStart, the before filters, OnRun, the
// body, the after filters, then OnSuccess or OnFailure and finally OnFinish.
// A body that panics skips the trailing callbacks.
type Hooks struct {
	OnStart   HookFunc
	OnRun     HookFunc
	OnSuccess HookFunc
	OnFailure HookFunc
	OnFinish  HookFunc
}

// Merge returns hooks calling h's callbacks first and other's second.
func (h Hooks) Merge(other Hooks) Hooks {
	merged := h
	for dst, next := range map[*HookFunc]HookFunc{
		&merged.OnStart:   other.OnStart,
		&merged.OnRun:     other.OnRun,
		&merged.OnSuccess: other.OnSuccess,
		&merged.OnFailure: other.OnFailure,
		&merged.OnFinish:  other.OnFinish,
	} {
		*dst = then(*dst, next)
	}
	return merged
}

func then(first, next HookFunc) HookFunc {
	if first == nil {
		return next
	}
	if next == nil {
		return first
	}
	return func(ctx context.Context, event TaskEvent) {
		first(ctx, event)
		next(ctx, event)
	}
}
