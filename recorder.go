package tasking

import (
	"context"
	"sync"
)

// Run is one recorded task invocation.
type Run struct {
	Metadata TaskMetadata
	Metrics  TaskMetrics
}

// Recorder keeps an ordered log of task invocations. Attach it with
// WithHooks(rec.Hooks()).
type Recorder struct {
	mu     sync.Mutex
	runs   []Run
	open   []int
	bodies []string
}

// NewRecorder constructs an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Hooks returns the callbacks feeding the recorder.
func (r *Recorder) Hooks() Hooks {
	return Hooks{
		OnStart:  r.recordStart,
		OnRun:    r.recordRun,
		OnFinish: r.recordFinish,
	}
}

func (r *Recorder) recordStart(_ context.Context, event TaskEvent) {
	r.mu.Lock()
	r.dropAbandoned(event.Metadata.Depth)
	r.open = append(r.open, len(r.runs))
	r.runs = append(r.runs, Run{Metadata: event.Metadata, Metrics: event.Metrics})
	r.mu.Unlock()
}

func (r *Recorder) recordRun(_ context.Context, event TaskEvent) {
	r.mu.Lock()
	r.bodies = append(r.bodies, event.Metadata.Task)
	r.mu.Unlock()
}

// recordFinish completes the innermost open run with the same task and
// depth. Open runs above it were abandoned by a panic and stay running.
func (r *Recorder) recordFinish(_ context.Context, event TaskEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.open) - 1; i >= 0; i-- {
		run := &r.runs[r.open[i]]
		if run.Metadata.Task == event.Metadata.Task && run.Metadata.Depth == event.Metadata.Depth {
			run.Metrics = event.Metrics
			r.open = r.open[:i]
			return
		}
	}
}

// dropAbandoned closes open runs at depth or deeper. A new invocation
// starting at depth means those never reported their finish.
func (r *Recorder) dropAbandoned(depth int) {
	for len(r.open) > 0 && r.runs[r.open[len(r.open)-1]].Metadata.Depth >= depth {
		r.open = r.open[:len(r.open)-1]
	}
}

// Runs returns the invocations in start order. Runs still in flight (or
// abandoned by a panic) report StatusRunning.
func (r *Recorder) Runs() []Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Run(nil), r.runs...)
}

// Order returns fully-qualified task names in the order their bodies ran.
func (r *Recorder) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.bodies...)
}

// Reset clears everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.runs = nil
	r.open = nil
	r.bodies = nil
	r.mu.Unlock()
}
