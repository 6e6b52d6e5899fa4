package tasking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// now is overridden in tests to provide deterministic timings.
var now = time.Now

// Engine evaluates task declarations and executes tasks. It keeps the scope
// stack and the queue of pending filter registrations, so an Engine must be
// driven from a single goroutine.
type Engine struct {
	registry *Registry
	logger   *zap.Logger
	hooks    Hooks

	scopes      []*Namespace
	pending     []pendingFilter
	finalized   bool
	finalizeErr error
	runID       string

	// active counts the running invocations of each task.
	active map[*Task]int
}

// pendingFilter is a before/after registration waiting for Finalize.
type pendingFilter struct {
	kind  FilterKind
	task  string
	scope string
	refs  []string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRegistry supplies the registry the engine declares into.
func WithRegistry(r *Registry) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithHooks registers hooks applied to every task invocation.
func WithHooks(h Hooks) EngineOption {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(h)
	}
}

// New constructs an Engine with an empty registry unless one is supplied.
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		registry: NewRegistry(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "tasking"))
	return e
}

// Registry returns the registry the engine declares into.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Structure lists the tasks of every namespace.
func (e *Engine) Structure() []NamespaceTasks {
	return e.registry.Structure()
}

// Reset clears the registry, pending filters and scope, as if the engine
// were new. Hooks and logger are kept.
func (e *Engine) Reset() {
	e.registry.Reset()
	e.scopes = nil
	e.pending = nil
	e.finalized = false
	e.finalizeErr = nil
	e.active = nil
	e.runID = ""
}

type declConfig struct {
	options     *Options
	description string
}

// DeclOption configures a task or namespace declaration.
type DeclOption func(*declConfig)

// WithOptions merges opts into the declared options.
func WithOptions(opts *Options) DeclOption {
	return func(cfg *declConfig) {
		cfg.options.Merge(opts)
	}
}

// WithOption sets a single declared option; see Options.Set for v.
func WithOption(key string, v any) DeclOption {
	return func(cfg *declConfig) {
		cfg.options.Set(key, v)
	}
}

// WithDescription attaches a human readable description to a task.
func WithDescription(description string) DeclOption {
	return func(cfg *declConfig) {
		cfg.description = description
	}
}

func newDeclConfig(opts []DeclOption) declConfig {
	cfg := declConfig{options: &Options{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (e *Engine) current() *Namespace {
	if len(e.scopes) == 0 {
		return nil
	}
	return e.scopes[len(e.scopes)-1]
}

func (e *Engine) currentPath() string {
	if ns := e.current(); ns != nil {
		return ns.path
	}
	return ""
}

// push makes ns the current scope and returns the matching pop, meant to be
// deferred so the stack unwinds on every exit path.
func (e *Engine) push(ns *Namespace) func() {
	e.scopes = append(e.scopes, ns)
	depth := len(e.scopes)
	return func() {
		e.scopes = e.scopes[:depth-1]
	}
}

func (e *Engine) qualify(name string) string {
	if scope := e.currentPath(); scope != "" {
		return scope + Separator + name
	}
	return name
}

// Namespace declares (or re-opens) a namespace relative to the current
// scope, merges the declared options into it and runs body with the
// namespace as current scope.
func (e *Engine) Namespace(name string, body func() error, opts ...DeclOption) error {
	if name == "" {
		return fmt.Errorf("%w: namespace name must not be empty", ErrInvalidDeclaration)
	}
	full := e.qualify(name)
	if err := validatePath(full); err != nil {
		return err
	}

	cfg := newDeclConfig(opts)
	ns := e.registry.Build(full, cfg.options)
	e.logger.Debug("namespace declared", zap.String("namespace", full))

	if body == nil {
		return nil
	}
	defer e.push(ns)()
	return body()
}

// Task declares a task. name may carry a namespace prefix ("inner::build")
// which is interpreted relative to the current scope. Declaring an existing
// fully-qualified name replaces the old task along with its filters.
func (e *Engine) Task(name string, body TaskFunc, opts ...DeclOption) error {
	if name == "" {
		return fmt.Errorf("%w: task name must not be empty", ErrInvalidDeclaration)
	}
	full := e.qualify(name)
	if err := validatePath(full); err != nil {
		return err
	}
	path, simple := splitTask(full)
	if path == "" {
		return fmt.Errorf("%w: task '%s'", ErrNotInNamespace, name)
	}

	cfg := newDeclConfig(opts)
	ns := e.registry.Build(path, nil)
	task := newTask(simple, ns, cfg.options, body, cfg.description)
	ns.register(task)

	e.logger.Debug("task declared", zap.String("task", task.FullName()))
	return nil
}

// Options merges opts into the namespace at the top of the scope stack.
func (e *Engine) Options(opts *Options) error {
	ns := e.current()
	if ns == nil {
		return fmt.Errorf("%w: options declared outside a namespace", ErrNotInNamespace)
	}
	ns.MergeOptions(opts)
	return nil
}

// Before registers refs as before filters of task. The task reference is
// resolved on the first Execute, so it may name a task declared later.
func (e *Engine) Before(task string, refs ...string) error {
	return e.addFilters(BeforeFilter, task, refs)
}

// After registers refs as after filters of task; see Before.
func (e *Engine) After(task string, refs ...string) error {
	return e.addFilters(AfterFilter, task, refs)
}

func (e *Engine) addFilters(kind FilterKind, task string, refs []string) error {
	if task == "" {
		return fmt.Errorf("%w: %s filter target must not be empty", ErrInvalidDeclaration, kind)
	}
	p := pendingFilter{
		kind:  kind,
		task:  task,
		scope: e.currentPath(),
		refs:  append([]string(nil), refs...),
	}
	if e.finalized {
		return e.attach(p)
	}
	e.pending = append(e.pending, p)
	return nil
}

func (e *Engine) attach(p pendingFilter) error {
	task, tried := e.resolve(p.scope, p.task)
	if task == nil {
		return &UnknownTaskError{Name: p.task, Tried: tried, Filter: true, Kind: p.kind}
	}
	task.AddFilters(p.kind, p.refs...)
	e.logger.Debug("filters attached",
		zap.String("task", task.FullName()),
		zap.Stringer("kind", p.kind),
		zap.Strings("filters", p.refs),
	)
	return nil
}

// Finalize attaches every pending before/after registration. It runs once;
// Execute calls it automatically. Registrations made afterwards attach
// immediately.
//
// Every registration is attempted even when some fail. The joined failures
// are kept and returned by every later Finalize and Execute until Reset.
func (e *Engine) Finalize() error {
	if e.finalized {
		return e.finalizeErr
	}
	e.finalized = true
	pending := e.pending
	e.pending = nil

	var errs []error
	for _, p := range pending {
		if err := e.attach(p); err != nil {
			errs = append(errs, err)
		}
	}
	e.finalizeErr = errors.Join(errs...)
	return e.finalizeErr
}

// resolve looks name up relative to scope first and as an absolute name
// second. A name starting with Separator is looked up as absolute only.
// It returns the task (nil when nothing matched) and the names tried.
func (e *Engine) resolve(scope, name string) (*Task, []string) {
	if strings.HasPrefix(name, Separator) {
		abs := strings.TrimPrefix(name, Separator)
		task, _ := e.registry.FindTask(abs)
		return task, []string{abs}
	}

	var tried []string
	if scope != "" {
		qualified := scope + Separator + name
		tried = append(tried, qualified)
		if task, ok := e.registry.FindTask(qualified); ok {
			return task, tried
		}
	}
	tried = append(tried, name)
	task, _ := e.registry.FindTask(name)
	return task, tried
}

// Execute resolves name and runs the task with options gathered from its
// namespaces (outermost first), the task itself and finally opts.
func (e *Engine) Execute(ctx context.Context, name string, opts *Options) error {
	if err := e.Finalize(); err != nil {
		return err
	}

	task, tried := e.resolve(e.currentPath(), name)
	if task == nil {
		return &UnknownTaskError{Name: name, Tried: tried}
	}

	merged := e.gather(task).Merge(opts)

	if e.runID == "" {
		e.runID = uuid.NewString()
		defer func() { e.runID = "" }()

		started := now()
		e.logger.Info("run started", zap.String("run_id", e.runID), zap.String("task", task.FullName()))
		defer func() {
			e.logger.Info("run finished",
				zap.String("run_id", e.runID),
				zap.String("task", task.FullName()),
				zap.Duration("duration", now().Sub(started)),
			)
		}()
	}

	return e.invoke(ctx, task, merged, RoleTask)
}

// Invoke is an alias of Execute.
func (e *Engine) Invoke(ctx context.Context, name string, opts *Options) error {
	return e.Execute(ctx, name, opts)
}

// Run is an alias of Execute.
func (e *Engine) Run(ctx context.Context, name string, opts *Options) error {
	return e.Execute(ctx, name, opts)
}

// gather merges namespace options from the outermost namespace inwards, then
// the task's own options.
func (e *Engine) gather(task *Task) *Options {
	merged := &Options{}
	segments := task.namespace.segments
	for i := 1; i <= len(segments); i++ {
		if ns, ok := e.registry.FindNamespace(joinPath(segments[:i])); ok {
			merged.Merge(ns.options)
		}
	}
	return merged.Merge(task.options)
}

// invoke runs the filter chain and body of task with the task's namespace as
// current scope. Filters receive the same merged options as the task.
func (e *Engine) invoke(ctx context.Context, task *Task, merged *Options, role Role) error {
	meta := TaskMetadata{
		RunID:     e.runID,
		Task:      task.FullName(),
		Namespace: task.namespace.path,
		Role:      role,
		Depth:     len(e.scopes),
	}
	defer e.push(task.namespace)()
	defer e.enter(task)()

	metrics := TaskMetrics{StartedAt: now(), Status: StatusRunning}
	e.invokeHook(ctx, e.hooks.OnStart, TaskEvent{Metadata: meta, Metrics: metrics})
	e.logger.Debug("task started", zap.String("task", meta.Task), zap.String("role", string(role)))

	err := e.runChain(ctx, task, merged, meta)

	metrics.CompletedAt = now()
	metrics.Duration = metrics.CompletedAt.Sub(metrics.StartedAt)
	if err != nil {
		metrics.Status = StatusFailed
		metrics.Error = err
		e.invokeHook(ctx, e.hooks.OnFailure, TaskEvent{Metadata: meta, Metrics: metrics})
		e.logger.Debug("task failed", zap.String("task", meta.Task), zap.Error(err))
	} else {
		metrics.Status = StatusSucceeded
		e.invokeHook(ctx, e.hooks.OnSuccess, TaskEvent{Metadata: meta, Metrics: metrics})
		e.logger.Debug("task succeeded", zap.String("task", meta.Task), zap.Duration("duration", metrics.Duration))
	}
	e.invokeHook(ctx, e.hooks.OnFinish, TaskEvent{Metadata: meta, Metrics: metrics})
	return err
}

func (e *Engine) runChain(ctx context.Context, task *Task, merged *Options, meta TaskMetadata) error {
	if err := e.runFilters(ctx, task, BeforeFilter, merged); err != nil {
		return err
	}

	var values Values
	if task.body != nil {
		var err error
		if values, err = merged.Materialize(); err != nil {
			return fmt.Errorf("tasking: options of task '%s': %w", meta.Task, err)
		}
	}
	e.invokeHook(ctx, e.hooks.OnRun, TaskEvent{
		Metadata: meta,
		Metrics:  TaskMetrics{StartedAt: now(), Status: StatusRunning},
	})
	if task.body != nil {
		if err := task.body(ctx, values); err != nil {
			return err
		}
	}

	return e.runFilters(ctx, task, AfterFilter, merged)
}

func (e *Engine) runFilters(ctx context.Context, task *Task, kind FilterKind, merged *Options) error {
	for _, ref := range task.Filters(kind) {
		filter, tried := e.resolve(task.namespace.path, ref)
		if filter == nil {
			return &UnknownTaskError{
				Name:   ref,
				Tried:  tried,
				Filter: true,
				Kind:   kind,
				Owner:  task.FullName(),
			}
		}
		if e.active[filter] > 0 {
			return fmt.Errorf("%w: %s filter '%s' of task '%s' is already running",
				ErrFilterCycle, kind, filter.FullName(), task.FullName())
		}
		if err := e.invoke(ctx, filter, merged, roleFor(kind)); err != nil {
			return err
		}
	}
	return nil
}

// enter marks task as running and returns the matching exit.
func (e *Engine) enter(task *Task) func() {
	if e.active == nil {
		e.active = make(map[*Task]int)
	}
	e.active[task]++
	return func() {
		if e.active == nil {
			return
		}
		if e.active[task]--; e.active[task] <= 0 {
			delete(e.active, task)
		}
	}
}

func (e *Engine) invokeHook(ctx context.Context, hook HookFunc, event TaskEvent) {
	if hook != nil {
		hook(ctx, event)
	}
}
