package taskfile

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/bpradana/tasking"
)

// Loader turns parsed files into declarations on an engine.
type Loader struct {
	engine *tasking.Engine
	runner Runner
	logger *zap.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithRunner sets the runner used by run steps. The default is ShellRunner{}.
func WithRunner(r Runner) LoaderOption {
	return func(l *Loader) {
		if r != nil {
			l.runner = r
		}
	}
}

// WithLogger sets the loader's logger.
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader constructs a loader declaring into engine.
func NewLoader(engine *tasking.Engine, opts ...LoaderOption) *Loader {
	l := &Loader{
		engine: engine,
		runner: ShellRunner{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(zap.String("component", "taskfile"))
	return l
}

// LoadFile parses path and declares its contents.
func (l *Loader) LoadFile(path string) error {
	f, err := ParseFile(path)
	if err != nil {
		return err
	}
	if err := l.Load(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	l.logger.Debug("taskfile loaded", zap.String("path", path))
	return nil
}

// Load declares the namespaces, tasks and filters of f. Nested namespaces
// are declared before the tasks next to them.
func (l *Loader) Load(f *File) error {
	if f == nil {
		return nil
	}
	return l.declareBody(f.Body)
}

func (l *Loader) declareBody(b Body) error {
	for _, entry := range b.Namespaces {
		if err := l.declareNamespace(entry.Name, entry.Value); err != nil {
			return err
		}
	}
	for _, entry := range b.Tasks {
		if err := l.declareTask(entry.Name, entry.Value); err != nil {
			return err
		}
	}
	for _, entry := range b.Before {
		if err := l.engine.Before(entry.Name, entry.Value...); err != nil {
			return err
		}
	}
	for _, entry := range b.After {
		if err := l.engine.After(entry.Name, entry.Value...); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) declareNamespace(name string, ns Namespace) error {
	opts, err := BuildOptions(ns.Options)
	if err != nil {
		return fmt.Errorf("namespace %s: %w", name, err)
	}
	return l.engine.Namespace(name, func() error {
		return l.declareBody(ns.Body)
	}, tasking.WithOptions(opts))
}

func (l *Loader) declareTask(name string, t Task) error {
	opts, err := BuildOptions(t.Options)
	if err != nil {
		return fmt.Errorf("task %s: %w", name, err)
	}
	body, err := l.compileSteps(name, t.Steps)
	if err != nil {
		return fmt.Errorf("task %s: %w", name, err)
	}
	return l.engine.Task(name, body, tasking.WithOptions(opts), tasking.WithDescription(t.Description))
}

type compiledStep struct {
	command *template.Template
	invoke  string
	options *tasking.Options
}

// compileSteps parses templates and option expressions up front. A task
// without steps gets a nil body.
func (l *Loader) compileSteps(name string, steps []Step) (tasking.TaskFunc, error) {
	if len(steps) == 0 {
		return nil, nil
	}

	compiled := make([]compiledStep, 0, len(steps))
	for i, step := range steps {
		if err := step.validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		if step.Invoke != "" {
			opts, err := BuildOptions(step.Options)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i+1, err)
			}
			compiled = append(compiled, compiledStep{invoke: step.Invoke, options: opts})
			continue
		}
		tmpl, err := template.New(fmt.Sprintf("%s#%d", name, i+1)).Option("missingkey=error").Parse(step.Run)
		if err != nil {
			return nil, fmt.Errorf("%w: step %d: %v", ErrInvalidFile, i+1, err)
		}
		compiled = append(compiled, compiledStep{command: tmpl})
	}

	return func(ctx context.Context, values tasking.Values) error {
		for _, step := range compiled {
			if step.invoke != "" {
				if err := l.engine.Execute(ctx, step.invoke, step.options); err != nil {
					return err
				}
				continue
			}
			var cmd strings.Builder
			if err := step.command.Execute(&cmd, values); err != nil {
				return fmt.Errorf("render %s: %w", step.command.Name(), err)
			}
			l.logger.Debug("running command", zap.String("step", step.command.Name()), zap.String("command", cmd.String()))
			if err := l.runner.Run(ctx, cmd.String()); err != nil {
				return err
			}
		}
		return nil
	}, nil
}
