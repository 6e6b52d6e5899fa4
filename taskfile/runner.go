package taskfile

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Runner executes a rendered shell command.
type Runner interface {
	Run(ctx context.Context, command string) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, command string) error

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, command string) error {
	return f(ctx, command)
}

// ShellRunner runs commands through "<Shell> -c". Zero fields default to
// sh, the current directory and the process's stdout/stderr.
type ShellRunner struct {
	Shell  string
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

// Run implements Runner.
func (r ShellRunner) Run(ctx context.Context, command string) error {
	shell := r.Shell
	if shell == "" {
		shell = "sh"
	}
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Dir = r.Dir
	cmd.Stdout = r.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = r.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run %q: %w", command, err)
	}
	return nil
}
