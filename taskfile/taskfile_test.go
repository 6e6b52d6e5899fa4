package taskfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpradana/tasking"
)

type fakeRunner struct {
	commands []string
	err      error
}

func (f *fakeRunner) Run(_ context.Context, command string) error {
	f.commands = append(f.commands, command)
	return f.err
}

const pipeline = `
namespaces:
  build:
    options:
      target: linux
      out: "=opt('target') + '.bin'"
      literal: "==not an expression"
    tasks:
      compile:
        description: Compile the binary
        steps:
          - run: go build -o {{.out}}
      lint:
        steps:
          - run: lint {{.target}} {{.literal}}
      release:
        options:
          channel: stable
        steps:
          - invoke: compile
            options:
              target: darwin
          - run: publish {{.channel}}
    before:
      compile: lint
    namespaces:
      docs:
        tasks:
          render:
            steps:
              - run: render {{.target}}
tasks:
  ci::all:
    description: Everything
    steps:
      - invoke: build::release
after:
  build::release: [build::docs::render]
`

func load(t *testing.T, src string) (*tasking.Engine, *fakeRunner) {
	t.Helper()
	f, err := Parse([]byte(src))
	require.NoError(t, err)

	e := tasking.New()
	runner := &fakeRunner{}
	require.NoError(t, NewLoader(e, WithRunner(runner)).Load(f))
	return e, runner
}

func TestLoadDeclaresStructureInFileOrder(t *testing.T) {
	e, _ := load(t, pipeline)

	assert.Equal(t, []tasking.NamespaceTasks{
		{Namespace: "build", Tasks: []string{"compile", "lint", "release"}},
		{Namespace: "build::docs", Tasks: []string{"render"}},
		{Namespace: "ci", Tasks: []string{"all"}},
	}, e.Structure())

	task, ok := e.Registry().FindTask("build::compile")
	require.True(t, ok)
	assert.Equal(t, "Compile the binary", task.Description())
}

func TestRunStepsRenderMergedOptions(t *testing.T) {
	e, runner := load(t, pipeline)

	require.NoError(t, e.Execute(context.Background(), "build::compile", nil))
	assert.Equal(t, []string{
		"lint linux =not an expression",
		"go build -o linux.bin",
	}, runner.commands)
}

func TestCallSiteOptionsReachDeferredExpressions(t *testing.T) {
	e, runner := load(t, pipeline)

	opts := (&tasking.Options{}).Set("target", "windows")
	require.NoError(t, e.Execute(context.Background(), "build::compile", opts))
	assert.Equal(t, "go build -o windows.bin", runner.commands[1])
}

func TestInvokeStepsAndFilters(t *testing.T) {
	e, runner := load(t, pipeline)

	require.NoError(t, e.Execute(context.Background(), "ci::all", nil))
	assert.Equal(t, []string{
		"lint darwin =not an expression",
		"go build -o darwin.bin",
		"publish stable",
		"render linux",
	}, runner.commands)
}

func TestRunnerErrorStopsTask(t *testing.T) {
	f, err := Parse([]byte(pipeline))
	require.NoError(t, err)

	e := tasking.New()
	runner := &fakeRunner{err: assert.AnError}
	require.NoError(t, NewLoader(e, WithRunner(runner)).Load(f))

	err = e.Execute(context.Background(), "build::compile", nil)
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []string{"lint linux =not an expression"}, runner.commands)
}

func TestMissingTemplateKeyFails(t *testing.T) {
	e, _ := load(t, `
namespaces:
  ns:
    tasks:
      t:
        steps:
          - run: echo {{.missing}}
`)
	err := e.Execute(context.Background(), "ns::t", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render t#1")
}

func TestExpressionFunctions(t *testing.T) {
	t.Setenv("TASKING_TEST_HOME", "/srv")
	e, runner := load(t, `
namespaces:
  ns:
    options:
      root: "=env('TASKING_TEST_HOME')"
      mode: "=has('debug') ? 'debug' : 'release'"
      depth: "=len(opt('root'))"
    tasks:
      t:
        steps:
          - run: "{{.root}} {{.mode}} {{.depth}}"
`)
	require.NoError(t, e.Execute(context.Background(), "ns::t", nil))
	require.NoError(t, e.Execute(context.Background(), "ns::t", (&tasking.Options{}).Set("debug", true)))
	assert.Equal(t, []string{"/srv release 4", "/srv debug 4"}, runner.commands)
}

func TestExpressionCycle(t *testing.T) {
	e, _ := load(t, `
namespaces:
  ns:
    options:
      a: "=opt('b')"
      b: "=opt('a')"
    tasks:
      t:
        steps:
          - run: echo
`)
	err := e.Execute(context.Background(), "ns::t", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "option cycle detected")
}

func TestInvalidDeclarations(t *testing.T) {
	for name, src := range map[string]string{
		"bad expression": `
namespaces:
  ns:
    options:
      a: "=1 +"
`,
		"run and invoke": `
namespaces:
  ns:
    tasks:
      t:
        steps:
          - run: echo
            invoke: other
`,
		"empty step": `
namespaces:
  ns:
    tasks:
      t:
        steps:
          - {}
`,
		"options on run": `
namespaces:
  ns:
    tasks:
      t:
        steps:
          - run: echo
            options: {a: 1}
`,
		"bad template": `
namespaces:
  ns:
    tasks:
      t:
        steps:
          - run: "echo {{"
`,
	} {
		t.Run(name, func(t *testing.T) {
			f, err := Parse([]byte(src))
			require.NoError(t, err)
			err = NewLoader(tasking.New()).Load(f)
			require.ErrorIs(t, err, ErrInvalidFile)
		})
	}
}

func TestRootTaskWithoutNamespace(t *testing.T) {
	f, err := Parse([]byte("tasks:\n  lonely: {}\n"))
	require.NoError(t, err)

	err = NewLoader(tasking.New()).Load(f)
	require.ErrorIs(t, err, tasking.ErrNotInNamespace)
}

func TestParseRejectsNonMapping(t *testing.T) {
	_, err := Parse([]byte("namespaces: [a, b]\n"))
	require.ErrorIs(t, err, ErrInvalidFile)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasking.yaml")
	require.NoError(t, os.WriteFile(path, []byte(pipeline), 0o600))

	e := tasking.New()
	require.NoError(t, NewLoader(e, WithRunner(&fakeRunner{})).LoadFile(path))
	assert.Len(t, e.Registry().Tasks(), 5)

	_, err := ParseFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestOptionValue(t *testing.T) {
	v, err := OptionValue("k", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	v, err = OptionValue("k", "plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", v)

	v, err = OptionValue("k", "==x")
	require.NoError(t, err)
	assert.Equal(t, "=x", v)

	v, err = OptionValue("k", "= 1 + 2")
	require.NoError(t, err)
	opts := (&tasking.Options{}).Set("k", v)
	values, err := opts.Materialize()
	require.NoError(t, err)
	assert.Equal(t, 3, values["k"])
}
