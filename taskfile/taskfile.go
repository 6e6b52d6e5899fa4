// Package taskfile declares tasking namespaces and tasks from YAML files.
//
// A file nests namespaces under "namespaces", lists tasks under "tasks" and
// wires filters with "before"/"after" maps from task name to filter names:
//
//	namespaces:
//	  build:
//	    options:
//	      target: linux
//	      out: "=opt('target') + '.bin'"
//	    tasks:
//	      compile:
//	        description: Compile the binary
//	        steps:
//	          - run: go build -o {{.out}} ./...
//	      release:
//	        steps:
//	          - invoke: compile
//	            options: {target: darwin}
//	    before:
//	      release: [compile]
//
// Option strings starting with "=" are expressions evaluated lazily against
// the merged option set; "==" escapes a literal leading "=".
package taskfile

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidFile indicates a declaration file that cannot be turned into tasks.
var ErrInvalidFile = errors.New("taskfile: invalid file")

// Entry is one key of a YAML mapping, kept in file order.
type Entry[T any] struct {
	Name  string
	Value T
}

// Ordered decodes a YAML mapping while keeping declaration order.
type Ordered[T any] []Entry[T]

// UnmarshalYAML implements yaml.Unmarshaler.
func (o *Ordered[T]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: line %d: expected a mapping", ErrInvalidFile, node.Line)
	}
	out := make(Ordered[T], 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		var v T
		if err := val.Decode(&v); err != nil {
			return fmt.Errorf("%s: %w", key.Value, err)
		}
		out = append(out, Entry[T]{Name: key.Value, Value: v})
	}
	*o = out
	return nil
}

// StringList accepts either a single string or a sequence of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*s = items
		return nil
	default:
		return fmt.Errorf("%w: line %d: expected a string or a list of strings", ErrInvalidFile, node.Line)
	}
}

// Body holds the declarations shared by the file root and namespaces.
type Body struct {
	Tasks      Ordered[Task]       `yaml:"tasks"`
	Namespaces Ordered[Namespace]  `yaml:"namespaces"`
	Before     Ordered[StringList] `yaml:"before"`
	After      Ordered[StringList] `yaml:"after"`
}

// File is a parsed declaration file. Tasks at the root must carry a
// namespace prefix ("ci::build").
type File struct {
	Body `yaml:",inline"`
}

// Namespace declares (or re-opens) a namespace.
type Namespace struct {
	Options Ordered[any] `yaml:"options"`
	Body    `yaml:",inline"`
}

// Task declares a task. A task without steps is a grouping task that only
// runs its filters.
type Task struct {
	Description string       `yaml:"description"`
	Options     Ordered[any] `yaml:"options"`
	Steps       []Step       `yaml:"steps"`
}

// Step is either a shell command or an invocation of another task.
type Step struct {
	// Run is a text/template rendered over the task's option values.
	Run string `yaml:"run"`
	// Invoke names a task, resolved relative to the invoking task's namespace.
	Invoke string `yaml:"invoke"`
	// Options are call-site options for Invoke.
	Options Ordered[any] `yaml:"options"`
}

func (s Step) validate() error {
	switch {
	case s.Run != "" && s.Invoke != "":
		return fmt.Errorf("%w: step sets both run and invoke", ErrInvalidFile)
	case s.Run == "" && s.Invoke == "":
		return fmt.Errorf("%w: step sets neither run nor invoke", ErrInvalidFile)
	case s.Run != "" && len(s.Options) > 0:
		return fmt.Errorf("%w: options are only allowed on invoke steps", ErrInvalidFile)
	}
	return nil
}

// Parse decodes a declaration file.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse taskfile: %w", err)
	}
	return &f, nil
}

// ParseFile reads and decodes the declaration file at path.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taskfile: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}
