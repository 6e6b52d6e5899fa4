package taskfile

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/bpradana/tasking"
)

const exprPrefix = "="

var errNoLookup = errors.New("no option set to look up")

// exprEnv is the environment expressions compile and run against. opt reads
// another option through the lookup, resolving it first if it is deferred.
func exprEnv(l tasking.Lookup) map[string]any {
	return map[string]any{
		"opt": func(key string) (any, error) {
			if l == nil {
				return nil, errNoLookup
			}
			return l.Value(key)
		},
		"has": func(key string) bool {
			return l != nil && l.Has(key)
		},
		"env": os.Getenv,
	}
}

// compileExpr compiles src once so syntax errors surface at load time.
func compileExpr(src string) (*vm.Program, error) {
	return expr.Compile(src, expr.Env(exprEnv(nil)))
}

// OptionValue converts a value read from a declaration file (or the command
// line) into an option value. Strings starting with "=" become deferred
// expressions; a leading "==" stands for a literal "=".
func OptionValue(key string, v any) (any, error) {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, exprPrefix) {
		return v, nil
	}
	if strings.HasPrefix(s, exprPrefix+exprPrefix) {
		return s[len(exprPrefix):], nil
	}

	src := strings.TrimSpace(s[len(exprPrefix):])
	program, err := compileExpr(src)
	if err != nil {
		return nil, fmt.Errorf("%w: option %s: %v", ErrInvalidFile, key, err)
	}
	return tasking.DeferredFunc(func(l tasking.Lookup) (any, error) {
		out, err := expr.Run(program, exprEnv(l))
		if err != nil {
			return nil, fmt.Errorf("evaluate %q: %w", src, err)
		}
		return out, nil
	}), nil
}

// BuildOptions turns ordered entries into an option set, keeping file order.
func BuildOptions(entries Ordered[any]) (*tasking.Options, error) {
	opts := &tasking.Options{}
	for _, entry := range entries {
		v, err := OptionValue(entry.Name, entry.Value)
		if err != nil {
			return nil, err
		}
		opts.Set(entry.Name, v)
	}
	return opts, nil
}
