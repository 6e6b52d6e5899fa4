package tasking

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownOption indicates a deferred value looked up a key the merged set does not hold.
	ErrUnknownOption = errors.New("tasking: unknown option")
	// ErrOptionCycle indicates deferred values that (transitively) look themselves up.
	ErrOptionCycle = errors.New("tasking: option cycle detected")
)

// Lookup exposes the fully merged option set to deferred values.
type Lookup interface {
	// Value resolves key, evaluating it first if it is deferred.
	Value(key string) (any, error)
	Has(key string) bool
	Keys() []string
}

// DeferredFunc computes an option value from the final merged option set.
type DeferredFunc func(Lookup) (any, error)

// Value is either a literal or a deferred computation.
type Value struct {
	literal  any
	deferred DeferredFunc
}

// Literal wraps a plain value.
func Literal(v any) Value {
	return Value{literal: v}
}

// Deferred wraps a computation evaluated when a task body is about to run.
func Deferred(fn DeferredFunc) Value {
	if fn == nil {
		return Value{}
	}
	return Value{deferred: fn}
}

// IsDeferred reports whether the value is computed lazily.
func (v Value) IsDeferred() bool {
	return v.deferred != nil
}

// Raw returns the literal payload; it is nil for deferred values.
func (v Value) Raw() any {
	return v.literal
}

func valueOf(v any) Value {
	switch val := v.(type) {
	case Value:
		return val
	case DeferredFunc:
		return Deferred(val)
	case func(Lookup) (any, error):
		return Deferred(val)
	default:
		return Literal(v)
	}
}

// Options is an ordered key/value set with last-write-wins merge semantics.
// The zero value is an empty set ready for use.
type Options struct {
	keys   []string
	values map[string]Value
}

// NewOptions builds a set from kv. Keys are inserted in sorted order so the
// result is deterministic; use Set when insertion order matters.
func NewOptions(kv map[string]any) *Options {
	o := &Options{values: make(map[string]Value, len(kv))}
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		o.Set(k, kv[k])
	}
	return o
}

// Set stores v under key. A Value is stored as is, a DeferredFunc (or a plain
// func(Lookup) (any, error)) becomes a deferred value, anything else a literal.
func (o *Options) Set(key string, v any) *Options {
	o.put(key, valueOf(v))
	return o
}

func (o *Options) put(key string, v Value) {
	if o.values == nil {
		o.values = make(map[string]Value)
	}
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Get returns the unresolved value stored under key.
func (o *Options) Get(key string) (Value, bool) {
	if o == nil {
		return Value{}, false
	}
	v, ok := o.values[key]
	return v, ok
}

// Has reports whether key is present.
func (o *Options) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Keys returns the keys in insertion order.
func (o *Options) Keys() []string {
	if o == nil {
		return nil
	}
	return append([]string(nil), o.keys...)
}

// Len returns the number of keys.
func (o *Options) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Clone returns an independent copy.
func (o *Options) Clone() *Options {
	clone := &Options{values: make(map[string]Value, o.Len())}
	if o == nil {
		return clone
	}
	clone.keys = append(clone.keys, o.keys...)
	for k, v := range o.values {
		clone.values[k] = v
	}
	return clone
}

// Merge copies every key of other into o, overwriting existing keys in place
// and appending new ones. A nil other is a no-op.
func (o *Options) Merge(other *Options) *Options {
	if other == nil {
		return o
	}
	for _, k := range other.keys {
		o.put(k, other.values[k])
	}
	return o
}

// Merged returns a copy of o with other merged on top.
func (o *Options) Merged(other *Options) *Options {
	return o.Clone().Merge(other)
}

// Materialize resolves every value against the set itself. Each deferred
// value is evaluated at most once, even when other deferred values look it up.
func (o *Options) Materialize() (Values, error) {
	m := &materializer{
		opts:     o,
		resolved: make(map[string]any, o.Len()),
		active:   make(map[string]bool),
	}
	out := make(Values, o.Len())
	for _, k := range o.Keys() {
		v, err := m.Value(k)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

type materializer struct {
	opts     *Options
	resolved map[string]any
	active   map[string]bool
}

func (m *materializer) Value(key string) (any, error) {
	if v, ok := m.resolved[key]; ok {
		return v, nil
	}
	val, ok := m.opts.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOption, key)
	}
	if !val.IsDeferred() {
		m.resolved[key] = val.literal
		return val.literal, nil
	}
	if m.active[key] {
		return nil, fmt.Errorf("%w: %s", ErrOptionCycle, key)
	}

	m.active[key] = true
	out, err := val.deferred(m)
	delete(m.active, key)
	if err != nil {
		return nil, fmt.Errorf("resolve option %s: %w", key, err)
	}
	m.resolved[key] = out
	return out, nil
}

func (m *materializer) Has(key string) bool {
	return m.opts.Has(key)
}

func (m *materializer) Keys() []string {
	return m.opts.Keys()
}

// Values is the fully materialized option mapping handed to a task body.
type Values map[string]any

// String returns the value under key when it is a string.
func (v Values) String(key string) (string, bool) {
	s, ok := v[key].(string)
	return s, ok
}

// Int returns the value under key when it holds an integral number.
func (v Values) Int(key string) (int, bool) {
	switch n := v[key].(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

// Bool returns the value under key when it is a bool.
func (v Values) Bool(key string) (bool, bool) {
	b, ok := v[key].(bool)
	return b, ok
}
