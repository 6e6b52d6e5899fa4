package tasking

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestOptionsMergeOverwritesInPlace(t *testing.T) {
	base := (&Options{}).Set("a", 1).Set("b", 1)
	base.Merge((&Options{}).Set("c", 2).Set("a", 2))

	assert.Equal(t, []string{"a", "b", "c"}, base.Keys())
	a, ok := base.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, a.Raw())
}

func TestOptionsMergedLeavesReceiverUntouched(t *testing.T) {
	base := NewOptions(map[string]any{"a": 1})
	merged := base.Merged(NewOptions(map[string]any{"a": 2, "b": 2}))

	assert.Equal(t, 1, base.Len())
	v, _ := base.Get("a")
	assert.Equal(t, 1, v.Raw())
	assert.Equal(t, 2, merged.Len())
}

func TestOptionsNilSafety(t *testing.T) {
	var nilOpts *Options
	assert.Zero(t, nilOpts.Len())
	assert.Nil(t, nilOpts.Keys())
	assert.False(t, nilOpts.Has("a"))
	assert.Zero(t, nilOpts.Clone().Len())

	var zero Options
	zero.Set("a", 1).Merge(nil)
	assert.Equal(t, []string{"a"}, zero.Keys())
}

func TestValueClassification(t *testing.T) {
	fn := func(Lookup) (any, error) { return 1, nil }

	o := (&Options{}).
		Set("literal", "x").
		Set("func", fn).
		Set("typed", DeferredFunc(fn)).
		Set("value", Literal(fn)).
		Set("nil_deferred", DeferredFunc(nil))

	for key, deferred := range map[string]bool{
		"literal":      false,
		"func":         true,
		"typed":        true,
		"value":        false,
		"nil_deferred": false,
	} {
		v, ok := o.Get(key)
		require.True(t, ok, key)
		assert.Equal(t, deferred, v.IsDeferred(), key)
	}
}

func TestMaterializeUnknownLookup(t *testing.T) {
	o := (&Options{}).Set("x", func(l Lookup) (any, error) {
		if l.Has("missing") {
			return nil, errors.New("unexpected key")
		}
		return l.Value("missing")
	})

	_, err := o.Materialize()
	require.ErrorIs(t, err, ErrUnknownOption)
	assert.Contains(t, err.Error(), "resolve option x")
}

func TestMaterializeDeferredError(t *testing.T) {
	boom := errors.New("boom")
	o := (&Options{}).Set("x", func(Lookup) (any, error) { return nil, boom })

	_, err := o.Materialize()
	require.ErrorIs(t, err, boom)
}

func TestMaterializeLookupSeesAllKeys(t *testing.T) {
	o := (&Options{}).Set("a", 1).Set("keys", func(l Lookup) (any, error) {
		return len(l.Keys()), nil
	}).Set("b", 2)

	values, err := o.Materialize()
	require.NoError(t, err)
	assert.Equal(t, 3, values["keys"])
}

func TestValuesAccessors(t *testing.T) {
	v := Values{"s": "x", "i": 3, "f": 4.0, "frac": 4.5, "i64": int64(7), "b": true}

	s, ok := v.String("s")
	assert.True(t, ok)
	assert.Equal(t, "x", s)
	_, ok = v.String("i")
	assert.False(t, ok)

	for key, want := range map[string]int{"i": 3, "f": 4, "i64": 7} {
		got, ok := v.Int(key)
		assert.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}
	_, ok = v.Int("frac")
	assert.False(t, ok)

	b, ok := v.Bool("b")
	assert.True(t, ok)
	assert.True(t, b)
	_, ok = v.Bool("missing")
	assert.False(t, ok)
}

func optionMaps() *rapid.Generator[[]map[string]int] {
	return rapid.SliceOfN(rapid.MapOf(rapid.StringMatching(`[a-f]`), rapid.IntRange(0, 9)), 1, 6)
}

func fold(layers ...map[string]int) Values {
	out := Values{}
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

func toOptions(m map[string]int) *Options {
	kv := make(map[string]any, len(m))
	for k, v := range m {
		kv[k] = v
	}
	return NewOptions(kv)
}

func TestPropertyFindOrCreateAccumulatesOptions(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		path := rapid.SampledFrom([]string{"a", "a::b", "a::b::c"}).Draw(rt, "path")
		layers := optionMaps().Draw(rt, "layers")

		r := NewRegistry()
		first := r.FindOrCreate(path, toOptions(layers[0]))
		for _, layer := range layers[1:] {
			require.Same(rt, first, r.FindOrCreate(path, toOptions(layer)))
		}

		values, err := first.Options().Materialize()
		require.NoError(rt, err)
		assert.Equal(rt, fold(layers...), values)
		assert.Len(rt, r.Namespaces(), 1)
	})
}

func TestPropertyFourTierPrecedence(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tier := rapid.MapOf(rapid.StringMatching(`[a-f]`), rapid.IntRange(0, 9))
		outer := tier.Draw(rt, "outer")
		inner := tier.Draw(rt, "inner")
		task := tier.Draw(rt, "task")
		call := tier.Draw(rt, "call")

		e := New()
		var got Values
		require.NoError(rt, e.Namespace("outer", func() error {
			return e.Namespace("inner", func() error {
				return e.Task("t", capture(&got), WithOptions(toOptions(task)))
			}, WithOptions(toOptions(inner)))
		}, WithOptions(toOptions(outer))))

		require.NoError(rt, e.Execute(context.Background(), "outer::inner::t", toOptions(call)))
		assert.Equal(rt, fold(outer, inner, task, call), got)
	})
}

func TestPropertyRedeclaredTaskListedOnce(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		names := rapid.SliceOfN(rapid.StringMatching(`[a-c]`), 1, 10).Draw(rt, "names")

		e := New()
		unique := map[string]bool{}
		for _, name := range names {
			require.NoError(rt, e.Task("ns::"+name, nil))
			unique[name] = true
		}

		structure := e.Structure()
		require.Len(rt, structure, 1)
		assert.Len(rt, structure[0].Tasks, len(unique))
	})
}
