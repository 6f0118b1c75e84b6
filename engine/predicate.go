package engine

import (
	"reflect"
	"strings"
	"sync"
)

var defaultTests = sync.OnceValue(func() *Registry {
	b := NewRegistryBuilder("test")

	is := func(name string, fn func(v any) bool) Callable {
		return Callable{Name: name, MinArgs: 1, MaxArgs: 1, Fn: func(_ *Context, a Args) (any, error) {
			return fn(a.At(0)), nil
		}}
	}

	b.Add(
		is("defined", func(v any) bool { return !IsUndefined(v) }),
		is("undefined", IsUndefined),
		is("null", func(v any) bool { return v == nil || IsUndefined(v) }),
		is("true", func(v any) bool { return v == true }),
		is("false", func(v any) bool { return v == false }),
		is("even", parity(0)),
		is("odd", parity(1)),
		is("string", func(v any) bool { _, ok := stringOf(v); return ok }),
		is("number", func(v any) bool { _, ok := toNumber(v); _, b := v.(bool); return ok && !b }),
		is("iterable", iterable),
		is("mapping", mapping),
		is("empty", func(v any) bool { n, err := length(v); return err == nil && n == 0 }),
		is("callable", callable),
		Callable{Name: "divisibleby", MinArgs: 2, MaxArgs: 2, Fn: testDivisible},
		Callable{Name: "sameas", MinArgs: 2, MaxArgs: 2, Fn: testSameAs},
		Callable{Name: "startingwith", MinArgs: 2, MaxArgs: 2, Fn: affix(strings.HasPrefix)},
		Callable{Name: "endingwith", MinArgs: 2, MaxArgs: 2, Fn: affix(strings.HasSuffix)},
		Callable{Name: "in", MinArgs: 2, MaxArgs: 2, Fn: func(_ *Context, a Args) (any, error) {
			return Contains(a.At(1), a.At(0))
		}},
		Callable{Name: "eq", MinArgs: 2, MaxArgs: 2, Fn: func(_ *Context, a Args) (any, error) {
			return Equal(a.At(0), a.At(1)), nil
		}},
	)

	b.Alias("none", "null")
	b.Alias("divisible", "divisibleby")

	return b.Build()
})

// DefaultTests returns the built-in test registry.
func DefaultTests() *Registry { return defaultTests() }

func parity(rem int64) func(any) bool {
	return func(v any) bool {
		n, ok := toNumber(v)
		if !ok {
			return false
		}

		i, ok := n.(int64)

		return ok && (i%2+2)%2 == rem
	}
}

func iterable(v any) bool {
	switch v.(type) {
	case nil, undefined:
		return false
	case string, Safe, []any, map[string]any:
		return true
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Chan, reflect.Func:
		_, err := entries(v)

		return err == nil
	default:
		return false
	}
}

func mapping(v any) bool {
	if _, ok := v.(map[string]any); ok {
		return true
	}

	return v != nil && reflect.ValueOf(v).Kind() == reflect.Map
}

func callable(v any) bool {
	switch v.(type) {
	case *Lambda, *Macro, Callable, Func:
		return true
	case nil, undefined:
		return false
	}

	return reflect.ValueOf(v).Kind() == reflect.Func
}

func testDivisible(_ *Context, a Args) (any, error) {
	x, err := ToInt(a.At(0))
	if err != nil {
		return false, nil //nolint:nilerr
	}

	y, err := ToInt(a.At(1))
	if err != nil || y == 0 {
		return nil, failf("divisibleby needs a non-zero integer")
	}

	return x%y == 0, nil
}

// testSameAs compares identity for references and equality otherwise.
func testSameAs(_ *Context, a Args) (any, error) {
	x, y := reflect.ValueOf(a.At(0)), reflect.ValueOf(a.At(1))

	if x.IsValid() && y.IsValid() && x.Type() == y.Type() {
		switch x.Kind() {
		case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
			return x.Pointer() == y.Pointer(), nil
		}
	}

	return Equal(a.At(0), a.At(1)), nil
}

func affix(fn func(s, affix string) bool) Func {
	return func(_ *Context, a Args) (any, error) {
		return fn(ToString(a.At(0)), ToString(a.At(1))), nil
	}
}
