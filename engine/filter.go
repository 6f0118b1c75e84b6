package engine

import (
	"encoding/json"
	"html"
	"math"
	"slices"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/goccy/go-yaml"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ihontarenko/jmouse-sub007/lang"
)

var defaultFilters = sync.OnceValue(func() *Registry {
	b := NewRegistryBuilder("filter")

	b.Add(
		unaryFilter("upper", func(s string) any { return strings.ToUpper(s) }),
		unaryFilter("lower", func(s string) any { return strings.ToLower(s) }),
		unaryFilter("title", func(s string) any { return cases.Title(language.Und).String(s) }),
		unaryFilter("capitalize", capitalize),
		unaryFilter("escape", func(s string) any { return Safe(html.EscapeString(s)) }),
		Callable{Name: "trim", MinArgs: 1, MaxArgs: 2, Fn: filterTrim},
		Callable{Name: "length", MinArgs: 1, MaxArgs: 1, Fn: fnLen},
		Callable{Name: "default", MinArgs: 1, MaxArgs: 3, Fn: filterDefault},
		Callable{Name: "join", MinArgs: 1, MaxArgs: 2, Fn: filterJoin},
		Callable{Name: "split", MinArgs: 1, MaxArgs: 2, Fn: filterSplit},
		Callable{Name: "replace", MinArgs: 3, MaxArgs: 3, Fn: filterReplace},
		Callable{Name: "first", MinArgs: 1, MaxArgs: 1, Fn: edge(true)},
		Callable{Name: "last", MinArgs: 1, MaxArgs: 1, Fn: edge(false)},
		Callable{Name: "reverse", MinArgs: 1, MaxArgs: 1, Fn: filterReverse},
		Callable{Name: "sort", MinArgs: 1, MaxArgs: 3, Fn: filterSort},
		Callable{Name: "keys", MinArgs: 1, MaxArgs: 1, Fn: mapPart(true)},
		Callable{Name: "values", MinArgs: 1, MaxArgs: 1, Fn: mapPart(false)},
		Callable{Name: "abs", MinArgs: 1, MaxArgs: 1, Fn: filterAbs},
		Callable{Name: "round", MinArgs: 1, MaxArgs: 2, Fn: filterRound},
		Callable{Name: "int", MinArgs: 1, MaxArgs: 2, Fn: filterInt},
		Callable{Name: "float", MinArgs: 1, MaxArgs: 2, Fn: filterFloat},
		Callable{Name: "string", MinArgs: 1, MaxArgs: 1, Fn: func(_ *Context, a Args) (any, error) { return ToString(a.At(0)), nil }},
		Callable{Name: "safe", MinArgs: 1, MaxArgs: 1, Fn: func(_ *Context, a Args) (any, error) { return Safe(ToString(a.At(0))), nil }},
		Callable{Name: "json", MinArgs: 1, MaxArgs: 2, Fn: filterJSON},
		Callable{Name: "yaml", MinArgs: 1, MaxArgs: 1, Fn: filterYAML},
		Callable{Name: "map", MinArgs: 2, MaxArgs: 2, Fn: filterMap},
		Callable{Name: "select", MinArgs: 2, MaxArgs: 2, Fn: selector(true)},
		Callable{Name: "reject", MinArgs: 2, MaxArgs: 2, Fn: selector(false)},
		Callable{Name: "sum", MinArgs: 1, MaxArgs: 2, Fn: filterSum},
		Callable{Name: "min", MinArgs: 1, MaxArgs: 1, Fn: extremum(-1)},
		Callable{Name: "max", MinArgs: 1, MaxArgs: 1, Fn: extremum(1)},
		Callable{Name: "unique", MinArgs: 1, MaxArgs: 1, Fn: filterUnique},
		Callable{Name: "batch", MinArgs: 2, MaxArgs: 3, Fn: filterBatch},
	)

	b.Alias("e", "escape")
	b.Alias("d", "default")
	b.Alias("count", "length")

	return b.Build()
})

// DefaultFilters returns the built-in filter registry.
func DefaultFilters() *Registry { return defaultFilters() }

func unaryFilter(name string, fn func(string) any) Callable {
	return Callable{
		Name:    name,
		MinArgs: 1,
		MaxArgs: 1,
		Fn: func(_ *Context, a Args) (any, error) {
			return fn(ToString(a.At(0))), nil
		},
	}
}

func capitalize(s string) any {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}

	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

func filterTrim(_ *Context, a Args) (any, error) {
	s := ToString(a.At(0))

	if chars, ok := a.Get(1, "chars"); ok {
		return strings.Trim(s, ToString(chars)), nil
	}

	return strings.TrimSpace(s), nil
}

// filterDefault returns the fallback when the value is nil, or when it is
// falsy and the second argument is true.
func filterDefault(_ *Context, a Args) (any, error) {
	v := a.At(0)
	def := a.Or(1, "value", "")

	if v == nil || IsUndefined(v) || Truthy(a.Or(2, "boolean", false)) && !Truthy(v) {
		return def, nil
	}

	return v, nil
}

func filterJoin(_ *Context, a Args) (any, error) {
	list, err := toList(a.At(0))
	if err != nil {
		return nil, err
	}

	parts := make([]string, len(list))
	for i, v := range list {
		parts[i] = ToString(v)
	}

	return strings.Join(parts, ToString(a.Or(1, "sep", ""))), nil
}

func filterSplit(_ *Context, a Args) (any, error) {
	s := ToString(a.At(0))

	var parts []string

	if sep, ok := a.Get(1, "sep"); ok && sep != nil {
		parts = strings.Split(s, ToString(sep))
	} else {
		parts = strings.Fields(s)
	}

	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = p
	}

	return out, nil
}

func filterReplace(_ *Context, a Args) (any, error) {
	return strings.ReplaceAll(ToString(a.At(0)), ToString(a.At(1)), ToString(a.At(2))), nil
}

func edge(first bool) Func {
	return func(_ *Context, a Args) (any, error) {
		if s, ok := stringOf(a.At(0)); ok {
			runes := []rune(s)
			if len(runes) == 0 {
				return "", nil
			}

			if first {
				return string(runes[0]), nil
			}

			return string(runes[len(runes)-1]), nil
		}

		list, err := toList(a.At(0))
		if err != nil || len(list) == 0 {
			return nil, err
		}

		if first {
			return list[0], nil
		}

		return list[len(list)-1], nil
	}
}

func filterReverse(_ *Context, a Args) (any, error) {
	if s, ok := stringOf(a.At(0)); ok {
		runes := []rune(s)
		slices.Reverse(runes)

		return string(runes), nil
	}

	list, err := toList(a.At(0))
	if err != nil {
		return nil, err
	}

	out := slices.Clone(list)
	slices.Reverse(out)

	return out, nil
}

// filterSort sorts a list, optionally in reverse and by an attribute of
// each element.
func filterSort(_ *Context, a Args) (any, error) {
	list, err := toList(a.At(0))
	if err != nil {
		return nil, err
	}

	reverse := Truthy(a.Or(1, "reverse", false))
	attr, byAttr := a.Get(2, "attribute")

	key := func(v any) any {
		if byAttr {
			v, _, _ = attribute(v, ToString(attr))
		}

		return v
	}

	out := slices.Clone(list)

	var cerr error

	slices.SortStableFunc(out, func(x, y any) int {
		c, err := Compare(key(x), key(y))
		if err != nil {
			cerr = err
		}

		if reverse {
			return -c
		}

		return c
	})

	return out, cerr
}

func mapPart(keys bool) Func {
	return func(_ *Context, a Args) (any, error) {
		es, err := entries(a.At(0))
		if err != nil {
			return nil, err
		}

		out := make([]any, len(es))
		for i, e := range es {
			if keys {
				out[i] = e.key
			} else {
				out[i] = e.value
			}
		}

		return out, nil
	}
}

func filterAbs(_ *Context, a Args) (any, error) {
	n, ok := toNumber(a.At(0))
	if !ok {
		return nil, failf("abs of %s", describe(a.At(0)))
	}

	if i, ok := n.(int64); ok {
		if i < 0 {
			return -i, nil
		}

		return i, nil
	}

	return math.Abs(asFloat(n)), nil
}

func filterRound(_ *Context, a Args) (any, error) {
	f, err := ToFloat(a.At(0))
	if err != nil {
		return nil, err
	}

	prec, err := ToInt(a.Or(1, "precision", int64(0)))
	if err != nil {
		return nil, err
	}

	p := math.Pow(10, float64(prec))

	return math.Round(f*p) / p, nil
}

func filterInt(_ *Context, a Args) (any, error) {
	i, err := ToInt(a.At(0))
	if err != nil {
		return a.Or(1, "default", int64(0)), nil //nolint:nilerr
	}

	return i, nil
}

func filterFloat(_ *Context, a Args) (any, error) {
	f, err := ToFloat(a.At(0))
	if err != nil {
		return a.Or(1, "default", 0.0), nil //nolint:nilerr
	}

	return f, nil
}

func filterJSON(_ *Context, a Args) (any, error) {
	var (
		data []byte
		err  error
	)

	indent, _ := ToInt(a.Or(1, "indent", int64(0)))

	if indent > 0 {
		data, err = json.MarshalIndent(a.At(0), "", strings.Repeat(" ", int(indent)))
	} else {
		data, err = json.Marshal(a.At(0))
	}

	if err != nil {
		return nil, err
	}

	return Safe(data), nil
}

func filterYAML(_ *Context, a Args) (any, error) {
	data, err := yaml.Marshal(a.At(0))
	if err != nil {
		return nil, err
	}

	return Safe(data), nil
}

// apply calls fn, which may be a lambda, a callable or an attribute name,
// on v.
func apply(ec *Context, fn, v any) (any, error) {
	if name, ok := stringOf(fn); ok {
		if ec.env.filters.Has(name) {
			c, _ := ec.env.filters.Lookup(name)

			return c.Call(ec, Args{List: []any{v}})
		}

		r, _, err := attribute(v, name)

		return r, err
	}

	return ec.invoke("function", fn, Args{List: []any{v}})
}

func filterMap(ec *Context, a Args) (any, error) {
	list, err := toList(a.At(0))
	if err != nil {
		return nil, err
	}

	out := make([]any, len(list))

	for i, v := range list {
		if out[i], err = apply(ec, a.At(1), v); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// selector keeps the elements for which the predicate (a lambda or a test
// name) is truthy, or falsy when keep is false.
func selector(keep bool) Func {
	return func(ec *Context, a Args) (any, error) {
		list, err := toList(a.At(0))
		if err != nil {
			return nil, err
		}

		pred := a.At(1)

		out := make([]any, 0, len(list))

		for _, v := range list {
			var r any

			if name, ok := stringOf(pred); ok {
				var c Callable
				if c, err = ec.env.tests.Lookup(name); err != nil {
					return nil, err
				}

				r, err = c.Call(ec, Args{List: []any{v}})
			} else {
				r, err = ec.invoke("predicate", pred, Args{List: []any{v}})
			}

			if err != nil {
				return nil, err
			}

			if Truthy(r) == keep {
				out = append(out, v)
			}
		}

		return out, nil
	}
}

func filterSum(_ *Context, a Args) (any, error) {
	list, err := toList(a.At(0))
	if err != nil {
		return nil, err
	}

	attr, byAttr := a.Get(1, "attribute")

	var total any = int64(0)

	for _, v := range list {
		if byAttr {
			v, _, _ = attribute(v, ToString(attr))
		}

		if total, err = Arithmetic(lang.TokenPlus, total, v); err != nil {
			return nil, err
		}
	}

	return total, nil
}

func filterUnique(_ *Context, a Args) (any, error) {
	list, err := toList(a.At(0))
	if err != nil {
		return nil, err
	}

	out := make([]any, 0, len(list))

	for _, v := range list {
		if !slices.ContainsFunc(out, func(u any) bool { return Equal(u, v) }) {
			out = append(out, v)
		}
	}

	return out, nil
}

// filterBatch splits a list into lists of n elements, padding the last
// one with fill when given.
func filterBatch(_ *Context, a Args) (any, error) {
	list, err := toList(a.At(0))
	if err != nil {
		return nil, err
	}

	n, err := ToInt(a.At(1))
	if err != nil || n <= 0 {
		return nil, failf("batch size must be a positive integer")
	}

	fill, padded := a.Get(2, "fill")

	var out []any

	for chunk := range slices.Chunk(list, int(n)) {
		c := slices.Clone(chunk)

		for padded && len(c) < int(n) {
			c = append(c, fill)
		}

		out = append(out, c)
	}

	if out == nil {
		out = []any{}
	}

	return out, nil
}
