package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eval(t *testing.T, expr string, vars map[string]any) any {
	t.Helper()

	v, err := New(NewMapLoader(nil)).Eval(context.Background(), expr, vars)
	require.NoError(t, err, expr)

	return v
}

func TestFilters(t *testing.T) {
	t.Parallel()

	people := []any{
		map[string]any{"name": "b", "age": int64(30)},
		map[string]any{"name": "a", "age": int64(20)},
	}

	tests := []struct {
		expr string
		want any
	}{
		{"'hello world' | title", "Hello World"},
		{"'hELLO' | capitalize", "Hello"},
		{"'  x ' | trim", "x"},
		{"'xxaxx' | trim('x')", "a"},
		{"'abc' | length", int64(3)},
		{"[1, 2] | count", int64(2)},
		{"nothing | default('d')", "d"},
		{"'' | default('d')", ""},
		{"'' | default('d', true)", "d"},
		{"[1, 2] | join(', ')", "1, 2"},
		{"'a,b' | split(',')", []any{"a", "b"}},
		{"'a b  c' | split", []any{"a", "b", "c"}},
		{"'aXa' | replace('X', '-')", "a-a"},
		{"[1, 2, 3] | first", int64(1)},
		{"[1, 2, 3] | last", int64(3)},
		{"'héllo' | first", "h"},
		{"[1, 2, 3] | reverse", []any{int64(3), int64(2), int64(1)}},
		{"'abc' | reverse", "cba"},
		{"[2, 3, 1] | sort(true)", []any{int64(3), int64(2), int64(1)}},
		{"people | sort(attribute='name') | map('name')", []any{"a", "b"}},
		{"{b: 1, a: 2} | keys", []any{"a", "b"}},
		{"{b: 1, a: 2} | values", []any{int64(2), int64(1)}},
		{"-3 | abs", int64(3)},
		{"3.14159 | round(2)", 3.14},
		{"'42' | int", int64(42)},
		{"'x' | int(7)", int64(7)},
		{"'2.5' | float", 2.5},
		{"3 | string", "3"},
		{"{a: [1]} | json", Safe(`{"a":[1]}`)},
		{"{a: 1} | yaml", Safe("a: 1\n")},
		{"['a', 'b'] | map('upper')", []any{"A", "B"}},
		{"people | sum(attribute='age')", int64(50)},
		{"[1, 2.5] | sum", 3.5},
		{"[3, 1, 2] | min", int64(1)},
		{"[3, 1, 2] | max", int64(3)},
		{"[1, 2, 1, 3, 2] | unique", []any{int64(1), int64(2), int64(3)}},
		{"[1, 2, 3] | batch(2)", []any{[]any{int64(1), int64(2)}, []any{int64(3)}}},
		{"[1, 2, 3] | batch(2, 0)", []any{[]any{int64(1), int64(2)}, []any{int64(3), int64(0)}}},
		{"'<a>' | escape", Safe("&lt;a&gt;")},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			t.Parallel()

			assert.EqualValues(t, tt.want, eval(t, tt.expr, map[string]any{"people": people}))
		})
	}
}

func TestTests(t *testing.T) {
	t.Parallel()

	list := []any{int64(1)}

	tests := []struct {
		expr string
		want bool
	}{
		{"x is defined", true},
		{"nope is undefined", true},
		{"nope is none", true},
		{"x is null", false},
		{"true is true", true},
		{"0 is false", false},
		{"4 is even", true},
		{"-3 is odd", true},
		{"9 is divisibleby 3", true},
		{"'s' is string", true},
		{"1.5 is number", true},
		{"true is number", false},
		{"l is iterable", true},
		{"1 is iterable", false},
		{"{} is mapping", true},
		{"[] is empty", true},
		{"'' is empty", true},
		{"l is sameas l", true},
		{"l is sameas [1]", false},
		{"'jmouse' is startingwith 'jm'", true},
		{"'jmouse' is endingwith 'se'", true},
		{"f is callable", true},
		{"x is callable", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			t.Parallel()

			got := eval(t, tt.expr, map[string]any{"x": int64(1), "l": list, "f": strings.ToUpper})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFunctions(t *testing.T) {
	t.Setenv("JMOUSE_TEST_VAR", "set")

	sep := string(os.PathListSeparator)

	tests := []struct {
		expr string
		want any
	}{
		{"range(1, 4)", []any{int64(1), int64(2), int64(3)}},
		{"range(5, 0, -2)", []any{int64(5), int64(3), int64(1)}},
		{"len('héllo')", int64(5)},
		{"list('ab')", []any{"a", "b"}},
		{"min([4, 2, 8])", int64(2)},
		{"env('JMOUSE_TEST_VAR')", "set"},
		{"path.join('a', 'b', 'c')", filepath.Join("a", "b", "c")},
		{"path.base('/x/y.txt')", "y.txt"},
		{"path.ext('/x/y.txt')", ".txt"},
		{"str.split('a-b', '-')", []any{"a", "b"}},
		{"str.join(['a', 'b'], '+')", "a+b"},
		{"str.repeat('ab', 2)", "abab"},
		{"str.hasPrefix('jmouse', 'jm')", true},
		{"file.exists('/definitely/not/here')", false},
		{"expr('n * 2 + len(items)', {items: [1, 2]})", int64(10)},
		{"expr('upper(name)', {upper: str_upper})", "BO"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got := eval(t, tt.expr, map[string]any{
				"sep":       sep,
				"n":         int64(4),
				"name":      "bo",
				"str_upper": strings.ToUpper,
			})
			assert.EqualValues(t, tt.want, got)
		})
	}
}

func TestFunctions_Mung(t *testing.T) {
	t.Parallel()

	sep := string(os.PathListSeparator)

	got, ok := eval(t, "mung.prefix(p, '/a')", map[string]any{"p": "/b" + sep + "/c"}).(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(got, "/a"+sep), got)
	assert.Contains(t, got, "/b")

	got, ok = eval(t, "mung.prefixif(p, s => s != '/c', '/a')", map[string]any{"p": "/b"}).(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(got, "/a"), got)
}

func TestFunctions_Unique(t *testing.T) {
	t.Parallel()

	a := eval(t, "uuid()", nil)
	b := eval(t, "uuid()", nil)

	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)

	platform, ok := eval(t, "sys.platform()", nil).(target)
	require.True(t, ok)
	assert.NotEmpty(t, platform.OS)
}

type host struct{ name string }

func (h *host) Hi() string { return "hi " + h.name }

func TestFunctions_Panics(t *testing.T) {
	t.Parallel()

	boom := Callable{Name: "boom", Fn: func(*Context, Args) (any, error) { panic("boom") }}

	e := newEngine(map[string]string{
		"repeat": "a{{ str.repeat('x', n) }}",
		"method": "b{{ p.hi() }}",
		"attr":   "c{{ p.hi }}",
		"custom": "d{{ boom() }}",
	}, WithFunctions(boom))

	tests := []struct {
		name string
		want string
		msg  string
	}{
		{"repeat", "a", "negative count"},
		{"method", "b", "panic"},
		{"attr", "c", "panic"},
		{"custom", "d", "boom: panic: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var (
				out string
				err error
			)

			require.NotPanics(t, func() {
				out, err = e.Render(context.Background(), tt.name,
					map[string]any{"n": int64(-1), "p": (*host)(nil)})
			})
			require.ErrorIs(t, err, ErrEvaluation)
			assert.Contains(t, err.Error(), tt.msg)
			assert.Equal(t, tt.want, out)
		})
	}

	assert.Equal(t, "hi bo", eval(t, "p.hi()", map[string]any{"p": &host{name: "bo"}}))
}
