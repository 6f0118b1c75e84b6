package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(templates map[string]string, opts ...Option) *Engine {
	return New(NewMapLoader(templates), opts...)
}

func mustRender(t *testing.T, e *Engine, name string, vars map[string]any) string {
	t.Helper()

	out, err := e.Render(context.Background(), name, vars)
	require.NoError(t, err)

	return out
}

type member struct {
	Name  string
	Admin bool
	Tags  []string
}

func (u member) Greeting() string { return "hi " + u.Name }

func TestEngine_Eval(t *testing.T) {
	t.Parallel()

	e := newEngine(nil)

	tests := []struct {
		expr string
		vars map[string]any
		want any
	}{
		{"2 + 3 * 4", nil, int64(14)},
		{"2(3 + 4)", nil, int64(14)},
		{"2 * (3 + 4)", nil, int64(14)},
		{"a ?? 5", nil, int64(5)},
		{"a ?? 5", map[string]any{"a": int64(3)}, int64(3)},
		{"true ? 1 : 2", nil, int64(1)},
		{"1..3", nil, []any{int64(1), int64(2), int64(3)}},
		{"3..1", nil, []any{int64(3), int64(2), int64(1)}},
		{"7 / 2", nil, 3.5},
		{"6 / 3", nil, int64(2)},
		{"7 // 2", nil, int64(3)},
		{"-7 // 2", nil, int64(-4)},
		{"10 % 3", nil, int64(1)},
		{"2 ** 10", nil, int64(1024)},
		{"9223372036854775807 + 0", nil, int64(9223372036854775807)},
		{"9223372036854775807 + 1", nil, 9.223372036854776e18},
		{"-9223372036854775807 - 2", nil, -9.223372036854776e18},
		{"4611686018427387904 * 2", nil, 9.223372036854776e18},
		{"4611686018427387904 * -2", nil, int64(-9223372036854775808)},
		{"2 ** 64", nil, 1.8446744073709552e19},
		{"b ** 3", map[string]any{"b": int64(-1)}, int64(-1)},
		{"b ** 0", map[string]any{"b": int64(0)}, int64(1)},
		{"1.5 + 1", nil, 2.5},
		{"'a' ~ 1", nil, "a1"},
		{"'x' + 1", nil, "x1"},
		{"'ab' * 2", nil, "abab"},
		{"[1] + [2]", nil, []any{int64(1), int64(2)}},
		{"1 in [1, 2]", nil, true},
		{"'b' in 'abc'", nil, true},
		{"3 not in [1, 2]", nil, true},
		{"1 < 2 and 2 < 3", nil, true},
		{"0 or ''", nil, false},
		{"not missing", nil, true},
		{"1 == 1.0", nil, true},
		{"u.name", map[string]any{"u": member{Name: "ann"}}, "ann"},
		{"u.greeting", map[string]any{"u": member{Name: "ann"}}, "hi ann"},
		{"u.tags[-1]", map[string]any{"u": member{Tags: []string{"a", "b"}}}, "b"},
		{"m.k.0", map[string]any{"m": map[string]any{"k": []any{"z"}}}, "z"},
		{"m['k']", map[string]any{"m": map[string]any{"k": "v"}}, "v"},
		{"'hello' | upper", nil, "HELLO"},
		{"[3, 1, 2] | sort | join(',')", nil, "1,2,3"},
		{"[1, 2, 3] | map(x => x * 2)", nil, []any{int64(2), int64(4), int64(6)}},
		{"[1, 2, 3, 4] | select('even')", nil, []any{int64(2), int64(4)}},
		{"[1, 2, 3, 4] | reject(x => x > 2)", nil, []any{int64(1), int64(2)}},
		{"x is defined", nil, false},
		{"n is odd", map[string]any{"n": int64(3)}, true},
		{"n is not divisibleby 3", map[string]any{"n": int64(7)}, true},
		{"str.upper('a')", nil, "A"},
		{"len([1, 2])", nil, int64(2)},
		{"s.lower()", map[string]any{"s": "Go"}, "go"},
		{"dict('a', 1, b=2)", nil, map[string]any{"a": int64(1), "b": int64(2)}},
		{"range(3)", nil, []any{int64(0), int64(1), int64(2)}},
		{"max(3, 9, 4)", nil, int64(9)},
		{"expr('a + 1', {a: 2})", nil, 3},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			t.Parallel()

			got, err := e.Eval(context.Background(), tt.expr, tt.vars)
			require.NoError(t, err)
			assert.EqualValues(t, tt.want, got)
		})
	}
}

func TestEngine_EvalErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expr   string
		strict bool
		want   error
	}{
		{"1 / 0", false, ErrEvaluation},
		{"missing + 1", true, ErrUnresolvedSymbol},
		{"nosuch(1)", false, ErrUnresolvedSymbol},
		{"1 | nosuch", false, ErrUnresolvedSymbol},
		{"1 is nosuch", false, ErrUnresolvedSymbol},
		{"len(1, 2)", false, ErrArgumentCount},
		{"expr('1 +')", false, ErrExprCompile},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			t.Parallel()

			e := newEngine(nil, WithStrict(tt.strict))

			_, err := e.Eval(context.Background(), tt.expr, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEngine_Suggestions(t *testing.T) {
	t.Parallel()

	_, err := newEngine(nil).Eval(context.Background(), "'x' | uper", nil)
	require.ErrorIs(t, err, ErrUnresolvedSymbol)
	assert.Contains(t, err.Error(), "did you mean")
	assert.Contains(t, err.Error(), "upper")
}

func TestEngine_Render(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		vars map[string]any
		want string
	}{
		{"text", "plain", nil, "plain"},
		{"print", "Hello {{ name | title }}!", map[string]any{"name": "jo"}, "Hello Jo!"},
		{"nil prints empty", "[{{ nothing }}]", nil, "[]"},
		{"list prints json", "{{ [1, 'a'] }}", nil, `[1,"a"]`},
		{"if elif else", "{% if n > 2 %}big{% elif n > 1 %}mid{% else %}small{% endif %}", map[string]any{"n": int64(2)}, "mid"},
		{"for", "{% for i in 1..3 %}{{ i }}{% if not loop.last %},{% endif %}{% endfor %}", nil, "1,2,3"},
		{"for else", "{% for i in [] %}x{% else %}empty{% endfor %}", nil, "empty"},
		{"for map pairs", "{% for k, v in m %}{{ k }}={{ v }};{% endfor %}", map[string]any{"m": map[string]any{"b": 2, "a": 1}}, "a=1;b=2;"},
		{"loop metadata", "{% for x in 'ab' %}{{ loop.index }}{{ loop.index0 }}{{ loop.revindex }}{{ loop.length }}{% endfor %}", nil, "10222112"},
		{"nested loop parent", "{% for a in [1] %}{% for b in [2] %}{{ loop.parent.index }}{{ loop.index }}{% endfor %}{% endfor %}", nil, "11"},
		{"set in for does not leak", "{% set x = 1 %}{% for i in [1, 2] %}{% set x = i %}{% endfor %}{{ x }}", nil, "1"},
		{"set capture", "{% set c %}<{{ 1 + 1 }}>{% endset %}{{ c }}", nil, "<2>"},
		{"set unpack", "{% set a, b = [1, 2] %}{{ b }}{{ a }}", nil, "21"},
		{"scope", "{% scope with {a: 1} %}{{ a }}{% set b = 2 %}{% endscope %}{{ b }}", nil, "1"},
		{"do", "{% set i = 1 %}{% do i++ %}{{ i }}", nil, "2"},
		{"ternary and coalesce", "{{ a ?? b ? 'y' : 'n' }}", map[string]any{"b": true}, "y"},
		{"default filter", "{{ missing | default('d') }}", nil, "d"},
		{"macro", "{% macro greet(name, greeting='Hi') %}{{ greeting }} {{ name }}{% endmacro %}{{ greet('Bo') }}|{{ greet('Al', greeting='Yo') }}", nil, "Hi Bo|Yo Al"},
		{"recursive macro", "{% macro down(n) %}{{ n }}{% if n > 0 %}{{ down(n - 1) }}{% endif %}{% endmacro %}{{ down(3) }}", nil, "3210"},
		{"trim markers", "a  {%- if true -%}  b  {%- endif %}", nil, "ab"},
		{"cache", "{% set n = 0 %}{% cache 'k' %}{{ n }}{% endcache %}{% set n = 1 %}{% cache 'k' %}{{ n }}{% endcache %}", nil, "00"},
		{"cache key type", "{% set n = 0 %}{% cache 1 %}{{ n }}{% endcache %}{% set n = 1 %}{% cache '1' %}{{ n }}{% endcache %}{% cache 1 %}x{% endcache %}", nil, "010"},
		{"folded constant", "{{ 2 + 3 * 4 }}", nil, "14"},
		{"method", "{{ u.greeting() }}", map[string]any{"u": member{Name: "x"}}, "hi x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newEngine(map[string]string{"t": tt.text})
			assert.Equal(t, tt.want, mustRender(t, e, "t", tt.vars))
		})
	}
}

func TestEngine_Composition(t *testing.T) {
	t.Parallel()

	templates := map[string]string{
		"base":    "<{% block title %}Base{% endblock %}|{% block body %}body{% endblock %}>",
		"child":   `{% extends "base" %}{% set who = "kid" %}{% block title %}Child {{ parent() }}{% endblock %}ignored`,
		"grand":   `{% extends "child" %}{% block body %}{{ who }}{% endblock %}`,
		"part":    "[{{ a ?? 'none' }}{{ b ?? '' }}]",
		"inc":     `{% set b = 1 %}{% include "part" %}{% include "part" with {a: 2} %}{% include "part" with {a: 3} only %}`,
		"missing": `x{% include "nope" ignore missing %}y`,
		"macros":  `{% macro hi(n) %}hi {{ n }}{% endmacro %}{% set v = 7 %}`,
		"imp":     `{% import "macros" as m %}{{ m.hi('a') }} {{ m.v }}`,
		"from":    `{% from "macros" import hi as say %}{{ say('b') }}`,
		"card":    "({% block head %}H{% endblock %}:{% block main %}M{% endblock %})",
		"embed":   `{% embed "card" %}{% block main %}X{{ parent() }}{% endblock %}{% endembed %}`,
		"leak":    `{% include "setter" %}{{ s ?? 'clean' }}`,
		"setter":  `{% set s = 'dirty' %}`,
		"secret":  "[{{ a }}|{{ secret ?? 'fresh' }}]",
		"model":   `{% set secret = 'outer' %}{% include "secret" %}{% include "secret" with {a: 1} %}`,
		"embedm":  `{% set b = 9 %}{% embed "part" with {a: 4} %}{% endembed %}`,
	}

	tests := []struct {
		name string
		want string
	}{
		{"child", "<Child Base|body>"},
		{"grand", "<Child Base|kid>"},
		{"inc", "[none1][2][3]"},
		{"model", "[|outer][1|fresh]"},
		{"embedm", "[4]"},
		{"missing", "xy"},
		{"imp", "hi a 7"},
		{"from", "hi b"},
		{"embed", "(H:XM)"},
		{"leak", "clean"},
	}

	e := newEngine(templates)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, mustRender(t, e, tt.name, nil))
		})
	}
}

func TestEngine_CompositionErrors(t *testing.T) {
	t.Parallel()

	templates := map[string]string{
		"a":          `A{% include "b" %}`,
		"b":          `B{% include "a" %}`,
		"self":       `{% extends "self" %}`,
		"gone":       `{% include "nope" %}`,
		"deep":       `{% macro f(n) %}{{ f(n + 1) }}{% endmacro %}{{ f(0) }}`,
		"from":       `{% from "lib" import nope %}`,
		"lib":        `{% macro yes() %}{% endmacro %}`,
		"nested":     `{% if true %}{% extends "a" %}{% endif %}`,
		"parentless": `{% block x %}{{ parent() }}{% endblock %}`,
	}

	tests := []struct {
		name string
		want error
	}{
		{"a", ErrCircularReference},
		{"self", ErrCircularReference},
		{"gone", ErrTemplateNotFound},
		{"deep", ErrRecursionLimit},
		{"from", ErrUnresolvedSymbol},
		{"nested", ErrEvaluation},
		{"parentless", ErrEvaluation},
		{"unknown", ErrTemplateNotFound},
	}

	e := newEngine(templates, WithMaxDepth(20))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := e.Render(context.Background(), tt.name, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEngine_CircularChain(t *testing.T) {
	t.Parallel()

	e := newEngine(map[string]string{
		"a": `{% include "b" %}`,
		"b": `{% include "a" %}`,
	})

	_, err := e.Render(context.Background(), "a", nil)
	require.ErrorIs(t, err, ErrCircularReference)
	assert.Contains(t, err.Error(), "a → b → a")
}

func TestEngine_Autoescape(t *testing.T) {
	t.Parallel()

	e := newEngine(map[string]string{
		"t": `{{ v }}|{{ v | safe }}|{{ v | e }}`,
	}, WithAutoescape(true))

	got := mustRender(t, e, "t", map[string]any{"v": "<b>"})
	assert.Equal(t, "&lt;b&gt;|<b>|&lt;b&gt;", got)
}

func TestEngine_Strict(t *testing.T) {
	t.Parallel()

	e := newEngine(map[string]string{
		"ok":  "{{ x is defined }}{{ x ?? 1 }}{{ x | default(2) }}",
		"bad": "{{ usr }}",
	}, WithStrict(true))

	assert.Equal(t, "false12", mustRender(t, e, "ok", nil))

	_, err := e.Render(context.Background(), "bad", map[string]any{"user": 1})
	require.ErrorIs(t, err, ErrUnresolvedSymbol)
	assert.Contains(t, err.Error(), "user")
}

func TestEngine_Options(t *testing.T) {
	t.Parallel()

	shout := Callable{Name: "shout", MinArgs: 1, MaxArgs: 1, Fn: func(_ *Context, a Args) (any, error) {
		return strings.ToUpper(ToString(a.At(0))) + "!", nil
	}}

	e := newEngine(map[string]string{
		"t": "{{ site }} {{ 'hey' | shout }} {{ 'a' ~ 'b' }} {{ twice(4) }} {{ 4 is big }}",
	},
		WithGlobals(map[string]any{"site": "jm"}),
		WithFilters(shout),
		WithFunctions(Wrap("twice", func(n int64) int64 { return 2 * n })),
		WithTests(Callable{Name: "big", MinArgs: 1, MaxArgs: 1, Fn: func(_ *Context, a Args) (any, error) {
			n, err := ToInt(a.At(0))

			return n > 3, err
		}}),
		WithOperator("~", func(l, r any) (any, error) { return ToString(r) + ToString(l), nil }),
		WithTransformers(),
	)

	assert.Equal(t, "jm HEY! ba 8 true", mustRender(t, e, "t", nil))

	// Render variables shadow globals.
	assert.True(t, strings.HasPrefix(mustRender(t, e, "t", map[string]any{"site": "x"}), "x "))
}

func TestEngine_Cancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newEngine(map[string]string{"t": "{{ 1 }}"}).Render(ctx, "t", nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestEngine_RenderTo(t *testing.T) {
	t.Parallel()

	e := newEngine(map[string]string{"t": "before{{ 1 / 0 }}after"})

	b := NewTextBuilder()
	err := e.RenderTo(context.Background(), "t", nil, b)
	require.ErrorIs(t, err, ErrEvaluation)
	assert.Equal(t, "before", b.String())

	var sb strings.Builder
	require.NoError(t, newEngine(map[string]string{"t": "ok"}).WriteTo(context.Background(), "t", nil, &sb))
	assert.Equal(t, "ok", sb.String())
}

func TestEngine_Preload(t *testing.T) {
	t.Parallel()

	e := newEngine(map[string]string{
		"pages/a": "a",
		"pages/b": "{% if %}",
		"other":   "o",
	})

	err := e.Preload(context.Background(), "pages/*", "other")
	require.Error(t, err)

	_, ok := e.Resolver().Compiled("pages/a")
	assert.True(t, ok)

	_, ok = e.Resolver().Compiled("other")
	assert.True(t, ok)

	_, ok = e.Resolver().Compiled("pages/b")
	assert.False(t, ok)
}

func TestEngine_Registries(t *testing.T) {
	t.Parallel()

	e := New(NewMapLoader(nil),
		WithGlobals(map[string]any{"site": "x", "app": 1}),
		WithFilters(Wrap("shout", strings.ToUpper)))

	assert.True(t, e.Functions().Has("range"))
	assert.True(t, e.Filters().Has("shout"))
	assert.True(t, e.Tests().Has("even"))
	assert.Equal(t, []string{"app", "site"}, e.Globals())
}
