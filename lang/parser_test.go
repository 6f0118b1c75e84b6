package lang

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustExpr(t *testing.T, text string) Node {
	t.Helper()

	n, err := ParseExpr(context.Background(), text)
	require.NoError(t, err, text)

	return n
}

func mustTemplate(t *testing.T, text string) *Template {
	t.Helper()

	tmpl, err := NewParser().ParseTemplate(context.Background(), NewSource("t", text))
	require.NoError(t, err, text)

	return tmpl
}

func TestParseExpr_Canonical(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want string
	}{
		{"1 + 2 * 3", "1 + 2 * 3"},
		{"(1 + 2) * 3", "(1 + 2) * 3"},
		{"1 - (2 - 3)", "1 - (2 - 3)"},
		{"2 ** 3 ** 2", "2 ** 3 ** 2"},
		{"(2 ** 3) ** 2", "(2 ** 3) ** 2"},
		{"2(3 + 4)", "2 * (3 + 4)"},
		{"-2 ** 2", "-2 ** 2"},
		{"not a and b", "not a and b"},
		{"not (a and b)", "not (a and b)"},
		{"a not in b", "not a in b"},
		{"a ~ b ~ 'c'", `a ~ b ~ "c"`},
		{"a ? b : c", "a ? b : c"},
		{"a ?? b ?? c", "a ?? b ?? c"},
		{"1..3", "1..3"},
		{"a..b + 1", "a..b + 1"},
		{"x | upper | trim", "x | upper | trim"},
		{"x | join(', ')", `x | join(", ")`},
		{"a + b | upper", "a + b | upper"},
		{"n is odd", "n is odd"},
		{"n is not divisibleby 3", "n is not divisibleby(3)"},
		{"v is none", "v is null"},
		{"path.join(a, 'b')", `path.join(a, "b")`},
		{"user.name.upper()", "user.name.upper()"},
		{"items[0].id", "items[0].id"},
		{"list.0", "list.0"},
		{"x => x * 2", "(x) => x * 2"},
		{"map(items, (a, b) => a + b)", "map(items, (a, b) => a + b)"},
		{"{a: 1, 'b c': 2, (k): 3}", `{a: 1, "b c": 2, (k): 3}`},
		{"[1, 2.5, true, null, 'x',]", `[1, 2.5, true, null, "x"]`},
		{"f(x, y=2)", "f(x, y=2)"},
		{"i++", "i++"},
		{"parent()", "parent()"},
		{`"a\n\"b\""`, `"a\n\"b\""`},
		{"`raw\\n`", `"raw\\n"`},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()

			n := mustExpr(t, tt.text)
			assert.Equal(t, tt.want, FormatExpr(n))

			again := mustExpr(t, FormatExpr(n))
			assert.Equal(t, stripLines(ToMap(n)), stripLines(ToMap(again)))
		})
	}
}

func TestParseExpr_Structure(t *testing.T) {
	t.Parallel()

	t.Run("multiplication binds tighter", func(t *testing.T) {
		t.Parallel()

		n := mustExpr(t, "1 + 2 * 3")

		add, ok := n.(*Binary)
		require.True(t, ok)
		assert.Equal(t, TokenPlus, add.Op)

		mul, ok := add.Right().(*Binary)
		require.True(t, ok)
		assert.Equal(t, TokenStar, mul.Op)
		assert.Same(t, add, mul.Parent())
	})

	t.Run("power is right associative", func(t *testing.T) {
		t.Parallel()

		n := mustExpr(t, "2 ** 3 ** 2")

		outer, ok := n.(*Binary)
		require.True(t, ok)
		assert.IsType(t, &Literal{}, outer.Left())
		assert.IsType(t, &Binary{}, outer.Right())
	})

	t.Run("implicit multiplication", func(t *testing.T) {
		t.Parallel()

		n := mustExpr(t, "2(3 + 4)")

		mul, ok := n.(*Binary)
		require.True(t, ok)
		assert.Equal(t, TokenStar, mul.Op)
		assert.Equal(t, int64(2), mul.Left().(*Literal).Value)

		var implicit, explicit strings.Builder

		require.NoError(t, Dump(&implicit, n))
		require.NoError(t, Dump(&explicit, mustExpr(t, "2 * (3 + 4)")))
		assert.Equal(t, explicit.String(), implicit.String())
	})

	t.Run("primary dispatch", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			text string
			want Node
		}{
			{"f(1)", &FunctionCall{}},
			{"ns.f(1)", &ScopedCall{}},
			{"ns.f", &Property{}},
			{"a.b.c(1)", &MethodCall{}},
			{"x => x", &Lambda{}},
			{"x", &Identifier{}},
			{"1..3", &Range{}},
			{"1", &Literal{}},
		}

		for _, tt := range tests {
			assert.IsType(t, tt.want, mustExpr(t, tt.text), tt.text)
		}
	})

	t.Run("range from integer", func(t *testing.T) {
		t.Parallel()

		r, ok := mustExpr(t, "3..1").(*Range)
		require.True(t, ok)
		assert.Equal(t, int64(3), r.From().(*Literal).Value)
		assert.Equal(t, int64(1), r.To().(*Literal).Value)
	})

	t.Run("ternary and coalesce", func(t *testing.T) {
		t.Parallel()

		n, ok := mustExpr(t, "a ?? b ? c : d").(*NullCoalesce)
		require.True(t, ok)
		assert.IsType(t, &Ternary{}, n.Fallback())
	})

	t.Run("scoped call", func(t *testing.T) {
		t.Parallel()

		s, ok := mustExpr(t, "str.upper('a')").(*ScopedCall)
		require.True(t, ok)
		assert.Equal(t, "str", s.Namespace)
		assert.Equal(t, "upper", s.Name)
		assert.Equal(t, "str.upper", s.Qualified())
		assert.Len(t, s.Args(), 1)
	})

	t.Run("keyword is a name in expressions", func(t *testing.T) {
		t.Parallel()

		id, ok := mustExpr(t, "cache").(*Identifier)
		require.True(t, ok)
		assert.Equal(t, "cache", id.Name)
	})

	t.Run("test with negation", func(t *testing.T) {
		t.Parallel()

		tc, ok := mustExpr(t, "x is not defined").(*TestCall)
		require.True(t, ok)
		assert.True(t, tc.Negated)
		assert.Equal(t, "defined", tc.Name)
		assert.Empty(t, tc.Args())
	})
}

func TestParseExpr_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want error
	}{
		{"1 +", ErrSyntax},
		{"(1", ErrSyntax},
		{"a b", ErrSyntax},
		{"f(1,", ErrSyntax},
		{"a ? b", ErrSyntax},
		{"a @ b", ErrLexicalAmbiguity},
		{"'open", ErrLexicalAmbiguity},
		{"99999999999999999999", ErrInvalidLiteral},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()

			_, err := ParseExpr(context.Background(), tt.text)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParse_ErrorSnippet(t *testing.T) {
	t.Parallel()

	_, err := NewParser().ParseTemplate(context.Background(), NewSource("page", "line one\n{{ 1 + }}"))
	require.Error(t, err)

	var syn *SyntaxError
	require.ErrorAs(t, err, &syn)
	assert.Equal(t, TokenClosePrint, syn.Token.Type)
	assert.Equal(t, Position{Offset: 16, Line: 2, Column: 8}, syn.Position())

	msg := err.Error()
	assert.Contains(t, msg, "page:2:8")
	assert.Contains(t, msg, "  2 | {{ 1 + }}")
	assert.Contains(t, msg, "\n"+strings.Repeat(" ", 13)+"^")
}

func TestParseTemplate_Statements(t *testing.T) {
	t.Parallel()

	t.Run("for with else and two names", func(t *testing.T) {
		t.Parallel()

		tmpl := mustTemplate(t, "{% for k, v in m %}{{ k }}{% else %}none{% endfor %}")
		require.Len(t, tmpl.Children(), 1)

		f, ok := tmpl.Children()[0].(*For)
		require.True(t, ok)
		assert.Equal(t, []string{"k", "v"}, f.Names)
		assert.True(t, f.HasElse)
		assert.Len(t, f.Body().Children(), 1)
		assert.Equal(t, "none", f.Else().Children()[0].(*Text).Value)
	})

	t.Run("if elif else", func(t *testing.T) {
		t.Parallel()

		tmpl := mustTemplate(t, "{% if a %}1{% elif b %}2{% elseif c %}3{% else %}4{% endif %}")

		n, ok := tmpl.Children()[0].(*If)
		require.True(t, ok)

		branches := n.Branches()
		require.Len(t, branches, 4)
		assert.False(t, branches[0].Else)
		assert.True(t, branches[3].Else)
		assert.Nil(t, branches[3].Cond())
	})

	t.Run("set forms", func(t *testing.T) {
		t.Parallel()

		tmpl := mustTemplate(t, "{% set a, b = pair %}{% set c %}x{{ a }}{% endset %}")

		plain := tmpl.Children()[0].(*Set)
		assert.Equal(t, []string{"a", "b"}, plain.Names)
		assert.False(t, plain.Capture)

		capture := tmpl.Children()[1].(*Set)
		assert.True(t, capture.Capture)
		assert.IsType(t, &Body{}, capture.Value())
	})

	t.Run("macro with defaults", func(t *testing.T) {
		t.Parallel()

		tmpl := mustTemplate(t, "{% macro greet(name, greeting='Hi') %}{{ greeting }}{% endmacro greet %}")

		m := tmpl.Children()[0].(*Macro)
		assert.Equal(t, "greet", m.Name)

		params := m.Params()
		require.Len(t, params, 2)
		assert.Nil(t, params[0].Default())
		assert.Equal(t, "Hi", params[1].Default().(*Literal).Value)
		assert.Len(t, m.Body().Children(), 1)
	})

	t.Run("include flags", func(t *testing.T) {
		t.Parallel()

		tmpl := mustTemplate(t, `{% include "x" ignore missing with {a: 1} only %}{% include "y" %}`)

		full := tmpl.Children()[0].(*Include)
		assert.True(t, full.IgnoreMissing)
		assert.True(t, full.Only)
		assert.IsType(t, &Map{}, full.With())

		bare := tmpl.Children()[1].(*Include)
		assert.False(t, bare.IgnoreMissing)
		assert.Nil(t, bare.With())
	})

	t.Run("composition", func(t *testing.T) {
		t.Parallel()

		tmpl := mustTemplate(t, `{% extends "base" %}{% import "m" as m %}`+
			`{% from "m" import a, b as c %}{% block body %}x{% endblock %}`+
			`{% embed "card" %}{% block title %}t{% endblock %}{% endembed %}`)

		kids := tmpl.Children()
		require.Len(t, kids, 5)
		assert.IsType(t, &Extends{}, kids[0])
		assert.Equal(t, "m", kids[1].(*Import).Alias)
		assert.Equal(t, []UseName{{Name: "a"}, {Name: "b", Alias: "c"}}, kids[2].(*Use).Names)
		assert.Equal(t, "body", kids[3].(*Block).Name)
		require.Len(t, kids[4].(*Embed).Blocks(), 1)
		assert.Equal(t, "title", kids[4].(*Embed).Blocks()[0].Name)
	})

	t.Run("scope cache do", func(t *testing.T) {
		t.Parallel()

		tmpl := mustTemplate(t, "{% scope with {a: 1} %}{{ a }}{% endscope %}"+
			"{% cache 'k' %}v{% endcache %}{% do list.push(1) %}")

		kids := tmpl.Children()
		require.Len(t, kids, 3)
		assert.NotNil(t, kids[0].(*Scope).With())
		assert.Equal(t, "k", kids[1].(*Cache).Key().(*Literal).Value)
		assert.IsType(t, &ScopedCall{}, kids[2].(*Do).Expr())
	})

	t.Run("trim markers", func(t *testing.T) {
		t.Parallel()

		tmpl := mustTemplate(t, "a  {%- if x -%}  b  {% endif %}")

		before := tmpl.Children()[0].(*Text)
		assert.True(t, before.TrimRight)
		assert.False(t, before.TrimLeft)

		inner := tmpl.Children()[1].(*If).Branches()[0].Body().Children()[0].(*Text)
		assert.True(t, inner.TrimLeft)
		assert.False(t, inner.TrimRight)
	})
}

func TestParseTemplate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want error
	}{
		{"unterminated if", "{% if x %}a", ErrSyntax},
		{"wrong end tag", "{% for x in y %}{% endif %}", ErrSyntax},
		{"unknown statement", "{% frobnicate %}", ErrUnknownStatement},
		{"missing close", "{{ x ", ErrSyntax},
		{"unterminated comment", "a {# b", ErrLexicalAmbiguity},
		{"import without alias", `{% import "m" %}`, ErrSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewParser().ParseTemplate(context.Background(), NewSource("t", tt.text))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseTemplate_RoundTrip(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"plain text only",
		"Hello {{ name | title }}!",
		"{% for i in 1..3 %}{{ i }}{% if not loop.last %}, {% endif %}{% endfor %}",
		"{% set total = price * (1 + tax) %}{{ total | round(2) }}",
		"{% macro row(cells, sep=' | ') %}{{ cells | join(sep) }}{% endmacro %}",
		`{% extends "base" %}{% block body %}{{ parent() }} more{% endblock %}`,
		"a {%- if x -%} b {%- endif %}",
		"{{ a ?? b ? c : d }}",
		"{% include 'x' ignore missing with {k: v} only %}",
		"{% from 'm' import a as b %}{% scope %}{{ b() }}{% endscope %}",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			t.Parallel()

			first := mustTemplate(t, in)
			out := FormatString(first)
			second := mustTemplate(t, out)

			assert.Equal(t, stripLines(ToMap(first)), stripLines(ToMap(second)), out)
			assert.Equal(t, out, FormatString(second))
		})
	}
}

func TestParser_Cache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := NewParser()

	a, err := p.Parse(ctx, "a", "{{ x }}")
	require.NoError(t, err)

	again, err := p.Parse(ctx, "a", "{{ x }}")
	require.NoError(t, err)
	assert.Same(t, a, again)

	other, err := p.Parse(ctx, "b", "{{ x }}")
	require.NoError(t, err)
	assert.NotSame(t, a, other)

	p.ClearCache()

	fresh, err := p.Parse(ctx, "a", "{{ x }}")
	require.NoError(t, err)
	assert.NotSame(t, a, fresh)

	_, err = p.Parse(ctx, "bad", "{{")
	require.Error(t, err)

	_, err = p.Parse(ctx, "bad", "{{")
	require.Error(t, err)
}

func TestParser_With(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	base := NewParser()

	angle := base.With(WithDelims(Delims{
		PrintOpen: "<<", PrintClose: ">>",
		StmtOpen: "<%", StmtClose: "%>",
		CommentOpen: "<#", CommentClose: "#>",
	}))

	tmpl, err := angle.Parse(ctx, "t", "Hi <<name>><# gone #><% if x %>!<% endif %>")
	require.NoError(t, err)
	require.Len(t, tmpl.Children(), 3)
	assert.IsType(t, &Print{}, tmpl.Children()[1])
	assert.IsType(t, &If{}, tmpl.Children()[2])

	plain, err := base.Parse(ctx, "t", "Hi <<name>>")
	require.NoError(t, err)
	require.Len(t, plain.Children(), 1)
	assert.IsType(t, &Text{}, plain.Children()[0])

	shallow := base.With(WithMaxDepth(8))
	_, err = shallow.ParseExpr(ctx, NewSource("", "((((((((1))))))))"))
	assert.ErrorIs(t, err, ErrMaxDepthExceeded)
}

func TestParser_CustomStatement(t *testing.T) {
	t.Parallel()

	// {% do %} re-registered as a print statement.
	p := NewParser(WithStatement(TokenDo, SubParserFunc(func(pc *ParseContext, c *Cursor) (Node, error) {
		kw := c.Next()

		expr, err := pc.Parse(ParserExpression, c)
		if err != nil {
			return nil, err
		}

		return NewPrint(kw, expr), c.Ensure(TokenCloseStmt)
	})))

	tmpl, err := p.Parse(context.Background(), "t", "{% do 1 + 1 %}")
	require.NoError(t, err)
	assert.IsType(t, &Print{}, tmpl.Children()[0])
}

func TestParser_CustomOperator(t *testing.T) {
	t.Parallel()

	ops := DefaultOperators().WithBinary(Operator{
		Type: TokenTilde, Symbol: "~", Precedence: PrecPower + 5, Assoc: AssocLeft,
	})

	n, err := NewParser(WithOperators(ops)).ParseExpr(context.Background(), NewSource("", "a * b ~ c"))
	require.NoError(t, err)

	mul, ok := n.(*Binary)
	require.True(t, ok)
	assert.Equal(t, TokenStar, mul.Op)
	assert.Equal(t, TokenTilde, mul.Right().(*Binary).Op)
}

func TestParseReader(t *testing.T) {
	t.Parallel()

	tmpl, err := ParseReader(context.Background(), "r", strings.NewReader("{{ 1 }}"))
	require.NoError(t, err)
	require.Len(t, tmpl.Children(), 1)

	_, err = ParseReader(context.Background(), "r", failingReader{})
	assert.ErrorIs(t, err, ErrReadInput)
}

// stripLines drops line numbers so trees parsed from differently laid out
// text compare equal.
func stripLines(m map[string]any) map[string]any {
	delete(m, "line")

	if kids, ok := m["children"].([]any); ok {
		for _, k := range kids {
			stripLines(k.(map[string]any))
		}
	}

	return m
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }
