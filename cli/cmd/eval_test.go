package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihontarenko/jmouse-sub007/engine"
)

func TestEval(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		expr   []string
		output string
		set    map[string]string
		stdin  string
		want   string
	}{
		{"arithmetic", []string{"2", "+", "3 * 4"}, "text", nil, "", "14\n"},
		{"variables", []string{"name ~ '!'"}, "text", map[string]string{"name": "bo"}, "", "bo!\n"},
		{"list as text", []string{"[1, 2]"}, "text", nil, "", "[1,2]\n"},
		{"json", []string{"[1, 'a']"}, "json", nil, "", "[\n  1,\n  \"a\"\n]\n"},
		{"yaml", []string{"{a: 1}"}, "yaml", nil, "", "a: 1\n"},
		{"undefined", []string{"missing"}, "json", nil, "", "null\n"},
		{"stdin", []string{"-"}, "text", nil, "3 * 3\n", "9\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := &Eval{Vars: Vars{Set: tt.set}, Output: tt.output, Expr: tt.expr}

			out, err := run(t, tt.stdin, e)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestEval_Errors(t *testing.T) {
	t.Parallel()

	_, err := run(t, "", &Eval{Strict: true, Output: "text", Expr: []string{"missing"}})
	require.ErrorIs(t, err, ErrEval)
	assert.ErrorIs(t, err, engine.ErrUnresolvedSymbol)

	_, err = run(t, "", &Eval{Output: "text", Expr: []string{"1 +"}})
	require.ErrorIs(t, err, ErrEval)
}

func TestFormatResult(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	data, err := formatResult(ctx, engine.Undefined, "text")
	require.NoError(t, err)
	assert.Empty(t, data)

	data, err = formatResult(ctx, engine.Safe("<b>"), "text")
	require.NoError(t, err)
	assert.Equal(t, "<b>", string(data))
}
