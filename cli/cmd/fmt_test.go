package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihontarenko/jmouse-sub007/lang"
)

func TestFmt_Native(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		expr  bool
		input string
		want  string
	}{
		{"print", false, "Hi {{name|upper}}!", "Hi {{ name | upper }}!"},
		{"statement", false, "{%if a%}x{%endif%}", "{% if a %}x{% endif %}"},
		{"expression", true, "  1+2*x\n", "1 + 2 * x\n"},
		{"implicit multiplication", true, "2(3 + 4)", "2 * (3 + 4)\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := &Native{Input: Input{Expr: tt.expr, Source: stdinSource}}

			out, err := run(t, tt.input, f)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestFmt_NativeWrite(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{"page.jm": "{{a+b}}"})
	path := filepath.Join(dir, "page.jm")

	out, err := run(t, "", &Native{Input: Input{Source: path}, Write: true})
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{{ a + b }}", string(data))
}

func TestFmt_Tree(t *testing.T) {
	t.Parallel()

	in := Input{Source: stdinSource}

	out, err := run(t, "{{ x }}", &JSON{Input: in, Indent: 2})
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)), out)
	assert.Contains(t, out, "\n  ")

	out, err = run(t, "{{ x }}", &JSON{Input: in})
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"), out)

	out, err = run(t, "{{ x }}", &YAML{Input: in, Indent: 2})
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.NotEmpty(t, doc)

	out, err = run(t, "a + 1", &AST{Input: Input{Expr: true, Source: stdinSource}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, lang.NodeBinary.String()), out)
	assert.Equal(t, 3, strings.Count(out, "\n"), out)
}

func TestFmt_ParseError(t *testing.T) {
	t.Parallel()

	_, err := run(t, "{% if %}", &Native{Input: Input{Source: stdinSource}})
	require.ErrorIs(t, err, ErrParse)

	var perr interface{ Position() lang.Position }
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.Position().Line)
}
