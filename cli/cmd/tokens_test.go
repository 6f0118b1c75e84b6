package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens_JSON(t *testing.T) {
	t.Parallel()

	out, err := run(t, "a +\n 12", &Tokens{Input: Input{Expr: true, Source: stdinSource}, Output: "json"})
	require.NoError(t, err)

	var list []token
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 3)

	assert.Equal(t, "a", list[0].Value)
	assert.Equal(t, "identifier", list[0].Type)
	assert.Equal(t, "+", list[1].Value)
	assert.Equal(t, "+", list[1].Type)
	assert.Equal(t, "12", list[2].Value)
	assert.Equal(t, "integer", list[2].Type)

	assert.Equal(t, 1, list[1].Line)
	assert.Equal(t, 3, list[1].Column)
	assert.Equal(t, 2, list[2].Line)
	assert.Equal(t, 2, list[2].Column)
	assert.Less(t, list[0].Ordinal, list[1].Ordinal)
}

func TestTokens_Template(t *testing.T) {
	t.Parallel()

	out, err := run(t, "Hi {{ name }}", &Tokens{Input: Input{Source: stdinSource}, Output: "yaml"})
	require.NoError(t, err)

	var list []token
	require.NoError(t, yaml.Unmarshal([]byte(out), &list))

	types := make([]string, len(list))
	for i, tok := range list {
		types[i] = tok.Type
	}

	assert.Equal(t, []string{"text", "print open", "identifier", "print close"}, types)
}

func TestTokens_Table(t *testing.T) {
	t.Parallel()

	out, err := run(t, "x", &Tokens{Input: Input{Expr: true, Source: stdinSource}, Output: "text"})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.NotEmpty(t, lines)

	assert.Contains(t, out, "POS")
	assert.Contains(t, out, "TYPE")
	assert.Contains(t, out, "1:1")
	assert.Contains(t, out, `"x"`)
}
