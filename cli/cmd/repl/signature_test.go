package repl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihontarenko/jmouse-sub007/engine"
)

func TestDetectFunctionCall(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  functionCall
	}{
		{"upper(", functionCall{name: "upper", inCall: true}},
		{"str.repeat('ab', ", functionCall{name: "str.repeat", argIndex: 1, inCall: true}},
		{"f(g(1), [2, 3], ", functionCall{name: "f", argIndex: 2, inCall: true}},
		{"x | join(", functionCall{name: "join", filter: true, inCall: true}},
		{"a || f(", functionCall{name: "f", inCall: true}},
		{"a[f(", functionCall{name: "f", inCall: true}},
		{"a[1, ", functionCall{}},
		{"f(x) + ", functionCall{}},
		{"(1 + ", functionCall{}},
		{"plain", functionCall{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, detectFunctionCall(tt.input, len(tt.input)))
		})
	}
}

func TestDetectFunctionCall_Cursor(t *testing.T) {
	t.Parallel()

	call := detectFunctionCall("f(a, b) + g(c)", 5)
	assert.Equal(t, functionCall{name: "f", argIndex: 1, inCall: true}, call)

	assert.False(t, detectFunctionCall("f(a)", -3).inCall)
}

func TestParamLabels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		c    engine.Callable
		want []string
	}{
		{"none", engine.Callable{}, nil},
		{"required", engine.Callable{MinArgs: 2, MaxArgs: 2}, []string{"arg1", "arg2"}},
		{"optional", engine.Callable{MinArgs: 1, MaxArgs: 3}, []string{"arg1", "[arg2]", "[arg3]"}},
		{"variadic", engine.Callable{MinArgs: 1, Variadic: true}, []string{"arg1", "...args"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, paramLabels(tt.c))
		})
	}
}

func TestSymbols_Signature(t *testing.T) {
	t.Parallel()

	e := engine.New(engine.NewMapLoader(nil),
		engine.WithFunctions(engine.Wrap("greet", func(name string, rest ...string) string { return name })),
		engine.WithFilters(engine.Wrap("pad", func(s string, n int64) string { return s })),
	)
	s := symbols{engine: e, vars: map[string]any{}}

	params, ok := s.signature(functionCall{name: "greet", inCall: true})
	require.True(t, ok)
	assert.Equal(t, []string{"arg1", "...args"}, params)

	params, ok = s.signature(functionCall{name: "pad", filter: true, inCall: true})
	require.True(t, ok)
	assert.Equal(t, []string{"arg2"}, params)

	_, ok = s.signature(functionCall{name: "pad", inCall: true})
	assert.False(t, ok)
}

func TestRenderSignatureHint(t *testing.T) {
	t.Parallel()

	hint := renderSignatureHint("greet", []string{"arg1", "...args"}, 3)

	for _, part := range []string{"greet", "(", "arg1", ", ", "...args", ")"} {
		assert.Contains(t, hint, part)
	}

	assert.Less(t, strings.Index(hint, "arg1"), strings.Index(hint, "...args"))
}
