package repl

import (
	"strings"
	"testing"

	"github.com/sahilm/fuzzy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihontarenko/jmouse-sub007/engine"
)

type server struct {
	Port int
	Host string
	key  string
}

func testSymbols() symbols {
	e := engine.New(engine.NewMapLoader(nil),
		engine.WithGlobals(map[string]any{"site": "jmouse"}))

	return symbols{engine: e, vars: map[string]any{
		"user":   map[string]any{"name": "bo", "nick": "b"},
		"server": server{Port: 80, Host: "localhost", key: "k"},
		"file":   map[string]any{"shadowed": true},
	}}
}

func TestWordBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input      string
		cursor     int
		word       string
		start, end int
	}{
		{"abc def", 5, "def", 4, 7},
		{"abc def", 3, "abc", 0, 3},
		{"user.na", 7, "na", 5, 7},
		{"x + ", 4, "", 4, 4},
		{"f(ab)", 3, "ab", 2, 4},
		{"héllo", 99, "héllo", 0, 6},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			word, start, end := wordBounds(tt.input, tt.cursor)
			assert.Equal(t, tt.word, word)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestParentPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "server.http", parentPath("x + server.http.ho", 16))
	assert.Equal(t, "user", parentPath("user.", 5))
	assert.Empty(t, parentPath("a + b", 4))
	assert.Empty(t, parentPath("", 0))
}

func TestContextAt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  wordContext
	}{
		{"x | up", contextFilter},
		{"x|up", contextFilter},
		{"x || y", contextValue},
		{"n is ev", contextTest},
		{"n is not ev", contextTest},
		{"not ev", contextValue},
		{"analysis ev", contextValue},
		{"a + b", contextValue},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			_, start, _ := wordBounds(tt.input, len(tt.input))
			assert.Equal(t, tt.want, contextAt(tt.input, start))
		})
	}
}

func TestSymbols_Candidates(t *testing.T) {
	t.Parallel()

	s := testSymbols()

	top := s.candidates("", contextValue)
	assert.Contains(t, top, "user")
	assert.Contains(t, top, "site")
	assert.Contains(t, top, "range")
	assert.Contains(t, top, "path")
	assert.NotContains(t, top, "path.join")

	assert.Contains(t, s.candidates("path", contextValue), "join")
	assert.Equal(t, []string{"name", "nick"}, s.candidates("user", contextValue))
	assert.Equal(t, []string{"Host", "Port"}, s.candidates("server", contextValue))
	assert.Equal(t, []string{"shadowed"}, s.candidates("file", contextValue))
	assert.Empty(t, s.candidates("user.name", contextValue))
	assert.Empty(t, s.candidates("absent", contextValue))

	assert.Contains(t, s.candidates("", contextFilter), "upper")
	assert.Contains(t, s.candidates("", contextTest), "even")
}

func TestSymbols_Lookup(t *testing.T) {
	t.Parallel()

	s := testSymbols()

	assert.Equal(t, "bo", s.lookup("user.name"))
	assert.Equal(t, 80, s.lookup("server.port"))
	assert.Nil(t, s.lookup("server.key"))
	assert.Nil(t, s.lookup("user.name.first"))
	assert.Nil(t, member(map[int]any{1: "x"}, "1"))
}

func TestComputeMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mode    inputMode
		input   string
		want    []string
		noMatch bool
	}{
		{"member", modeEval, "user.n", []string{"name", "nick"}, false},
		{"all members", modeEval, "1 + user.", []string{"name", "nick"}, false},
		{"filter", modeEval, "x | uppe", []string{"upper"}, false},
		{"empty word", modeEval, "1 + ", nil, true},
		{"command", modeCtrl, "rend", []string{"render"}, false},
		{"command argument", modeCtrl, "render pa", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := newTestModel(t, nil)
			m.mode = tt.mode
			m.input.SetValue(tt.input)
			m.input.CursorEnd()

			matches, _, start, end := m.computeMatches()
			if tt.noMatch {
				assert.Empty(t, matches)

				return
			}

			got := make([]string, len(matches))
			for i, match := range matches {
				got[i] = match.Str
			}

			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}

			assert.Equal(t, len(tt.input), end)
			assert.LessOrEqual(t, start, end)
		})
	}
}

func TestRenderCandidateBar(t *testing.T) {
	t.Parallel()

	never := func(string) bool { return false }

	assert.Empty(t, renderCandidateBar(nil, 0, false, 80, never))
	assert.Empty(t, renderCandidateBar(fuzzy.Matches{{Str: "a"}}, 0, false, 0, never))

	var many fuzzy.Matches
	for range 30 {
		many = append(many, fuzzy.Match{Str: "candidate"})
	}

	bar := renderCandidateBar(many, 0, false, 40, never)
	assert.Contains(t, bar, "...")
	assert.Less(t, strings.Count(bar, "candidate"), 30)

	call := renderCandidate(fuzzy.Match{Str: "upper", MatchedIndexes: []int{0}}, false, true)
	assert.Contains(t, call, "()")
	require.NotContains(t, renderCandidate(fuzzy.Match{Str: "x"}, true, false), "()")
}
