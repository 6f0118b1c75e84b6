package repl

import (
	"maps"
	"reflect"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/ihontarenko/jmouse-sub007/engine"
)

// ctrlCommands are the command-mode commands.
var ctrlCommands = []string{"help", "vars", "set", "unset", "render", "edit", "clear", "quit"}

// isWordBoundary reports whether r ends a completion word: whitespace,
// member access and the operator and punctuation characters.
func isWordBoundary(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(".()[]{}+-*/%~<>=!&|,?:;'\"", r)
}

// wordBounds returns the word around cursor and its byte offsets. The word
// is empty when the cursor sits on a boundary.
func wordBounds(input string, cursor int) (word string, start, end int) {
	cursor = min(max(cursor, 0), len(input))

	start = cursor
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(input[:start])
		if isWordBoundary(r) {
			break
		}

		start -= size
	}

	end = cursor
	for end < len(input) {
		r, size := utf8.DecodeRuneInString(input[end:])
		if isWordBoundary(r) {
			break
		}

		end += size
	}

	return input[start:end], start, end
}

// parentPath returns the member-access chain before the word at
// wordStart: "server.http" for "x + server.http.ho". It is empty for a
// word that is not preceded by a dot.
func parentPath(input string, wordStart int) string {
	prefix := input[:wordStart]
	if !strings.HasSuffix(prefix, ".") {
		return ""
	}

	prefix = strings.TrimRight(prefix, ".")

	pos := len(prefix)
	for pos > 0 {
		r, size := utf8.DecodeLastRuneInString(prefix[:pos])
		if r != '.' && isWordBoundary(r) {
			break
		}

		pos -= size
	}

	return prefix[pos:]
}

// wordContext classifies what may be typed at the word start.
type wordContext int

const (
	contextValue  wordContext = iota // variable, function or namespace
	contextFilter                    // after "|"
	contextTest                      // after "is" or "is not"
)

// contextAt reports the kind of name expected at wordStart.
func contextAt(input string, wordStart int) wordContext {
	before := strings.TrimRightFunc(input[:wordStart], unicode.IsSpace)

	switch {
	case strings.HasSuffix(before, "|") && !strings.HasSuffix(before, "||"):
		return contextFilter
	case endsWithWord(before, "is"):
		return contextTest
	case endsWithWord(before, "not"):
		if endsWithWord(strings.TrimRightFunc(strings.TrimSuffix(before, "not"), unicode.IsSpace), "is") {
			return contextTest
		}
	}

	return contextValue
}

// endsWithWord reports whether s ends with the whole word w.
func endsWithWord(s, w string) bool {
	rest, ok := strings.CutSuffix(s, w)
	if !ok {
		return false
	}

	r, _ := utf8.DecodeLastRuneInString(rest)

	return rest == "" || isWordBoundary(r)
}

// symbols is the completion source of a session.
type symbols struct {
	engine *engine.Engine
	vars   map[string]any
}

// candidates returns the names that may complete a word with the given
// parent path and context.
func (s symbols) candidates(parent string, ctx wordContext) []string {
	switch ctx {
	case contextFilter:
		return s.engine.Filters().Names()
	case contextTest:
		return s.engine.Tests().Names()
	}

	if parent == "" {
		return s.topLevel()
	}

	if !strings.Contains(parent, ".") {
		if names := s.engine.Functions().Namespace(parent); len(names) > 0 {
			if _, shadowed := s.vars[parent]; !shadowed {
				return names
			}
		}
	}

	return memberNames(s.lookup(parent))
}

// topLevel returns the variables, globals, unqualified functions and
// function namespaces.
func (s symbols) topLevel() []string {
	set := make(map[string]struct{})

	for name := range s.vars {
		set[name] = struct{}{}
	}

	for _, name := range s.engine.Globals() {
		set[name] = struct{}{}
	}

	for _, name := range s.engine.Functions().Names() {
		ns, _, _ := strings.Cut(name, ".")
		set[ns] = struct{}{}
	}

	return slices.Sorted(maps.Keys(set))
}

// lookup walks the dotted path through the session variables.
func (s symbols) lookup(path string) any {
	var cur any = s.vars

	for _, key := range strings.Split(path, ".") {
		cur = member(cur, key)
		if cur == nil {
			return nil
		}
	}

	return cur
}

func member(v any, key string) any {
	rv := reflect.Indirect(reflect.ValueOf(v))

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil
		}

		mv := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !mv.IsValid() {
			return nil
		}

		return mv.Interface()
	case reflect.Struct:
		f := rv.FieldByNameFunc(func(name string) bool { return strings.EqualFold(name, key) })
		if !f.IsValid() || !f.CanInterface() {
			return nil
		}

		return f.Interface()
	}

	return nil
}

// memberNames returns the keys of a map or the exported fields of a
// struct.
func memberNames(v any) []string {
	rv := reflect.Indirect(reflect.ValueOf(v))

	var names []string

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil
		}

		for _, k := range rv.MapKeys() {
			names = append(names, k.String())
		}
	case reflect.Struct:
		for i := range rv.NumField() {
			if f := rv.Type().Field(i); f.IsExported() {
				names = append(names, f.Name)
			}
		}
	}

	slices.Sort(names)

	return names
}

// computeMatches returns the ranked matches for the word at the cursor,
// the candidates they index and the word bounds. An empty word completes
// only after a dot, where every member is listed.
func (m model) computeMatches() (matches fuzzy.Matches, candidates []string, wordStart, wordEnd int) {
	input := m.input.Value()

	word, wordStart, wordEnd := wordBounds(input, m.input.Position())

	if m.mode == modeCtrl {
		if word == "" || strings.ContainsFunc(input[:wordStart], unicode.IsSpace) {
			return nil, nil, wordStart, wordEnd
		}

		return fuzzy.Find(word, ctrlCommands), ctrlCommands, wordStart, wordEnd
	}

	parent := parentPath(input, wordStart)
	candidates = m.symbols.candidates(parent, contextAt(input, wordStart))

	if len(candidates) == 0 {
		return nil, nil, wordStart, wordEnd
	}

	if word == "" {
		if parent == "" {
			return nil, nil, wordStart, wordEnd
		}

		matches = make(fuzzy.Matches, len(candidates))
		for i, c := range candidates {
			matches[i] = fuzzy.Match{Str: c, Index: i}
		}

		return matches, candidates, wordStart, wordEnd
	}

	return fuzzy.Find(word, candidates), candidates, wordStart, wordEnd
}

// renderCandidateBar renders the completion line, cut with an ellipsis
// to fit width.
func renderCandidateBar(matches fuzzy.Matches, selected int, tabActive bool, width int, callable func(string) bool) string {
	if len(matches) == 0 || width <= 0 {
		return ""
	}

	const sep = "  "

	ellipsis := hintStyle.Render("...")

	var (
		b    strings.Builder
		used int
	)

	for i, match := range matches {
		rendered := renderCandidate(match, tabActive && i == selected, callable(match.Str))

		w := lipgloss.Width(rendered)
		if i > 0 {
			w += len(sep)
		}

		if i > 0 && used+w+lipgloss.Width(ellipsis) > width {
			b.WriteString(sep + ellipsis)

			break
		}

		if i > 0 {
			b.WriteString(sep)
		}

		b.WriteString(rendered)

		used += w
	}

	return b.String()
}

// renderCandidate renders one candidate with its matched characters
// highlighted and "()" after callables.
func renderCandidate(match fuzzy.Match, selected, callable bool) string {
	base, highlight := suggestionStyle, matchStyle
	if selected {
		base, highlight = selectedStyle, selectedMatchStyle
	}

	var b strings.Builder

	for i, r := range match.Str {
		if slices.Contains(match.MatchedIndexes, i) {
			b.WriteString(highlight.Render(string(r)))
		} else {
			b.WriteString(base.Render(string(r)))
		}
	}

	if callable {
		b.WriteString(base.Render("()"))
	}

	return b.String()
}
