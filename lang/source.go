package lang

import (
	"slices"
	"sort"
	"strconv"

	"github.com/apparentlymart/go-textseg/v13/textseg"
)

// Position is a resolved location in a [Source]. Line and Column are
// 1-based; Column counts grapheme clusters.
type Position struct {
	Offset int
	Line   int
	Column int
}

func (p Position) String() string {
	return strconv.Itoa(p.Line) + ":" + strconv.Itoa(p.Column)
}

// Span is one entry of the source log: a typed region of the input.
type Span struct {
	Offset int
	Length int
	Type   TokenType
}

// Source holds template text along with the log of every span the lexer
// classified, including whitespace and comments.
//
// A Source is written only while it is being tokenized. Afterwards it is
// safe for concurrent readers.
type Source struct {
	name  string
	text  string
	lines []int
	spans []Span
}

// NewSource returns a Source for text. The name is used in diagnostics.
func NewSource(name, text string) *Source {
	lines := []int{0}

	for i := range len(text) {
		if text[i] == '\n' {
			lines = append(lines, i+1)
		}
	}

	return &Source{name: name, text: text, lines: lines}
}

// Name returns the diagnostic name of the source.
func (s *Source) Name() string {
	if s == nil {
		return ""
	}

	return s.name
}

// Text returns the full input.
func (s *Source) Text() string {
	if s == nil {
		return ""
	}

	return s.text
}

// Len returns the input length in bytes.
func (s *Source) Len() int { return len(s.Text()) }

// Log records that [offset, offset+length) has type t.
func (s *Source) Log(offset, length int, t TokenType) {
	s.spans = append(s.spans, Span{Offset: offset, Length: length, Type: t})
}

// Spans returns a copy of the span log in offset order.
func (s *Source) Spans() []Span {
	if s == nil {
		return nil
	}

	return slices.Clone(s.spans)
}

// TypeAt returns the type logged for the span covering offset.
func (s *Source) TypeAt(offset int) (TokenType, bool) {
	if s == nil {
		return TokenUnknown, false
	}

	i := sort.Search(len(s.spans), func(i int) bool {
		return s.spans[i].Offset+s.spans[i].Length > offset
	})
	if i < len(s.spans) && s.spans[i].Offset <= offset {
		return s.spans[i].Type, true
	}

	return TokenUnknown, false
}

// Slice returns the text covered by sp.
func (s *Source) Slice(sp Span) string {
	text := s.Text()
	lo := min(max(sp.Offset, 0), len(text))
	hi := min(max(sp.Offset+sp.Length, lo), len(text))

	return text[lo:hi]
}

// Line returns the 1-based line holding offset.
func (s *Source) Line(offset int) int {
	if s == nil {
		return 1
	}

	return sort.Search(len(s.lines), func(i int) bool {
		return s.lines[i] > offset
	})
}

// Position resolves offset to a line and grapheme column.
func (s *Source) Position(offset int) Position {
	if s == nil {
		return Position{Offset: offset, Line: 1, Column: offset + 1}
	}

	offset = min(max(offset, 0), len(s.text))
	line := s.Line(offset)
	start := s.lines[line-1]

	col, err := textseg.TokenCount([]byte(s.text[start:offset]), textseg.ScanGraphemeClusters)
	if err != nil {
		col = offset - start
	}

	return Position{Offset: offset, Line: line, Column: col + 1}
}

// LineText returns the text of the 1-based line without its terminator.
func (s *Source) LineText(line int) (string, bool) {
	if s == nil || line < 1 || line > len(s.lines) {
		return "", false
	}

	start := s.lines[line-1]
	end := len(s.text)

	if line < len(s.lines) {
		end = s.lines[line] - 1
	}

	if end > start && s.text[end-1] == '\r' {
		end--
	}

	return s.text[start:end], true
}

// Lines returns the number of lines in the input.
func (s *Source) Lines() int {
	if s == nil {
		return 0
	}

	return len(s.lines)
}

func (s *Source) reset() { s.spans = s.spans[:0] }
