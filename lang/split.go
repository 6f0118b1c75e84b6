package lang

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Delims are the markup delimiters recognized in template mode.
type Delims struct {
	PrintOpen    string
	PrintClose   string
	StmtOpen     string
	StmtClose    string
	CommentOpen  string
	CommentClose string
}

// DefaultDelims returns the standard delimiters.
func DefaultDelims() Delims {
	return Delims{
		PrintOpen:    "{{",
		PrintClose:   "}}",
		StmtOpen:     "{%",
		StmtClose:    "%}",
		CommentOpen:  "{#",
		CommentClose: "#}",
	}
}

// trimMark is the character that requests whitespace trimming when it
// touches a delimiter on its inner side.
const trimMark = '-'

// operators lists every operator spelling, longest first, so the splitter
// takes the longest match.
var operators = func() []string {
	var ops []string

	for _, info := range catalog {
		if info.Groups&(GroupMarkup|GroupTrivia) != 0 {
			continue
		}

		for _, s := range info.Spellings {
			r, _ := utf8.DecodeRuneInString(s)
			if !isIdentStart(r) {
				ops = append(ops, s)
			}
		}
	}

	slices.SortStableFunc(ops, func(a, b string) int { return len(b) - len(a) })

	return slices.Compact(ops)
}()

// splitter carves input into raw spans. It never fails: text it cannot
// classify becomes a [RawUnknown] span.
type splitter struct {
	src    string
	pos    int
	delims Delims
	out    []RawToken
}

func split(src string, delims Delims, exprOnly bool) []RawToken {
	s := &splitter{src: src, delims: delims}

	if exprOnly {
		s.markup("", false)

		return s.out
	}

	for s.pos < len(s.src) {
		s.text()
	}

	return s.out
}

func (s *splitter) emit(kind RawKind, end int) {
	if end <= s.pos {
		return
	}

	s.out = append(s.out, RawToken{
		Value:  s.src[s.pos:end],
		Offset: s.pos,
		Length: end - s.pos,
		Kind:   kind,
	})
	s.pos = end
}

// text consumes raw text up to the next opening delimiter, then the
// markup that follows it.
func (s *splitter) text() {
	rest := s.src[s.pos:]
	idx, open := -1, ""

	for _, d := range []string{s.delims.PrintOpen, s.delims.StmtOpen, s.delims.CommentOpen} {
		if i := strings.Index(rest, d); i >= 0 && (idx < 0 || i < idx) {
			idx, open = i, d
		}
	}

	if idx < 0 {
		s.emit(RawText, len(s.src))

		return
	}

	s.emit(RawText, s.pos+idx)

	if open == s.delims.CommentOpen {
		s.comment()

		return
	}

	end := s.pos + len(open)
	if end < len(s.src) && s.src[end] == trimMark {
		end++
	}

	s.emit(RawOpenTag, end)

	closing := s.delims.StmtClose
	if open == s.delims.PrintOpen {
		closing = s.delims.PrintClose
	}

	s.markup(closing, open == s.delims.PrintOpen)
}

func (s *splitter) comment() {
	rest := s.src[s.pos+len(s.delims.CommentOpen):]

	i := strings.Index(rest, s.delims.CommentClose)
	if i < 0 {
		s.emit(RawUnknown, len(s.src))

		return
	}

	s.emit(RawComment, s.pos+len(s.delims.CommentOpen)+i+len(s.delims.CommentClose))
}

// closeAt reports the length of the closing delimiter at the current
// position, including a leading trim mark, or 0.
func (s *splitter) closeAt(closing string) int {
	if closing == "" {
		return 0
	}

	rest := s.src[s.pos:]

	if strings.HasPrefix(rest, closing) {
		return len(closing)
	}

	if len(rest) > 0 && rest[0] == trimMark && strings.HasPrefix(rest[1:], closing) {
		return len(closing) + 1
	}

	return 0
}

// markup splits expression text until closing is found outside of any
// brace pair. An empty closing consumes the remaining input.
func (s *splitter) markup(closing string, braces bool) {
	depth := 0

	for s.pos < len(s.src) {
		if depth == 0 || !braces {
			if n := s.closeAt(closing); n > 0 {
				s.emit(RawCloseTag, s.pos+n)

				return
			}
		}

		r, size := utf8.DecodeRuneInString(s.src[s.pos:])

		switch {
		case unicode.IsSpace(r):
			s.whitespace()
		case r == '"' || r == '\'' || r == '`':
			s.quoted(r)
		case isDigit(r):
			s.number()
		case isIdentStart(r):
			s.ident()
		default:
			op := s.operator()
			if op == "" {
				s.emit(RawUnknown, s.pos+size)

				continue
			}

			switch op {
			case "{":
				depth++
			case "}":
				depth = max(depth-1, 0)
			}

			s.emit(RawOperator, s.pos+len(op))
		}
	}
}

func (s *splitter) whitespace() {
	end := s.pos

	for end < len(s.src) {
		r, size := utf8.DecodeRuneInString(s.src[end:])
		if !unicode.IsSpace(r) {
			break
		}

		end += size
	}

	s.emit(RawWhitespace, end)
}

func (s *splitter) quoted(quote rune) {
	for end := s.pos + 1; end < len(s.src); end++ {
		switch s.src[end] {
		case '\\':
			end++
		case byte(quote):
			s.emit(RawString, end+1)

			return
		}
	}

	s.emit(RawUnknown, len(s.src))
}

func (s *splitter) number() {
	end := s.digits(s.pos)

	if end+1 < len(s.src) && s.src[end] == '.' && isDigit(rune(s.src[end+1])) {
		end = s.digits(end + 1)
	}

	if end < len(s.src) && (s.src[end] == 'e' || s.src[end] == 'E') {
		exp := end + 1
		if exp < len(s.src) && (s.src[exp] == '+' || s.src[exp] == '-') {
			exp++
		}

		if exp < len(s.src) && isDigit(rune(s.src[exp])) {
			end = s.digits(exp)
		}
	}

	s.emit(RawNumber, end)
}

func (s *splitter) digits(from int) int {
	for from < len(s.src) && (isDigit(rune(s.src[from])) || s.src[from] == '_') {
		from++
	}

	return from
}

func (s *splitter) ident() {
	end := s.pos

	for end < len(s.src) {
		r, size := utf8.DecodeRuneInString(s.src[end:])
		if !isIdentPart(r) {
			break
		}

		end += size
	}

	s.emit(RawIdentifier, end)
}

func (s *splitter) operator() string {
	rest := s.src[s.pos:]

	for _, op := range operators {
		if strings.HasPrefix(rest, op) {
			return op
		}
	}

	return ""
}

func isDigit(r rune) bool { return '0' <= r && r <= '9' }

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }

func isIdentPart(r rune) bool { return isIdentStart(r) || unicode.IsDigit(r) }
