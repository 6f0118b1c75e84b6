package lang

import (
	"slices"
	"strings"
)

// Recognizer assigns a token type to a raw span, reporting false when it
// has no opinion.
type Recognizer interface {
	Recognize(raw RawToken) (TokenType, bool)
}

// RecognizerFunc adapts a function to [Recognizer].
type RecognizerFunc func(raw RawToken) (TokenType, bool)

// Recognize calls f.
func (f RecognizerFunc) Recognize(raw RawToken) (TokenType, bool) { return f(raw) }

// Priorities of the built-in recognizers. Higher runs first.
const (
	PriorityCatalog = 100
	PriorityKind    = 0
)

type rankedRecognizer struct {
	priority int
	Recognizer
}

// recognizers is an immutable chain ordered by descending priority.
type recognizers []rankedRecognizer

func defaultRecognizers(d Delims) recognizers {
	return recognizers{
		{PriorityCatalog, RecognizerFunc(recognizeSpelling)},
		{PriorityCatalog, delimRecognizer(d)},
		{PriorityKind, RecognizerFunc(recognizeKind)},
	}
}

func (rs recognizers) with(priority int, r Recognizer) recognizers {
	out := append(slices.Clone(rs), rankedRecognizer{priority, r})
	slices.SortStableFunc(out, func(a, b rankedRecognizer) int {
		return b.priority - a.priority
	})

	return out
}

// recognize runs the chain. A span no strategy accepts is [TokenUnknown];
// the parser reports it if it is ever reached.
func (rs recognizers) recognize(raw RawToken) TokenType {
	for _, r := range rs {
		if t, ok := r.Recognize(raw); ok {
			return t
		}
	}

	return TokenUnknown
}

// spellings maps every catalog spelling to its token type.
var spellings = func() map[string]TokenType {
	m := make(map[string]TokenType)

	for i, info := range catalog {
		for _, s := range info.Spellings {
			m[s] = TokenType(i)
		}
	}

	return m
}()

// recognizeSpelling matches keywords, operators and delimiters exactly.
func recognizeSpelling(raw RawToken) (TokenType, bool) {
	switch raw.Kind {
	case RawIdentifier, RawOperator:
		t, ok := spellings[raw.Value]

		return t, ok
	default:
		return TokenUnknown, false
	}
}

// delimRecognizer classifies tag spans by the configured delimiters.
func delimRecognizer(d Delims) RecognizerFunc {
	return func(raw RawToken) (TokenType, bool) {
		switch raw.Kind {
		case RawOpenTag:
			if strings.TrimSuffix(raw.Value, string(trimMark)) == d.PrintOpen {
				return TokenOpenPrint, true
			}

			return TokenOpenStmt, true
		case RawCloseTag:
			if strings.TrimPrefix(raw.Value, string(trimMark)) == d.PrintClose {
				return TokenClosePrint, true
			}

			return TokenCloseStmt, true
		default:
			return TokenUnknown, false
		}
	}
}

// recognizeKind falls back to the splitter's classification.
func recognizeKind(raw RawToken) (TokenType, bool) {
	switch raw.Kind {
	case RawString:
		return TokenString, true
	case RawNumber:
		if strings.ContainsAny(raw.Value, ".eE") {
			return TokenFloat, true
		}

		return TokenInt, true
	case RawIdentifier:
		return TokenIdent, true
	case RawText:
		return TokenText, true
	case RawWhitespace:
		return TokenWhitespace, true
	case RawComment:
		return TokenComment, true
	default:
		return TokenUnknown, false
	}
}
