package lang

import (
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"strings"
)

// Predefined errors (sentinel values).
var (
	ErrSyntax            = NewError("syntax error")
	ErrParse             = NewError("parse error")
	ErrLexicalAmbiguity  = NewError("lexical ambiguity")
	ErrUnknownStatement  = NewError("unknown statement")
	ErrMaxDepthExceeded  = NewError("maximum nesting depth exceeded")
	ErrReadInput         = NewError("failed to read input")
	ErrInvalidLiteral    = NewError("invalid literal")
	ErrUnsupportedFormat = NewError("unsupported format")
)

// Error represents an error with optional structured logging attributes.
// It implements both error and slog.LogValuer interfaces.
//
// Errors derived from a sentinel with [Error.Wrap] or [Error.With] match the
// sentinel under [errors.Is].
type Error struct {
	msg   string
	err   error
	attrs []slog.Attr
	root  *Error
}

// NewError creates a new Error with a message.
func NewError(msg string) *Error {
	e := &Error{msg: msg}
	e.root = e

	return e
}

// WrapError wraps a standard error into an Error.
func WrapError(err error) *Error {
	var ee *Error
	if errors.As(err, &ee) {
		return ee
	}

	e := &Error{err: err}
	e.root = e

	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	part := make([]string, 0, 2)

	if e.msg != "" {
		part = append(part, e.msg)
	}

	if e.err != nil {
		part = append(part, e.err.Error())
	}

	return strings.Join(part, ": ")
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error { return e.err }

// Is reports whether target is the sentinel e was derived from.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)

	return ok && t.root != nil && t.root == e.root
}

// Attrs returns the structured attributes attached to e.
func (e *Error) Attrs() []slog.Attr { return slices.Clone(e.attrs) }

// LogValue implements slog.LogValuer for rich structured logging.
func (e *Error) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(e.attrs)+2)

	if e.msg != "" {
		attrs = append(attrs, slog.String("error", e.msg))
	}

	if e.err != nil {
		attrs = append(attrs, slog.String("cause", e.err.Error()))
	}

	return slog.GroupValue(append(attrs, e.attrs...)...)
}

// Wrap creates a new Error wrapping another error.
func (e *Error) Wrap(err error) *Error {
	return &Error{msg: e.msg, err: err, attrs: e.attrs, root: e.root}
}

// With adds attributes to the error for structured logging.
// This creates a new Error instance to maintain immutability.
func (e *Error) With(attrs ...slog.Attr) *Error {
	merged := make([]slog.Attr, len(e.attrs)+len(attrs))
	copy(merged, e.attrs)
	copy(merged[len(e.attrs):], attrs)

	return &Error{msg: e.msg, err: e.err, attrs: merged, root: e.root}
}

// SyntaxError reports a token that does not satisfy the grammar.
type SyntaxError struct {
	Token    Token
	Expected []TokenType
	Source   *Source
}

func (e *SyntaxError) Error() string {
	var b strings.Builder

	b.WriteString("syntax error")
	writeLocation(&b, e.Source, e.Token)
	b.WriteString(": unexpected ")
	b.WriteString(e.Token.String())

	if exp := e.expected(); len(exp) > 0 {
		b.WriteString(", expected ")
		b.WriteString(strings.Join(exp, ", "))
	}

	b.WriteString(snippet(e.Source, e.Token))

	return b.String()
}

// Unwrap returns [ErrSyntax].
func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// LogValue implements slog.LogValuer.
func (e *SyntaxError) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("error", "syntax error"),
		slog.String("token", e.Token.String()),
		slog.Int("line", e.Token.Line),
		slog.Int("offset", e.Token.Offset),
		slog.String("expected", strings.Join(e.expected(), ", ")),
	)
}

// Position returns the location of the offending token.
func (e *SyntaxError) Position() Position {
	return e.Source.Position(e.Token.Offset)
}

func (e *SyntaxError) expected() []string {
	exp := make([]string, 0, len(e.Expected))
	for _, t := range e.Expected {
		exp = append(exp, strconv.Quote(t.String()))
	}

	slices.Sort(exp)

	return slices.Compact(exp)
}

// ParseError reports a structurally invalid construct at a token.
type ParseError struct {
	Token   Token
	Message string
	Source  *Source
	Err     error
}

func (e *ParseError) Error() string {
	var b strings.Builder

	b.WriteString("parse error")
	writeLocation(&b, e.Source, e.Token)
	b.WriteString(": ")
	b.WriteString(e.Message)
	b.WriteString(snippet(e.Source, e.Token))

	return b.String()
}

// Unwrap returns the underlying cause, or [ErrParse] if there is none.
func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrParse, e.Err}
	}

	return []error{ErrParse}
}

// LogValue implements slog.LogValuer.
func (e *ParseError) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("error", e.Message),
		slog.String("token", e.Token.String()),
		slog.Int("line", e.Token.Line),
		slog.Int("offset", e.Token.Offset),
	)
}

// Position returns the location of the offending token.
func (e *ParseError) Position() Position {
	return e.Source.Position(e.Token.Offset)
}

func writeLocation(b *strings.Builder, src *Source, tok Token) {
	pos := src.Position(tok.Offset)

	b.WriteString(" at ")

	if name := src.Name(); name != "" {
		b.WriteString(name)
		b.WriteByte(':')
	}

	b.WriteString(strconv.Itoa(pos.Line))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(pos.Column))
}

// snippet renders the source line holding tok with a caret under its
// first column.
func snippet(src *Source, tok Token) string {
	if src == nil {
		return ""
	}

	pos := src.Position(tok.Offset)

	line, ok := src.LineText(pos.Line)
	if !ok {
		return ""
	}

	num := strconv.Itoa(pos.Line)

	var b strings.Builder

	b.WriteString("\n  ")
	b.WriteString(num)
	b.WriteString(" | ")
	b.WriteString(line)
	b.WriteString("\n  ")
	b.WriteString(strings.Repeat(" ", len(num)+3+pos.Column-1))
	b.WriteString("^")

	return b.String()
}
