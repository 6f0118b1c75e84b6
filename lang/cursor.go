package lang

// Cursor walks a token stream. The stream is bracketed by [TokenStart] and
// [TokenEnd]; the cursor never moves before the first or past the last.
//
// Current is the most recently consumed token and Peek is the next one.
// A new cursor has consumed the start sentinel.
type Cursor struct {
	tokens []Token
	pos    int
	src    *Source
}

// Savepoint is an opaque cursor position.
type Savepoint int

// NewCursor returns a cursor over tokens, which must be bracketed by the
// start and end sentinels.
func NewCursor(tokens []Token, src *Source) *Cursor {
	if len(tokens) == 0 || tokens[0].Type != TokenStart {
		tokens = append([]Token{{Type: TokenStart, Line: 1}}, tokens...)
	}

	if tokens[len(tokens)-1].Type != TokenEnd {
		tokens = append(tokens, Token{
			Type:    TokenEnd,
			Ordinal: len(tokens),
			Offset:  src.Len(),
			Line:    src.Line(src.Len()),
		})
	}

	return &Cursor{tokens: tokens, pos: 1, src: src}
}

// Source returns the source the tokens were read from.
func (c *Cursor) Source() *Source { return c.src }

// Tokens returns the underlying stream.
func (c *Cursor) Tokens() []Token { return c.tokens }

// Peek returns the next token without consuming it.
func (c *Cursor) Peek() Token { return c.LookAt(0) }

// LookAt returns the token k positions past Peek. Negative k looks back.
// Positions outside the stream clamp to the sentinels.
func (c *Cursor) LookAt(k int) Token {
	i := min(max(c.pos+k, 0), len(c.tokens)-1)

	return c.tokens[i]
}

// Current returns the most recently consumed token.
func (c *Cursor) Current() Token { return c.tokens[c.pos-1] }

// Next consumes and returns the next token. At the end of the stream it
// keeps returning the end sentinel.
func (c *Cursor) Next() Token {
	tok := c.tokens[c.pos]
	if c.pos < len(c.tokens)-1 {
		c.pos++
	}

	return tok
}

// Previous steps back one token and returns the new current token.
func (c *Cursor) Previous() Token {
	if c.pos > 1 {
		c.pos--
	}

	return c.Current()
}

// NextIf consumes the next token if it has one of types.
func (c *Cursor) NextIf(types ...TokenType) (Token, bool) {
	if tok := c.Peek(); tok.Is(types...) {
		return c.Next(), true
	}

	return Token{}, false
}

// CurrentIf reports whether the current token has one of types.
func (c *Cursor) CurrentIf(types ...TokenType) bool {
	return c.Current().Is(types...)
}

// Expect consumes the next token, which must have one of types. On
// mismatch the cursor does not move.
func (c *Cursor) Expect(types ...TokenType) (Token, error) {
	tok := c.Peek()
	if !tok.Is(types...) {
		return tok, c.Unexpected(types...)
	}

	return c.Next(), nil
}

// Ensure is [Cursor.Expect] for callers that do not need the token.
func (c *Cursor) Ensure(types ...TokenType) error {
	_, err := c.Expect(types...)

	return err
}

// MatchesSequence reports whether the upcoming tokens have exactly the
// given types, in order, starting at Peek.
func (c *Cursor) MatchesSequence(types ...TokenType) bool {
	for i, t := range types {
		if c.LookAt(i).Type != t {
			return false
		}
	}

	return true
}

// Unexpected returns a [SyntaxError] for the next token, or an
// [ErrLexicalAmbiguity] parse error if the lexer could not classify it.
func (c *Cursor) Unexpected(expected ...TokenType) error {
	tok := c.Peek()
	if tok.Type == TokenUnknown {
		return &ParseError{
			Token:   tok,
			Message: "unrecognized input " + tok.String(),
			Source:  c.src,
			Err:     ErrLexicalAmbiguity,
		}
	}

	return &SyntaxError{Token: tok, Expected: expected, Source: c.src}
}

// Savepoint records the current position.
func (c *Cursor) Savepoint() Savepoint { return Savepoint(c.pos) }

// Restore rewinds to sp.
func (c *Cursor) Restore(sp Savepoint) {
	c.pos = min(max(int(sp), 1), len(c.tokens)-1)
}

// Done reports whether only the end sentinel remains.
func (c *Cursor) Done() bool { return c.Peek().Type == TokenEnd }
