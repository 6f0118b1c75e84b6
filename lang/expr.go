package lang

import (
	"strconv"
	"strings"
)

// primaryStart lists the token types that may begin a primary expression,
// reported when none is found.
var primaryStart = []TokenType{
	TokenIdent, TokenString, TokenInt, TokenFloat, TokenTrue, TokenFalse,
	TokenNull, TokenLParen, TokenLBracket, TokenLBrace,
}

// parseExpression parses a full expression: binary operators, then filter
// pipes, then the null-coalescing and conditional operators.
func parseExpression(pc *ParseContext, c *Cursor) (Node, error) {
	left, err := pc.Parse(ParserOperator, c)
	if err != nil {
		return nil, err
	}

	for c.Peek().Is(TokenPipe) {
		if left, err = pc.filters(c, left); err != nil {
			return nil, err
		}

		if left, err = pc.climb(c, left, 0); err != nil {
			return nil, err
		}
	}

	if tok, ok := c.NextIf(TokenNullCoalesce); ok {
		fallback, err := pc.Parse(ParserExpression, c)
		if err != nil {
			return nil, err
		}

		return NewNullCoalesce(tok, left, fallback), nil
	}

	if tok, ok := c.NextIf(TokenQuestion); ok {
		then, err := pc.Parse(ParserExpression, c)
		if err != nil {
			return nil, err
		}

		if err := c.Ensure(TokenColon); err != nil {
			return nil, err
		}

		els, err := pc.Parse(ParserExpression, c)
		if err != nil {
			return nil, err
		}

		return NewTernary(tok, left, then, els), nil
	}

	return left, nil
}

func parseOperator(pc *ParseContext, c *Cursor) (Node, error) {
	return pc.operand(c, 0)
}

// operand parses a prefix-operator chain or primary, then every infix
// operator binding at least as tightly as minPrec.
func (pc *ParseContext) operand(c *Cursor, minPrec int) (Node, error) {
	tok := c.Peek()

	if op, ok := pc.parser.operators.Unary(tok.Type); ok {
		c.Next()

		inner, err := pc.operand(c, op.Precedence)
		if err != nil {
			return nil, err
		}

		return pc.climb(c, NewUnary(tok, op.Type, op.Symbol, false, inner), minPrec)
	}

	left, err := pc.Parse(ParserPrimary, c)
	if err != nil {
		return nil, err
	}

	return pc.climb(c, left, minPrec)
}

// climb is the precedence-climbing loop. The right operand of a
// left-associative operator binds one level tighter than the operator.
func (pc *ParseContext) climb(c *Cursor, left Node, minPrec int) (Node, error) {
	for {
		tok := c.Peek()
		kind, negate := tok.Type, false

		if tok.Is(TokenNot) && c.LookAt(1).Is(TokenIn) {
			kind, negate = TokenIn, true
		}

		op, ok := pc.parser.operators.Binary(kind)
		if !ok || op.Precedence < minPrec {
			return left, nil
		}

		c.Next()

		if negate {
			c.Next()
		}

		if op.Type == TokenIs {
			pc.Options = Options{Operand: left}

			test, err := pc.Parse(ParserTest, c)
			if err != nil {
				return nil, err
			}

			left = test

			continue
		}

		next := op.Precedence + 1
		if op.Assoc == AssocRight {
			next = op.Precedence
		}

		right, err := pc.operand(c, next)
		if err != nil {
			return nil, err
		}

		if op.Type == TokenRange {
			left = NewRange(tok, left, right)
		} else {
			left = NewBinary(tok, op.Type, op.Symbol, left, right)
		}

		if negate {
			left = NewUnary(tok, TokenNot, "not", false, left)
		}
	}
}

func (pc *ParseContext) filters(c *Cursor, left Node) (Node, error) {
	for c.Peek().Is(TokenPipe) {
		c.Next()

		pc.Options = Options{Operand: left}

		n, err := pc.Parse(ParserFilter, c)
		if err != nil {
			return nil, err
		}

		left = n
	}

	return left, nil
}

func parseFilter(pc *ParseContext, c *Cursor) (Node, error) {
	pc.Options.Next = ParserFilter

	return pc.Parse(ParserCall, c)
}

func parseTest(pc *ParseContext, c *Cursor) (Node, error) {
	pc.Options.Next = ParserTest

	if _, ok := c.NextIf(TokenNot); ok {
		pc.Options.Negated = true
	}

	return pc.Parse(ParserCall, c)
}

// parseCall builds a function, filter or test call depending on the hint
// left in the option slot. The argument list is parsed the same way for
// all three.
func parseCall(pc *ParseContext, c *Cursor) (Node, error) {
	opts := pc.takeOptions()

	name := c.Peek()

	switch {
	case name.Type.Name():
	case opts.Next == ParserTest && name.Is(TokenNull, TokenTrue, TokenFalse, TokenIn):
	default:
		return nil, c.Unexpected(TokenIdent)
	}

	c.Next()

	switch opts.Next {
	case ParserFilter:
		var args []Node

		if c.Peek().Is(TokenLParen) {
			var err error
			if args, err = pc.arguments(c); err != nil {
				return nil, err
			}
		}

		return NewFilterCall(name, name.Value, opts.Operand, args...), nil

	case ParserTest:
		var args []Node

		switch tok := c.Peek(); {
		case tok.Is(TokenLParen):
			var err error
			if args, err = pc.arguments(c); err != nil {
				return nil, err
			}
		case tok.Is(TokenIdent, TokenString, TokenInt, TokenFloat,
			TokenTrue, TokenFalse, TokenNull, TokenLBracket):
			arg, err := pc.Parse(ParserPrimary, c)
			if err != nil {
				return nil, err
			}

			args = []Node{arg}
		}

		return NewTestCall(name, testName(name), opts.Negated, opts.Operand, args...), nil

	default:
		args, err := pc.arguments(c)
		if err != nil {
			return nil, err
		}

		if name.Value == "parent" && len(args) == 0 {
			return NewParentCall(name), nil
		}

		return NewFunctionCall(name, name.Value, args...), nil
	}
}

func testName(tok Token) string {
	switch tok.Type {
	case TokenNull:
		return "null"
	case TokenTrue:
		return "true"
	case TokenFalse:
		return "false"
	default:
		return tok.Value
	}
}

// arguments parses a parenthesized, comma-separated argument list. An
// argument of the form name=value becomes a [KeywordArg].
func (pc *ParseContext) arguments(c *Cursor) ([]Node, error) {
	if err := c.Ensure(TokenLParen); err != nil {
		return nil, err
	}

	var args []Node

	for !c.Peek().Is(TokenRParen) {
		if tok := c.Peek(); tok.Type.Name() && c.LookAt(1).Is(TokenAssign) {
			c.Next()
			c.Next()

			v, err := pc.Parse(ParserExpression, c)
			if err != nil {
				return nil, err
			}

			args = append(args, NewKeywordArg(tok, tok.Value, v))
		} else {
			v, err := pc.Parse(ParserExpression, c)
			if err != nil {
				return nil, err
			}

			args = append(args, v)
		}

		if _, ok := c.NextIf(TokenComma); !ok {
			break
		}
	}

	if err := c.Ensure(TokenRParen); err != nil {
		return nil, err
	}

	return args, nil
}

// parsePrimary dispatches on the upcoming tokens, then applies postfix
// member access, indexing, implicit multiplication and postfix
// increment or decrement.
func parsePrimary(pc *ParseContext, c *Cursor) (Node, error) {
	var (
		tok   = c.Peek()
		named = tok.Type.Name()
		node  Node
		mult  bool
		err   error
	)

	switch {
	case named && c.MatchesSequence(tok.Type, TokenLParen):
		pc.Options = Options{Next: ParserFunction}
		node, err = pc.Parse(ParserCall, c)

	case named && c.LookAt(2).Type.Name() &&
		c.MatchesSequence(tok.Type, TokenDot, c.LookAt(2).Type, TokenLParen):
		c.Next()
		c.Next()

		member := c.Next()

		var args []Node
		if args, err = pc.arguments(c); err == nil {
			node = NewScopedCall(tok, tok.Value, member.Value, args...)
		}

	case named && c.MatchesSequence(tok.Type, TokenArrow):
		node, err = pc.Parse(ParserLambda, c)

	case named:
		c.Next()
		node = NewIdentifier(tok, tok.Value)

	case c.MatchesSequence(TokenInt, TokenRange):
		var from Node
		if from, err = pc.Parse(ParserLiteral, c); err != nil {
			return nil, err
		}

		op := c.Next()

		var to Node
		if to, err = pc.operand(c, PrecRange+1); err == nil {
			node = NewRange(op, from, to)
		}

	case tok.Type.In(GroupLiteral):
		node, err = pc.Parse(ParserLiteral, c)
		mult = tok.Is(TokenInt, TokenFloat)

	case tok.Is(TokenLBracket):
		node, err = pc.Parse(ParserArray, c)

	case tok.Is(TokenLBrace):
		node, err = pc.Parse(ParserMap, c)

	case tok.Is(TokenLParen) && lambdaAhead(c):
		node, err = pc.Parse(ParserLambda, c)

	case tok.Is(TokenLParen):
		c.Next()

		if node, err = pc.Parse(ParserExpression, c); err == nil {
			err = c.Ensure(TokenRParen)
		}

		mult = true

	default:
		return nil, c.Unexpected(primaryStart...)
	}

	if err != nil {
		return nil, err
	}

	return pc.postfix(c, node, mult)
}

func (pc *ParseContext) postfix(c *Cursor, node Node, mult bool) (Node, error) {
	for {
		tok := c.Peek()

		switch {
		case tok.Is(TokenDot) && (c.LookAt(1).Type.Name() || c.LookAt(1).Is(TokenInt)):
			c.Next()

			name := c.Next()

			if c.Peek().Is(TokenLParen) {
				args, err := pc.arguments(c)
				if err != nil {
					return nil, err
				}

				node = NewMethodCall(name, node, name.Value, args...)
			} else {
				node = NewProperty(name, node, name.Value)
			}

			mult = false

		case tok.Is(TokenLBracket):
			c.Next()

			key, err := pc.Parse(ParserExpression, c)
			if err != nil {
				return nil, err
			}

			if err := c.Ensure(TokenRBracket); err != nil {
				return nil, err
			}

			node = NewIndex(tok, node, key)
			mult = false

		case tok.Is(TokenLParen) && mult:
			c.Next()

			rhs, err := pc.Parse(ParserExpression, c)
			if err != nil {
				return nil, err
			}

			if err := c.Ensure(TokenRParen); err != nil {
				return nil, err
			}

			node = NewBinary(tok, TokenStar, "*", node, rhs)

		case tok.Is(TokenIncrement, TokenDecrement) && assignable(node):
			c.Next()

			node = NewUnary(tok, tok.Type, tok.Value, true, node)

		default:
			return node, nil
		}
	}
}

func assignable(n Node) bool {
	switch n.(type) {
	case *Identifier, *Property, *Index:
		return true
	default:
		return false
	}
}

// lambdaAhead reports whether a parenthesized parameter list followed by
// an arrow starts at the cursor. The cursor does not move.
func lambdaAhead(c *Cursor) bool {
	sp := c.Savepoint()
	defer c.Restore(sp)

	if _, ok := c.NextIf(TokenLParen); !ok {
		return false
	}

	for !c.Peek().Is(TokenRParen) {
		if !c.Next().Type.Name() {
			return false
		}

		if _, ok := c.NextIf(TokenComma); !ok {
			break
		}
	}

	if _, ok := c.NextIf(TokenRParen); !ok {
		return false
	}

	return c.Peek().Is(TokenArrow)
}

func parseLambda(pc *ParseContext, c *Cursor) (Node, error) {
	start := c.Peek()

	var params []*Param

	if _, ok := c.NextIf(TokenLParen); ok {
		for !c.Peek().Is(TokenRParen) {
			name, err := expectName(c)
			if err != nil {
				return nil, err
			}

			params = append(params, NewParam(name, name.Value, nil))

			if _, ok := c.NextIf(TokenComma); !ok {
				break
			}
		}

		if err := c.Ensure(TokenRParen); err != nil {
			return nil, err
		}
	} else {
		name, err := expectName(c)
		if err != nil {
			return nil, err
		}

		params = append(params, NewParam(name, name.Value, nil))
	}

	if err := c.Ensure(TokenArrow); err != nil {
		return nil, err
	}

	body, err := pc.Parse(ParserExpression, c)
	if err != nil {
		return nil, err
	}

	return NewLambda(start, params, body), nil
}

func parseLiteral(_ *ParseContext, c *Cursor) (Node, error) {
	tok, err := c.Expect(TokenString, TokenInt, TokenFloat, TokenTrue, TokenFalse, TokenNull)
	if err != nil {
		return nil, err
	}

	invalid := func(err error) error {
		return &ParseError{
			Token:   tok,
			Message: "invalid " + tok.Type.String() + " " + tok.String(),
			Source:  c.Source(),
			Err:     ErrInvalidLiteral.Wrap(err),
		}
	}

	switch tok.Type {
	case TokenString:
		s, err := Unquote(tok.Value)
		if err != nil {
			return nil, invalid(err)
		}

		return NewLiteral(tok, s), nil

	case TokenInt:
		i, err := strconv.ParseInt(strings.ReplaceAll(tok.Value, "_", ""), 10, 64)
		if err != nil {
			return nil, invalid(err)
		}

		return NewLiteral(tok, i), nil

	case TokenFloat:
		f, err := strconv.ParseFloat(strings.ReplaceAll(tok.Value, "_", ""), 64)
		if err != nil {
			return nil, invalid(err)
		}

		return NewLiteral(tok, f), nil

	case TokenTrue:
		return NewLiteral(tok, true), nil

	case TokenFalse:
		return NewLiteral(tok, false), nil

	default:
		return NewLiteral(tok, nil), nil
	}
}

func parseArray(pc *ParseContext, c *Cursor) (Node, error) {
	open, err := c.Expect(TokenLBracket)
	if err != nil {
		return nil, err
	}

	arr := NewArray(open)

	for !c.Peek().Is(TokenRBracket) {
		elem, err := pc.Parse(ParserExpression, c)
		if err != nil {
			return nil, err
		}

		arr.Add(elem)

		if _, ok := c.NextIf(TokenComma); !ok {
			break
		}
	}

	if err := c.Ensure(TokenRBracket); err != nil {
		return nil, err
	}

	return arr, nil
}

// parseMap parses a map literal. A bare name before the colon is a string
// key; any other key is an expression.
func parseMap(pc *ParseContext, c *Cursor) (Node, error) {
	open, err := c.Expect(TokenLBrace)
	if err != nil {
		return nil, err
	}

	m := NewMap(open)

	for !c.Peek().Is(TokenRBrace) {
		var (
			tok = c.Peek()
			key Node
		)

		if tok.Type.Name() && c.LookAt(1).Is(TokenColon) {
			c.Next()

			key = NewLiteral(tok, tok.Value)
		} else if key, err = pc.Parse(ParserExpression, c); err != nil {
			return nil, err
		}

		if err := c.Ensure(TokenColon); err != nil {
			return nil, err
		}

		value, err := pc.Parse(ParserExpression, c)
		if err != nil {
			return nil, err
		}

		m.Add(NewPair(tok, key, value))

		if _, ok := c.NextIf(TokenComma); !ok {
			break
		}
	}

	if err := c.Ensure(TokenRBrace); err != nil {
		return nil, err
	}

	return m, nil
}

func expectName(c *Cursor) (Token, error) {
	tok := c.Peek()
	if !tok.Type.Name() {
		return tok, c.Unexpected(TokenIdent)
	}

	return c.Next(), nil
}

// Unquote decodes a quoted string literal. Backquoted strings are raw;
// single and double quoted strings honor backslash escapes.
func Unquote(s string) (string, error) {
	if len(s) < 2 || s[0] != s[len(s)-1] || !strings.ContainsRune("'\"`", rune(s[0])) {
		return "", strconv.ErrSyntax
	}

	quote, body := s[0], s[1:len(s)-1]
	if quote == '`' || !strings.ContainsRune(body, '\\') {
		return body, nil
	}

	var b strings.Builder

	b.Grow(len(body))

	for i := 0; i < len(body); i++ {
		ch := body[i]
		if ch != '\\' || i+1 == len(body) {
			b.WriteByte(ch)

			continue
		}

		i++

		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '0':
			b.WriteByte(0)
		case '\\', '\'', '"', '`':
			b.WriteByte(body[i])
		case 'u':
			if i+5 > len(body) {
				return "", strconv.ErrSyntax
			}

			r, err := strconv.ParseUint(body[i+1:i+5], 16, 32)
			if err != nil {
				return "", strconv.ErrSyntax
			}

			b.WriteRune(rune(r))

			i += 4
		default:
			b.WriteByte('\\')
			b.WriteByte(body[i])
		}
	}

	return b.String(), nil
}
