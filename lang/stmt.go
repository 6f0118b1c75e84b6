package lang

func parseTemplate(pc *ParseContext, c *Cursor) (Node, error) {
	body, err := pc.Body(c, c.Current())
	if err != nil {
		return nil, err
	}

	src := c.Source()
	tmpl := NewTemplate(src.Name(), src)
	tmpl.Add(body.Children()...)

	return tmpl, nil
}

// Body parses text, print tags and statements until an opening statement
// tag followed by one of stop, which is left unconsumed. With no stop
// keywords it runs to the end of input.
func (pc *ParseContext) Body(c *Cursor, at Token, stop ...TokenType) (*Body, error) {
	body := NewBody(at)

	for {
		tok := c.Peek()

		switch tok.Type {
		case TokenEnd:
			if len(stop) > 0 {
				return nil, c.Unexpected(stop...)
			}

			return body, nil

		case TokenText:
			prev := c.Current()
			c.Next()

			text := NewText(tok, tok.Value)
			text.TrimLeft = prev.TrimRight()
			text.TrimRight = c.Peek().TrimLeft()
			body.Add(text)

		case TokenOpenPrint:
			c.Next()

			expr, err := pc.Parse(ParserExpression, c)
			if err != nil {
				return nil, err
			}

			if err := c.Ensure(TokenClosePrint); err != nil {
				return nil, err
			}

			body.Add(NewPrint(tok, expr))

		case TokenOpenStmt:
			if len(stop) > 0 && c.LookAt(1).Is(stop...) {
				return body, nil
			}

			c.Next()

			stmt, err := pc.Statement(c)
			if err != nil {
				return nil, err
			}

			body.Add(stmt)

		default:
			return nil, c.Unexpected(TokenText, TokenOpenPrint, TokenOpenStmt)
		}
	}
}

// closing consumes an opening statement tag and one of the keywords types.
func closing(c *Cursor, types ...TokenType) (Token, error) {
	if err := c.Ensure(TokenOpenStmt); err != nil {
		return Token{}, err
	}

	return c.Expect(types...)
}

// endTag consumes a complete end tag such as {% endfor %}. A trailing name
// after the keyword is allowed when named is set.
func endTag(c *Cursor, t TokenType, named bool) error {
	if _, err := closing(c, t); err != nil {
		return err
	}

	if named && c.Peek().Type.Name() {
		c.Next()
	}

	return c.Ensure(TokenCloseStmt)
}

func expression(pc *ParseContext, c *Cursor) (Node, error) {
	return pc.Parse(ParserExpression, c)
}

func parseIf(pc *ParseContext, c *Cursor) (Node, error) {
	kw := c.Next()
	n := NewIf(kw)

	cond, err := expression(pc, c)
	if err != nil {
		return nil, err
	}

	if err := c.Ensure(TokenCloseStmt); err != nil {
		return nil, err
	}

	for {
		body, err := pc.Body(c, kw, TokenElif, TokenElse, TokenEndIf)
		if err != nil {
			return nil, err
		}

		n.Add(NewBranch(kw, cond, body))

		if kw, err = closing(c, TokenElif, TokenElse, TokenEndIf); err != nil {
			return nil, err
		}

		switch kw.Type {
		case TokenElif:
			if cond, err = expression(pc, c); err != nil {
				return nil, err
			}

			if err := c.Ensure(TokenCloseStmt); err != nil {
				return nil, err
			}

		case TokenElse:
			if err := c.Ensure(TokenCloseStmt); err != nil {
				return nil, err
			}

			body, err := pc.Body(c, kw, TokenEndIf)
			if err != nil {
				return nil, err
			}

			n.Add(NewBranch(kw, nil, body))

			return n, endTag(c, TokenEndIf, false)

		default:
			return n, c.Ensure(TokenCloseStmt)
		}
	}
}

func parseFor(pc *ParseContext, c *Cursor) (Node, error) {
	kw := c.Next()

	first, err := expectName(c)
	if err != nil {
		return nil, err
	}

	names := []string{first.Value}

	if _, ok := c.NextIf(TokenComma); ok {
		second, err := expectName(c)
		if err != nil {
			return nil, err
		}

		names = append(names, second.Value)
	}

	if err := c.Ensure(TokenIn); err != nil {
		return nil, err
	}

	iter, err := expression(pc, c)
	if err != nil {
		return nil, err
	}

	if err := c.Ensure(TokenCloseStmt); err != nil {
		return nil, err
	}

	body, err := pc.Body(c, kw, TokenElse, TokenEndFor)
	if err != nil {
		return nil, err
	}

	end, err := closing(c, TokenElse, TokenEndFor)
	if err != nil {
		return nil, err
	}

	if err := c.Ensure(TokenCloseStmt); err != nil {
		return nil, err
	}

	var empty *Body

	if end.Is(TokenElse) {
		if empty, err = pc.Body(c, end, TokenEndFor); err != nil {
			return nil, err
		}

		if err := endTag(c, TokenEndFor, false); err != nil {
			return nil, err
		}
	}

	return NewFor(kw, names, iter, body, empty), nil
}

func parseSet(pc *ParseContext, c *Cursor) (Node, error) {
	kw := c.Next()

	var names []string

	for {
		name, err := expectName(c)
		if err != nil {
			return nil, err
		}

		names = append(names, name.Value)

		if _, ok := c.NextIf(TokenComma); !ok {
			break
		}
	}

	if _, ok := c.NextIf(TokenAssign); ok {
		value, err := expression(pc, c)
		if err != nil {
			return nil, err
		}

		return NewSet(kw, names, value), c.Ensure(TokenCloseStmt)
	}

	if err := c.Ensure(TokenCloseStmt); err != nil {
		return nil, err
	}

	body, err := pc.Body(c, kw, TokenEndSet)
	if err != nil {
		return nil, err
	}

	return NewSet(kw, names, body), endTag(c, TokenEndSet, false)
}

func parseBlock(pc *ParseContext, c *Cursor) (Node, error) {
	kw := c.Next()

	name, err := expectName(c)
	if err != nil {
		return nil, err
	}

	if err := c.Ensure(TokenCloseStmt); err != nil {
		return nil, err
	}

	body, err := pc.Body(c, kw, TokenEndBlock)
	if err != nil {
		return nil, err
	}

	return NewBlock(kw, name.Value, body), endTag(c, TokenEndBlock, true)
}

func parseExtends(pc *ParseContext, c *Cursor) (Node, error) {
	kw := c.Next()

	path, err := expression(pc, c)
	if err != nil {
		return nil, err
	}

	return NewExtends(kw, path), c.Ensure(TokenCloseStmt)
}

// includeHeader parses: path [ignore missing] [with expr] [only].
func includeHeader(pc *ParseContext, c *Cursor) (path, with Node, only, ignore bool, err error) {
	if path, err = expression(pc, c); err != nil {
		return nil, nil, false, false, err
	}

	if _, ok := c.NextIf(TokenIgnore); ok {
		if err = c.Ensure(TokenMissing); err != nil {
			return nil, nil, false, false, err
		}

		ignore = true
	}

	if _, ok := c.NextIf(TokenWith); ok {
		if with, err = expression(pc, c); err != nil {
			return nil, nil, false, false, err
		}
	}

	_, only = c.NextIf(TokenOnly)

	return path, with, only, ignore, c.Ensure(TokenCloseStmt)
}

func parseInclude(pc *ParseContext, c *Cursor) (Node, error) {
	kw := c.Next()

	path, with, only, ignore, err := includeHeader(pc, c)
	if err != nil {
		return nil, err
	}

	return NewInclude(kw, path, with, only, ignore), nil
}

func parseEmbed(pc *ParseContext, c *Cursor) (Node, error) {
	kw := c.Next()

	path, with, only, ignore, err := includeHeader(pc, c)
	if err != nil {
		return nil, err
	}

	body, err := pc.Body(c, kw, TokenEndEmbed)
	if err != nil {
		return nil, err
	}

	return NewEmbed(kw, path, with, only, ignore, body), endTag(c, TokenEndEmbed, false)
}

func parseMacro(pc *ParseContext, c *Cursor) (Node, error) {
	kw := c.Next()

	name, err := expectName(c)
	if err != nil {
		return nil, err
	}

	if err := c.Ensure(TokenLParen); err != nil {
		return nil, err
	}

	var params []*Param

	for !c.Peek().Is(TokenRParen) {
		pname, err := expectName(c)
		if err != nil {
			return nil, err
		}

		var def Node

		if _, ok := c.NextIf(TokenAssign); ok {
			if def, err = expression(pc, c); err != nil {
				return nil, err
			}
		}

		params = append(params, NewParam(pname, pname.Value, def))

		if _, ok := c.NextIf(TokenComma); !ok {
			break
		}
	}

	if err := c.Ensure(TokenRParen); err != nil {
		return nil, err
	}

	if err := c.Ensure(TokenCloseStmt); err != nil {
		return nil, err
	}

	body, err := pc.Body(c, kw, TokenEndMacro)
	if err != nil {
		return nil, err
	}

	return NewMacro(kw, name.Value, params, body), endTag(c, TokenEndMacro, true)
}

func parseImport(pc *ParseContext, c *Cursor) (Node, error) {
	kw := c.Next()

	path, err := expression(pc, c)
	if err != nil {
		return nil, err
	}

	if err := c.Ensure(TokenAs); err != nil {
		return nil, err
	}

	alias, err := expectName(c)
	if err != nil {
		return nil, err
	}

	return NewImport(kw, path, alias.Value), c.Ensure(TokenCloseStmt)
}

func parseFrom(pc *ParseContext, c *Cursor) (Node, error) {
	kw := c.Next()

	path, err := expression(pc, c)
	if err != nil {
		return nil, err
	}

	if err := c.Ensure(TokenImport); err != nil {
		return nil, err
	}

	var names []UseName

	for {
		name, err := expectName(c)
		if err != nil {
			return nil, err
		}

		use := UseName{Name: name.Value}

		if _, ok := c.NextIf(TokenAs); ok {
			alias, err := expectName(c)
			if err != nil {
				return nil, err
			}

			use.Alias = alias.Value
		}

		names = append(names, use)

		if _, ok := c.NextIf(TokenComma); !ok {
			break
		}
	}

	return NewUse(kw, path, names), c.Ensure(TokenCloseStmt)
}

func parseScope(pc *ParseContext, c *Cursor) (Node, error) {
	kw := c.Next()

	var (
		with Node
		err  error
	)

	if _, ok := c.NextIf(TokenWith); ok {
		if with, err = expression(pc, c); err != nil {
			return nil, err
		}
	}

	if err := c.Ensure(TokenCloseStmt); err != nil {
		return nil, err
	}

	body, err := pc.Body(c, kw, TokenEndScope)
	if err != nil {
		return nil, err
	}

	return NewScope(kw, with, body), endTag(c, TokenEndScope, false)
}

func parseCache(pc *ParseContext, c *Cursor) (Node, error) {
	kw := c.Next()

	key, err := expression(pc, c)
	if err != nil {
		return nil, err
	}

	if err := c.Ensure(TokenCloseStmt); err != nil {
		return nil, err
	}

	body, err := pc.Body(c, kw, TokenEndCache)
	if err != nil {
		return nil, err
	}

	return NewCache(kw, key, body), endTag(c, TokenEndCache, false)
}

func parseDo(pc *ParseContext, c *Cursor) (Node, error) {
	kw := c.Next()

	expr, err := expression(pc, c)
	if err != nil {
		return nil, err
	}

	return NewDo(kw, expr), c.Ensure(TokenCloseStmt)
}
