package lang

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// Format writes n in canonical template syntax. Reparsing the output yields
// a structurally identical tree.
func Format(_ context.Context, w io.Writer, n Node) error {
	var p printer

	p.node(n)

	_, err := io.WriteString(w, p.String())

	return err
}

// FormatString returns n in canonical template syntax.
func FormatString(n Node) string {
	var p printer

	p.node(n)

	return p.String()
}

// FormatExpr returns the canonical source of an expression node.
func FormatExpr(n Node) string {
	var p printer

	p.expr(n)

	return p.String()
}

// FormatJSON writes the tree of n as JSON.
func FormatJSON(_ context.Context, w io.Writer, n Node, indent int) error {
	var (
		data []byte
		err  error
	)

	if indent > 0 {
		data, err = json.MarshalIndent(ToMap(n), "", strings.Repeat(" ", indent))
	} else {
		data, err = json.Marshal(ToMap(n))
	}

	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(data))

	return err
}

// FormatYAML writes the tree of n as YAML.
func FormatYAML(ctx context.Context, w io.Writer, n Node, indent int) error {
	var opts []yaml.EncodeOption
	if indent > 0 {
		opts = append(opts, yaml.Indent(indent))
	} else {
		opts = append(opts, yaml.Flow(true))
	}

	data, err := yaml.MarshalContext(ctx, ToMap(n), opts...)
	if err != nil {
		return err
	}

	_, err = w.Write(data)

	return err
}

// Dump writes an indented outline of the tree, one node per line.
func Dump(w io.Writer, n Node) error {
	var b strings.Builder

	var walk func(n Node, depth int)

	walk = func(n Node, depth int) {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(n.Kind().String())

		if label := describe(n); label != "" {
			b.WriteByte(' ')
			b.WriteString(label)
		}

		b.WriteString(" @")
		b.WriteString(strconv.Itoa(n.Line()))
		b.WriteByte('\n')

		for _, c := range n.Children() {
			walk(c, depth+1)
		}
	}

	walk(n, 0)

	_, err := io.WriteString(w, b.String())

	return err
}

func describe(n Node) string {
	switch n := n.(type) {
	case *Template:
		return strconv.Quote(n.Name)
	case *Text:
		return strconv.Quote(n.Value)
	case *Set:
		return strings.Join(n.Names, ", ")
	case *For:
		return strings.Join(n.Names, ", ")
	case *Block:
		return n.Name
	case *Macro:
		return n.Name
	case *Param:
		return n.Name
	case *Import:
		return "as " + n.Alias
	case *Use:
		names := make([]string, len(n.Names))
		for i, u := range n.Names {
			names[i] = u.Bound()
		}

		return strings.Join(names, ", ")
	case *Literal:
		return literalString(n.Value)
	case *Identifier:
		return n.Name
	case *Property:
		return "." + n.Name
	case *Binary:
		return n.Symbol
	case *Unary:
		return n.Symbol
	case *FunctionCall:
		return n.Name
	case *MethodCall:
		return n.Name
	case *FilterCall:
		return n.Name
	case *TestCall:
		if n.Negated {
			return "not " + n.Name
		}

		return n.Name
	case *ScopedCall:
		return n.Qualified()
	case *KeywordArg:
		return n.Name
	default:
		return ""
	}
}

// ToMap converts the tree of n to nested maps and slices.
func ToMap(n Node) map[string]any {
	m := map[string]any{
		"kind": n.Kind().String(),
		"line": n.Line(),
	}

	switch n := n.(type) {
	case *Template:
		m["name"] = n.Name
	case *Text:
		m["value"] = n.Value
		if n.TrimLeft {
			m["trim_left"] = true
		}

		if n.TrimRight {
			m["trim_right"] = true
		}
	case *Set:
		m["names"] = n.Names
		m["capture"] = n.Capture
	case *For:
		m["names"] = n.Names
	case *Block:
		m["name"] = n.Name
	case *Include:
		m["only"] = n.Only
		m["ignore_missing"] = n.IgnoreMissing
	case *Embed:
		m["only"] = n.Only
		m["ignore_missing"] = n.IgnoreMissing
	case *Macro:
		m["name"] = n.Name
	case *Param:
		m["name"] = n.Name
	case *Import:
		m["alias"] = n.Alias
	case *Use:
		names := make([]map[string]any, len(n.Names))
		for i, u := range n.Names {
			names[i] = map[string]any{"name": u.Name, "alias": u.Bound()}
		}

		m["names"] = names
	case *Literal:
		m["value"] = n.Value
	case *Identifier:
		m["name"] = n.Name
	case *Property:
		m["name"] = n.Name
	case *Binary:
		m["op"] = n.Symbol
	case *Unary:
		m["op"] = n.Symbol
		m["postfix"] = n.Postfix
	case *FunctionCall:
		m["name"] = n.Name
	case *MethodCall:
		m["name"] = n.Name
	case *FilterCall:
		m["name"] = n.Name
	case *TestCall:
		m["name"] = n.Name
		m["negated"] = n.Negated
	case *ScopedCall:
		m["namespace"] = n.Namespace
		m["name"] = n.Name
	case *KeywordArg:
		m["name"] = n.Name
	}

	if n.HasChildren() {
		children := make([]any, len(n.Children()))
		for i, c := range n.Children() {
			children[i] = ToMap(c)
		}

		m["children"] = children
	}

	return m
}

// Binding strengths used to decide where the printer needs parentheses.
const (
	precLambda   = 1
	precTernary  = 2
	precFilter   = 5
	precAtomic   = 100
	precPostfix  = 90
	precFallback = 0
)

var defaultOps = DefaultOperators()

func precedence(n Node) int {
	switch n := n.(type) {
	case *Binary:
		if op, ok := defaultOps.Binary(n.Op); ok {
			return op.Precedence
		}

		return precFallback
	case *Range:
		return PrecRange
	case *TestCall:
		return PrecComparison
	case *Unary:
		if n.Postfix {
			return precPostfix
		}

		if op, ok := defaultOps.Unary(n.Op); ok {
			return op.Precedence
		}

		return precFallback
	case *FilterCall:
		return precFilter
	case *Ternary, *NullCoalesce:
		return precTernary
	case *Lambda:
		return precLambda
	default:
		return precAtomic
	}
}

type printer struct {
	strings.Builder

	trimNext bool
}

func (p *printer) open(delim string) {
	p.WriteString(delim)

	if p.trimNext {
		p.WriteByte(trimMark)
		p.trimNext = false
	}

	p.WriteByte(' ')
}

func (p *printer) stmt(parts ...string) {
	p.open("{%")
	p.WriteString(strings.Join(parts, " "))
	p.WriteString(" %}")
}

func (p *printer) text(t *Text) {
	if t.TrimLeft {
		s := p.String()
		if strings.HasSuffix(s, " %}") || strings.HasSuffix(s, " }}") {
			p.Reset()
			p.WriteString(s[:len(s)-2])
			p.WriteByte(trimMark)
			p.WriteString(s[len(s)-2:])
		}
	}

	p.WriteString(t.Value)
	p.trimNext = t.TrimRight
}

func (p *printer) body(b *Body) {
	if b == nil {
		return
	}

	for _, c := range b.Children() {
		p.node(c)
	}
}

func (p *printer) node(n Node) {
	switch n := n.(type) {
	case *Template:
		for _, c := range n.Children() {
			p.node(c)
		}
	case *Body:
		p.body(n)
	case *Text:
		p.text(n)
	case *Print:
		p.open("{{")
		p.expr(n.Expr())
		p.WriteString(" }}")
	case *Set:
		if n.Capture {
			p.stmt("set", strings.Join(n.Names, ", "))

			body, _ := n.Value().(*Body)
			p.body(body)
			p.stmt("endset")

			return
		}

		p.stmt("set", strings.Join(n.Names, ", "), "=", FormatExpr(n.Value()))
	case *If:
		for i, b := range n.Branches() {
			switch {
			case i == 0:
				p.stmt("if", FormatExpr(b.Cond()))
			case b.Else:
				p.stmt("else")
			default:
				p.stmt("elif", FormatExpr(b.Cond()))
			}

			p.body(b.Body())
		}

		p.stmt("endif")
	case *For:
		p.stmt("for", strings.Join(n.Names, ", "), "in", FormatExpr(n.Iterable()))
		p.body(n.Body())

		if n.HasElse {
			p.stmt("else")
			p.body(n.Else())
		}

		p.stmt("endfor")
	case *Block:
		p.stmt("block", n.Name)
		p.body(n.Body())
		p.stmt("endblock")
	case *Extends:
		p.stmt("extends", FormatExpr(n.Path()))
	case *Include:
		p.stmt(includeParts("include", n.Path(), n.With(), n.Only, n.IgnoreMissing)...)
	case *Embed:
		p.stmt(includeParts("embed", n.Path(), n.With(), n.Only, n.IgnoreMissing)...)
		p.body(n.Body())
		p.stmt("endembed")
	case *Macro:
		p.stmt("macro", n.Name+"("+params(n.Params())+")")
		p.body(n.Body())
		p.stmt("endmacro")
	case *Import:
		p.stmt("import", FormatExpr(n.Path()), "as", n.Alias)
	case *Use:
		names := make([]string, len(n.Names))
		for i, u := range n.Names {
			names[i] = u.Name
			if u.Alias != "" {
				names[i] += " as " + u.Alias
			}
		}

		p.stmt("from", FormatExpr(n.Path()), "import", strings.Join(names, ", "))
	case *Scope:
		if with := n.With(); with != nil {
			p.stmt("scope", "with", FormatExpr(with))
		} else {
			p.stmt("scope")
		}

		p.body(n.Body())
		p.stmt("endscope")
	case *Cache:
		p.stmt("cache", FormatExpr(n.Key()))
		p.body(n.Body())
		p.stmt("endcache")
	case *Do:
		p.stmt("do", FormatExpr(n.Expr()))
	default:
		p.expr(n)
	}
}

func includeParts(kw string, path, with Node, only, ignore bool) []string {
	parts := []string{kw, FormatExpr(path)}

	if ignore {
		parts = append(parts, "ignore", "missing")
	}

	if with != nil {
		parts = append(parts, "with", FormatExpr(with))
	}

	if only {
		parts = append(parts, "only")
	}

	return parts
}

func params(ps []*Param) string {
	out := make([]string, len(ps))

	for i, p := range ps {
		out[i] = p.Name
		if def := p.Default(); def != nil {
			out[i] += "=" + FormatExpr(def)
		}
	}

	return strings.Join(out, ", ")
}

// operand prints n, parenthesized when it binds looser than min.
func (p *printer) operand(n Node, minPrec int) {
	if precedence(n) < minPrec {
		p.WriteByte('(')
		p.expr(n)
		p.WriteByte(')')

		return
	}

	p.expr(n)
}

func (p *printer) list(nodes []Node) {
	for i, n := range nodes {
		if i > 0 {
			p.WriteString(", ")
		}

		p.expr(n)
	}
}

func (p *printer) call(name string, args []Node) {
	p.WriteString(name)
	p.WriteByte('(')
	p.list(args)
	p.WriteByte(')')
}

func (p *printer) expr(n Node) {
	switch n := n.(type) {
	case *Literal:
		p.WriteString(literalString(n.Value))
	case *Identifier:
		p.WriteString(n.Name)
	case *Property:
		p.operand(n.Object(), precPostfix)
		p.WriteByte('.')
		p.WriteString(n.Name)
	case *Index:
		p.operand(n.Object(), precPostfix)
		p.WriteByte('[')
		p.expr(n.Key())
		p.WriteByte(']')
	case *Binary:
		prec := precedence(n)
		left, right := prec, prec+1

		if op, ok := defaultOps.Binary(n.Op); ok && op.Assoc == AssocRight {
			left, right = prec+1, prec
		}

		p.operand(n.Left(), left)
		p.WriteByte(' ')
		p.WriteString(n.Symbol)
		p.WriteByte(' ')
		p.operand(n.Right(), right)
	case *Unary:
		if n.Postfix {
			p.operand(n.Operand(), precAtomic)
			p.WriteString(n.Symbol)

			return
		}

		p.WriteString(n.Symbol)

		if n.Op == TokenNot {
			p.WriteByte(' ')
		}

		p.operand(n.Operand(), precedence(n)+1)
	case *Array:
		p.WriteByte('[')
		p.list(n.Elements())
		p.WriteByte(']')
	case *Map:
		p.WriteByte('{')

		for i, pair := range n.Pairs() {
			if i > 0 {
				p.WriteString(", ")
			}

			switch key := pair.Key().(type) {
			case *Literal:
				if isBareKey(key.Value) {
					p.WriteString(key.Value.(string))
				} else {
					p.expr(key)
				}
			default:
				// A bare name would read back as a string key.
				p.WriteByte('(')
				p.expr(key)
				p.WriteByte(')')
			}

			p.WriteString(": ")
			p.expr(pair.Value())
		}

		p.WriteByte('}')
	case *Range:
		p.operand(n.From(), PrecRange)
		p.WriteString("..")
		p.operand(n.To(), PrecRange+1)
	case *Ternary:
		p.operand(n.Cond(), precFilter)
		p.WriteString(" ? ")
		p.expr(n.Then())
		p.WriteString(" : ")
		p.expr(n.Else())
	case *NullCoalesce:
		p.operand(n.Value(), precFilter)
		p.WriteString(" ?? ")
		p.expr(n.Fallback())
	case *FunctionCall:
		p.call(n.Name, n.Args())
	case *MethodCall:
		p.operand(n.Receiver(), precPostfix)
		p.WriteByte('.')
		p.call(n.Name, n.Args())
	case *FilterCall:
		p.operand(n.Operand(), precFilter)
		p.WriteString(" | ")

		if args := n.Args(); len(args) > 0 {
			p.call(n.Name, args)
		} else {
			p.WriteString(n.Name)
		}
	case *TestCall:
		p.operand(n.Operand(), PrecComparison)
		p.WriteString(" is ")

		if n.Negated {
			p.WriteString("not ")
		}

		if args := n.Args(); len(args) > 0 {
			p.call(n.Name, args)
		} else {
			p.WriteString(n.Name)
		}
	case *ScopedCall:
		p.call(n.Qualified(), n.Args())
	case *KeywordArg:
		p.WriteString(n.Name)
		p.WriteByte('=')
		p.expr(n.Value())
	case *Lambda:
		names := make([]string, 0, len(n.Params()))
		for _, param := range n.Params() {
			names = append(names, param.Name)
		}

		p.WriteString("(" + strings.Join(names, ", ") + ") => ")
		p.expr(n.Body())
	case *ParentCall:
		p.WriteString("parent()")
	case nil:
	default:
		p.node(n)
	}
}

func isBareKey(v any) bool {
	s, ok := v.(string)
	if !ok || s == "" {
		return false
	}

	for i, r := range s {
		if !isIdentPart(r) || (i == 0 && !isIdentStart(r)) {
			return false
		}
	}

	t, known := spellings[s]

	return !known || t.Name()
}

func literalString(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return strconv.Quote(strconv.FormatFloat(v, 'g', -1, 64))
		}

		s := strconv.FormatFloat(v, 'g', -1, 64)
		if !strings.ContainsAny(s, ".e") {
			s += ".0"
		}

		return s
	case string:
		return quote(v)
	default:
		return quote(fmt.Sprint(v))
	}
}

// quote writes s as a double-quoted literal that [Unquote] decodes back.
func quote(s string) string {
	var b strings.Builder

	b.Grow(len(s) + 2)
	b.WriteByte('"')

	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case 0:
			b.WriteString(`\0`)
		default:
			b.WriteRune(r)
		}
	}

	b.WriteByte('"')

	return b.String()
}
