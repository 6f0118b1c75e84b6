package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/ihontarenko/jmouse-sub007/lang"
)

// Transformer rewrites a template before it is cached. The tree passed to
// Transform is private to the call and may be modified in place.
type Transformer interface {
	Order() int
	Transform(ctx context.Context, t *lang.Template, ec *Context) (*lang.Template, error)
}

// TransformFunc is the signature of [NewTransformer] functions.
type TransformFunc func(ctx context.Context, t *lang.Template, ec *Context) (*lang.Template, error)

type funcTransformer struct {
	name  string
	order int
	fn    TransformFunc
}

// NewTransformer returns a transformer named name that calls fn.
func NewTransformer(name string, order int, fn TransformFunc) Transformer {
	return funcTransformer{name: name, order: order, fn: fn}
}

func (t funcTransformer) Order() int     { return t.order }
func (t funcTransformer) String() string { return t.name }

func (t funcTransformer) Transform(ctx context.Context, tmpl *lang.Template, ec *Context) (*lang.Template, error) {
	return t.fn(ctx, tmpl, ec)
}

func transformerName(t Transformer) string {
	if s, ok := t.(fmt.Stringer); ok {
		return s.String()
	}

	return fmt.Sprintf("%T", t)
}

// Orders of the built-in transformers.
const (
	OrderTrimWhitespace = 10
	OrderFoldConstants  = 20
)

// DefaultTransformers returns the built-in chain.
func DefaultTransformers() []Transformer {
	return []Transformer{TrimWhitespace{}, FoldConstants{}}
}

// TrimWhitespace removes the whitespace next to tags written with a
// trim marker, as in "{%- if x -%}".
type TrimWhitespace struct{}

func (TrimWhitespace) Order() int     { return OrderTrimWhitespace }
func (TrimWhitespace) String() string { return "trim-whitespace" }

func (TrimWhitespace) Transform(_ context.Context, t *lang.Template, _ *Context) (*lang.Template, error) {
	const space = " \t\r\n"

	for _, text := range lang.Find[*lang.Text](t) {
		if text.TrimLeft {
			text.Value = strings.TrimLeft(text.Value, space)
		}

		if text.TrimRight {
			text.Value = strings.TrimRight(text.Value, space)
		}
	}

	return t, nil
}

// FoldConstants replaces operators whose operands are all literals with
// the literal result. Operators that fail or yield a non-scalar value are
// left for evaluation.
type FoldConstants struct{}

func (FoldConstants) Order() int     { return OrderFoldConstants }
func (FoldConstants) String() string { return "fold-constants" }

func (FoldConstants) Transform(ctx context.Context, t *lang.Template, ec *Context) (*lang.Template, error) {
	env := &environment{}
	if ec != nil {
		env = ec.env
	}

	fc := &Context{ctx: ctx, env: env, scopes: []map[string]any{{}}}

	fold(fc, t)

	return t, nil
}

func fold(fc *Context, n lang.Node) {
	for i, c := range n.Children() {
		fold(fc, c)

		if lit, ok := foldNode(fc, c); ok {
			n.Replace(i, lit)
		}
	}
}

func foldNode(fc *Context, n lang.Node) (*lang.Literal, bool) {
	switch n := n.(type) {
	case *lang.Binary:
		if n.Op == lang.TokenRange || !allLiterals(n) {
			return nil, false
		}
	case *lang.Unary:
		if n.Op == lang.TokenIncrement || n.Op == lang.TokenDecrement || !allLiterals(n) {
			return nil, false
		}
	default:
		return nil, false
	}

	v, err := fc.eval(n)
	if err != nil {
		return nil, false
	}

	switch v.(type) {
	case nil, bool, int64, float64, string:
		return lang.NewLiteral(lang.Token{Offset: n.Offset(), Line: n.Line()}, v), true
	default:
		return nil, false
	}
}

func allLiterals(n lang.Node) bool {
	for _, c := range n.Children() {
		if _, ok := c.(*lang.Literal); !ok {
			return false
		}
	}

	return true
}
