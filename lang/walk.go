package lang

import "slices"

// Visitor is applied to nodes by [Execute].
type Visitor interface {
	// Visit is called for each node before its children. Returning false
	// skips the children.
	Visit(n Node) bool
}

// VisitorFunc adapts a function to [Visitor].
type VisitorFunc func(n Node) bool

// Visit calls f.
func (f VisitorFunc) Visit(n Node) bool { return f(n) }

// Execute walks the tree rooted at n depth-first in pre-order.
func Execute(n Node, v Visitor) {
	if n == nil || !v.Visit(n) {
		return
	}

	for _, c := range n.Children() {
		Execute(c, v)
	}
}

// Find returns every node under root, root included, of type T.
func Find[T Node](root Node) []T {
	var out []T

	Execute(root, VisitorFunc(func(n Node) bool {
		if t, ok := n.(T); ok {
			out = append(out, t)
		}

		return true
	}))

	return out
}

// Ancestor returns the closest enclosing node of type T.
func Ancestor[T Node](n Node) (T, bool) {
	var zero T

	if n == nil {
		return zero, false
	}

	for p := n.Parent(); p != nil; p = p.Parent() {
		if t, ok := p.(T); ok {
			return t, true
		}
	}

	return zero, false
}

// Clone returns a deep copy of the tree rooted at n. The copy is detached:
// its root has no parent.
func Clone[T Node](n T) T {
	c, _ := clone(n).(T)

	return c
}

func clone(n Node) Node {
	if n == nil {
		return nil
	}

	var (
		out  Node
		orig = n.base()
	)

	switch n := n.(type) {
	case *Template:
		c := *n
		out = &c
	case *Body:
		c := *n
		out = &c
	case *Text:
		c := *n
		out = &c
	case *Print:
		c := *n
		out = &c
	case *Set:
		c := *n
		c.Names = slices.Clone(n.Names)
		out = &c
	case *If:
		c := *n
		out = &c
	case *Branch:
		c := *n
		out = &c
	case *For:
		c := *n
		c.Names = slices.Clone(n.Names)
		out = &c
	case *Block:
		c := *n
		out = &c
	case *Extends:
		c := *n
		out = &c
	case *Include:
		c := *n
		out = &c
	case *Embed:
		c := *n
		out = &c
	case *Macro:
		c := *n
		out = &c
	case *Param:
		c := *n
		out = &c
	case *Import:
		c := *n
		out = &c
	case *Use:
		c := *n
		c.Names = slices.Clone(n.Names)
		out = &c
	case *Scope:
		c := *n
		out = &c
	case *Cache:
		c := *n
		out = &c
	case *Do:
		c := *n
		out = &c
	case *Literal:
		c := *n
		out = &c
	case *Identifier:
		c := *n
		out = &c
	case *Property:
		c := *n
		out = &c
	case *Index:
		c := *n
		out = &c
	case *Binary:
		c := *n
		out = &c
	case *Unary:
		c := *n
		out = &c
	case *Array:
		c := *n
		out = &c
	case *Map:
		c := *n
		out = &c
	case *Pair:
		c := *n
		out = &c
	case *Range:
		c := *n
		out = &c
	case *Ternary:
		c := *n
		out = &c
	case *NullCoalesce:
		c := *n
		out = &c
	case *FunctionCall:
		c := *n
		out = &c
	case *MethodCall:
		c := *n
		out = &c
	case *FilterCall:
		c := *n
		out = &c
	case *TestCall:
		c := *n
		out = &c
	case *ScopedCall:
		c := *n
		out = &c
	case *KeywordArg:
		c := *n
		out = &c
	case *Lambda:
		c := *n
		out = &c
	case *ParentCall:
		c := *n
		out = &c
	default:
		return n
	}

	b := out.base()
	b.self = out
	b.parent = nil
	b.children = nil

	for _, child := range orig.children {
		b.Add(clone(child))
	}

	return out
}
