package lang

// NodeKind identifies the concrete type of a [Node].
type NodeKind uint8

const (
	NodeTemplate NodeKind = iota
	NodeBody
	NodeText
	NodePrint
	NodeSet
	NodeIf
	NodeBranch
	NodeFor
	NodeBlock
	NodeExtends
	NodeInclude
	NodeEmbed
	NodeMacro
	NodeParam
	NodeImport
	NodeUse
	NodeScope
	NodeCache
	NodeDo
	NodeLiteral
	NodeIdentifier
	NodeProperty
	NodeIndex
	NodeBinary
	NodeUnary
	NodeArray
	NodeMap
	NodePair
	NodeRange
	NodeTernary
	NodeNullCoalesce
	NodeFunctionCall
	NodeMethodCall
	NodeFilterCall
	NodeTestCall
	NodeScopedCall
	NodeKeywordArg
	NodeLambda
	NodeParentCall
)

var nodeKindName = [...]string{
	NodeTemplate:     "Template",
	NodeBody:         "Body",
	NodeText:         "Text",
	NodePrint:        "Print",
	NodeSet:          "Set",
	NodeIf:           "If",
	NodeBranch:       "Branch",
	NodeFor:          "For",
	NodeBlock:        "Block",
	NodeExtends:      "Extends",
	NodeInclude:      "Include",
	NodeEmbed:        "Embed",
	NodeMacro:        "Macro",
	NodeParam:        "Param",
	NodeImport:       "Import",
	NodeUse:          "Use",
	NodeScope:        "Scope",
	NodeCache:        "Cache",
	NodeDo:           "Do",
	NodeLiteral:      "Literal",
	NodeIdentifier:   "Identifier",
	NodeProperty:     "Property",
	NodeIndex:        "Index",
	NodeBinary:       "Binary",
	NodeUnary:        "Unary",
	NodeArray:        "Array",
	NodeMap:          "Map",
	NodePair:         "Pair",
	NodeRange:        "Range",
	NodeTernary:      "Ternary",
	NodeNullCoalesce: "NullCoalesce",
	NodeFunctionCall: "FunctionCall",
	NodeMethodCall:   "MethodCall",
	NodeFilterCall:   "FilterCall",
	NodeTestCall:     "TestCall",
	NodeScopedCall:   "ScopedCall",
	NodeKeywordArg:   "KeywordArg",
	NodeLambda:       "Lambda",
	NodeParentCall:   "ParentCall",
}

func (k NodeKind) String() string {
	if int(k) < len(nodeKindName) {
		return nodeKindName[k]
	}

	return "Node"
}

// Node is an element of the syntax tree. Every node keeps its children in
// insertion order and a reference to its parent. The parent reference does
// not own the parent.
//
// The set of node types is closed; evaluators switch on the concrete type.
type Node interface {
	Kind() NodeKind
	Offset() int
	Line() int
	Parent() Node
	HasParent() bool
	Children() []Node
	HasChildren() bool
	Add(children ...Node)
	Replace(i int, child Node)

	base() *node
}

type node struct {
	self     Node
	parent   Node
	children []Node
	offset   int
	line     int
}

func (n *node) init(self Node, tok Token, children ...Node) {
	n.self = self
	n.offset = tok.Offset
	n.line = tok.Line
	n.Add(children...)
}

func (n *node) base() *node { return n }

// Offset returns the byte offset of the token that introduced the node.
func (n *node) Offset() int { return n.offset }

// Line returns the 1-based line of the token that introduced the node.
func (n *node) Line() int { return n.line }

// Parent returns the enclosing node, or nil for a root.
func (n *node) Parent() Node { return n.parent }

// HasParent reports whether the node is attached to a tree.
func (n *node) HasParent() bool { return n.parent != nil }

// Children returns the child nodes. The slice must not be modified.
func (n *node) Children() []Node { return n.children }

// HasChildren reports whether the node has any children.
func (n *node) HasChildren() bool { return len(n.children) > 0 }

// Add appends children and sets their parent. Nil children are skipped.
func (n *node) Add(children ...Node) {
	for _, c := range children {
		if c == nil {
			continue
		}

		c.base().parent = n.self
		n.children = append(n.children, c)
	}
}

// Replace substitutes the i-th child.
func (n *node) Replace(i int, child Node) {
	if i < 0 || i >= len(n.children) || child == nil {
		return
	}

	child.base().parent = n.self
	n.children[i] = child
}

func (n *node) child(i int) Node {
	if i < 0 {
		i += len(n.children)
	}

	if i < 0 || i >= len(n.children) {
		return nil
	}

	return n.children[i]
}

func (n *node) body() *Body {
	b, _ := n.child(-1).(*Body)

	return b
}

func childrenOf[T Node](nodes []Node) []T {
	out := make([]T, 0, len(nodes))

	for _, c := range nodes {
		if t, ok := c.(T); ok {
			out = append(out, t)
		}
	}

	return out
}

// Template is the root of a parsed template.
type Template struct {
	node

	Name   string
	Source *Source
}

// NewTemplate returns an empty template root.
func NewTemplate(name string, src *Source) *Template {
	t := &Template{Name: name, Source: src}
	t.init(t, Token{Line: 1})

	return t
}

func (*Template) Kind() NodeKind { return NodeTemplate }

// Body is an ordered sequence of statements.
type Body struct{ node }

func NewBody(tok Token, stmts ...Node) *Body {
	b := &Body{}
	b.init(b, tok, stmts...)

	return b
}

func (*Body) Kind() NodeKind { return NodeBody }

// Text is literal template output. The trim flags record whitespace
// control markers on the neighboring tags.
type Text struct {
	node

	Value     string
	TrimLeft  bool
	TrimRight bool
}

func NewText(tok Token, value string) *Text {
	t := &Text{Value: value}
	t.init(t, tok)

	return t
}

func (*Text) Kind() NodeKind { return NodeText }

// Print writes the value of its expression.
type Print struct{ node }

func NewPrint(tok Token, expr Node) *Print {
	p := &Print{}
	p.init(p, tok, expr)

	return p
}

func (*Print) Kind() NodeKind { return NodePrint }
func (p *Print) Expr() Node   { return p.child(0) }

// Set assigns one or more names. With Capture set, the value is a [Body]
// whose rendered output is assigned.
type Set struct {
	node

	Names   []string
	Capture bool
}

func NewSet(tok Token, names []string, value Node) *Set {
	_, capture := value.(*Body)

	s := &Set{Names: names, Capture: capture}
	s.init(s, tok, value)

	return s
}

func (*Set) Kind() NodeKind { return NodeSet }
func (s *Set) Value() Node  { return s.child(0) }

// If holds its branches in source order.
type If struct{ node }

func NewIf(tok Token, branches ...*Branch) *If {
	n := &If{}
	n.init(n, tok)

	for _, b := range branches {
		n.Add(b)
	}

	return n
}

func (*If) Kind() NodeKind        { return NodeIf }
func (n *If) Branches() []*Branch { return childrenOf[*Branch](n.children) }

// Branch is one arm of an [If]. An else arm has no condition.
type Branch struct {
	node

	Else bool
}

func NewBranch(tok Token, cond Node, body *Body) *Branch {
	b := &Branch{Else: cond == nil}
	b.init(b, tok, cond, body)

	return b
}

func (*Branch) Kind() NodeKind { return NodeBranch }
func (b *Branch) Body() *Body  { return b.body() }

func (b *Branch) Cond() Node {
	if b.Else {
		return nil
	}

	return b.child(0)
}

// For iterates a collection, binding one name per element or two names
// per key/value pair. The optional else body runs when nothing was
// iterated.
type For struct {
	node

	Names   []string
	HasElse bool
}

func NewFor(tok Token, names []string, iterable Node, body, empty *Body) *For {
	f := &For{Names: names, HasElse: empty != nil}
	f.init(f, tok, iterable, body)

	if empty != nil {
		f.Add(empty)
	}

	return f
}

func (*For) Kind() NodeKind   { return NodeFor }
func (f *For) Iterable() Node { return f.child(0) }

func (f *For) Body() *Body {
	b, _ := f.child(1).(*Body)

	return b
}

func (f *For) Else() *Body {
	if !f.HasElse {
		return nil
	}

	return f.body()
}

// Block is a named, overridable region.
type Block struct {
	node

	Name string
}

func NewBlock(tok Token, name string, body *Body) *Block {
	b := &Block{Name: name}
	b.init(b, tok, body)

	return b
}

func (*Block) Kind() NodeKind { return NodeBlock }
func (b *Block) Body() *Body  { return b.body() }

// Extends names the parent layout of the template.
type Extends struct{ node }

func NewExtends(tok Token, path Node) *Extends {
	e := &Extends{}
	e.init(e, tok, path)

	return e
}

func (*Extends) Kind() NodeKind { return NodeExtends }
func (e *Extends) Path() Node   { return e.child(0) }

// Include renders another template in place.
type Include struct {
	node

	Only          bool
	IgnoreMissing bool
	HasWith       bool
}

func NewInclude(tok Token, path, with Node, only, ignoreMissing bool) *Include {
	n := &Include{Only: only, IgnoreMissing: ignoreMissing, HasWith: with != nil}
	n.init(n, tok, path, with)

	return n
}

func (*Include) Kind() NodeKind { return NodeInclude }
func (n *Include) Path() Node   { return n.child(0) }

func (n *Include) With() Node {
	if !n.HasWith {
		return nil
	}

	return n.child(1)
}

// Embed includes another template while overriding its blocks.
type Embed struct {
	node

	Only          bool
	IgnoreMissing bool
	HasWith       bool
}

func NewEmbed(tok Token, path, with Node, only, ignoreMissing bool, body *Body) *Embed {
	n := &Embed{Only: only, IgnoreMissing: ignoreMissing, HasWith: with != nil}
	n.init(n, tok, path, with, body)

	return n
}

func (*Embed) Kind() NodeKind { return NodeEmbed }
func (n *Embed) Path() Node   { return n.child(0) }
func (n *Embed) Body() *Body  { return n.body() }

func (n *Embed) With() Node {
	if !n.HasWith {
		return nil
	}

	return n.child(1)
}

// Blocks returns the block overrides declared in the embed body.
func (n *Embed) Blocks() []*Block {
	if b := n.Body(); b != nil {
		return childrenOf[*Block](b.children)
	}

	return nil
}

// Macro declares a reusable template fragment.
type Macro struct {
	node

	Name string
}

func NewMacro(tok Token, name string, params []*Param, body *Body) *Macro {
	m := &Macro{Name: name}
	m.init(m, tok)

	for _, p := range params {
		m.Add(p)
	}

	m.Add(body)

	return m
}

func (*Macro) Kind() NodeKind     { return NodeMacro }
func (m *Macro) Params() []*Param { return childrenOf[*Param](m.children) }
func (m *Macro) Body() *Body      { return m.body() }

// Param is a macro or lambda parameter with an optional default.
type Param struct {
	node

	Name string
}

func NewParam(tok Token, name string, def Node) *Param {
	p := &Param{Name: name}
	p.init(p, tok, def)

	return p
}

func (*Param) Kind() NodeKind  { return NodeParam }
func (p *Param) Default() Node { return p.child(0) }

// Import binds the macros of another template to a namespace.
type Import struct {
	node

	Alias string
}

func NewImport(tok Token, path Node, alias string) *Import {
	n := &Import{Alias: alias}
	n.init(n, tok, path)

	return n
}

func (*Import) Kind() NodeKind { return NodeImport }
func (n *Import) Path() Node   { return n.child(0) }

// UseName is one imported symbol of a [Use].
type UseName struct {
	Name  string
	Alias string
}

// Bound returns the name the symbol is bound to.
func (u UseName) Bound() string {
	if u.Alias != "" {
		return u.Alias
	}

	return u.Name
}

// Use imports selected macros of another template into the current scope.
type Use struct {
	node

	Names []UseName
}

func NewUse(tok Token, path Node, names []UseName) *Use {
	n := &Use{Names: names}
	n.init(n, tok, path)

	return n
}

func (*Use) Kind() NodeKind { return NodeUse }
func (n *Use) Path() Node   { return n.child(0) }

// Scope renders its body in a fresh variable scope.
type Scope struct {
	node

	HasWith bool
}

func NewScope(tok Token, with Node, body *Body) *Scope {
	s := &Scope{HasWith: with != nil}
	s.init(s, tok, with, body)

	return s
}

func (*Scope) Kind() NodeKind { return NodeScope }
func (s *Scope) Body() *Body  { return s.body() }

func (s *Scope) With() Node {
	if !s.HasWith {
		return nil
	}

	return s.child(0)
}

// Cache memoizes the output of its body per key within one render.
type Cache struct{ node }

func NewCache(tok Token, key Node, body *Body) *Cache {
	c := &Cache{}
	c.init(c, tok, key, body)

	return c
}

func (*Cache) Kind() NodeKind { return NodeCache }
func (c *Cache) Key() Node    { return c.child(0) }
func (c *Cache) Body() *Body  { return c.body() }

// Do evaluates an expression for its side effects.
type Do struct{ node }

func NewDo(tok Token, expr Node) *Do {
	d := &Do{}
	d.init(d, tok, expr)

	return d
}

func (*Do) Kind() NodeKind { return NodeDo }
func (d *Do) Expr() Node   { return d.child(0) }

// Literal is a constant: nil, bool, int64, float64 or string.
type Literal struct {
	node

	Value any
}

func NewLiteral(tok Token, value any) *Literal {
	l := &Literal{Value: value}
	l.init(l, tok)

	return l
}

func (*Literal) Kind() NodeKind { return NodeLiteral }

// Identifier references a variable.
type Identifier struct {
	node

	Name string
}

func NewIdentifier(tok Token, name string) *Identifier {
	i := &Identifier{Name: name}
	i.init(i, tok)

	return i
}

func (*Identifier) Kind() NodeKind { return NodeIdentifier }

// Property accesses a named member of an object.
type Property struct {
	node

	Name string
}

func NewProperty(tok Token, object Node, name string) *Property {
	p := &Property{Name: name}
	p.init(p, tok, object)

	return p
}

func (*Property) Kind() NodeKind { return NodeProperty }
func (p *Property) Object() Node { return p.child(0) }

// Index accesses an element by computed key.
type Index struct{ node }

func NewIndex(tok Token, object, key Node) *Index {
	i := &Index{}
	i.init(i, tok, object, key)

	return i
}

func (*Index) Kind() NodeKind { return NodeIndex }
func (i *Index) Object() Node { return i.child(0) }
func (i *Index) Key() Node    { return i.child(1) }

// Binary applies an infix operator.
type Binary struct {
	node

	Op     TokenType
	Symbol string
}

func NewBinary(tok Token, op TokenType, symbol string, left, right Node) *Binary {
	b := &Binary{Op: op, Symbol: symbol}
	b.init(b, tok, left, right)

	return b
}

func (*Binary) Kind() NodeKind { return NodeBinary }
func (b *Binary) Left() Node   { return b.child(0) }
func (b *Binary) Right() Node  { return b.child(1) }

// Unary applies a prefix or postfix operator.
type Unary struct {
	node

	Op      TokenType
	Symbol  string
	Postfix bool
}

func NewUnary(tok Token, op TokenType, symbol string, postfix bool, operand Node) *Unary {
	u := &Unary{Op: op, Symbol: symbol, Postfix: postfix}
	u.init(u, tok, operand)

	return u
}

func (*Unary) Kind() NodeKind  { return NodeUnary }
func (u *Unary) Operand() Node { return u.child(0) }

// Array is a list literal.
type Array struct{ node }

func NewArray(tok Token, elems ...Node) *Array {
	a := &Array{}
	a.init(a, tok, elems...)

	return a
}

func (*Array) Kind() NodeKind     { return NodeArray }
func (a *Array) Elements() []Node { return a.children }

// Map is a key/value literal.
type Map struct{ node }

func NewMap(tok Token, pairs ...*Pair) *Map {
	m := &Map{}
	m.init(m, tok)

	for _, p := range pairs {
		m.Add(p)
	}

	return m
}

func (*Map) Kind() NodeKind   { return NodeMap }
func (m *Map) Pairs() []*Pair { return childrenOf[*Pair](m.children) }

// Pair is one entry of a [Map].
type Pair struct{ node }

func NewPair(tok Token, key, value Node) *Pair {
	p := &Pair{}
	p.init(p, tok, key, value)

	return p
}

func (*Pair) Kind() NodeKind { return NodePair }
func (p *Pair) Key() Node    { return p.child(0) }
func (p *Pair) Value() Node  { return p.child(1) }

// Range is an inclusive integer range. It descends when From > To.
type Range struct{ node }

func NewRange(tok Token, from, to Node) *Range {
	r := &Range{}
	r.init(r, tok, from, to)

	return r
}

func (*Range) Kind() NodeKind { return NodeRange }
func (r *Range) From() Node   { return r.child(0) }
func (r *Range) To() Node     { return r.child(1) }

// Ternary selects Then or Else by Cond.
type Ternary struct{ node }

func NewTernary(tok Token, cond, then, els Node) *Ternary {
	t := &Ternary{}
	t.init(t, tok, cond, then, els)

	return t
}

func (*Ternary) Kind() NodeKind { return NodeTernary }
func (t *Ternary) Cond() Node   { return t.child(0) }
func (t *Ternary) Then() Node   { return t.child(1) }
func (t *Ternary) Else() Node   { return t.child(2) }

// NullCoalesce yields Value unless it is null or undefined.
type NullCoalesce struct{ node }

func NewNullCoalesce(tok Token, value, fallback Node) *NullCoalesce {
	n := &NullCoalesce{}
	n.init(n, tok, value, fallback)

	return n
}

func (*NullCoalesce) Kind() NodeKind   { return NodeNullCoalesce }
func (n *NullCoalesce) Value() Node    { return n.child(0) }
func (n *NullCoalesce) Fallback() Node { return n.child(1) }

// FunctionCall invokes a registered function or a callable variable.
type FunctionCall struct {
	node

	Name string
}

func NewFunctionCall(tok Token, name string, args ...Node) *FunctionCall {
	f := &FunctionCall{Name: name}
	f.init(f, tok, args...)

	return f
}

func (*FunctionCall) Kind() NodeKind { return NodeFunctionCall }
func (f *FunctionCall) Args() []Node { return f.children }

// MethodCall invokes a member of an evaluated receiver.
type MethodCall struct {
	node

	Name string
}

func NewMethodCall(tok Token, receiver Node, name string, args ...Node) *MethodCall {
	m := &MethodCall{Name: name}
	m.init(m, tok, receiver)
	m.Add(args...)

	return m
}

func (*MethodCall) Kind() NodeKind   { return NodeMethodCall }
func (m *MethodCall) Receiver() Node { return m.child(0) }
func (m *MethodCall) Args() []Node   { return m.children[1:] }

// FilterCall pipes Operand through a registered filter.
type FilterCall struct {
	node

	Name string
}

func NewFilterCall(tok Token, name string, operand Node, args ...Node) *FilterCall {
	f := &FilterCall{Name: name}
	f.init(f, tok, operand)
	f.Add(args...)

	return f
}

func (*FilterCall) Kind() NodeKind  { return NodeFilterCall }
func (f *FilterCall) Operand() Node { return f.child(0) }
func (f *FilterCall) Args() []Node  { return f.children[1:] }

// TestCall applies a registered test to Operand.
type TestCall struct {
	node

	Name    string
	Negated bool
}

func NewTestCall(tok Token, name string, negated bool, operand Node, args ...Node) *TestCall {
	t := &TestCall{Name: name, Negated: negated}
	t.init(t, tok, operand)
	t.Add(args...)

	return t
}

func (*TestCall) Kind() NodeKind  { return NodeTestCall }
func (t *TestCall) Operand() Node { return t.child(0) }
func (t *TestCall) Args() []Node  { return t.children[1:] }

// ScopedCall invokes a namespaced function such as path.join.
type ScopedCall struct {
	node

	Namespace string
	Name      string
}

func NewScopedCall(tok Token, namespace, name string, args ...Node) *ScopedCall {
	s := &ScopedCall{Namespace: namespace, Name: name}
	s.init(s, tok, args...)

	return s
}

func (*ScopedCall) Kind() NodeKind { return NodeScopedCall }
func (s *ScopedCall) Args() []Node { return s.children }

// Qualified returns "namespace.name".
func (s *ScopedCall) Qualified() string { return s.Namespace + "." + s.Name }

// KeywordArg is a named call argument.
type KeywordArg struct {
	node

	Name string
}

func NewKeywordArg(tok Token, name string, value Node) *KeywordArg {
	k := &KeywordArg{Name: name}
	k.init(k, tok, value)

	return k
}

func (*KeywordArg) Kind() NodeKind { return NodeKeywordArg }
func (k *KeywordArg) Value() Node  { return k.child(0) }

// Lambda is an anonymous single-expression function.
type Lambda struct{ node }

func NewLambda(tok Token, params []*Param, body Node) *Lambda {
	l := &Lambda{}
	l.init(l, tok)

	for _, p := range params {
		l.Add(p)
	}

	l.Add(body)

	return l
}

func (*Lambda) Kind() NodeKind     { return NodeLambda }
func (l *Lambda) Params() []*Param { return childrenOf[*Param](l.children) }
func (l *Lambda) Body() Node       { return l.child(-1) }

// ParentCall renders the overridden block of the parent layout.
type ParentCall struct{ node }

func NewParentCall(tok Token) *ParentCall {
	p := &ParentCall{}
	p.init(p, tok)

	return p
}

func (*ParentCall) Kind() NodeKind { return NodeParentCall }
