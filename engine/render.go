package engine

import (
	"errors"
	"fmt"
	"html"
	"log/slog"
	"maps"
	"slices"

	"github.com/zeebo/xxh3"

	"github.com/ihontarenko/jmouse-sub007/lang"
)

// renderTemplate renders t into parent. A template that extends a layout
// registers its blocks and renders the layout instead.
func (ec *Context) renderTemplate(t *lang.Template, b Builder, parent any) error {
	for _, n := range t.Children() {
		if ext, ok := n.(*lang.Extends); ok {
			return ec.renderLayout(t, ext, b, parent)
		}
	}

	return ec.renderNodes(t.Children(), b, parent)
}

func (ec *Context) renderLayout(t *lang.Template, ext *lang.Extends, b Builder, parent any) error {
	ec.blocks.register(t.Name, collectBlocks(t))

	// Outside of blocks only definitions take effect.
	for _, n := range t.Children() {
		switch n.(type) {
		case *lang.Set, *lang.Macro, *lang.Import, *lang.Use, *lang.Do:
			if err := ec.renderNode(n, b, parent); err != nil {
				return err
			}
		}
	}

	name, err := ec.templateName(ext.Path())
	if err != nil {
		return err
	}

	sub, err := ec.enter(name)
	if err != nil {
		return evalError(ext, err)
	}

	layout, err := sub.resolve(name)
	if err != nil {
		return evalError(ext, err)
	}

	return sub.renderTemplate(layout, b, parent)
}

// collectBlocks returns the blocks of t, including nested ones, but not the
// overrides inside embed statements.
func collectBlocks(t *lang.Template) []*lang.Block {
	var out []*lang.Block

	lang.Execute(t, lang.VisitorFunc(func(n lang.Node) bool {
		switch n := n.(type) {
		case *lang.Embed:
			return false
		case *lang.Block:
			out = append(out, n)
		}

		return true
	}))

	return out
}

func (ec *Context) resolve(name string) (*lang.Template, error) {
	return ec.env.resolver.Resolve(ec.ctx, name, ec)
}

func (ec *Context) templateName(path lang.Node) (string, error) {
	v, err := ec.Eval(path)
	if err != nil {
		return "", err
	}

	name := ToString(v)
	if name == "" {
		return "", evalError(path, failf("empty template name"))
	}

	return name, nil
}

func (ec *Context) currentTemplate() string {
	if len(ec.chain) == 0 {
		return ""
	}

	return ec.chain[len(ec.chain)-1]
}

func (ec *Context) renderBody(body *lang.Body, b Builder, parent any) error {
	if body == nil {
		return nil
	}

	return ec.renderNodes(body.Children(), b, parent)
}

func (ec *Context) renderNodes(nodes []lang.Node, b Builder, parent any) error {
	for _, n := range nodes {
		if err := ec.ctx.Err(); err != nil {
			return err
		}

		if err := ec.renderNode(n, b, parent); err != nil {
			return err
		}
	}

	return nil
}

// renderNode renders one statement.
func (ec *Context) renderNode(n lang.Node, b Builder, parent any) error {
	switch n := n.(type) {
	case *lang.Text:
		if n.Value != "" {
			b.AppendChild(parent, b.CreateTextNode(n.Value))
		}

	case *lang.Print:
		v, err := ec.Eval(n.Expr())
		if err != nil {
			return err
		}

		if s := ec.output(v); s != "" {
			b.AppendChild(parent, b.CreateTextNode(s))
		}

	case *lang.Body:
		return ec.renderBody(n, b, parent)

	case *lang.Set:
		return ec.renderSet(n)

	case *lang.If:
		return ec.renderIf(n, b, parent)

	case *lang.For:
		return ec.renderFor(n, b, parent)

	case *lang.Block:
		return ec.renderBlock(n, b, parent)

	case *lang.Extends:
		return evalError(n, failf("extends must be a top-level statement"))

	case *lang.Include:
		return ec.renderInclude(n, n.Path(), n.With(), n.Only, n.IgnoreMissing, nil, b, parent)

	case *lang.Embed:
		return ec.renderInclude(n, n.Path(), n.With(), n.Only, n.IgnoreMissing, n.Blocks(), b, parent)

	case *lang.Macro:
		ec.Set(n.Name, &Macro{node: n, ec: ec.fork(ec.scopes)})

	case *lang.Import:
		ns, err := ec.namespace(n, n.Path())
		if err != nil {
			return err
		}

		ec.Set(n.Alias, ns)

	case *lang.Use:
		ns, err := ec.namespace(n, n.Path())
		if err != nil {
			return err
		}

		for _, u := range n.Names {
			v, ok := ns[u.Name]
			if !ok {
				return evalError(n, unresolved("macro", u.Name, slices.Sorted(maps.Keys(ns))))
			}

			ec.Set(u.Bound(), v)
		}

	case *lang.Scope:
		vars, err := ec.withVars(n.With())
		if err != nil {
			return err
		}

		ec.push(vars)
		defer ec.pop()

		return ec.renderBody(n.Body(), b, parent)

	case *lang.Cache:
		return ec.renderCache(n, b, parent)

	case *lang.Do:
		_, err := ec.Eval(n.Expr())

		return err

	default:
		return evalError(n, failf("%s is not a statement", n.Kind()))
	}

	return nil
}

// output stringifies a printed value, escaping it when autoescape is on.
func (ec *Context) output(v any) string {
	if s, ok := v.(Safe); ok {
		return string(s)
	}

	s := ToString(v)
	if ec.env.autoescape {
		return html.EscapeString(s)
	}

	return s
}

func (ec *Context) renderSet(n *lang.Set) error {
	var v any

	if body, ok := n.Value().(*lang.Body); ok && n.Capture {
		tb := NewTextBuilder()
		if err := ec.renderBody(body, tb, tb.Root()); err != nil {
			return err
		}

		v = tb.String()
	} else {
		var err error
		if v, err = ec.Eval(n.Value()); err != nil {
			return err
		}
	}

	if len(n.Names) == 1 {
		ec.Set(n.Names[0], v)

		return nil
	}

	return ec.unpack(n, n.Names, v)
}

func (ec *Context) unpack(n lang.Node, names []string, v any) error {
	list, err := toList(v)
	if err != nil {
		return evalError(n, err)
	}

	if len(list) != len(names) {
		return evalError(n, failf("cannot unpack %d values into %d names", len(list), len(names)))
	}

	for i, name := range names {
		ec.Set(name, list[i])
	}

	return nil
}

func (ec *Context) renderIf(n *lang.If, b Builder, parent any) error {
	for _, br := range n.Branches() {
		if !br.Else {
			cond, err := ec.Eval(br.Cond())
			if err != nil {
				return err
			}

			if !Truthy(cond) {
				continue
			}
		}

		return ec.renderBody(br.Body(), b, parent)
	}

	return nil
}

func (ec *Context) renderFor(n *lang.For, b Builder, parent any) error {
	iterable, err := ec.Eval(n.Iterable())
	if err != nil {
		return err
	}

	es, err := entries(iterable)
	if err != nil {
		return evalError(n, err)
	}

	if len(es) == 0 {
		return ec.renderBody(n.Else(), b, parent)
	}

	outer, _ := ec.Lookup("loop")

	for i, e := range es {
		if err := ec.ctx.Err(); err != nil {
			return err
		}

		ec.push(map[string]any{"loop": loopVars(i, len(es), outer)})

		err := ec.bindLoop(n, e)
		if err == nil {
			err = ec.renderBody(n.Body(), b, parent)
		}

		ec.pop()

		if err != nil {
			return err
		}
	}

	return nil
}

// bindLoop binds one name to the element, two names to the key and the
// element, and more names to the unpacked element.
func (ec *Context) bindLoop(n *lang.For, e entry) error {
	switch len(n.Names) {
	case 1:
		ec.Set(n.Names[0], e.value)
	case 2:
		ec.Set(n.Names[0], e.key)
		ec.Set(n.Names[1], e.value)
	default:
		return ec.unpack(n, n.Names, e.value)
	}

	return nil
}

func loopVars(i, n int, parent any) map[string]any {
	return map[string]any{
		"index":     int64(i + 1),
		"index0":    int64(i),
		"first":     i == 0,
		"last":      i == n-1,
		"length":    int64(n),
		"revindex":  int64(n - i),
		"revindex0": int64(n - i - 1),
		"parent":    parent,
	}
}

// renderBlock renders the most derived definition of a block.
func (ec *Context) renderBlock(n *lang.Block, b Builder, parent any) error {
	layers := slices.Clone(ec.blocks.layers[n.Name])

	if !slices.ContainsFunc(layers, func(l blockLayer) bool { return l.block == n }) {
		layers = append(layers, blockLayer{block: n, template: ec.currentTemplate()})
	}

	f := &blockFrame{name: n.Name, layers: layers}

	el := b.CreateElementNode("block", map[string]string{
		"name":     n.Name,
		"template": layers[0].template,
	})
	b.AppendChild(parent, el)

	return ec.renderLayer(f, b, el)
}

func (ec *Context) renderLayer(f *blockFrame, b Builder, parent any) error {
	ec.blocks.stack = append(ec.blocks.stack, f)
	defer func() { ec.blocks.stack = ec.blocks.stack[:len(ec.blocks.stack)-1] }()

	ec.env.logger.TraceContext(ec.ctx, "render block",
		slog.String("block", f.name),
		slog.String("template", f.layers[f.at].template),
		slog.Int("layer", f.at))

	return ec.renderBody(f.layers[f.at].block.Body(), b, parent)
}

// parentBlock renders the next layer of the block being rendered.
func (ec *Context) parentBlock(n *lang.ParentCall) (any, error) {
	stack := ec.blocks.stack
	if len(stack) == 0 {
		return nil, evalError(n, failf("parent() called outside of a block"))
	}

	f := stack[len(stack)-1]
	if f.at+1 >= len(f.layers) {
		return nil, evalError(n, failf("block %q has no parent definition", f.name))
	}

	tb := NewTextBuilder()
	next := &blockFrame{name: f.name, layers: f.layers, at: f.at + 1}

	if err := ec.renderLayer(next, tb, tb.Root()); err != nil {
		return nil, err
	}

	return Safe(tb.String()), nil
}

// renderInclude renders another template in place. Blocks given by an
// embed override those of the included template. With a model or "only",
// the template sees globals and the model but none of the caller's scopes.
func (ec *Context) renderInclude(
	n, path, with lang.Node,
	only, ignoreMissing bool,
	blocks []*lang.Block,
	b Builder, parent any,
) error {
	name, err := ec.templateName(path)
	if err != nil {
		return err
	}

	vars, err := ec.withVars(with)
	if err != nil {
		return err
	}

	sub, err := ec.enter(name)
	if err != nil {
		return evalError(n, err)
	}

	tmpl, err := sub.resolve(name)
	if err != nil {
		if ignoreMissing && errors.Is(err, ErrTemplateNotFound) {
			b.AppendChild(parent, b.EmptyNode())

			return nil
		}

		return evalError(n, err)
	}

	// An explicit model replaces the caller's scopes.
	if only || with != nil {
		sub = sub.isolated(vars)
	} else {
		sub.push(vars)
	}

	sub.blocks = newBlockTable()
	sub.blocks.register(ec.currentTemplate(), blocks)

	container := b.CreateContainerNode()
	b.AppendChild(parent, container)

	return sub.renderTemplate(tmpl, b, container)
}

func (ec *Context) withVars(with lang.Node) (map[string]any, error) {
	if with == nil {
		return nil, nil
	}

	v, err := ec.Eval(with)
	if err != nil {
		return nil, err
	}

	switch m := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return m, nil
	}

	es, err := entries(v)
	if err != nil {
		return nil, evalError(with, failf("with expects a map, got %s", describe(v)))
	}

	out := make(map[string]any, len(es))
	for _, e := range es {
		out[ToString(e.key)] = e.value
	}

	return out, nil
}

// namespace renders a template for its definitions and returns the
// variables and macros it binds at top level.
func (ec *Context) namespace(n, path lang.Node) (map[string]any, error) {
	name, err := ec.templateName(path)
	if err != nil {
		return nil, err
	}

	sub, err := ec.enter(name)
	if err != nil {
		return nil, evalError(n, err)
	}

	tmpl, err := sub.resolve(name)
	if err != nil {
		return nil, evalError(n, err)
	}

	sub = sub.isolated(nil)
	sub.blocks = newBlockTable()

	tb := NewTextBuilder()
	if err := sub.renderTemplate(tmpl, tb, tb.Root()); err != nil {
		return nil, err
	}

	return maps.Clone(sub.scopes[len(sub.scopes)-1]), nil
}

// cacheSum hashes key with its dynamic type, so 1 and "1" are distinct.
func cacheSum(key any) uint64 {
	h := xxh3.New()
	_, _ = h.WriteString(fmt.Sprintf("%T", key))
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(ToString(key))

	return h.Sum64()
}

// renderCache renders the body once per render and key. Cache statements
// with equal keys share their output.
func (ec *Context) renderCache(n *lang.Cache, b Builder, parent any) error {
	key, err := ec.Eval(n.Key())
	if err != nil {
		return err
	}

	sum := cacheSum(key)

	out, hit := ec.state.cached[sum]
	if !hit {
		tb := NewTextBuilder()
		if err := ec.renderBody(n.Body(), tb, tb.Root()); err != nil {
			return err
		}

		out = tb.String()
		ec.state.cached[sum] = out
	}

	ec.env.logger.TraceContext(ec.ctx, "cache block",
		slog.String("key", ToString(key)),
		slog.Bool("cache_hit", hit))

	if out != "" {
		b.AppendChild(parent, b.CreateTextNode(out))
	}

	return nil
}
