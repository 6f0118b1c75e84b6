package engine

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/ihontarenko/jmouse-sub007/lang"
	"github.com/ihontarenko/jmouse-sub007/log"
)

// DefaultMaxDepth bounds nested includes, layouts, embeds and macro calls.
const DefaultMaxDepth = 100

// environment is the configuration shared by every render of an [Engine].
type environment struct {
	logger     log.Logger
	functions  *Registry
	filters    *Registry
	tests      *Registry
	operators  map[string]BinaryFunc
	globals    map[string]any
	resolver   *Resolver
	maxDepth   int
	autoescape bool
	strict     bool
}

// renderState is shared by all contexts derived from one top-level render.
type renderState struct {
	cached map[uint64]string
}

// blockLayer is one definition of a block, from the most derived layout to
// the base.
type blockLayer struct {
	block    *lang.Block
	template string
}

// blockFrame tracks the block being rendered so parent() can continue with
// the next layer.
type blockFrame struct {
	name   string
	layers []blockLayer
	at     int
}

// blockTable holds the overrides visible to one template render. Includes
// get their own table; layouts and embeds share or seed one.
type blockTable struct {
	layers map[string][]blockLayer
	stack  []*blockFrame
}

func newBlockTable() *blockTable {
	return &blockTable{layers: make(map[string][]blockLayer)}
}

func (t *blockTable) register(template string, blocks []*lang.Block) {
	for _, b := range blocks {
		t.layers[b.Name] = append(t.layers[b.Name], blockLayer{block: b, template: template})
	}
}

// Context is the state of one render: the variable scopes, the chain of
// templates being rendered, the recursion depth and the block table. A
// Context is confined to the goroutine rendering with it.
type Context struct {
	ctx    context.Context //nolint:containedctx
	env    *environment
	state  *renderState
	blocks *blockTable
	scopes []map[string]any
	chain  []string
	depth  int
}

func newContext(ctx context.Context, env *environment, vars map[string]any) *Context {
	scopes := make([]map[string]any, 0, 4)

	if len(env.globals) > 0 {
		scopes = append(scopes, env.globals)
	}

	if len(vars) > 0 {
		scopes = append(scopes, vars)
	}

	return &Context{
		ctx:    ctx,
		env:    env,
		state:  &renderState{cached: make(map[uint64]string)},
		blocks: newBlockTable(),
		scopes: append(scopes, make(map[string]any)),
	}
}

// Context returns the context.Context of the render.
func (ec *Context) Context() context.Context { return ec.ctx }

// Logger returns the logger of the engine.
func (ec *Context) Logger() log.Logger { return ec.env.logger }

// Chain returns the names of the templates being rendered, outermost
// first.
func (ec *Context) Chain() []string { return slices.Clone(ec.chain) }

// Depth returns the current nesting depth.
func (ec *Context) Depth() int { return ec.depth }

// Autoescape reports whether printed values are HTML-escaped.
func (ec *Context) Autoescape() bool { return ec.env.autoescape }

// Functions returns the function registry.
func (ec *Context) Functions() *Registry { return ec.env.functions }

// Filters returns the filter registry.
func (ec *Context) Filters() *Registry { return ec.env.filters }

// Tests returns the test registry.
func (ec *Context) Tests() *Registry { return ec.env.tests }

// Lookup returns the value bound to name in the innermost scope that
// defines it.
func (ec *Context) Lookup(name string) (any, bool) {
	for i := len(ec.scopes) - 1; i >= 0; i-- {
		if v, ok := ec.scopes[i][name]; ok {
			return v, true
		}
	}

	return nil, false
}

// Set binds name in the innermost scope.
func (ec *Context) Set(name string, value any) {
	ec.scopes[len(ec.scopes)-1][name] = value
}

// Names returns every bound variable name.
func (ec *Context) Names() []string {
	seen := make(map[string]struct{})

	for _, s := range ec.scopes {
		for k := range s {
			seen[k] = struct{}{}
		}
	}

	return slices.Sorted(maps.Keys(seen))
}

// Vars flattens the scope chain into one map, inner bindings winning.
func (ec *Context) Vars() map[string]any {
	out := make(map[string]any)

	for _, s := range ec.scopes {
		maps.Copy(out, s)
	}

	return out
}

// push opens a child scope initialized with vars.
func (ec *Context) push(vars map[string]any) {
	s := make(map[string]any, len(vars))
	maps.Copy(s, vars)

	ec.scopes = append(ec.scopes, s)
}

func (ec *Context) pop() {
	ec.scopes = ec.scopes[:len(ec.scopes)-1]
}

// fork returns a context sharing the render state of ec with its own copy
// of scopes.
func (ec *Context) fork(scopes []map[string]any) *Context {
	sub := *ec
	sub.scopes = slices.Clip(slices.Clone(scopes))
	sub.chain = slices.Clip(ec.chain)

	return &sub
}

// isolated returns a context with only the globals and vars in scope, as
// used by "only" includes.
func (ec *Context) isolated(vars map[string]any) *Context {
	scopes := make([]map[string]any, 0, 3)

	if len(ec.env.globals) > 0 {
		scopes = append(scopes, ec.env.globals)
	}

	if len(vars) > 0 {
		scopes = append(scopes, vars)
	}

	return ec.fork(append(scopes, make(map[string]any)))
}

// enter records a nested render of name. Names on the active chain are
// cycles; nesting beyond the depth limit fails.
func (ec *Context) enter(name string) (*Context, error) {
	if slices.Contains(ec.chain, name) {
		return nil, circular(ec.chain, name)
	}

	sub, err := ec.descend(name)
	if err != nil {
		return nil, err
	}

	sub.chain = append(slices.Clip(ec.chain), name)

	return sub, nil
}

// descend increments the depth without recording a template.
func (ec *Context) descend(name string) (*Context, error) {
	if err := ec.ctx.Err(); err != nil {
		return nil, err
	}

	limit := ec.env.maxDepth
	if limit <= 0 {
		limit = DefaultMaxDepth
	}

	if ec.depth+1 > limit {
		return nil, recursionLimit(ec.chain, name, limit)
	}

	sub := ec.fork(ec.scopes)
	sub.depth++

	ec.env.logger.TraceContext(ec.ctx, "descend",
		slog.String("name", name),
		slog.Int("depth", sub.depth))

	return sub, nil
}
