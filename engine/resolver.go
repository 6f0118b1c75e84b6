package engine

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/ihontarenko/jmouse-sub007/lang"
	"github.com/ihontarenko/jmouse-sub007/log"
)

// Resolver turns template names into compiled templates: it loads the
// raw tree, applies the transformer chain and caches the result. A
// template is compiled at most once per name; concurrent compilers of the
// same name all receive the instance stored first.
type Resolver struct {
	loader       Loader
	transformers []Transformer
	compiled     sync.Map
	logger       log.Logger
}

// NewResolver returns a resolver over loader. Transformers run in
// ascending [Transformer.Order], ties keeping their given order.
func NewResolver(loader Loader, logger log.Logger, transformers ...Transformer) *Resolver {
	ts := slices.Clone(transformers)
	slices.SortStableFunc(ts, func(a, b Transformer) int { return a.Order() - b.Order() })

	return &Resolver{loader: loader, transformers: ts, logger: logger}
}

// progress is the set of names being compiled by one resolution chain.
type progress struct {
	mu    sync.Mutex
	names []string
}

type progressKey struct{}

func (p *progress) register(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if slices.Contains(p.names, name) {
		return circular(p.names, name)
	}

	p.names = append(p.names, name)

	return nil
}

func (p *progress) unregister(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if i := slices.Index(p.names, name); i >= 0 {
		p.names = slices.Delete(p.names, i, i+1)
	}
}

// Resolve returns the compiled template name. Transformers that resolve
// other templates must pass on the ctx they receive; resolving a name
// that is already being compiled on the same chain fails with
// [ErrCircularReference].
func (r *Resolver) Resolve(ctx context.Context, name string, ec *Context) (*lang.Template, error) {
	if v, ok := r.compiled.Load(name); ok {
		r.logger.TraceContext(ctx, "resolve",
			slog.String("template", name),
			slog.Bool("cache_hit", true))

		return v.(*lang.Template), nil //nolint:forcetypeassert
	}

	p, ok := ctx.Value(progressKey{}).(*progress)
	if !ok {
		p = &progress{}
		ctx = context.WithValue(ctx, progressKey{}, p)
	}

	if err := p.register(name); err != nil {
		return nil, err
	}

	defer p.unregister(name)

	r.logger.TraceContext(ctx, "resolve",
		slog.String("template", name),
		slog.Bool("cache_hit", false))

	raw, err := r.loader.Load(ctx, name)
	if err != nil {
		return nil, err
	}

	// Loaders may share parsed trees; transformers get a private copy.
	tmpl := lang.Clone(raw)

	for _, t := range r.transformers {
		if tmpl, err = t.Transform(ctx, tmpl, ec); err != nil {
			return nil, err
		}

		r.logger.TraceContext(ctx, "transform",
			slog.String("template", name),
			slog.String("transformer", transformerName(t)),
			slog.Int("order", t.Order()))
	}

	v, loaded := r.compiled.LoadOrStore(name, tmpl)

	r.logger.TraceContext(ctx, "compiled",
		slog.String("template", name),
		slog.Bool("concurrent", loaded))

	return v.(*lang.Template), nil //nolint:forcetypeassert
}

// Compiled returns the cached template name, if any.
func (r *Resolver) Compiled(name string) (*lang.Template, bool) {
	v, ok := r.compiled.Load(name)
	if !ok {
		return nil, false
	}

	t, ok := v.(*lang.Template)

	return t, ok
}

// Forget drops name from the cache so the next resolution recompiles it.
func (r *Resolver) Forget(name string) {
	r.compiled.Delete(name)
}

// Clear drops every compiled template.
func (r *Resolver) Clear() {
	r.compiled.Clear()
}
