package engine

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"slices"

	"go.uber.org/multierr"

	"github.com/ihontarenko/jmouse-sub007/lang"
	"github.com/ihontarenko/jmouse-sub007/log"
)

// Engine renders the templates of a [Loader]. An Engine is safe for
// concurrent use; each render gets its own [Context].
type Engine struct {
	env    *environment
	parser *lang.Parser
}

// Option configures an [Engine].
type Option func(*config)

type config struct {
	logger       log.Logger
	maxDepth     int
	autoescape   bool
	strict       bool
	globals      map[string]any
	functions    []Callable
	filters      []Callable
	tests        []Callable
	operators    map[string]BinaryFunc
	transformers []Transformer
	custom       bool
	parserOpts   []lang.Option
}

// WithLogger sets the logger for trace-level diagnostics.
func WithLogger(logger log.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithMaxDepth bounds the nesting of includes, layouts, embeds and macro
// calls. Values below one select [DefaultMaxDepth].
func WithMaxDepth(depth int) Option {
	return func(c *config) { c.maxDepth = depth }
}

// WithAutoescape HTML-escapes printed values that are not [Safe].
func WithAutoescape(on bool) Option {
	return func(c *config) { c.autoescape = on }
}

// WithStrict makes reading an unbound variable an error.
func WithStrict(on bool) Option {
	return func(c *config) { c.strict = on }
}

// WithGlobals binds variables visible to every render, below the render
// variables.
func WithGlobals(globals map[string]any) Option {
	return func(c *config) {
		if c.globals == nil {
			c.globals = make(map[string]any, len(globals))
		}

		maps.Copy(c.globals, globals)
	}
}

// WithFunctions adds or replaces functions.
func WithFunctions(fns ...Callable) Option {
	return func(c *config) { c.functions = append(c.functions, fns...) }
}

// WithFilters adds or replaces filters.
func WithFilters(fns ...Callable) Option {
	return func(c *config) { c.filters = append(c.filters, fns...) }
}

// WithTests adds or replaces tests.
func WithTests(fns ...Callable) Option {
	return func(c *config) { c.tests = append(c.tests, fns...) }
}

// WithOperator overrides the evaluation of the infix operator symbol. The
// symbol must be in the operator table of the parser that loaded the
// template.
func WithOperator(symbol string, fn BinaryFunc) Option {
	return func(c *config) {
		if c.operators == nil {
			c.operators = make(map[string]BinaryFunc)
		}

		c.operators[symbol] = fn
	}
}

// WithTransformers replaces the default transformer chain. Call with no
// arguments to disable transformation.
func WithTransformers(ts ...Transformer) Option {
	return func(c *config) {
		c.transformers = ts
		c.custom = true
	}
}

// WithParserOptions configures the parser used by [Engine.Eval].
func WithParserOptions(opts ...lang.Option) Option {
	return func(c *config) { c.parserOpts = append(c.parserOpts, opts...) }
}

// New returns an engine rendering the templates of loader.
func New(loader Loader, opts ...Option) *Engine {
	var c config
	for _, opt := range opts {
		opt(&c)
	}

	if !c.custom {
		c.transformers = DefaultTransformers()
	}

	extend := func(r *Registry, cs []Callable) *Registry {
		if len(cs) == 0 {
			return r
		}

		return r.Builder().Add(cs...).Build()
	}

	env := &environment{
		logger:     c.logger,
		functions:  extend(DefaultFunctions(), c.functions),
		filters:    extend(DefaultFilters(), c.filters),
		tests:      extend(DefaultTests(), c.tests),
		operators:  c.operators,
		globals:    c.globals,
		maxDepth:   c.maxDepth,
		autoescape: c.autoescape,
		strict:     c.strict,
		resolver:   NewResolver(loader, c.logger, c.transformers...),
	}

	popts := append([]lang.Option{lang.WithLogger(c.logger)}, c.parserOpts...)

	return &Engine{env: env, parser: lang.NewParser(popts...)}
}

// Resolver returns the resolver holding the compiled templates.
func (e *Engine) Resolver() *Resolver { return e.env.resolver }

// Functions returns the function registry.
func (e *Engine) Functions() *Registry { return e.env.functions }

// Filters returns the filter registry.
func (e *Engine) Filters() *Registry { return e.env.filters }

// Tests returns the test registry.
func (e *Engine) Tests() *Registry { return e.env.tests }

// Globals returns the names of the global variables, sorted.
func (e *Engine) Globals() []string { return slices.Sorted(maps.Keys(e.env.globals)) }

// Render renders the template name with vars and returns the output.
func (e *Engine) Render(ctx context.Context, name string, vars map[string]any) (string, error) {
	b := NewTextBuilder()

	err := e.Materialize(ctx, name, vars, b)

	return b.String(), err
}

// RenderTo renders the template name into sink. Output produced before an
// error stays in the sink.
func (e *Engine) RenderTo(ctx context.Context, name string, vars map[string]any, sink Sink) error {
	b := NewTextBuilder()

	err := e.Materialize(ctx, name, vars, b)

	sink.Append(b.String())

	return err
}

// WriteTo renders the template name into w.
func (e *Engine) WriteTo(ctx context.Context, name string, vars map[string]any, w io.Writer) error {
	s := &WriterSink{W: w}

	if err := e.RenderTo(ctx, name, vars, s); err != nil {
		return err
	}

	return s.Err
}

// Materialize renders the template name through b.
func (e *Engine) Materialize(ctx context.Context, name string, vars map[string]any, b Builder) error {
	e.env.logger.DebugContext(ctx, "render", slog.String("template", name))

	ec, err := newContext(ctx, e.env, vars).enter(name)
	if err != nil {
		return err
	}

	t, err := ec.resolve(name)
	if err != nil {
		return err
	}

	return ec.renderTemplate(t, b, b.Root())
}

// Eval evaluates a bare expression with vars in scope.
func (e *Engine) Eval(ctx context.Context, expr string, vars map[string]any) (any, error) {
	n, err := e.parser.ParseExpr(ctx, lang.NewSource("", expr))
	if err != nil {
		return nil, err
	}

	return newContext(ctx, e.env, vars).Eval(n)
}

// Preload compiles the named templates ahead of rendering. Names are
// doublestar patterns when the loader implements [Lister]. Every failure
// is reported in the combined error.
func (e *Engine) Preload(ctx context.Context, names ...string) error {
	lister, _ := e.env.resolver.loader.(Lister)

	var err error

	for _, pattern := range names {
		matches := []string{pattern}

		if lister != nil {
			found, lerr := lister.List(pattern)
			if lerr != nil {
				err = multierr.Append(err, lerr)

				continue
			}

			if len(found) > 0 {
				matches = found
			}
		}

		for _, name := range matches {
			if _, rerr := e.env.resolver.Resolve(ctx, name, newContext(ctx, e.env, nil)); rerr != nil {
				err = multierr.Append(err, rerr)
			}
		}
	}

	return err
}
