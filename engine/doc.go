// Package engine resolves, compiles and renders templates parsed by package
// lang.
//
// # Rendering
//
// An [Engine] pairs a [Loader] with registries of functions, filters and
// tests:
//
//	e := engine.New(engine.NewMapLoader(map[string]string{
//		"hello": "Hello {{ name | title }}!",
//	}))
//
//	out, err := e.Render(ctx, "hello", map[string]any{"name": "world"})
//
// Templates are compiled by a [Resolver]: the loaded tree is copied, run
// through the [Transformer] chain in ascending order and cached by name.
// Resolving a name that is already being compiled on the same chain, or
// rendering a template that is already on the render chain, fails with
// [ErrCircularReference]. Nesting beyond the depth limit fails with
// [ErrRecursionLimit].
//
// # Values
//
// Expressions evaluate to int64, float64, string, bool, nil, []any,
// map[string]any, [Safe] or host values reached through reflection. An
// unbound variable reads as nil, or fails with [ErrUnresolvedSymbol] when
// the engine is strict.
//
// # Output
//
// Rendering writes through a [Builder]. [TextBuilder] produces plain text;
// [TreeBuilder] produces an [Element] tree in which blocks become "block"
// elements, suitable for JSON or YAML dumps.
package engine
