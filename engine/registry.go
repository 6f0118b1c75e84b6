package engine

import (
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// Args holds the evaluated arguments of a call.
type Args struct {
	List  []any
	Named map[string]any
}

// Len returns the number of positional arguments.
func (a Args) Len() int { return len(a.List) }

// At returns the i-th positional argument, or nil.
func (a Args) At(i int) any {
	if i < 0 || i >= len(a.List) {
		return nil
	}

	return a.List[i]
}

// Get returns the i-th positional argument, or the keyword argument name
// when fewer positional arguments were given.
func (a Args) Get(i int, name string) (any, bool) {
	if i >= 0 && i < len(a.List) {
		return a.List[i], true
	}

	v, ok := a.Named[name]

	return v, ok
}

// Or returns [Args.Get] or def when the argument is absent.
func (a Args) Or(i int, name string, def any) any {
	if v, ok := a.Get(i, name); ok {
		return v
	}

	return def
}

// Prepend returns a copy of a with v as its first positional argument.
func (a Args) Prepend(v any) Args {
	return Args{List: append([]any{v}, a.List...), Named: a.Named}
}

// Func implements a callable.
type Func func(ec *Context, args Args) (any, error)

// Callable is a named function, filter or test. MaxArgs is ignored when
// Variadic is set.
type Callable struct {
	Name     string
	MinArgs  int
	MaxArgs  int
	Variadic bool
	Fn       Func
}

// Call checks the argument count and invokes c. A panic in c is returned
// as an [ErrEvaluation].
func (c Callable) Call(ec *Context, args Args) (_ any, err error) {
	n := args.Len() + len(args.Named)

	if n < c.MinArgs || !c.Variadic && n > c.MaxArgs {
		return nil, ErrArgumentCount.Wrap(failf("%s: want %s, got %d", c.Name, c.arity(), n))
	}

	defer recoverCall(c.Name, &err)

	return c.Fn(ec, args)
}

func (c Callable) arity() string {
	switch {
	case c.Variadic:
		return "at least " + strconv.Itoa(c.MinArgs)
	case c.MinArgs == c.MaxArgs:
		return strconv.Itoa(c.MinArgs)
	default:
		return strconv.Itoa(c.MinArgs) + " to " + strconv.Itoa(c.MaxArgs)
	}
}

// Wrap adapts a Go function to a [Callable]. Arguments are converted to
// the parameter types of fn, and a trailing error result is returned as
// the error of the call. Keyword arguments are not accepted.
func Wrap(name string, fn any) Callable {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		panic("engine: Wrap of non-function " + name)
	}

	t := rv.Type()

	c := Callable{
		Name:     name,
		MinArgs:  t.NumIn(),
		MaxArgs:  t.NumIn(),
		Variadic: t.IsVariadic(),
	}

	if c.Variadic {
		c.MinArgs--
	}

	c.Fn = func(_ *Context, args Args) (any, error) {
		if len(args.Named) > 0 {
			return nil, failf("%s does not accept keyword arguments", name)
		}

		return callReflect(rv, args.List)
	}

	return c
}

// Registry is an immutable set of callables of one kind (function, filter
// or test). Derive extended registries with [Registry.Builder].
type Registry struct {
	kind    string
	entries map[string]Callable
}

// Lookup returns the callable registered under name. An unknown name
// yields [ErrUnresolvedSymbol] with the closest registered names.
func (r *Registry) Lookup(name string) (Callable, error) {
	if r != nil {
		if c, ok := r.entries[name]; ok {
			return c, nil
		}
	}

	return Callable{}, unresolved(r.Kind(), name, r.Names())
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}

	_, ok := r.entries[name]

	return ok
}

// Kind returns the kind of callable held by r.
func (r *Registry) Kind() string {
	if r == nil {
		return "symbol"
	}

	return r.kind
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}

	return slices.Sorted(maps.Keys(r.entries))
}

// Namespace returns the names registered under "ns." without the prefix.
func (r *Registry) Namespace(ns string) []string {
	var out []string

	for _, name := range r.Names() {
		if rest, ok := strings.CutPrefix(name, ns+"."); ok {
			out = append(out, rest)
		}
	}

	return out
}

// Builder returns a builder initialized with the entries of r.
func (r *Registry) Builder() *RegistryBuilder {
	b := NewRegistryBuilder(r.Kind())
	if r != nil {
		maps.Copy(b.entries, r.entries)
	}

	return b
}

// RegistryBuilder accumulates callables for a [Registry].
type RegistryBuilder struct {
	kind    string
	entries map[string]Callable
}

// NewRegistryBuilder returns an empty builder for callables of kind.
func NewRegistryBuilder(kind string) *RegistryBuilder {
	return &RegistryBuilder{kind: kind, entries: make(map[string]Callable)}
}

// Add registers callables, replacing existing entries of the same name.
func (b *RegistryBuilder) Add(cs ...Callable) *RegistryBuilder {
	for _, c := range cs {
		b.entries[c.Name] = c
	}

	return b
}

// Func registers fn with [Wrap].
func (b *RegistryBuilder) Func(name string, fn any) *RegistryBuilder {
	return b.Add(Wrap(name, fn))
}

// Alias registers the callable target under an additional name.
func (b *RegistryBuilder) Alias(name, target string) *RegistryBuilder {
	if c, ok := b.entries[target]; ok {
		c.Name = name
		b.entries[name] = c
	}

	return b
}

// Build returns an immutable snapshot of the builder.
func (b *RegistryBuilder) Build() *Registry {
	return &Registry{kind: b.kind, entries: maps.Clone(b.entries)}
}
