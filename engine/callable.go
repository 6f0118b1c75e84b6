package engine

import (
	"reflect"
	"slices"

	"github.com/ihontarenko/jmouse-sub007/lang"
)

// Lambda is the value of a lambda expression. It closes over the scopes
// visible where it was evaluated.
type Lambda struct {
	node *lang.Lambda
	ec   *Context
}

// Params returns the parameter names.
func (l *Lambda) Params() []string {
	ps := l.node.Params()

	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}

	return out
}

// Call evaluates the body with args bound to the parameters. Missing
// arguments take the parameter default, or nil.
func (l *Lambda) Call(args ...any) (any, error) {
	return l.call(Args{List: args})
}

func (l *Lambda) call(args Args) (any, error) {
	sub := l.ec.fork(l.ec.scopes)
	sub.push(nil)

	if err := bindParams(sub, l.node.Params(), args); err != nil {
		return nil, err
	}

	return sub.Eval(l.node.Body())
}

func (l *Lambda) String() string { return lang.FormatExpr(l.node) }

// reflectFunc adapts l to the Go function type t so it can be passed to
// functions such as mung filters.
func (l *Lambda) reflectFunc(t reflect.Type) reflect.Value {
	return reflect.MakeFunc(t, func(in []reflect.Value) []reflect.Value {
		args := make([]any, len(in))
		for i, v := range in {
			args[i] = normalize(v.Interface())
		}

		v, err := l.Call(args...)

		return results(t, v, err)
	})
}

// results converts a lambda result to the outputs of t. Errors are
// reported through a trailing error output, or dropped when t has none.
func results(t reflect.Type, v any, err error) []reflect.Value {
	out := make([]reflect.Value, t.NumOut())

	for i := range out {
		ot := t.Out(i)

		switch {
		case ot.Implements(errorType) && i == len(out)-1:
			if err != nil {
				out[i] = reflect.ValueOf(&err).Elem()
			} else {
				out[i] = reflect.Zero(ot)
			}
		case i > 0 || err != nil:
			out[i] = reflect.Zero(ot)
		case ot.Kind() == reflect.Bool:
			out[i] = reflect.ValueOf(Truthy(v)).Convert(ot)
		case ot.Kind() == reflect.String:
			out[i] = reflect.ValueOf(ToString(v)).Convert(ot)
		default:
			cv, cerr := convertArg(v, ot)
			if cerr != nil {
				cv = reflect.Zero(ot)
			}

			out[i] = cv
		}
	}

	return out
}

// Macro is the value of a macro definition.
type Macro struct {
	node *lang.Macro
	ec   *Context
}

// Name returns the declared name.
func (m *Macro) Name() string { return m.node.Name }

// call renders the body with args bound to the parameters and returns the
// output as [Safe] text.
func (m *Macro) call(caller *Context, args Args) (any, error) {
	sub, err := caller.descend("macro " + m.node.Name)
	if err != nil {
		return nil, err
	}

	sub.scopes = append(slices.Clone(m.ec.scopes), make(map[string]any))
	sub.blocks = m.ec.blocks

	if err := bindParams(sub, m.node.Params(), args); err != nil {
		return nil, err
	}

	sub.Set("varargs", tail(args.List, len(m.node.Params())))
	sub.Set("kwargs", extraNamed(m.node.Params(), args.Named))

	b := NewTextBuilder()
	if err := sub.renderBody(m.node.Body(), b, b.Root()); err != nil {
		return nil, err
	}

	return Safe(b.String()), nil
}

// bindParams binds positional and keyword arguments in the innermost
// scope of ec, evaluating defaults for the rest.
func bindParams(ec *Context, params []*lang.Param, args Args) error {
	for i, p := range params {
		if v, ok := args.Get(i, p.Name); ok {
			ec.Set(p.Name, v)

			continue
		}

		var v any

		if d := p.Default(); d != nil {
			var err error
			if v, err = ec.Eval(d); err != nil {
				return err
			}
		}

		ec.Set(p.Name, v)
	}

	return nil
}

func tail(list []any, from int) []any {
	if from >= len(list) {
		return []any{}
	}

	return slices.Clone(list[from:])
}

func extraNamed(params []*lang.Param, named map[string]any) map[string]any {
	out := make(map[string]any)

outer:
	for k, v := range named {
		for _, p := range params {
			if p.Name == k {
				continue outer
			}
		}

		out[k] = v
	}

	return out
}

// invoke calls a value found in scope.
func (ec *Context) invoke(name string, fn any, args Args) (any, error) {
	switch fn := fn.(type) {
	case *Lambda:
		return fn.call(args)
	case *Macro:
		return fn.call(ec, args)
	case Callable:
		return fn.Call(ec, args)
	case Func:
		return fn(ec, args)
	case func(*Context, Args) (any, error):
		return fn(ec, args)
	}

	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return nil, failf("%s is not callable", name)
	}

	if len(args.Named) > 0 {
		return nil, failf("%s does not accept keyword arguments", name)
	}

	return callReflect(rv, args.List)
}
