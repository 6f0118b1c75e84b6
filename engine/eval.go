package engine

import (
	"math"
	"reflect"
	"slices"
	"strings"

	"github.com/ihontarenko/jmouse-sub007/lang"
)

// BinaryFunc implements an infix operator added to the parser's operator
// table. The key of its registration is the operator symbol.
type BinaryFunc func(left, right any) (any, error)

// Eval evaluates an expression. An unbound variable reads as nil unless
// the engine is strict.
func (ec *Context) Eval(n lang.Node) (any, error) {
	v, err := ec.eval(n)
	if err != nil {
		return nil, err
	}

	if IsUndefined(v) {
		return ec.undefinedValue(n)
	}

	return v, nil
}

func (ec *Context) undefinedValue(n lang.Node) (any, error) {
	if !ec.env.strict {
		return nil, nil
	}

	if id, ok := n.(*lang.Identifier); ok {
		return nil, evalError(n, unresolved("variable", id.Name, ec.Names()))
	}

	return nil, evalError(n, failf("%s is undefined", lang.FormatExpr(n)))
}

// eval evaluates n, yielding [Undefined] for unbound names and missing
// members so that tests and null coalescing can observe them.
func (ec *Context) eval(n lang.Node) (any, error) {
	switch n := n.(type) {
	case *lang.Literal:
		return n.Value, nil

	case *lang.Identifier:
		if v, ok := ec.Lookup(n.Name); ok {
			return v, nil
		}

		return Undefined, nil

	case *lang.Property:
		obj, err := ec.eval(n.Object())
		if err != nil || IsUndefined(obj) {
			return obj, err
		}

		return ec.member(n, obj, n.Name)

	case *lang.Index:
		obj, err := ec.eval(n.Object())
		if err != nil || IsUndefined(obj) {
			return obj, err
		}

		key, err := ec.Eval(n.Key())
		if err != nil {
			return nil, err
		}

		v, ok, err := index(obj, key)
		if err != nil {
			return nil, evalError(n, err)
		}

		if !ok {
			return Undefined, nil
		}

		return v, nil

	case *lang.Binary:
		return ec.binary(n)

	case *lang.Unary:
		return ec.unary(n)

	case *lang.Array:
		out := make([]any, 0, len(n.Elements()))

		for _, e := range n.Elements() {
			v, err := ec.Eval(e)
			if err != nil {
				return nil, err
			}

			out = append(out, v)
		}

		return out, nil

	case *lang.Map:
		out := make(map[string]any, len(n.Pairs()))

		for _, p := range n.Pairs() {
			k, err := ec.Eval(p.Key())
			if err != nil {
				return nil, err
			}

			v, err := ec.Eval(p.Value())
			if err != nil {
				return nil, err
			}

			out[ToString(k)] = v
		}

		return out, nil

	case *lang.Range:
		return ec.rangeValue(n, n.From(), n.To())

	case *lang.Ternary:
		cond, err := ec.Eval(n.Cond())
		if err != nil {
			return nil, err
		}

		if Truthy(cond) {
			return ec.Eval(n.Then())
		}

		return ec.Eval(n.Else())

	case *lang.NullCoalesce:
		v, err := ec.eval(n.Value())
		if err != nil {
			return nil, err
		}

		if v == nil || IsUndefined(v) {
			return ec.Eval(n.Fallback())
		}

		return v, nil

	case *lang.FunctionCall:
		return ec.callFunction(n)

	case *lang.ScopedCall:
		return ec.callScoped(n)

	case *lang.MethodCall:
		recv, err := ec.Eval(n.Receiver())
		if err != nil {
			return nil, err
		}

		args, err := ec.args(n.Args())
		if err != nil {
			return nil, err
		}

		v, err := ec.callMember(recv, n.Name, args)
		if err != nil {
			return nil, evalError(n, err)
		}

		return v, nil

	case *lang.FilterCall:
		return ec.callFilter(n)

	case *lang.TestCall:
		return ec.callTest(n)

	case *lang.Lambda:
		return &Lambda{node: n, ec: ec.fork(ec.scopes)}, nil

	case *lang.ParentCall:
		return ec.parentBlock(n)

	case nil:
		return nil, failf("missing expression")

	default:
		return nil, evalError(n, failf("%s is not an expression", n.Kind()))
	}
}

func (ec *Context) member(n lang.Node, obj any, name string) (any, error) {
	v, ok, err := attribute(obj, name)
	if err != nil {
		return nil, evalError(n, err)
	}

	if !ok {
		return Undefined, nil
	}

	return v, nil
}

func (ec *Context) rangeValue(n lang.Node, from, to lang.Node) (any, error) {
	f, err := ec.Eval(from)
	if err != nil {
		return nil, err
	}

	t, err := ec.Eval(to)
	if err != nil {
		return nil, err
	}

	lo, err := ToInt(f)
	if err != nil {
		return nil, evalError(n, err)
	}

	hi, err := ToInt(t)
	if err != nil {
		return nil, evalError(n, err)
	}

	return rangeOf(lo, hi), nil
}

func (ec *Context) binary(n *lang.Binary) (any, error) {
	left, err := ec.Eval(n.Left())
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case lang.TokenAnd:
		if !Truthy(left) {
			return false, nil
		}

		right, err := ec.Eval(n.Right())

		return Truthy(right), err

	case lang.TokenOr:
		if Truthy(left) {
			return true, nil
		}

		right, err := ec.Eval(n.Right())

		return Truthy(right), err
	}

	right, err := ec.Eval(n.Right())
	if err != nil {
		return nil, err
	}

	v, err := ec.operate(n, left, right)
	if err != nil {
		return nil, evalError(n, err)
	}

	return v, nil
}

func (ec *Context) operate(n *lang.Binary, left, right any) (any, error) {
	if fn, ok := ec.env.operators[n.Symbol]; ok {
		return fn(left, right)
	}

	switch n.Op {
	case lang.TokenPlus, lang.TokenMinus, lang.TokenStar, lang.TokenSlash,
		lang.TokenFloorDiv, lang.TokenPercent, lang.TokenPower:
		return Arithmetic(n.Op, left, right)

	case lang.TokenTilde:
		return ToString(left) + ToString(right), nil

	case lang.TokenEq:
		return Equal(left, right), nil

	case lang.TokenNe:
		return !Equal(left, right), nil

	case lang.TokenLt, lang.TokenLe, lang.TokenGt, lang.TokenGe:
		c, err := Compare(left, right)
		if err != nil {
			return nil, err
		}

		switch n.Op {
		case lang.TokenLt:
			return c < 0, nil
		case lang.TokenLe:
			return c <= 0, nil
		case lang.TokenGt:
			return c > 0, nil
		default:
			return c >= 0, nil
		}

	case lang.TokenIn:
		return Contains(right, left)

	case lang.TokenRange:
		lo, err := ToInt(left)
		if err != nil {
			return nil, err
		}

		hi, err := ToInt(right)
		if err != nil {
			return nil, err
		}

		return rangeOf(lo, hi), nil
	}

	return nil, failf("unsupported operator %q", n.Symbol)
}

// Arithmetic applies an arithmetic operator. Integers stay integers
// unless a division is inexact or the result overflows int64, in which
// case it is a float64; "+" concatenates strings and lists.
func Arithmetic(op lang.TokenType, left, right any) (any, error) {
	if op == lang.TokenPlus {
		if l, ok := stringOf(left); ok {
			return l + ToString(right), nil
		}

		if r, ok := stringOf(right); ok {
			return ToString(left) + r, nil
		}

		if l, ok := left.([]any); ok {
			if r, ok := right.([]any); ok {
				return slices.Concat(l, r), nil
			}
		}
	}

	if op == lang.TokenStar {
		if s, ok := stringOf(left); ok {
			if k, err := ToInt(right); err == nil {
				return strings.Repeat(s, int(max(k, 0))), nil
			}
		}
	}

	a, ok := toNumber(left)
	if !ok {
		return nil, failf("%s: operand %s is not a number", op, describe(left))
	}

	b, ok := toNumber(right)
	if !ok {
		return nil, failf("%s: operand %s is not a number", op, describe(right))
	}

	x, xInt := a.(int64)
	y, yInt := b.(int64)

	if xInt && yInt {
		return intArithmetic(op, x, y)
	}

	return floatArithmetic(op, asFloat(a), asFloat(b))
}

func intArithmetic(op lang.TokenType, x, y int64) (any, error) {
	switch op {
	case lang.TokenPlus:
		if s := x + y; (x^s)&(y^s) >= 0 {
			return s, nil
		}

		return float64(x) + float64(y), nil
	case lang.TokenMinus:
		if d := x - y; (x^y)&(x^d) >= 0 {
			return d, nil
		}

		return float64(x) - float64(y), nil
	case lang.TokenStar:
		if p, ok := mulInt(x, y); ok {
			return p, nil
		}

		return float64(x) * float64(y), nil
	case lang.TokenSlash:
		if y == 0 {
			return nil, failf("division by zero")
		}

		if x%y == 0 && (x != math.MinInt64 || y != -1) {
			return x / y, nil
		}

		return float64(x) / float64(y), nil
	case lang.TokenFloorDiv:
		if y == 0 {
			return nil, failf("division by zero")
		}

		if x == math.MinInt64 && y == -1 {
			return -float64(x), nil
		}

		q := x / y
		if (x%y != 0) && ((x < 0) != (y < 0)) {
			q--
		}

		return q, nil
	case lang.TokenPercent:
		if y == 0 {
			return nil, failf("division by zero")
		}

		return x % y, nil
	case lang.TokenPower:
		if y < 0 {
			return math.Pow(float64(x), float64(y)), nil
		}

		switch x {
		case 0, 1:
			if y == 0 {
				return int64(1), nil
			}

			return x, nil
		case -1:
			return 1 - 2*(y%2), nil
		}

		r := int64(1)
		for range y {
			var ok bool
			if r, ok = mulInt(r, x); !ok {
				return math.Pow(float64(x), float64(y)), nil
			}
		}

		return r, nil
	default:
		return nil, failf("unsupported operator %s", op)
	}
}

// mulInt returns x * y and whether it fits in an int64.
func mulInt(x, y int64) (int64, bool) {
	if x == 0 || y == 0 {
		return 0, true
	}

	p := x * y
	if p/y != x || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
		return 0, false
	}

	return p, true
}

func floatArithmetic(op lang.TokenType, x, y float64) (any, error) {
	switch op {
	case lang.TokenPlus:
		return x + y, nil
	case lang.TokenMinus:
		return x - y, nil
	case lang.TokenStar:
		return x * y, nil
	case lang.TokenSlash:
		if y == 0 {
			return nil, failf("division by zero")
		}

		return x / y, nil
	case lang.TokenFloorDiv:
		if y == 0 {
			return nil, failf("division by zero")
		}

		return math.Floor(x / y), nil
	case lang.TokenPercent:
		if y == 0 {
			return nil, failf("division by zero")
		}

		return math.Mod(x, y), nil
	case lang.TokenPower:
		return math.Pow(x, y), nil
	default:
		return nil, failf("unsupported operator %s", op)
	}
}

// Contains reports whether item is an element of a list, a key of a map
// or a substring of a string.
func Contains(container, item any) (bool, error) {
	if s, ok := stringOf(container); ok {
		return strings.Contains(s, ToString(item)), nil
	}

	switch c := container.(type) {
	case nil, undefined:
		return false, nil
	case map[string]any:
		_, ok := c[ToString(item)]

		return ok, nil
	}

	if rv := reflect.ValueOf(container); rv.Kind() == reflect.Map {
		_, ok, err := index(container, item)

		return ok, err
	}

	es, err := entries(container)
	if err != nil {
		return false, err
	}

	return slices.ContainsFunc(es, func(e entry) bool { return Equal(e.value, item) }), nil
}

func (ec *Context) unary(n *lang.Unary) (any, error) {
	switch n.Op {
	case lang.TokenNot:
		v, err := ec.Eval(n.Operand())
		if err != nil {
			return nil, err
		}

		return !Truthy(v), nil

	case lang.TokenMinus, lang.TokenPlus:
		v, err := ec.Eval(n.Operand())
		if err != nil {
			return nil, err
		}

		num, ok := toNumber(v)
		if !ok {
			return nil, evalError(n, failf("%s: operand %s is not a number", n.Symbol, describe(v)))
		}

		if n.Op == lang.TokenPlus {
			return num, nil
		}

		if i, ok := num.(int64); ok && i != math.MinInt64 {
			return -i, nil
		}

		return -asFloat(num), nil

	case lang.TokenIncrement, lang.TokenDecrement:
		return ec.step(n)

	default:
		return nil, evalError(n, failf("unsupported operator %q", n.Symbol))
	}
}

// step evaluates ++ and --. A variable operand is updated in the innermost
// scope; the prefix form yields the new value and the postfix form the old
// one.
func (ec *Context) step(n *lang.Unary) (any, error) {
	old, err := ec.Eval(n.Operand())
	if err != nil {
		return nil, err
	}

	delta := int64(1)
	if n.Op == lang.TokenDecrement {
		delta = -1
	}

	if old == nil {
		old = int64(0)
	}

	v, err := Arithmetic(lang.TokenPlus, old, delta)
	if err != nil {
		return nil, evalError(n, err)
	}

	if id, ok := n.Operand().(*lang.Identifier); ok {
		ec.Set(id.Name, v)
	}

	if n.Postfix {
		return old, nil
	}

	return v, nil
}

// args evaluates call arguments.
func (ec *Context) args(nodes []lang.Node) (Args, error) {
	var args Args

	for _, a := range nodes {
		if kw, ok := a.(*lang.KeywordArg); ok {
			v, err := ec.Eval(kw.Value())
			if err != nil {
				return Args{}, err
			}

			if args.Named == nil {
				args.Named = make(map[string]any)
			}

			args.Named[kw.Name] = v

			continue
		}

		v, err := ec.Eval(a)
		if err != nil {
			return Args{}, err
		}

		args.List = append(args.List, v)
	}

	return args, nil
}

func (ec *Context) callFunction(n *lang.FunctionCall) (any, error) {
	args, err := ec.args(n.Args())
	if err != nil {
		return nil, err
	}

	var v any

	if fn, ok := ec.Lookup(n.Name); ok {
		v, err = ec.invoke(n.Name, fn, args)
	} else {
		var c Callable
		if c, err = ec.env.functions.Lookup(n.Name); err == nil {
			v, err = c.Call(ec, args)
		}
	}

	if err != nil {
		return nil, evalError(n, err)
	}

	return v, nil
}

// callScoped calls ns.name(...). A variable named ns is searched for a
// member first, then the function registry for the qualified name.
func (ec *Context) callScoped(n *lang.ScopedCall) (any, error) {
	args, err := ec.args(n.Args())
	if err != nil {
		return nil, err
	}

	var v any

	if ns, ok := ec.Lookup(n.Namespace); ok {
		v, err = ec.callMember(ns, n.Name, args)
	} else {
		var c Callable
		if c, err = ec.env.functions.Lookup(n.Qualified()); err == nil {
			v, err = c.Call(ec, args)
		}
	}

	if err != nil {
		return nil, evalError(n, err)
	}

	return v, nil
}

// callMember calls recv.name(...): a callable stored in a map, then a Go
// method, then a filter applied to recv.
func (ec *Context) callMember(recv any, name string, args Args) (any, error) {
	if m, ok := recv.(map[string]any); ok {
		if fn, ok := m[name]; ok {
			return ec.invoke(name, fn, args)
		}
	}

	if m := findMethod(reflect.ValueOf(recv), name); m.IsValid() {
		return callReflect(m, args.List)
	}

	if fn, ok, err := attribute(recv, name); err != nil {
		return nil, err
	} else if ok {
		return ec.invoke(name, fn, args)
	}

	if c, err := ec.env.filters.Lookup(name); err == nil {
		return c.Call(ec, args.Prepend(recv))
	}

	return nil, unresolved("method", name, ec.env.filters.Names())
}

func (ec *Context) callFilter(n *lang.FilterCall) (any, error) {
	operand, err := ec.eval(n.Operand())
	if err != nil {
		return nil, err
	}

	if IsUndefined(operand) {
		if n.Name == "default" || n.Name == "d" {
			operand = nil
		} else if operand, err = ec.undefinedValue(n.Operand()); err != nil {
			return nil, err
		}
	}

	args, err := ec.args(n.Args())
	if err != nil {
		return nil, err
	}

	c, err := ec.env.filters.Lookup(n.Name)
	if err != nil {
		return nil, evalError(n, err)
	}

	v, err := c.Call(ec, args.Prepend(operand))
	if err != nil {
		return nil, evalError(n, err)
	}

	return v, nil
}

func (ec *Context) callTest(n *lang.TestCall) (any, error) {
	operand, err := ec.eval(n.Operand())
	if err != nil {
		return nil, err
	}

	args, err := ec.args(n.Args())
	if err != nil {
		return nil, err
	}

	c, err := ec.env.tests.Lookup(n.Name)
	if err != nil {
		return nil, evalError(n, err)
	}

	v, err := c.Call(ec, args.Prepend(operand))
	if err != nil {
		return nil, evalError(n, err)
	}

	return Truthy(v) != n.Negated, nil
}

func describe(v any) string {
	if v == nil {
		return "null"
	}

	return reflect.TypeOf(v).String()
}
