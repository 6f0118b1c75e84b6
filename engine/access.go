package engine

import (
	"reflect"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var errorType = reflect.TypeFor[error]()

// attribute reads obj.name. Maps are looked up by key, structs by field
// name (case-insensitive) or by a method taking no arguments, and lists by
// numeric name. The boolean reports whether the attribute exists.
func attribute(obj any, name string) (any, bool, error) {
	switch o := obj.(type) {
	case nil, undefined:
		return nil, false, nil
	case map[string]any:
		v, ok := o[name]

		return v, ok, nil
	case []any:
		if i, err := strconv.Atoi(name); err == nil {
			return item(obj, int64(i))
		}

		return nil, false, nil
	}

	rv := reflect.ValueOf(obj)

	if m := findMethod(rv, name); m.IsValid() && m.Type().NumIn() == 0 {
		v, err := callReflect(m, nil)

		return v, true, err
	}

	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false, nil
		}

		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		fv := rv.FieldByNameFunc(func(n string) bool { return strings.EqualFold(n, name) })
		if !fv.IsValid() || !fv.CanInterface() {
			return nil, false, nil
		}

		return normalize(fv.Interface()), true, nil

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false, nil
		}

		mv := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !mv.IsValid() {
			return nil, false, nil
		}

		return normalize(mv.Interface()), true, nil

	case reflect.Slice, reflect.Array, reflect.String:
		if i, err := strconv.Atoi(name); err == nil {
			return item(obj, int64(i))
		}
	}

	return nil, false, nil
}

// index reads obj[key]. Integer keys index lists and strings, negative
// values counting from the end; other keys read attributes.
func index(obj, key any) (any, bool, error) {
	if s, ok := stringOf(key); ok {
		if _, isList := obj.([]any); !isList {
			return attribute(obj, s)
		}
	}

	i, err := ToInt(key)
	if err != nil {
		return attribute(obj, ToString(key))
	}

	return item(obj, i)
}

func item(obj any, i int64) (any, bool, error) {
	switch o := obj.(type) {
	case []any:
		if i < 0 {
			i += int64(len(o))
		}

		if i < 0 || i >= int64(len(o)) {
			return nil, false, nil
		}

		return o[i], true, nil
	case string:
		runes := []rune(o)
		if i < 0 {
			i += int64(len(runes))
		}

		if i < 0 || i >= int64(len(runes)) {
			return nil, false, nil
		}

		return string(runes[i]), true, nil
	case map[string]any:
		v, ok := o[strconv.FormatInt(i, 10)]

		return v, ok, nil
	}

	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		n := int64(rv.Len())
		if i < 0 {
			i += n
		}

		if i < 0 || i >= n {
			return nil, false, nil
		}

		return normalize(rv.Index(int(i)).Interface()), true, nil

	case reflect.Map:
		k := reflect.ValueOf(i)
		if !k.CanConvert(rv.Type().Key()) {
			return nil, false, nil
		}

		mv := rv.MapIndex(k.Convert(rv.Type().Key()))
		if !mv.IsValid() {
			return nil, false, nil
		}

		return normalize(mv.Interface()), true, nil
	}

	return nil, false, nil
}

// findMethod returns the exported method of rv named name, matching the
// first letter case-insensitively.
func findMethod(rv reflect.Value, name string) reflect.Value {
	if !rv.IsValid() || name == "" {
		return reflect.Value{}
	}

	r, size := utf8.DecodeRuneInString(name)
	exported := string(unicode.ToUpper(r)) + name[size:]

	if m := rv.MethodByName(exported); m.IsValid() {
		return m
	}

	if rv.Kind() != reflect.Pointer && rv.CanAddr() {
		return rv.Addr().MethodByName(exported)
	}

	return reflect.Value{}
}

// callReflect calls fn with args converted to its parameter types. A
// trailing error result is returned as the error, and so is a panic.
func callReflect(fn reflect.Value, args []any) (_ any, err error) {
	t := fn.Type()

	in, err := convertArgs(t, args)
	if err != nil {
		return nil, err
	}

	defer recoverCall(t.String(), &err)

	out := fn.Call(in)

	if n := len(out); n > 0 && t.Out(n-1).Implements(errorType) {
		if e := out[n-1]; !e.IsNil() {
			return nil, e.Interface().(error) //nolint:forcetypeassert
		}

		out = out[:n-1]
	}

	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return normalize(out[0].Interface()), nil
	default:
		list := make([]any, len(out))
		for i, o := range out {
			list[i] = normalize(o.Interface())
		}

		return list, nil
	}
}

func convertArgs(t reflect.Type, args []any) ([]reflect.Value, error) {
	fixed := t.NumIn()
	if t.IsVariadic() {
		fixed--
	}

	if len(args) < fixed || (!t.IsVariadic() && len(args) > fixed) {
		return nil, ErrArgumentCount.Wrap(
			failf("want %d, got %d", fixed, len(args)))
	}

	in := make([]reflect.Value, len(args))

	for i, a := range args {
		var pt reflect.Type
		if i < fixed {
			pt = t.In(i)
		} else {
			pt = t.In(fixed).Elem()
		}

		v, err := convertArg(a, pt)
		if err != nil {
			return nil, failf("argument %d: %w", i+1, err)
		}

		in[i] = v
	}

	return in, nil
}

func convertArg(a any, pt reflect.Type) (reflect.Value, error) {
	if a == nil || IsUndefined(a) {
		return reflect.Zero(pt), nil
	}

	if s, ok := a.(Safe); ok && pt.Kind() == reflect.String {
		a = string(s)
	}

	if l, ok := a.(*Lambda); ok && pt.Kind() == reflect.Func {
		return l.reflectFunc(pt), nil
	}

	v := reflect.ValueOf(a)

	switch {
	case v.Type().AssignableTo(pt):
		return v, nil
	case pt.Kind() == reflect.Slice && v.Kind() == reflect.Slice:
		out := reflect.MakeSlice(pt, v.Len(), v.Len())
		for i := range v.Len() {
			e, err := convertArg(v.Index(i).Interface(), pt.Elem())
			if err != nil {
				return reflect.Value{}, err
			}

			out.Index(i).Set(e)
		}

		return out, nil
	case v.CanConvert(pt) && convertible(v.Kind(), pt.Kind()):
		return v.Convert(pt), nil
	default:
		return reflect.Value{}, failf("cannot use %T as %s", a, pt)
	}
}

// convertible excludes conversions that reflect permits but that change
// meaning, such as an integer to a one-rune string.
func convertible(from, to reflect.Kind) bool {
	isNum := func(k reflect.Kind) bool {
		return k >= reflect.Int && k <= reflect.Float64
	}

	switch {
	case isNum(from) && isNum(to):
		return true
	case from == reflect.String && to == reflect.String:
		return true
	case isNum(from) || isNum(to):
		return false
	default:
		return true
	}
}
