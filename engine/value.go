package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"
)

// Safe is a string that is written without autoescaping.
type Safe string

// undefined is the value of a name that is not bound in any scope. It only
// reaches tests such as "defined"; everywhere else it reads as nil.
type undefined struct{}

// Undefined is passed to tests whose operand names an unbound variable.
var Undefined any = undefined{}

func (undefined) String() string { return "" }

// IsUndefined reports whether v is [Undefined].
func IsUndefined(v any) bool {
	_, ok := v.(undefined)

	return ok
}

// Truthy reports whether v counts as true in a condition.
func Truthy(v any) bool {
	switch v := v.(type) {
	case nil, undefined:
		return false
	case bool:
		return v
	case int64:
		return v != 0
	case int:
		return v != 0
	case float64:
		return v != 0
	case string:
		return v != ""
	case Safe:
		return v != ""
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String, reflect.Chan:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface, reflect.Func:
		return !rv.IsNil()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Bool:
		return rv.Bool()
	default:
		return true
	}
}

// ToString formats v for output. Nil is empty; lists and maps are JSON.
func ToString(v any) string {
	switch v := v.(type) {
	case nil, undefined:
		return ""
	case string:
		return v
	case Safe:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return formatFloat(v)
	case time.Time:
		return v.Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct:
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
	case reflect.Float32:
		return formatFloat(rv.Float())
	}

	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}

	return strconv.FormatFloat(f, 'f', -1, 64)
}

// toNumber converts v to int64 or float64.
func toNumber(v any) (any, bool) {
	switch v := v.(type) {
	case int64:
		return v, true
	case float64:
		return v, true
	case int:
		return int64(v), true
	case bool:
		if v {
			return int64(1), true
		}

		return int64(0), true
	case string, Safe, nil, undefined:
		return nil, false
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return int64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return nil, false
	}
}

// ToInt converts a number, or a string holding one, to int64.
func ToInt(v any) (int64, error) {
	if s, ok := stringOf(v); ok {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}

		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, failf("cannot convert %q to int", s)
		}

		return int64(f), nil
	}

	switch n, _ := toNumber(v); n := n.(type) {
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	default:
		return 0, failf("cannot convert %T to int", v)
	}
}

// ToFloat converts a number, or a string holding one, to float64.
func ToFloat(v any) (float64, error) {
	if s, ok := stringOf(v); ok {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, failf("cannot convert %q to float", s)
		}

		return f, nil
	}

	switch n, _ := toNumber(v); n := n.(type) {
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, failf("cannot convert %T to float", v)
	}
}

func stringOf(v any) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case Safe:
		return string(v), true
	default:
		return "", false
	}
}

// Equal compares values, treating all numeric kinds and both string kinds
// as interchangeable.
func Equal(a, b any) bool {
	if IsUndefined(a) {
		a = nil
	}

	if IsUndefined(b) {
		b = nil
	}

	if x, ok := toNumber(a); ok {
		if y, ok := toNumber(b); ok {
			c, _ := compareNumbers(x, y)

			return c == 0
		}
	}

	if x, ok := stringOf(a); ok {
		y, ok := stringOf(b)

		return ok && x == y
	}

	return reflect.DeepEqual(a, b)
}

// Compare orders two numbers or two strings.
func Compare(a, b any) (int, error) {
	if x, ok := toNumber(a); ok {
		if y, ok := toNumber(b); ok {
			return compareNumbers(x, y)
		}
	}

	if x, ok := stringOf(a); ok {
		if y, ok := stringOf(b); ok {
			switch {
			case x < y:
				return -1, nil
			case x > y:
				return 1, nil
			default:
				return 0, nil
			}
		}
	}

	if x, ok := a.(time.Time); ok {
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), nil
		}
	}

	return 0, failf("cannot compare %T with %T", a, b)
}

func compareNumbers(x, y any) (int, error) {
	if i, ok := x.(int64); ok {
		if j, ok := y.(int64); ok {
			switch {
			case i < j:
				return -1, nil
			case i > j:
				return 1, nil
			default:
				return 0, nil
			}
		}
	}

	f, g := asFloat(x), asFloat(y)

	switch {
	case f < g:
		return -1, nil
	case f > g:
		return 1, nil
	default:
		return 0, nil
	}
}

func asFloat(n any) float64 {
	if i, ok := n.(int64); ok {
		return float64(i)
	}

	f, _ := n.(float64)

	return f
}

// normalize converts Go values supplied by the host into the value model
// used by the evaluator: int64, float64, string, bool, []any and
// map[string]any. Other values are returned unchanged.
func normalize(v any) any {
	switch v := v.(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float32:
		return float64(v)
	case uint:
		return int64(v)
	case []string:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}

		return out
	}

	return v
}
