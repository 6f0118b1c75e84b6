package engine

import (
	"cmp"
	"fmt"
	"iter"
	"maps"
	"reflect"
	"slices"
)

// entry is one iteration step: the index or map key, and the element.
type entry struct {
	key   any
	value any
}

// entries flattens an iterable into a slice. Maps iterate in sorted key
// order, strings by rune, and a non-negative integer n as 0..n-1.
// Sequences and channels are drained.
func entries(v any) ([]entry, error) {
	switch v := v.(type) {
	case nil, undefined:
		return nil, nil
	case []any:
		out := make([]entry, len(v))
		for i, e := range v {
			out[i] = entry{int64(i), e}
		}

		return out, nil
	case map[string]any:
		keys := slices.Sorted(maps.Keys(v))

		out := make([]entry, len(keys))
		for i, k := range keys {
			out[i] = entry{k, v[k]}
		}

		return out, nil
	case string:
		return runeEntries(v), nil
	case Safe:
		return runeEntries(string(v)), nil
	case int64:
		return countEntries(v), nil
	case int:
		return countEntries(int64(v)), nil
	case iter.Seq[any]:
		var out []entry
		for e := range v {
			out = append(out, entry{int64(len(out)), e})
		}

		return out, nil
	case iter.Seq2[any, any]:
		var out []entry
		for k, e := range v {
			out = append(out, entry{k, e})
		}

		return out, nil
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]entry, rv.Len())
		for i := range out {
			out[i] = entry{int64(i), normalize(rv.Index(i).Interface())}
		}

		return out, nil
	case reflect.Map:
		keys := rv.MapKeys()
		slices.SortFunc(keys, func(a, b reflect.Value) int {
			return cmp.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
		})

		out := make([]entry, len(keys))
		for i, k := range keys {
			out[i] = entry{normalize(k.Interface()), normalize(rv.MapIndex(k).Interface())}
		}

		return out, nil
	case reflect.Chan:
		var out []entry

		for {
			e, ok := rv.Recv()
			if !ok {
				return out, nil
			}

			out = append(out, entry{int64(len(out)), normalize(e.Interface())})
		}
	case reflect.Func:
		return funcEntries(rv)
	case reflect.Pointer:
		if !rv.IsNil() && rv.Elem().Kind() != reflect.Struct {
			return entries(rv.Elem().Interface())
		}
	}

	return nil, failf("%T is not iterable", v)
}

// funcEntries drains a range-over-func iterator of any element type.
func funcEntries(rv reflect.Value) ([]entry, error) {
	t := rv.Type()
	if t.NumIn() != 1 || t.NumOut() != 0 || t.In(0).Kind() != reflect.Func {
		return nil, failf("%s is not iterable", t)
	}

	var out []entry

	switch yield := t.In(0); yield.NumIn() {
	case 1:
		for e := range rv.Seq() {
			out = append(out, entry{int64(len(out)), normalize(e.Interface())})
		}
	case 2:
		for k, e := range rv.Seq2() {
			out = append(out, entry{normalize(k.Interface()), normalize(e.Interface())})
		}
	default:
		return nil, failf("%s is not iterable", t)
	}

	return out, nil
}

func runeEntries(s string) []entry {
	out := make([]entry, 0, len(s))
	for _, r := range s {
		out = append(out, entry{int64(len(out)), string(r)})
	}

	return out
}

func countEntries(n int64) []entry {
	out := make([]entry, 0, max(n, 0))
	for i := range max(n, 0) {
		out = append(out, entry{i, i})
	}

	return out
}

// toList converts an iterable to a list of its elements.
func toList(v any) ([]any, error) {
	if l, ok := v.([]any); ok {
		return l, nil
	}

	es, err := entries(v)
	if err != nil {
		return nil, err
	}

	out := make([]any, len(es))
	for i, e := range es {
		out[i] = e.value
	}

	return out, nil
}

// length returns the number of elements of a collection or the number of
// runes of a string.
func length(v any) (int, error) {
	switch v := v.(type) {
	case nil, undefined:
		return 0, nil
	case string:
		return len([]rune(v)), nil
	case Safe:
		return len([]rune(string(v))), nil
	case []any:
		return len(v), nil
	case map[string]any:
		return len(v), nil
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		return rv.Len(), nil
	default:
		return 0, failf("%T has no length", v)
	}
}

// rangeOf returns the inclusive integer sequence from..to, descending when
// from is greater than to.
func rangeOf(from, to int64) []any {
	step := int64(1)
	if from > to {
		step = -1
	}

	n := (to-from)*step + 1

	out := make([]any, 0, n)
	for i := from; ; i += step {
		out = append(out, i)

		if i == to {
			return out
		}
	}
}
