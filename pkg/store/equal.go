package store

import (
	"reflect"
)

// ReplaceEqualDeep returns prev when next is structurally equal to it, and
// otherwise a value equal to next in which every subtree that is equal to
// the corresponding subtree of prev reuses prev's reference. The boolean
// reports whether prev was returned unchanged.
//
// Pointers, slices, arrays, maps, interfaces and structs with only
// exported fields are compared recursively. Structs with unexported
// fields fall back to reflect.DeepEqual. Funcs and channels compare by
// identity.
func ReplaceEqualDeep[T any](prev, next T) (T, bool) {
	pv := reflect.ValueOf(&prev).Elem()
	nv := reflect.ValueOf(&next).Elem()

	r, same := replaceDeep(pv, nv, make(map[visit]bool))
	if same {
		return prev, true
	}
	var out T
	reflect.ValueOf(&out).Elem().Set(r)
	return out, false
}

type visit struct {
	prev, next uintptr
	typ        reflect.Type
}

func replaceDeep(prev, next reflect.Value, seen map[visit]bool) (reflect.Value, bool) {
	if !prev.IsValid() || !next.IsValid() {
		return next, prev.IsValid() == next.IsValid()
	}
	if prev.Type() != next.Type() {
		return next, false
	}

	switch next.Kind() {
	case reflect.Pointer:
		if prev.IsNil() || next.IsNil() {
			return next, prev.IsNil() && next.IsNil()
		}
		if prev.Pointer() == next.Pointer() {
			return prev, true
		}
		v := visit{prev.Pointer(), next.Pointer(), next.Type()}
		if seen[v] {
			return next, false
		}
		seen[v] = true

		elem, same := replaceDeep(prev.Elem(), next.Elem(), seen)
		if same {
			return prev, true
		}
		out := reflect.New(next.Type().Elem())
		out.Elem().Set(elem)
		return out, false

	case reflect.Interface:
		if prev.IsNil() || next.IsNil() {
			return next, prev.IsNil() && next.IsNil()
		}
		elem, same := replaceDeep(prev.Elem(), next.Elem(), seen)
		if same {
			return prev, true
		}
		out := reflect.New(next.Type()).Elem()
		out.Set(elem)
		return out, false

	case reflect.Slice:
		if prev.IsNil() || next.IsNil() {
			return next, prev.IsNil() && next.IsNil()
		}
		if prev.Len() == next.Len() && (next.Len() == 0 || prev.Pointer() == next.Pointer()) {
			return prev, true
		}
		out := reflect.MakeSlice(next.Type(), next.Len(), next.Len())
		same := prev.Len() == next.Len()
		for i := 0; i < next.Len(); i++ {
			if i >= prev.Len() {
				out.Index(i).Set(next.Index(i))
				continue
			}
			elem, s := replaceDeep(prev.Index(i), next.Index(i), seen)
			if !s {
				same = false
			}
			out.Index(i).Set(elem)
		}
		if same {
			return prev, true
		}
		return out, false

	case reflect.Array:
		out := reflect.New(next.Type()).Elem()
		same := true
		for i := 0; i < next.Len(); i++ {
			elem, s := replaceDeep(prev.Index(i), next.Index(i), seen)
			if !s {
				same = false
			}
			out.Index(i).Set(elem)
		}
		if same {
			return prev, true
		}
		return out, false

	case reflect.Map:
		if prev.IsNil() || next.IsNil() {
			return next, prev.IsNil() && next.IsNil()
		}
		if prev.Pointer() == next.Pointer() {
			return prev, true
		}
		out := reflect.MakeMapWithSize(next.Type(), next.Len())
		same := prev.Len() == next.Len()
		iter := next.MapRange()
		for iter.Next() {
			k, nval := iter.Key(), iter.Value()
			pval := prev.MapIndex(k)
			if !pval.IsValid() {
				same = false
				out.SetMapIndex(k, nval)
				continue
			}
			elem, s := replaceDeep(pval, nval, seen)
			if !s {
				same = false
			}
			out.SetMapIndex(k, elem)
		}
		if same {
			return prev, true
		}
		return out, false

	case reflect.Struct:
		t := next.Type()
		if !allExported(t) {
			if reflect.DeepEqual(prev.Interface(), next.Interface()) {
				return prev, true
			}
			return next, false
		}
		out := reflect.New(t).Elem()
		same := true
		for i := 0; i < t.NumField(); i++ {
			field, s := replaceDeep(prev.Field(i), next.Field(i), seen)
			if !s {
				same = false
			}
			out.Field(i).Set(field)
		}
		if same {
			return prev, true
		}
		return out, false

	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		if prev.IsNil() || next.IsNil() {
			return next, prev.IsNil() && next.IsNil()
		}
		return next, prev.Pointer() == next.Pointer()

	default:
		if prev.Equal(next) {
			return prev, true
		}
		return next, false
	}
}

func allExported(t reflect.Type) bool {
	for i := 0; i < t.NumField(); i++ {
		if !t.Field(i).IsExported() {
			return false
		}
	}
	return true
}
