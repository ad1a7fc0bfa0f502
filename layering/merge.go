// Package layering merges configuration layers ordered from strongest to
// weakest. Zero scalars, nil pointers, nil maps and nil slices count as unset
// and are filled from weaker layers.
package layering

import "reflect"

// MergeLayers copies the strongest layer and fills whatever it leaves unset
// from each weaker layer in turn. Map entries merge key by key. The inputs are
// never shared with the result.
func MergeLayers[T any](layers ...T) T {
	var zero T
	if len(layers) == 0 {
		return zero
	}
	out := reflect.New(reflect.TypeOf((*T)(nil)).Elem()).Elem()
	if first := reflect.ValueOf(layers[0]); first.IsValid() {
		out.Set(deepCopy(first))
	}
	for _, layer := range layers[1:] {
		fill(out, reflect.ValueOf(layer))
	}
	merged, _ := out.Interface().(T)
	return merged
}

// fill writes src into the unset parts of dst. dst must be settable.
func fill(dst, src reflect.Value) {
	if !src.IsValid() {
		return
	}
	if dst.Kind() == reflect.Interface {
		if dst.IsNil() {
			if src.Kind() == reflect.Interface {
				if src.IsNil() {
					return
				}
				src = src.Elem()
			}
			dst.Set(deepCopy(src))
			return
		}
		if src.Kind() == reflect.Interface {
			if src.IsNil() {
				return
			}
			src = src.Elem()
		}
		held := reflect.New(dst.Elem().Type()).Elem()
		held.Set(dst.Elem())
		fill(held, src)
		dst.Set(held)
		return
	}
	if dst.Type() != src.Type() {
		return
	}

	switch dst.Kind() {
	case reflect.Pointer:
		if src.IsNil() {
			return
		}
		if dst.IsNil() {
			dst.Set(deepCopy(src))
			return
		}
		fill(dst.Elem(), src.Elem())
	case reflect.Struct:
		for i := 0; i < dst.NumField(); i++ {
			if field := dst.Field(i); field.CanSet() {
				fill(field, src.Field(i))
			}
		}
	case reflect.Map:
		if src.IsNil() {
			return
		}
		if dst.IsNil() {
			dst.Set(deepCopy(src))
			return
		}
		iter := src.MapRange()
		for iter.Next() {
			existing := dst.MapIndex(iter.Key())
			if !existing.IsValid() {
				dst.SetMapIndex(iter.Key(), deepCopy(iter.Value()))
				continue
			}
			entry := reflect.New(existing.Type()).Elem()
			entry.Set(existing)
			fill(entry, iter.Value())
			dst.SetMapIndex(iter.Key(), entry)
		}
	case reflect.Slice:
		if dst.IsNil() && !src.IsNil() {
			dst.Set(deepCopy(src))
		}
	case reflect.Array:
		for i := 0; i < dst.Len(); i++ {
			fill(dst.Index(i), src.Index(i))
		}
	default:
		if dst.IsZero() {
			dst.Set(src)
		}
	}
}

// deepCopy copies pointers, maps and slices recursively. Unexported struct
// fields are left zero.
func deepCopy(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(deepCopy(v.Elem()))
		return out
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(deepCopy(v.Elem()))
		return out
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			if field := out.Field(i); field.CanSet() {
				field.Set(deepCopy(v.Field(i)))
			}
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), deepCopy(iter.Value()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(deepCopy(v.Index(i)))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(deepCopy(v.Index(i)))
		}
		return out
	default:
		return v
	}
}
