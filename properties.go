package kgforge

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
)

// Properties is an insertion-ordered mapping of property name to value. Values
// are scalars (string, bool, int64, float64, nil), *Resource, *LazyAction, or
// []any holding any of those.
type Properties struct {
	keys   []string
	values map[string]any
}

// Get returns the value stored under name.
func (p *Properties) Get(name string) (any, bool) {
	if p == nil || p.values == nil {
		return nil, false
	}
	value, ok := p.values[name]
	return value, ok
}

// Set stores value under name, keeping the original position of an existing key.
func (p *Properties) Set(name string, value any) {
	if p.values == nil {
		p.values = map[string]any{}
	}
	if _, exists := p.values[name]; !exists {
		p.keys = append(p.keys, name)
	}
	p.values[name] = value
}

// Delete removes name and reports whether it was present.
func (p *Properties) Delete(name string) bool {
	if p == nil || p.values == nil {
		return false
	}
	if _, ok := p.values[name]; !ok {
		return false
	}
	delete(p.values, name)
	p.keys = slices.DeleteFunc(p.keys, func(key string) bool { return key == name })
	return true
}

// Keys returns the property names in insertion order.
func (p *Properties) Keys() []string {
	if p == nil {
		return nil
	}
	return slices.Clone(p.keys)
}

// Len returns the number of properties.
func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Range calls fn for every property in order until fn returns false.
func (p *Properties) Range(fn func(name string, value any) bool) {
	if p == nil {
		return
	}
	for _, key := range p.keys {
		if !fn(key, p.values[key]) {
			return
		}
	}
}

func (p *Properties) clone() Properties {
	if p == nil || len(p.keys) == 0 {
		return Properties{}
	}
	out := Properties{
		keys:   slices.Clone(p.keys),
		values: make(map[string]any, len(p.values)),
	}
	for key, value := range p.values {
		out.values[key] = cloneValue(value)
	}
	return out
}

// equal ignores key order, like the tree form does.
func (p *Properties) equal(other *Properties) bool {
	if p.Len() != other.Len() {
		return false
	}
	for _, key := range p.keys {
		value, ok := other.Get(key)
		if !ok || !valuesEqual(p.values[key], value) {
			return false
		}
	}
	return true
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case *Resource:
		return typed.Clone()
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return value
	}
}

// ValuesEqual compares two property values after normalization. Numbers are
// compared by value and nested resources with Equal.
func ValuesEqual(a, b any) bool {
	left, err := NormalizeValue(a)
	if err != nil {
		return false
	}
	right, err := NormalizeValue(b)
	if err != nil {
		return false
	}
	return valuesEqual(left, right)
}

func valuesEqual(a, b any) bool {
	switch left := a.(type) {
	case *Resource:
		right, ok := b.(*Resource)
		return ok && left.Equal(right)
	case *LazyAction:
		right, ok := b.(*LazyAction)
		return ok && left.Kind == right.Kind && left.Path == right.Path
	case []any:
		right, ok := b.([]any)
		if !ok || len(left) != len(right) {
			return false
		}
		for i := range left {
			if !valuesEqual(left[i], right[i]) {
				return false
			}
		}
		return true
	}
	if lf, ok := asFloat(a); ok {
		rf, ok := asFloat(b)
		return ok && lf == rf
	}
	return a == b
}

func asFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case int64:
		return float64(typed), true
	case float64:
		return typed, true
	default:
		return 0, false
	}
}

// NormalizeValue converts Go values into the variant set held by Properties:
// integers become int64, floats float64, maps nested resources, and slices []any.
func NormalizeValue(value any) (any, error) {
	switch typed := value.(type) {
	case nil, string, bool, int64, float64, *Resource, *LazyAction:
		return typed, nil
	case int:
		return int64(typed), nil
	case int8:
		return int64(typed), nil
	case int16:
		return int64(typed), nil
	case int32:
		return int64(typed), nil
	case uint:
		return int64(typed), nil
	case uint8:
		return int64(typed), nil
	case uint16:
		return int64(typed), nil
	case uint32:
		return int64(typed), nil
	case uint64:
		if typed > math.MaxInt64 {
			return float64(typed), nil
		}
		return int64(typed), nil
	case float32:
		return float64(typed), nil
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return i, nil
		}
		f, err := typed.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", typed.String())
		}
		return f, nil
	case Resource:
		return typed.Clone(), nil
	case map[string]any:
		return resourceFromMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			normalized, err := NormalizeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = normalized
		}
		return out, nil
	case []string:
		return stringsToAny(typed), nil
	case []*Resource:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = item
		}
		return out, nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			normalized, err := NormalizeValue(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = normalized
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("unsupported map key type %s", rv.Type().Key())
		}
		converted := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			converted[iter.Key().String()] = iter.Value().Interface()
		}
		return resourceFromMap(converted)
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	}
	return nil, fmt.Errorf("unsupported property value type %T", value)
}

// resourceFromMap builds a nested resource from a tree-form map. Keys are
// applied in sorted order because Go maps carry no order.
func resourceFromMap(m map[string]any) (*Resource, error) {
	r := &Resource{}
	for _, key := range sortedKeys(m) {
		value := m[key]
		switch key {
		case "id", "@id":
			id, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("id must be a string, got %T", value)
			}
			r.ID = id
			continue
		case "type", "@type":
			types, err := toTypes(value)
			if err != nil {
				return nil, err
			}
			r.Types = types
			continue
		}
		if IsReservedProperty(key) {
			continue
		}
		normalized, err := NormalizeValue(value)
		if err != nil {
			return nil, err
		}
		r.props.Set(key, normalized)
	}
	return r, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
