package model

import (
	"fmt"
	"net/url"
	"slices"
	"time"

	kgforge "github.com/goliatone/go-kgforge"
)

// validate checks r against the shape of each of its types, in type order.
// Shapes are walked in declaration order so the first violation is stable.
func (m *Shapes) validate(r *kgforge.Resource) error {
	var shaped []*Shape
	for _, typ := range r.Types {
		if shape, ok := m.shapes[typ]; ok {
			shaped = append(shaped, shape)
		}
	}
	if len(shaped) == 0 {
		typ := ""
		if len(r.Types) > 0 {
			typ = r.Types[0]
		}
		return &kgforge.ValidationError{Type: typ, Constraint: ConstraintUnknownType, Reason: "no shape for the resource types"}
	}
	for _, shape := range shaped {
		if err := m.validateShape(r, shape, ""); err != nil {
			return err
		}
	}
	return nil
}

func (m *Shapes) validateShape(r *kgforge.Resource, shape *Shape, prefix string) error {
	fail := func(path, constraint, reason string) error {
		return &kgforge.ValidationError{Type: shape.Type, Path: prefix + path, Constraint: constraint, Reason: reason}
	}
	for _, prop := range shape.Properties {
		value, _ := r.Properties().Get(prop.Path)
		values, isList := value.([]any)
		if !isList && value != nil {
			values = []any{value}
		}
		if len(values) == 0 {
			if prop.Required {
				return fail(prop.Path, ConstraintMinCount, "required property is missing")
			}
			continue
		}
		if isList && !prop.List && len(values) > 1 {
			return fail(prop.Path, ConstraintDatatype, fmt.Sprintf("expected a single value, got %d", len(values)))
		}
		for i, item := range values {
			path := prop.Path
			if isList {
				path = fmt.Sprintf("%s[%d]", prop.Path, i)
			}
			if _, pending := item.(*kgforge.LazyAction); pending {
				continue
			}
			if prop.Shape != "" {
				nested, ok := item.(*kgforge.Resource)
				if !ok || !nested.HasType(prop.Shape) {
					return fail(path, ConstraintClass, fmt.Sprintf("expected a %s resource, got %s", prop.Shape, describe(item)))
				}
				if err := m.validateShape(nested, m.shapes[prop.Shape], prefix+path+"."); err != nil {
					return err
				}
				continue
			}
			if reason := checkDatatype(prop.Datatype, item); reason != "" {
				return fail(path, ConstraintDatatype, reason)
			}
			if len(prop.In) > 0 && !slices.ContainsFunc(prop.In, func(allowed any) bool {
				return kgforge.ValuesEqual(allowed, item)
			}) {
				return fail(path, ConstraintIn, fmt.Sprintf("%v is not one of %v", item, prop.In))
			}
		}
	}
	if shape.Closed {
		for _, name := range r.Properties().Keys() {
			if !slices.ContainsFunc(shape.Properties, func(p Property) bool { return p.Path == name }) {
				return fail(name, ConstraintClosed, "property not declared by the shape")
			}
		}
	}
	return nil
}

func checkDatatype(datatype string, value any) string {
	if _, nested := value.(*kgforge.Resource); nested && datatype != "" {
		return "expected a literal, got a resource"
	}
	switch canonicalDatatype(datatype) {
	case "string":
		if _, ok := value.(string); !ok {
			return "expected a string, got " + describe(value)
		}
	case "integer":
		if _, ok := value.(int64); !ok {
			return "expected an integer, got " + describe(value)
		}
	case "number":
		switch value.(type) {
		case int64, float64:
		default:
			return "expected a number, got " + describe(value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return "expected a boolean, got " + describe(value)
		}
	case "date":
		if !parses(value, time.DateOnly) {
			return fmt.Sprintf("expected a date (YYYY-MM-DD), got %v", value)
		}
	case "datetime":
		if !parses(value, time.RFC3339) {
			return fmt.Sprintf("expected an RFC 3339 date-time, got %v", value)
		}
	case "anyuri":
		s, ok := value.(string)
		if !ok {
			return "expected an IRI, got " + describe(value)
		}
		if u, err := url.Parse(s); err != nil || u.Scheme == "" {
			return fmt.Sprintf("expected an absolute IRI, got %q", s)
		}
	}
	return ""
}

func parses(value any, layout string) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	_, err := time.Parse(layout, s)
	return err == nil
}

func describe(value any) string {
	switch value.(type) {
	case *kgforge.Resource:
		return "a resource"
	case string:
		return "a string"
	case int64, float64:
		return "a number"
	case bool:
		return "a boolean"
	default:
		return fmt.Sprintf("%T", value)
	}
}
