package store

import (
	"fmt"
	"strconv"
	"strings"

	kgforge "github.com/goliatone/go-kgforge"
)

// Filter operators.
const (
	OpEqual        = "eq"
	OpNotEqual     = "ne"
	OpLess         = "lt"
	OpLessEqual    = "le"
	OpGreater      = "gt"
	OpGreaterEqual = "ge"
	OpContains     = "contains"
)

// Filter compares the value at a dotted path. An empty Operator is OpEqual.
// The paths "id" and "type" address identity; a list value matches when any
// element does.
type Filter struct {
	Path     string
	Operator string
	Value    any
}

// Query selects resources for Search.
type Query struct {
	Filters []Filter
	// Limit caps the result size; zero means no limit.
	Limit             int
	Offset            int
	IncludeDeprecated bool
}

// ParseFilter reads "path op value" or "path=value" shorthands.
func ParseFilter(expr string) (Filter, error) {
	if path, value, ok := strings.Cut(expr, "="); ok && !strings.ContainsAny(path, " ") {
		return Filter{Path: strings.TrimSpace(path), Operator: OpEqual, Value: strings.TrimSpace(value)}, nil
	}
	fields := strings.SplitN(strings.TrimSpace(expr), " ", 3)
	if len(fields) != 3 {
		return Filter{}, fmt.Errorf("kgforge: filter %q: expected \"path op value\"", expr)
	}
	f := Filter{Path: fields[0], Operator: fields[1], Value: strings.TrimSpace(fields[2])}
	return f, f.Validate()
}

// Validate checks the path and operator.
func (f Filter) Validate() error {
	if f.Path == "" {
		return fmt.Errorf("kgforge: filter: empty path")
	}
	switch f.operator() {
	case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpContains:
		return nil
	default:
		return fmt.Errorf("kgforge: filter %s: unknown operator %q", f.Path, f.Operator)
	}
}

func (f Filter) operator() string {
	if f.Operator == "" {
		return OpEqual
	}
	return f.Operator
}

// Validate checks every filter and the pagination bounds.
func (q Query) Validate() error {
	if q.Limit < 0 || q.Offset < 0 {
		return fmt.Errorf("kgforge: query: negative limit or offset")
	}
	for _, f := range q.Filters {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Matches reports whether r satisfies q, deprecation included.
func (q Query) Matches(r *kgforge.Resource) bool {
	if r == nil {
		return false
	}
	if r.Meta.Deprecated && !q.IncludeDeprecated {
		return false
	}
	for _, f := range q.Filters {
		if !f.Matches(r) {
			return false
		}
	}
	return true
}

// Matches reports whether r satisfies f.
func (f Filter) Matches(r *kgforge.Resource) bool {
	value, ok := r.Get(f.Path)
	op := f.operator()
	if !ok {
		return op == OpNotEqual
	}
	if op == OpNotEqual {
		return !anyValue(value, func(v any) bool { return compare(OpEqual, v, f.Value) })
	}
	return anyValue(value, func(v any) bool { return compare(op, v, f.Value) })
}

// Page applies offset and limit to items.
func Page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func anyValue(value any, fn func(any) bool) bool {
	switch typed := value.(type) {
	case []any:
		for _, item := range typed {
			if fn(item) {
				return true
			}
		}
		return false
	case []string:
		for _, item := range typed {
			if fn(item) {
				return true
			}
		}
		return false
	case *kgforge.Resource:
		return fn(typed.ID)
	default:
		return fn(value)
	}
}

func compare(op string, value, want any) bool {
	switch op {
	case OpEqual:
		return kgforge.ValuesEqual(value, want) || textOf(value) == textOf(want)
	case OpContains:
		return strings.Contains(strings.ToLower(textOf(value)), strings.ToLower(textOf(want)))
	}
	cmp, ok := order(value, want)
	if !ok {
		return false
	}
	switch op {
	case OpLess:
		return cmp < 0
	case OpLessEqual:
		return cmp <= 0
	case OpGreater:
		return cmp > 0
	case OpGreaterEqual:
		return cmp >= 0
	}
	return false
}

// order compares numerically when both sides are numbers, lexically when both
// are strings.
func order(a, b any) (int, bool) {
	x, xok := number(a)
	y, yok := number(b)
	if xok && yok {
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		default:
			return 0, true
		}
	}
	s, sok := a.(string)
	t, tok := b.(string)
	if sok && tok {
		return strings.Compare(s, t), true
	}
	return 0, false
}

func number(value any) (float64, bool) {
	switch typed := value.(type) {
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		return f, err == nil
	}
	return 0, false
}

func textOf(value any) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}
