package kgforge

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Metadata is store-owned state kept apart from user properties.
type Metadata struct {
	Revision   int            `json:"_rev,omitempty"`
	Synced     bool           `json:"-"`
	Deprecated bool           `json:"_deprecated,omitempty"`
	Tags       map[string]int `json:"_tags,omitempty"`
}

// Registered reports whether the resource was assigned a revision by a store.
func (m Metadata) Registered() bool {
	return m.Revision > 0
}

func (m Metadata) clone() Metadata {
	out := m
	if m.Tags != nil {
		out.Tags = maps.Clone(m.Tags)
	}
	return out
}

// Resource is a graph node: identity, semantic types, ordered properties and
// store metadata.
type Resource struct {
	ID    string
	Types []string
	Meta  Metadata

	props Properties
}

// NewResource returns an unsynced resource with the given types.
func NewResource(types ...string) *Resource {
	return &Resource{Types: slices.Clone(types)}
}

// Properties returns the ordered property bag. The returned pointer aliases the
// resource; mutating it clears nothing, prefer Set for tracked writes.
func (r *Resource) Properties() *Properties {
	return &r.props
}

// HasType reports whether typ is one of the resource types.
func (r *Resource) HasType(typ string) bool {
	return r != nil && slices.Contains(r.Types, typ)
}

// Get reads the value at a dotted path. The leaves "id" and "type" read the
// identity of the addressed resource.
func (r *Resource) Get(path string) (any, bool) {
	if r == nil || path == "" {
		return nil, false
	}
	segments := strings.Split(path, ".")
	current := r
	for i, segment := range segments {
		last := i == len(segments)-1
		switch segment {
		case "id":
			if !last || current.ID == "" {
				return nil, false
			}
			return current.ID, true
		case "type":
			if !last || len(current.Types) == 0 {
				return nil, false
			}
			if len(current.Types) == 1 {
				return current.Types[0], true
			}
			return stringsToAny(current.Types), true
		}
		value, ok := current.props.Get(segment)
		if !ok {
			return nil, false
		}
		if last {
			return value, true
		}
		next, ok := value.(*Resource)
		if !ok {
			return nil, false
		}
		current = next
	}
	return nil, false
}

// Set writes value at a dotted path, creating intermediate resources as needed.
// The write marks the resource as not synced.
func (r *Resource) Set(path string, value any) error {
	if r == nil {
		return fmt.Errorf("kgforge: set %q on nil resource", path)
	}
	if path == "" {
		return fmt.Errorf("kgforge: property path must not be empty")
	}
	segments := strings.Split(path, ".")
	current := r
	for i, segment := range segments {
		if segment == "" {
			return fmt.Errorf("kgforge: invalid path %q: empty segment", path)
		}
		last := i == len(segments)-1
		if last {
			break
		}
		if err := checkPropertyName(segment); err != nil {
			return fmt.Errorf("%w: %q in path %q", ErrReservedProperty, segment, path)
		}
		existing, ok := current.props.Get(segment)
		next, isResource := existing.(*Resource)
		if !ok || !isResource {
			next = &Resource{}
			current.props.Set(segment, next)
		}
		current = next
	}
	leaf := segments[len(segments)-1]
	r.Meta.Synced = false
	switch leaf {
	case "id":
		id, ok := value.(string)
		if !ok && value != nil {
			return fmt.Errorf("kgforge: id must be a string, got %T", value)
		}
		current.ID = id
		return nil
	case "type":
		types, err := toTypes(value)
		if err != nil {
			return err
		}
		current.Types = types
		return nil
	}
	if err := checkPropertyName(leaf); err != nil {
		return fmt.Errorf("%w: %q", ErrReservedProperty, leaf)
	}
	normalized, err := NormalizeValue(value)
	if err != nil {
		return fmt.Errorf("kgforge: set %q: %w", path, err)
	}
	current.props.Set(leaf, normalized)
	return nil
}

// MustSet is Set for literals known to be valid; it panics on error.
func (r *Resource) MustSet(path string, value any) *Resource {
	if err := r.Set(path, value); err != nil {
		panic(err)
	}
	return r
}

// Delete removes the value at a dotted path.
func (r *Resource) Delete(path string) bool {
	if r == nil || path == "" {
		return false
	}
	segments := strings.Split(path, ".")
	current := r
	for _, segment := range segments[:len(segments)-1] {
		value, ok := current.props.Get(segment)
		if !ok {
			return false
		}
		next, ok := value.(*Resource)
		if !ok {
			return false
		}
		current = next
	}
	leaf := segments[len(segments)-1]
	var removed bool
	switch leaf {
	case "id":
		removed = current.ID != ""
		current.ID = ""
	case "type":
		removed = len(current.Types) > 0
		current.Types = nil
	default:
		removed = current.props.Delete(leaf)
	}
	if removed {
		r.Meta.Synced = false
	}
	return removed
}

// Paths lists the dotted paths of every leaf value in property order. Nested
// resources contribute their own leaves; lists are a single leaf.
func (r *Resource) Paths() []string {
	if r == nil {
		return nil
	}
	var out []string
	collectPaths(r, "", &out)
	return out
}

func collectPaths(r *Resource, prefix string, out *[]string) {
	for _, key := range r.props.Keys() {
		value, _ := r.props.Get(key)
		path := joinPath(prefix, key)
		if nested, ok := value.(*Resource); ok && nested.props.Len() > 0 {
			collectPaths(nested, path, out)
			continue
		}
		*out = append(*out, path)
	}
}

// Clone returns a deep copy, including metadata. Pending actions are shared so
// they still run at most once.
func (r *Resource) Clone() *Resource {
	if r == nil {
		return nil
	}
	return &Resource{
		ID:    r.ID,
		Types: slices.Clone(r.Types),
		Meta:  r.Meta.clone(),
		props: r.props.clone(),
	}
}

// Equal compares identity, types and properties. Store metadata and sync state
// are ignored; numeric values compare by value.
func (r *Resource) Equal(other *Resource) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.ID != other.ID || !slices.Equal(r.Types, other.Types) {
		return false
	}
	return r.props.equal(&other.props)
}

func (r *Resource) String() string {
	if r == nil {
		return "Resource(<nil>)"
	}
	return fmt.Sprintf("Resource(id=%q, type=%v, properties=%v)", r.ID, r.Types, r.props.Keys())
}

func checkPropertyName(name string) error {
	if name == "" || name == "id" || name == "type" || strings.HasPrefix(name, "_") || strings.HasPrefix(name, "@") {
		return ErrReservedProperty
	}
	return nil
}

// IsReservedProperty reports whether name cannot be used as a user property.
func IsReservedProperty(name string) bool {
	return checkPropertyName(name) != nil
}

func toTypes(value any) ([]string, error) {
	switch typed := value.(type) {
	case nil:
		return nil, nil
	case string:
		if typed == "" {
			return nil, nil
		}
		return []string{typed}, nil
	case []string:
		return slices.Clone(typed), nil
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("kgforge: type must be a string, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("kgforge: type must be a string or list of strings, got %T", value)
	}
}

func stringsToAny(values []string) []any {
	out := make([]any, len(values))
	for i, value := range values {
		out[i] = value
	}
	return out
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + "." + segment
}
