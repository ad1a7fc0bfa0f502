package kgforge

import (
	"fmt"
	"strings"
)

// VersionedFunc renders the revision-pinned id of a resource.
type VersionedFunc func(r *Resource) string

// Reshape projects r onto the keep paths. A path naming a nested resource keeps
// it whole; lists are reshaped element by element. When versioned is set, kept
// ids are rewritten with it.
func Reshape(r *Resource, keep []string, versioned VersionedFunc) (*Resource, error) {
	if r == nil {
		return nil, nil
	}
	var roots []string
	leafs := map[string][]string{}
	for _, path := range keep {
		root, rest, nested := strings.Cut(path, ".")
		if _, seen := leafs[root]; !seen {
			roots = append(roots, root)
			leafs[root] = nil
		}
		if nested {
			leafs[root] = append(leafs[root], rest)
		}
	}

	out := &Resource{}
	for _, root := range roots {
		switch root {
		case "id":
			if r.ID == "" {
				return nil, fmt.Errorf("kgforge: reshape: path %q not found", root)
			}
			out.ID = r.ID
			if versioned != nil {
				out.ID = versioned(r)
			}
			continue
		case "type":
			out.Types = append([]string(nil), r.Types...)
			continue
		}
		value, ok := r.props.Get(root)
		if !ok {
			return nil, fmt.Errorf("kgforge: reshape: path %q not found", root)
		}
		reshaped, err := reshapeValue(value, leafs[root], versioned)
		if err != nil {
			return nil, err
		}
		out.props.Set(root, reshaped)
	}
	return out, nil
}

// ReshapeMany reshapes every resource, collecting failures by position.
func ReshapeMany(rs []*Resource, keep []string, versioned VersionedFunc) ([]*Resource, error) {
	out := make([]*Resource, len(rs))
	var failures []ItemError
	for i, r := range rs {
		reshaped, err := Reshape(r, keep, versioned)
		if err != nil {
			failures = append(failures, ItemError{Index: i, Err: err})
			continue
		}
		out[i] = reshaped
	}
	return out, NewBatchError("reshape", len(rs), failures)
}

func reshapeValue(value any, leafs []string, versioned VersionedFunc) (any, error) {
	switch typed := value.(type) {
	case *Resource:
		if len(leafs) == 0 {
			clone := typed.Clone()
			clone.Meta = Metadata{}
			return clone, nil
		}
		return Reshape(typed, leafs, versioned)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			reshaped, err := reshapeValue(item, leafs, versioned)
			if err != nil {
				return nil, err
			}
			out[i] = reshaped
		}
		return out, nil
	default:
		return cloneValue(value), nil
	}
}

// CollectValues gathers the leaf values reached by the dotted follow path
// across rs, in order.
func CollectValues(rs []*Resource, follow string) ([]any, error) {
	var out []any
	for i, r := range rs {
		reshaped, err := Reshape(r, []string{follow}, nil)
		if err != nil {
			return nil, fmt.Errorf("kgforge: follow %q on item %d: %w", follow, i, err)
		}
		out = appendLeaves(out, reshaped)
	}
	return out, nil
}

func appendLeaves(out []any, value any) []any {
	switch typed := value.(type) {
	case *Resource:
		if typed.ID != "" {
			out = append(out, typed.ID)
		}
		typed.props.Range(func(_ string, item any) bool {
			out = appendLeaves(out, item)
			return true
		})
	case []any:
		for _, item := range typed {
			out = appendLeaves(out, item)
		}
	case nil, *LazyAction:
	default:
		out = append(out, typed)
	}
	return out
}
