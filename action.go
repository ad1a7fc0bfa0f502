package kgforge

import (
	"context"
	"fmt"
	"sync"
)

// ActionKind tags the pending operation carried by a LazyAction.
type ActionKind string

const (
	// ActionUpload uploads a local file, directory or glob when materialized.
	ActionUpload ActionKind = "upload"
)

// Thunk performs the deferred work of a LazyAction.
type Thunk func(ctx context.Context, path string) (any, error)

// LazyAction pairs a target path with an unexecuted thunk. It is materialized
// exactly once, by the store at registration time; later calls to Execute
// return the first outcome.
type LazyAction struct {
	Kind ActionKind
	Path string

	thunk  Thunk
	once   sync.Once
	done   bool
	result any
	err    error
}

// NewLazyAction builds a pending operation of kind for path.
func NewLazyAction(kind ActionKind, path string, thunk Thunk) *LazyAction {
	return &LazyAction{Kind: kind, Path: path, thunk: thunk}
}

// Execute runs the thunk the first time it is called.
func (a *LazyAction) Execute(ctx context.Context) (any, error) {
	if a == nil {
		return nil, fmt.Errorf("kgforge: nil lazy action")
	}
	a.once.Do(func() {
		a.done = true
		if a.thunk == nil {
			a.err = fmt.Errorf("kgforge: %s action for %q has no thunk", a.Kind, a.Path)
			return
		}
		a.result, a.err = a.thunk(ctx, a.Path)
		if a.result != nil {
			normalized, err := NormalizeValue(a.result)
			if err != nil {
				a.err = fmt.Errorf("kgforge: %s action for %q: %w", a.Kind, a.Path, err)
				a.result = nil
				return
			}
			a.result = normalized
		}
	})
	return a.result, a.err
}

// Executed reports whether the thunk already ran.
func (a *LazyAction) Executed() bool {
	return a != nil && a.done
}

func (a *LazyAction) String() string {
	if a == nil {
		return "LazyAction(<nil>)"
	}
	return fmt.Sprintf("LazyAction(%s, %s)", a.Kind, a.Path)
}

// PendingActions lists the dotted paths holding unexecuted actions, in
// property order. List elements are addressed as path[i].
func (r *Resource) PendingActions() []string {
	if r == nil {
		return nil
	}
	var out []string
	walkActions(r, "", func(path string, action *LazyAction) {
		if !action.Executed() {
			out = append(out, path)
		}
	})
	return out
}

// ExecuteActions materializes every LazyAction in r, replacing each with its
// result. The first failure stops the walk and is returned.
func ExecuteActions(ctx context.Context, r *Resource) error {
	if r == nil {
		return nil
	}
	return executeIn(ctx, r, "")
}

func executeIn(ctx context.Context, r *Resource, prefix string) error {
	for _, key := range r.props.Keys() {
		value, _ := r.props.Get(key)
		path := joinPath(prefix, key)
		replaced, err := executeValue(ctx, value, path)
		if err != nil {
			return err
		}
		r.props.Set(key, replaced)
	}
	return nil
}

func executeValue(ctx context.Context, value any, path string) (any, error) {
	switch typed := value.(type) {
	case *LazyAction:
		result, err := typed.Execute(ctx)
		if err != nil {
			return nil, fmt.Errorf("kgforge: materialize %s at %s: %w", typed.Kind, path, err)
		}
		return result, nil
	case *Resource:
		if err := executeIn(ctx, typed, path); err != nil {
			return nil, err
		}
		return typed, nil
	case []any:
		for i, item := range typed {
			replaced, err := executeValue(ctx, item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			typed[i] = replaced
		}
		return typed, nil
	default:
		return value, nil
	}
}

func walkActions(r *Resource, prefix string, fn func(string, *LazyAction)) {
	r.props.Range(func(key string, value any) bool {
		walkActionValue(value, joinPath(prefix, key), fn)
		return true
	})
}

func walkActionValue(value any, path string, fn func(string, *LazyAction)) {
	switch typed := value.(type) {
	case *LazyAction:
		fn(path, typed)
	case *Resource:
		walkActions(typed, path, fn)
	case []any:
		for i, item := range typed {
			walkActionValue(item, fmt.Sprintf("%s[%d]", path, i), fn)
		}
	}
}
