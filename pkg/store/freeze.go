package store

import (
	"context"
	"strconv"
	"strings"

	kgforge "github.com/goliatone/go-kgforge"
)

// VersionedID renders id pinned to revision with template.
func VersionedID(template, id string, revision int) string {
	if template == "" {
		template = DefaultVersionedTemplate
	}
	return strings.NewReplacer("{id}", id, "{rev}", strconv.Itoa(revision)).Replace(template)
}

// Versioned returns the function Reshape uses to pin kept ids.
func (s *Store) Versioned() kgforge.VersionedFunc {
	return func(r *kgforge.Resource) string {
		if r.Meta.Revision <= 0 {
			return r.ID
		}
		return VersionedID(s.template, r.ID, r.Meta.Revision)
	}
}

// Freeze returns a copy of r whose id and nested resource ids are pinned to
// revisions. Nested revisions come from the nested value, then from the
// session cache, and are retrieved from the backend only when both are
// unknown. r is left untouched.
func (s *Store) Freeze(ctx context.Context, r *kgforge.Resource) (*kgforge.Resource, error) {
	if err := registered(r, "freeze"); err != nil {
		return nil, err
	}
	out := r.Clone()
	if err := s.freezeNode(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// FreezeMany freezes every resource. Results keep input positions and are nil
// for failed items.
func (s *Store) FreezeMany(ctx context.Context, rs []*kgforge.Resource) ([]*kgforge.Resource, error) {
	out := make([]*kgforge.Resource, len(rs))
	var failures []kgforge.ItemError
	for i, r := range rs {
		frozen, err := s.Freeze(ctx, r)
		if err != nil {
			failures = append(failures, kgforge.ItemError{Index: i, Err: err})
			continue
		}
		out[i] = frozen
	}
	return out, kgforge.NewBatchError("freeze", len(rs), failures)
}

func (s *Store) freezeNode(ctx context.Context, r *kgforge.Resource) error {
	props := r.Properties()
	for _, key := range props.Keys() {
		value, _ := props.Get(key)
		frozen, err := s.freezeValue(ctx, value)
		if err != nil {
			return err
		}
		props.Set(key, frozen)
	}
	if r.ID == "" || s.pinned(r.ID) {
		return nil
	}
	revision, err := s.revisionOf(ctx, r)
	if err != nil {
		return err
	}
	r.ID = VersionedID(s.template, r.ID, revision)
	return nil
}

func (s *Store) freezeValue(ctx context.Context, value any) (any, error) {
	switch typed := value.(type) {
	case *kgforge.Resource:
		if err := s.freezeNode(ctx, typed); err != nil {
			return nil, err
		}
		return typed, nil
	case []any:
		for i, item := range typed {
			frozen, err := s.freezeValue(ctx, item)
			if err != nil {
				return nil, err
			}
			typed[i] = frozen
		}
		return typed, nil
	default:
		return value, nil
	}
}

func (s *Store) revisionOf(ctx context.Context, r *kgforge.Resource) (int, error) {
	if r.Meta.Revision > 0 {
		return r.Meta.Revision, nil
	}
	if known, ok := s.Known(r.ID); ok && known.Revision > 0 {
		return known.Revision, nil
	}
	latest, err := s.Retrieve(ctx, r.ID, Version{})
	if err != nil {
		return 0, err
	}
	return latest.Meta.Revision, nil
}

// pinned reports whether id already carries the revision part of the template.
func (s *Store) pinned(id string) bool {
	_, rest, ok := strings.Cut(s.template, "{id}")
	if !ok {
		return false
	}
	marker, _, ok := strings.Cut(rest, "{rev}")
	return ok && marker != "" && strings.Contains(id, marker)
}
