// Package storetest holds the behavior every store.Adapter must share.
// Adapter packages run it from their own tests:
//
//	func TestContract(t *testing.T) {
//		storetest.Run(t, func(t *testing.T) store.Adapter { return memory.New(store.Config{}) })
//	}
package storetest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	kgforge "github.com/goliatone/go-kgforge"
	"github.com/goliatone/go-kgforge/pkg/store"
)

// NewAdapter returns a fresh, empty adapter.
type NewAdapter func(t *testing.T) store.Adapter

// Run checks the adapter contract against fresh adapters from newAdapter.
func Run(t *testing.T, newAdapter NewAdapter) {
	t.Helper()
	cases := []struct {
		name string
		fn   func(t *testing.T, a store.Adapter)
	}{
		{"register assigns revision one", registerAssignsRevisionOne},
		{"update checks expected revision", updateChecksExpectedRevision},
		{"deprecate blocks writes", deprecateBlocksWrites},
		{"retrieve by revision and tag", retrieveByRevisionAndTag},
		{"search is stable", searchIsStable},
		{"files round trip", filesRoundTrip},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newAdapter(t))
		})
	}
}

func person(name string) *kgforge.Resource {
	r := kgforge.NewResource("Person")
	r.MustSet("name", name)
	return r
}

func registerAssignsRevisionOne(t *testing.T, a store.Adapter) {
	ctx := context.Background()
	r := person("Alice")
	r.MustSet("address.city", "Lisbon")
	r.MustSet("age", 30)
	state, err := a.Register(ctx, r)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if state.ID == "" || state.Revision != 1 || state.Deprecated {
		t.Fatalf("unexpected state %+v", state)
	}
	got, err := a.Retrieve(ctx, state.ID, store.Version{})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	want := r.Clone()
	want.ID = state.ID
	if !got.Equal(want) {
		t.Fatalf("retrieved %v, want %v", got, want)
	}
	if got.Meta.Revision != 1 {
		t.Fatalf("expected revision 1, got %d", got.Meta.Revision)
	}
	if keys := got.Properties().Keys(); len(keys) != 3 || keys[0] != "name" || keys[2] != "age" {
		t.Fatalf("expected property order to survive, got %v", keys)
	}

	again := person("Alice")
	again.ID = state.ID
	if _, err := a.Register(ctx, again); !errors.Is(err, kgforge.ErrInvalidResourceState) {
		t.Fatalf("expected duplicate id to be rejected, got %v", err)
	}
}

func updateChecksExpectedRevision(t *testing.T, a store.Adapter) {
	ctx := context.Background()
	r := person("Alice")
	state, err := a.Register(ctx, r)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	r.ID = state.ID
	r.MustSet("name", "Alicia")
	next, err := a.Update(ctx, r, 1)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if next.Revision != 2 {
		t.Fatalf("expected revision 2, got %d", next.Revision)
	}

	_, err = a.Update(ctx, r, 1)
	var conflict *kgforge.RevisionConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected revision conflict, got %v", err)
	}
	if conflict.Expected != 1 || conflict.Actual != 2 {
		t.Fatalf("unexpected conflict %+v", conflict)
	}

	missing := person("Nobody")
	missing.ID = "urn:missing"
	if _, err := a.Update(ctx, missing, 1); !errors.Is(err, kgforge.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func deprecateBlocksWrites(t *testing.T, a store.Adapter) {
	ctx := context.Background()
	r := person("Alice")
	state, err := a.Register(ctx, r)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	r.ID = state.ID
	deprecated, err := a.Deprecate(ctx, r.ID, 1)
	if err != nil {
		t.Fatalf("deprecate: %v", err)
	}
	if deprecated.Revision != 2 || !deprecated.Deprecated {
		t.Fatalf("unexpected state %+v", deprecated)
	}
	if _, err := a.Update(ctx, r, 2); !errors.Is(err, kgforge.ErrInvalidResourceState) {
		t.Fatalf("expected update of deprecated to fail, got %v", err)
	}
	if _, err := a.Deprecate(ctx, r.ID, 2); !errors.Is(err, kgforge.ErrInvalidResourceState) {
		t.Fatalf("expected second deprecate to fail, got %v", err)
	}
	if err := a.Tag(ctx, r.ID, 2, "final"); err != nil {
		t.Fatalf("tag deprecated: %v", err)
	}
	got, err := a.Retrieve(ctx, r.ID, store.Version{})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if !got.Meta.Deprecated || got.Meta.Tags["final"] != 2 {
		t.Fatalf("unexpected metadata %+v", got.Meta)
	}
	if name, _ := got.Get("name"); name != "Alice" {
		t.Fatalf("expected deprecated revision to keep properties, got %v", name)
	}
}

func retrieveByRevisionAndTag(t *testing.T, a store.Adapter) {
	ctx := context.Background()
	r := person("Alice")
	state, err := a.Register(ctx, r)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	r.ID = state.ID
	if err := a.Tag(ctx, r.ID, 1, "v1.0"); err != nil {
		t.Fatalf("tag: %v", err)
	}
	r.MustSet("name", "Alicia")
	if _, err := a.Update(ctx, r, 1); err != nil {
		t.Fatalf("update: %v", err)
	}

	cases := []struct {
		version store.Version
		name    string
		rev     int
	}{
		{store.Version{}, "Alicia", 2},
		{store.Version{Revision: 1}, "Alice", 1},
		{store.Version{Tag: "v1.0"}, "Alice", 1},
	}
	for _, tc := range cases {
		got, err := a.Retrieve(ctx, r.ID, tc.version)
		if err != nil {
			t.Fatalf("retrieve %s: %v", tc.version, err)
		}
		if name, _ := got.Get("name"); name != tc.name || got.Meta.Revision != tc.rev {
			t.Fatalf("retrieve %s: got %v at %d", tc.version, name, got.Meta.Revision)
		}
	}

	for _, version := range []store.Version{{Revision: 9}, {Tag: "v2.0"}} {
		if _, err := a.Retrieve(ctx, r.ID, version); !errors.Is(err, kgforge.ErrNotFound) {
			t.Fatalf("retrieve %s: expected not found, got %v", version, err)
		}
	}
	if _, err := a.Retrieve(ctx, "urn:missing", store.Version{}); !errors.Is(err, kgforge.ErrNotFound) {
		t.Fatalf("expected not found for unknown id, got %v", err)
	}
	if err := a.Tag(ctx, r.ID, 7, "bad"); !errors.Is(err, kgforge.ErrNotFound) {
		t.Fatalf("expected tag of unknown revision to fail, got %v", err)
	}
}

func searchIsStable(t *testing.T, a store.Adapter) {
	ctx := context.Background()
	var ids []string
	for i, name := range []string{"Carol", "Alice", "Bob", "Dave"} {
		r := person(name)
		r.MustSet("rank", i)
		state, err := a.Register(ctx, r)
		if err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
		ids = append(ids, state.ID)
	}
	if _, err := a.Deprecate(ctx, ids[3], 1); err != nil {
		t.Fatalf("deprecate: %v", err)
	}

	names := func(rs []*kgforge.Resource) []string {
		out := []string{}
		for _, r := range rs {
			name, _ := r.Get("name")
			out = append(out, name.(string))
		}
		return out
	}

	all, err := a.Search(ctx, store.Query{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if got := names(all); !slices.Equal(got, []string{"Carol", "Alice", "Bob"}) {
		t.Fatalf("expected registration order without deprecated, got %v", got)
	}

	withDeprecated, err := a.Search(ctx, store.Query{IncludeDeprecated: true})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(withDeprecated) != 4 {
		t.Fatalf("expected deprecated resources on request, got %d", len(withDeprecated))
	}

	page, err := a.Search(ctx, store.Query{Limit: 2, Offset: 1, IncludeDeprecated: true})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	again, err := a.Search(ctx, store.Query{Limit: 2, Offset: 1, IncludeDeprecated: true})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if got := names(page); !slices.Equal(got, []string{"Alice", "Bob"}) || !slices.Equal(got, names(again)) {
		t.Fatalf("unexpected page %v then %v", got, names(again))
	}

	filtered, err := a.Search(ctx, store.Query{Filters: []store.Filter{{Path: "rank", Operator: store.OpGreaterEqual, Value: 1}}})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if got := names(filtered); !slices.Equal(got, []string{"Alice", "Bob"}) {
		t.Fatalf("unexpected filtered result %v", got)
	}
}

func filesRoundTrip(t *testing.T, a store.Adapter) {
	ctx := context.Background()
	file := store.File{Name: "notes.txt", ContentType: "text/plain", Size: 5, Data: []byte("hello")}
	r, err := a.Upload(ctx, file)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	location, ok := r.Get("contentUrl")
	if !ok {
		t.Fatalf("expected contentUrl on %v", r)
	}
	dir := t.TempDir()
	path, err := a.Download(ctx, location.(string), dir)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if filepath.Base(path) != "notes.txt" {
		t.Fatalf("unexpected path %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("unexpected content %q", data)
	}
	if _, err := a.Download(ctx, "urn:missing", dir); !errors.Is(err, kgforge.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
