package kgforge

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func reshapeFixture() *Resource {
	r := NewResource("Dataset")
	r.ID = "ex:ds"
	r.Meta.Revision = 4
	r.MustSet("name", "Recordings")
	r.MustSet("description", "Patch clamp")
	r.MustSet("contributor", map[string]any{"id": "ex:alice", "name": "Alice", "email": "a@example.org"})
	r.MustSet("distribution", []any{
		map[string]any{"name": "a.csv", "contentUrl": "file:///a.csv"},
		map[string]any{"name": "b.csv", "contentUrl": "file:///b.csv"},
	})
	return r
}

func TestReshapeKeepsPaths(t *testing.T) {
	got, err := Reshape(reshapeFixture(), []string{"id", "type", "name", "contributor.name", "distribution.contentUrl"}, nil)
	if err != nil {
		t.Fatalf("reshape: %v", err)
	}
	want := map[string]any{
		"id":          "ex:ds",
		"type":        "Dataset",
		"name":        "Recordings",
		"contributor": map[string]any{"name": "Alice"},
		"distribution": []any{
			map[string]any{"contentUrl": "file:///a.csv"},
			map[string]any{"contentUrl": "file:///b.csv"},
		},
	}
	if diff := cmp.Diff(want, AsJSON(got, JSONOptions{StoreMetadata: true})); diff != "" {
		t.Fatalf("reshape mismatch (-want +got):\n%s", diff)
	}
}

func TestReshapeKeepsWholeNestedResources(t *testing.T) {
	got, err := Reshape(reshapeFixture(), []string{"contributor"}, nil)
	if err != nil {
		t.Fatalf("reshape: %v", err)
	}
	contributor, _ := got.Get("contributor")
	nested, ok := contributor.(*Resource)
	if !ok || nested.ID != "ex:alice" || nested.Properties().Len() != 2 {
		t.Fatalf("expected the whole contributor, got %#v", contributor)
	}
}

func TestReshapeVersionedIDs(t *testing.T) {
	versioned := func(r *Resource) string {
		return r.ID + "@rev"
	}
	got, err := Reshape(reshapeFixture(), []string{"id", "contributor.id"}, versioned)
	if err != nil {
		t.Fatalf("reshape: %v", err)
	}
	if got.ID != "ex:ds@rev" {
		t.Fatalf("expected versioned id, got %q", got.ID)
	}
	if id, _ := got.Get("contributor.id"); id != "ex:alice@rev" {
		t.Fatalf("expected versioned nested id, got %#v", id)
	}
}

func TestReshapeMissingPath(t *testing.T) {
	if _, err := Reshape(reshapeFixture(), []string{"license"}, nil); err == nil {
		t.Fatalf("expected missing path error")
	}
	_, err := ReshapeMany([]*Resource{reshapeFixture(), NewResource("Dataset")}, []string{"name"}, nil)
	batch, ok := err.(*BatchError)
	if !ok {
		t.Fatalf("expected batch error, got %v", err)
	}
	if diff := cmp.Diff([]int{1}, batch.Indexes()); diff != "" {
		t.Fatalf("indexes mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectValues(t *testing.T) {
	other := NewResource("Dataset")
	other.MustSet("distribution", map[string]any{"contentUrl": "file:///c.csv"})

	got, err := CollectValues([]*Resource{reshapeFixture(), other}, "distribution.contentUrl")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	want := []any{"file:///a.csv", "file:///b.csv", "file:///c.csv"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
	if _, err := CollectValues([]*Resource{NewResource()}, "distribution.contentUrl"); err == nil {
		t.Fatalf("expected missing path error")
	}
}
