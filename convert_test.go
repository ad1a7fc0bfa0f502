package kgforge

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testVocabulary() *Vocabulary {
	return NewVocabulary("https://schema.org/", map[string]string{
		"ex":  "https://example.org/",
		"nsg": "https://neuroshapes.org/",
	})
}

func sampleDataset() *Resource {
	r := NewResource("Dataset")
	r.ID = "ex:ds1"
	r.MustSet("name", "Recordings")
	r.MustSet("size", 12)
	r.MustSet("keywords", []string{"ephys", "mouse"})
	r.MustSet("contributor.name", "Alice")
	r.MustSet("contributor.type", "Person")
	return r
}

func TestJSONRoundTrip(t *testing.T) {
	r := sampleDataset()
	r.Meta = Metadata{Revision: 3, Tags: map[string]int{"v1": 2}}

	plain := AsJSON(r, JSONOptions{})
	if _, ok := plain[KeyRevision]; ok {
		t.Fatalf("store metadata must be opt-in, got %#v", plain)
	}
	withMeta := AsJSON(r, JSONOptions{StoreMetadata: true})
	if withMeta[KeyRevision] != int64(3) || withMeta[KeyDeprecated] != false {
		t.Fatalf("unexpected metadata %#v", withMeta)
	}

	back, err := FromJSON(withMeta)
	if err != nil {
		t.Fatalf("from json: %v", err)
	}
	if !back.Equal(r) {
		t.Fatalf("round trip mismatch: %v vs %v", back, r)
	}
	if diff := cmp.Diff(r.Meta, back.Meta); diff != "" {
		t.Fatalf("metadata mismatch (-want +got):\n%s", diff)
	}
}

func TestFromJSONDropsNA(t *testing.T) {
	r, err := FromJSON(map[string]any{
		"type":    "Person",
		"name":    "Alice",
		"email":   "n/a",
		"age":     -1,
		"aliases": []any{"Al", "n/a"},
	}, "n/a", -1)
	if err != nil {
		t.Fatalf("from json: %v", err)
	}
	want := map[string]any{"type": "Person", "name": "Alice", "aliases": []any{"Al"}}
	if diff := cmp.Diff(want, AsJSON(r, JSONOptions{})); diff != "" {
		t.Fatalf("na handling mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshalJSONKeepsOrder(t *testing.T) {
	r := NewResource("Person")
	r.MustSet("zeta", 1)
	r.MustSet("alpha", "a")
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"type":"Person","zeta":1,"alpha":"a"}` {
		t.Fatalf("unexpected encoding %s", data)
	}

	var back Resource
	if err := json.Unmarshal([]byte(`{"id":"ex:1","zeta":1.5,"alpha":{"city":"Bern"},"_rev":2}`), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff([]string{"zeta", "alpha"}, back.Properties().Keys()); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if back.ID != "ex:1" || back.Meta.Revision != 2 {
		t.Fatalf("unexpected identity %v %+v", back.ID, back.Meta)
	}
	if city, _ := back.Get("alpha.city"); city != "Bern" {
		t.Fatalf("expected nested object, got %#v", city)
	}
}

func TestJSONLDCompactedRoundTrip(t *testing.T) {
	v := testVocabulary()
	r := sampleDataset()

	doc := AsJSONLD(v, r, LDOptions{Compacted: true})
	if diff := cmp.Diff(v.Document(), doc["@context"]); diff != "" {
		t.Fatalf("context mismatch (-want +got):\n%s", diff)
	}
	if doc["@id"] != "ex:ds1" || doc["@type"] != "Dataset" {
		t.Fatalf("unexpected identity %#v", doc)
	}
	back, err := FromJSONLD(v, doc)
	if err != nil {
		t.Fatalf("from json-ld: %v", err)
	}
	if !back.Equal(r) {
		t.Fatalf("round trip mismatch: %v vs %v", back, r)
	}
}

func TestJSONLDExpandedRoundTrip(t *testing.T) {
	v := testVocabulary()
	r := sampleDataset()

	doc := AsJSONLD(v, r, LDOptions{})
	if _, ok := doc["@context"]; ok {
		t.Fatalf("expanded documents carry no context")
	}
	name, ok := doc["https://schema.org/name"].([]any)
	if !ok || len(name) != 1 {
		t.Fatalf("expected expanded name array, got %#v", doc["https://schema.org/name"])
	}
	if diff := cmp.Diff(map[string]any{"@value": "Recordings"}, name[0]); diff != "" {
		t.Fatalf("value object mismatch (-want +got):\n%s", diff)
	}
	back, err := FromJSONLD(v, doc)
	if err != nil {
		t.Fatalf("from json-ld: %v", err)
	}
	if !back.Equal(r) {
		t.Fatalf("round trip mismatch: %v vs %v", back, r)
	}
}

func TestTriples(t *testing.T) {
	v := testVocabulary()
	r := NewResource("Person")
	r.ID = "ex:alice"
	r.MustSet("name", "Alice")
	r.MustSet("address.city", "Geneva")

	triples := AsTriples(v, r)
	want := []Triple{
		{Subject: "ex:alice", Predicate: RDFType, Object: Ref("https://schema.org/Person")},
		{Subject: "ex:alice", Predicate: "https://schema.org/name", Object: "Alice"},
		{Subject: "_:b0", Predicate: "https://schema.org/city", Object: "Geneva"},
		{Subject: "ex:alice", Predicate: "https://schema.org/address", Object: Ref("_:b0")},
	}
	if diff := cmp.Diff(want, triples); diff != "" {
		t.Fatalf("triples mismatch (-want +got):\n%s", diff)
	}

	back, err := FromTriples(v, triples)
	if err != nil {
		t.Fatalf("from triples: %v", err)
	}
	if len(back) != 1 || !back[0].Equal(r) {
		t.Fatalf("expected the nested resource back, got %v", back)
	}

	nt := NTriples(triples[:2])
	if !strings.Contains(nt, `<ex:alice> <https://schema.org/name> "Alice" .`) {
		t.Fatalf("unexpected n-triples:\n%s", nt)
	}
	if _, err := FromTriples(v, []Triple{{Subject: "ex:a"}}); err == nil {
		t.Fatalf("expected incomplete triple error")
	}
}

func TestTableRoundTrip(t *testing.T) {
	a := NewResource("Person")
	a.ID = "ex:a"
	a.MustSet("name", "Alice")
	a.MustSet("address.city", "Geneva")
	a.Meta.Revision = 1
	b := NewResource("Person")
	b.ID = "ex:b"
	b.MustSet("name", "Bob")

	opts := TableOptions{Separator: "__", StoreMetadata: true}
	table := AsTable([]*Resource{a, b}, opts)
	wantColumns := []string{"id", "type", "name", "address__city", KeyRevision, KeyDeprecated}
	if diff := cmp.Diff(wantColumns, table.Columns); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
	if table.Rows[1][table.Column("address__city")] != nil {
		t.Fatalf("missing cells should be nil")
	}

	back, err := FromTable(table, opts)
	if err != nil {
		t.Fatalf("from table: %v", err)
	}
	if !back[0].Equal(a) || !back[1].Equal(b) || back[0].Meta.Revision != 1 {
		t.Fatalf("round trip mismatch: %v", back)
	}
}

func TestTableCSV(t *testing.T) {
	r := NewResource("Dataset")
	r.MustSet("name", "Recordings")
	r.MustSet("keywords", []string{"ephys", "mouse"})
	empty := NewResource("Dataset")
	empty.MustSet("keywords", []string{"x"})

	var buf bytes.Buffer
	if err := AsTable([]*Resource{r, empty}, TableOptions{}).WriteCSV(&buf, "NA"); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	want := "type,name,keywords\nDataset,Recordings,\"[\"\"ephys\"\",\"\"mouse\"\"]\"\nDataset,NA,\"[\"\"x\"\"]\"\n"
	if buf.String() != want {
		t.Fatalf("unexpected csv:\n%s", buf.String())
	}

	table, err := ReadCSV(&buf, "NA")
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	back, err := FromTable(table, TableOptions{})
	if err != nil {
		t.Fatalf("from table: %v", err)
	}
	if !back[0].Equal(r) || !back[1].Equal(empty) {
		t.Fatalf("csv round trip mismatch: %v", back)
	}
}

func TestVocabulary(t *testing.T) {
	v := testVocabulary()
	cases := []struct{ compact, iri string }{
		{"name", "https://schema.org/name"},
		{"ex:alice", "https://example.org/alice"},
		{"nsg:Subject", "https://neuroshapes.org/Subject"},
	}
	for _, tc := range cases {
		if got := v.Expand(tc.compact); got != tc.iri {
			t.Fatalf("expand %q: got %q", tc.compact, got)
		}
		if got := v.Compact(tc.iri); got != tc.compact {
			t.Fatalf("compact %q: got %q", tc.iri, got)
		}
	}
	if got := v.Expand("_:b0"); got != "_:b0" {
		t.Fatalf("blank nodes stay as they are, got %q", got)
	}
	if got := v.Expand("unbound:x"); got != "unbound:x" {
		t.Fatalf("unknown prefixes stay compact, got %q", got)
	}
	want := "PREFIX ex: <https://example.org/>\nPREFIX nsg: <https://neuroshapes.org/>\n"
	if got := v.SPARQLPrologue(); got != want {
		t.Fatalf("unexpected prologue %q", got)
	}
	var nilVocab *Vocabulary
	if nilVocab.SPARQLPrologue() != "" || nilVocab.Expand("x") != "x" {
		t.Fatalf("nil vocabulary should be inert")
	}
}

func TestFromJSONManyCollectsFailures(t *testing.T) {
	_, err := FromJSONMany([]map[string]any{{"name": "ok"}, {"id": 7}, nil})
	var batch *BatchError
	if !errors.As(err, &batch) {
		t.Fatalf("expected batch error, got %v", err)
	}
	if diff := cmp.Diff([]int{1, 2}, batch.Indexes()); diff != "" {
		t.Fatalf("indexes mismatch (-want +got):\n%s", diff)
	}
}
