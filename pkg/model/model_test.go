package model

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	kgforge "github.com/goliatone/go-kgforge"
	"github.com/google/go-cmp/cmp"
)

const personSchema = `
vocab: https://schema.org/
prefixes:
  ex: https://example.org/
shapes:
  - type: Person
    closed: true
    properties:
      - {path: name, datatype: "xsd:string", required: true}
      - {path: age, datatype: integer}
      - {path: status, datatype: string, in: [active, retired]}
      - {path: birthDate, datatype: date}
      - {path: address, shape: PostalAddress}
      - {path: knows, shape: Person, list: true}
  - type: PostalAddress
    properties:
      - {path: city, datatype: string, required: true}
      - {path: zip, datatype: string}
mappings:
  crm:
    Person:
      rules:
        - {target: name, expression: "concat(given, family)"}
`

func mustShapes(t *testing.T, doc string) *Shapes {
	t.Helper()
	schema, err := ParseSchema([]byte(doc))
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}
	m, err := NewShapes(schema, nil)
	if err != nil {
		t.Fatalf("new shapes: %v", err)
	}
	return m
}

func person(name string) *kgforge.Resource {
	return kgforge.NewResource("Person").MustSet("name", name)
}

func TestShapesDescribeTypesAndPrefixes(t *testing.T) {
	m := mustShapes(t, personSchema)
	if diff := cmp.Diff([]string{"Person", "PostalAddress"}, m.Types()); diff != "" {
		t.Fatalf("types mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]string{"ex": "https://example.org/"}, m.Prefixes()); diff != "" {
		t.Fatalf("prefixes mismatch (-want +got):\n%s", diff)
	}
	if got := m.Vocabulary().Expand("Person"); got != "https://schema.org/Person" {
		t.Fatalf("expected vocab expansion, got %q", got)
	}
}

func TestTemplate(t *testing.T) {
	m := mustShapes(t, personSchema)
	full, err := m.Template("Person", false)
	if err != nil {
		t.Fatalf("unexpected template error: %v", err)
	}
	want := map[string]any{
		"type":      "Person",
		"name":      "",
		"age":       "",
		"status":    "",
		"birthDate": "",
		"address":   map[string]any{"type": "PostalAddress", "city": "", "zip": ""},
		"knows":     []any{map[string]any{"type": "Person"}},
	}
	if diff := cmp.Diff(want, kgforge.AsJSON(full, kgforge.JSONOptions{})); diff != "" {
		t.Fatalf("template mismatch (-want +got):\n%s", diff)
	}

	required, err := m.Template("Person", true)
	if err != nil {
		t.Fatalf("unexpected template error: %v", err)
	}
	if diff := cmp.Diff([]string{"name"}, required.Properties().Keys()); diff != "" {
		t.Fatalf("required template mismatch (-want +got):\n%s", diff)
	}

	if _, err := m.Template("Robot", false); !errors.Is(err, kgforge.ErrValidation) {
		t.Fatalf("expected unknown type error, got %v", err)
	}
}

func TestValidateViolations(t *testing.T) {
	m := mustShapes(t, personSchema)
	cases := []struct {
		name       string
		resource   *kgforge.Resource
		constraint string
		path       string
	}{
		{"unknown type", kgforge.NewResource("Robot"), ConstraintUnknownType, ""},
		{"no type", kgforge.NewResource(), ConstraintUnknownType, ""},
		{"missing required", kgforge.NewResource("Person").MustSet("age", 3), ConstraintMinCount, "name"},
		{"datatype", person("Ann").MustSet("age", "three"), ConstraintDatatype, "age"},
		{"date", person("Ann").MustSet("birthDate", "03/04/2001"), ConstraintDatatype, "birthDate"},
		{"in", person("Ann").MustSet("status", "unknown"), ConstraintIn, "status"},
		{"class", person("Ann").MustSet("address", kgforge.NewResource("Person").MustSet("name", "x")), ConstraintClass, "address"},
		{"nested", person("Ann").MustSet("address", kgforge.NewResource("PostalAddress")), ConstraintMinCount, "address.city"},
		{"list item", person("Ann").MustSet("knows", []any{person("Bo"), kgforge.NewResource("Person")}), ConstraintMinCount, "knows[1].name"},
		{"closed", person("Ann").MustSet("nickname", "A"), ConstraintClosed, "nickname"},
		{"single value", person("Ann").MustSet("age", []any{1, 2}), ConstraintDatatype, "age"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := m.Validate(tc.resource)
			var verr *kgforge.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Constraint != tc.constraint || verr.Path != tc.path {
				t.Fatalf("expected %s at %q, got %s at %q", tc.constraint, tc.path, verr.Constraint, verr.Path)
			}
			if !errors.Is(err, kgforge.ErrValidation) {
				t.Fatalf("expected ErrValidation sentinel")
			}
		})
	}
}

func TestValidateIsPureAndRepeatable(t *testing.T) {
	m := mustShapes(t, personSchema)
	valid := person("Ann").MustSet("age", 41).MustSet("address", map[string]any{"type": "PostalAddress", "city": "Lyon"})
	valid.Meta.Synced = true
	before := valid.Clone()
	for range 3 {
		if err := m.Validate(valid); err != nil {
			t.Fatalf("unexpected validation error: %v", err)
		}
	}
	if !before.Equal(valid) || !valid.Meta.Synced {
		t.Fatalf("validation mutated the resource")
	}

	invalid := person("Ann").MustSet("status", "gone")
	first := m.Validate(invalid)
	second := m.Validate(invalid)
	if first == nil || first.Error() != second.Error() {
		t.Fatalf("repeated validation disagrees: %v vs %v", first, second)
	}
}

func TestValidateMany(t *testing.T) {
	m := mustShapes(t, personSchema)
	err := m.ValidateMany([]*kgforge.Resource{person("Ann"), kgforge.NewResource("Robot"), person("Bo"), kgforge.NewResource("Person")})
	var agg *kgforge.AggregatedValidationError
	if !errors.As(err, &agg) {
		t.Fatalf("expected AggregatedValidationError, got %v", err)
	}
	indexes := make([]int, len(agg.Failures))
	for i, failure := range agg.Failures {
		indexes[i] = failure.Index
	}
	if diff := cmp.Diff([]int{1, 3}, indexes); diff != "" {
		t.Fatalf("failure indexes mismatch (-want +got):\n%s", diff)
	}
	if err := m.ValidateMany([]*kgforge.Resource{person("Ann")}); err != nil {
		t.Fatalf("expected nil for valid list, got %v", err)
	}
}

func TestBuildValidatesOrderedFields(t *testing.T) {
	m := mustShapes(t, personSchema)
	r, err := Build(m, "Person", Field{"name", "Ann"}, Field{"age", 41}, Field{"address.city", "Lyon"}, Field{"address.type", "PostalAddress"})
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	if diff := cmp.Diff([]string{"name", "age", "address"}, r.Properties().Keys()); diff != "" {
		t.Fatalf("field order mismatch (-want +got):\n%s", diff)
	}
	if _, err := Build(m, "Person", Field{"age", 41}); !errors.Is(err, kgforge.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMappings(t *testing.T) {
	m := mustShapes(t, personSchema)
	if diff := cmp.Diff([]string{"crm"}, m.Sources()); diff != "" {
		t.Fatalf("sources mismatch (-want +got):\n%s", diff)
	}
	types, err := m.Mappings("crm")
	if err != nil {
		t.Fatalf("unexpected mappings error: %v", err)
	}
	if diff := cmp.Diff([]string{"Person"}, types); diff != "" {
		t.Fatalf("mapping types mismatch (-want +got):\n%s", diff)
	}
	mp, err := m.Mapping("Person", "crm")
	if err != nil {
		t.Fatalf("unexpected mapping error: %v", err)
	}
	if mp.Type != "Person" || len(mp.Rules) != 1 {
		t.Fatalf("unexpected mapping: %+v", mp)
	}
	mp.Rules = nil
	again, _ := m.Mapping("Person", "crm")
	if len(again.Rules) != 1 {
		t.Fatalf("mapping should be returned as a copy")
	}
	if _, err := m.Mapping("Place", "crm"); !errors.Is(err, kgforge.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := m.Mappings("erp"); !errors.Is(err, kgforge.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSchemaCheckRejectsBrokenShapes(t *testing.T) {
	cases := map[string]string{
		"duplicate type":    "shapes: [{type: A}, {type: A}]",
		"unknown datatype":  "shapes: [{type: A, properties: [{path: x, datatype: color}]}]",
		"unknown shape":     "shapes: [{type: A, properties: [{path: x, shape: B}]}]",
		"reserved path":     "shapes: [{type: A, properties: [{path: _rev}]}]",
		"dotted path":       "shapes: [{type: A, properties: [{path: a.b}]}]",
		"mapping type":      "shapes: [{type: A}]\nmappings: {crm: {B: {rules: [{target: x, source: y}]}}}",
		"invalid mapping":   "shapes: [{type: A}]\nmappings: {crm: {A: {rules: [{target: x}]}}}",
		"unknown field key": "shapes: [{type: A, open: true}]",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseSchema([]byte(doc)); err == nil {
				t.Fatalf("expected schema error")
			}
		})
	}
}

func TestRegistryLoadsSchemaDirectory(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.yaml":          "vocab: https://schema.org/\nshapes: [{type: Person, properties: [{path: name, datatype: string}]}]\n",
		"nested/b.json":   `{"prefixes": {"ex": "https://example.org/"}, "shapes": [{"type": "Place"}]}`,
		"nested/skip.txt": "not a schema",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	m, err := NewRegistry().New(context.Background(), Config{Source: dir})
	if err != nil {
		t.Fatalf("unexpected model error: %v", err)
	}
	if diff := cmp.Diff([]string{"Person", "Place"}, m.Types()); diff != "" {
		t.Fatalf("types mismatch (-want +got):\n%s", diff)
	}
	if m.Prefixes()["ex"] != "https://example.org/" {
		t.Fatalf("expected merged prefixes, got %v", m.Prefixes())
	}

	if _, err := NewRegistry().New(context.Background(), Config{Name: "owl"}); !errors.Is(err, kgforge.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := NewRegistry().New(context.Background(), Config{}); !errors.Is(err, kgforge.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing source, got %v", err)
	}
}

func TestJSONSchema(t *testing.T) {
	m := mustShapes(t, personSchema)
	doc, err := m.JSONSchema("PostalAddress")
	if err != nil {
		t.Fatalf("unexpected schema error: %v", err)
	}
	if doc["openapi"] != "3.0.3" {
		t.Fatalf("expected openapi version, got %v", doc["openapi"])
	}
	if _, err := m.JSONSchema("Robot"); !errors.Is(err, kgforge.ErrValidation) {
		t.Fatalf("expected unknown type error, got %v", err)
	}
}
