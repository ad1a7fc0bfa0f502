package openapi

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var personShapes = []Shape{
	{
		Type:   "Person",
		Closed: true,
		Properties: []Property{
			{Path: "name", Datatype: "xsd:string", Required: true},
			{Path: "age", Datatype: "integer"},
			{Path: "status", Datatype: "string", In: []any{"active", "retired"}},
			{Path: "home", Shape: "Place"},
			{Path: "work", Shape: "Place"},
			{Path: "knows", Shape: "Person", List: true},
		},
	},
	{
		Type: "Place",
		Properties: []Property{
			{Path: "city", Datatype: "string", Required: true},
		},
	},
}

func TestNewGeneratorOptions(t *testing.T) {
	g := NewGenerator(
		WithOpenAPIVersion("3.1.0"),
		WithInfo("Sensors", "", "sensor shapes"),
		WithPath("/v2/{type}s"),
		WithContentType("application/json"),
	)
	want := generatorConfig{
		openAPIVersion: "3.1.0",
		title:          "Sensors",
		version:        "1.0.0",
		description:    "sensor shapes",
		pathTemplate:   "/v2/{type}s",
		contentType:    "application/json",
	}
	if diff := cmp.Diff(want, g.config, cmp.AllowUnexported(generatorConfig{})); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	if got := g.config.path("nsg:Sensor"); got != "/v2/Sensors" {
		t.Fatalf("expected local type name in path, got %q", got)
	}
}

func TestGenerateRegistrationOperation(t *testing.T) {
	doc, err := Generate(personShapes, "Place", WithInfo("", "", "places"))
	if err != nil {
		t.Fatalf("unexpected generate error: %v", err)
	}
	info := doc["info"].(map[string]any)
	if info["title"] != "Resource Shapes" || info["description"] != "places" {
		t.Fatalf("unexpected info %v", info)
	}
	operation := doc["paths"].(map[string]any)["/resources/Place"].(map[string]any)["post"].(map[string]any)
	if operation["operationId"] != "registerPlace" {
		t.Fatalf("unexpected operation id %v", operation["operationId"])
	}
	responses := operation["responses"].(map[string]any)
	for _, status := range []string{"201", "400", "409"} {
		if _, ok := responses[status]; !ok {
			t.Fatalf("missing %s response", status)
		}
	}
}

func TestGenerateInlinesRootAndSharesRepeatedShapes(t *testing.T) {
	doc, err := Generate(personShapes, "Person")
	if err != nil {
		t.Fatalf("unexpected generate error: %v", err)
	}
	schema := requestSchema(t, doc, "/resources/Person")

	if diff := cmp.Diff([]string{"name", "type"}, schema["required"]); diff != "" {
		t.Fatalf("required mismatch (-want +got):\n%s", diff)
	}
	if schema["additionalProperties"] != false {
		t.Fatalf("closed shape should forbid additional properties: %v", schema)
	}
	if schema["x-rdf-type"] != "Person" {
		t.Fatalf("expected x-rdf-type Person, got %v", schema["x-rdf-type"])
	}

	props := schema["properties"].(map[string]any)
	status := props["status"].(map[string]any)
	if diff := cmp.Diff([]any{"active", "retired"}, status["enum"]); diff != "" {
		t.Fatalf("enum mismatch (-want +got):\n%s", diff)
	}
	if got := props["age"].(map[string]any)["type"]; got != "integer" {
		t.Fatalf("expected integer age, got %v", got)
	}

	work := props["work"].(map[string]any)
	if work["$ref"] != "#/components/schemas/Place" {
		t.Fatalf("second use of Place should reference a component, got %v", work)
	}
	components := doc["components"].(map[string]any)["schemas"].(map[string]any)
	place := components["Place"].(map[string]any)
	if diff := cmp.Diff([]string{"city", "type"}, place["required"]); diff != "" {
		t.Fatalf("component required mismatch (-want +got):\n%s", diff)
	}

	knows := props["knows"].(map[string]any)
	if knows["type"] != "array" {
		t.Fatalf("list property should be an array, got %v", knows)
	}
}

func TestGenerateWithRootComponentAndVocabulary(t *testing.T) {
	doc, err := Generate(personShapes, "Place",
		WithRootComponent("Place"),
		WithVocabulary("https://schema.org/"),
	)
	if err != nil {
		t.Fatalf("unexpected generate error: %v", err)
	}
	schema := requestSchema(t, doc, "/resources/Place")
	if schema["$ref"] != "#/components/schemas/Place" {
		t.Fatalf("expected root reference, got %v", schema)
	}
	place := doc["components"].(map[string]any)["schemas"].(map[string]any)["Place"].(map[string]any)
	if place["x-rdf-type"] != "https://schema.org/Place" {
		t.Fatalf("expected expanded type, got %v", place["x-rdf-type"])
	}
}

func TestGenerateWithoutExtensions(t *testing.T) {
	doc, err := Generate(personShapes, "Place", WithoutExtensions())
	if err != nil {
		t.Fatalf("unexpected generate error: %v", err)
	}
	schema := requestSchema(t, doc, "/resources/Place")
	for key := range schema {
		if strings.HasPrefix(key, "x-") {
			t.Fatalf("unexpected extension %q", key)
		}
	}
}

func TestGenerateRejectsUnknownShapes(t *testing.T) {
	if _, err := Generate(personShapes, "Robot"); err == nil {
		t.Fatalf("expected unknown root error")
	}
	broken := []Shape{{Type: "A", Properties: []Property{{Path: "b", Shape: "B"}}}}
	if _, err := Generate(broken, "A"); err == nil {
		t.Fatalf("expected unknown nested shape error")
	}
	if _, err := Generate(append(broken, broken...), "A"); err == nil {
		t.Fatalf("expected duplicate shape error")
	}
}

func TestSanitizeComponentName(t *testing.T) {
	cases := map[string]string{
		"Person":        "Person",
		"schema:Person": "schema_Person",
		"1st place":     "_1st_place",
		"__Trailing__":  "Trailing",
		"":              "",
	}
	for input, want := range cases {
		if got := sanitizeComponentName(input); got != want {
			t.Fatalf("sanitize(%q): expected %q, got %q", input, want, got)
		}
	}
}

func requestSchema(t *testing.T, doc map[string]any, path string) map[string]any {
	t.Helper()
	paths := doc["paths"].(map[string]any)
	operation := paths[path].(map[string]any)["post"].(map[string]any)
	content := operation["requestBody"].(map[string]any)["content"].(map[string]any)
	return content["application/ld+json"].(map[string]any)["schema"].(map[string]any)
}
