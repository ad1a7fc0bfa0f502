package openapi

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/zeebo/blake3"
)

// Shape describes the properties a resource of Type carries.
type Shape struct {
	Type       string
	Closed     bool
	Properties []Property
}

// Property is one constrained property of a shape. Shape names the type of a
// nested resource; Datatype is used for literal values.
type Property struct {
	Path     string
	Datatype string
	Shape    string
	List     bool
	Required bool
	In       []any
}

type schemaNode struct {
	Type       string
	Format     string
	Properties map[string]*schemaNode
	Required   []string
	Items      *schemaNode
	Enum       []any
	Closed     bool
	// shapeType is the declaring shape of object nodes.
	shapeType  string
	extensions map[string]any
}

func newObjectNode() *schemaNode {
	return &schemaNode{
		Type:       "object",
		Properties: map[string]*schemaNode{},
	}
}

func (n *schemaNode) baseMap() map[string]any {
	result := map[string]any{}
	if n.Type != "" {
		result["type"] = n.Type
	}
	if n.Format != "" {
		result["format"] = n.Format
	}
	if len(n.Enum) > 0 {
		result["enum"] = n.Enum
	}
	if n.Closed {
		result["additionalProperties"] = false
	}
	return result
}

func (n *schemaNode) inlineOpenAPI() map[string]any {
	result := n.baseMap()

	if len(n.Properties) > 0 || n.Type == "object" {
		props := make(map[string]any, len(n.Properties))
		for _, name := range sortedNames(n.Properties) {
			props[name] = n.Properties[name].inlineOpenAPI()
		}
		result["properties"] = props
	}
	if len(n.Required) > 0 {
		required := slices.Clone(n.Required)
		slices.Sort(required)
		result["required"] = required
	}
	if n.Items != nil {
		result["items"] = n.Items.inlineOpenAPI()
	}
	n.copyExtensions(result)
	return result
}

func (n *schemaNode) copyExtensions(result map[string]any) {
	for _, key := range sortedNames(n.extensions) {
		result[key] = n.extensions[key]
	}
}

func (n *schemaNode) setExtension(key string, value any) {
	if n.extensions == nil {
		n.extensions = map[string]any{}
	}
	n.extensions[key] = value
}

// Digest identifies structurally equal nodes so they can share a component.
func (n *schemaNode) Digest() string {
	data, err := json.Marshal(n.inlineOpenAPI())
	if err != nil {
		return ""
	}
	sum := blake3.Sum256(data)
	return fmt.Sprintf("%x", sum[:])
}

type graphBuilder struct {
	shapes  map[string]Shape
	config  generatorConfig
	visited map[string]bool
}

// buildShapeGraph resolves the shape named root, and the shapes its
// properties reference, into a schema tree. A shape reached again while it is
// being built is cut to a bare object.
func buildShapeGraph(shapes []Shape, root string, config generatorConfig) (*schemaNode, error) {
	b := &graphBuilder{shapes: map[string]Shape{}, config: config, visited: map[string]bool{}}
	for _, shape := range shapes {
		if _, exists := b.shapes[shape.Type]; exists {
			return nil, fmt.Errorf("openapi: shape %q declared twice", shape.Type)
		}
		b.shapes[shape.Type] = shape
	}
	return b.buildShape(root)
}

func (b *graphBuilder) buildShape(typ string) (*schemaNode, error) {
	shape, ok := b.shapes[typ]
	if !ok {
		return nil, fmt.Errorf("openapi: unknown shape %q", typ)
	}
	node := newObjectNode()
	node.shapeType = typ
	b.annotate(node, "x-rdf-type", typ)
	if b.visited[typ] {
		return node, nil
	}
	b.visited[typ] = true
	defer delete(b.visited, typ)

	node.Closed = shape.Closed
	node.Properties["id"] = &schemaNode{Type: "string", Format: "uri-reference"}
	node.Properties["type"] = &schemaNode{Type: "string", Enum: []any{typ}}
	node.Required = append(node.Required, "type")
	for _, prop := range shape.Properties {
		name, _, nested := strings.Cut(prop.Path, ".")
		if nested {
			return nil, fmt.Errorf("openapi: shape %q property %q: dotted paths unsupported", typ, prop.Path)
		}
		child, err := b.buildProperty(prop)
		if err != nil {
			return nil, fmt.Errorf("openapi: shape %q property %q: %w", typ, prop.Path, err)
		}
		node.Properties[name] = child
		if prop.Required {
			node.Required = append(node.Required, name)
		}
	}
	return node, nil
}

func (b *graphBuilder) buildProperty(prop Property) (*schemaNode, error) {
	var node *schemaNode
	if prop.Shape != "" {
		nested, err := b.buildShape(prop.Shape)
		if err != nil {
			return nil, err
		}
		node = nested
	} else {
		node = datatypeNode(prop.Datatype)
		if len(prop.In) > 0 {
			node.Enum = slices.Clone(prop.In)
		}
		b.annotate(node, "x-rdf-path", prop.Path)
	}
	if !prop.List {
		return node, nil
	}
	return &schemaNode{Type: "array", Items: node}, nil
}

func (b *graphBuilder) annotate(node *schemaNode, key, term string) {
	if b.config.noExtensions {
		return
	}
	if b.config.vocab != "" && !strings.Contains(term, ":") {
		term = b.config.vocab + term
	}
	node.setExtension(key, term)
}

// datatypeNode maps shape datatypes, with or without the xsd: prefix, to
// OpenAPI types. Unknown datatypes accept any value.
func datatypeNode(datatype string) *schemaNode {
	switch strings.TrimPrefix(strings.ToLower(datatype), "xsd:") {
	case "string":
		return &schemaNode{Type: "string"}
	case "integer", "int", "long":
		return &schemaNode{Type: "integer"}
	case "number", "decimal", "double", "float":
		return &schemaNode{Type: "number"}
	case "boolean":
		return &schemaNode{Type: "boolean"}
	case "date":
		return &schemaNode{Type: "string", Format: "date"}
	case "datetime":
		return &schemaNode{Type: "string", Format: "date-time"}
	case "anyuri", "iri":
		return &schemaNode{Type: "string", Format: "uri"}
	default:
		return &schemaNode{}
	}
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
