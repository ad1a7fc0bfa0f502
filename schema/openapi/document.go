package openapi

import (
	"fmt"
	"sort"
	"strings"
)

type openAPIDocumentBuilder struct {
	config   generatorConfig
	registry *componentRegistry
	rootNode *schemaNode
}

func newOpenAPIDocumentBuilder(config generatorConfig, registry *componentRegistry, root *schemaNode) *openAPIDocumentBuilder {
	return &openAPIDocumentBuilder{
		config:   config,
		registry: registry,
		rootNode: root,
	}
}

func (b *openAPIDocumentBuilder) build() (map[string]any, error) {
	if b.rootNode == nil {
		return nil, fmt.Errorf("openapi: root schema node cannot be nil")
	}

	var body map[string]any
	if b.config.rootComponent != "" {
		body = map[string]any{"$ref": b.registry.forceReference(b.config.rootComponent, b.rootNode)}
		b.registerDescendants(b.config.rootComponent, b.rootNode)
	} else {
		body = b.schemaFor(b.rootNode, b.rootType())
	}

	info := map[string]any{"title": b.config.title, "version": b.config.version}
	if b.config.description != "" {
		info["description"] = b.config.description
	}
	document := map[string]any{
		"openapi": b.config.openAPIVersion,
		"info":    info,
		"paths":   b.registration(body),
	}
	if components := b.registry.componentsMap(); components != nil {
		document["components"] = map[string]any{"schemas": components}
	}
	return document, nil
}

func (b *openAPIDocumentBuilder) rootType() string {
	if b.rootNode.shapeType != "" {
		return localName(b.rootNode.shapeType)
	}
	return "Root"
}

// registration describes the single POST that registers a resource of the
// root type. 409 is the store's revision conflict.
func (b *openAPIDocumentBuilder) registration(body map[string]any) map[string]any {
	typ := b.rootType()
	operation := map[string]any{
		"operationId": "register" + typ,
		"summary":     "Register a " + typ,
		"requestBody": map[string]any{
			"required": true,
			"content": map[string]any{
				b.config.contentType: map[string]any{"schema": body},
			},
		},
		"responses": map[string]any{
			"201": map[string]any{"description": "Registered"},
			"400": map[string]any{"description": "Resource does not conform to " + typ},
			"409": map[string]any{"description": "Revision conflict"},
		},
	}
	return map[string]any{b.config.path(typ): map[string]any{"post": operation}}
}

func (b *openAPIDocumentBuilder) schemaFor(node *schemaNode, nameHint string) map[string]any {
	if node == nil {
		return map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}

	// Only objects and arrays are worth sharing as components.
	useRegistry := node.Type == "object" || node.Type == "array"
	if useRegistry {
		if ref := b.registry.register(nameHint, node); ref != "" {
			return map[string]any{"$ref": ref}
		}
	}

	result := node.baseMap()

	if len(node.Properties) > 0 || node.Type == "object" {
		props := make(map[string]any, len(node.Properties))
		for _, key := range sortedNames(node.Properties) {
			child := node.Properties[key]
			props[key] = b.schemaFor(child, childHint(nameHint, key, child))
		}
		result["properties"] = props
	}

	if len(node.Required) > 0 {
		required := append([]string{}, node.Required...)
		sort.Strings(required)
		result["required"] = required
	}

	if node.Items != nil {
		result["items"] = b.schemaFor(node.Items, combineComponentName(nameHint, "item"))
	}

	node.copyExtensions(result)

	return result
}

func (b *openAPIDocumentBuilder) registerDescendants(nameHint string, node *schemaNode) {
	if node == nil {
		return
	}
	if len(node.Properties) > 0 {
		for _, key := range sortedNames(node.Properties) {
			child := node.Properties[key]
			b.schemaFor(child, childHint(nameHint, key, child))
		}
	}
	if node.Items != nil {
		b.schemaFor(node.Items, combineComponentName(nameHint, "item"))
	}
}

// childHint names nested shapes after their type and everything else after
// the property path.
func childHint(parent, key string, child *schemaNode) string {
	if child != nil && child.shapeType != "" {
		return localName(child.shapeType)
	}
	return combineComponentName(parent, key)
}

func localName(term string) string {
	if i := strings.LastIndexAny(term, "/#:"); i >= 0 && i < len(term)-1 {
		return term[i+1:]
	}
	return term
}

func combineComponentName(parts ...string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	if len(filtered) == 0 {
		return "Schema"
	}
	return strings.Join(filtered, "_")
}
