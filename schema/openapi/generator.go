// Package openapi exports resource shapes as OpenAPI 3 documents. The root
// shape becomes the request body of a single registration operation; shapes
// used more than once are published under components.
package openapi

import "fmt"

// Generator renders shape graphs with a fixed configuration.
type Generator struct {
	config generatorConfig
}

// NewGenerator constructs a generator from options.
func NewGenerator(opts ...GeneratorOption) Generator {
	cfg := defaultGeneratorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return Generator{config: cfg}
}

// Generate builds the document for the shape named root.
func (g Generator) Generate(shapes []Shape, root string) (map[string]any, error) {
	if root == "" {
		return nil, fmt.Errorf("openapi: root shape type required")
	}
	node, err := buildShapeGraph(shapes, root, g.config)
	if err != nil {
		return nil, err
	}
	return newOpenAPIDocumentBuilder(g.config, newComponentRegistry(), node).build()
}

// Generate is NewGenerator(opts...).Generate(shapes, root).
func Generate(shapes []Shape, root string, opts ...GeneratorOption) (map[string]any, error) {
	return NewGenerator(opts...).Generate(shapes, root)
}
