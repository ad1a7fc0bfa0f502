package openapi

import "strings"

const typePlaceholder = "{type}"

type generatorConfig struct {
	openAPIVersion string
	title          string
	version        string
	description    string
	pathTemplate   string
	contentType    string
	rootComponent  string
	vocab          string
	noExtensions   bool
}

func defaultGeneratorConfig() generatorConfig {
	return generatorConfig{
		openAPIVersion: "3.0.3",
		title:          "Resource Shapes",
		version:        "1.0.0",
		pathTemplate:   "/resources/" + typePlaceholder,
		contentType:    "application/ld+json",
	}
}

// path renders the registration path for typ.
func (c generatorConfig) path(typ string) string {
	return strings.ReplaceAll(c.pathTemplate, typePlaceholder, localName(typ))
}

// GeneratorOption configures the OpenAPI generator behaviour.
type GeneratorOption func(*generatorConfig)

// WithOpenAPIVersion overrides the OpenAPI version string (default: 3.0.3).
func WithOpenAPIVersion(version string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if version != "" {
			cfg.openAPIVersion = version
		}
	}
}

// WithInfo sets the info block. Empty title and version keep the defaults.
func WithInfo(title, version, description string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if title != "" {
			cfg.title = title
		}
		if version != "" {
			cfg.version = version
		}
		cfg.description = description
	}
}

// WithPath sets the registration path. A "{type}" segment is replaced with
// the local name of the root shape type.
func WithPath(template string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if template != "" {
			cfg.pathTemplate = template
		}
	}
}

// WithContentType sets the request body media type (default:
// application/ld+json).
func WithContentType(contentType string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if contentType != "" {
			cfg.contentType = contentType
		}
	}
}

// WithRootComponent publishes the root shape under components with the
// provided name instead of inlining it in the request body.
func WithRootComponent(name string) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.rootComponent = name
	}
}

// WithVocabulary emits x-rdf-type and x-rdf-path extensions, expanding terms
// against vocab. Without it the extensions carry the compact terms.
func WithVocabulary(vocab string) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.vocab = vocab
	}
}

// WithoutExtensions drops the x-rdf-* extensions from the document.
func WithoutExtensions() GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.noExtensions = true
	}
}
