package model

import (
	"context"
	"fmt"
	"maps"
	"slices"

	kgforge "github.com/goliatone/go-kgforge"
	"github.com/goliatone/go-kgforge/pkg/mapping"
	"github.com/goliatone/go-kgforge/schema/openapi"
	"go.uber.org/zap"
)

// Shapes is the builtin schema-driven model.
type Shapes struct {
	schema     *Schema
	vocabulary *kgforge.Vocabulary
	shapes     map[string]*Shape
	logger     *zap.Logger
}

// NewShapes builds a model from a checked schema.
func NewShapes(schema *Schema, logger *zap.Logger) (*Shapes, error) {
	if schema == nil {
		return nil, &kgforge.ConfigurationError{Component: "model", Name: DefaultName, Reason: "schema is nil"}
	}
	if err := schema.Check(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Shapes{
		schema:     schema,
		vocabulary: kgforge.NewVocabulary(schema.Vocab, schema.Prefixes),
		shapes:     make(map[string]*Shape, len(schema.Shapes)),
		logger:     logger,
	}
	for i := range schema.Shapes {
		m.shapes[schema.Shapes[i].Type] = &schema.Shapes[i]
	}
	logger.Debug("shapes model ready", zap.Int("shapes", len(schema.Shapes)), zap.Int("sources", len(schema.Mappings)))
	return m, nil
}

func newShapesFromConfig(_ context.Context, cfg Config) (Model, error) {
	schema := cfg.Schema
	if schema == nil {
		if cfg.Source == "" {
			return nil, &kgforge.ConfigurationError{Component: "model", Name: DefaultName, Reason: "source or schema required"}
		}
		loaded, err := LoadSchema(cfg.Source)
		if err != nil {
			return nil, err
		}
		schema = loaded
	}
	return NewShapes(schema, cfg.Logger)
}

func (m *Shapes) Vocabulary() *kgforge.Vocabulary {
	return m.vocabulary
}

func (m *Shapes) Prefixes() map[string]string {
	return m.vocabulary.Prefixes()
}

// Types lists the shape types in declaration order.
func (m *Shapes) Types() []string {
	out := make([]string, len(m.schema.Shapes))
	for i, shape := range m.schema.Shapes {
		out[i] = shape.Type
	}
	return out
}

func (m *Shapes) shape(typ string) (*Shape, error) {
	shape, ok := m.shapes[typ]
	if !ok {
		return nil, &kgforge.ValidationError{Type: typ, Constraint: ConstraintUnknownType, Reason: fmt.Sprintf("no shape for type %q", typ)}
	}
	return shape, nil
}

// Template lists the properties of typ with empty values: "" for literals,
// nested templates for shapes, one-element lists for list properties.
func (m *Shapes) Template(typ string, onlyRequired bool) (*kgforge.Resource, error) {
	return m.template(typ, onlyRequired, map[string]bool{})
}

func (m *Shapes) template(typ string, onlyRequired bool, visiting map[string]bool) (*kgforge.Resource, error) {
	shape, err := m.shape(typ)
	if err != nil {
		return nil, err
	}
	r := kgforge.NewResource(typ)
	if visiting[typ] {
		return r, nil
	}
	visiting[typ] = true
	defer delete(visiting, typ)
	for _, prop := range shape.Properties {
		if onlyRequired && !prop.Required {
			continue
		}
		var value any = ""
		if prop.Shape != "" {
			nested, err := m.template(prop.Shape, onlyRequired, visiting)
			if err != nil {
				return nil, err
			}
			value = nested
		}
		if prop.List {
			value = []any{value}
		}
		if err := r.Set(prop.Path, value); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (m *Shapes) Validate(r *kgforge.Resource) error {
	if r == nil {
		return &kgforge.ValidationError{Constraint: ConstraintUnknownType, Reason: "resource is nil"}
	}
	return m.validate(r)
}

func (m *Shapes) ValidateMany(rs []*kgforge.Resource) error {
	var failures []kgforge.ItemError
	for i, r := range rs {
		if err := m.Validate(r); err != nil {
			failures = append(failures, kgforge.ItemError{Index: i, Err: err})
		}
	}
	if len(failures) == 0 {
		return nil
	}
	m.logger.Debug("validation failed", zap.Int("resources", len(rs)), zap.Int("failures", len(failures)))
	return &kgforge.AggregatedValidationError{Failures: failures}
}

// Sources lists the mapping sources in sorted order.
func (m *Shapes) Sources() []string {
	return slices.Sorted(maps.Keys(m.schema.Mappings))
}

func (m *Shapes) Mappings(source string) ([]string, error) {
	byType, ok := m.schema.Mappings[source]
	if !ok {
		return nil, &kgforge.NotFoundError{ID: "mappings for source " + source}
	}
	return slices.Sorted(maps.Keys(byType)), nil
}

// Mapping returns a copy of the mapping of typ for source.
func (m *Shapes) Mapping(typ, source string) (*mapping.Mapping, error) {
	mp, ok := m.schema.Mappings[source][typ]
	if !ok {
		return nil, &kgforge.NotFoundError{ID: fmt.Sprintf("mapping %s for source %s", typ, source)}
	}
	return mp.Clone(), nil
}

// JSONSchema exports the shape of typ, and the shapes it references, as an
// OpenAPI document.
func (m *Shapes) JSONSchema(typ string, opts ...openapi.GeneratorOption) (map[string]any, error) {
	if _, err := m.shape(typ); err != nil {
		return nil, err
	}
	shapes := make([]openapi.Shape, len(m.schema.Shapes))
	for i, shape := range m.schema.Shapes {
		props := make([]openapi.Property, len(shape.Properties))
		for j, prop := range shape.Properties {
			props[j] = openapi.Property{
				Path:     prop.Path,
				Datatype: prop.Datatype,
				Shape:    prop.Shape,
				List:     prop.List,
				Required: prop.Required,
				In:       prop.In,
			}
		}
		shapes[i] = openapi.Shape{Type: shape.Type, Closed: shape.Closed, Properties: props}
	}
	opts = append([]openapi.GeneratorOption{openapi.WithVocabulary(m.schema.Vocab)}, opts...)
	return openapi.Generate(shapes, typ, opts...)
}
