// Package model binds semantic types to property shapes. A Model produces
// resource templates, validates resources and holds the mappings that turn
// source records into resources of its types.
//
// Models are built by name through a Registry. The builtin "shapes" model
// reads a declarative schema:
//
//	vocab: https://schema.org/
//	prefixes:
//	  ex: https://example.org/
//	shapes:
//	  - type: Person
//	    closed: true
//	    properties:
//	      - {path: name, datatype: string, required: true}
//	      - {path: address, shape: PostalAddress}
//	mappings:
//	  crm:
//	    Person:
//	      rules:
//	        - {target: name, source: full_name}
package model

import (
	"context"
	"slices"
	"sync"

	kgforge "github.com/goliatone/go-kgforge"
	"github.com/goliatone/go-kgforge/pkg/mapping"
	"go.uber.org/zap"
)

// DefaultName is the model used when none is configured.
const DefaultName = "shapes"

// Violation classes reported in ValidationError.Constraint.
const (
	ConstraintUnknownType = "UnknownType"
	ConstraintMinCount    = "MinCount"
	ConstraintDatatype    = "Datatype"
	ConstraintClass       = "Class"
	ConstraintIn          = "In"
	ConstraintClosed      = "Closed"
)

// Model is the schema contract used by the forge.
type Model interface {
	Vocabulary() *kgforge.Vocabulary
	Prefixes() map[string]string
	Types() []string
	// Template returns an empty resource of typ listing its properties.
	Template(typ string, onlyRequired bool) (*kgforge.Resource, error)
	// Validate returns the first violation found in r as a ValidationError.
	Validate(r *kgforge.Resource) error
	// ValidateMany checks every resource and returns an
	// AggregatedValidationError, or nil when all are valid.
	ValidateMany(rs []*kgforge.Resource) error
	Sources() []string
	// Mappings lists the types that have a mapping for source.
	Mappings(source string) ([]string, error)
	Mapping(typ, source string) (*mapping.Mapping, error)
}

// Config selects and configures a model.
type Config struct {
	Name string
	// Source is a schema file or a directory of schema files.
	Source string
	// Schema is used instead of Source when set.
	Schema *Schema
	Logger *zap.Logger
}

// Factory builds a model from configuration.
type Factory func(ctx context.Context, cfg Config) (Model, error)

// Registry resolves model names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry holding the builtin shapes model.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{
		DefaultName: newShapesFromConfig,
	}}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return &kgforge.ConfigurationError{Component: "model", Name: name, Reason: "registration needs a name and a factory"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
	return nil
}

// Names lists the registered models.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New builds the model named by cfg.Name, DefaultName when empty.
func (r *Registry) New(ctx context.Context, cfg Config) (Model, error) {
	name := cfg.Name
	if name == "" {
		name = DefaultName
	}
	r.mu.RLock()
	factory := r.factories[name]
	r.mu.RUnlock()
	if factory == nil {
		return nil, &kgforge.ConfigurationError{Component: "model", Name: name, Reason: "unknown model"}
	}
	return factory(ctx, cfg)
}

// Field is one entry of an ordered property bag.
type Field struct {
	Path  string
	Value any
}

// Build creates a resource of typ from fields, in order, and validates it
// against m before returning it.
func Build(m Model, typ string, fields ...Field) (*kgforge.Resource, error) {
	r := kgforge.NewResource(typ)
	for _, field := range fields {
		if err := r.Set(field.Path, field.Value); err != nil {
			return nil, err
		}
	}
	if err := m.Validate(r); err != nil {
		return nil, err
	}
	return r, nil
}
