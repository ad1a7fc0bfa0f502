// Package mapper applies mapping documents to source records, producing
// resources. Mappers are built by type name through a Registry; the builtin
// types are dictionary mappers over the expr, cel and js expression engines.
package mapper

import (
	"context"
	"fmt"
	"slices"
	"sync"

	kgforge "github.com/goliatone/go-kgforge"
	"github.com/goliatone/go-kgforge/pkg/mapping"
	"go.uber.org/zap"
)

// DefaultType is the mapper type used when none is configured.
const DefaultType = kgforge.EngineExpr

// Mapper projects source records onto resources following a mapping.
type Mapper interface {
	Map(ctx context.Context, record any, m *mapping.Mapping, opts ...Option) (*kgforge.Resource, error)
	// MapMany maps every record independently. Results keep input positions;
	// failed records are nil and reported in one BatchError. A rule cycle
	// aborts the call before any record is mapped.
	MapMany(ctx context.Context, records []any, m *mapping.Mapping, opts ...Option) ([]*kgforge.Resource, error)
}

// Option configures a mapper or a single mapping call.
type Option func(*config)

type config struct {
	na         []any
	nullMarker any
	functions  *kgforge.FunctionRegistry
	cache      kgforge.ProgramCache
	logger     *zap.Logger
}

func applyOptions(base config, opts []Option) config {
	cfg := base
	cfg.na = slices.Clone(base.na)
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	return cfg
}

// WithNA marks source values that stand for a missing value.
func WithNA(values ...any) Option {
	return func(cfg *config) {
		cfg.na = append(cfg.na, values...)
	}
}

// WithNullMarker sets the value substituted for na source values. The default
// marker is nil, which leaves the target unset.
func WithNullMarker(marker any) Option {
	return func(cfg *config) {
		cfg.nullMarker = marker
	}
}

// WithFunctions adds functions callable from expressions, on top of the
// builtin ones. Only honored when building a mapper.
func WithFunctions(registry *kgforge.FunctionRegistry) Option {
	return func(cfg *config) {
		cfg.functions = cfg.functions.Merge(registry)
	}
}

// WithProgramCache shares compiled programs between mappers. Only honored
// when building a mapper.
func WithProgramCache(cache kgforge.ProgramCache) Option {
	return func(cfg *config) {
		cfg.cache = cache
	}
}

// WithLogger sets the logger used for mapping and expression events.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// Factory builds a mapper from options.
type Factory func(opts ...Option) (Mapper, error)

// Registry resolves mapper type names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry holding the builtin expr, cel and js types.
func NewRegistry() *Registry {
	r := &Registry{factories: map[string]Factory{}}
	for _, engine := range []string{kgforge.EngineExpr, kgforge.EngineCEL, kgforge.EngineJS} {
		r.factories[engine] = dictionaryFactory(engine)
	}
	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("kgforge: mapper registration needs a name and a factory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
	return nil
}

// Types lists the registered mapper types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New builds a mapper of the given type; an empty type selects DefaultType.
func (r *Registry) New(typ string, opts ...Option) (Mapper, error) {
	if typ == "" {
		typ = DefaultType
	}
	r.mu.RLock()
	factory := r.factories[typ]
	r.mu.RUnlock()
	if factory == nil {
		return nil, &kgforge.ConfigurationError{Component: "mapper", Name: typ, Reason: "unknown mapper type"}
	}
	return factory(opts...)
}

// New builds a builtin mapper of the given type.
func New(typ string, opts ...Option) (Mapper, error) {
	return NewRegistry().New(typ, opts...)
}
