package forge

import (
	kgforge "github.com/goliatone/go-kgforge"
	"github.com/goliatone/go-kgforge/pkg/activity"
	"github.com/goliatone/go-kgforge/pkg/mapper"
	"github.com/goliatone/go-kgforge/pkg/model"
	"github.com/goliatone/go-kgforge/pkg/resolver"
	"github.com/goliatone/go-kgforge/pkg/store"
	"go.uber.org/zap"
)

// Option customises forge construction.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	hooks     activity.Hooks
	actor     string
	schema    *model.Schema
	stores    *store.Registry
	models    *model.Registry
	resolvers *resolver.Registry
	mappers   *mapper.Registry
	functions *kgforge.FunctionRegistry
	validate  bool
}

func defaultOptions() options {
	return options{
		logger:   zap.NewNop(),
		validate: true,
	}
}

// WithLogger routes component logs to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHooks forwards resource lifecycle events to hooks.
func WithHooks(hooks ...activity.ActivityHook) Option {
	return func(o *options) {
		o.hooks = append(o.hooks, hooks...)
	}
}

// WithActor stamps emitted events with actorID.
func WithActor(actorID string) Option {
	return func(o *options) {
		o.actor = actorID
	}
}

// WithSchema uses schema instead of reading the configured model source.
func WithSchema(schema *model.Schema) Option {
	return func(o *options) {
		o.schema = schema
	}
}

// WithStores replaces the store adapter registry.
func WithStores(registry *store.Registry) Option {
	return func(o *options) {
		o.stores = registry
	}
}

// WithModels replaces the model registry.
func WithModels(registry *model.Registry) Option {
	return func(o *options) {
		o.models = registry
	}
}

// WithResolvers replaces the resolver registry.
func WithResolvers(registry *resolver.Registry) Option {
	return func(o *options) {
		o.resolvers = registry
	}
}

// WithMappers replaces the mapper registry.
func WithMappers(registry *mapper.Registry) Option {
	return func(o *options) {
		o.mappers = registry
	}
}

// WithFunctions adds mapping functions on top of the builtins.
func WithFunctions(registry *kgforge.FunctionRegistry) Option {
	return func(o *options) {
		o.functions = registry
	}
}

// WithValidation toggles model validation on Register and Update.
func WithValidation(enabled bool) Option {
	return func(o *options) {
		o.validate = enabled
	}
}
