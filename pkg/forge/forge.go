// Package forge composes the model, mapper, resolvers and store declared by a
// config.Config into one session facade.
//
//	cfg, err := config.LoadFile("forge.yaml")
//	if err != nil {
//		return err
//	}
//	f, err := forge.New(ctx, cfg, forge.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer f.Close()
//
//	person, _ := f.Template("Person", true)
//	person.MustSet("name", "Alice")
//	if err := f.Register(ctx, person); err != nil {
//		return err
//	}
package forge

import (
	"context"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"strings"

	kgforge "github.com/goliatone/go-kgforge"
	"github.com/goliatone/go-kgforge/pkg/activity"
	"github.com/goliatone/go-kgforge/pkg/config"
	"github.com/goliatone/go-kgforge/pkg/mapper"
	"github.com/goliatone/go-kgforge/pkg/mapping"
	"github.com/goliatone/go-kgforge/pkg/model"
	"github.com/goliatone/go-kgforge/pkg/resolver"
	"github.com/goliatone/go-kgforge/pkg/store"
	"github.com/goliatone/go-kgforge/pkg/store/memory"
	"github.com/goliatone/go-kgforge/pkg/store/sqlite"
	"go.uber.org/zap"
)

// Forge is one configured knowledge-graph session.
type Forge struct {
	cfg        config.Config
	vocab      *kgforge.Vocabulary
	model      model.Model
	mapper     mapper.Mapper
	scopes     *resolver.Scopes
	store      *store.Store
	formatters map[string]string
	logger     *zap.Logger
}

// DefaultStores returns a registry holding the memory and sqlite adapters.
func DefaultStores() *store.Registry {
	registry := store.NewRegistry()
	_ = registry.Register(memory.Name, memory.Factory)
	_ = registry.Register(sqlite.Name, sqlite.Factory)
	return registry
}

// New builds a forge from cfg. Configuration errors surface as
// *kgforge.ConfigurationError.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Forge, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.stores == nil {
		o.stores = DefaultStores()
	}
	if o.models == nil {
		o.models = model.NewRegistry()
	}
	if o.resolvers == nil {
		o.resolvers = resolver.NewRegistry()
	}
	if o.mappers == nil {
		o.mappers = mapper.NewRegistry()
	}

	f := &Forge{
		cfg:        cfg,
		formatters: maps.Clone(cfg.Formatters),
		logger:     o.logger,
	}

	if cfg.Model.Origin == config.OriginStore && o.schema == nil {
		return nil, &kgforge.ConfigurationError{Component: "model", Name: cfg.Model.Name, Reason: "origin store is not supported, load the schema from a file or directory"}
	}
	m, err := o.models.New(ctx, model.Config{
		Name:   cfg.Model.Name,
		Source: cfg.Model.Source,
		Schema: o.schema,
		Logger: o.logger.Named("model"),
	})
	if err != nil {
		return nil, err
	}
	f.model = m
	f.vocab = buildVocabulary(m, cfg)

	mapperOpts := []mapper.Option{
		mapper.WithLogger(o.logger.Named("mapper")),
		mapper.WithProgramCache(kgforge.NewMemoryProgramCache()),
	}
	if o.functions != nil {
		mapperOpts = append(mapperOpts, mapper.WithFunctions(kgforge.DefaultFunctions().Merge(o.functions)))
	}
	f.mapper, err = o.mappers.New(cfg.Mapper, mapperOpts...)
	if err != nil {
		return nil, err
	}

	f.scopes, err = buildScopes(ctx, cfg, o.resolvers, f.mapper, o.logger.Named("resolver"))
	if err != nil {
		return nil, err
	}

	adapter, err := o.stores.New(ctx, store.Config{
		Name:                cfg.Store.Name,
		Endpoint:            cfg.Store.Endpoint,
		Bucket:              cfg.Store.Bucket,
		Token:               cfg.Store.Token,
		VersionedIDTemplate: cfg.Store.VersionedIDTemplate,
		Options:             cfg.Store.Options,
		Logger:              o.logger.Named("store"),
	})
	if err != nil {
		return nil, err
	}
	storeOpts := []store.Option{
		store.WithVocabulary(f.vocab),
		store.WithVersionedTemplate(cfg.Store.VersionedIDTemplate),
		store.WithBucket(cfg.Store.Bucket),
		store.WithLogger(o.logger.Named("store")),
		store.WithActor(o.actor),
	}
	if o.validate {
		storeOpts = append(storeOpts, store.WithValidator(m))
	}
	if len(o.hooks) > 0 {
		storeOpts = append(storeOpts, store.WithEmitter(activity.NewEmitter(o.hooks, activity.Config{Enabled: true})))
	}
	f.store = store.New(adapter, storeOpts...)

	f.logger.Debug("forge ready",
		zap.String("model", cfg.Model.Name),
		zap.String("store", cfg.Store.Name),
		zap.Strings("scopes", f.scopes.Names()),
	)
	return f, nil
}

// buildVocabulary layers the configured prefixes and vocab over the model's.
func buildVocabulary(m model.Model, cfg config.Config) *kgforge.Vocabulary {
	prefixes := maps.Clone(m.Prefixes())
	if prefixes == nil {
		prefixes = map[string]string{}
	}
	maps.Copy(prefixes, cfg.Prefixes)
	vocab := cfg.Vocab
	if vocab == "" && m.Vocabulary() != nil {
		vocab = m.Vocabulary().Vocab
	}
	return kgforge.NewVocabulary(vocab, prefixes)
}

func buildScopes(ctx context.Context, cfg config.Config, registry *resolver.Registry, m mapper.Mapper, logger *zap.Logger) (*resolver.Scopes, error) {
	scopes := resolver.NewScopes()
	for _, scope := range cfg.Scopes() {
		for _, rc := range cfg.Resolvers[scope] {
			if rc.Origin == config.OriginStore {
				return nil, &kgforge.ConfigurationError{Component: "resolver", Name: rc.Name, Reason: "origin store is not supported by file catalogs"}
			}
			resultMapping, err := loadResultMapping(rc)
			if err != nil {
				return nil, &kgforge.ConfigurationError{Component: "resolver", Name: rc.Name, Reason: "result_mapping", Err: err}
			}
			targets := make([]resolver.TargetConfig, len(rc.Targets))
			for i, t := range rc.Targets {
				targets[i] = resolver.TargetConfig{Name: t.Name, Catalog: t.Catalog}
			}
			r, err := registry.New(ctx, resolver.Config{
				Type:          rc.Resolver,
				Name:          rc.Name,
				Source:        rc.Source,
				Targets:       targets,
				Threshold:     rc.Threshold,
				ResultMapping: resultMapping,
				Mapper:        m,
				Logger:        logger,
			})
			if err != nil {
				return nil, err
			}
			if err := scopes.Add(scope, r); err != nil {
				return nil, err
			}
		}
	}
	return scopes, nil
}

// loadResultMapping reads an inline mapping document, or a mapping file
// relative to the resolver source when the value names one.
func loadResultMapping(rc config.ResolverConfig) (*mapping.Mapping, error) {
	doc := strings.TrimSpace(rc.ResultMapping)
	if doc == "" {
		return nil, nil
	}
	if !strings.ContainsAny(doc, ":\n") {
		path := doc
		if !filepath.IsAbs(path) {
			path = filepath.Join(rc.Source, path)
		}
		return mapping.LoadFile(path)
	}
	return mapping.Load([]byte(doc))
}

// Close releases the store adapter when it holds resources.
func (f *Forge) Close() error {
	if closer, ok := f.store.Adapter().(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Config returns the configuration the forge was built from.
func (f *Forge) Config() config.Config {
	return f.cfg
}

// Vocabulary returns the prefix registry shared by conversions and queries.
func (f *Forge) Vocabulary() *kgforge.Vocabulary {
	return f.vocab
}

// Model returns the configured model.
func (f *Forge) Model() model.Model {
	return f.model
}

// Store returns the session store.
func (f *Forge) Store() *store.Store {
	return f.store
}

// Prefixes lists the bound prefixes.
func (f *Forge) Prefixes() map[string]string {
	return f.vocab.Prefixes()
}

// Types lists the model's types.
func (f *Forge) Types() []string {
	return f.model.Types()
}

// Template returns an empty resource of typ.
func (f *Forge) Template(typ string, onlyRequired bool) (*kgforge.Resource, error) {
	return f.model.Template(typ, onlyRequired)
}

// Paths lists the dotted property paths of typ's full template.
func (f *Forge) Paths(typ string) ([]string, error) {
	template, err := f.model.Template(typ, false)
	if err != nil {
		return nil, err
	}
	return template.Paths(), nil
}

func (f *Forge) Validate(r *kgforge.Resource) error {
	return f.model.Validate(r)
}

func (f *Forge) ValidateMany(rs []*kgforge.Resource) error {
	return f.model.ValidateMany(rs)
}

// Resolve runs req against the resolver picked by scope and name. Either
// selector may be empty when only one candidate exists.
func (f *Forge) Resolve(ctx context.Context, scope, name string, req resolver.Request) (*resolver.Resolution, error) {
	return f.scopes.Resolve(ctx, scope, name, req)
}

// Scopes lists the configured resolver scopes.
func (f *Forge) Scopes() []string {
	return f.scopes.Names()
}

// Format fills the named formatter's {} placeholders with args.
func (f *Forge) Format(formatter string, args ...any) (string, error) {
	template, ok := f.formatters[formatter]
	if !ok {
		return "", &kgforge.ConfigurationError{Component: "formatter", Name: formatter, Reason: "unknown formatter"}
	}
	out, err := kgforge.FormatTemplate(template, args...)
	if err != nil {
		return "", fmt.Errorf("kgforge: formatter %s: %w", formatter, err)
	}
	return out, nil
}

// Sources lists the data sources the model has mappings for.
func (f *Forge) Sources() []string {
	return f.model.Sources()
}

func (f *Forge) Mappings(source string) ([]string, error) {
	return f.model.Mappings(source)
}

func (f *Forge) Mapping(typ, source string) (*mapping.Mapping, error) {
	return f.model.Mapping(typ, source)
}

// Map turns record into a resource with the configured mapper.
func (f *Forge) Map(ctx context.Context, record any, m *mapping.Mapping, opts ...mapper.Option) (*kgforge.Resource, error) {
	return f.mapper.Map(ctx, record, m, opts...)
}

// MapMany maps every record; failures come back as one BatchError.
func (f *Forge) MapMany(ctx context.Context, records []any, m *mapping.Mapping, opts ...mapper.Option) ([]*kgforge.Resource, error) {
	return f.mapper.MapMany(ctx, records, m, opts...)
}

// Reshape keeps only the keep paths of r. With versioned set, kept ids are
// pinned to their revision.
func (f *Forge) Reshape(r *kgforge.Resource, keep []string, versioned bool) (*kgforge.Resource, error) {
	return kgforge.Reshape(r, keep, f.versioned(versioned))
}

func (f *Forge) ReshapeMany(rs []*kgforge.Resource, keep []string, versioned bool) ([]*kgforge.Resource, error) {
	return kgforge.ReshapeMany(rs, keep, f.versioned(versioned))
}

func (f *Forge) versioned(enabled bool) kgforge.VersionedFunc {
	if !enabled {
		return nil
	}
	return f.store.Versioned()
}

func (f *Forge) Retrieve(ctx context.Context, id string, version store.Version) (*kgforge.Resource, error) {
	return f.store.Retrieve(ctx, id, version)
}

// Search returns the live resources matching every filter expression, such
// as "name=Alice" or "age >= 30". SearchQuery takes a full store.Query.
func (f *Forge) Search(ctx context.Context, filters ...string) ([]*kgforge.Resource, error) {
	q := store.Query{}
	for _, expr := range filters {
		filter, err := store.ParseFilter(expr)
		if err != nil {
			return nil, err
		}
		q.Filters = append(q.Filters, filter)
	}
	return f.store.Search(ctx, q)
}

func (f *Forge) SearchQuery(ctx context.Context, q store.Query) ([]*kgforge.Resource, error) {
	return f.store.Search(ctx, q)
}

func (f *Forge) SPARQL(ctx context.Context, query string) ([]map[string]any, error) {
	return f.store.SPARQL(ctx, query)
}

// Download fetches the files found at the follow path of rs into dir.
func (f *Forge) Download(ctx context.Context, rs []*kgforge.Resource, follow, dir string) ([]string, error) {
	return f.store.Download(ctx, rs, follow, dir)
}

func (f *Forge) Register(ctx context.Context, r *kgforge.Resource) error {
	return f.store.Register(ctx, r)
}

func (f *Forge) RegisterMany(ctx context.Context, rs []*kgforge.Resource) error {
	return f.store.RegisterMany(ctx, rs)
}

func (f *Forge) Update(ctx context.Context, r *kgforge.Resource) error {
	return f.store.Update(ctx, r)
}

func (f *Forge) UpdateMany(ctx context.Context, rs []*kgforge.Resource) error {
	return f.store.UpdateMany(ctx, rs)
}

func (f *Forge) Deprecate(ctx context.Context, r *kgforge.Resource) error {
	return f.store.Deprecate(ctx, r)
}

func (f *Forge) DeprecateMany(ctx context.Context, rs []*kgforge.Resource) error {
	return f.store.DeprecateMany(ctx, rs)
}

func (f *Forge) Tag(ctx context.Context, r *kgforge.Resource, tag string) error {
	return f.store.Tag(ctx, r, tag)
}

func (f *Forge) TagMany(ctx context.Context, rs []*kgforge.Resource, tag string) error {
	return f.store.TagMany(ctx, rs, tag)
}

func (f *Forge) Freeze(ctx context.Context, r *kgforge.Resource) (*kgforge.Resource, error) {
	return f.store.Freeze(ctx, r)
}

func (f *Forge) FreezeMany(ctx context.Context, rs []*kgforge.Resource) ([]*kgforge.Resource, error) {
	return f.store.FreezeMany(ctx, rs)
}

// Attach defers uploading path until the holding resource is registered or
// updated. path may name a file, a directory or a glob.
func (f *Forge) Attach(path, contentType string) *kgforge.LazyAction {
	return f.store.Attach(path, contentType)
}

func (f *Forge) AsJSON(r *kgforge.Resource, storeMetadata bool) map[string]any {
	return kgforge.AsJSON(r, kgforge.JSONOptions{StoreMetadata: storeMetadata})
}

func (f *Forge) FromJSON(data map[string]any, na ...any) (*kgforge.Resource, error) {
	return kgforge.FromJSON(data, na...)
}

func (f *Forge) AsJSONLD(r *kgforge.Resource, opts kgforge.LDOptions) map[string]any {
	return kgforge.AsJSONLD(f.vocab, r, opts)
}

func (f *Forge) FromJSONLD(doc map[string]any) (*kgforge.Resource, error) {
	return kgforge.FromJSONLD(f.vocab, doc)
}

func (f *Forge) AsTriples(rs ...*kgforge.Resource) []kgforge.Triple {
	return kgforge.AsTriplesMany(f.vocab, rs)
}

func (f *Forge) FromTriples(triples []kgforge.Triple) ([]*kgforge.Resource, error) {
	return kgforge.FromTriples(f.vocab, triples)
}

func (f *Forge) AsTable(rs []*kgforge.Resource, opts kgforge.TableOptions) *kgforge.Table {
	return kgforge.AsTable(rs, opts)
}

func (f *Forge) FromTable(t *kgforge.Table, opts kgforge.TableOptions) ([]*kgforge.Resource, error) {
	return kgforge.FromTable(t, opts)
}
