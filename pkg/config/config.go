// Package config reads the declarative forge configuration:
//
//	store:
//	  name: sqlite
//	  endpoint: ./forge.db
//	  bucket: people
//	model:
//	  name: shapes
//	  origin: directory
//	  source: ./schemas
//	resolvers:
//	  terms:
//	    - resolver: catalog
//	      name: sensors
//	      source: ./catalogs
//	      targets:
//	        - {name: sensors, catalog: sensors.yaml}
//	prefixes:
//	  schema: https://schema.org/
//	vocab: https://schema.org/
//	formatters:
//	  identifier: https://example.org/{}/{}
//
// Unset fields take their defaults, and the model and store-backed resolvers
// inherit the store endpoint and token.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	kgforge "github.com/goliatone/go-kgforge"
	"github.com/goliatone/go-kgforge/internal/hydrate"
	"github.com/goliatone/go-kgforge/layering"
	"gopkg.in/yaml.v3"
)

// Model origins.
const (
	OriginFile      = "file"
	OriginDirectory = "directory"
	OriginStore     = "store"
)

// Config is the whole forge configuration.
type Config struct {
	Store  StoreConfig `yaml:"store"`
	Model  ModelConfig `yaml:"model"`
	Mapper string      `yaml:"mapper"`
	// Resolvers groups resolver declarations by scope.
	Resolvers  map[string][]ResolverConfig `yaml:"resolvers"`
	Prefixes   map[string]string           `yaml:"prefixes"`
	Vocab      string                      `yaml:"vocab"`
	Formatters map[string]string           `yaml:"formatters"`
}

// StoreConfig selects the store adapter.
type StoreConfig struct {
	Name                string         `yaml:"name"`
	Endpoint            string         `yaml:"endpoint"`
	Bucket              string         `yaml:"bucket"`
	Token               string         `yaml:"token"`
	VersionedIDTemplate string         `yaml:"versioned_id_template"`
	Options             map[string]any `yaml:"options"`
}

// ModelConfig selects the model and its schema source.
type ModelConfig struct {
	Name     string `yaml:"name"`
	Origin   string `yaml:"origin"`
	Source   string `yaml:"source"`
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token"`
}

// ResolverConfig declares one resolver of a scope.
type ResolverConfig struct {
	Resolver  string         `yaml:"resolver"`
	Name      string         `yaml:"name"`
	Origin    string         `yaml:"origin"`
	Source    string         `yaml:"source"`
	Endpoint  string         `yaml:"endpoint"`
	Token     string         `yaml:"token"`
	Threshold float64        `yaml:"threshold"`
	Targets   []TargetConfig `yaml:"targets"`
	// ResultMapping is an inline mapping document or a mapping file path
	// relative to Source.
	ResultMapping string `yaml:"result_mapping"`
}

// TargetConfig names a catalog file of a resolver.
type TargetConfig struct {
	Name    string `yaml:"name"`
	Catalog string `yaml:"catalog"`
}

// Defaults returns the values used for unset fields.
func Defaults() Config {
	return Config{
		Store: StoreConfig{
			Name:                "memory",
			Bucket:              "default",
			VersionedIDTemplate: "{id}?rev={rev}",
		},
		Model: ModelConfig{
			Name:   "shapes",
			Origin: OriginFile,
		},
		Mapper: kgforge.EngineExpr,
	}
}

// Parse reads a YAML configuration document.
func Parse(data []byte) (Config, error) {
	var payload map[string]any
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return Config{}, configError("parse", err)
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return FromMap(payload)
}

// LoadFile reads the configuration at path. Relative model and resolver
// sources are resolved against the directory of path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, configError(path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, err
	}
	base := filepath.Dir(path)
	cfg.Model.Source = relativeTo(base, cfg.Model.Source, cfg.Model.Origin != OriginStore)
	for scope, resolvers := range cfg.Resolvers {
		for i := range resolvers {
			resolvers[i].Source = relativeTo(base, resolvers[i].Source, resolvers[i].Origin != OriginStore)
		}
		cfg.Resolvers[scope] = resolvers
	}
	return cfg, nil
}

// FromMap decodes an already parsed document, applies defaults and checks
// the result.
func FromMap(payload map[string]any) (Config, error) {
	decoder := hydrate.NewDecoder[Config](
		hydrate.WithKnownFields[Config](),
		hydrate.WithPostHook[Config](func(_ hydrate.Context, cfg *Config) error {
			*cfg = cfg.withDefaults()
			return cfg.Validate()
		}),
	)
	cfg, err := decoder.Decode(hydrate.Context{Source: "config"}, payload)
	if err != nil {
		return Config{}, configError("decode", err)
	}
	return cfg, nil
}

// withDefaults layers cfg over Defaults, then lets the model and store-backed
// resolvers inherit the store connection.
func (c Config) withDefaults() Config {
	out := layering.MergeLayers(c, Defaults())
	inherited := ModelConfig{Endpoint: out.Store.Endpoint, Token: out.Store.Token}
	out.Model = layering.MergeLayers(out.Model, inherited)
	for scope, resolvers := range out.Resolvers {
		for i, r := range resolvers {
			if r.Origin == "" {
				r.Origin = OriginFile
			}
			if r.Origin == OriginStore {
				r = layering.MergeLayers(r, ResolverConfig{Endpoint: out.Store.Endpoint, Token: out.Store.Token})
			}
			resolvers[i] = r
		}
		out.Resolvers[scope] = resolvers
	}
	return out
}

// Validate checks the parts the forge cannot default.
func (c Config) Validate() error {
	switch c.Model.Origin {
	case OriginFile, OriginDirectory, OriginStore:
	default:
		return configError("model", fmt.Errorf("unknown origin %q", c.Model.Origin))
	}
	for _, scope := range c.Scopes() {
		for i, r := range c.Resolvers[scope] {
			label := fmt.Sprintf("resolvers.%s[%d]", scope, i)
			if r.Resolver == "" || r.Name == "" {
				return configError(label, fmt.Errorf("resolver and name are required"))
			}
			if len(r.Targets) == 0 {
				return configError(label, fmt.Errorf("at least one target is required"))
			}
			if r.Threshold < 0 || r.Threshold > 1 {
				return configError(label, fmt.Errorf("threshold %v outside [0, 1]", r.Threshold))
			}
			for _, target := range r.Targets {
				if target.Name == "" {
					return configError(label, fmt.Errorf("target name is required"))
				}
			}
		}
	}
	for name, template := range c.Formatters {
		if !strings.Contains(template, "{}") {
			return configError("formatters."+name, fmt.Errorf("template %q has no {} placeholder", template))
		}
	}
	if !strings.Contains(c.Store.VersionedIDTemplate, "{id}") || !strings.Contains(c.Store.VersionedIDTemplate, "{rev}") {
		return configError("store", fmt.Errorf("versioned_id_template must contain {id} and {rev}"))
	}
	return nil
}

// Scopes lists the resolver scopes in lexical order.
func (c Config) Scopes() []string {
	scopes := make([]string, 0, len(c.Resolvers))
	for scope := range c.Resolvers {
		scopes = append(scopes, scope)
	}
	slices.Sort(scopes)
	return scopes
}

func relativeTo(base, path string, local bool) string {
	if !local || path == "" || filepath.IsAbs(path) || strings.Contains(path, "://") {
		return path
	}
	return filepath.Join(base, path)
}

func configError(name string, err error) error {
	return &kgforge.ConfigurationError{Component: "config", Name: name, Err: err}
}
