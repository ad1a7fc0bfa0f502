package resolver

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	kgforge "github.com/goliatone/go-kgforge"
	"github.com/goliatone/go-kgforge/pkg/mapper"
	"github.com/goliatone/go-kgforge/pkg/mapping"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// CatalogType names the builtin file-backed resolver.
const CatalogType = "catalog"

// Config declares one resolver.
type Config struct {
	Type string
	Name string
	// Source is the directory catalog paths are relative to.
	Source    string
	Targets   []TargetConfig
	Threshold float64
	// ResultMapping, when set, turns each matched entry into the returned
	// resource; otherwise entries are read as tree-form resources.
	ResultMapping *mapping.Mapping
	// Mapper applies ResultMapping; the default expr mapper is used if nil.
	Mapper mapper.Mapper
	Logger *zap.Logger
}

// TargetConfig names a catalog. Entries take precedence over Catalog.
type TargetConfig struct {
	Name    string
	Catalog string
	Entries []map[string]any
}

type entry struct {
	id     string
	typ    string
	labels []string
	record map[string]any
}

type catalog struct {
	name      string
	targets   map[string][]entry
	order     []string
	threshold float64
	mapping   *mapping.Mapping
	mapper    mapper.Mapper
	logger    *zap.Logger
}

// NewCatalog builds a catalog resolver, reading every target's entries.
func NewCatalog(cfg Config) (Resolver, error) {
	if cfg.Name == "" {
		return nil, &kgforge.ConfigurationError{Component: "resolver", Name: CatalogType, Reason: "name required"}
	}
	if len(cfg.Targets) == 0 {
		return nil, &kgforge.ConfigurationError{Component: "resolver", Name: cfg.Name, Reason: "at least one target required"}
	}
	threshold := cfg.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, &kgforge.ConfigurationError{Component: "resolver", Name: cfg.Name, Reason: fmt.Sprintf("threshold %v outside [0, 1]", threshold)}
	}
	c := &catalog{
		name:      cfg.Name,
		targets:   map[string][]entry{},
		threshold: threshold,
		mapping:   cfg.ResultMapping,
		mapper:    cfg.Mapper,
		logger:    cfg.Logger,
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.mapping != nil && c.mapper == nil {
		m, err := mapper.New(mapper.DefaultType, mapper.WithLogger(c.logger))
		if err != nil {
			return nil, err
		}
		c.mapper = m
	}
	for _, target := range cfg.Targets {
		if target.Name == "" {
			return nil, &kgforge.ConfigurationError{Component: "resolver", Name: cfg.Name, Reason: "target name required"}
		}
		if _, dup := c.targets[target.Name]; dup {
			return nil, &kgforge.ConfigurationError{Component: "resolver", Name: cfg.Name, Reason: fmt.Sprintf("target %q declared twice", target.Name)}
		}
		records := target.Entries
		if records == nil {
			loaded, err := loadCatalog(filepath.Join(cfg.Source, target.Catalog))
			if err != nil {
				return nil, &kgforge.ConfigurationError{Component: "resolver", Name: cfg.Name, Reason: "target " + target.Name, Err: err}
			}
			records = loaded
		}
		entries, err := readEntries(records)
		if err != nil {
			return nil, &kgforge.ConfigurationError{Component: "resolver", Name: cfg.Name, Reason: "target " + target.Name, Err: err}
		}
		c.targets[target.Name] = entries
		c.order = append(c.order, target.Name)
		c.logger.Debug("catalog target loaded", zap.String("resolver", cfg.Name), zap.String("target", target.Name), zap.Int("entries", len(entries)))
	}
	return c, nil
}

func newCatalogFromConfig(_ context.Context, cfg Config) (Resolver, error) {
	return NewCatalog(cfg)
}

func loadCatalog(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	var records []map[string]any
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	return records, nil
}

func readEntries(records []map[string]any) ([]entry, error) {
	out := make([]entry, 0, len(records))
	for i, record := range records {
		id, _ := record["id"].(string)
		label, _ := record["label"].(string)
		if id == "" || label == "" {
			return nil, fmt.Errorf("entry %d needs an id and a label", i)
		}
		e := entry{id: id, record: record, labels: []string{Normalize(label)}}
		e.typ, _ = record["type"].(string)
		if alt, ok := record["altLabels"].([]any); ok {
			for _, item := range alt {
				if s, ok := item.(string); ok && s != "" {
					e.labels = append(e.labels, Normalize(s))
				}
			}
		}
		out = append(out, e)
	}
	return out, nil
}

func (c *catalog) Name() string {
	return c.name
}

// Targets lists the target names in declaration order.
func (c *catalog) Targets() []string {
	return slices.Clone(c.order)
}

type scored struct {
	index int
	entry entry
	score float64
}

func (c *catalog) Resolve(ctx context.Context, req Request) (*Resolution, error) {
	entries, err := c.target(req.Target)
	if err != nil {
		return nil, err
	}
	strategy := req.Strategy
	switch strategy {
	case "":
		strategy = BestMatch
	case Exact, BestMatch, AllMatches:
	default:
		return nil, &kgforge.ResolvingError{Resolver: c.name, Target: req.Target, Reason: fmt.Sprintf("unknown strategy %q", strategy)}
	}
	query := Normalize(req.Text)

	var hits []scored
	for i, e := range entries {
		if req.Type != "" && e.typ != req.Type {
			continue
		}
		if query == "" {
			break
		}
		switch strategy {
		case Exact:
			if slices.Contains(e.labels, query) {
				hits = append(hits, scored{index: i, entry: e, score: 1})
			}
		default:
			if score := bestScore(query, e.labels); score >= c.threshold {
				hits = append(hits, scored{index: i, entry: e, score: score})
			}
		}
	}

	switch strategy {
	case Exact:
		hits = hits[:min(len(hits), 1)]
	case BestMatch:
		slices.SortStableFunc(hits, func(a, b scored) int {
			return cmp.Or(cmp.Compare(b.score, a.score), cmp.Compare(a.index, b.index), cmp.Compare(a.entry.id, b.entry.id))
		})
		hits = hits[:min(len(hits), 1)]
	case AllMatches:
		slices.SortStableFunc(hits, func(a, b scored) int {
			return cmp.Or(cmp.Compare(b.score, a.score), cmp.Compare(a.entry.id, b.entry.id))
		})
	}

	res := &Resolution{Strategy: strategy, matches: make([]Match, 0, len(hits))}
	for _, hit := range hits {
		r, err := c.resource(ctx, hit.entry)
		if err != nil {
			return nil, fmt.Errorf("kgforge: resolver %s entry %s: %w", c.name, hit.entry.id, err)
		}
		res.matches = append(res.matches, Match{Resource: r, Score: hit.score})
	}
	c.logger.Debug("resolved",
		zap.String("resolver", c.name),
		zap.String("target", req.Target),
		zap.String("strategy", string(strategy)),
		zap.Int("matches", len(res.matches)),
	)
	return res, nil
}

func (c *catalog) target(name string) ([]entry, error) {
	if name == "" {
		if len(c.order) > 1 {
			return nil, &kgforge.ResolvingError{Resolver: c.name, Reason: "target required, several are configured"}
		}
		name = c.order[0]
	}
	entries, ok := c.targets[name]
	if !ok {
		return nil, &kgforge.ResolvingError{Resolver: c.name, Target: name, Reason: "unknown target"}
	}
	return entries, nil
}

func (c *catalog) resource(ctx context.Context, e entry) (*kgforge.Resource, error) {
	if c.mapping != nil {
		return c.mapper.Map(ctx, e.record, c.mapping)
	}
	return kgforge.FromJSON(e.record)
}

func bestScore(query string, labels []string) float64 {
	best := 0.0
	for _, label := range labels {
		best = max(best, Similarity(query, label))
	}
	return best
}
