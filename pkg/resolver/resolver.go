// Package resolver links free text to entries of controlled vocabularies.
//
// A Resolver owns named targets (catalogs of labelled entries) and answers
// Requests with one of three strategies. An empty answer and a
// misconfigured request are distinct: unknown scopes, resolvers or targets
// fail with a ResolvingError, while no match yields an empty Resolution.
package resolver

import (
	"context"
	"slices"
	"sync"

	kgforge "github.com/goliatone/go-kgforge"
)

// Strategy selects how candidates are matched and how many are returned.
type Strategy string

const (
	// Exact returns the first entry whose normalized label equals the
	// normalized text.
	Exact Strategy = "exact"
	// BestMatch returns the single best entry scoring at least the threshold.
	BestMatch Strategy = "best_match"
	// AllMatches returns every entry scoring at least the threshold.
	AllMatches Strategy = "all_matches"
)

// DefaultThreshold is the minimum similarity for BestMatch and AllMatches.
const DefaultThreshold = 0.8

// Request is one resolution query. Type, when set, restricts candidates to
// entries of that type. An empty Strategy means BestMatch.
type Request struct {
	Text     string
	Target   string
	Type     string
	Strategy Strategy
}

// Match is a resolved entry with its similarity score.
type Match struct {
	Resource *kgforge.Resource
	Score    float64
}

// Resolution holds the matches of one request, best first.
type Resolution struct {
	Strategy Strategy
	matches  []Match
}

// One returns the first matched resource, or nil when nothing matched.
func (r *Resolution) One() *kgforge.Resource {
	if r == nil || len(r.matches) == 0 {
		return nil
	}
	return r.matches[0].Resource
}

// All returns every matched resource; the slice is empty, never nil, when
// nothing matched.
func (r *Resolution) All() []*kgforge.Resource {
	out := []*kgforge.Resource{}
	if r == nil {
		return out
	}
	for _, m := range r.matches {
		out = append(out, m.Resource)
	}
	return out
}

// Matches returns the matches with their scores.
func (r *Resolution) Matches() []Match {
	if r == nil {
		return []Match{}
	}
	return slices.Clone(r.matches)
}

// Resolver answers resolution requests against its targets.
type Resolver interface {
	Name() string
	Targets() []string
	Resolve(ctx context.Context, req Request) (*Resolution, error)
}

// Factory builds a resolver from its declaration.
type Factory func(ctx context.Context, cfg Config) (Resolver, error)

// Registry resolves resolver type names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry holding the builtin catalog resolver.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{
		CatalogType: newCatalogFromConfig,
	}}
}

// Register adds or replaces the factory for typ.
func (r *Registry) Register(typ string, factory Factory) error {
	if typ == "" || factory == nil {
		return &kgforge.ConfigurationError{Component: "resolver", Name: typ, Reason: "registration needs a type and a factory"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typ] = factory
	return nil
}

// New builds the resolver declared by cfg.
func (r *Registry) New(ctx context.Context, cfg Config) (Resolver, error) {
	typ := cfg.Type
	if typ == "" {
		typ = CatalogType
	}
	r.mu.RLock()
	factory := r.factories[typ]
	r.mu.RUnlock()
	if factory == nil {
		return nil, &kgforge.ConfigurationError{Component: "resolver", Name: typ, Reason: "unknown resolver type"}
	}
	return factory(ctx, cfg)
}

// Scopes groups resolvers by scope and picks the one a query addresses.
type Scopes struct {
	order     []string
	resolvers map[string][]Resolver
}

// NewScopes returns an empty scope set.
func NewScopes() *Scopes {
	return &Scopes{resolvers: map[string][]Resolver{}}
}

// Add registers a resolver under scope. Names must be unique within a scope.
func (s *Scopes) Add(scope string, r Resolver) error {
	for _, existing := range s.resolvers[scope] {
		if existing.Name() == r.Name() {
			return &kgforge.ConfigurationError{Component: "resolver", Name: r.Name(), Reason: "declared twice in scope " + scope}
		}
	}
	if _, ok := s.resolvers[scope]; !ok {
		s.order = append(s.order, scope)
	}
	s.resolvers[scope] = append(s.resolvers[scope], r)
	return nil
}

// Names lists the scopes in declaration order.
func (s *Scopes) Names() []string {
	return slices.Clone(s.order)
}

// Select returns the resolver for scope and name. Either may be empty when
// it is unambiguous.
func (s *Scopes) Select(scope, name string) (Resolver, error) {
	if len(s.order) == 0 {
		return nil, &kgforge.ResolvingError{Scope: scope, Resolver: name, Reason: "no resolvers configured"}
	}
	if scope == "" {
		if len(s.order) > 1 {
			return nil, &kgforge.ResolvingError{Resolver: name, Reason: "scope required, several are configured"}
		}
		scope = s.order[0]
	}
	candidates, ok := s.resolvers[scope]
	if !ok {
		return nil, &kgforge.ResolvingError{Scope: scope, Resolver: name, Reason: "unknown scope"}
	}
	if name == "" {
		if len(candidates) > 1 {
			return nil, &kgforge.ResolvingError{Scope: scope, Reason: "resolver required, several are configured"}
		}
		return candidates[0], nil
	}
	for _, r := range candidates {
		if r.Name() == name {
			return r, nil
		}
	}
	return nil, &kgforge.ResolvingError{Scope: scope, Resolver: name, Reason: "unknown resolver"}
}

// Resolve selects a resolver and runs req against it.
func (s *Scopes) Resolve(ctx context.Context, scope, name string, req Request) (*Resolution, error) {
	r, err := s.Select(scope, name)
	if err != nil {
		return nil, err
	}
	return r.Resolve(ctx, req)
}
