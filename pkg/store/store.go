// Package store keeps resources synchronized with a storage backend.
//
// A Store owns one session against an Adapter. It enforces the resource
// lifecycle (register, update, tag, deprecate), remembers the last known
// revision of every id it has seen, and pins references to revisions when
// freezing. Adapters only persist; they never see session state.
//
//	adapter, _ := memory.New(store.Config{Bucket: "people"})
//	s := store.New(adapter, store.WithVocabulary(vocab))
//	if err := s.Register(ctx, person); err != nil { ... }
//	person.MustSet("name", "Alicia")
//	if err := s.Update(ctx, person); err != nil { ... }
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	kgforge "github.com/goliatone/go-kgforge"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultVersionedTemplate renders revision-pinned ids.
const DefaultVersionedTemplate = "{id}?rev={rev}"

// State is what a backend reports after a write.
type State struct {
	ID         string
	Revision   int
	Deprecated bool
}

// Version selects a revision or a tag on retrieval. The zero Version is the
// latest revision.
type Version struct {
	Revision int
	Tag      string
}

// Latest reports whether v selects the latest revision.
func (v Version) Latest() bool {
	return v.Revision <= 0 && v.Tag == ""
}

func (v Version) String() string {
	switch {
	case v.Tag != "":
		return "tag=" + v.Tag
	case v.Revision > 0:
		return fmt.Sprintf("rev=%d", v.Revision)
	default:
		return ""
	}
}

// File is the payload handed to Adapter.Upload.
type File struct {
	Name        string
	Path        string
	ContentType string
	Size        int64
	// Digest is the hex blake3 digest of Data.
	Digest string
	Data   []byte
}

// Adapter is the backend contract. Implementations persist revisions and
// report conflicts; lifecycle rules are enforced by Store before the adapter
// is called.
type Adapter interface {
	// Register persists r as revision 1 and returns the assigned id.
	Register(ctx context.Context, r *kgforge.Resource) (State, error)
	// Update persists r as a new revision when expected is the current one,
	// and fails with a RevisionConflictError otherwise.
	Update(ctx context.Context, r *kgforge.Resource, expected int) (State, error)
	Deprecate(ctx context.Context, id string, expected int) (State, error)
	// Tag binds tag to revision of id.
	Tag(ctx context.Context, id string, revision int, tag string) error
	// Retrieve returns the resource with Meta populated, or a NotFoundError.
	Retrieve(ctx context.Context, id string, version Version) (*kgforge.Resource, error)
	// Search returns matching resources in a stable order.
	Search(ctx context.Context, query Query) ([]*kgforge.Resource, error)
	// SPARQL runs query as given. Adapters without a graph engine return
	// kgforge.ErrNotSupported.
	SPARQL(ctx context.Context, query string) ([]map[string]any, error)
	// Upload stores a file and returns the resource describing it.
	Upload(ctx context.Context, file File) (*kgforge.Resource, error)
	// Download writes the file at location into dir and returns its path.
	Download(ctx context.Context, location, dir string) (string, error)
}

// Config selects and configures an adapter.
type Config struct {
	Name     string
	Endpoint string
	Bucket   string
	Token    string
	// VersionedIDTemplate overrides DefaultVersionedTemplate.
	VersionedIDTemplate string
	Options             map[string]any
	Logger              *zap.Logger
}

// Factory builds an adapter from configuration.
type Factory func(ctx context.Context, cfg Config) (Adapter, error)

// Registry resolves adapter names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return &kgforge.ConfigurationError{Component: "store", Name: name, Reason: "registration needs a name and a factory"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
	return nil
}

// Names lists the registered adapters.
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

// New builds the adapter named by cfg.Name.
func (r *Registry) New(ctx context.Context, cfg Config) (Adapter, error) {
	r.mu.RLock()
	factory := r.factories[cfg.Name]
	r.mu.RUnlock()
	if factory == nil {
		return nil, &kgforge.ConfigurationError{Component: "store", Name: cfg.Name, Reason: "unknown store adapter"}
	}
	adapter, err := factory(ctx, cfg)
	if err != nil {
		var cfgErr *kgforge.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, err
		}
		return nil, &kgforge.ConfigurationError{Component: "store", Name: cfg.Name, Err: err}
	}
	return adapter, nil
}

// CheckWritable is the check adapters run before writing a new revision of
// current: deprecated resources are rejected and expected must be the
// current revision.
func CheckWritable(operation string, current State, expected int) error {
	if current.Deprecated {
		return &kgforge.InvalidResourceStateError{ID: current.ID, Operation: operation, Reason: "resource is deprecated"}
	}
	if expected != current.Revision {
		return &kgforge.RevisionConflictError{ID: current.ID, Expected: expected, Actual: current.Revision}
	}
	return nil
}

// NewID joins base and a random UUID. An empty base yields a urn:uuid id.
func NewID(base string) string {
	if base == "" {
		return "urn:uuid:" + uuid.NewString()
	}
	return base + uuid.NewString()
}

// IDBase derives the id prefix of a bucket from an endpoint.
func IDBase(endpoint, bucket string) string {
	if bucket == "" {
		bucket = "default"
	}
	if endpoint == "" {
		return "urn:kgforge:" + bucket + ":"
	}
	return strings.TrimRight(endpoint, "/") + "/" + bucket + "/"
}
