// Package memory is an in-memory store adapter for tests and examples. It
// keeps every revision of every resource and makes no persistence
// assumptions beyond the life of the process.
package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	kgforge "github.com/goliatone/go-kgforge"
	"github.com/goliatone/go-kgforge/pkg/store"
)

// Name is the adapter name used in configuration.
const Name = "memory"

// Adapter implements store.Adapter over maps guarded by a RWMutex.
type Adapter struct {
	mu      sync.RWMutex
	base    string
	order   []string
	records map[string]*record
	files   map[string]store.File
}

type record struct {
	revisions []*kgforge.Resource
	tags      map[string]int
}

func (r *record) state(id string) store.State {
	latest := r.revisions[len(r.revisions)-1]
	return store.State{ID: id, Revision: len(r.revisions), Deprecated: latest.Meta.Deprecated}
}

// New returns an empty adapter. Ids are minted under cfg.Endpoint and
// cfg.Bucket.
func New(cfg store.Config) *Adapter {
	return &Adapter{
		base:    store.IDBase(cfg.Endpoint, cfg.Bucket),
		records: map[string]*record{},
		files:   map[string]store.File{},
	}
}

// Factory builds an Adapter for a store.Registry.
func Factory(_ context.Context, cfg store.Config) (store.Adapter, error) {
	return New(cfg), nil
}

func (a *Adapter) Register(_ context.Context, r *kgforge.Resource) (store.State, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := r.ID
	if id == "" {
		id = store.NewID(a.base)
	}
	if _, exists := a.records[id]; exists {
		return store.State{}, &kgforge.InvalidResourceStateError{ID: id, Operation: "register", Reason: "id already exists"}
	}
	a.records[id] = &record{
		revisions: []*kgforge.Resource{snapshot(r, id, 1, false)},
		tags:      map[string]int{},
	}
	a.order = append(a.order, id)
	return store.State{ID: id, Revision: 1}, nil
}

func (a *Adapter) Update(_ context.Context, r *kgforge.Resource, expected int) (store.State, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.records[r.ID]
	if !ok {
		return store.State{}, &kgforge.NotFoundError{ID: r.ID}
	}
	if err := store.CheckWritable("update", rec.state(r.ID), expected); err != nil {
		return store.State{}, err
	}
	revision := len(rec.revisions) + 1
	rec.revisions = append(rec.revisions, snapshot(r, r.ID, revision, false))
	return store.State{ID: r.ID, Revision: revision}, nil
}

func (a *Adapter) Deprecate(_ context.Context, id string, expected int) (store.State, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.records[id]
	if !ok {
		return store.State{}, &kgforge.NotFoundError{ID: id}
	}
	if err := store.CheckWritable("deprecate", rec.state(id), expected); err != nil {
		return store.State{}, err
	}
	revision := len(rec.revisions) + 1
	latest := rec.revisions[len(rec.revisions)-1]
	rec.revisions = append(rec.revisions, snapshot(latest, id, revision, true))
	return store.State{ID: id, Revision: revision, Deprecated: true}, nil
}

func (a *Adapter) Tag(_ context.Context, id string, revision int, tag string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.records[id]
	if !ok {
		return &kgforge.NotFoundError{ID: id}
	}
	if revision < 1 || revision > len(rec.revisions) {
		return &kgforge.NotFoundError{ID: id, Version: fmt.Sprintf("rev=%d", revision)}
	}
	rec.tags[tag] = revision
	return nil
}

func (a *Adapter) Retrieve(_ context.Context, id string, version store.Version) (*kgforge.Resource, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rec, ok := a.records[id]
	if !ok {
		return nil, &kgforge.NotFoundError{ID: id, Version: version.String()}
	}
	revision := len(rec.revisions)
	switch {
	case version.Tag != "":
		tagged, ok := rec.tags[version.Tag]
		if !ok {
			return nil, &kgforge.NotFoundError{ID: id, Version: version.String()}
		}
		revision = tagged
	case version.Revision > 0:
		if version.Revision > len(rec.revisions) {
			return nil, &kgforge.NotFoundError{ID: id, Version: version.String()}
		}
		revision = version.Revision
	}
	return rec.load(revision), nil
}

func (rec *record) load(revision int) *kgforge.Resource {
	out := rec.revisions[revision-1].Clone()
	if len(rec.tags) > 0 {
		out.Meta.Tags = make(map[string]int, len(rec.tags))
		for name, rev := range rec.tags {
			out.Meta.Tags[name] = rev
		}
	}
	out.Meta.Synced = true
	return out
}

// Search scans resources in registration order.
func (a *Adapter) Search(_ context.Context, q store.Query) ([]*kgforge.Resource, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []*kgforge.Resource
	for _, id := range a.order {
		rec := a.records[id]
		latest := rec.load(len(rec.revisions))
		if q.Matches(latest) {
			out = append(out, latest)
		}
	}
	return store.Page(out, q.Limit, q.Offset), nil
}

func (a *Adapter) SPARQL(context.Context, string) ([]map[string]any, error) {
	return nil, fmt.Errorf("memory: sparql: %w", kgforge.ErrNotSupported)
}

func (a *Adapter) Upload(_ context.Context, file store.File) (*kgforge.Resource, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	location := store.NewID(a.base + "files/")
	stored := file
	stored.Data = append([]byte(nil), file.Data...)
	a.files[location] = stored
	return store.FileResource(location, file), nil
}

func (a *Adapter) Download(_ context.Context, location, dir string) (string, error) {
	a.mu.RLock()
	file, ok := a.files[location]
	a.mu.RUnlock()
	if !ok {
		return "", &kgforge.NotFoundError{ID: location}
	}
	path := filepath.Join(dir, file.Name)
	if err := os.WriteFile(path, file.Data, 0o644); err != nil {
		return "", fmt.Errorf("memory: download %s: %w", location, err)
	}
	return path, nil
}

func snapshot(r *kgforge.Resource, id string, revision int, deprecated bool) *kgforge.Resource {
	out := r.Clone()
	out.ID = id
	out.Meta = kgforge.Metadata{Revision: revision, Deprecated: deprecated}
	return out
}
