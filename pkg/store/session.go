package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	kgforge "github.com/goliatone/go-kgforge"
	"github.com/goliatone/go-kgforge/pkg/activity"
	"go.uber.org/zap"
)

// Validator checks a resource before it is written. model.Model satisfies it.
type Validator interface {
	Validate(r *kgforge.Resource) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(r *kgforge.Resource) error

// Validate calls fn.
func (fn ValidatorFunc) Validate(r *kgforge.Resource) error {
	if fn == nil {
		return nil
	}
	return fn(r)
}

// Option configures a Store.
type Option func(*Store)

// WithVocabulary sets the prefixes prepended to SPARQL queries.
func WithVocabulary(vocab *kgforge.Vocabulary) Option {
	return func(s *Store) {
		s.vocab = vocab
	}
}

// WithVersionedTemplate sets the template used by Freeze. It must contain
// {id} and {rev}.
func WithVersionedTemplate(template string) Option {
	return func(s *Store) {
		if template != "" {
			s.template = template
		}
	}
}

// WithValidator checks resources before register and update.
func WithValidator(v Validator) Option {
	return func(s *Store) {
		s.validator = v
	}
}

// WithEmitter publishes lifecycle events.
func WithEmitter(emitter *activity.Emitter) Option {
	return func(s *Store) {
		s.emitter = emitter
	}
}

// WithActor records actorID on emitted events.
func WithActor(actorID string) Option {
	return func(s *Store) {
		s.actor = actorID
	}
}

// WithBucket names the backend bucket in emitted events and logs.
func WithBucket(bucket string) Option {
	return func(s *Store) {
		s.bucket = bucket
	}
}

// WithLogger sets the logger. Defaults to zap.NewNop.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store is one session against a backend adapter.
type Store struct {
	adapter   Adapter
	vocab     *kgforge.Vocabulary
	template  string
	validator Validator
	emitter   *activity.Emitter
	actor     string
	bucket    string
	logger    *zap.Logger
	now       func() time.Time

	mu    sync.RWMutex
	cache map[string]State
}

// New opens a session on adapter.
func New(adapter Adapter, opts ...Option) *Store {
	s := &Store{
		adapter:  adapter,
		template: DefaultVersionedTemplate,
		logger:   zap.NewNop(),
		now:      time.Now,
		cache:    map[string]State{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = s.logger.With(zap.String("bucket", s.bucket))
	return s
}

// Adapter returns the backend of the session.
func (s *Store) Adapter() Adapter {
	return s.adapter
}

// Known returns the cached sync state of id.
func (s *Store) Known(id string) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.cache[id]
	return state, ok
}

func (s *Store) remember(state State) {
	if state.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if known, ok := s.cache[state.ID]; ok && known.Revision > state.Revision {
		return
	}
	s.cache[state.ID] = state
}

// Register persists an unregistered resource. Pending actions are
// materialized first; on success r carries its id at revision 1.
func (s *Store) Register(ctx context.Context, r *kgforge.Resource) error {
	if r == nil {
		return &kgforge.InvalidResourceStateError{Operation: "register", Reason: "nil resource"}
	}
	if r.Meta.Registered() {
		return &kgforge.InvalidResourceStateError{ID: r.ID, Operation: "register", Reason: fmt.Sprintf("already registered at revision %d", r.Meta.Revision)}
	}
	if err := s.check(r); err != nil {
		return err
	}
	if err := kgforge.ExecuteActions(ctx, r); err != nil {
		return err
	}
	state, err := s.adapter.Register(ctx, r)
	if err != nil {
		s.logger.Debug("register failed", zap.Error(err))
		return err
	}
	s.synced(r, state)
	s.logger.Debug("registered", zap.String("id", r.ID), zap.Int("revision", r.Meta.Revision))
	s.emit(ctx, activity.BuildRegisteredEvent, r, "")
	return nil
}

// Update persists the local changes of r as a new revision. The revision r
// carries must be the backend's current one.
func (s *Store) Update(ctx context.Context, r *kgforge.Resource) error {
	if err := s.mutable(r, "update"); err != nil {
		return err
	}
	if err := s.check(r); err != nil {
		return err
	}
	if err := kgforge.ExecuteActions(ctx, r); err != nil {
		return err
	}
	state, err := s.adapter.Update(ctx, r, r.Meta.Revision)
	if err != nil {
		s.logger.Debug("update failed", zap.String("id", r.ID), zap.Error(err))
		return err
	}
	s.synced(r, state)
	s.logger.Debug("updated", zap.String("id", r.ID), zap.Int("revision", r.Meta.Revision))
	s.emit(ctx, activity.BuildUpdatedEvent, r, "")
	return nil
}

// Deprecate marks r as deprecated in a new revision. Deprecated resources
// reject update and deprecate.
func (s *Store) Deprecate(ctx context.Context, r *kgforge.Resource) error {
	if err := s.mutable(r, "deprecate"); err != nil {
		return err
	}
	state, err := s.adapter.Deprecate(ctx, r.ID, r.Meta.Revision)
	if err != nil {
		s.logger.Debug("deprecate failed", zap.String("id", r.ID), zap.Error(err))
		return err
	}
	state.Deprecated = true
	s.synced(r, state)
	s.logger.Debug("deprecated", zap.String("id", r.ID), zap.Int("revision", r.Meta.Revision))
	s.emit(ctx, activity.BuildDeprecatedEvent, r, "")
	return nil
}

// Tag binds tag to the current revision of r. Deprecated resources can be
// tagged.
func (s *Store) Tag(ctx context.Context, r *kgforge.Resource, tag string) error {
	if err := registered(r, "tag"); err != nil {
		return err
	}
	if tag == "" {
		return &kgforge.InvalidResourceStateError{ID: r.ID, Operation: "tag", Reason: "empty tag"}
	}
	if err := s.adapter.Tag(ctx, r.ID, r.Meta.Revision, tag); err != nil {
		s.logger.Debug("tag failed", zap.String("id", r.ID), zap.String("tag", tag), zap.Error(err))
		return err
	}
	if r.Meta.Tags == nil {
		r.Meta.Tags = map[string]int{}
	}
	r.Meta.Tags[tag] = r.Meta.Revision
	s.logger.Debug("tagged", zap.String("id", r.ID), zap.String("tag", tag), zap.Int("revision", r.Meta.Revision))
	s.emit(ctx, activity.BuildTaggedEvent, r, tag)
	return nil
}

// RegisterMany registers every resource in order. Failures are reported
// together, by position, after all resources were attempted.
func (s *Store) RegisterMany(ctx context.Context, rs []*kgforge.Resource) error {
	return s.each("register", rs, func(r *kgforge.Resource) error {
		return s.Register(ctx, r)
	})
}

// UpdateMany updates every resource in order.
func (s *Store) UpdateMany(ctx context.Context, rs []*kgforge.Resource) error {
	return s.each("update", rs, func(r *kgforge.Resource) error {
		return s.Update(ctx, r)
	})
}

// DeprecateMany deprecates every resource in order.
func (s *Store) DeprecateMany(ctx context.Context, rs []*kgforge.Resource) error {
	return s.each("deprecate", rs, func(r *kgforge.Resource) error {
		return s.Deprecate(ctx, r)
	})
}

// TagMany tags every resource in order.
func (s *Store) TagMany(ctx context.Context, rs []*kgforge.Resource, tag string) error {
	return s.each("tag", rs, func(r *kgforge.Resource) error {
		return s.Tag(ctx, r, tag)
	})
}

// Retrieve reads id at version, the latest revision for the zero Version.
func (s *Store) Retrieve(ctx context.Context, id string, version Version) (*kgforge.Resource, error) {
	if id == "" {
		return nil, &kgforge.NotFoundError{ID: "<empty>", Version: version.String()}
	}
	r, err := s.adapter.Retrieve(ctx, id, version)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, &kgforge.NotFoundError{ID: id, Version: version.String()}
	}
	r.Meta.Synced = true
	if version.Latest() {
		s.remember(State{ID: r.ID, Revision: r.Meta.Revision, Deprecated: r.Meta.Deprecated})
	}
	return r, nil
}

// Search returns the resources matching q in the backend's stable order.
func (s *Store) Search(ctx context.Context, q Query) ([]*kgforge.Resource, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	out, err := s.adapter.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	for _, r := range out {
		r.Meta.Synced = true
	}
	s.logger.Debug("searched", zap.Int("filters", len(q.Filters)), zap.Int("results", len(out)))
	return out, nil
}

// SPARQL runs query with the vocabulary prefixes declared first.
func (s *Store) SPARQL(ctx context.Context, query string) ([]map[string]any, error) {
	full := s.vocab.SPARQLPrologue() + query
	rows, err := s.adapter.SPARQL(ctx, full)
	if err != nil {
		if errors.Is(err, kgforge.ErrNotSupported) {
			s.logger.Debug("sparql not supported by adapter")
		}
		return nil, err
	}
	return rows, nil
}

func (s *Store) check(r *kgforge.Resource) error {
	if s.validator == nil {
		return nil
	}
	return s.validator.Validate(r)
}

func registered(r *kgforge.Resource, operation string) error {
	if r == nil {
		return &kgforge.InvalidResourceStateError{Operation: operation, Reason: "nil resource"}
	}
	if !r.Meta.Registered() || r.ID == "" {
		return &kgforge.InvalidResourceStateError{ID: r.ID, Operation: operation, Reason: "not registered"}
	}
	return nil
}

// mutable rejects unregistered and deprecated resources, and detects a stale
// revision when the session already knows a newer one.
func (s *Store) mutable(r *kgforge.Resource, operation string) error {
	if err := registered(r, operation); err != nil {
		return err
	}
	known, ok := s.Known(r.ID)
	if r.Meta.Deprecated || (ok && known.Deprecated) {
		return &kgforge.InvalidResourceStateError{ID: r.ID, Operation: operation, Reason: "resource is deprecated"}
	}
	if ok && known.Revision > r.Meta.Revision {
		return &kgforge.RevisionConflictError{ID: r.ID, Expected: r.Meta.Revision, Actual: known.Revision}
	}
	return nil
}

func (s *Store) synced(r *kgforge.Resource, state State) {
	if state.ID != "" {
		r.ID = state.ID
	}
	r.Meta.Revision = state.Revision
	r.Meta.Deprecated = state.Deprecated
	r.Meta.Synced = true
	s.remember(State{ID: r.ID, Revision: state.Revision, Deprecated: state.Deprecated})
}

func (s *Store) each(operation string, rs []*kgforge.Resource, fn func(*kgforge.Resource) error) error {
	var failures []kgforge.ItemError
	for i, r := range rs {
		if err := fn(r); err != nil {
			failures = append(failures, kgforge.ItemError{Index: i, Err: err})
		}
	}
	if len(failures) > 0 {
		s.logger.Warn("batch completed with failures",
			zap.String("operation", operation),
			zap.Int("total", len(rs)),
			zap.Int("failed", len(failures)),
		)
	}
	return kgforge.NewBatchError(operation, len(rs), failures)
}

func (s *Store) emit(ctx context.Context, build func(activity.ResourceEventInput) activity.Event, r *kgforge.Resource, tag string) {
	if !s.emitter.Enabled() {
		return
	}
	event := build(activity.ResourceEventInput{
		ActorID:    s.actor,
		ID:         r.ID,
		Types:      r.Types,
		Revision:   r.Meta.Revision,
		Tag:        tag,
		Bucket:     s.bucket,
		OccurredAt: s.now(),
	})
	if err := s.emitter.Emit(ctx, event); err != nil {
		s.logger.Warn("activity hook failed", zap.String("verb", event.Verb), zap.String("id", r.ID), zap.Error(err))
	}
}
