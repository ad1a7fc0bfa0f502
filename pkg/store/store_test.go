package store_test

import (
	"context"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	kgforge "github.com/goliatone/go-kgforge"
	"github.com/goliatone/go-kgforge/pkg/activity"
	"github.com/goliatone/go-kgforge/pkg/store"
	"github.com/goliatone/go-kgforge/pkg/store/memory"
	"github.com/google/go-cmp/cmp"
	"github.com/zeebo/blake3"
)

// countingAdapter records the calls the session makes to its backend.
type countingAdapter struct {
	store.Adapter
	retrieves int
	query     string
}

func (a *countingAdapter) Retrieve(ctx context.Context, id string, version store.Version) (*kgforge.Resource, error) {
	a.retrieves++
	return a.Adapter.Retrieve(ctx, id, version)
}

func (a *countingAdapter) SPARQL(_ context.Context, query string) ([]map[string]any, error) {
	a.query = query
	return []map[string]any{{"s": "urn:p:1"}}, nil
}

func newSession(opts ...store.Option) (*store.Store, *countingAdapter) {
	adapter := &countingAdapter{Adapter: memory.New(store.Config{Bucket: "people"})}
	return store.New(adapter, opts...), adapter
}

func alice() *kgforge.Resource {
	r := kgforge.NewResource("Person")
	r.MustSet("name", "Alice")
	return r
}

func TestRegisterAssignsIdentity(t *testing.T) {
	s, _ := newSession()
	r := alice()
	if err := s.Register(context.Background(), r); err != nil {
		t.Fatalf("register: %v", err)
	}
	if r.ID == "" || r.Meta.Revision != 1 || !r.Meta.Synced {
		t.Fatalf("unexpected state id=%q meta=%+v", r.ID, r.Meta)
	}
	known, ok := s.Known(r.ID)
	if !ok || known.Revision != 1 {
		t.Fatalf("expected session cache to hold revision 1, got %+v", known)
	}
	if err := s.Register(context.Background(), r); !errors.Is(err, kgforge.ErrInvalidResourceState) {
		t.Fatalf("expected second register to fail, got %v", err)
	}
}

func TestUpdateBumpsRevision(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession()
	r := alice()
	if err := s.Register(ctx, r); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Set("name", "Alicia"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if r.Meta.Synced {
		t.Fatalf("expected local change to clear synced")
	}
	if err := s.Update(ctx, r); err != nil {
		t.Fatalf("update: %v", err)
	}
	if r.Meta.Revision != 2 || !r.Meta.Synced {
		t.Fatalf("unexpected meta %+v", r.Meta)
	}
	got, err := s.Retrieve(ctx, r.ID, store.Version{Revision: 1})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if name, _ := got.Get("name"); name != "Alice" {
		t.Fatalf("expected revision 1 to keep the old name, got %v", name)
	}
}

func TestUpdateWithStaleCopyConflicts(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession()
	r := alice()
	if err := s.Register(ctx, r); err != nil {
		t.Fatalf("register: %v", err)
	}
	stale := r.Clone()
	r.MustSet("name", "Alicia")
	if err := s.Update(ctx, r); err != nil {
		t.Fatalf("update: %v", err)
	}

	stale.MustSet("name", "Ally")
	err := s.Update(ctx, stale)
	var conflict *kgforge.RevisionConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected revision conflict, got %v", err)
	}
	if conflict.Expected != 1 || conflict.Actual != 2 {
		t.Fatalf("unexpected conflict %+v", conflict)
	}
}

func TestOutOfBandUpdateConflicts(t *testing.T) {
	ctx := context.Background()
	adapter := memory.New(store.Config{})
	mine := store.New(adapter)
	theirs := store.New(adapter)

	r := alice()
	if err := mine.Register(ctx, r); err != nil {
		t.Fatalf("register: %v", err)
	}
	theirCopy, err := theirs.Retrieve(ctx, r.ID, store.Version{})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	theirCopy.MustSet("name", "Alicia")
	if err := theirs.Update(ctx, theirCopy); err != nil {
		t.Fatalf("out of band update: %v", err)
	}

	r.MustSet("name", "Ally")
	if err := mine.Update(ctx, r); !errors.Is(err, kgforge.ErrRevisionConflict) {
		t.Fatalf("expected revision conflict, got %v", err)
	}
}

func TestDeprecatedResourcesRejectMutation(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession()
	r := alice()
	if err := s.Register(ctx, r); err != nil {
		t.Fatalf("register: %v", err)
	}
	stale := r.Clone()
	if err := s.Deprecate(ctx, r); err != nil {
		t.Fatalf("deprecate: %v", err)
	}
	if !r.Meta.Deprecated || r.Meta.Revision != 2 {
		t.Fatalf("unexpected meta %+v", r.Meta)
	}

	r.MustSet("name", "Alicia")
	if err := s.Update(ctx, r); !errors.Is(err, kgforge.ErrInvalidResourceState) {
		t.Fatalf("expected update of deprecated resource to fail, got %v", err)
	}
	if err := s.Update(ctx, stale); !errors.Is(err, kgforge.ErrInvalidResourceState) {
		t.Fatalf("expected stale copy of deprecated resource to fail, got %v", err)
	}
	if err := s.Deprecate(ctx, r); !errors.Is(err, kgforge.ErrInvalidResourceState) {
		t.Fatalf("expected second deprecate to fail, got %v", err)
	}
	if err := s.Tag(ctx, r, "retired"); err != nil {
		t.Fatalf("tag deprecated: %v", err)
	}
	if r.Meta.Tags["retired"] != 2 {
		t.Fatalf("expected tag bound to revision 2, got %v", r.Meta.Tags)
	}
}

func TestUnregisteredResourcesRejectLifecycle(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession()
	r := alice()
	checks := map[string]error{
		"update":    s.Update(ctx, r),
		"deprecate": s.Deprecate(ctx, r),
		"tag":       s.Tag(ctx, r, "v1"),
	}
	for op, err := range checks {
		if !errors.Is(err, kgforge.ErrInvalidResourceState) {
			t.Fatalf("%s: expected invalid resource state, got %v", op, err)
		}
	}
	if _, err := s.Freeze(ctx, r); !errors.Is(err, kgforge.ErrInvalidResourceState) {
		t.Fatalf("freeze: expected invalid resource state, got %v", err)
	}
}

func TestTagKeepsRevision(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession()
	r := alice()
	if err := s.Register(ctx, r); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.Tag(ctx, r, "v1.0"); err != nil {
		t.Fatalf("tag: %v", err)
	}
	if r.Meta.Revision != 1 || r.Meta.Tags["v1.0"] != 1 {
		t.Fatalf("unexpected meta %+v", r.Meta)
	}
	r.MustSet("name", "Alicia")
	if err := s.Update(ctx, r); err != nil {
		t.Fatalf("update: %v", err)
	}
	tagged, err := s.Retrieve(ctx, r.ID, store.Version{Tag: "v1.0"})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if name, _ := tagged.Get("name"); name != "Alice" || tagged.Meta.Revision != 1 {
		t.Fatalf("expected tagged revision 1, got %v at %d", name, tagged.Meta.Revision)
	}
	if err := s.Tag(ctx, r, ""); !errors.Is(err, kgforge.ErrInvalidResourceState) {
		t.Fatalf("expected empty tag to fail, got %v", err)
	}
}

func TestRegisterManyToleratesFailures(t *testing.T) {
	ctx := context.Background()
	requireName := store.ValidatorFunc(func(r *kgforge.Resource) error {
		if _, ok := r.Get("name"); !ok {
			return &kgforge.ValidationError{Type: "Person", Path: "name", Constraint: "MinCount", Reason: "name is required"}
		}
		return nil
	})
	s, _ := newSession(store.WithValidator(requireName))
	rs := []*kgforge.Resource{alice(), kgforge.NewResource("Person"), alice()}

	err := s.RegisterMany(ctx, rs)
	var batch *kgforge.BatchError
	if !errors.As(err, &batch) {
		t.Fatalf("expected batch error, got %v", err)
	}
	if diff := cmp.Diff([]int{1}, batch.Indexes()); diff != "" {
		t.Fatalf("failure indexes mismatch (-want +got):\n%s", diff)
	}
	if !errors.Is(err, kgforge.ErrValidation) {
		t.Fatalf("expected validation failure to unwrap, got %v", err)
	}
	if rs[0].Meta.Revision != 1 || rs[2].Meta.Revision != 1 || rs[1].Meta.Registered() {
		t.Fatalf("expected valid entries registered and the invalid one untouched")
	}
	if rs[0].ID == rs[2].ID {
		t.Fatalf("expected distinct ids")
	}
}

func TestBatchOperationsKeepPositions(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession()
	rs := []*kgforge.Resource{alice(), alice()}
	if err := s.RegisterMany(ctx, rs); err != nil {
		t.Fatalf("register many: %v", err)
	}
	if err := s.Deprecate(ctx, rs[0]); err != nil {
		t.Fatalf("deprecate: %v", err)
	}
	err := s.UpdateMany(ctx, rs)
	var batch *kgforge.BatchError
	if !errors.As(err, &batch) || !slices.Equal(batch.Indexes(), []int{0}) {
		t.Fatalf("expected update failure at 0, got %v", err)
	}
	if rs[1].Meta.Revision != 2 {
		t.Fatalf("expected second resource updated, got revision %d", rs[1].Meta.Revision)
	}
	if err := s.TagMany(ctx, rs, "release"); err != nil {
		t.Fatalf("tag many: %v", err)
	}
	if err := s.DeprecateMany(ctx, rs); !errors.As(err, &batch) || !slices.Equal(batch.Indexes(), []int{0}) {
		t.Fatalf("expected deprecate failure at 0, got %v", err)
	}
}

func TestRetrieveUnknown(t *testing.T) {
	s, _ := newSession()
	_, err := s.Retrieve(context.Background(), "urn:missing", store.Version{Revision: 3})
	var notFound *kgforge.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if notFound.Version != "rev=3" {
		t.Fatalf("unexpected version %q", notFound.Version)
	}
}

func TestSearchValidatesQuery(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession()
	for _, name := range []string{"Alice", "Bob"} {
		r := kgforge.NewResource("Person")
		r.MustSet("name", name)
		if err := s.Register(ctx, r); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	found, err := s.Search(ctx, store.Query{Filters: []store.Filter{{Path: "name", Value: "Bob"}}})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 1 || !found[0].Meta.Synced {
		t.Fatalf("unexpected result %v", found)
	}
	if _, err := s.Search(ctx, store.Query{Filters: []store.Filter{{Path: "name", Operator: "like"}}}); err == nil {
		t.Fatalf("expected unknown operator to fail")
	}
	if _, err := s.Search(ctx, store.Query{Limit: -1}); err == nil {
		t.Fatalf("expected negative limit to fail")
	}
}

func TestSPARQLPrependsPrefixes(t *testing.T) {
	vocab := kgforge.NewVocabulary("https://schema.org/", map[string]string{"schema": "https://schema.org/"})
	s, adapter := newSession(store.WithVocabulary(vocab))
	rows, err := s.SPARQL(context.Background(), "SELECT ?s WHERE { ?s a schema:Person }")
	if err != nil {
		t.Fatalf("sparql: %v", err)
	}
	want := "PREFIX schema: <https://schema.org/>\nSELECT ?s WHERE { ?s a schema:Person }"
	if adapter.query != want {
		t.Fatalf("unexpected query:\n%s", adapter.query)
	}
	if len(rows) != 1 {
		t.Fatalf("expected adapter rows, got %v", rows)
	}
}

func TestFreezePinsNestedRevisions(t *testing.T) {
	ctx := context.Background()
	s, adapter := newSession()

	address := kgforge.NewResource("PostalAddress")
	address.MustSet("street", "Main")
	if err := s.Register(ctx, address); err != nil {
		t.Fatalf("register address: %v", err)
	}
	address.MustSet("street", "Second")
	if err := s.Update(ctx, address); err != nil {
		t.Fatalf("update address: %v", err)
	}

	person := alice()
	person.MustSet("address", address)
	if err := s.Register(ctx, person); err != nil {
		t.Fatalf("register person: %v", err)
	}

	frozen, err := s.Freeze(ctx, person)
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if frozen.ID != person.ID+"?rev=1" {
		t.Fatalf("unexpected frozen id %s", frozen.ID)
	}
	if id, _ := frozen.Get("address.id"); id != address.ID+"?rev=2" {
		t.Fatalf("unexpected nested id %v", id)
	}
	if adapter.retrieves != 0 {
		t.Fatalf("expected known revisions to skip the backend, got %d retrieves", adapter.retrieves)
	}
	if strings.Contains(person.ID, "?rev=") {
		t.Fatalf("freeze mutated its input: %s", person.ID)
	}

	again, err := s.Freeze(ctx, frozen)
	if err != nil {
		t.Fatalf("freeze frozen: %v", err)
	}
	if again.ID != frozen.ID {
		t.Fatalf("expected freeze to be idempotent, got %s", again.ID)
	}
}

func TestFreezeRetrievesUnknownRevisions(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession()
	person := alice()
	if err := s.Register(ctx, person); err != nil {
		t.Fatalf("register: %v", err)
	}
	person.MustSet("name", "Alicia")
	if err := s.Update(ctx, person); err != nil {
		t.Fatalf("update: %v", err)
	}

	other := store.New(s.Adapter().(*countingAdapter))
	counting := s.Adapter().(*countingAdapter)
	counting.retrieves = 0

	friend := kgforge.NewResource("Person")
	friend.MustSet("name", "Bob")
	friend.MustSet("knows", []any{&kgforge.Resource{ID: person.ID}})
	if err := other.Register(ctx, friend); err != nil {
		t.Fatalf("register friend: %v", err)
	}
	frozen, err := other.Freeze(ctx, friend)
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}
	knows, _ := frozen.Get("knows")
	ref := knows.([]any)[0].(*kgforge.Resource)
	if ref.ID != person.ID+"?rev=2" {
		t.Fatalf("unexpected pinned reference %s", ref.ID)
	}
	if counting.retrieves != 1 {
		t.Fatalf("expected one backend retrieve, got %d", counting.retrieves)
	}

	dangling := kgforge.NewResource("Person")
	dangling.MustSet("knows", &kgforge.Resource{ID: "urn:missing"})
	if err := other.Register(ctx, dangling); err != nil {
		t.Fatalf("register dangling: %v", err)
	}
	frozenMany, err := other.FreezeMany(ctx, []*kgforge.Resource{friend, dangling})
	var batch *kgforge.BatchError
	if !errors.As(err, &batch) || !slices.Equal(batch.Indexes(), []int{1}) {
		t.Fatalf("expected freeze failure at 1, got %v", err)
	}
	if frozenMany[0] == nil || frozenMany[1] != nil {
		t.Fatalf("expected positional results, got %v", frozenMany)
	}
	if !errors.Is(err, kgforge.ErrNotFound) {
		t.Fatalf("expected not found to unwrap, got %v", err)
	}
}

func TestVersionedTemplate(t *testing.T) {
	if got := store.VersionedID("{id}/revisions/{rev}", "urn:p:1", 4); got != "urn:p:1/revisions/4" {
		t.Fatalf("unexpected id %s", got)
	}
	ctx := context.Background()
	s, _ := newSession(store.WithVersionedTemplate("{id}@{rev}"))
	r := alice()
	if err := s.Register(ctx, r); err != nil {
		t.Fatalf("register: %v", err)
	}
	reshaped, err := kgforge.Reshape(r, []string{"id", "name"}, s.Versioned())
	if err != nil {
		t.Fatalf("reshape: %v", err)
	}
	if reshaped.ID != r.ID+"@1" {
		t.Fatalf("unexpected reshaped id %s", reshaped.ID)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestAttachUploadsAtRegistration(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession()
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), "alpha")
	writeFile(t, filepath.Join(src, "sub", "b.csv"), "beta")

	dataset := kgforge.NewResource("Dataset")
	dataset.MustSet("distribution", s.Attach(src, ""))
	if diff := cmp.Diff([]string{"distribution"}, dataset.PendingActions()); diff != "" {
		t.Fatalf("pending actions mismatch (-want +got):\n%s", diff)
	}
	if err := s.Register(ctx, dataset); err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(dataset.PendingActions()) != 0 {
		t.Fatalf("expected actions materialized, got %v", dataset.PendingActions())
	}
	value, _ := dataset.Get("distribution")
	files, ok := value.([]any)
	if !ok || len(files) != 2 {
		t.Fatalf("expected two file resources, got %v", value)
	}
	first := files[0].(*kgforge.Resource)
	if !first.HasType(store.FileType) {
		t.Fatalf("unexpected types %v", first.Types)
	}
	sum := blake3.Sum256([]byte("alpha"))
	if digest, _ := first.Get("digest"); digest != "blake3:"+hex.EncodeToString(sum[:]) {
		t.Fatalf("unexpected digest %v", digest)
	}
	if format, _ := first.Get("encodingFormat"); !strings.HasPrefix(format.(string), "text/plain") {
		t.Fatalf("unexpected format %v", format)
	}

	single := kgforge.NewResource("Dataset")
	single.MustSet("distribution", s.Attach(filepath.Join(src, "**", "*.csv"), "text/csv"))
	if err := s.Register(ctx, single); err != nil {
		t.Fatalf("register glob: %v", err)
	}
	globbed, _ := single.Get("distribution")
	if list, ok := globbed.([]any); !ok || len(list) != 1 {
		t.Fatalf("expected one globbed file, got %v", globbed)
	}

	out := t.TempDir()
	paths, err := s.Download(ctx, []*kgforge.Resource{dataset, kgforge.NewResource("Dataset"), single}, "distribution.contentUrl", out)
	var downloadErr *kgforge.DownloadError
	if !errors.As(err, &downloadErr) {
		t.Fatalf("expected download error, got %v", err)
	}
	if len(downloadErr.Failures) != 1 || downloadErr.Failures[0].Index != 1 {
		t.Fatalf("expected one failure at 1, got %v", downloadErr.Failures)
	}
	if len(paths) != 3 {
		t.Fatalf("expected every other file downloaded, got %v", paths)
	}
	data, err := os.ReadFile(filepath.Join(out, "a.txt"))
	if err != nil || string(data) != "alpha" {
		t.Fatalf("unexpected download %q: %v", data, err)
	}
}

func TestAttachMissingFileFailsRegistration(t *testing.T) {
	s, _ := newSession()
	r := kgforge.NewResource("Dataset")
	r.MustSet("distribution", s.Attach(filepath.Join(t.TempDir(), "missing.txt"), ""))
	if err := s.Register(context.Background(), r); err == nil {
		t.Fatalf("expected missing attachment to fail")
	}
	if r.Meta.Registered() {
		t.Fatalf("expected resource to stay unregistered")
	}
}

func TestLifecycleEmitsEvents(t *testing.T) {
	ctx := context.Background()
	capture := &activity.CaptureHook{}
	emitter := activity.NewEmitter(activity.Hooks{capture}, activity.Config{Enabled: true})
	s, _ := newSession(store.WithEmitter(emitter), store.WithActor("actor-1"), store.WithBucket("people"))

	r := alice()
	if err := s.Register(ctx, r); err != nil {
		t.Fatalf("register: %v", err)
	}
	r.MustSet("name", "Alicia")
	if err := s.Update(ctx, r); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.Tag(ctx, r, "v2"); err != nil {
		t.Fatalf("tag: %v", err)
	}
	if err := s.Deprecate(ctx, r); err != nil {
		t.Fatalf("deprecate: %v", err)
	}

	for _, event := range capture.Events {
		if event.ObjectID != r.ID || event.Channel != activity.DefaultChannel || event.ActorID != "actor-1" {
			t.Fatalf("unexpected event %+v", event)
		}
	}
	want := []string{activity.VerbRegistered, activity.VerbUpdated, activity.VerbTagged, activity.VerbDeprecated}
	if diff := cmp.Diff(want, capture.Verbs()); diff != "" {
		t.Fatalf("verbs mismatch (-want +got):\n%s", diff)
	}
	if tag := capture.Events[2].Tag; tag != "v2" {
		t.Fatalf("expected tag, got %q", tag)
	}
	if rev := capture.Events[3].Revision; rev != 3 {
		t.Fatalf("expected deprecation at revision 3, got %d", rev)
	}
	if bucket := capture.Events[0].Bucket; bucket != "people" {
		t.Fatalf("expected bucket, got %q", bucket)
	}
}

func TestRegistryResolvesAdapters(t *testing.T) {
	registry := store.NewRegistry()
	if err := registry.Register(memory.Name, memory.Factory); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := registry.New(context.Background(), store.Config{Name: memory.Name}); err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := registry.New(context.Background(), store.Config{Name: "nexus"}); !errors.Is(err, kgforge.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if diff := cmp.Diff([]string{memory.Name}, registry.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFilter(t *testing.T) {
	cases := []struct {
		in   string
		want store.Filter
	}{
		{"name=Alice", store.Filter{Path: "name", Operator: store.OpEqual, Value: "Alice"}},
		{"age ge 30", store.Filter{Path: "age", Operator: store.OpGreaterEqual, Value: "30"}},
		{"address.city contains lis bon", store.Filter{Path: "address.city", Operator: store.OpContains, Value: "lis bon"}},
	}
	for _, tc := range cases {
		got, err := store.ParseFilter(tc.in)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("parse %q mismatch (-want +got):\n%s", tc.in, diff)
		}
	}
	if _, err := store.ParseFilter("age"); err == nil {
		t.Fatalf("expected malformed filter to fail")
	}
	if _, err := store.ParseFilter("age like 3"); err == nil {
		t.Fatalf("expected unknown operator to fail")
	}
}

func TestFilterMatching(t *testing.T) {
	r := kgforge.NewResource("Person", "Agent")
	r.MustSet("age", 30)
	r.MustSet("tags", []string{"red", "blue"})
	r.MustSet("address.city", "Lisbon")

	cases := []struct {
		filter store.Filter
		want   bool
	}{
		{store.Filter{Path: "age", Value: "30"}, true},
		{store.Filter{Path: "age", Operator: store.OpLess, Value: 31}, true},
		{store.Filter{Path: "age", Operator: store.OpGreater, Value: 30}, false},
		{store.Filter{Path: "tags", Value: "blue"}, true},
		{store.Filter{Path: "tags", Operator: store.OpNotEqual, Value: "blue"}, false},
		{store.Filter{Path: "type", Value: "Agent"}, true},
		{store.Filter{Path: "address.city", Operator: store.OpContains, Value: "lis"}, true},
		{store.Filter{Path: "missing", Operator: store.OpNotEqual, Value: "x"}, true},
		{store.Filter{Path: "missing", Value: "x"}, false},
	}
	for _, tc := range cases {
		if got := tc.filter.Matches(r); got != tc.want {
			t.Fatalf("%+v: got %t want %t", tc.filter, got, tc.want)
		}
	}
}
