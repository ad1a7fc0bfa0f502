// Package sqlite is a store adapter persisting revisions in SQLite through
// the pure Go modernc.org/sqlite driver. Every revision is kept as a CBOR
// payload; tags and uploaded files live in their own tables.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	kgforge "github.com/goliatone/go-kgforge"
	"github.com/goliatone/go-kgforge/pkg/store"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// Name is the adapter name used in configuration.
const Name = "sqlite"

// DefaultDSN keeps the database in memory.
const DefaultDSN = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS resources (
	bucket     TEXT    NOT NULL,
	id         TEXT    NOT NULL,
	revision   INTEGER NOT NULL,
	deprecated INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (bucket, id)
);
CREATE TABLE IF NOT EXISTS revisions (
	bucket     TEXT    NOT NULL,
	id         TEXT    NOT NULL,
	revision   INTEGER NOT NULL,
	deprecated INTEGER NOT NULL DEFAULT 0,
	payload    BLOB    NOT NULL,
	PRIMARY KEY (bucket, id, revision)
);
CREATE TABLE IF NOT EXISTS tags (
	bucket   TEXT    NOT NULL,
	id       TEXT    NOT NULL,
	tag      TEXT    NOT NULL,
	revision INTEGER NOT NULL,
	PRIMARY KEY (bucket, id, tag)
);
CREATE TABLE IF NOT EXISTS files (
	bucket       TEXT    NOT NULL,
	location     TEXT    NOT NULL,
	name         TEXT    NOT NULL,
	content_type TEXT    NOT NULL,
	digest       TEXT    NOT NULL,
	size         INTEGER NOT NULL,
	data         BLOB    NOT NULL,
	PRIMARY KEY (bucket, location)
);`

// Adapter implements store.Adapter on a SQLite database.
type Adapter struct {
	db     *sql.DB
	bucket string
	base   string
	logger *zap.Logger
}

// Open connects to the database named by cfg.Endpoint (DefaultDSN when
// empty) and creates the tables.
func Open(ctx context.Context, cfg store.Config) (*Adapter, error) {
	dsn := cfg.Endpoint
	if dsn == "" {
		dsn = DefaultDSN
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", dsn, err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "default"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	base, _ := cfg.Options["id_base"].(string)
	if base == "" {
		base = store.IDBase("", bucket)
	}
	return &Adapter{db: db, bucket: bucket, base: base, logger: logger}, nil
}

// Factory builds an Adapter for a store.Registry.
func Factory(ctx context.Context, cfg store.Config) (store.Adapter, error) {
	return Open(ctx, cfg)
}

// Close releases the database.
func (a *Adapter) Close() error {
	return a.db.Close()
}

func (a *Adapter) Register(ctx context.Context, r *kgforge.Resource) (store.State, error) {
	id := r.ID
	if id == "" {
		id = store.NewID(a.base)
	}
	payload, err := encodeResource(withID(r, id))
	if err != nil {
		return store.State{}, err
	}
	err = a.inTx(ctx, func(tx *sql.Tx) error {
		if _, found, err := a.current(ctx, tx, id); err != nil {
			return err
		} else if found {
			return &kgforge.InvalidResourceStateError{ID: id, Operation: "register", Reason: "id already exists"}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO resources (bucket, id, revision, deprecated) VALUES (?, ?, 1, 0)`, a.bucket, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO revisions (bucket, id, revision, deprecated, payload) VALUES (?, ?, 1, 0, ?)`, a.bucket, id, payload)
		return err
	})
	if err != nil {
		return store.State{}, err
	}
	a.logger.Debug("sqlite register", zap.String("id", id))
	return store.State{ID: id, Revision: 1}, nil
}

func (a *Adapter) Update(ctx context.Context, r *kgforge.Resource, expected int) (store.State, error) {
	payload, err := encodeResource(r)
	if err != nil {
		return store.State{}, err
	}
	return a.write(ctx, "update", r.ID, expected, false, func(context.Context, *sql.Tx) ([]byte, error) {
		return payload, nil
	})
}

func (a *Adapter) Deprecate(ctx context.Context, id string, expected int) (store.State, error) {
	return a.write(ctx, "deprecate", id, expected, true, func(ctx context.Context, tx *sql.Tx) ([]byte, error) {
		var payload []byte
		err := tx.QueryRowContext(ctx,
			`SELECT payload FROM revisions WHERE bucket = ? AND id = ? AND revision = ?`,
			a.bucket, id, expected,
		).Scan(&payload)
		return payload, err
	})
}

// write appends a revision after checking the expected one inside a
// transaction.
func (a *Adapter) write(ctx context.Context, operation, id string, expected int, deprecate bool, payload func(context.Context, *sql.Tx) ([]byte, error)) (store.State, error) {
	var next store.State
	err := a.inTx(ctx, func(tx *sql.Tx) error {
		current, found, err := a.current(ctx, tx, id)
		if err != nil {
			return err
		}
		if !found {
			return &kgforge.NotFoundError{ID: id}
		}
		if err := store.CheckWritable(operation, current, expected); err != nil {
			return err
		}
		data, err := payload(ctx, tx)
		if err != nil {
			return err
		}
		next = store.State{ID: id, Revision: current.Revision + 1, Deprecated: deprecate}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO revisions (bucket, id, revision, deprecated, payload) VALUES (?, ?, ?, ?, ?)`,
			a.bucket, id, next.Revision, deprecate, data,
		); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE resources SET revision = ?, deprecated = ? WHERE bucket = ? AND id = ?`,
			next.Revision, deprecate, a.bucket, id,
		)
		return err
	})
	if err != nil {
		return store.State{}, err
	}
	a.logger.Debug("sqlite "+operation, zap.String("id", id), zap.Int("revision", next.Revision))
	return next, nil
}

func (a *Adapter) Tag(ctx context.Context, id string, revision int, tag string) error {
	return a.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM revisions WHERE bucket = ? AND id = ? AND revision = ?`,
			a.bucket, id, revision,
		).Scan(&exists)
		if err != nil {
			return err
		}
		if exists == 0 {
			return &kgforge.NotFoundError{ID: id, Version: fmt.Sprintf("rev=%d", revision)}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO tags (bucket, id, tag, revision) VALUES (?, ?, ?, ?)
			 ON CONFLICT (bucket, id, tag) DO UPDATE SET revision = excluded.revision`,
			a.bucket, id, tag, revision,
		)
		return err
	})
}

func (a *Adapter) Retrieve(ctx context.Context, id string, version store.Version) (*kgforge.Resource, error) {
	query := `SELECT v.revision, v.deprecated, v.payload FROM revisions v
		JOIN resources r ON r.bucket = v.bucket AND r.id = v.id AND r.revision = v.revision
		WHERE v.bucket = ? AND v.id = ?`
	args := []any{a.bucket, id}
	switch {
	case version.Tag != "":
		query = `SELECT v.revision, v.deprecated, v.payload FROM revisions v
			JOIN tags t ON t.bucket = v.bucket AND t.id = v.id AND t.revision = v.revision
			WHERE v.bucket = ? AND v.id = ? AND t.tag = ?`
		args = append(args, version.Tag)
	case version.Revision > 0:
		query = `SELECT revision, deprecated, payload FROM revisions WHERE bucket = ? AND id = ? AND revision = ?`
		args = append(args, version.Revision)
	}
	var (
		revision   int
		deprecated bool
		payload    []byte
	)
	err := a.db.QueryRowContext(ctx, query, args...).Scan(&revision, &deprecated, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &kgforge.NotFoundError{ID: id, Version: version.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: retrieve %s: %w", id, err)
	}
	r, err := a.hydrate(ctx, id, revision, deprecated, payload)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Search scans the latest revisions in registration order.
func (a *Adapter) Search(ctx context.Context, q store.Query) ([]*kgforge.Resource, error) {
	query := `SELECT r.id, v.revision, v.deprecated, v.payload FROM resources r
		JOIN revisions v ON v.bucket = r.bucket AND v.id = r.id AND v.revision = r.revision
		WHERE r.bucket = ?`
	if !q.IncludeDeprecated {
		query += ` AND r.deprecated = 0`
	}
	query += ` ORDER BY r.rowid`
	rows, err := a.db.QueryContext(ctx, query, a.bucket)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search: %w", err)
	}
	type row struct {
		id         string
		revision   int
		deprecated bool
		payload    []byte
	}
	var scanned []row
	for rows.Next() {
		var item row
		if err := rows.Scan(&item.id, &item.revision, &item.deprecated, &item.payload); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: search: %w", err)
		}
		scanned = append(scanned, item)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: search: %w", err)
	}
	var out []*kgforge.Resource
	for _, item := range scanned {
		r, err := a.hydrate(ctx, item.id, item.revision, item.deprecated, item.payload)
		if err != nil {
			return nil, err
		}
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	return store.Page(out, q.Limit, q.Offset), nil
}

func (a *Adapter) SPARQL(context.Context, string) ([]map[string]any, error) {
	return nil, fmt.Errorf("sqlite: sparql: %w", kgforge.ErrNotSupported)
}

func (a *Adapter) Upload(ctx context.Context, file store.File) (*kgforge.Resource, error) {
	location := store.NewID(a.base + "files/")
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO files (bucket, location, name, content_type, digest, size, data) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.bucket, location, file.Name, file.ContentType, file.Digest, file.Size, file.Data,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: upload %s: %w", file.Name, err)
	}
	return store.FileResource(location, file), nil
}

func (a *Adapter) Download(ctx context.Context, location, dir string) (string, error) {
	var (
		name string
		data []byte
	)
	err := a.db.QueryRowContext(ctx,
		`SELECT name, data FROM files WHERE bucket = ? AND location = ?`,
		a.bucket, location,
	).Scan(&name, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &kgforge.NotFoundError{ID: location}
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: download %s: %w", location, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("sqlite: download %s: %w", location, err)
	}
	return path, nil
}

func (a *Adapter) current(ctx context.Context, tx *sql.Tx, id string) (store.State, bool, error) {
	state := store.State{ID: id}
	err := tx.QueryRowContext(ctx,
		`SELECT revision, deprecated FROM resources WHERE bucket = ? AND id = ?`,
		a.bucket, id,
	).Scan(&state.Revision, &state.Deprecated)
	if errors.Is(err, sql.ErrNoRows) {
		return state, false, nil
	}
	if err != nil {
		return state, false, err
	}
	return state, true, nil
}

func (a *Adapter) hydrate(ctx context.Context, id string, revision int, deprecated bool, payload []byte) (*kgforge.Resource, error) {
	r, err := decodeResource(payload)
	if err != nil {
		return nil, err
	}
	r.ID = id
	r.Meta = kgforge.Metadata{Revision: revision, Deprecated: deprecated, Synced: true}
	tags, err := a.tags(ctx, id)
	if err != nil {
		return nil, err
	}
	r.Meta.Tags = tags
	return r, nil
}

func (a *Adapter) tags(ctx context.Context, id string) (map[string]int, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT tag, revision FROM tags WHERE bucket = ? AND id = ? ORDER BY tag`, a.bucket, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: tags %s: %w", id, err)
	}
	defer rows.Close()
	var out map[string]int
	for rows.Next() {
		var (
			tag      string
			revision int
		)
		if err := rows.Scan(&tag, &revision); err != nil {
			return nil, err
		}
		if out == nil {
			out = map[string]int{}
		}
		out[tag] = revision
	}
	return out, rows.Err()
}

func (a *Adapter) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

func withID(r *kgforge.Resource, id string) *kgforge.Resource {
	if r.ID == id {
		return r
	}
	out := r.Clone()
	out.ID = id
	return out
}
