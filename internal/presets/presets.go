// Package presets is a named library of starter documents kept in SQLite.
// Payloads are CBOR; a preset saved by an older release is upgraded when it
// is loaded.
package presets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/agentic-research/folio/api"
	"github.com/agentic-research/folio/internal/migrate"
	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound    = errors.New("preset not found")
	ErrInvalidName = errors.New("invalid preset name")
)

const schema = `
CREATE TABLE IF NOT EXISTS presets (
	name           TEXT PRIMARY KEY,
	schema_version INTEGER NOT NULL,
	node_count     INTEGER NOT NULL,
	payload        BLOB NOT NULL,
	updated_at     INTEGER NOT NULL
);
`

// Info describes a stored preset without decoding it.
type Info struct {
	Name          string
	SchemaVersion int
	Nodes         int
	UpdatedAt     time.Time
}

// Store is an open preset library.
type Store struct {
	db       *sql.DB
	enc      cbor.EncMode
	dec      cbor.DecMode
	migrator *migrate.Migrator
	log      zerolog.Logger
	now      func() time.Time
}

// Open opens or creates the library at path.
func Open(ctx context.Context, path string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	// Payloads decode to plain JSON-shaped trees so the migration steps can
	// read presets of any schema version.
	dec, err := cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any(nil))}.DecMode()
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:       db,
		enc:      enc,
		dec:      dec,
		migrator: migrate.New(log),
		log:      log,
		now:      time.Now,
	}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Save stores doc under name, replacing any preset of that name.
func (s *Store) Save(ctx context.Context, name string, doc *api.Document) error {
	if name == "" {
		return ErrInvalidName
	}
	payload, err := s.enc.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode preset %q: %w", name, err)
	}
	return s.put(ctx, name, doc.SchemaVersion, len(doc.Nodes), payload)
}

func (s *Store) put(ctx context.Context, name string, version, nodes int, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO presets (name, schema_version, node_count, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			schema_version = excluded.schema_version,
			node_count     = excluded.node_count,
			payload        = excluded.payload,
			updated_at     = excluded.updated_at`,
		name, version, nodes, payload, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save preset %q: %w", name, err)
	}
	s.log.Debug().Str("preset", name).Int("bytes", len(payload)).Msg("preset saved")
	return nil
}

// Load returns the preset called name at the current schema version.
func (s *Store) Load(ctx context.Context, name string) (*api.Document, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM presets WHERE name = ?`, name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load preset %q: %w", name, err)
	}

	var tree map[string]any
	if err := s.dec.Unmarshal(payload, &tree); err != nil {
		return nil, fmt.Errorf("decode preset %q: %w", name, err)
	}
	if _, err := migrate.Classify(tree); err != nil {
		return nil, fmt.Errorf("preset %q: %w", name, err)
	}
	doc, err := s.migrator.Migrate(tree)
	if err != nil {
		return nil, fmt.Errorf("preset %q: %w", name, err)
	}
	return doc, nil
}

// List returns every preset, sorted by name.
func (s *Store) List(ctx context.Context) ([]Info, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, schema_version, node_count, updated_at FROM presets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Info
	for rows.Next() {
		var (
			info    Info
			updated int64
		)
		if err := rows.Scan(&info.Name, &info.SchemaVersion, &info.Nodes, &updated); err != nil {
			return nil, fmt.Errorf("list presets: %w", err)
		}
		info.UpdatedAt = time.UnixMilli(updated)
		out = append(out, info)
	}
	return out, rows.Err()
}

// Delete removes the preset called name.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM presets WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete preset %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete preset %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return nil
}
