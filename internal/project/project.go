// Package project reads and writes document files on a billy filesystem.
package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/agentic-research/folio/api"
	"github.com/agentic-research/folio/internal/document"
	"github.com/agentic-research/folio/internal/layout"
	"github.com/agentic-research/folio/internal/migrate"
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/rs/zerolog"
)

// Ext is the suffix of document files.
const Ext = ".folio.json"

// ErrInvalidDocument is returned for a file that migrates but breaks a
// document invariant.
var ErrInvalidDocument = errors.New("invalid document")

// Store loads and saves documents under the root of fs.
type Store struct {
	fs       billy.Filesystem
	migrator *migrate.Migrator
	log      zerolog.Logger
}

// New returns a store on fs.
func New(fs billy.Filesystem, log zerolog.Logger) *Store {
	return &Store{fs: fs, migrator: migrate.New(log), log: log}
}

// ReadRaw returns the bytes of a file.
func (s *Store) ReadRaw(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := util.ReadFile(s.fs, name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return b, nil
}

// Decode reads a file of any supported schema version and upgrades it.
func (s *Store) Decode(ctx context.Context, name string) (*api.Document, error) {
	raw, err := s.ReadRaw(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := s.migrator.Load(raw)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return doc, nil
}

// Load reads, upgrades and validates a document.
func (s *Store) Load(ctx context.Context, name string, opts layout.Options) (*document.Document, error) {
	src, err := s.Decode(ctx, name)
	if err != nil {
		return nil, err
	}
	doc, err := document.FromAPI(src, opts)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDocument, name, err)
	}
	s.log.Debug().Str("file", name).Int("nodes", doc.Nodes().Len()).Msg("document loaded")
	return doc, nil
}

// Save writes doc as indented JSON. The file is replaced atomically.
func (s *Store) Save(ctx context.Context, name string, doc *api.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	b = append(b, '\n')

	dir := path.Dir(name)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := util.TempFile(s.fs, dir, ".folio-")
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmp.Name())
		return fmt.Errorf("save %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmp.Name())
		return fmt.Errorf("save %s: %w", name, err)
	}
	if err := s.fs.Rename(tmp.Name(), name); err != nil {
		_ = s.fs.Remove(tmp.Name())
		return fmt.Errorf("save %s: %w", name, err)
	}
	s.log.Debug().Str("file", name).Int("bytes", len(b)).Msg("document saved")
	return nil
}

// List returns the document files in dir, sorted.
func (s *Store) List(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), Ext) {
			out = append(out, path.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
