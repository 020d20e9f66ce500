// Package migrate upgrades serialized documents of any supported schema
// version to the current one.
//
// Documents are handled as generic JSON trees (maps, slices and scalars)
// until the last step, so every version can be read without a Go type per
// historical schema. Each step is a pure function from one version's tree to
// the next; Migrate applies them in order on a private copy and only then
// decodes the result into an api.Document.
package migrate

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/agentic-research/folio/api"
	"github.com/ohler55/ojg/oj"
	"github.com/rs/zerolog"
)

var (
	ErrMissingRequiredField = errors.New("missing required field")
	ErrUnrecoverableSchema  = errors.New("unrecoverable schema")
)

// Field names of the serialized document.
const (
	keySchemaVersion   = "schemaVersion"
	keyRootID          = "rootId"
	keyNodes           = "nodes"
	keyTemplates       = "templates"
	keyVariants        = "variants"
	keyActiveVariantID = "activeVariantId"
)

// Shape is a candidate document at the import boundary: either a
// LegacyShape carrying a flat template table or a CurrentShape carrying
// variants.
type Shape interface {
	// Tree returns the parsed document.
	Tree() map[string]any
	shape()
}

// LegacyShape is a document from before variants existed.
type LegacyShape struct {
	RootID    string
	Templates map[string]any
	tree      map[string]any
}

func (s LegacyShape) Tree() map[string]any { return s.tree }
func (LegacyShape) shape()                 {}

// CurrentShape is a document that already groups templates into variants.
type CurrentShape struct {
	RootID   string
	Variants map[string]any
	tree     map[string]any
}

func (s CurrentShape) Tree() map[string]any { return s.tree }
func (CurrentShape) shape()                 {}

// Decode parses raw JSON and classifies it.
func Decode(raw []byte) (Shape, error) {
	v, err := oj.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	tree, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: document is %T, not an object", ErrMissingRequiredField, v)
	}
	return Classify(tree)
}

// Classify resolves an already parsed document to its shape. A document
// needs a rootId and either variants or templates; variants win when both
// are present.
func Classify(tree map[string]any) (Shape, error) {
	rootID, _ := tree[keyRootID].(string)
	if rootID == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequiredField, keyRootID)
	}
	if variants, ok := tree[keyVariants].(map[string]any); ok {
		return CurrentShape{RootID: rootID, Variants: variants, tree: tree}, nil
	}
	if templates, ok := tree[keyTemplates].(map[string]any); ok {
		return LegacyShape{RootID: rootID, Templates: templates, tree: tree}, nil
	}
	return nil, fmt.Errorf("%w: %s or %s", ErrMissingRequiredField, keyTemplates, keyVariants)
}

// Migrator runs the step pipeline, logging each applied step.
type Migrator struct {
	log zerolog.Logger
}

// New returns a migrator logging to log.
func New(log zerolog.Logger) *Migrator {
	return &Migrator{log: log}
}

// Migrate upgrades raw with a silent migrator.
func Migrate(raw map[string]any) (*api.Document, error) {
	return New(zerolog.Nop()).Migrate(raw)
}

// Load decodes and upgrades raw JSON with a silent migrator.
func Load(raw []byte) (*api.Document, error) {
	return New(zerolog.Nop()).Load(raw)
}

// Load decodes raw JSON, rejects it if it lacks the required fields, and
// upgrades it.
func (m *Migrator) Load(raw []byte) (*api.Document, error) {
	shape, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	if _, legacy := shape.(LegacyShape); legacy {
		m.log.Debug().Msg("document has a flat template table")
	}
	return m.Migrate(shape.Tree())
}

// Migrate upgrades raw to the current schema version. raw is never
// modified, and nothing is returned unless the whole pipeline succeeds.
// Upgrade steps run from the document's version on; normalizing steps run
// on every document, so Migrate is idempotent on its own output.
func (m *Migrator) Migrate(raw map[string]any) (*api.Document, error) {
	version := versionOf(raw[keySchemaVersion])
	if version > api.CurrentSchemaVersion {
		return nil, fmt.Errorf("%w: schema version %d is newer than %d",
			ErrUnrecoverableSchema, version, api.CurrentSchemaVersion)
	}

	tree := raw
	for _, step := range Steps() {
		switch {
		case step.From >= version:
			tree = step.Run(tree)
			m.log.Debug().
				Int("from", step.From).
				Int("to", step.To()).
				Str("step", step.Name).
				Msg("applied migration step")
		case step.Normalizing:
			tree = step.Run(tree)
			m.log.Trace().Str("step", step.Name).Msg("normalized")
		}
	}

	if err := checkAnchors(tree); err != nil {
		return nil, err
	}
	return toDocument(tree)
}

// versionOf reads a schema version. Anything that is not a non-negative
// number counts as version 0.
func versionOf(v any) int {
	f, ok := number(v)
	if !ok || f < 0 {
		return 0
	}
	return int(f)
}

// checkAnchors fails when the tree lacks what no default can stand in for.
func checkAnchors(tree map[string]any) error {
	rootID, _ := tree[keyRootID].(string)
	if rootID == "" {
		return fmt.Errorf("%w: no %s", ErrUnrecoverableSchema, keyRootID)
	}
	nodes, _ := tree[keyNodes].(map[string]any)
	if len(nodes) == 0 {
		return fmt.Errorf("%w: empty node table", ErrUnrecoverableSchema)
	}
	root, ok := nodes[rootID].(map[string]any)
	if !ok {
		return fmt.Errorf("%w: root node %q is missing", ErrUnrecoverableSchema, rootID)
	}
	variants, _ := tree[keyVariants].(map[string]any)
	activeID, _ := tree[keyActiveVariantID].(string)
	active, ok := variants[activeID].(map[string]any)
	if !ok {
		return fmt.Errorf("%w: active variant %q is missing", ErrUnrecoverableSchema, activeID)
	}
	templates, _ := active[keyTemplates].(map[string]any)
	if len(templates) == 0 {
		rootType, _ := root["type"].(string)
		return fmt.Errorf("%w: no template reachable for root type %q", ErrUnrecoverableSchema, rootType)
	}
	return nil
}

// toDocument decodes a migrated tree into the typed document.
func toDocument(tree map[string]any) (*api.Document, error) {
	b, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecoverableSchema, err)
	}
	var doc api.Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecoverableSchema, err)
	}
	doc.SchemaVersion = api.CurrentSchemaVersion

	for id, n := range doc.Nodes {
		if n == nil {
			delete(doc.Nodes, id)
			continue
		}
		if n.Data == nil {
			n.Data = map[string]any{}
		}
		if n.Children == nil {
			n.Children = []string{}
		}
	}
	if _, ok := doc.Nodes[doc.RootID]; !ok {
		return nil, fmt.Errorf("%w: root node %q is missing", ErrUnrecoverableSchema, doc.RootID)
	}
	for id, v := range doc.Variants {
		if v == nil {
			delete(doc.Variants, id)
			continue
		}
		if v.Templates == nil {
			v.Templates = map[string]*api.Template{}
		}
		for key, t := range v.Templates {
			if t == nil {
				delete(v.Templates, key)
				continue
			}
			if t.Elements == nil {
				t.Elements = []api.Element{}
			}
		}
	}
	return &doc, nil
}
