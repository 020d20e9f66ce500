// Package editor is the single writer of a document. Every structural edit
// runs through a Session, which records an undo checkpoint before the edit
// and keeps selection and clipboard state that is never part of history.
package editor

import (
	"fmt"
	"slices"

	"github.com/agentic-research/folio/api"
	"github.com/agentic-research/folio/internal/document"
	"github.com/agentic-research/folio/internal/history"
	"github.com/agentic-research/folio/internal/layout"
	"github.com/agentic-research/folio/internal/migrate"
	"github.com/rs/zerolog"
)

// Options configures a session.
type Options struct {
	Layout       layout.Options
	HistoryLimit int
	Logger       zerolog.Logger
}

// DefaultOptions returns stock options with a silent logger.
func DefaultOptions() Options {
	return Options{
		Layout:       layout.DefaultOptions(),
		HistoryLimit: history.DefaultLimit,
		Logger:       zerolog.Nop(),
	}
}

// Selection is what the user is pointing at. It is never checkpointed.
type Selection struct {
	NodeID      string
	TemplateKey string
	ElementIDs  []string
}

// Session edits one document.
type Session struct {
	history   *history.Manager[*document.Document]
	migrator  *migrate.Migrator
	opts      Options
	log       zerolog.Logger
	selection Selection
	clipboard layout.Clipboard
}

// New starts a session on doc. A nil doc starts from a fresh document.
func New(doc *document.Document, opts Options) *Session {
	if doc == nil {
		doc = document.New(opts.Layout)
	}
	s := &Session{
		history:  history.New(doc, (*document.Document).Clone, opts.HistoryLimit),
		migrator: migrate.New(opts.Logger),
		opts:     opts,
		log:      opts.Logger.With().Str("component", "editor").Logger(),
	}
	s.selection.NodeID = doc.Nodes().RootID()
	return s
}

// Document returns the live document. Pointers into it are invalidated by
// the next mutating call.
func (s *Session) Document() *document.Document { return s.history.Current() }

// Selection returns a copy of the current selection.
func (s *Session) Selection() Selection {
	sel := s.selection
	sel.ElementIDs = slices.Clone(sel.ElementIDs)
	return sel
}

// SelectNode points the selection at a node.
func (s *Session) SelectNode(id string) error {
	if _, err := s.Document().Nodes().Get(id); err != nil {
		return err
	}
	s.selection.NodeID = id
	return nil
}

// SelectTemplate points the selection at a template of the active variant
// and clears the element selection.
func (s *Session) SelectTemplate(key string) error {
	if _, err := s.Document().Variants().Template("", key); err != nil {
		return err
	}
	s.selection.TemplateKey = key
	s.selection.ElementIDs = nil
	return nil
}

// SelectElements replaces the element selection.
func (s *Session) SelectElements(ids ...string) {
	s.selection.ElementIDs = slices.Clone(ids)
}

// Clipboard returns the elements last copied.
func (s *Session) Clipboard() layout.Clipboard { return s.clipboard }

// apply runs fn as one undoable edit. A failing fn leaves the document and
// the history as they were.
func (s *Session) apply(op string, fn func(d *document.Document) error) error {
	if err := s.history.Apply(fn); err != nil {
		s.log.Warn().Err(err).Str("op", op).Msg("operation rejected")
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Debug().Str("op", op).Msg("operation applied")
	return nil
}

// Undo reverts the last edit.
func (s *Session) Undo() bool {
	ok := s.history.Undo()
	if ok {
		s.reconcileSelection()
		s.log.Debug().Msg("undo")
	}
	return ok
}

// Redo reapplies the last undone edit.
func (s *Session) Redo() bool {
	ok := s.history.Redo()
	if ok {
		s.reconcileSelection()
		s.log.Debug().Msg("redo")
	}
	return ok
}

// CanUndo reports whether Undo would do anything.
func (s *Session) CanUndo() bool { return s.history.CanUndo() }

// CanRedo reports whether Redo would do anything.
func (s *Session) CanRedo() bool { return s.history.CanRedo() }

// Import replaces the document with raw JSON of any supported schema
// version. The replaced document can be restored with Undo.
func (s *Session) Import(raw []byte) error {
	src, err := s.migrator.Load(raw)
	if err != nil {
		s.log.Warn().Err(err).Msg("import rejected")
		return fmt.Errorf("import: %w", err)
	}
	doc, err := document.FromAPI(src, s.opts.Layout)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	if err := doc.Validate(); err != nil {
		s.log.Warn().Err(err).Msg("import rejected")
		return fmt.Errorf("import: %w", err)
	}
	s.history.Checkpoint()
	s.history.Replace(doc)
	s.reconcileSelection()
	s.log.Info().Int("nodes", doc.Nodes().Len()).Msg("document imported")
	return nil
}

// Export returns a deep copy of the document in serialized form.
func (s *Session) Export() *api.Document {
	return s.Document().Export()
}

// reconcileSelection drops selection entries the live document no longer
// has. A lost node selection falls back to the root.
func (s *Session) reconcileSelection() {
	d := s.Document()
	if !d.Nodes().Has(s.selection.NodeID) {
		s.selection.NodeID = d.Nodes().RootID()
	}
	tpl, err := d.Variants().Template("", s.selection.TemplateKey)
	if err != nil {
		s.selection.TemplateKey = ""
		s.selection.ElementIDs = nil
		return
	}
	s.selection.ElementIDs = slices.DeleteFunc(s.selection.ElementIDs, func(id string) bool {
		return !slices.ContainsFunc(tpl.Elements, func(e api.Element) bool { return e.ID == id })
	})
}
