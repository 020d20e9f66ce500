package editor

import (
	"errors"
	"fmt"
	"slices"

	"github.com/agentic-research/folio/api"
	"github.com/agentic-research/folio/internal/document"
	"github.com/agentic-research/folio/internal/geometry"
	"github.com/agentic-research/folio/internal/layout"
)

// Template and element edits address the active variant.

// AddTemplate adds an empty template under a generated key.
func (s *Session) AddTemplate() (string, error) {
	var key string
	err := s.apply("add template", func(d *document.Document) error {
		var err error
		key, err = d.Variants().AddTemplate("")
		return err
	})
	return key, err
}

// AddTemplateFor adds an empty template for a node type.
func (s *Session) AddTemplateFor(nodeType string) error {
	return s.apply("add template", func(d *document.Document) error {
		return d.Variants().AddTemplateFor("", nodeType)
	})
}

// DeleteTemplate removes a template from the active variant.
func (s *Session) DeleteTemplate(key string) error {
	err := s.apply("delete template", func(d *document.Document) error {
		return d.Variants().DeleteTemplate("", key)
	})
	if err == nil {
		s.reconcileSelection()
	}
	return err
}

// UpdateTemplate renames or resizes a template.
func (s *Session) UpdateTemplate(key string, p layout.TemplatePatch) error {
	return s.apply("update template", func(d *document.Document) error {
		return d.Variants().UpdateTemplate("", key, p)
	})
}

// SetElements replaces a template's elements in one undoable step.
func (s *Session) SetElements(key string, elements []api.Element) error {
	err := s.apply("set elements", func(d *document.Document) error {
		return d.Variants().SetElements("", key, elements, d.Nodes().Has)
	})
	if err == nil {
		s.reconcileSelection()
	}
	return err
}

// AddElement adds an element with type defaults and selects it.
func (s *Session) AddElement(key string, typ api.ElementType) (string, error) {
	var id string
	err := s.apply("add element", func(d *document.Document) error {
		var err error
		id, err = d.Variants().AddElement("", key, typ)
		return err
	})
	if err != nil {
		return "", err
	}
	s.selection.TemplateKey = key
	s.selection.ElementIDs = []string{id}
	return id, nil
}

// UpdateElement applies fn to one element.
func (s *Session) UpdateElement(key, elementID string, fn func(e *api.Element)) error {
	return s.apply("update element", func(d *document.Document) error {
		return d.Variants().UpdateElement("", key, elementID, fn, d.Nodes().Has)
	})
}

// DeleteElements removes elements and drops them from the selection.
func (s *Session) DeleteElements(key string, ids []string) (int, error) {
	var n int
	err := s.apply("delete elements", func(d *document.Document) error {
		var err error
		n, err = d.Variants().DeleteElements("", key, ids)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.reconcileSelection()
	return n, nil
}

// DuplicateElements copies elements in place and selects the copies.
func (s *Session) DuplicateElements(key string, ids []string) ([]string, error) {
	var out []string
	err := s.apply("duplicate elements", func(d *document.Document) error {
		var err error
		out, err = d.Variants().DuplicateElements("", key, ids)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.selection.TemplateKey = key
	s.selection.ElementIDs = slices.Clone(out)
	return out, nil
}

// CopyElements puts copies of elements on the clipboard. The document is
// not changed.
func (s *Session) CopyElements(key string, ids []string) error {
	clip, err := s.Document().Variants().Copy("", key, ids)
	if err != nil {
		return fmt.Errorf("copy elements: %w", err)
	}
	s.clipboard = clip
	return nil
}

// CutElements copies elements to the clipboard and removes them.
func (s *Session) CutElements(key string, ids []string) (int, error) {
	if err := s.CopyElements(key, ids); err != nil {
		return 0, err
	}
	return s.DeleteElements(key, ids)
}

// Paste inserts the clipboard into a template and selects the pasted
// elements. References to nodes deleted since the copy are repaired.
func (s *Session) Paste(key string) ([]string, error) {
	if s.clipboard.Empty() {
		return nil, nil
	}
	var out []string
	err := s.apply("paste", func(d *document.Document) error {
		var err error
		out, err = d.Variants().Paste("", key, s.clipboard, d.Nodes().Has)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.selection.TemplateKey = key
	s.selection.ElementIDs = slices.Clone(out)
	return out, nil
}

// Align repositions the listed elements. Fewer than two elements is a
// no-op reported as geometry.ErrInsufficientSelection, with nothing
// recorded in history.
func (s *Session) Align(key string, ids []string, op geometry.Op) error {
	tpl, err := s.Document().Variants().Template("", key)
	if err != nil {
		return fmt.Errorf("align: %w", err)
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var picked []api.Element
	for _, e := range tpl.Elements {
		if _, ok := want[e.ID]; ok {
			picked = append(picked, e)
		}
	}
	moved, err := geometry.Align(picked, op)
	if errors.Is(err, geometry.ErrInsufficientSelection) {
		s.log.Debug().Str("op", string(op)).Int("selected", len(picked)).Msg("nothing to align")
		return err
	}
	if err != nil {
		return fmt.Errorf("align: %w", err)
	}

	return s.apply("align "+string(op), func(d *document.Document) error {
		for _, m := range moved {
			x, y := m.X, m.Y
			err := d.Variants().UpdateElement("", key, m.ID, func(e *api.Element) {
				e.X, e.Y = x, y
			}, d.Nodes().Has)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// BringToFront raises elements above all others.
func (s *Session) BringToFront(key string, ids []string) error {
	return s.apply("bring to front", func(d *document.Document) error {
		return d.Variants().BringToFront("", key, ids)
	})
}

// SendToBack lowers elements below all others.
func (s *Session) SendToBack(key string, ids []string) error {
	return s.apply("send to back", func(d *document.Document) error {
		return d.Variants().SendToBack("", key, ids)
	})
}

// AddVariant adds a variant seeded from the active one.
func (s *Session) AddVariant() (string, error) {
	var id string
	err := s.apply("add variant", func(d *document.Document) error {
		id = d.Variants().AddVariant()
		return nil
	})
	return id, err
}

// DuplicateVariant deep-copies a variant.
func (s *Session) DuplicateVariant(id string) (string, error) {
	var out string
	err := s.apply("duplicate variant", func(d *document.Document) error {
		var err error
		out, err = d.Variants().DuplicateVariant(id)
		return err
	})
	return out, err
}

// DeleteVariant removes a variant.
func (s *Session) DeleteVariant(id string) error {
	err := s.apply("delete variant", func(d *document.Document) error {
		return d.Variants().DeleteVariant(id)
	})
	if err == nil {
		s.reconcileSelection()
	}
	return err
}

// RenameVariant renames a variant.
func (s *Session) RenameVariant(id, name string) error {
	return s.apply("rename variant", func(d *document.Document) error {
		return d.Variants().RenameVariant(id, name)
	})
}

// SetActiveVariant switches the active variant.
func (s *Session) SetActiveVariant(id string) error {
	err := s.apply("set active variant", func(d *document.Document) error {
		return d.Variants().SetActive(id)
	})
	if err == nil {
		s.reconcileSelection()
	}
	return err
}
