package layout

import (
	"fmt"

	"github.com/agentic-research/folio/api"
)

// checkReferences fails when e names a grid source or link target for which
// exists returns false. A nil exists accepts every id.
func checkReferences(e *api.Element, exists func(id string) bool) error {
	if exists == nil {
		return nil
	}
	if gc := e.GridConfig; gc != nil && gc.SourceType == api.SourceSpecific && gc.SourceID != "" && !exists(gc.SourceID) {
		return fmt.Errorf("element %q grid source %q: %w", e.ID, gc.SourceID, ErrUnknownNode)
	}
	if e.LinkTarget == api.LinkSpecificNode && e.LinkValue != "" && !exists(e.LinkValue) {
		return fmt.Errorf("element %q link %q: %w", e.ID, e.LinkValue, ErrUnknownNode)
	}
	return nil
}

// RepairElement resets node references on e that do not resolve: a grid
// source falls back to the current node, a link falls back to no link.
// exists is only asked about non-empty ids; a specific source or link
// without an id is always reset. It reports whether e changed.
func RepairElement(e *api.Element, exists func(id string) bool) bool {
	changed := false
	if gc := e.GridConfig; gc != nil {
		dangling := gc.SourceID != "" && !exists(gc.SourceID)
		missing := gc.SourceType == api.SourceSpecific && gc.SourceID == ""
		if dangling || missing {
			gc.SourceType = api.SourceCurrent
			gc.SourceID = ""
			changed = true
		}
	}
	dangling := e.LinkValue != "" && !exists(e.LinkValue)
	missing := e.LinkTarget == api.LinkSpecificNode && e.LinkValue == ""
	if dangling || missing {
		e.LinkTarget = api.LinkNone
		e.LinkValue = ""
		changed = true
	}
	return changed
}

// RepairReferences clears grid sources and links naming a node for which
// deleted returns true, across every template of every variant. It returns
// the number of elements changed.
func (s *Store) RepairReferences(deleted func(id string) bool) int {
	alive := func(id string) bool { return !deleted(id) }
	repaired := 0
	s.EachTemplate(func(_ *api.Variant, _ string, t *api.Template) {
		for i := range t.Elements {
			if RepairElement(&t.Elements[i], alive) {
				repaired++
			}
		}
	})
	return repaired
}

// References returns, per node id, how many elements across all variants
// name it as a grid source or link target.
func (s *Store) References() map[string]int {
	refs := make(map[string]int)
	s.EachTemplate(func(_ *api.Variant, _ string, t *api.Template) {
		for _, e := range t.Elements {
			if gc := e.GridConfig; gc != nil && gc.SourceType == api.SourceSpecific && gc.SourceID != "" {
				refs[gc.SourceID]++
			}
			if e.LinkTarget == api.LinkSpecificNode && e.LinkValue != "" {
				refs[e.LinkValue]++
			}
		}
	})
	return refs
}
