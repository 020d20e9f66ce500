package graph

import (
	"errors"
	"fmt"
)

// ErrInvariant is wrapped by every error returned from Validate.
var ErrInvariant = errors.New("node graph invariant violated")

// Validate checks the structural invariants of the node table and returns
// all violations joined together, or nil.
func (s *Store) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvariant}, args...)...))
	}

	root, ok := s.nodes[s.rootID]
	if !ok {
		fail("root %q missing", s.rootID)
		return errors.Join(errs...)
	}
	if root.ParentID != "" {
		fail("root %q has parent %q", root.ID, root.ParentID)
	}
	if root.IsReference() {
		fail("root %q is a reference", root.ID)
	}

	for _, id := range s.IDs() {
		n := s.nodes[id]
		if n.ID != id {
			fail("node keyed %q carries id %q", id, n.ID)
		}
		if id != s.rootID && n.ParentID == "" {
			fail("node %q has no parent but is not the root", id)
		}
		if n.ParentID != "" && !s.Has(n.ParentID) {
			fail("node %q has missing parent %q", id, n.ParentID)
		}
		for _, c := range n.Children {
			if !s.Has(c) {
				fail("node %q lists missing child %q", id, c)
			}
		}
		if n.IsReference() {
			if len(n.Children) > 0 {
				fail("reference %q owns children", id)
			}
			target, ok := s.nodes[n.ReferenceID]
			switch {
			case !ok:
				fail("reference %q points at missing node %q", id, n.ReferenceID)
			case target.IsReference():
				fail("reference %q points at reference %q", id, n.ReferenceID)
			}
		}
	}

	// Symmetry and acyclicity along children edges.
	seen := make(map[string]struct{}, len(s.nodes))
	var visit func(id string, trail map[string]struct{})
	visit = func(id string, trail map[string]struct{}) {
		n, ok := s.nodes[id]
		if !ok {
			return
		}
		if _, loop := trail[id]; loop {
			fail("node %q is its own ancestor", id)
			return
		}
		if _, dup := seen[id]; dup {
			fail("node %q is listed under more than one parent", id)
			return
		}
		seen[id] = struct{}{}
		trail[id] = struct{}{}
		for _, c := range n.ChildIDs() {
			if child, ok := s.nodes[c]; ok && child.ParentID != id {
				fail("node %q is a child of %q but its parent is %q", c, id, child.ParentID)
			}
			visit(c, trail)
		}
		delete(trail, id)
	}
	visit(s.rootID, map[string]struct{}{})

	return errors.Join(errs...)
}
