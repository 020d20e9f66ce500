package editor

import (
	"github.com/agentic-research/folio/internal/document"
	"github.com/agentic-research/folio/internal/graph"
)

// AddNode creates a node of the given type under parentID.
func (s *Session) AddNode(parentID, nodeType string) (string, error) {
	var id string
	err := s.apply("add node", func(d *document.Document) error {
		var err error
		id, err = d.Nodes().Add(parentID, nodeType)
		return err
	})
	return id, err
}

// AddReference creates an alias of targetID under parentID.
func (s *Session) AddReference(parentID, targetID string) (string, error) {
	var id string
	err := s.apply("add reference", func(d *document.Document) error {
		var err error
		id, err = d.Nodes().AddReference(parentID, targetID)
		return err
	})
	return id, err
}

// UpdateNode merges p into a node.
func (s *Session) UpdateNode(id string, p graph.Patch) error {
	return s.apply("update node", func(d *document.Document) error {
		return d.Nodes().Update(id, p)
	})
}

// MoveNode reparents or reorders a node.
func (s *Session) MoveNode(id, parentID string, index int) error {
	return s.apply("move node", func(d *document.Document) error {
		return d.Nodes().Move(id, parentID, index)
	})
}

// DeleteNode removes a node with its descendants and aliases, repairs every
// template reference to them, and moves a selection that pointed into the
// removed set back to the root.
func (s *Session) DeleteNode(id string) (*graph.Deletion, error) {
	var (
		del      *graph.Deletion
		repaired int
	)
	err := s.apply("delete node", func(d *document.Document) error {
		var err error
		del, repaired, err = d.DeleteNode(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if del.Contains(s.selection.NodeID) {
		s.selection.NodeID = s.Document().Nodes().RootID()
	}
	s.log.Info().
		Str("node", id).
		Int("removed", del.Len()).
		Int("repaired", repaired).
		Msg("node deleted")
	return del, nil
}
