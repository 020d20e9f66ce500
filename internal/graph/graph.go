package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/folio/api"
	"github.com/google/uuid"
)

var (
	ErrNotFound              = errors.New("node not found")
	ErrInvalidParent         = errors.New("invalid parent node")
	ErrInvalidTarget         = errors.New("invalid reference target")
	ErrRootDeletionForbidden = errors.New("the root node cannot be deleted")
	ErrCycle                 = errors.New("node cannot become its own ancestor")
)

// DefaultTitle is given to nodes created by Add.
const DefaultTitle = "New Node"

// Store is the node table of one document. It owns its nodes: callers must
// not retain pointers returned by Get across mutating calls.
//
// Every node gets a uint32 handle so that deletion sets and the alias
// reverse index can be kept as roaring bitmaps.
type Store struct {
	nodes  map[string]*api.Node
	rootID string

	handles    map[string]uint32          // node id -> handle
	handleToID []string                   // reverse: handle -> node id ("" once freed)
	nextHandle uint32                     // monotonic counter
	aliases    map[string]*roaring.Bitmap // target id -> handles of its aliases
}

// New returns a store holding a single root node.
func New(rootType, rootTitle string) *Store {
	root := &api.Node{
		ID:       uuid.NewString(),
		Type:     rootType,
		Title:    rootTitle,
		Data:     map[string]any{},
		Children: []string{},
	}
	s := empty()
	s.rootID = root.ID
	s.nodes[root.ID] = root
	s.indexNode(root)
	return s
}

// FromNodes builds a store around an existing node table, taking ownership
// of the map. The root must be present.
func FromNodes(rootID string, nodes map[string]*api.Node) (*Store, error) {
	if _, ok := nodes[rootID]; !ok {
		return nil, fmt.Errorf("root %q: %w", rootID, ErrNotFound)
	}
	s := empty()
	s.rootID = rootID
	s.nodes = nodes
	// Index in sorted order so handles are deterministic.
	for _, id := range sortedKeys(nodes) {
		s.indexNode(nodes[id])
	}
	return s, nil
}

func empty() *Store {
	return &Store{
		nodes:   make(map[string]*api.Node),
		handles: make(map[string]uint32),
		aliases: make(map[string]*roaring.Bitmap),
	}
}

// indexNode assigns a handle and registers n in the alias index.
func (s *Store) indexNode(n *api.Node) {
	h, ok := s.handles[n.ID]
	if !ok {
		h = s.nextHandle
		s.nextHandle++
		s.handles[n.ID] = h
		s.handleToID = append(s.handleToID, n.ID)
	}
	if n.IsReference() {
		bm, exists := s.aliases[n.ReferenceID]
		if !exists {
			bm = roaring.New()
			s.aliases[n.ReferenceID] = bm
		}
		bm.Add(h)
	}
}

// RootID returns the id of the root node.
func (s *Store) RootID() string { return s.rootID }

// Len returns the number of nodes.
func (s *Store) Len() int { return len(s.nodes) }

// Get returns the node with the given id.
func (s *Store) Get(id string) (*api.Node, error) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	return n, nil
}

// Has reports whether id names a node.
func (s *Store) Has(id string) bool {
	_, ok := s.nodes[id]
	return ok
}

// IDs returns all node ids in sorted order.
func (s *Store) IDs() []string { return sortedKeys(s.nodes) }

// AliasesOf returns the ids of aliases pointing at id, sorted.
func (s *Store) AliasesOf(id string) []string {
	bm, ok := s.aliases[id]
	if !ok {
		return nil
	}
	var out []string
	it := bm.Iterator()
	for it.HasNext() {
		if aliasID := s.handleToID[it.Next()]; aliasID != "" {
			out = append(out, aliasID)
		}
	}
	sort.Strings(out)
	return out
}

// Add creates an empty node of the given type under parentID.
func (s *Store) Add(parentID, nodeType string) (string, error) {
	parent, err := s.ownerFor(parentID)
	if err != nil {
		return "", err
	}
	n := &api.Node{
		ID:       uuid.NewString(),
		ParentID: parent.ID,
		Type:     nodeType,
		Title:    DefaultTitle,
		Data:     map[string]any{},
		Children: []string{},
	}
	s.insert(parent, n)
	return n.ID, nil
}

// AddReference creates an alias of targetID under parentID. The alias copies
// the target's type and title as they are now.
func (s *Store) AddReference(parentID, targetID string) (string, error) {
	target, ok := s.nodes[targetID]
	if !ok {
		return "", fmt.Errorf("%w: %q does not exist", ErrInvalidTarget, targetID)
	}
	if target.IsReference() {
		return "", fmt.Errorf("%w: %q is itself a reference", ErrInvalidTarget, targetID)
	}
	parent, err := s.ownerFor(parentID)
	if err != nil {
		return "", err
	}
	n := &api.Node{
		ID:          uuid.NewString(),
		ParentID:    parent.ID,
		Type:        target.Type,
		Title:       target.Title,
		Data:        map[string]any{},
		Children:    []string{},
		ReferenceID: target.ID,
	}
	s.insert(parent, n)
	return n.ID, nil
}

// ownerFor returns parentID's node if it may own children.
func (s *Store) ownerFor(parentID string) (*api.Node, error) {
	parent, ok := s.nodes[parentID]
	if !ok {
		return nil, fmt.Errorf("%w: %q does not exist", ErrInvalidParent, parentID)
	}
	if parent.IsReference() {
		return nil, fmt.Errorf("%w: %q is a reference and owns no children", ErrInvalidParent, parentID)
	}
	return parent, nil
}

func (s *Store) insert(parent, n *api.Node) {
	s.nodes[n.ID] = n
	s.indexNode(n)
	parent.Children = append(parent.Children, n.ID)
}

// Patch holds the fields Update merges into a node. Nil fields are left
// alone. Data is merged key by key; a nil value removes the key.
type Patch struct {
	Title *string
	Type  *string
	Data  map[string]any
}

// Update merges p into the node with the given id.
func (s *Store) Update(id string, p Patch) error {
	n, err := s.Get(id)
	if err != nil {
		return err
	}
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Type != nil {
		n.Type = *p.Type
	}
	if n.Data == nil && len(p.Data) > 0 {
		n.Data = make(map[string]any, len(p.Data))
	}
	for k, v := range p.Data {
		if v == nil {
			delete(n.Data, k)
			continue
		}
		n.Data[k] = v
	}
	return nil
}

// Move detaches id from its parent and inserts it under parentID at index.
// An index outside [0, len(children)] appends.
func (s *Store) Move(id, parentID string, index int) error {
	n, err := s.Get(id)
	if err != nil {
		return err
	}
	if id == s.rootID {
		return fmt.Errorf("%w: root cannot be moved", ErrInvalidParent)
	}
	parent, err := s.ownerFor(parentID)
	if err != nil {
		return err
	}
	for cur, steps := parent, 0; cur != nil && steps <= len(s.nodes); cur, steps = s.nodes[cur.ParentID], steps+1 {
		if cur.ID == id {
			return fmt.Errorf("move %q under %q: %w", id, parentID, ErrCycle)
		}
	}

	if old, ok := s.nodes[n.ParentID]; ok {
		old.Children = without(old.Children, id)
	}
	if index < 0 || index > len(parent.Children) {
		index = len(parent.Children)
	}
	parent.Children = append(parent.Children, "")
	copy(parent.Children[index+1:], parent.Children[index:])
	parent.Children[index] = id
	n.ParentID = parent.ID
	return nil
}

// Walk visits every node reachable from the root depth-first, in children
// order. Aliases are visited as leaves. Returning an error stops the walk.
func (s *Store) Walk(fn func(n *api.Node, depth int) error) error {
	seen := make(map[string]struct{}, len(s.nodes))
	var visit func(id string, depth int) error
	visit = func(id string, depth int) error {
		n, ok := s.nodes[id]
		if !ok {
			return nil
		}
		if _, dup := seen[id]; dup {
			return nil
		}
		seen[id] = struct{}{}
		if err := fn(n, depth); err != nil {
			return err
		}
		for _, c := range n.ChildIDs() {
			if err := visit(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(s.rootID, 0)
}

// Clone returns a deep copy of the store.
func (s *Store) Clone() *Store {
	nodes := make(map[string]*api.Node, len(s.nodes))
	for id, n := range s.nodes {
		nodes[id] = n.Clone()
	}
	out, _ := FromNodes(s.rootID, nodes)
	return out
}

// Export returns a deep copy of the node table.
func (s *Store) Export() map[string]*api.Node {
	out := make(map[string]*api.Node, len(s.nodes))
	for id, n := range s.nodes {
		out[id] = n.Clone()
	}
	return out
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, c := range ids {
		if c != id {
			out = append(out, c)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
