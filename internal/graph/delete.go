package graph

import (
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring"
)

// Deletion describes the nodes removed by Delete.
type Deletion struct {
	// IDs of every removed node, sorted.
	IDs []string
	set map[string]struct{}
}

// Contains reports whether id was removed.
func (d *Deletion) Contains(id string) bool {
	if d == nil {
		return false
	}
	_, ok := d.set[id]
	return ok
}

// Len returns the number of removed nodes.
func (d *Deletion) Len() int {
	if d == nil {
		return 0
	}
	return len(d.IDs)
}

// Closure returns the set of nodes that must go when id is deleted: id, the
// children of every member (aliases own none), and every alias whose target
// is a member, repeated until nothing new is added.
func (s *Store) Closure(id string) (*roaring.Bitmap, error) {
	h, ok := s.handles[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrNotFound)
	}

	set := roaring.New()
	set.Add(h)
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		var next []uint32
		if n, ok := s.nodes[cur]; ok {
			for _, c := range n.ChildIDs() {
				if ch, ok := s.handles[c]; ok {
					next = append(next, ch)
				}
			}
		}
		if bm, ok := s.aliases[cur]; ok {
			next = append(next, bm.ToArray()...)
		}

		for _, nh := range next {
			if set.CheckedAdd(nh) {
				queue = append(queue, s.handleToID[nh])
			}
		}
	}
	return set, nil
}

// Delete removes id and its closure (see Closure) from the store, unlinking
// removed nodes from surviving parents. The root cannot be deleted, directly
// or as part of another node's closure; the store is then left unchanged.
func (s *Store) Delete(id string) (*Deletion, error) {
	if id == s.rootID {
		return nil, ErrRootDeletionForbidden
	}
	set, err := s.Closure(id)
	if err != nil {
		return nil, err
	}
	if set.Contains(s.handles[s.rootID]) {
		return nil, fmt.Errorf("delete %q: closure reaches the root: %w", id, ErrRootDeletionForbidden)
	}

	d := &Deletion{set: make(map[string]struct{}, set.GetCardinality())}
	it := set.Iterator()
	for it.HasNext() {
		nid := s.handleToID[it.Next()]
		d.IDs = append(d.IDs, nid)
		d.set[nid] = struct{}{}
	}
	sort.Strings(d.IDs)

	// Unlink from direct parents that survive.
	for _, nid := range d.IDs {
		n := s.nodes[nid]
		if d.Contains(n.ParentID) {
			continue
		}
		if parent, ok := s.nodes[n.ParentID]; ok {
			parent.Children = without(parent.Children, nid)
		}
	}

	for _, nid := range d.IDs {
		n := s.nodes[nid]
		h := s.handles[nid]
		if n.IsReference() {
			if bm, ok := s.aliases[n.ReferenceID]; ok {
				bm.Remove(h)
				if bm.IsEmpty() {
					delete(s.aliases, n.ReferenceID)
				}
			}
		}
		delete(s.aliases, nid)
		delete(s.handles, nid)
		s.handleToID[h] = ""
		delete(s.nodes, nid)
	}
	return d, nil
}
