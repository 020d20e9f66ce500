package graph

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/agentic-research/folio/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAdd(t *testing.T, s *Store, parent, typ string) string {
	t.Helper()
	id, err := s.Add(parent, typ)
	require.NoError(t, err)
	return id
}

func TestStore_AddAppendsToParent(t *testing.T) {
	s := New("year", "2026")
	root := s.RootID()

	a := mustAdd(t, s, root, "month")
	b := mustAdd(t, s, root, "month")

	rootNode, err := s.Get(root)
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, rootNode.Children)

	n, err := s.Get(a)
	require.NoError(t, err)
	assert.Equal(t, root, n.ParentID)
	assert.Equal(t, "month", n.Type)
	assert.Equal(t, DefaultTitle, n.Title)
	assert.NotNil(t, n.Data)
	assert.Empty(t, n.Children)
	assert.Equal(t, api.KindOwned, n.Kind())
}

func TestStore_AddInvalidParent(t *testing.T) {
	s := New("year", "2026")

	_, err := s.Add("nope", "month")
	assert.ErrorIs(t, err, ErrInvalidParent)
	assert.Equal(t, 1, s.Len())
}

func TestStore_AddReference(t *testing.T) {
	s := New("year", "2026")
	root := s.RootID()
	a := mustAdd(t, s, root, "month")
	title := "January"
	require.NoError(t, s.Update(a, Patch{Title: &title}))

	ref, err := s.AddReference(root, a)
	require.NoError(t, err)

	n, err := s.Get(ref)
	require.NoError(t, err)
	assert.Equal(t, api.KindReference, n.Kind())
	assert.Equal(t, a, n.ReferenceID)
	assert.Equal(t, "month", n.Type)
	assert.Equal(t, "January", n.Title)
	assert.Nil(t, n.ChildIDs())
	assert.Equal(t, []string{ref}, s.AliasesOf(a))

	t.Run("no chaining", func(t *testing.T) {
		_, err := s.AddReference(root, ref)
		assert.ErrorIs(t, err, ErrInvalidTarget)
	})
	t.Run("missing target", func(t *testing.T) {
		_, err := s.AddReference(root, "ghost")
		assert.ErrorIs(t, err, ErrInvalidTarget)
	})
	t.Run("alias owns no children", func(t *testing.T) {
		_, err := s.Add(ref, "day")
		assert.ErrorIs(t, err, ErrInvalidParent)
	})
	require.NoError(t, s.Validate())
}

func TestStore_DeleteSubtree(t *testing.T) {
	// root -> A -> {B, C}
	s := New("year", "2026")
	root := s.RootID()
	a := mustAdd(t, s, root, "month")
	b := mustAdd(t, s, a, "day")
	c := mustAdd(t, s, a, "day")
	keep := mustAdd(t, s, root, "month")

	d, err := s.Delete(a)
	require.NoError(t, err)

	assert.False(t, s.Has(a))
	assert.False(t, s.Has(b))
	assert.False(t, s.Has(c))
	assert.True(t, d.Contains(a) && d.Contains(b) && d.Contains(c))
	assert.Equal(t, 3, d.Len())

	rootNode, _ := s.Get(root)
	assert.Equal(t, []string{keep}, rootNode.Children)
	require.NoError(t, s.Validate())
}

func TestStore_DeleteRemovesAliasesOfDeletedNodes(t *testing.T) {
	s := New("year", "2026")
	root := s.RootID()
	a := mustAdd(t, s, root, "month")
	b := mustAdd(t, s, a, "day")
	other := mustAdd(t, s, root, "month")
	aliasOfB, err := s.AddReference(other, b)
	require.NoError(t, err)
	aliasOfOther, err := s.AddReference(a, other)
	require.NoError(t, err)

	d, err := s.Delete(a)
	require.NoError(t, err)

	// a, b, the alias of b living under other, and the alias of other
	// living under a all go; other itself survives.
	assert.ElementsMatch(t, []string{a, b, aliasOfB, aliasOfOther}, d.IDs)
	assert.True(t, s.Has(other))
	otherNode, _ := s.Get(other)
	assert.Empty(t, otherNode.Children)
	assert.Empty(t, s.AliasesOf(other))
	require.NoError(t, s.Validate())
}

func TestStore_DeleteAliasKeepsTarget(t *testing.T) {
	s := New("year", "2026")
	root := s.RootID()
	a := mustAdd(t, s, root, "month")
	ref, err := s.AddReference(root, a)
	require.NoError(t, err)

	d, err := s.Delete(ref)
	require.NoError(t, err)
	assert.Equal(t, []string{ref}, d.IDs)
	assert.True(t, s.Has(a))
	assert.Empty(t, s.AliasesOf(a))
}

func TestStore_DeleteErrors(t *testing.T) {
	s := New("year", "2026")

	_, err := s.Delete(s.RootID())
	assert.ErrorIs(t, err, ErrRootDeletionForbidden)

	_, err = s.Delete("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, s.Len())
}

func TestStore_DeleteNeverReachesRoot(t *testing.T) {
	nodes := map[string]*api.Node{
		"r": {ID: "r", Type: "year", ReferenceID: "a", Children: []string{"a"}, Data: map[string]any{}},
		"a": {ID: "a", ParentID: "r", Type: "month", Children: []string{}, Data: map[string]any{}},
	}
	s, err := FromNodes("r", nodes)
	require.NoError(t, err)

	_, err = s.Delete("a")
	assert.ErrorIs(t, err, ErrRootDeletionForbidden)
	assert.True(t, s.Has("r"))
	assert.True(t, s.Has("a"))
	assert.Equal(t, []string{"r"}, s.AliasesOf("a"))
}

func TestStore_UpdateMergesData(t *testing.T) {
	s := New("year", "2026")
	a := mustAdd(t, s, s.RootID(), "month")

	require.NoError(t, s.Update(a, Patch{Data: map[string]any{"label": "Jan", "days": 31.0}}))
	require.NoError(t, s.Update(a, Patch{Data: map[string]any{"days": nil, "quarter": "Q1"}}))

	n, _ := s.Get(a)
	assert.Equal(t, map[string]any{"label": "Jan", "quarter": "Q1"}, n.Data)

	typ := "week"
	require.NoError(t, s.Update(a, Patch{Type: &typ}))
	assert.Equal(t, "week", n.Type)

	assert.ErrorIs(t, s.Update("missing", Patch{}), ErrNotFound)
}

func TestStore_Move(t *testing.T) {
	s := New("year", "2026")
	root := s.RootID()
	a := mustAdd(t, s, root, "month")
	b := mustAdd(t, s, root, "month")
	c := mustAdd(t, s, a, "day")

	require.NoError(t, s.Move(c, b, 0))
	bNode, _ := s.Get(b)
	aNode, _ := s.Get(a)
	cNode, _ := s.Get(c)
	assert.Equal(t, []string{c}, bNode.Children)
	assert.Empty(t, aNode.Children)
	assert.Equal(t, b, cNode.ParentID)

	// Reorder within the same parent.
	require.NoError(t, s.Move(b, root, 0))
	rootNode, _ := s.Get(root)
	assert.Equal(t, []string{b, a}, rootNode.Children)

	assert.ErrorIs(t, s.Move(b, c, -1), ErrCycle)
	assert.ErrorIs(t, s.Move(root, a, 0), ErrInvalidParent)
	require.NoError(t, s.Validate())
}

func TestStore_WalkSkipsAliasChildren(t *testing.T) {
	s := New("year", "2026")
	root := s.RootID()
	a := mustAdd(t, s, root, "month")
	mustAdd(t, s, a, "day")
	ref, err := s.AddReference(root, a)
	require.NoError(t, err)

	var visited []string
	require.NoError(t, s.Walk(func(n *api.Node, depth int) error {
		visited = append(visited, n.ID)
		if n.ID == ref {
			assert.Equal(t, 1, depth)
		}
		return nil
	}))
	assert.Len(t, visited, 4)
}

func TestStore_CloneIsIndependent(t *testing.T) {
	s := New("year", "2026")
	a := mustAdd(t, s, s.RootID(), "month")
	require.NoError(t, s.Update(a, Patch{Data: map[string]any{"tags": []any{"x"}}}))

	c := s.Clone()
	_, err := c.Delete(a)
	require.NoError(t, err)

	assert.True(t, s.Has(a))
	n, _ := s.Get(a)
	assert.Equal(t, []any{"x"}, n.Data["tags"])
}

func TestStore_ValidateDetectsViolations(t *testing.T) {
	nodes := map[string]*api.Node{
		"root": {ID: "root", Children: []string{"a", "ghost"}},
		"a":    {ID: "a", ParentID: "elsewhere", Children: []string{}},
		"r1":   {ID: "r1", ParentID: "root", ReferenceID: "r2"},
		"r2":   {ID: "r2", ParentID: "root", ReferenceID: "a"},
	}
	s, err := FromNodes("root", nodes)
	require.NoError(t, err)

	err = s.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvariant)
	assert.Contains(t, err.Error(), "missing child")
	assert.Contains(t, err.Error(), "points at reference")
}

// naiveClosure recomputes the deletion set by brute force iteration.
func naiveClosure(nodes map[string]*api.Node, id string) []string {
	set := map[string]bool{id: true}
	for changed := true; changed; {
		changed = false
		for nid, n := range nodes {
			if set[nid] {
				continue
			}
			if set[n.ParentID] || (n.IsReference() && set[n.ReferenceID]) {
				set[nid] = true
				changed = true
			}
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestStore_DeleteMatchesNaiveClosure(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 50; trial++ {
		s := New("root", "root")
		owned := []string{s.RootID()}
		for i := 0; i < 30; i++ {
			parent := owned[rng.Intn(len(owned))]
			if rng.Intn(4) == 0 && len(owned) > 1 {
				target := owned[1+rng.Intn(len(owned)-1)]
				_, err := s.AddReference(parent, target)
				require.NoError(t, err)
				continue
			}
			owned = append(owned, mustAdd(t, s, parent, "item"))
		}

		ids := s.IDs()
		victim := ids[rng.Intn(len(ids))]
		if victim == s.RootID() {
			continue
		}
		want := naiveClosure(s.Export(), victim)

		d, err := s.Delete(victim)
		require.NoError(t, err)
		assert.Equal(t, want, d.IDs, "trial %d", trial)
		assert.Equal(t, len(ids)-len(want), s.Len())
		require.NoError(t, s.Validate(), "trial %d", trial)
	}
}
