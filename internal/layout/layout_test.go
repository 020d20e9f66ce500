package layout

import (
	"testing"

	"github.com/agentic-research/folio/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s := New(DefaultOptions())
	require.NoError(t, s.AddTemplateFor("", "year"))
	return s
}

func TestStore_AddAndDeleteTemplate(t *testing.T) {
	s := newStore(t)

	key, err := s.AddTemplate("")
	require.NoError(t, err)
	tpl, err := s.Template("", key)
	require.NoError(t, err)
	assert.Equal(t, key, tpl.ID)
	assert.Equal(t, 800.0, tpl.Width)
	assert.Equal(t, 600.0, tpl.Height)
	assert.Empty(t, tpl.Elements)

	require.NoError(t, s.DeleteTemplate("", key))
	assert.ErrorIs(t, s.DeleteTemplate("", "year"), ErrLastTemplateForbidden)
	assert.ErrorIs(t, s.DeleteTemplate("", "nope"), ErrNotFound)
	assert.Len(t, s.Active().Templates, 1)
}

func TestStore_AddTemplateForKeepsExisting(t *testing.T) {
	s := newStore(t)
	name := "Year page"
	require.NoError(t, s.UpdateTemplate("", "year", TemplatePatch{Name: &name}))

	require.NoError(t, s.AddTemplateFor("", "year"))
	tpl, _ := s.Template("", "year")
	assert.Equal(t, "Year page", tpl.Name)
}

func TestStore_UpdateTemplateIgnoresNonPositiveSize(t *testing.T) {
	s := newStore(t)
	w, h := 1024.0, -5.0
	require.NoError(t, s.UpdateTemplate("", "year", TemplatePatch{Width: &w, Height: &h}))

	tpl, _ := s.Template("", "year")
	assert.Equal(t, 1024.0, tpl.Width)
	assert.Equal(t, 600.0, tpl.Height)
}

func TestStore_SetElementsCopies(t *testing.T) {
	s := newStore(t)
	els := []api.Element{{ID: "e1", Type: api.ElementGrid, GridConfig: &api.GridConfig{SourceType: api.SourceCurrent}}}

	require.NoError(t, s.SetElements("", "year", els, nil))
	els[0].GridConfig.Columns = 9

	tpl, _ := s.Template("", "year")
	assert.Equal(t, 0, tpl.Elements[0].GridConfig.Columns)
}

func TestStore_Variants(t *testing.T) {
	s := newStore(t)
	_, err := s.AddElement("", "year", api.ElementText)
	require.NoError(t, err)

	t.Run("add seeds templates from active", func(t *testing.T) {
		id := s.AddVariant()
		v, err := s.Variant(id)
		require.NoError(t, err)
		assert.Contains(t, v.Templates, "year")
		assert.Len(t, v.Templates["year"].Elements, 1)
		require.NoError(t, s.DeleteVariant(id))
	})

	t.Run("duplicate is deep", func(t *testing.T) {
		id, err := s.DuplicateVariant(api.DefaultVariantID)
		require.NoError(t, err)
		dup, _ := s.Variant(id)
		assert.Equal(t, "Default (Copy)", dup.Name)

		dup.Templates["year"].Elements[0].Text = "changed"
		orig, _ := s.Template(api.DefaultVariantID, "year")
		assert.Equal(t, "Text", orig.Elements[0].Text)
		require.NoError(t, s.DeleteVariant(id))
	})

	t.Run("rename and activate", func(t *testing.T) {
		id := s.AddVariant()
		require.NoError(t, s.RenameVariant(id, "Dark"))
		require.NoError(t, s.SetActive(id))
		assert.Equal(t, "Dark", s.Active().Name)

		require.NoError(t, s.DeleteVariant(id))
		assert.Equal(t, api.DefaultVariantID, s.ActiveID())
	})

	t.Run("last variant stays", func(t *testing.T) {
		assert.ErrorIs(t, s.DeleteVariant(api.DefaultVariantID), ErrLastVariantForbidden)
		assert.ErrorIs(t, s.DeleteVariant("ghost"), ErrNotFound)
		assert.ErrorIs(t, s.RenameVariant("ghost", "x"), ErrNotFound)
		assert.ErrorIs(t, s.SetActive("ghost"), ErrNotFound)
	})
}

func TestStore_ElementHelpers(t *testing.T) {
	s := newStore(t)
	a, err := s.AddElement("", "year", api.ElementRectangle)
	require.NoError(t, err)
	b, err := s.AddElement("", "year", api.ElementGrid)
	require.NoError(t, err)

	_, err = s.AddElement("", "year", api.ElementType("star"))
	assert.ErrorIs(t, err, ErrInvalidElementType)

	tpl, _ := s.Template("", "year")
	assert.Equal(t, 1, tpl.Elements[0].ZIndex)
	assert.Equal(t, 2, tpl.Elements[1].ZIndex)
	assert.Equal(t, api.SourceCurrent, tpl.Elements[1].GridConfig.SourceType)

	t.Run("update repairs incomplete link", func(t *testing.T) {
		require.NoError(t, s.UpdateElement("", "year", a, func(e *api.Element) {
			e.X = 77
			e.LinkTarget = api.LinkSpecificNode
		}, nil))
		tpl, _ := s.Template("", "year")
		assert.Equal(t, 77.0, tpl.Elements[0].X)
		assert.Equal(t, api.LinkNone, tpl.Elements[0].LinkTarget)
		assert.ErrorIs(t, s.UpdateElement("", "year", "ghost", func(*api.Element) {}, nil), ErrNotFound)
	})

	t.Run("duplicate offsets and stacks on top", func(t *testing.T) {
		ids, err := s.DuplicateElements("", "year", []string{a, b})
		require.NoError(t, err)
		require.Len(t, ids, 2)

		tpl, _ := s.Template("", "year")
		require.Len(t, tpl.Elements, 4)
		orig, dupA, dupB := tpl.Elements[0], tpl.Elements[2], tpl.Elements[3]
		assert.NotEqual(t, orig.ID, dupA.ID)
		assert.Equal(t, orig.X+20, dupA.X)
		assert.Equal(t, orig.Y+20, dupA.Y)
		assert.Equal(t, 3, dupA.ZIndex)
		assert.Equal(t, 4, dupB.ZIndex)

		dupB.GridConfig.Columns = 42
		assert.Equal(t, 3, tpl.Elements[1].GridConfig.Columns, "duplicate must not share grid config")

		n, err := s.DeleteElements("", "year", ids)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("paste into other template repairs references", func(t *testing.T) {
		require.NoError(t, s.UpdateElement("", "year", b, func(e *api.Element) {
			e.GridConfig.SourceType = api.SourceSpecific
			e.GridConfig.SourceID = "node-1"
		}, nil))
		clip, err := s.Copy("", "year", []string{b})
		require.NoError(t, err)
		require.NoError(t, s.AddTemplateFor("", "month"))

		ids, err := s.Paste("", "month", clip, func(id string) bool { return id != "node-1" })
		require.NoError(t, err)
		tpl, _ := s.Template("", "month")
		require.Len(t, tpl.Elements, 1)
		assert.Equal(t, ids[0], tpl.Elements[0].ID)
		assert.Equal(t, 1, tpl.Elements[0].ZIndex)
		assert.Equal(t, api.SourceCurrent, tpl.Elements[0].GridConfig.SourceType)

		empty, err := s.Paste("", "month", Clipboard{}, nil)
		require.NoError(t, err)
		assert.Nil(t, empty)
	})

	t.Run("restack", func(t *testing.T) {
		require.NoError(t, s.SendToBack("", "year", []string{b}))
		stacked := Stacked(mustTemplate(t, s, "year").Elements)
		assert.Equal(t, b, stacked[0].ID)

		require.NoError(t, s.BringToFront("", "year", []string{b}))
		stacked = Stacked(mustTemplate(t, s, "year").Elements)
		assert.Equal(t, b, stacked[len(stacked)-1].ID)
	})
}

func mustTemplate(t *testing.T, s *Store, key string) *api.Template {
	t.Helper()
	tpl, err := s.Template("", key)
	require.NoError(t, err)
	return tpl
}

func TestStore_RepairReferences(t *testing.T) {
	s := newStore(t)
	other := s.AddVariant()
	els := []api.Element{
		{ID: "link", Type: api.ElementText, LinkTarget: api.LinkSpecificNode, LinkValue: "B"},
		{ID: "grid", Type: api.ElementGrid, GridConfig: &api.GridConfig{SourceType: api.SourceSpecific, SourceID: "B"}},
		{ID: "keep", Type: api.ElementText, LinkTarget: api.LinkSpecificNode, LinkValue: "C"},
		{ID: "parent", Type: api.ElementText, LinkTarget: api.LinkParent},
	}
	require.NoError(t, s.SetElements("", "year", els, nil))
	require.NoError(t, s.SetElements(other, "year", els, nil))
	assert.Equal(t, map[string]int{"B": 4, "C": 2}, s.References())

	n := s.RepairReferences(func(id string) bool { return id == "B" })
	assert.Equal(t, 4, n)

	for _, vid := range s.VariantIDs() {
		tpl, err := s.Template(vid, "year")
		require.NoError(t, err)
		assert.Equal(t, api.LinkNone, tpl.Elements[0].LinkTarget)
		assert.Empty(t, tpl.Elements[0].LinkValue)
		assert.Equal(t, api.SourceCurrent, tpl.Elements[1].GridConfig.SourceType)
		assert.Empty(t, tpl.Elements[1].GridConfig.SourceID)
		assert.Equal(t, "C", tpl.Elements[2].LinkValue)
		assert.Equal(t, api.LinkParent, tpl.Elements[3].LinkTarget)
	}
}

func TestFromVariants(t *testing.T) {
	_, err := FromVariants("x", map[string]*api.Variant{}, DefaultOptions())
	assert.ErrorIs(t, err, ErrLastVariantForbidden)

	_, err = FromVariants("x", map[string]*api.Variant{"y": {ID: "y", Templates: map[string]*api.Template{}}}, DefaultOptions())
	assert.ErrorIs(t, err, ErrNotFound)
}
