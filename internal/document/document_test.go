package document

import (
	"testing"

	"github.com/agentic-research/folio/api"
	"github.com/agentic-research/folio/internal/graph"
	"github.com/agentic-research/folio/internal/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	d := New(layout.DefaultOptions())
	root, err := d.Nodes().Get(d.Nodes().RootID())
	require.NoError(t, err)
	assert.Equal(t, DefaultRootType, root.Type)
	assert.Contains(t, d.Variants().Active().Templates, DefaultRootType)
	assert.NoError(t, d.Validate())

	out := d.Export()
	assert.Equal(t, api.CurrentSchemaVersion, out.SchemaVersion)
	assert.Equal(t, api.DefaultVariantID, out.ActiveVariantID)
	assert.Len(t, out.Nodes, 1)
}

func TestDeleteNode_ClearsLinks(t *testing.T) {
	d := New(layout.DefaultOptions())
	root := d.Nodes().RootID()
	a, err := d.Nodes().Add(root, "month")
	require.NoError(t, err)
	b, err := d.Nodes().Add(a, "week")
	require.NoError(t, err)

	els := []api.Element{
		{ID: "E", Type: api.ElementText, LinkTarget: api.LinkSpecificNode, LinkValue: b},
		{ID: "G", Type: api.ElementGrid, GridConfig: &api.GridConfig{SourceType: api.SourceSpecific, SourceID: b, Columns: 2}},
	}
	require.NoError(t, d.Variants().SetElements("", DefaultRootType, els, d.Nodes().Has))
	require.NoError(t, d.Validate())

	del, repaired, err := d.DeleteNode(b)
	require.NoError(t, err)
	assert.Equal(t, []string{b}, del.IDs)
	assert.Equal(t, 2, repaired)

	tpl, err := d.Variants().Template("", DefaultRootType)
	require.NoError(t, err)
	assert.Equal(t, api.LinkNone, tpl.Elements[0].LinkTarget)
	assert.Empty(t, tpl.Elements[0].LinkValue)
	assert.Equal(t, api.SourceCurrent, tpl.Elements[1].GridConfig.SourceType)
	assert.Empty(t, tpl.Elements[1].GridConfig.SourceID)
	assert.Equal(t, 2, tpl.Elements[1].GridConfig.Columns)
	assert.NoError(t, d.Validate())

	_, _, err = d.DeleteNode(root)
	assert.ErrorIs(t, err, graph.ErrRootDeletionForbidden)
}

func TestResolveTemplate(t *testing.T) {
	d := New(layout.DefaultOptions())
	root := d.Nodes().RootID()
	month, err := d.Nodes().Add(root, "month")
	require.NoError(t, err)
	require.NoError(t, d.Variants().AddTemplateFor("", "month"))

	key, _, err := d.ResolveTemplate(month)
	require.NoError(t, err)
	assert.Equal(t, "month", key)

	t.Run("unmapped type falls back to first template", func(t *testing.T) {
		day, err := d.Nodes().Add(month, "day")
		require.NoError(t, err)
		key, tpl, err := d.ResolveTemplate(day)
		require.NoError(t, err)
		assert.Equal(t, "month", key)
		assert.Same(t, d.Variants().Active().Templates["month"], tpl)
	})

	t.Run("alias resolves through its target", func(t *testing.T) {
		alias, err := d.Nodes().AddReference(root, month)
		require.NoError(t, err)
		typ := "week"
		require.NoError(t, d.Nodes().Update(month, graph.Patch{Type: &typ}))
		require.NoError(t, d.Variants().AddTemplateFor("", "week"))

		key, _, err := d.ResolveTemplate(alias)
		require.NoError(t, err)
		assert.Equal(t, "week", key)
	})

	_, _, err = d.ResolveTemplate("ghost")
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestResolvePreviewNode(t *testing.T) {
	d := New(layout.DefaultOptions())
	root := d.Nodes().RootID()
	first, err := d.Nodes().Add(root, "month")
	require.NoError(t, err)
	_, err = d.Nodes().Add(root, "month")
	require.NoError(t, err)

	assert.Equal(t, first, d.ResolvePreviewNode("month").ID)
	assert.Equal(t, root, d.ResolvePreviewNode("unused").ID)
}

func TestFromAPI(t *testing.T) {
	src := New(layout.DefaultOptions())
	_, err := src.Nodes().Add(src.Nodes().RootID(), "month")
	require.NoError(t, err)

	d, err := FromAPI(src.Export(), layout.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, src.Export(), d.Export())

	old := src.Export()
	old.SchemaVersion = 1
	_, err = FromAPI(old, layout.DefaultOptions())
	assert.Error(t, err)
}

func TestClone_IsIndependent(t *testing.T) {
	d := New(layout.DefaultOptions())
	c := d.Clone()
	_, err := c.Nodes().Add(c.Nodes().RootID(), "month")
	require.NoError(t, err)
	c.Variants().AddVariant()

	assert.Equal(t, 1, d.Nodes().Len())
	assert.Len(t, d.Variants().VariantIDs(), 1)
}

func TestValidate_DanglingReference(t *testing.T) {
	d := New(layout.DefaultOptions())
	require.NoError(t, d.Variants().SetElements("", DefaultRootType, []api.Element{
		{ID: "E", Type: api.ElementText, LinkTarget: api.LinkSpecificNode, LinkValue: "missing"},
	}, nil))
	err := d.Validate()
	assert.ErrorIs(t, err, graph.ErrInvariant)
}
