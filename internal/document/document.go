// Package document is the aggregate of a node graph and its variants. It
// owns every node, variant and template of a project and keeps references
// between them intact across structural edits.
package document

import (
	"errors"
	"fmt"

	"github.com/agentic-research/folio/api"
	"github.com/agentic-research/folio/internal/graph"
	"github.com/agentic-research/folio/internal/layout"
)

// ErrNoTemplate is returned when a variant has no template at all.
var ErrNoTemplate = errors.New("no template available")

const (
	// DefaultRootType is the node type of the root of a new document.
	DefaultRootType = "page"
	// DefaultRootTitle is the title of the root of a new document.
	DefaultRootTitle = "Untitled"
)

// Document holds one project's live state.
type Document struct {
	nodes    *graph.Store
	variants *layout.Store
}

// New returns a document with a root node and a template for its type.
func New(opts layout.Options) *Document {
	d := &Document{
		nodes:    graph.New(DefaultRootType, DefaultRootTitle),
		variants: layout.New(opts),
	}
	// AddTemplateFor fails only for an unknown variant, and "" names the
	// active variant layout.New just created.
	_ = d.variants.AddTemplateFor("", DefaultRootType)
	return d
}

// FromAPI builds a document from a current-schema serialized document,
// taking ownership of its maps. Run older documents through the migration
// pipeline first.
func FromAPI(src *api.Document, opts layout.Options) (*Document, error) {
	if src.SchemaVersion != api.CurrentSchemaVersion {
		return nil, fmt.Errorf("schema version %d, want %d", src.SchemaVersion, api.CurrentSchemaVersion)
	}
	nodes, err := graph.FromNodes(src.RootID, src.Nodes)
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}
	variants, err := layout.FromVariants(src.ActiveVariantID, src.Variants, opts)
	if err != nil {
		return nil, fmt.Errorf("load variants: %w", err)
	}
	return &Document{nodes: nodes, variants: variants}, nil
}

// Nodes returns the node graph.
func (d *Document) Nodes() *graph.Store { return d.nodes }

// Variants returns the variant store.
func (d *Document) Variants() *layout.Store { return d.variants }

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	return &Document{nodes: d.nodes.Clone(), variants: d.variants.Clone()}
}

// Export returns a deep copy in serialized form at the current schema.
func (d *Document) Export() *api.Document {
	return &api.Document{
		SchemaVersion:   api.CurrentSchemaVersion,
		RootID:          d.nodes.RootID(),
		Nodes:           d.nodes.Export(),
		Variants:        d.variants.Export(),
		ActiveVariantID: d.variants.ActiveID(),
	}
}

// DeleteNode removes a node and its closure, then clears every grid source
// and link in every template that named a removed node. It returns the
// deletion and the number of repaired elements.
func (d *Document) DeleteNode(id string) (*graph.Deletion, int, error) {
	del, err := d.nodes.Delete(id)
	if err != nil {
		return nil, 0, err
	}
	repaired := d.variants.RepairReferences(del.Contains)
	return del, repaired, nil
}

// ResolveTemplate returns the template rendering a node in the active
// variant: the template keyed by the node's type (an alias uses its
// target's type), else the first template by key.
func (d *Document) ResolveTemplate(nodeID string) (string, *api.Template, error) {
	n, err := d.nodes.Get(nodeID)
	if err != nil {
		return "", nil, err
	}
	typ := n.Type
	if n.IsReference() {
		if target, err := d.nodes.Get(n.ReferenceID); err == nil {
			typ = target.Type
		}
	}
	return d.TemplateForType(typ)
}

// TemplateForType resolves a node type to a template of the active variant,
// falling back to the first template by key.
func (d *Document) TemplateForType(typ string) (string, *api.Template, error) {
	v := d.variants.Active()
	if t, ok := v.Templates[typ]; ok {
		return typ, t, nil
	}
	keys := layout.TemplateKeys(v)
	if len(keys) == 0 {
		return "", nil, fmt.Errorf("variant %q: %w", v.ID, ErrNoTemplate)
	}
	return keys[0], v.Templates[keys[0]], nil
}

// ResolvePreviewNode returns the node a template is previewed with: the
// first node in tree order whose type matches, else the root.
func (d *Document) ResolvePreviewNode(templateKey string) *api.Node {
	var found *api.Node
	errStop := errors.New("stop")
	_ = d.nodes.Walk(func(n *api.Node, _ int) error {
		if n.Type == templateKey {
			found = n
			return errStop
		}
		return nil
	})
	if found != nil {
		return found
	}
	root, _ := d.nodes.Get(d.nodes.RootID())
	return root
}

// Validate checks the node graph invariants, that every grid source and
// link resolves, and that the active variant can render something.
func (d *Document) Validate() error {
	var errs []error
	if err := d.nodes.Validate(); err != nil {
		errs = append(errs, err)
	}
	d.variants.EachTemplate(func(v *api.Variant, key string, t *api.Template) {
		for _, e := range t.Elements {
			if gc := e.GridConfig; gc != nil && gc.SourceType == api.SourceSpecific && !d.nodes.Has(gc.SourceID) {
				errs = append(errs, fmt.Errorf("%w: element %q of template %q in variant %q has grid source %q",
					graph.ErrInvariant, e.ID, key, v.ID, gc.SourceID))
			}
			if e.LinkTarget == api.LinkSpecificNode && !d.nodes.Has(e.LinkValue) {
				errs = append(errs, fmt.Errorf("%w: element %q of template %q in variant %q links to %q",
					graph.ErrInvariant, e.ID, key, v.ID, e.LinkValue))
			}
		}
	})
	if len(d.variants.Active().Templates) == 0 {
		errs = append(errs, fmt.Errorf("%w: active variant %q", ErrNoTemplate, d.variants.ActiveID()))
	}
	return errors.Join(errs...)
}
