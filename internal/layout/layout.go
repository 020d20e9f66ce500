// Package layout holds the variants of a document and the templates and
// elements inside them.
//
// A template is addressed by its key in the variant's template table, which
// is the node type it renders. Variant and template arguments that are empty
// refer to the active variant.
package layout

import (
	"errors"
	"fmt"
	"sort"

	"github.com/agentic-research/folio/api"
	"github.com/google/uuid"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrLastTemplateForbidden = errors.New("a variant must keep at least one template")
	ErrLastVariantForbidden  = errors.New("a document must keep at least one variant")
	ErrInvalidElementType    = errors.New("invalid element type")
	ErrUnknownNode           = errors.New("referenced node does not exist")
)

// Options tunes element and template defaults.
type Options struct {
	// PasteOffset is added to x and y of duplicated and pasted elements.
	PasteOffset float64
	// TemplateWidth and TemplateHeight size new templates.
	TemplateWidth  float64
	TemplateHeight float64
}

// DefaultOptions returns the stock defaults.
func DefaultOptions() Options {
	return Options{PasteOffset: 20, TemplateWidth: 800, TemplateHeight: 600}
}

// Store owns the variants of one document.
type Store struct {
	variants map[string]*api.Variant
	activeID string
	opts     Options
}

// New returns a store with a single empty variant named "Default".
func New(opts Options) *Store {
	v := &api.Variant{ID: api.DefaultVariantID, Name: "Default", Templates: map[string]*api.Template{}}
	return &Store{
		variants: map[string]*api.Variant{v.ID: v},
		activeID: v.ID,
		opts:     opts,
	}
}

// FromVariants builds a store around an existing variant table, taking
// ownership of the map.
func FromVariants(activeID string, variants map[string]*api.Variant, opts Options) (*Store, error) {
	if len(variants) == 0 {
		return nil, fmt.Errorf("variant table: %w", ErrLastVariantForbidden)
	}
	if _, ok := variants[activeID]; !ok {
		return nil, fmt.Errorf("active variant %q: %w", activeID, ErrNotFound)
	}
	return &Store{variants: variants, activeID: activeID, opts: opts}, nil
}

// Options returns the store's defaults.
func (s *Store) Options() Options { return s.opts }

// ActiveID returns the id of the active variant.
func (s *Store) ActiveID() string { return s.activeID }

// Active returns the active variant.
func (s *Store) Active() *api.Variant { return s.variants[s.activeID] }

// VariantIDs returns all variant ids, sorted.
func (s *Store) VariantIDs() []string { return sortedKeys(s.variants) }

// Variant returns the variant with the given id; "" means active.
func (s *Store) Variant(id string) (*api.Variant, error) {
	if id == "" {
		id = s.activeID
	}
	v, ok := s.variants[id]
	if !ok {
		return nil, fmt.Errorf("variant %q: %w", id, ErrNotFound)
	}
	return v, nil
}

// Template returns the template keyed key in the given variant.
func (s *Store) Template(variantID, key string) (*api.Template, error) {
	v, err := s.Variant(variantID)
	if err != nil {
		return nil, err
	}
	t, ok := v.Templates[key]
	if !ok {
		return nil, fmt.Errorf("template %q in variant %q: %w", key, v.ID, ErrNotFound)
	}
	return t, nil
}

// TemplateKeys returns the template keys of a variant, sorted.
func TemplateKeys(v *api.Variant) []string { return sortedKeys(v.Templates) }

// AddTemplate inserts an empty template under a freshly generated key and
// returns the key.
func (s *Store) AddTemplate(variantID string) (string, error) {
	key := uuid.NewString()
	if err := s.AddTemplateFor(variantID, key); err != nil {
		return "", err
	}
	return key, nil
}

// AddTemplateFor inserts an empty template for nodeType. An existing
// template for the type is left alone.
func (s *Store) AddTemplateFor(variantID, nodeType string) error {
	v, err := s.Variant(variantID)
	if err != nil {
		return err
	}
	if _, exists := v.Templates[nodeType]; exists {
		return nil
	}
	v.Templates[nodeType] = &api.Template{
		ID:       nodeType,
		Name:     "New Template",
		Width:    s.opts.TemplateWidth,
		Height:   s.opts.TemplateHeight,
		Elements: []api.Element{},
	}
	return nil
}

// DeleteTemplate removes a template. The last template of a variant stays.
func (s *Store) DeleteTemplate(variantID, key string) error {
	v, err := s.Variant(variantID)
	if err != nil {
		return err
	}
	if _, ok := v.Templates[key]; !ok {
		return fmt.Errorf("template %q in variant %q: %w", key, v.ID, ErrNotFound)
	}
	if len(v.Templates) <= 1 {
		return ErrLastTemplateForbidden
	}
	delete(v.Templates, key)
	return nil
}

// TemplatePatch holds the template fields UpdateTemplate sets.
type TemplatePatch struct {
	Name   *string
	Width  *float64
	Height *float64
}

// UpdateTemplate applies p to a template.
func (s *Store) UpdateTemplate(variantID, key string, p TemplatePatch) error {
	t, err := s.Template(variantID, key)
	if err != nil {
		return err
	}
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Width != nil && *p.Width > 0 {
		t.Width = *p.Width
	}
	if p.Height != nil && *p.Height > 0 {
		t.Height = *p.Height
	}
	return nil
}

// SetElements replaces a template's element list with copies of elements.
// References are checked and repaired as in UpdateElement; one unknown node
// rejects the whole list.
func (s *Store) SetElements(variantID, key string, elements []api.Element, exists func(id string) bool) error {
	t, err := s.Template(variantID, key)
	if err != nil {
		return err
	}
	out := make([]api.Element, len(elements))
	for i, e := range elements {
		out[i] = e.Clone()
		if err := checkReferences(&out[i], exists); err != nil {
			return err
		}
		RepairElement(&out[i], func(string) bool { return true })
	}
	t.Elements = out
	return nil
}

// AddVariant creates a variant seeded with a copy of the active variant's
// templates, so every node type keeps a renderable target.
func (s *Store) AddVariant() string {
	src := s.Active()
	v := src.Clone()
	v.ID = uuid.NewString()
	v.Name = fmt.Sprintf("Variant %d", len(s.variants)+1)
	s.variants[v.ID] = v
	return v.ID
}

// DuplicateVariant deep-copies a variant under a new id.
func (s *Store) DuplicateVariant(id string) (string, error) {
	src, err := s.Variant(id)
	if err != nil {
		return "", err
	}
	v := src.Clone()
	v.ID = uuid.NewString()
	v.Name = src.Name + " (Copy)"
	s.variants[v.ID] = v
	return v.ID, nil
}

// DeleteVariant removes a variant. Deleting the active variant activates the
// first remaining one by id.
func (s *Store) DeleteVariant(id string) error {
	if _, ok := s.variants[id]; !ok {
		return fmt.Errorf("variant %q: %w", id, ErrNotFound)
	}
	if len(s.variants) <= 1 {
		return ErrLastVariantForbidden
	}
	delete(s.variants, id)
	if s.activeID == id {
		s.activeID = s.VariantIDs()[0]
	}
	return nil
}

// RenameVariant sets a variant's display name.
func (s *Store) RenameVariant(id, name string) error {
	v, ok := s.variants[id]
	if !ok {
		return fmt.Errorf("variant %q: %w", id, ErrNotFound)
	}
	v.Name = name
	return nil
}

// SetActive makes id the active variant.
func (s *Store) SetActive(id string) error {
	if _, ok := s.variants[id]; !ok {
		return fmt.Errorf("variant %q: %w", id, ErrNotFound)
	}
	s.activeID = id
	return nil
}

// EachTemplate calls fn for every template of every variant, in id order.
func (s *Store) EachTemplate(fn func(v *api.Variant, key string, t *api.Template)) {
	for _, vid := range s.VariantIDs() {
		v := s.variants[vid]
		for _, key := range TemplateKeys(v) {
			fn(v, key, v.Templates[key])
		}
	}
}

// Clone returns a deep copy of the store.
func (s *Store) Clone() *Store {
	return &Store{variants: s.Export(), activeID: s.activeID, opts: s.opts}
}

// Export returns a deep copy of the variant table.
func (s *Store) Export() map[string]*api.Variant {
	out := make(map[string]*api.Variant, len(s.variants))
	for id, v := range s.variants {
		out[id] = v.Clone()
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
