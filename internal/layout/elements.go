package layout

import (
	"fmt"
	"sort"

	"github.com/agentic-research/folio/api"
	"github.com/google/uuid"
)

// NewElement returns an element of type typ with type-appropriate defaults.
func NewElement(typ api.ElementType) (api.Element, error) {
	if !typ.Valid() {
		return api.Element{}, fmt.Errorf("%w: %q", ErrInvalidElementType, typ)
	}
	e := api.Element{
		ID:         uuid.NewString(),
		Type:       typ,
		X:          50,
		Y:          50,
		W:          100,
		H:          100,
		Opacity:    1,
		LinkTarget: api.LinkNone,
	}
	switch typ {
	case api.ElementRectangle, api.ElementEllipse, api.ElementTriangle:
		e.Fill = "#cccccc"
		e.Stroke = "#333333"
		e.StrokeWidth = 1
	case api.ElementLine:
		e.H = 0
		e.Stroke = "#333333"
		e.StrokeWidth = 2
	case api.ElementText:
		e.W, e.H = 200, 40
		e.Text = "Text"
		e.FontSize = 16
		e.FontFamily = "sans-serif"
		e.Color = "#000000"
		e.Align = "left"
	case api.ElementGrid:
		e.W, e.H = 300, 200
		e.GridConfig = &api.GridConfig{SourceType: api.SourceCurrent, Columns: 3, Gap: 10, DisplayField: "title"}
	}
	return e, nil
}

// AddElement appends a new element of type typ on top of the template and
// returns its id.
func (s *Store) AddElement(variantID, key string, typ api.ElementType) (string, error) {
	t, err := s.Template(variantID, key)
	if err != nil {
		return "", err
	}
	e, err := NewElement(typ)
	if err != nil {
		return "", err
	}
	e.ZIndex = maxZ(t.Elements) + 1
	t.Elements = append(t.Elements, e)
	return e.ID, nil
}

// UpdateElement applies fn to a copy of one element and stores the result.
// An edit naming a node for which exists returns false is rejected with
// ErrUnknownNode and leaves the element as it was; a nil exists skips that
// check. References the edit leaves incomplete (a specific source or link
// without a node id) are reset.
func (s *Store) UpdateElement(variantID, key, elementID string, fn func(e *api.Element), exists func(id string) bool) error {
	t, err := s.Template(variantID, key)
	if err != nil {
		return err
	}
	for i := range t.Elements {
		if t.Elements[i].ID != elementID {
			continue
		}
		e := t.Elements[i].Clone()
		fn(&e)
		e.ID = elementID
		if err := checkReferences(&e, exists); err != nil {
			return err
		}
		RepairElement(&e, func(string) bool { return true })
		t.Elements[i] = e
		return nil
	}
	return fmt.Errorf("element %q: %w", elementID, ErrNotFound)
}

// DeleteElements removes the listed elements and returns how many went.
func (s *Store) DeleteElements(variantID, key string, ids []string) (int, error) {
	t, err := s.Template(variantID, key)
	if err != nil {
		return 0, err
	}
	drop := idSet(ids)
	kept := t.Elements[:0]
	for _, e := range t.Elements {
		if _, ok := drop[e.ID]; !ok {
			kept = append(kept, e)
		}
	}
	removed := len(t.Elements) - len(kept)
	t.Elements = kept
	return removed, nil
}

// Clipboard holds copied elements, detached from any template.
type Clipboard struct {
	Elements []api.Element
}

// Empty reports whether the clipboard holds nothing.
func (c Clipboard) Empty() bool { return len(c.Elements) == 0 }

// Copy returns deep copies of the listed elements in template order.
func (s *Store) Copy(variantID, key string, ids []string) (Clipboard, error) {
	t, err := s.Template(variantID, key)
	if err != nil {
		return Clipboard{}, err
	}
	want := idSet(ids)
	var clip Clipboard
	for _, e := range t.Elements {
		if _, ok := want[e.ID]; ok {
			clip.Elements = append(clip.Elements, e.Clone())
		}
	}
	return clip, nil
}

// Paste inserts copies of the clipboard elements with fresh ids, offset by
// the paste offset and stacked above everything already in the template.
// exists reports whether a node id is still present; grid and link
// references to missing nodes are reset. The new ids are returned in
// clipboard order.
func (s *Store) Paste(variantID, key string, clip Clipboard, exists func(id string) bool) ([]string, error) {
	t, err := s.Template(variantID, key)
	if err != nil {
		return nil, err
	}
	if clip.Empty() {
		return nil, nil
	}

	// Keep the relative stacking of the pasted elements.
	order := make([]int, len(clip.Elements))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return clip.Elements[order[i]].ZIndex < clip.Elements[order[j]].ZIndex
	})

	base := maxZ(t.Elements)
	pasted := make([]api.Element, len(clip.Elements))
	for rank, idx := range order {
		e := clip.Elements[idx].Clone()
		e.ID = uuid.NewString()
		e.X += s.opts.PasteOffset
		e.Y += s.opts.PasteOffset
		e.ZIndex = base + 1 + rank
		if exists != nil {
			RepairElement(&e, exists)
		}
		pasted[idx] = e
	}

	ids := make([]string, len(pasted))
	for i, e := range pasted {
		ids[i] = e.ID
	}
	t.Elements = append(t.Elements, pasted...)
	return ids, nil
}

// DuplicateElements copies and pastes the listed elements within the same
// template.
func (s *Store) DuplicateElements(variantID, key string, ids []string) ([]string, error) {
	clip, err := s.Copy(variantID, key, ids)
	if err != nil {
		return nil, err
	}
	return s.Paste(variantID, key, clip, nil)
}

// BringToFront raises the listed elements above all others, keeping their
// relative order.
func (s *Store) BringToFront(variantID, key string, ids []string) error {
	return s.restack(variantID, key, ids, true)
}

// SendToBack lowers the listed elements below all others.
func (s *Store) SendToBack(variantID, key string, ids []string) error {
	return s.restack(variantID, key, ids, false)
}

func (s *Store) restack(variantID, key string, ids []string, front bool) error {
	t, err := s.Template(variantID, key)
	if err != nil {
		return err
	}
	want := idSet(ids)
	var picked []*api.Element
	for i := range t.Elements {
		if _, ok := want[t.Elements[i].ID]; ok {
			picked = append(picked, &t.Elements[i])
		}
	}
	if len(picked) == 0 {
		return nil
	}
	sort.SliceStable(picked, func(i, j int) bool { return picked[i].ZIndex < picked[j].ZIndex })

	if front {
		base := maxZ(t.Elements)
		for i, e := range picked {
			e.ZIndex = base + 1 + i
		}
		return nil
	}
	base := minZ(t.Elements)
	for i, e := range picked {
		e.ZIndex = base - len(picked) + i
	}
	return nil
}

// Stacked returns the elements sorted by zIndex, ties broken by list order.
func Stacked(elements []api.Element) []api.Element {
	out := append([]api.Element(nil), elements...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ZIndex < out[j].ZIndex })
	return out
}

func maxZ(els []api.Element) int {
	if len(els) == 0 {
		return 0
	}
	m := els[0].ZIndex
	for _, e := range els[1:] {
		if e.ZIndex > m {
			m = e.ZIndex
		}
	}
	return m
}

func minZ(els []api.Element) int {
	if len(els) == 0 {
		return 0
	}
	m := els[0].ZIndex
	for _, e := range els[1:] {
		if e.ZIndex < m {
			m = e.ZIndex
		}
	}
	return m
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
