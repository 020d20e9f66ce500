package api

// CurrentSchemaVersion is the schema version written by Export and produced
// by the migration pipeline.
const CurrentSchemaVersion = 3

// DefaultVariantID is the id of the synthetic variant that wraps the flat
// template table of pre-variant documents.
const DefaultVariantID = "default"

// Document is the serialized form of a project.
type Document struct {
	// SchemaVersion of the serialized shape.
	SchemaVersion int `json:"schemaVersion"`
	// RootID names the single parentless node.
	RootID string `json:"rootId"`
	// Nodes is the node table keyed by node id.
	Nodes map[string]*Node `json:"nodes"`
	// Variants keyed by variant id. Exactly one is active.
	Variants        map[string]*Variant `json:"variants"`
	ActiveVariantID string              `json:"activeVariantId"`
}

// NodeKind distinguishes owning nodes from aliases.
type NodeKind int

const (
	KindOwned NodeKind = iota
	KindReference
)

// Node is one item in the content hierarchy.
type Node struct {
	ID       string         `json:"id"`
	ParentID string         `json:"parentId,omitempty"`
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Data     map[string]any `json:"data"`
	Children []string       `json:"children"`
	// ReferenceID marks the node as an alias of another node.
	ReferenceID string `json:"referenceId,omitempty"`
}

// Kind reports whether n owns children or mirrors another node.
func (n *Node) Kind() NodeKind {
	if n.ReferenceID != "" {
		return KindReference
	}
	return KindOwned
}

// IsReference is shorthand for Kind() == KindReference.
func (n *Node) IsReference() bool { return n.ReferenceID != "" }

// ChildIDs returns the ids to descend into during traversal.
// Aliases own no children, so it is always nil for them.
func (n *Node) ChildIDs() []string {
	if n.IsReference() {
		return nil
	}
	return n.Children
}

// Variant is a named full set of templates.
type Variant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Templates keyed by node type.
	Templates map[string]*Template `json:"templates"`
}

// Template is a reusable page layout for one node type.
type Template struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Width    float64   `json:"width"`
	Height   float64   `json:"height"`
	Elements []Element `json:"elements"`
}

// ElementType is the drawable primitive kind.
type ElementType string

const (
	ElementRectangle ElementType = "rectangle"
	ElementEllipse   ElementType = "ellipse"
	ElementTriangle  ElementType = "triangle"
	ElementLine      ElementType = "line"
	ElementText      ElementType = "text"
	ElementGrid      ElementType = "grid"
)

// Valid reports whether t is a known element type.
func (t ElementType) Valid() bool {
	switch t {
	case ElementRectangle, ElementEllipse, ElementTriangle, ElementLine, ElementText, ElementGrid:
		return true
	}
	return false
}

// SourceType selects which node a grid lists children of.
type SourceType string

const (
	SourceCurrent  SourceType = "current"
	SourceSpecific SourceType = "specific"
)

// LinkTarget selects where an element navigates when activated.
type LinkTarget string

const (
	LinkNone         LinkTarget = "none"
	LinkParent       LinkTarget = "parent"
	LinkSpecificNode LinkTarget = "specific_node"
)

// GridConfig configures a grid element.
type GridConfig struct {
	SourceType   SourceType `json:"sourceType"`
	SourceID     string     `json:"sourceId,omitempty"`
	Columns      int        `json:"columns"`
	Gap          float64    `json:"gap"`
	DisplayField string     `json:"displayField"`
}

// Element is one drawable primitive of a template.
type Element struct {
	ID       string      `json:"id"`
	Type     ElementType `json:"type"`
	X        float64     `json:"x"`
	Y        float64     `json:"y"`
	W        float64     `json:"w"`
	H        float64     `json:"h"`
	Rotation float64     `json:"rotation"`

	Fill        string  `json:"fill,omitempty"`
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
	Opacity     float64 `json:"opacity"`

	Text       string  `json:"text,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty"`
	FontFamily string  `json:"fontFamily,omitempty"`
	Color      string  `json:"color,omitempty"`
	Align      string  `json:"align,omitempty"`

	ZIndex int `json:"zIndex"`

	GridConfig *GridConfig `json:"gridConfig,omitempty"`
	LinkTarget LinkTarget  `json:"linkTarget"`
	LinkValue  string      `json:"linkValue,omitempty"`
}

// Clone returns a deep copy of e.
func (e Element) Clone() Element {
	if e.GridConfig != nil {
		gc := *e.GridConfig
		e.GridConfig = &gc
	}
	return e
}

// Clone returns a deep copy of t.
func (t *Template) Clone() *Template {
	out := *t
	out.Elements = make([]Element, len(t.Elements))
	for i, e := range t.Elements {
		out.Elements[i] = e.Clone()
	}
	return &out
}

// Clone returns a deep copy of v.
func (v *Variant) Clone() *Variant {
	out := &Variant{ID: v.ID, Name: v.Name, Templates: make(map[string]*Template, len(v.Templates))}
	for k, t := range v.Templates {
		out.Templates[k] = t.Clone()
	}
	return out
}

// Clone returns a deep copy of n. Data values are copied recursively for
// JSON-shaped values (maps and slices); other values are shared.
func (n *Node) Clone() *Node {
	out := *n
	out.Children = append([]string(nil), n.Children...)
	if out.Children == nil {
		out.Children = []string{}
	}
	out.Data = CloneData(n.Data)
	return &out
}

// CloneData deep-copies a JSON-shaped map.
func CloneData(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneData(t)
	case []any:
		s := make([]any, len(t))
		for i, x := range t {
			s[i] = cloneValue(x)
		}
		return s
	default:
		return v
	}
}
