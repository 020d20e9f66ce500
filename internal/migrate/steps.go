package migrate

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/agentic-research/folio/api"
	"github.com/ohler55/ojg/jp"
)

// Step upgrades a document tree from schema version From to From+1.
//
// A normalizing step is idempotent and also runs on documents already past
// its version, so a current document still gets missing fields filled and
// dangling references repaired.
type Step struct {
	From        int
	Name        string
	Normalizing bool
	apply       func(tree map[string]any)
}

// To returns the version a step produces.
func (s Step) To() int { return s.From + 1 }

// Run returns an upgraded copy of tree. tree itself is left untouched.
func (s Step) Run(tree map[string]any) map[string]any {
	out := api.CloneData(tree)
	s.apply(out)
	out[keySchemaVersion] = int64(s.To())
	return out
}

// Steps returns the pipeline in version order; Steps()[v] upgrades
// version v.
func Steps() []Step {
	return []Step{
		{From: 0, Name: "wrap-templates-in-variant", apply: wrapTemplates},
		{From: 1, Name: "normalize-nodes", Normalizing: true, apply: normalizeNodes},
		{From: 2, Name: "normalize-templates", Normalizing: true, apply: normalizeTemplates},
	}
}

const (
	defaultTemplateWidth  = 800.0
	defaultTemplateHeight = 600.0
	defaultGridColumns    = 3
	defaultGridGap        = 10.0
	defaultDisplayField   = "title"
)

var (
	legacyTemplatesPath = jp.MustParseString("$.templates")
	elementsPath        = jp.MustParseString("$.variants.*.templates.*.elements[*]")
)

// wrapTemplates moves a flat template table into a single default variant.
// Documents that already carry variants only lose the stale table.
func wrapTemplates(tree map[string]any) {
	templates, _ := legacyTemplatesPath.First(tree).(map[string]any)
	delete(tree, keyTemplates)
	if variants, ok := tree[keyVariants].(map[string]any); ok && len(variants) > 0 {
		return
	}
	if templates == nil {
		templates = map[string]any{}
	}
	tree[keyVariants] = map[string]any{
		api.DefaultVariantID: map[string]any{
			"id":         api.DefaultVariantID,
			"name":       "Default",
			keyTemplates: templates,
		},
	}
	tree[keyActiveVariantID] = api.DefaultVariantID
}

// normalizeNodes gives every node its full field set, resolves alias chains
// and restores parent/child symmetry from the root down. It also settles the
// variant table so later steps can rely on it.
func normalizeNodes(tree map[string]any) {
	nodes := nodeTable(tree[keyNodes])
	for key, raw := range nodes {
		n, ok := raw.(map[string]any)
		if !ok {
			delete(nodes, key)
			continue
		}
		n["id"] = key
		n["type"] = stringOr(n["type"], "")
		n["title"] = stringOr(n["title"], "")
		if _, ok := n["data"].(map[string]any); !ok {
			n["data"] = map[string]any{}
		}
		n["children"] = stringList(n["children"])
		dropEmpty(n, "parentId")
		dropEmpty(n, "referenceId")
	}
	rootID, _ := tree[keyRootID].(string)
	// The root is always an owned node.
	if root, ok := nodes[rootID].(map[string]any); ok {
		delete(root, "referenceId")
	}
	resolveAliases(nodes)
	relink(nodes, rootID)
	tree[keyNodes] = nodes

	normalizeVariants(tree)
}

// nodeTable accepts the node table as a map or as a list of nodes with ids.
func nodeTable(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case []any:
		out := make(map[string]any, len(t))
		for _, item := range t {
			n, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if id, _ := n["id"].(string); id != "" {
				out[id] = n
			}
		}
		return out
	}
	return map[string]any{}
}

// resolveAliases points every alias at a non-alias node. Chains collapse to
// their last node; an alias whose chain is cyclic becomes an owned node.
func resolveAliases(nodes map[string]any) {
	targets := make(map[string]string)
	for id, raw := range nodes {
		n := raw.(map[string]any)
		if _, ok := n["referenceId"]; ok {
			targets[id] = aliasTarget(nodes, id)
		}
	}
	for id, target := range targets {
		n := nodes[id].(map[string]any)
		if target == "" {
			delete(n, "referenceId")
			continue
		}
		n["referenceId"] = target
		n["children"] = []any{}
	}
}

func aliasTarget(nodes map[string]any, id string) string {
	seen := map[string]bool{id: true}
	cur := id
	for {
		n := nodes[cur].(map[string]any)
		ref, _ := n["referenceId"].(string)
		if ref == "" {
			break
		}
		if seen[ref] {
			return ""
		}
		if _, ok := nodes[ref].(map[string]any); !ok {
			break
		}
		seen[ref] = true
		cur = ref
	}
	if cur == id {
		return ""
	}
	return cur
}

// relink walks the tree from the root, dropping child ids that do not
// resolve or were already reached, and rewrites parentId to match. Nodes the
// walk misses are attached to their recorded parent when it was reached and
// can own children, otherwise to the root.
func relink(nodes map[string]any, rootID string) {
	root, ok := nodes[rootID].(map[string]any)
	if !ok {
		return
	}
	delete(root, "parentId")
	visited := map[string]bool{rootID: true}

	var visit func(id string)
	visit = func(id string) {
		n := nodes[id].(map[string]any)
		if _, alias := n["referenceId"]; alias {
			n["children"] = []any{}
			return
		}
		kids, _ := n["children"].([]any)
		kept := make([]any, 0, len(kids))
		for _, k := range kids {
			cid, _ := k.(string)
			child, ok := nodes[cid].(map[string]any)
			if !ok || visited[cid] {
				continue
			}
			visited[cid] = true
			child["parentId"] = id
			kept = append(kept, cid)
			visit(cid)
		}
		n["children"] = kept
	}
	attach := func(parentID, id string) {
		parent := nodes[parentID].(map[string]any)
		kids, _ := parent["children"].([]any)
		parent["children"] = append(kids, id)
		nodes[id].(map[string]any)["parentId"] = parentID
		visited[id] = true
		visit(id)
	}
	canOwn := func(id string) bool {
		n, ok := nodes[id].(map[string]any)
		if !ok || !visited[id] {
			return false
		}
		_, alias := n["referenceId"]
		return !alias
	}

	visit(rootID)
	for len(visited) < len(nodes) {
		progressed := false
		for _, id := range sortedKeys(nodes) {
			if visited[id] {
				continue
			}
			if pid, _ := nodes[id].(map[string]any)["parentId"].(string); canOwn(pid) {
				attach(pid, id)
				progressed = true
			}
		}
		if progressed {
			continue
		}
		for _, id := range sortedKeys(nodes) {
			if !visited[id] {
				attach(rootID, id)
				break
			}
		}
	}
}

// normalizeVariants fills variant ids and names, drops variants that have no
// templates while another one remains, and makes sure the active variant
// exists.
func normalizeVariants(tree map[string]any) {
	variants, _ := tree[keyVariants].(map[string]any)
	if variants == nil {
		variants = map[string]any{}
	}
	for key, raw := range variants {
		v, ok := raw.(map[string]any)
		if !ok {
			delete(variants, key)
			continue
		}
		v["id"] = key
		v["name"] = nonEmptyOr(v["name"], key)
		if _, ok := v[keyTemplates].(map[string]any); !ok {
			v[keyTemplates] = map[string]any{}
		}
	}
	for _, key := range sortedKeys(variants) {
		if len(variants) == 1 {
			break
		}
		templates := variants[key].(map[string]any)[keyTemplates].(map[string]any)
		if len(templates) == 0 {
			delete(variants, key)
		}
	}
	tree[keyVariants] = variants

	active, _ := tree[keyActiveVariantID].(string)
	if _, ok := variants[active]; !ok {
		active = ""
		if keys := sortedKeys(variants); len(keys) > 0 {
			active = keys[0]
		}
	}
	tree[keyActiveVariantID] = active
}

// normalizeTemplates gives every template and element its full field set
// and resets grid sources and links that name missing nodes.
func normalizeTemplates(tree map[string]any) {
	variants, _ := tree[keyVariants].(map[string]any)
	for _, rv := range variants {
		v, ok := rv.(map[string]any)
		if !ok {
			continue
		}
		templates, _ := v[keyTemplates].(map[string]any)
		for key, rt := range templates {
			t, ok := rt.(map[string]any)
			if !ok {
				delete(templates, key)
				continue
			}
			t["id"] = nonEmptyOr(t["id"], key)
			t["name"] = nonEmptyOr(t["name"], key)
			t["width"] = positiveOr(t["width"], defaultTemplateWidth)
			t["height"] = positiveOr(t["height"], defaultTemplateHeight)
			t["elements"] = elementList(key, t["elements"])
		}
	}

	nodes, _ := tree[keyNodes].(map[string]any)
	exists := func(id string) bool {
		_, ok := nodes[id].(map[string]any)
		return id != "" && ok
	}
	for _, raw := range elementsPath.Get(tree) {
		if e, ok := raw.(map[string]any); ok {
			normalizeElement(e, exists)
		}
	}
}

// elementList keeps the object entries of an element list and gives each a
// unique id. Generated ids derive from the template key and position so the
// same input always migrates to the same output.
func elementList(key string, v any) []any {
	items, _ := v.([]any)
	out := make([]any, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if e, ok := item.(map[string]any); ok {
			if id, _ := e["id"].(string); id != "" {
				seen[id] = true
			}
		}
	}
	claimed := make(map[string]bool, len(items))
	for i, item := range items {
		e, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, _ := e["id"].(string)
		if id == "" || claimed[id] {
			id = fmt.Sprintf("%s-el-%d", key, i)
			for n := 1; seen[id]; n++ {
				id = fmt.Sprintf("%s-el-%d-%d", key, i, n)
			}
			seen[id] = true
			e["id"] = id
		}
		claimed[id] = true
		out = append(out, e)
	}
	return out
}

func normalizeElement(e map[string]any, exists func(string) bool) {
	typ := api.ElementType(stringOr(e["type"], ""))
	if !typ.Valid() {
		typ = api.ElementRectangle
	}
	e["type"] = string(typ)

	for _, k := range []string{"x", "y", "w", "h", "rotation", "strokeWidth", "fontSize"} {
		e[k] = numberOr(e[k], 0)
	}
	e["opacity"] = math.Min(math.Max(numberOr(e["opacity"], 1), 0), 1)
	e["zIndex"] = int64(numberOr(e["zIndex"], 0))
	for _, k := range []string{"fill", "stroke", "text", "fontFamily", "color", "align"} {
		if _, ok := e[k].(string); !ok {
			delete(e, k)
		}
	}

	if typ == api.ElementGrid {
		gc, ok := e["gridConfig"].(map[string]any)
		if !ok {
			gc = map[string]any{}
		}
		normalizeGrid(gc, exists)
		e["gridConfig"] = gc
	} else {
		delete(e, "gridConfig")
	}

	target := api.LinkTarget(stringOr(e["linkTarget"], ""))
	switch target {
	case api.LinkNone, api.LinkParent, api.LinkSpecificNode:
	default:
		target = api.LinkNone
	}
	value, _ := e["linkValue"].(string)
	if target == api.LinkSpecificNode && !exists(value) {
		target = api.LinkNone
	}
	e["linkTarget"] = string(target)
	if target == api.LinkSpecificNode {
		e["linkValue"] = value
	} else {
		delete(e, "linkValue")
	}
}

func normalizeGrid(gc map[string]any, exists func(string) bool) {
	source := api.SourceType(stringOr(gc["sourceType"], ""))
	id, _ := gc["sourceId"].(string)
	if source != api.SourceSpecific || !exists(id) {
		source = api.SourceCurrent
	}
	gc["sourceType"] = string(source)
	if source == api.SourceSpecific {
		gc["sourceId"] = id
	} else {
		delete(gc, "sourceId")
	}

	columns := int64(numberOr(gc["columns"], defaultGridColumns))
	if columns < 1 {
		columns = defaultGridColumns
	}
	gc["columns"] = columns
	gap := numberOr(gc["gap"], defaultGridGap)
	if gap < 0 {
		gap = defaultGridGap
	}
	gc["gap"] = gap
	gc["displayField"] = nonEmptyOr(gc["displayField"], defaultDisplayField)
}

// number reads a JSON number from any of the forms parsers produce.
func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int64:
		f = float64(n)
	case int:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		var err error
		if f, err = n.Float64(); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func numberOr(v any, def float64) float64 {
	if f, ok := number(v); ok {
		return f
	}
	return def
}

func positiveOr(v any, def float64) float64 {
	if f, ok := number(v); ok && f > 0 {
		return f
	}
	return def
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

func nonEmptyOr(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

// stringList keeps the string entries of a list. Anything but a list
// becomes empty.
func stringList(v any) []any {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case []string:
		for _, s := range t {
			items = append(items, s)
		}
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func dropEmpty(m map[string]any, key string) {
	if s, ok := m[key].(string); !ok || s == "" {
		delete(m, key)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
