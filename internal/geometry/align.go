// Package geometry repositions template elements for alignment and
// distribution commands. All functions are pure.
package geometry

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/agentic-research/folio/api"
)

var (
	// ErrInsufficientSelection is returned when fewer than two elements are
	// passed. It is informational: the elements come back unchanged.
	ErrInsufficientSelection = errors.New("at least two elements must be selected")

	// ErrInvalidOp indicates an unknown alignment operation.
	ErrInvalidOp = errors.New("unknown alignment operation")
)

// Op is an alignment or distribution operation.
type Op string

const (
	AlignLeft    Op = "left"
	AlignRight   Op = "right"
	AlignCenterH Op = "center-h"
	AlignTop     Op = "top"
	AlignBottom  Op = "bottom"
	AlignMiddleV Op = "middle-v"
	DistributeH  Op = "distribute-h"
	DistributeV  Op = "distribute-v"
)

const minAlignableLength = 2

// Ops lists every supported operation.
func Ops() []Op {
	return []Op{AlignLeft, AlignRight, AlignCenterH, AlignTop, AlignBottom, AlignMiddleV, DistributeH, DistributeV}
}

// ParseOp converts a string to an Op.
func ParseOp(s string) (Op, error) {
	for _, op := range Ops() {
		if string(op) == s {
			return op, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOp, s)
}

// axis abstracts over the horizontal and vertical coordinate of an element.
type axis struct {
	pos  func(e *api.Element) *float64
	size func(e *api.Element) float64
}

var (
	horizontal = axis{
		pos:  func(e *api.Element) *float64 { return &e.X },
		size: func(e *api.Element) float64 { return e.W },
	}
	vertical = axis{
		pos:  func(e *api.Element) *float64 { return &e.Y },
		size: func(e *api.Element) float64 { return e.H },
	}
)

// Align returns repositioned copies of elements in their input order.
// The input slice is not modified. With fewer than two elements the copies
// are returned unchanged together with ErrInsufficientSelection.
func Align(elements []api.Element, op Op) ([]api.Element, error) {
	out := make([]api.Element, len(elements))
	for i, e := range elements {
		out[i] = e.Clone()
	}
	if len(out) < minAlignableLength {
		return out, ErrInsufficientSelection
	}

	switch op {
	case AlignLeft:
		alignStart(out, horizontal)
	case AlignTop:
		alignStart(out, vertical)
	case AlignRight:
		alignEnd(out, horizontal)
	case AlignBottom:
		alignEnd(out, vertical)
	case AlignCenterH:
		alignCenter(out, horizontal)
	case AlignMiddleV:
		alignCenter(out, vertical)
	case DistributeH:
		distribute(out, horizontal)
	case DistributeV:
		distribute(out, vertical)
	default:
		return out, fmt.Errorf("%w: %q", ErrInvalidOp, op)
	}
	return out, nil
}

// bounds returns the minimum leading edge and maximum trailing edge.
func bounds(els []api.Element, a axis) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for i := range els {
		p := *a.pos(&els[i])
		lo = math.Min(lo, p)
		hi = math.Max(hi, p+a.size(&els[i]))
	}
	return lo, hi
}

func alignStart(els []api.Element, a axis) {
	lo, _ := bounds(els, a)
	for i := range els {
		*a.pos(&els[i]) = lo
	}
}

func alignEnd(els []api.Element, a axis) {
	_, hi := bounds(els, a)
	for i := range els {
		*a.pos(&els[i]) = hi - a.size(&els[i])
	}
}

func alignCenter(els []api.Element, a axis) {
	lo, hi := bounds(els, a)
	mid := (lo + hi) / 2
	for i := range els {
		*a.pos(&els[i]) = mid - a.size(&els[i])/2
	}
}

// distribute spaces elements evenly between the spatially first and last
// element, which stay where they are.
func distribute(els []api.Element, a axis) {
	n := len(els)
	if n <= minAlignableLength {
		return
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return *a.pos(&els[order[i]]) < *a.pos(&els[order[j]])
	})

	first, last := &els[order[0]], &els[order[n-1]]
	span := *a.pos(last) + a.size(last) - *a.pos(first)
	var total float64
	for i := range els {
		total += a.size(&els[i])
	}
	gap := (span - total) / float64(n-1)

	cursor := *a.pos(first) + a.size(first) + gap
	for _, idx := range order[1 : n-1] {
		e := &els[idx]
		*a.pos(e) = cursor
		cursor += a.size(e) + gap
	}
}
