package viewport

import (
	"math"

	"dealgraph/domain/core/aggregates"
	"dealgraph/domain/core/entities"
	"dealgraph/domain/core/valueobjects"
)

// clickSlop is the screen-space movement budget within which a
// down/up pair still counts as a click rather than a drag.
const clickSlop = 4.0

// SelectionKind discriminates what a selection refers to
type SelectionKind int

const (
	SelectNone SelectionKind = iota
	SelectCompany
	SelectDeal
)

// Selection identifies the entity the user clicked, consumed by the
// external detail panel.
type Selection struct {
	Kind      SelectionKind
	CompanyID valueobjects.CompanyID
	DealID    valueobjects.DealID
}

// Events receives the interaction layer's outbound dispatches. These
// are presentational signals only; handlers must not write back into
// the data model.
type Events struct {
	// OnSelect fires on click with the hit entity, or a SelectNone
	// selection for a background click
	OnSelect func(Selection)
	// OnHighlight fires on hover changes; nil clears the highlight
	OnHighlight func(*valueobjects.CompanyID)
	// OnDrag fires when a drag starts or ends, so the engine loop can
	// reheat the solver
	OnDrag func(started bool)
}

// Pointer is the drag/click/hover state machine. It owns the pinned
// flag of whichever node is being dragged and nothing else.
type Pointer struct {
	vp     *Viewport
	events Events

	dragNode *entities.Company
	panning  bool
	down     bool
	downX    float64
	downY    float64
	lastX    float64
	lastY    float64
	moved    bool

	hovered valueobjects.CompanyID
}

// NewPointer creates a pointer controller over the given viewport
func NewPointer(vp *Viewport, events Events) *Pointer {
	return &Pointer{vp: vp, events: events}
}

// Dragging reports whether a node drag is in progress
func (p *Pointer) Dragging() bool {
	return p.dragNode != nil
}

// Down begins a gesture at a screen position. Over a node it starts a
// drag (pinning the node); over the background it starts a pan.
func (p *Pointer) Down(snap *aggregates.GraphSnapshot, sx, sy float64) {
	p.down = true
	p.moved = false
	p.downX, p.downY = sx, sy
	p.lastX, p.lastY = sx, sy

	wx, wy := p.vp.Transform().ToWorld(sx, sy)
	if node := hitNode(snap, wx, wy); node != nil {
		p.dragNode = node
		node.Pin()
		if p.events.OnDrag != nil {
			p.events.OnDrag(true)
		}
		return
	}
	p.panning = true
}

// Move updates an active gesture or, with no button down, the hover
// highlight.
func (p *Pointer) Move(snap *aggregates.GraphSnapshot, sx, sy float64) {
	if !p.down {
		p.updateHover(snap, sx, sy)
		return
	}

	if math.Hypot(sx-p.downX, sy-p.downY) > clickSlop {
		p.moved = true
	}

	dx := sx - p.lastX
	dy := sy - p.lastY
	p.lastX, p.lastY = sx, sy

	switch {
	case p.dragNode != nil:
		// Position follows the pointer directly, bypassing integration
		wx, wy := p.vp.Transform().ToWorld(sx, sy)
		_ = p.dragNode.MoveTo(wx, wy)
	case p.panning:
		p.vp.Pan(dx, dy)
	}
}

// Up ends the gesture. A gesture that never left the slop radius is a
// click and dispatches a selection.
func (p *Pointer) Up(snap *aggregates.GraphSnapshot, sx, sy float64) {
	wasDrag := p.dragNode
	clicked := p.down && !p.moved

	if p.dragNode != nil {
		// Back to the solver with zero velocity
		p.dragNode.Unpin()
		p.dragNode = nil
		if p.events.OnDrag != nil {
			p.events.OnDrag(false)
		}
	}
	p.panning = false
	p.down = false

	if !clicked || p.events.OnSelect == nil {
		return
	}

	if wasDrag != nil {
		p.events.OnSelect(Selection{Kind: SelectCompany, CompanyID: wasDrag.ID()})
		return
	}

	wx, wy := p.vp.Transform().ToWorld(sx, sy)
	if node := hitNode(snap, wx, wy); node != nil {
		p.events.OnSelect(Selection{Kind: SelectCompany, CompanyID: node.ID()})
		return
	}
	if edge := hitEdge(snap, wx, wy, p.vp.Transform().Scale); edge != nil {
		p.events.OnSelect(Selection{Kind: SelectDeal, DealID: edge.ID()})
		return
	}
	p.events.OnSelect(Selection{Kind: SelectNone})
}

// Cancel aborts any in-flight gesture, releasing a dragged node
func (p *Pointer) Cancel() {
	if p.dragNode != nil {
		p.dragNode.Unpin()
		p.dragNode = nil
		if p.events.OnDrag != nil {
			p.events.OnDrag(false)
		}
	}
	p.panning = false
	p.down = false
	p.moved = false
}

func (p *Pointer) updateHover(snap *aggregates.GraphSnapshot, sx, sy float64) {
	wx, wy := p.vp.Transform().ToWorld(sx, sy)
	node := hitNode(snap, wx, wy)

	if node == nil {
		if !p.hovered.IsZero() {
			p.hovered = valueobjects.CompanyID{}
			if p.events.OnHighlight != nil {
				p.events.OnHighlight(nil)
			}
		}
		return
	}

	id := node.ID()
	if id.Equals(p.hovered) {
		return
	}
	p.hovered = id
	if p.events.OnHighlight != nil {
		p.events.OnHighlight(&id)
	}
}
