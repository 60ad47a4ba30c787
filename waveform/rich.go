package waveform

import (
	"math"

	"github.com/langtech/transcriber/datamodel"
	"github.com/langtech/transcriber/event"
)

const (
	PrimaryColor   = "rgba(255,0,0,0.4)"
	SecondaryColor = "rgba(255,0,0,0.05)"
	DefaultColor   = "red"

	// EdgeTolerance is how close to a selection edge, in pixels, a press
	// grabs the edge instead of starting a new selection.
	EdgeTolerance = 2
	// scrollStep is the fraction of the window scrolled per move while a
	// drag is outside the canvas.
	scrollStep = 0.02
)

// RegionID identifies a region within one Rich waveform.
type RegionID int

// Region is a time span drawn over the waveform. A region linked to a
// table row has RID set.
type Region struct {
	ID     RegionID
	Pos    float64
	Dur    float64
	Color  string
	RID    datamodel.RowID
	Hidden bool
}

// Linked reports whether the region belongs to a table row.
func (r Region) Linked() bool { return r.RID != datamodel.NoRow }

// Geometry is where a region lands on the canvas.
type Geometry struct {
	Visible   bool
	Left      int
	Width     int
	Height    int
	Color     string
	Bordered  bool
	OpenLeft  bool
	OpenRight bool
}

// DragState is the state of the mouse interaction.
type DragState int

const (
	Idle DragState = iota
	Creating
	Resizing
	Dragging
)

func (s DragState) String() string {
	return [...]string{"idle", "creating", "resizing", "dragging"}[s]
}

// Rich is a waveform with regions over it: a cursor, a selection and any
// number of caller regions. It talks to other views through a bus.
type Rich struct {
	*Waveform
	bus *event.Bus

	regions    map[RegionID]*Region
	nextRegion RegionID
	cursor     RegionID
	selection  RegionID

	state   DragState
	grabbed bool
	anchor  float64
}

// NewRich wraps w. With a non-nil bus the view subscribes to cursor,
// region, window and selection events.
func NewRich(w *Waveform, bus *event.Bus) *Rich {
	r := &Rich{Waveform: w, bus: bus, regions: make(map[RegionID]*Region)}
	r.cursor = r.AddRegion(0, 0, "")
	r.selection = r.AddRegion(0, 0, "")
	r.regions[r.selection].Hidden = true
	if bus != nil {
		bus.SubscribeAll(r,
			event.KindCursorMoved,
			event.KindRegionChanged,
			event.KindWindowChanged,
			event.KindSegmentSelected,
		)
	}
	return r
}

// Close unsubscribes the view from the bus.
func (r *Rich) Close() {
	if r.bus != nil {
		r.bus.UnsubscribeAll(r)
	}
}

// AddRegion adds a region and returns its id. An empty color means red.
func (r *Rich) AddRegion(t, dur float64, color string) RegionID {
	if dur < 0 {
		dur = 0
	}
	if color == "" {
		color = DefaultColor
	}
	id := r.nextRegion
	r.nextRegion++
	r.regions[id] = &Region{ID: id, Pos: t, Dur: dur, Color: color, RID: datamodel.NoRow}
	return id
}

// RemoveRegion drops a caller region. The cursor and selection stay.
func (r *Rich) RemoveRegion(id RegionID) {
	if id == r.cursor || id == r.selection {
		return
	}
	delete(r.regions, id)
}

// UpdateRegion moves and resizes a region.
func (r *Rich) UpdateRegion(id RegionID, t, dur float64) {
	if reg, ok := r.regions[id]; ok {
		reg.Pos = t
		reg.Dur = math.Max(dur, 0)
	}
}

// MoveRegion changes only the start of a region.
func (r *Rich) MoveRegion(id RegionID, t float64) {
	if reg, ok := r.regions[id]; ok {
		reg.Pos = t
	}
}

func (r *Rich) SetRegionColor(id RegionID, color string) {
	if reg, ok := r.regions[id]; ok {
		reg.Color = color
	}
}

func (r *Rich) LinkRegion(id RegionID, rid datamodel.RowID) {
	if reg, ok := r.regions[id]; ok {
		reg.RID = rid
	}
}

func (r *Rich) UnlinkRegion(id RegionID) {
	if reg, ok := r.regions[id]; ok {
		reg.RID = datamodel.NoRow
	}
}

// Region returns a copy of a region.
func (r *Rich) Region(id RegionID) (Region, bool) {
	reg, ok := r.regions[id]
	if !ok {
		return Region{}, false
	}
	return *reg, true
}

func (r *Rich) Cursor() Region        { return *r.regions[r.cursor] }
func (r *Rich) Selection() Region     { return *r.regions[r.selection] }
func (r *Rich) CursorID() RegionID    { return r.cursor }
func (r *Rich) SelectionID() RegionID { return r.selection }
func (r *Rich) State() DragState      { return r.state }

// Geometry places a region on the canvas for the current window.
func (r *Rich) Geometry(id RegionID) Geometry {
	reg, ok := r.regions[id]
	if !ok || reg.Hidden || !r.Ready() {
		return Geometry{}
	}
	x0 := r.T2P(reg.Pos)
	y0 := r.T2P(reg.Pos + reg.Dur)
	if y0 < 0 || x0 >= r.width {
		return Geometry{}
	}
	x, y := max(x0, 0), min(y0, r.width-1)
	g := Geometry{
		Visible: true,
		Left:    x,
		Width:   y - x + 1,
		Height:  r.height,
		Color:   reg.Color,
	}
	if reg.Linked() {
		g.Bordered = true
		g.OpenLeft = x0 < 0
		g.OpenRight = y0 >= r.width
	}
	return g
}

// Display shows a window and announces a change of duration on the bus.
func (r *Rich) Display(t, dur float64) {
	old := r.WindowDuration()
	r.Waveform.Display(t, dur)
	if d := r.WindowDuration(); r.bus != nil && d != old {
		r.bus.Publish(event.WindowChanged{Origin: r.origin(), Beg: r.WindowStart(), Dur: d})
	}
}

// MoveWindow is Waveform.MoveWindow routed through Rich.Display.
func (r *Rich) MoveWindow(t float64, anchor Anchor) {
	if !r.Ready() && anchor != AnchorBeg {
		return
	}
	switch anchor {
	case AnchorMid:
		t -= r.WindowDuration() / 2
	case AnchorEnd:
		t -= r.WindowDuration()
	}
	r.Display(t, 0)
}

func (r *Rich) origin() event.Origin { return event.Origin{From: r} }

func (r *Rich) HandleEvent(e event.Event) {
	switch e := e.(type) {
	case event.CursorMoved:
		r.MoveRegion(r.cursor, e.Time)
	case event.RegionChanged:
		r.UnlinkRegion(r.selection)
		r.updateSelection(e.Waveform == r.id, e.Beg, e.Dur)
	case event.WindowChanged:
		r.Display(e.Beg, e.Dur)
	case event.SegmentSelected:
		own := e.Waveform == r.id
		if own {
			r.LinkRegion(r.selection, e.RID)
		} else {
			r.UnlinkRegion(r.selection)
		}
		if r.Ready() {
			wbeg, wdur := r.WindowStart(), r.WindowDuration()
			if e.Beg+e.Dur < wbeg || e.Beg > wbeg+wdur {
				r.Display(math.Max(e.Beg+e.Dur/2-wdur/2, 0), 0)
			}
		}
		r.updateSelection(own, e.Beg, e.Dur)
	}
}

func (r *Rich) updateSelection(primary bool, beg, dur float64) {
	sel := r.regions[r.selection]
	sel.Hidden = false
	sel.Pos, sel.Dur = beg, math.Max(dur, 0)
	sel.Color = SecondaryColor
	if primary {
		sel.Color = PrimaryColor
	}
}

// MouseDown starts a drag at canvas column x. A press within
// EdgeTolerance of a selection edge grabs that edge and anchors the drag
// at the opposite one; anywhere else starts a new selection.
func (r *Rich) MouseDown(x int) {
	if !r.Ready() {
		return
	}
	t := r.P2T(x) + r.WindowStart()
	if t < 0 || t > r.Length() {
		return
	}
	if edge, ok := r.grabEdge(x); ok {
		r.anchor = edge
		r.grabbed = true
		r.state = Resizing
		return
	}
	r.UnlinkRegion(r.selection)
	r.updateSelection(true, t, 0)
	if r.bus != nil {
		r.bus.Publish(event.RegionChanged{Origin: r.origin(), Beg: t, Dur: 0, Waveform: r.id})
	}
	r.anchor = t
	r.grabbed = false
	r.state = Creating
}

// grabEdge returns the anchor for a press at x on a selection edge.
func (r *Rich) grabEdge(x int) (float64, bool) {
	sel := r.regions[r.selection]
	if sel.Dur <= 0 {
		return 0, false
	}
	g := r.Geometry(r.selection)
	if !g.Visible || x < g.Left || x >= g.Left+g.Width {
		return 0, false
	}
	switch {
	case x-g.Left < EdgeTolerance:
		return sel.Pos + sel.Dur, true
	case x >= g.Left+g.Width-EdgeTolerance:
		return sel.Pos, true
	}
	return 0, false
}

// MouseMove tracks the pointer at canvas column x, which may lie outside
// the canvas. While a button is held the selection follows the pointer
// and the window scrolls when the pointer is past either edge.
func (r *Rich) MouseMove(x int) {
	if !r.Ready() {
		return
	}
	length := r.Length()
	wbeg, wdur := r.WindowStart(), r.WindowDuration()
	t := math.Min(math.Max(wbeg+r.P2T(x), 0), length)
	t1, wbeg1 := t, wbeg

	switch {
	case x < 0:
		if wbeg > 0 {
			t = wbeg
			t1 = math.Max(wbeg-wdur*scrollStep, 0)
			wbeg1 = t1
		} else {
			t, t1 = 0, 0
		}
	case x >= r.width:
		if wbeg+wdur < length {
			t = wbeg + wdur
			t1 = math.Min(wbeg+wdur*(1+scrollStep), length)
			wbeg1 = t1 - wdur
		} else {
			t, t1 = length, length
		}
	}

	if r.state != Idle {
		r.state = Dragging
		if wbeg1 != wbeg {
			r.Display(wbeg1, 0)
			if r.bus != nil {
				r.bus.Publish(event.WindowChanged{Origin: r.origin(), Beg: r.WindowStart()})
			}
			t = t1
		}
		beg := math.Min(t, r.anchor)
		dur := math.Max(t, r.anchor) - beg
		r.updateSelection(true, beg, dur)
		if r.bus != nil {
			r.bus.Publish(event.RegionChanged{Origin: r.origin(), Beg: beg, Dur: dur, Waveform: r.id})
		}
	}

	r.MoveRegion(r.cursor, t)
	if r.bus != nil {
		r.bus.Publish(event.CursorMoved{Origin: r.origin(), Time: t})
	}
}

// MouseUp ends a drag. Releasing a grabbed edge of a linked selection
// asks for the row to take the new span.
func (r *Rich) MouseUp() {
	sel := r.regions[r.selection]
	if r.grabbed && sel.Linked() && r.bus != nil {
		r.bus.Publish(event.RowUpdated{
			Origin: r.origin(),
			RID:    sel.RID,
			Update: map[string]any{"offset": sel.Pos, "length": sel.Dur},
		})
	}
	r.grabbed = false
	r.state = Idle
}
