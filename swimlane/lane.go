// Package swimlane lays out table segments as chips on horizontal lanes,
// one lane per speaker or respeaking track.
package swimlane

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/langtech/transcriber/datamodel"
	"github.com/langtech/transcriber/event"
	"github.com/langtech/transcriber/interval"
	"github.com/langtech/transcriber/signal"
)

// Filter selects the rows a lane shows.
type Filter func(datamodel.Row) bool

// Config holds what every lane of a session shares.
type Config struct {
	Width  int
	Policy interval.Policy
	Log    logrus.FieldLogger
}

// Chip is a segment laid out on a lane. OpenLeft and OpenRight are set
// when the window cuts the segment on that side.
type Chip struct {
	RID       datamodel.RowID
	Left      int
	Width     int
	OpenLeft  bool
	OpenRight bool
	Selected  bool
}

// Selection is emitted when a chip is clicked.
type Selection struct {
	Lane   int
	RID    datamodel.RowID
	Offset float64
	Length float64
}

// segment is the payload kept in the lane index.
type segment struct {
	mapped   bool
	mapOff   float64
	mapLen   float64
	waveform int
}

// Lane shows the rows of a table that pass its filter.
type Lane struct {
	id  int
	bus *event.Bus
	cfg Config

	table  *datamodel.Table
	filter Filter
	conns  []signal.Conn
	segs   *interval.Index[datamodel.RowID]

	beg, dur float64
	chips    []Chip
	selected datamodel.RowID
	revision int

	// Selected fires when a chip is clicked.
	Selected signal.Signal[Selection]
}

// NewLane returns an empty lane. With a bus it follows window and
// selection events.
func NewLane(id int, bus *event.Bus, cfg Config) *Lane {
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	l := &Lane{
		id:       id,
		bus:      bus,
		cfg:      cfg,
		segs:     interval.New[datamodel.RowID](cfg.Policy),
		selected: datamodel.NoRow,
	}
	if bus != nil {
		bus.SubscribeAll(l, event.KindWindowChanged, event.KindSegmentSelected, event.KindSwimLaneRegion)
	}
	return l
}

func (l *Lane) ID() int    { return l.id }
func (l *Lane) Width() int { return l.cfg.Width }

// Window returns the displayed window.
func (l *Lane) Window() (beg, dur float64) { return l.beg, l.dur }

// Revision counts renders. It only moves when the lane's own content or
// window changed.
func (l *Lane) Revision() int { return l.revision }

// Len returns the number of segments in the lane.
func (l *Lane) Len() int { return l.segs.Len() }

// Chips returns the chips of the last render in time order.
func (l *Lane) Chips() []Chip { return append([]Chip(nil), l.chips...) }

// SetTable rebuilds the lane from the rows of table passing filter and
// follows the table's row notifications.
func (l *Lane) SetTable(table *datamodel.Table, filter Filter) {
	l.setTable(table, filter, true)
}

// setTable loads rows; with connect unset the caller forwards row
// notifications itself.
func (l *Lane) setTable(table *datamodel.Table, filter Filter, connect bool) {
	l.disconnect()
	l.table, l.filter = table, filter
	l.segs.Clear()
	if table != nil {
		table.ForEach(func(r datamodel.Row) { l.insert(r) }, l.accepts)
		if connect {
			l.conns = []signal.Conn{
				table.RowAdded.Connect(l.rowAdded),
				table.RowUpdated.Connect(l.rowUpdated),
				table.RowDeleted.Connect(l.rowDeleted),
			}
		}
	}
	l.render()
}

func (l *Lane) disconnect() {
	if l.table == nil || len(l.conns) == 0 {
		return
	}
	l.table.RowAdded.Disconnect(l.conns[0])
	l.table.RowUpdated.Disconnect(l.conns[1])
	l.table.RowDeleted.Disconnect(l.conns[2])
	l.conns = nil
}

func (l *Lane) accepts(r datamodel.Row) bool {
	return l.filter == nil || l.filter(r)
}

func (l *Lane) insert(r datamodel.Row) bool {
	off, _ := r.Float("offset")
	length, _ := r.Float("length")
	seg := segment{waveform: event.NoWaveform}
	if wf, ok := r.Int("waveform"); ok {
		seg.waveform = wf
	}
	if mo, ok := r.Float("mapoff"); ok {
		seg.mapped = true
		seg.mapOff = mo
		seg.mapLen, _ = r.Float("maplen")
	}
	if !l.segs.Insert(r.ID(), off, length, seg) {
		l.cfg.Log.WithFields(logrus.Fields{
			"lane":   l.id,
			"rid":    r.ID().String(),
			"offset": off,
			"length": length,
		}).Warn("segment rejected by lane")
		return false
	}
	return true
}

func (l *Lane) rowAdded(a datamodel.Added) {
	r := l.table.Row(a.ID)
	if l.accepts(r) && l.insert(r) {
		l.render()
	}
}

func (l *Lane) rowUpdated(u datamodel.Updated) {
	r := l.table.Row(u.ID)
	old, had := l.segs.Get(u.ID)
	want := l.accepts(r)
	if !had && !want {
		return
	}
	if had {
		l.segs.Remove(u.ID)
	}
	if want && !l.insert(r) && had {
		l.segs.Insert(old.ID, old.Start, old.Length, old.Payload)
	}
	if !want && l.selected == u.ID {
		l.selected = datamodel.NoRow
	}
	l.render()
}

func (l *Lane) rowDeleted(d datamodel.Deleted) {
	if !l.segs.Remove(d.ID) {
		return
	}
	if l.selected == d.ID {
		l.selected = datamodel.NoRow
	}
	l.render()
}

// Display shows the window [beg, beg+dur). A non-positive dur keeps the
// current duration.
func (l *Lane) Display(beg, dur float64) {
	l.beg = beg
	if dur > 0 {
		l.dur = dur
	}
	l.render()
}

// SetWidth changes the pixel width and re-renders.
func (l *Lane) SetWidth(w int) {
	l.cfg.Width = w
	l.render()
}

func (l *Lane) render() {
	l.revision++
	l.chips = l.chips[:0]
	width := float64(l.cfg.Width)
	if width <= 0 || l.dur <= 0 {
		return
	}
	end := l.beg + l.dur
	ratio := width / l.dur
	l.segs.QueryRange(l.beg, end, func(iv interval.Interval[datamodel.RowID]) bool {
		a := math.Max(l.beg, iv.Start)
		b := math.Min(end, iv.End())
		left := int(math.Floor((a-l.beg)*ratio + 0.5))
		right := int(math.Floor((b-l.beg)*ratio + 0.5))
		l.chips = append(l.chips, Chip{
			RID:       iv.ID,
			Left:      left,
			Width:     right - left,
			OpenLeft:  l.beg > iv.Start,
			OpenRight: end < iv.End(),
			Selected:  iv.ID == l.selected,
		})
		return true
	})
}

// SelectedRow returns the selected row, if any.
func (l *Lane) SelectedRow() (datamodel.RowID, bool) {
	return l.selected, l.selected != datamodel.NoRow
}

// Select highlights the chip of rid without publishing anything. It
// reports whether the lane holds rid.
func (l *Lane) Select(rid datamodel.RowID) bool {
	if _, ok := l.segs.Get(rid); !ok {
		l.ClearSelection()
		return false
	}
	l.setSelected(rid)
	return true
}

// ClearSelection removes the highlight without publishing anything.
func (l *Lane) ClearSelection() { l.setSelected(datamodel.NoRow) }

func (l *Lane) setSelected(rid datamodel.RowID) {
	l.selected = rid
	for i := range l.chips {
		l.chips[i].Selected = l.chips[i].RID == rid
	}
}

// Click selects the chip under pixel x and announces it: first as a lane
// region, then as a segment selection when the row is on a waveform or as
// a plain region otherwise.
func (l *Lane) Click(x int) bool {
	var hit *Chip
	for i := range l.chips {
		c := &l.chips[i]
		if x >= c.Left && x < c.Left+c.Width {
			hit = c
			break
		}
	}
	if hit == nil {
		return false
	}
	iv, ok := l.segs.Get(hit.RID)
	if !ok {
		return false
	}
	seg := iv.Payload.(segment)
	l.setSelected(iv.ID)
	l.Selected.Emit(Selection{Lane: l.id, RID: iv.ID, Offset: iv.Start, Length: iv.Length})

	if l.bus == nil {
		return true
	}
	region := event.Span{Offset: iv.Start, Length: iv.Length}
	mapped := region
	if seg.mapped {
		mapped = event.Span{Offset: seg.mapOff, Length: seg.mapLen}
	}
	from := event.Origin{From: l}
	l.bus.Publish(event.SwimLaneRegion{Origin: from, Lane: l.id, Region: region, Map: mapped, RID: iv.ID})
	if seg.waveform != event.NoWaveform {
		l.bus.Publish(event.SegmentSelected{Origin: from, Beg: iv.Start, Dur: iv.Length, Waveform: seg.waveform, RID: iv.ID})
	} else {
		l.bus.Publish(event.RegionChanged{Origin: from, Beg: iv.Start, Dur: iv.Length, Waveform: event.NoWaveform})
	}
	return true
}

func (l *Lane) HandleEvent(e event.Event) {
	switch e := e.(type) {
	case event.WindowChanged:
		l.Display(e.Beg, e.Dur)
	case event.SegmentSelected:
		l.Select(e.RID)
	case event.SwimLaneRegion:
		if e.Lane != l.id {
			l.ClearSelection()
		}
	}
}

// TearDown detaches the lane from its table and bus.
func (l *Lane) TearDown() {
	l.disconnect()
	if l.bus != nil {
		l.bus.UnsubscribeAll(l)
	}
}
