package swimlane

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/langtech/transcriber/datamodel"
	"github.com/langtech/transcriber/event"
	"github.com/langtech/transcriber/signal"
)

// Stack keeps one lane per speaker among the rows that sit on a waveform.
// Lanes appear when a row with a new speaker shows up. The stack owns the
// table subscription and forwards row notifications to its lanes.
type Stack struct {
	bus *event.Bus
	cfg Config

	table  *datamodel.Table
	filter Filter
	conns  []signal.Conn

	lanes  map[string]*Lane
	nextID int
	beg    float64
	dur    float64

	// SegmentSelected fires when a chip on any lane is clicked.
	SegmentSelected signal.Signal[Selection]
}

func NewStack(bus *event.Bus, cfg Config) *Stack {
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	s := &Stack{bus: bus, cfg: cfg, lanes: make(map[string]*Lane)}
	if bus != nil {
		bus.Subscribe(event.KindWindowChanged, s)
	}
	return s
}

// SetTable drops the current lanes and builds new ones from table. Only
// rows passing filter (nil passes all) are considered.
func (s *Stack) SetTable(table *datamodel.Table, filter Filter) {
	s.disconnect()
	for k, l := range s.lanes {
		l.TearDown()
		delete(s.lanes, k)
	}
	s.table, s.filter = table, filter
	if table == nil {
		return
	}
	table.ForEach(func(r datamodel.Row) {
		if sp := r.String("speaker"); s.lanes[sp] == nil {
			s.newLane(sp)
		}
	}, s.onWaveform)
	s.conns = []signal.Conn{
		table.RowAdded.Connect(s.rowAdded),
		table.RowUpdated.Connect(s.rowUpdated),
		table.RowDeleted.Connect(s.rowDeleted),
	}
}

func (s *Stack) disconnect() {
	if s.table == nil || len(s.conns) == 0 {
		return
	}
	s.table.RowAdded.Disconnect(s.conns[0])
	s.table.RowUpdated.Disconnect(s.conns[1])
	s.table.RowDeleted.Disconnect(s.conns[2])
	s.conns = nil
}

func (s *Stack) onWaveform(r datamodel.Row) bool {
	if s.filter != nil && !s.filter(r) {
		return false
	}
	return r.Value("waveform") != nil
}

func (s *Stack) newLane(speaker string) *Lane {
	l := NewLane(s.nextID, s.bus, s.cfg)
	s.nextID++
	s.lanes[speaker] = l
	l.Selected.Connect(s.SegmentSelected.Emit)
	l.beg, l.dur = s.beg, s.dur
	l.setTable(s.table, func(r datamodel.Row) bool {
		return s.onWaveform(r) && r.String("speaker") == speaker
	}, false)
	s.cfg.Log.WithFields(logrus.Fields{"lane": l.id, "speaker": speaker}).Debug("lane created")
	return l
}

// ensureLane creates the lane for the row's speaker if needed and returns
// the new lane, or nil.
func (s *Stack) ensureLane(id datamodel.RowID) *Lane {
	r := s.table.Row(id)
	if !s.onWaveform(r) {
		return nil
	}
	sp := r.String("speaker")
	if s.lanes[sp] != nil {
		return nil
	}
	return s.newLane(sp)
}

func (s *Stack) rowAdded(a datamodel.Added) {
	fresh := s.ensureLane(a.ID)
	for _, l := range s.sorted() {
		if l != fresh {
			l.rowAdded(a)
		}
	}
}

func (s *Stack) rowUpdated(u datamodel.Updated) {
	fresh := s.ensureLane(u.ID)
	for _, l := range s.sorted() {
		if l != fresh {
			l.rowUpdated(u)
		}
	}
}

func (s *Stack) rowDeleted(d datamodel.Deleted) {
	for _, l := range s.sorted() {
		l.rowDeleted(d)
	}
}

// Lane returns the lane of a speaker, or nil.
func (s *Stack) Lane(speaker string) *Lane { return s.lanes[speaker] }

// Speakers returns the speakers with a lane, sorted.
func (s *Stack) Speakers() []string {
	out := make([]string, 0, len(s.lanes))
	for sp := range s.lanes {
		out = append(out, sp)
	}
	sort.Strings(out)
	return out
}

// Lanes returns the lanes ordered by speaker.
func (s *Stack) Lanes() []*Lane { return s.sorted() }

func (s *Stack) sorted() []*Lane {
	sps := s.Speakers()
	out := make([]*Lane, len(sps))
	for i, sp := range sps {
		out[i] = s.lanes[sp]
	}
	return out
}

// SetWidth resizes every lane.
func (s *Stack) SetWidth(w int) {
	s.cfg.Width = w
	for _, l := range s.sorted() {
		l.SetWidth(w)
	}
}

// Display shows the window on every lane. Lanes subscribed to the bus
// also follow window events on their own.
func (s *Stack) Display(beg, dur float64) {
	s.track(beg, dur)
	for _, l := range s.sorted() {
		l.Display(beg, dur)
	}
}

func (s *Stack) track(beg, dur float64) {
	s.beg = beg
	if dur > 0 {
		s.dur = dur
	}
}

func (s *Stack) HandleEvent(e event.Event) {
	if w, ok := e.(event.WindowChanged); ok {
		s.track(w.Beg, w.Dur)
	}
}

// TearDown detaches the stack and its lanes.
func (s *Stack) TearDown() {
	s.disconnect()
	for _, l := range s.lanes {
		l.TearDown()
	}
	if s.bus != nil {
		s.bus.UnsubscribeAll(s)
	}
}
