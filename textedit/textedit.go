// Package textedit keeps the transcript rows of a table as an ordered,
// editable list.
package textedit

import (
	"github.com/langtech/transcriber/datamodel"
	"github.com/langtech/transcriber/event"
	"github.com/langtech/transcriber/interval"
	"github.com/langtech/transcriber/signal"
)

// Editable lists the fields Edit accepts.
var Editable = map[string]bool{"speaker": true, "transcript": true, "translation": true}

// Entry is one line of the list.
type Entry struct {
	RID         datamodel.RowID
	Offset      float64
	Length      float64
	Speaker     string
	Transcript  string
	Translation string
	Focused     bool
}

// TextEdit lists rows by (offset, end, id). Rows may overlap.
type TextEdit struct {
	bus    *event.Bus
	table  *datamodel.Table
	filter func(datamodel.Row) bool
	conns  []signal.Conn
	idx    *interval.Index[datamodel.RowID]
	focus  datamodel.RowID
	rev    int
}

func New(bus *event.Bus) *TextEdit {
	te := &TextEdit{
		bus:   bus,
		idx:   interval.New[datamodel.RowID](interval.OverlapPermitted),
		focus: datamodel.NoRow,
	}
	if bus != nil {
		bus.Subscribe(event.KindSegmentSelected, te)
	}
	return te
}

// SetTable shows the rows of table passing filter (nil passes all).
func (te *TextEdit) SetTable(table *datamodel.Table, filter func(datamodel.Row) bool) {
	te.disconnect()
	te.table, te.filter = table, filter
	te.idx.Clear()
	te.focus = datamodel.NoRow
	te.rev++
	if table == nil {
		return
	}
	table.ForEach(te.insert, te.accepts)
	te.conns = []signal.Conn{
		table.RowAdded.Connect(te.rowAdded),
		table.RowUpdated.Connect(te.rowUpdated),
		table.RowDeleted.Connect(te.rowDeleted),
	}
}

func (te *TextEdit) disconnect() {
	if te.table == nil || len(te.conns) == 0 {
		return
	}
	te.table.RowAdded.Disconnect(te.conns[0])
	te.table.RowUpdated.Disconnect(te.conns[1])
	te.table.RowDeleted.Disconnect(te.conns[2])
	te.conns = nil
}

func (te *TextEdit) accepts(r datamodel.Row) bool { return te.filter == nil || te.filter(r) }

func (te *TextEdit) insert(r datamodel.Row) {
	off, _ := r.Float("offset")
	length, _ := r.Float("length")
	te.idx.Insert(r.ID(), off, length, nil)
}

func (te *TextEdit) rowAdded(a datamodel.Added) {
	r := te.table.Row(a.ID)
	if te.accepts(r) {
		te.insert(r)
		te.rev++
	}
}

func (te *TextEdit) rowUpdated(u datamodel.Updated) {
	r := te.table.Row(u.ID)
	_, had := te.idx.Get(u.ID)
	want := te.accepts(r)
	if !had && !want {
		return
	}
	te.idx.Remove(u.ID)
	if want {
		te.insert(r)
	} else if te.focus == u.ID {
		te.focus = datamodel.NoRow
	}
	te.rev++
}

func (te *TextEdit) rowDeleted(d datamodel.Deleted) {
	if te.idx.Remove(d.ID) {
		if te.focus == d.ID {
			te.focus = datamodel.NoRow
		}
		te.rev++
	}
}

// Revision changes whenever the list does.
func (te *TextEdit) Revision() int { return te.rev }

func (te *TextEdit) Len() int { return te.idx.Len() }

// Entries returns the list in order, read fresh from the table.
func (te *TextEdit) Entries() []Entry {
	out := make([]Entry, 0, te.idx.Len())
	te.idx.All(func(iv interval.Interval[datamodel.RowID]) bool {
		out = append(out, te.entry(iv.ID))
		return true
	})
	return out
}

func (te *TextEdit) entry(id datamodel.RowID) Entry {
	r := te.table.Row(id)
	off, _ := r.Float("offset")
	length, _ := r.Float("length")
	return Entry{
		RID:         id,
		Offset:      off,
		Length:      length,
		Speaker:     r.String("speaker"),
		Transcript:  r.String("transcript"),
		Translation: r.String("translation"),
		Focused:     id == te.focus,
	}
}

// EntryAt returns the first entry covering time t.
func (te *TextEdit) EntryAt(t float64) (Entry, bool) {
	iv, ok := te.idx.At(t)
	if !ok {
		return Entry{}, false
	}
	return te.entry(iv.ID), true
}

// Focused returns the row followed by the list, if any.
func (te *TextEdit) Focused() (datamodel.RowID, bool) {
	return te.focus, te.focus != datamodel.NoRow
}

// Edit requests a new text for one field of a listed row. The change
// reaches the table through the bus.
func (te *TextEdit) Edit(rid datamodel.RowID, field, text string) bool {
	if !Editable[field] || te.bus == nil {
		return false
	}
	if _, ok := te.idx.Get(rid); !ok {
		return false
	}
	te.bus.Publish(event.RowUpdated{
		Origin: event.Origin{From: te},
		RID:    rid,
		Update: map[string]any{field: text},
	})
	return true
}

func (te *TextEdit) HandleEvent(e event.Event) {
	if s, ok := e.(event.SegmentSelected); ok {
		te.focus = datamodel.NoRow
		if _, listed := te.idx.Get(s.RID); listed {
			te.focus = s.RID
		}
	}
}

// TearDown detaches the list from its table and bus.
func (te *TextEdit) TearDown() {
	te.disconnect()
	if te.bus != nil {
		te.bus.UnsubscribeAll(te)
	}
}
