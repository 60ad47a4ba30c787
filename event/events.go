// Package event carries the typed notifications exchanged between the
// views of a session.
package event

import (
	"fmt"

	"github.com/langtech/transcriber/datamodel"
)

// Kind names an event variant; handlers subscribe by kind.
type Kind int

const (
	KindRowAdded Kind = iota
	KindRowUpdated
	KindRowDeleted
	KindWindowChanged
	KindRegionChanged
	KindSegmentSelected
	KindCursorMoved
	KindSwimLaneRegion
)

var kindNames = [...]string{
	KindRowAdded:        "row-added",
	KindRowUpdated:      "row-updated",
	KindRowDeleted:      "row-deleted",
	KindWindowChanged:   "window-changed",
	KindRegionChanged:   "region-changed",
	KindSegmentSelected: "segment-selected",
	KindCursorMoved:     "cursor-moved",
	KindSwimLaneRegion:  "swimlane-region",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// NoWaveform marks an event that is not tied to a waveform.
const NoWaveform = -1

// Event is implemented by the variants in this package only.
type Event interface {
	Kind() Kind
	// Source is the handler that published the event, or nil.
	Source() Handler
	sealed()
}

// Origin records the publisher. Embed it in every variant.
type Origin struct {
	From Handler
}

func (o Origin) Source() Handler { return o.From }
func (Origin) sealed()           {}

// RowAdded asks the table to add a row with the given id.
type RowAdded struct {
	Origin
	RID  datamodel.RowID
	Data map[string]any
}

// RowUpdated asks the table to merge Update into a row.
type RowUpdated struct {
	Origin
	RID    datamodel.RowID
	Update map[string]any
}

// RowDeleted asks the table to remove a row.
type RowDeleted struct {
	Origin
	RID datamodel.RowID
}

// WindowChanged moves the visible time window. A non-positive Dur keeps
// the current duration.
type WindowChanged struct {
	Origin
	Beg, Dur float64
}

// RegionChanged reports a new selection on a waveform.
type RegionChanged struct {
	Origin
	Beg, Dur float64
	Waveform int
}

// SegmentSelected reports that a stored segment became the selection.
type SegmentSelected struct {
	Origin
	Beg, Dur float64
	Waveform int
	RID      datamodel.RowID
}

// CursorMoved reports the play or hover position.
type CursorMoved struct {
	Origin
	Time float64
}

// Span is an offset and length pair in seconds.
type Span struct {
	Offset, Length float64
}

// End returns Offset+Length.
func (s Span) End() float64 { return s.Offset + s.Length }

// SwimLaneRegion reports a click on a lane chip. Map is the span of the
// source recording the segment maps to, for respeaking lanes.
type SwimLaneRegion struct {
	Origin
	Lane   int
	Region Span
	Map    Span
	RID    datamodel.RowID
}

func (RowAdded) Kind() Kind        { return KindRowAdded }
func (RowUpdated) Kind() Kind      { return KindRowUpdated }
func (RowDeleted) Kind() Kind      { return KindRowDeleted }
func (WindowChanged) Kind() Kind   { return KindWindowChanged }
func (RegionChanged) Kind() Kind   { return KindRegionChanged }
func (SegmentSelected) Kind() Kind { return KindSegmentSelected }
func (CursorMoved) Kind() Kind     { return KindCursorMoved }
func (SwimLaneRegion) Kind() Kind  { return KindSwimLaneRegion }
