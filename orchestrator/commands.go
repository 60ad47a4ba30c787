package orchestrator

import (
	"errors"
	"math"
	"strings"

	"github.com/langtech/transcriber/datamodel"
	"github.com/langtech/transcriber/event"
	"github.com/langtech/transcriber/interval"
)

// MinSelection is the shortest selection a segment can be created from.
const MinSelection = 1e-6

var (
	ErrNoWaveform     = errors.New("no waveform displayed")
	ErrNoCursor       = errors.New("cursor has not been placed")
	ErrNotSplittable  = errors.New("cursor is inside a segment that is not selected")
	ErrNoSelection    = errors.New("no segment selected")
	ErrRowSelected    = errors.New("a segment is selected")
	ErrEmptySelection = errors.New("selection is empty")
	ErrNoPrevious     = errors.New("no segment before the selection")
)

func (s *Session) onWaveform(r datamodel.Row) bool { return r.Value("waveform") != nil }

func (s *Session) addSegment(beg, dur float64, speaker string) datamodel.RowID {
	rid := s.table.NewRowID()
	s.bus.Publish(event.RowAdded{
		Origin: s.origin(),
		RID:    rid,
		Data: map[string]any{
			"waveform": s.wave.ID(),
			"offset":   beg,
			"length":   dur,
			"speaker":  speaker,
		},
	})
	return rid
}

// SelectRow makes a row the selection of every view.
func (s *Session) SelectRow(rid datamodel.RowID) bool {
	if !s.table.Has(rid) {
		return false
	}
	s.sel = s.span(rid)
	s.selWave = event.NoWaveform
	if wf, ok := s.table.Row(rid).Int("waveform"); ok {
		s.selWave = wf
	}
	s.selRID = rid
	s.bus.Publish(event.SegmentSelected{
		Origin:   s.origin(),
		Beg:      s.sel.Offset,
		Dur:      s.sel.Length,
		Waveform: s.selWave,
		RID:      rid,
	})
	return true
}

// Split cuts at the cursor. In a gap between segments it creates two
// segments filling the gap on each side of the cursor. Inside the
// selected segment it shortens that segment to end at the cursor, adds
// the remainder as a new segment of the same speaker and selects it. It
// returns the segment that starts at the cursor.
func (s *Session) Split() (datamodel.RowID, error) {
	if s.wave == nil {
		return datamodel.NoRow, ErrNoWaveform
	}
	if !s.hasCursor {
		return datamodel.NoRow, ErrNoCursor
	}
	t := s.cursor

	var target datamodel.Row
	found := false
	overlaps := 0
	gapBeg, gapEnd := 0.0, s.wave.Length()
	s.table.ForEach(func(r datamodel.Row) {
		beg, _ := r.Float("offset")
		length, _ := r.Float("length")
		end := beg + length
		if t > beg && t < end {
			if r.ID() == s.selRID {
				target, found = r, true
			}
			overlaps++
		}
		if end <= t && end > gapBeg {
			gapBeg = end
		}
		if beg >= t && beg < gapEnd {
			gapEnd = beg
		}
	}, s.onWaveform)

	switch {
	case overlaps == 0:
		if t-gapBeg >= interval.Epsilon {
			s.addSegment(gapBeg, t-gapBeg, DefaultSpeaker)
		}
		if gapEnd-t < interval.Epsilon {
			return datamodel.NoRow, nil
		}
		return s.addSegment(t, gapEnd-t, DefaultSpeaker), nil
	case found:
		beg, _ := target.Float("offset")
		length, _ := target.Float("length")
		s.bus.Publish(event.RowUpdated{
			Origin: s.origin(),
			RID:    target.ID(),
			Update: map[string]any{"length": t - beg},
		})
		rid := s.addSegment(t, beg+length-t, target.String("speaker"))
		s.SelectRow(rid)
		return rid, nil
	}
	return datamodel.NoRow, ErrNotSplittable
}

// MergePrevious extends the nearest segment ending at or before the start
// of the selected one to the selected segment's end, appends the selected
// segment's text to it, deletes the selected segment and selects the
// extended one.
func (s *Session) MergePrevious() (datamodel.RowID, error) {
	if s.selRID == datamodel.NoRow || !s.table.Has(s.selRID) {
		return datamodel.NoRow, ErrNoSelection
	}
	cur := s.table.Row(s.selRID)
	sel := s.span(s.selRID)

	var prev datamodel.Row
	found := false
	prevGap := math.Inf(1)
	s.table.ForEach(func(r datamodel.Row) {
		beg, _ := r.Float("offset")
		length, _ := r.Float("length")
		end := beg + length
		if r.ID() != s.selRID && end <= sel.Offset && sel.Offset-end < prevGap {
			prev, found = r, true
			prevGap = sel.Offset - end
		}
	}, s.onWaveform)
	if !found {
		return datamodel.NoRow, ErrNoPrevious
	}

	beg, _ := prev.Float("offset")
	update := map[string]any{"length": sel.End() - beg}
	for _, field := range []string{"transcript", "translation"} {
		if joined := joinText(prev.String(field), cur.String(field)); joined != prev.String(field) {
			update[field] = joined
		}
	}

	gone := s.selRID
	s.selRID = datamodel.NoRow
	s.bus.Publish(event.RowDeleted{Origin: s.origin(), RID: gone})
	s.bus.Publish(event.RowUpdated{Origin: s.origin(), RID: prev.ID(), Update: update})
	s.SelectRow(prev.ID())
	return prev.ID(), nil
}

func joinText(a, b string) string {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}

// CreateFromSelection adds a segment covering the selected region. It is
// refused while a segment is selected or when the region is empty.
func (s *Session) CreateFromSelection() (datamodel.RowID, error) {
	if s.wave == nil {
		return datamodel.NoRow, ErrNoWaveform
	}
	if s.selRID != datamodel.NoRow {
		return datamodel.NoRow, ErrRowSelected
	}
	if s.sel.Length < MinSelection {
		return datamodel.NoRow, ErrEmptySelection
	}
	return s.addSegment(s.sel.Offset, s.sel.Length, DefaultSpeaker), nil
}

// RemoveSelected deletes the selected segment. The selection keeps its
// span as a plain region.
func (s *Session) RemoveSelected() (datamodel.RowID, error) {
	if s.selRID == datamodel.NoRow {
		return datamodel.NoRow, ErrNoSelection
	}
	if s.wave != nil {
		s.wave.UnlinkRegion(s.wave.SelectionID())
	}
	rid := s.selRID
	s.selRID = datamodel.NoRow
	s.bus.Publish(event.RowDeleted{Origin: s.origin(), RID: rid})
	return rid, nil
}

// Edit changes the speaker, transcript or translation of a segment.
func (s *Session) Edit(rid datamodel.RowID, field, text string) bool {
	return s.text.Edit(rid, field, text)
}
