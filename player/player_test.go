package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langtech/transcriber/event"
)

type recorder struct{ got []event.Event }

func (r *recorder) HandleEvent(e event.Event) { r.got = append(r.got, e) }

type window struct{ beg, dur, length float64 }

func (w window) WindowStart() float64    { return w.beg }
func (w window) WindowDuration() float64 { return w.dur }
func (w window) Length() float64         { return w.length }

func TestSimPlaysSpan(t *testing.T) {
	s := NewSim()
	var ready float64
	s.Signals().Ready.Connect(func(l float64) { ready = l })
	s.Load(10)
	assert.Equal(t, 10.0, ready)

	var pos []float64
	var ended []float64
	s.Signals().PositionChanged.Connect(func(t float64) { pos = append(pos, t) })
	s.Signals().Ended.Connect(func(t float64) { ended = append(ended, t) })

	s.Play(2, 3)
	s.Advance(0.5)
	assert.True(t, s.Playing())
	s.Pause()
	s.Advance(5)
	assert.Equal(t, 2.5, s.Position(), "paused players do not move")
	s.Resume()
	s.Advance(0.75)

	assert.False(t, s.Playing())
	assert.Equal(t, []float64{3}, ended)
	assert.Equal(t, []float64{2, 2.5, 3, 2}, pos, "stop returns to the start of the span")
	assert.Equal(t, 2.0, s.Position())
}

func TestSimPlayToEnd(t *testing.T) {
	s := NewSim()
	s.Load(4)
	s.Play(-1, 0)
	beg, end := s.Span()
	assert.Equal(t, 0.0, beg)
	assert.Equal(t, 4.0, end)
	s.Seek(99)
	assert.Equal(t, 4.0, s.Position())
}

func TestFollowerPublishes(t *testing.T) {
	bus := event.NewBus()
	rec := &recorder{}
	bus.SubscribeAll(rec, event.KindCursorMoved, event.KindWindowChanged)

	s := NewSim()
	s.Load(100)
	f := Follow(bus, s, window{beg: 0, dur: 10, length: 100})

	s.Seek(5)
	require.Len(t, rec.got, 1)
	assert.Equal(t, 5.0, rec.got[0].(event.CursorMoved).Time)

	s.Seek(50)
	require.Len(t, rec.got, 3)
	assert.Equal(t, event.WindowChanged{Origin: event.Origin{From: f}, Beg: 45, Dur: 10}, rec.got[2])

	s.Seek(99)
	assert.Equal(t, 90.0, rec.got[len(rec.got)-1].(event.WindowChanged).Beg, "clamped to the recording")

	f.Close()
	n := len(rec.got)
	s.Seek(1)
	assert.Len(t, rec.got, n)
}
