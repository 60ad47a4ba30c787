// Package player describes the audio player the transcriber drives and
// provides a simulated one driven by an explicit clock.
package player

import (
	"math"

	"github.com/langtech/transcriber/event"
	"github.com/langtech/transcriber/signal"
)

// Player plays spans of one recording. Implementations report progress on
// the signals returned by Signals.
type Player interface {
	// Play plays [beg, end). An end not after beg plays to the end.
	Play(beg, end float64)
	Pause()
	Resume()
	// Stop pauses and returns to the start of the last span.
	Stop()
	Seek(t float64)
	Position() float64
	Playing() bool
	Signals() *Signals
}

// Signals are the notifications of a Player.
type Signals struct {
	// PositionChanged carries the playback position in seconds.
	PositionChanged signal.Signal[float64]
	// Ready carries the length of the loaded recording.
	Ready signal.Signal[float64]
	// Ended carries the end of a span that played through.
	Ended signal.Signal[float64]
}

// Sim is a Player whose time only moves when Advance is called.
type Sim struct {
	sig      Signals
	length   float64
	pos      float64
	beg, end float64
	playing  bool
}

func NewSim() *Sim { return &Sim{} }

// Load sets the recording length and emits Ready.
func (s *Sim) Load(length float64) {
	s.length = math.Max(0, length)
	s.pos, s.beg, s.end, s.playing = 0, 0, s.length, false
	s.sig.Ready.Emit(s.length)
}

func (s *Sim) Signals() *Signals { return &s.sig }
func (s *Sim) Length() float64   { return s.length }
func (s *Sim) Position() float64 { return s.pos }
func (s *Sim) Playing() bool     { return s.playing }

// Span returns the span being played.
func (s *Sim) Span() (beg, end float64) { return s.beg, s.end }

func (s *Sim) clamp(t float64) float64 { return math.Max(0, math.Min(t, s.length)) }

func (s *Sim) Play(beg, end float64) {
	s.beg = s.clamp(beg)
	s.end = s.length
	if end > beg {
		s.end = s.clamp(end)
	}
	s.playing = true
	s.Seek(s.beg)
}

func (s *Sim) Pause() { s.playing = false }

func (s *Sim) Resume() {
	if s.pos < s.end {
		s.playing = true
	}
}

func (s *Sim) Stop() {
	s.playing = false
	s.Seek(s.beg)
}

func (s *Sim) Seek(t float64) {
	s.pos = s.clamp(t)
	s.sig.PositionChanged.Emit(s.pos)
}

// Advance moves a playing Sim forward by d seconds. Reaching the end of
// the span emits Ended and stops.
func (s *Sim) Advance(d float64) {
	if !s.playing || d <= 0 {
		return
	}
	t := s.pos + d
	if t < s.end {
		s.Seek(t)
		return
	}
	s.Seek(s.end)
	s.sig.Ended.Emit(s.end)
	s.Stop()
}

// Window is what Follower needs to know about the displayed window.
type Window interface {
	WindowStart() float64
	WindowDuration() float64
	Length() float64
}

// Follower publishes player positions as cursor moves and recentres the
// window when the position leaves it.
type Follower struct {
	bus  *event.Bus
	p    Player
	win  Window
	conn signal.Conn
}

func Follow(bus *event.Bus, p Player, win Window) *Follower {
	f := &Follower{bus: bus, p: p, win: win}
	f.conn = p.Signals().PositionChanged.Connect(f.moved)
	return f
}

// HandleEvent is a no-op; a Follower only publishes.
func (f *Follower) HandleEvent(event.Event) {}

func (f *Follower) moved(t float64) {
	origin := event.Origin{From: f}
	f.bus.Publish(event.CursorMoved{Origin: origin, Time: t})
	if f.win == nil {
		return
	}
	wbeg, wdur := f.win.WindowStart(), f.win.WindowDuration()
	if wdur <= 0 || (t >= wbeg && t <= wbeg+wdur) {
		return
	}
	beg := math.Max(0, math.Min(t-wdur/2, f.win.Length()-wdur))
	f.bus.Publish(event.WindowChanged{Origin: origin, Beg: beg, Dur: wdur})
}

// Close stops following.
func (f *Follower) Close() { f.p.Signals().PositionChanged.Disconnect(f.conn) }
