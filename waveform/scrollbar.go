package waveform

import (
	"math"

	"github.com/langtech/transcriber/event"
)

const (
	// SliderMax is the slider value at the far right.
	SliderMax = 1000.0
	// MinThumbWidth is the narrowest thumb, in pixels.
	MinThumbWidth = 10.0
)

// Scrollbar maps a slider position onto the window of a Set. Slider value
// p shows the window starting at p/max * (length - windowDuration).
type Scrollbar struct {
	set    *Set
	bus    *event.Bus
	width  float64
	value  float64
	thumb  float64
	moving bool
}

// NewScrollbar returns a scrollbar widthPx pixels wide driving set. With
// a bus it follows and announces window changes.
func NewScrollbar(set *Set, bus *event.Bus, widthPx int) *Scrollbar {
	s := &Scrollbar{set: set, bus: bus, width: float64(widthPx)}
	if bus != nil {
		bus.Subscribe(event.KindWindowChanged, s)
	}
	s.sync()
	return s
}

func (s *Scrollbar) Close() {
	if s.bus != nil {
		s.bus.Unsubscribe(event.KindWindowChanged, s)
	}
}

func (s *Scrollbar) Value() float64      { return s.value }
func (s *Scrollbar) Max() float64        { return SliderMax }
func (s *Scrollbar) ThumbWidth() float64 { return s.thumb }
func (s *Scrollbar) Width() int          { return int(s.width) }

// SetWidth resizes the widget.
func (s *Scrollbar) SetWidth(px int) {
	s.width = float64(px)
	s.sync()
}

// span is the range of window start times the slider covers.
func (s *Scrollbar) span() float64 {
	return s.set.Length() - s.set.WindowDuration()
}

// TimeAt converts a slider value to a window start time.
func (s *Scrollbar) TimeAt(p float64) float64 {
	x := s.span()
	if x <= 0 {
		return 0
	}
	return p / SliderMax * x
}

// ValueAt converts a window start time to a slider value.
func (s *Scrollbar) ValueAt(t float64) float64 {
	x := s.span()
	if x <= 0 {
		return 0
	}
	return t / x * SliderMax
}

// SetValue moves the slider as a drag would: the set follows and the new
// window is published.
func (s *Scrollbar) SetValue(p float64) {
	p = math.Max(0, math.Min(p, SliderMax))
	s.value = p
	if s.set.Len() == 0 {
		return
	}
	t := s.TimeAt(p)
	s.moving = true
	defer func() { s.moving = false }()
	s.set.Display(t, 0)
	if s.bus != nil {
		s.bus.Publish(event.WindowChanged{Origin: event.Origin{From: s}, Beg: t, Dur: s.set.WindowDuration()})
	}
}

// MoveTo slides so that the window's start, middle or end is at t.
func (s *Scrollbar) MoveTo(t float64, anchor Anchor) {
	n := s.ValueAt(t)
	w := s.ValueAt(s.set.WindowDuration())
	switch anchor {
	case AnchorMid:
		n -= w / 2
	case AnchorEnd:
		n -= w
	}
	s.SetValue(n)
}

// HandleEvent follows windows moved elsewhere without publishing.
func (s *Scrollbar) HandleEvent(e event.Event) {
	if s.moving {
		return
	}
	if w, ok := e.(event.WindowChanged); ok {
		s.set.Display(w.Beg, w.Dur)
		s.sync()
	}
}

// sync derives thumb width and slider value from the set's window.
func (s *Scrollbar) sync() {
	length := s.set.Length()
	if length <= 0 || !s.set.HasWindow() {
		s.thumb = s.width
		s.value = 0
		return
	}
	s.thumb = math.Max(math.Min(s.set.WindowDuration()/length*s.width, s.width), MinThumbWidth)
	s.value = math.Max(0, math.Min(s.ValueAt(s.set.WindowStart()), SliderMax))
}
