package waveform

// View is what a Set needs from a waveform. Both *Waveform and *Rich
// satisfy it.
type View interface {
	Display(t, dur float64)
	Length() float64
	WindowStart() float64
	WindowDuration() float64
	Ready() bool
}

// Set keeps waveforms on one window and tracks the longest of them.
type Set struct {
	views     []View
	maxLen    float64
	maxCount  int
	hasWindow bool
	beg, dur  float64
}

func NewSet() *Set { return &Set{} }

// Add puts v on the set's window, or adopts v's window when the set has
// none yet. Adding a view twice has no effect.
func (s *Set) Add(v View) {
	if s.index(v) >= 0 {
		return
	}
	if !s.hasWindow {
		if v.Ready() {
			s.beg, s.dur = v.WindowStart(), v.WindowDuration()
			s.hasWindow = true
		}
	} else {
		v.Display(s.beg, s.dur)
	}
	s.views = append(s.views, v)
	switch l := v.Length(); {
	case l > s.maxLen:
		s.maxLen, s.maxCount = l, 1
	case l == s.maxLen:
		s.maxCount++
	}
}

func (s *Set) Remove(v View) {
	i := s.index(v)
	if i < 0 {
		return
	}
	s.views = append(s.views[:i], s.views[i+1:]...)
	if v.Length() != s.maxLen {
		return
	}
	s.maxCount--
	if s.maxCount > 0 {
		return
	}
	s.maxLen, s.maxCount = 0, 0
	for _, o := range s.views {
		switch l := o.Length(); {
		case l > s.maxLen:
			s.maxLen, s.maxCount = l, 1
		case l == s.maxLen:
			s.maxCount++
		}
	}
}

func (s *Set) index(v View) int {
	for i, o := range s.views {
		if o == v {
			return i
		}
	}
	return -1
}

// Views returns the members in the order they were added.
func (s *Set) Views() []View { return append([]View(nil), s.views...) }

func (s *Set) Len() int { return len(s.views) }

// Length returns the length of the longest member.
func (s *Set) Length() float64 { return s.maxLen }

func (s *Set) WindowStart() float64    { return s.beg }
func (s *Set) WindowDuration() float64 { return s.dur }
func (s *Set) HasWindow() bool         { return s.hasWindow }

// Display moves every member to [beg, beg+dur). A non-positive dur keeps
// the current duration.
func (s *Set) Display(beg, dur float64) {
	s.beg = beg
	if dur > 0 {
		s.dur = dur
		s.hasWindow = true
	}
	for _, v := range s.views {
		v.Display(beg, dur)
	}
}

// MoveWindow aligns the start, middle or end of the window with t.
func (s *Set) MoveWindow(t float64, anchor Anchor) {
	switch anchor {
	case AnchorMid:
		t -= s.dur / 2
	case AnchorEnd:
		t -= s.dur
	}
	s.Display(t, 0)
}
