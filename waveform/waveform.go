package waveform

import "math"

// Anchor says which point of the window MoveWindow aligns with t.
type Anchor int

const (
	AnchorBeg Anchor = iota
	AnchorMid
	AnchorEnd
)

// Tick marks a ruler tick in a column.
type Tick uint8

const (
	NoTick Tick = iota
	MinorTick
	MajorTick
)

// Column is one pixel column of a rendered waveform: the amplitude range
// and the ruler mark drawn above it. Label is set on major ticks.
type Column struct {
	Min, Max int8
	Tick     Tick
	Label    string
}

// Waveform maps a Buffer onto a fixed number of pixel columns. The window
// is held as a pixel offset and a seconds-per-pixel scale; both are
// undefined until Display is called with a duration.
type Waveform struct {
	id      int
	buf     *Buffer
	channel int
	width   int
	height  int

	poff  int
	spx   float64
	stale bool
	cols  []Column

	// last strip drawn by Display
	drawFrom, drawN int
}

// New returns a waveform view of one channel of buf.
func New(id int, buf *Buffer, width, height, channel int) *Waveform {
	if channel < 0 || channel >= buf.Channels() {
		channel = 0
	}
	return &Waveform{
		id:      id,
		buf:     buf,
		channel: channel,
		width:   width,
		height:  height,
		spx:     -1,
		cols:    make([]Column, max(width, 0)),
	}
}

func (w *Waveform) ID() int          { return w.id }
func (w *Waveform) Buffer() *Buffer  { return w.buf }
func (w *Waveform) Channel() int     { return w.channel }
func (w *Waveform) Width() int       { return w.width }
func (w *Waveform) Height() int      { return w.height }
func (w *Waveform) Length() float64  { return w.buf.Len() }
func (w *Waveform) Ready() bool      { return w.spx > 0 }
func (w *Waveform) Canvas() []Column { return append([]Column(nil), w.cols...) }

// WindowStart returns the start of the window, or 0 before the first
// Display.
func (w *Waveform) WindowStart() float64 {
	if w.spx <= 0 {
		return 0
	}
	return float64(w.poff) * w.spx
}

// WindowDuration returns the window length, or 0 before the first Display.
func (w *Waveform) WindowDuration() float64 {
	if w.spx <= 0 {
		return 0
	}
	return float64(w.width) * w.spx
}

// SecondsPerPixel returns the current scale, or -1 before the first
// Display.
func (w *Waveform) SecondsPerPixel() float64 { return w.spx }

// T2P returns the column of time t in the current window.
func (w *Waveform) T2P(t float64) int {
	if w.spx <= 0 {
		return 0
	}
	return round(t/w.spx) - w.poff
}

// P2T converts a pixel distance to seconds.
func (w *Waveform) P2T(p int) float64 {
	if w.spx <= 0 {
		return 0
	}
	return float64(p) * w.spx
}

// SetSize changes the canvas size. The window keeps its scale, so its
// duration follows the width.
func (w *Waveform) SetSize(width, height int) {
	w.height = height
	if width == w.width {
		return
	}
	w.width = width
	w.cols = make([]Column, max(width, 0))
	w.stale = true
	if w.spx > 0 {
		w.Display(float64(w.poff)*w.spx, float64(width)*w.spx)
	}
}

// Display shows the window [t, t+dur). A non-positive dur keeps the
// current scale. When only the offset changed by less than the width, the
// existing columns are shifted and just the exposed strip is recomputed.
func (w *Waveform) Display(t, dur float64) {
	width := w.width
	if width <= 0 {
		return
	}
	if dur <= 0 {
		if w.spx <= 0 {
			return
		}
		dur = float64(width) * w.spx
	}

	i, n, shift := 0, width, 0
	if w.spx > 0 && !w.stale && round(dur/w.spx) == width {
		poff := round(t / w.spx)
		if poff == w.poff {
			return
		}
		delta := poff - w.poff
		switch {
		case delta > 0 && delta < width:
			shift, i, n = delta, width-delta, delta
		case delta < 0 && -delta < width:
			shift, i, n = delta, 0, -delta
		}
	} else {
		w.spx = dur / float64(width)
	}
	w.poff = round(t / w.spx)
	w.stale = false

	switch {
	case shift > 0:
		copy(w.cols, w.cols[shift:])
	case shift < 0:
		copy(w.cols[-shift:], w.cols[:width+shift])
	}
	w.draw(i, n)
}

// MoveWindow moves the window so that its start, middle or end is at t,
// keeping the duration.
func (w *Waveform) MoveWindow(t float64, anchor Anchor) {
	switch anchor {
	case AnchorBeg:
		w.Display(t, 0)
	case AnchorMid:
		if w.spx > 0 {
			w.Display(t-float64(w.width)/2*w.spx, 0)
		}
	case AnchorEnd:
		if w.spx > 0 {
			w.Display(t-float64(w.width)*w.spx, 0)
		}
	}
}

// draw recomputes columns [i, i+n).
func (w *Waveform) draw(i, n int) {
	w.drawFrom, w.drawN = i, n
	arr := w.buf.Columns(w.poff+i, n, w.spx)
	ch := w.buf.Channels()
	for k := 0; k < n; k++ {
		var c Column
		if arr != nil {
			f := 2 * (k*ch + w.channel)
			c.Min, c.Max = arr[f], arr[f+1]
		}
		w.cols[i+k] = c
	}
	w.drawRuler(i, n)
}

// round rounds halves up, so that negative and positive pixel positions
// are treated alike.
func round(x float64) int { return int(math.Floor(x + 0.5)) }
