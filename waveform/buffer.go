// Package waveform renders min/max amplitude envelopes into pixel columns
// and keeps several waveform views on a shared time window.
package waveform

import (
	"fmt"
	"math"
)

// frameEps absorbs floating point noise when a time is converted to a
// frame index, so pixel-aligned windows map to whole frames.
const frameEps = 1e-9

// Buffer is a decoded shape file. It is immutable.
type Buffer struct {
	data     []int8
	rate     int
	channels int
	frames   int
}

// NewBuffer parses a shape file.
func NewBuffer(raw []byte) (*Buffer, error) {
	h, err := parseHeader(raw)
	if err != nil {
		return nil, err
	}
	body := raw[HeaderSize:]
	fsize := 2 * h.Channels
	if len(body)%fsize != 0 {
		return nil, fmt.Errorf("shape body: %w (%d bytes, frame size %d)", ErrTruncated, len(body), fsize)
	}
	data := make([]int8, len(body))
	for i, b := range body {
		data[i] = int8(b)
	}
	return &Buffer{data: data, rate: h.Rate, channels: h.Channels, frames: len(body) / fsize}, nil
}

func (b *Buffer) Rate() int     { return b.rate }
func (b *Buffer) Channels() int { return b.channels }
func (b *Buffer) Frames() int   { return b.frames }

// Len returns the duration in seconds.
func (b *Buffer) Len() float64 { return float64(b.frames) / float64(b.rate) }

// Frame returns the (min, max) pair of channel c in frame f.
func (b *Buffer) Frame(f, c int) (min, max int8) {
	if f < 0 || f >= b.frames || c < 0 || c >= b.channels {
		return 0, 0
	}
	base := 2 * (f*b.channels + c)
	return b.data[base], b.data[base+1]
}

// Samples resamples [beg, end) into exactly n output frames laid out like
// the shape file body. Each output frame is the min/max over the source
// frames it covers; parts of the range outside the buffer read as zero.
// It returns nil when n or the range is empty.
func (b *Buffer) Samples(beg, end float64, n int) []int8 {
	if n <= 0 {
		return nil
	}
	a := int(math.Floor(beg*float64(b.rate) + frameEps))
	z := int(math.Ceil(end*float64(b.rate) - frameEps))
	step := float64(z-a) / float64(n)
	if step <= 0 {
		return nil
	}
	out := make([]int8, n*2*b.channels)
	for i := 0; i < n; i++ {
		x := float64(a) + float64(i)*step
		f0 := int(math.Floor(x + frameEps))
		f1 := f0 + 1
		if step >= 1 {
			f1 = int(math.Ceil(x + step - frameEps))
		}
		b.reduce(out[2*i*b.channels:], f0, f1)
	}
	return out
}

// Columns returns n output frames for the pixels p0 .. p0+n-1 of a view
// drawn at spx seconds per pixel. The source frames of a pixel depend on
// its absolute position only, so any strip of a window yields the same
// columns as the whole window.
func (b *Buffer) Columns(p0, n int, spx float64) []int8 {
	if n <= 0 || spx <= 0 {
		return nil
	}
	fpx := spx * float64(b.rate)
	out := make([]int8, n*2*b.channels)
	for i := 0; i < n; i++ {
		p := float64(p0 + i)
		f0 := int(math.Floor(p*fpx + frameEps))
		f1 := int(math.Ceil((p+1)*fpx - frameEps))
		if f1 <= f0 {
			f1 = f0 + 1
		}
		b.reduce(out[2*i*b.channels:], f0, f1)
	}
	return out
}

// reduce writes the min/max of source frames [f0, f1) of every channel
// into dst. Frames outside the buffer are skipped.
func (b *Buffer) reduce(dst []int8, f0, f1 int) {
	if f0 < 0 {
		f0 = 0
	}
	if f1 > b.frames {
		f1 = b.frames
	}
	if f0 >= f1 {
		return
	}
	for c := 0; c < b.channels; c++ {
		lo, hi := int8(math.MaxInt8), int8(math.MinInt8)
		for f := f0; f < f1; f++ {
			mn, mx := b.Frame(f, c)
			if mn < lo {
				lo = mn
			}
			if mx > hi {
				hi = mx
			}
		}
		dst[2*c], dst[2*c+1] = lo, hi
	}
}
