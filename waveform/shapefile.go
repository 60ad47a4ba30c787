package waveform

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Magic opens every shape file.
const Magic = "LDCWF\n\x00"

// HeaderSize is the size of the shape file header in bytes.
const HeaderSize = 16

var (
	ErrBadMagic          = errors.New("not a shape file")
	ErrShortHeader       = errors.New("shape header too short")
	ErrNoChannels        = errors.New("shape file has no channels")
	ErrTruncated         = errors.New("shape body is not a whole number of frames")
	ErrResolutionTooHigh = errors.New("requested envelope rate is not below the audio rate")
)

// Header is the fixed part of a shape file.
type Header struct {
	Rate     int
	Channels int
}

func parseHeader(raw []byte) (Header, error) {
	if len(raw) < HeaderSize {
		return Header{}, fmt.Errorf("%w (%d bytes)", ErrShortHeader, len(raw))
	}
	if string(raw[:len(Magic)]) != Magic {
		return Header{}, ErrBadMagic
	}
	h := Header{
		Rate:     int(binary.BigEndian.Uint16(raw[7:9])),
		Channels: int(raw[9]),
	}
	if h.Channels == 0 {
		return Header{}, ErrNoChannels
	}
	if h.Rate == 0 {
		return Header{}, fmt.Errorf("shape header: zero sample rate")
	}
	return h, nil
}

// EncodeShape writes a shape file. frames holds, per frame, 2*channels
// values: min and max for each channel in turn.
func EncodeShape(h Header, frames []int8) []byte {
	out := make([]byte, HeaderSize+len(frames))
	copy(out, Magic)
	binary.BigEndian.PutUint16(out[7:9], uint16(h.Rate))
	out[9] = byte(h.Channels)
	for i, v := range frames {
		out[HeaderSize+i] = byte(v)
	}
	return out
}

// ShapeRate is the envelope rate needed so that a window of minWindowSec
// seconds can be drawn maxWidthPx pixels wide.
func ShapeRate(maxWidthPx, minWindowSec float64) int {
	return int(math.Ceil(maxWidthPx / minWindowSec))
}

// MakeShape builds a shape file from per-channel samples in [-1, 1] at
// audio rate rate. At most maxChannels channels are kept when maxChannels
// is positive.
func MakeShape(samples [][]float64, rate int, maxWidthPx, minWindowSec float64, maxChannels int) ([]byte, error) {
	channels := len(samples)
	if maxChannels > 0 && maxChannels < channels {
		channels = maxChannels
	}
	if channels == 0 {
		return nil, ErrNoChannels
	}
	srate := ShapeRate(maxWidthPx, minWindowSec)
	if rate <= srate {
		return nil, fmt.Errorf("%w (%d <= %d)", ErrResolutionTooHigh, rate, srate)
	}
	if srate > math.MaxUint16 {
		return nil, fmt.Errorf("shape rate %d does not fit the header", srate)
	}
	delta := float64(rate) / float64(srate)
	duration := float64(len(samples[0])) / float64(rate)
	nframes := int(math.Ceil(duration * float64(srate)))
	fsize := 2 * channels
	body := make([]int8, nframes*fsize)

	put := func(frame, c int, lo, hi float64) {
		if frame >= nframes {
			return
		}
		body[frame*fsize+2*c] = quantize(lo)
		body[frame*fsize+2*c+1] = quantize(hi)
	}
	for c := 0; c < channels; c++ {
		next := delta
		frame := 0
		lo, hi := 10.0, -10.0
		for i, s := range samples[c] {
			s = math.Max(-1, math.Min(1, s))
			if float64(i) < next {
				lo = math.Min(lo, s)
				hi = math.Max(hi, s)
				continue
			}
			put(frame, c, lo, hi)
			next += delta
			lo, hi = s, s
			frame++
		}
		if lo <= hi {
			put(frame, c, lo, hi)
		}
	}
	return EncodeShape(Header{Rate: srate, Channels: channels}, body), nil
}

// quantize maps [-1, 1] to a signed byte, rounding halves up.
func quantize(x float64) int8 {
	return int8(math.Floor(x*127 + 0.5))
}
