package waveform

import (
	"fmt"
	"io"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

// Audio is decoded PCM, one slice per channel.
type Audio struct {
	Rate    int
	Samples [][]float64
}

// Duration returns the length in seconds.
func (a *Audio) Duration() float64 {
	if len(a.Samples) == 0 || a.Rate == 0 {
		return 0
	}
	return float64(len(a.Samples[0])) / float64(a.Rate)
}

// DecodeWAV reads a WAV stream into memory.
func DecodeWAV(r io.Reader) (*Audio, error) {
	stream, format, err := wav.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("wav decode: %w", err)
	}
	defer stream.Close()

	buf := beep.NewBuffer(format)
	buf.Append(stream)
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("wav decode: %w", err)
	}

	channels := format.NumChannels
	if channels > 2 {
		channels = 2
	}
	if channels < 1 {
		channels = 1
	}
	n := buf.Len()
	out := &Audio{Rate: int(format.SampleRate), Samples: make([][]float64, channels)}
	for c := range out.Samples {
		out.Samples[c] = make([]float64, 0, n)
	}
	s := buf.Streamer(0, n)
	chunk := make([][2]float64, 4096)
	for {
		k, ok := s.Stream(chunk)
		for _, frame := range chunk[:k] {
			for c := 0; c < channels; c++ {
				out.Samples[c] = append(out.Samples[c], frame[c])
			}
		}
		if !ok || k == 0 {
			break
		}
	}
	return out, nil
}

// ShapeFromWAV decodes a WAV stream and builds its shape file.
func ShapeFromWAV(r io.Reader, maxWidthPx, minWindowSec float64, maxChannels int) ([]byte, error) {
	a, err := DecodeWAV(r)
	if err != nil {
		return nil, err
	}
	return MakeShape(a.Samples, a.Rate, maxWidthPx, minWindowSec, maxChannels)
}
