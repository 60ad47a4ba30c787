package waveform

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture(t *testing.T, rate, channels int, body []int8) *Buffer {
	t.Helper()
	b, err := NewBuffer(EncodeShape(Header{Rate: rate, Channels: channels}, body))
	require.NoError(t, err)
	return b
}

// ramp has frame f = (-f, f) for f < n.
func ramp(n int) []int8 {
	out := make([]int8, 0, 2*n)
	for f := 0; f < n; f++ {
		out = append(out, int8(-f), int8(f))
	}
	return out
}

func TestNewBufferHeader(t *testing.T) {
	b := fixture(t, 100, 1, ramp(10))
	assert.Equal(t, 100, b.Rate())
	assert.Equal(t, 1, b.Channels())
	assert.Equal(t, 10, b.Frames())
	assert.InDelta(t, 0.1, b.Len(), 1e-12)

	raw := EncodeShape(Header{Rate: 300, Channels: 2}, nil)
	assert.Equal(t, []byte("LDCWF\n\x00\x01\x2c\x02\x00\x00\x00\x00\x00\x00"), raw)
}

func TestNewBufferRejectsMalformed(t *testing.T) {
	_, err := NewBuffer([]byte("LDCWF"))
	assert.ErrorIs(t, err, ErrShortHeader)

	bad := EncodeShape(Header{Rate: 100, Channels: 1}, ramp(2))
	bad[0] = 'X'
	_, err = NewBuffer(bad)
	assert.ErrorIs(t, err, ErrBadMagic)

	_, err = NewBuffer(EncodeShape(Header{Rate: 100, Channels: 0}, nil))
	assert.ErrorIs(t, err, ErrNoChannels)

	_, err = NewBuffer(EncodeShape(Header{Rate: 100, Channels: 2}, []int8{1, 2, 3}))
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestSamples(t *testing.T) {
	b := fixture(t, 100, 1, ramp(10))

	tests := []struct {
		name     string
		beg, end float64
		n        int
		want     []int8
	}{
		{"two frames per column", 0, 0.1, 5, []int8{-1, 1, -3, 3, -5, 5, -7, 7, -9, 9}},
		{"upsampled", 0, 0.05, 10, []int8{0, 0, 0, 0, -1, 1, -1, 1, -2, 2, -2, 2, -3, 3, -3, 3, -4, 4, -4, 4}},
		{"fractional step", 0, 0.1, 3, []int8{-3, 3, -6, 6, -9, 9}},
		{"before start", -0.05, 0.05, 5, []int8{0, 0, 0, 0, 0, 0, -2, 2, -4, 4}},
		{"past end", 0.08, 0.12, 2, []int8{-9, 9, 0, 0}},
		{"entirely before", -2, -1, 3, []int8{0, 0, 0, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Samples(tt.beg, tt.end, tt.n))
		})
	}

	assert.Nil(t, b.Samples(0, 0.1, 0))
	assert.Nil(t, b.Samples(0.1, 0.1, 4))
}

func TestColumnsDependOnAbsolutePixel(t *testing.T) {
	b := fixture(t, 100, 1, ramp(10))

	// 1.5 frames per pixel: pixel 1 covers frames [1, 3), pixel 2 [3, 5)
	assert.Equal(t, []int8{-1, 1, -2, 2, -4, 4}, b.Columns(0, 3, 0.015))
	assert.Equal(t, []int8{-2, 2, -4, 4}, b.Columns(1, 2, 0.015))

	// below one frame per pixel every pixel still reads a frame
	assert.Equal(t, []int8{0, 0, 0, 0, -1, 1}, b.Columns(0, 3, 0.004))

	assert.Equal(t, []int8{0, 0, 0, 0, -1, 1}, b.Columns(-1, 3, 0.01))
	assert.Equal(t, []int8{-9, 9, 0, 0}, b.Columns(9, 2, 0.01))
	assert.Nil(t, b.Columns(0, 0, 0.01))
	assert.Nil(t, b.Columns(0, 3, 0))
}

func TestSamplesKeepsChannelsApart(t *testing.T) {
	// channel 0 ramps up, channel 1 is constant
	var body []int8
	for f := 0; f < 4; f++ {
		body = append(body, int8(-f), int8(f), -50, 50)
	}
	b := fixture(t, 100, 2, body)
	assert.Equal(t, []int8{-1, 1, -50, 50, -3, 3, -50, 50}, b.Samples(0, 0.04, 2))
}

func TestMakeShape(t *testing.T) {
	samples := make([]float64, 25)
	for i := range samples {
		samples[i] = float64(i)/24*2 - 1
	}
	raw, err := MakeShape([][]float64{samples, samples}, 1000, 100, 1, 1)
	require.NoError(t, err)

	b, err := NewBuffer(raw)
	require.NoError(t, err)
	assert.Equal(t, 100, b.Rate())
	assert.Equal(t, 1, b.Channels(), "channel cap")
	assert.Equal(t, 3, b.Frames())

	got := make([]int8, 0, 6)
	for f := 0; f < 3; f++ {
		lo, hi := b.Frame(f, 0)
		got = append(got, lo, hi)
	}
	assert.Equal(t, []int8{-127, -32, -21, 74, 85, 127}, got)
}

func TestMakeShapeClampsAndRejects(t *testing.T) {
	raw, err := MakeShape([][]float64{{-3, 3, 0, 0}}, 4, 2, 1, 0)
	require.NoError(t, err)
	b, err := NewBuffer(raw)
	require.NoError(t, err)
	lo, hi := b.Frame(0, 0)
	assert.Equal(t, int8(-127), lo)
	assert.Equal(t, int8(127), hi)

	_, err = MakeShape([][]float64{{0, 0}}, 100, 100, 1, 0)
	assert.ErrorIs(t, err, ErrResolutionTooHigh)

	_, err = MakeShape(nil, 100, 10, 1, 0)
	assert.ErrorIs(t, err, ErrNoChannels)
}

func TestShapeFromWAVRejectsGarbage(t *testing.T) {
	_, err := ShapeFromWAV(bytes.NewReader([]byte("not a wav file")), 800, 5, 2)
	assert.Error(t, err)
}
