package waveform

import (
	"math"
	"sort"
	"strconv"
)

// Distances between major ticks, in seconds.
var intervalSizes = []float64{
	0.000001, 0.000002, 0.000005,
	0.00001, 0.00002, 0.00005,
	0.0001, 0.0002, 0.0005,
	0.001, 0.002, 0.005,
	0.01, 0.02, 0.05,
	0.1, 0.2, 0.5,
	1, 2, 5,
	10, 20, 30, 60,
	120, 300, 600, 1200,
	1800, 3600, 7200, 18000, 36000,
}

// Minor intervals per major interval, parallel to intervalSizes.
var minorCounts = []int{
	2, 2, 5,
	2, 2, 5,
	2, 2, 5,
	2, 2, 5,
	2, 2, 5,
	2, 2, 5,
	2, 2, 5,
	2, 2, 2, 2,
	2, 5, 2, 2,
	3, 2, 2, 5, 2,
}

const (
	MinMajorInterval = 50 // px
	MajorTickHeight  = 8
	MinorTickHeight  = 5
	FontSize         = 10
	RulerHeight      = MajorTickHeight + FontSize + 2
)

// RulerScale returns the major tick interval for a scale of spx seconds
// per pixel, and the number of minor intervals in it. The interval is the
// smallest one spanning at least MinMajorInterval pixels.
func RulerScale(spx float64) (major float64, minors int) {
	idx := sort.SearchFloat64s(intervalSizes, spx*MinMajorInterval)
	if idx >= len(intervalSizes) {
		idx = len(intervalSizes) - 1
	}
	return intervalSizes[idx], minorCounts[idx]
}

// drawRuler marks ticks on columns [i, i+n). Tick k sits at time
// k*major/minors, so a column's mark depends only on its absolute pixel
// position and not on which strip is being drawn.
func (w *Waveform) drawRuler(i, n int) {
	major, minors := RulerScale(w.spx)
	minor := major / float64(minors)
	p0, p1 := w.poff+i, w.poff+i+n
	k0 := int(math.Floor(float64(p0-1) * w.spx / minor))
	k1 := int(math.Ceil(float64(p1+1) * w.spx / minor))
	for k := k0; k <= k1; k++ {
		p := round(float64(k) * minor / w.spx)
		if p < p0 || p >= p1 {
			continue
		}
		c := &w.cols[p-w.poff]
		if k%minors == 0 {
			c.Tick = MajorTick
			c.Label = tickLabel(float64(k/minors)*major, major)
		} else if c.Tick == NoTick {
			c.Tick = MinorTick
		}
	}
}

func tickLabel(t, major float64) string {
	dec := 0
	if major < 1 {
		dec = int(math.Ceil(-math.Log10(major) - 1e-9))
	}
	return strconv.FormatFloat(t, 'f', dec, 64)
}
