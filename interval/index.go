// Package interval keeps time intervals ordered by (start, end, id) and
// answers range queries in O(log n + k).
package interval

import (
	"cmp"
	"math"
	"sort"
)

// Epsilon is the overlap tolerance of the NonOverlapping policy, in seconds.
const Epsilon = 0.000001

// Policy selects how an Index treats overlapping intervals.
type Policy int

const (
	// NonOverlapping rejects an interval that overlaps a neighbour by more
	// than Epsilon.
	NonOverlapping Policy = iota
	// OverlapPermitted accepts any valid interval.
	OverlapPermitted
)

func (p Policy) String() string {
	switch p {
	case NonOverlapping:
		return "non-overlapping"
	case OverlapPermitted:
		return "overlap-permitted"
	}
	return "unknown"
}

// Interval is a time span with an opaque payload.
type Interval[K cmp.Ordered] struct {
	Start   float64
	Length  float64
	ID      K
	Payload any
}

// End returns Start+Length.
func (iv Interval[K]) End() float64 { return iv.Start + iv.Length }

// Intersects reports whether the interval meets [beg, end).
func (iv Interval[K]) Intersects(beg, end float64) bool {
	return iv.Start < end && iv.End() > beg
}

func (iv Interval[K]) less(o Interval[K]) bool {
	if iv.Start != o.Start {
		return iv.Start < o.Start
	}
	if e1, e2 := iv.End(), o.End(); e1 != e2 {
		return e1 < e2
	}
	return iv.ID < o.ID
}

// Index is an ordered interval container. It is not safe for concurrent use.
type Index[K cmp.Ordered] struct {
	policy Policy
	items  []Interval[K]
	byID   map[K]Interval[K]
	maxLen float64
}

// New returns an empty index using policy.
func New[K cmp.Ordered](policy Policy) *Index[K] {
	return &Index[K]{policy: policy, byID: make(map[K]Interval[K])}
}

// Policy returns the overlap policy of the index.
func (x *Index[K]) Policy() Policy { return x.policy }

// Len returns the number of intervals.
func (x *Index[K]) Len() int { return len(x.items) }

// Clear removes every interval.
func (x *Index[K]) Clear() {
	x.items = nil
	x.byID = make(map[K]Interval[K])
	x.maxLen = 0
}

// Get returns the interval stored under id.
func (x *Index[K]) Get(id K) (Interval[K], bool) {
	iv, ok := x.byID[id]
	return iv, ok
}

// position returns the insertion point of iv in key order.
func (x *Index[K]) position(iv Interval[K]) int {
	return sort.Search(len(x.items), func(i int) bool { return !x.items[i].less(iv) })
}

// lowerBound returns the first index whose start is >= t.
func (x *Index[K]) lowerBound(t float64) int {
	return sort.Search(len(x.items), func(i int) bool { return x.items[i].Start >= t })
}

// Insert adds an interval. It returns false, leaving the index unchanged,
// when the id is already present, the span is invalid, or the policy
// forbids the overlap with a neighbour.
func (x *Index[K]) Insert(id K, start, length float64, payload any) bool {
	if _, dup := x.byID[id]; dup {
		return false
	}
	if !finite(start) || !finite(length) || length < 0 {
		return false
	}
	iv := Interval[K]{Start: start, Length: length, ID: id, Payload: payload}
	i := x.position(iv)
	if x.policy == NonOverlapping {
		if i > 0 && x.items[i-1].End()-start > Epsilon {
			return false
		}
		if i < len(x.items) && iv.End()-x.items[i].Start > Epsilon {
			return false
		}
	}
	x.items = append(x.items, Interval[K]{})
	copy(x.items[i+1:], x.items[i:])
	x.items[i] = iv
	x.byID[id] = iv
	if length > x.maxLen {
		x.maxLen = length
	}
	return true
}

// Remove deletes the interval stored under id.
func (x *Index[K]) Remove(id K) bool {
	iv, ok := x.byID[id]
	if !ok {
		return false
	}
	i := x.position(iv)
	if i >= len(x.items) || x.items[i].ID != id {
		return false
	}
	x.items = append(x.items[:i], x.items[i+1:]...)
	delete(x.byID, id)
	if iv.Length >= x.maxLen {
		x.maxLen = 0
		for _, o := range x.items {
			if o.Length > x.maxLen {
				x.maxLen = o.Length
			}
		}
	}
	return true
}

// QueryRange calls visit, in key order, for every interval meeting
// [beg, end). Iteration stops when visit returns false.
func (x *Index[K]) QueryRange(beg, end float64, visit func(Interval[K]) bool) {
	if !(beg < end) {
		return
	}
	var i int
	if x.policy == NonOverlapping {
		// Neighbours overlap by at most Epsilon, so every interval after
		// one reaching beg ends later than beg-Epsilon.
		i = x.lowerBound(beg)
		for i > 0 && x.items[i-1].End() > beg-Epsilon {
			i--
		}
	} else {
		i = x.lowerBound(beg - x.maxLen)
	}
	for ; i < len(x.items) && x.items[i].Start < end; i++ {
		if x.items[i].End() > beg {
			if !visit(x.items[i]) {
				return
			}
		}
	}
}

// Range returns the intervals meeting [beg, end) in key order.
func (x *Index[K]) Range(beg, end float64) []Interval[K] {
	var out []Interval[K]
	x.QueryRange(beg, end, func(iv Interval[K]) bool {
		out = append(out, iv)
		return true
	})
	return out
}

// All calls visit for every interval in key order.
func (x *Index[K]) All(visit func(Interval[K]) bool) {
	for _, iv := range x.items {
		if !visit(iv) {
			return
		}
	}
}

// At returns the first interval, in key order, containing t.
func (x *Index[K]) At(t float64) (Interval[K], bool) {
	var hit Interval[K]
	found := false
	x.QueryRange(t, math.Nextafter(t, math.Inf(1)), func(iv Interval[K]) bool {
		hit, found = iv, true
		return false
	})
	return hit, found
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
