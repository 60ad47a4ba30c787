package interval

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(ivs []Interval[int]) []int {
	out := make([]int, 0, len(ivs))
	for _, iv := range ivs {
		out = append(out, iv.ID)
	}
	return out
}

func TestInsertRejectsOverlap(t *testing.T) {
	x := New[int](NonOverlapping)
	require.True(t, x.Insert(1, 0, 1, nil))
	require.True(t, x.Insert(2, 2, 1, nil))

	before := ids(x.Range(-10, 10))

	assert.False(t, x.Insert(3, 0.5, 1, nil), "overlaps predecessor")
	assert.False(t, x.Insert(4, 1.5, 1, nil), "overlaps successor")
	assert.False(t, x.Insert(5, -1, 5, nil), "covers both")
	assert.Equal(t, 2, x.Len())
	assert.Equal(t, before, ids(x.Range(-10, 10)))

	// touching neighbours and sub-epsilon overlap are accepted
	assert.True(t, x.Insert(6, 1, 1, nil))
	assert.True(t, x.Insert(7, 3-Epsilon/2, 1, nil))
}

func TestInsertRejectsInvalid(t *testing.T) {
	x := New[int](OverlapPermitted)
	assert.False(t, x.Insert(1, 0, -1, nil))
	assert.True(t, x.Insert(1, 0, 1, nil))
	assert.False(t, x.Insert(1, 5, 1, nil), "duplicate id")
}

func TestOverlapPermitted(t *testing.T) {
	x := New[int](OverlapPermitted)
	require.True(t, x.Insert(1, 0, 10, nil))
	require.True(t, x.Insert(2, 1, 1, nil))
	require.True(t, x.Insert(3, 5, 1, nil))

	// interval 1 starts long before the query but still covers it
	assert.Equal(t, []int{1, 3}, ids(x.Range(4.5, 5.5)))
	assert.Equal(t, []int{1, 2}, ids(x.Range(1.5, 2)))
}

func TestRemoveAndGet(t *testing.T) {
	x := New[string](NonOverlapping)
	x.Insert("a", 0, 1, "pa")
	x.Insert("b", 1, 1, "pb")

	iv, ok := x.Get("b")
	require.True(t, ok)
	assert.Equal(t, "pb", iv.Payload)

	assert.True(t, x.Remove("a"))
	assert.False(t, x.Remove("a"))
	_, ok = x.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, x.Len())

	// the freed span can be reused
	assert.True(t, x.Insert("c", 0, 1, nil))
}

func TestQueryRangeEdges(t *testing.T) {
	x := New[int](NonOverlapping)
	x.Insert(1, 0, 2, nil)
	x.Insert(2, 2, 2, nil)
	x.Insert(3, 5, 3, nil)

	assert.Equal(t, []int{1, 2}, ids(x.Range(1, 3)), "starts before beg")
	assert.Equal(t, []int{3}, ids(x.Range(6, 20)), "extends past end")
	assert.Equal(t, []int{2}, ids(x.Range(2, 2.5)))
	assert.Empty(t, x.Range(4, 5), "half-open on both sides")
	assert.Empty(t, x.Range(3, 3))

	iv, ok := x.At(5.5)
	require.True(t, ok)
	assert.Equal(t, 3, iv.ID)
	_, ok = x.At(4.5)
	assert.False(t, ok)
}

func TestQueryRangeBehindTolerableOverlap(t *testing.T) {
	x := New[int](NonOverlapping)
	require.True(t, x.Insert(1, 0, 10, nil))
	require.True(t, x.Insert(2, 10-5e-7, 0, nil), "within the overlap tolerance")
	require.True(t, x.Insert(3, 10-4e-7, 0, nil))

	assert.Equal(t, []int{1}, ids(x.Range(10-2e-7, 20)))
	iv, ok := x.At(10 - 1e-7)
	require.True(t, ok)
	assert.Equal(t, 1, iv.ID)
}

func TestQueryRangeMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		var want []Interval[int]
		cursor := 0.0
		for id := 0; id < 40; id++ {
			cursor += rng.Float64() * 2
			length := rng.Float64() * 3
			if id%7 == 0 {
				length = 0
			}
			want = append(want, Interval[int]{Start: cursor, Length: length, ID: id})
			cursor += length
		}

		x := New[int](NonOverlapping)
		for _, i := range rng.Perm(len(want)) {
			iv := want[i]
			require.True(t, x.Insert(iv.ID, iv.Start, iv.Length, nil))
		}

		for q := 0; q < 30; q++ {
			beg := rng.Float64()*cursor - 5
			end := beg + rng.Float64()*20
			var expect []int
			for _, iv := range want {
				if iv.Start < end && iv.Start+iv.Length > beg {
					expect = append(expect, iv.ID)
				}
			}
			sort.Ints(expect)
			got := ids(x.Range(beg, end))
			sort.Ints(got)
			if len(expect) == 0 {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, expect, got, "window [%v,%v)", beg, end)
			}
		}
	}
}

func TestQueryRangeStopsEarly(t *testing.T) {
	x := New[int](NonOverlapping)
	for i := 0; i < 5; i++ {
		x.Insert(i, float64(i), 1, nil)
	}
	n := 0
	x.QueryRange(0, 10, func(Interval[int]) bool {
		n++
		return n < 2
	})
	assert.Equal(t, 2, n)
}
