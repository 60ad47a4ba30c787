package datamodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSegments() *Table {
	return NewTable("offset", "length", "speaker", "meta")
}

func TestAddGetDelete(t *testing.T) {
	tb := newSegments()
	var added []RowID
	var deleted []Deleted
	tb.RowAdded.Connect(func(a Added) { added = append(added, a.ID) })
	tb.RowDeleted.Connect(func(d Deleted) { deleted = append(deleted, d) })

	id := tb.AddRow([]any{1.5, 2.0, "A"})
	assert.Equal(t, []RowID{id}, added)
	assert.Equal(t, 1.5, tb.GetCell(id, "offset"))
	assert.Nil(t, tb.GetCell(id, "meta"), "missing trailing cell")
	assert.Nil(t, tb.GetCell(id, "nope"))

	row, ok := tb.GetRow(id)
	require.True(t, ok)
	row[0] = 99.0
	assert.Equal(t, 1.5, tb.GetCell(id, "offset"), "GetRow returns a copy")

	assert.True(t, tb.DeleteRow(id))
	assert.False(t, tb.DeleteRow(id))
	require.Len(t, deleted, 1)
	assert.Equal(t, "A", deleted[0].Cells[2])
	assert.Nil(t, tb.GetCell(id, "offset"))
	assert.Equal(t, 0, tb.Len())
}

func TestUpdateMergesMaps(t *testing.T) {
	tb := newSegments()
	id := tb.AddRow([]any{0.0, 1.0, "A", map[string]any{"a": 1, "b": map[string]any{"x": 1, "y": 2}}})

	var ups []Updated
	tb.RowUpdated.Connect(func(u Updated) { ups = append(ups, u) })

	changed := tb.UpdateRow(id, map[string]any{
		"length": 3.0,
		"meta":   map[string]any{"b": map[string]any{"y": 5}, "c": 7},
	})
	require.True(t, changed)
	assert.Equal(t, map[string]any{
		"a": 1,
		"b": map[string]any{"x": 1, "y": 5},
		"c": 7,
	}, tb.GetCell(id, "meta"))
	require.Len(t, ups, 1)
	assert.Equal(t, 1.0, ups[0].Old[1])
	assert.Equal(t, 3.0, ups[0].New[1])

	// same values again: no change, no notification
	assert.False(t, tb.UpdateRow(id, map[string]any{"length": 3.0, "speaker": "A"}))
	assert.Len(t, ups, 1)

	assert.False(t, tb.UpdateRow(id, map[string]any{"unknown": 1}))
	assert.False(t, tb.UpdateRow(NoRow, map[string]any{"length": 1.0}))
}

func TestUpdateReplaceSuffix(t *testing.T) {
	tb := newSegments()
	id := tb.AddRow([]any{0.0, 1.0, "A", map[string]any{"a": 1, "b": map[string]any{"x": 1}}})

	require.True(t, tb.UpdateRow(id, map[string]any{"meta!": map[string]any{"z": 0}}))
	assert.Equal(t, map[string]any{"z": 0}, tb.GetCell(id, "meta"))

	require.True(t, tb.UpdateRow(id, map[string]any{"meta": map[string]any{"b!": map[string]any{"q": 1}}}))
	assert.Equal(t, map[string]any{"z": 0, "b": map[string]any{"q": 1}}, tb.GetCell(id, "meta"))
}

func TestUpdateDoesNotAliasCaller(t *testing.T) {
	tb := newSegments()
	id := tb.AddRow([]any{0.0, 1.0, "A", nil})
	m := map[string]any{"k": "v"}
	tb.UpdateRow(id, map[string]any{"meta": m})
	m["k"] = "changed"
	assert.Equal(t, map[string]any{"k": "v"}, tb.GetCell(id, "meta"))
}

func TestFindAndForEachInIDOrder(t *testing.T) {
	tb := newSegments()
	a := tb.AddRow([]any{0.0, 1.0, "A"})
	b := tb.AddRow([]any{1.0, 1.0, "B"})
	c := tb.AddRow([]any{2.0, 1.0, "A"})

	assert.Equal(t, []RowID{a, c}, tb.FindBy("speaker", func(v any) bool { return v == "A" }))
	assert.Equal(t, []RowID{b}, tb.Find(func(r Row) bool { return r.String("speaker") == "B" }))
	assert.Equal(t, []RowID{a, b, c}, tb.Find(nil))

	var seen []RowID
	tb.ForEach(func(r Row) {
		seen = append(seen, r.ID())
		tb.DeleteRow(c)
	}, func(r Row) bool {
		f, _ := r.Float("offset")
		return f < 5
	})
	assert.Equal(t, []RowID{a, b}, seen, "row deleted during iteration is skipped")
}

func TestRecycledSlotGetsNewGeneration(t *testing.T) {
	tb := newSegments()
	a := tb.AddRow([]any{0.0, 1.0, "A"})
	require.True(t, tb.DeleteRow(a))

	b := tb.AddRow([]any{5.0, 1.0, "B"})
	assert.Equal(t, a.Slot(), b.Slot())
	assert.NotEqual(t, a, b)
	assert.Equal(t, uint32(1), b.Generation())

	// a stale handle cannot reach the new row
	assert.False(t, tb.UpdateRow(a, map[string]any{"speaker": "X"}))
	assert.Nil(t, tb.GetCell(a, "speaker"))
	assert.False(t, tb.Row(a).Exists())
	assert.Equal(t, "B", tb.Row(b).String("speaker"))

	err := tb.InsertRow(a, []any{0.0, 1.0, "A", nil})
	assert.ErrorIs(t, err, ErrStaleRow)
}

func TestDeletedIDCannotBeInsertedAgain(t *testing.T) {
	tb := newSegments()
	a := tb.AddRow([]any{0.0, 1.0, "A"})
	require.True(t, tb.DeleteRow(a))

	err := tb.InsertRow(a, []any{0.0, 1.0, "A", nil})
	assert.ErrorIs(t, err, ErrStaleRow)
	assert.Zero(t, tb.Len())

	b := tb.AddRow([]any{5.0, 1.0, "B"})
	assert.Equal(t, a.Slot(), b.Slot())
	assert.Equal(t, 1, tb.Len())

	// a newer generation of a held slot is refused too
	err = tb.InsertRow(makeRowID(b.Slot(), b.Generation()+1), []any{0.0, 1.0, "C", nil})
	assert.ErrorIs(t, err, ErrRowExists)
	assert.Equal(t, 1, tb.Len())
}

func TestInsertRowWithChosenID(t *testing.T) {
	tb := newSegments()
	require.NoError(t, tb.InsertRow(makeRowID(3, 0), []any{0.0, 1.0, "A", nil}))

	err := tb.InsertRow(makeRowID(3, 0), []any{0.0, 1.0, "A", nil})
	assert.ErrorIs(t, err, ErrRowExists)
	assert.ErrorIs(t, tb.InsertRow(makeRowID(4, 0), []any{1.0}), ErrCellCount)

	// fresh ids never collide with the claimed one
	seen := map[RowID]bool{makeRowID(3, 0): true}
	for i := 0; i < 6; i++ {
		id := tb.AddRow([]any{float64(i), 1.0, "B"})
		assert.False(t, seen[id], "id %s handed out twice", id)
		seen[id] = true
	}
}

func TestReservedIDAndRecord(t *testing.T) {
	tb := newSegments()
	id := tb.NewRowID()
	assert.False(t, tb.Has(id))
	require.NoError(t, tb.AddRecord(id, map[string]any{"offset": 2.0, "speaker": "C"}))

	rec, ok := tb.Record(id)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"offset": 2.0, "length": nil, "speaker": "C", "meta": nil}, rec)

	r := tb.Row(id)
	assert.True(t, r.Set("length", 4))
	n, ok := r.Int("length")
	assert.True(t, ok)
	assert.Equal(t, 4, n)

	other := tb.NewRowID()
	assert.NotEqual(t, id, other)
}

func TestClearNotifiesEveryRow(t *testing.T) {
	tb := newSegments()
	tb.AddRow([]any{0.0})
	tb.AddRow([]any{1.0})
	n := 0
	tb.RowDeleted.Connect(func(Deleted) { n++ })
	tb.Clear()
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, tb.Len())
}

func TestRowIDString(t *testing.T) {
	assert.Equal(t, "7", makeRowID(7, 0).String())
	assert.Equal(t, "7.2", makeRowID(7, 2).String())
	assert.Equal(t, "none", NoRow.String())
}
