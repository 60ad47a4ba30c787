// Package datamodel holds the flat row store shared by every view of a
// transcription session.
package datamodel

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/langtech/transcriber/signal"
)

var (
	ErrRowExists     = errors.New("row already exists")
	ErrStaleRow      = errors.New("row id is from an older generation")
	ErrCellCount     = errors.New("cell count does not match columns")
	ErrUnknownColumn = errors.New("unknown column")
)

// Added is emitted after a row has been inserted.
type Added struct {
	ID    RowID
	Cells []any
}

// Updated is emitted after a row changed. Old and New are full copies of
// the row before and after the update; Update is the request as given.
type Updated struct {
	ID     RowID
	Old    []any
	New    []any
	Update map[string]any
}

// Deleted is emitted after a row has been removed; Cells holds its last
// content.
type Deleted struct {
	ID    RowID
	Cells []any
}

// Table stores rows of cells under fixed columns.
type Table struct {
	columns []string
	index   map[string]int
	rows    map[RowID][]any
	ids     *idGen

	RowAdded   signal.Signal[Added]
	RowUpdated signal.Signal[Updated]
	RowDeleted signal.Signal[Deleted]
}

// NewTable returns an empty table with the given column names.
func NewTable(columns ...string) *Table {
	t := &Table{
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
		rows:    make(map[RowID][]any),
		ids:     newIDGen(),
	}
	for i, c := range columns {
		t.index[c] = i
	}
	return t
}

// Columns returns the column names in order.
func (t *Table) Columns() []string { return append([]string(nil), t.columns...) }

// Column returns the position of a column.
func (t *Table) Column(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// NewRowID reserves an id for a row that will be added later, typically
// through an add request published on the event bus.
func (t *Table) NewRowID() RowID { return t.ids.alloc() }

// AddRow stores cells under a fresh id. Missing trailing cells are nil and
// extra cells are dropped.
func (t *Table) AddRow(cells []any) RowID {
	id := t.ids.alloc()
	t.put(id, t.normalize(cells))
	return id
}

// InsertRow stores cells under a caller-chosen id.
func (t *Table) InsertRow(id RowID, cells []any) error {
	if len(cells) != len(t.columns) {
		return fmt.Errorf("insert row %s: %w (%d != %d)", id, ErrCellCount, len(cells), len(t.columns))
	}
	if _, ok := t.rows[id]; ok {
		return fmt.Errorf("insert row %s: %w", id, ErrRowExists)
	}
	if !t.ids.current(id) {
		if cur, ok := t.ids.latest(id.Slot()); ok {
			if id.Generation() < cur.Generation() {
				return fmt.Errorf("insert row %s: %w", id, ErrStaleRow)
			}
			if _, live := t.rows[cur]; live {
				return fmt.Errorf("insert row %s: %w (slot held by %s)", id, ErrRowExists, cur)
			}
		}
		if !t.ids.claim(id) {
			return fmt.Errorf("insert row %s: %w", id, ErrStaleRow)
		}
	}
	t.put(id, t.normalize(cells))
	return nil
}

// AddRecord inserts a row given as a column→value map. Columns absent from
// data are nil.
func (t *Table) AddRecord(id RowID, data map[string]any) error {
	cells := make([]any, len(t.columns))
	for i, c := range t.columns {
		cells[i] = data[c]
	}
	return t.InsertRow(id, cells)
}

func (t *Table) normalize(cells []any) []any {
	row := make([]any, len(t.columns))
	for i := range row {
		if i < len(cells) {
			row[i] = deepCopy(cells[i])
		}
	}
	return row
}

func (t *Table) put(id RowID, row []any) {
	t.rows[id] = row
	t.RowAdded.Emit(Added{ID: id, Cells: copyRow(row)})
}

// DeleteRow removes a row. Unknown ids are ignored.
func (t *Table) DeleteRow(id RowID) bool {
	row, ok := t.rows[id]
	if !ok {
		return false
	}
	delete(t.rows, id)
	t.ids.release(id)
	t.RowDeleted.Emit(Deleted{ID: id, Cells: row})
	return true
}

// Clear deletes every row, emitting a notification for each.
func (t *Table) Clear() {
	for _, id := range t.sortedIDs() {
		t.DeleteRow(id)
	}
}

// Has reports whether the row exists.
func (t *Table) Has(id RowID) bool {
	_, ok := t.rows[id]
	return ok
}

// GetCell returns a cell, or nil for an unknown row or column.
func (t *Table) GetCell(id RowID, field string) any {
	row, ok := t.rows[id]
	if !ok {
		return nil
	}
	i, ok := t.index[field]
	if !ok {
		return nil
	}
	return deepCopy(row[i])
}

// GetRow returns a copy of the row's cells.
func (t *Table) GetRow(id RowID) ([]any, bool) {
	row, ok := t.rows[id]
	if !ok {
		return nil, false
	}
	return copyRow(row), true
}

// Record returns the row as a column→value map.
func (t *Table) Record(id RowID) (map[string]any, bool) {
	row, ok := t.rows[id]
	if !ok {
		return nil, false
	}
	out := make(map[string]any, len(row))
	for i, c := range t.columns {
		out[c] = deepCopy(row[i])
	}
	return out, true
}

// UpdateRow merges update into the row and reports whether anything
// changed. See merge for the rules.
func (t *Table) UpdateRow(id RowID, update map[string]any) bool {
	row, ok := t.rows[id]
	if !ok {
		return false
	}
	old := copyRow(row)
	for i, c := range t.columns {
		if v, ok := update[c+ReplaceSuffix]; ok {
			row[i] = deepCopy(v)
			continue
		}
		if v, ok := update[c]; ok {
			row[i] = merge(row[i], v)
		}
	}
	if reflect.DeepEqual(old, row) {
		return false
	}
	t.RowUpdated.Emit(Updated{ID: id, Old: old, New: copyRow(row), Update: update})
	return true
}

// Row returns a handle on the row.
func (t *Table) Row(id RowID) Row { return Row{table: t, id: id} }

// Find returns, in id order, the rows accepted by pred. A nil pred
// accepts every row.
func (t *Table) Find(pred func(Row) bool) []RowID {
	var out []RowID
	for _, id := range t.sortedIDs() {
		if pred == nil || pred(t.Row(id)) {
			out = append(out, id)
		}
	}
	return out
}

// FindBy returns the rows whose field value is accepted by match.
func (t *Table) FindBy(field string, match func(any) bool) []RowID {
	i, ok := t.index[field]
	if !ok {
		return nil
	}
	var out []RowID
	for _, id := range t.sortedIDs() {
		if match(t.rows[id][i]) {
			out = append(out, id)
		}
	}
	return out
}

// ForEach calls visit for every row accepted by filter (nil accepts all),
// in id order. Rows deleted by visit are skipped.
func (t *Table) ForEach(visit func(Row), filter func(Row) bool) {
	for _, id := range t.sortedIDs() {
		if _, ok := t.rows[id]; !ok {
			continue
		}
		r := t.Row(id)
		if filter == nil || filter(r) {
			visit(r)
		}
	}
}

func (t *Table) sortedIDs() []RowID {
	ids := make([]RowID, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func copyRow(row []any) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = deepCopy(v)
	}
	return out
}
