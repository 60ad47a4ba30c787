package datamodel

import (
	"fmt"
	"strconv"
)

// Row is a lightweight handle on one row of a table. It stays valid after
// the row is deleted; accessors then return zero values.
type Row struct {
	table *Table
	id    RowID
}

func (r Row) ID() RowID { return r.id }

// Exists reports whether the row is still in the table.
func (r Row) Exists() bool { return r.table != nil && r.table.Has(r.id) }

// Value returns a copy of a cell.
func (r Row) Value(field string) any {
	if r.table == nil {
		return nil
	}
	return r.table.GetCell(r.id, field)
}

// Set updates one cell through the table, so listeners are notified.
func (r Row) Set(field string, v any) bool {
	if r.table == nil {
		return false
	}
	return r.table.UpdateRow(r.id, map[string]any{field + ReplaceSuffix: v})
}

// Float returns a numeric cell as float64.
func (r Row) Float(field string) (float64, bool) {
	return AsFloat(r.Value(field))
}

// String returns a cell formatted as text; nil cells are empty.
func (r Row) String(field string) string {
	switch v := r.Value(field).(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Int returns a numeric cell truncated to int.
func (r Row) Int(field string) (int, bool) {
	f, ok := r.Float(field)
	return int(f), ok
}

// AsFloat converts the numeric cell types used by the store.
func AsFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint32:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}
