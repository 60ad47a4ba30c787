package event

import (
	"github.com/sirupsen/logrus"

	"github.com/langtech/transcriber/datamodel"
)

// TableBinding applies row requests published on a bus to a table.
type TableBinding struct {
	bus   *Bus
	table *datamodel.Table
	log   logrus.FieldLogger
}

// BindTable subscribes a binding for the row kinds. RowAdded with RID
// NoRow gets a fresh id from the table.
func BindTable(bus *Bus, table *datamodel.Table) *TableBinding {
	tb := &TableBinding{bus: bus, table: table, log: bus.log}
	bus.SubscribeAll(tb, KindRowAdded, KindRowUpdated, KindRowDeleted)
	return tb
}

func (tb *TableBinding) HandleEvent(e Event) {
	switch e := e.(type) {
	case RowAdded:
		id := e.RID
		if id == datamodel.NoRow {
			id = tb.table.NewRowID()
		}
		if err := tb.table.AddRecord(id, e.Data); err != nil {
			tb.log.WithFields(logrus.Fields{"rid": id.String(), "err": err}).Warn("add row rejected")
		}
	case RowUpdated:
		tb.table.UpdateRow(e.RID, e.Update)
	case RowDeleted:
		tb.table.DeleteRow(e.RID)
	}
}

// Unbind stops applying requests.
func (tb *TableBinding) Unbind() { tb.bus.UnsubscribeAll(tb) }
