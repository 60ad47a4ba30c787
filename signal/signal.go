// Package signal provides a typed multi-subscriber notification used for
// table row changes, lane selection and player position updates.
package signal

import (
	"github.com/sirupsen/logrus"
)

// Log receives reports about panicking slots. Replace it to route them
// elsewhere.
var Log logrus.FieldLogger = logrus.StandardLogger()

// Conn identifies one connected slot.
type Conn uint64

type slot[T any] struct {
	id Conn
	fn func(T)
}

// Signal delivers values of type T to connected slots in connection order.
// The zero value is ready to use. A Signal is not safe for concurrent use.
type Signal[T any] struct {
	slots []slot[T]
	next  Conn
}

// Connect adds fn and returns the handle needed to disconnect it.
func (s *Signal[T]) Connect(fn func(T)) Conn {
	s.next++
	s.slots = append(s.slots, slot[T]{id: s.next, fn: fn})
	return s.next
}

// Disconnect removes the slot; unknown handles are ignored.
func (s *Signal[T]) Disconnect(c Conn) {
	for i, sl := range s.slots {
		if sl.id == c {
			s.slots = append(s.slots[:i:i], s.slots[i+1:]...)
			return
		}
	}
}

// DisconnectAll drops every slot.
func (s *Signal[T]) DisconnectAll() { s.slots = nil }

// Len reports the number of connected slots.
func (s *Signal[T]) Len() int { return len(s.slots) }

// Emit calls every slot connected at the time of the call. Slots connected
// or disconnected during emission take effect from the next Emit. A
// panicking slot is logged and the remaining slots still run.
func (s *Signal[T]) Emit(v T) {
	slots := s.slots
	for _, sl := range slots {
		call(sl, v)
	}
}

func call[T any](sl slot[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			Log.WithFields(logrus.Fields{"slot": sl.id, "panic": r}).Warn("signal slot panicked")
		}
	}()
	sl.fn(v)
}
