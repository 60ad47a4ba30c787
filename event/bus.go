package event

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Handler receives events. Implementations must be comparable, in practice
// pointer types, since the bus tells subscribers apart with ==.
type Handler interface {
	HandleEvent(Event)
}

// Bus delivers events to subscribers of their kind. Publishing from a
// handler queues the new event; the queue is drained in FIFO order before
// the outermost Publish returns. A Bus is not safe for concurrent use.
type Bus struct {
	subs     map[Kind][]Handler
	queue    []Event
	draining bool
	log      logrus.FieldLogger
}

type Option func(*Bus)

// WithLogger sets the logger used to report failing handlers.
func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Bus) { b.log = l }
}

func NewBus(opts ...Option) *Bus {
	b := &Bus{subs: make(map[Kind][]Handler), log: logrus.StandardLogger()}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Subscribe registers h for kind. Subscribing twice has no effect.
func (b *Bus) Subscribe(kind Kind, h Handler) {
	if b.subscribed(kind, h) {
		return
	}
	b.subs[kind] = append(b.subs[kind], h)
}

// SubscribeAll registers h for several kinds.
func (b *Bus) SubscribeAll(h Handler, kinds ...Kind) {
	for _, k := range kinds {
		b.Subscribe(k, h)
	}
}

func (b *Bus) Unsubscribe(kind Kind, h Handler) {
	hs := b.subs[kind]
	for i, s := range hs {
		if s == h {
			b.subs[kind] = append(hs[:i:i], hs[i+1:]...)
			return
		}
	}
}

// UnsubscribeAll removes h from every kind.
func (b *Bus) UnsubscribeAll(h Handler) {
	for k := range b.subs {
		b.Unsubscribe(k, h)
	}
}

func (b *Bus) subscribed(kind Kind, h Handler) bool {
	for _, s := range b.subs[kind] {
		if s == h {
			return true
		}
	}
	return false
}

// Subscribers returns the number of handlers registered for kind.
func (b *Bus) Subscribers(kind Kind) int { return len(b.subs[kind]) }

// Publish queues e and, unless a publish is already in progress, delivers
// every queued event.
func (b *Bus) Publish(e Event) {
	b.queue = append(b.queue, e)
	if b.draining {
		return
	}
	b.draining = true
	defer func() { b.draining = false }()
	for len(b.queue) > 0 {
		e := b.queue[0]
		b.queue[0] = nil
		b.queue = b.queue[1:]
		b.deliver(e)
	}
	b.queue = nil
}

func (b *Bus) deliver(e Event) {
	kind := e.Kind()
	src := e.Source()
	hs := append([]Handler(nil), b.subs[kind]...)
	for _, h := range hs {
		if src != nil && h == src {
			continue
		}
		// removed by an earlier handler of this event
		if !b.subscribed(kind, h) {
			continue
		}
		b.call(h, e)
	}
}

func (b *Bus) call(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithFields(logrus.Fields{
				"event":   e.Kind().String(),
				"handler": fmt.Sprintf("%T", h),
				"panic":   r,
			}).Error("event handler panicked")
		}
	}()
	h.HandleEvent(e)
}
