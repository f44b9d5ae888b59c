package arena

import (
	"go.uber.org/zap"
)

// Observer sees every event the room emits. Implementations must not block:
// they run on the room goroutine.
type Observer interface {
	Observe(ev Event)
}

// registry is the fan-out side of the room: one outbox per connection.
type registry struct {
	outboxes  map[ConnID]chan<- Event
	observers []Observer
	logger    *zap.Logger
}

func newRegistry(logger *zap.Logger) *registry {
	return &registry{outboxes: make(map[ConnID]chan<- Event), logger: logger}
}

func (r *registry) add(id ConnID, out chan<- Event) bool {
	if _, ok := r.outboxes[id]; ok {
		return false
	}
	r.outboxes[id] = out
	return true
}

// remove closes and forgets the outbox of id, if any.
func (r *registry) remove(id ConnID) {
	if out, ok := r.outboxes[id]; ok {
		close(out)
		delete(r.outboxes, id)
	}
}

func (r *registry) len() int { return len(r.outboxes) }

func (r *registry) unicast(id ConnID, name string, data any) {
	ev := Event{Name: name, Data: data, Target: id}
	if out, ok := r.outboxes[id]; ok {
		r.deliver(id, out, ev)
	}
	r.notify(ev)
}

func (r *registry) broadcast(name string, data any) {
	ev := Event{Name: name, Data: data}
	for id, out := range r.outboxes {
		r.deliver(id, out, ev)
	}
	r.notify(ev)
}

// deliver never blocks. A client whose outbox is full is dropped; its
// transport sees the closed outbox and disconnects.
func (r *registry) deliver(id ConnID, out chan<- Event, ev Event) {
	select {
	case out <- ev:
	default:
		close(out)
		delete(r.outboxes, id)
		r.logger.Warn("arena_client_dropped", zap.String("conn_id", string(id)), zap.String("event", ev.Name))
	}
}

func (r *registry) notify(ev Event) {
	for _, o := range r.observers {
		o.Observe(ev)
	}
}

func (r *registry) closeAll() {
	for id, out := range r.outboxes {
		close(out)
		delete(r.outboxes, id)
	}
}
