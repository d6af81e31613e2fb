package store

import (
	"sync"

	"github.com/pruebachat/chatcore/internal/models"
)

// hub fans full snapshots out to subscribers. Each subscriber gets a
// buffered channel of capacity 1 with latest-wins delivery: a slow consumer
// skips intermediate snapshots and wakes up on the newest one, which is
// always a superset of what it missed (the log is append-only and every
// emission is the complete view).
type hub struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
}

func newHub() *hub {
	return &hub{subs: make(map[uint64]*Subscription)}
}

// Subscription is one live registration with the snapshot hub.
type Subscription struct {
	id  uint64
	ch  chan []models.Message
	hub *hub

	closeOnce sync.Once
}

// Updates delivers full ordered snapshots. The channel is closed when the
// subscription is closed; no emissions follow Close.
func (s *Subscription) Updates() <-chan []models.Message {
	return s.ch
}

// Close releases the hub registration. Idempotent and safe to call from any
// goroutine; a permanent listener leak is the failure mode this guards.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.hub.unregister(s)
	})
}

func (h *hub) register() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscription{
		id:  h.nextID,
		ch:  make(chan []models.Message, 1),
		hub: h,
	}
	h.nextID++
	h.subs[sub.id] = sub
	return sub
}

func (h *hub) unregister(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub.id]; ok {
		delete(h.subs, sub.id)
		close(sub.ch)
	}
}

// publish pushes a snapshot to every subscriber. Holding the lock for the
// whole fanout keeps emissions totally ordered within each subscription:
// two publishes can never interleave per channel.
func (h *hub) publish(snapshot []models.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		sendLatest(sub.ch, snapshot)
	}
}

// sendLatest is the latest-wins delivery primitive: if the buffer is full,
// the stale snapshot is dropped in favor of the new one. Never blocks.
func sendLatest(ch chan []models.Message, snapshot []models.Message) {
	select {
	case ch <- snapshot:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// count reports the number of live registrations. Used by tests to prove
// teardown releases the listener.
func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
