// Package eventmux fans a single ordered event stream out to any number of
// subscribers. Each subscriber owns a bounded backlog; when a slow consumer
// falls behind, further events are dropped for that consumer and a single
// overflow marker is queued in their place, so loss is always explicit.
package eventmux

import "sync"

// Mux broadcasts values of type T. Publish is called by exactly one
// goroutine (the topology event loop); Subscribe, Cancel and Close may be
// called concurrently from anywhere.
type Mux[T any] struct {
	overflow func() T

	mu      sync.Mutex
	subs    map[uint64]*subscriber[T]
	nextID  uint64
	backlog int
	closed  bool
}

type subscriber[T any] struct {
	ch chan T
	// lost is set when the backlog was full and an event was discarded.
	// No further events are delivered until the overflow marker fits.
	lost bool
}

// Subscription is a handle to one subscriber's event channel. The channel
// closes when the subscription is cancelled or the mux shuts down.
type Subscription[T any] struct {
	ch     <-chan T
	cancel func()
	once   sync.Once
}

// Events returns the subscriber's receive channel.
func (s *Subscription[T]) Events() <-chan T {
	return s.ch
}

// Cancel detaches the subscriber and closes its channel.
func (s *Subscription[T]) Cancel() {
	s.once.Do(s.cancel)
}

// New creates a mux whose subscribers buffer up to backlog events.
// overflow constructs the marker delivered in place of discarded events.
func New[T any](backlog int, overflow func() T) *Mux[T] {
	if backlog <= 0 {
		panic("eventmux: backlog must be > 0")
	}
	return &Mux[T]{
		overflow: overflow,
		subs:     make(map[uint64]*subscriber[T]),
		backlog:  backlog,
	}
}

// Subscribe attaches a new subscriber receiving all events published from
// this point on. Returns nil if the mux has already shut down.
func (m *Mux[T]) Subscribe() *Subscription[T] {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	id := m.nextID
	m.nextID++
	sub := &subscriber[T]{ch: make(chan T, m.backlog)}
	m.subs[id] = sub

	return &Subscription[T]{
		ch: sub.ch,
		cancel: func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if _, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(sub.ch)
			}
		},
	}
}

// Publish delivers ev to every subscriber that has room. A subscriber whose
// backlog is full misses the event and owes an overflow marker; events keep
// being dropped for it until the marker has been enqueued.
func (m *Mux[T]) Publish(ev T) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	for _, sub := range m.subs {
		if sub.lost {
			select {
			case sub.ch <- m.overflow():
				sub.lost = false
			default:
				// Still jammed: the event is lost, the marker is still owed.
				continue
			}
		}
		select {
		case sub.ch <- ev:
		default:
			sub.lost = true
		}
	}
}

// Close ends every subscriber's stream. Further Publish calls are no-ops
// and further Subscribe calls return nil.
func (m *Mux[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true

	for id, sub := range m.subs {
		delete(m.subs, id)
		close(sub.ch)
	}
}

// Len reports the current number of subscribers.
func (m *Mux[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}
