package pool

import "sync"

// Event is delivered to a subscriber on every admitted push, or as the
// single terminal event a Shutdown produces.
type Event struct {
	Terminal bool
}

// Subscription is a bounded FIFO event queue guarded by a mutex and
// condition variable: Wait blocks until an event is enqueued or the pool
// shuts down. Shutdown must be able to interrupt any waiter.
type Subscription struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Event
	capacity int
	closed   bool
}

func newSubscription(capacity int) *Subscription {
	s := &Subscription{capacity: capacity}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Wait blocks until an event is available and returns it. The second
// return value is false only once the subscription has delivered its
// terminal event and drained -- callers must treat that as "stop".
func (s *Subscription) Wait() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 {
		if s.closed {
			return Event{}, false
		}
		s.cond.Wait()
	}
	e := s.queue[0]
	s.queue = s.queue[1:]
	if e.Terminal {
		s.closed = true
		s.queue = nil
	}
	return e, true
}

func (s *Subscription) enqueue(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.capacity > 0 && len(s.queue) >= s.capacity {
		// Drop the oldest: a subscriber that falls behind only needs to
		// know *that* something changed, not every intermediate state.
		s.queue = s.queue[1:]
	}
	s.queue = append(s.queue, e)
	s.cond.Signal()
}

// Subscribe registers a new subscriber with a bounded event queue and
// returns it. Queue capacity <= 0 means unbounded.
func (p *Pool) Subscribe(capacity int) *Subscription {
	s := newSubscription(capacity)
	p.subMu.Lock()
	p.subs = append(p.subs, s)
	p.subMu.Unlock()
	return s
}

func (p *Pool) notifyAll() {
	p.subMu.Lock()
	subs := append([]*Subscription(nil), p.subs...)
	p.subMu.Unlock()
	for _, s := range subs {
		s.enqueue(Event{})
	}
}

// Shutdown delivers a terminal event to every subscriber, waking any
// blocked Wait call exactly once.
func (p *Pool) Shutdown() {
	p.subMu.Lock()
	subs := append([]*Subscription(nil), p.subs...)
	p.subMu.Unlock()
	for _, s := range subs {
		s.enqueue(Event{Terminal: true})
	}
}
