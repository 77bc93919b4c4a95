package session

import (
	"sync"

	"github.com/aussiebroadwan/tillsession/pkg/identity"
)

// Subscription delivers identity changes in order. The first value received
// is the identity that was current when Subscribe was called.
//
// Each subscription buffers without bound so a slow reader never blocks the
// Manager.
type Subscription struct {
	ch     chan identity.Identity
	done   chan struct{}
	cancel func(*Subscription)

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []identity.Identity
	closed bool
	once   sync.Once
}

func newSubscription(initial identity.Identity, cancel func(*Subscription)) *Subscription {
	s := &Subscription{
		ch:     make(chan identity.Identity),
		done:   make(chan struct{}),
		cancel: cancel,
		queue:  []identity.Identity{initial},
	}
	s.cond = sync.NewCond(&s.mu)

	go s.run()
	return s
}

// Updates returns the delivery channel. It is closed after Close.
func (s *Subscription) Updates() <-chan identity.Identity { return s.ch }

// Close stops delivery and closes the Updates channel. Values not yet
// received are dropped. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel(s)
		}

		s.mu.Lock()
		s.closed = true
		s.cond.Signal()
		s.mu.Unlock()

		close(s.done)
	})
}

func (s *Subscription) push(id identity.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.queue = append(s.queue, id)
	s.cond.Signal()
}

func (s *Subscription) run() {
	defer close(s.ch)

	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		next := s.queue[0]
		s.queue[0] = identity.Identity{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.ch <- next:
		case <-s.done:
			return
		}
	}
}
