package store

import (
	"sync"
)

// Store is an observable value.
type Store[T any] struct {
	// mu protects value and queue ordering.
	mu    sync.RWMutex
	value T

	// subMu protects subs.
	subMu  sync.RWMutex
	subs   []subscription[T]
	nextID uint64

	// qmu protects the delivery queue.
	qmu        sync.Mutex
	queue      []T
	draining   bool
	batchDepth int
	batchDirty bool
}

type subscription[T any] struct {
	id uint64
	fn func(T)
}

// New creates a store holding initial.
func New[T any](initial T) *Store[T] {
	return &Store[T]{value: initial}
}

// Get returns the current value.
func (s *Store[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set commits value and notifies subscribers.
func (s *Store[T]) Set(value T) {
	s.mu.Lock()
	s.value = value
	s.enqueue(value)
	s.mu.Unlock()

	s.drain()
}

// Update commits fn(current) and returns the committed value. fn runs
// under the store lock and must not call back into the store.
func (s *Store[T]) Update(fn func(T) T) T {
	s.mu.Lock()
	next := fn(s.value)
	s.value = next
	s.enqueue(next)
	s.mu.Unlock()

	s.drain()
	return next
}

// Subscribe registers fn for every commit and returns its unsubscribe.
// fn is not called with the current value.
func (s *Store[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	s.subMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription[T]{id: id, fn: fn})
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Batch runs fn and delivers a single notification with the final value
// once the outermost batch completes. Batches nest.
func (s *Store[T]) Batch(fn func()) {
	s.qmu.Lock()
	s.batchDepth++
	s.qmu.Unlock()

	defer func() {
		s.qmu.Lock()
		s.batchDepth--
		flush := s.batchDepth == 0 && s.batchDirty
		if flush {
			s.batchDirty = false
		}
		s.qmu.Unlock()

		if flush {
			s.mu.Lock()
			s.enqueue(s.value)
			s.mu.Unlock()
			s.drain()
		}
	}()

	fn()
}

// enqueue records value for delivery. Callers hold mu, which fixes the
// queue order to the commit order.
func (s *Store[T]) enqueue(value T) {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	if s.batchDepth > 0 {
		s.batchDirty = true
		return
	}
	s.queue = append(s.queue, value)
}

// drain delivers queued values unless another call is already delivering.
// The active drainer picks up values enqueued by re-entrant commits.
func (s *Store[T]) drain() {
	s.qmu.Lock()
	if s.draining {
		s.qmu.Unlock()
		return
	}
	s.draining = true
	s.qmu.Unlock()

	for {
		s.qmu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.qmu.Unlock()
			return
		}
		value := s.queue[0]
		var zero T
		s.queue[0] = zero
		s.queue = s.queue[1:]
		s.qmu.Unlock()

		s.notify(value)
	}
}

// notify calls a snapshot of the subscribers without holding locks.
func (s *Store[T]) notify(value T) {
	s.subMu.RLock()
	subs := make([]subscription[T], len(s.subs))
	copy(subs, s.subs)
	s.subMu.RUnlock()

	for _, sub := range subs {
		sub.fn(value)
	}
}
