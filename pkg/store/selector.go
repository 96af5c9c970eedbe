package store

import "sync"

// Select subscribes fn to the slice of s chosen by sel. fn fires only when
// the selected value changes structurally, and receives a value that
// shares every unchanged subtree with the previous one.
func Select[T, S any](s *Store[T], sel func(T) S, fn func(S)) (unsubscribe func()) {
	selector := NewSelector(s, sel)
	unsub := selector.Subscribe(fn)
	return func() {
		unsub()
		selector.Close()
	}
}

// Selector is a derived, structurally shared view of a Store.
type Selector[T, S any] struct {
	sel   func(T) S
	unsub func()

	mu    sync.RWMutex
	value S

	out *Store[S]
}

// NewSelector derives a view of s. Call Close to detach it.
func NewSelector[T, S any](s *Store[T], sel func(T) S) *Selector[T, S] {
	initial := sel(s.Get())
	x := &Selector[T, S]{
		sel:   sel,
		value: initial,
		out:   New(initial),
	}
	x.unsub = s.Subscribe(x.onCommit)
	return x
}

func (x *Selector[T, S]) onCommit(state T) {
	next := x.sel(state)

	x.mu.Lock()
	shared, same := ReplaceEqualDeep(x.value, next)
	if same {
		x.mu.Unlock()
		return
	}
	x.value = shared
	x.mu.Unlock()

	x.out.Set(shared)
}

// Get returns the current selected value.
func (x *Selector[T, S]) Get() S {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.value
}

// Subscribe registers fn for structural changes of the selected value.
func (x *Selector[T, S]) Subscribe(fn func(S)) (unsubscribe func()) {
	return x.out.Subscribe(fn)
}

// Close detaches the selector from its store.
func (x *Selector[T, S]) Close() {
	if x.unsub != nil {
		x.unsub()
	}
}
