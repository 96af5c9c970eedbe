package history

import (
	"sync"

	"github.com/google/uuid"
)

// MemoryHistory is an in-memory History.
type MemoryHistory struct {
	mu        sync.RWMutex
	entries   []Location
	index     int
	listeners []subscriber
	nextID    uint64
	destroyed bool
}

type subscriber struct {
	id uint64
	fn Listener
}

// NewMemoryHistory creates a history whose stack holds the given entries.
// The last entry is current. Without entries the stack starts at "/".
func NewMemoryHistory(initial ...string) *MemoryHistory {
	if len(initial) == 0 {
		initial = []string{"/"}
	}
	h := &MemoryHistory{
		entries: make([]Location, len(initial)),
		index:   len(initial) - 1,
	}
	for i, href := range initial {
		h.entries[i] = newLocation(href, State{Key: NewKey(), Index: i})
	}
	return h
}

// NewKey returns a fresh entry key.
func NewKey() string {
	return uuid.NewString()
}

// Location returns the current entry.
func (h *MemoryHistory) Location() Location {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.entries[h.index]
}

// Length returns the number of entries.
func (h *MemoryHistory) Length() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Entries returns a copy of the stack.
func (h *MemoryHistory) Entries() []Location {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Location, len(h.entries))
	copy(out, h.entries)
	return out
}

// Index returns the current position in the stack.
func (h *MemoryHistory) Index() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.index
}

// Subscribe registers fn and returns its unsubscribe.
func (h *MemoryHistory) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed {
		return func() {}
	}
	h.nextID++
	id := h.nextID
	h.listeners = append(h.listeners, subscriber{id: id, fn: fn})
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, s := range h.listeners {
			if s.id == id {
				h.listeners = append(h.listeners[:i:i], h.listeners[i+1:]...)
				return
			}
		}
	}
}

// Push appends a new entry and drops forward entries.
func (h *MemoryHistory) Push(href string, state State) {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return
	}
	if state.Key == "" {
		state.Key = NewKey()
	}
	state.Index = h.index + 1
	h.entries = append(h.entries[:h.index+1], newLocation(href, state))
	h.index++
	ev := Event{Location: h.entries[h.index], Action: ActionPush}
	h.mu.Unlock()

	h.notify(ev)
}

// Replace overwrites the current entry.
func (h *MemoryHistory) Replace(href string, state State) {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return
	}
	if state.Key == "" {
		state.Key = NewKey()
	}
	state.Index = h.index
	h.entries[h.index] = newLocation(href, state)
	ev := Event{Location: h.entries[h.index], Action: ActionReplace}
	h.mu.Unlock()

	h.notify(ev)
}

// Go moves delta entries, clamped to the stack. A move that lands on the
// current entry is not reported.
func (h *MemoryHistory) Go(delta int) {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return
	}
	target := h.index + delta
	if target < 0 {
		target = 0
	}
	if target > len(h.entries)-1 {
		target = len(h.entries) - 1
	}
	moved := target - h.index
	if moved == 0 {
		h.mu.Unlock()
		return
	}
	h.index = target

	action := ActionGo
	switch delta {
	case -1:
		action = ActionBack
	case 1:
		action = ActionForward
	}
	ev := Event{Location: h.entries[h.index], Action: action, Delta: moved}
	h.mu.Unlock()

	h.notify(ev)
}

// Back moves one entry back.
func (h *MemoryHistory) Back() { h.Go(-1) }

// Forward moves one entry forward.
func (h *MemoryHistory) Forward() { h.Go(1) }

// CanGoBack reports whether a previous entry exists.
func (h *MemoryHistory) CanGoBack() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.index > 0
}

// Destroy drops all listeners.
func (h *MemoryHistory) Destroy() {
	h.mu.Lock()
	h.destroyed = true
	h.listeners = nil
	h.mu.Unlock()
}

// notify delivers ev to a snapshot of the listeners, outside the lock.
func (h *MemoryHistory) notify(ev Event) {
	h.mu.RLock()
	subs := make([]subscriber, len(h.listeners))
	copy(subs, h.listeners)
	h.mu.RUnlock()

	for _, s := range subs {
		s.fn(ev)
	}
}

var _ History = (*MemoryHistory)(nil)
