package router

// EventType names a router event.
type EventType string

const (
	// EventBeforeNavigate fires before a navigation writes history.
	EventBeforeNavigate EventType = "onBeforeNavigate"
	// EventBeforeLoad fires when a load starts.
	EventBeforeLoad EventType = "onBeforeLoad"
	// EventLoad fires when a load commits.
	EventLoad EventType = "onLoad"
	// EventResolved fires after a commit, once the location is resolved.
	EventResolved EventType = "onResolved"
	// EventMatchSettled fires once per load attempt that ends in success,
	// error or not-found.
	EventMatchSettled EventType = "onMatchSettled"
	// EventMatchJoined fires when a load joins a loader already in flight.
	EventMatchJoined EventType = "onMatchJoined"
	// EventCacheEvicted fires when a sweep removes cached matches.
	EventCacheEvicted EventType = "onCacheEvicted"
)

// Event is delivered to router event listeners.
type Event struct {
	Type EventType

	FromLocation *ParsedLocation
	ToLocation   ParsedLocation
	PathChanged  bool
	HrefChanged  bool

	// Match is set for match events.
	Match *RouteMatch
	// Matches lists evicted matches.
	Matches []*RouteMatch
}

type listener struct {
	id uint64
	fn func(Event)
}

// On registers fn for events of type t and returns its unsubscribe.
func (r *Router) On(t EventType, fn func(Event)) (unsubscribe func()) {
	r.eventsMu.Lock()
	defer r.eventsMu.Unlock()
	r.nextListener++
	id := r.nextListener
	r.listeners[t] = append(r.listeners[t], listener{id: id, fn: fn})

	return func() {
		r.eventsMu.Lock()
		defer r.eventsMu.Unlock()
		ls := r.listeners[t]
		for i, l := range ls {
			if l.id == id {
				r.listeners[t] = append(ls[:i:i], ls[i+1:]...)
				return
			}
		}
	}
}

func (r *Router) emit(ev Event) {
	r.eventsMu.RLock()
	ls := make([]listener, len(r.listeners[ev.Type]))
	copy(ls, r.listeners[ev.Type])
	r.eventsMu.RUnlock()

	for _, l := range ls {
		l.fn(ev)
	}
}

// locationEvent builds a navigation event between the resolved location
// and to.
func (r *Router) locationEvent(t EventType, from *ParsedLocation, to ParsedLocation) Event {
	ev := Event{Type: t, FromLocation: from, ToLocation: to, PathChanged: true, HrefChanged: true}
	if from != nil {
		ev.PathChanged = from.Pathname != to.Pathname
		ev.HrefChanged = from.Href != to.Href
	}
	return ev
}
