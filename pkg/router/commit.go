package router

import (
	"errors"
	"time"
)

// commit publishes the run's chain as the committed matches. An early
// commit shows pending components while loads continue; the final commit
// settles the router and sweeps the cache.
func (r *Router) commit(run *loadRun, final bool) bool {
	var (
		committed bool
		chain     []*RouteMatch
		dropped   []*RouteMatch
		evicted   []*RouteMatch
	)
	now := r.opts.Now()
	loc := run.location

	r.store.Update(func(s RouterState) RouterState {
		if !r.current(run.epoch) {
			return s
		}
		committed = true

		chain = s.PendingMatches
		if chain == nil {
			chain = s.Matches
		}
		if final && run.trim < len(chain) {
			dropped = append(dropped, chain[run.trim:]...)
			chain = chain[:run.trim:run.trim]
		}

		ids := matchIDs(chain)
		cached := withoutIDs(s.CachedMatches, ids)
		for _, m := range s.Matches {
			if ids[m.ID] {
				continue
			}
			// Only settled data is worth keeping.
			if m.Status != StatusSuccess {
				dropped = append(dropped, m)
				continue
			}
			c := m.clone()
			c.IsFetching = FetchIdle
			c.DisplayPending = false
			cached = append(cached, c)
		}

		s.Matches = chain
		s.PendingMatches = nil
		if final {
			cached, evicted = r.sweep(cached, now)
			s.Status = RouterIdle
			s.IsLoading = false
			s.LoadedAt = now
			resolved := loc
			s.ResolvedLocation = &resolved
			s.StatusCode = statusCode(chain)
			s.Redirect = nil
		}
		s.CachedMatches = cached
		return s
	})
	if !committed {
		return false
	}

	for _, m := range dropped {
		r.dropSide(m.ID)
	}
	r.evicted(evicted)

	if final {
		r.logger.Debug("load committed", "href", loc.Href, "matches", len(chain))
		r.runHooks(run.before, chain)
		ev := r.locationEvent(EventLoad, run.from, loc)
		r.emit(ev)
		ev.Type = EventResolved
		r.emit(ev)
	}
	return true
}

// sweep splits cached matches into those kept and those whose gc time has
// elapsed.
func (r *Router) sweep(cached []*RouteMatch, now time.Time) (kept, evicted []*RouteMatch) {
	for _, m := range cached {
		route, ok := r.tree.Route(m.RouteID)
		if !ok || now.Sub(m.UpdatedAt) >= r.gcTime(route, m.Preload) {
			evicted = append(evicted, m)
			continue
		}
		kept = append(kept, m)
	}
	return kept, evicted
}

func (r *Router) evicted(evicted []*RouteMatch) {
	if len(evicted) == 0 {
		return
	}
	for _, m := range evicted {
		r.dropSide(m.ID)
	}
	r.logger.Debug("evicted cached matches", "count", len(evicted))
	r.emit(Event{Type: EventCacheEvicted, Matches: evicted})
}

// runHooks calls OnLeave, OnEnter and OnStay for the transition from
// before to after.
func (r *Router) runHooks(before, after []*RouteMatch) {
	prev := matchIDs(before)
	next := matchIDs(after)
	for _, m := range before {
		if !next[m.ID] {
			r.callHook(m, func(o RouteOptions) MatchHook { return o.OnLeave })
		}
	}
	for _, m := range after {
		if prev[m.ID] {
			r.callHook(m, func(o RouteOptions) MatchHook { return o.OnStay })
		} else {
			r.callHook(m, func(o RouteOptions) MatchHook { return o.OnEnter })
		}
	}
}

func (r *Router) callHook(m *RouteMatch, pick func(RouteOptions) MatchHook) {
	route, ok := r.tree.Route(m.RouteID)
	if !ok {
		return
	}
	hook := pick(route.Options())
	if hook == nil {
		return
	}
	_, err := safeCall(func() (struct{}, error) {
		hook(m)
		return struct{}{}, nil
	})
	var pe *PanicError
	if errors.As(err, &pe) {
		r.logger.Warn("route hook panicked", "route", m.RouteID, "panic", pe.Value)
	}
}
