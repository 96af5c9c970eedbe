package router

import (
	"context"
	"errors"
	"slices"
)

// MatchFilter selects matches. A nil filter selects every match.
type MatchFilter func(m *RouteMatch) bool

func (f MatchFilter) test(m *RouteMatch) bool {
	return f == nil || f(m)
}

// PreloadRoute loads the chain for opts into the cache without committing
// it. Preloaded matches use the preload stale and gc times.
func (r *Router) PreloadRoute(ctx context.Context, opts NavigateOptions) ([]*RouteMatch, error) {
	if err := r.checkDisposed(); err != nil {
		return nil, err
	}
	loc, err := r.BuildLocation(opts)
	if err != nil {
		return nil, err
	}

	matches, _ := r.matchRoutes(loc, true)
	prev := r.store.Update(func(s RouterState) RouterState {
		for _, m := range matches {
			if s.findMatch(m.ID) == nil {
				s.CachedMatches = append(slices.Clone(s.CachedMatches), m)
			}
		}
		return s
	})
	r.logger.Debug("preloading", "href", loc.Href)

	run := r.newRun(0, true, loc, matches, prev)
	err = r.loadMatches(ctx, run)

	// Failed preloads are not worth caching.
	var failed []*RouteMatch
	r.store.Update(func(s RouterState) RouterState {
		keep := s.CachedMatches[:0:0]
		for _, m := range s.CachedMatches {
			if m.Preload && m.Status != StatusSuccess && slices.Contains(run.ids, m.ID) {
				failed = append(failed, m)
				continue
			}
			keep = append(keep, m)
		}
		s.CachedMatches = keep
		return s
	})
	for _, m := range failed {
		r.dropSide(m.ID)
	}

	var re *RedirectError
	if errors.As(err, &re) {
		return nil, re
	}
	if err != nil {
		return nil, err
	}

	state := r.store.Get()
	out := make([]*RouteMatch, 0, len(run.ids))
	for _, id := range run.ids[:run.trim] {
		if m := state.findMatch(id); m != nil {
			out = append(out, m)
		}
	}
	return out, nil
}

// ClearCache removes cached matches selected by filter.
func (r *Router) ClearCache(filter MatchFilter) {
	var removed []*RouteMatch
	r.store.Update(func(s RouterState) RouterState {
		var keep []*RouteMatch
		for _, m := range s.CachedMatches {
			if filter.test(m) {
				removed = append(removed, m)
				continue
			}
			keep = append(keep, m)
		}
		s.CachedMatches = keep
		return s
	})
	for _, m := range removed {
		r.dropSide(m.ID)
	}
}

// ClearExpiredCache removes cached matches whose gc time has elapsed.
func (r *Router) ClearExpiredCache() {
	var evicted []*RouteMatch
	now := r.opts.Now()
	r.store.Update(func(s RouterState) RouterState {
		s.CachedMatches, evicted = r.sweep(s.CachedMatches, now)
		return s
	})
	r.evicted(evicted)
}

// Invalidate marks the selected matches invalid so the next load reloads
// them, resets failed ones to pending, and reloads the current location.
func (r *Router) Invalidate(ctx context.Context, filter MatchFilter) error {
	// Matches shared by two pools get a single replacement.
	replaced := make(map[string]*RouteMatch)
	invalidate := func(pool []*RouteMatch) []*RouteMatch {
		if len(pool) == 0 {
			return pool
		}
		out := make([]*RouteMatch, len(pool))
		for i, m := range pool {
			if !filter.test(m) {
				out[i] = m
				continue
			}
			if c, ok := replaced[m.ID]; ok {
				out[i] = c
				continue
			}
			c := m.clone()
			replaced[m.ID] = c
			c.Invalid = true
			if c.Status == StatusError || c.ForcePending {
				c.Status = StatusPending
				c.Error = nil
			}
			out[i] = c
		}
		return out
	}
	r.store.Update(func(s RouterState) RouterState {
		s.Matches = invalidate(s.Matches)
		s.PendingMatches = invalidate(s.PendingMatches)
		s.CachedMatches = invalidate(s.CachedMatches)
		return s
	})
	return r.Load(ctx)
}

// CancelMatch cancels the context and timers of the match with id.
func (r *Router) CancelMatch(id string) {
	r.sideMu.Lock()
	s, ok := r.side[id]
	r.sideMu.Unlock()
	if ok {
		s.abort()
	}
}

// CancelMatches cancels every pending match.
func (r *Router) CancelMatches() {
	for _, m := range r.store.Get().PendingMatches {
		r.CancelMatch(m.ID)
	}
}
