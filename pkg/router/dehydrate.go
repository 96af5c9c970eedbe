package router

import (
	"errors"
	"time"
)

// DehydratedMatch is the serializable part of a settled match.
type DehydratedMatch struct {
	ID             string            `json:"id"`
	RouteID        string            `json:"routeId"`
	Status         MatchStatus       `json:"status"`
	Params         map[string]string `json:"params,omitempty"`
	LoaderData     any               `json:"loaderData,omitempty"`
	Error          string            `json:"error,omitempty"`
	UpdatedAt      time.Time         `json:"updatedAt"`
	GlobalNotFound bool              `json:"globalNotFound,omitempty"`
}

// DehydratedState is a router state that can cross a process boundary.
type DehydratedState struct {
	Location   ParsedLocation    `json:"location"`
	Matches    []DehydratedMatch `json:"matches"`
	StatusCode int               `json:"statusCode"`
	Redirect   *RedirectError    `json:"redirect,omitempty"`
}

// Dehydrate snapshots the committed matches.
func (r *Router) Dehydrate() DehydratedState {
	return DehydrateState(r.store.Get())
}

// DehydrateState snapshots the committed matches of s.
func DehydrateState(s RouterState) DehydratedState {
	loc := s.Location
	if s.ResolvedLocation != nil {
		loc = *s.ResolvedLocation
	}
	ds := DehydratedState{
		Location:   loc,
		StatusCode: s.StatusCode,
		Redirect:   s.Redirect,
		Matches:    make([]DehydratedMatch, 0, len(s.Matches)),
	}
	for _, m := range s.Matches {
		dm := DehydratedMatch{
			ID:             m.ID,
			RouteID:        m.RouteID,
			Status:         m.Status,
			Params:         m.Params,
			LoaderData:     m.LoaderData,
			UpdatedAt:      m.UpdatedAt,
			GlobalNotFound: m.GlobalNotFound,
		}
		if m.Error != nil {
			dm.Error = m.Error.Error()
		}
		ds.Matches = append(ds.Matches, dm)
	}
	return ds
}

// Hydrate commits a dehydrated state without running loaders. Matches of
// the location missing from ds are marked ForcePending so the next load
// fetches them.
func (r *Router) Hydrate(ds DehydratedState) error {
	if err := r.checkDisposed(); err != nil {
		return err
	}
	byID := make(map[string]DehydratedMatch, len(ds.Matches))
	for _, dm := range ds.Matches {
		byID[dm.ID] = dm
	}

	loc := newParsedLocation(ds.Location.Pathname, ds.Location.Search, ds.Location.Hash, ds.Location.State)
	matches, _ := r.matchRoutes(loc, false)
	for _, m := range matches {
		dm, ok := byID[m.ID]
		if !ok {
			m.Status = StatusPending
			m.ForcePending = true
			continue
		}
		m.Status = dm.Status
		m.LoaderData = dm.LoaderData
		m.UpdatedAt = dm.UpdatedAt
		m.GlobalNotFound = dm.GlobalNotFound
		switch dm.Status {
		case StatusNotFound:
			m.Error = &NotFoundError{RouteID: dm.RouteID, Message: dm.Error}
		case StatusError:
			m.Error = errors.New(dm.Error)
		}
	}

	r.epoch.Add(1)
	now := r.opts.Now()
	r.store.Update(func(s RouterState) RouterState {
		ids := matchIDs(matches)
		s.Status = RouterIdle
		s.IsLoading = false
		s.Location = loc
		resolved := loc
		s.ResolvedLocation = &resolved
		s.LoadedAt = now
		s.Matches = matches
		s.PendingMatches = nil
		s.CachedMatches = withoutIDs(s.CachedMatches, ids)
		s.StatusCode = ds.StatusCode
		s.Redirect = ds.Redirect
		return s
	})
	return nil
}
