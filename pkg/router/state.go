package router

import (
	"net/http"
	"slices"
	"time"
)

// RouterStatus is the navigation state.
type RouterStatus string

const (
	RouterIdle    RouterStatus = "idle"
	RouterPending RouterStatus = "pending"
)

// RouterState is the snapshot published by the router store.
type RouterState struct {
	Status    RouterStatus `json:"status"`
	IsLoading bool         `json:"isLoading"`
	LoadedAt  time.Time    `json:"loadedAt"`

	// Location is the location being loaded or last loaded.
	Location ParsedLocation `json:"location"`
	// ResolvedLocation is the location of the committed Matches.
	ResolvedLocation *ParsedLocation `json:"resolvedLocation,omitempty"`

	Matches        []*RouteMatch `json:"matches"`
	PendingMatches []*RouteMatch `json:"pendingMatches,omitempty"`
	CachedMatches  []*RouteMatch `json:"cachedMatches,omitempty"`

	// Redirect is set on server routers when a hook redirected.
	Redirect   *RedirectError `json:"redirect,omitempty"`
	StatusCode int            `json:"statusCode"`
}

func initialState(loc ParsedLocation) RouterState {
	return RouterState{
		Status:     RouterIdle,
		Location:   loc,
		StatusCode: http.StatusOK,
	}
}

// findMatch looks a match up in pending, committed and cached order.
func (s RouterState) findMatch(id string) *RouteMatch {
	for _, pool := range [][]*RouteMatch{s.PendingMatches, s.Matches, s.CachedMatches} {
		for _, m := range pool {
			if m.ID == id {
				return m
			}
		}
	}
	return nil
}

// statusCode derives the HTTP status of a committed chain.
func statusCode(matches []*RouteMatch) int {
	code := http.StatusOK
	for _, m := range matches {
		switch {
		case m.Status == StatusError:
			return http.StatusInternalServerError
		case m.Status == StatusNotFound, m.GlobalNotFound:
			code = http.StatusNotFound
		}
	}
	return code
}

func matchIDs(matches []*RouteMatch) map[string]bool {
	ids := make(map[string]bool, len(matches))
	for _, m := range matches {
		ids[m.ID] = true
	}
	return ids
}

func withoutIDs(pool []*RouteMatch, ids map[string]bool) []*RouteMatch {
	var out []*RouteMatch
	for _, m := range pool {
		if !ids[m.ID] {
			out = append(out, m)
		}
	}
	return out
}

// adopt points entries of pool at the match with the same id in live, so
// a match shared by two pools is one object.
func adopt(pool, live []*RouteMatch) []*RouteMatch {
	var out []*RouteMatch
	for i, m := range pool {
		j := slices.IndexFunc(live, func(l *RouteMatch) bool { return l.ID == m.ID })
		if j < 0 || live[j] == m {
			continue
		}
		if out == nil {
			out = slices.Clone(pool)
		}
		out[i] = live[j]
	}
	if out == nil {
		return pool
	}
	return out
}
