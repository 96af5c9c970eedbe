package router

import (
	"encoding/json"
	"maps"

	"github.com/vango-dev/routecore/pkg/routepath"
)

// MatchRoutes resolves loc to a match chain without loading it. Existing
// matches with the same id are reused. The returned not-found is set when
// only a prefix of the pathname matched.
func (r *Router) MatchRoutes(loc ParsedLocation) ([]*RouteMatch, *NotFoundError) {
	return r.matchRoutes(loc, false)
}

func (r *Router) matchRoutes(loc ParsedLocation, preload bool) ([]*RouteMatch, *NotFoundError) {
	matched, err := r.tree.match(loc.Pathname, r.notFoundBoundary)
	var globalNotFound *NotFoundError
	if err != nil {
		globalNotFound, _ = IsNotFound(err)
	}

	state := r.store.Get()
	committed := matchIDs(state.Matches)
	now := r.opts.Now()

	params := maps.Clone(matched.Params)
	if params == nil {
		params = map[string]string{}
	}
	var paramsErr error
	parentSearch := loc.Search
	parentCtx := r.opts.Context

	out := make([]*RouteMatch, 0, len(matched.Routes))
	for i, route := range matched.Routes {
		opts := route.Options()

		// A params failure is reported on the route that raised it; the
		// descendants keep matching on the unparsed values.
		var ownParamsErr error
		if opts.ParseParams != nil && paramsErr == nil {
			parsed, perr := safeCall(func() (map[string]string, error) {
				return opts.ParseParams(maps.Clone(params))
			})
			if perr != nil {
				paramsErr = perr
				ownParamsErr = perr
			} else {
				maps.Copy(params, parsed)
			}
		}

		search := maps.Clone(parentSearch)
		if search == nil {
			search = map[string]any{}
		}
		var searchErr error
		if opts.ValidateSearch != nil {
			validated, serr := safeCall(func() (map[string]any, error) {
				return opts.ValidateSearch(maps.Clone(parentSearch))
			})
			if serr != nil {
				searchErr = serr
			} else {
				maps.Copy(search, validated)
			}
		}
		parentSearch = search

		var deps any
		if opts.LoaderDeps != nil {
			deps = opts.LoaderDeps(search)
		}
		id := r.matchID(route, params, deps)

		var m *RouteMatch
		if existing := state.findMatch(id); existing != nil {
			m = existing.clone()
			m.Preload = preload && existing.Preload && !committed[id]
			if m.Status != StatusSuccess {
				m.Status = StatusPending
				m.Error = nil
			}
		} else {
			m = &RouteMatch{
				ID:        id,
				RouteID:   route.id,
				Status:    StatusPending,
				UpdatedAt: now,
				Preload:   preload,
			}
			lc := &LoadContext{
				Router:   r,
				Route:    route,
				MatchID:  id,
				Params:   maps.Clone(params),
				Search:   search,
				Deps:     deps,
				Location: loc,
				Context:  parentCtx,
				Cause:    CauseEnter,
				Preload:  preload,
			}
			if opts.Context != nil {
				m.StaticContext = opts.Context(lc)
			}
		}

		m.Index = i
		m.Pathname = r.matchPathname(route, params)
		m.Params = maps.Clone(params)
		m.Search = search
		m.LoaderDeps = deps
		m.ParamsError = ownParamsErr
		m.SearchError = searchErr
		m.GlobalNotFound = globalNotFound != nil && route.id == globalNotFound.RouteID
		if committed[id] {
			m.Cause = CauseStay
		} else {
			m.Cause = CauseEnter
		}
		parentCtx = mergeContext(parentCtx, m.StaticContext)
		out = append(out, m)
	}
	return out, globalNotFound
}

// matchID interpolates the route id with params and appends the loader
// deps hash.
func (r *Router) matchID(route *Route, params map[string]string, deps any) string {
	id, err := routepath.Interpolate(route.id, params)
	if err != nil {
		id = route.id
	}
	if deps == nil {
		return id
	}
	b, err := json.Marshal(deps)
	if err != nil {
		r.logger.Warn("loader deps are not serializable", "route", route.id, "error", err)
		return id
	}
	return id + string(b)
}

func (r *Router) matchPathname(route *Route, params map[string]string) string {
	p, err := routepath.Interpolate(route.fullPath, params)
	if err != nil {
		return route.fullPath
	}
	return p
}

// notFoundBoundary reports whether a not-found can render in route.
func (r *Router) notFoundBoundary(route *Route) bool {
	return route.Options().NotFoundComponent != nil || r.opts.DefaultNotFoundComponent != nil
}
