package router

import (
	"maps"
)

// LoadContext is what hooks see of the match being loaded.
type LoadContext struct {
	Router *Router
	Route  *Route

	MatchID  string
	Params   map[string]string
	Search   map[string]any
	Deps     any
	Location ParsedLocation

	// Context is the merged context: router context, then ancestors, then
	// the route's own static and beforeLoad context.
	Context RouteContext

	Cause   MatchCause
	Preload bool
}

// BindParams binds the path params into the struct pointed to by target.
func (lc *LoadContext) BindParams(target any) error {
	return BindParams(lc.Params, target)
}

// Value returns a context value.
func (lc *LoadContext) Value(key string) (any, bool) {
	v, ok := lc.Context[key]
	return v, ok
}

// mergeContext layers the given contexts, later ones winning.
func mergeContext(layers ...RouteContext) RouteContext {
	out := make(RouteContext)
	for _, l := range layers {
		maps.Copy(out, l)
	}
	return out
}
