package router

import (
	"context"
	"strings"
	"sync"
	"time"
)

// RootRouteID is the reserved id of the root route.
const RootRouteID = "__root__"

// Component is an opaque value a rendering adapter knows how to render.
type Component any

// RouteContext is the accumulated context handed to hooks. Ancestor
// values are merged below descendant values.
type RouteContext map[string]any

// LoaderFunc loads data for a match. ctx is cancelled when the match is
// superseded by a navigation that no longer includes it.
type LoaderFunc func(ctx context.Context, lc *LoadContext) (any, error)

// BeforeLoadFunc runs before any loader of the chain. The returned
// context is merged into the context seen by the route and its descendants.
type BeforeLoadFunc func(ctx context.Context, lc *LoadContext) (RouteContext, error)

// ContextFunc produces the static per-route context when a match is created.
type ContextFunc func(lc *LoadContext) RouteContext

// LoaderDepsFunc selects the search values a loader depends on. The
// result is part of the match id, so different deps produce different
// matches.
type LoaderDepsFunc func(search map[string]any) any

// ParseParamsFunc validates and normalizes the accumulated path params.
type ParseParamsFunc func(params map[string]string) (map[string]string, error)

// ValidateSearchFunc validates the search produced by the parent route and
// returns the values owned by this route.
type ValidateSearchFunc func(search map[string]any) (map[string]any, error)

// MatchHook observes a match entering, staying in or leaving the chain.
type MatchHook func(m *RouteMatch)

// RouteOptions configures a Route. Options may be swapped at runtime with
// Route.Update; the tree shape may not.
type RouteOptions struct {
	// ID names pathless layout routes. Routes with a Path derive their id.
	ID string

	// Path is the segment path relative to the parent: "posts",
	// "$postId", "$" (splat) or "/" (index).
	Path string

	Loader         LoaderFunc
	BeforeLoad     BeforeLoadFunc
	Context        ContextFunc
	LoaderDeps     LoaderDepsFunc
	ParseParams    ParseParamsFunc
	ValidateSearch ValidateSearchFunc

	Component         Component
	ErrorComponent    Component
	PendingComponent  Component
	NotFoundComponent Component

	// Nil durations fall back to the router defaults.
	StaleTime        *time.Duration
	PreloadStaleTime *time.Duration
	GcTime           *time.Duration
	PreloadGcTime    *time.Duration
	PendingMs        *time.Duration
	PendingMinMs     *time.Duration

	// Middleware wraps this route's loader, inside the router middleware.
	Middleware []Middleware

	OnEnter MatchHook
	OnStay  MatchHook
	OnLeave MatchHook

	// OnError observes loader and beforeLoad failures. A non-nil return
	// replaces the error, which may be a redirect or not-found.
	OnError func(err error) error

	StaticData map[string]any
}

// Duration returns a pointer to d, for RouteOptions duration fields.
func Duration(d time.Duration) *time.Duration {
	return &d
}

// Route is a node of the route tree.
type Route struct {
	mu   sync.RWMutex
	opts RouteOptions

	isRoot   bool
	parent   *Route
	children []*Route

	// Set when the tree is built.
	id       string
	path     string
	fullPath string
	rank     int
	built    bool
	reparent *Route
}

// NewRootRoute creates the root of a route tree.
func NewRootRoute(opts RouteOptions) *Route {
	opts.ID = RootRouteID
	opts.Path = ""
	return &Route{opts: opts, isRoot: true, id: RootRouteID, fullPath: "/"}
}

// NewRoute creates a route. Attach it to a parent with AddChildren.
func NewRoute(opts RouteOptions) *Route {
	return &Route{opts: opts}
}

// AddChildren attaches children to r and returns r.
func (r *Route) AddChildren(children ...*Route) *Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range children {
		if c == nil {
			continue
		}
		if c.parent != nil && c.parent != r {
			c.reparent = r
			continue
		}
		c.parent = r
		r.children = append(r.children, c)
	}
	return r
}

// Update replaces the route's options. ID and Path are kept.
func (r *Route) Update(fn func(*RouteOptions)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, path := r.opts.ID, r.opts.Path
	fn(&r.opts)
	r.opts.ID, r.opts.Path = id, path
}

// Options returns a copy of the current options.
func (r *Route) Options() RouteOptions {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.opts
}

// ID returns the route id. It is only valid once the route belongs to a
// built router.
func (r *Route) ID() string { return r.id }

// Path returns the normalized path segment.
func (r *Route) Path() string { return r.path }

// FullPath returns the path joined with all ancestors.
func (r *Route) FullPath() string { return r.fullPath }

// Rank is the route's position in specificity order, 0 being the most
// specific. Routes without a path have rank -1.
func (r *Route) Rank() int { return r.rank }

// IsRoot reports whether r is the root route.
func (r *Route) IsRoot() bool { return r.isRoot }

// IsIndex reports whether r is an index route.
func (r *Route) IsIndex() bool { return r.path == "/" }

// IsPathless reports whether r is a pathless layout route.
func (r *Route) IsPathless() bool { return !r.isRoot && r.path == "" }

// Parent returns the parent route, nil for the root.
func (r *Route) Parent() *Route { return r.parent }

// Children returns the child routes.
func (r *Route) Children() []*Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Route, len(r.children))
	copy(out, r.children)
	return out
}

// Ancestors returns the chain from the root to r, inclusive.
func (r *Route) Ancestors() []*Route {
	var chain []*Route
	for cur := r; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// normalizePath trims the leading slashes of a relative route path and
// keeps "/" for index routes.
func normalizePath(p string) string {
	if p == "/" {
		return p
	}
	p = strings.TrimLeft(p, "/")
	if p != "/" && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
