package router

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	rcerrors "github.com/vango-dev/routecore/internal/errors"
	"github.com/vango-dev/routecore/pkg/history"
	"github.com/vango-dev/routecore/pkg/store"
)

// Router resolves locations to match chains, loads them and publishes the
// result through its store.
type Router struct {
	opts    Options
	tree    *Tree
	history history.History
	store   *store.Store[RouterState]
	logger  *slog.Logger

	// baseCtx parents every match context and is cancelled on Dispose.
	baseCtx    context.Context
	baseCancel context.CancelFunc

	flight singleflight.Group
	epoch  atomic.Uint64

	sideMu sync.Mutex
	side   map[string]*matchSide

	blockMu  sync.Mutex
	blockers []*blocker
	nextBlk  uint64

	eventsMu     sync.RWMutex
	listeners    map[EventType][]listener
	nextListener uint64

	// ownKeys are history keys written by the router itself; their events
	// are already being handled.
	keysMu  sync.Mutex
	ownKeys map[string]bool

	// resyncing is set while a blocked pop is being undone.
	resyncing atomic.Bool

	unlisten func()
	disposed atomic.Bool
}

// New builds the route tree rooted at root and creates a router. The
// router subscribes to its history; call Load to resolve the initial
// location.
func New(root *Route, opts ...Option) (*Router, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Now == nil {
		o.Now = defaultOptions().Now
	}
	if o.MaxRedirects <= 0 {
		o.MaxRedirects = DefaultMaxRedirects
	}
	if !o.TrailingSlash.Valid() {
		o.TrailingSlash = defaultOptions().TrailingSlash
	}
	if o.History == nil {
		o.History = history.NewMemoryHistory()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	tree, err := NewTree(root, o.CaseSensitive)
	if err != nil {
		return nil, err
	}

	r := &Router{
		opts:      o,
		tree:      tree,
		history:   o.History,
		logger:    o.Logger.With("component", "router"),
		side:      make(map[string]*matchSide),
		listeners: make(map[EventType][]listener),
		ownKeys:   make(map[string]bool),
	}
	r.baseCtx, r.baseCancel = context.WithCancel(context.Background())

	loc, err := r.parseLocation(r.history.Location())
	if err != nil {
		r.logger.Warn("initial location is invalid", "href", r.history.Location().Href, "error", err)
		loc = newParsedLocation("/", nil, "", history.State{})
	}
	r.store = store.New(initialState(loc))
	r.unlisten = r.history.Subscribe(r.onHistory)
	return r, nil
}

// State returns the current state snapshot.
func (r *Router) State() RouterState {
	return r.store.Get()
}

// Store returns the state store for subscriptions.
func (r *Router) Store() *store.Store[RouterState] {
	return r.store
}

// Tree returns the route tree.
func (r *Router) Tree() *Tree {
	return r.tree
}

// RoutesByID returns the routes keyed by id.
func (r *Router) RoutesByID() map[string]*Route {
	return r.tree.RoutesByID()
}

// History returns the history the router drives.
func (r *Router) History() history.History {
	return r.history
}

// Logger returns the router logger.
func (r *Router) Logger() *slog.Logger {
	return r.logger
}

// GetMatch returns the live match with id from any pool.
func (r *Router) GetMatch(id string) (*RouteMatch, bool) {
	m := r.store.Get().findMatch(id)
	return m, m != nil
}

// Dispose cancels in-flight loads, stops timers and detaches from history.
// The router rejects navigations afterwards.
func (r *Router) Dispose() {
	if !r.disposed.CompareAndSwap(false, true) {
		return
	}
	if r.unlisten != nil {
		r.unlisten()
	}
	r.epoch.Add(1)
	r.baseCancel()

	r.sideMu.Lock()
	sides := r.side
	r.side = make(map[string]*matchSide)
	r.sideMu.Unlock()
	for _, s := range sides {
		s.abort()
	}
	r.logger.Debug("router disposed")
}

func (r *Router) checkDisposed() error {
	if r.disposed.Load() {
		return rcerrors.New("R001")
	}
	return nil
}

// sideFor returns the companion of match id, creating it.
func (r *Router) sideFor(id string) *matchSide {
	r.sideMu.Lock()
	defer r.sideMu.Unlock()
	s, ok := r.side[id]
	if !ok {
		s = &matchSide{}
		r.side[id] = s
	}
	return s
}

// dropSide aborts and forgets the companion of match id.
func (r *Router) dropSide(id string) {
	r.sideMu.Lock()
	s, ok := r.side[id]
	delete(r.side, id)
	r.sideMu.Unlock()
	if ok {
		s.abort()
	}
}

// updateMatch replaces the match with id by a modified copy in every pool
// holding it. epoch 0 applies unconditionally; any other epoch must still
// be current. It reports whether a match was updated.
func (r *Router) updateMatch(epoch uint64, id string, fn func(m *RouteMatch)) bool {
	if !r.current(epoch) {
		return false
	}
	updated := false
	r.store.Update(func(s RouterState) RouterState {
		if epoch != 0 && r.epoch.Load() != epoch {
			return s
		}
		var next *RouteMatch
		for _, pool := range []*[]*RouteMatch{&s.PendingMatches, &s.Matches, &s.CachedMatches} {
			i := slices.IndexFunc(*pool, func(m *RouteMatch) bool { return m.ID == id })
			if i < 0 {
				continue
			}
			if next == nil {
				next = (*pool)[i].clone()
				fn(next)
			}
			*pool = slices.Clone(*pool)
			(*pool)[i] = next
			updated = true
		}
		return s
	})
	return updated
}

// current reports whether epoch is still the latest load.
func (r *Router) current(epoch uint64) bool {
	return epoch == 0 || r.epoch.Load() == epoch
}
