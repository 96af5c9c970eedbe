package router

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	rcerrors "github.com/vango-dev/routecore/internal/errors"
)

// errSuperseded stops a load whose epoch is no longer current.
var errSuperseded = errors.New("router: load superseded")

// loadRun is a single load of a match chain.
type loadRun struct {
	r        *Router
	epoch    uint64 // 0 for preloads, which are never superseded
	preload  bool
	location ParsedLocation
	routes   []*Route
	ids      []string

	// joinBefore and joinLoader hold the hook executions that were
	// already running for each match when the run started.
	joinBefore []*flight
	joinLoader []*flight

	// firstBad is the index of the first match whose hooks failed.
	// Loaders only run above it.
	firstBad int
	// trim is the length of the chain that gets committed.
	trim int

	// before and from are the committed chain and location when the
	// load started.
	before []*RouteMatch
	from   *ParsedLocation

	readyOnce sync.Once
}

func (r *Router) newRun(epoch uint64, preload bool, loc ParsedLocation, matches []*RouteMatch, prev RouterState) *loadRun {
	run := &loadRun{
		r:        r,
		epoch:    epoch,
		preload:  preload,
		location: loc,
		firstBad: len(matches),
		trim:     len(matches),
		before:   prev.Matches,
		from:     prev.ResolvedLocation,
	}
	for _, m := range matches {
		route, _ := r.tree.Route(m.RouteID)
		run.routes = append(run.routes, route)
		run.ids = append(run.ids, m.ID)
		side := r.sideFor(m.ID)
		run.joinBefore = append(run.joinBefore, side.running(FetchBeforeLoad))
		run.joinLoader = append(run.joinLoader, side.running(FetchLoader))
	}
	return run
}

// match returns the live copy of the i-th match.
func (run *loadRun) match(i int) *RouteMatch {
	return run.r.store.Get().findMatch(run.ids[i])
}

func (run *loadRun) loadContext(i int, m *RouteMatch, ctx RouteContext) *LoadContext {
	return &LoadContext{
		Router:   run.r,
		Route:    run.routes[i],
		MatchID:  m.ID,
		Params:   m.Params,
		Search:   m.Search,
		Deps:     m.LoaderDeps,
		Location: run.location,
		Context:  ctx,
		Cause:    m.Cause,
		Preload:  run.preload,
	}
}

// loadMatches runs every beforeLoad parent to child, then every loader
// above the first failure parent to child. It returns a *RedirectError
// when a hook redirected and errSuperseded when a newer load took over.
func (r *Router) loadMatches(ctx context.Context, run *loadRun) error {
	defer func() {
		for _, id := range run.ids {
			r.sideFor(id).stopTimers()
		}
	}()

	for i := range run.ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := run.beforeLoad(ctx, i); err != nil {
			return err
		}
		if run.firstBad <= i {
			break
		}
	}

	for i := 0; i < run.firstBad && i < len(run.ids); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := run.load(ctx, i); err != nil {
			return err
		}
	}
	return nil
}

func (run *loadRun) beforeLoad(ctx context.Context, i int) error {
	r := run.r
	m := run.match(i)
	if m == nil || !r.current(run.epoch) {
		return errSuperseded
	}
	route := run.routes[i]
	opts := route.Options()
	side := r.sideFor(m.ID)
	hookCtx := side.loadContext(r.baseCtx)

	if m.Status != StatusSuccess {
		run.startPending(m, route, side)
	}

	if m.ParamsError != nil {
		return run.serialError(ctx, i, m.ParamsError, CodeParseParams)
	}
	if m.SearchError != nil {
		return run.serialError(ctx, i, m.SearchError, CodeValidateSearch)
	}

	parent := r.opts.Context
	if i > 0 {
		if pm := run.match(i - 1); pm != nil {
			parent = pm.Context
		}
	}
	base := mergeContext(parent, m.StaticContext)

	var beforeCtx RouteContext
	if opts.BeforeLoad != nil {
		r.updateMatch(run.epoch, m.ID, func(m *RouteMatch) {
			m.IsFetching = FetchBeforeLoad
		})
		lc := run.loadContext(i, m, base)
		joined := run.joinBefore[i]
		if joined != nil {
			r.logger.Debug("joining in-flight beforeLoad", "match", m.ID)
		}
		v, err := r.share(hookCtx, m.ID, FetchBeforeLoad, joined, func() (any, error) {
			return safeCall(func() (any, error) {
				c, err := opts.BeforeLoad(hookCtx, lc)
				return c, err
			})
		})
		if !r.current(run.epoch) {
			return errSuperseded
		}
		if err != nil {
			return run.serialError(ctx, i, err, CodeBeforeLoad)
		}
		beforeCtx, _ = v.(RouteContext)
	}

	full := mergeContext(base, beforeCtx)
	if !r.updateMatch(run.epoch, m.ID, func(m *RouteMatch) {
		m.BeforeLoadContext = beforeCtx
		m.Context = full
		m.IsFetching = FetchIdle
	}) {
		return errSuperseded
	}
	return nil
}

func (run *loadRun) load(ctx context.Context, i int) error {
	r := run.r
	m := run.match(i)
	if m == nil || !r.current(run.epoch) {
		return errSuperseded
	}
	route := run.routes[i]
	opts := route.Options()
	side := r.sideFor(m.ID)
	hookCtx := side.loadContext(r.baseCtx)

	staleAfter := r.staleTime(route, run.preload)
	if !run.preload && side.consumePreload() {
		// Preloaded data stays fresh for the preload stale time.
		staleAfter = max(staleAfter, r.staleTime(route, true))
	}
	if m.Status == StatusSuccess && !m.Invalid && r.opts.Now().Sub(m.UpdatedAt) < staleAfter {
		r.updateMatch(run.epoch, m.ID, func(m *RouteMatch) {
			m.IsFetching = FetchIdle
			m.DisplayPending = false
		})
		side.stopTimers()
		return nil
	}

	r.updateMatch(run.epoch, m.ID, func(m *RouteMatch) {
		m.IsFetching = FetchLoader
		if m.Status != StatusSuccess {
			m.Status = StatusPending
		}
	})

	lc := run.loadContext(i, m, m.Context)
	data, err := r.runLoader(hookCtx, lc, opts, run.joinLoader[i])
	if !r.current(run.epoch) {
		return errSuperseded
	}

	out := Classify(data, err)
	if out.Kind == OutcomeFailure {
		out = Classify(data, run.onError(route, out.Err))
	}
	switch out.Kind {
	case OutcomeRedirect:
		run.redirected(i)
		return out.Redirect
	case OutcomeNotFound:
		run.notFound(ctx, i, out.NotFound, CodeLoader)
		return nil
	case OutcomeFailure:
		run.fail(ctx, i, &LoadError{Code: CodeLoader, RouteID: route.id, Err: out.Err})
		return nil
	}

	side.waitMinPending(ctx)
	now := r.opts.Now()
	if !r.updateMatch(run.epoch, m.ID, func(m *RouteMatch) {
		m.Status = StatusSuccess
		m.LoaderData = data
		m.Error = nil
		m.UpdatedAt = now
		m.IsFetching = FetchIdle
		m.DisplayPending = false
		m.ForcePending = false
		m.Invalid = false
		m.FetchCount++
	}) {
		return errSuperseded
	}
	side.stopTimers()
	side.setPreloaded(run.preload)
	run.settled(m.ID)
	return nil
}

// runLoader runs the route loader through the middleware chain. Callers
// for a match id already in flight join that flight, as do loads given
// the execution that was running when they started.
func (r *Router) runLoader(ctx context.Context, lc *LoadContext, opts RouteOptions, joined *flight) (any, error) {
	if opts.Loader == nil {
		return nil, nil
	}

	side := r.sideFor(lc.MatchID)
	side.mu.Lock()
	inFlight := side.loading > 0
	side.loading++
	side.mu.Unlock()
	defer func() {
		side.mu.Lock()
		side.loading--
		side.mu.Unlock()
	}()

	if inFlight || joined != nil {
		r.logger.Debug("joining in-flight loader", "match", lc.MatchID)
		m, _ := r.GetMatch(lc.MatchID)
		r.emit(Event{Type: EventMatchJoined, ToLocation: lc.Location, Match: m})
	}

	mw := slices.Concat(r.opts.Middleware, opts.Middleware)
	v, err := r.share(ctx, lc.MatchID, FetchLoader, joined, func() (any, error) {
		return safeCall(func() (any, error) {
			return ComposeMiddleware(ctx, lc, mw, func(ctx context.Context) (any, error) {
				return opts.Loader(ctx, lc)
			})
		})
	})
	var pe *PanicError
	if errors.As(err, &pe) && joined == nil {
		r.logger.Warn("loader panicked", "route", lc.Route.id, "match", lc.MatchID, "panic", pe.Value)
	}
	return v, err
}

// share runs fn as the phase hook of match id. Concurrent callers share
// one execution through the flight group. A caller given joined takes
// that execution's result, even when it has finished since.
func (r *Router) share(ctx context.Context, id string, phase FetchPhase, joined *flight, fn func() (any, error)) (any, error) {
	if joined != nil {
		return joined.wait(ctx)
	}
	side := r.sideFor(id)
	v, err, _ := r.flight.Do(string(phase)+":"+id, func() (any, error) {
		f := side.begin(phase)
		v, err := fn()
		side.finish(phase, f, v, err)
		return v, err
	})
	return v, err
}

// onError lets the route observe or replace a failure.
func (run *loadRun) onError(route *Route, err error) error {
	opts := route.Options()
	if opts.OnError == nil {
		return err
	}
	replaced, herr := safeCall(func() (error, error) {
		return opts.OnError(err), nil
	})
	if herr != nil {
		run.r.logger.Warn("onError hook failed", "route", route.id, "error", herr)
		return err
	}
	if replaced != nil {
		return replaced
	}
	return err
}

// serialError handles a failure raised before loaders run.
func (run *loadRun) serialError(ctx context.Context, i int, err error, code LoadErrorCode) error {
	route := run.routes[i]
	out := Classify(nil, err)
	if out.Kind == OutcomeFailure {
		var pe *PanicError
		if errors.As(err, &pe) {
			run.r.logger.Warn("hook panicked", "route", route.id, "code", code, "panic", pe.Value)
		}
		out = Classify(nil, run.onError(route, out.Err))
	}
	switch out.Kind {
	case OutcomeRedirect:
		run.redirected(i)
		return out.Redirect
	case OutcomeNotFound:
		run.notFound(ctx, i, out.NotFound, code)
	default:
		run.fail(ctx, i, &LoadError{Code: code, RouteID: route.id, Err: out.Err})
	}
	return nil
}

// fail records err on the i-th match once a displayed pending state has
// been shown for its minimum time.
func (run *loadRun) fail(ctx context.Context, i int, err error) {
	r := run.r
	id := run.ids[i]
	r.sideFor(id).waitMinPending(ctx)
	now := r.opts.Now()
	r.updateMatch(run.epoch, id, func(m *RouteMatch) {
		m.Status = StatusError
		m.Error = err
		m.IsFetching = FetchIdle
		m.DisplayPending = false
		m.UpdatedAt = now
	})
	r.sideFor(id).stopTimers()
	run.cut(i, i+1)
	r.logger.Debug("match failed", "match", id, "error", err)
	run.settled(id)
}

func (run *loadRun) redirected(i int) {
	id := run.ids[i]
	run.r.updateMatch(run.epoch, id, func(m *RouteMatch) {
		m.Status = StatusRedirected
		m.IsFetching = FetchIdle
		m.DisplayPending = false
	})
	run.r.sideFor(id).stopTimers()
}

// notFound records nf on the nearest boundary at or above the raising
// match. A not-found raised by beforeLoad renders in the parent.
func (run *loadRun) notFound(ctx context.Context, i int, nf *NotFoundError, code LoadErrorCode) {
	r := run.r
	r.sideFor(run.ids[i]).waitMinPending(ctx)
	b := i
	if nf.RouteID != "" {
		b = slices.IndexFunc(run.routes, func(route *Route) bool { return route.id == nf.RouteID })
		if b < 0 {
			r.logger.Warn("not-found names a route outside the chain", "route", nf.RouteID)
			b = 0
		}
	} else if code == CodeBeforeLoad && i > 0 {
		b = i - 1
	}
	for b > 0 && !r.notFoundBoundary(run.routes[b]) {
		b--
	}
	if b == 0 && !r.notFoundBoundary(run.routes[0]) {
		r.logger.Warn("unhandled not-found", "error", rcerrors.New("R005").WithDetailf("raised by %s", run.routes[i].id))
	}

	if b != i {
		r.sideFor(run.ids[b]).waitMinPending(ctx)
	}

	bound := *nf
	bound.RouteID = run.routes[b].id
	id := run.ids[b]
	r.updateMatch(run.epoch, id, func(m *RouteMatch) {
		m.Status = StatusNotFound
		m.Error = &bound
		m.IsFetching = FetchIdle
		m.DisplayPending = false
	})
	r.sideFor(id).stopTimers()
	if b != i {
		r.sideFor(run.ids[i]).stopTimers()
	}
	run.cut(b, b+1)
	run.settled(id)
}

func (run *loadRun) cut(firstBad, trim int) {
	run.firstBad = min(run.firstBad, firstBad)
	run.trim = min(run.trim, trim)
}

func (run *loadRun) settled(id string) {
	m, ok := run.r.GetMatch(id)
	if !ok {
		return
	}
	run.r.emit(Event{Type: EventMatchSettled, ToLocation: run.location, Match: m})
}

// startPending arms the pending display timer of a match that has a
// pending component to show.
func (run *loadRun) startPending(m *RouteMatch, route *Route, side *matchSide) {
	r := run.r
	if run.preload {
		return
	}
	opts := route.Options()
	if opts.PendingComponent == nil && r.opts.DefaultPendingComponent == nil {
		return
	}
	if opts.Loader == nil && opts.BeforeLoad == nil {
		return
	}
	delay := durationOr(opts.PendingMs, r.opts.PendingMs)
	if delay < 0 {
		return
	}
	minShown := durationOr(opts.PendingMinMs, r.opts.PendingMinMs)

	id := m.ID
	side.mu.Lock()
	defer side.mu.Unlock()
	if side.pendingTimer != nil {
		return
	}
	side.pendingTimer = time.AfterFunc(delay, func() {
		run.displayPending(id, side, minShown)
	})
}

func (run *loadRun) displayPending(id string, side *matchSide, minShown time.Duration) {
	r := run.r
	flipped := false
	r.updateMatch(run.epoch, id, func(m *RouteMatch) {
		if m.Status == StatusPending {
			m.DisplayPending = true
			flipped = true
		}
	})
	if !flipped {
		return
	}

	if minShown > 0 {
		side.mu.Lock()
		if side.minPending == nil {
			ch := make(chan struct{})
			side.minPending = ch
			side.minTimer = time.AfterFunc(minShown, func() {
				side.mu.Lock()
				defer side.mu.Unlock()
				if side.minPending == ch {
					close(ch)
					side.minPending = nil
				}
			})
		}
		side.mu.Unlock()
	}

	run.readyOnce.Do(func() {
		r.logger.Debug("showing pending chain", "href", run.location.Href)
		r.commit(run, false)
	})
}
