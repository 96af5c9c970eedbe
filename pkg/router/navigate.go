package router

import (
	"context"
	"errors"
	"reflect"

	rcerrors "github.com/vango-dev/routecore/internal/errors"
	"github.com/vango-dev/routecore/pkg/history"
)

// Transition describes a navigation a blocker may reject.
type Transition struct {
	From   *ParsedLocation
	To     ParsedLocation
	Action history.Action
}

// BlockerFunc reports whether tx must be blocked.
type BlockerFunc func(ctx context.Context, tx Transition) bool

type blocker struct {
	id uint64
	fn BlockerFunc
}

type redirectDepthKey struct{}

func redirectDepth(ctx context.Context) int {
	n, _ := ctx.Value(redirectDepthKey{}).(int)
	return n
}

// Block registers a blocker consulted before every navigation and
// returns its removal func.
func (r *Router) Block(fn BlockerFunc) (unblock func()) {
	r.blockMu.Lock()
	defer r.blockMu.Unlock()
	r.nextBlk++
	id := r.nextBlk
	r.blockers = append(r.blockers, &blocker{id: id, fn: fn})
	return func() {
		r.blockMu.Lock()
		defer r.blockMu.Unlock()
		for i, b := range r.blockers {
			if b.id == id {
				r.blockers = append(r.blockers[:i:i], r.blockers[i+1:]...)
				return
			}
		}
	}
}

func (r *Router) blocked(ctx context.Context, tx Transition) bool {
	r.blockMu.Lock()
	blockers := make([]*blocker, len(r.blockers))
	copy(blockers, r.blockers)
	r.blockMu.Unlock()

	for _, b := range blockers {
		if b.fn(ctx, tx) {
			return true
		}
	}
	return false
}

// Navigate resolves opts, records the location in history and loads it.
// It returns when the load committed, was superseded or failed.
func (r *Router) Navigate(ctx context.Context, opts NavigateOptions) error {
	if err := r.checkDisposed(); err != nil {
		return err
	}
	loc, err := r.BuildLocation(opts)
	if err != nil {
		return err
	}

	state := r.store.Get()
	current, err := r.parseLocation(r.history.Location())
	if err != nil {
		current = state.Location
	}
	sameHref := current.Href == loc.Href

	action := history.ActionPush
	if opts.Replace || (sameHref && r.opts.SameHref == SameHrefReplace) {
		action = history.ActionReplace
	}
	if !opts.IgnoreBlocker && r.blocked(ctx, Transition{From: state.ResolvedLocation, To: loc, Action: action}) {
		r.logger.Debug("navigation blocked", "to", loc.Href)
		return rcerrors.New("R002").WithDetailf("navigation to %s was blocked", loc.Href)
	}

	r.emit(r.locationEvent(EventBeforeNavigate, state.ResolvedLocation, loc))

	if sameHref && sameStateValues(current.State.Values, loc.State.Values) {
		loc.State = current.State
		return r.load(ctx, loc)
	}

	key := history.NewKey()
	r.keysMu.Lock()
	r.ownKeys[key] = true
	r.keysMu.Unlock()

	st := history.State{Key: key, Values: loc.State.Values}
	if action == history.ActionReplace {
		r.history.Replace(loc.Href, st)
	} else {
		r.history.Push(loc.Href, st)
	}
	if hl := r.history.Location(); hl.State.Key == key {
		loc.State = hl.State
	}
	r.logger.Debug("navigating", "to", loc.Href, "action", action)
	return r.load(ctx, loc)
}

func sameStateValues(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

// Load matches and loads the current history location.
func (r *Router) Load(ctx context.Context) error {
	if err := r.checkDisposed(); err != nil {
		return err
	}
	loc, err := r.parseLocation(r.history.Location())
	if err != nil {
		return err
	}
	return r.load(ctx, loc)
}

func (r *Router) load(ctx context.Context, loc ParsedLocation) error {
	epoch := r.epoch.Add(1)
	prev := r.store.Get()
	r.emit(r.locationEvent(EventBeforeLoad, prev.ResolvedLocation, loc))

	matches, _ := r.matchRoutes(loc, false)
	ids := matchIDs(matches)

	var superseded []*RouteMatch
	started := false
	r.store.Update(func(s RouterState) RouterState {
		if r.epoch.Load() != epoch {
			return s
		}
		started = true
		prev = s
		for _, m := range s.PendingMatches {
			if !ids[m.ID] {
				superseded = append(superseded, m)
			}
		}
		s.Status = RouterPending
		s.IsLoading = true
		s.Location = loc
		s.PendingMatches = matches
		s.Matches = adopt(s.Matches, matches)
		s.CachedMatches = withoutIDs(s.CachedMatches, ids)
		return s
	})
	if !started {
		return nil
	}
	for _, m := range superseded {
		r.dropSide(m.ID)
	}
	r.logger.Debug("load started", "href", loc.Href, "epoch", epoch)

	run := r.newRun(epoch, false, loc, matches, prev)
	err := r.loadMatches(ctx, run)

	var re *RedirectError
	switch {
	case errors.Is(err, errSuperseded) || !r.current(epoch):
		r.logger.Debug("discarding superseded load", "href", loc.Href, "epoch", epoch)
		return nil
	case errors.As(err, &re):
		return r.followRedirect(ctx, run, re)
	case err != nil:
		return err
	}

	r.commit(run, true)
	return nil
}

// followRedirect restarts the navigation at the redirect target. Server
// routers record the redirect instead.
func (r *Router) followRedirect(ctx context.Context, run *loadRun, re *RedirectError) error {
	if r.opts.Server {
		r.store.Update(func(s RouterState) RouterState {
			if !r.current(run.epoch) {
				return s
			}
			s.Status = RouterIdle
			s.IsLoading = false
			s.PendingMatches = nil
			s.Redirect = re
			s.StatusCode = re.Code()
			return s
		})
		for _, id := range run.ids {
			r.dropSide(id)
		}
		return nil
	}

	depth := redirectDepth(ctx)
	if depth >= r.opts.MaxRedirects {
		err := rcerrors.New("R003").WithDetailf("gave up after %d redirects at %s", depth, run.location.Href)
		r.logger.Error("redirect loop", "href", run.location.Href, "error", err)
		r.store.Update(func(s RouterState) RouterState {
			if !r.current(run.epoch) {
				return s
			}
			s.Status = RouterIdle
			s.IsLoading = false
			s.PendingMatches = nil
			return s
		})
		return err
	}

	r.logger.Debug("following redirect", "from", run.location.Href, "to", re.Error())
	ctx = context.WithValue(ctx, redirectDepthKey{}, depth+1)
	return r.Navigate(ctx, NavigateOptions{
		To:            re.To,
		From:          run.location.Pathname,
		Href:          re.Href,
		Params:        re.Params,
		Search:        re.Search,
		Hash:          re.Hash,
		Replace:       !re.Push,
		IgnoreBlocker: true,
	})
}

// onHistory handles history changes the router did not make itself. They
// are already committed, so only matching and loading run.
func (r *Router) onHistory(ev history.Event) {
	if r.disposed.Load() {
		return
	}
	r.keysMu.Lock()
	own := r.ownKeys[ev.Location.State.Key]
	delete(r.ownKeys, ev.Location.State.Key)
	r.keysMu.Unlock()
	if own && !ev.Action.IsPop() {
		return
	}
	if ev.Action.IsPop() && r.resyncing.CompareAndSwap(true, false) {
		return
	}

	loc, err := r.parseLocation(ev.Location)
	if err != nil {
		r.logger.Warn("ignoring invalid history location", "href", ev.Location.Href, "error", err)
		return
	}

	ctx := r.baseCtx
	if ev.Action.IsPop() {
		from := r.store.Get().ResolvedLocation
		if r.blocked(ctx, Transition{From: from, To: loc, Action: ev.Action}) && ev.Delta != 0 {
			r.logger.Debug("pop blocked, restoring history", "delta", ev.Delta)
			r.resyncing.Store(true)
			r.history.Go(-ev.Delta)
			return
		}
	}
	if err := r.load(ctx, loc); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warn("load after history change failed", "href", loc.Href, "error", err)
	}
}

// Back moves one entry back.
func (r *Router) Back() { r.history.Back() }

// Forward moves one entry forward.
func (r *Router) Forward() { r.history.Forward() }

// Go moves delta entries.
func (r *Router) Go(delta int) { r.history.Go(delta) }

// CanGoBack reports whether there is an entry to go back to.
func (r *Router) CanGoBack() bool { return r.history.CanGoBack() }
