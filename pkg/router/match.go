package router

import (
	"context"
	"sync"
	"time"
)

// MatchStatus is the load status of a match. Statuses are mutually exclusive.
type MatchStatus string

const (
	StatusPending    MatchStatus = "pending"
	StatusSuccess    MatchStatus = "success"
	StatusError      MatchStatus = "error"
	StatusNotFound   MatchStatus = "notFound"
	StatusRedirected MatchStatus = "redirected"
)

// FetchPhase names the hook a match is currently running.
type FetchPhase string

const (
	FetchIdle       FetchPhase = ""
	FetchBeforeLoad FetchPhase = "beforeLoad"
	FetchLoader     FetchPhase = "loader"
)

// MatchCause tells whether a match entered the chain or stayed in it.
type MatchCause string

const (
	CauseEnter MatchCause = "enter"
	CauseStay  MatchCause = "stay"
)

// RouteMatch is one route of a matched chain together with its load state.
//
// Published matches are immutable: the router replaces a match instead of
// mutating it, so a *RouteMatch read from a state snapshot never changes.
type RouteMatch struct {
	// ID is the route id interpolated with params plus the loader deps hash.
	ID      string `json:"id"`
	RouteID string `json:"routeId"`
	Index   int    `json:"index"`

	Pathname   string            `json:"pathname"`
	Params     map[string]string `json:"params"`
	Search     map[string]any    `json:"search"`
	LoaderDeps any               `json:"loaderDeps,omitempty"`

	Status     MatchStatus `json:"status"`
	LoaderData any         `json:"loaderData,omitempty"`
	Error      error       `json:"-"`

	// StaticContext is the output of the route's Context function.
	StaticContext     RouteContext `json:"-"`
	BeforeLoadContext RouteContext `json:"-"`
	// Context is the full context after beforeLoad.
	Context RouteContext `json:"-"`

	UpdatedAt      time.Time  `json:"updatedAt"`
	IsFetching     FetchPhase `json:"isFetching,omitempty"`
	DisplayPending bool       `json:"displayPending,omitempty"`
	ForcePending   bool       `json:"forcePending,omitempty"`
	Invalid        bool       `json:"invalid,omitempty"`
	Preload        bool       `json:"preload,omitempty"`
	Cause          MatchCause `json:"cause"`
	GlobalNotFound bool       `json:"globalNotFound,omitempty"`
	FetchCount     int        `json:"fetchCount"`

	ParamsError error `json:"-"`
	SearchError error `json:"-"`
}

// Err returns the error a rendering adapter should raise for the match:
// the stored error for error and notFound matches, nil otherwise.
func (m *RouteMatch) Err() error {
	if m == nil {
		return nil
	}
	switch m.Status {
	case StatusError, StatusNotFound:
		return m.Error
	}
	return nil
}

func (m *RouteMatch) clone() *RouteMatch {
	c := *m
	return &c
}

// matchSide holds the non-serializable bookkeeping of a match: in-flight
// state, timers and cancellation.
type matchSide struct {
	mu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc

	// loading counts callers waiting on the loader flight.
	loading int

	// preloaded is set while the loaded data came from a preload not yet
	// consumed by a navigation.
	preloaded bool

	pendingTimer *time.Timer
	minPending   chan struct{}
	minTimer     *time.Timer

	// flights are the hook executions running now, by phase.
	flights map[FetchPhase]*flight
}

// flight is one execution of a match hook. Loads that started while it
// ran use its result instead of running the hook again.
type flight struct {
	done chan struct{}
	val  any
	err  error
}

func (f *flight) wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// running returns the execution of phase in progress, if any.
func (s *matchSide) running(phase FetchPhase) *flight {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flights[phase]
}

func (s *matchSide) begin(phase FetchPhase) *flight {
	f := &flight{done: make(chan struct{})}
	s.mu.Lock()
	if s.flights == nil {
		s.flights = make(map[FetchPhase]*flight)
	}
	s.flights[phase] = f
	s.mu.Unlock()
	return f
}

func (s *matchSide) finish(phase FetchPhase, f *flight, val any, err error) {
	f.val, f.err = val, err
	close(f.done)
	s.mu.Lock()
	if s.flights[phase] == f {
		delete(s.flights, phase)
	}
	s.mu.Unlock()
}

// loadContext returns the match's cancellation context, creating it when
// the previous one was cancelled or never existed.
func (s *matchSide) loadContext(parent context.Context) context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil || s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(parent)
	}
	return s.ctx
}

func (s *matchSide) setPreloaded(v bool) {
	s.mu.Lock()
	s.preloaded = v
	s.mu.Unlock()
}

// consumePreload reports and clears the preloaded flag.
func (s *matchSide) consumePreload() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.preloaded
	s.preloaded = false
	return v
}

// abort cancels the match's context.
func (s *matchSide) abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.stopTimersLocked()
}

// stopTimers stops pending timers and releases min-pending waiters.
func (s *matchSide) stopTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimersLocked()
}

func (s *matchSide) stopTimersLocked() {
	if s.pendingTimer != nil {
		s.pendingTimer.Stop()
		s.pendingTimer = nil
	}
	if s.minTimer != nil {
		s.minTimer.Stop()
		s.minTimer = nil
	}
	if s.minPending != nil {
		close(s.minPending)
		s.minPending = nil
	}
}

// waitMinPending blocks until the min-pending window of a displayed
// pending state has elapsed.
func (s *matchSide) waitMinPending(ctx context.Context) {
	s.mu.Lock()
	ch := s.minPending
	s.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case <-ch:
	case <-ctx.Done():
	}
}
