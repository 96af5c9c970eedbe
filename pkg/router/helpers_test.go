package router

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vango-dev/routecore/pkg/history"
)

const (
	timeout = 2 * time.Second
	tick    = 2 * time.Millisecond
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRouter(t *testing.T, root *Route, opts ...Option) (*Router, *history.MemoryHistory) {
	t.Helper()
	h := history.NewMemoryHistory("/")
	base := []Option{WithLogger(testLogger()), WithHistory(h)}
	r, err := New(root, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(r.Dispose)
	return r, h
}

// recorder collects every committed state.
type recorder struct {
	mu     sync.Mutex
	states []RouterState
}

func record(r *Router) *recorder {
	rec := &recorder{}
	r.Store().Subscribe(func(s RouterState) {
		rec.mu.Lock()
		rec.states = append(rec.states, s)
		rec.mu.Unlock()
	})
	return rec
}

func (rec *recorder) all() []RouterState {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]RouterState, len(rec.states))
	copy(out, rec.states)
	return out
}

func dataLoader(v any) LoaderFunc {
	return func(context.Context, *LoadContext) (any, error) {
		return v, nil
	}
}

// counter is a loader that counts its calls.
type counter struct {
	mu    sync.Mutex
	calls int
	fn    LoaderFunc
}

func (c *counter) loader(ctx context.Context, lc *LoadContext) (any, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.fn == nil {
		return lc.MatchID, nil
	}
	return c.fn(ctx, lc)
}

func (c *counter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func to(path string) NavigateOptions {
	return NavigateOptions{To: path}
}

func leaf(s RouterState) *RouteMatch {
	if len(s.Matches) == 0 {
		return nil
	}
	return s.Matches[len(s.Matches)-1]
}

func routeIDs(matches []*RouteMatch) []string {
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.RouteID
	}
	return ids
}
