package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/routecore/pkg/store"
)

func TestPreloadRoute(t *testing.T) {
	loads := &counter{}
	root := NewRootRoute(RouteOptions{})
	root.AddChildren(
		NewRoute(RouteOptions{Path: "a", Loader: loads.loader}),
		NewRoute(RouteOptions{Path: "b"}),
	)
	r, h := newTestRouter(t, root)
	ctx := context.Background()

	matches, err := r.PreloadRoute(ctx, to("/a"))
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, 1, loads.count())
	assert.Equal(t, 1, h.Length(), "preloading never writes history")
	assert.Empty(t, r.State().Matches)

	var cached *RouteMatch
	for _, m := range r.State().CachedMatches {
		if m.ID == "/a" {
			cached = m
		}
	}
	require.NotNil(t, cached)
	assert.True(t, cached.Preload)
	assert.Equal(t, StatusSuccess, cached.Status)

	require.NoError(t, r.Navigate(ctx, to("/a")))
	assert.Equal(t, 1, loads.count(), "navigation reuses fresh preloaded data")
	assert.Equal(t, "/a", leaf(r.State()).LoaderData)
	for _, m := range r.State().CachedMatches {
		assert.NotEqual(t, "/a", m.ID, "a committed match never stays cached")
	}
}

func TestPreloadRoute_FailureNotCached(t *testing.T) {
	root := NewRootRoute(RouteOptions{})
	root.AddChildren(NewRoute(RouteOptions{Path: "bad", Loader: func(context.Context, *LoadContext) (any, error) {
		return nil, assert.AnError
	}}))
	r, _ := newTestRouter(t, root)

	_, err := r.PreloadRoute(context.Background(), to("/bad"))
	require.NoError(t, err)
	for _, m := range r.State().CachedMatches {
		assert.NotEqual(t, "/bad", m.ID)
	}
}

func TestInvalidate(t *testing.T) {
	loads := &counter{}
	root := NewRootRoute(RouteOptions{})
	root.AddChildren(NewRoute(RouteOptions{Path: "a", Loader: loads.loader, StaleTime: Duration(time.Hour)}))
	r, _ := newTestRouter(t, root)
	ctx := context.Background()

	require.NoError(t, r.Navigate(ctx, to("/a")))
	require.NoError(t, r.Load(ctx))
	require.Equal(t, 1, loads.count())

	require.NoError(t, r.Invalidate(ctx, func(m *RouteMatch) bool { return m.RouteID == "/a" }))
	assert.Equal(t, 2, loads.count())
	assert.False(t, leaf(r.State()).Invalid)
}

func TestClearCache(t *testing.T) {
	root := NewRootRoute(RouteOptions{})
	root.AddChildren(
		NewRoute(RouteOptions{Path: "a"}),
		NewRoute(RouteOptions{Path: "b"}),
		NewRoute(RouteOptions{Path: "c"}),
	)
	r, _ := newTestRouter(t, root)
	ctx := context.Background()

	require.NoError(t, r.Navigate(ctx, to("/a")))
	require.NoError(t, r.Navigate(ctx, to("/b")))
	require.NoError(t, r.Navigate(ctx, to("/c")))
	require.Len(t, r.State().CachedMatches, 2)

	r.ClearCache(func(m *RouteMatch) bool { return m.ID == "/a" })
	assert.Equal(t, []string{"/b"}, routeIDs(r.State().CachedMatches))

	r.ClearCache(nil)
	assert.Empty(t, r.State().CachedMatches)
}

func TestCancelMatch(t *testing.T) {
	started := make(chan struct{})
	root := NewRootRoute(RouteOptions{})
	root.AddChildren(NewRoute(RouteOptions{Path: "slow", Loader: func(ctx context.Context, _ *LoadContext) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}}))
	r, _ := newTestRouter(t, root)

	done := make(chan error, 1)
	go func() { done <- r.Navigate(context.Background(), to("/slow")) }()
	<-started
	r.CancelMatches()

	require.NoError(t, <-done)
	m := leaf(r.State())
	assert.Equal(t, StatusError, m.Status)
	assert.ErrorIs(t, m.Err(), context.Canceled)
}

func TestMatchIdentityAcrossPools(t *testing.T) {
	root := NewRootRoute(RouteOptions{Loader: dataLoader("root")})
	root.AddChildren(
		NewRoute(RouteOptions{Path: "a", Loader: dataLoader("a")}),
		NewRoute(RouteOptions{Path: "b", Loader: dataLoader("b")}),
	)
	r, _ := newTestRouter(t, root)
	rec := record(r)
	ctx := context.Background()

	for _, p := range []string{"/a", "/b", "/a", "/b"} {
		require.NoError(t, r.Navigate(ctx, to(p)))
	}
	_, err := r.PreloadRoute(ctx, to("/a"))
	require.NoError(t, err)

	for _, s := range rec.all() {
		committed := matchIDs(s.Matches)
		for _, m := range s.CachedMatches {
			assert.False(t, committed[m.ID], "match %s is both committed and cached", m.ID)
		}
		pending := matchIDs(s.PendingMatches)
		for _, m := range s.CachedMatches {
			assert.False(t, pending[m.ID], "match %s is both pending and cached", m.ID)
		}
		for _, p := range s.PendingMatches {
			for _, m := range s.Matches {
				if m.ID == p.ID {
					assert.Same(t, m, p, "match %s differs between pending and committed", m.ID)
				}
			}
		}
	}
}

func TestSelectorSkipsUnrelatedCommits(t *testing.T) {
	root := NewRootRoute(RouteOptions{})
	root.AddChildren(
		NewRoute(RouteOptions{Path: "a", Loader: dataLoader("a")}),
		NewRoute(RouteOptions{Path: "b", Loader: dataLoader("b")}),
	)
	r, _ := newTestRouter(t, root)
	ctx := context.Background()
	require.NoError(t, r.Navigate(ctx, to("/a")))

	sel := store.NewSelector(r.Store(), func(s RouterState) string {
		return s.Location.Pathname
	})
	defer sel.Close()

	calls := 0
	sel.Subscribe(func(string) { calls++ })

	// Invalidate reloads /a in place: the pathname slice never changes.
	require.NoError(t, r.Invalidate(ctx, nil))
	assert.Zero(t, calls)

	require.NoError(t, r.Navigate(ctx, to("/b")))
	assert.Equal(t, 1, calls)
	assert.Equal(t, "/b", sel.Get())
}
