package middleware

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vango-dev/routecore/pkg/history"
	"github.com/vango-dev/routecore/pkg/router"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// loaderTree is a root with one child per loader, at /<name>.
func loaderTree(loaders map[string]router.LoaderFunc) *router.Route {
	root := router.NewRootRoute(router.RouteOptions{})
	for name, fn := range loaders {
		root.AddChildren(router.NewRoute(router.RouteOptions{Path: name, Loader: fn}))
	}
	return root
}

func newRouter(t *testing.T, root *router.Route, opts ...router.Option) *router.Router {
	t.Helper()
	base := []router.Option{
		router.WithLogger(quietLogger()),
		router.WithHistory(history.NewMemoryHistory("/")),
	}
	r, err := router.New(root, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(r.Dispose)
	return r
}

func navigate(t *testing.T, r *router.Router, path string) {
	t.Helper()
	require.NoError(t, r.Navigate(context.Background(), router.NavigateOptions{To: path}))
}

func value(v any) router.LoaderFunc {
	return func(context.Context, *router.LoadContext) (any, error) { return v, nil }
}

func failing(err error) router.LoaderFunc {
	return func(context.Context, *router.LoadContext) (any, error) { return nil, err }
}
