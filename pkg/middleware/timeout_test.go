package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/routecore/pkg/router"
)

func TestTimeoutPassesFastLoader(t *testing.T) {
	mw := Timeout(time.Second)
	v, err := mw.Handle(context.Background(), &router.LoadContext{}, func(context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestTimeoutExpires(t *testing.T) {
	mw := Timeout(10 * time.Millisecond)
	cancelled := make(chan struct{})

	_, err := mw.Handle(context.Background(), &router.LoadContext{}, func(ctx context.Context) (any, error) {
		<-ctx.Done()
		close(cancelled)
		time.Sleep(20 * time.Millisecond)
		return "late", nil
	})

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 10*time.Millisecond, te.After)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("loader context was not cancelled")
	}
}

func TestTimeoutParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Timeout(time.Second).Handle(ctx, &router.LoadContext{}, func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTimeoutRecoversPanic(t *testing.T) {
	_, err := Timeout(time.Second).Handle(context.Background(), &router.LoadContext{}, func(context.Context) (any, error) {
		panic("bad loader")
	})
	var pe *router.PanicError
	assert.ErrorAs(t, err, &pe)
}

func TestTimeoutStoresErrorOnMatch(t *testing.T) {
	root := loaderTree(map[string]router.LoaderFunc{
		"slow": func(ctx context.Context, _ *router.LoadContext) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})
	r := newRouter(t, root, router.WithMiddleware(Timeout(10*time.Millisecond)))
	navigate(t, r, "/slow")

	s := r.State()
	last := s.Matches[len(s.Matches)-1]
	assert.Equal(t, router.StatusError, last.Status)
	var te *TimeoutError
	assert.True(t, errors.As(last.Error, &te))
	assert.Equal(t, 500, s.StatusCode)
}
