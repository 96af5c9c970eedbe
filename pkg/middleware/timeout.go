package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/vango-dev/routecore/pkg/router"
)

// TimeoutError is returned when a loader outlives its budget.
type TimeoutError struct {
	RouteID string
	After   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("loader %s timed out after %s", e.RouteID, e.After)
}

// Unwrap lets errors.Is match context.DeadlineExceeded.
func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// Timeout bounds every loader to d. The loader's context is cancelled at
// the deadline; a loader ignoring it keeps running in its goroutine but
// its result is discarded.
func Timeout(d time.Duration) router.Middleware {
	return router.MiddlewareFunc(func(ctx context.Context, lc *router.LoadContext, next router.LoaderHandler) (any, error) {
		if d <= 0 {
			return next(ctx)
		}
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		type result struct {
			data any
			err  error
		}
		done := make(chan result, 1)
		go func() {
			defer func() {
				if v := recover(); v != nil {
					done <- result{err: &router.PanicError{Value: v}}
				}
			}()
			data, err := next(ctx)
			done <- result{data, err}
		}()

		select {
		case res := <-done:
			return res.data, res.err
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return nil, &TimeoutError{RouteID: routeLabel(lc), After: d}
			}
			return nil, ctx.Err()
		}
	})
}
