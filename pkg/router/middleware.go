package router

import "context"

// LoaderHandler runs the rest of a loader chain.
type LoaderHandler func(ctx context.Context) (any, error)

// Middleware wraps route loaders.
type Middleware interface {
	// Handle runs around the loader. Call next to continue the chain.
	Handle(ctx context.Context, lc *LoadContext, next LoaderHandler) (any, error)
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(ctx context.Context, lc *LoadContext, next LoaderHandler) (any, error)

// Handle implements Middleware.
func (f MiddlewareFunc) Handle(ctx context.Context, lc *LoadContext, next LoaderHandler) (any, error) {
	return f(ctx, lc, next)
}

// ComposeMiddleware builds a handler chain from middleware and a final handler.
// Middleware is executed in order (first to last), with the handler at the end.
func ComposeMiddleware(ctx context.Context, lc *LoadContext, mw []Middleware, handler LoaderHandler) (any, error) {
	if len(mw) == 0 {
		return handler(ctx)
	}

	// Build chain from end to start
	chain := handler
	for i := len(mw) - 1; i >= 0; i-- {
		m := mw[i]
		next := chain
		chain = func(ctx context.Context) (any, error) {
			return m.Handle(ctx, lc, next)
		}
	}

	return chain(ctx)
}

// Chain creates a middleware that combines multiple middleware in order.
func Chain(middleware ...Middleware) Middleware {
	return MiddlewareFunc(func(ctx context.Context, lc *LoadContext, next LoaderHandler) (any, error) {
		return ComposeMiddleware(ctx, lc, middleware, next)
	})
}

// Skip bypasses mw when condition holds.
func Skip(condition func(lc *LoadContext) bool, mw Middleware) Middleware {
	return MiddlewareFunc(func(ctx context.Context, lc *LoadContext, next LoaderHandler) (any, error) {
		if condition(lc) {
			return next(ctx)
		}
		return mw.Handle(ctx, lc, next)
	})
}

// Only runs mw only when condition holds.
func Only(condition func(lc *LoadContext) bool, mw Middleware) Middleware {
	return MiddlewareFunc(func(ctx context.Context, lc *LoadContext, next LoaderHandler) (any, error) {
		if !condition(lc) {
			return next(ctx)
		}
		return mw.Handle(ctx, lc, next)
	})
}
