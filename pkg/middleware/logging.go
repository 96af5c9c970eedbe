package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/vango-dev/routecore/pkg/router"
)

// Logging logs every loader call. Successes, redirects and not-founds log
// at Debug, failures at Warn. A nil logger uses the router's logger.
func Logging(logger *slog.Logger) router.Middleware {
	return router.MiddlewareFunc(func(ctx context.Context, lc *router.LoadContext, next router.LoaderHandler) (any, error) {
		log := logger
		if log == nil {
			if lc.Router != nil {
				log = lc.Router.Logger()
			} else {
				log = slog.Default()
			}
		}

		start := time.Now()
		data, err := next(ctx)
		out := router.Classify(data, err)

		attrs := []any{
			"route", routeLabel(lc),
			"match", lc.MatchID,
			"outcome", out.Kind.String(),
			"duration", time.Since(start),
		}
		if lc.Preload {
			attrs = append(attrs, "preload", true)
		}

		switch out.Kind {
		case router.OutcomeFailure:
			log.WarnContext(ctx, "loader failed", append(attrs, "error", err)...)
		case router.OutcomeRedirect:
			log.DebugContext(ctx, "loader redirected", append(attrs, "to", out.Redirect.To)...)
		default:
			log.DebugContext(ctx, "loader finished", attrs...)
		}
		return data, err
	})
}
