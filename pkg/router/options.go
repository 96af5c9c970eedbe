package router

import (
	"log/slog"
	"time"

	"github.com/vango-dev/routecore/pkg/history"
	"github.com/vango-dev/routecore/pkg/routepath"
)

// SameHrefPolicy decides how a navigation to the current href is recorded.
type SameHrefPolicy int

const (
	// SameHrefReplace replaces the current entry.
	SameHrefReplace SameHrefPolicy = iota
	// SameHrefPush pushes a new entry unless Replace is set.
	SameHrefPush
)

// Default timing values.
const (
	DefaultStaleTime        = 0
	DefaultPreloadStaleTime = 30 * time.Second
	DefaultGcTime           = 30 * time.Minute
	DefaultPreloadGcTime    = 30 * time.Minute
	DefaultPendingMs        = time.Second
	DefaultPendingMinMs     = 500 * time.Millisecond
	DefaultMaxRedirects     = 10
)

// Options configures a Router.
type Options struct {
	// History is the injected history. Defaults to a memory history at "/".
	History history.History

	// Context is the router context every hook context starts from.
	Context RouteContext

	Logger *slog.Logger

	CaseSensitive bool
	TrailingSlash routepath.TrailingSlash

	StaleTime        time.Duration
	PreloadStaleTime time.Duration
	GcTime           time.Duration
	PreloadGcTime    time.Duration
	PendingMs        time.Duration
	PendingMinMs     time.Duration

	DefaultPendingComponent  Component
	DefaultErrorComponent    Component
	DefaultNotFoundComponent Component

	SameHref     SameHrefPolicy
	MaxRedirects int

	// Server routers record redirects on the state instead of following them.
	Server bool

	// Middleware wraps every loader, outside route middleware.
	Middleware []Middleware

	// Now is the clock used for staleness and gc. Defaults to time.Now.
	Now func() time.Time
}

// Option configures a Router.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		TrailingSlash:    routepath.TrailingSlashNever,
		StaleTime:        DefaultStaleTime,
		PreloadStaleTime: DefaultPreloadStaleTime,
		GcTime:           DefaultGcTime,
		PreloadGcTime:    DefaultPreloadGcTime,
		PendingMs:        DefaultPendingMs,
		PendingMinMs:     DefaultPendingMinMs,
		SameHref:         SameHrefReplace,
		MaxRedirects:     DefaultMaxRedirects,
		Now:              time.Now,
	}
}

// WithOptions replaces all options at once, keeping defaults for zero
// clocks, loggers and histories.
func WithOptions(o Options) Option {
	return func(dst *Options) {
		*dst = o
	}
}

// WithHistory sets the history the router drives.
func WithHistory(h history.History) Option {
	return func(o *Options) {
		o.History = h
	}
}

// WithContext sets the router context.
func WithContext(ctx RouteContext) Option {
	return func(o *Options) {
		o.Context = ctx
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithCaseSensitive makes static segment matching case sensitive.
func WithCaseSensitive(v bool) Option {
	return func(o *Options) {
		o.CaseSensitive = v
	}
}

// WithTrailingSlash sets the trailing slash policy.
func WithTrailingSlash(ts routepath.TrailingSlash) Option {
	return func(o *Options) {
		if ts.Valid() {
			o.TrailingSlash = ts
		}
	}
}

// WithDefaultStaleTime sets the stale time of routes without their own.
func WithDefaultStaleTime(d time.Duration) Option {
	return func(o *Options) {
		o.StaleTime = d
	}
}

// WithDefaultPreloadStaleTime sets the stale time used for preloads.
func WithDefaultPreloadStaleTime(d time.Duration) Option {
	return func(o *Options) {
		o.PreloadStaleTime = d
	}
}

// WithDefaultGcTime sets how long cached matches are kept.
func WithDefaultGcTime(d time.Duration) Option {
	return func(o *Options) {
		o.GcTime = d
	}
}

// WithDefaultPreloadGcTime sets how long preloaded matches are kept.
func WithDefaultPreloadGcTime(d time.Duration) Option {
	return func(o *Options) {
		o.PreloadGcTime = d
	}
}

// WithDefaultPending sets the pending display delay and minimum duration.
func WithDefaultPending(delay, min time.Duration) Option {
	return func(o *Options) {
		o.PendingMs = delay
		o.PendingMinMs = min
	}
}

// WithDefaultComponents sets the root fallbacks for pending, error and
// not-found rendering.
func WithDefaultComponents(pending, errComp, notFound Component) Option {
	return func(o *Options) {
		o.DefaultPendingComponent = pending
		o.DefaultErrorComponent = errComp
		o.DefaultNotFoundComponent = notFound
	}
}

// WithSameHrefPolicy sets how navigations to the current href are recorded.
func WithSameHrefPolicy(p SameHrefPolicy) Option {
	return func(o *Options) {
		o.SameHref = p
	}
}

// WithMaxRedirects bounds the redirects followed by one navigation.
func WithMaxRedirects(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxRedirects = n
		}
	}
}

// WithServer marks the router as running on a server.
func WithServer(v bool) Option {
	return func(o *Options) {
		o.Server = v
	}
}

// WithMiddleware appends router-wide loader middleware.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *Options) {
		o.Middleware = append(o.Middleware, mw...)
	}
}

// WithClock sets the clock used for staleness and gc.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		if now != nil {
			o.Now = now
		}
	}
}

// staleTime returns the route's stale time for a normal or preload match.
func (r *Router) staleTime(route *Route, preload bool) time.Duration {
	opts := route.Options()
	if preload {
		return durationOr(opts.PreloadStaleTime, r.opts.PreloadStaleTime)
	}
	return durationOr(opts.StaleTime, r.opts.StaleTime)
}

func (r *Router) gcTime(route *Route, preload bool) time.Duration {
	opts := route.Options()
	if preload {
		return durationOr(opts.PreloadGcTime, r.opts.PreloadGcTime)
	}
	return durationOr(opts.GcTime, r.opts.GcTime)
}

func durationOr(d *time.Duration, def time.Duration) time.Duration {
	if d != nil {
		return *d
	}
	return def
}
