package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/routecore/pkg/router"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "routecore").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for loader duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "routecore",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics is a loader middleware collecting Prometheus metrics. Besides
// wrapping loaders it can observe a router's events with Observe.
type Metrics struct {
	loadsTotal       *prometheus.CounterVec
	loadDuration     *prometheus.HistogramVec
	joinsTotal       *prometheus.CounterVec
	evictionsTotal   prometheus.Counter
	navigationsTotal *prometheus.CounterVec
}

// Prometheus creates the metrics middleware and registers its collectors.
//
// Metrics collected:
//   - routecore_loads_total: loader calls by route and outcome
//   - routecore_load_duration_seconds: loader duration by route
//   - routecore_load_joins_total: loads that joined one in flight (Observe)
//   - routecore_cache_evictions_total: matches swept from the cache (Observe)
//   - routecore_navigations_total: resolved navigations by status code (Observe)
//
// Example:
//
//	m := middleware.Prometheus(middleware.WithNamespace("myapp"))
//	r, _ := router.New(root, router.WithMiddleware(m))
//	defer m.Observe(r)()
//
//	http.Handle("/metrics", promhttp.Handler())
//
// Each call registers new collectors, so use one Metrics per registry.
func Prometheus(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		loadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "loads_total",
			Help:        "Total number of loader calls",
			ConstLabels: config.ConstLabels,
		}, []string{"route", "outcome"}),

		loadDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "load_duration_seconds",
			Help:        "Loader duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"route"}),

		joinsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "load_joins_total",
			Help:        "Total number of loads that joined a loader already in flight",
			ConstLabels: config.ConstLabels,
		}, []string{"route"}),

		evictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "cache_evictions_total",
			Help:        "Total number of matches evicted from the cache",
			ConstLabels: config.ConstLabels,
		}),

		navigationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigations_total",
			Help:        "Total number of resolved navigations by status code",
			ConstLabels: config.ConstLabels,
		}, []string{"code"}),
	}
}

// Handle implements router.Middleware.
func (m *Metrics) Handle(ctx context.Context, lc *router.LoadContext, next router.LoaderHandler) (any, error) {
	route := routeLabel(lc)
	start := time.Now()

	data, err := next(ctx)

	m.loadDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	m.loadsTotal.WithLabelValues(route, outcomeLabel(ctx, data, err)).Inc()
	return data, err
}

// Observe subscribes to r's events and returns the unsubscribe.
func (m *Metrics) Observe(r *router.Router) (unsubscribe func()) {
	offs := []func(){
		r.On(router.EventMatchJoined, func(ev router.Event) {
			if ev.Match != nil {
				m.joinsTotal.WithLabelValues(ev.Match.RouteID).Inc()
			}
		}),
		r.On(router.EventCacheEvicted, func(ev router.Event) {
			m.evictionsTotal.Add(float64(len(ev.Matches)))
		}),
		r.On(router.EventResolved, func(router.Event) {
			m.navigationsTotal.WithLabelValues(strconv.Itoa(r.State().StatusCode)).Inc()
		}),
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

func routeLabel(lc *router.LoadContext) string {
	if lc == nil || lc.Route == nil {
		return "unknown"
	}
	return lc.Route.ID()
}

// outcomeLabel keeps the label set bounded: success, redirect, notFound,
// failure or canceled.
func outcomeLabel(ctx context.Context, data any, err error) string {
	if err != nil && ctx.Err() != nil {
		return "canceled"
	}
	return router.Classify(data, err).Kind.String()
}
