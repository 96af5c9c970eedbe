// Package middleware provides loader middleware for routecore routers.
//
// This package includes:
//   - OpenTelemetry tracing, one span per loader call
//   - Prometheus metrics for loaders, dedup joins, evictions and navigations
//   - Timeout and Logging loader wrappers
//
// Every middleware implements router.Middleware and is installed with
// router.WithMiddleware, or per route with RouteOptions.Middleware.
//
// # OpenTelemetry Middleware
//
//	r, _ := router.New(root, router.WithMiddleware(
//	    middleware.OpenTelemetry(),
//	))
//
// Configure with options:
//
//	middleware.OpenTelemetry(
//	    middleware.WithTracerName("my-app"),
//	    middleware.WithLoadFilter(func(lc *router.LoadContext) bool {
//	        return !lc.Preload
//	    }),
//	)
//
// The loader receives the span's context, so database drivers and HTTP
// clients called from it join the trace.
//
// # Prometheus Metrics
//
//	m := middleware.Prometheus()
//	r, _ := router.New(root, router.WithMiddleware(m))
//	stop := m.Observe(r)
//	defer stop()
//
// Then expose metrics:
//
//	http.Handle("/metrics", promhttp.Handler())
//
// # Ordering
//
// Middleware run in the order given, outermost first. Router middleware
// wrap route middleware. Put Timeout innermost so its deadline covers the
// loader alone:
//
//	router.WithMiddleware(
//	    middleware.Logging(nil),
//	    middleware.Prometheus(),
//	    middleware.Timeout(5*time.Second),
//	)
package middleware
