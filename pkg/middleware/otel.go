package middleware

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/routecore/pkg/router"
)

// Default tracer name for routecore loaders.
const defaultTracerName = "routecore"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "routecore").
	TracerName string

	// TracerProvider overrides the global provider.
	TracerProvider trace.TracerProvider

	// IncludeParams adds path params as span attributes. Params may carry
	// identifiers, so this is disabled by default.
	IncludeParams bool

	// Filter determines which loads to trace.
	// Return true to trace the load, false to skip.
	// If nil, all loads are traced.
	Filter func(lc *router.LoadContext) bool

	// AttributeExtractor extracts custom attributes from the load.
	AttributeExtractor func(lc *router.LoadContext) []attribute.KeyValue

	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithIncludeParams enables path params as span attributes.
func WithIncludeParams(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeParams = include
	}
}

// WithLoadFilter sets a filter function for loads.
func WithLoadFilter(filter func(lc *router.LoadContext) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(lc *router.LoadContext) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName: defaultTracerName,
	}
}

// OpenTelemetry creates middleware that starts one span per loader call.
//
// The span carries the route id, match id, pathname, cause and preload
// flag, and the classified outcome. Only failures set an error status;
// redirects and not-founds are control flow. The loader runs with the
// span's context, so its own calls join the trace.
//
// Example:
//
//	r, _ := router.New(root, router.WithMiddleware(
//	    middleware.OpenTelemetry(middleware.WithTracerName("my-app")),
//	))
func OpenTelemetry(opts ...OTelOption) router.Middleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	if config.TracerProvider != nil {
		config.tracer = config.TracerProvider.Tracer(config.TracerName)
	} else {
		config.tracer = otel.Tracer(config.TracerName)
	}

	return router.MiddlewareFunc(func(ctx context.Context, lc *router.LoadContext, next router.LoaderHandler) (any, error) {
		if config.Filter != nil && !config.Filter(lc) {
			return next(ctx)
		}

		route := routeLabel(lc)
		attrs := []attribute.KeyValue{
			attribute.String("routecore.route_id", route),
			attribute.String("routecore.match_id", lc.MatchID),
			attribute.String("routecore.pathname", lc.Location.Pathname),
			attribute.String("routecore.cause", string(lc.Cause)),
			attribute.Bool("routecore.preload", lc.Preload),
		}
		if config.IncludeParams {
			for k, v := range lc.Params {
				attrs = append(attrs, attribute.String("routecore.param."+k, v))
			}
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(lc)...)
		}

		spanCtx, span := config.tracer.Start(ctx, spanName(route),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		data, err := next(spanCtx)

		out := router.Classify(data, err)
		span.SetAttributes(attribute.String("routecore.outcome", out.Kind.String()))
		if out.Kind == router.OutcomeFailure {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return data, err
	})
}

func spanName(route string) string {
	return fmt.Sprintf("routecore.loader %s", route)
}
