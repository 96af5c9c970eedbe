package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/routecore/internal/config"
	"github.com/vango-dev/routecore/internal/manifest"
	"github.com/vango-dev/routecore/pkg/history"
	"github.com/vango-dev/routecore/pkg/live"
	"github.com/vango-dev/routecore/pkg/middleware"
	"github.com/vango-dev/routecore/pkg/router"
	"github.com/vango-dev/routecore/pkg/ssr"
)

const shutdownTimeout = 10 * time.Second

func (c *cli) serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve loads over HTTP",
		Long: `Serve the manifest over HTTP.

  GET  /*                      NDJSON: dehydrated state, then deferred values
  GET  <livePath>              websocket feed of the shared live router
  POST <livePath>/navigate     navigate the live router ({"href": "/x"})
  GET  <metricsPath>           Prometheus metrics (server.metrics: true)

Examples:
  routecore serve
  routecore serve --addr :9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				c.cfg.Server.Addr = addr
			}
			m, err := c.manifest(cmd.Context())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			success(cmd.OutOrStdout(), "Serving %s on %s", m.Path(), c.cfg.Server.Addr)
			return serve(ctx, c.cfg, m, c.cfg.Logger(cmd.ErrOrStderr()))
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Address to listen on (default from config)")

	return cmd
}

// server wires the SSR handler, the live feed and metrics.
type server struct {
	cfg      *config.Config
	manifest *manifest.Manifest
	logger   *slog.Logger

	registry *prometheus.Registry
	metrics  *middleware.Metrics
	feed     *live.Server
	live     *router.Router
}

func newServer(ctx context.Context, cfg *config.Config, m *manifest.Manifest, logger *slog.Logger) (*server, error) {
	s := &server{cfg: cfg, manifest: m, logger: logger, feed: live.NewServer(logger)}
	if cfg.Server.Metrics {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		s.metrics = middleware.Prometheus(middleware.WithRegistry(s.registry))
	}

	r, err := s.newRouter(router.WithHistory(history.NewMemoryHistory("/")))
	if err != nil {
		return nil, err
	}
	s.live = r
	s.feed.Attach(r)
	if err := r.Load(ctx); err != nil {
		r.Dispose()
		return nil, err
	}
	return s, nil
}

// newRouter builds a router over the manifest with the configured
// middleware.
func (s *server) newRouter(opts ...router.Option) (*router.Router, error) {
	mw := []router.Middleware{middleware.Logging(s.logger)}
	if s.metrics != nil {
		mw = append(mw, s.metrics)
	}
	if s.cfg.Server.Tracing {
		mw = append(mw, middleware.OpenTelemetry())
	}
	if d := s.cfg.Server.LoaderTimeout.Std(); d > 0 {
		mw = append(mw, middleware.Timeout(d))
	}

	base := append(s.cfg.RouterOptions(), router.WithLogger(s.logger), router.WithMiddleware(mw...))
	r, err := s.manifest.NewRouter(append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.Observe(r)
	}
	return r, nil
}

func (s *server) handler() (http.Handler, error) {
	h, err := ssr.New(ssr.Config{
		Factory:         s.newRouter,
		Logger:          s.logger,
		DeferredTimeout: s.cfg.Server.DeferredTimeout.Std(),
	})
	if err != nil {
		return nil, err
	}

	mux := chi.NewRouter()
	mux.Get(s.cfg.Server.LivePath, s.feed.HandleWebSocket)
	mux.Post(s.cfg.Server.LivePath+"/navigate", s.navigateLive)
	if s.registry != nil {
		mux.Handle(s.cfg.Server.MetricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	mux.Handle("/*", h)
	return mux, nil
}

type navigateRequest struct {
	Href    string `json:"href"`
	Replace bool   `json:"replace,omitempty"`
}

func (s *server) navigateLive(w http.ResponseWriter, req *http.Request) {
	var body navigateRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Href == "" {
		http.Error(w, "expected {\"href\": \"/path\"}", http.StatusBadRequest)
		return
	}
	err := s.live.Navigate(req.Context(), router.NavigateOptions{Href: body.Href, Replace: body.Replace})
	if err != nil {
		s.logger.Warn("live navigation failed", "href", body.Href, "error", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.live.Dehydrate())
}

func (s *server) close() {
	s.feed.Close()
	s.live.Dispose()
}

func serve(ctx context.Context, cfg *config.Config, m *manifest.Manifest, logger *slog.Logger) error {
	s, err := newServer(ctx, cfg, m, logger)
	if err != nil {
		return err
	}
	defer s.close()

	handler, err := s.handler()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serving", "addr", cfg.Server.Addr, "manifest", m.Path(), "live", cfg.Server.LivePath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
