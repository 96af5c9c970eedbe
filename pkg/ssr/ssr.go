// Package ssr serves router loads over HTTP.
//
// Each request gets a fresh router on a memory history positioned at the
// request URL. The handler loads it and streams newline-delimited JSON:
// the first line is the dehydrated state, each following line resolves
// one router.Deferred value found in loader data.
//
//	h, _ := ssr.New(ssr.Config{
//	    Factory: func(opts ...router.Option) (*router.Router, error) {
//	        return router.New(routes(), opts...)
//	    },
//	})
//	http.ListenAndServe(":8080", h)
//
// Redirects answer with an HTTP redirect. A not-found location answers
// 404 and an errored match 500, both still carrying the state line.
package ssr

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vango-dev/routecore/pkg/history"
	"github.com/vango-dev/routecore/pkg/router"
)

// ContentType is the media type of the streamed response.
const ContentType = "application/x-ndjson"

// DefaultDeferredTimeout bounds how long the handler waits for deferred
// values after the state line.
const DefaultDeferredTimeout = 10 * time.Second

// Factory builds a router. The handler passes the options that bind it to
// the request: its history, server mode and logger.
type Factory func(opts ...router.Option) (*router.Router, error)

// Config configures the SSR handler.
type Config struct {
	// Factory builds a router per request. Required.
	Factory Factory

	// Logger receives request logs. Defaults to slog.Default().
	Logger *slog.Logger

	// DeferredTimeout bounds waiting for deferred values.
	DeferredTimeout time.Duration

	// Middleware wraps the handler's chi router.
	Middleware []func(http.Handler) http.Handler
}

// DeferredLine is one resolved deferred value.
type DeferredLine struct {
	Deferred string `json:"deferred"`
	Data     any    `json:"data,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Handler is the SSR http.Handler.
type Handler struct {
	config Config
	logger *slog.Logger
	mux    chi.Router
}

// New creates a Handler.
func New(config Config) (*Handler, error) {
	if config.Factory == nil {
		return nil, errors.New("ssr: Factory is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.DeferredTimeout <= 0 {
		config.DeferredTimeout = DefaultDeferredTimeout
	}

	h := &Handler{
		config: config,
		logger: config.Logger.With("component", "ssr"),
		mux:    chi.NewRouter(),
	}
	h.mux.Use(middleware.RequestID, middleware.Recoverer)
	h.mux.Use(config.Middleware...)
	h.mux.Get("/*", h.serve)
	h.mux.Head("/*", h.serve)
	return h, nil
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) serve(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	log := h.logger.With("path", req.URL.Path, "request_id", middleware.GetReqID(ctx))

	hist := history.NewMemoryHistory(req.URL.RequestURI())
	rt, err := h.config.Factory(
		router.WithHistory(hist),
		router.WithServer(true),
		router.WithLogger(h.config.Logger),
	)
	if err != nil {
		log.Error("router factory failed", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer rt.Dispose()

	var (
		mu       sync.Mutex
		deferred []*router.Deferred
	)
	off := rt.On(router.EventMatchSettled, func(ev router.Event) {
		if ev.Match == nil || ev.Match.Status != router.StatusSuccess {
			return
		}
		found := router.CollectDeferred(ev.Match.LoaderData)
		mu.Lock()
		deferred = append(deferred, found...)
		mu.Unlock()
	})
	err = rt.Load(ctx)
	off()
	if err != nil {
		log.Error("load failed", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	state := rt.State()
	if state.Redirect != nil {
		target, err := redirectTarget(rt, state)
		if err != nil {
			log.Error("unresolvable redirect", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		log.Debug("redirecting", "to", target, "status", state.Redirect.Code())
		http.Redirect(w, req, target, state.Redirect.Code())
		return
	}

	status := state.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if req.Method == http.MethodHead {
		return
	}

	enc := json.NewEncoder(w)
	if err := enc.Encode(rt.Dehydrate()); err != nil {
		log.Warn("writing state failed", "error", err)
		return
	}
	flush(w)

	// Only deferred values reachable from the committed matches stream.
	live := committedDeferred(state)
	mu.Lock()
	pending := make([]*router.Deferred, 0, len(deferred))
	for _, d := range deferred {
		if live[d.ID()] {
			pending = append(pending, d)
			delete(live, d.ID())
		}
	}
	mu.Unlock()
	h.streamDeferred(ctx, log, enc, w, pending)
}

// streamDeferred writes each value as it resolves.
func (h *Handler) streamDeferred(ctx context.Context, log *slog.Logger, enc *json.Encoder, w http.ResponseWriter, pending []*router.Deferred) {
	if len(pending) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, h.config.DeferredTimeout)
	defer cancel()

	lines := make(chan DeferredLine, len(pending))
	for _, d := range pending {
		go func(d *router.Deferred) {
			v, err := d.Await(ctx)
			line := DeferredLine{Deferred: d.ID(), Data: v}
			if err != nil {
				line.Data = nil
				line.Error = err.Error()
			}
			lines <- line
		}(d)
	}

	for range pending {
		line := <-lines
		if err := enc.Encode(line); err != nil {
			log.Warn("writing deferred value failed", "deferred", line.Deferred, "error", err)
			return
		}
		flush(w)
	}
}

func committedDeferred(state router.RouterState) map[string]bool {
	out := make(map[string]bool)
	for _, m := range state.Matches {
		for _, d := range router.CollectDeferred(m.LoaderData) {
			out[d.ID()] = true
		}
	}
	return out
}

// redirectTarget resolves the recorded redirect to an href.
func redirectTarget(rt *router.Router, state router.RouterState) (string, error) {
	re := state.Redirect
	if re.Href != "" {
		return re.Href, nil
	}
	loc, err := rt.BuildLocation(router.NavigateOptions{
		To:     re.To,
		From:   state.Location.Pathname,
		Params: re.Params,
		Search: re.Search,
		Hash:   re.Hash,
	})
	if err != nil {
		return "", err
	}
	return loc.Href, nil
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
