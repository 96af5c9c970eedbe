package manifest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/routecore/internal/config"
	"github.com/vango-dev/routecore/internal/errors"
	"github.com/vango-dev/routecore/pkg/router"
)

// Manifest is a parsed route manifest.
type Manifest struct {
	Root   RouteSpec   `yaml:"root"`
	Routes []RouteSpec `yaml:"routes"`

	// Context is the router context handed to every hook.
	Context map[string]any `yaml:"context,omitempty"`

	path string
}

// RouteSpec describes one route.
type RouteSpec struct {
	ID   string `yaml:"id,omitempty"`
	Path string `yaml:"path,omitempty"`

	Loader     *LoaderSpec     `yaml:"loader,omitempty"`
	BeforeLoad *BeforeLoadSpec `yaml:"beforeLoad,omitempty"`

	// Params maps param names to ValidateParam types.
	Params map[string]string `yaml:"params,omitempty"`

	// LoaderDeps names the search keys the loader depends on.
	LoaderDeps []string `yaml:"loaderDeps,omitempty"`

	Component         string `yaml:"component,omitempty"`
	PendingComponent  string `yaml:"pendingComponent,omitempty"`
	ErrorComponent    string `yaml:"errorComponent,omitempty"`
	NotFoundComponent string `yaml:"notFoundComponent,omitempty"`

	StaleTime    *config.Duration `yaml:"staleTime,omitempty"`
	GcTime       *config.Duration `yaml:"gcTime,omitempty"`
	PendingMs    *config.Duration `yaml:"pendingMs,omitempty"`
	PendingMinMs *config.Duration `yaml:"pendingMinMs,omitempty"`

	Children []RouteSpec `yaml:"children,omitempty"`
}

// LoaderSpec simulates a loader. At most one of Error, NotFound and
// Redirect may be set.
type LoaderSpec struct {
	Data     any                  `yaml:"data,omitempty"`
	Delay    config.Duration      `yaml:"delay,omitempty"`
	Error    string               `yaml:"error,omitempty"`
	NotFound bool                 `yaml:"notFound,omitempty"`
	Redirect string               `yaml:"redirect,omitempty"`
	Defer    map[string]DeferSpec `yaml:"defer,omitempty"`
}

// DeferSpec simulates a deferred value inside loader data.
type DeferSpec struct {
	Data  any             `yaml:"data,omitempty"`
	Delay config.Duration `yaml:"delay,omitempty"`
	Error string          `yaml:"error,omitempty"`
}

// BeforeLoadSpec simulates a beforeLoad hook.
type BeforeLoadSpec struct {
	// Context is merged into the route context.
	Context map[string]any `yaml:"context,omitempty"`

	// RedirectUnless redirects to Redirect when the context lacks the key.
	RedirectUnless string `yaml:"redirectUnless,omitempty"`
	Redirect       string `yaml:"redirect,omitempty"`

	Error    string `yaml:"error,omitempty"`
	NotFound bool   `yaml:"notFound,omitempty"`
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("R300").
				WithDetail("No manifest at " + path).
				WithSuggestion("Set manifest in routecore.yaml or pass --manifest")
		}
		return nil, errors.New("R301").Wrap(err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, err
	}
	m.path = path
	return m, nil
}

// Parse decodes and validates a manifest.
func Parse(data []byte) (*Manifest, error) {
	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, errors.New("R301").WithDetail(err.Error())
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Path returns the file the manifest was loaded from.
func (m *Manifest) Path() string { return m.path }

// Validate checks hook specs. Tree shape errors surface from Build.
func (m *Manifest) Validate() error {
	if m.Root.Path != "" {
		return errors.New("R301").WithDetail("root must not declare a path")
	}
	var walk func(where string, specs []RouteSpec) error
	check := func(where string, s RouteSpec) error {
		if s.Loader != nil {
			n := 0
			for _, set := range []bool{s.Loader.Error != "", s.Loader.NotFound, s.Loader.Redirect != ""} {
				if set {
					n++
				}
			}
			if n > 1 {
				return errors.New("R301").WithDetailf("%s: loader sets more than one of error, notFound, redirect", where)
			}
			if len(s.Loader.Defer) > 0 && s.Loader.Data != nil {
				if _, ok := s.Loader.Data.(map[string]any); !ok {
					return errors.New("R301").WithDetailf("%s: loader defer needs map data", where)
				}
			}
		}
		if b := s.BeforeLoad; b != nil && b.RedirectUnless != "" && b.Redirect == "" {
			return errors.New("R301").WithDetailf("%s: beforeLoad redirectUnless needs redirect", where)
		}
		for name, typ := range s.Params {
			switch typ {
			case "int", "uint", "float", "bool", "uuid", "string":
			default:
				return errors.New("R301").WithDetailf("%s: param %q has unknown type %q", where, name, typ)
			}
		}
		return nil
	}
	walk = func(parent string, specs []RouteSpec) error {
		for _, s := range specs {
			where := strings.TrimSuffix(parent, "/") + "/" + strings.TrimPrefix(s.Path, "/")
			if s.Path == "" {
				if s.ID == "" {
					return errors.New("R301").WithDetailf("%s: pathless route needs an id", parent)
				}
				where = parent + " (" + s.ID + ")"
			}
			if err := check(where, s); err != nil {
				return err
			}
			if err := walk(where, s.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := check("root", m.Root); err != nil {
		return err
	}
	return walk("", m.Routes)
}

// Build creates the route tree. Each call returns a fresh tree.
func (m *Manifest) Build() *router.Route {
	root := router.NewRootRoute(m.Root.options())
	root.AddChildren(buildAll(m.Routes)...)
	return root
}

// NewRouter builds the tree and a router over it with the manifest
// context and opts.
func (m *Manifest) NewRouter(opts ...router.Option) (*router.Router, error) {
	base := []router.Option{router.WithContext(router.RouteContext(m.Context))}
	return router.New(m.Build(), append(base, opts...)...)
}

func buildAll(specs []RouteSpec) []*router.Route {
	out := make([]*router.Route, 0, len(specs))
	for _, s := range specs {
		r := router.NewRoute(s.options())
		r.AddChildren(buildAll(s.Children)...)
		out = append(out, r)
	}
	return out
}

func (s RouteSpec) options() router.RouteOptions {
	opts := router.RouteOptions{
		ID:           s.ID,
		Path:         s.Path,
		StaleTime:    duration(s.StaleTime),
		GcTime:       duration(s.GcTime),
		PendingMs:    duration(s.PendingMs),
		PendingMinMs: duration(s.PendingMinMs),
	}
	if s.Component != "" {
		opts.Component = s.Component
	}
	if s.PendingComponent != "" {
		opts.PendingComponent = s.PendingComponent
	}
	if s.ErrorComponent != "" {
		opts.ErrorComponent = s.ErrorComponent
	}
	if s.NotFoundComponent != "" {
		opts.NotFoundComponent = s.NotFoundComponent
	}
	if len(s.Params) > 0 {
		opts.ParseParams = router.ParamTypes(s.Params)
	}
	if len(s.LoaderDeps) > 0 {
		keys := s.LoaderDeps
		opts.LoaderDeps = func(search map[string]any) any {
			deps := make(map[string]any, len(keys))
			for _, k := range keys {
				if v, ok := search[k]; ok {
					deps[k] = v
				}
			}
			return deps
		}
	}
	if s.Loader != nil {
		opts.Loader = s.Loader.loader()
	}
	if s.BeforeLoad != nil {
		opts.BeforeLoad = s.BeforeLoad.beforeLoad()
	}
	return opts
}

func duration(d *config.Duration) *time.Duration {
	if d == nil {
		return nil
	}
	return router.Duration(d.Std())
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *LoaderSpec) loader() router.LoaderFunc {
	return func(ctx context.Context, lc *router.LoadContext) (any, error) {
		if err := sleep(ctx, l.Delay.Std()); err != nil {
			return nil, err
		}
		switch {
		case l.Error != "":
			return nil, fmt.Errorf("%s", interpolate(l.Error, lc.Params))
		case l.NotFound:
			return nil, &router.NotFoundError{Message: lc.Location.Pathname}
		case l.Redirect != "":
			return nil, router.Redirect(interpolate(l.Redirect, lc.Params).(string))
		}

		data := interpolate(l.Data, lc.Params)
		if len(l.Defer) == 0 {
			return data, nil
		}
		out, _ := data.(map[string]any)
		if out == nil {
			out = make(map[string]any, len(l.Defer))
		}
		for key, spec := range l.Defer {
			params := lc.Params
			out[key] = router.Defer(context.WithoutCancel(ctx), func(ctx context.Context) (any, error) {
				if err := sleep(ctx, spec.Delay.Std()); err != nil {
					return nil, err
				}
				if spec.Error != "" {
					return nil, fmt.Errorf("%s", interpolate(spec.Error, params))
				}
				return interpolate(spec.Data, params), nil
			})
		}
		return out, nil
	}
}

func (b *BeforeLoadSpec) beforeLoad() router.BeforeLoadFunc {
	return func(ctx context.Context, lc *router.LoadContext) (router.RouteContext, error) {
		if b.RedirectUnless != "" {
			if _, ok := lc.Value(b.RedirectUnless); !ok {
				return nil, router.Redirect(b.Redirect)
			}
		}
		switch {
		case b.Error != "":
			return nil, fmt.Errorf("%s", interpolate(b.Error, lc.Params))
		case b.NotFound:
			return nil, router.NotFound()
		}
		if len(b.Context) == 0 {
			return nil, nil
		}
		out := make(router.RouteContext, len(b.Context))
		for k, v := range b.Context {
			out[k] = interpolate(v, lc.Params)
		}
		return out, nil
	}
}

// interpolate copies v, replacing {name} in strings with path params.
func interpolate(v any, params map[string]string) any {
	switch t := v.(type) {
	case string:
		if len(params) == 0 || !strings.Contains(t, "{") {
			return t
		}
		pairs := make([]string, 0, len(params)*2)
		for k, p := range params {
			pairs = append(pairs, "{"+k+"}", p)
		}
		return strings.NewReplacer(pairs...).Replace(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = interpolate(e, params)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = interpolate(e, params)
		}
		return out
	default:
		return v
	}
}
