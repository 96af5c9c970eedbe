package router

import (
	"maps"
	"strings"

	rcerrors "github.com/vango-dev/routecore/internal/errors"
	"github.com/vango-dev/routecore/pkg/history"
	"github.com/vango-dev/routecore/pkg/routepath"
)

// ParsedLocation is a canonical location with its search decoded.
type ParsedLocation struct {
	Href      string         `json:"href"`
	Pathname  string         `json:"pathname"`
	SearchStr string         `json:"searchStr"`
	Search    map[string]any `json:"search"`
	Hash      string         `json:"hash"`
	State     history.State  `json:"state"`
}

// NavigateOptions describes a navigation target relative to the current
// location.
type NavigateOptions struct {
	// To is the target path. It may contain $param segments and be
	// relative ("." or ".."). Empty means the current path.
	To string

	// From is the base for relative To values. Defaults to the current
	// pathname.
	From string

	// Params fill $param segments of To, merged over the current params.
	Params map[string]string

	// Search replaces the search. SearchFn, when set, derives it from the
	// current search instead.
	Search   map[string]any
	SearchFn func(current map[string]any) map[string]any

	Hash  string
	State map[string]any

	Replace       bool
	IgnoreBlocker bool

	// Href navigates to a full href, ignoring the fields above.
	Href string
}

// parseLocation canonicalizes a history entry.
func (r *Router) parseLocation(hl history.Location) (ParsedLocation, error) {
	res, err := routepath.CanonicalizePath(hl.Pathname, r.opts.TrailingSlash)
	if err != nil {
		return ParsedLocation{}, rcerrors.FromError(err, "R004").WithDetailf("invalid location %q", hl.Href)
	}
	search := routepath.ParseSearch(hl.Search)
	return newParsedLocation(res.Path, search, hl.Hash, hl.State), nil
}

func newParsedLocation(pathname string, search map[string]any, hash string, state history.State) ParsedLocation {
	if search == nil {
		search = map[string]any{}
	}
	h := routepath.Href{
		Pathname:  pathname,
		SearchStr: routepath.StringifySearch(search),
		Hash:      hash,
	}
	return ParsedLocation{
		Href:      h.String(),
		Pathname:  pathname,
		SearchStr: h.SearchStr,
		Search:    search,
		Hash:      hash,
		State:     state,
	}
}

// BuildLocation resolves opts against the current location without
// navigating.
func (r *Router) BuildLocation(opts NavigateOptions) (ParsedLocation, error) {
	state := r.store.Get()
	current := state.Location
	if state.ResolvedLocation != nil && state.Status == RouterIdle {
		current = *state.ResolvedLocation
	}

	if opts.Href != "" {
		if routepath.IsExternal(opts.Href) {
			return ParsedLocation{}, rcerrors.New("R004").WithDetailf("external href %q", opts.Href)
		}
		h := routepath.ParseHref(opts.Href)
		return r.parseLocation(history.Location{
			Href:     opts.Href,
			Pathname: h.Pathname,
			Search:   h.SearchStr,
			Hash:     h.Hash,
			State:    history.State{Values: opts.State},
		})
	}

	from := opts.From
	if from == "" {
		from = current.Pathname
	}
	to := opts.To
	var pathname string
	switch {
	case to == "":
		pathname = from
	case strings.HasPrefix(to, "/"):
		pathname = to
	default:
		pathname = routepath.Resolve(from, to)
	}

	params := make(map[string]string)
	if n := len(state.Matches); n > 0 {
		maps.Copy(params, state.Matches[n-1].Params)
	}
	maps.Copy(params, opts.Params)
	pathname, err := routepath.Interpolate(pathname, params)
	if err != nil {
		return ParsedLocation{}, rcerrors.FromError(err, "R004").WithDetailf("cannot build %q", opts.To)
	}
	res, err := routepath.CanonicalizePath(pathname, r.opts.TrailingSlash)
	if err != nil {
		return ParsedLocation{}, rcerrors.FromError(err, "R004").WithDetailf("cannot build %q", opts.To)
	}

	var search map[string]any
	switch {
	case opts.SearchFn != nil:
		search = opts.SearchFn(maps.Clone(current.Search))
	case opts.Search != nil:
		search = maps.Clone(opts.Search)
	}

	return newParsedLocation(res.Path, search, opts.Hash, history.State{Values: opts.State}), nil
}
