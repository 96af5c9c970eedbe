package router

import (
	"fmt"
	"sort"
	"strings"

	rcerrors "github.com/vango-dev/routecore/internal/errors"
	"github.com/vango-dev/routecore/pkg/routepath"
)

// routeNode is a node in the radix tree built from route full paths.
type routeNode struct {
	// segment is the static segment this node matches
	segment string

	// route is the non-index route whose full path ends here
	route *Route

	// index is the index route whose full path ends here
	index *Route

	// children are static segment children
	children []*routeNode

	// paramChild is the dynamic parameter child ($id)
	paramChild *routeNode

	// splatChild is the splat child ($)
	splatChild *routeNode
}

func newRouteNode(segment string) *routeNode {
	return &routeNode{segment: segment}
}

// findChild finds a static child matching segment.
func (n *routeNode) findChild(segment string, caseSensitive bool) *routeNode {
	for _, child := range n.children {
		if child.segment == segment || (!caseSensitive && strings.EqualFold(child.segment, segment)) {
			return child
		}
	}
	return nil
}

func (n *routeNode) addChild(segment string, caseSensitive bool) *routeNode {
	if child := n.findChild(segment, caseSensitive); child != nil {
		return child
	}
	child := newRouteNode(segment)
	n.children = append(n.children, child)
	return child
}

func (n *routeNode) addParamChild() *routeNode {
	if n.paramChild == nil {
		n.paramChild = newRouteNode("")
	}
	return n.paramChild
}

func (n *routeNode) addSplatChild() *routeNode {
	if n.splatChild == nil {
		n.splatChild = newRouteNode("")
	}
	return n.splatChild
}

// insert walks segs from n, creating nodes as needed, and returns the
// terminal node.
func (n *routeNode) insert(segs []routepath.Segment, caseSensitive bool) *routeNode {
	current := n
	for _, seg := range segs {
		switch seg.Kind {
		case routepath.SegmentSplat:
			return current.addSplatChild()
		case routepath.SegmentParam:
			current = current.addParamChild()
		default:
			current = current.addChild(seg.Value, caseSensitive)
		}
	}
	return current
}

// fuzzyMatch is the deepest route matched as a prefix during a walk.
type fuzzyMatch struct {
	route  *Route
	values []string
	depth  int
}

// match finds the route matching segs exactly. Static children are tried
// before the param child, which is tried before the splat child, and the
// walk backtracks on failure. values collects the raw param segments in
// walk order.
func (n *routeNode) match(segs []string, depth int, values []string, caseSensitive bool, best *fuzzyMatch) (*Route, []string, bool) {
	if n.route != nil && depth > best.depth {
		best.route = n.route
		best.values = append([]string(nil), values...)
		best.depth = depth
	}

	if len(segs) == 0 {
		if n.index != nil {
			return n.index, values, true
		}
		if n.route != nil {
			return n.route, values, true
		}
		if n.splatChild != nil && n.splatChild.route != nil {
			return n.splatChild.route, append(values, ""), true
		}
		return nil, nil, false
	}

	segment := segs[0]
	remaining := segs[1:]

	if child := n.findChild(segment, caseSensitive); child != nil {
		if r, v, ok := child.match(remaining, depth+1, values, caseSensitive, best); ok {
			return r, v, true
		}
	}

	if n.paramChild != nil {
		if r, v, ok := n.paramChild.match(remaining, depth+1, append(values, segment), caseSensitive, best); ok {
			return r, v, true
		}
	}

	if n.splatChild != nil && n.splatChild.route != nil {
		return n.splatChild.route, append(values, strings.Join(segs, "/")), true
	}

	return nil, nil, false
}

// Tree is a built, immutable route tree.
type Tree struct {
	root          *Route
	node          *routeNode
	byID          map[string]*Route
	flat          []*Route
	caseSensitive bool
}

// MatchedRoutes is the result of matching a pathname.
type MatchedRoutes struct {
	// Routes is the root-first chain.
	Routes []*Route

	// Params are the decoded path params of the deepest route.
	Params map[string]string
}

// Leaf returns the deepest route of the chain.
func (m MatchedRoutes) Leaf() *Route {
	if len(m.Routes) == 0 {
		return nil
	}
	return m.Routes[len(m.Routes)-1]
}

// NewTree validates and builds the route tree rooted at root.
func NewTree(root *Route, caseSensitive bool) (*Tree, error) {
	if root == nil || !root.isRoot {
		return nil, rcerrors.New("R200")
	}

	t := &Tree{
		root:          root,
		node:          newRouteNode(""),
		byID:          make(map[string]*Route),
		caseSensitive: caseSensitive,
	}
	byPath := make(map[string]*Route)

	var walk func(r *Route) error
	walk = func(r *Route) error {
		if r.reparent != nil {
			return rcerrors.New("R203").WithDetailf("route %q was added to more than one parent", r.opts.Path+r.opts.ID)
		}
		if !r.isRoot {
			if err := t.place(r); err != nil {
				return err
			}
		}
		if prev, ok := t.byID[r.id]; ok && prev != r {
			return rcerrors.New("R201").
				WithDetailf("route id %q is declared twice", r.id).
				WithSuggestion("Give pathless layout routes distinct ids")
		}
		t.byID[r.id] = r

		if !r.isRoot && !r.IsPathless() {
			key := shapeKey(r, caseSensitive)
			if prev, ok := byPath[key]; ok {
				return rcerrors.New("R202").WithDetailf("routes %q and %q both resolve to %s", prev.id, r.id, r.fullPath)
			}
			byPath[key] = r
			t.flat = append(t.flat, r)
		}

		for _, c := range r.Children() {
			if err := walk(c); err != nil {
				return err
			}
		}
		r.built = true
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}

	t.rank()
	for _, r := range t.flat {
		segs := routepath.ParseSegments(r.fullPath)
		node := t.node.insert(segs, caseSensitive)
		if r.IsIndex() {
			node.index = r
		} else {
			node.route = r
		}
	}
	return t, nil
}

// shapeKey identifies the URLs a route matches, ignoring param names.
func shapeKey(r *Route, caseSensitive bool) string {
	var b strings.Builder
	for _, seg := range routepath.ParseSegments(r.fullPath) {
		b.WriteByte('/')
		switch seg.Kind {
		case routepath.SegmentParam:
			b.WriteString("$")
		case routepath.SegmentSplat:
			b.WriteString("$*")
		default:
			if caseSensitive {
				b.WriteString(seg.Value)
			} else {
				b.WriteString(strings.ToLower(seg.Value))
			}
		}
	}
	if r.IsIndex() {
		b.WriteByte('/')
	}
	return b.String()
}

// place derives id, path and full path for a non-root route from its parent.
func (t *Tree) place(r *Route) error {
	opts := r.Options()
	path := normalizePath(opts.Path)
	if path == "" && opts.ID == "" {
		return rcerrors.New("R204").WithDetail("a route needs a Path or, for pathless layouts, an ID")
	}
	for _, seg := range routepath.SplitPath(path) {
		if strings.HasPrefix(seg, "$") && len(seg) > 1 && strings.ContainsAny(seg[1:], "$") {
			return rcerrors.New("R204").WithDetailf("segment %q", seg)
		}
	}

	custom := opts.ID
	if custom == "" {
		custom = path
	}
	parentID := r.parent.id
	if parentID == RootRouteID {
		parentID = ""
	}
	id := joinRoutePaths(parentID, custom)

	fullPath := r.parent.fullPath
	if path != "" {
		fullPath = joinRoutePaths(r.parent.fullPath, path)
	}

	r.path = path
	r.id = id
	r.fullPath = fullPath
	return nil
}

// joinRoutePaths joins with single slashes and keeps a trailing slash
// contributed by an index path.
func joinRoutePaths(parts ...string) string {
	trailing := len(parts) > 0 && parts[len(parts)-1] == "/"
	joined := routepath.Join(parts...)
	if trailing && joined != "/" {
		joined += "/"
	}
	return joined
}

// rank orders flat routes by specificity: static beats param beats splat
// segment by segment, longer paths beat their prefixes and index routes
// beat the route at the same path.
func (t *Tree) rank() {
	type scored struct {
		route *Route
		segs  []routepath.Segment
		order int
	}
	list := make([]scored, len(t.flat))
	for i, r := range t.flat {
		list[i] = scored{route: r, segs: routepath.ParseSegments(r.fullPath), order: i}
	}

	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		for k := 0; k < len(a.segs) && k < len(b.segs); k++ {
			if a.segs[k].Kind != b.segs[k].Kind {
				return a.segs[k].Kind < b.segs[k].Kind
			}
			if a.segs[k].Kind == routepath.SegmentStatic && a.segs[k].Value != b.segs[k].Value {
				return a.segs[k].Value < b.segs[k].Value
			}
		}
		if len(a.segs) != len(b.segs) {
			return len(a.segs) > len(b.segs)
		}
		if a.route.IsIndex() != b.route.IsIndex() {
			return a.route.IsIndex()
		}
		return a.order < b.order
	})

	t.root.rank = -1
	for _, r := range t.byID {
		r.rank = -1
	}
	t.flat = t.flat[:0]
	for i, s := range list {
		s.route.rank = i
		t.flat = append(t.flat, s.route)
	}
}

// Root returns the root route.
func (t *Tree) Root() *Route { return t.root }

// RoutesByID returns the routes keyed by id.
func (t *Tree) RoutesByID() map[string]*Route {
	out := make(map[string]*Route, len(t.byID))
	for k, v := range t.byID {
		out[k] = v
	}
	return out
}

// Route returns the route with id.
func (t *Tree) Route(id string) (*Route, bool) {
	r, ok := t.byID[id]
	return r, ok
}

// FlatRoutes returns the routes with a path, most specific first.
func (t *Tree) FlatRoutes() []*Route {
	out := make([]*Route, len(t.flat))
	copy(out, t.flat)
	return out
}

// Match resolves pathname to a root-first route chain. When only a prefix
// of pathname matches, the chain ends at the deepest matched route and the
// returned error is a global *NotFoundError naming the route that should
// render it.
func (t *Tree) Match(pathname string) (MatchedRoutes, error) {
	return t.match(pathname, func(r *Route) bool { return r.Options().NotFoundComponent != nil })
}

// match is Match with the not-found boundary test supplied by the caller.
func (t *Tree) match(pathname string, isBoundary func(*Route) bool) (MatchedRoutes, error) {
	segs := routepath.SplitPath(pathname)
	best := &fuzzyMatch{route: t.root}

	leaf, values, ok := t.node.match(segs, 0, nil, t.caseSensitive, best)
	if ok {
		return MatchedRoutes{Routes: leaf.Ancestors(), Params: bindValues(leaf, values)}, nil
	}

	chain := best.route.Ancestors()
	params := bindValues(best.route, best.values)

	// The not-found renders in the nearest matched route that declares a
	// boundary, else the root.
	boundary := t.root
	for i := len(chain) - 1; i > 0; i-- {
		if isBoundary(chain[i]) {
			boundary = chain[i]
			break
		}
	}
	for i, r := range chain {
		if r == boundary {
			chain = chain[:i+1]
			break
		}
	}
	return MatchedRoutes{Routes: chain, Params: params}, &NotFoundError{
		RouteID: boundary.id,
		Global:  true,
		Message: fmt.Sprintf("no route matches %s", pathname),
	}
}

// bindValues names the raw walk values after r's param segments.
func bindValues(r *Route, values []string) map[string]string {
	params := make(map[string]string)
	if r == nil || r.isRoot {
		return params
	}
	i := 0
	for _, seg := range routepath.ParseSegments(r.fullPath) {
		if seg.Kind == routepath.SegmentStatic {
			continue
		}
		if i >= len(values) {
			break
		}
		raw := values[i]
		i++
		decoded, err := routepath.DecodeSegment(raw, seg.Kind == routepath.SegmentSplat)
		if err != nil {
			decoded = raw
		}
		params[seg.Value] = decoded
	}
	return params
}
