// Package router resolves locations to chains of route matches, loads
// their data and publishes the result as a RouterState.
//
// The router provides:
//   - A route tree with static, $param and splat ($) segments, index and
//     pathless layout routes
//   - Match reuse with stale-time revalidation and gc-time eviction
//   - A load pipeline running beforeLoad then loader hooks parent to child
//   - Deduplication of in-flight loaders by match id
//   - Redirect and not-found signaling through error values
//   - History integration with blockers
//
// # Route Trees
//
// Routes are declared as a tree under a single root:
//
//	root := router.NewRootRoute(router.RouteOptions{})
//	posts := router.NewRoute(router.RouteOptions{Path: "posts", Loader: loadPosts})
//	post := router.NewRoute(router.RouteOptions{Path: "$postId", Loader: loadPost})
//	root.AddChildren(posts.AddChildren(post))
//
//	r, err := router.New(root, router.WithHistory(history.NewMemoryHistory("/")))
//
// Route ids derive from paths: the post route above has id
// "/posts/$postId". Pathless layout routes set ID instead of Path.
//
// # Matches
//
// A match id is the route id with its params filled in plus the JSON of
// the route's loader deps, so "/posts/123" yields the match
// "/posts/123". Matches live in one of three pools of RouterState:
// PendingMatches while a navigation settles, Matches once committed and
// CachedMatches after leaving the chain. A match id is live in at most one
// pool.
//
// Published matches are never mutated. Subscribers may compare pointers
// to detect change.
//
// # Loading
//
//	err := r.Navigate(ctx, router.NavigateOptions{
//		To:     "/posts/$postId",
//		Params: map[string]string{"postId": "123"},
//	})
//
// Every navigation takes a new epoch. Results of a superseded epoch are
// discarded and the contexts of matches the newer navigation dropped are
// cancelled.
//
// Hooks signal control flow with errors:
//
//	func loader(ctx context.Context, lc *router.LoadContext) (any, error) {
//		if !signedIn(lc.Context) {
//			return nil, router.Redirect("/login")
//		}
//		post, ok := posts[lc.Params["postId"]]
//		if !ok {
//			return nil, router.NotFound()
//		}
//		return post, nil
//	}
//
// # Middleware
//
// Loader middleware wraps every loader call:
//
//	r, err := router.New(root, router.WithMiddleware(
//		router.MiddlewareFunc(func(ctx context.Context, lc *router.LoadContext, next router.LoaderHandler) (any, error) {
//			return next(ctx)
//		}),
//	))
package router
