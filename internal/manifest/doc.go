// Package manifest builds route trees from YAML route manifests.
//
// A manifest describes the route tree and simulated hooks, so the CLI can
// match, navigate and serve a tree without Go code:
//
//	root:
//	  notFoundComponent: NotFound
//	routes:
//	  - path: posts
//	    staleTime: 10s
//	    loader:
//	      data: {title: Posts}
//	    children:
//	      - path: $postId
//	        params: {postId: int}
//	        loader:
//	          delay: 50ms
//	          data: {id: "{postId}"}
//	          defer:
//	            comments: {delay: 200ms, data: [first]}
//	  - path: admin
//	    beforeLoad:
//	      redirectUnless: user
//	      redirect: /login
//
// Strings in loader data interpolate path params written as {name}.
//
// Manifests load from disk with Load, or from an object store with LoadS3
// when the configured path is an s3://bucket/key URL.
package manifest
