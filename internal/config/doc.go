// Package config loads routecore configuration.
//
// The configuration is stored in routecore.yaml (or routecore.json) next
// to the route manifest. Every field can be overridden by a ROUTECORE_*
// environment variable.
//
// # Configuration File Structure
//
//	manifest: routes.yaml
//	router:
//	  caseSensitive: false
//	  trailingSlash: never
//	  staleTime: 0s
//	  preloadStaleTime: 30s
//	  gcTime: 30m
//	  pendingMs: 1s
//	  pendingMinMs: 500ms
//	  maxRedirects: 10
//	  sameHref: replace
//	server:
//	  addr: ":8080"
//	  livePath: /_routecore/live
//	  metrics: true
//	  loaderTimeout: 10s
//	log:
//	  level: info
//	  format: text
//	s3:
//	  region: eu-west-1
//	  endpoint: http://localhost:9000
//	  pathStyle: true
//
// S3 credentials are read only from ROUTECORE_S3_ACCESS_KEY_ID,
// ROUTECORE_S3_SECRET_ACCESS_KEY and ROUTECORE_S3_SESSION_TOKEN.
//
// # Environment
//
//	ROUTECORE_MANIFEST=routes.yaml
//	ROUTECORE_ROUTER_STALE_TIME=5s
//	ROUTECORE_SERVER_ADDR=:9000
//	ROUTECORE_LOG_LEVEL=debug
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	r, err := router.New(root, cfg.RouterOptions()...)
package config
