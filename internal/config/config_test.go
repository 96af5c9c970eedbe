package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/routecore/internal/errors"
	"github.com/vango-dev/routecore/pkg/router"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Manifest != DefaultManifest {
		t.Errorf("Manifest = %q, want %q", cfg.Manifest, DefaultManifest)
	}
	if cfg.Server.Addr != DefaultAddr {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, DefaultAddr)
	}
	if cfg.Router.MaxRedirects != router.DefaultMaxRedirects {
		t.Errorf("Router.MaxRedirects = %d, want %d", cfg.Router.MaxRedirects, router.DefaultMaxRedirects)
	}
	if cfg.Router.StaleTime != nil {
		t.Errorf("Router.StaleTime = %v, want nil", cfg.Router.StaleTime)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	// Test loading non-existent config
	_, err := Load(tmpDir)
	if !errors.HasCode(err, "R100") {
		t.Errorf("Load() error = %v, want R100", err)
	}

	configYAML := `manifest: app/routes.yaml
router:
  caseSensitive: true
  trailingSlash: always
  staleTime: 5s
  gcTime: 10m
  sameHref: push
server:
  addr: ":9000"
  metrics: true
  loaderTimeout: 2s
log:
  level: debug
  format: json
`
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.ManifestPath() != filepath.Join(tmpDir, "app/routes.yaml") {
		t.Errorf("ManifestPath() = %q", cfg.ManifestPath())
	}
	if !cfg.Router.CaseSensitive {
		t.Error("Router.CaseSensitive should be true")
	}
	if cfg.Router.TrailingSlash != "always" {
		t.Errorf("Router.TrailingSlash = %q, want always", cfg.Router.TrailingSlash)
	}
	if cfg.Router.StaleTime == nil || cfg.Router.StaleTime.Std() != 5*time.Second {
		t.Errorf("Router.StaleTime = %v, want 5s", cfg.Router.StaleTime)
	}
	if cfg.Router.GcTime == nil || cfg.Router.GcTime.Std() != 10*time.Minute {
		t.Errorf("Router.GcTime = %v, want 10m", cfg.Router.GcTime)
	}
	if cfg.Router.PreloadStaleTime != nil {
		t.Errorf("Router.PreloadStaleTime = %v, want nil", cfg.Router.PreloadStaleTime)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("Server.Addr = %q, want :9000", cfg.Server.Addr)
	}
	if cfg.Server.LoaderTimeout.Std() != 2*time.Second {
		t.Errorf("Server.LoaderTimeout = %v, want 2s", cfg.Server.LoaderTimeout)
	}
	if cfg.Server.LivePath != DefaultLivePath {
		t.Errorf("Server.LivePath = %q, want default", cfg.Server.LivePath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configJSON := `{"router": {"staleTime": "1m", "maxRedirects": 3}, "log": {"level": "warn"}}`
	if err := os.WriteFile(filepath.Join(tmpDir, "routecore.json"), []byte(configJSON), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Router.StaleTime == nil || cfg.Router.StaleTime.Std() != time.Minute {
		t.Errorf("Router.StaleTime = %v, want 1m", cfg.Router.StaleTime)
	}
	if cfg.Router.MaxRedirects != 3 {
		t.Errorf("Router.MaxRedirects = %d, want 3", cfg.Router.MaxRedirects)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
}

func TestLoadFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, ConfigFileName)
	if err := os.WriteFile(path, []byte("router: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(path)
	if err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "R101") {
		t.Errorf("Expected R101 error, got: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, ConfigFileName)
	if err := os.WriteFile(path, []byte("server:\n  addr: \":9000\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ROUTECORE_SERVER_ADDR", ":7000")
	t.Setenv("ROUTECORE_ROUTER_STALE_TIME", "45s")
	t.Setenv("ROUTECORE_LOG_LEVEL", "debug")
	t.Setenv("ROUTECORE_MANIFEST", "/abs/routes.yaml")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if cfg.Server.Addr != ":7000" {
		t.Errorf("Server.Addr = %q, want :7000", cfg.Server.Addr)
	}
	if cfg.Router.StaleTime == nil || cfg.Router.StaleTime.Std() != 45*time.Second {
		t.Errorf("Router.StaleTime = %v, want 45s", cfg.Router.StaleTime)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.ManifestPath() != "/abs/routes.yaml" {
		t.Errorf("ManifestPath() = %q, want /abs/routes.yaml", cfg.ManifestPath())
	}
}

func TestS3FromEnv(t *testing.T) {
	t.Setenv("ROUTECORE_MANIFEST", "s3://routes/prod.yaml")
	t.Setenv("ROUTECORE_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("ROUTECORE_S3_PATH_STYLE", "true")
	t.Setenv("ROUTECORE_S3_ACCESS_KEY_ID", "minio")
	t.Setenv("ROUTECORE_S3_SECRET_ACCESS_KEY", "minio123")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}
	if cfg.ManifestPath() != "s3://routes/prod.yaml" {
		t.Errorf("ManifestPath() = %q, want the URL unchanged", cfg.ManifestPath())
	}
	if cfg.S3.Region != DefaultS3Region {
		t.Errorf("S3.Region = %q, want %q", cfg.S3.Region, DefaultS3Region)
	}
	if !cfg.S3.PathStyle || cfg.S3.Endpoint != "http://localhost:9000" {
		t.Errorf("S3 = %+v", cfg.S3)
	}
	if cfg.S3.AccessKeyID != "minio" || cfg.S3.SecretAccessKey != "minio123" {
		t.Error("credentials not read from the environment")
	}

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.SaveTo(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "minio123") {
		t.Error("SaveTo wrote the secret key")
	}
}

func TestEnvOverrideInvalid(t *testing.T) {
	t.Setenv("ROUTECORE_ROUTER_GC_TIME", "soon")

	_, err := FromEnv()
	if !errors.HasCode(err, "R103") {
		t.Errorf("FromEnv() error = %v, want R103", err)
	}
}

func TestValidate(t *testing.T) {
	neg := Duration(-time.Second)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"trailing slash", func(c *Config) { c.Router.TrailingSlash = "sometimes" }},
		{"same href", func(c *Config) { c.Router.SameHref = "merge" }},
		{"max redirects", func(c *Config) { c.Router.MaxRedirects = -1 }},
		{"negative stale time", func(c *Config) { c.Router.StaleTime = &neg }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"loader timeout", func(c *Config) { c.Server.LoaderTimeout = neg }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.HasCode(err, "R102") {
				t.Errorf("Validate() error = %v, want R102", err)
			}
		})
	}
}

func TestRouterOptions(t *testing.T) {
	stale := Duration(time.Minute)
	pending := Duration(50 * time.Millisecond)

	cfg := New()
	cfg.Router.StaleTime = &stale
	cfg.Router.PendingMs = &pending
	cfg.Router.SameHref = "push"
	cfg.Router.MaxRedirects = 4

	var opts router.Options
	for _, opt := range cfg.RouterOptions() {
		opt(&opts)
	}

	if opts.StaleTime != time.Minute {
		t.Errorf("StaleTime = %v, want 1m", opts.StaleTime)
	}
	if opts.PendingMs != 50*time.Millisecond {
		t.Errorf("PendingMs = %v, want 50ms", opts.PendingMs)
	}
	if opts.PendingMinMs != router.DefaultPendingMinMs {
		t.Errorf("PendingMinMs = %v, want default", opts.PendingMinMs)
	}
	if opts.SameHref != router.SameHrefPush {
		t.Errorf("SameHref = %v, want push", opts.SameHref)
	}
	if opts.MaxRedirects != 4 {
		t.Errorf("MaxRedirects = %d, want 4", opts.MaxRedirects)
	}
	if opts.GcTime != 0 {
		t.Errorf("GcTime = %v, want unset", opts.GcTime)
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	stale := Duration(3 * time.Second)

	for _, name := range []string{"out.yaml", "out.json"} {
		cfg := New()
		cfg.Router.StaleTime = &stale
		cfg.Server.Addr = ":1234"

		path := filepath.Join(tmpDir, name)
		if err := cfg.SaveTo(path); err != nil {
			t.Fatalf("SaveTo(%s) error: %v", name, err)
		}
		if cfg.Path() != path {
			t.Errorf("Path() = %q, want %q", cfg.Path(), path)
		}

		loaded, err := LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile(%s) error: %v", name, err)
		}
		if loaded.Server.Addr != ":1234" {
			t.Errorf("%s: Server.Addr = %q, want :1234", name, loaded.Server.Addr)
		}
		if loaded.Router.StaleTime == nil || *loaded.Router.StaleTime != stale {
			t.Errorf("%s: Router.StaleTime = %v, want 3s", name, loaded.Router.StaleTime)
		}
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := New()
	cfg.Log.Level = "warn"
	cfg.Log.Format = "json"

	logger := cfg.Logger(&buf)
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message logged at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("expected JSON warn line, got %q", out)
	}
}
