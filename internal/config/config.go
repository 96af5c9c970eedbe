package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/routecore/internal/errors"
	"github.com/vango-dev/routecore/pkg/routepath"
	"github.com/vango-dev/routecore/pkg/router"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "routecore.yaml"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "ROUTECORE_"

	// DefaultAddr is the default serve address.
	DefaultAddr = ":8080"

	// DefaultLivePath is the default path of the live state feed.
	DefaultLivePath = "/_routecore/live"

	// DefaultMetricsPath is the default Prometheus endpoint.
	DefaultMetricsPath = "/metrics"

	// DefaultManifest is the default route manifest file.
	DefaultManifest = "routes.yaml"

	// DefaultS3Region is used when no region is configured.
	DefaultS3Region = "us-east-1"
)

// configFileNames are tried in order by Load.
var configFileNames = []string{ConfigFileName, "routecore.yml", "routecore.json"}

// Config represents the complete routecore configuration.
type Config struct {
	// Manifest is the path to the route manifest.
	Manifest string `yaml:"manifest,omitempty" json:"manifest,omitempty" env:"MANIFEST"`

	// Router contains the router defaults.
	Router RouterConfig `yaml:"router,omitempty" json:"router,omitempty" envPrefix:"ROUTER_"`

	// Server contains the serve command settings.
	Server ServerConfig `yaml:"server,omitempty" json:"server,omitempty" envPrefix:"SERVER_"`

	// Log contains logging settings.
	Log LogConfig `yaml:"log,omitempty" json:"log,omitempty" envPrefix:"LOG_"`

	// S3 locates manifests given as s3://bucket/key.
	S3 S3Config `yaml:"s3,omitempty" json:"s3,omitempty" envPrefix:"S3_"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// RouterConfig mirrors the router's functional options.
type RouterConfig struct {
	CaseSensitive    bool      `yaml:"caseSensitive,omitempty" json:"caseSensitive,omitempty" env:"CASE_SENSITIVE"`
	TrailingSlash    string    `yaml:"trailingSlash,omitempty" json:"trailingSlash,omitempty" env:"TRAILING_SLASH"`
	StaleTime        *Duration `yaml:"staleTime,omitempty" json:"staleTime,omitempty" env:"STALE_TIME"`
	PreloadStaleTime *Duration `yaml:"preloadStaleTime,omitempty" json:"preloadStaleTime,omitempty" env:"PRELOAD_STALE_TIME"`
	GcTime           *Duration `yaml:"gcTime,omitempty" json:"gcTime,omitempty" env:"GC_TIME"`
	PreloadGcTime    *Duration `yaml:"preloadGcTime,omitempty" json:"preloadGcTime,omitempty" env:"PRELOAD_GC_TIME"`
	PendingMs        *Duration `yaml:"pendingMs,omitempty" json:"pendingMs,omitempty" env:"PENDING_MS"`
	PendingMinMs     *Duration `yaml:"pendingMinMs,omitempty" json:"pendingMinMs,omitempty" env:"PENDING_MIN_MS"`
	MaxRedirects     int       `yaml:"maxRedirects,omitempty" json:"maxRedirects,omitempty" env:"MAX_REDIRECTS"`

	// SameHref is "replace" (default) or "push".
	SameHref string `yaml:"sameHref,omitempty" json:"sameHref,omitempty" env:"SAME_HREF"`
}

// ServerConfig contains the serve command settings.
type ServerConfig struct {
	Addr            string   `yaml:"addr,omitempty" json:"addr,omitempty" env:"ADDR"`
	LivePath        string   `yaml:"livePath,omitempty" json:"livePath,omitempty" env:"LIVE_PATH"`
	MetricsPath     string   `yaml:"metricsPath,omitempty" json:"metricsPath,omitempty" env:"METRICS_PATH"`
	Metrics         bool     `yaml:"metrics,omitempty" json:"metrics,omitempty" env:"METRICS"`
	Tracing         bool     `yaml:"tracing,omitempty" json:"tracing,omitempty" env:"TRACING"`
	LoaderTimeout   Duration `yaml:"loaderTimeout,omitempty" json:"loaderTimeout,omitempty" env:"LOADER_TIMEOUT"`
	DeferredTimeout Duration `yaml:"deferredTimeout,omitempty" json:"deferredTimeout,omitempty" env:"DEFERRED_TIMEOUT"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level,omitempty" json:"level,omitempty" env:"LEVEL"`

	// Format is text or json.
	Format string `yaml:"format,omitempty" json:"format,omitempty" env:"FORMAT"`
}

// S3Config holds the object store settings for remote manifests.
// Credentials only come from the environment.
type S3Config struct {
	Region   string `yaml:"region,omitempty" json:"region,omitempty" env:"REGION"`
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" env:"ENDPOINT"`

	// PathStyle addresses buckets as endpoint/bucket, as MinIO expects.
	PathStyle bool `yaml:"pathStyle,omitempty" json:"pathStyle,omitempty" env:"PATH_STYLE"`

	AccessKeyID     string `yaml:"-" json:"-" env:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"-" json:"-" env:"SECRET_ACCESS_KEY"`
	SessionToken    string `yaml:"-" json:"-" env:"SESSION_TOKEN"`
}

// New creates a new Config with default values.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads configuration from the specified directory. It tries
// routecore.yaml, routecore.yml and routecore.json in that order.
func Load(dir string) (*Config, error) {
	for _, name := range configFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("R100").
		WithDetail("No routecore config found in " + dir).
		WithSuggestion("Create " + ConfigFileName + " or pass --config")
}

// LoadFile reads configuration from the specified file path, then applies
// ROUTECORE_* environment overrides.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("R100").
				WithDetail("No config file at " + path)
		}
		return nil, errors.New("R101").Wrap(err)
	}

	cfg := &Config{}
	if err := decode(path, data, cfg); err != nil {
		return nil, errors.New("R101").
			WithDetail(fmt.Sprintf("Failed to parse %s: %v", filepath.Base(path), err)).
			WithSuggestion("Check that the file is valid YAML or JSON")
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	cfg.configPath = path
	cfg.applyDefaults()
	return cfg, nil
}

// FromEnv returns the defaults overridden by the environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return json.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

// ApplyEnv overrides fields from ROUTECORE_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return errors.New("R103").Wrap(err)
	}
	return nil
}

// SaveTo writes the configuration to path, as JSON or YAML by extension.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return errors.New("R101").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("R101").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// ManifestPath returns the manifest path, relative to the config file.
// URLs such as s3://bucket/key are returned unchanged.
func (c *Config) ManifestPath() string {
	if filepath.IsAbs(c.Manifest) || strings.Contains(c.Manifest, "://") {
		return c.Manifest
	}
	return filepath.Join(c.Dir(), c.Manifest)
}

// applyDefaults fills in default values for empty fields. Router
// durations stay nil so the router's own defaults apply.
func (c *Config) applyDefaults() {
	if c.Manifest == "" {
		c.Manifest = DefaultManifest
	}
	if c.Router.TrailingSlash == "" {
		c.Router.TrailingSlash = string(routepath.TrailingSlashNever)
	}
	if c.Router.SameHref == "" {
		c.Router.SameHref = "replace"
	}
	if c.Router.MaxRedirects == 0 {
		c.Router.MaxRedirects = router.DefaultMaxRedirects
	}

	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.LivePath == "" {
		c.Server.LivePath = DefaultLivePath
	}
	if c.Server.MetricsPath == "" {
		c.Server.MetricsPath = DefaultMetricsPath
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.S3.Region == "" {
		c.S3.Region = DefaultS3Region
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !routepath.TrailingSlash(c.Router.TrailingSlash).Valid() {
		return errors.New("R102").
			WithDetailf("router.trailingSlash %q is not one of never, always, preserve", c.Router.TrailingSlash)
	}
	switch c.Router.SameHref {
	case "replace", "push":
	default:
		return errors.New("R102").
			WithDetailf("router.sameHref %q is not one of replace, push", c.Router.SameHref)
	}
	if c.Router.MaxRedirects < 0 {
		return errors.New("R102").WithDetail("router.maxRedirects must not be negative")
	}
	for name, d := range map[string]*Duration{
		"staleTime":        c.Router.StaleTime,
		"preloadStaleTime": c.Router.PreloadStaleTime,
		"gcTime":           c.Router.GcTime,
		"preloadGcTime":    c.Router.PreloadGcTime,
		"pendingMinMs":     c.Router.PendingMinMs,
	} {
		if d != nil && *d < 0 {
			return errors.New("R102").WithDetailf("router.%s must not be negative", name)
		}
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.New("R102").WithDetailf("log.format %q is not one of text, json", c.Log.Format)
	}
	if c.Server.LoaderTimeout < 0 || c.Server.DeferredTimeout < 0 {
		return errors.New("R102").WithDetail("server timeouts must not be negative")
	}
	return nil
}

// RouterOptions converts the router section to router options. Unset
// durations keep the router defaults.
func (c *Config) RouterOptions() []router.Option {
	rc := c.Router
	opts := []router.Option{
		router.WithCaseSensitive(rc.CaseSensitive),
		router.WithTrailingSlash(routepath.TrailingSlash(rc.TrailingSlash)),
		router.WithMaxRedirects(rc.MaxRedirects),
	}
	if rc.SameHref == "push" {
		opts = append(opts, router.WithSameHrefPolicy(router.SameHrefPush))
	}
	if rc.StaleTime != nil {
		opts = append(opts, router.WithDefaultStaleTime(rc.StaleTime.Std()))
	}
	if rc.PreloadStaleTime != nil {
		opts = append(opts, router.WithDefaultPreloadStaleTime(rc.PreloadStaleTime.Std()))
	}
	if rc.GcTime != nil {
		opts = append(opts, router.WithDefaultGcTime(rc.GcTime.Std()))
	}
	if rc.PreloadGcTime != nil {
		opts = append(opts, router.WithDefaultPreloadGcTime(rc.PreloadGcTime.Std()))
	}
	if rc.PendingMs != nil || rc.PendingMinMs != nil {
		delay, min := router.DefaultPendingMs, router.DefaultPendingMinMs
		if rc.PendingMs != nil {
			delay = rc.PendingMs.Std()
		}
		if rc.PendingMinMs != nil {
			min = rc.PendingMinMs.Std()
		}
		opts = append(opts, router.WithDefaultPending(delay, min))
	}
	return opts
}

// Logger builds the configured slog logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.New("R102").WithDetailf("log.level %q is not one of debug, info, warn, error", s)
	}
	return level, nil
}
