package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vango-dev/routecore/internal/config"
	"github.com/vango-dev/routecore/internal/errors"
	"github.com/vango-dev/routecore/internal/manifest"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.Fprint(os.Stderr, err)
		os.Exit(1)
	}
}

// cli carries the persistent flags and what they load.
type cli struct {
	configPath   string
	manifestPath string
	envFile      string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "routecore",
		Short: "Route matching and loading from the command line",
		Long: `routecore matches, loads and serves route trees described by a
YAML route manifest.

  • Inspect the ranked route list of a manifest
  • Match a location against the tree
  • Run navigations and watch every state transition
  • Serve loads over HTTP with a live state feed and metrics`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return c.load()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Config file (default routecore.yaml in the working directory)")
	rootCmd.PersistentFlags().StringVarP(&c.manifestPath, "manifest", "m", "", "Route manifest file or s3://bucket/key (overrides the config)")
	rootCmd.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "Environment file loaded before the config")

	rootCmd.AddCommand(
		c.routesCmd(),
		c.matchCmd(),
		c.navigateCmd(),
		c.serveCmd(),
		versionCmd(),
	)
	return rootCmd
}

// load reads the env file, the config and its ROUTECORE_* overrides.
func (c *cli) load() error {
	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil && !os.IsNotExist(err) {
			return errors.New("R103").Wrap(err)
		}
	}

	var (
		cfg *config.Config
		err error
	)
	switch {
	case c.configPath != "":
		cfg, err = config.LoadFile(c.configPath)
	default:
		cfg, err = config.Load(".")
		if errors.HasCode(err, "R100") {
			cfg, err = config.FromEnv()
		}
	}
	if err != nil {
		return err
	}
	if c.manifestPath != "" {
		cfg.Manifest = c.manifestPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

// manifest loads the configured manifest from disk or S3.
func (c *cli) manifest(ctx context.Context) (*manifest.Manifest, error) {
	path := c.cfg.ManifestPath()
	if manifest.IsRemote(path) {
		return manifest.LoadS3(ctx, manifest.NewS3Client(c.cfg.S3), path)
	}
	return manifest.Load(path)
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}
