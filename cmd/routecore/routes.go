package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vango-dev/routecore/pkg/router"
)

func (c *cli) routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the routes of a manifest",
		Long: `List the routes of the manifest, most specific first.

This is the order the matcher tries them in. Hooks are marked:
  L  loader
  B  beforeLoad
  N  not-found boundary`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.manifest(cmd.Context())
			if err != nil {
				return err
			}
			tree, err := router.NewTree(m.Build(), c.cfg.Router.CaseSensitive)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tPATH\tID\tHOOKS")
			for _, r := range tree.FlatRoutes() {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.Rank(), r.FullPath(), r.ID(), hooks(r))
			}
			return tw.Flush()
		},
	}
}

func hooks(r *router.Route) string {
	opts := r.Options()
	out := ""
	if opts.Loader != nil {
		out += "L"
	}
	if opts.BeforeLoad != nil {
		out += "B"
	}
	if opts.NotFoundComponent != nil {
		out += "N"
	}
	if out == "" {
		return "-"
	}
	return out
}
