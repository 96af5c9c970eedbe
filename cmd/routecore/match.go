package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/routecore/pkg/history"
	"github.com/vango-dev/routecore/pkg/router"
)

func (c *cli) matchCmd() *cobra.Command {
	var (
		load   bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "match <href>",
		Short: "Match a location against the manifest",
		Long: `Match a location against the manifest and print the match chain.

With --load the chain is loaded and the settled matches are printed.

Examples:
  routecore match /posts/42
  routecore match "/search?q=go" --load --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := c.newRouter(cmd, history.NewMemoryHistory(args[0]))
			if err != nil {
				return err
			}
			defer r.Dispose()

			out := cmd.OutOrStdout()
			if load {
				if err := r.Load(cmd.Context()); err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, r.Dehydrate())
				}
				printState(out, r.State())
				return nil
			}

			matches, notFound := r.MatchRoutes(r.State().Location)
			if asJSON {
				return writeJSON(out, matches)
			}
			for _, m := range matches {
				fmt.Fprintf(out, "%-24s %-24s %s\n", m.ID, m.RouteID, formatParams(m.Params))
			}
			if notFound != nil {
				info(out, "no route matched the whole path; %s renders not-found", notFound.RouteID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&load, "load", "l", false, "Run beforeLoad and loader hooks")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	return cmd
}

// newRouter builds a router over the manifest on h.
func (c *cli) newRouter(cmd *cobra.Command, h history.History, extra ...router.Option) (*router.Router, error) {
	m, err := c.manifest(cmd.Context())
	if err != nil {
		return nil, err
	}
	opts := append(c.cfg.RouterOptions(),
		router.WithHistory(h),
		router.WithLogger(c.cfg.Logger(cmd.ErrOrStderr())),
	)
	return m.NewRouter(append(opts, extra...)...)
}

func printState(w io.Writer, s router.RouterState) {
	status := string(s.Status)
	if s.Status == router.RouterIdle && s.StatusCode != 0 {
		status = fmt.Sprintf("%s %d", s.Status, s.StatusCode)
	}
	matches := s.Matches
	label := "matches"
	if len(s.PendingMatches) > 0 {
		matches, label = s.PendingMatches, "pending"
	}
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = m.ID + ":" + string(m.Status)
		if m.IsFetching != router.FetchIdle {
			parts[i] += "(" + string(m.IsFetching) + ")"
		}
	}
	fmt.Fprintf(w, "[%s] %s %s=[%s]\n", status, s.Location.Href, label, strings.Join(parts, " "))
	if s.Redirect != nil {
		info(w, "redirect %s (%d)", s.Redirect.Error(), s.Redirect.Code())
	}
}

func formatParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + params[k]
	}
	return strings.Join(parts, " ")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

