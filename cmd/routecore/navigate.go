package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vango-dev/routecore/internal/errors"
	"github.com/vango-dev/routecore/pkg/history"
	"github.com/vango-dev/routecore/pkg/router"
)

func (c *cli) navigateCmd() *cobra.Command {
	var (
		start  string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "navigate <href|back|forward|go:N>...",
		Short: "Run navigations and print every state transition",
		Long: `Run navigations against the manifest and print every committed
router state: pending commits, early commits that show pending
components, and the settled state of each navigation.

Examples:
  routecore navigate /posts /posts/1 back
  routecore navigate /admin --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hist := history.NewMemoryHistory(start)
			r, err := c.newRouter(cmd, hist)
			if err != nil {
				return err
			}
			defer r.Dispose()

			out := cmd.OutOrStdout()
			off := r.Store().Subscribe(func(s router.RouterState) {
				if asJSON {
					_ = writeJSON(out, router.DehydrateState(s))
					return
				}
				printState(out, s)
			})
			defer off()

			ctx := cmd.Context()
			if err := r.Load(ctx); err != nil {
				return err
			}
			for _, arg := range args {
				if !asJSON {
					info(out, "→ %s", arg)
				}
				switch {
				case arg == "back":
					r.Back()
				case arg == "forward":
					r.Forward()
				case len(arg) > 3 && arg[:3] == "go:":
					n, err := strconv.Atoi(arg[3:])
					if err != nil {
						return errors.New("R400").WithDetailf("%q: go:N needs an integer", arg)
					}
					r.Go(n)
				default:
					if err := r.Navigate(ctx, router.NavigateOptions{Href: arg}); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "/", "Initial location")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print dehydrated states as JSON")

	return cmd
}
