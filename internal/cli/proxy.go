package cli

import (
	"github.com/spf13/cobra"

	"github.com/vitwit/nftbuy/internal/devproxy"
)

func (a *app) proxyCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Run the local marketplace API proxy",
		Long: `Serve the marketplace API under a local path prefix for browser front ends.
Requests to <listen><prefix>/... are forwarded to <target>/... with the Host
header rewritten.

EXAMPLES:
  nftbuy proxy
  nftbuy proxy --listen 127.0.0.1:8080
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a.serveMetrics(ctx)

			cfg := a.cfg.Proxy
			if listen != "" {
				cfg.Listen = listen
			}

			p, err := devproxy.New(cfg,
				devproxy.WithLogger(a.log),
				devproxy.WithMetrics(a.recorder),
			)
			if err != nil {
				return err
			}
			return p.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from config)")
	return cmd
}
