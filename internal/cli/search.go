package cli

import (
	"github.com/spf13/cobra"
)

func (a *app) searchCmd() *cobra.Command {
	var contract, tokenID string

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Show a token and its best listing",
		Long: `Look up a token on OpenSea and show its best active listing.

EXAMPLES:
  nftbuy search --contract 0x... --token 1234
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a.serveMetrics(ctx)

			buyer, provider, release, err := a.newBuyer(ctx)
			if err != nil {
				return err
			}
			defer release()

			out := cmd.OutOrStdout()
			buyer.Subscribe(statusPrinter(out))

			// A wallet is optional for a lookup.
			if provider != nil {
				if _, err := buyer.Connect(ctx); err != nil {
					return err
				}
			}

			res, err := buyer.Search(ctx, contract, tokenID)
			if err != nil {
				return err
			}

			printResult(out, res)
			return nil
		},
	}

	cmd.Flags().StringVar(&contract, "contract", "", "NFT contract address")
	cmd.Flags().StringVar(&tokenID, "token", "", "token id")
	_ = cmd.MarkFlagRequired("contract")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}
