package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/vitwit/nftbuy"
	"github.com/vitwit/nftbuy/types"
)

func (a *app) buyCmd() *cobra.Command {
	var contract, tokenID string
	var yes bool

	cmd := &cobra.Command{
		Use:   "buy",
		Short: "Buy a token at its best listing price",
		Long: `Connect the configured key to ApeChain, look up the token's best listing and
buy it through Seaport. The purchase needs the listing price plus the configured
gas buffer in APE.

EXAMPLES:
  # Ask for confirmation before sending
  nftbuy buy --contract 0x... --token 1234

  # Skip the confirmation prompt
  nftbuy buy --contract 0x... --token 1234 --yes
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a.serveMetrics(ctx)

			buyer, _, release, err := a.newBuyer(ctx)
			if err != nil {
				return err
			}
			defer release()

			out := cmd.OutOrStdout()
			buyer.Subscribe(statusPrinter(out))

			session, err := buyer.Connect(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Wallet:      %s\n", session.Address.Hex())

			res, err := buyer.Search(ctx, contract, tokenID)
			if err != nil {
				return err
			}
			printResult(out, res)
			if !res.HasListing() {
				return types.NewError(types.ErrNoListing, "token has no active listing", nil)
			}

			if !yes {
				if err := confirm(cmd.InOrStdin(), out, a.confirmLabel(buyer, res)); err != nil {
					return err
				}
			}

			outcome := buyer.Purchase(ctx)
			if outcome.TxHash != "" {
				fmt.Fprintf(out, "Explorer:    %s\n", buyer.Chain().TxURL(outcome.TxHash))
			}
			if outcome.Err != nil {
				return outcome.Err
			}
			if outcome.State == types.StateSubmitted {
				fmt.Fprintln(out, "Confirmation not observed; the transaction is still pending.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&contract, "contract", "", "NFT contract address")
	cmd.Flags().StringVar(&tokenID, "token", "", "token id")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	_ = cmd.MarkFlagRequired("contract")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

func (a *app) confirmLabel(buyer *nftbuy.Buyer, res *nftbuy.SearchResult) string {
	currency := buyer.Chain().NativeCurrency
	return fmt.Sprintf("Buy %s for %s (+%s %s gas buffer)",
		res.Asset.DisplayName(), formatPrice(res.Listing.Price), a.cfg.Purchase.GasBuffer, currency.Symbol)
}

var errAborted = errors.New("purchase aborted")

func confirm(in io.Reader, out io.Writer, label string) error {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
		Stdin:     io.NopCloser(in),
		Stdout:    nopWriteCloser{out},
	}

	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return errAborted
		}
		return err
	}
	return nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
