package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/vitwit/nftbuy"
	"github.com/vitwit/nftbuy/purchase"
	"github.com/vitwit/nftbuy/types"
	"github.com/vitwit/nftbuy/utils"
)

var (
	okColor   = color.New(color.FgGreen)
	infoColor = color.New(color.FgCyan)
	errColor  = color.New(color.FgRed)
)

// statusPrinter writes every buyer event as one line.
func statusPrinter(w io.Writer) func(purchase.Event) {
	return func(ev purchase.Event) {
		switch {
		case ev.Err != nil:
			errColor.Fprintln(w, ev.Status)
		case ev.State == types.StateConfirmed:
			okColor.Fprintln(w, ev.Status)
		default:
			infoColor.Fprintln(w, ev.Status)
		}
	}
}

func formatPrice(p types.Price) string {
	return fmt.Sprintf("%s %s", utils.FormatAmountFixed(p.Value, int(p.Decimals), 4), p.Currency)
}

func printResult(w io.Writer, res *nftbuy.SearchResult) {
	a := res.Asset
	fmt.Fprintf(w, "Name:        %s\n", a.DisplayName())
	fmt.Fprintf(w, "Collection:  %s\n", a.Collection)
	fmt.Fprintf(w, "Contract:    %s\n", a.Contract)
	fmt.Fprintf(w, "Token ID:    %s\n", a.TokenID)
	if a.ImageURL != "" {
		fmt.Fprintf(w, "Image:       %s\n", a.ImageURL)
	}

	if !res.HasListing() {
		fmt.Fprintf(w, "Listing:     %s\n", color.YellowString("none"))
		return
	}
	l := res.Listing
	fmt.Fprintf(w, "Price:       %s\n", okColor.Sprint(formatPrice(l.Price)))
	fmt.Fprintf(w, "Order:       %s\n", l.OrderHash)
	fmt.Fprintf(w, "Protocol:    %s\n", l.ProtocolAddress.Hex())
}
