package main

import (
	"fmt"
	"os"

	"github.com/vitwit/nftbuy/internal/cli"
	"github.com/vitwit/nftbuy/types"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		if e, ok := types.AsError(err); ok {
			fmt.Fprintf(os.Stderr, "error: %s\n", e.UserMessage())
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}
