package cli

import (
	"encoding/json"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vitwit/nftbuy/config"
)

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	cmd.AddCommand(a.configShowCmd())
	return cmd
}

func (a *app) configShowCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long: `Display the configuration after applying the config file, environment and
flags. Secrets are masked.

EXAMPLES:
  nftbuy config show
  nftbuy config show --format toml
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Redacted(a.cfg)
			out := cmd.OutOrStdout()

			switch format {
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(cfg); err != nil {
					return err
				}
				return enc.Close()
			case "toml":
				return toml.NewEncoder(out).Encode(cfg)
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			default:
				return fmt.Errorf("unknown format %q (want yaml, toml or json)", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "yaml", "output format: yaml, toml or json")
	return cmd
}
