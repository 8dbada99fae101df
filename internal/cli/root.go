// Package cli implements the nftbuy command line.
package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vitwit/nftbuy"
	"github.com/vitwit/nftbuy/config"
	"github.com/vitwit/nftbuy/logger"
	"github.com/vitwit/nftbuy/metrics"
	"github.com/vitwit/nftbuy/types"
	"github.com/vitwit/nftbuy/utils"
	"github.com/vitwit/nftbuy/wallet"
)

// app carries global flags and the objects built from them.
type app struct {
	cfgFile     string
	envFile     string
	apiKey      string
	logLevel    string
	rpcURL      string
	keystore    string
	metricsAddr string

	cfg      *types.Config
	log      logger.Logger
	registry *prometheus.Registry
	recorder metrics.Recorder

	httpClient  *http.Client
	newProvider func(ctx context.Context, a *app) (wallet.Provider, error)
}

// Execute runs the CLI until completion or an interrupt.
func Execute(version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return NewRootCmd(version).ExecuteContext(ctx)
}

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	return newRootCmd(version, &app{newProvider: keyProvider})
}

func newRootCmd(version string, a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nftbuy",
		Short: "Find and buy NFTs listed on OpenSea for ApeChain",
		Long: `nftbuy looks up a token by contract address and token id, shows its best
OpenSea listing and buys it with a local key on ApeChain.

The signing key is read from NFTBUY_PRIVATE_KEY or from an encrypted keystore
file passed with --keystore.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (.toml, .yaml or .yml)")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.StringVar(&a.apiKey, "api-key", "", "OpenSea API key (default from OPENSEA_API_KEY)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.rpcURL, "rpc-url", "", "ApeChain RPC endpoint override")
	flags.StringVar(&a.keystore, "keystore", "", "encrypted keystore file holding the buyer key")
	flags.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	rootCmd.AddCommand(a.searchCmd())
	rootCmd.AddCommand(a.buyCmd())
	rootCmd.AddCommand(a.configCmd())
	rootCmd.AddCommand(a.proxyCmd())

	return rootCmd
}

// setup resolves configuration: file, environment, then flags.
func (a *app) setup() error {
	if a.envFile != "" {
		if err := config.LoadEnvFile(a.envFile); err != nil {
			return err
		}
	}

	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}

	if a.apiKey != "" {
		cfg.API.APIKey = a.apiKey
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.rpcURL != "" {
		cfg.Chain.RPCURL = a.rpcURL
	}
	if a.metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = a.metricsAddr
	}
	if err := utils.ValidateStruct(cfg); err != nil {
		return types.NewError(types.ErrConfig, "invalid flags", err)
	}

	log, err := logger.NewZapLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	a.registry = prometheus.NewRegistry()
	recorder, err := metrics.NewPrometheusRecorder(a.registry)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	a.recorder = recorder
	return nil
}

// newBuyer opens the wallet and builds a buyer. provider is nil when no key
// is configured. release closes the wallet connection.
func (a *app) newBuyer(ctx context.Context) (buyer *nftbuy.Buyer, provider wallet.Provider, release func(), err error) {
	provider, err = a.newProvider(ctx, a)
	if err != nil {
		return nil, nil, nil, err
	}

	release = func() {
		if c, ok := provider.(interface{ Close() }); ok {
			c.Close()
		}
		if z, ok := a.log.(*logger.ZapLogger); ok {
			_ = z.Sync()
		}
	}

	buyer, err = nftbuy.New(a.cfg, provider,
		nftbuy.WithLogger(a.log),
		nftbuy.WithMetrics(a.recorder),
		nftbuy.WithHTTPClient(a.httpClient),
	)
	if err != nil {
		release()
		return nil, nil, nil, err
	}

	return buyer, provider, release, nil
}

// serveMetrics exposes the registry while ctx is alive when metrics are
// enabled.
func (a *app) serveMetrics(ctx context.Context) {
	if !a.cfg.Metrics.Enabled {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.log.Info("metrics listening", map[string]any{"addr": a.cfg.Metrics.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server failed", map[string]any{"error": err})
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
