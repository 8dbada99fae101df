package types

import "time"

const (
	DefaultAPIBaseURL     = "https://api.opensea.io/api/v2"
	DefaultGasBuffer      = "0.1"
	DefaultGasLimit       = uint64(350000)
	DefaultPollInterval   = 2 * time.Second
	DefaultRequestTimeout = 30 * time.Second
)

// APIConfig configures the marketplace client.
type APIConfig struct {
	BaseURL string        `json:"baseUrl" toml:"base_url" yaml:"base_url" validate:"required,url"`
	APIKey  string        `json:"-" toml:"api_key" yaml:"api_key"`
	Timeout time.Duration `json:"timeout" toml:"timeout" yaml:"timeout" validate:"gte=0"`

	// Client side pacing in requests per second, 0 disables it.
	RateLimit float64 `json:"rateLimit" toml:"rate_limit" yaml:"rate_limit" validate:"gte=0"`
	Burst     int     `json:"burst" toml:"burst" yaml:"burst" validate:"gte=0"`
}

// ChainConfig overrides parts of the target chain descriptor.
type ChainConfig struct {
	RPCURL string `json:"rpcUrl" toml:"rpc_url" yaml:"rpc_url" validate:"omitempty,url"`
}

// PurchaseConfig holds the purchase policy.
type PurchaseConfig struct {
	// Native amount reserved for gas on top of the price, in whole units.
	GasBuffer string `json:"gasBuffer" toml:"gas_buffer" yaml:"gas_buffer" validate:"required,numeric"`

	// Fixed gas ceiling sent with the purchase transaction.
	GasLimit uint64 `json:"gasLimit" toml:"gas_limit" yaml:"gas_limit" validate:"required,gt=21000"`

	PollInterval time.Duration `json:"pollInterval" toml:"poll_interval" yaml:"poll_interval" validate:"gte=0"`
}

type LogConfig struct {
	Level  string `json:"level" toml:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `json:"format" toml:"format" yaml:"format" validate:"omitempty,oneof=json console"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" toml:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" toml:"addr" yaml:"addr" validate:"required_if=Enabled true"`
}

// ProxyConfig configures the local development proxy.
type ProxyConfig struct {
	Listen string `json:"listen" toml:"listen" yaml:"listen" validate:"required"`
	Prefix string `json:"prefix" toml:"prefix" yaml:"prefix" validate:"required,startswith=/"`
	Target string `json:"target" toml:"target" yaml:"target" validate:"required,url"`
}

// Config contains global configuration for the buyer.
type Config struct {
	API      APIConfig      `json:"api" toml:"api" yaml:"api"`
	Chain    ChainConfig    `json:"chain" toml:"chain" yaml:"chain"`
	Purchase PurchaseConfig `json:"purchase" toml:"purchase" yaml:"purchase"`
	Log      LogConfig      `json:"log" toml:"log" yaml:"log"`
	Metrics  MetricsConfig  `json:"metrics" toml:"metrics" yaml:"metrics"`
	Proxy    ProxyConfig    `json:"proxy" toml:"proxy" yaml:"proxy"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: DefaultAPIBaseURL,
			Timeout: DefaultRequestTimeout,
		},
		Purchase: PurchaseConfig{
			GasBuffer:    DefaultGasBuffer,
			GasLimit:     DefaultGasLimit,
			PollInterval: DefaultPollInterval,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Proxy: ProxyConfig{
			Listen: "127.0.0.1:5173",
			Prefix: "/opensea",
			Target: "https://api.opensea.io",
		},
	}
}

// Descriptor returns the target chain with configured overrides applied.
func (c *Config) Descriptor() ChainDescriptor {
	return ApeChain.WithRPC(c.Chain.RPCURL)
}
