// Package config loads buyer configuration from a TOML or YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vitwit/nftbuy/types"
	"github.com/vitwit/nftbuy/utils"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "NFTBUY_"

// Load returns the defaults, overlaid with the file at path (skipped when
// empty) and then with environment variables. The result is validated.
func Load(path string) (*types.Config, error) {
	cfg := types.DefaultConfig()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := utils.ValidateStruct(cfg); err != nil {
		return nil, types.NewError(types.ErrConfig, "invalid configuration", err)
	}

	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process
// environment. A missing file is not an error; existing variables win.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func loadFile(path string, cfg *types.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.NewError(types.ErrConfig, fmt.Sprintf("failed to read config file %s", path), err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return types.NewError(types.ErrConfig, fmt.Sprintf("failed to parse %s", path), err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return types.NewError(types.ErrConfig, fmt.Sprintf("failed to parse %s", path), err)
		}
	default:
		return types.NewError(types.ErrConfig, fmt.Sprintf("unsupported config format %q", ext), nil)
	}

	return nil
}

func applyEnv(cfg *types.Config) error {
	setString(&cfg.API.BaseURL, "API_BASE_URL")
	setString(&cfg.Chain.RPCURL, "RPC_URL")
	setString(&cfg.Purchase.GasBuffer, "GAS_BUFFER")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	setString(&cfg.Proxy.Listen, "PROXY_LISTEN")
	setString(&cfg.Proxy.Target, "PROXY_TARGET")

	// The marketplace's own variable name is honoured, the prefixed one wins.
	if v := os.Getenv("OPENSEA_API_KEY"); v != "" {
		cfg.API.APIKey = v
	}
	setString(&cfg.API.APIKey, "API_KEY")

	if v := getEnv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = v
	}

	if v := getEnv("GAS_LIMIT"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return envError("GAS_LIMIT", v, err)
		}
		cfg.Purchase.GasLimit = n
	}

	if v := getEnv("RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return envError("RATE_LIMIT", v, err)
		}
		cfg.API.RateLimit = f
	}

	for key, dst := range map[string]*time.Duration{
		"POLL_INTERVAL":   &cfg.Purchase.PollInterval,
		"REQUEST_TIMEOUT": &cfg.API.Timeout,
	} {
		if v := getEnv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return envError(key, v, err)
			}
			*dst = d
		}
	}

	return nil
}

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + key))
}

func setString(dst *string, key string) {
	if v := getEnv(key); v != "" {
		*dst = v
	}
}

func envError(key, value string, err error) error {
	return types.NewError(types.ErrConfig, fmt.Sprintf("invalid %s%s=%q", EnvPrefix, key, value), err)
}

// Redacted returns a copy of cfg that is safe to print.
func Redacted(cfg *types.Config) *types.Config {
	out := *cfg
	out.API.APIKey = mask(cfg.API.APIKey)
	return &out
}

func mask(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 8:
		return "****"
	default:
		return secret[:4] + "****" + secret[len(secret)-2:]
	}
}
