package cli

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/nftbuy/marketplace/marketplacetest"
	"github.com/vitwit/nftbuy/seaport/seaporttest"
	"github.com/vitwit/nftbuy/types"
	"github.com/vitwit/nftbuy/wallet"
	"github.com/vitwit/nftbuy/wallet/wallettest"
)

const (
	testContract = "0x2222222222222222222222222222222222222222"
	testOrder    = "0x7f0e1c5b9d0e2a7c1f3b4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6f708192"
	testAPIKey   = "abcd1234efgh"
)

type harness struct {
	srv      *marketplacetest.Server
	provider *wallettest.Provider
	cfgFile  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	color.NoColor = true
	t.Setenv("OPENSEA_API_KEY", "")
	t.Setenv("NFTBUY_API_KEY", "")

	srv := marketplacetest.NewServer()
	t.Cleanup(srv.Close)
	srv.Asset = marketplacetest.Asset(testContract, "ape-club", "1234", "Ape #1234")
	srv.Listing = marketplacetest.Listing(testOrder, seaporttest.Seaport, seaporttest.PriceWei)
	srv.Fulfillment = marketplacetest.Fulfillment(seaporttest.Seaport, seaporttest.PriceWei, seaporttest.Input)

	cfgFile := filepath.Join(t.TempDir(), "nftbuy.toml")
	body := fmt.Sprintf(`
[api]
base_url = %q
api_key = %q

[log]
level = "error"
`, srv.URL, testAPIKey)
	require.NoError(t, os.WriteFile(cfgFile, []byte(body), 0o600))

	funds, ok := new(big.Int).SetString("2000000000000000000", 10)
	require.True(t, ok)

	return &harness{
		srv:      srv,
		provider: wallettest.NewProvider(common.HexToAddress("0x3333333333333333333333333333333333333333"), funds, types.ApeChain),
		cfgFile:  cfgFile,
	}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{
		httpClient: h.srv.Client(),
		newProvider: func(ctx context.Context, a *app) (wallet.Provider, error) {
			return h.provider, nil
		},
	}
	cmd := newRootCmd("test", a)

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{
		"--config", h.cfgFile,
		"--env-file", filepath.Join(t.TempDir(), "missing.env"),
	}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigShowMasksAPIKey(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "config", "show")
	require.NoError(t, err)

	assert.Contains(t, out, "base_url: "+h.srv.URL)
	assert.Contains(t, out, "abcd****gh")
	assert.NotContains(t, out, testAPIKey)
}

func TestConfigShowFormats(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "config", "show", "--format", "toml")
	require.NoError(t, err)
	assert.Contains(t, out, "[api]")

	out, err = h.run(t, "config", "show", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"baseUrl"`)
	assert.NotContains(t, out, testAPIKey)

	_, err = h.run(t, "config", "show", "--format", "ini")
	assert.Error(t, err)
}

func TestSearchPrintsListing(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "search", "--contract", testContract, "--token", "1234")
	require.NoError(t, err)

	assert.Contains(t, out, "Connected on ApeChain")
	assert.Contains(t, out, "NFT found with listing!")
	assert.Contains(t, out, "Name:        Ape #1234")
	assert.Contains(t, out, "Price:       1.0000 APE")
	assert.Contains(t, out, "Order:       "+testOrder)
	assert.Equal(t, testAPIKey, h.srv.LastAPIKey())
}

func TestSearchAPIKeyFlag(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "--api-key", "from-flag-key", "search", "--contract", testContract, "--token", "1234")
	require.NoError(t, err)
	assert.Equal(t, "from-flag-key", h.srv.LastAPIKey())
}

func TestBuyConfirmed(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "buy", "--contract", testContract, "--token", "1234", "--yes")
	require.NoError(t, err)

	assert.Contains(t, out, "Wallet:      0x3333333333333333333333333333333333333333")
	assert.Contains(t, out, "Confirm in wallet...")
	assert.Contains(t, out, "Purchase complete! 0x")
	assert.Contains(t, out, "Explorer:    "+types.ApeChain.ExplorerURL)
	assert.Equal(t, 1, h.srv.Calls("fulfillment"))
	require.Len(t, h.provider.Sent, 1)
}

func TestBuyWithoutListing(t *testing.T) {
	h := newHarness(t)
	h.srv.SetListing(map[string]any{})

	out, err := h.run(t, "buy", "--contract", testContract, "--token", "1234", "--yes")
	assert.True(t, types.IsCode(err, types.ErrNoListing))
	assert.Contains(t, out, "Listing:     none")
	assert.Equal(t, 0, h.srv.Calls("fulfillment"))
	assert.Empty(t, h.provider.Sent)
}

func TestBuyInsufficientFunds(t *testing.T) {
	h := newHarness(t)
	h.provider.Funds = big.NewInt(1)

	out, err := h.run(t, "buy", "--contract", testContract, "--token", "1234", "--yes")
	assert.True(t, types.IsCode(err, types.ErrInsufficientFunds))
	assert.Contains(t, out, "Insufficient APE balance for this purchase")
	assert.Empty(t, h.provider.Sent)
}

func TestRequiredFlags(t *testing.T) {
	h := newHarness(t)

	for _, sub := range []string{"search", "buy"} {
		t.Run(sub, func(t *testing.T) {
			_, err := h.run(t, sub)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "required flag")
		})
	}
}

func TestInvalidLogLevelFlag(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "--log-level", "loud", "config", "show")
	assert.True(t, types.IsCode(err, types.ErrConfig))
}
