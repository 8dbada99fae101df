package types

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// NativeCurrency describes the gas token of a chain.
type NativeCurrency struct {
	Name     string `json:"name" toml:"name" yaml:"name"`
	Symbol   string `json:"symbol" toml:"symbol" yaml:"symbol"`
	Decimals uint8  `json:"decimals" toml:"decimals" yaml:"decimals"`
}

// ChainDescriptor is the immutable description of the network purchases run on.
type ChainDescriptor struct {
	// Hex encoded chain id, e.g. "0x8173".
	ChainID string `json:"chainId" validate:"required,hexadecimal"`

	// Human readable chain name shown by wallets.
	Name string `json:"chainName" validate:"required"`

	// Chain slug used by the marketplace API.
	Slug string `json:"slug" validate:"required"`

	RPCURL         string         `json:"rpcUrl" validate:"required,url"`
	NativeCurrency NativeCurrency `json:"nativeCurrency"`
	ExplorerURL    string         `json:"blockExplorerUrl" validate:"omitempty,url"`
}

// ApeChain is the network the buyer operates on.
var ApeChain = ChainDescriptor{
	ChainID: "0x8173",
	Name:    "ApeChain",
	Slug:    "ape_chain",
	RPCURL:  "https://rpc.apechain.com/http",
	NativeCurrency: NativeCurrency{
		Name:     "APE",
		Symbol:   "APE",
		Decimals: 18,
	},
	ExplorerURL: "https://apescan.io",
}

// ChainIDBig parses the hex chain id.
func (c ChainDescriptor) ChainIDBig() (*big.Int, error) {
	id, err := hexutil.DecodeBig(c.ChainID)
	if err != nil {
		return nil, fmt.Errorf("invalid chain id %q: %w", c.ChainID, err)
	}
	return id, nil
}

// SameChain reports whether id refers to this chain, ignoring hex case and
// leading zeros.
func (c ChainDescriptor) SameChain(id *big.Int) bool {
	own, err := c.ChainIDBig()
	if err != nil || id == nil {
		return false
	}
	return own.Cmp(id) == 0
}

// WithRPC returns a copy of the descriptor pointing at another endpoint.
func (c ChainDescriptor) WithRPC(rpcURL string) ChainDescriptor {
	if strings.TrimSpace(rpcURL) != "" {
		c.RPCURL = rpcURL
	}
	return c
}

// AddChainParams is the wallet_addEthereumChain (EIP-3085) parameter object.
type AddChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	RPCURLs           []string       `json:"rpcUrls"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

func (c ChainDescriptor) AddNetworkParams() AddChainParams {
	params := AddChainParams{
		ChainID:        c.ChainID,
		ChainName:      c.Name,
		RPCURLs:        []string{c.RPCURL},
		NativeCurrency: c.NativeCurrency,
	}
	if c.ExplorerURL != "" {
		params.BlockExplorerURLs = []string{c.ExplorerURL}
	}
	return params
}

// TxURL links a transaction hash on the chain explorer.
func (c ChainDescriptor) TxURL(hash string) string {
	if c.ExplorerURL == "" {
		return hash
	}
	return strings.TrimRight(c.ExplorerURL, "/") + "/tx/" + hash
}
