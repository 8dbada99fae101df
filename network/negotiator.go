// Package network attaches a wallet provider to the target chain.
package network

import (
	"context"
	"fmt"

	"github.com/vitwit/nftbuy/logger"
	"github.com/vitwit/nftbuy/types"
	"github.com/vitwit/nftbuy/wallet"
)

// Negotiator makes sure a provider is on one specific chain.
type Negotiator struct {
	chain  types.ChainDescriptor
	logger logger.Logger
}

func NewNegotiator(chain types.ChainDescriptor, l logger.Logger) *Negotiator {
	return &Negotiator{
		chain:  chain,
		logger: logger.OrNoop(l),
	}
}

// Chain returns the target chain.
func (n *Negotiator) Chain() types.ChainDescriptor {
	return n.chain
}

// EnsureTargetNetwork switches provider to the target chain. Only an
// unrecognized chain (4902) triggers a single add-network request, which
// completes the switch itself. Other switch errors are returned unchanged.
func (n *Negotiator) EnsureTargetNetwork(ctx context.Context, provider wallet.Provider) error {
	if provider == nil {
		return types.NewError(types.ErrProviderMissing, "no wallet provider available", nil)
	}

	err := provider.SwitchNetwork(ctx, n.chain.ChainID)
	if err == nil {
		n.logger.Debug("provider on target network", map[string]any{"chain_id": n.chain.ChainID})
		return nil
	}

	if wallet.ProviderCode(err) != wallet.CodeUnrecognizedChain {
		return err
	}

	n.logger.Info("target network unknown to provider, adding it", map[string]any{
		"chain_id": n.chain.ChainID,
		"chain":    n.chain.Name,
	})

	if err := provider.AddNetwork(ctx, n.chain); err != nil {
		return &types.Error{
			Code:    types.ErrNetworkSwitch,
			Message: fmt.Sprintf("failed to add network %s (%s)", n.chain.Name, n.chain.ChainID),
			Cause:   err,
		}
	}

	return nil
}
