// Package wallet defines the wallet provider capability the buyer drives and
// a key backed implementation of it.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vitwit/nftbuy/types"
)

// EIP-1193 provider error codes.
const (
	CodeUserRejected        = 4001
	CodeUnauthorized        = 4100
	CodeDisconnected        = 4900
	CodeChainDisconnected   = 4901
	CodeUnrecognizedChain   = 4902
	CodeInternal            = -32603
	CodeInvalidParams       = -32602
	CodeTransactionRejected = -32003
)

// ProviderError is an EIP-1193 style error. It satisfies go-ethereum's
// rpc.Error and rpc.DataError so callers can inspect revert data uniformly.
type ProviderError struct {
	Code    int
	Message string
	Data    any
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

func (e *ProviderError) ErrorCode() int { return e.Code }

func (e *ProviderError) ErrorData() any { return e.Data }

// ProviderCode returns the provider error code in err's chain, or 0.
func ProviderCode(err error) int {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return 0
}

// TxRequest is a transaction the provider signs and sends.
type TxRequest struct {
	To       common.Address
	Data     []byte
	Value    *big.Int
	GasLimit uint64
}

// Provider is the wallet capability used by the purchase workflow. Every
// method may block on user interaction or network I/O.
type Provider interface {
	SwitchNetwork(ctx context.Context, chainID string) error
	AddNetwork(ctx context.Context, chain types.ChainDescriptor) error
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	Address(ctx context.Context) (common.Address, error)
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
	SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error)
	AwaitConfirmation(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Session is a connected account on the target network.
type Session struct {
	Address  common.Address
	Provider Provider
	Chain    types.ChainDescriptor
}

// Valid reports whether the session can be used for a purchase.
func (s *Session) Valid() bool {
	return s != nil && s.Provider != nil && s.Address != (common.Address{})
}
