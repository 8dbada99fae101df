// Package wallettest provides a scriptable in-memory wallet provider.
package wallettest

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/vitwit/nftbuy/types"
	"github.com/vitwit/nftbuy/wallet"
)

// Provider records every call and answers from its fields. Error fields
// take precedence over the default behavior of each method.
type Provider struct {
	mu sync.Mutex

	Account common.Address
	Funds   *big.Int

	// Chains the provider recognises, keyed by lower case hex id.
	Known map[string]bool
	Chain string

	SwitchErr   error
	AddErr      error
	AccountsErr error
	BalanceErr  error
	SendErr     error
	ConfirmErr  error

	// ReceiptStatus is the status of confirmed receipts, 1 unless set.
	ReceiptStatus *uint64

	// Hold, when non-nil, blocks AwaitConfirmation until closed or ctx ends.
	Hold chan struct{}

	// SendStarted, when non-nil, is closed by the first SendTransaction.
	SendStarted chan struct{}

	Sent  []wallet.TxRequest
	Added []types.ChainDescriptor

	calls map[string]int
	nonce uint64
}

var _ wallet.Provider = (*Provider)(nil)

// NewProvider returns a provider holding funds wei that already knows chain.
func NewProvider(account common.Address, funds *big.Int, chain types.ChainDescriptor) *Provider {
	return &Provider{
		Account: account,
		Funds:   funds,
		Known:   map[string]bool{strings.ToLower(chain.ChainID): true},
		calls:   map[string]int{},
	}
}

func (p *Provider) record(name string) {
	if p.calls == nil {
		p.calls = map[string]int{}
	}
	p.calls[name]++
}

// Calls returns how often method was invoked.
func (p *Provider) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

func (p *Provider) SwitchNetwork(ctx context.Context, chainID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("SwitchNetwork")

	if p.SwitchErr != nil {
		return p.SwitchErr
	}
	if !p.Known[strings.ToLower(chainID)] {
		return &wallet.ProviderError{Code: wallet.CodeUnrecognizedChain, Message: "Unrecognized chain ID"}
	}
	p.Chain = chainID
	return nil
}

func (p *Provider) AddNetwork(ctx context.Context, chain types.ChainDescriptor) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("AddNetwork")
	p.Added = append(p.Added, chain)

	if p.AddErr != nil {
		return p.AddErr
	}
	if p.Known == nil {
		p.Known = map[string]bool{}
	}
	p.Known[strings.ToLower(chain.ChainID)] = true
	p.Chain = chain.ChainID
	return nil
}

func (p *Provider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("RequestAccounts")

	if p.AccountsErr != nil {
		return nil, p.AccountsErr
	}
	return []common.Address{p.Account}, nil
}

func (p *Provider) Address(ctx context.Context) (common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("Address")
	return p.Account, nil
}

func (p *Provider) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("Balance")

	if p.BalanceErr != nil {
		return nil, p.BalanceErr
	}
	if p.Funds == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(p.Funds), nil
}

func (p *Provider) SendTransaction(ctx context.Context, req wallet.TxRequest) (common.Hash, error) {
	p.mu.Lock()
	p.record("SendTransaction")
	p.Sent = append(p.Sent, req)
	if p.SendStarted != nil {
		close(p.SendStarted)
		p.SendStarted = nil
	}
	err := p.SendErr
	p.nonce++
	nonce := p.nonce
	p.mu.Unlock()

	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(p.Account.Bytes(), new(big.Int).SetUint64(nonce).Bytes()), nil
}

func (p *Provider) AwaitConfirmation(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	p.mu.Lock()
	p.record("AwaitConfirmation")
	hold := p.Hold
	err := p.ConfirmErr
	status := uint64(1)
	if p.ReceiptStatus != nil {
		status = *p.ReceiptStatus
	}
	p.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	return &types.Receipt{
		TxHash:      hash,
		BlockNumber: 1,
		Status:      status,
		GasUsed:     21000,
	}, nil
}

// LastSent returns the latest transaction request, if any.
func (p *Provider) LastSent() (wallet.TxRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Sent) == 0 {
		return wallet.TxRequest{}, false
	}
	return p.Sent[len(p.Sent)-1], true
}
