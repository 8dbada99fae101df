package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/vitwit/nftbuy/logger"
	"github.com/vitwit/nftbuy/types"
	"github.com/vitwit/nftbuy/utils"
)

// ChainClient is the subset of ethclient.Client used by KeyProvider.
type ChainClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

// Dialer opens a ChainClient for an RPC endpoint.
type Dialer func(ctx context.Context, rpcURL string) (ChainClient, error)

func dialEthclient(ctx context.Context, rpcURL string) (ChainClient, error) {
	return ethclient.DialContext(ctx, rpcURL)
}

// KeyProvider is a Provider backed by a local private key and JSON-RPC.
type KeyProvider struct {
	key     *ecdsa.PrivateKey
	address common.Address
	dial    Dialer
	poll    time.Duration
	logger  logger.Logger

	mu      sync.RWMutex
	known   map[string]types.ChainDescriptor
	client  ChainClient
	chainID *big.Int
}

var _ Provider = (*KeyProvider)(nil)

type KeyOption func(*KeyProvider)

// WithDialer replaces the JSON-RPC dialer, e.g. with a simulated backend.
func WithDialer(d Dialer) KeyOption {
	return func(p *KeyProvider) {
		p.dial = d
	}
}

// WithPollInterval sets how often receipts are polled while awaiting
// confirmation.
func WithPollInterval(d time.Duration) KeyOption {
	return func(p *KeyProvider) {
		if d > 0 {
			p.poll = d
		}
	}
}

func WithLogger(l logger.Logger) KeyOption {
	return func(p *KeyProvider) {
		p.logger = logger.OrNoop(l)
	}
}

// WithKnownChain registers a chain the provider can switch to without an
// add-network request.
func WithKnownChain(chain types.ChainDescriptor) KeyOption {
	return func(p *KeyProvider) {
		p.known[normalizeChainID(chain.ChainID)] = chain
	}
}

// NewKeyProvider creates a provider signing with key. It knows no chains
// until one is registered or added.
func NewKeyProvider(key *ecdsa.PrivateKey, opts ...KeyOption) (*KeyProvider, error) {
	if key == nil {
		return nil, errors.New("private key is required")
	}

	p := &KeyProvider{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		dial:    dialEthclient,
		poll:    types.DefaultPollInterval,
		logger:  logger.NoopLogger{},
		known:   make(map[string]types.ChainDescriptor),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

func normalizeChainID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	id = strings.TrimPrefix(id, "0x")
	id = strings.TrimLeft(id, "0")
	return "0x" + id
}

func (p *KeyProvider) SwitchNetwork(ctx context.Context, chainID string) error {
	p.mu.RLock()
	chain, ok := p.known[normalizeChainID(chainID)]
	p.mu.RUnlock()
	if !ok {
		return &ProviderError{
			Code:    CodeUnrecognizedChain,
			Message: fmt.Sprintf("Unrecognized chain ID %q", chainID),
		}
	}

	want, err := chain.ChainIDBig()
	if err != nil {
		return &ProviderError{Code: CodeInvalidParams, Message: err.Error()}
	}

	client, err := p.dial(ctx, chain.RPCURL)
	if err != nil {
		return &ProviderError{
			Code:    CodeChainDisconnected,
			Message: fmt.Sprintf("dial %s: %v", chain.RPCURL, err),
		}
	}

	got, err := client.ChainID(ctx)
	if err != nil {
		closeClient(client)
		return &ProviderError{
			Code:    CodeChainDisconnected,
			Message: fmt.Sprintf("eth_chainId on %s: %v", chain.RPCURL, err),
		}
	}
	if got.Cmp(want) != 0 {
		closeClient(client)
		return &ProviderError{
			Code:    CodeChainDisconnected,
			Message: fmt.Sprintf("rpc %s serves chain %s, expected %s", chain.RPCURL, got, want),
		}
	}

	p.mu.Lock()
	old := p.client
	p.client = client
	p.chainID = got
	p.mu.Unlock()

	if old != nil && old != client {
		closeClient(old)
	}

	p.logger.Info("switched network", map[string]any{
		"chain_id": chain.ChainID,
		"chain":    chain.Name,
	})
	return nil
}

// AddNetwork registers chain and switches to it, as wallets do after an
// approved wallet_addEthereumChain request.
func (p *KeyProvider) AddNetwork(ctx context.Context, chain types.ChainDescriptor) error {
	if err := utils.ValidateStruct(chain); err != nil {
		return &ProviderError{Code: CodeInvalidParams, Message: err.Error()}
	}

	p.mu.Lock()
	p.known[normalizeChainID(chain.ChainID)] = chain
	p.mu.Unlock()

	p.logger.Info("added network", map[string]any{
		"chain_id": chain.ChainID,
		"rpc":      chain.RPCURL,
	})
	return p.SwitchNetwork(ctx, chain.ChainID)
}

func (p *KeyProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return []common.Address{p.address}, nil
}

func (p *KeyProvider) Address(ctx context.Context) (common.Address, error) {
	return p.address, nil
}

func (p *KeyProvider) connected() (ChainClient, *big.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.client == nil {
		return nil, nil, &ProviderError{Code: CodeDisconnected, Message: "not connected to any chain"}
	}
	return p.client, p.chainID, nil
}

func (p *KeyProvider) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	client, _, err := p.connected()
	if err != nil {
		return nil, err
	}
	return client.BalanceAt(ctx, addr, nil)
}

// SendTransaction signs an EIP-1559 transaction with the fixed gas limit of
// req and broadcasts it. Node errors are returned unwrapped so revert data
// stays inspectable.
func (p *KeyProvider) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	client, chainID, err := p.connected()
	if err != nil {
		return common.Hash{}, err
	}
	if req.GasLimit == 0 {
		return common.Hash{}, &ProviderError{Code: CodeInvalidParams, Message: "gas limit is required"}
	}

	nonce, err := client.PendingNonceAt(ctx, p.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}

	tip, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest gas tip: %w", err)
	}

	head, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("latest header: %w", err)
	}

	// fee cap leaves room for two full base fee increases
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	to := req.To
	tx := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       req.GasLimit,
		To:        &to,
		Value:     value,
		Data:      req.Data,
	})

	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(chainID), p.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}

	if err := client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, err
	}

	p.logger.Info("transaction sent", map[string]any{
		"tx_hash": signed.Hash().Hex(),
		"nonce":   nonce,
		"to":      to.Hex(),
	})
	return signed.Hash(), nil
}

// AwaitConfirmation polls for the receipt of hash until it is mined or ctx
// ends. Lookup errors are logged and retried. There is no other timeout.
func (p *KeyProvider) AwaitConfirmation(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	client, _, err := p.connected()
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			return &types.Receipt{
				TxHash:      receipt.TxHash,
				BlockNumber: receipt.BlockNumber.Uint64(),
				Status:      receipt.Status,
				GasUsed:     receipt.GasUsed,
			}, nil
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case !errors.Is(err, ethereum.NotFound):
			// Nodes report indexing lag and dropped connections here; the
			// transaction may still be mined.
			p.logger.Warn("receipt lookup failed, retrying", map[string]any{
				"tx_hash": hash.Hex(),
				"error":   err,
			})
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close releases the RPC connection.
func (p *KeyProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		closeClient(p.client)
		p.client = nil
	}
}

func closeClient(c ChainClient) {
	if closer, ok := c.(interface{ Close() }); ok {
		closer.Close()
	}
}
