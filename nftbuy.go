// Package nftbuy finds a collectible's best marketplace listing and buys it
// from a connected wallet on ApeChain.
package nftbuy

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vitwit/nftbuy/balance"
	"github.com/vitwit/nftbuy/logger"
	"github.com/vitwit/nftbuy/marketplace"
	"github.com/vitwit/nftbuy/metrics"
	"github.com/vitwit/nftbuy/network"
	"github.com/vitwit/nftbuy/purchase"
	"github.com/vitwit/nftbuy/types"
	"github.com/vitwit/nftbuy/utils"
	"github.com/vitwit/nftbuy/wallet"
)

// MarketplaceAPI is the marketplace surface the buyer needs.
type MarketplaceAPI interface {
	GetAsset(ctx context.Context, contract, tokenID string) (*types.AssetRecord, error)
	GetBestListing(ctx context.Context, collection, tokenID string) (*types.Listing, error)
	RequestFulfillmentData(ctx context.Context, listing *types.Listing, fulfiller common.Address) (*types.FulfillmentPayload, error)
}

// SearchResult is the outcome of a lookup. Listing is nil when the token has
// no active listing.
type SearchResult struct {
	Asset   *types.AssetRecord
	Listing *types.Listing
}

// HasListing reports whether the token can be bought.
func (r *SearchResult) HasListing() bool {
	return r != nil && r.Listing != nil
}

// View is a copy of the buyer's current context.
type View struct {
	Session    *wallet.Session
	Asset      *types.AssetRecord
	Listing    *types.Listing
	Status     string
	Error      string
	Purchasing bool
}

// Buyer owns the purchase context: the wallet session and the asset and
// listing of the latest search.
type Buyer struct {
	cfg      *types.Config
	chain    types.ChainDescriptor
	provider wallet.Provider

	negotiator *network.Negotiator
	market     MarketplaceAPI
	executor   *purchase.Executor

	logger     logger.Logger
	metrics    metrics.Recorder
	httpClient *http.Client

	mu      sync.Mutex
	pending int // purchases between snapshot and completion
	session *wallet.Session
	asset   *types.AssetRecord
	listing *types.Listing
	status  string
	lastErr string

	subMu       sync.RWMutex
	subscribers []func(purchase.Event)
}

// New creates a buyer. A nil cfg uses types.DefaultConfig. provider may be
// nil, in which case Connect fails with PROVIDER_MISSING.
func New(cfg *types.Config, provider wallet.Provider, opts ...Option) (*Buyer, error) {
	if cfg == nil {
		cfg = types.DefaultConfig()
	}
	if err := utils.ValidateStruct(cfg); err != nil {
		return nil, types.NewError(types.ErrConfig, "invalid configuration", err)
	}

	b := &Buyer{
		cfg:      cfg,
		chain:    cfg.Descriptor(),
		provider: provider,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logger.OrNoop(b.logger)
	b.metrics = metrics.OrNoop(b.metrics)

	if b.httpClient == nil {
		b.httpClient = &http.Client{Timeout: cfg.API.Timeout}
	}
	if b.market == nil {
		b.market = marketplace.New(cfg.API.BaseURL, cfg.API.APIKey, b.chain,
			marketplace.WithHTTPClient(b.httpClient),
			marketplace.WithRateLimit(cfg.API.RateLimit, cfg.API.Burst),
			marketplace.WithLogger(b.logger),
			marketplace.WithMetrics(b.metrics),
		)
	}

	guard, err := balance.NewGuard(b.chain.NativeCurrency, cfg.Purchase.GasBuffer)
	if err != nil {
		return nil, err
	}

	b.negotiator = network.NewNegotiator(b.chain, b.logger)
	b.executor = purchase.NewExecutor(b.market, guard, b.chain, cfg.Purchase.GasLimit,
		purchase.WithLogger(b.logger),
		purchase.WithMetrics(b.metrics),
		purchase.WithObserver(b.publish),
	)

	return b, nil
}

// Chain returns the target chain.
func (b *Buyer) Chain() types.ChainDescriptor {
	return b.chain
}

// Subscribe registers fn for every status change, including each purchase
// state transition. fn runs on the caller's goroutine of the operation that
// produced the event.
func (b *Buyer) Subscribe(fn func(purchase.Event)) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	b.subscribers = append(b.subscribers, fn)
}

// Connect attaches the provider to the target chain and opens a session on
// its first account.
func (b *Buyer) Connect(ctx context.Context) (*wallet.Session, error) {
	if b.provider == nil {
		err := types.NewError(types.ErrProviderMissing, "no wallet provider available", nil)
		b.fail(err)
		return nil, err
	}

	if err := b.negotiator.EnsureTargetNetwork(ctx, b.provider); err != nil {
		b.fail(err)
		return nil, err
	}

	accounts, err := b.provider.RequestAccounts(ctx)
	if err != nil {
		b.fail(err)
		return nil, err
	}
	if len(accounts) == 0 {
		err := types.NewError(types.ErrProviderMissing, "provider disclosed no accounts", nil)
		b.fail(err)
		return nil, err
	}

	session := &wallet.Session{
		Address:  accounts[0],
		Provider: b.provider,
		Chain:    b.chain,
	}

	b.mu.Lock()
	b.session = session
	b.mu.Unlock()

	b.logger.Info("wallet connected", map[string]any{
		"address": session.Address.Hex(),
		"chain":   b.chain.Name,
	})
	b.notify("Connected on " + b.chain.Name)

	return session, nil
}

// Search looks up a token and its best listing. The previous asset and
// listing are discarded first, whatever the result. It is rejected while a
// purchase holds the current selection.
func (b *Buyer) Search(ctx context.Context, contract, tokenID string) (*SearchResult, error) {
	contract = strings.TrimSpace(contract)
	tokenID = strings.TrimSpace(tokenID)
	if contract == "" || tokenID == "" {
		err := types.NewError(types.ErrInvalidInput, "Enter contract + token ID", nil)
		b.fail(err)
		return nil, err
	}

	addr, err := utils.ValidateAddress(contract)
	if err != nil {
		terr := types.NewError(types.ErrInvalidInput, "invalid contract address", err)
		b.fail(terr)
		return nil, terr
	}
	id, err := utils.ValidateTokenID(tokenID)
	if err != nil {
		terr := types.NewError(types.ErrInvalidInput, "invalid token id", err)
		b.fail(terr)
		return nil, terr
	}

	b.mu.Lock()
	if b.pending > 0 || b.executor.InFlight() {
		b.mu.Unlock()
		err := types.NewError(types.ErrPurchaseInProgress, "cannot search while a purchase is in progress", nil)
		b.fail(err)
		return nil, err
	}
	b.asset = nil
	b.listing = nil
	b.lastErr = ""
	b.mu.Unlock()

	start := time.Now()
	defer func() {
		b.metrics.ObserveLatency(metrics.SearchLatency, time.Since(start), map[string]string{
			"network": b.chain.Slug,
			"stage":   "total",
		})
	}()

	asset, err := b.market.GetAsset(ctx, addr.Hex(), id)
	if err != nil {
		b.fail(err)
		return nil, err
	}

	listing, err := b.market.GetBestListing(ctx, asset.Collection, id)
	if err != nil {
		b.fail(err)
		return nil, err
	}
	if listing != nil && !listing.Matches(asset) {
		b.logger.Warn("best listing refers to another token, ignoring it", map[string]any{
			"order_hash": listing.OrderHash,
			"collection": asset.Collection,
			"token_id":   asset.TokenID,
		})
		listing = nil
	}

	b.mu.Lock()
	b.asset = asset
	b.listing = listing
	b.mu.Unlock()

	if listing != nil {
		b.notify("NFT found with listing!")
	} else {
		b.notify("NFT found - no active listing")
	}

	return &SearchResult{Asset: asset, Listing: listing}, nil
}

// Purchase buys the current listing with the connected account. The
// listing is discarded once the attempt got a transaction onto the network.
func (b *Buyer) Purchase(ctx context.Context) *types.Outcome {
	b.mu.Lock()
	sel := purchase.Selection{
		Session: b.session,
		Asset:   b.asset,
		Listing: b.listing,
	}
	b.pending++
	b.lastErr = ""
	b.mu.Unlock()

	out := b.executor.Execute(ctx, sel)

	b.mu.Lock()
	b.pending--
	if out.Submitted() && b.listing == sel.Listing {
		b.listing = nil
	}
	b.mu.Unlock()

	if out.Err != nil && out.Err.Code == types.ErrPurchaseInProgress {
		b.fail(out.Err)
	}

	return out
}

// Snapshot returns a copy of the current context.
func (b *Buyer) Snapshot() View {
	b.mu.Lock()
	defer b.mu.Unlock()
	return View{
		Session:    b.session,
		Asset:      b.asset,
		Listing:    b.listing,
		Status:     b.status,
		Error:      b.lastErr,
		Purchasing: b.pending > 0 || b.executor.InFlight(),
	}
}

// Disconnect drops the session and the search context.
func (b *Buyer) Disconnect() {
	b.mu.Lock()
	b.session = nil
	b.asset = nil
	b.listing = nil
	b.status = ""
	b.lastErr = ""
	b.mu.Unlock()

	b.logger.Info("wallet disconnected", nil)
}

func (b *Buyer) notify(status string) {
	b.publish(purchase.Event{
		State:  types.StateIdle,
		Status: status,
		At:     time.Now(),
	})
}

func (b *Buyer) fail(err error) {
	te, ok := types.AsError(err)
	if !ok {
		te = types.NewError("", err.Error(), err)
	}
	b.publish(purchase.Event{
		State:  types.StateIdle,
		Status: userMessage(te),
		Err:    te,
		At:     time.Now(),
	})
}

// userMessage renders errors without a code the way the provider reported
// them.
func userMessage(e *types.Error) string {
	if e.Code == "" {
		return fmt.Sprintf("Error: %s", e.Message)
	}
	if e.Code == types.ErrInvalidInput && e.Cause == nil {
		return e.Message
	}
	return e.UserMessage()
}

func (b *Buyer) publish(ev purchase.Event) {
	b.mu.Lock()
	if ev.Err != nil {
		b.lastErr = userMessage(ev.Err)
	} else {
		b.status = ev.Status
	}
	b.mu.Unlock()

	b.subMu.RLock()
	subs := make([]func(purchase.Event), len(b.subscribers))
	copy(subs, b.subscribers)
	b.subMu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}
