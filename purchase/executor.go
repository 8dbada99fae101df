// Package purchase runs a single listing purchase from balance check to
// on-chain confirmation.
package purchase

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/vitwit/nftbuy/balance"
	"github.com/vitwit/nftbuy/logger"
	"github.com/vitwit/nftbuy/metrics"
	"github.com/vitwit/nftbuy/seaport"
	"github.com/vitwit/nftbuy/types"
	"github.com/vitwit/nftbuy/utils"
	"github.com/vitwit/nftbuy/wallet"
)

// Marketplace produces fulfillment data for a listing.
type Marketplace interface {
	RequestFulfillmentData(ctx context.Context, listing *types.Listing, fulfiller common.Address) (*types.FulfillmentPayload, error)
}

// Selection is the purchase context captured when an attempt starts.
type Selection struct {
	Session *wallet.Session
	Asset   *types.AssetRecord
	Listing *types.Listing
}

// Event reports a state transition of an attempt.
type Event struct {
	AttemptID string
	State     types.PurchaseState
	Status    string
	TxHash    string
	Err       *types.Error
	At        time.Time
}

// Observer receives events synchronously, in transition order.
type Observer func(Event)

// Executor drives the purchase state machine. It allows one attempt at a
// time.
type Executor struct {
	market   Marketplace
	guard    *balance.Guard
	chain    types.ChainDescriptor
	gasLimit uint64

	logger  logger.Logger
	metrics metrics.Recorder
	newID   func() string

	mu        sync.RWMutex
	observers []Observer

	inFlight atomic.Bool
}

type Option func(*Executor)

func WithLogger(l logger.Logger) Option {
	return func(e *Executor) {
		e.logger = logger.OrNoop(l)
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(e *Executor) {
		e.metrics = metrics.OrNoop(r)
	}
}

// WithObserver registers o before the first attempt.
func WithObserver(o Observer) Option {
	return func(e *Executor) {
		e.observers = append(e.observers, o)
	}
}

// WithIDGenerator overrides attempt id generation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Executor) {
		e.newID = fn
	}
}

// NewExecutor builds an executor for chain. gasLimit is the ceiling set on
// every purchase transaction.
func NewExecutor(market Marketplace, guard *balance.Guard, chain types.ChainDescriptor, gasLimit uint64, opts ...Option) *Executor {
	e := &Executor{
		market:   market,
		guard:    guard,
		chain:    chain,
		gasLimit: gasLimit,
		logger:   logger.NoopLogger{},
		metrics:  metrics.NoopRecorder{},
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe adds an observer for subsequent attempts.
func (e *Executor) Subscribe(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, o)
}

// InFlight reports whether an attempt is running.
func (e *Executor) InFlight() bool {
	return e.inFlight.Load()
}

// Execute runs one attempt and returns its terminal outcome. The outcome is
// Submitted, not Failed, when ctx ends while waiting for confirmation.
func (e *Executor) Execute(ctx context.Context, sel Selection) *types.Outcome {
	if !e.inFlight.CompareAndSwap(false, true) {
		now := time.Now()
		return &types.Outcome{
			State:    types.StateFailed,
			Err:      types.NewError(types.ErrPurchaseInProgress, "a purchase is already in progress", nil),
			Started:  now,
			Finished: now,
		}
	}
	defer e.inFlight.Store(false)

	a := &attempt{
		exec:  e,
		state: types.StateIdle,
		outcome: &types.Outcome{
			AttemptID: e.newID(),
			State:     types.StateIdle,
			Started:   time.Now(),
		},
		stageStart: time.Now(),
	}

	e.logger.Info("purchase started", map[string]any{
		"attempt_id": a.outcome.AttemptID,
		"chain":      e.chain.Name,
	})

	a.run(ctx, sel)

	a.outcome.Finished = time.Now()
	e.metrics.IncCounter(metrics.PurchaseOutcome, map[string]string{
		"network": e.chain.Slug,
		"value":   outcomeLabel(a.outcome),
	})
	e.metrics.ObserveLatency(metrics.PurchaseLatency, a.outcome.Finished.Sub(a.outcome.Started), map[string]string{
		"network": e.chain.Slug,
		"stage":   "total",
	})

	return a.outcome
}

func outcomeLabel(o *types.Outcome) string {
	if o.Err != nil {
		return o.Err.Code
	}
	return o.State.String()
}

// attempt holds the mutable state of one Execute call.
type attempt struct {
	exec       *Executor
	state      types.PurchaseState
	outcome    *types.Outcome
	stageStart time.Time
}

func (a *attempt) run(ctx context.Context, sel Selection) {
	e := a.exec

	if sel.Listing == nil || sel.Asset == nil || !sel.Session.Valid() {
		a.fail(types.NewError(types.ErrNoListing, "no listing selected", nil))
		return
	}
	if !sel.Listing.Matches(sel.Asset) {
		a.fail(types.NewError(types.ErrNoListing,
			fmt.Sprintf("listing %s does not belong to %s/%s", sel.Listing.OrderHash, sel.Asset.Collection, sel.Asset.TokenID), nil))
		return
	}

	session := sel.Session
	listing := sel.Listing
	price := listing.PriceWei()

	a.transition(types.StateCheckingBalance, "Checking balance...")

	check, err := e.guard.CheckSufficientFunds(ctx, session.Provider, session.Address, price)
	if err != nil {
		a.fail(err)
		return
	}
	if !check.OK {
		a.fail(e.guard.Err(check))
		return
	}

	a.transition(types.StatePreparingFulfillment, "Preparing purchase...")

	payload, err := e.market.RequestFulfillmentData(ctx, listing, session.Address)
	if err != nil {
		a.fail(types.NewError(types.ErrFulfillment, "failed to fetch fulfillment data", err))
		return
	}
	tx, value, to, ferr := e.validateFulfillment(payload, price)
	if ferr != nil {
		a.fail(ferr)
		return
	}

	input, err := seaport.DecodeFulfillInput(tx.InputData)
	if err != nil {
		a.fail(err)
		return
	}
	calldata, err := seaport.Encode(input)
	if err != nil {
		a.fail(err)
		return
	}

	a.transition(types.StateAwaitingSignature, "Confirm in wallet...")

	hash, err := session.Provider.SendTransaction(ctx, wallet.TxRequest{
		To:       to,
		Data:     calldata,
		Value:    value,
		GasLimit: e.gasLimit,
	})
	if err != nil {
		a.fail(classifySubmission(err, e.chain.NativeCurrency))
		return
	}

	a.outcome.TxHash = hash.Hex()
	a.transition(types.StateSubmitted, "TX sent! "+hash.Hex())

	receipt, err := session.Provider.AwaitConfirmation(ctx, hash)
	if err != nil {
		if ctx.Err() != nil {
			e.logger.Warn("confirmation not observed", map[string]any{
				"attempt_id": a.outcome.AttemptID,
				"tx_hash":    hash.Hex(),
				"error":      err,
			})
			return
		}
		a.fail(types.NewError(types.ErrSubmission, "failed to confirm transaction", err))
		return
	}

	a.outcome.Receipt = receipt
	if !receipt.Succeeded() {
		a.fail(types.NewError(types.ErrSubmission,
			fmt.Sprintf("transaction %s reverted in block %d", hash.Hex(), receipt.BlockNumber), nil))
		return
	}

	a.transition(types.StateConfirmed, "Purchase complete! "+hash.Hex())
}

// validateFulfillment checks the payload is usable for listing price.
func (e *Executor) validateFulfillment(payload *types.FulfillmentPayload, price *big.Int) (*types.FulfillmentTransaction, *big.Int, common.Address, *types.Error) {
	if payload == nil || payload.Transaction == nil {
		return nil, nil, common.Address{}, types.NewError(types.ErrFulfillment, "fulfillment response carries no transaction", nil)
	}
	tx := payload.Transaction

	to, err := utils.ValidateAddress(tx.To)
	if err != nil {
		return nil, nil, common.Address{}, types.NewError(types.ErrFulfillment, "invalid fulfillment target", err)
	}

	value, ok := tx.ValueWei()
	if !ok || value.Sign() < 0 {
		return nil, nil, common.Address{}, types.NewError(types.ErrFulfillment,
			fmt.Sprintf("invalid fulfillment value %q", tx.Value), nil)
	}
	if value.Cmp(price) > 0 {
		return nil, nil, common.Address{}, types.NewError(types.ErrFulfillment,
			fmt.Sprintf("fulfillment value %s exceeds listed price %s", value, price), nil)
	}

	return tx, value, to, nil
}

func (a *attempt) transition(to types.PurchaseState, status string) {
	e := a.exec
	from := a.state
	now := time.Now()

	e.metrics.ObserveLatency(metrics.PurchaseLatency, now.Sub(a.stageStart), map[string]string{
		"network": e.chain.Slug,
		"stage":   from.String(),
	})
	e.metrics.IncCounter(metrics.StateTransition, map[string]string{
		"network": e.chain.Slug,
		"value":   to.String(),
	})

	a.state = to
	a.outcome.State = to
	a.stageStart = now

	fields := map[string]any{
		"attempt_id": a.outcome.AttemptID,
		"from":       from.String(),
		"state":      to.String(),
		"chain":      e.chain.Name,
	}
	if a.outcome.TxHash != "" {
		fields["tx_hash"] = a.outcome.TxHash
	}
	if a.outcome.Err != nil {
		fields["error"] = a.outcome.Err
		e.logger.Error("purchase failed", fields)
	} else {
		e.logger.Info("purchase transition", fields)
	}

	e.notify(Event{
		AttemptID: a.outcome.AttemptID,
		State:     to,
		Status:    status,
		TxHash:    a.outcome.TxHash,
		Err:       a.outcome.Err,
		At:        now,
	})
}

func (a *attempt) fail(err error) {
	te, ok := types.AsError(err)
	if !ok {
		te = types.NewError(types.ErrSubmission, err.Error(), err)
	}
	if te.TxHash == "" && a.outcome.TxHash != "" {
		te.TxHash = a.outcome.TxHash
	}
	a.outcome.Err = te
	a.transition(types.StateFailed, te.UserMessage())
}

func (e *Executor) notify(ev Event) {
	e.mu.RLock()
	observers := make([]Observer, len(e.observers))
	copy(observers, e.observers)
	e.mu.RUnlock()

	for _, o := range observers {
		o(ev)
	}
}
