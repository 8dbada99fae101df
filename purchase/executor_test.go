package purchase

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vitwit/nftbuy/balance"
	"github.com/vitwit/nftbuy/logger"
	"github.com/vitwit/nftbuy/seaport"
	"github.com/vitwit/nftbuy/seaport/seaporttest"
	"github.com/vitwit/nftbuy/types"
	"github.com/vitwit/nftbuy/utils"
	"github.com/vitwit/nftbuy/wallet"
	"github.com/vitwit/nftbuy/wallet/wallettest"
)

var buyer = common.HexToAddress("0x3333333333333333333333333333333333333333")

func ape(t *testing.T, amount string) *big.Int {
	t.Helper()
	v, err := utils.ParseAmountWithDecimals(amount, 18)
	require.NoError(t, err)
	return v
}

type fakeMarket struct {
	mu        sync.Mutex
	payload   *types.FulfillmentPayload
	err       error
	calls     int
	fulfiller common.Address
}

func (m *fakeMarket) RequestFulfillmentData(ctx context.Context, listing *types.Listing, fulfiller common.Address) (*types.FulfillmentPayload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.fulfiller = fulfiller
	return m.payload, m.err
}

func (m *fakeMarket) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func fulfillment(value string, input json.RawMessage) *types.FulfillmentPayload {
	return &types.FulfillmentPayload{
		Transaction: &types.FulfillmentTransaction{
			Function:  "fulfillAdvancedOrder",
			Chain:     33139,
			To:        seaporttest.Seaport,
			Value:     value,
			InputData: input,
		},
	}
}

func selection(t *testing.T, p wallet.Provider) Selection {
	return Selection{
		Session: &wallet.Session{Address: buyer, Provider: p, Chain: types.ApeChain},
		Asset: &types.AssetRecord{
			Collection: "ape-club",
			Contract:   "0x2222222222222222222222222222222222222222",
			TokenID:    "1234",
		},
		Listing: &types.Listing{
			OrderHash:       "0xorder",
			ProtocolAddress: common.HexToAddress(seaporttest.Seaport),
			Chain:           "ape_chain",
			Price:           types.Price{Currency: "APE", Decimals: 18, Value: ape(t, "1")},
			Collection:      "ape-club",
			TokenID:         "1234",
		},
	}
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) observe(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) states() []types.PurchaseState {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.PurchaseState
	for _, ev := range r.events {
		out = append(out, ev.State)
	}
	return out
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func newExecutor(t *testing.T, market Marketplace, opts ...Option) (*Executor, *recorder) {
	t.Helper()
	guard, err := balance.NewGuard(types.ApeChain.NativeCurrency, "0.1")
	require.NoError(t, err)

	rec := &recorder{}
	opts = append([]Option{
		WithObserver(rec.observe),
		WithIDGenerator(func() string { return "attempt-1" }),
	}, opts...)
	return NewExecutor(market, guard, types.ApeChain, types.DefaultGasLimit, opts...), rec
}

func TestExecuteConfirmed(t *testing.T) {
	provider := wallettest.NewProvider(buyer, ape(t, "2"), types.ApeChain)
	market := &fakeMarket{payload: fulfillment(seaporttest.PriceWei, seaporttest.Input)}
	exec, rec := newExecutor(t, market)

	out := exec.Execute(context.Background(), selection(t, provider))

	require.Nil(t, out.Err)
	assert.Equal(t, types.StateConfirmed, out.State)
	assert.True(t, out.Success())
	assert.Equal(t, "attempt-1", out.AttemptID)
	require.NotNil(t, out.Receipt)
	assert.Equal(t, out.TxHash, out.Receipt.TxHash.Hex())

	assert.Equal(t, []types.PurchaseState{
		types.StateCheckingBalance,
		types.StatePreparingFulfillment,
		types.StateAwaitingSignature,
		types.StateSubmitted,
		types.StateConfirmed,
	}, rec.states())
	assert.Equal(t, "Purchase complete! "+out.TxHash, rec.last().Status)
	assert.Equal(t, buyer, market.fulfiller)

	sent, ok := provider.LastSent()
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress(seaporttest.Seaport), sent.To)
	assert.Equal(t, 0, sent.Value.Cmp(ape(t, "1")))
	assert.Equal(t, types.DefaultGasLimit, sent.GasLimit)
	assert.Equal(t, seaport.FulfillAdvancedOrderSelector(), sent.Data[:4])

	decoded, err := seaport.DecodeCalldata(sent.Data)
	require.NoError(t, err)
	assert.Equal(t, buyer, *decoded.Recipient)
}

func TestExecuteInsufficientFundsSkipsMarketplace(t *testing.T) {
	provider := wallettest.NewProvider(buyer, ape(t, "1.05"), types.ApeChain)
	market := &fakeMarket{payload: fulfillment(seaporttest.PriceWei, seaporttest.Input)}
	exec, rec := newExecutor(t, market)

	out := exec.Execute(context.Background(), selection(t, provider))

	require.NotNil(t, out.Err)
	assert.Equal(t, types.StateFailed, out.State)
	assert.Equal(t, types.ErrInsufficientFunds, out.Err.Code)
	assert.Equal(t, 0, market.Calls())
	assert.Equal(t, 0, provider.Calls("SendTransaction"))

	require.NotNil(t, out.Err.Funds)
	assert.Equal(t, 0, out.Err.Funds.Have.Cmp(ape(t, "1.05")))
	assert.Equal(t, 0, out.Err.Funds.Need.Cmp(ape(t, "1.1")))
	assert.Contains(t, out.Err.UserMessage(), "Insufficient APE balance for this purchase")
	assert.Equal(t, []types.PurchaseState{types.StateCheckingBalance, types.StateFailed}, rec.states())
}

func TestExecuteExactBalancePasses(t *testing.T) {
	provider := wallettest.NewProvider(buyer, ape(t, "1.1"), types.ApeChain)
	market := &fakeMarket{payload: fulfillment(seaporttest.PriceWei, seaporttest.Input)}
	exec, _ := newExecutor(t, market)

	out := exec.Execute(context.Background(), selection(t, provider))

	require.Nil(t, out.Err)
	assert.Equal(t, types.StateConfirmed, out.State)
	assert.Equal(t, 1, market.Calls())
}

func TestExecuteBalanceUnavailable(t *testing.T) {
	provider := wallettest.NewProvider(buyer, ape(t, "5"), types.ApeChain)
	provider.BalanceErr = errors.New("rpc unavailable")
	market := &fakeMarket{payload: fulfillment(seaporttest.PriceWei, seaporttest.Input)}
	exec, _ := newExecutor(t, market)

	out := exec.Execute(context.Background(), selection(t, provider))

	require.NotNil(t, out.Err)
	assert.Equal(t, types.ErrBalanceUnavailable, out.Err.Code)
	assert.EqualError(t, out.Err.Cause, "rpc unavailable")
	assert.Equal(t, 0, market.Calls())
}

func TestExecuteRequiresMatchingSelection(t *testing.T) {
	provider := wallettest.NewProvider(buyer, ape(t, "5"), types.ApeChain)
	market := &fakeMarket{payload: fulfillment(seaporttest.PriceWei, seaporttest.Input)}
	exec, rec := newExecutor(t, market)

	tests := []struct {
		name   string
		mutate func(s *Selection)
	}{
		{"no listing", func(s *Selection) { s.Listing = nil }},
		{"no asset", func(s *Selection) { s.Asset = nil }},
		{"no session", func(s *Selection) { s.Session = nil }},
		{"other token", func(s *Selection) { s.Listing.TokenID = "99" }},
		{"other collection", func(s *Selection) { s.Listing.Collection = "other" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := selection(t, provider)
			tt.mutate(&sel)

			out := exec.Execute(context.Background(), sel)
			require.NotNil(t, out.Err)
			assert.Equal(t, types.ErrNoListing, out.Err.Code)
			assert.Equal(t, types.StateFailed, out.State)
		})
	}

	assert.Equal(t, 0, provider.Calls("Balance"))
	assert.Equal(t, 0, market.Calls())
	assert.Equal(t, types.StateFailed, rec.last().State)
	assert.Equal(t, "No listing available", rec.last().Status)
}

func TestExecuteFulfillmentFailures(t *testing.T) {
	tests := []struct {
		name    string
		payload *types.FulfillmentPayload
		err     error
	}{
		{"marketplace error", nil, types.NewAPIError(500, "API error: 500")},
		{"missing transaction", &types.FulfillmentPayload{}, nil},
		{"value above price", fulfillment("1000000000000000001", seaporttest.Input), nil},
		{"malformed value", fulfillment("lots", seaporttest.Input), nil},
		{"bad target", func() *types.FulfillmentPayload {
			p := fulfillment(seaporttest.PriceWei, seaporttest.Input)
			p.Transaction.To = "seaport"
			return p
		}(), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := wallettest.NewProvider(buyer, ape(t, "5"), types.ApeChain)
			exec, _ := newExecutor(t, &fakeMarket{payload: tt.payload, err: tt.err})

			out := exec.Execute(context.Background(), selection(t, provider))

			require.NotNil(t, out.Err)
			assert.Equal(t, types.ErrFulfillment, out.Err.Code)
			assert.Equal(t, 0, provider.Calls("SendTransaction"))
			if tt.err != nil {
				assert.Equal(t, types.ErrAPI, types.CodeOf(out.Err.Cause))
			}
		})
	}
}

func TestExecuteEncodingErrorNeverSigns(t *testing.T) {
	provider := wallettest.NewProvider(buyer, ape(t, "5"), types.ApeChain)
	market := &fakeMarket{payload: fulfillment(seaporttest.PriceWei, json.RawMessage(`{"recipient":"0x3333333333333333333333333333333333333333"}`))}
	exec, rec := newExecutor(t, market)

	out := exec.Execute(context.Background(), selection(t, provider))

	require.NotNil(t, out.Err)
	assert.Equal(t, types.ErrEncoding, out.Err.Code)
	assert.Equal(t, 0, provider.Calls("SendTransaction"))
	assert.Equal(t, []types.PurchaseState{
		types.StateCheckingBalance,
		types.StatePreparingFulfillment,
		types.StateFailed,
	}, rec.states())
	for _, ev := range rec.all() {
		assert.NotEqual(t, "Confirm in wallet...", ev.Status)
	}
}

func TestExecuteSubmissionErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{
			name: "seaport insufficient native tokens",
			err:  &wallet.ProviderError{Code: wallet.CodeInternal, Message: "execution reverted", Data: "0x8ffff980"},
			code: types.ErrInsufficientFunds,
		},
		{
			name: "seaport invalid msg value",
			err: &wallet.ProviderError{
				Code:    wallet.CodeInternal,
				Message: "execution reverted",
				Data:    "0xa61be9f00000000000000000000000000000000000000000000000000de0b6b3a7640000",
			},
			code: types.ErrInsufficientFunds,
		},
		{
			name: "node insufficient funds",
			err:  errors.New("insufficient funds for gas * price + value: balance 0, tx cost 1"),
			code: types.ErrInsufficientFunds,
		},
		{
			name: "revert name in text",
			err:  errors.New("execution reverted: InsufficientNativeTokensSupplied()"),
			code: types.ErrInsufficientFunds,
		},
		{
			name: "user rejected",
			err:  &wallet.ProviderError{Code: wallet.CodeUserRejected, Message: "User rejected the request."},
			code: types.ErrSubmission,
		},
		{
			name: "other failure",
			err:  errors.New("nonce too low"),
			code: types.ErrSubmission,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := wallettest.NewProvider(buyer, ape(t, "5"), types.ApeChain)
			provider.SendErr = tt.err
			exec, _ := newExecutor(t, &fakeMarket{payload: fulfillment(seaporttest.PriceWei, seaporttest.Input)})

			out := exec.Execute(context.Background(), selection(t, provider))

			require.NotNil(t, out.Err)
			assert.Equal(t, tt.code, out.Err.Code)
			assert.Equal(t, types.StateFailed, out.State)
			assert.Empty(t, out.TxHash)
			assert.ErrorIs(t, out.Err, tt.err)
			assert.Equal(t, 0, provider.Calls("AwaitConfirmation"))
		})
	}
}

func TestExecuteRevertedReceipt(t *testing.T) {
	provider := wallettest.NewProvider(buyer, ape(t, "5"), types.ApeChain)
	status := uint64(0)
	provider.ReceiptStatus = &status
	exec, _ := newExecutor(t, &fakeMarket{payload: fulfillment(seaporttest.PriceWei, seaporttest.Input)})

	out := exec.Execute(context.Background(), selection(t, provider))

	require.NotNil(t, out.Err)
	assert.Equal(t, types.ErrSubmission, out.Err.Code)
	assert.Equal(t, types.StateFailed, out.State)
	assert.NotEmpty(t, out.TxHash)
	assert.Equal(t, out.TxHash, out.Err.TxHash)
	assert.True(t, out.Submitted())
}

func TestExecuteConfirmationError(t *testing.T) {
	provider := wallettest.NewProvider(buyer, ape(t, "5"), types.ApeChain)
	provider.ConfirmErr = errors.New("receipt lookup failed")
	exec, _ := newExecutor(t, &fakeMarket{payload: fulfillment(seaporttest.PriceWei, seaporttest.Input)})

	out := exec.Execute(context.Background(), selection(t, provider))

	require.NotNil(t, out.Err)
	assert.Equal(t, types.ErrSubmission, out.Err.Code)
	assert.Equal(t, out.TxHash, out.Err.TxHash)
}

func TestExecuteContextEndsWhileConfirming(t *testing.T) {
	provider := wallettest.NewProvider(buyer, ape(t, "5"), types.ApeChain)
	provider.Hold = make(chan struct{})
	exec, rec := newExecutor(t, &fakeMarket{payload: fulfillment(seaporttest.PriceWei, seaporttest.Input)})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	out := exec.Execute(ctx, selection(t, provider))

	assert.Nil(t, out.Err)
	assert.Equal(t, types.StateSubmitted, out.State)
	assert.NotEmpty(t, out.TxHash)
	assert.True(t, out.Success())
	assert.Equal(t, "TX sent! "+out.TxHash, rec.last().Status)
}

func TestExecuteRejectsConcurrentAttempt(t *testing.T) {
	provider := wallettest.NewProvider(buyer, ape(t, "5"), types.ApeChain)
	hold := make(chan struct{})
	started := make(chan struct{})
	provider.Hold = hold
	provider.SendStarted = started
	exec, _ := newExecutor(t, &fakeMarket{payload: fulfillment(seaporttest.PriceWei, seaporttest.Input)})

	sel := selection(t, provider)
	done := make(chan *types.Outcome, 1)
	go func() {
		done <- exec.Execute(context.Background(), sel)
	}()

	<-started
	assert.True(t, exec.InFlight())

	second := exec.Execute(context.Background(), selection(t, provider))
	require.NotNil(t, second.Err)
	assert.Equal(t, types.ErrPurchaseInProgress, second.Err.Code)
	assert.Empty(t, second.AttemptID)

	close(hold)
	first := <-done
	assert.Equal(t, types.StateConfirmed, first.State)
	assert.Equal(t, 1, provider.Calls("SendTransaction"))
	assert.False(t, exec.InFlight())
}

func TestExecuteLogsAttemptID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	provider := wallettest.NewProvider(buyer, ape(t, "0.5"), types.ApeChain)
	exec, _ := newExecutor(t, &fakeMarket{}, WithLogger(logger.NewZapLoggerFromCore(core)))

	exec.Execute(context.Background(), selection(t, provider))

	failed := logs.FilterMessage("purchase failed").All()
	require.Len(t, failed, 1)
	fields := failed[0].ContextMap()
	assert.Equal(t, "attempt-1", fields["attempt_id"])
	assert.Equal(t, "failed", fields["state"])
	assert.Equal(t, "checking_balance", fields["from"])
}

func TestSubscribeReceivesLaterAttempts(t *testing.T) {
	provider := wallettest.NewProvider(buyer, ape(t, "0.5"), types.ApeChain)
	exec, _ := newExecutor(t, &fakeMarket{})

	var got []Event
	exec.Subscribe(func(ev Event) { got = append(got, ev) })
	exec.Execute(context.Background(), selection(t, provider))

	require.Len(t, got, 2)
	assert.Equal(t, "Checking balance...", got[0].Status)
	assert.Equal(t, types.ErrInsufficientFunds, got[1].Err.Code)
}
