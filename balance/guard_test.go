package balance

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/nftbuy/types"
)

type staticReader struct {
	balance *big.Int
	err     error
}

func (r staticReader) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return r.balance, r.err
}

func wei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic(s)
	}
	return v
}

func TestGuard_CheckSufficientFunds(t *testing.T) {
	guard, err := NewGuard(types.ApeChain.NativeCurrency, "0.1")
	require.NoError(t, err)

	price := wei("1000000000000000000")
	need := wei("1100000000000000000")

	tests := []struct {
		name    string
		balance *big.Int
		ok      bool
	}{
		{"well funded", wei("5000000000000000000"), true},
		{"exactly price plus buffer", need, true},
		{"one wei short", new(big.Int).Sub(need, big.NewInt(1)), false},
		{"only the price", price, false},
		{"empty", big.NewInt(0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check, err := guard.CheckSufficientFunds(context.Background(), staticReader{balance: tt.balance}, common.Address{}, price)
			require.NoError(t, err)
			assert.Equal(t, tt.ok, check.OK)
			assert.Equal(t, need, check.Need)
			assert.Equal(t, tt.balance, check.Have)
		})
	}
}

func TestGuard_ReadFailure(t *testing.T) {
	guard, err := NewGuard(types.ApeChain.NativeCurrency, "0.1")
	require.NoError(t, err)

	cause := errors.New("rpc down")
	_, err = guard.CheckSufficientFunds(context.Background(), staticReader{err: cause}, common.Address{}, big.NewInt(1))
	assert.True(t, types.IsCode(err, types.ErrBalanceUnavailable))
	assert.ErrorIs(t, err, cause)
}

func TestGuard_Err(t *testing.T) {
	guard, err := NewGuard(types.ApeChain.NativeCurrency, "0.1")
	require.NoError(t, err)

	check := guard.Evaluate(wei("500000000000000000"), wei("1000000000000000000"))
	require.False(t, check.OK)
	assert.Equal(t, wei("600000000000000000"), check.Shortfall())

	e, ok := types.AsError(guard.Err(check))
	require.True(t, ok)
	assert.Equal(t, types.ErrInsufficientFunds, e.Code)
	assert.Equal(t, "Insufficient APE balance for this purchase (have 0.5000 APE, need 1.1000 APE incl. gas)", e.UserMessage())

	assert.NoError(t, guard.Err(guard.Evaluate(wei("2000000000000000000"), wei("1"))))
}

func TestNewGuard_InvalidBuffer(t *testing.T) {
	_, err := NewGuard(types.ApeChain.NativeCurrency, "lots")
	assert.True(t, types.IsCode(err, types.ErrConfig))

	guard, err := NewGuard(types.ApeChain.NativeCurrency, "0")
	require.NoError(t, err)
	assert.Equal(t, int64(0), guard.GasBuffer().Int64())
}
