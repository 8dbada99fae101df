// Package balance checks that an account can pay for a listing before any
// purchase work starts.
package balance

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vitwit/nftbuy/types"
	"github.com/vitwit/nftbuy/utils"
)

// Reader reads native balances. wallet.Provider satisfies it.
type Reader interface {
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
}

// Check is the result of a funds check.
type Check struct {
	OK   bool
	Have *big.Int
	Need *big.Int
}

// Shortfall returns need - have, zero when the check passed.
func (c *Check) Shortfall() *big.Int {
	if c.OK {
		return new(big.Int)
	}
	return new(big.Int).Sub(c.Need, c.Have)
}

// Guard validates balance >= price + gas buffer.
type Guard struct {
	currency  types.NativeCurrency
	gasBuffer *big.Int
}

// NewGuard builds a guard reserving gasBuffer, a decimal amount of the
// native currency, e.g. "0.1".
func NewGuard(currency types.NativeCurrency, gasBuffer string) (*Guard, error) {
	buffer, err := utils.ParseAmountWithDecimals(gasBuffer, int(currency.Decimals))
	if err != nil {
		return nil, &types.Error{
			Code:    types.ErrConfig,
			Message: fmt.Sprintf("invalid gas buffer %q", gasBuffer),
			Cause:   err,
		}
	}

	return &Guard{
		currency:  currency,
		gasBuffer: buffer,
	}, nil
}

// GasBuffer returns the reserved amount in wei.
func (g *Guard) GasBuffer() *big.Int {
	return new(big.Int).Set(g.gasBuffer)
}

// Required returns price + gas buffer.
func (g *Guard) Required(price *big.Int) *big.Int {
	need := new(big.Int).Set(g.gasBuffer)
	if price != nil {
		need.Add(need, price)
	}
	return need
}

// Evaluate compares a known balance with price. Equality passes.
func (g *Guard) Evaluate(have, price *big.Int) *Check {
	if have == nil {
		have = new(big.Int)
	}
	need := g.Required(price)
	return &Check{
		OK:   have.Cmp(need) >= 0,
		Have: new(big.Int).Set(have),
		Need: need,
	}
}

// CheckSufficientFunds reads the balance of addr and evaluates it against
// price. Read failures are returned as errors, not as a failed check.
func (g *Guard) CheckSufficientFunds(ctx context.Context, reader Reader, addr common.Address, price *big.Int) (*Check, error) {
	have, err := reader.Balance(ctx, addr)
	if err != nil {
		return nil, &types.Error{
			Code:    types.ErrBalanceUnavailable,
			Message: fmt.Sprintf("failed to read balance of %s", addr.Hex()),
			Cause:   err,
		}
	}

	return g.Evaluate(have, price), nil
}

// Err converts a failed check into an INSUFFICIENT_FUNDS error.
func (g *Guard) Err(c *Check) error {
	if c == nil || c.OK {
		return nil
	}
	return types.NewInsufficientFunds(c.Have, c.Need, g.currency, nil)
}
