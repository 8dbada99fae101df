package purchase

import (
	"bytes"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/vitwit/nftbuy/seaport"
	"github.com/vitwit/nftbuy/types"
	"github.com/vitwit/nftbuy/wallet"
)

// insufficientFundsErrors are Seaport reverts raised when the native value
// sent does not cover the order.
var insufficientFundsErrors = []string{
	seaport.ErrInsufficientNativeTokensSupplied,
	seaport.ErrInvalidMsgValue,
}

// degradedFragments are matched against error text when no revert data is
// available. Best effort only.
var degradedFragments = []string{
	"insufficientnativetokenssupplied",
	"8ffff980",
	"a61be9f0",
	"insufficient funds",
}

// revertData extracts revert bytes carried by an RPC or provider error.
func revertData(err error) []byte {
	var de rpc.DataError
	if !errors.As(err, &de) {
		return nil
	}

	switch data := de.ErrorData().(type) {
	case string:
		b, err := hexutil.Decode(data)
		if err != nil {
			return nil
		}
		return b
	case []byte:
		return data
	case hexutil.Bytes:
		return data
	default:
		return nil
	}
}

// matchInsufficientFunds reports whether err means the account could not
// cover value plus gas, and how it was recognised.
func matchInsufficientFunds(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	if data := revertData(err); len(data) >= 4 {
		for _, name := range insufficientFundsErrors {
			if bytes.Equal(data[:4], seaport.ErrorSelector(name)) {
				return "revert:" + name, true
			}
		}
	}

	if errors.Is(err, core.ErrInsufficientFunds) || strings.Contains(err.Error(), core.ErrInsufficientFunds.Error()) {
		return "node:insufficient_funds", true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range degradedFragments {
		if strings.Contains(msg, fragment) {
			return "text:" + fragment, true
		}
	}

	return "", false
}

// classifySubmission maps a sign or send failure to the purchase error
// taxonomy.
func classifySubmission(err error, currency types.NativeCurrency) *types.Error {
	if _, ok := matchInsufficientFunds(err); ok {
		return types.NewInsufficientFunds(nil, nil, currency, err)
	}

	msg := "transaction submission failed"
	if wallet.ProviderCode(err) == wallet.CodeUserRejected {
		msg = "transaction rejected in wallet"
	}
	return types.NewError(types.ErrSubmission, msg, err)
}
