package types

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Error codes
const (
	ErrProviderMissing        = "PROVIDER_MISSING"
	ErrNetworkSwitch          = "NETWORK_SWITCH_ERROR"
	ErrAPI                    = "API_ERROR"
	ErrNotFound               = "NOT_FOUND"
	ErrMissingTransactionData = "MISSING_TRANSACTION_DATA"
	ErrEncoding               = "ENCODING_ERROR"
	ErrInsufficientFunds      = "INSUFFICIENT_FUNDS"
	ErrFulfillment            = "FULFILLMENT_ERROR"
	ErrSubmission             = "SUBMISSION_ERROR"
	ErrNoListing              = "NO_LISTING"
	ErrInvalidInput           = "INVALID_INPUT"
	ErrPurchaseInProgress     = "PURCHASE_IN_PROGRESS"
	ErrBalanceUnavailable     = "BALANCE_UNAVAILABLE"
	ErrConfig                 = "CONFIG_ERROR"
)

// Funds carries the amounts behind an insufficient funds failure. Have and
// Need are nil when the shortfall was reported by the chain rather than
// measured before submission.
type Funds struct {
	Have     *big.Int `json:"have,omitempty"`
	Need     *big.Int `json:"need,omitempty"`
	Symbol   string   `json:"symbol"`
	Decimals uint8    `json:"decimals"`
}

func (f *Funds) format(v *big.Int) string {
	return decimal.NewFromBigInt(v, -int32(f.Decimals)).StringFixed(4)
}

// Measured reports whether both amounts are known.
func (f *Funds) Measured() bool {
	return f != nil && f.Have != nil && f.Need != nil
}

func (f *Funds) String() string {
	if !f.Measured() {
		return ""
	}
	return fmt.Sprintf("have %s %s, need %s %s", f.format(f.Have), f.Symbol, f.format(f.Need), f.Symbol)
}

// Error is the single error type surfaced by the purchase workflow.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`

	// HTTP status for API_ERROR.
	Status int `json:"status,omitempty"`

	// Set for INSUFFICIENT_FUNDS.
	Funds *Funds `json:"funds,omitempty"`

	// Set once a transaction reached the network.
	TxHash string `json:"txHash,omitempty"`

	Cause error `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// UserMessage is the text shown to the buyer. Both pre-flight and on-chain
// insufficient funds failures share the same headline.
func (e *Error) UserMessage() string {
	switch e.Code {
	case ErrInsufficientFunds:
		symbol := "native"
		if e.Funds != nil && e.Funds.Symbol != "" {
			symbol = e.Funds.Symbol
		}
		msg := fmt.Sprintf("Insufficient %s balance for this purchase", symbol)
		if e.Funds.Measured() {
			msg += " (" + e.Funds.String() + " incl. gas)"
		}
		return msg
	case ErrNoListing:
		return "No listing available"
	case ErrProviderMissing:
		return "No wallet provider available"
	default:
		if e.Cause != nil {
			return fmt.Sprintf("Failed: %s: %v", e.Message, e.Cause)
		}
		return "Failed: " + e.Message
	}
}

// NewError creates an Error with an optional cause.
func NewError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAPIError records a non-2xx marketplace response.
func NewAPIError(status int, message string) *Error {
	return &Error{
		Code:    ErrAPI,
		Message: message,
		Status:  status,
	}
}

// NewInsufficientFunds builds an INSUFFICIENT_FUNDS error. have and need may
// be nil.
func NewInsufficientFunds(have, need *big.Int, currency NativeCurrency, cause error) *Error {
	return &Error{
		Code:    ErrInsufficientFunds,
		Message: "insufficient funds",
		Funds: &Funds{
			Have:     have,
			Need:     need,
			Symbol:   currency.Symbol,
			Decimals: currency.Decimals,
		},
		Cause: cause,
	}
}

// AsError extracts the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}
