package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ValidateAmount checks if an amount string is a valid non-negative decimal
func ValidateAmount(amount string) (*decimal.Decimal, error) {
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}

	if dec.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	return &dec, nil
}

// ValidateBigInt checks if a string is a valid base 10 integer
func ValidateBigInt(value string) (*big.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("value cannot be empty")
	}

	bigInt := new(big.Int)
	_, success := bigInt.SetString(value, 10)
	if !success {
		return nil, fmt.Errorf("invalid big integer format")
	}

	return bigInt, nil
}

// ValidateAddress parses a 0x prefixed EVM address.
func ValidateAddress(address string) (common.Address, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return common.Address{}, fmt.Errorf("address cannot be empty")
	}
	if !strings.HasPrefix(address, "0x") && !strings.HasPrefix(address, "0X") {
		return common.Address{}, fmt.Errorf("address must be 0x prefixed: %s", address)
	}
	if !common.IsHexAddress(address) {
		return common.Address{}, fmt.Errorf("invalid address: %s", address)
	}
	return common.HexToAddress(address), nil
}

// ValidateTokenID checks a non-negative decimal token identifier.
func ValidateTokenID(id string) (string, error) {
	id = strings.TrimSpace(id)
	v, err := ValidateBigInt(id)
	if err != nil {
		return "", fmt.Errorf("invalid token id %q: %w", id, err)
	}
	if v.Sign() < 0 {
		return "", fmt.Errorf("token id cannot be negative")
	}
	return v.String(), nil
}

// ParseAmountWithDecimals parses a decimal amount string and converts to big.Int with specified decimals
func ParseAmountWithDecimals(amount string, decimals int) (*big.Int, error) {
	dec, err := ValidateAmount(amount)
	if err != nil {
		return nil, err
	}

	scaled := dec.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimals", amount, decimals)
	}

	return scaled.BigInt(), nil
}

// FormatAmountFromBigInt formats a big.Int amount to decimal string with specified decimals
func FormatAmountFromBigInt(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	dec := decimal.NewFromBigInt(amount, -int32(decimals))
	return dec.String()
}

// FormatAmountFixed formats amount with exactly places fractional digits.
func FormatAmountFixed(amount *big.Int, decimals int, places int32) string {
	if amount == nil {
		amount = new(big.Int)
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).StringFixed(places)
}
