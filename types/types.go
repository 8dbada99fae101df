package types

import (
	"encoding/json"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PurchaseState is a step of the purchase state machine.
type PurchaseState string

const (
	StateIdle                 PurchaseState = "idle"
	StateCheckingBalance      PurchaseState = "checking_balance"
	StatePreparingFulfillment PurchaseState = "preparing_fulfillment"
	StateAwaitingSignature    PurchaseState = "awaiting_signature"
	StateSubmitted            PurchaseState = "submitted"
	StateConfirmed            PurchaseState = "confirmed"
	StateFailed               PurchaseState = "failed"
)

// Terminal reports whether no further transition can follow s.
func (s PurchaseState) Terminal() bool {
	return s == StateConfirmed || s == StateFailed
}

func (s PurchaseState) String() string {
	return string(s)
}

// AssetRecord is a snapshot of a collectible as returned by the marketplace.
type AssetRecord struct {
	Collection string `json:"collection"`
	Contract   string `json:"contract"`
	TokenID    string `json:"identifier"`
	Name       string `json:"name,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
}

// DisplayName falls back to "#<token id>" for unnamed assets.
func (a *AssetRecord) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return "#" + a.TokenID
}

// Price is a listing price in the smallest unit of Currency.
type Price struct {
	Currency string
	Decimals uint8
	Value    *big.Int
}

// Listing is the best active sell order for a single token.
type Listing struct {
	OrderHash       string
	ProtocolAddress common.Address
	Chain           string
	Price           Price
	Collection      string
	TokenID         string
}

// Matches reports whether the listing belongs to the asset.
func (l *Listing) Matches(asset *AssetRecord) bool {
	if l == nil || asset == nil {
		return false
	}
	return l.Collection == asset.Collection && l.TokenID == asset.TokenID
}

// PriceWei returns the listing value, zero when absent.
func (l *Listing) PriceWei() *big.Int {
	if l == nil || l.Price.Value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(l.Price.Value)
}

// FulfillmentTransaction is the call the marketplace expects the buyer to send.
type FulfillmentTransaction struct {
	Function string `json:"function"`
	Chain    int64  `json:"chain"`
	To       string `json:"to"`

	// Native value in wei, decimal string.
	Value string `json:"value"`

	// Structured call arguments keyed by parameter name.
	InputData json.RawMessage `json:"input_data"`
}

// ValueWei parses the transaction value; empty means zero.
func (t *FulfillmentTransaction) ValueWei() (*big.Int, bool) {
	v := strings.TrimSpace(t.Value)
	if v == "" {
		return new(big.Int), true
	}
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		return new(big.Int).SetString(v[2:], 16)
	}
	return new(big.Int).SetString(v, 10)
}

// FulfillmentPayload is single use: it belongs to one purchase attempt.
type FulfillmentPayload struct {
	Transaction *FulfillmentTransaction `json:"transaction"`
}

// Receipt is the mined result of a submitted transaction.
type Receipt struct {
	TxHash      common.Hash `json:"txHash"`
	BlockNumber uint64      `json:"blockNumber"`
	Status      uint64      `json:"status"`
	GasUsed     uint64      `json:"gasUsed"`
}

// Succeeded reports a status 1 receipt.
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == 1
}

// Outcome is the terminal result of one purchase attempt.
type Outcome struct {
	AttemptID string        `json:"attemptId"`
	State     PurchaseState `json:"state"`
	TxHash    string        `json:"txHash,omitempty"`
	Receipt   *Receipt      `json:"receipt,omitempty"`
	Err       *Error        `json:"error,omitempty"`
	Started   time.Time     `json:"started"`
	Finished  time.Time     `json:"finished"`
}

// Success is true for a submitted or confirmed attempt.
func (o *Outcome) Success() bool {
	return o != nil && o.Err == nil && (o.State == StateSubmitted || o.State == StateConfirmed)
}

// Submitted reports whether the attempt got a transaction onto the network,
// whatever happened afterwards.
func (o *Outcome) Submitted() bool {
	return o != nil && o.TxHash != ""
}
