package seaport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Uint is an unsigned integer that unmarshals from a JSON number, a decimal
// string or a 0x prefixed hex string, and marshals as a decimal string.
type Uint struct {
	v big.Int
}

func NewUint(v uint64) *Uint {
	u := new(Uint)
	u.v.SetUint64(v)
	return u
}

func NewUintFromBig(v *big.Int) *Uint {
	u := new(Uint)
	if v != nil {
		u.v.Set(v)
	}
	return u
}

// Big returns a copy of the value.
func (u *Uint) Big() *big.Int {
	return new(big.Int).Set(&u.v)
}

func (u *Uint) String() string {
	return u.v.String()
}

func (u *Uint) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("unsigned integer cannot be null")
	}

	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("empty unsigned integer")
	}

	var ok bool
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		_, ok = u.v.SetString(raw[2:], 16)
	} else {
		_, ok = u.v.SetString(raw, 10)
	}
	if !ok {
		return fmt.Errorf("invalid unsigned integer %q", raw)
	}
	if u.v.Sign() < 0 {
		return fmt.Errorf("negative value %q for unsigned integer", raw)
	}
	return nil
}

func (u *Uint) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.v.String())
}

// OfferItem is an item the offerer gives up.
type OfferItem struct {
	ItemType             *Uint           `json:"itemType" validate:"required"`
	Token                *common.Address `json:"token" validate:"required"`
	IdentifierOrCriteria *Uint           `json:"identifierOrCriteria" validate:"required"`
	StartAmount          *Uint           `json:"startAmount" validate:"required"`
	EndAmount            *Uint           `json:"endAmount" validate:"required"`
}

// ConsiderationItem is an item the offerer expects in return.
type ConsiderationItem struct {
	ItemType             *Uint           `json:"itemType" validate:"required"`
	Token                *common.Address `json:"token" validate:"required"`
	IdentifierOrCriteria *Uint           `json:"identifierOrCriteria" validate:"required"`
	StartAmount          *Uint           `json:"startAmount" validate:"required"`
	EndAmount            *Uint           `json:"endAmount" validate:"required"`
	Recipient            *common.Address `json:"recipient" validate:"required"`
}

type OrderParameters struct {
	Offerer                         *common.Address     `json:"offerer" validate:"required"`
	Zone                            *common.Address     `json:"zone" validate:"required"`
	Offer                           []OfferItem         `json:"offer" validate:"required,dive"`
	Consideration                   []ConsiderationItem `json:"consideration" validate:"required,dive"`
	OrderType                       *Uint               `json:"orderType" validate:"required"`
	StartTime                       *Uint               `json:"startTime" validate:"required"`
	EndTime                         *Uint               `json:"endTime" validate:"required"`
	ZoneHash                        *common.Hash        `json:"zoneHash" validate:"required"`
	Salt                            *Uint               `json:"salt" validate:"required"`
	ConduitKey                      *common.Hash        `json:"conduitKey" validate:"required"`
	TotalOriginalConsiderationItems *Uint               `json:"totalOriginalConsiderationItems" validate:"required"`
}

// AdvancedOrder is a signed order with a fill fraction.
type AdvancedOrder struct {
	Parameters  *OrderParameters `json:"parameters" validate:"required"`
	Numerator   *Uint            `json:"numerator" validate:"required"`
	Denominator *Uint            `json:"denominator" validate:"required"`
	Signature   *hexutil.Bytes   `json:"signature" validate:"required"`
	ExtraData   *hexutil.Bytes   `json:"extraData" validate:"required"`
}

type CriteriaResolver struct {
	OrderIndex    *Uint         `json:"orderIndex" validate:"required"`
	Side          *Uint         `json:"side" validate:"required"`
	Index         *Uint         `json:"index" validate:"required"`
	Identifier    *Uint         `json:"identifier" validate:"required"`
	CriteriaProof []common.Hash `json:"criteriaProof" validate:"required"`
}

// FulfillAdvancedOrderInput holds the arguments of fulfillAdvancedOrder as
// returned in a marketplace fulfillment payload.
type FulfillAdvancedOrderInput struct {
	AdvancedOrder       *AdvancedOrder     `json:"advancedOrder" validate:"required"`
	CriteriaResolvers   []CriteriaResolver `json:"criteriaResolvers" validate:"required,dive"`
	FulfillerConduitKey *common.Hash       `json:"fulfillerConduitKey" validate:"required"`
	Recipient           *common.Address    `json:"recipient" validate:"required"`
}
