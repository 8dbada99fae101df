package seaport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/vitwit/nftbuy/types"
	"github.com/vitwit/nftbuy/utils"
)

var (
	maxUint8   = big.NewInt(0xff)
	maxUint120 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 120), big.NewInt(1))
	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// abi-side mirrors of the JSON types; field names follow the ABI component
// names so accounts/abi can pack and copy them.

type abiOfferItem struct {
	ItemType             uint8          `abi:"itemType"`
	Token                common.Address `abi:"token"`
	IdentifierOrCriteria *big.Int       `abi:"identifierOrCriteria"`
	StartAmount          *big.Int       `abi:"startAmount"`
	EndAmount            *big.Int       `abi:"endAmount"`
}

type abiConsiderationItem struct {
	ItemType             uint8          `abi:"itemType"`
	Token                common.Address `abi:"token"`
	IdentifierOrCriteria *big.Int       `abi:"identifierOrCriteria"`
	StartAmount          *big.Int       `abi:"startAmount"`
	EndAmount            *big.Int       `abi:"endAmount"`
	Recipient            common.Address `abi:"recipient"`
}

type abiOrderParameters struct {
	Offerer                         common.Address         `abi:"offerer"`
	Zone                            common.Address         `abi:"zone"`
	Offer                           []abiOfferItem         `abi:"offer"`
	Consideration                   []abiConsiderationItem `abi:"consideration"`
	OrderType                       uint8                  `abi:"orderType"`
	StartTime                       *big.Int               `abi:"startTime"`
	EndTime                         *big.Int               `abi:"endTime"`
	ZoneHash                        [32]byte               `abi:"zoneHash"`
	Salt                            *big.Int               `abi:"salt"`
	ConduitKey                      [32]byte               `abi:"conduitKey"`
	TotalOriginalConsiderationItems *big.Int               `abi:"totalOriginalConsiderationItems"`
}

type abiAdvancedOrder struct {
	Parameters  abiOrderParameters `abi:"parameters"`
	Numerator   *big.Int           `abi:"numerator"`
	Denominator *big.Int           `abi:"denominator"`
	Signature   []byte             `abi:"signature"`
	ExtraData   []byte             `abi:"extraData"`
}

type abiCriteriaResolver struct {
	OrderIndex    *big.Int   `abi:"orderIndex"`
	Side          uint8      `abi:"side"`
	Index         *big.Int   `abi:"index"`
	Identifier    *big.Int   `abi:"identifier"`
	CriteriaProof [][32]byte `abi:"criteriaProof"`
}

// abiCall receives unpacked arguments in DecodeCalldata.
type abiCall struct {
	AdvancedOrder       abiAdvancedOrder
	CriteriaResolvers   []abiCriteriaResolver
	FulfillerConduitKey [32]byte
	Recipient           common.Address
}

func encodingError(format string, args ...any) *types.Error {
	return &types.Error{
		Code:    types.ErrEncoding,
		Message: fmt.Sprintf(format, args...),
	}
}

// converter collects the first range error while translating JSON values.
type converter struct {
	err error
}

func (c *converter) uint(field string, u *Uint, max *big.Int) *big.Int {
	if c.err != nil {
		return nil
	}
	v := u.Big()
	if v.Cmp(max) > 0 {
		c.err = encodingError("%s out of range: %s", field, v)
		return nil
	}
	return v
}

func (c *converter) uint8(field string, u *Uint) uint8 {
	v := c.uint(field, u, maxUint8)
	if v == nil {
		return 0
	}
	return uint8(v.Uint64())
}

func (c *converter) uint256(field string, u *Uint) *big.Int {
	return c.uint(field, u, maxUint256)
}

func (c *converter) order(o *AdvancedOrder) abiAdvancedOrder {
	p := o.Parameters
	out := abiAdvancedOrder{
		Parameters: abiOrderParameters{
			Offerer:                         *p.Offerer,
			Zone:                            *p.Zone,
			Offer:                           make([]abiOfferItem, 0, len(p.Offer)),
			Consideration:                   make([]abiConsiderationItem, 0, len(p.Consideration)),
			OrderType:                       c.uint8("orderType", p.OrderType),
			StartTime:                       c.uint256("startTime", p.StartTime),
			EndTime:                         c.uint256("endTime", p.EndTime),
			ZoneHash:                        *p.ZoneHash,
			Salt:                            c.uint256("salt", p.Salt),
			ConduitKey:                      *p.ConduitKey,
			TotalOriginalConsiderationItems: c.uint256("totalOriginalConsiderationItems", p.TotalOriginalConsiderationItems),
		},
		Numerator:   c.uint("numerator", o.Numerator, maxUint120),
		Denominator: c.uint("denominator", o.Denominator, maxUint120),
		Signature:   []byte(*o.Signature),
		ExtraData:   []byte(*o.ExtraData),
	}

	for i, item := range p.Offer {
		out.Parameters.Offer = append(out.Parameters.Offer, abiOfferItem{
			ItemType:             c.uint8(fmt.Sprintf("offer[%d].itemType", i), item.ItemType),
			Token:                *item.Token,
			IdentifierOrCriteria: c.uint256(fmt.Sprintf("offer[%d].identifierOrCriteria", i), item.IdentifierOrCriteria),
			StartAmount:          c.uint256(fmt.Sprintf("offer[%d].startAmount", i), item.StartAmount),
			EndAmount:            c.uint256(fmt.Sprintf("offer[%d].endAmount", i), item.EndAmount),
		})
	}

	for i, item := range p.Consideration {
		out.Parameters.Consideration = append(out.Parameters.Consideration, abiConsiderationItem{
			ItemType:             c.uint8(fmt.Sprintf("consideration[%d].itemType", i), item.ItemType),
			Token:                *item.Token,
			IdentifierOrCriteria: c.uint256(fmt.Sprintf("consideration[%d].identifierOrCriteria", i), item.IdentifierOrCriteria),
			StartAmount:          c.uint256(fmt.Sprintf("consideration[%d].startAmount", i), item.StartAmount),
			EndAmount:            c.uint256(fmt.Sprintf("consideration[%d].endAmount", i), item.EndAmount),
			Recipient:            *item.Recipient,
		})
	}

	return out
}

func (c *converter) resolvers(in []CriteriaResolver) []abiCriteriaResolver {
	out := make([]abiCriteriaResolver, 0, len(in))
	for i, r := range in {
		proof := make([][32]byte, len(r.CriteriaProof))
		for j, h := range r.CriteriaProof {
			proof[j] = h
		}
		out = append(out, abiCriteriaResolver{
			OrderIndex:    c.uint256(fmt.Sprintf("criteriaResolvers[%d].orderIndex", i), r.OrderIndex),
			Side:          c.uint8(fmt.Sprintf("criteriaResolvers[%d].side", i), r.Side),
			Index:         c.uint256(fmt.Sprintf("criteriaResolvers[%d].index", i), r.Index),
			Identifier:    c.uint256(fmt.Sprintf("criteriaResolvers[%d].identifier", i), r.Identifier),
			CriteriaProof: proof,
		})
	}
	return out
}

// EncodeFulfillAdvancedOrder returns the calldata of
// fulfillAdvancedOrder(advancedOrder, criteriaResolvers, fulfillerConduitKey, recipient).
// A missing or out of range field fails with an ENCODING_ERROR and no bytes.
func EncodeFulfillAdvancedOrder(
	order *AdvancedOrder,
	resolvers []CriteriaResolver,
	conduitKey *common.Hash,
	recipient *common.Address,
) ([]byte, error) {
	return Encode(&FulfillAdvancedOrderInput{
		AdvancedOrder:       order,
		CriteriaResolvers:   resolvers,
		FulfillerConduitKey: conduitKey,
		Recipient:           recipient,
	})
}

// Encode packs a complete fulfillAdvancedOrder call.
func Encode(in *FulfillAdvancedOrderInput) ([]byte, error) {
	if in == nil {
		return nil, encodingError("fulfillment input is required")
	}
	if err := utils.ValidateStruct(in); err != nil {
		return nil, &types.Error{
			Code:    types.ErrEncoding,
			Message: "invalid fulfillAdvancedOrder arguments",
			Cause:   err,
		}
	}

	var c converter
	order := c.order(in.AdvancedOrder)
	resolvers := c.resolvers(in.CriteriaResolvers)
	if c.err != nil {
		return nil, c.err
	}

	data, err := parsedABI.Pack(FulfillAdvancedOrderMethod, order, resolvers, [32]byte(*in.FulfillerConduitKey), *in.Recipient)
	if err != nil {
		return nil, &types.Error{
			Code:    types.ErrEncoding,
			Message: "failed to pack fulfillAdvancedOrder",
			Cause:   err,
		}
	}
	return data, nil
}

// DecodeFulfillInput parses the input_data object of a fulfillment payload.
// Unknown fields are ignored.
func DecodeFulfillInput(raw json.RawMessage) (*FulfillAdvancedOrderInput, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, encodingError("fulfillment input data is empty")
	}

	var in FulfillAdvancedOrderInput
	if err := utils.ParseJSON(raw, &in, types.ErrEncoding); err != nil {
		return nil, err
	}
	return &in, nil
}

// DecodeCalldata unpacks fulfillAdvancedOrder calldata back into its
// arguments.
func DecodeCalldata(data []byte) (*FulfillAdvancedOrderInput, error) {
	method := parsedABI.Methods[FulfillAdvancedOrderMethod]
	if len(data) < 4 || !bytes.Equal(data[:4], method.ID) {
		return nil, encodingError("calldata is not a fulfillAdvancedOrder call")
	}

	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, &types.Error{Code: types.ErrEncoding, Message: "failed to unpack calldata", Cause: err}
	}

	var call abiCall
	if err := method.Inputs.Copy(&call, values); err != nil {
		return nil, &types.Error{Code: types.ErrEncoding, Message: "failed to copy calldata", Cause: err}
	}

	return fromABI(&call), nil
}

func addrPtr(a common.Address) *common.Address { return &a }
func hashPtr(h [32]byte) *common.Hash          { x := common.Hash(h); return &x }
func bytesPtr(b []byte) *hexutil.Bytes         { x := hexutil.Bytes(common.CopyBytes(b)); return &x }

func fromABI(call *abiCall) *FulfillAdvancedOrderInput {
	p := call.AdvancedOrder.Parameters
	params := &OrderParameters{
		Offerer:                         addrPtr(p.Offerer),
		Zone:                            addrPtr(p.Zone),
		Offer:                           make([]OfferItem, 0, len(p.Offer)),
		Consideration:                   make([]ConsiderationItem, 0, len(p.Consideration)),
		OrderType:                       NewUint(uint64(p.OrderType)),
		StartTime:                       NewUintFromBig(p.StartTime),
		EndTime:                         NewUintFromBig(p.EndTime),
		ZoneHash:                        hashPtr(p.ZoneHash),
		Salt:                            NewUintFromBig(p.Salt),
		ConduitKey:                      hashPtr(p.ConduitKey),
		TotalOriginalConsiderationItems: NewUintFromBig(p.TotalOriginalConsiderationItems),
	}
	for _, item := range p.Offer {
		params.Offer = append(params.Offer, OfferItem{
			ItemType:             NewUint(uint64(item.ItemType)),
			Token:                addrPtr(item.Token),
			IdentifierOrCriteria: NewUintFromBig(item.IdentifierOrCriteria),
			StartAmount:          NewUintFromBig(item.StartAmount),
			EndAmount:            NewUintFromBig(item.EndAmount),
		})
	}
	for _, item := range p.Consideration {
		params.Consideration = append(params.Consideration, ConsiderationItem{
			ItemType:             NewUint(uint64(item.ItemType)),
			Token:                addrPtr(item.Token),
			IdentifierOrCriteria: NewUintFromBig(item.IdentifierOrCriteria),
			StartAmount:          NewUintFromBig(item.StartAmount),
			EndAmount:            NewUintFromBig(item.EndAmount),
			Recipient:            addrPtr(item.Recipient),
		})
	}

	resolvers := make([]CriteriaResolver, 0, len(call.CriteriaResolvers))
	for _, r := range call.CriteriaResolvers {
		proof := make([]common.Hash, len(r.CriteriaProof))
		for i, h := range r.CriteriaProof {
			proof[i] = h
		}
		resolvers = append(resolvers, CriteriaResolver{
			OrderIndex:    NewUintFromBig(r.OrderIndex),
			Side:          NewUint(uint64(r.Side)),
			Index:         NewUintFromBig(r.Index),
			Identifier:    NewUintFromBig(r.Identifier),
			CriteriaProof: proof,
		})
	}

	return &FulfillAdvancedOrderInput{
		AdvancedOrder: &AdvancedOrder{
			Parameters:  params,
			Numerator:   NewUintFromBig(call.AdvancedOrder.Numerator),
			Denominator: NewUintFromBig(call.AdvancedOrder.Denominator),
			Signature:   bytesPtr(call.AdvancedOrder.Signature),
			ExtraData:   bytesPtr(call.AdvancedOrder.ExtraData),
		},
		CriteriaResolvers:   resolvers,
		FulfillerConduitKey: hashPtr(call.FulfillerConduitKey),
		Recipient:           addrPtr(call.Recipient),
	}
}
