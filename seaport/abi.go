package seaport

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Seaport 1.x fulfillAdvancedOrder plus the revert errors the buyer decodes.
const seaportABI = `[
	{
		"type": "function",
		"name": "fulfillAdvancedOrder",
		"stateMutability": "payable",
		"inputs": [
			{
				"name": "advancedOrder",
				"type": "tuple",
				"components": [
					{
						"name": "parameters",
						"type": "tuple",
						"components": [
							{"name": "offerer", "type": "address"},
							{"name": "zone", "type": "address"},
							{
								"name": "offer",
								"type": "tuple[]",
								"components": [
									{"name": "itemType", "type": "uint8"},
									{"name": "token", "type": "address"},
									{"name": "identifierOrCriteria", "type": "uint256"},
									{"name": "startAmount", "type": "uint256"},
									{"name": "endAmount", "type": "uint256"}
								]
							},
							{
								"name": "consideration",
								"type": "tuple[]",
								"components": [
									{"name": "itemType", "type": "uint8"},
									{"name": "token", "type": "address"},
									{"name": "identifierOrCriteria", "type": "uint256"},
									{"name": "startAmount", "type": "uint256"},
									{"name": "endAmount", "type": "uint256"},
									{"name": "recipient", "type": "address"}
								]
							},
							{"name": "orderType", "type": "uint8"},
							{"name": "startTime", "type": "uint256"},
							{"name": "endTime", "type": "uint256"},
							{"name": "zoneHash", "type": "bytes32"},
							{"name": "salt", "type": "uint256"},
							{"name": "conduitKey", "type": "bytes32"},
							{"name": "totalOriginalConsiderationItems", "type": "uint256"}
						]
					},
					{"name": "numerator", "type": "uint120"},
					{"name": "denominator", "type": "uint120"},
					{"name": "signature", "type": "bytes"},
					{"name": "extraData", "type": "bytes"}
				]
			},
			{
				"name": "criteriaResolvers",
				"type": "tuple[]",
				"components": [
					{"name": "orderIndex", "type": "uint256"},
					{"name": "side", "type": "uint8"},
					{"name": "index", "type": "uint256"},
					{"name": "identifier", "type": "uint256"},
					{"name": "criteriaProof", "type": "bytes32[]"}
				]
			},
			{"name": "fulfillerConduitKey", "type": "bytes32"},
			{"name": "recipient", "type": "address"}
		],
		"outputs": [
			{"name": "fulfilled", "type": "bool"}
		]
	},
	{
		"type": "error",
		"name": "InsufficientNativeTokensSupplied",
		"inputs": []
	},
	{
		"type": "error",
		"name": "InvalidMsgValue",
		"inputs": [
			{"name": "value", "type": "uint256"}
		]
	}
]`

const (
	FulfillAdvancedOrderMethod = "fulfillAdvancedOrder"

	ErrInsufficientNativeTokensSupplied = "InsufficientNativeTokensSupplied"
	ErrInvalidMsgValue                  = "InvalidMsgValue"
)

var parsedABI abi.ABI

func init() {
	var err error
	parsedABI, err = abi.JSON(strings.NewReader(seaportABI))
	if err != nil {
		panic("seaport: invalid abi: " + err.Error())
	}
}

// FulfillAdvancedOrderSelector is the 4 byte selector, 0xe7acab24.
func FulfillAdvancedOrderSelector() []byte {
	return parsedABI.Methods[FulfillAdvancedOrderMethod].ID
}

// ErrorSelector returns the 4 byte selector of a known revert error, or nil.
func ErrorSelector(name string) []byte {
	e, ok := parsedABI.Errors[name]
	if !ok {
		return nil
	}
	return e.ID[:4]
}
