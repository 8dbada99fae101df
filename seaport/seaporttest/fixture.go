// Package seaporttest holds fulfillment fixtures shared by tests.
package seaporttest

import "encoding/json"

// Seaport is the protocol address used by the fixtures.
const Seaport = "0x0000000000000068F116a894984e2DB1123eB395"

// Input is a well formed fulfillAdvancedOrder input_data object for a single
// ERC-721 listed at 1 APE.
var Input = json.RawMessage(`{
	"advancedOrder": {
		"parameters": {
			"offerer": "0x1111111111111111111111111111111111111111",
			"zone": "0x0000000000000000000000000000000000000000",
			"offer": [
				{
					"itemType": 2,
					"token": "0x2222222222222222222222222222222222222222",
					"identifierOrCriteria": "1234",
					"startAmount": "1",
					"endAmount": "1"
				}
			],
			"consideration": [
				{
					"itemType": 0,
					"token": "0x0000000000000000000000000000000000000000",
					"identifierOrCriteria": "0",
					"startAmount": "975000000000000000",
					"endAmount": "975000000000000000",
					"recipient": "0x1111111111111111111111111111111111111111"
				},
				{
					"itemType": 0,
					"token": "0x0000000000000000000000000000000000000000",
					"identifierOrCriteria": "0",
					"startAmount": "25000000000000000",
					"endAmount": "25000000000000000",
					"recipient": "0x0000a26b00c1f0df003000390027140000faa719"
				}
			],
			"orderType": 0,
			"startTime": "1700000000",
			"endTime": 1800000000,
			"zoneHash": "0x0000000000000000000000000000000000000000000000000000000000000000",
			"salt": "0x360c6ebe00000000000000000000000000000000000000006b1dd2b3e1d7f5a2",
			"conduitKey": "0x0000007b02230091a7ed01230072f7006a004d60a8d4e71d599b8104250f0000",
			"totalOriginalConsiderationItems": 2
		},
		"numerator": 1,
		"denominator": "1",
		"signature": "0xabcdef",
		"extraData": "0x"
	},
	"criteriaResolvers": [],
	"fulfillerConduitKey": "0x0000007b02230091a7ed01230072f7006a004d60a8d4e71d599b8104250f0000",
	"recipient": "0x3333333333333333333333333333333333333333"
}`)

// PriceWei is the total consideration of Input.
const PriceWei = "1000000000000000000"
