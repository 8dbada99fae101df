package marketplace

import (
	"encoding/json"

	"github.com/vitwit/nftbuy/types"
)

type assetResponse struct {
	NFT *types.AssetRecord `json:"nft"`
}

type priceValue struct {
	Currency string `json:"currency"`
	Decimals uint8  `json:"decimals"`
	Value    string `json:"value"`
}

type listingResponse struct {
	OrderHash       string `json:"order_hash"`
	Chain           string `json:"chain"`
	ProtocolAddress string `json:"protocol_address"`
	Price           struct {
		Current priceValue `json:"current"`
	} `json:"price"`
}

type fulfillmentListing struct {
	Hash            string `json:"hash"`
	Chain           string `json:"chain"`
	ProtocolAddress string `json:"protocol_address"`
}

type fulfiller struct {
	Address string `json:"address"`
}

// FulfillmentRequest is the body of POST /listings/fulfillment_data.
type FulfillmentRequest struct {
	Listing   fulfillmentListing `json:"listing"`
	Fulfiller fulfiller          `json:"fulfiller"`
}

type fulfillmentResponse struct {
	Protocol        string                    `json:"protocol"`
	FulfillmentData *types.FulfillmentPayload `json:"fulfillment_data"`
	Orders          json.RawMessage           `json:"orders,omitempty"`
}
