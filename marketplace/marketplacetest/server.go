// Package marketplacetest runs an in-process marketplace API for tests.
package marketplacetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Server serves canned marketplace responses and counts requests per route.
type Server struct {
	*httptest.Server

	mu sync.Mutex

	// Asset is returned for any asset lookup; nil answers 404.
	Asset map[string]any

	// Listing is the best listing body; nil answers {}.
	Listing map[string]any

	// Fulfillment is the fulfillment_data response body.
	Fulfillment map[string]any

	// Status overrides the response status per route key ("asset",
	// "listing", "fulfillment").
	Status map[string]int

	calls           map[string]int
	lastAPIKey      string
	lastFulfillment map[string]any
}

func NewServer() *Server {
	s := &Server{
		Status: map[string]int{},
		calls:  map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *Server) route(r *http.Request) string {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/listings/fulfillment_data":
		return "fulfillment"
	case strings.HasPrefix(r.URL.Path, "/listings/collection/") && strings.HasSuffix(r.URL.Path, "/best"):
		return "listing"
	case strings.HasPrefix(r.URL.Path, "/chain/"):
		return "asset"
	default:
		return ""
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.route(r)
	s.calls[key]++
	s.lastAPIKey = r.Header.Get("X-API-KEY")

	if status, ok := s.Status[key]; ok && status != http.StatusOK {
		http.Error(w, `{"errors":["forced failure"]}`, status)
		return
	}

	var body any
	switch key {
	case "asset":
		if s.Asset == nil {
			http.Error(w, `{"errors":["not found"]}`, http.StatusNotFound)
			return
		}
		body = map[string]any{"nft": s.Asset}
	case "listing":
		body = s.Listing
		if body == nil {
			body = map[string]any{}
		}
	case "fulfillment":
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.lastFulfillment = req
		body = s.Fulfillment
	default:
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

// Calls returns how many requests hit a route key.
func (s *Server) Calls(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

// LastAPIKey is the X-API-KEY header of the latest request.
func (s *Server) LastAPIKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAPIKey
}

// LastFulfillmentRequest is the decoded body of the latest fulfillment call.
func (s *Server) LastFulfillmentRequest() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFulfillment
}

// SetFulfillment replaces the fulfillment response under lock.
func (s *Server) SetFulfillment(body map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fulfillment = body
}

// SetListing replaces the best listing response under lock.
func (s *Server) SetListing(body map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Listing = body
}

// Asset builds an asset body.
func Asset(contract, collection, tokenID, name string) map[string]any {
	return map[string]any{
		"identifier": tokenID,
		"collection": collection,
		"contract":   contract,
		"name":       name,
		"image_url":  "https://img.example/" + tokenID + ".png",
	}
}

// Listing builds a best listing body priced in wei.
func Listing(orderHash, protocol, priceWei string) map[string]any {
	return map[string]any{
		"order_hash":       orderHash,
		"chain":            "ape_chain",
		"protocol_address": protocol,
		"price": map[string]any{
			"current": map[string]any{
				"currency": "APE",
				"decimals": 18,
				"value":    priceWei,
			},
		},
	}
}

// Fulfillment builds a fulfillment_data response around input.
func Fulfillment(to, valueWei string, input json.RawMessage) map[string]any {
	return map[string]any{
		"protocol": "seaport1.6",
		"fulfillment_data": map[string]any{
			"transaction": map[string]any{
				"function":   "fulfillAdvancedOrder(...)",
				"chain":      33139,
				"to":         to,
				"value":      valueWei,
				"input_data": input,
			},
		},
	}
}
