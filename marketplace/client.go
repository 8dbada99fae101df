// Package marketplace is a client for the OpenSea v2 API subset used to find
// and fulfill listings.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"

	"github.com/vitwit/nftbuy/logger"
	"github.com/vitwit/nftbuy/metrics"
	"github.com/vitwit/nftbuy/types"
)

// maxErrorBody bounds how much of a failed response is kept for diagnostics.
const maxErrorBody = 4 << 10

// Client talks to the marketplace API. Every call is attempted once.
type Client struct {
	baseURL    string
	apiKey     string
	chain      types.ChainDescriptor
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     logger.Logger
	metrics    metrics.Recorder
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRateLimit paces outgoing requests to rps with the given burst. Requests
// wait for a token; nothing is retried.
func WithRateLimit(rps float64, burst int) Option {
	return func(client *Client) {
		if rps <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithLogger(l logger.Logger) Option {
	return func(client *Client) {
		client.logger = logger.OrNoop(l)
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(client *Client) {
		client.metrics = metrics.OrNoop(r)
	}
}

// New creates a marketplace client for chain.
func New(baseURL, apiKey string, chain types.ChainDescriptor, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		chain:   chain,
		httpClient: &http.Client{
			Timeout: types.DefaultRequestTimeout,
		},
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetAsset fetches a token by contract address and token id. A 404 is
// reported as NOT_FOUND.
func (c *Client) GetAsset(ctx context.Context, contract, tokenID string) (*types.AssetRecord, error) {
	path := fmt.Sprintf("/chain/%s/contract/%s/nfts/%s",
		url.PathEscape(c.chain.Slug), url.PathEscape(contract), url.PathEscape(tokenID))

	var resp assetResponse
	if err := c.get(ctx, "get_asset", path, &resp); err != nil {
		if e, ok := types.AsError(err); ok && e.Code == types.ErrAPI && e.Status == http.StatusNotFound {
			return nil, &types.Error{
				Code:    types.ErrNotFound,
				Message: fmt.Sprintf("asset %s/%s not found", contract, tokenID),
				Status:  http.StatusNotFound,
				Cause:   err,
			}
		}
		return nil, err
	}

	if resp.NFT == nil {
		return nil, &types.Error{
			Code:    types.ErrNotFound,
			Message: fmt.Sprintf("asset %s/%s not found", contract, tokenID),
		}
	}

	asset := resp.NFT
	if asset.TokenID == "" {
		asset.TokenID = tokenID
	}
	if asset.Contract == "" {
		asset.Contract = contract
	}
	return asset, nil
}

// GetBestListing returns the cheapest active listing for a token, or nil when
// the token is not listed.
func (c *Client) GetBestListing(ctx context.Context, collection, tokenID string) (*types.Listing, error) {
	path := fmt.Sprintf("/listings/collection/%s/nfts/%s/best",
		url.PathEscape(collection), url.PathEscape(tokenID))

	var resp listingResponse
	if err := c.get(ctx, "get_best_listing", path, &resp); err != nil {
		return nil, err
	}

	if resp.OrderHash == "" {
		return nil, nil
	}

	if !common.IsHexAddress(resp.ProtocolAddress) {
		return nil, &types.Error{
			Code:    types.ErrAPI,
			Message: fmt.Sprintf("listing %s has invalid protocol address %q", resp.OrderHash, resp.ProtocolAddress),
			Status:  http.StatusOK,
		}
	}

	value := new(big.Int)
	if v := strings.TrimSpace(resp.Price.Current.Value); v != "" {
		if _, ok := value.SetString(v, 10); !ok || value.Sign() < 0 {
			return nil, &types.Error{
				Code:    types.ErrAPI,
				Message: fmt.Sprintf("listing %s has invalid price %q", resp.OrderHash, v),
				Status:  http.StatusOK,
			}
		}
	}

	chain := resp.Chain
	if chain == "" {
		chain = c.chain.Slug
	}

	return &types.Listing{
		OrderHash:       resp.OrderHash,
		ProtocolAddress: common.HexToAddress(resp.ProtocolAddress),
		Chain:           chain,
		Price: types.Price{
			Currency: resp.Price.Current.Currency,
			Decimals: resp.Price.Current.Decimals,
			Value:    value,
		},
		Collection: collection,
		TokenID:    tokenID,
	}, nil
}

// RequestFulfillmentData asks the marketplace for the transaction that fills
// listing on behalf of fulfiller.
func (c *Client) RequestFulfillmentData(ctx context.Context, listing *types.Listing, fulfillerAddr common.Address) (*types.FulfillmentPayload, error) {
	if listing == nil {
		return nil, types.NewError(types.ErrNoListing, "no listing to fulfill", nil)
	}

	chain := listing.Chain
	if chain == "" {
		chain = c.chain.Slug
	}

	body := FulfillmentRequest{
		Listing: fulfillmentListing{
			Hash:            listing.OrderHash,
			Chain:           chain,
			ProtocolAddress: listing.ProtocolAddress.Hex(),
		},
		Fulfiller: fulfiller{Address: fulfillerAddr.Hex()},
	}

	var resp fulfillmentResponse
	if err := c.post(ctx, "fulfillment_data", "/listings/fulfillment_data", body, &resp); err != nil {
		return nil, err
	}

	if resp.FulfillmentData == nil || resp.FulfillmentData.Transaction == nil || resp.FulfillmentData.Transaction.To == "" {
		return nil, &types.Error{
			Code:    types.ErrMissingTransactionData,
			Message: "No transaction data returned",
		}
	}

	return resp.FulfillmentData, nil
}

func (c *Client) get(ctx context.Context, op, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(op, req, result)
}

func (c *Client) post(ctx context.Context, op, path string, body, result any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(op, req, result)
}

func (c *Client) do(op string, req *http.Request, result any) error {
	c.setHeaders(req)

	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ObserveLatency(op, time.Since(start), map[string]string{"network": c.chain.Slug})
	if err != nil {
		c.metrics.IncCounter(metrics.APIRequest, map[string]string{"network": c.chain.Slug, "value": "transport_error"})
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return &types.Error{
			Code:    types.ErrAPI,
			Message: fmt.Sprintf("%s %s failed", req.Method, req.URL.Path),
			Cause:   err,
		}
	}
	defer resp.Body.Close()

	c.metrics.IncCounter(metrics.APIRequest, map[string]string{"network": c.chain.Slug, "value": strconv.Itoa(resp.StatusCode)})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.parseError(op, resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil && !errors.Is(err, io.EOF) {
			return &types.Error{
				Code:    types.ErrAPI,
				Message: fmt.Sprintf("invalid %s response", op),
				Status:  resp.StatusCode,
				Cause:   err,
			}
		}
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")
}

func (c *Client) parseError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	text := strings.TrimSpace(string(body))

	c.logger.Warn("marketplace request failed", map[string]any{
		"operation": op,
		"status":    resp.StatusCode,
		"body":      text,
	})

	msg := fmt.Sprintf("API error: %d", resp.StatusCode)
	if text != "" {
		msg += ": " + text
	}
	return types.NewAPIError(resp.StatusCode, msg)
}
