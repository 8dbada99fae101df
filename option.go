package nftbuy

import (
	"net/http"

	"github.com/vitwit/nftbuy/logger"
	"github.com/vitwit/nftbuy/metrics"
)

type Option func(*Buyer)

func WithLogger(l logger.Logger) Option {
	return func(b *Buyer) {
		b.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(b *Buyer) {
		b.metrics = r
	}
}

// WithHTTPClient sets the client used for marketplace requests.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Buyer) {
		b.httpClient = c
	}
}

// WithMarketplace replaces the marketplace API client.
func WithMarketplace(m MarketplaceAPI) Option {
	return func(b *Buyer) {
		b.market = m
	}
}
