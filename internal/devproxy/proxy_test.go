package devproxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/nftbuy/types"
)

type seen struct {
	Path   string `json:"path"`
	Query  string `json:"query"`
	Host   string `json:"host"`
	APIKey string `json:"apiKey"`
	Method string `json:"method"`
}

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(seen{
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Host:   r.Host,
			APIKey: r.Header.Get("X-API-KEY"),
			Method: r.Method,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newProxy(t *testing.T, target string) *httptest.Server {
	t.Helper()
	p, err := New(types.ProxyConfig{Listen: "127.0.0.1:0", Prefix: "/opensea", Target: target})
	require.NoError(t, err)

	srv := httptest.NewServer(p.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestProxyRewritesPrefix(t *testing.T) {
	upstream := newUpstream(t)
	proxy := newProxy(t, upstream.URL)

	req, err := http.NewRequest(http.MethodGet, proxy.URL+"/opensea/api/v2/chain/ape_chain/contract/0xabc/nfts/1?limit=1", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-KEY", "k")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got seen
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))

	u, err := url.Parse(upstream.URL)
	require.NoError(t, err)

	assert.Equal(t, "/api/v2/chain/ape_chain/contract/0xabc/nfts/1", got.Path)
	assert.Equal(t, "limit=1", got.Query)
	assert.Equal(t, u.Host, got.Host)
	assert.Equal(t, "k", got.APIKey)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestProxyForwardsPost(t *testing.T) {
	upstream := newUpstream(t)
	proxy := newProxy(t, upstream.URL)

	resp, err := http.Post(proxy.URL+"/opensea/api/v2/listings/fulfillment_data", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	var got seen
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/api/v2/listings/fulfillment_data", got.Path)
}

func TestProxyPreflightAndHealth(t *testing.T) {
	proxy := newProxy(t, newUpstream(t).URL)

	req, err := http.NewRequest(http.MethodOptions, proxy.URL+"/opensea/api/v2/listings/fulfillment_data", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(proxy.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))
}

func TestProxyOutsidePrefix(t *testing.T) {
	proxy := newProxy(t, newUpstream(t).URL)

	resp, err := http.Get(proxy.URL + "/api/v2/anything")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProxyUpstreamDown(t *testing.T) {
	upstream := newUpstream(t)
	target := upstream.URL
	upstream.Close()

	proxy := newProxy(t, target)
	resp, err := http.Get(proxy.URL + "/opensea/api/v2/x")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(types.ProxyConfig{Listen: "127.0.0.1:0", Prefix: "opensea", Target: "https://api.opensea.io"})
	assert.True(t, types.IsCode(err, types.ErrConfig))

	_, err = New(types.ProxyConfig{Listen: "127.0.0.1:0", Prefix: "/opensea", Target: "not a url"})
	assert.True(t, types.IsCode(err, types.ErrConfig))
}
