package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	CoinGeckoBaseURL = "https://api.coingecko.com"
	BinanceBaseURL   = "https://api.binance.com"
	CoinCapBaseURL   = "https://api.coincap.io"

	// maxErrorBody bounds how much of an error response is copied into the error.
	maxErrorBody = 256
)

// binanceSymbols maps asset identifiers onto Binance USDT pairs.
var binanceSymbols = map[string]string{
	"solana":   "SOLUSDT",
	"bitcoin":  "BTCUSDT",
	"ethereum": "ETHUSDT",
	"usd-coin": "USDCUSDT",
}

// httpProvider holds what every HTTP-backed provider needs.
type httpProvider struct {
	name       string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func newHTTPProvider(name, baseURL string, httpClient *http.Client, limiter *rate.Limiter) httpProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return httpProvider{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		limiter:    limiter,
	}
}

func (p *httpProvider) Name() string { return p.name }

// getJSON waits for the rate limiter, issues a GET and decodes a 200 body into out.
func (p *httpProvider) getJSON(ctx context.Context, u string, header http.Header, out any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limit: %w", p.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%s: unexpected status %d: %s", p.name, resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", p.name, err)
	}
	return nil
}

// CoinGecko prices assets through the /simple/price endpoint.
type CoinGecko struct {
	httpProvider
	apiKey string
}

// NewCoinGecko creates a CoinGecko provider. apiKey may be empty for the public tier.
func NewCoinGecko(baseURL, apiKey string, httpClient *http.Client, limiter *rate.Limiter) *CoinGecko {
	if baseURL == "" {
		baseURL = CoinGeckoBaseURL
	}
	return &CoinGecko{
		httpProvider: newHTTPProvider("coingecko", baseURL, httpClient, limiter),
		apiKey:       apiKey,
	}
}

func (p *CoinGecko) Fetch(ctx context.Context, id string) (Quote, error) {
	q := url.Values{}
	q.Set("ids", id)
	q.Set("vs_currencies", "usd")
	q.Set("include_24hr_change", "true")
	u := p.baseURL + "/api/v3/simple/price?" + q.Encode()

	header := http.Header{}
	if p.apiKey != "" {
		header.Set("x-cg-demo-api-key", p.apiKey)
	}

	var body map[string]struct {
		USD       *float64 `json:"usd"`
		Change24h float64  `json:"usd_24h_change"`
	}
	if err := p.getJSON(ctx, u, header, &body); err != nil {
		return Quote{}, err
	}
	entry, ok := body[id]
	if !ok || entry.USD == nil {
		return Quote{}, fmt.Errorf("coingecko: %w: %s", ErrUnsupportedAsset, id)
	}
	return Quote{Price: *entry.USD, Change24h: entry.Change24h}, nil
}

// Binance prices assets from the 24h ticker of their USDT pair.
type Binance struct {
	httpProvider
}

// NewBinance creates a Binance provider.
func NewBinance(baseURL string, httpClient *http.Client, limiter *rate.Limiter) *Binance {
	if baseURL == "" {
		baseURL = BinanceBaseURL
	}
	return &Binance{httpProvider: newHTTPProvider("binance", baseURL, httpClient, limiter)}
}

func (p *Binance) Fetch(ctx context.Context, id string) (Quote, error) {
	symbol, ok := binanceSymbols[id]
	if !ok {
		return Quote{}, fmt.Errorf("binance: %w: %s", ErrUnsupportedAsset, id)
	}
	u := p.baseURL + "/api/v3/ticker/24hr?symbol=" + url.QueryEscape(symbol)

	var body struct {
		LastPrice          string `json:"lastPrice"`
		PriceChangePercent string `json:"priceChangePercent"`
	}
	if err := p.getJSON(ctx, u, nil, &body); err != nil {
		return Quote{}, err
	}
	return parseQuote(p.name, body.LastPrice, body.PriceChangePercent)
}

// CoinCap prices assets through the /v2/assets endpoint.
type CoinCap struct {
	httpProvider
}

// NewCoinCap creates a CoinCap provider.
func NewCoinCap(baseURL string, httpClient *http.Client, limiter *rate.Limiter) *CoinCap {
	if baseURL == "" {
		baseURL = CoinCapBaseURL
	}
	return &CoinCap{httpProvider: newHTTPProvider("coincap", baseURL, httpClient, limiter)}
}

func (p *CoinCap) Fetch(ctx context.Context, id string) (Quote, error) {
	u := p.baseURL + "/v2/assets/" + url.PathEscape(id)

	var body struct {
		Data struct {
			PriceUSD          string `json:"priceUsd"`
			ChangePercent24Hr string `json:"changePercent24Hr"`
		} `json:"data"`
	}
	if err := p.getJSON(ctx, u, nil, &body); err != nil {
		return Quote{}, err
	}
	return parseQuote(p.name, body.Data.PriceUSD, body.Data.ChangePercent24Hr)
}

// parseQuote converts the string fields used by Binance and CoinCap. A missing
// change value is treated as 0.
func parseQuote(provider, priceStr, changeStr string) (Quote, error) {
	p, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return Quote{}, fmt.Errorf("%s: invalid price %q: %w", provider, priceStr, err)
	}
	if p < 0 {
		return Quote{}, fmt.Errorf("%s: negative price %q", provider, priceStr)
	}
	var change float64
	if changeStr != "" {
		if change, err = strconv.ParseFloat(changeStr, 64); err != nil {
			return Quote{}, fmt.Errorf("%s: invalid 24h change %q: %w", provider, changeStr, err)
		}
	}
	return Quote{Price: p, Change24h: change}, nil
}

// NewProviders builds providers by name in the given order. Each provider gets
// its own limiter allowing rps requests per second.
func NewProviders(names []string, coinGeckoKey string, httpClient *http.Client, rps float64) ([]Provider, error) {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}

	providers := make([]Provider, 0, len(names))
	for _, name := range names {
		limiter := rate.NewLimiter(limit, 1)
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "coingecko":
			providers = append(providers, NewCoinGecko("", coinGeckoKey, httpClient, limiter))
		case "binance":
			providers = append(providers, NewBinance("", httpClient, limiter))
		case "coincap":
			providers = append(providers, NewCoinCap("", httpClient, limiter))
		case "":
		default:
			return nil, fmt.Errorf("unknown price provider %q", name)
		}
	}
	return providers, nil
}
