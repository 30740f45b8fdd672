// Package helius talks to the Helius enhanced-transactions and token-metadata APIs.
package helius

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/brojonat/walletlens/service/metrics"
	"github.com/brojonat/walletlens/service/solana"
)

const (
	DefaultBaseURL = "https://api.helius.xyz"
	serviceName    = "helius"
	apiKeyParam    = "api-key"
	// maxErrorBody bounds how much of an error response is copied into the error.
	maxErrorBody = 512
)

// TokenMetadata is the display metadata of one mint.
type TokenMetadata struct {
	Mint     string `json:"mint"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int32  `json:"decimals"`
	LogoURI  string `json:"logoURI,omitempty"`
}

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Client is an HTTP client for the Helius REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewClient creates a Helius client. An empty baseURL selects DefaultBaseURL.
// If metrics is nil, no metrics will be recorded.
func NewClient(baseURL, apiKey string, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		metrics:    m,
		logger:     logger,
	}
}

// GetTransactions returns up to limit recent enhanced transactions for address,
// in the order the API returns them (most recent first).
func (c *Client) GetTransactions(ctx context.Context, address string, limit int) ([]solana.RawTransaction, error) {
	q := url.Values{}
	q.Set(apiKeyParam, c.apiKey)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	u := fmt.Sprintf("%s/v0/addresses/%s/transactions?%s", c.baseURL, url.PathEscape(address), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var txns []solana.RawTransaction
	if err := c.do(req, "transactions", &txns); err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "fetched transactions",
		"address", address,
		"count", len(txns),
		"limit", limit,
	)
	return txns, nil
}

type metadataRequest struct {
	MintAccounts    []string `json:"mintAccounts"`
	IncludeOffChain bool     `json:"includeOffChain"`
}

// metadataResponse is the subset of the token-metadata payload we read.
type metadataResponse struct {
	Account            string `json:"account"`
	OnChainAccountInfo struct {
		AccountInfo struct {
			Data struct {
				Parsed struct {
					Info struct {
						Decimals int32 `json:"decimals"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"accountInfo"`
	} `json:"onChainAccountInfo"`
	OnChainMetadata struct {
		Metadata struct {
			Data struct {
				Name   string `json:"name"`
				Symbol string `json:"symbol"`
			} `json:"data"`
		} `json:"metadata"`
	} `json:"onChainMetadata"`
	LegacyMetadata *struct {
		Symbol   string `json:"symbol"`
		Name     string `json:"name"`
		Decimals int32  `json:"decimals"`
		LogoURI  string `json:"logoURI"`
	} `json:"legacyMetadata"`
}

// TokenMetadata looks up display metadata for mints. Empty input returns an
// empty result without a network call. Mints the API does not know are omitted.
func (c *Client) TokenMetadata(ctx context.Context, mints []string) ([]TokenMetadata, error) {
	if len(mints) == 0 {
		return []TokenMetadata{}, nil
	}

	body, err := json.Marshal(metadataRequest{MintAccounts: mints, IncludeOffChain: true})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	q := url.Values{}
	q.Set(apiKeyParam, c.apiKey)
	u := fmt.Sprintf("%s/v0/token-metadata?%s", c.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var raw []metadataResponse
	if err := c.do(req, "token_metadata", &raw); err != nil {
		return nil, err
	}

	out := make([]TokenMetadata, 0, len(raw))
	for _, r := range raw {
		if r.Account == "" {
			continue
		}
		md := TokenMetadata{
			Mint:     r.Account,
			Symbol:   r.OnChainMetadata.Metadata.Data.Symbol,
			Name:     r.OnChainMetadata.Metadata.Data.Name,
			Decimals: r.OnChainAccountInfo.AccountInfo.Data.Parsed.Info.Decimals,
		}
		if l := r.LegacyMetadata; l != nil {
			if md.Symbol == "" {
				md.Symbol = l.Symbol
			}
			if md.Name == "" {
				md.Name = l.Name
			}
			if md.Decimals == 0 {
				md.Decimals = l.Decimals
			}
			md.LogoURI = l.LogoURI
		}
		out = append(out, md)
	}

	c.logger.DebugContext(ctx, "fetched token metadata",
		"requested", len(mints),
		"resolved", len(out),
	)
	return out, nil
}

// do executes req and decodes a 2xx JSON body into out.
func (c *Client) do(req *http.Request, operation string, out any) (err error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.RecordUpstreamCall(serviceName, operation, time.Since(start).Seconds(), err)
		}
	}()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", operation, redactURLError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Operation: operation, StatusCode: resp.StatusCode, Body: string(b)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", operation, err)
	}
	return nil
}

// redactURLError masks the API key in the URL that *url.Error prints.
func redactURLError(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	u, perr := url.Parse(uerr.URL)
	if perr != nil {
		uerr.URL = "[unparseable url]"
		return err
	}
	q := u.Query()
	if q.Has(apiKeyParam) {
		q.Set(apiKeyParam, "REDACTED")
		u.RawQuery = q.Encode()
	}
	uerr.URL = u.String()
	return err
}
