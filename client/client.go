// Package client is the Go client for the walletlens HTTP API.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brojonat/walletlens/service/dashboard"
	"github.com/brojonat/walletlens/service/feed"
	"github.com/brojonat/walletlens/service/logging"
	natspkg "github.com/brojonat/walletlens/service/nats"
	"github.com/brojonat/walletlens/service/price"
)

// Watch is a wallet whose dashboard the server refreshes on a schedule.
type Watch struct {
	Address  string        `json:"address"`
	Interval time.Duration `json:"interval"`
}

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client is the HTTP client for the walletlens service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new walletlens client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Dashboard fetches the full dashboard of a wallet.
func (c *Client) Dashboard(ctx context.Context, address string) (*dashboard.Dashboard, error) {
	var d dashboard.Dashboard
	if err := c.getJSON(ctx, walletPath(address, "dashboard"), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Transactions fetches the normalized feed of a wallet. limit <= 0 uses the server default.
func (c *Client) Transactions(ctx context.Context, address string, limit int) ([]feed.NormalizedTransaction, error) {
	path := walletPath(address, "transactions")
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}

	var resp struct {
		Transactions []feed.NormalizedTransaction `json:"transactions"`
	}
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Transactions, nil
}

// Portfolio fetches the valuation of a wallet.
func (c *Client) Portfolio(ctx context.Context, address string) (*dashboard.PortfolioView, error) {
	var view dashboard.PortfolioView
	if err := c.getJSON(ctx, walletPath(address, "portfolio"), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Trades fetches the trading summary and analysis of a wallet.
func (c *Client) Trades(ctx context.Context, address string) (*dashboard.TradesView, error) {
	var view dashboard.TradesView
	if err := c.getJSON(ctx, walletPath(address, "trades"), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Price fetches a price quote.
func (c *Client) Price(ctx context.Context, id string) (*price.Quote, error) {
	var q price.Quote
	if err := c.getJSON(ctx, "/api/v1/prices/"+url.PathEscape(id), &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// Logs fetches the most recent diagnostics log entries.
func (c *Client) Logs(ctx context.Context, limit int) ([]logging.Entry, error) {
	path := "/api/v1/logs"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}

	var resp struct {
		Entries []logging.Entry `json:"entries"`
	}
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// Watch asks the server to refresh a wallet's dashboard on a schedule.
// A zero interval uses the server default.
func (c *Client) Watch(ctx context.Context, address string, interval time.Duration) (*Watch, error) {
	reqBody := map[string]string{"address": address}
	if interval > 0 {
		reqBody["interval"] = interval.String()
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/watches", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, c.parseErrorResponse(resp)
	}

	var apiWatch struct {
		Address  string `json:"address"`
		Interval string `json:"interval"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiWatch); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	parsed, err := time.ParseDuration(apiWatch.Interval)
	if err != nil {
		return nil, fmt.Errorf("invalid interval %q: %w", apiWatch.Interval, err)
	}

	c.logger.Debug("watch created", "address", address, "interval", parsed)
	return &Watch{Address: apiWatch.Address, Interval: parsed}, nil
}

// Unwatch stops scheduled refreshes of a wallet.
func (c *Client) Unwatch(ctx context.Context, address string) error {
	u := c.baseURL + "/api/v1/watches/" + url.PathEscape(address)
	req, err := http.NewRequestWithContext(ctx, "DELETE", u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return c.parseErrorResponse(resp)
	}

	c.logger.Debug("watch deleted", "address", address)
	return nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	return nil
}

// StreamDashboards follows the SSE stream of a wallet and calls fn for each
// refreshed dashboard until ctx is done, the server closes the stream, or fn
// returns an error.
func (c *Client) StreamDashboards(ctx context.Context, address string, fn func(*natspkg.DashboardEvent) error) error {
	u := c.baseURL + "/api/v1/stream/dashboards/" + url.PathEscape(address)
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream has no deadline; ctx governs it.
	streamClient := *c.httpClient
	streamClient.Timeout = 0

	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to SSE endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	var currentEvent, currentData string

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line terminates an event
		if line == "" {
			if currentEvent == "dashboard" && currentData != "" {
				var event natspkg.DashboardEvent
				if err := json.Unmarshal([]byte(currentData), &event); err != nil {
					c.logger.Warn("failed to decode dashboard event", "error", err)
				} else if err := fn(&event); err != nil {
					return err
				}
			}
			currentEvent, currentData = "", ""
			continue
		}

		switch {
		case strings.HasPrefix(line, "event:"):
			currentEvent = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			currentData = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("error reading SSE stream: %w", err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func walletPath(address, resource string) string {
	return "/api/v1/wallets/" + url.PathEscape(address) + "/" + resource
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
}
