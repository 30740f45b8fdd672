package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/brojonat/walletlens/service/dashboard"
	"github.com/brojonat/walletlens/service/feed"
	"github.com/brojonat/walletlens/service/logging"
	"github.com/brojonat/walletlens/service/price"
	"github.com/brojonat/walletlens/service/temporal"
)

const (
	maxRequestBodySize  = 1 << 20 // 1MB
	maxAddressLength    = 64      // Solana addresses are 32-44 chars
	maxTransactionLimit = 100
	defaultLogLimit     = 100
	maxRefreshInterval  = 24 * time.Hour
)

var (
	// Valid Solana address characters: base58 (no 0, O, I, l)
	validAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)

	// Price identifiers look like "solana" or "usd-coin".
	validPriceIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)
)

// DashboardService is the dashboard surface the HTTP handlers need.
type DashboardService interface {
	Load(ctx context.Context, address string) (*dashboard.Dashboard, error)
	Transactions(ctx context.Context, address string, limit int) ([]feed.NormalizedTransaction, error)
	Portfolio(ctx context.Context, address string) (*dashboard.PortfolioView, error)
	Trades(ctx context.Context, address string) (*dashboard.TradesView, error)
	Price(ctx context.Context, id string) price.Quote
}

// handleDashboard returns the full dashboard of a wallet.
// GET /api/v1/wallets/{address}/dashboard
func handleDashboard(svc DashboardService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := validateAddress(address); err != nil {
			logger.DebugContext(r.Context(), "invalid address", "address", address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		d, err := svc.Load(r.Context(), address)
		if err != nil {
			writeServiceError(w, r, err, logger)
			return
		}

		writeJSON(w, d, http.StatusOK)
	})
}

// handleTransactions returns the normalized activity feed of a wallet.
// GET /api/v1/wallets/{address}/transactions?limit={n}
func handleTransactions(svc DashboardService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := validateAddress(address); err != nil {
			logger.DebugContext(r.Context(), "invalid address", "address", address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		limit, err := parseLimit(r.URL.Query().Get("limit"), 0, maxTransactionLimit)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		txns, err := svc.Transactions(r.Context(), address, limit)
		if err != nil {
			writeServiceError(w, r, err, logger)
			return
		}

		writeJSON(w, map[string]interface{}{
			"address":      address,
			"transactions": txns,
			"count":        len(txns),
		}, http.StatusOK)
	})
}

// handlePortfolio returns the valuation of a wallet.
// GET /api/v1/wallets/{address}/portfolio
func handlePortfolio(svc DashboardService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := validateAddress(address); err != nil {
			logger.DebugContext(r.Context(), "invalid address", "address", address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		view, err := svc.Portfolio(r.Context(), address)
		if err != nil {
			writeServiceError(w, r, err, logger)
			return
		}

		writeJSON(w, view, http.StatusOK)
	})
}

// handleTrades returns the trading summary and analysis of a wallet.
// GET /api/v1/wallets/{address}/trades
func handleTrades(svc DashboardService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := validateAddress(address); err != nil {
			logger.DebugContext(r.Context(), "invalid address", "address", address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		view, err := svc.Trades(r.Context(), address)
		if err != nil {
			writeServiceError(w, r, err, logger)
			return
		}

		writeJSON(w, view, http.StatusOK)
	})
}

// handlePrice returns a price quote. Price lookups never fail; a degraded
// quote is still a 200.
// GET /api/v1/prices/{id}
func handlePrice(svc DashboardService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.ToLower(r.PathValue("id"))
		if !validPriceIDRegex.MatchString(id) {
			writeError(w, "invalid price id", http.StatusBadRequest)
			return
		}

		q := svc.Price(r.Context(), id)
		if q.Degraded {
			logger.DebugContext(r.Context(), "serving degraded price", "id", id, "source", q.Source)
		}
		writeJSON(w, q, http.StatusOK)
	})
}

type watchResponse struct {
	Address  string `json:"address"`
	Interval string `json:"interval"`
}

// handleCreateWatch creates or updates the refresh schedule of a wallet.
// POST /api/v1/watches
func handleCreateWatch(scheduler temporal.Scheduler, defaultInterval, minInterval time.Duration, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req struct {
			Address  string `json:"address"`
			Interval string `json:"interval"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.DebugContext(r.Context(), "failed to decode watch request", "error", err)
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}

		if err := validateAddress(req.Address); err != nil {
			logger.DebugContext(r.Context(), "invalid address", "address", req.Address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		interval := defaultInterval
		if req.Interval != "" {
			parsed, err := time.ParseDuration(req.Interval)
			if err != nil {
				writeError(w, fmt.Sprintf("invalid interval %q", req.Interval), http.StatusBadRequest)
				return
			}
			interval = parsed
		}
		if err := validateRefreshInterval(interval, minInterval); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := scheduler.UpsertWatchSchedule(r.Context(), req.Address, interval); err != nil {
			logger.ErrorContext(r.Context(), "failed to upsert watch schedule",
				"address", req.Address,
				"error", err,
			)
			writeError(w, "failed to create watch", http.StatusInternalServerError)
			return
		}

		logger.InfoContext(r.Context(), "watch created", "address", req.Address, "interval", interval)
		writeJSON(w, watchResponse{Address: req.Address, Interval: interval.String()}, http.StatusCreated)
	})
}

// handleDeleteWatch removes the refresh schedule of a wallet.
// DELETE /api/v1/watches/{address}
func handleDeleteWatch(scheduler temporal.Scheduler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := validateAddress(address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := scheduler.DeleteWatchSchedule(r.Context(), address); err != nil {
			if errors.Is(err, temporal.ErrScheduleNotFound) {
				writeError(w, "watch not found", http.StatusNotFound)
				return
			}
			logger.ErrorContext(r.Context(), "failed to delete watch schedule",
				"address", address,
				"error", err,
			)
			writeError(w, "failed to delete watch", http.StatusInternalServerError)
			return
		}

		logger.InfoContext(r.Context(), "watch deleted", "address", address)
		w.WriteHeader(http.StatusNoContent)
	})
}

// handleLogs returns the most recent diagnostics log entries.
// GET /api/v1/logs?limit={n}
func handleLogs(ring *logging.Ring) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, err := parseLimit(r.URL.Query().Get("limit"), defaultLogLimit, 0)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		entries := ring.Entries(limit)
		writeJSON(w, map[string]interface{}{
			"entries": entries,
			"count":   len(entries),
		}, http.StatusOK)
	})
}

// writeServiceError maps dashboard errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	var upstream *dashboard.UpstreamError
	switch {
	case errors.Is(err, dashboard.ErrInvalidAddress):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(r.Context().Err(), context.Canceled):
		logger.DebugContext(r.Context(), "client went away", "path", r.URL.Path)
	case errors.As(err, &upstream):
		logger.WarnContext(r.Context(), "upstream failure",
			"path", r.URL.Path,
			"step", upstream.Step,
			"error", upstream.Err,
		)
		writeError(w, fmt.Sprintf("upstream %s unavailable", upstream.Step), http.StatusBadGateway)
	default:
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, "internal server error", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateAddress rejects malformed wallet addresses before any upstream call.
func validateAddress(address string) error {
	if address == "" {
		return errorf("address is required")
	}

	if len(address) > maxAddressLength {
		return errorf("address too long: maximum length is %d characters", maxAddressLength)
	}

	for _, r := range address {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in address: control characters not allowed")
		}
	}

	if !validAddressRegex.MatchString(address) {
		return errorf("invalid address format: must contain only valid base58 characters")
	}

	if _, err := dashboard.ParseAddress(address); err != nil {
		return errorf("%v", err)
	}

	return nil
}

// validateRefreshInterval bounds watch intervals.
func validateRefreshInterval(interval, minInterval time.Duration) error {
	if interval <= 0 {
		return errorf("interval must be positive")
	}

	if interval < minInterval {
		return errorf("interval must be at least %v", minInterval)
	}

	if interval > maxRefreshInterval {
		return errorf("interval cannot exceed %v", maxRefreshInterval)
	}

	return nil
}

// parseLimit parses an optional positive limit. max <= 0 means unbounded.
func parseLimit(raw string, defaultValue, max int) (int, error) {
	if raw == "" {
		return defaultValue, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errorf("limit must be a positive integer")
	}
	if max > 0 && limit > max {
		return 0, errorf("limit cannot exceed %d", max)
	}
	return limit, nil
}

// errorf is a helper to format error strings.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
