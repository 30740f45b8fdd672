// Package price resolves current asset prices from an ordered list of
// providers, backed by a cache that also serves as a degraded fallback.
package price

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/walletlens/service/metrics"
)

const (
	// NativeID is the price identifier of the chain's native asset.
	NativeID = "solana"
	// DefaultTTL is how long a cached quote counts as fresh.
	DefaultTTL = time.Hour

	// SourceCache and SourceDefault label quotes that did not come from a provider.
	SourceCache   = "cache"
	SourceDefault = "default"
)

// DefaultQuote is returned when every provider failed and nothing is cached.
var DefaultQuote = Quote{Price: 100, Change24h: 0}

// ErrUnsupportedAsset is returned by providers that cannot price an identifier.
var ErrUnsupportedAsset = errors.New("unsupported asset")

// Quote is a price observation for one asset, in USD.
type Quote struct {
	ID        string    `json:"id"`
	Price     float64   `json:"price"`
	Change24h float64   `json:"change_24h"`
	FetchedAt time.Time `json:"fetched_at"`
	Source    string    `json:"source"`
	// Degraded is set when the quote is a stale cache entry or the default.
	Degraded bool `json:"degraded"`
}

// Provider fetches a live quote.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, id string) (Quote, error)
}

// Cache stores the last known quote per asset. Entries are kept past their
// freshness window so they can serve as a fallback.
type Cache interface {
	Get(ctx context.Context, id string) (Quote, bool, error)
	Set(ctx context.Context, q Quote) error
}

// Source is the price lookup used by the rest of the service.
type Source struct {
	providers []Provider
	cache     Cache
	ttl       time.Duration
	now       func() time.Time
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewSource creates a Source. Providers are tried in order. A nil cache
// selects an in-memory cache; ttl <= 0 selects DefaultTTL.
// If metrics is nil, no metrics will be recorded.
func NewSource(providers []Provider, cache Cache, ttl time.Duration, m *metrics.Metrics, logger *slog.Logger) *Source {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Source{
		providers: providers,
		cache:     cache,
		ttl:       ttl,
		now:       time.Now,
		metrics:   m,
		logger:    logger,
	}
}

// GetPrice returns the current quote for id. It never fails: when every
// provider fails it falls back to an expired cache entry, then to DefaultQuote,
// and marks the result Degraded.
func (s *Source) GetPrice(ctx context.Context, id string) Quote {
	id = strings.ToLower(strings.TrimSpace(id))

	cached, found, err := s.cache.Get(ctx, id)
	if err != nil {
		s.logger.WarnContext(ctx, "price cache read failed", "asset", id, "error", err)
		found = false
	}
	if found && s.now().Sub(cached.FetchedAt) < s.ttl {
		s.recordLookup(id, "fresh")
		return cached
	}
	if found {
		s.recordLookup(id, "stale")
	} else {
		s.recordLookup(id, "miss")
	}

	for _, p := range s.providers {
		q, err := p.Fetch(ctx, id)
		if err != nil {
			s.logger.WarnContext(ctx, "price provider failed",
				"provider", p.Name(),
				"asset", id,
				"error", err,
			)
			s.recordProvider(p.Name(), "error")
			continue
		}
		s.recordProvider(p.Name(), "success")

		q.ID = id
		q.Source = p.Name()
		q.Degraded = false
		if q.FetchedAt.IsZero() {
			q.FetchedAt = s.now()
		}
		if err := s.cache.Set(ctx, q); err != nil {
			s.logger.WarnContext(ctx, "price cache write failed", "asset", id, "error", err)
		}
		return q
	}

	if found {
		s.logger.WarnContext(ctx, "all price providers failed, serving stale quote",
			"asset", id,
			"fetched_at", cached.FetchedAt,
		)
		s.recordFallback(id, "stale_cache")
		cached.Source = SourceCache
		cached.Degraded = true
		return cached
	}

	s.logger.WarnContext(ctx, "all price providers failed and nothing is cached, serving default",
		"asset", id,
	)
	s.recordFallback(id, "default")
	q := DefaultQuote
	q.ID = id
	q.FetchedAt = s.now()
	q.Source = SourceDefault
	q.Degraded = true
	return q
}

// labelledAssets are the asset ids that get their own metric label. Any other
// id is reported as otherAsset so request input cannot grow label cardinality.
var labelledAssets = map[string]bool{
	NativeID:   true,
	"bitcoin":  true,
	"ethereum": true,
	"usd-coin": true,
	"tether":   true,
}

const otherAsset = "other"

func assetLabel(id string) string {
	if labelledAssets[id] {
		return id
	}
	return otherAsset
}

func (s *Source) recordLookup(id, result string) {
	if s.metrics != nil {
		s.metrics.RecordPriceCacheLookup(assetLabel(id), result)
	}
}

func (s *Source) recordProvider(name, status string) {
	if s.metrics != nil {
		s.metrics.RecordPriceProviderCall(name, status)
	}
}

func (s *Source) recordFallback(id, kind string) {
	if s.metrics != nil {
		s.metrics.RecordPriceFallback(assetLabel(id), kind)
	}
}
