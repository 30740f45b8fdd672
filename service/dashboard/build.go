package dashboard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/brojonat/walletlens/service/config"
	"github.com/brojonat/walletlens/service/feed"
	"github.com/brojonat/walletlens/service/helius"
	"github.com/brojonat/walletlens/service/metrics"
	"github.com/brojonat/walletlens/service/price"
	"github.com/brojonat/walletlens/service/solana"
	"github.com/brojonat/walletlens/service/summarize"
	"github.com/brojonat/walletlens/service/trading"
)

// Build wires a Service and its price source from cfg. The returned cleanup
// releases the Redis connection, if one was opened.
func Build(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (*Service, *price.Source, func(), error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	cleanup := func() {}
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}

	// Price cache: Redis when configured so quotes survive restarts and are
	// shared between the server and the worker.
	var cache price.Cache = price.NewMemoryCache()
	if cfg.RedisURL != "" {
		rdb, err := price.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, cleanup, err
		}
		cache = price.NewRedisCache(rdb, 0)
		cleanup = func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("failed to close redis", "error", err)
			}
		}
		logger.Info("using redis price cache")
	}

	providers, err := price.NewProviders(cfg.PriceProviders, cfg.CoinGeckoAPIKey, httpClient, cfg.PriceProviderRPS)
	if err != nil {
		cleanup()
		return nil, nil, func() {}, err
	}
	prices := price.NewSource(providers, cache, cfg.PriceCacheTTL, m, logger)

	chain := solana.NewClient(solana.NewRPCClient(cfg.SolanaRPCURL), cfg.SolanaRPCURL, m, logger)
	indexer := helius.NewClient(cfg.HeliusBaseURL, cfg.HeliusAPIKey, httpClient, m, logger)

	rules := trading.DefaultRules()
	if cfg.ClassifierRulesFile != "" {
		rules, err = trading.LoadRules(cfg.ClassifierRulesFile)
		if err != nil {
			cleanup()
			return nil, nil, func() {}, fmt.Errorf("failed to load classifier rules: %w", err)
		}
		logger.Info("loaded classifier rules", "path", cfg.ClassifierRulesFile)
	}

	var summarizer trading.Summarizer
	if cfg.SummarizerAPIKey != "" {
		summarizer = summarize.NewClient(summarize.Config{
			BaseURL: cfg.SummarizerURL,
			APIKey:  cfg.SummarizerAPIKey,
			Model:   cfg.SummarizerModel,
		}, nil, m, logger)
	} else {
		logger.Warn("SUMMARIZER_API_KEY not set, analyses will be unavailable")
	}

	svc := NewService(
		prices,
		chain,
		indexer,
		indexer,
		feed.NewNormalizer(nil, m, logger),
		trading.NewAnalyzer(trading.NewKeywordClassifier(rules, logger), summarizer, m, logger),
		summarizer,
		Options{TransactionLimit: cfg.TransactionLimit, StepTimeout: cfg.RequestTimeout},
		m,
		logger,
	)
	return svc, prices, cleanup, nil
}
