package dashboard

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/brojonat/walletlens/service/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildConfig() *config.Config {
	return &config.Config{
		SolanaRPCURL:     "http://127.0.0.1:1",
		HeliusAPIKey:     "k",
		HeliusBaseURL:    "http://127.0.0.1:1",
		TransactionLimit: 30,
		RequestTimeout:   2 * time.Second,
		PriceCacheTTL:    time.Minute,
		PriceProviders:   []string{"coingecko", "binance"},
		PriceProviderRPS: 1,
	}
}

func TestBuild(t *testing.T) {
	svc, prices, cleanup, err := Build(context.Background(), buildConfig(), nil, nil)
	require.NoError(t, err)
	defer cleanup()

	require.NotNil(t, svc)
	require.NotNil(t, prices)
	assert.Equal(t, 30, svc.opts.TransactionLimit)
	assert.Equal(t, 2*time.Second, svc.opts.StepTimeout)
	assert.Nil(t, svc.summarizer, "no API key leaves the summarizer unset")
}

func TestBuild_WithSummarizer(t *testing.T) {
	cfg := buildConfig()
	cfg.SummarizerAPIKey = "sk-test"

	svc, _, cleanup, err := Build(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	defer cleanup()
	assert.NotNil(t, svc.summarizer)
}

func TestBuild_RedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := buildConfig()
	cfg.RedisURL = "redis://" + mr.Addr()

	_, prices, cleanup, err := Build(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, prices)
	cleanup()
}

func TestBuild_Errors(t *testing.T) {
	t.Run("unknown provider", func(t *testing.T) {
		cfg := buildConfig()
		cfg.PriceProviders = []string{"nasdaq"}

		_, _, cleanup, err := Build(context.Background(), cfg, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown price provider")
		cleanup()
	})

	t.Run("unreachable redis", func(t *testing.T) {
		cfg := buildConfig()
		cfg.RedisURL = "redis://127.0.0.1:1"

		_, _, cleanup, err := Build(context.Background(), cfg, nil, nil)
		require.Error(t, err)
		cleanup()
	})

	t.Run("missing rules file", func(t *testing.T) {
		cfg := buildConfig()
		cfg.ClassifierRulesFile = filepath.Join(t.TempDir(), "missing.yaml")

		_, _, cleanup, err := Build(context.Background(), cfg, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "classifier rules")
		cleanup()
	})
}

func TestBuild_RulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trade_keywords: [\"pump\"]\n"), 0o600))

	cfg := buildConfig()
	cfg.ClassifierRulesFile = path

	svc, _, cleanup, err := Build(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	defer cleanup()
	require.NotNil(t, svc.analyzer)
}
