package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Diagnostics logging
	LogFile       string
	LogBufferSize int

	// Solana configuration
	SolanaRPCURL string

	// Helius indexer configuration
	HeliusAPIKey     string
	HeliusBaseURL    string
	TransactionLimit int
	RequestTimeout   time.Duration

	// Price configuration
	PriceCacheTTL    time.Duration
	PriceProviders   []string
	PriceProviderRPS float64
	CoinGeckoAPIKey  string
	RedisURL         string

	// Summarizer configuration (OpenAI-compatible)
	SummarizerURL    string
	SummarizerAPIKey string
	SummarizerModel  string

	// Classifier configuration
	ClassifierRulesFile string

	// NATS configuration
	NATSURL string

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string

	// Refresh schedule configuration
	DefaultRefreshInterval time.Duration
	MinRefreshInterval     time.Duration
}

// LoadDotEnv loads variables from the given .env files (default ".env") into the
// process environment. Variables that are already set win. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.LogFile = os.Getenv("LOG_FILE")

	bufferSize, err := parseInt("LOG_BUFFER_SIZE", 500)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.LogBufferSize = bufferSize
	}

	// Solana configuration
	cfg.SolanaRPCURL = getEnvOrDefault("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")

	// Helius configuration
	cfg.HeliusAPIKey = os.Getenv("HELIUS_API_KEY")
	if cfg.HeliusAPIKey == "" {
		errs = append(errs, fmt.Errorf("HELIUS_API_KEY is required"))
	}
	cfg.HeliusBaseURL = getEnvOrDefault("HELIUS_BASE_URL", "https://api.helius.xyz")

	limit, err := parseInt("TRANSACTION_LIMIT", 50)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.TransactionLimit = limit
	}

	timeout, err := parseDuration("REQUEST_TIMEOUT", "10s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RequestTimeout = timeout
	}

	// Price configuration
	ttl, err := parseDuration("PRICE_CACHE_TTL", "1h")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.PriceCacheTTL = ttl
	}
	cfg.PriceProviders = parseList(getEnvOrDefault("PRICE_PROVIDERS", "coingecko,binance,coincap"))
	if len(cfg.PriceProviders) == 0 {
		errs = append(errs, fmt.Errorf("PRICE_PROVIDERS must name at least one provider"))
	}

	rps, err := parseFloat("PRICE_PROVIDER_RPS", 1)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.PriceProviderRPS = rps
	}
	cfg.CoinGeckoAPIKey = os.Getenv("COINGECKO_API_KEY")
	cfg.RedisURL = os.Getenv("REDIS_URL")

	// Summarizer configuration
	cfg.SummarizerURL = getEnvOrDefault("SUMMARIZER_URL", "https://api.openai.com")
	cfg.SummarizerAPIKey = os.Getenv("SUMMARIZER_API_KEY")
	cfg.SummarizerModel = getEnvOrDefault("SUMMARIZER_MODEL", "gpt-4o-mini")

	// Classifier configuration
	cfg.ClassifierRulesFile = os.Getenv("CLASSIFIER_RULES_FILE")

	// NATS configuration
	cfg.NATSURL = getEnvOrDefault("NATS_URL", "nats://localhost:4222")

	// Temporal configuration
	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "walletlens-refresh")

	// Refresh schedule configuration
	defaultInterval, err := parseDuration("DEFAULT_REFRESH_INTERVAL", "5m")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.DefaultRefreshInterval = defaultInterval
	}

	minInterval, err := parseDuration("MIN_REFRESH_INTERVAL", "1m")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MinRefreshInterval = minInterval
	}

	// Validate intervals
	if cfg.MinRefreshInterval > cfg.DefaultRefreshInterval {
		errs = append(errs, fmt.Errorf("MIN_REFRESH_INTERVAL (%v) cannot be greater than DEFAULT_REFRESH_INTERVAL (%v)",
			cfg.MinRefreshInterval, cfg.DefaultRefreshInterval))
	}

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.HeliusAPIKey == "" {
		errs = append(errs, fmt.Errorf("HeliusAPIKey is required"))
	}

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}

	if c.TransactionLimit <= 0 || c.TransactionLimit > 100 {
		errs = append(errs, fmt.Errorf("TransactionLimit must be between 1 and 100"))
	}

	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("RequestTimeout must be positive"))
	}

	if c.PriceCacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("PriceCacheTTL must be positive"))
	}

	if len(c.PriceProviders) == 0 {
		errs = append(errs, fmt.Errorf("PriceProviders must not be empty"))
	}

	if c.LogBufferSize <= 0 {
		errs = append(errs, fmt.Errorf("LogBufferSize must be positive"))
	}

	if c.TemporalHost == "" {
		errs = append(errs, fmt.Errorf("TemporalHost is required"))
	}

	if c.TemporalNamespace == "" {
		errs = append(errs, fmt.Errorf("TemporalNamespace is required"))
	}

	if c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TemporalTaskQueue is required"))
	}

	if c.MinRefreshInterval > c.DefaultRefreshInterval {
		errs = append(errs, fmt.Errorf("MinRefreshInterval cannot be greater than DefaultRefreshInterval"))
	}

	if c.DefaultRefreshInterval < time.Second {
		errs = append(errs, fmt.Errorf("DefaultRefreshInterval must be at least 1 second"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

// parseFloat parses a float from an environment variable or uses a default.
func parseFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q: %w", key, value, err)
	}
	return result, nil
}

// parseList splits a comma-separated value, dropping blanks.
func parseList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
