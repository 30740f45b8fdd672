// Package dashboard composes a wallet's dashboard: price, portfolio, activity
// feed, trading summary and analyses.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/walletlens/service/feed"
	"github.com/brojonat/walletlens/service/helius"
	"github.com/brojonat/walletlens/service/metrics"
	"github.com/brojonat/walletlens/service/portfolio"
	"github.com/brojonat/walletlens/service/price"
	"github.com/brojonat/walletlens/service/solana"
	"github.com/brojonat/walletlens/service/trading"
	solanago "github.com/gagliardetto/solana-go"
)

const (
	DefaultTransactionLimit = 50
	DefaultStepTimeout      = 10 * time.Second

	marketAnalystPersona = "You are a concise cryptocurrency market analyst. Answer in at most three sentences."
)

// ErrInvalidAddress is returned before any fetch when the wallet address is malformed.
var ErrInvalidAddress = errors.New("invalid wallet address")

// Step names used in UpstreamError.
const (
	StepBalance      = "balance"
	StepTransactions = "transactions"
)

// UpstreamError reports a required upstream fetch that failed. Data fetched
// before the failure is discarded.
type UpstreamError struct {
	Step string
	Err  error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Step, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// KnownMints maps well-known token mints onto price identifiers. Tokens not
// listed here have no price and contribute nothing to the portfolio value.
var KnownMints = map[string]string{
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": "usd-coin",
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": "tether",
	"So11111111111111111111111111111111111111112":  price.NativeID,
}

// PriceSource resolves a quote. It must not fail.
type PriceSource interface {
	GetPrice(ctx context.Context, id string) price.Quote
}

// ChainReader reads wallet state from the chain.
type ChainReader interface {
	GetBalance(ctx context.Context, wallet solanago.PublicKey) (float64, error)
	GetTokenAccounts(ctx context.Context, wallet solanago.PublicKey) ([]solana.TokenAccountBalance, error)
}

// TransactionSource lists recent raw transactions of an address.
type TransactionSource interface {
	GetTransactions(ctx context.Context, address string, limit int) ([]solana.RawTransaction, error)
}

// MetadataSource resolves token display metadata.
type MetadataSource interface {
	TokenMetadata(ctx context.Context, mints []string) ([]helius.TokenMetadata, error)
}

// Dashboard is everything shown for one wallet.
type Dashboard struct {
	Address        string                       `json:"address"`
	GeneratedAt    time.Time                    `json:"generated_at"`
	Price          price.Quote                  `json:"price"`
	Portfolio      portfolio.Portfolio          `json:"portfolio"`
	Tokens         []portfolio.TokenAccountInfo `json:"tokens"`
	Transactions   []feed.NormalizedTransaction `json:"transactions"`
	Trading        trading.Summary              `json:"trading"`
	TradeAnalysis  string                       `json:"trade_analysis"`
	MarketAnalysis string                       `json:"market_analysis"`
}

// PortfolioView is the valuation part of a dashboard.
type PortfolioView struct {
	Address   string                       `json:"address"`
	Price     price.Quote                  `json:"price"`
	Portfolio portfolio.Portfolio          `json:"portfolio"`
	Tokens    []portfolio.TokenAccountInfo `json:"tokens"`
}

// TradesView is the trading part of a dashboard.
type TradesView struct {
	Address  string          `json:"address"`
	Trading  trading.Summary `json:"trading"`
	Analysis string          `json:"analysis"`
}

// Options tune a Service.
type Options struct {
	TransactionLimit int
	StepTimeout      time.Duration
}

// Service loads dashboards. Steps run one after another, each bounded by
// StepTimeout.
type Service struct {
	prices     PriceSource
	chain      ChainReader
	txns       TransactionSource
	metadata   MetadataSource
	normalizer *feed.Normalizer
	analyzer   *trading.Analyzer
	summarizer trading.Summarizer
	opts       Options
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewService creates a Service. summarizer may be nil.
// If metrics is nil, no metrics will be recorded.
func NewService(
	prices PriceSource,
	chain ChainReader,
	txns TransactionSource,
	metadata MetadataSource,
	normalizer *feed.Normalizer,
	analyzer *trading.Analyzer,
	summarizer trading.Summarizer,
	opts Options,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	if opts.TransactionLimit <= 0 {
		opts.TransactionLimit = DefaultTransactionLimit
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = DefaultStepTimeout
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Service{
		prices:     prices,
		chain:      chain,
		txns:       txns,
		metadata:   metadata,
		normalizer: normalizer,
		analyzer:   analyzer,
		summarizer: summarizer,
		opts:       opts,
		metrics:    m,
		logger:     logger,
	}
}

// ParseAddress validates address and returns its public key. Errors wrap
// ErrInvalidAddress.
func ParseAddress(address string) (solanago.PublicKey, error) {
	pk, err := solana.ParseAddress(address)
	if err != nil {
		return solanago.PublicKey{}, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return pk, nil
}

// Load builds the full dashboard for address.
func (s *Service) Load(ctx context.Context, address string) (_ *Dashboard, err error) {
	start := time.Now()
	defer func() { s.recordLoad(start, err) }()

	wallet, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With("wallet", address)

	quote := s.nativePrice(ctx)
	view, err := s.portfolio(ctx, wallet, quote)
	if err != nil {
		return nil, err
	}

	raws, err := s.transactions(ctx, address, s.opts.TransactionLimit)
	if err != nil {
		return nil, err
	}

	txns := s.normalizer.NormalizeBatch(raws, address)
	summary := s.analyzer.Summarize(raws)
	tradeAnalysis := s.withTimeoutString(ctx, func(ctx context.Context) string {
		return s.analyzer.AnalyzeSummary(ctx, summary)
	})
	marketAnalysis := s.withTimeoutString(ctx, func(ctx context.Context) string {
		return s.marketAnalysis(ctx, quote)
	})

	logger.InfoContext(ctx, "dashboard loaded",
		"transactions", len(txns),
		"trades", summary.TotalTrades,
		"tokens", len(view.Tokens),
		"total_value", view.Portfolio.TotalValue,
		"price_degraded", quote.Degraded,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &Dashboard{
		Address:        address,
		GeneratedAt:    time.Now().UTC(),
		Price:          quote,
		Portfolio:      view.Portfolio,
		Tokens:         view.Tokens,
		Transactions:   txns,
		Trading:        summary,
		TradeAnalysis:  tradeAnalysis,
		MarketAnalysis: marketAnalysis,
	}, nil
}

// Transactions returns the normalized feed for address. limit <= 0 uses the
// configured default.
func (s *Service) Transactions(ctx context.Context, address string, limit int) ([]feed.NormalizedTransaction, error) {
	if _, err := ParseAddress(address); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.opts.TransactionLimit
	}
	raws, err := s.transactions(ctx, address, limit)
	if err != nil {
		return nil, err
	}
	return s.normalizer.NormalizeBatch(raws, address), nil
}

// Portfolio returns the valuation of address.
func (s *Service) Portfolio(ctx context.Context, address string) (*PortfolioView, error) {
	wallet, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	return s.portfolio(ctx, wallet, s.nativePrice(ctx))
}

// Trades returns the trading summary and its analysis for address.
func (s *Service) Trades(ctx context.Context, address string) (*TradesView, error) {
	if _, err := ParseAddress(address); err != nil {
		return nil, err
	}
	raws, err := s.transactions(ctx, address, s.opts.TransactionLimit)
	if err != nil {
		return nil, err
	}
	summary := s.analyzer.Summarize(raws)
	analysis := s.withTimeoutString(ctx, func(ctx context.Context) string {
		return s.analyzer.AnalyzeSummary(ctx, summary)
	})
	return &TradesView{Address: address, Trading: summary, Analysis: analysis}, nil
}

// Price returns the quote for id.
func (s *Service) Price(ctx context.Context, id string) price.Quote {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StepTimeout)
	defer cancel()
	return s.prices.GetPrice(ctx, id)
}

func (s *Service) nativePrice(ctx context.Context) price.Quote {
	return s.Price(ctx, price.NativeID)
}

// portfolio runs the balance, token-account, metadata and token-price steps.
// Only the balance step is fatal.
func (s *Service) portfolio(ctx context.Context, wallet solanago.PublicKey, quote price.Quote) (*PortfolioView, error) {
	address := wallet.String()

	balance, err := s.balance(ctx, wallet)
	if err != nil {
		return nil, err
	}

	accounts := s.tokenAccounts(ctx, wallet)
	s.applyMetadata(ctx, accounts)
	s.applyTokenPrices(ctx, accounts)

	return &PortfolioView{
		Address:   address,
		Price:     quote,
		Portfolio: portfolio.Aggregate(balance, quote, accounts),
		Tokens:    accounts,
	}, nil
}

func (s *Service) balance(ctx context.Context, wallet solanago.PublicKey) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StepTimeout)
	defer cancel()

	balance, err := s.chain.GetBalance(ctx, wallet)
	if err != nil {
		return 0, &UpstreamError{Step: StepBalance, Err: err}
	}
	return balance, nil
}

// tokenAccounts degrades to an empty list when the lookup fails.
func (s *Service) tokenAccounts(ctx context.Context, wallet solanago.PublicKey) []portfolio.TokenAccountInfo {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StepTimeout)
	defer cancel()

	balances, err := s.chain.GetTokenAccounts(ctx, wallet)
	if err != nil {
		s.logger.WarnContext(ctx, "token accounts unavailable, continuing without tokens",
			"wallet", wallet.String(),
			"error", err,
		)
		return []portfolio.TokenAccountInfo{}
	}
	return portfolio.FromBalances(balances)
}

// applyMetadata leaves the Unknown defaults in place when the lookup fails.
func (s *Service) applyMetadata(ctx context.Context, accounts []portfolio.TokenAccountInfo) {
	mints := portfolio.Mints(accounts)
	if len(mints) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.StepTimeout)
	defer cancel()

	metas, err := s.metadata.TokenMetadata(ctx, mints)
	if err != nil {
		s.logger.WarnContext(ctx, "token metadata unavailable, using defaults",
			"mints", len(mints),
			"error", err,
		)
		return
	}
	portfolio.ApplyMetadata(accounts, metas)
}

// applyTokenPrices leaves a mint unpriced when its quote is the default sentinel.
func (s *Service) applyTokenPrices(ctx context.Context, accounts []portfolio.TokenAccountInfo) {
	prices := make(map[string]float64)
	for _, mint := range portfolio.Mints(accounts) {
		id, ok := KnownMints[mint]
		if !ok {
			continue
		}
		q := s.Price(ctx, id)
		if q.Source == price.SourceDefault {
			// The default quote stands in for the native asset only.
			continue
		}
		prices[mint] = q.Price
	}
	portfolio.ApplyPrices(accounts, prices)
}

func (s *Service) transactions(ctx context.Context, address string, limit int) ([]solana.RawTransaction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StepTimeout)
	defer cancel()

	raws, err := s.txns.GetTransactions(ctx, address, limit)
	if err != nil {
		return nil, &UpstreamError{Step: StepTransactions, Err: err}
	}
	return raws, nil
}

func (s *Service) marketAnalysis(ctx context.Context, q price.Quote) string {
	if s.summarizer == nil {
		s.recordSummarization("empty")
		return trading.UnavailableAnalysis
	}
	text, err := s.summarizer.Summarize(ctx, MarketPrompt(q), marketAnalystPersona)
	if err != nil {
		s.logger.WarnContext(ctx, "market analysis failed", "error", err)
		s.recordSummarization("error")
		return trading.FailedAnalysis
	}
	if text = strings.TrimSpace(text); text == "" {
		s.recordSummarization("empty")
		return trading.UnavailableAnalysis
	}
	s.recordSummarization("success")
	return text
}

// MarketPrompt formats price statistics as the structured input for the market summary.
func MarketPrompt(q price.Quote) string {
	var b strings.Builder
	b.WriteString("Summarize current market conditions for SOL.\n")
	fmt.Fprintf(&b, "Price: $%.2f\n", q.Price)
	fmt.Fprintf(&b, "24h change: %+.2f%%\n", q.Change24h)
	if q.Degraded {
		b.WriteString("Note: live price data is unavailable, figures may be stale.\n")
	}
	b.WriteString("Comment on momentum and risk.")
	return b.String()
}

func (s *Service) withTimeoutString(ctx context.Context, fn func(context.Context) string) string {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StepTimeout)
	defer cancel()
	return fn(ctx)
}

func (s *Service) recordSummarization(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordSummarization("market", outcome)
	}
}

func (s *Service) recordLoad(start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	var upstream *UpstreamError
	switch {
	case errors.Is(err, ErrInvalidAddress):
		status = "invalid_address"
	case errors.As(err, &upstream):
		status = "upstream_error"
	case err != nil:
		status = "error"
	}
	s.metrics.RecordDashboardLoad(status, time.Since(start).Seconds())
}
