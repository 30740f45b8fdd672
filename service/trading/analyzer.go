package trading

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/brojonat/walletlens/service/metrics"
	"github.com/brojonat/walletlens/service/solana"
)

const (
	// RecentTradeCount is how many of the most recent trades are quoted in the prompt.
	RecentTradeCount = 5

	NoActivityAnalysis  = "No recent trading activity detected for this wallet, so there is little signal about its trading behavior."
	UnavailableAnalysis = "Batch analysis unavailable"
	FailedAnalysis      = "Unable to analyze transactions"
	tradeAnalystPersona = "You are a concise cryptocurrency trading analyst. Answer in at most three sentences."
	summaryKind         = "trades"
)

// Summarizer produces free-text analysis from a prompt.
type Summarizer interface {
	Summarize(ctx context.Context, prompt, persona string) (string, error)
}

// TradeRecord is one classified trade.
type TradeRecord struct {
	Signature  string    `json:"signature"`
	Side       Side      `json:"side"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
	SourceType string    `json:"source_type"`
}

// Summary aggregates the trades found in a batch of transactions.
type Summary struct {
	BuyCount          int           `json:"buy_count"`
	SellCount         int           `json:"sell_count"`
	TotalTrades       int           `json:"total_trades"`
	AverageTradeValue float64       `json:"average_trade_value"`
	Recent            []TradeRecord `json:"recent"`
}

// Analyzer builds trade summaries and delegates their narration to a Summarizer.
type Analyzer struct {
	classifier Classifier
	summarizer Summarizer
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewAnalyzer creates an Analyzer. summarizer may be nil, in which case
// AnalyzeBatch returns UnavailableAnalysis for non-empty batches.
// If metrics is nil, no metrics will be recorded.
func NewAnalyzer(classifier Classifier, summarizer Summarizer, m *metrics.Metrics, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Analyzer{
		classifier: classifier,
		summarizer: summarizer,
		metrics:    m,
		logger:     logger,
	}
}

// Trades classifies every trade in raws, most recent first.
func (a *Analyzer) Trades(raws []solana.RawTransaction) []TradeRecord {
	trades := make([]TradeRecord, 0, len(raws))
	for i := range raws {
		raw := &raws[i]
		if !a.classifier.IsTrade(raw) {
			continue
		}
		rec := TradeRecord{
			Signature:  raw.Signature,
			Side:       a.classifier.Classify(raw),
			Value:      a.classifier.EstimateValue(raw),
			Timestamp:  raw.Time(),
			SourceType: raw.Type,
		}
		if a.metrics != nil {
			a.metrics.RecordTradeClassified(string(rec.Side))
		}
		trades = append(trades, rec)
	}
	slices.SortStableFunc(trades, func(x, y TradeRecord) int {
		return cmp.Compare(y.Timestamp.UnixNano(), x.Timestamp.UnixNano())
	})
	return trades
}

// Summarize computes trade statistics for raws.
func (a *Analyzer) Summarize(raws []solana.RawTransaction) Summary {
	trades := a.Trades(raws)

	s := Summary{TotalTrades: len(trades)}
	var total float64
	for _, t := range trades {
		switch t.Side {
		case SideBuy:
			s.BuyCount++
		case SideSell:
			s.SellCount++
		}
		total += t.Value
	}
	if s.TotalTrades > 0 {
		s.AverageTradeValue = total / float64(s.TotalTrades)
	}
	s.Recent = trades[:min(RecentTradeCount, len(trades))]
	return s
}

// AnalyzeBatch summarizes raws and returns a short narrative. It never fails:
// summarizer errors and empty answers map to fixed fallback text.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, raws []solana.RawTransaction) string {
	return a.AnalyzeSummary(ctx, a.Summarize(raws))
}

// AnalyzeSummary narrates an already computed Summary. See AnalyzeBatch.
func (a *Analyzer) AnalyzeSummary(ctx context.Context, s Summary) string {
	if s.TotalTrades == 0 {
		a.recordSummarization("skipped")
		return NoActivityAnalysis
	}
	if a.summarizer == nil {
		a.recordSummarization("empty")
		return UnavailableAnalysis
	}

	text, err := a.summarizer.Summarize(ctx, BuildPrompt(s), tradeAnalystPersona)
	if err != nil {
		a.logger.WarnContext(ctx, "trade analysis failed", "error", err)
		a.recordSummarization("error")
		return FailedAnalysis
	}
	text = strings.TrimSpace(text)
	if text == "" {
		a.recordSummarization("empty")
		return UnavailableAnalysis
	}
	a.recordSummarization("success")
	return text
}

// BuildPrompt formats s as the structured input for the trade summary.
func BuildPrompt(s Summary) string {
	var b strings.Builder
	b.WriteString("Analyze this wallet's recent trading activity.\n")
	fmt.Fprintf(&b, "Total trades: %d\n", s.TotalTrades)
	fmt.Fprintf(&b, "Buys: %d\n", s.BuyCount)
	fmt.Fprintf(&b, "Sells: %d\n", s.SellCount)
	fmt.Fprintf(&b, "Average trade value: %.4f SOL\n", s.AverageTradeValue)
	if len(s.Recent) > 0 {
		b.WriteString("Most recent trades:\n")
		for _, t := range s.Recent {
			fmt.Fprintf(&b, "- %s %s %.4f SOL (%s)\n",
				t.Timestamp.Format(time.RFC3339), t.Side, t.Value, t.SourceType)
		}
	}
	b.WriteString("Describe the trading pattern and overall sentiment.")
	return b.String()
}

func (a *Analyzer) recordSummarization(outcome string) {
	if a.metrics != nil {
		a.metrics.RecordSummarization(summaryKind, outcome)
	}
}
