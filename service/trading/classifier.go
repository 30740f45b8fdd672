// Package trading detects trading activity in raw transactions and builds the
// structured input for trade summaries.
package trading

import (
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/brojonat/walletlens/service/solana"
	"github.com/shopspring/decimal"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy     Side = "Buy"
	SideSell    Side = "Sell"
	SideUnknown Side = "Unknown"
)

// Classifier decides whether a raw transaction is a trade, which side it is
// on, and roughly how much it moved.
type Classifier interface {
	IsTrade(raw *solana.RawTransaction) bool
	Classify(raw *solana.RawTransaction) Side
	EstimateValue(raw *solana.RawTransaction) float64
}

// KeywordClassifier is a Classifier built on substring matching over the
// serialized transaction. It does not decode instruction data.
type KeywordClassifier struct {
	rules  Rules
	logger *slog.Logger
}

var _ Classifier = (*KeywordClassifier)(nil)

// NewKeywordClassifier creates a classifier from rules.
func NewKeywordClassifier(rules Rules, logger *slog.Logger) *KeywordClassifier {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &KeywordClassifier{
		rules:  rules.normalized(),
		logger: logger,
	}
}

// IsTrade reports whether raw looks like trading activity: a trade keyword in
// its type or body, or a transfer together with a nonzero balance change.
func (c *KeywordClassifier) IsTrade(raw *solana.RawTransaction) (ok bool) {
	if raw == nil {
		return false
	}
	defer c.recoverTo("is_trade", raw, func() { ok = false })

	if containsAny(strings.ToLower(raw.Type), c.rules.TradeKeywords) ||
		containsAny(raw.SearchText(), c.rules.TradeKeywords) {
		return true
	}
	return raw.HasTransfers() && hasBalanceChange(raw)
}

// Classify returns the side of raw. It is total: any failure yields SideUnknown.
//
// Transfers are compared against raw.Source, the transaction's reported source
// field, which is not necessarily the wallet being analyzed.
func (c *KeywordClassifier) Classify(raw *solana.RawTransaction) (side Side) {
	if raw == nil {
		return SideUnknown
	}
	defer c.recoverTo("classify", raw, func() { side = SideUnknown })

	typ := strings.ToLower(raw.Type)
	switch {
	case containsAny(typ, c.rules.BuyTypeHints):
		return SideBuy
	case containsAny(typ, c.rules.SellTypeHints):
		return SideSell
	}

	// Native spent by the source buys an asset.
	for _, t := range raw.NativeTransfers {
		if t.FromUserAccount == raw.Source && t.Amount > 0 {
			return SideBuy
		}
	}
	// Tokens given up by the source are a sale.
	for _, t := range raw.TokenTransfers {
		if t.FromUserAccount == raw.Source && t.TokenAmount > 0 {
			return SideSell
		}
	}

	body := raw.SearchText()
	switch {
	case containsAny(body, c.rules.BuyInstructions):
		return SideBuy
	case containsAny(body, c.rules.SellInstructions):
		return SideSell
	}
	return SideUnknown
}

// EstimateValue returns the larger of the summed transfer amounts and the
// summed balance-change magnitudes, in display units (SOL for native). The
// result is never negative.
func (c *KeywordClassifier) EstimateValue(raw *solana.RawTransaction) (value float64) {
	if raw == nil {
		return 0
	}
	defer c.recoverTo("estimate_value", raw, func() { value = 0 })

	var transfers float64
	for _, t := range raw.NativeTransfers {
		transfers += magnitude(solana.LamportsToSOL(t.Amount))
	}
	for _, t := range raw.TokenTransfers {
		transfers += magnitude(t.TokenAmount)
	}

	var changes float64
	for _, a := range raw.AccountData {
		changes += magnitude(solana.LamportsToSOL(a.NativeBalanceChange))
		for _, tc := range a.TokenBalanceChanges {
			changes += magnitude(tokenDelta(tc.RawTokenAmount))
		}
	}

	return math.Max(transfers, changes)
}

func (c *KeywordClassifier) recoverTo(op string, raw *solana.RawTransaction, fallback func()) {
	if r := recover(); r != nil {
		c.logger.Warn("classifier recovered from panic",
			"op", op,
			"signature", raw.Signature,
			"panic", r,
		)
		fallback()
	}
}

func hasBalanceChange(raw *solana.RawTransaction) bool {
	for _, a := range raw.AccountData {
		if a.NativeBalanceChange != 0 {
			return true
		}
		for _, tc := range a.TokenBalanceChanges {
			if tokenDelta(tc.RawTokenAmount) != 0 {
				return true
			}
		}
	}
	return false
}

// tokenDelta scales an integer token amount by its decimals. Unparseable
// amounts count as zero.
func tokenDelta(amt solana.RawTokenAmount) float64 {
	d, err := decimal.NewFromString(strings.TrimSpace(amt.TokenAmount))
	if err != nil {
		return 0
	}
	f, _ := d.Shift(-amt.Decimals).Float64()
	return f
}

// magnitude is |v|, with NaN and infinities treated as zero.
func magnitude(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Abs(v)
}
