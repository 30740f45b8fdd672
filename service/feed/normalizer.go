// Package feed turns raw indexer transactions into the wallet's activity feed.
package feed

import (
	"cmp"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/brojonat/walletlens/service/metrics"
	"github.com/brojonat/walletlens/service/solana"
)

// TxType is the inferred kind of a feed entry.
type TxType string

const (
	TypeSendNative    TxType = "SendNative"
	TypeReceiveNative TxType = "ReceiveNative"
	TypeSendToken     TxType = "SendToken"
	TypeReceiveToken  TxType = "ReceiveToken"
	TypeSwap          TxType = "Swap"
	TypeUnknown       TxType = "Unknown"
)

// Status of a feed entry.
type Status string

const (
	StatusSuccess Status = "Success"
	StatusError   Status = "Error"
)

const (
	// DustThreshold is the smallest native amount (in SOL) kept in the feed.
	DustThreshold = 0.001
	// TokenSymbol is the placeholder symbol for SPL token transfers.
	TokenSymbol = "SPL"
)

// DefaultSwapKeywords name DEX venues whose presence in a transaction body
// marks it as a swap.
var DefaultSwapKeywords = []string{
	"jupiter",
	"raydium",
	"orca",
	"whirlpool",
	"meteora",
	"openbook",
	"serum",
	"lifinity",
	"phoenix",
	"pump_amm",
}

// NormalizedTransaction is one entry of the activity feed.
type NormalizedTransaction struct {
	Signature   string    `json:"signature"`
	Type        TxType    `json:"type"`
	Amount      float64   `json:"amount"`
	Symbol      string    `json:"symbol"`
	Timestamp   time.Time `json:"timestamp"`
	Status      Status    `json:"status"`
	Fee         float64   `json:"fee"` // SOL
	Description string    `json:"description"`
}

// Normalizer converts raw transactions into feed entries.
type Normalizer struct {
	swapKeywords []string
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// NewNormalizer creates a Normalizer. A nil keyword list selects DefaultSwapKeywords.
// If metrics is nil, no metrics will be recorded.
func NewNormalizer(swapKeywords []string, m *metrics.Metrics, logger *slog.Logger) *Normalizer {
	if swapKeywords == nil {
		swapKeywords = DefaultSwapKeywords
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	lowered := make([]string, 0, len(swapKeywords))
	for _, k := range swapKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	return &Normalizer{
		swapKeywords: lowered,
		metrics:      m,
		logger:       logger,
	}
}

// Normalize converts raw into a feed entry for wallet. It returns nil when the
// transaction has no amount, is native dust, or cannot be processed.
// It never panics.
func (n *Normalizer) Normalize(raw *solana.RawTransaction, wallet string) (out *NormalizedTransaction) {
	if raw == nil {
		n.dropped("nil", "")
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			n.logger.Warn("dropping transaction that failed to normalize",
				"signature", raw.Signature,
				"panic", fmt.Sprint(r),
			)
			n.dropped("panic", raw.Signature)
			out = nil
		}
	}()

	tx := &NormalizedTransaction{
		Signature: raw.Signature,
		Type:      typeFromHint(raw.Type),
		Symbol:    solana.NativeSymbol,
		Timestamp: raw.Time(),
		Status:    StatusSuccess,
		Fee:       solana.LamportsToSOL(int64(raw.Fee)),
	}
	if raw.Failed() {
		tx.Status = StatusError
	}

	// Only the first transfer of each kind is considered.
	switch {
	case len(raw.NativeTransfers) > 0:
		t := raw.NativeTransfers[0]
		tx.Amount = math.Abs(solana.LamportsToSOL(t.Amount))
		tx.Description = fmt.Sprintf("Transferred %.3f %s", tx.Amount, solana.NativeSymbol)
		switch wallet {
		case t.FromUserAccount:
			tx.Type = TypeSendNative
			tx.Description = fmt.Sprintf("Sent %.3f %s", tx.Amount, solana.NativeSymbol)
		case t.ToUserAccount:
			tx.Type = TypeReceiveNative
			tx.Description = fmt.Sprintf("Received %.3f %s", tx.Amount, solana.NativeSymbol)
		}
	case len(raw.TokenTransfers) > 0:
		t := raw.TokenTransfers[0]
		tx.Amount = math.Abs(t.TokenAmount)
		tx.Symbol = TokenSymbol
		tx.Description = fmt.Sprintf("Transferred %.3f tokens", tx.Amount)
		switch wallet {
		case t.FromUserAccount:
			tx.Type = TypeSendToken
			tx.Description = fmt.Sprintf("Sent %.3f tokens", tx.Amount)
		case t.ToUserAccount:
			tx.Type = TypeReceiveToken
			tx.Description = fmt.Sprintf("Received %.3f tokens", tx.Amount)
		}
	}

	if n.isSwap(raw) {
		tx.Type = TypeSwap
		tx.Description = "Token Swap"
	}

	if math.IsNaN(tx.Amount) || math.IsInf(tx.Amount, 0) {
		n.dropped("invalid_amount", raw.Signature)
		return nil
	}
	if tx.Amount == 0 {
		n.dropped("zero_amount", raw.Signature)
		return nil
	}
	if tx.Symbol == solana.NativeSymbol && tx.Amount < DustThreshold {
		n.dropped("dust", raw.Signature)
		return nil
	}

	if n.metrics != nil {
		n.metrics.RecordTransactionNormalized(string(tx.Type))
	}
	return tx
}

// NormalizeBatch normalizes every raw transaction and returns the surviving
// entries, most recent first. Entries with equal timestamps keep input order.
func (n *Normalizer) NormalizeBatch(raws []solana.RawTransaction, wallet string) []NormalizedTransaction {
	out := make([]NormalizedTransaction, 0, len(raws))
	for i := range raws {
		if tx := n.Normalize(&raws[i], wallet); tx != nil {
			out = append(out, *tx)
		}
	}
	slices.SortStableFunc(out, func(a, b NormalizedTransaction) int {
		return cmp.Compare(b.Timestamp.UnixNano(), a.Timestamp.UnixNano())
	})

	n.logger.Debug("normalized transactions",
		"wallet", wallet,
		"input", len(raws),
		"kept", len(out),
	)
	return out
}

func (n *Normalizer) isSwap(raw *solana.RawTransaction) bool {
	text := raw.SearchText()
	for _, k := range n.swapKeywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func (n *Normalizer) dropped(reason, signature string) {
	n.logger.Debug("transaction dropped from feed", "reason", reason, "signature", signature)
	if n.metrics != nil {
		n.metrics.RecordTransactionDropped(reason)
	}
}

// typeFromHint maps the indexer's type string onto our types.
func typeFromHint(hint string) TxType {
	switch strings.ToUpper(hint) {
	case "SWAP":
		return TypeSwap
	default:
		return TypeUnknown
	}
}
