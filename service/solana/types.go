package solana

import (
	"encoding/json"
	"strings"
	"time"
)

// NativeSymbol is the display symbol of the chain's settlement asset.
const NativeSymbol = "SOL"

// RawTransaction is a transaction as returned by the enhanced transactions API.
// It is treated as immutable once decoded.
type RawTransaction struct {
	Signature string `json:"signature"`
	// Type is the indexer's own classification hint. It is not reliable.
	Type string `json:"type"`
	// Source is the transaction's reported source field. It is not guaranteed
	// to be the wallet that was queried.
	Source           string          `json:"source"`
	FeePayer         string          `json:"feePayer,omitempty"`
	Timestamp        int64           `json:"timestamp"`
	Fee              uint64          `json:"fee"` // lamports
	TransactionError json.RawMessage `json:"transactionError,omitempty"`
	NativeTransfers  []NativeTransfer `json:"nativeTransfers"`
	TokenTransfers   []TokenTransfer  `json:"tokenTransfers"`
	AccountData      []AccountData    `json:"accountData"`
}

// NativeTransfer moves lamports between two accounts.
type NativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          int64  `json:"amount"` // lamports
}

// TokenTransfer moves an SPL token between two owners. TokenAmount is already
// scaled to display units by the indexer.
type TokenTransfer struct {
	FromUserAccount  string  `json:"fromUserAccount"`
	ToUserAccount    string  `json:"toUserAccount"`
	FromTokenAccount string  `json:"fromTokenAccount,omitempty"`
	ToTokenAccount   string  `json:"toTokenAccount,omitempty"`
	Mint             string  `json:"mint"`
	TokenAmount      float64 `json:"tokenAmount"`
}

// AccountData holds the balance deltas of one account touched by the transaction.
type AccountData struct {
	Account             string               `json:"account"`
	NativeBalanceChange int64                `json:"nativeBalanceChange"` // lamports
	TokenBalanceChanges []TokenBalanceChange `json:"tokenBalanceChanges"`
}

// TokenBalanceChange is a per-mint token delta for one token account.
type TokenBalanceChange struct {
	UserAccount    string         `json:"userAccount"`
	TokenAccount   string         `json:"tokenAccount"`
	Mint           string         `json:"mint"`
	RawTokenAmount RawTokenAmount `json:"rawTokenAmount"`
}

// RawTokenAmount is an integer token amount (as a string, it may exceed int64)
// together with the mint's decimal precision.
type RawTokenAmount struct {
	TokenAmount string `json:"tokenAmount"`
	Decimals    int32  `json:"decimals"`
}

// Time returns the block time of the transaction.
func (t *RawTransaction) Time() time.Time {
	return time.Unix(t.Timestamp, 0).UTC()
}

// Failed reports whether the indexer flagged the transaction as failed.
func (t *RawTransaction) Failed() bool {
	if len(t.TransactionError) == 0 {
		return false
	}
	return string(t.TransactionError) != "null"
}

// HasTransfers reports whether the transaction carries any native or token transfer.
func (t *RawTransaction) HasTransfers() bool {
	return len(t.NativeTransfers) > 0 || len(t.TokenTransfers) > 0
}

// SearchText returns the lower-cased JSON serialization of the whole
// transaction. Keyword heuristics match against this text.
func (t *RawTransaction) SearchText() string {
	b, err := json.Marshal(t)
	if err != nil {
		return strings.ToLower(t.Type + " " + t.Source)
	}
	return strings.ToLower(string(b))
}

// LamportsToSOL converts lamports into SOL display units.
func LamportsToSOL(lamports int64) float64 {
	return float64(lamports) / float64(LamportsPerSOL)
}
