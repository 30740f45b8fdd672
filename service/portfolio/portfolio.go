// Package portfolio values a wallet's native balance and token holdings.
package portfolio

import (
	"cmp"
	"math"
	"slices"

	"github.com/brojonat/walletlens/service/helius"
	"github.com/brojonat/walletlens/service/price"
	"github.com/brojonat/walletlens/service/solana"
	"github.com/shopspring/decimal"
)

const (
	UnknownSymbol = "Unknown"
	UnknownName   = "Unknown Token"
)

// TokenAccountInfo is one token holding of a wallet.
type TokenAccountInfo struct {
	Mint     string          `json:"mint"`
	Owner    string          `json:"owner"`
	Amount   decimal.Decimal `json:"amount"`
	Decimals int32           `json:"decimals"`
	Symbol   string          `json:"symbol"`
	Name     string          `json:"name"`
	LogoURI  string          `json:"logo_uri,omitempty"`
	// Price is the USD price per token. Zero means unknown.
	Price float64 `json:"price"`
	Value float64 `json:"value"`
}

// Asset is one line of the portfolio breakdown.
type Asset struct {
	Mint   string  `json:"mint,omitempty"`
	Symbol string  `json:"symbol"`
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Price  float64 `json:"price"`
	Value  float64 `json:"value"`
}

// Portfolio is the valuation of a wallet.
type Portfolio struct {
	NativeBalance float64 `json:"native_balance"`
	NativeValue   float64 `json:"native_value"`
	TokenValue    float64 `json:"token_value"`
	TotalValue    float64 `json:"total_value"`
	// Change24h is the native asset's 24h change; per-asset weighting is not computed.
	Change24h float64 `json:"change_24h"`
	Assets    []Asset `json:"assets"`
}

// FromBalances converts raw token account balances into holdings scaled by
// each mint's decimals. Zero, negative and unparseable balances are skipped.
func FromBalances(balances []solana.TokenAccountBalance) []TokenAccountInfo {
	out := make([]TokenAccountInfo, 0, len(balances))
	for _, b := range balances {
		raw, err := decimal.NewFromString(b.RawAmount)
		if err != nil || !raw.IsPositive() {
			continue
		}
		out = append(out, TokenAccountInfo{
			Mint:     b.Mint,
			Owner:    b.Owner,
			Amount:   raw.Shift(-b.Decimals),
			Decimals: b.Decimals,
			Symbol:   UnknownSymbol,
			Name:     UnknownName,
		})
	}
	return out
}

// Mints returns the distinct mints of accounts in order of first appearance.
func Mints(accounts []TokenAccountInfo) []string {
	seen := make(map[string]bool, len(accounts))
	mints := make([]string, 0, len(accounts))
	for _, a := range accounts {
		if !seen[a.Mint] {
			seen[a.Mint] = true
			mints = append(mints, a.Mint)
		}
	}
	return mints
}

// ApplyMetadata fills display fields from metas. Accounts without metadata, or
// with blank fields, keep the Unknown defaults.
func ApplyMetadata(accounts []TokenAccountInfo, metas []helius.TokenMetadata) {
	byMint := make(map[string]helius.TokenMetadata, len(metas))
	for _, m := range metas {
		byMint[m.Mint] = m
	}
	for i := range accounts {
		a := &accounts[i]
		if a.Symbol == "" {
			a.Symbol = UnknownSymbol
		}
		if a.Name == "" {
			a.Name = UnknownName
		}
		m, ok := byMint[a.Mint]
		if !ok {
			continue
		}
		if m.Symbol != "" {
			a.Symbol = m.Symbol
		}
		if m.Name != "" {
			a.Name = m.Name
		}
		a.LogoURI = m.LogoURI
	}
}

// ApplyPrices sets the per-token price from prices keyed by mint.
func ApplyPrices(accounts []TokenAccountInfo, prices map[string]float64) {
	for i := range accounts {
		if p, ok := prices[accounts[i].Mint]; ok {
			accounts[i].Price = p
		}
	}
}

// Aggregate values the native balance at native.Price and each token account
// at its own price. Unknown, negative or non-finite prices and amounts
// contribute 0. Assets are sorted by value, largest first.
//
// Aggregate also stores each account's computed Value back into accounts.
func Aggregate(nativeBalance float64, native price.Quote, accounts []TokenAccountInfo) Portfolio {
	balance := finiteNonNegative(nativeBalance)
	nativePrice := finiteNonNegative(native.Price)

	p := Portfolio{
		NativeBalance: balance,
		NativeValue:   balance * nativePrice,
		Change24h:     finiteOrZero(native.Change24h),
		Assets:        make([]Asset, 0, len(accounts)+1),
	}
	p.Assets = append(p.Assets, Asset{
		Symbol: solana.NativeSymbol,
		Name:   "Solana",
		Amount: balance,
		Price:  nativePrice,
		Value:  p.NativeValue,
	})

	for i := range accounts {
		a := &accounts[i]
		amount := finiteNonNegative(a.Amount.InexactFloat64())
		tokenPrice := finiteNonNegative(a.Price)
		a.Value = amount * tokenPrice

		p.TokenValue += a.Value
		p.Assets = append(p.Assets, Asset{
			Mint:   a.Mint,
			Symbol: a.Symbol,
			Name:   a.Name,
			Amount: amount,
			Price:  tokenPrice,
			Value:  a.Value,
		})
	}

	p.TotalValue = p.NativeValue + p.TokenValue
	slices.SortStableFunc(p.Assets, func(x, y Asset) int {
		return cmp.Compare(y.Value, x.Value)
	})
	return p
}

func finiteNonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
