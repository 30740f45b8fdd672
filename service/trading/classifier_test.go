package trading

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/brojonat/walletlens/service/solana"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	trader = "OwnerAAAA"
	pool   = "VenueBBBB"
)

func newTestClassifier() *KeywordClassifier {
	return NewKeywordClassifier(DefaultRules(), nil)
}

func TestIsTrade(t *testing.T) {
	c := newTestClassifier()

	tests := []struct {
		name string
		raw  *solana.RawTransaction
		want bool
	}{
		{
			name: "swap type",
			raw:  &solana.RawTransaction{Type: "SWAP"},
			want: true,
		},
		{
			name: "venue in source",
			raw:  &solana.RawTransaction{Type: "UNKNOWN", Source: "RAYDIUM"},
			want: true,
		},
		{
			name: "transfer with balance change",
			raw: &solana.RawTransaction{
				Type:            "TRANSFER",
				NativeTransfers: []solana.NativeTransfer{{FromUserAccount: trader, ToUserAccount: "x", Amount: 10}},
				AccountData:     []solana.AccountData{{Account: trader, NativeBalanceChange: -10}},
			},
			want: true,
		},
		{
			name: "token balance change counts",
			raw: &solana.RawTransaction{
				Type:           "TRANSFER",
				TokenTransfers: []solana.TokenTransfer{{FromUserAccount: trader, ToUserAccount: "x", Mint: "m", TokenAmount: 1}},
				AccountData: []solana.AccountData{{
					Account: trader,
					TokenBalanceChanges: []solana.TokenBalanceChange{
						{Mint: "m", RawTokenAmount: solana.RawTokenAmount{TokenAmount: "-1000000", Decimals: 6}},
					},
				}},
			},
			want: true,
		},
		{
			name: "transfer without balance change",
			raw: &solana.RawTransaction{
				Type:            "TRANSFER",
				NativeTransfers: []solana.NativeTransfer{{FromUserAccount: trader, ToUserAccount: "x", Amount: 10}},
			},
			want: false,
		},
		{
			name: "balance change without transfer",
			raw: &solana.RawTransaction{
				Type:        "NFT_MINT",
				AccountData: []solana.AccountData{{Account: trader, NativeBalanceChange: -5000}},
			},
			want: false,
		},
		{name: "nil", raw: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsTrade(tt.raw))
		})
	}
}

func TestClassify(t *testing.T) {
	c := newTestClassifier()

	tests := []struct {
		name string
		raw  *solana.RawTransaction
		want Side
	}{
		{
			name: "buy type hint",
			raw:  &solana.RawTransaction{Type: "BUY"},
			want: SideBuy,
		},
		{
			name: "swap_out type hint",
			raw:  &solana.RawTransaction{Type: "swap_out"},
			want: SideSell,
		},
		{
			name: "type hint beats transfers",
			raw: &solana.RawTransaction{
				Type:           "SELL",
				Source:         trader,
				TokenTransfers: nil,
				NativeTransfers: []solana.NativeTransfer{
					{FromUserAccount: trader, ToUserAccount: pool, Amount: 1_000_000_000},
				},
			},
			want: SideSell,
		},
		{
			name: "native spent by source is a buy",
			raw: &solana.RawTransaction{
				Type:   "SWAP",
				Source: trader,
				NativeTransfers: []solana.NativeTransfer{
					{FromUserAccount: trader, ToUserAccount: pool, Amount: 1_000_000_000},
				},
				TokenTransfers: []solana.TokenTransfer{
					{FromUserAccount: trader, ToUserAccount: pool, Mint: "m", TokenAmount: 5},
				},
			},
			want: SideBuy,
		},
		{
			name: "tokens given up by source is a sell",
			raw: &solana.RawTransaction{
				Type:   "SWAP",
				Source: trader,
				NativeTransfers: []solana.NativeTransfer{
					{FromUserAccount: pool, ToUserAccount: trader, Amount: 1_000_000_000},
				},
				TokenTransfers: []solana.TokenTransfer{
					{FromUserAccount: trader, ToUserAccount: pool, Mint: "m", TokenAmount: 5},
				},
			},
			want: SideSell,
		},
		{
			name: "transfers from another account are ignored",
			raw: &solana.RawTransaction{
				Type:   "SWAP",
				Source: "JUPITER",
				NativeTransfers: []solana.NativeTransfer{
					{FromUserAccount: trader, ToUserAccount: pool, Amount: 1_000_000_000},
				},
			},
			want: SideUnknown,
		},
		{
			name: "instruction name in body",
			raw: &solana.RawTransaction{
				Type:             "UNKNOWN",
				TransactionError: json.RawMessage(`{"log":"Program log: Instruction: Sell"}`),
			},
			want: SideSell,
		},
		{name: "nothing to go on", raw: &solana.RawTransaction{Type: "TRANSFER"}, want: SideUnknown},
		{name: "nil", raw: nil, want: SideUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.raw))
		})
	}
}

func TestClassify_JupiterSwapWithTokenTransfer(t *testing.T) {
	c := newTestClassifier()
	raw := &solana.RawTransaction{
		Type:   "UNKNOWN",
		Source: "JUPITER",
		TokenTransfers: []solana.TokenTransfer{
			{FromUserAccount: pool, ToUserAccount: trader, Mint: "m", TokenAmount: 3},
		},
	}
	assert.True(t, c.IsTrade(raw))
}

func TestEstimateValue(t *testing.T) {
	c := newTestClassifier()

	t.Run("empty transaction", func(t *testing.T) {
		assert.Equal(t, 0.0, c.EstimateValue(&solana.RawTransaction{}))
		assert.Equal(t, 0.0, c.EstimateValue(nil))
	})

	t.Run("transfers dominate", func(t *testing.T) {
		raw := &solana.RawTransaction{
			NativeTransfers: []solana.NativeTransfer{
				{FromUserAccount: trader, ToUserAccount: pool, Amount: 1_000_000_000},
				{FromUserAccount: pool, ToUserAccount: trader, Amount: -500_000_000},
			},
			TokenTransfers: []solana.TokenTransfer{
				{FromUserAccount: pool, ToUserAccount: trader, Mint: "m", TokenAmount: 2},
			},
			AccountData: []solana.AccountData{
				{Account: trader, NativeBalanceChange: -1_000_000_000},
			},
		}
		assert.InDelta(t, 3.5, c.EstimateValue(raw), 1e-9)
	})

	t.Run("balance changes dominate", func(t *testing.T) {
		raw := &solana.RawTransaction{
			NativeTransfers: []solana.NativeTransfer{
				{FromUserAccount: trader, ToUserAccount: pool, Amount: 100_000_000},
			},
			AccountData: []solana.AccountData{
				{Account: trader, NativeBalanceChange: -2_000_000_000},
				{Account: pool, NativeBalanceChange: 2_000_000_000},
				{
					Account: trader,
					TokenBalanceChanges: []solana.TokenBalanceChange{
						{Mint: "m", RawTokenAmount: solana.RawTokenAmount{TokenAmount: "-2500000", Decimals: 6}},
						{Mint: "m", RawTokenAmount: solana.RawTokenAmount{TokenAmount: "garbage", Decimals: 6}},
					},
				},
			},
		}
		assert.InDelta(t, 6.5, c.EstimateValue(raw), 1e-9)
	})

	t.Run("non finite token amounts are ignored", func(t *testing.T) {
		raw := &solana.RawTransaction{
			TokenTransfers: []solana.TokenTransfer{
				{Mint: "m", TokenAmount: math.Inf(1)},
				{Mint: "m", TokenAmount: 4},
			},
		}
		assert.InDelta(t, 4.0, c.EstimateValue(raw), 1e-9)
	})
}

func TestParseRules_KeepsDefaultsForMissingSections(t *testing.T) {
	rules, err := ParseRules([]byte(`
trade_keywords: ["Pump", " bonding "]
sell_type_hints: [dump]
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"pump", "bonding"}, rules.TradeKeywords)
	assert.Equal(t, []string{"dump"}, rules.SellTypeHints)
	assert.Equal(t, DefaultRules().BuyTypeHints, rules.BuyTypeHints)

	c := NewKeywordClassifier(rules, nil)
	assert.True(t, c.IsTrade(&solana.RawTransaction{Source: "PUMP_FUN"}))
	assert.False(t, c.IsTrade(&solana.RawTransaction{Source: "RAYDIUM"}))
	assert.Equal(t, SideSell, c.Classify(&solana.RawTransaction{Type: "DUMP"}))
}

func TestParseRules_InvalidYAML(t *testing.T) {
	_, err := ParseRules([]byte("trade_keywords: [unterminated"))
	assert.Error(t, err)
}

func TestClassifier_Properties(t *testing.T) {
	c := newTestClassifier()
	properties := gopter.NewProperties(nil)

	properties.Property("classify always returns a known side", prop.ForAll(
		func(typ, source, from string, lamports int64) bool {
			raw := &solana.RawTransaction{
				Type:   typ,
				Source: source,
				NativeTransfers: []solana.NativeTransfer{
					{FromUserAccount: from, ToUserAccount: pool, Amount: lamports},
				},
			}
			switch c.Classify(raw) {
			case SideBuy, SideSell, SideUnknown:
				return true
			}
			return false
		},
		gen.AnyString(),
		gen.AnyString(),
		gen.AnyString(),
		gen.Int64(),
	))

	properties.Property("estimated value is never negative", prop.ForAll(
		func(lamports, change int64, tokens float64, raw string, decimals int32) bool {
			tx := &solana.RawTransaction{
				NativeTransfers: []solana.NativeTransfer{{Amount: lamports}},
				TokenTransfers:  []solana.TokenTransfer{{Mint: "m", TokenAmount: tokens}},
				AccountData: []solana.AccountData{{
					NativeBalanceChange: change,
					TokenBalanceChanges: []solana.TokenBalanceChange{
						{Mint: "m", RawTokenAmount: solana.RawTokenAmount{TokenAmount: raw, Decimals: decimals}},
					},
				}},
			}
			v := c.EstimateValue(tx)
			return v >= 0 && !math.IsNaN(v)
		},
		gen.Int64(),
		gen.Int64(),
		gen.Float64(),
		gen.NumString(),
		gen.Int32Range(0, 18),
	))

	properties.TestingRun(t)
}
