package feed

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/brojonat/walletlens/service/solana"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	wallet = "WaLLetAAAA"
	other  = "OtherBBBB"
)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNormalize_SendNative(t *testing.T) {
	n := newTestNormalizer()
	raw := &solana.RawTransaction{
		Signature: "sigA",
		Type:      "TRANSFER",
		Timestamp: 1700000000,
		Fee:       5000,
		NativeTransfers: []solana.NativeTransfer{
			{FromUserAccount: wallet, ToUserAccount: other, Amount: 2_000_000_000},
		},
	}

	tx := n.Normalize(raw, wallet)
	require.NotNil(t, tx)
	assert.Equal(t, TypeSendNative, tx.Type)
	assert.InDelta(t, 2.0, tx.Amount, 1e-9)
	assert.Equal(t, "SOL", tx.Symbol)
	assert.Equal(t, "Sent 2.000 SOL", tx.Description)
	assert.Equal(t, StatusSuccess, tx.Status)
	assert.InDelta(t, 0.000005, tx.Fee, 1e-12)
	assert.Equal(t, int64(1700000000), tx.Timestamp.Unix())
}

func TestNormalize_ReceiveNative(t *testing.T) {
	n := newTestNormalizer()
	raw := &solana.RawTransaction{
		Signature: "sigR",
		NativeTransfers: []solana.NativeTransfer{
			{FromUserAccount: other, ToUserAccount: wallet, Amount: 1_500_000_000},
		},
	}

	tx := n.Normalize(raw, wallet)
	require.NotNil(t, tx)
	assert.Equal(t, TypeReceiveNative, tx.Type)
	assert.Equal(t, "Received 1.500 SOL", tx.Description)
}

func TestNormalize_DustIsDropped(t *testing.T) {
	n := newTestNormalizer()
	raw := &solana.RawTransaction{
		Signature: "sigB",
		NativeTransfers: []solana.NativeTransfer{
			{FromUserAccount: wallet, ToUserAccount: other, Amount: 500_000},
		},
	}
	assert.Nil(t, n.Normalize(raw, wallet))
}

func TestNormalize_ZeroAmountIsDropped(t *testing.T) {
	n := newTestNormalizer()

	native := &solana.RawTransaction{
		NativeTransfers: []solana.NativeTransfer{{FromUserAccount: wallet, ToUserAccount: other}},
	}
	assert.Nil(t, n.Normalize(native, wallet))

	token := &solana.RawTransaction{
		TokenTransfers: []solana.TokenTransfer{{FromUserAccount: wallet, ToUserAccount: other, Mint: "m"}},
	}
	assert.Nil(t, n.Normalize(token, wallet))

	// No transfers at all, even with a swap hint.
	empty := &solana.RawTransaction{Type: "SWAP"}
	assert.Nil(t, n.Normalize(empty, wallet))
}

func TestNormalize_TokenTransfer(t *testing.T) {
	n := newTestNormalizer()
	raw := &solana.RawTransaction{
		TokenTransfers: []solana.TokenTransfer{
			{FromUserAccount: other, ToUserAccount: wallet, Mint: "mintX", TokenAmount: 0.0005},
		},
	}

	tx := n.Normalize(raw, wallet)
	require.NotNil(t, tx, "dust threshold only applies to the native asset")
	assert.Equal(t, TypeReceiveToken, tx.Type)
	assert.Equal(t, TokenSymbol, tx.Symbol)
	assert.InDelta(t, 0.0005, tx.Amount, 1e-12)
}

func TestNormalize_NativeWinsOverToken(t *testing.T) {
	n := newTestNormalizer()
	raw := &solana.RawTransaction{
		NativeTransfers: []solana.NativeTransfer{
			{FromUserAccount: wallet, ToUserAccount: other, Amount: 1_000_000_000},
		},
		TokenTransfers: []solana.TokenTransfer{
			{FromUserAccount: other, ToUserAccount: wallet, Mint: "mintX", TokenAmount: 50},
		},
	}

	tx := n.Normalize(raw, wallet)
	require.NotNil(t, tx)
	assert.Equal(t, TypeSendNative, tx.Type)
	assert.Equal(t, "SOL", tx.Symbol)
}

func TestNormalize_SwapKeywordOverrides(t *testing.T) {
	n := newTestNormalizer()
	raw := &solana.RawTransaction{
		Source: "JUPITER",
		TokenTransfers: []solana.TokenTransfer{
			{FromUserAccount: wallet, ToUserAccount: other, Mint: "mintX", TokenAmount: 12},
		},
	}

	tx := n.Normalize(raw, wallet)
	require.NotNil(t, tx)
	assert.Equal(t, TypeSwap, tx.Type)
	assert.Equal(t, "Token Swap", tx.Description)
}

func TestNormalize_FailedTransactionHasErrorStatus(t *testing.T) {
	n := newTestNormalizer()
	raw := &solana.RawTransaction{
		TransactionError: json.RawMessage(`{"InstructionError":[0,{"Custom":1}]}`),
		NativeTransfers: []solana.NativeTransfer{
			{FromUserAccount: wallet, ToUserAccount: other, Amount: 1_000_000_000},
		},
	}

	tx := n.Normalize(raw, wallet)
	require.NotNil(t, tx)
	assert.Equal(t, StatusError, tx.Status)
}

func TestNormalize_MalformedInputDoesNotPanic(t *testing.T) {
	n := newTestNormalizer()

	assert.NotPanics(t, func() {
		assert.Nil(t, n.Normalize(nil, wallet))
	})
	assert.NotPanics(t, func() {
		// Unmarshalable error payload forces the fallback search text.
		raw := &solana.RawTransaction{
			TransactionError: json.RawMessage(`{broken`),
			NativeTransfers: []solana.NativeTransfer{
				{FromUserAccount: wallet, ToUserAccount: other, Amount: 3_000_000_000},
			},
		}
		tx := n.Normalize(raw, wallet)
		require.NotNil(t, tx)
		assert.Equal(t, TypeSendNative, tx.Type)
	})
}

func TestNormalizeBatch_SortsMostRecentFirst(t *testing.T) {
	n := newTestNormalizer()
	send := func(sig string, ts int64, lamports int64) solana.RawTransaction {
		return solana.RawTransaction{
			Signature: sig,
			Timestamp: ts,
			NativeTransfers: []solana.NativeTransfer{
				{FromUserAccount: wallet, ToUserAccount: other, Amount: lamports},
			},
		}
	}
	raws := []solana.RawTransaction{
		send("old", 100, 1_000_000_000),
		send("dust", 400, 10),
		send("new", 300, 1_000_000_000),
		send("mid", 200, 1_000_000_000),
	}

	out := n.NormalizeBatch(raws, wallet)
	require.Len(t, out, 3)
	assert.Equal(t, "new", out[0].Signature)
	assert.Equal(t, "mid", out[1].Signature)
	assert.Equal(t, "old", out[2].Signature)
}

func TestNormalize_Properties(t *testing.T) {
	n := newTestNormalizer()
	properties := gopter.NewProperties(nil)

	properties.Property("native transfers below the dust threshold are dropped", prop.ForAll(
		func(lamports int64) bool {
			raw := &solana.RawTransaction{
				NativeTransfers: []solana.NativeTransfer{
					{FromUserAccount: wallet, ToUserAccount: other, Amount: lamports},
				},
			}
			return n.Normalize(raw, wallet) == nil
		},
		gen.Int64Range(-999_999, 999_999),
	))

	properties.Property("kept entries always have a positive amount", prop.ForAll(
		func(lamports int64, tokens float64) bool {
			raw := &solana.RawTransaction{
				NativeTransfers: []solana.NativeTransfer{
					{FromUserAccount: other, ToUserAccount: wallet, Amount: lamports},
				},
				TokenTransfers: []solana.TokenTransfer{
					{FromUserAccount: wallet, ToUserAccount: other, Mint: "m", TokenAmount: tokens},
				},
			}
			tx := n.Normalize(raw, wallet)
			return tx == nil || tx.Amount > 0
		},
		gen.Int64Range(-10_000_000_000, 10_000_000_000),
		gen.Float64Range(-1e6, 1e6),
	))

	properties.Property("arbitrary type and source strings never panic", prop.ForAll(
		func(typ, source string) bool {
			raw := &solana.RawTransaction{Type: typ, Source: source}
			return n.Normalize(raw, wallet) == nil
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
