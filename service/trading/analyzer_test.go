package trading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/brojonat/walletlens/service/solana"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSummarizer struct {
	mock.Mock
}

func (m *MockSummarizer) Summarize(ctx context.Context, prompt, persona string) (string, error) {
	args := m.Called(ctx, prompt, persona)
	return args.String(0), args.Error(1)
}

func swap(sig string, ts int64, typ string, lamports int64) solana.RawTransaction {
	return solana.RawTransaction{
		Signature: sig,
		Type:      typ,
		Source:    trader,
		Timestamp: ts,
		NativeTransfers: []solana.NativeTransfer{
			{FromUserAccount: trader, ToUserAccount: pool, Amount: lamports},
		},
		AccountData: []solana.AccountData{
			{Account: trader, NativeBalanceChange: -lamports},
		},
	}
}

func TestSummarize(t *testing.T) {
	a := NewAnalyzer(newTestClassifier(), nil, nil, nil)

	raws := []solana.RawTransaction{
		swap("b1", 100, "BUY", 1_000_000_000),
		swap("s1", 200, "SELL", 3_000_000_000),
		swap("b2", 300, "SWAP", 2_000_000_000), // native spent by source
		{Signature: "noise", Type: "NFT_MINT", Timestamp: 400},
	}

	s := a.Summarize(raws)
	assert.Equal(t, 3, s.TotalTrades)
	assert.Equal(t, 2, s.BuyCount)
	assert.Equal(t, 1, s.SellCount)
	assert.InDelta(t, 2.0, s.AverageTradeValue, 1e-9)

	require.Len(t, s.Recent, 3)
	assert.Equal(t, "b2", s.Recent[0].Signature)
	assert.Equal(t, "s1", s.Recent[1].Signature)
	assert.Equal(t, "b1", s.Recent[2].Signature)
	assert.Equal(t, "SELL", s.Recent[1].SourceType)
}

func TestSummarize_KeepsFiveMostRecent(t *testing.T) {
	a := NewAnalyzer(newTestClassifier(), nil, nil, nil)

	var raws []solana.RawTransaction
	for i := 1; i <= 8; i++ {
		raws = append(raws, swap(fmt.Sprintf("t%d", i), int64(i*10), "BUY", 1_000_000_000))
	}

	s := a.Summarize(raws)
	assert.Equal(t, 8, s.TotalTrades)
	require.Len(t, s.Recent, RecentTradeCount)
	assert.Equal(t, "t8", s.Recent[0].Signature)
	assert.Equal(t, "t4", s.Recent[4].Signature)
}

func TestSummarize_NoTrades(t *testing.T) {
	a := NewAnalyzer(newTestClassifier(), nil, nil, nil)

	s := a.Summarize(nil)
	assert.Equal(t, 0, s.TotalTrades)
	assert.Equal(t, 0.0, s.AverageTradeValue)
	assert.Empty(t, s.Recent)
}

func TestAnalyzeBatch(t *testing.T) {
	raws := []solana.RawTransaction{swap("b1", 100, "BUY", 1_000_000_000)}

	tests := []struct {
		name      string
		raws      []solana.RawTransaction
		setupMock func(*MockSummarizer)
		want      string
	}{
		{
			name:      "no trades skips the summarizer",
			raws:      []solana.RawTransaction{{Type: "NFT_MINT"}},
			setupMock: func(m *MockSummarizer) {},
			want:      NoActivityAnalysis,
		},
		{
			name: "summarizer answer is trimmed",
			raws: raws,
			setupMock: func(m *MockSummarizer) {
				m.On("Summarize", mock.Anything, mock.MatchedBy(func(prompt string) bool {
					return strings.Contains(prompt, "Total trades: 1")
				}), tradeAnalystPersona).Return("  Mostly buying.  \n", nil)
			},
			want: "Mostly buying.",
		},
		{
			name: "summarizer error",
			raws: raws,
			setupMock: func(m *MockSummarizer) {
				m.On("Summarize", mock.Anything, mock.Anything, mock.Anything).
					Return("", errors.New("upstream timeout"))
			},
			want: FailedAnalysis,
		},
		{
			name: "empty answer",
			raws: raws,
			setupMock: func(m *MockSummarizer) {
				m.On("Summarize", mock.Anything, mock.Anything, mock.Anything).Return("   ", nil)
			},
			want: UnavailableAnalysis,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summarizer := new(MockSummarizer)
			tt.setupMock(summarizer)

			a := NewAnalyzer(newTestClassifier(), summarizer, nil, nil)
			got := a.AnalyzeBatch(context.Background(), tt.raws)

			assert.Equal(t, tt.want, got)
			summarizer.AssertExpectations(t)
		})
	}
}

func TestAnalyzeBatch_NilSummarizer(t *testing.T) {
	a := NewAnalyzer(newTestClassifier(), nil, nil, nil)
	got := a.AnalyzeBatch(context.Background(), []solana.RawTransaction{swap("b1", 1, "BUY", 1)})
	assert.Equal(t, UnavailableAnalysis, got)
}

func TestBuildPrompt(t *testing.T) {
	a := NewAnalyzer(newTestClassifier(), nil, nil, nil)
	s := a.Summarize([]solana.RawTransaction{
		swap("b1", 1700000000, "BUY", 1_000_000_000),
		swap("s1", 1700000100, "SELL", 3_000_000_000),
	})

	prompt := BuildPrompt(s)
	assert.Contains(t, prompt, "Total trades: 2")
	assert.Contains(t, prompt, "Buys: 1")
	assert.Contains(t, prompt, "Sells: 1")
	assert.Contains(t, prompt, "Average trade value: 2.0000 SOL")
	assert.Contains(t, prompt, "2023-11-14T22:15:00Z Sell 3.0000 SOL (SELL)")
}
