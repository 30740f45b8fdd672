package nats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brojonat/walletlens/service/dashboard"
	"github.com/brojonat/walletlens/service/feed"
	"github.com/brojonat/walletlens/service/portfolio"
	"github.com/brojonat/walletlens/service/price"
	"github.com/brojonat/walletlens/service/trading"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDashboard(t *testing.T) {
	generated := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d := &dashboard.Dashboard{
		Address:      "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
		GeneratedAt:  generated,
		Price:        price.Quote{ID: price.NativeID, Price: 150, Degraded: true},
		Portfolio:    portfolio.Portfolio{TotalValue: 1505},
		Transactions: make([]feed.NormalizedTransaction, 3),
		Trading:      trading.Summary{TotalTrades: 2},
	}

	event := FromDashboard("evt-1", d)

	assert.Equal(t, "evt-1", event.EventID)
	assert.Equal(t, d.Address, event.Address)
	assert.Equal(t, 1505.0, event.TotalValue)
	assert.Equal(t, 150.0, event.NativePrice)
	assert.True(t, event.PriceDegraded)
	assert.Equal(t, 3, event.TransactionCount)
	assert.Equal(t, 2, event.TradeCount)
	assert.Equal(t, generated, event.GeneratedAt)
	assert.Same(t, d, event.Dashboard)
	assert.False(t, event.PublishedAt.IsZero())
}

func TestFromDashboard_Nil(t *testing.T) {
	event := FromDashboard("evt-2", nil)
	assert.Equal(t, "evt-2", event.EventID)
	assert.Nil(t, event.Dashboard)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "dashboards.abc", Subject("abc"))
	assert.Equal(t, "dashboards.*", StreamSubjects)
}

func TestMockPublisher(t *testing.T) {
	m := NewMockPublisher()
	require.NoError(t, m.PublishDashboard(context.Background(), &DashboardEvent{Address: "a"}))

	m.SetPublishError(errors.New("nats down"))
	assert.Error(t, m.PublishDashboard(context.Background(), &DashboardEvent{Address: "b"}))

	events := m.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "a", events[0].Address)

	require.NoError(t, m.Close())
	assert.True(t, m.IsClosed())
}
