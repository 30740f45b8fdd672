package nats

import (
	"time"

	"github.com/brojonat/walletlens/service/dashboard"
)

// DashboardEvent is published to "dashboards.{address}" each time a watched
// wallet's dashboard is refreshed.
type DashboardEvent struct {
	EventID string `json:"event_id"`
	Address string `json:"address"`

	// Headline numbers, so subscribers can render without decoding the full dashboard.
	TotalValue       float64 `json:"total_value"`
	NativePrice      float64 `json:"native_price"`
	PriceDegraded    bool    `json:"price_degraded"`
	TransactionCount int     `json:"transaction_count"`
	TradeCount       int     `json:"trade_count"`

	Dashboard *dashboard.Dashboard `json:"dashboard,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
	PublishedAt time.Time `json:"published_at"`
}

// FromDashboard builds an event for a freshly loaded dashboard.
func FromDashboard(eventID string, d *dashboard.Dashboard) *DashboardEvent {
	event := &DashboardEvent{
		EventID:     eventID,
		PublishedAt: time.Now().UTC(),
	}
	if d == nil {
		return event
	}

	event.Address = d.Address
	event.TotalValue = d.Portfolio.TotalValue
	event.NativePrice = d.Price.Price
	event.PriceDegraded = d.Price.Degraded
	event.TransactionCount = len(d.Transactions)
	event.TradeCount = d.Trading.TotalTrades
	event.Dashboard = d
	event.GeneratedAt = d.GeneratedAt
	return event
}

// Subject returns the JetStream subject for a wallet's dashboard events.
func Subject(address string) string {
	return SubjectPrefix + address
}
