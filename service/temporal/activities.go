package temporal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/brojonat/walletlens/service/dashboard"
	"github.com/brojonat/walletlens/service/metrics"
	natspkg "github.com/brojonat/walletlens/service/nats"
	"github.com/brojonat/walletlens/service/price"
	temporalsdk "go.temporal.io/sdk/temporal"
)

// RefreshWalletInput is the input of RefreshWalletWorkflow.
type RefreshWalletInput struct {
	Address string `json:"address"`
}

// RefreshWalletResult summarizes one refresh.
type RefreshWalletResult struct {
	Address          string    `json:"address"`
	EventID          string    `json:"event_id"`
	TotalValue       float64   `json:"total_value"`
	PriceDegraded    bool      `json:"price_degraded"`
	TransactionCount int       `json:"transaction_count"`
	TradeCount       int       `json:"trade_count"`
	Subject          string    `json:"subject,omitempty"`
	RefreshedAt      time.Time `json:"refreshed_at"`
	Error            *string   `json:"error,omitempty"`
}

// RefreshPriceInput contains parameters for the RefreshPrice activity.
type RefreshPriceInput struct {
	ID string `json:"id"`
}

// RefreshPriceResult contains the quote resolved by RefreshPrice.
type RefreshPriceResult struct {
	Quote price.Quote `json:"quote"`
}

// LoadDashboardInput contains parameters for the LoadDashboard activity.
type LoadDashboardInput struct {
	Address string `json:"address"`
}

// LoadDashboardResult carries the loaded dashboard.
type LoadDashboardResult struct {
	Dashboard *dashboard.Dashboard `json:"dashboard"`
}

// PublishDashboardInput contains parameters for the PublishDashboard activity.
type PublishDashboardInput struct {
	EventID   string               `json:"event_id"`
	Dashboard *dashboard.Dashboard `json:"dashboard"`
}

// PublishDashboardResult reports where the event went.
type PublishDashboardResult struct {
	Subject string `json:"subject"`
}

// DashboardLoader defines the dashboard operation needed by activities.
type DashboardLoader interface {
	Load(ctx context.Context, address string) (*dashboard.Dashboard, error)
}

// PriceSource defines the price operation needed by activities.
type PriceSource interface {
	GetPrice(ctx context.Context, id string) price.Quote
}

// PublisherInterface defines the NATS publishing operation needed by activities.
type PublisherInterface interface {
	PublishDashboard(ctx context.Context, event *natspkg.DashboardEvent) error
}

// Activities holds the dependencies needed by Temporal activities.
type Activities struct {
	dashboards DashboardLoader
	prices     PriceSource
	publisher  PublisherInterface
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If metrics is nil, no metrics will be recorded.
func NewActivities(
	dashboards DashboardLoader,
	prices PriceSource,
	publisher PublisherInterface,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Activities {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Activities{
		dashboards: dashboards,
		prices:     prices,
		publisher:  publisher,
		metrics:    m,
		logger:     logger,
	}
}

// RefreshPrice warms the price cache. It never fails; a degraded quote is
// still a result.
func (a *Activities) RefreshPrice(ctx context.Context, input RefreshPriceInput) (*RefreshPriceResult, error) {
	defer a.recordDuration("RefreshPrice", time.Now())

	id := input.ID
	if id == "" {
		id = price.NativeID
	}
	q := a.prices.GetPrice(ctx, id)

	a.logger.DebugContext(ctx, "refreshed price",
		"id", id,
		"price", q.Price,
		"source", q.Source,
		"degraded", q.Degraded,
	)
	return &RefreshPriceResult{Quote: q}, nil
}

// LoadDashboard loads the full dashboard of a wallet. Invalid addresses are
// reported as non-retryable.
func (a *Activities) LoadDashboard(ctx context.Context, input LoadDashboardInput) (*LoadDashboardResult, error) {
	defer a.recordDuration("LoadDashboard", time.Now())

	d, err := a.dashboards.Load(ctx, input.Address)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to load dashboard",
			"address", input.Address,
			"error", err,
		)
		if errors.Is(err, dashboard.ErrInvalidAddress) {
			return nil, temporalsdk.NewNonRetryableApplicationError(err.Error(), "InvalidAddress", err)
		}
		return nil, fmt.Errorf("failed to load dashboard: %w", err)
	}

	a.logger.InfoContext(ctx, "loaded dashboard",
		"address", input.Address,
		"total_value", d.Portfolio.TotalValue,
		"transactions", len(d.Transactions),
	)
	return &LoadDashboardResult{Dashboard: d}, nil
}

// PublishDashboard publishes a refreshed dashboard to NATS.
func (a *Activities) PublishDashboard(ctx context.Context, input PublishDashboardInput) (*PublishDashboardResult, error) {
	defer a.recordDuration("PublishDashboard", time.Now())

	if input.Dashboard == nil {
		return nil, temporalsdk.NewNonRetryableApplicationError("dashboard is required", "MissingDashboard", nil)
	}
	if a.publisher == nil {
		return nil, fmt.Errorf("no publisher configured")
	}

	event := natspkg.FromDashboard(input.EventID, input.Dashboard)
	if err := a.publisher.PublishDashboard(ctx, event); err != nil {
		a.logger.ErrorContext(ctx, "failed to publish dashboard",
			"address", event.Address,
			"error", err,
		)
		return nil, fmt.Errorf("failed to publish dashboard: %w", err)
	}

	return &PublishDashboardResult{Subject: natspkg.Subject(event.Address)}, nil
}

func (a *Activities) recordDuration(activity string, start time.Time) {
	if a.metrics != nil {
		a.metrics.RecordActivityDuration(activity, time.Since(start).Seconds())
	}
}
