package temporal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// RefreshWalletWorkflow reloads a watched wallet's dashboard and publishes it.
// It is triggered by a Temporal schedule at the watch interval.
//
// Steps:
// 1. Warm the native price (RefreshPrice, degrades internally)
// 2. Load the dashboard (LoadDashboard, single attempt)
// 3. Publish the refreshed dashboard to NATS (PublishDashboard, single attempt)
//
// Failed loads are not retried; the next scheduled run picks the wallet up again.
func RefreshWalletWorkflow(ctx workflow.Context, input RefreshWalletInput) (*RefreshWalletResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("RefreshWalletWorkflow started", "address", input.Address)

	result := &RefreshWalletResult{
		Address:     input.Address,
		RefreshedAt: workflow.Now(ctx),
	}

	priceCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    3,
		},
	})
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporalsdk.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	// Step 1: warm the price cache so the dashboard load hits it
	var priceResult *RefreshPriceResult
	if err := workflow.ExecuteActivity(priceCtx, a.RefreshPrice, RefreshPriceInput{}).Get(ctx, &priceResult); err != nil {
		logger.Warn("price refresh failed, continuing", "error", err)
	}

	// Step 2: load the dashboard
	var loadResult *LoadDashboardResult
	err := workflow.ExecuteActivity(ctx, a.LoadDashboard, LoadDashboardInput{Address: input.Address}).Get(ctx, &loadResult)
	if err != nil {
		errMsg := fmt.Sprintf("failed to load dashboard: %v", err)
		result.Error = &errMsg
		return result, fmt.Errorf("failed to load dashboard: %w", err)
	}

	d := loadResult.Dashboard
	if d == nil {
		errMsg := "dashboard load returned no data"
		result.Error = &errMsg
		return result, fmt.Errorf("%s", errMsg)
	}
	result.TotalValue = d.Portfolio.TotalValue
	result.PriceDegraded = d.Price.Degraded
	result.TransactionCount = len(d.Transactions)
	result.TradeCount = d.Trading.TotalTrades

	// Step 3: publish
	var eventID string
	if err := workflow.SideEffect(ctx, func(workflow.Context) interface{} {
		return uuid.NewString()
	}).Get(&eventID); err != nil {
		return result, fmt.Errorf("failed to generate event id: %w", err)
	}
	result.EventID = eventID

	var publishResult *PublishDashboardResult
	err = workflow.ExecuteActivity(ctx, a.PublishDashboard, PublishDashboardInput{
		EventID:   eventID,
		Dashboard: d,
	}).Get(ctx, &publishResult)
	if err != nil {
		errMsg := fmt.Sprintf("failed to publish dashboard: %v", err)
		result.Error = &errMsg
		return result, fmt.Errorf("failed to publish dashboard: %w", err)
	}
	result.Subject = publishResult.Subject

	logger.Info("RefreshWalletWorkflow completed successfully",
		"address", input.Address,
		"event_id", eventID,
		"total_value", result.TotalValue,
		"transactions", result.TransactionCount,
	)

	return result, nil
}
