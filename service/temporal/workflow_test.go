package temporal

import (
	"errors"
	"testing"
	"time"

	"github.com/brojonat/walletlens/service/dashboard"
	"github.com/brojonat/walletlens/service/feed"
	"github.com/brojonat/walletlens/service/portfolio"
	"github.com/brojonat/walletlens/service/price"
	"github.com/brojonat/walletlens/service/trading"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
)

const testWallet = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

func sampleDashboard() *dashboard.Dashboard {
	return &dashboard.Dashboard{
		Address:      testWallet,
		GeneratedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Price:        price.Quote{ID: price.NativeID, Price: 150},
		Portfolio:    portfolio.Portfolio{NativeBalance: 10, TotalValue: 1505},
		Transactions: []feed.NormalizedTransaction{{Signature: "sig1", Type: feed.TypeSendNative, Amount: 2}},
		Trading:      trading.Summary{TotalTrades: 1, BuyCount: 1},
	}
}

func newRefreshEnv() (*testsuite.TestWorkflowEnvironment, *Activities) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	activities := &Activities{}
	env.RegisterActivity(activities.RefreshPrice)
	env.RegisterActivity(activities.LoadDashboard)
	env.RegisterActivity(activities.PublishDashboard)
	return env, activities
}

func TestRefreshWalletWorkflow(t *testing.T) {
	env, activities := newRefreshEnv()

	env.OnActivity(activities.RefreshPrice, mock.Anything, mock.Anything).
		Return(&RefreshPriceResult{Quote: price.Quote{ID: price.NativeID, Price: 150}}, nil)
	env.OnActivity(activities.LoadDashboard, mock.Anything, LoadDashboardInput{Address: testWallet}).
		Return(&LoadDashboardResult{Dashboard: sampleDashboard()}, nil)

	var published PublishDashboardInput
	env.OnActivity(activities.PublishDashboard, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			published = args.Get(1).(PublishDashboardInput)
		}).
		Return(&PublishDashboardResult{Subject: "dashboards." + testWallet}, nil)

	env.ExecuteWorkflow(RefreshWalletWorkflow, RefreshWalletInput{Address: testWallet})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result RefreshWalletResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, testWallet, result.Address)
	assert.Equal(t, 1505.0, result.TotalValue)
	assert.Equal(t, 1, result.TransactionCount)
	assert.Equal(t, 1, result.TradeCount)
	assert.Equal(t, "dashboards."+testWallet, result.Subject)
	assert.NotEmpty(t, result.EventID)
	assert.Nil(t, result.Error)

	assert.Equal(t, result.EventID, published.EventID)
	require.NotNil(t, published.Dashboard)
	assert.Equal(t, testWallet, published.Dashboard.Address)

	env.AssertExpectations(t)
}

func TestRefreshWalletWorkflow_LoadFailureSkipsPublish(t *testing.T) {
	env, activities := newRefreshEnv()

	env.OnActivity(activities.RefreshPrice, mock.Anything, mock.Anything).
		Return(&RefreshPriceResult{}, nil)

	loadCalls := 0
	env.OnActivity(activities.LoadDashboard, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { loadCalls++ }).
		Return(nil, errors.New("indexer unavailable"))

	publishCalls := 0
	env.OnActivity(activities.PublishDashboard, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { publishCalls++ }).
		Return(&PublishDashboardResult{}, nil)

	env.ExecuteWorkflow(RefreshWalletWorkflow, RefreshWalletInput{Address: testWallet})

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load dashboard")
	assert.Equal(t, 1, loadCalls, "dashboard loads are not retried")
	assert.Equal(t, 0, publishCalls)
}

func TestRefreshWalletWorkflow_PublishFailure(t *testing.T) {
	env, activities := newRefreshEnv()

	env.OnActivity(activities.RefreshPrice, mock.Anything, mock.Anything).
		Return(&RefreshPriceResult{}, nil)
	env.OnActivity(activities.LoadDashboard, mock.Anything, mock.Anything).
		Return(&LoadDashboardResult{Dashboard: sampleDashboard()}, nil)
	env.OnActivity(activities.PublishDashboard, mock.Anything, mock.Anything).
		Return(nil, errors.New("nats unavailable"))

	env.ExecuteWorkflow(RefreshWalletWorkflow, RefreshWalletInput{Address: testWallet})

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish dashboard")
}

func TestRefreshWalletWorkflow_PriceFailureIsNotFatal(t *testing.T) {
	env, activities := newRefreshEnv()

	env.OnActivity(activities.RefreshPrice, mock.Anything, mock.Anything).
		Return(nil, errors.New("price activity crashed"))
	env.OnActivity(activities.LoadDashboard, mock.Anything, mock.Anything).
		Return(&LoadDashboardResult{Dashboard: sampleDashboard()}, nil)
	env.OnActivity(activities.PublishDashboard, mock.Anything, mock.Anything).
		Return(&PublishDashboardResult{Subject: "dashboards." + testWallet}, nil)

	env.ExecuteWorkflow(RefreshWalletWorkflow, RefreshWalletInput{Address: testWallet})

	require.True(t, env.IsWorkflowCompleted())
	assert.NoError(t, env.GetWorkflowError())
}
