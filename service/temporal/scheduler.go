package temporal

import (
	"context"
	"errors"
	"time"
)

// ErrScheduleNotFound is returned when deleting a watch that does not exist.
var ErrScheduleNotFound = errors.New("watch schedule not found")

// Scheduler manages Temporal schedules for watched wallets.
// Each watched wallet gets its own schedule that triggers RefreshWalletWorkflow.
type Scheduler interface {
	// UpsertWatchSchedule creates a refresh schedule for address, or updates
	// its interval when one already exists.
	UpsertWatchSchedule(ctx context.Context, address string, interval time.Duration) error

	// DeleteWatchSchedule removes the refresh schedule for address.
	DeleteWatchSchedule(ctx context.Context, address string) error
}

// WatchSchedule describes an existing refresh schedule.
type WatchSchedule struct {
	ID       string        `json:"id"`
	Address  string        `json:"address"`
	Interval time.Duration `json:"interval"`
	Paused   bool          `json:"paused"`
	NextRun  time.Time     `json:"next_run"`
}

const scheduleIDPrefix = "refresh-wallet-"

// scheduleID returns the Temporal schedule ID for a wallet address.
func scheduleID(address string) string {
	return scheduleIDPrefix + address
}
