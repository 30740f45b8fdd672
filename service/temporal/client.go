package temporal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
)

// Client is a production implementation of Scheduler that talks to Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

// UpsertWatchSchedule creates a refresh schedule for address. If the schedule
// already exists, only its interval is updated.
func (c *Client) UpsertWatchSchedule(ctx context.Context, address string, interval time.Duration) error {
	id := scheduleID(address)

	handle := c.client.ScheduleClient().GetHandle(ctx, id)
	if _, err := handle.Describe(ctx); err != nil {
		c.logger.DebugContext(ctx, "schedule not found, creating new one",
			"schedule_id", id,
			"error", err,
		)
		return c.createWatchSchedule(ctx, address, interval)
	}

	err := handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			input.Description.Schedule.Spec.Intervals = []client.ScheduleIntervalSpec{
				{Every: interval},
			}
			return &client.ScheduleUpdate{
				Schedule: &input.Description.Schedule,
			}, nil
		},
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to update schedule",
			"address", address,
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to update schedule %q: %w", id, err)
	}

	c.logger.InfoContext(ctx, "watch schedule updated",
		"address", address,
		"schedule_id", id,
		"interval", interval,
	)
	return nil
}

func (c *Client) createWatchSchedule(ctx context.Context, address string, interval time.Duration) error {
	id := scheduleID(address)

	_, err := c.client.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: id,
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{{Every: interval}},
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        id,
			Workflow:  RefreshWalletWorkflow,
			TaskQueue: c.taskQueue,
			Args:      []interface{}{RefreshWalletInput{Address: address}},
		},
		Memo: map[string]interface{}{
			"wallet_address": address,
			"created_by":     "walletlens",
		},
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to create schedule",
			"address", address,
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to create schedule %q: %w", id, err)
	}

	c.logger.InfoContext(ctx, "watch schedule created",
		"address", address,
		"schedule_id", id,
		"interval", interval,
	)
	return nil
}

// DeleteWatchSchedule deletes the refresh schedule of address. A missing
// schedule is reported as ErrScheduleNotFound.
func (c *Client) DeleteWatchSchedule(ctx context.Context, address string) error {
	id := scheduleID(address)

	handle := c.client.ScheduleClient().GetHandle(ctx, id)
	if err := handle.Delete(ctx); err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return fmt.Errorf("%w: %q", ErrScheduleNotFound, id)
		}
		c.logger.ErrorContext(ctx, "failed to delete schedule",
			"address", address,
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to delete schedule %q: %w", id, err)
	}

	c.logger.InfoContext(ctx, "watch schedule deleted",
		"address", address,
		"schedule_id", id,
	)
	return nil
}

// ListWatchSchedules returns every refresh schedule in the namespace.
func (c *Client) ListWatchSchedules(ctx context.Context) ([]WatchSchedule, error) {
	iter, err := c.client.ScheduleClient().List(ctx, client.ScheduleListOptions{
		PageSize: 100,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}

	var watches []WatchSchedule
	for iter.HasNext() {
		entry, err := iter.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate schedules: %w", err)
		}
		if !strings.HasPrefix(entry.ID, scheduleIDPrefix) {
			continue
		}

		w := WatchSchedule{
			ID:      entry.ID,
			Address: strings.TrimPrefix(entry.ID, scheduleIDPrefix),
			Paused:  entry.Paused,
		}
		if entry.Spec != nil && len(entry.Spec.Intervals) > 0 {
			w.Interval = entry.Spec.Intervals[0].Every
		}
		if len(entry.NextActionTimes) > 0 {
			w.NextRun = entry.NextActionTimes[0]
		}
		watches = append(watches, w)
	}
	return watches, nil
}

// RefreshNow starts a one-off RefreshWalletWorkflow for address and waits for its result.
func (c *Client) RefreshNow(ctx context.Context, address string) (*RefreshWalletResult, error) {
	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        fmt.Sprintf("refresh-now-%s-%d", address, time.Now().UnixNano()),
		TaskQueue: c.taskQueue,
	}, RefreshWalletWorkflow, RefreshWalletInput{Address: address})
	if err != nil {
		return nil, fmt.Errorf("failed to start refresh workflow: %w", err)
	}

	var result RefreshWalletResult
	if err := run.Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("refresh workflow failed: %w", err)
	}
	return &result, nil
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
