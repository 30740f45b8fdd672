package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/brojonat/walletlens/service/temporal"
	"github.com/urfave/cli/v2"
)

func watchCommands() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Manage scheduled dashboard refreshes",
		Subcommands: []*cli.Command{
			createWatchCommand(),
			deleteWatchCommand(),
			listWatchesCommand(),
			refreshCommand(),
		},
	}
}

func createWatchCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Refresh a wallet's dashboard on a schedule",
		ArgsUsage: "WALLET_ADDRESS",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "Refresh interval (0 uses the server default)",
			},
		},
		Action: func(c *cli.Context) error {
			address, err := requireAddress(c)
			if err != nil {
				return err
			}

			watch, err := newAPIClient(c).Watch(context.Background(), address, c.Duration("interval"))
			if err != nil {
				return fmt.Errorf("failed to create watch: %w", err)
			}

			return emit(c, watch, func(w io.Writer) {
				fmt.Fprintf(w, "✓ Watching %s every %s\n", watch.Address, watch.Interval)
			})
		},
	}
}

func deleteWatchCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"rm"},
		Usage:     "Stop scheduled refreshes of a wallet",
		ArgsUsage: "WALLET_ADDRESS",
		Action: func(c *cli.Context) error {
			address, err := requireAddress(c)
			if err != nil {
				return err
			}

			if err := newAPIClient(c).Unwatch(context.Background(), address); err != nil {
				return fmt.Errorf("failed to delete watch: %w", err)
			}

			fmt.Fprintf(c.App.Writer, "✓ Stopped watching %s\n", address)
			return nil
		},
	}
}

func listWatchesCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List refresh schedules registered in Temporal",
		Flags:   []cli.Flag{jqFlag},
		Action: func(c *cli.Context) error {
			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			watches, err := tc.ListWatchSchedules(context.Background())
			if err != nil {
				return err
			}

			return emit(c, watches, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ADDRESS\tINTERVAL\tPAUSED\tNEXT RUN")
				for _, watch := range watches {
					next := "-"
					if !watch.NextRun.IsZero() {
						next = watch.NextRun.Format(time.RFC3339)
					}
					fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", watch.Address, watch.Interval, watch.Paused, next)
				}
				tw.Flush()
				fmt.Fprintf(c.App.ErrWriter, "\nTotal: %d watches\n", len(watches))
			})
		},
	}
}

func refreshCommand() *cli.Command {
	return &cli.Command{
		Name:      "refresh",
		Usage:     "Run a one-off refresh workflow and publish the result",
		ArgsUsage: "WALLET_ADDRESS",
		Description: `Start RefreshWalletWorkflow on the worker's task queue and wait for it.
Stream subscribers receive the refreshed dashboard like any scheduled run.`,
		Flags: []cli.Flag{
			jqFlag,
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the workflow",
				Value: 2 * time.Minute,
			},
		},
		Action: func(c *cli.Context) error {
			address, err := requireAddress(c)
			if err != nil {
				return err
			}

			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
			defer cancel()

			result, err := tc.RefreshNow(ctx, address)
			if err != nil {
				return err
			}

			return emit(c, result, func(w io.Writer) {
				if result.Error != nil {
					fmt.Fprintf(w, "✗ Refresh failed: %s\n", *result.Error)
					return
				}
				fmt.Fprintf(w, "✓ Refreshed %s\n", result.Address)
				fmt.Fprintf(w, "  Event:        %s\n", result.EventID)
				fmt.Fprintf(w, "  Subject:      %s\n", result.Subject)
				fmt.Fprintf(w, "  Total Value:  $%.2f\n", result.TotalValue)
				fmt.Fprintf(w, "  Transactions: %d\n", result.TransactionCount)
				fmt.Fprintf(w, "  Trades:       %d\n", result.TradeCount)
			})
		},
	}
}

func getTemporalClient(c *cli.Context) (*temporal.Client, error) {
	return temporal.NewClient(
		c.String("temporal-host"),
		c.String("temporal-namespace"),
		c.String("temporal-task-queue"),
		cliLogger(c),
	)
}
