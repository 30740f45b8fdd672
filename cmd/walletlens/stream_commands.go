package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	natspkg "github.com/brojonat/walletlens/service/nats"
	"github.com/urfave/cli/v2"
)

// errStreamDone ends a stream once --count events have been printed.
var errStreamDone = errors.New("stream complete")

func streamCommand() *cli.Command {
	return &cli.Command{
		Name:      "stream",
		Usage:     "Follow live dashboard updates of a wallet over SSE",
		ArgsUsage: "WALLET_ADDRESS",
		Description: `Connect to the server's SSE endpoint and print each refreshed dashboard.
Updates only arrive while a watch or a manual refresh is running for the wallet.

Example:
  walletlens stream --jq '.total_value' 9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM`,
		Flags: []cli.Flag{
			jqFlag,
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Exit after this many events (0 streams until interrupted)",
			},
		},
		Action: func(c *cli.Context) error {
			address, err := requireAddress(c)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !c.Bool("json") && c.String("jq") == "" {
				fmt.Fprintf(os.Stderr, "📡 Streaming dashboards for %s (Ctrl-C to exit)\n\n", address)
			}

			limit := c.Int("count")
			received := 0

			err = newAPIClient(c).StreamDashboards(ctx, address, func(event *natspkg.DashboardEvent) error {
				received++
				if err := emit(c, event, func(w io.Writer) { printDashboardEvent(w, received, event) }); err != nil {
					return err
				}
				if limit > 0 && received >= limit {
					return errStreamDone
				}
				return nil
			})
			if err != nil && !errors.Is(err, errStreamDone) {
				return fmt.Errorf("stream failed: %w", err)
			}
			return nil
		},
	}
}

func printDashboardEvent(w io.Writer, n int, event *natspkg.DashboardEvent) {
	stale := ""
	if event.PriceDegraded {
		stale = " (stale price)"
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Dashboard #%d\n", n)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Wallet:       %s\n", event.Address)
	fmt.Fprintf(w, "Event:        %s\n", event.EventID)
	fmt.Fprintf(w, "Total Value:  $%.2f%s\n", event.TotalValue, stale)
	fmt.Fprintf(w, "SOL Price:    $%.2f\n", event.NativePrice)
	fmt.Fprintf(w, "Transactions: %d\n", event.TransactionCount)
	fmt.Fprintf(w, "Trades:       %d\n", event.TradeCount)
	fmt.Fprintf(w, "Generated:    %s\n", event.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Published:    %s\n\n", event.PublishedAt.Format(time.RFC3339))
}
