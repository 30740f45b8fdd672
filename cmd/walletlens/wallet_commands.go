package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/brojonat/walletlens/service/dashboard"
	"github.com/brojonat/walletlens/service/feed"
	"github.com/brojonat/walletlens/service/portfolio"
	"github.com/brojonat/walletlens/service/price"
	"github.com/brojonat/walletlens/service/trading"
	"github.com/urfave/cli/v2"
)

func walletCommands() *cli.Command {
	return &cli.Command{
		Name:    "wallet",
		Aliases: []string{"w"},
		Usage:   "Fetch wallet views from the walletlens server",
		Subcommands: []*cli.Command{
			walletDashboardCommand(),
			walletTransactionsCommand(),
			walletPortfolioCommand(),
			walletTradesCommand(),
		},
	}
}

func requireAddress(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("wallet address is required")
	}
	return c.Args().First(), nil
}

func walletDashboardCommand() *cli.Command {
	return &cli.Command{
		Name:      "dashboard",
		Aliases:   []string{"dash"},
		Usage:     "Show the full dashboard of a wallet",
		ArgsUsage: "WALLET_ADDRESS",
		Flags: []cli.Flag{
			jqFlag,
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 90 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			address, err := requireAddress(c)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
			defer cancel()

			d, err := newAPIClient(c).Dashboard(ctx, address)
			if err != nil {
				return fmt.Errorf("failed to load dashboard: %w", err)
			}

			return emit(c, d, func(w io.Writer) { printDashboard(w, d) })
		},
	}
}

func walletTransactionsCommand() *cli.Command {
	return &cli.Command{
		Name:      "transactions",
		Aliases:   []string{"txns", "tx"},
		Usage:     "List normalized transactions of a wallet",
		ArgsUsage: "WALLET_ADDRESS",
		Flags: []cli.Flag{
			jqFlag,
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of transactions to fetch (1-100, 0 uses the server default)",
			},
		},
		Action: func(c *cli.Context) error {
			address, err := requireAddress(c)
			if err != nil {
				return err
			}

			txns, err := newAPIClient(c).Transactions(context.Background(), address, c.Int("limit"))
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}

			return emit(c, txns, func(w io.Writer) { printTransactions(w, txns) })
		},
	}
}

func walletPortfolioCommand() *cli.Command {
	return &cli.Command{
		Name:      "portfolio",
		Usage:     "Show the valuation and token holdings of a wallet",
		ArgsUsage: "WALLET_ADDRESS",
		Flags:     []cli.Flag{jqFlag},
		Action: func(c *cli.Context) error {
			address, err := requireAddress(c)
			if err != nil {
				return err
			}

			view, err := newAPIClient(c).Portfolio(context.Background(), address)
			if err != nil {
				return fmt.Errorf("failed to load portfolio: %w", err)
			}

			return emit(c, view, func(w io.Writer) {
				printPortfolio(w, view.Price, view.Portfolio)
				printTokens(w, view.Tokens)
			})
		},
	}
}

func walletTradesCommand() *cli.Command {
	return &cli.Command{
		Name:      "trades",
		Usage:     "Show the trading summary and analysis of a wallet",
		ArgsUsage: "WALLET_ADDRESS",
		Flags:     []cli.Flag{jqFlag},
		Action: func(c *cli.Context) error {
			address, err := requireAddress(c)
			if err != nil {
				return err
			}

			view, err := newAPIClient(c).Trades(context.Background(), address)
			if err != nil {
				return fmt.Errorf("failed to load trades: %w", err)
			}

			return emit(c, view, func(w io.Writer) {
				printTrading(w, view.Trading)
				if view.Analysis != "" {
					fmt.Fprintf(w, "\nAnalysis:\n%s\n", view.Analysis)
				}
			})
		},
	}
}

func priceCommand() *cli.Command {
	return &cli.Command{
		Name:      "price",
		Usage:     "Show the USD price of an asset",
		ArgsUsage: "[ASSET_ID]",
		Description: `Fetch a price quote through the server's provider chain and cache.
The asset defaults to the native asset ("solana").`,
		Flags: []cli.Flag{jqFlag},
		Action: func(c *cli.Context) error {
			id := price.NativeID
			if c.NArg() > 0 {
				id = c.Args().First()
			}

			q, err := newAPIClient(c).Price(context.Background(), id)
			if err != nil {
				return fmt.Errorf("failed to fetch price: %w", err)
			}

			return emit(c, q, func(w io.Writer) { printQuote(w, *q) })
		},
	}
}

func logsCommand() *cli.Command {
	return &cli.Command{
		Name:  "logs",
		Usage: "Show recent server diagnostics log entries",
		Flags: []cli.Flag{
			jqFlag,
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of entries",
				Value:   50,
			},
		},
		Action: func(c *cli.Context) error {
			entries, err := newAPIClient(c).Logs(context.Background(), c.Int("limit"))
			if err != nil {
				return fmt.Errorf("failed to fetch logs: %w", err)
			}

			return emit(c, entries, func(w io.Writer) {
				for _, e := range entries {
					fmt.Fprintf(w, "%s %-5s %s", e.Time.Format(time.RFC3339), e.Level, e.Message)
					for k, v := range e.Attrs {
						fmt.Fprintf(w, " %s=%v", k, v)
					}
					fmt.Fprintln(w)
				}
			})
		},
	}
}

func printDashboard(w io.Writer, d *dashboard.Dashboard) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Wallet:      %s\n", d.Address)
	fmt.Fprintf(w, "Generated:   %s\n", d.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintln(w, rule)
	printPortfolio(w, d.Price, d.Portfolio)
	printTokens(w, d.Tokens)
	fmt.Fprintln(w)
	printTransactions(w, d.Transactions)
	fmt.Fprintln(w)
	printTrading(w, d.Trading)
	if d.TradeAnalysis != "" {
		fmt.Fprintf(w, "\nTrading analysis:\n%s\n", d.TradeAnalysis)
	}
	if d.MarketAnalysis != "" {
		fmt.Fprintf(w, "\nMarket analysis:\n%s\n", d.MarketAnalysis)
	}
}

func printQuote(w io.Writer, q price.Quote) {
	stale := ""
	if q.Degraded {
		stale = " (stale)"
	}
	fmt.Fprintf(w, "Price:       $%.2f%s\n", q.Price, stale)
	fmt.Fprintf(w, "24h Change:  %+.2f%%\n", q.Change24h)
	if q.Source != "" {
		fmt.Fprintf(w, "Source:      %s\n", q.Source)
	}
}

func printPortfolio(w io.Writer, q price.Quote, p portfolio.Portfolio) {
	printQuote(w, q)
	fmt.Fprintf(w, "Balance:     %.4f SOL ($%.2f)\n", p.NativeBalance, p.NativeValue)
	fmt.Fprintf(w, "Tokens:      $%.2f\n", p.TokenValue)
	fmt.Fprintf(w, "Total:       $%.2f\n", p.TotalValue)
}

func printTokens(w io.Writer, tokens []portfolio.TokenAccountInfo) {
	if len(tokens) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tAMOUNT\tPRICE\tVALUE\tMINT")
	for _, t := range tokens {
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.2f\t%s\n", t.Symbol, t.Amount.String(), t.Price, t.Value, t.Mint)
	}
	tw.Flush()
}

func printTransactions(w io.Writer, txns []feed.NormalizedTransaction) {
	if len(txns) == 0 {
		fmt.Fprintln(w, "No transactions")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTYPE\tSTATUS\tDESCRIPTION\tSIGNATURE")
	for _, tx := range txns {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			tx.Timestamp.Format(time.RFC3339), tx.Type, tx.Status, tx.Description, shorten(tx.Signature))
	}
	tw.Flush()
}

func printTrading(w io.Writer, s trading.Summary) {
	fmt.Fprintf(w, "Trades:      %d (%d buys, %d sells)\n", s.TotalTrades, s.BuyCount, s.SellCount)
	fmt.Fprintf(w, "Avg Value:   %.4f\n", s.AverageTradeValue)
	for _, t := range s.Recent {
		fmt.Fprintf(w, "  %s  %-4s %.4f  %s\n", t.Timestamp.Format(time.RFC3339), t.Side, t.Value, shorten(t.Signature))
	}
}

func shorten(s string) string {
	if len(s) <= 16 {
		return s
	}
	return s[:8] + "…" + s[len(s)-8:]
}
