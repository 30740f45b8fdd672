package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/brojonat/walletlens/service/dashboard"
	"github.com/brojonat/walletlens/service/feed"
	"github.com/brojonat/walletlens/service/solana"
	"github.com/brojonat/walletlens/service/trading"
	"github.com/urfave/cli/v2"
)

// analysis is the offline result of the analyze command.
type analysis struct {
	Address      string                       `json:"address"`
	Transactions []feed.NormalizedTransaction `json:"transactions"`
	Trading      trading.Summary              `json:"trading"`
	Prompt       string                       `json:"prompt"`
}

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Normalize and classify an exported transaction history offline",
		ArgsUsage: "FILE",
		Description: `Read a JSON array of enhanced transactions (as returned by the indexer's
/v0/addresses/{address}/transactions endpoint) from FILE, or stdin when FILE is "-",
and print the normalized feed and trading summary. No network access is needed.`,
		Flags: []cli.Flag{
			jqFlag,
			&cli.StringFlag{
				Name:     "wallet",
				Aliases:  []string{"w"},
				Usage:    "Wallet address the history belongs to",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "rules",
				Usage:   "YAML classifier rules file (defaults to the built-in rules)",
				EnvVars: []string{"CLASSIFIER_RULES_FILE"},
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("input file is required (use - for stdin)")
			}

			address := c.String("wallet")
			if _, err := dashboard.ParseAddress(address); err != nil {
				return err
			}

			rules := trading.DefaultRules()
			if path := c.String("rules"); path != "" {
				loaded, err := trading.LoadRules(path)
				if err != nil {
					return err
				}
				rules = loaded
			}

			raws, err := readTransactions(c.Args().First())
			if err != nil {
				return err
			}

			result := analyzeHistory(address, raws, rules)
			return emit(c, result, func(w io.Writer) {
				fmt.Fprintf(w, "Wallet: %s\n", result.Address)
				fmt.Fprintln(w, rule)
				printTransactions(w, result.Transactions)
				fmt.Fprintln(w)
				printTrading(w, result.Trading)
			})
		},
	}
}

func readTransactions(path string) ([]solana.RawTransaction, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	var raws []solana.RawTransaction
	if err := json.NewDecoder(r).Decode(&raws); err != nil {
		return nil, fmt.Errorf("failed to decode transactions: %w", err)
	}
	return raws, nil
}

func analyzeHistory(address string, raws []solana.RawTransaction, rules trading.Rules) analysis {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	normalizer := feed.NewNormalizer(nil, nil, logger)
	analyzer := trading.NewAnalyzer(trading.NewKeywordClassifier(rules, logger), nil, nil, logger)

	summary := analyzer.Summarize(raws)
	return analysis{
		Address:      address,
		Transactions: normalizer.NormalizeBatch(raws, address),
		Trading:      summary,
		Prompt:       trading.BuildPrompt(summary),
	}
}
