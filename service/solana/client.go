package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/walletlens/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetBalance(
		ctx context.Context,
		account solana.PublicKey,
		commitment rpc.CommitmentType,
	) (*rpc.GetBalanceResult, error)

	GetTokenAccountsByOwner(
		ctx context.Context,
		owner solana.PublicKey,
		conf *rpc.GetTokenAccountsConfig,
		opts *rpc.GetTokenAccountsOpts,
	) (*rpc.GetTokenAccountsResult, error)
}

// TokenAccountBalance is one SPL token account owned by a wallet.
type TokenAccountBalance struct {
	Account   string
	Mint      string
	Owner     string
	RawAmount string // integer amount in base units
	Decimals  int32
}

// Client reads wallet state (native balance and token accounts) from a Solana RPC node.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // RPC endpoint identifier for metrics (e.g., "mainnet", rpc host)
}

// NewClient creates a new Solana client.
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		rpc:      rpcClient,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
	}
}

// GetBalance returns the wallet's native balance in SOL.
func (c *Client) GetBalance(ctx context.Context, wallet solana.PublicKey) (float64, error) {
	start := time.Now()
	out, err := c.rpc.GetBalance(ctx, wallet, rpc.CommitmentConfirmed)
	c.record("GetBalance", start, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get balance",
			"wallet", wallet.String(),
			"error", err,
		)
		return 0, fmt.Errorf("get balance: %w", err)
	}
	if out == nil {
		return 0, fmt.Errorf("get balance: empty response")
	}

	balance := float64(out.Value) / float64(LamportsPerSOL)
	c.logger.DebugContext(ctx, "fetched balance",
		"wallet", wallet.String(),
		"lamports", out.Value,
	)
	return balance, nil
}

// parsedTokenAccount mirrors the jsonParsed encoding of an SPL token account.
type parsedTokenAccount struct {
	Parsed struct {
		Info struct {
			Mint        string `json:"mint"`
			Owner       string `json:"owner"`
			TokenAmount struct {
				Amount   string `json:"amount"`
				Decimals int32  `json:"decimals"`
			} `json:"tokenAmount"`
		} `json:"info"`
		Type string `json:"type"`
	} `json:"parsed"`
}

// GetTokenAccounts lists the wallet's SPL token accounts with a nonzero balance.
// Accounts whose data cannot be decoded are skipped.
func (c *Client) GetTokenAccounts(ctx context.Context, wallet solana.PublicKey) ([]TokenAccountBalance, error) {
	start := time.Now()
	out, err := c.rpc.GetTokenAccountsByOwner(ctx, wallet,
		&rpc.GetTokenAccountsConfig{ProgramId: solana.TokenProgramID.ToPointer()},
		&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingJSONParsed, Commitment: rpc.CommitmentConfirmed},
	)
	c.record("GetTokenAccountsByOwner", start, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get token accounts",
			"wallet", wallet.String(),
			"error", err,
		)
		return nil, fmt.Errorf("get token accounts: %w", err)
	}
	if out == nil {
		return nil, nil
	}

	accounts := make([]TokenAccountBalance, 0, len(out.Value))
	for _, ta := range out.Value {
		if ta == nil || ta.Account.Data == nil {
			continue
		}
		var parsed parsedTokenAccount
		if err := json.Unmarshal(ta.Account.Data.GetRawJSON(), &parsed); err != nil {
			c.logger.WarnContext(ctx, "skipping undecodable token account",
				"account", ta.Pubkey.String(),
				"error", err,
			)
			continue
		}
		info := parsed.Parsed.Info
		if info.TokenAmount.Amount == "" || info.TokenAmount.Amount == "0" {
			continue
		}
		accounts = append(accounts, TokenAccountBalance{
			Account:   ta.Pubkey.String(),
			Mint:      info.Mint,
			Owner:     info.Owner,
			RawAmount: info.TokenAmount.Amount,
			Decimals:  info.TokenAmount.Decimals,
		})
	}

	c.logger.DebugContext(ctx, "fetched token accounts",
		"wallet", wallet.String(),
		"total", len(out.Value),
		"nonzero", len(accounts),
	)
	return accounts, nil
}

func (c *Client) record(method string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRPCCall(method, status, c.endpoint, time.Since(start).Seconds())
}
