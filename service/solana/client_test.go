package solana

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRPCClient implements RPCClient for testing.
// It's behavior-focused: we set what it should return, not verify call sequences.
type mockRPCClient struct {
	balance       *rpc.GetBalanceResult
	tokenAccounts *rpc.GetTokenAccountsResult
	err           error
}

func (m *mockRPCClient) GetBalance(
	ctx context.Context,
	account solana.PublicKey,
	commitment rpc.CommitmentType,
) (*rpc.GetBalanceResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.balance, nil
}

func (m *mockRPCClient) GetTokenAccountsByOwner(
	ctx context.Context,
	owner solana.PublicKey,
	conf *rpc.GetTokenAccountsConfig,
	opts *rpc.GetTokenAccountsOpts,
) (*rpc.GetTokenAccountsResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.tokenAccounts, nil
}

func newTestClient(mock *mockRPCClient) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(mock, "test", nil, logger)
}

// tokenAccountsFromJSON builds an RPC result through JSON because
// DataBytesOrJSON keeps its parsed payload in unexported fields.
func tokenAccountsFromJSON(t *testing.T, raw string) *rpc.GetTokenAccountsResult {
	t.Helper()
	var out rpc.GetTokenAccountsResult
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return &out
}

const testWallet = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

func TestGetBalance(t *testing.T) {
	mock := &mockRPCClient{balance: &rpc.GetBalanceResult{Value: 2_500_000_000}}
	client := newTestClient(mock)

	balance, err := client.GetBalance(context.Background(), solana.MustPublicKeyFromBase58(testWallet))
	require.NoError(t, err)
	assert.InDelta(t, 2.5, balance, 1e-9)
}

func TestGetBalance_RPCError(t *testing.T) {
	mock := &mockRPCClient{err: errors.New("connection refused")}
	client := newTestClient(mock)

	_, err := client.GetBalance(context.Background(), solana.MustPublicKeyFromBase58(testWallet))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestGetTokenAccounts_SkipsZeroBalances(t *testing.T) {
	result := tokenAccountsFromJSON(t, `{
		"context": {"slot": 1},
		"value": [
			{
				"pubkey": "So11111111111111111111111111111111111111112",
				"account": {
					"lamports": 2039280,
					"owner": "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
					"executable": false,
					"data": {
						"program": "spl-token",
						"space": 165,
						"parsed": {
							"type": "account",
							"info": {
								"mint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
								"owner": "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
								"tokenAmount": {"amount": "5000000", "decimals": 6, "uiAmount": 5.0}
							}
						}
					}
				}
			},
			{
				"pubkey": "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
				"account": {
					"lamports": 2039280,
					"owner": "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
					"executable": false,
					"data": {
						"program": "spl-token",
						"space": 165,
						"parsed": {
							"type": "account",
							"info": {
								"mint": "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263",
								"owner": "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
								"tokenAmount": {"amount": "0", "decimals": 5, "uiAmount": 0}
							}
						}
					}
				}
			}
		]
	}`)

	client := newTestClient(&mockRPCClient{tokenAccounts: result})

	accounts, err := client.GetTokenAccounts(context.Background(), solana.MustPublicKeyFromBase58(testWallet))
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", accounts[0].Mint)
	assert.Equal(t, "5000000", accounts[0].RawAmount)
	assert.Equal(t, int32(6), accounts[0].Decimals)
	assert.Equal(t, testWallet, accounts[0].Owner)
}

func TestGetTokenAccounts_RPCError(t *testing.T) {
	client := newTestClient(&mockRPCClient{err: errors.New("429 Too Many Requests")})

	accounts, err := client.GetTokenAccounts(context.Background(), solana.MustPublicKeyFromBase58(testWallet))
	require.Error(t, err)
	assert.Nil(t, accounts)
}

func TestGetTokenAccounts_SkipsEntriesWithoutData(t *testing.T) {
	result := &rpc.GetTokenAccountsResult{
		Value: []*rpc.TokenAccount{
			nil,
			{Pubkey: solana.MustPublicKeyFromBase58(testWallet)},
		},
	}
	client := newTestClient(&mockRPCClient{tokenAccounts: result})

	accounts, err := client.GetTokenAccounts(context.Background(), solana.MustPublicKeyFromBase58(testWallet))
	require.NoError(t, err)
	assert.Empty(t, accounts)
}
