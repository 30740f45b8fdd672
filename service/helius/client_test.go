package helius

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWallet = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

func TestGetTransactions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v0/addresses/"+testWallet+"/transactions", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api-key"))
		assert.Equal(t, "25", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{
				"signature": "sig1",
				"type": "TRANSFER",
				"source": "SYSTEM_PROGRAM",
				"timestamp": 1700000000,
				"fee": 5000,
				"transactionError": null,
				"nativeTransfers": [
					{"fromUserAccount": "` + testWallet + `", "toUserAccount": "dest", "amount": 2000000000}
				],
				"tokenTransfers": [],
				"accountData": [
					{"account": "` + testWallet + `", "nativeBalanceChange": -2000005000, "tokenBalanceChanges": []}
				]
			}
		]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", server.Client(), nil, nil)
	txns, err := client.GetTransactions(context.Background(), testWallet, 25)
	require.NoError(t, err)
	require.Len(t, txns, 1)

	tx := txns[0]
	assert.Equal(t, "sig1", tx.Signature)
	assert.Equal(t, int64(1700000000), tx.Timestamp)
	assert.Equal(t, uint64(5000), tx.Fee)
	assert.False(t, tx.Failed())
	require.Len(t, tx.NativeTransfers, 1)
	assert.Equal(t, int64(2_000_000_000), tx.NativeTransfers[0].Amount)
	require.Len(t, tx.AccountData, 1)
	assert.Equal(t, int64(-2000005000), tx.AccountData[0].NativeBalanceChange)
}

func TestGetTransactions_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limited"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", server.Client(), nil, nil)
	_, err := client.GetTransactions(context.Background(), testWallet, 10)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "rate limited")
}

func TestGetTransactions_MalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not": "a list"`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", server.Client(), nil, nil)
	_, err := client.GetTransactions(context.Background(), testWallet, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestTokenMetadata_EmptyInputSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", server.Client(), nil, nil)
	out, err := client.TokenMetadata(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, int32(0), calls.Load())
}

func TestTokenMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v0/token-metadata", r.URL.Path)

		var req metadataRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"mintA", "mintB"}, req.MintAccounts)

		w.Write([]byte(`[
			{
				"account": "mintA",
				"onChainAccountInfo": {"accountInfo": {"data": {"parsed": {"info": {"decimals": 6}}}}},
				"onChainMetadata": {"metadata": {"data": {"name": "USD Coin", "symbol": "USDC"}}},
				"legacyMetadata": {"symbol": "USDC", "name": "USD Coin", "decimals": 6, "logoURI": "https://example.com/usdc.png"}
			},
			{
				"account": "mintB",
				"onChainAccountInfo": {"accountInfo": {"data": {"parsed": {"info": {"decimals": 5}}}}},
				"onChainMetadata": {"metadata": {"data": {"name": "", "symbol": ""}}},
				"legacyMetadata": null
			}
		]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", server.Client(), nil, nil)
	out, err := client.TokenMetadata(context.Background(), []string{"mintA", "mintB"})
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "USDC", out[0].Symbol)
	assert.Equal(t, "USD Coin", out[0].Name)
	assert.Equal(t, int32(6), out[0].Decimals)
	assert.Equal(t, "https://example.com/usdc.png", out[0].LogoURI)

	assert.Equal(t, "mintB", out[1].Mint)
	assert.Empty(t, out[1].Symbol)
	assert.Equal(t, int32(5), out[1].Decimals)
}

func TestTransportErrorsDoNotLeakAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	client := NewClient(baseURL, "SUPERSECRETKEY", nil, nil, nil)

	_, err := client.GetTransactions(context.Background(), testWallet, 10)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SUPERSECRETKEY")
	assert.Contains(t, err.Error(), "api-key=REDACTED")

	var uerr *url.Error
	require.ErrorAs(t, err, &uerr)

	_, err = client.TokenMetadata(context.Background(), []string{"mint"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SUPERSECRETKEY")
}
