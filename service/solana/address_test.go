package solana

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		wantErr string
	}{
		{name: "valid wallet", address: "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"},
		{name: "valid program id", address: "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"},
		{name: "empty", address: "", wantErr: "address is required"},
		{name: "too long", address: strings.Repeat("A", 500), wantErr: "address too long"},
		{name: "leading whitespace", address: " 9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM", wantErr: "whitespace"},
		{name: "null byte", address: "wallet\x00123", wantErr: "invalid characters"},
		{name: "non base58 zero", address: "0WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM", wantErr: "must be base58"},
		{name: "sql injection", address: "wallet'; DROP TABLE wallets; --", wantErr: "must be base58"},
		{name: "wrong length", address: "abc", wantErr: "invalid public key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.address)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var addrErr *AddressError
			assert.True(t, errors.As(err, &addrErr))
		})
	}
}

func TestRawTransaction_Failed(t *testing.T) {
	assert.False(t, (&RawTransaction{}).Failed())
	assert.False(t, (&RawTransaction{TransactionError: []byte("null")}).Failed())
	assert.True(t, (&RawTransaction{TransactionError: []byte(`{"InstructionError":[0,"Custom"]}`)}).Failed())
}

func TestRawTransaction_SearchTextIsLowerCase(t *testing.T) {
	raw := &RawTransaction{Signature: "Sig", Type: "SWAP", Source: "JUPITER"}
	text := raw.SearchText()
	assert.Contains(t, text, "jupiter")
	assert.NotContains(t, text, "JUPITER")
}
