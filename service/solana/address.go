package solana

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/gagliardetto/solana-go"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = solana.LAMPORTS_PER_SOL

const maxAddressLength = 100 // base58 public keys are 32-44 chars, leave a buffer

var validAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)

// AddressError describes why a wallet address was rejected.
type AddressError struct {
	Address string
	Reason  string
}

func (e *AddressError) Error() string {
	return e.Reason
}

// ValidateAddress checks that address is a syntactically valid base58 public key.
func ValidateAddress(address string) error {
	if address == "" {
		return &AddressError{Address: address, Reason: "address is required"}
	}
	if len(address) > maxAddressLength {
		return &AddressError{Address: address, Reason: fmt.Sprintf("address too long: maximum %d characters", maxAddressLength)}
	}
	if strings.TrimSpace(address) != address {
		return &AddressError{Address: address, Reason: "address cannot contain leading or trailing whitespace"}
	}
	for _, r := range address {
		if unicode.IsControl(r) {
			return &AddressError{Address: address, Reason: "address contains invalid characters"}
		}
	}
	if !validAddressRegex.MatchString(address) {
		return &AddressError{Address: address, Reason: "address contains invalid characters: must be base58"}
	}
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return &AddressError{Address: address, Reason: fmt.Sprintf("invalid public key: %v", err)}
	}
	return nil
}

// ParseAddress validates address and returns the decoded public key.
func ParseAddress(address string) (solana.PublicKey, error) {
	if err := ValidateAddress(address); err != nil {
		return solana.PublicKey{}, err
	}
	return solana.MustPublicKeyFromBase58(address), nil
}
