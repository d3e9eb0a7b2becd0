package solana

import (
	"fmt"

	"github.com/mr-tron/base58"
)

const (
	publicKeyLength = 32
	signatureLength = 64
)

// ParsePublicKey checks that s is a base58 encoded 32-byte public key.
func ParsePublicKey(s string) ([]byte, error) {
	return decodeFixed(s, publicKeyLength, "public key")
}

// ParseSignature checks that s is a base58 encoded 64-byte signature.
func ParseSignature(s string) ([]byte, error) {
	return decodeFixed(s, signatureLength, "signature")
}

// IsPublicKey reports whether s is a valid public key.
func IsPublicKey(s string) bool {
	_, err := ParsePublicKey(s)
	return err == nil
}

// IsSignature reports whether s is a valid transaction signature.
func IsSignature(s string) bool {
	_, err := ParseSignature(s)
	return err == nil
}

func decodeFixed(s string, size int, kind string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("empty %s", kind)
	}
	b, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", kind, err)
	}
	if len(b) != size {
		return nil, fmt.Errorf("invalid %s: decoded to %d bytes, want %d", kind, len(b), size)
	}
	return b, nil
}

// LamportsToSOL converts lamports to SOL.
func LamportsToSOL(lamports uint64) float64 {
	return float64(lamports) / LamportsPerSOL
}
