package solana

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

const (
	maxSeeds      = 16
	maxSeedLength = 32
)

// ErrOnCurve is returned when the seeds hash to a valid ed25519 point.
var ErrOnCurve = errors.New("derived address is on the ed25519 curve")

// CreateProgramAddress derives the program address for seeds. The last seed
// normally holds the bump.
func CreateProgramAddress(seeds [][]byte, programID string) (string, error) {
	program, err := ParsePublicKey(programID)
	if err != nil {
		return "", err
	}
	if len(seeds) > maxSeeds {
		return "", fmt.Errorf("too many seeds: %d", len(seeds))
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > maxSeedLength {
			return "", fmt.Errorf("seed longer than %d bytes", maxSeedLength)
		}
		h.Write(seed)
	}
	h.Write(program)
	h.Write([]byte("ProgramDerivedAddress"))
	sum := h.Sum(nil)

	if IsOnCurve(sum) {
		return "", ErrOnCurve
	}
	return base58.Encode(sum), nil
}

// FindProgramAddress searches bumps from 255 down and returns the first
// off-curve address with its bump.
func FindProgramAddress(seeds [][]byte, programID string) (string, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if errors.Is(err, ErrOnCurve) {
			continue
		}
		if err != nil {
			return "", 0, err
		}
		return addr, uint8(bump), nil
	}
	return "", 0, fmt.Errorf("no viable bump for program %s", programID)
}

// IsOnCurve reports whether b is the encoding of an ed25519 point.
func IsOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
