package ledger

import (
	"errors"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// derivedAddressMarker domain-separates program-derived addresses from
// addresses obtained by hashing public keys.
const derivedAddressMarker = "EscrowLedgerDerivedAddress"

var (
	// ErrInvalidSeeds is returned when the seed material cannot produce a
	// usable derived address for the given bump.
	ErrInvalidSeeds = errors.New("ledger: invalid derivation seeds")
	// ErrNoViableBump is returned when no bump byte yields a valid address.
	ErrNoViableBump = errors.New("ledger: no viable bump seed")

	// reservedDigest is the degenerate digest of empty seed material; any
	// candidate colliding with it is rejected by the search.
	reservedDigest = NewAddress(ethcrypto.Keccak256([]byte(derivedAddressMarker)))
)

// CreateProgramAddress deterministically derives the address controlled by
// program for the given seeds and bump byte. The result carries no key
// material: it is authorized structurally, by the host re-running this exact
// derivation.
func CreateProgramAddress(seeds [][]byte, bump byte, program Address) (Address, error) {
	input := make([]byte, 0, 64)
	for _, seed := range seeds {
		if len(seed) > 32 {
			return Address{}, ErrInvalidSeeds
		}
		input = append(input, seed...)
	}
	input = append(input, bump)
	input = append(input, program[:]...)
	input = append(input, derivedAddressMarker...)

	candidate := NewAddress(ethcrypto.Keccak256(input))
	if candidate == reservedDigest || candidate.IsZero() {
		return Address{}, ErrInvalidSeeds
	}
	return candidate, nil
}

// FindProgramAddress searches bump bytes from 255 downward and returns the
// first valid derived address together with the bump that produced it. The
// search is deterministic, so repeated calls always agree.
func FindProgramAddress(seeds [][]byte, program Address) (Address, byte, error) {
	for bump := 255; bump >= 0; bump-- {
		addr, err := CreateProgramAddress(seeds, byte(bump), program)
		if err == nil {
			return addr, byte(bump), nil
		}
		if !errors.Is(err, ErrInvalidSeeds) {
			return Address{}, 0, err
		}
	}
	return Address{}, 0, ErrNoViableBump
}
