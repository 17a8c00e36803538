package ledger

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
)

// AddressPrefix is the human-readable part used when rendering addresses.
const AddressPrefix = "esc"

// Address identifies an account on the ledger. Regular addresses are keccak
// digests of public keys; program-derived addresses come out of
// CreateProgramAddress.
type Address [32]byte

// NewAddress copies b into an Address. Panics when b is not 32 bytes long;
// callers handing in untrusted input should use ParseAddress instead.
func NewAddress(b []byte) Address {
	if len(b) != 32 {
		panic("ledger: address must be 32 bytes long")
	}
	var a Address
	copy(a[:], b)
	return a
}

func (a Address) Bytes() []byte { return a[:] }

// IsZero reports whether the address is the all-zero value.
func (a Address) IsZero() bool { return a == Address{} }

// String renders the address as bech32 with the "esc" prefix.
func (a Address) String() string {
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(AddressPrefix, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Hex returns the lowercase hex form without a 0x prefix.
func (a Address) Hex() string { return hex.EncodeToString(a[:]) }

// ParseAddress accepts either the bech32 form produced by String or 64 hex
// characters.
func ParseAddress(s string) (Address, error) {
	if len(s) == 64 {
		raw, err := hex.DecodeString(s)
		if err == nil {
			return NewAddress(raw), nil
		}
	}
	prefix, decoded, err := bech32.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if prefix != AddressPrefix {
		return Address{}, fmt.Errorf("invalid address prefix %q", prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(conv) != 32 {
		return Address{}, fmt.Errorf("invalid address length %d", len(conv))
	}
	return NewAddress(conv), nil
}
