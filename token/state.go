package token

import (
	"encoding/binary"

	"escrowd/ledger"
)

// AccountLen is the serialized size of a token account's state.
//
// Layout: initialized:u8, native:u8, owner:32B, balance:u64-le.
const AccountLen = 42

const (
	offInitialized = 0
	offNative      = 1
	offOwner       = 2
	offBalance     = 34
)

// Account is the deserialized state of one token-ledger balance holder. For
// native accounts the balance mirrors deposited lamports held alongside rent
// in the backing ledger account.
type Account struct {
	Initialized bool
	Native      bool
	Owner       ledger.Address
	Balance     uint64
}

// IsNative reports whether the account holds the ledger's native currency
// rather than a fungible token balance.
func (a *Account) IsNative() bool { return a.Native }

func decodeBool(b byte) (bool, error) {
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, ErrInvalidAccountData
	}
}

// Unpack decodes src and requires the account to be initialized.
func Unpack(src []byte) (*Account, error) {
	acc, err := UnpackUnchecked(src)
	if err != nil {
		return nil, err
	}
	if !acc.Initialized {
		return nil, ErrAccountNotInitialized
	}
	return acc, nil
}

// UnpackUnchecked decodes src without the initialized check. Used when
// setting up fresh accounts whose state is still all zero.
func UnpackUnchecked(src []byte) (*Account, error) {
	if len(src) != AccountLen {
		return nil, ErrInvalidAccountData
	}
	initialized, err := decodeBool(src[offInitialized])
	if err != nil {
		return nil, err
	}
	native, err := decodeBool(src[offNative])
	if err != nil {
		return nil, err
	}
	acc := &Account{
		Initialized: initialized,
		Native:      native,
		Balance:     binary.LittleEndian.Uint64(src[offBalance : offBalance+8]),
	}
	copy(acc.Owner[:], src[offOwner:offOwner+32])
	return acc, nil
}

// Pack encodes the account state into dst, which must be exactly AccountLen
// bytes.
func Pack(acc *Account, dst []byte) error {
	if acc == nil || len(dst) != AccountLen {
		return ErrInvalidAccountData
	}
	dst[offInitialized] = boolByte(acc.Initialized)
	dst[offNative] = boolByte(acc.Native)
	copy(dst[offOwner:offOwner+32], acc.Owner[:])
	binary.LittleEndian.PutUint64(dst[offBalance:offBalance+8], acc.Balance)
	return nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
