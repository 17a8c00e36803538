package escrow

import (
	"encoding/binary"

	"escrowd/ledger"
)

// EscrowLen is the serialized size of an escrow record.
const EscrowLen = 211

// Offset table shared by Pack and the two unpack variants. The wire layout
// is fixed; in-memory struct layout is never trusted to match it.
const (
	offInitialized = 0
	offSettled     = 1
	offCanceled    = 2
	offPayer       = 3
	offPayerToken  = 35
	offPayeeToken  = 67
	offVaultToken  = 99
	offAuthority   = 131
	offFeeToken    = 163
	offAmount      = 195
	offFee         = 203
)

// Escrow is the single persistent entity: one record per trade, stored in a
// program-owned ledger account of exactly EscrowLen bytes.
type Escrow struct {
	Initialized bool
	Settled     bool
	Canceled    bool
	Payer       ledger.Address
	PayerToken  ledger.Address
	PayeeToken  ledger.Address
	VaultToken  ledger.Address
	Authority   ledger.Address
	FeeToken    ledger.Address
	Amount      uint64
	Fee         uint64
}

// IsSettled reports whether settlement has been durably recorded.
func (e *Escrow) IsSettled() bool { return e.Settled }

// IsCanceled reports whether cancellation has been durably recorded.
func (e *Escrow) IsCanceled() bool { return e.Canceled }

// Open reports whether the record admits a Settle or Cancel transition.
func (e *Escrow) Open() bool { return e.Initialized && !e.Settled && !e.Canceled }

func unpackBool(b byte) (bool, error) {
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, ErrInvalidAccountData
	}
}

// Unpack decodes a record and requires it to be initialized.
func Unpack(src []byte) (*Escrow, error) {
	esc, err := UnpackUnchecked(src)
	if err != nil {
		return nil, err
	}
	if !esc.Initialized {
		return nil, ErrAccountNotInitialized
	}
	return esc, nil
}

// UnpackUnchecked decodes a record without the initialized requirement. Only
// initialization uses it, so an all-zero freshly allocated region is not
// rejected before the invariant exists.
func UnpackUnchecked(src []byte) (*Escrow, error) {
	if len(src) != EscrowLen {
		return nil, ErrInvalidAccountData
	}
	esc := &Escrow{}
	var err error
	if esc.Initialized, err = unpackBool(src[offInitialized]); err != nil {
		return nil, err
	}
	if esc.Settled, err = unpackBool(src[offSettled]); err != nil {
		return nil, err
	}
	if esc.Canceled, err = unpackBool(src[offCanceled]); err != nil {
		return nil, err
	}
	copy(esc.Payer[:], src[offPayer:offPayer+32])
	copy(esc.PayerToken[:], src[offPayerToken:offPayerToken+32])
	copy(esc.PayeeToken[:], src[offPayeeToken:offPayeeToken+32])
	copy(esc.VaultToken[:], src[offVaultToken:offVaultToken+32])
	copy(esc.Authority[:], src[offAuthority:offAuthority+32])
	copy(esc.FeeToken[:], src[offFeeToken:offFeeToken+32])
	esc.Amount = binary.LittleEndian.Uint64(src[offAmount : offAmount+8])
	esc.Fee = binary.LittleEndian.Uint64(src[offFee : offFee+8])
	return esc, nil
}

// Pack encodes the record into dst, which must be exactly EscrowLen bytes.
func Pack(esc *Escrow, dst []byte) error {
	if esc == nil || len(dst) != EscrowLen {
		return ErrInvalidAccountData
	}
	dst[offInitialized] = boolByte(esc.Initialized)
	dst[offSettled] = boolByte(esc.Settled)
	dst[offCanceled] = boolByte(esc.Canceled)
	copy(dst[offPayer:offPayer+32], esc.Payer[:])
	copy(dst[offPayerToken:offPayerToken+32], esc.PayerToken[:])
	copy(dst[offPayeeToken:offPayeeToken+32], esc.PayeeToken[:])
	copy(dst[offVaultToken:offVaultToken+32], esc.VaultToken[:])
	copy(dst[offAuthority:offAuthority+32], esc.Authority[:])
	copy(dst[offFeeToken:offFeeToken+32], esc.FeeToken[:])
	binary.LittleEndian.PutUint64(dst[offAmount:offAmount+8], esc.Amount)
	binary.LittleEndian.PutUint64(dst[offFee:offFee+8], esc.Fee)
	return nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
