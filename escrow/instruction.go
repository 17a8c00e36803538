package escrow

import "encoding/binary"

// Instruction tags, the first byte of every command buffer.
const (
	tagInit byte = iota
	tagSettle
	tagCancel
	tagClose
)

// Instruction is one of the four commands the engine reacts to. Decoding
// either yields a fully typed command or fails; there is no partial success.
type Instruction interface {
	isInstruction()
}

// InitEscrow populates a freshly allocated escrow record and hands vault
// custody to the derived authority.
//
// Accounts expected:
//
//  0. `[signer]` payer initializing the escrow
//  1. `[writable]` vault token account, funded with the deposit and still
//     owned by the payer
//  2. `[signer]` escrow authority approving or refunding the payment
//  3. `[writable]` escrow record account
//  4. `[]` payer token account refunded on cancellation
//  5. `[]` payee token account paid on settlement
//  6. `[]` fee token account paid the fee on settlement
//  7. `[]` rent parameters account
//  8. `[]` token program
type InitEscrow struct {
	// Amount is the total deposit custodied by the vault.
	Amount uint64
	// Fee is withheld from the payout on settlement.
	Fee uint64
}

// Settle pays the deposit to the payee, minus the fee.
//
// Accounts expected:
//
//  0. `[signer]` the escrow authority
//  1. `[writable]` payee token account
//  2. `[writable]` fee token account
//  3. `[writable]` vault token account, drained and closed
//  4. `[writable]` escrow record account
//  5. `[writable]` fee payer account receiving the vault's rent
//  6. `[]` token program
//  7. `[]` derived authority account
type Settle struct{}

// Cancel returns the full deposit to the payer.
//
// Accounts expected:
//
//  0. `[signer]` the escrow authority
//  1. `[writable]` escrow record account
//  2. `[writable]` payer token account
//  3. `[writable]` fee payer account receiving the vault's rent
//  4. `[writable]` vault token account, drained and closed
//  5. `[]` token program
//  6. `[]` derived authority account
type Cancel struct{}

// Close destroys a settled or canceled escrow record and reclaims its rent.
//
// Accounts expected:
//
//  0. `[signer]` the escrow authority
//  1. `[writable]` escrow record account
//  2. `[writable]` recipient of the record's remaining balance
type Close struct{}

func (InitEscrow) isInstruction() {}
func (Settle) isInstruction()     {}
func (Cancel) isInstruction()     {}
func (Close) isInstruction()      {}

// DecodeInstruction unpacks a byte buffer into one of the four commands.
func DecodeInstruction(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return nil, ErrInvalidInstruction
	}
	tag, rest := data[0], data[1:]
	switch tag {
	case tagInit:
		amount, err := unpackUint64(rest, 0)
		if err != nil {
			return nil, err
		}
		fee, err := unpackUint64(rest, 8)
		if err != nil {
			return nil, err
		}
		return InitEscrow{Amount: amount, Fee: fee}, nil
	case tagSettle:
		return Settle{}, nil
	case tagCancel:
		return Cancel{}, nil
	case tagClose:
		return Close{}, nil
	default:
		return nil, ErrInvalidInstruction
	}
}

func unpackUint64(data []byte, offset int) (uint64, error) {
	if len(data) < offset+8 {
		return 0, ErrInvalidInstruction
	}
	return binary.LittleEndian.Uint64(data[offset : offset+8]), nil
}

// EncodeInstruction produces the byte form consumed by DecodeInstruction.
// Used by client tooling and tests.
func EncodeInstruction(ins Instruction) []byte {
	switch cmd := ins.(type) {
	case InitEscrow:
		buf := make([]byte, 17)
		buf[0] = tagInit
		binary.LittleEndian.PutUint64(buf[1:9], cmd.Amount)
		binary.LittleEndian.PutUint64(buf[9:17], cmd.Fee)
		return buf
	case Settle:
		return []byte{tagSettle}
	case Cancel:
		return []byte{tagCancel}
	case Close:
		return []byte{tagClose}
	default:
		return nil
	}
}
