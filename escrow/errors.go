package escrow

import "errors"

var (
	// ErrInvalidInstruction rejects malformed command bytes.
	ErrInvalidInstruction = errors.New("escrow: invalid instruction")
	// ErrInvalidAccountData rejects malformed or inconsistent record bytes.
	ErrInvalidAccountData = errors.New("escrow: invalid account data")
	// ErrExpectedAmountMismatch fires when the vault balance does not match
	// the declared deposit at initialization time.
	ErrExpectedAmountMismatch = errors.New("escrow: expected amount mismatch")
	// ErrFeeOverflow fires when the fee exceeds the amount it is taken from.
	ErrFeeOverflow = errors.New("escrow: fee exceeds available amount")
	// ErrAmountOverflow guards every balance addition and subtraction.
	ErrAmountOverflow = errors.New("escrow: amount overflow")

	ErrAccountAlreadyInitialized   = errors.New("escrow: account already initialized")
	ErrAccountAlreadySettled       = errors.New("escrow: escrow already settled")
	ErrAccountAlreadyCanceled      = errors.New("escrow: escrow already canceled")
	ErrAccountNotSettledOrCanceled = errors.New("escrow: escrow neither settled nor canceled")
	ErrAccountNotInitialized       = errors.New("escrow: account not initialized")
	ErrInvalidAuthorityID          = errors.New("escrow: invalid authority id")

	ErrMissingSigner      = errors.New("escrow: missing required signature")
	ErrIllegalOwner       = errors.New("escrow: illegal account owner")
	ErrAccountKeyMismatch = errors.New("escrow: unexpected account key")
	ErrNotRentExempt      = errors.New("escrow: account not rent exempt")
	ErrNotEnoughAccounts  = errors.New("escrow: not enough account keys")
)
