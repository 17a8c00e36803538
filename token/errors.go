package token

import "errors"

var (
	ErrInvalidAccountData    = errors.New("token: invalid account data")
	ErrAccountNotInitialized = errors.New("token: account not initialized")
	ErrAlreadyInitialized    = errors.New("token: account already initialized")
	ErrIllegalOwner          = errors.New("token: account not owned by token program")
	ErrOwnerMismatch         = errors.New("token: authority does not own account")
	ErrMissingSigner         = errors.New("token: missing required signature")
	ErrInvalidAuthority      = errors.New("token: authority derivation mismatch")
	ErrInsufficientFunds     = errors.New("token: insufficient funds")
	ErrAmountOverflow        = errors.New("token: amount overflow")
	ErrNativeMismatch        = errors.New("token: native flag mismatch")
)
