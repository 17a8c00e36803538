package escrow

import (
	"escrowd/ledger"
	"escrowd/token"
)

// The guard predicates below are composed, never bypassed, by every
// transition handler before any mutation. Each returns a specific sentinel
// so a failing invocation reports exactly one cause.

func assertSigner(acct *ledger.Account) error {
	if acct != nil && acct.Signer {
		return nil
	}
	return ErrMissingSigner
}

func assertOwnedBy(acct *ledger.Account, owner ledger.Address) error {
	if acct == nil || acct.Owner != owner {
		return ErrIllegalOwner
	}
	return nil
}

func assertAccountKey(acct *ledger.Account, key ledger.Address) error {
	if acct == nil || acct.Key != key {
		return ErrAccountKeyMismatch
	}
	return nil
}

func assertRentExempt(rent ledger.Rent, acct *ledger.Account) error {
	if acct == nil || !rent.IsExempt(acct.Lamports, len(acct.Data)) {
		return ErrNotRentExempt
	}
	return nil
}

func assertUninitialized(esc *Escrow) error {
	if esc.Initialized {
		return ErrAccountAlreadyInitialized
	}
	return nil
}

// assertInitializedToken decodes a token account and requires it to be set
// up. The decode is unchecked so the initialized flag itself is what gets
// reported, not a generic data error.
func assertInitializedToken(acct *ledger.Account) (*token.Account, error) {
	if acct == nil {
		return nil, ErrInvalidAccountData
	}
	state, err := token.UnpackUnchecked(acct.Data)
	if err != nil {
		return nil, ErrInvalidAccountData
	}
	if !state.Initialized {
		return nil, ErrAccountNotInitialized
	}
	return state, nil
}
