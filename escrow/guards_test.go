package escrow

import (
	"errors"
	"testing"

	"escrowd/ledger"
	"escrowd/token"
)

func TestAssertSigner(t *testing.T) {
	if err := assertSigner(&ledger.Account{Signer: true}); err != nil {
		t.Fatalf("signer rejected: %v", err)
	}
	if err := assertSigner(&ledger.Account{}); !errors.Is(err, ErrMissingSigner) {
		t.Fatalf("err = %v, want ErrMissingSigner", err)
	}
	if err := assertSigner(nil); !errors.Is(err, ErrMissingSigner) {
		t.Fatalf("nil account: err = %v, want ErrMissingSigner", err)
	}
}

func TestAssertOwnedBy(t *testing.T) {
	owner := newTestAddress(0x01)
	if err := assertOwnedBy(&ledger.Account{Owner: owner}, owner); err != nil {
		t.Fatalf("owner rejected: %v", err)
	}
	if err := assertOwnedBy(&ledger.Account{Owner: newTestAddress(0x02)}, owner); !errors.Is(err, ErrIllegalOwner) {
		t.Fatalf("err = %v, want ErrIllegalOwner", err)
	}
}

func TestAssertAccountKey(t *testing.T) {
	key := newTestAddress(0x05)
	if err := assertAccountKey(&ledger.Account{Key: key}, key); err != nil {
		t.Fatalf("key rejected: %v", err)
	}
	if err := assertAccountKey(&ledger.Account{Key: newTestAddress(0x06)}, key); !errors.Is(err, ErrAccountKeyMismatch) {
		t.Fatalf("err = %v, want ErrAccountKeyMismatch", err)
	}
}

func TestAssertRentExempt(t *testing.T) {
	rent := ledger.DefaultRent()
	data := make([]byte, EscrowLen)
	exempt := &ledger.Account{Lamports: rent.MinimumBalance(EscrowLen), Data: data}
	if err := assertRentExempt(rent, exempt); err != nil {
		t.Fatalf("exempt account rejected: %v", err)
	}
	poor := &ledger.Account{Lamports: rent.MinimumBalance(EscrowLen) - 1, Data: data}
	if err := assertRentExempt(rent, poor); !errors.Is(err, ErrNotRentExempt) {
		t.Fatalf("err = %v, want ErrNotRentExempt", err)
	}
}

func TestAssertInitializedToken(t *testing.T) {
	engine := token.NewEngine(newTestAddress(0x02))
	acct := &ledger.Account{
		Key:   newTestAddress(0x03),
		Owner: engine.ID(),
		Data:  make([]byte, token.AccountLen),
	}
	if _, err := assertInitializedToken(acct); !errors.Is(err, ErrAccountNotInitialized) {
		t.Fatalf("err = %v, want ErrAccountNotInitialized", err)
	}
	if err := engine.InitializeAccount(acct, newTestAddress(0x04), false); err != nil {
		t.Fatalf("init token account: %v", err)
	}
	state, err := assertInitializedToken(acct)
	if err != nil {
		t.Fatalf("initialized account rejected: %v", err)
	}
	if state.Owner != newTestAddress(0x04) {
		t.Fatalf("unexpected owner %s", state.Owner)
	}

	if _, err := assertInitializedToken(&ledger.Account{Data: []byte{1, 2}}); !errors.Is(err, ErrInvalidAccountData) {
		t.Fatalf("err = %v, want ErrInvalidAccountData", err)
	}
}

func TestAssertUninitialized(t *testing.T) {
	if err := assertUninitialized(&Escrow{}); err != nil {
		t.Fatalf("fresh record rejected: %v", err)
	}
	if err := assertUninitialized(&Escrow{Initialized: true}); !errors.Is(err, ErrAccountAlreadyInitialized) {
		t.Fatalf("err = %v, want ErrAccountAlreadyInitialized", err)
	}
}
