package token

import (
	"bytes"
	"errors"
	"testing"

	"escrowd/ledger"
)

func testAddress(fill byte) ledger.Address {
	var addr ledger.Address
	copy(addr[:], bytes.Repeat([]byte{fill}, 32))
	return addr
}

func newTestAccount(t *testing.T, e *Engine, key, owner ledger.Address, native bool, balance uint64) *ledger.Account {
	t.Helper()
	acct := &ledger.Account{Key: key, Owner: e.ID(), Lamports: 1000, Data: make([]byte, AccountLen)}
	if err := e.InitializeAccount(acct, owner, native); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if balance > 0 {
		if err := e.Mint(acct, balance); err != nil {
			t.Fatalf("mint: %v", err)
		}
	}
	return acct
}

func TestInitializeAccountRejectsReuse(t *testing.T) {
	e := NewEngine(testAddress(0x02))
	acct := newTestAccount(t, e, testAddress(0x10), testAddress(0x11), false, 0)
	if err := e.InitializeAccount(acct, testAddress(0x12), false); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("err = %v, want ErrAlreadyInitialized", err)
	}
}

func TestTransferRequiresOwnerSignature(t *testing.T) {
	e := NewEngine(testAddress(0x02))
	owner := testAddress(0x11)
	from := newTestAccount(t, e, testAddress(0x10), owner, false, 100)
	to := newTestAccount(t, e, testAddress(0x12), testAddress(0x13), false, 0)

	unsigned := SignerAuthority(&ledger.Account{Key: owner})
	if err := e.Transfer(from, to, 50, unsigned); !errors.Is(err, ErrMissingSigner) {
		t.Fatalf("err = %v, want ErrMissingSigner", err)
	}

	wrong := SignerAuthority(&ledger.Account{Key: testAddress(0x14), Signer: true})
	if err := e.Transfer(from, to, 50, wrong); !errors.Is(err, ErrOwnerMismatch) {
		t.Fatalf("err = %v, want ErrOwnerMismatch", err)
	}

	signed := SignerAuthority(&ledger.Account{Key: owner, Signer: true})
	if err := e.Transfer(from, to, 50, signed); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	fromState, _ := Unpack(from.Data)
	toState, _ := Unpack(to.Data)
	if fromState.Balance != 50 || toState.Balance != 50 {
		t.Fatalf("balances = %d/%d, want 50/50", fromState.Balance, toState.Balance)
	}
}

func TestTransferWithDerivedAuthority(t *testing.T) {
	e := NewEngine(testAddress(0x02))
	program := testAddress(0x01)
	seeds := [][]byte{[]byte("escrow"), program[:]}
	derived, bump, err := ledger.FindProgramAddress(seeds, program)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	from := newTestAccount(t, e, testAddress(0x10), derived, false, 100)
	to := newTestAccount(t, e, testAddress(0x12), testAddress(0x13), false, 0)

	bad := DerivedAuthority(program, seeds, bump+1, derived)
	if err := e.Transfer(from, to, 10, bad); !errors.Is(err, ErrInvalidAuthority) {
		t.Fatalf("err = %v, want ErrInvalidAuthority", err)
	}

	good := DerivedAuthority(program, seeds, bump, derived)
	if err := e.Transfer(from, to, 10, good); err != nil {
		t.Fatalf("transfer: %v", err)
	}
}

func TestTransferChecksFundsAndOverflow(t *testing.T) {
	e := NewEngine(testAddress(0x02))
	owner := testAddress(0x11)
	from := newTestAccount(t, e, testAddress(0x10), owner, false, 10)
	to := newTestAccount(t, e, testAddress(0x12), testAddress(0x13), false, 0)
	signed := SignerAuthority(&ledger.Account{Key: owner, Signer: true})

	if err := e.Transfer(from, to, 11, signed); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}

	full := newTestAccount(t, e, testAddress(0x14), testAddress(0x15), false, 0)
	if err := e.Mint(full, ^uint64(0)); err != nil {
		t.Fatalf("mint max: %v", err)
	}
	if err := e.Transfer(from, full, 1, signed); !errors.Is(err, ErrAmountOverflow) {
		t.Fatalf("err = %v, want ErrAmountOverflow", err)
	}
}

func TestCloseAccountSemantics(t *testing.T) {
	e := NewEngine(testAddress(0x02))
	owner := testAddress(0x11)
	signed := SignerAuthority(&ledger.Account{Key: owner, Signer: true})
	dest := &ledger.Account{Key: testAddress(0x20), Lamports: 5}

	held := newTestAccount(t, e, testAddress(0x10), owner, false, 10)
	if err := e.CloseAccount(held, dest, signed); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds for non-empty account", err)
	}

	empty := newTestAccount(t, e, testAddress(0x12), owner, false, 0)
	rent := empty.Lamports
	if err := e.CloseAccount(empty, dest, signed); err != nil {
		t.Fatalf("close: %v", err)
	}
	if dest.Lamports != 5+rent {
		t.Fatalf("dest lamports = %d, want %d", dest.Lamports, 5+rent)
	}
	if empty.Lamports != 0 {
		t.Fatal("closed account retains lamports")
	}

	native := newTestAccount(t, e, testAddress(0x13), owner, true, 100)
	total := native.Lamports
	destBefore := dest.Lamports
	if err := e.CloseAccount(native, dest, signed); err != nil {
		t.Fatalf("close native: %v", err)
	}
	if dest.Lamports != destBefore+total {
		t.Fatalf("native close paid %d, want %d", dest.Lamports-destBefore, total)
	}
}

func TestSetOwner(t *testing.T) {
	e := NewEngine(testAddress(0x02))
	owner := testAddress(0x11)
	acct := newTestAccount(t, e, testAddress(0x10), owner, false, 0)

	if err := e.SetOwner(acct, testAddress(0x12), &ledger.Account{Key: owner}); !errors.Is(err, ErrMissingSigner) {
		t.Fatalf("err = %v, want ErrMissingSigner", err)
	}
	if err := e.SetOwner(acct, testAddress(0x12), &ledger.Account{Key: testAddress(0x13), Signer: true}); !errors.Is(err, ErrOwnerMismatch) {
		t.Fatalf("err = %v, want ErrOwnerMismatch", err)
	}
	if err := e.SetOwner(acct, testAddress(0x12), &ledger.Account{Key: owner, Signer: true}); err != nil {
		t.Fatalf("set owner: %v", err)
	}
	state, _ := Unpack(acct.Data)
	if state.Owner != testAddress(0x12) {
		t.Fatalf("owner = %s, want %s", state.Owner, testAddress(0x12))
	}
}

func TestNativeTransferMovesLamports(t *testing.T) {
	e := NewEngine(testAddress(0x02))
	owner := testAddress(0x11)
	from := newTestAccount(t, e, testAddress(0x10), owner, true, 100)
	to := newTestAccount(t, e, testAddress(0x12), testAddress(0x13), true, 0)
	signed := SignerAuthority(&ledger.Account{Key: owner, Signer: true})

	fromBefore, toBefore := from.Lamports, to.Lamports
	if err := e.Transfer(from, to, 40, signed); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if from.Lamports != fromBefore-40 || to.Lamports != toBefore+40 {
		t.Fatalf("lamports %d/%d, want %d/%d", from.Lamports, to.Lamports, fromBefore-40, toBefore+40)
	}

	plain := newTestAccount(t, e, testAddress(0x14), testAddress(0x15), false, 0)
	if err := e.Transfer(from, plain, 1, signed); !errors.Is(err, ErrNativeMismatch) {
		t.Fatalf("err = %v, want ErrNativeMismatch", err)
	}
}
