package token

import (
	"escrowd/ledger"
)

// Engine is the in-process token ledger program. Escrow issues SetOwner,
// Transfer and CloseAccount against it the way an on-chain program would
// invoke its token service; the engine revalidates everything from the
// account handles it is given.
type Engine struct {
	id ledger.Address
}

// NewEngine returns a token engine executing under the given program id. All
// token accounts it manages carry that id in their ledger-level owner field.
func NewEngine(id ledger.Address) *Engine {
	return &Engine{id: id}
}

// ID returns the token program's identity.
func (e *Engine) ID() ledger.Address { return e.id }

// Authority is the capability presented for balance-moving operations. It is
// either a transaction signer or a program-derived address authorized
// structurally through seed material, never a secret.
type Authority struct {
	address ledger.Address
	signer  *ledger.Account
	program ledger.Address
	seeds   [][]byte
	bump    byte
	derived bool
}

// SignerAuthority authorizes an operation with an account that signed the
// current transaction.
func SignerAuthority(acct *ledger.Account) Authority {
	if acct == nil {
		return Authority{}
	}
	return Authority{address: acct.Key, signer: acct}
}

// DerivedAuthority authorizes an operation with a program-derived address.
// The engine re-runs the derivation before honoring it.
func DerivedAuthority(program ledger.Address, seeds [][]byte, bump byte, address ledger.Address) Authority {
	return Authority{address: address, program: program, seeds: seeds, bump: bump, derived: true}
}

// Address returns the address the capability claims to act as.
func (a Authority) Address() ledger.Address { return a.address }

func (e *Engine) verifyAuthority(owner ledger.Address, auth Authority) error {
	if auth.derived {
		derived, err := ledger.CreateProgramAddress(auth.seeds, auth.bump, auth.program)
		if err != nil || derived != auth.address {
			return ErrInvalidAuthority
		}
	} else {
		if auth.signer == nil || !auth.signer.Signer {
			return ErrMissingSigner
		}
		if auth.signer.Key != auth.address {
			return ErrInvalidAuthority
		}
	}
	if owner != auth.address {
		return ErrOwnerMismatch
	}
	return nil
}

func (e *Engine) unpackOwned(acct *ledger.Account) (*Account, error) {
	if acct == nil || acct.Owner != e.id {
		return nil, ErrIllegalOwner
	}
	return Unpack(acct.Data)
}

// InitializeAccount marks a freshly allocated, program-owned account as an
// initialized token account held by owner.
func (e *Engine) InitializeAccount(acct *ledger.Account, owner ledger.Address, native bool) error {
	if acct == nil || acct.Owner != e.id {
		return ErrIllegalOwner
	}
	state, err := UnpackUnchecked(acct.Data)
	if err != nil {
		return err
	}
	if state.Initialized {
		return ErrAlreadyInitialized
	}
	state.Initialized = true
	state.Native = native
	state.Owner = owner
	state.Balance = 0
	return Pack(state, acct.Data)
}

// Mint credits amount to the account. For native accounts the deposit also
// raises the backing ledger balance, keeping lamports and token balance in
// step. Host-side tooling only; the escrow program never mints.
func (e *Engine) Mint(acct *ledger.Account, amount uint64) error {
	state, err := e.unpackOwned(acct)
	if err != nil {
		return err
	}
	next, ok := checkedAdd(state.Balance, amount)
	if !ok {
		return ErrAmountOverflow
	}
	state.Balance = next
	if state.Native {
		lamports, ok := checkedAdd(acct.Lamports, amount)
		if !ok {
			return ErrAmountOverflow
		}
		acct.Lamports = lamports
	}
	return Pack(state, acct.Data)
}

// SetOwner reassigns the token-level owner of acct. The current owner must
// have signed the transaction.
func (e *Engine) SetOwner(acct *ledger.Account, newOwner ledger.Address, owner *ledger.Account) error {
	state, err := e.unpackOwned(acct)
	if err != nil {
		return err
	}
	if owner == nil || !owner.Signer {
		return ErrMissingSigner
	}
	if state.Owner != owner.Key {
		return ErrOwnerMismatch
	}
	state.Owner = newOwner
	return Pack(state, acct.Data)
}

// Transfer moves amount from one token account to another under the given
// authority. Native transfers move backing lamports alongside the balance.
func (e *Engine) Transfer(from, to *ledger.Account, amount uint64, auth Authority) error {
	fromState, err := e.unpackOwned(from)
	if err != nil {
		return err
	}
	toState, err := e.unpackOwned(to)
	if err != nil {
		return err
	}
	if fromState.Native != toState.Native {
		return ErrNativeMismatch
	}
	if err := e.verifyAuthority(fromState.Owner, auth); err != nil {
		return err
	}
	if fromState.Balance < amount {
		return ErrInsufficientFunds
	}
	toBalance, ok := checkedAdd(toState.Balance, amount)
	if !ok {
		return ErrAmountOverflow
	}
	fromState.Balance -= amount
	toState.Balance = toBalance
	if fromState.Native {
		fromLamports, ok := checkedSub(from.Lamports, amount)
		if !ok {
			return ErrAmountOverflow
		}
		toLamports, ok := checkedAdd(to.Lamports, amount)
		if !ok {
			return ErrAmountOverflow
		}
		from.Lamports = fromLamports
		to.Lamports = toLamports
	}
	if err := Pack(fromState, from.Data); err != nil {
		return err
	}
	return Pack(toState, to.Data)
}

// CloseAccount destroys acct and sends its entire ledger balance, rent
// included, to dest. Non-native accounts must be empty first; native
// accounts fold their remaining balance into the payout.
func (e *Engine) CloseAccount(acct, dest *ledger.Account, auth Authority) error {
	state, err := e.unpackOwned(acct)
	if err != nil {
		return err
	}
	if err := e.verifyAuthority(state.Owner, auth); err != nil {
		return err
	}
	if !state.Native && state.Balance != 0 {
		return ErrInsufficientFunds
	}
	destLamports, ok := checkedAdd(dest.Lamports, acct.Lamports)
	if !ok {
		return ErrAmountOverflow
	}
	dest.Lamports = destLamports
	acct.Lamports = 0
	for i := range acct.Data {
		acct.Data[i] = 0
	}
	return nil
}

func checkedAdd(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

func checkedSub(a, b uint64) (uint64, bool) {
	if b > a {
		return 0, false
	}
	return a - b, true
}
