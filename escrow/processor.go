package escrow

import (
	"log/slog"

	"escrowd/core/events"
	"escrowd/core/types"
	"escrowd/ledger"
	"escrowd/token"
)

// TokenProgram is the narrow slice of the token ledger the processor issues
// instructions to. *token.Engine satisfies it; tests may substitute their
// own.
type TokenProgram interface {
	ID() ledger.Address
	SetOwner(acct *ledger.Account, newOwner ledger.Address, owner *ledger.Account) error
	Transfer(from, to *ledger.Account, amount uint64, auth token.Authority) error
	CloseAccount(acct, dest *ledger.Account, auth token.Authority) error
}

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// Processor executes the four escrow transitions against caller-supplied
// account lists. Every account is unauthenticated input; each handler
// reconstructs trust through the guard predicates and the derived authority
// before any balance-affecting operation.
type Processor struct {
	programID ledger.Address
	token     TokenProgram
	rent      ledger.Rent
	emitter   events.Emitter
	log       *slog.Logger
}

// NewProcessor creates a processor bound to its program identity and token
// ledger. Rent parameters default to the hosted ledger's and the emitter to
// a no-op.
func NewProcessor(programID ledger.Address, tokenProgram TokenProgram) *Processor {
	return &Processor{
		programID: programID,
		token:     tokenProgram,
		rent:      ledger.DefaultRent(),
		emitter:   events.NoopEmitter{},
		log:       slog.Default(),
	}
}

// SetRent overrides the rent parameters used for exemption checks.
func (p *Processor) SetRent(rent ledger.Rent) { p.rent = rent }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (p *Processor) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		p.emitter = events.NoopEmitter{}
		return
	}
	p.emitter = emitter
}

// SetLogger overrides the processor's logger.
func (p *Processor) SetLogger(log *slog.Logger) {
	if log == nil {
		p.log = slog.Default()
		return
	}
	p.log = log
}

// ProgramID returns the identity the processor executes under.
func (p *Processor) ProgramID() ledger.Address { return p.programID }

func (p *Processor) emit(event *types.Event) {
	if p == nil || p.emitter == nil || event == nil {
		return
	}
	p.emitter.Emit(escrowEvent{evt: event})
}

type accountIter struct {
	accounts []*ledger.Account
	idx      int
}

func (it *accountIter) next() (*ledger.Account, error) {
	if it.idx >= len(it.accounts) {
		return nil, ErrNotEnoughAccounts
	}
	acct := it.accounts[it.idx]
	it.idx++
	return acct, nil
}

// Process decodes the instruction bytes and dispatches to the matching
// transition handler. Any failure is the invocation's sole outcome; the host
// discards all attempted mutations.
func (p *Processor) Process(accounts []*ledger.Account, data []byte) error {
	instruction, err := DecodeInstruction(data)
	if err != nil {
		return err
	}
	switch cmd := instruction.(type) {
	case InitEscrow:
		p.log.Info("Instruction: InitEscrow")
		return p.processInit(accounts, cmd.Amount, cmd.Fee)
	case Settle:
		p.log.Info("Instruction: Settle")
		return p.processSettle(accounts)
	case Cancel:
		p.log.Info("Instruction: Cancel")
		return p.processCancel(accounts)
	case Close:
		p.log.Info("Instruction: Close")
		return p.processClose(accounts)
	default:
		return ErrInvalidInstruction
	}
}

func (p *Processor) processInit(accounts []*ledger.Account, amount, fee uint64) error {
	iter := &accountIter{accounts: accounts}
	payerInfo, err := iter.next()
	if err != nil {
		return err
	}
	if err := assertSigner(payerInfo); err != nil {
		return err
	}
	vaultInfo, err := iter.next()
	if err != nil {
		return err
	}
	if err := assertOwnedBy(vaultInfo, p.token.ID()); err != nil {
		return err
	}
	vaultState, err := assertInitializedToken(vaultInfo)
	if err != nil {
		return err
	}
	if vaultState.Balance != amount {
		p.log.Info("mismatched amount", "got", amount, "expected", vaultState.Balance)
		return ErrExpectedAmountMismatch
	}

	authorityInfo, err := iter.next()
	if err != nil {
		return err
	}
	if err := assertSigner(authorityInfo); err != nil {
		return err
	}

	escrowInfo, err := iter.next()
	if err != nil {
		return err
	}
	payerTokenInfo, err := iter.next()
	if err != nil {
		return err
	}
	payeeTokenInfo, err := iter.next()
	if err != nil {
		return err
	}
	feeTokenInfo, err := iter.next()
	if err != nil {
		return err
	}
	if vaultState.IsNative() {
		if err := assertAccountKey(payerTokenInfo, payerInfo.Key); err != nil {
			return err
		}
	} else {
		if err := assertOwnedBy(payerTokenInfo, p.token.ID()); err != nil {
			return err
		}
		if err := assertOwnedBy(payeeTokenInfo, p.token.ID()); err != nil {
			return err
		}
		if err := assertOwnedBy(feeTokenInfo, p.token.ID()); err != nil {
			return err
		}
		if _, err := assertInitializedToken(payerTokenInfo); err != nil {
			return err
		}
		if _, err := assertInitializedToken(payeeTokenInfo); err != nil {
			return err
		}
		if _, err := assertInitializedToken(feeTokenInfo); err != nil {
			return err
		}
	}

	rentInfo, err := iter.next()
	if err != nil {
		return err
	}
	if err := assertAccountKey(rentInfo, ledger.RentParamsAddress); err != nil {
		return err
	}
	if err := assertRentExempt(p.rent, escrowInfo); err != nil {
		return err
	}

	esc, err := UnpackUnchecked(escrowInfo.Data)
	if err != nil {
		return err
	}
	if err := assertUninitialized(esc); err != nil {
		return err
	}
	if fee > amount {
		return ErrFeeOverflow
	}
	esc.Initialized = true
	esc.Settled = false
	esc.Canceled = false
	esc.Fee = fee
	esc.Payer = payerInfo.Key
	esc.PayerToken = payerTokenInfo.Key
	esc.PayeeToken = payeeTokenInfo.Key
	esc.VaultToken = vaultInfo.Key
	esc.FeeToken = feeTokenInfo.Key
	esc.Authority = authorityInfo.Key
	esc.Amount = amount

	if err := Pack(esc, escrowInfo.Data); err != nil {
		return err
	}

	vaultAuthority, _, err := FindProgramAuthority(p.programID)
	if err != nil {
		return err
	}

	tokenProgramInfo, err := iter.next()
	if err != nil {
		return err
	}
	if err := assertAccountKey(tokenProgramInfo, p.token.ID()); err != nil {
		return err
	}

	p.log.Info("transferring vault ownership to the derived authority")
	if err := p.token.SetOwner(vaultInfo, vaultAuthority, payerInfo); err != nil {
		return err
	}
	p.emit(NewInitializedEvent(escrowInfo.Key, esc))
	return nil
}

func (p *Processor) processSettle(accounts []*ledger.Account) error {
	p.log.Info("processing settlement")
	iter := &accountIter{accounts: accounts}
	authorityInfo, err := iter.next()
	if err != nil {
		return err
	}
	if err := assertSigner(authorityInfo); err != nil {
		return err
	}

	payeeTokenInfo, err := iter.next()
	if err != nil {
		return err
	}
	feeTokenInfo, err := iter.next()
	if err != nil {
		return err
	}

	vaultInfo, err := iter.next()
	if err != nil {
		return err
	}
	if err := assertOwnedBy(vaultInfo, p.token.ID()); err != nil {
		return err
	}
	vaultState, err := assertInitializedToken(vaultInfo)
	if err != nil {
		return err
	}

	escrowInfo, err := iter.next()
	if err != nil {
		return err
	}
	esc, err := Unpack(escrowInfo.Data)
	if err != nil {
		return err
	}
	if esc.IsCanceled() {
		return ErrAccountAlreadyCanceled
	}
	if esc.IsSettled() {
		return ErrAccountAlreadySettled
	}

	if err := assertAccountKey(authorityInfo, esc.Authority); err != nil {
		return err
	}
	if err := assertAccountKey(payeeTokenInfo, esc.PayeeToken); err != nil {
		return err
	}
	if err := assertAccountKey(feeTokenInfo, esc.FeeToken); err != nil {
		return err
	}
	if err := assertAccountKey(vaultInfo, esc.VaultToken); err != nil {
		return err
	}

	feePayerInfo, err := iter.next()
	if err != nil {
		return err
	}

	tokenProgramInfo, err := iter.next()
	if err != nil {
		return err
	}
	if err := assertAccountKey(tokenProgramInfo, p.token.ID()); err != nil {
		return err
	}

	vaultAuthority, bump, err := FindProgramAuthority(p.programID)
	if err != nil {
		return err
	}
	vaultAuthorityInfo, err := iter.next()
	if err != nil {
		return err
	}
	if err := assertAccountKey(vaultAuthorityInfo, vaultAuthority); err != nil {
		return err
	}
	auth := token.DerivedAuthority(p.programID, authoritySeeds(p.programID), bump, vaultAuthority)

	fee := esc.Fee
	if fee > vaultState.Balance {
		p.log.Info("fee exceeds vault balance", "fee", fee, "balance", vaultState.Balance)
		return ErrFeeOverflow
	}
	payout, ok := checkedSub(vaultState.Balance, fee)
	if !ok {
		return ErrAmountOverflow
	}

	if vaultState.IsNative() {
		p.log.Info("closing vault into the escrow account")
		if err := p.token.CloseAccount(vaultInfo, escrowInfo, auth); err != nil {
			return err
		}
		if err := moveLamports(escrowInfo, payeeTokenInfo, payout); err != nil {
			return err
		}
		if fee > 0 {
			if err := moveLamports(escrowInfo, feeTokenInfo, fee); err != nil {
				return err
			}
		}
	} else {
		p.log.Info("transferring payout to the payee", "amount", payout)
		if err := p.token.Transfer(vaultInfo, payeeTokenInfo, payout, auth); err != nil {
			return err
		}
		if fee > 0 {
			p.log.Info("transferring fee to the fee account", "fee", fee)
			if err := p.token.Transfer(vaultInfo, feeTokenInfo, fee, auth); err != nil {
				return err
			}
		}
		if err := p.token.CloseAccount(vaultInfo, feePayerInfo, auth); err != nil {
			return err
		}
	}

	p.log.Info("marking the escrow account as settled")
	esc.Settled = true
	if err := Pack(esc, escrowInfo.Data); err != nil {
		return err
	}
	p.emit(NewSettledEvent(escrowInfo.Key, esc))
	return nil
}

func (p *Processor) processCancel(accounts []*ledger.Account) error {
	p.log.Info("processing cancellation")
	iter := &accountIter{accounts: accounts}
	authorityInfo, err := iter.next()
	if err != nil {
		return err
	}
	if err := assertSigner(authorityInfo); err != nil {
		return err
	}

	escrowInfo, err := iter.next()
	if err != nil {
		return err
	}
	payerTokenInfo, err := iter.next()
	if err != nil {
		return err
	}
	feePayerInfo, err := iter.next()
	if err != nil {
		return err
	}
	vaultInfo, err := iter.next()
	if err != nil {
		return err
	}
	vaultState, err := assertInitializedToken(vaultInfo)
	if err != nil {
		return err
	}

	esc, err := Unpack(escrowInfo.Data)
	if err != nil {
		return err
	}
	if esc.IsCanceled() {
		return ErrAccountAlreadyCanceled
	}
	if esc.IsSettled() {
		return ErrAccountAlreadySettled
	}

	if err := assertAccountKey(payerTokenInfo, esc.PayerToken); err != nil {
		return err
	}
	if err := assertAccountKey(authorityInfo, esc.Authority); err != nil {
		return err
	}
	if err := assertAccountKey(vaultInfo, esc.VaultToken); err != nil {
		return err
	}

	if _, err := iter.next(); err != nil { // token program slot
		return err
	}

	vaultAuthority, bump, err := FindProgramAuthority(p.programID)
	if err != nil {
		return err
	}
	vaultAuthorityInfo, err := iter.next()
	if err != nil {
		return err
	}
	if err := assertAccountKey(vaultAuthorityInfo, vaultAuthority); err != nil {
		return err
	}
	auth := token.DerivedAuthority(p.programID, authoritySeeds(p.programID), bump, vaultAuthority)

	amount := vaultState.Balance
	if vaultState.IsNative() {
		p.log.Info("closing vault into the escrow account")
		if err := p.token.CloseAccount(vaultInfo, escrowInfo, auth); err != nil {
			return err
		}
		if err := moveLamports(escrowInfo, payerTokenInfo, amount); err != nil {
			return err
		}
	} else {
		p.log.Info("returning deposit to the payer", "amount", amount)
		if err := p.token.Transfer(vaultInfo, payerTokenInfo, amount, auth); err != nil {
			return err
		}
		if err := p.token.CloseAccount(vaultInfo, feePayerInfo, auth); err != nil {
			return err
		}
	}

	p.log.Info("marking the escrow account as canceled")
	esc.Canceled = true
	if err := Pack(esc, escrowInfo.Data); err != nil {
		return err
	}
	p.emit(NewCanceledEvent(escrowInfo.Key, esc))
	return nil
}

func (p *Processor) processClose(accounts []*ledger.Account) error {
	iter := &accountIter{accounts: accounts}
	authorityInfo, err := iter.next()
	if err != nil {
		return err
	}
	if err := assertSigner(authorityInfo); err != nil {
		return err
	}

	escrowInfo, err := iter.next()
	if err != nil {
		return err
	}
	if err := assertOwnedBy(escrowInfo, p.programID); err != nil {
		return err
	}
	esc, err := Unpack(escrowInfo.Data)
	if err != nil {
		return err
	}
	if esc.Authority != authorityInfo.Key {
		return ErrInvalidAccountData
	}
	if !(esc.IsSettled() || esc.IsCanceled()) {
		return ErrAccountNotSettledOrCanceled
	}

	feePayerInfo, err := iter.next()
	if err != nil {
		return err
	}
	p.log.Info("closing the escrow account")
	total, ok := checkedAdd(feePayerInfo.Lamports, escrowInfo.Lamports)
	if !ok {
		return ErrAmountOverflow
	}
	feePayerInfo.Lamports = total
	escrowInfo.Lamports = 0
	for i := range escrowInfo.Data {
		escrowInfo.Data[i] = 0
	}
	escrowInfo.Data = escrowInfo.Data[:0]
	p.emit(NewClosedEvent(escrowInfo.Key, esc))
	return nil
}

// moveLamports shifts value between two accounts by direct balance
// adjustment, failing on any underflow or overflow.
func moveLamports(from, to *ledger.Account, value uint64) error {
	remaining, ok := checkedSub(from.Lamports, value)
	if !ok {
		return ErrAmountOverflow
	}
	raised, ok := checkedAdd(to.Lamports, value)
	if !ok {
		return ErrAmountOverflow
	}
	from.Lamports = remaining
	to.Lamports = raised
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
