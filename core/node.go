package core

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"escrowd/core/events"
	"escrowd/core/types"
	"escrowd/escrow"
	"escrowd/ledger"
	"escrowd/observability/metrics"
	"escrowd/token"
)

var (
	ErrUnknownProgram = errors.New("core: unknown program")
	ErrUnknownAccount = errors.New("core: unknown account")
	ErrAccountExists  = errors.New("core: account already exists")
)

// AccountMeta names one account an instruction claims to touch, together
// with the transaction-level flags the host asserts for it.
type AccountMeta struct {
	Key      ledger.Address
	Signer   bool
	Writable bool
}

// Node is the host runtime: it executes one instruction at a time with an
// exclusive, serialized view of the accounts it names. An invocation either
// commits all of its writable-account mutations or none of them.
type Node struct {
	mu        sync.Mutex
	store     *ledger.AccountStore
	rent      ledger.Rent
	processor *escrow.Processor
	token     *token.Engine
	log       *slog.Logger
	pending   []*types.Event
}

// eventCollector funnels processor emissions into the invocation currently
// holding the node lock.
type eventCollector struct {
	node *Node
}

func (c eventCollector) Emit(evt events.Event) {
	payload, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	c.node.pending = append(c.node.pending, payload.Event())
}

// NewNode wires the account store, token engine and escrow processor into a
// runnable host runtime.
func NewNode(db ledger.Database, programID, tokenProgramID ledger.Address, log *slog.Logger) *Node {
	if log == nil {
		log = slog.Default()
	}
	n := &Node{
		store: ledger.NewAccountStore(db),
		rent:  ledger.DefaultRent(),
		token: token.NewEngine(tokenProgramID),
		log:   log,
	}
	n.processor = escrow.NewProcessor(programID, n.token)
	n.processor.SetRent(n.rent)
	n.processor.SetEmitter(eventCollector{node: n})
	n.processor.SetLogger(log)
	return n
}

// ProgramID returns the escrow program identity the node hosts.
func (n *Node) ProgramID() ledger.Address { return n.processor.ProgramID() }

// TokenProgramID returns the identity of the in-process token ledger.
func (n *Node) TokenProgramID() ledger.Address { return n.token.ID() }

// Rent returns the ledger's rent parameters.
func (n *Node) Rent() ledger.Rent { return n.rent }

func (n *Node) loadAccount(meta AccountMeta) (*ledger.Account, error) {
	switch meta.Key {
	case ledger.RentParamsAddress, n.token.ID():
		// Well-known accounts exist implicitly and carry no state here.
		return &ledger.Account{Key: meta.Key}, nil
	}
	acc, err := n.store.Get(meta.Key)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, meta.Key)
		}
		return nil, err
	}
	return acc, nil
}

// SubmitInstruction runs one instruction against the named accounts and
// returns the events it emitted. Mutations reach the store only when the
// program succeeds; any failure leaves the ledger untouched.
func (n *Node) SubmitInstruction(program ledger.Address, metas []AccountMeta, data []byte) ([]*types.Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if program != n.processor.ProgramID() {
		return nil, ErrUnknownProgram
	}

	accounts := make([]*ledger.Account, 0, len(metas))
	byKey := make(map[ledger.Address]*ledger.Account, len(metas))
	for _, meta := range metas {
		acc, ok := byKey[meta.Key]
		if !ok {
			loaded, err := n.loadAccount(meta)
			if err != nil {
				return nil, err
			}
			acc = loaded
			byKey[meta.Key] = acc
		}
		acc.Signer = acc.Signer || meta.Signer
		acc.Writable = acc.Writable || meta.Writable
		accounts = append(accounts, acc)
	}

	n.pending = nil
	instruction := "unknown"
	if ins, err := escrow.DecodeInstruction(data); err == nil {
		instruction = instructionName(ins)
	}
	if err := n.processor.Process(accounts, data); err != nil {
		n.pending = nil
		metrics.Escrow().ObserveInstruction(instruction, "error")
		return nil, err
	}

	for _, acc := range accounts {
		if !acc.Writable {
			continue
		}
		switch acc.Key {
		case ledger.RentParamsAddress, n.token.ID():
			continue
		}
		if acc.Lamports == 0 && len(acc.Data) == 0 {
			if err := n.store.Delete(acc.Key); err != nil {
				return nil, err
			}
			continue
		}
		if err := n.store.Put(acc); err != nil {
			return nil, err
		}
	}

	metrics.Escrow().ObserveInstruction(instruction, "ok")
	emitted := n.pending
	n.pending = nil
	observeVolumes(emitted)
	return emitted, nil
}

func observeVolumes(emitted []*types.Event) {
	for _, evt := range emitted {
		if evt == nil {
			continue
		}
		amount, _ := strconv.ParseUint(evt.Attributes["amount"], 10, 64)
		fee, _ := strconv.ParseUint(evt.Attributes["fee"], 10, 64)
		switch evt.Type {
		case escrow.EventTypeEscrowSettled:
			if amount >= fee {
				metrics.Escrow().ObserveSettlement(amount-fee, fee)
			}
		case escrow.EventTypeEscrowCanceled:
			metrics.Escrow().ObserveRefund(amount)
		}
	}
}

func instructionName(ins escrow.Instruction) string {
	switch ins.(type) {
	case escrow.InitEscrow:
		return "init"
	case escrow.Settle:
		return "settle"
	case escrow.Cancel:
		return "cancel"
	case escrow.Close:
		return "close"
	default:
		return "unknown"
	}
}

// GetAccount returns a copy of the stored account.
func (n *Node) GetAccount(addr ledger.Address) (*ledger.Account, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	acc, err := n.store.Get(addr)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, addr)
	}
	return acc, err
}

// EscrowInfo loads and decodes the escrow record stored under addr.
func (n *Node) EscrowInfo(addr ledger.Address) (*escrow.Escrow, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	acc, err := n.store.Get(addr)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, addr)
		}
		return nil, err
	}
	if acc.Owner != n.processor.ProgramID() {
		return nil, escrow.ErrIllegalOwner
	}
	return escrow.Unpack(acc.Data)
}

// CreateAccount allocates a fresh account with the given owner, balance and
// data size. Allocation is the host's concern; programs only ever see
// accounts that already exist.
func (n *Node) CreateAccount(addr, owner ledger.Address, lamports uint64, size int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.createAccountLocked(addr, owner, lamports, size)
}

func (n *Node) createAccountLocked(addr, owner ledger.Address, lamports uint64, size int) error {
	if _, err := n.store.Get(addr); err == nil {
		return fmt.Errorf("%w: %s", ErrAccountExists, addr)
	} else if !errors.Is(err, ledger.ErrNotFound) {
		return err
	}
	return n.store.Put(&ledger.Account{
		Key:      addr,
		Owner:    owner,
		Lamports: lamports,
		Data:     make([]byte, size),
	})
}

// FundAccount credits lamports to a system account, creating it on first use.
func (n *Node) FundAccount(addr ledger.Address, lamports uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	acc, err := n.store.Get(addr)
	if errors.Is(err, ledger.ErrNotFound) {
		acc = &ledger.Account{Key: addr}
	} else if err != nil {
		return err
	}
	acc.Lamports += lamports
	return n.store.Put(acc)
}

// InitTokenAccount allocates a rent-exempt token account held by owner and
// registers it with the token ledger.
func (n *Node) InitTokenAccount(addr, owner ledger.Address, native bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	lamports := n.rent.MinimumBalance(token.AccountLen)
	if err := n.createAccountLocked(addr, n.token.ID(), lamports, token.AccountLen); err != nil {
		return err
	}
	acc, err := n.store.Get(addr)
	if err != nil {
		return err
	}
	if err := n.token.InitializeAccount(acc, owner, native); err != nil {
		return err
	}
	return n.store.Put(acc)
}

// MintTokens credits a deposit to a token account. Host tooling for fixtures
// and local operation; not reachable from program instructions.
func (n *Node) MintTokens(addr ledger.Address, amount uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	acc, err := n.store.Get(addr)
	if err != nil {
		return err
	}
	if err := n.token.Mint(acc, amount); err != nil {
		return err
	}
	return n.store.Put(acc)
}
