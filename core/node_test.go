package core

import (
	"bytes"
	"errors"
	"testing"

	"escrowd/escrow"
	"escrowd/ledger"
	"escrowd/token"
)

func nodeAddress(fill byte) ledger.Address {
	var addr ledger.Address
	copy(addr[:], bytes.Repeat([]byte{fill}, 32))
	return addr
}

type nodeFixture struct {
	node      *Node
	programID ledger.Address
	derived   ledger.Address

	payer      ledger.Address
	authority  ledger.Address
	escrowAcct ledger.Address
	vault      ledger.Address
	payerToken ledger.Address
	payeeToken ledger.Address
	feeToken   ledger.Address
	feePayer   ledger.Address
}

func newNodeFixture(t *testing.T) *nodeFixture {
	t.Helper()
	programID := nodeAddress(0x01)
	tokenProgramID := nodeAddress(0x02)
	node := NewNode(ledger.NewMemDB(), programID, tokenProgramID, nil)

	derived, _, err := escrow.FindProgramAuthority(programID)
	if err != nil {
		t.Fatalf("derive authority: %v", err)
	}

	f := &nodeFixture{
		node:       node,
		programID:  programID,
		derived:    derived,
		payer:      nodeAddress(0x10),
		authority:  nodeAddress(0x11),
		escrowAcct: nodeAddress(0x12),
		vault:      nodeAddress(0x13),
		payerToken: nodeAddress(0x14),
		payeeToken: nodeAddress(0x15),
		feeToken:   nodeAddress(0x16),
		feePayer:   nodeAddress(0x17),
	}

	for _, addr := range []ledger.Address{f.payer, f.authority, f.feePayer, derived} {
		if err := node.FundAccount(addr, 1_000_000); err != nil {
			t.Fatalf("fund %s: %v", addr, err)
		}
	}
	for addr, owner := range map[ledger.Address]ledger.Address{
		f.vault:      f.payer,
		f.payerToken: f.payer,
		f.payeeToken: nodeAddress(0x20),
		f.feeToken:   nodeAddress(0x21),
	} {
		if err := node.InitTokenAccount(addr, owner, false); err != nil {
			t.Fatalf("init token account %s: %v", addr, err)
		}
	}
	rent := node.Rent().MinimumBalance(escrow.EscrowLen)
	if err := node.CreateAccount(f.escrowAcct, programID, rent, escrow.EscrowLen); err != nil {
		t.Fatalf("create escrow account: %v", err)
	}
	return f
}

func (f *nodeFixture) initMetas() []AccountMeta {
	return []AccountMeta{
		{Key: f.payer, Signer: true},
		{Key: f.vault, Writable: true},
		{Key: f.authority, Signer: true},
		{Key: f.escrowAcct, Writable: true},
		{Key: f.payerToken},
		{Key: f.payeeToken},
		{Key: f.feeToken},
		{Key: ledger.RentParamsAddress},
		{Key: f.node.TokenProgramID()},
	}
}

func (f *nodeFixture) settleMetas() []AccountMeta {
	return []AccountMeta{
		{Key: f.authority, Signer: true},
		{Key: f.payeeToken, Writable: true},
		{Key: f.feeToken, Writable: true},
		{Key: f.vault, Writable: true},
		{Key: f.escrowAcct, Writable: true},
		{Key: f.feePayer, Writable: true},
		{Key: f.node.TokenProgramID()},
		{Key: f.derived},
	}
}

func (f *nodeFixture) cancelMetas() []AccountMeta {
	return []AccountMeta{
		{Key: f.authority, Signer: true},
		{Key: f.escrowAcct, Writable: true},
		{Key: f.payerToken, Writable: true},
		{Key: f.feePayer, Writable: true},
		{Key: f.vault, Writable: true},
		{Key: f.node.TokenProgramID()},
		{Key: f.derived},
	}
}

func (f *nodeFixture) closeMetas() []AccountMeta {
	return []AccountMeta{
		{Key: f.authority, Signer: true},
		{Key: f.escrowAcct, Writable: true},
		{Key: f.feePayer, Writable: true},
	}
}

func (f *nodeFixture) mustInit(t *testing.T, amount, fee uint64) {
	t.Helper()
	if err := f.node.MintTokens(f.vault, amount); err != nil {
		t.Fatalf("mint vault: %v", err)
	}
	data := escrow.EncodeInstruction(escrow.InitEscrow{Amount: amount, Fee: fee})
	events, err := f.node.SubmitInstruction(f.programID, f.initMetas(), data)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if len(events) != 1 || events[0].Type != escrow.EventTypeEscrowInitialized {
		t.Fatalf("init events = %+v, want one %s", events, escrow.EventTypeEscrowInitialized)
	}
}

func (f *nodeFixture) tokenBalance(t *testing.T, addr ledger.Address) uint64 {
	t.Helper()
	acc, err := f.node.GetAccount(addr)
	if err != nil {
		t.Fatalf("get %s: %v", addr, err)
	}
	state, err := token.Unpack(acc.Data)
	if err != nil {
		t.Fatalf("unpack %s: %v", addr, err)
	}
	return state.Balance
}

func TestNodeInitSettleClose(t *testing.T) {
	f := newNodeFixture(t)
	f.mustInit(t, 1000, 50)

	info, err := f.node.EscrowInfo(f.escrowAcct)
	if err != nil {
		t.Fatalf("escrow info: %v", err)
	}
	if info.Amount != 1000 || info.Fee != 50 || !info.Open() {
		t.Fatalf("record = %+v, want open 1000/50", info)
	}

	vaultAcc, err := f.node.GetAccount(f.vault)
	if err != nil {
		t.Fatalf("get vault: %v", err)
	}
	vaultState, err := token.Unpack(vaultAcc.Data)
	if err != nil {
		t.Fatalf("unpack vault: %v", err)
	}
	if vaultState.Owner != f.derived {
		t.Fatalf("vault owner = %s, want derived authority %s", vaultState.Owner, f.derived)
	}

	feePayerBefore, _ := f.node.GetAccount(f.feePayer)
	vaultRent := vaultAcc.Lamports

	events, err := f.node.SubmitInstruction(f.programID, f.settleMetas(), escrow.EncodeInstruction(escrow.Settle{}))
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(events) != 1 || events[0].Type != escrow.EventTypeEscrowSettled {
		t.Fatalf("settle events = %+v", events)
	}
	if got := f.tokenBalance(t, f.payeeToken); got != 950 {
		t.Fatalf("payee balance = %d, want 950", got)
	}
	if got := f.tokenBalance(t, f.feeToken); got != 50 {
		t.Fatalf("fee balance = %d, want 50", got)
	}
	if _, err := f.node.GetAccount(f.vault); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("vault after settle: err = %v, want ErrUnknownAccount", err)
	}
	feePayerAfter, _ := f.node.GetAccount(f.feePayer)
	if feePayerAfter.Lamports != feePayerBefore.Lamports+vaultRent {
		t.Fatalf("fee payer lamports = %d, want %d", feePayerAfter.Lamports, feePayerBefore.Lamports+vaultRent)
	}

	info, err = f.node.EscrowInfo(f.escrowAcct)
	if err != nil {
		t.Fatalf("escrow info after settle: %v", err)
	}
	if !info.IsSettled() || info.IsCanceled() {
		t.Fatalf("record after settle = %+v", info)
	}

	events, err = f.node.SubmitInstruction(f.programID, f.closeMetas(), escrow.EncodeInstruction(escrow.Close{}))
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(events) != 1 || events[0].Type != escrow.EventTypeEscrowClosed {
		t.Fatalf("close events = %+v", events)
	}
	if _, err := f.node.GetAccount(f.escrowAcct); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("escrow record after close: err = %v, want ErrUnknownAccount", err)
	}
}

func TestNodeCancelRefundsPayer(t *testing.T) {
	f := newNodeFixture(t)
	f.mustInit(t, 700, 30)

	events, err := f.node.SubmitInstruction(f.programID, f.cancelMetas(), escrow.EncodeInstruction(escrow.Cancel{}))
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(events) != 1 || events[0].Type != escrow.EventTypeEscrowCanceled {
		t.Fatalf("cancel events = %+v", events)
	}
	if got := f.tokenBalance(t, f.payerToken); got != 700 {
		t.Fatalf("payer refund = %d, want 700", got)
	}
	if got := f.tokenBalance(t, f.feeToken); got != 0 {
		t.Fatalf("fee balance = %d, want 0", got)
	}

	info, err := f.node.EscrowInfo(f.escrowAcct)
	if err != nil {
		t.Fatalf("escrow info: %v", err)
	}
	if !info.IsCanceled() || info.IsSettled() {
		t.Fatalf("record after cancel = %+v", info)
	}
}

func TestNodeFailureLeavesLedgerUntouched(t *testing.T) {
	f := newNodeFixture(t)
	f.mustInit(t, 500, 10)

	metas := f.settleMetas()
	metas[0] = AccountMeta{Key: f.payer, Signer: true}
	if _, err := f.node.SubmitInstruction(f.programID, metas, escrow.EncodeInstruction(escrow.Settle{})); err == nil {
		t.Fatal("settle under wrong authority succeeded")
	}

	info, err := f.node.EscrowInfo(f.escrowAcct)
	if err != nil {
		t.Fatalf("escrow info: %v", err)
	}
	if !info.Open() {
		t.Fatalf("record mutated by failed settle: %+v", info)
	}
	if got := f.tokenBalance(t, f.vault); got != 500 {
		t.Fatalf("vault balance = %d, want 500", got)
	}
	if got := f.tokenBalance(t, f.payeeToken); got != 0 {
		t.Fatalf("payee balance = %d, want 0", got)
	}
}

func TestNodeRejectsUnknownProgram(t *testing.T) {
	f := newNodeFixture(t)
	_, err := f.node.SubmitInstruction(nodeAddress(0x7f), nil, escrow.EncodeInstruction(escrow.Settle{}))
	if !errors.Is(err, ErrUnknownProgram) {
		t.Fatalf("err = %v, want ErrUnknownProgram", err)
	}
}

func TestNodeRejectsUnknownAccount(t *testing.T) {
	f := newNodeFixture(t)
	metas := []AccountMeta{{Key: nodeAddress(0x7e), Signer: true}}
	_, err := f.node.SubmitInstruction(f.programID, metas, escrow.EncodeInstruction(escrow.Close{}))
	if !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("err = %v, want ErrUnknownAccount", err)
	}
}

func TestNodeSharesHandleForRepeatedAccount(t *testing.T) {
	f := newNodeFixture(t)
	f.mustInit(t, 100, 0)

	// Repeated metas for the same key must resolve to one handle with the
	// union of the requested flags, or the second occurrence would shadow
	// writes made through the first.
	metas := f.closeMetas()
	metas = append(metas, AccountMeta{Key: f.authority})

	if _, err := f.node.SubmitInstruction(f.programID, f.cancelMetas(), escrow.EncodeInstruction(escrow.Cancel{})); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.node.SubmitInstruction(f.programID, metas, escrow.EncodeInstruction(escrow.Close{})); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := f.node.GetAccount(f.escrowAcct); !errors.Is(err, ErrUnknownAccount) {
		t.Fatal("escrow record survived close")
	}
}

func TestNodeCreateAccountRejectsDuplicate(t *testing.T) {
	f := newNodeFixture(t)
	err := f.node.CreateAccount(f.escrowAcct, f.programID, 1, escrow.EscrowLen)
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("err = %v, want ErrAccountExists", err)
	}
}
