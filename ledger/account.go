package ledger

// Account is the handle through which a program sees one ledger account for
// the duration of an invocation. Every field is caller-supplied and therefore
// untrusted until checked; Signer and Writable mirror the transaction-level
// flags asserted by the host runtime.
type Account struct {
	Key      Address
	Owner    Address
	Lamports uint64
	Data     []byte
	Signer   bool
	Writable bool
}

// Clone returns a deep copy so the host can execute against a scratch view
// and discard it when an invocation fails.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	if a.Data != nil {
		clone.Data = make([]byte, len(a.Data))
		copy(clone.Data, a.Data)
	}
	return &clone
}
