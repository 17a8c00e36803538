package escrow

import "escrowd/ledger"

// SeedPrefix is the fixed textual seed the vault authority is derived from.
// Changing it would orphan every vault initialized under the old derivation.
const SeedPrefix = "escrow"

// FindProgramAuthority derives the address that custodies every vault owned
// by this program instance, together with its disambiguation byte. Funds can
// only leave a vault under this authority, so transitions re-derive and
// compare instead of trusting a caller-supplied address.
func FindProgramAuthority(programID ledger.Address) (ledger.Address, byte, error) {
	return ledger.FindProgramAddress(authoritySeeds(programID), programID)
}

func authoritySeeds(programID ledger.Address) [][]byte {
	return [][]byte{[]byte(SeedPrefix), programID[:]}
}

// CheckAuthorityAccount validates a claimed engine identity against the
// program's own.
func CheckAuthorityAccount(claimed, programID ledger.Address) error {
	if claimed != programID {
		return ErrInvalidAuthorityID
	}
	return nil
}
