package ledger

import ethcrypto "github.com/ethereum/go-ethereum/crypto"

// RentParamsAddress is the well-known account under which the host publishes
// its rent parameters. Programs check the supplied rent account against it.
var RentParamsAddress = NewAddress(ethcrypto.Keccak256([]byte("EscrowLedgerRentParams")))

// Rent models the ledger's storage pricing. An account is rent-exempt when
// its balance covers ExemptionYears worth of rent for its data size.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionYears      uint64
	AccountOverhead     uint64
}

// DefaultRent returns the parameters used by the hosted ledger.
func DefaultRent() Rent {
	return Rent{
		LamportsPerByteYear: 3480,
		ExemptionYears:      2,
		AccountOverhead:     128,
	}
}

// MinimumBalance returns the smallest balance that makes an account holding
// dataLen bytes rent-exempt.
func (r Rent) MinimumBalance(dataLen int) uint64 {
	size := uint64(dataLen) + r.AccountOverhead
	return size * r.LamportsPerByteYear * r.ExemptionYears
}

// IsExempt reports whether the given balance keeps dataLen bytes rent-exempt.
func (r Rent) IsExempt(lamports uint64, dataLen int) bool {
	return lamports >= r.MinimumBalance(dataLen)
}
