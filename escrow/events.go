package escrow

import (
	"strconv"

	"escrowd/core/types"
	"escrowd/ledger"
)

const (
	EventTypeEscrowInitialized = "escrow.initialized"
	EventTypeEscrowSettled     = "escrow.settled"
	EventTypeEscrowCanceled    = "escrow.canceled"
	EventTypeEscrowClosed      = "escrow.closed"
)

// NewInitializedEvent returns the canonical event payload for a newly
// populated escrow record.
func NewInitializedEvent(account ledger.Address, esc *Escrow) *types.Event {
	return newEscrowEvent(EventTypeEscrowInitialized, account, esc)
}

// NewSettledEvent returns the canonical event payload for a settlement in
// favour of the payee.
func NewSettledEvent(account ledger.Address, esc *Escrow) *types.Event {
	return newEscrowEvent(EventTypeEscrowSettled, account, esc)
}

// NewCanceledEvent returns the canonical event payload for a cancellation
// refunding the payer.
func NewCanceledEvent(account ledger.Address, esc *Escrow) *types.Event {
	return newEscrowEvent(EventTypeEscrowCanceled, account, esc)
}

// NewClosedEvent returns the canonical event payload for a destroyed record.
func NewClosedEvent(account ledger.Address, esc *Escrow) *types.Event {
	return newEscrowEvent(EventTypeEscrowClosed, account, esc)
}

func newEscrowEvent(eventType string, account ledger.Address, esc *Escrow) *types.Event {
	if esc == nil {
		return &types.Event{Type: eventType, Attributes: map[string]string{}}
	}
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"account":   account.String(),
			"payer":     esc.Payer.String(),
			"authority": esc.Authority.String(),
			"vault":     esc.VaultToken.String(),
			"amount":    strconv.FormatUint(esc.Amount, 10),
			"fee":       strconv.FormatUint(esc.Fee, 10),
		},
	}
}
