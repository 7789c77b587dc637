package domain

import "math/big"

// EventKind identifies what happened on the token contract.
type EventKind string

const (
	KindMint            EventKind = "mint"
	KindBurn            EventKind = "burn"
	KindRateUpdate      EventKind = "rate_update"
	KindReserveDeposit  EventKind = "reserve_deposit"
	KindReserveWithdraw EventKind = "reserve_withdraw"
	KindBlacklist       EventKind = "blacklist"
	KindUnblacklist     EventKind = "unblacklist"
	KindFreeze          EventKind = "freeze"
	KindUnfreeze        EventKind = "unfreeze"
)

// Event is one normalized historical occurrence, regardless of whether it
// came from the subgraph or from a raw log scan. Amount is an 18-decimal
// fixed-point integer and may be nil (security events carry no amount).
// An empty TxHash means the source could not supply provenance; such events
// are never rendered.
type Event struct {
	Kind      EventKind
	Address   string
	Amount    *big.Int
	Timestamp int64
	TxHash    string
}

// HasTx reports whether the event carries a verifiable transaction reference.
func (e Event) HasTx() bool {
	return e.TxHash != ""
}
