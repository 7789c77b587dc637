package domain

import "time"

// Caps for the persisted client-state lists.
const (
	MaxTxHistory     = 200
	MaxOracleHistory = 500
)

// TxEntry is one persisted record of a user-initiated action.
type TxEntry struct {
	ID      string    `json:"id"`
	Action  string    `json:"action"`
	Details string    `json:"details"`
	TxHash  string    `json:"tx_hash,omitempty"`
	Time    time.Time `json:"time"`
}

// SupplyPoint is one retained total-supply observation.
type SupplyPoint struct {
	Value string    `json:"value"`
	Time  time.Time `json:"time"`
}
