package domain

import "math/big"

// Stats is the aggregate snapshot shown at the top of the dashboard. Each
// field is independently optional: a failed sub-fetch leaves its field nil
// and the rest of the snapshot intact.
type Stats struct {
	TotalMinted    *big.Int
	TotalBurned    *big.Int
	ReserveBalance *big.Int
	CurrentRate    *big.Int
	TotalSupply    *big.Int
	HolderCount    int64
	HoldersKnown   bool
	Source         Source
}
