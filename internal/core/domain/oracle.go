package domain

import (
	"math"
	"time"
)

// OracleStatus is the poller state. A failed refresh moves to offline but
// never clears the last good sample.
type OracleStatus string

const (
	OracleOnline  OracleStatus = "online"
	OracleOffline OracleStatus = "offline"
)

// OracleSample is one retained cross-rate observation. EthIls is always the
// product of EthUsd and UsdIls, rounded to 4 decimals.
type OracleSample struct {
	EthUsd    float64   `json:"eth_usd"`
	UsdIls    float64   `json:"usd_ils"`
	EthIls    float64   `json:"eth_ils"`
	Timestamp time.Time `json:"timestamp"`
}

// NewOracleSample derives the cross rate and rounds all constituents.
func NewOracleSample(ethUsd, usdIls float64, at time.Time) OracleSample {
	return OracleSample{
		EthUsd:    round4(ethUsd),
		UsdIls:    round4(usdIls),
		EthIls:    round4(ethUsd * usdIls),
		Timestamp: at,
	}
}

// SameRate reports whether two samples carry the same derived cross rate at
// retention precision. Used to dedup consecutive polls.
func (s OracleSample) SameRate(other OracleSample) bool {
	return s.EthIls == other.EthIls
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
