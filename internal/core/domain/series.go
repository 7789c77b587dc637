package domain

import "sort"

// MaxSeriesLen caps every reconciled series.
const MaxSeriesLen = 100

// Source marks where a reconciled series came from. A series is always
// entirely one source per refresh, never a mix.
type Source string

const (
	SourceSubgraph Source = "subgraph"
	SourceChain    Source = "chain"
	SourceNone     Source = "none"
)

// Series is an ordered sequence of events, descending by timestamp.
type Series struct {
	Events []Event
	Source Source
}

// Normalize drops events without a transaction reference, sorts descending
// by timestamp (equal timestamps: larger absolute amount first, stable
// otherwise) and truncates to MaxSeriesLen.
func (s *Series) Normalize() {
	kept := s.Events[:0]
	for _, ev := range s.Events {
		if ev.HasTx() {
			kept = append(kept, ev)
		}
	}
	s.Events = kept

	sort.SliceStable(s.Events, func(i, j int) bool {
		a, b := s.Events[i], s.Events[j]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp > b.Timestamp
		}
		switch {
		case a.Amount == nil && b.Amount == nil:
			return false
		case b.Amount == nil:
			return true
		case a.Amount == nil:
			return false
		}
		return a.Amount.CmpAbs(b.Amount) > 0
	})

	if len(s.Events) > MaxSeriesLen {
		s.Events = s.Events[:MaxSeriesLen]
	}
}

// Empty reports whether the series has no events.
func (s *Series) Empty() bool {
	return len(s.Events) == 0
}
