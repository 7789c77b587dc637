package reconcile

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ilsx/dashboard/internal/core/domain"
	"github.com/ilsx/dashboard/internal/infra/subgraph"
	"github.com/ilsx/dashboard/internal/metrics"
)

// statsDocument aggregates the scalar snapshot in one query: raw mint/burn
// amounts, reserve flows, and the latest rate.
func statsDocument(s subgraph.Schema) string {
	return fmt.Sprintf(`{
  minteds(first: 1000) { amount }
  burneds(first: 1000) { amount }
  reserveFundeds(first: 1000) { amountEth }
  reserveWithdrawns(first: 1000) { amountEth }
  rateUpdateds(orderBy: %s, orderDirection: desc, first: 1) { newRate }
}`, s.TimestampField)
}

// LoadStats builds the aggregate snapshot, subgraph-first with per-field
// on-chain degradation. Every field is independently optional: a failed
// sub-fetch yields a nil field, never an aborted snapshot.
func (p *Pipeline) LoadStats(ctx context.Context) domain.Stats {
	result := p.querier.Query(ctx, statsDocument(p.schema), nil)
	if result == nil {
		metrics.SubgraphErrorsTotal.Inc()
	}

	mints := result["minteds"]
	burns := result["burneds"]
	fundeds := result["reserveFundeds"]
	withdrawns := result["reserveWithdrawns"]

	if len(mints)+len(burns)+len(fundeds)+len(withdrawns) > 0 {
		stats := domain.Stats{Source: domain.SourceSubgraph}
		stats.TotalMinted = sumField(mints, "amount")
		stats.TotalBurned = sumField(burns, "amount")
		reserveIn := sumField(fundeds, "amountEth")
		reserveOut := sumField(withdrawns, "amountEth")
		stats.ReserveBalance = new(big.Int).Sub(reserveIn, reserveOut)
		if rates := result["rateUpdateds"]; len(rates) > 0 {
			if rate, ok := new(big.Int).SetString(rates[0]["newRate"], 10); ok {
				stats.CurrentRate = rate
			}
		}
		// The subgraph does not track per-account balances; holder count
		// stays unavailable rather than guessed.
		p.fillSupply(ctx, &stats)
		return stats
	}

	_, reader := p.chainSource()
	if reader == nil {
		return domain.Stats{Source: domain.SourceNone}
	}

	metrics.ChainFallbackTotal.WithLabelValues("stats").Inc()
	stats := domain.Stats{Source: domain.SourceChain}
	stats.TotalMinted = p.readOptional(ctx, "totalMinted", reader.TotalMinted)
	stats.TotalBurned = p.readOptional(ctx, "totalBurned", reader.TotalBurned)
	stats.ReserveBalance = p.readOptional(ctx, "reserveBalance", reader.ReserveBalance)
	stats.CurrentRate = p.readOptional(ctx, "tokensPerEth", reader.TokensPerEth)
	stats.TotalSupply = p.readOptional(ctx, "totalSupply", reader.TotalSupply)
	return stats
}

// fillSupply reads total supply on-chain when a session is bound; the
// subgraph does not expose it.
func (p *Pipeline) fillSupply(ctx context.Context, stats *domain.Stats) {
	_, reader := p.chainSource()
	if reader == nil {
		return
	}
	stats.TotalSupply = p.readOptional(ctx, "totalSupply", reader.TotalSupply)
}

func (p *Pipeline) readOptional(ctx context.Context, field string, read func(context.Context) (*big.Int, error)) *big.Int {
	v, err := read(ctx)
	if err != nil {
		p.log.Warn("stat read failed, degrading field", "field", field, "error", err)
		return nil
	}
	return v
}

func sumField(rows []subgraph.Row, field string) *big.Int {
	total := new(big.Int)
	for _, row := range rows {
		if v, ok := new(big.Int).SetString(row[field], 10); ok {
			total.Add(total, v)
		}
	}
	return total
}
