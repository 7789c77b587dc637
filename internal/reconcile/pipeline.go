// Package reconcile merges the two data sources behind the reporting
// dashboard. Each domain is loaded subgraph-first; an empty or failed
// indexer result falls back to a bounded on-chain event scan when a chain
// session is bound. A refresh is sourced atomically: the resulting series is
// entirely indexer data or entirely chain data, never a mix.
package reconcile

import (
	"context"
	"log/slog"
	"math/big"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ilsx/dashboard/internal/core/domain"
	"github.com/ilsx/dashboard/internal/infra/chain"
	"github.com/ilsx/dashboard/internal/infra/subgraph"
	"github.com/ilsx/dashboard/internal/metrics"
)

// StatsReader is the pipeline's view of the contract's scalar aggregates.
type StatsReader interface {
	TotalMinted(ctx context.Context) (*big.Int, error)
	TotalBurned(ctx context.Context) (*big.Int, error)
	ReserveBalance(ctx context.Context) (*big.Int, error)
	TokensPerEth(ctx context.Context) (*big.Int, error)
	TotalSupply(ctx context.Context) (*big.Int, error)
}

// Pipeline reconciles reporting data for all domains.
type Pipeline struct {
	querier subgraph.Querier
	schema  subgraph.Schema
	log     *slog.Logger

	mu     sync.RWMutex
	events chain.EventSource // nil while no session is connected
	stats  StatsReader       // nil while no session is connected
}

// NewPipeline creates a pipeline with no chain session bound.
func NewPipeline(q subgraph.Querier, schema subgraph.Schema) *Pipeline {
	return &Pipeline{
		querier: q,
		schema:  schema,
		log:     slog.Default().With("component", "reconcile"),
	}
}

// BindChain attaches a connected session's chain access. Until this is
// called (and after UnbindChain) no fallback scans are attempted.
func (p *Pipeline) BindChain(events chain.EventSource, stats StatsReader) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = events
	p.stats = stats
}

// UnbindChain detaches chain access on session disconnect.
func (p *Pipeline) UnbindChain() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
	p.stats = nil
}

func (p *Pipeline) chainSource() (chain.EventSource, StatsReader) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.events, p.stats
}

// LoadDomain refreshes one reporting domain and returns its reconciled
// series. Failures degrade to an empty series; they never propagate.
func (p *Pipeline) LoadDomain(ctx context.Context, spec DomainSpec) domain.Series {
	start := time.Now()

	result := p.querier.Query(ctx, spec.Document(p.schema), nil)
	if result == nil {
		metrics.SubgraphErrorsTotal.Inc()
	}

	series := domain.Series{Source: domain.SourceSubgraph}
	for _, sk := range spec.SubKinds {
		for _, row := range result[sk.Entity] {
			series.Events = append(series.Events, p.rowEvent(sk, row))
		}
	}

	// Fallback requires both an empty/failed indexer result and a bound
	// chain session. Sub-kinds are scanned independently once the merged
	// indexer result is known to be empty.
	if series.Empty() {
		events, _ := p.chainSource()
		if events != nil {
			metrics.ChainFallbackTotal.WithLabelValues(spec.Name).Inc()
			series = p.loadFromChain(ctx, spec, events)
		} else {
			series.Source = domain.SourceNone
		}
	}

	series.Normalize()
	if series.Empty() {
		series.Source = domain.SourceNone
	}

	metrics.ReportRefreshSeconds.WithLabelValues(spec.Name, string(series.Source)).
		Observe(time.Since(start).Seconds())
	return series
}

func (p *Pipeline) loadFromChain(ctx context.Context, spec DomainSpec, source chain.EventSource) domain.Series {
	series := domain.Series{Source: domain.SourceChain}

	results := make([][]domain.Event, len(spec.SubKinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, sk := range spec.SubKinds {
		g.Go(func() error {
			results[i] = source.FetchEvents(gctx, sk.Event)
			return nil
		})
	}
	// Sub-kind scans never error; the group only coordinates joint await.
	_ = g.Wait()

	for _, events := range results {
		series.Events = append(series.Events, events...)
	}
	return series
}

func (p *Pipeline) rowEvent(sk SubKind, row subgraph.Row) domain.Event {
	ev := domain.Event{
		Kind:   sk.Kind,
		TxHash: row[p.schema.TxHashField],
	}
	if ts, err := strconv.ParseInt(row[p.schema.TimestampField], 10, 64); err == nil {
		ev.Timestamp = ts
	}
	if sk.AddressField != "" {
		ev.Address = row[sk.AddressField]
	}
	if sk.AmountField != "" {
		if amount, ok := new(big.Int).SetString(row[sk.AmountField], 10); ok {
			ev.Amount = amount
		}
	}
	return ev
}

// LoadAll refreshes every reporting domain concurrently. Each domain is
// independently wrapped; one failure cannot halt the others.
func (p *Pipeline) LoadAll(ctx context.Context) map[string]domain.Series {
	specs := Domains()
	out := make([]domain.Series, len(specs))

	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		g.Go(func() error {
			out[i] = p.LoadDomain(gctx, spec)
			return nil
		})
	}
	_ = g.Wait()

	result := make(map[string]domain.Series, len(specs))
	for i, spec := range specs {
		result[spec.Name] = out[i]
	}
	return result
}
