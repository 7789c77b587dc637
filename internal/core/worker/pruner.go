// Package worker holds background maintenance loops.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// ArchiveStore is the pruner's view of the archive.
type ArchiveStore interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pruner deletes archived rows past the retention period.
type Pruner struct {
	retention time.Duration
	archive   ArchiveStore
	log       *slog.Logger
	now       func() time.Time
}

// NewPruner creates a pruner. A non-positive retention disables it.
func NewPruner(retention time.Duration, archive ArchiveStore) *Pruner {
	return &Pruner{
		retention: retention,
		archive:   archive,
		log:       slog.Default().With("component", "pruner"),
		now:       time.Now,
	}
}

// Start runs the prune loop until the context is cancelled.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 || p.archive == nil {
		return
	}

	// Check at roughly a tenth of the retention period, clamped to
	// [1 minute, 1 hour].
	interval := min(p.retention/10, time.Hour)
	interval = max(interval, time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	cutoff := p.now().Add(-p.retention)
	removed, err := p.archive.PruneBefore(ctx, cutoff)
	if err != nil {
		p.log.Warn("archive prune failed", "error", err)
		return
	}
	if removed > 0 {
		p.log.Info("pruned archive rows", "removed", removed, "cutoff", cutoff)
	}
}
