package oracle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ilsx/dashboard/internal/core/domain"
	"github.com/ilsx/dashboard/internal/metrics"
)

// Sink retains successful samples (redis history, postgres archive). Sink
// failures are logged and never fail the poll.
type Sink interface {
	AppendOracle(ctx context.Context, sample domain.OracleSample) error
}

// Poller drives the periodic cross-rate refresh. Initial state is offline;
// it transitions online only when both constituent rates arrive valid. A
// failed refresh flips the status but leaves the last good sample in place.
type Poller struct {
	ethUsd   RateSource
	usdIls   RateSource
	interval time.Duration
	sinks    []Sink
	log      *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	status domain.OracleStatus
	last   *domain.OracleSample
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller builds a poller; Start must be called to begin polling.
func NewPoller(ethUsd, usdIls RateSource, interval time.Duration, sinks ...Sink) *Poller {
	return &Poller{
		ethUsd:   ethUsd,
		usdIls:   usdIls,
		interval: interval,
		sinks:    sinks,
		log:      slog.Default().With("component", "oracle"),
		now:      time.Now,
		status:   domain.OracleOffline,
	}
}

// Start launches the polling loop. Calling Start on a running poller tears
// the previous loop down first, so reconnects never leak a second timer.
func (p *Poller) Start(ctx context.Context) {
	p.Stop()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go func() {
		defer close(done)
		// First sample immediately, then on the tick.
		p.PollOnce(runCtx)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				p.PollOnce(runCtx)
			}
		}
	}()
}

// Stop tears the polling loop down and waits for it to exit. Safe to call
// on a stopped poller.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// PollOnce runs a single refresh and returns the resulting status.
func (p *Poller) PollOnce(ctx context.Context) domain.OracleStatus {
	ethUsd, errEth := p.ethUsd.Rate(ctx)
	usdIls, errFx := p.usdIls.Rate(ctx)

	if errEth != nil || errFx != nil {
		if errEth != nil {
			p.log.Warn("eth/usd unavailable", "error", errEth)
		}
		if errFx != nil {
			p.log.Warn("usd/ils unavailable", "error", errFx)
		}
		p.setStatus(domain.OracleOffline)
		metrics.OraclePollsTotal.WithLabelValues("offline").Inc()
		return domain.OracleOffline
	}

	sample := domain.NewOracleSample(ethUsd, usdIls, p.now())

	p.mu.Lock()
	retain := p.last == nil || !p.last.SameRate(sample)
	if retain {
		p.last = &sample
	}
	p.mu.Unlock()

	if retain {
		for _, sink := range p.sinks {
			if err := sink.AppendOracle(ctx, sample); err != nil {
				p.log.Warn("oracle sink append failed", "error", err)
			}
		}
	}

	p.setStatus(domain.OracleOnline)
	metrics.OraclePollsTotal.WithLabelValues("ok").Inc()
	return domain.OracleOnline
}

func (p *Poller) setStatus(s domain.OracleStatus) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
	if s == domain.OracleOnline {
		metrics.OracleOnline.Set(1)
	} else {
		metrics.OracleOnline.Set(0)
	}
}

// Snapshot returns the current status and the last good sample, which
// survives offline transitions untouched.
func (p *Poller) Snapshot() (domain.OracleStatus, *domain.OracleSample) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status, p.last
}
