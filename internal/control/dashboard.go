// Package control wires the dashboard's components together and manages
// their lifecycle: HTTP server, reconciliation pipeline, chain session,
// oracle poller, redis histories and the optional postgres archive.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ilsx/dashboard/internal/core/config"
	"github.com/ilsx/dashboard/internal/core/worker"
	"github.com/ilsx/dashboard/internal/format"
	"github.com/ilsx/dashboard/internal/infra/redis"
	"github.com/ilsx/dashboard/internal/infra/storage/postgres"
	"github.com/ilsx/dashboard/internal/infra/subgraph"
	"github.com/ilsx/dashboard/internal/oracle"
	"github.com/ilsx/dashboard/internal/reconcile"
	"github.com/ilsx/dashboard/internal/server"
	"github.com/ilsx/dashboard/internal/session"
)

// Dashboard is the assembled application.
type Dashboard struct {
	cfg      *config.AppConfig
	pipeline *reconcile.Pipeline
	poller   *oracle.Poller
	session  *session.Session
	history  *redis.Client
	db       *postgres.DB
	pruner   *worker.Pruner
	httpSrv  *http.Server
	log      *slog.Logger
}

// New builds the full component graph from configuration.
func New(ctx context.Context, cfg *config.AppConfig) (*Dashboard, error) {
	log := slog.Default().With("component", "control")

	sub := subgraph.NewClient(cfg.Subgraph.URL, cfg.Subgraph.Token, cfg.Subgraph.Timeout)
	schema := subgraph.SchemaByName(cfg.Subgraph.Schema)
	pipeline := reconcile.NewPipeline(sub, schema)

	// Redis is optional: without it the dashboard still serves live
	// data, just without persisted histories.
	var history *redis.Client
	if cfg.Redis.URL != "" {
		h, err := redis.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, histories disabled", "error", err)
		} else {
			history = h
			log.Info("redis history store connected")
		}
	}

	var db *postgres.DB
	var archive *postgres.Archive
	if cfg.Database.URL != "" {
		d, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("init archive: %w", err)
		}
		if err := d.Migrate(); err != nil {
			_ = d.Close()
			return nil, err
		}
		db = d
		archive = postgres.NewArchive(d)
		log.Info("postgres archive ready")
	}

	sess := session.New(cfg.Chain, pipeline, nil, historyRecorder(history))

	ethUsd := oracle.Tiered{
		Primary:  oracle.ChainlinkSource{Feed: sess},
		Fallback: oracle.CoingeckoSource{URL: cfg.Oracle.CoingeckoURL},
	}
	usdIls := oracle.Tiered{
		Primary:  oracle.FxSource{SourceName: "exchangerate", URL: cfg.Oracle.FxPrimaryURL},
		Fallback: oracle.FxSource{SourceName: "er-api", URL: cfg.Oracle.FxFallbackURL},
	}
	var sinks []oracle.Sink
	if history != nil {
		sinks = append(sinks, history)
	}
	if archive != nil {
		sinks = append(sinks, archive)
	}
	poller := oracle.NewPoller(ethUsd, usdIls, cfg.Oracle.Interval, sinks...)
	sess.AttachPoller(poller)

	sess.OnConfirm(func(ctx context.Context) {
		stats := pipeline.LoadStats(ctx)
		if history != nil && stats.TotalSupply != nil {
			if err := history.AppendSupply(ctx, format.Amount(stats.TotalSupply)); err != nil {
				log.Warn("append supply history failed", "error", err)
			}
		}
	})

	srvCfg := server.Config{
		Pipeline:      pipeline,
		Oracle:        poller,
		Session:       sess,
		ExplorerTxURL: cfg.Chain.ExplorerTxURL,
	}
	if history != nil {
		srvCfg.History = history
	}
	if archive != nil {
		srvCfg.Archive = archive
	}
	if db != nil {
		srvCfg.DB = db
	}
	api := server.New(srvCfg)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var pruner *worker.Pruner
	if archive != nil && cfg.Database.Retention > 0 {
		pruner = worker.NewPruner(cfg.Database.Retention, archive)
	}

	return &Dashboard{
		cfg:      cfg,
		pipeline: pipeline,
		poller:   poller,
		session:  sess,
		history:  history,
		db:       db,
		pruner:   pruner,
		httpSrv:  httpSrv,
		log:      log,
	}, nil
}

// historyRecorder avoids handing the session a typed-nil interface.
func historyRecorder(h *redis.Client) session.Recorder {
	if h == nil {
		return nil
	}
	return h
}

// Start launches the HTTP server and, when an RPC endpoint is
// configured, opens the initial chain session. A failed initial connect
// is logged, not fatal: the dashboard serves subgraph data regardless.
func (d *Dashboard) Start(ctx context.Context) error {
	go func() {
		d.log.Info("http server listening", "addr", d.httpSrv.Addr)
		if err := d.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.log.Error("http server failed", "error", err)
		}
	}()

	if d.pruner != nil {
		go d.pruner.Start(ctx)
	}

	if d.cfg.Chain.RPCURL != "" {
		if err := d.session.Connect(ctx); err != nil {
			d.log.Warn("initial session connect failed", "error", err)
		}
	}
	return nil
}

// Stop tears the application down: session first so the poller and the
// pipeline's chain source quiesce, then the HTTP server and stores.
func (d *Dashboard) Stop(ctx context.Context) error {
	d.log.Info("stopping dashboard")

	d.session.Disconnect()

	err := d.httpSrv.Shutdown(ctx)

	if d.history != nil {
		if cerr := d.history.Close(); cerr != nil {
			d.log.Warn("close redis failed", "error", cerr)
		}
	}
	if d.db != nil {
		if cerr := d.db.Close(); cerr != nil {
			d.log.Warn("close archive failed", "error", cerr)
		}
	}
	return err
}
