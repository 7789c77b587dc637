// Package server exposes the dashboard over HTTP: rendered reports,
// aggregate stats, oracle state, persisted histories, session control
// and transaction submission.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ilsx/dashboard/internal/core/domain"
	"github.com/ilsx/dashboard/internal/format"
	"github.com/ilsx/dashboard/internal/infra/storage/postgres"
	"github.com/ilsx/dashboard/internal/reconcile"
	"github.com/ilsx/dashboard/internal/session"
)

// OracleReader is the poller surface the API serves.
type OracleReader interface {
	Snapshot() (domain.OracleStatus, *domain.OracleSample)
}

// History reads and appends the persisted bounded lists.
type History interface {
	Transactions(ctx context.Context, limit int64) ([]domain.TxEntry, error)
	OracleHistory(ctx context.Context, limit int64) ([]domain.OracleSample, error)
	SupplyHistory(ctx context.Context, limit int64) ([]domain.SupplyPoint, error)
	AppendSupply(ctx context.Context, value string) error
}

// Archiver serves long-range series from the postgres archive.
type Archiver interface {
	SaveSnapshot(ctx context.Context, stats domain.Stats, at time.Time) error
	OracleSeries(ctx context.Context, since time.Time, limit int) ([]domain.OracleSample, error)
	Snapshots(ctx context.Context, since time.Time, limit int) ([]postgres.StatsSnapshot, error)
}

// Pinger reports backing-store health; *postgres.DB satisfies it.
type Pinger interface {
	Health(ctx context.Context) error
}

// Sessioner is the session surface the API drives.
type Sessioner interface {
	Connect(ctx context.Context) error
	Disconnect()
	Connected() bool
	Signer() string
	Roles(ctx context.Context) ([]string, error)
	Info(ctx context.Context) (session.TokenInfo, error)
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
	Compliance(ctx context.Context, addr common.Address) (session.ComplianceStatus, error)

	Buy(ctx context.Context, amountWei *big.Int) (domain.TxEntry, error)
	Sell(ctx context.Context, amount *big.Int) (domain.TxEntry, error)
	Mint(ctx context.Context, to common.Address, amount *big.Int) (domain.TxEntry, error)
	Burn(ctx context.Context, from common.Address, amount *big.Int) (domain.TxEntry, error)
	Pause(ctx context.Context) (domain.TxEntry, error)
	Unpause(ctx context.Context) (domain.TxEntry, error)
	Blacklist(ctx context.Context, wallet common.Address) (domain.TxEntry, error)
	Unblacklist(ctx context.Context, wallet common.Address) (domain.TxEntry, error)
	Freeze(ctx context.Context, wallet common.Address) (domain.TxEntry, error)
	Unfreeze(ctx context.Context, wallet common.Address) (domain.TxEntry, error)
	SetRate(ctx context.Context, newRate *big.Int) (domain.TxEntry, error)
	FundReserve(ctx context.Context, amountWei *big.Int) (domain.TxEntry, error)
	WithdrawReserve(ctx context.Context, to common.Address, amountWei *big.Int) (domain.TxEntry, error)
	GrantRole(ctx context.Context, role string, account common.Address) (domain.TxEntry, error)
	RevokeRole(ctx context.Context, role string, account common.Address) (domain.TxEntry, error)
}

// Config captures the dependencies required to construct the server.
type Config struct {
	Pipeline      *reconcile.Pipeline
	Oracle        OracleReader
	Session       Sessioner
	History       History  // may be nil
	Archive       Archiver // may be nil
	DB            Pinger   // may be nil
	ExplorerTxURL string
}

// Server encapsulates the HTTP API.
type Server struct {
	pipeline *reconcile.Pipeline
	oracle   OracleReader
	session  Sessioner
	history  History
	archive  Archiver
	db       Pinger
	explorer string
	now      func() time.Time
	log      *slog.Logger

	router http.Handler
}

// New constructs the configured router.
func New(cfg Config) *Server {
	s := &Server{
		pipeline: cfg.Pipeline,
		oracle:   cfg.Oracle,
		session:  cfg.Session,
		history:  cfg.History,
		archive:  cfg.Archive,
		db:       cfg.DB,
		explorer: cfg.ExplorerTxURL,
		now:      time.Now,
		log:      slog.Default().With("component", "server"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Get("/reports/{domain}", s.handleReport)
		api.Post("/refresh", s.handleRefresh)
		api.Get("/stats", s.handleStats)
		api.Get("/info", s.handleInfo)
		api.Get("/balance/{address}", s.handleBalance)
		api.Get("/compliance/{address}", s.handleCompliance)
		api.Get("/oracle", s.handleOracle)
		api.Get("/oracle/history", s.handleOracleHistory)
		api.Get("/history", s.handleTxHistory)
		api.Get("/supply", s.handleSupplyHistory)

		api.Get("/session", s.handleSessionStatus)
		api.Post("/session/connect", s.handleConnect)
		api.Post("/session/disconnect", s.handleDisconnect)

		api.Post("/tx/{action}", s.handleTx)

		api.Get("/archive/oracle", s.handleArchiveOracle)
		api.Get("/archive/stats", s.handleArchiveStats)
	})

	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("encode response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// loadStats refreshes the aggregate snapshot and feeds the retained
// supply history and the archive as side effects.
func (s *Server) loadStats(ctx context.Context) domain.Stats {
	stats := s.pipeline.LoadStats(ctx)

	if s.history != nil && stats.TotalSupply != nil {
		if err := s.history.AppendSupply(ctx, format.Amount(stats.TotalSupply)); err != nil {
			s.log.Warn("append supply history failed", "error", err)
		}
	}
	if s.archive != nil && stats.Source != domain.SourceNone {
		if err := s.archive.SaveSnapshot(ctx, stats, s.now()); err != nil {
			s.log.Warn("archive stats snapshot failed", "error", err)
		}
	}
	return stats
}
