package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/ilsx/dashboard/internal/core/domain"
	"github.com/ilsx/dashboard/internal/format"
	"github.com/ilsx/dashboard/internal/reconcile"
	"github.com/ilsx/dashboard/internal/session"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Health(r.Context()); err != nil {
			s.log.Warn("database health check failed", "error", err)
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  "database unreachable",
			})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.session.Info(r.Context())
	if err != nil {
		s.writeError(w, http.StatusConflict, "session not connected")
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bal, err := s.session.Balance(r.Context(), addr)
	switch {
	case errors.Is(err, session.ErrNotConnected):
		s.writeError(w, http.StatusConflict, "session not connected")
		return
	case err != nil:
		s.writeError(w, http.StatusBadGateway, "balance read failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"address": addr.Hex(),
		"balance": format.Amount(bal),
		"raw":     bal.String(),
	})
}

func (s *Server) handleCompliance(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status, err := s.session.Compliance(r.Context(), addr)
	switch {
	case errors.Is(err, session.ErrNotConnected):
		s.writeError(w, http.StatusConflict, "session not connected")
		return
	case err != nil:
		s.writeError(w, http.StatusBadGateway, "compliance read failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"address":     addr.Hex(),
		"blacklisted": status.Blacklisted,
		"frozen":      status.Frozen,
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "domain")
	spec, ok := reconcile.DomainByName(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown report domain %q", name))
		return
	}

	series := s.pipeline.LoadDomain(r.Context(), spec)
	s.writeJSON(w, http.StatusOK, reconcile.RenderSeries(spec.Name, series, s.explorer))
}

// handleRefresh re-runs every reporting domain plus the aggregate
// snapshot. Domains refresh concurrently and degrade independently.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	series := s.pipeline.LoadAll(ctx)

	reports := make(map[string]reconcile.Report, len(series))
	for name, sr := range series {
		reports[name] = reconcile.RenderSeries(name, sr, s.explorer)
	}

	stats := s.loadStats(ctx)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"reports": reports,
		"stats":   reconcile.RenderStats(stats),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.loadStats(r.Context())
	s.writeJSON(w, http.StatusOK, reconcile.RenderStats(stats))
}

type oracleView struct {
	Status string               `json:"status"`
	EthUsd string               `json:"eth_usd"`
	UsdIls string               `json:"usd_ils"`
	EthIls string               `json:"eth_ils"`
	Sample *domain.OracleSample `json:"sample,omitempty"`
}

func (s *Server) handleOracle(w http.ResponseWriter, r *http.Request) {
	status, sample := s.oracle.Snapshot()
	view := oracleView{
		Status: string(status),
		EthUsd: format.Placeholder,
		UsdIls: format.Placeholder,
		EthIls: format.Placeholder,
		Sample: sample,
	}
	if sample != nil {
		view.EthUsd = format.Rate2(sample.EthUsd)
		view.UsdIls = format.Rate4(sample.UsdIls)
		view.EthIls = format.Rate4(sample.EthIls)
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleOracleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusNotFound, "history store disabled")
		return
	}
	samples, err := s.history.OracleHistory(r.Context(), queryLimit(r, domain.MaxOracleHistory))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "load oracle history failed")
		return
	}
	s.writeJSON(w, http.StatusOK, samples)
}

func (s *Server) handleTxHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusNotFound, "history store disabled")
		return
	}
	entries, err := s.history.Transactions(r.Context(), queryLimit(r, domain.MaxTxHistory))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "load transaction history failed")
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleSupplyHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusNotFound, "history store disabled")
		return
	}
	points, err := s.history.SupplyHistory(r.Context(), queryLimit(r, 0))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "load supply history failed")
		return
	}
	s.writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	view := map[string]any{"connected": s.session.Connected()}
	if s.session.Connected() {
		view["signer"] = s.session.Signer()
		if roles, err := s.session.Roles(r.Context()); err == nil {
			view["roles"] = roles
		}
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Connect(r.Context()); err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	roles, err := s.session.Roles(r.Context())
	if err != nil {
		roles = nil
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"connected": true,
		"signer":    s.session.Signer(),
		"roles":     roles,
	})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.session.Disconnect()
	s.writeJSON(w, http.StatusOK, map[string]any{"connected": false})
}

type txRequest struct {
	Amount  string `json:"amount"`
	Address string `json:"address"`
	Role    string `json:"role"`
}

// handleTx dispatches one state-changing action. Amounts arrive as
// human decimal strings and are scaled to 18 decimals.
func (s *Server) handleTx(w http.ResponseWriter, r *http.Request) {
	action := strings.ToLower(chi.URLParam(r, "action"))

	var req txRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	entry, err := s.dispatchTx(r, action, req)
	if err != nil {
		s.writeTxError(w, entry, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "confirmed",
		"entry":  entry,
	})
}

func (s *Server) dispatchTx(r *http.Request, action string, req txRequest) (domain.TxEntry, error) {
	ctx := r.Context()

	switch action {
	case "buy":
		amount, err := parseAmount(req.Amount)
		if err != nil {
			return domain.TxEntry{}, err
		}
		return s.session.Buy(ctx, amount)
	case "sell":
		amount, err := parseAmount(req.Amount)
		if err != nil {
			return domain.TxEntry{}, err
		}
		return s.session.Sell(ctx, amount)
	case "mint":
		addr, err := parseAddress(req.Address)
		if err != nil {
			return domain.TxEntry{}, err
		}
		amount, err := parseAmount(req.Amount)
		if err != nil {
			return domain.TxEntry{}, err
		}
		return s.session.Mint(ctx, addr, amount)
	case "burn":
		// Default to burning from the connected signer.
		target := req.Address
		if target == "" {
			target = s.session.Signer()
		}
		addr, err := parseAddress(target)
		if err != nil {
			return domain.TxEntry{}, err
		}
		amount, err := parseAmount(req.Amount)
		if err != nil {
			return domain.TxEntry{}, err
		}
		return s.session.Burn(ctx, addr, amount)
	case "pause":
		return s.session.Pause(ctx)
	case "unpause":
		return s.session.Unpause(ctx)
	case "blacklist":
		addr, err := parseAddress(req.Address)
		if err != nil {
			return domain.TxEntry{}, err
		}
		return s.session.Blacklist(ctx, addr)
	case "unblacklist":
		addr, err := parseAddress(req.Address)
		if err != nil {
			return domain.TxEntry{}, err
		}
		return s.session.Unblacklist(ctx, addr)
	case "freeze":
		addr, err := parseAddress(req.Address)
		if err != nil {
			return domain.TxEntry{}, err
		}
		return s.session.Freeze(ctx, addr)
	case "unfreeze":
		addr, err := parseAddress(req.Address)
		if err != nil {
			return domain.TxEntry{}, err
		}
		return s.session.Unfreeze(ctx, addr)
	case "setrate":
		rate, err := parseAmount(req.Amount)
		if err != nil {
			return domain.TxEntry{}, err
		}
		return s.session.SetRate(ctx, rate)
	case "fundreserve":
		amount, err := parseAmount(req.Amount)
		if err != nil {
			return domain.TxEntry{}, err
		}
		return s.session.FundReserve(ctx, amount)
	case "withdrawreserve":
		addr, err := parseAddress(req.Address)
		if err != nil {
			return domain.TxEntry{}, err
		}
		amount, err := parseAmount(req.Amount)
		if err != nil {
			return domain.TxEntry{}, err
		}
		return s.session.WithdrawReserve(ctx, addr, amount)
	case "grantrole":
		addr, err := parseAddress(req.Address)
		if err != nil {
			return domain.TxEntry{}, err
		}
		if strings.TrimSpace(req.Role) == "" {
			return domain.TxEntry{}, &badRequestError{"role required"}
		}
		return s.session.GrantRole(ctx, req.Role, addr)
	case "revokerole":
		addr, err := parseAddress(req.Address)
		if err != nil {
			return domain.TxEntry{}, err
		}
		if strings.TrimSpace(req.Role) == "" {
			return domain.TxEntry{}, &badRequestError{"role required"}
		}
		return s.session.RevokeRole(ctx, req.Role, addr)
	default:
		return domain.TxEntry{}, &badRequestError{fmt.Sprintf("unknown action %q", action)}
	}
}

func (s *Server) writeTxError(w http.ResponseWriter, entry domain.TxEntry, err error) {
	var badReq *badRequestError
	var txErr *session.TxError

	switch {
	case errors.As(err, &badReq):
		s.writeError(w, http.StatusBadRequest, badReq.msg)
	case errors.Is(err, session.ErrNotConnected):
		s.writeError(w, http.StatusConflict, "session not connected")
	case errors.As(err, &txErr):
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":   txErr.Message,
			"action":  txErr.Action,
			"tx_hash": entry.TxHash,
		})
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleArchiveOracle(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.writeError(w, http.StatusNotFound, "archive disabled")
		return
	}
	samples, err := s.archive.OracleSeries(r.Context(), querySince(r), int(queryLimit(r, 0)))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "load oracle archive failed")
		return
	}
	s.writeJSON(w, http.StatusOK, samples)
}

func (s *Server) handleArchiveStats(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.writeError(w, http.StatusNotFound, "archive disabled")
		return
	}
	snaps, err := s.archive.Snapshots(r.Context(), querySince(r), int(queryLimit(r, 0)))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "load stats archive failed")
		return
	}
	s.writeJSON(w, http.StatusOK, snaps)
}

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func queryLimit(r *http.Request, fallback int64) int64 {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func querySince(r *http.Request) time.Time {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return time.Time{}
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return at
}

// parseAmount scales a human decimal amount to 18-decimal base units.
func parseAmount(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &badRequestError{"amount required"}
	}
	r, ok := new(big.Rat).SetString(raw)
	if !ok || r.Sign() <= 0 {
		return nil, &badRequestError{fmt.Sprintf("invalid amount %q", raw)}
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	r.Mul(r, new(big.Rat).SetInt(scale))
	if !r.IsInt() {
		return nil, &badRequestError{fmt.Sprintf("amount %q has too many decimals", raw)}
	}
	return new(big.Int).Set(r.Num()), nil
}

func parseAddress(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, &badRequestError{fmt.Sprintf("invalid address %q", raw)}
	}
	return common.HexToAddress(raw), nil
}
