package server

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ilsx/dashboard/internal/core/domain"
	"github.com/ilsx/dashboard/internal/infra/storage/postgres"
	"github.com/ilsx/dashboard/internal/infra/subgraph"
	"github.com/ilsx/dashboard/internal/reconcile"
	"github.com/ilsx/dashboard/internal/session"
)

type nilQuerier struct{}

func (nilQuerier) Query(ctx context.Context, document string, variables map[string]any) subgraph.Result {
	return nil
}

type fakeOracle struct {
	status domain.OracleStatus
	sample *domain.OracleSample
}

func (f *fakeOracle) Snapshot() (domain.OracleStatus, *domain.OracleSample) {
	return f.status, f.sample
}

type fakeHistory struct {
	entries []domain.TxEntry
	supply  []string
}

func (f *fakeHistory) Transactions(ctx context.Context, limit int64) ([]domain.TxEntry, error) {
	return f.entries, nil
}

func (f *fakeHistory) OracleHistory(ctx context.Context, limit int64) ([]domain.OracleSample, error) {
	return nil, nil
}

func (f *fakeHistory) SupplyHistory(ctx context.Context, limit int64) ([]domain.SupplyPoint, error) {
	return nil, nil
}

func (f *fakeHistory) AppendSupply(ctx context.Context, value string) error {
	f.supply = append(f.supply, value)
	return nil
}

type fakeArchiver struct {
	snapshots int
}

func (f *fakeArchiver) SaveSnapshot(ctx context.Context, stats domain.Stats, at time.Time) error {
	f.snapshots++
	return nil
}

func (f *fakeArchiver) OracleSeries(ctx context.Context, since time.Time, limit int) ([]domain.OracleSample, error) {
	return nil, nil
}

func (f *fakeArchiver) Snapshots(ctx context.Context, since time.Time, limit int) ([]postgres.StatsSnapshot, error) {
	return nil, nil
}

type fakeSession struct {
	connected   bool
	connectErr  error
	txErr       error
	blacklisted bool

	lastAction string
	lastAmount *big.Int
	lastAddr   common.Address
	lastRole   string
}

func (f *fakeSession) Connect(ctx context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeSession) Disconnect()     { f.connected = false }
func (f *fakeSession) Connected() bool { return f.connected }
func (f *fakeSession) Signer() string {
	return "0x00000000000000000000000000000000000000aa"
}

func (f *fakeSession) Roles(ctx context.Context) ([]string, error) {
	return []string{"Admin"}, nil
}

func (f *fakeSession) Info(ctx context.Context) (session.TokenInfo, error) {
	if !f.connected {
		return session.TokenInfo{}, session.ErrNotConnected
	}
	return session.TokenInfo{Name: "Digital Shekel", Symbol: "ILSX", Decimals: 18}, nil
}

func (f *fakeSession) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	if !f.connected {
		return nil, session.ErrNotConnected
	}
	return big.NewInt(4500000000000000000), nil
}

func (f *fakeSession) Compliance(ctx context.Context, addr common.Address) (session.ComplianceStatus, error) {
	if !f.connected {
		return session.ComplianceStatus{}, session.ErrNotConnected
	}
	return session.ComplianceStatus{Blacklisted: f.blacklisted}, nil
}

func (f *fakeSession) record(action string, amount *big.Int, addr common.Address, role string) (domain.TxEntry, error) {
	if f.txErr != nil {
		return domain.TxEntry{}, f.txErr
	}
	f.lastAction = action
	f.lastAmount = amount
	f.lastAddr = addr
	f.lastRole = role
	return domain.TxEntry{ID: "test", Action: action, TxHash: "0xhash"}, nil
}

func (f *fakeSession) Buy(ctx context.Context, amountWei *big.Int) (domain.TxEntry, error) {
	return f.record("Buy", amountWei, common.Address{}, "")
}

func (f *fakeSession) Sell(ctx context.Context, amount *big.Int) (domain.TxEntry, error) {
	return f.record("Sell", amount, common.Address{}, "")
}

func (f *fakeSession) Mint(ctx context.Context, to common.Address, amount *big.Int) (domain.TxEntry, error) {
	return f.record("Mint", amount, to, "")
}

func (f *fakeSession) Burn(ctx context.Context, from common.Address, amount *big.Int) (domain.TxEntry, error) {
	return f.record("Burn", amount, from, "")
}

func (f *fakeSession) Pause(ctx context.Context) (domain.TxEntry, error) {
	return f.record("Pause", nil, common.Address{}, "")
}

func (f *fakeSession) Unpause(ctx context.Context) (domain.TxEntry, error) {
	return f.record("Unpause", nil, common.Address{}, "")
}

func (f *fakeSession) Blacklist(ctx context.Context, wallet common.Address) (domain.TxEntry, error) {
	return f.record("Blacklist", nil, wallet, "")
}

func (f *fakeSession) Unblacklist(ctx context.Context, wallet common.Address) (domain.TxEntry, error) {
	return f.record("Unblacklist", nil, wallet, "")
}

func (f *fakeSession) Freeze(ctx context.Context, wallet common.Address) (domain.TxEntry, error) {
	return f.record("Freeze", nil, wallet, "")
}

func (f *fakeSession) Unfreeze(ctx context.Context, wallet common.Address) (domain.TxEntry, error) {
	return f.record("Unfreeze", nil, wallet, "")
}

func (f *fakeSession) SetRate(ctx context.Context, newRate *big.Int) (domain.TxEntry, error) {
	return f.record("SetRate", newRate, common.Address{}, "")
}

func (f *fakeSession) FundReserve(ctx context.Context, amountWei *big.Int) (domain.TxEntry, error) {
	return f.record("FundReserve", amountWei, common.Address{}, "")
}

func (f *fakeSession) WithdrawReserve(ctx context.Context, to common.Address, amountWei *big.Int) (domain.TxEntry, error) {
	return f.record("WithdrawReserve", amountWei, to, "")
}

func (f *fakeSession) GrantRole(ctx context.Context, role string, account common.Address) (domain.TxEntry, error) {
	return f.record("GrantRole", nil, account, role)
}

func (f *fakeSession) RevokeRole(ctx context.Context, role string, account common.Address) (domain.TxEntry, error) {
	return f.record("RevokeRole", nil, account, role)
}

func newTestServer() (*Server, *fakeSession, *fakeHistory) {
	sess := &fakeSession{connected: true}
	hist := &fakeHistory{}
	srv := New(Config{
		Pipeline:      reconcile.NewPipeline(nilQuerier{}, subgraph.Studio),
		Oracle:        &fakeOracle{status: domain.OracleOffline},
		Session:       sess,
		History:       hist,
		ExplorerTxURL: "https://sepolia.etherscan.io/tx/",
	})
	return srv, sess, hist
}

func TestReportEndpoint(t *testing.T) {
	srv, _, _ := newTestServer()

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/mint", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var report reconcile.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Domain != "mint" || report.Source != string(domain.SourceNone) {
		t.Fatalf("report = %+v", report)
	}
	if len(report.Rows) != 1 || report.Rows[0].Message != reconcile.NoDataMessage {
		t.Fatalf("rows = %+v", report.Rows)
	}
}

func TestReportEndpointUnknownDomain(t *testing.T) {
	srv, _, _ := newTestServer()

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/transfers", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestStatsEndpointDegradesToPlaceholders(t *testing.T) {
	srv, _, hist := newTestServer()

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var view reconcile.StatsView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.TotalMinted != "-" || view.Reserve != "-" {
		t.Fatalf("view = %+v", view)
	}
	if len(hist.supply) != 0 {
		t.Fatal("no supply value should be recorded while degraded")
	}
}

func TestOracleEndpointFormatsRates(t *testing.T) {
	sample := domain.NewOracleSample(3000, 3.7, time.Unix(1700000000, 0))
	srv := New(Config{
		Pipeline: reconcile.NewPipeline(nilQuerier{}, subgraph.Studio),
		Oracle:   &fakeOracle{status: domain.OracleOnline, sample: &sample},
		Session:  &fakeSession{},
	})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/oracle", nil))

	var view oracleView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Status != "online" {
		t.Fatalf("status = %q", view.Status)
	}
	if view.EthIls != "11100.0000" {
		t.Fatalf("eth_ils = %q", view.EthIls)
	}
	if view.EthUsd != "3000.00" {
		t.Fatalf("eth_usd = %q", view.EthUsd)
	}
}

func TestTxEndpointBuy(t *testing.T) {
	srv, sess, _ := newTestServer()

	body := strings.NewReader(`{"amount":"0.5"}`)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tx/buy", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	want := big.NewInt(500000000000000000)
	if sess.lastAction != "Buy" || sess.lastAmount.Cmp(want) != 0 {
		t.Fatalf("session got %s %v", sess.lastAction, sess.lastAmount)
	}
}

func TestTxEndpointValidation(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"unknown action", "/api/tx/teleport", `{}`, http.StatusBadRequest},
		{"missing amount", "/api/tx/buy", `{}`, http.StatusBadRequest},
		{"negative amount", "/api/tx/sell", `{"amount":"-1"}`, http.StatusBadRequest},
		{"bad address", "/api/tx/blacklist", `{"address":"nope"}`, http.StatusBadRequest},
		{"missing role", "/api/tx/grantrole", `{"address":"0x00000000000000000000000000000000000000aa"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := newTestServer()
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body)))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestTxEndpointNotConnected(t *testing.T) {
	srv, sess, _ := newTestServer()
	sess.txErr = session.ErrNotConnected

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tx/pause", nil))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestTxEndpointDecodedRevert(t *testing.T) {
	srv, sess, _ := newTestServer()
	sess.txErr = &session.TxError{Action: "Pause", Message: "the contract is paused"}

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tx/pause", nil))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["error"] != "the contract is paused" {
		t.Fatalf("error = %q", resp["error"])
	}
}

func TestSessionEndpoints(t *testing.T) {
	srv, sess, _ := newTestServer()
	sess.connected = false

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/session/connect", nil))
	if rec.Code != http.StatusOK || !sess.connected {
		t.Fatalf("connect: status = %d connected = %v", rec.Code, sess.connected)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/session/disconnect", nil))
	if rec.Code != http.StatusOK || sess.connected {
		t.Fatalf("disconnect: status = %d connected = %v", rec.Code, sess.connected)
	}
}

func TestInfoEndpoint(t *testing.T) {
	srv, sess, _ := newTestServer()

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/info", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var info session.TokenInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Symbol != "ILSX" || info.Decimals != 18 {
		t.Fatalf("info = %+v", info)
	}

	sess.connected = false
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/info", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("disconnected: status = %d, want 409", rec.Code)
	}
}

func TestBalanceEndpoint(t *testing.T) {
	srv, sess, _ := newTestServer()
	addr := "0x00000000000000000000000000000000000000aa"

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/balance/"+addr, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["balance"] != "4.5" {
		t.Fatalf("balance = %q", resp["balance"])
	}
	if resp["raw"] != "4500000000000000000" {
		t.Fatalf("raw = %q", resp["raw"])
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/balance/nope", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad address: status = %d, want 400", rec.Code)
	}

	sess.connected = false
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/balance/"+addr, nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("disconnected: status = %d, want 409", rec.Code)
	}
}

func TestComplianceEndpoint(t *testing.T) {
	srv, sess, _ := newTestServer()
	sess.blacklisted = true
	addr := "0x00000000000000000000000000000000000000aa"

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/compliance/"+addr, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Blacklisted bool `json:"blacklisted"`
		Frozen      bool `json:"frozen"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Blacklisted || resp.Frozen {
		t.Fatalf("resp = %+v", resp)
	}
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Health(ctx context.Context) error { return f.err }

func TestHealthEndpointReportsDatabase(t *testing.T) {
	srv, _, _ := newTestServer()

	// No database configured → plain ok.
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	ping := &fakePinger{}
	srv = New(Config{
		Pipeline: reconcile.NewPipeline(nilQuerier{}, subgraph.Studio),
		Oracle:   &fakeOracle{status: domain.OracleOffline},
		Session:  &fakeSession{},
		DB:       ping,
	})

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthy db: status = %d", rec.Code)
	}

	ping.err = errors.New("connection refused")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy db: status = %d, want 503", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "degraded" {
		t.Fatalf("status = %q", resp["status"])
	}
}

func TestTxHistoryEndpoint(t *testing.T) {
	srv, _, hist := newTestServer()
	hist.entries = []domain.TxEntry{{ID: "1", Action: "Mint"}}

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))

	var entries []domain.TxEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "Mint" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestArchiveEndpoints(t *testing.T) {
	srv, _, _ := newTestServer()

	// No archive configured → 404.
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/archive/oracle", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	arch := &fakeArchiver{}
	srv = New(Config{
		Pipeline: reconcile.NewPipeline(nilQuerier{}, subgraph.Studio),
		Oracle:   &fakeOracle{status: domain.OracleOffline},
		Session:  &fakeSession{},
		Archive:  arch,
	})

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/archive/oracle?since=2024-06-01T00:00:00Z", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/archive/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}

	// A degraded refresh (no sources) must not archive a snapshot.
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if arch.snapshots != 0 {
		t.Fatalf("snapshots = %d, want 0", arch.snapshots)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "1", want: "1000000000000000000"},
		{in: "0.5", want: "500000000000000000"},
		{in: "4.5", want: "4500000000000000000"},
		{in: "0.0001", want: "100000000000000"},
		{in: "0", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "0.0000000000000000001", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAmount(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseAmount(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseAmount(%q): %v", tt.in, err)
			}
			if got.String() != tt.want {
				t.Fatalf("parseAmount(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}
