// Package session owns the chain connection lifecycle and orchestrates
// state-changing transactions. While a session is connected the
// reconciliation pipeline gets a chain fallback source and the oracle
// poller runs; on disconnect both are withdrawn.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/ilsx/dashboard/internal/core/config"
	"github.com/ilsx/dashboard/internal/core/domain"
	"github.com/ilsx/dashboard/internal/format"
	"github.com/ilsx/dashboard/internal/infra/chain"
	"github.com/ilsx/dashboard/internal/metrics"
	"github.com/ilsx/dashboard/internal/reconcile"
)

// Client is the chain surface a connected session exposes.
// *chain.Client satisfies it.
type Client interface {
	chain.EventSource
	reconcile.StatsReader

	Name(ctx context.Context) (string, error)
	Symbol(ctx context.Context) (string, error)
	Decimals(ctx context.Context) (uint8, error)
	Paused(ctx context.Context) (bool, error)
	BalanceOf(ctx context.Context, addr common.Address) (*big.Int, error)
	IsBlacklisted(ctx context.Context, addr common.Address) (bool, error)
	IsFrozen(ctx context.Context, addr common.Address) (bool, error)

	Transact(ctx context.Context, method string, value *big.Int, args ...any) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
	HasRole(ctx context.Context, role common.Hash, addr common.Address) (bool, error)
	EthUsdFeed(ctx context.Context) (float64, error)
	CanWrite() bool
	SignerAddress() common.Address
	Close()
}

// Binder receives chain access while a session is live.
// *reconcile.Pipeline satisfies it.
type Binder interface {
	BindChain(events chain.EventSource, stats reconcile.StatsReader)
	UnbindChain()
}

// PollerControl is the session's handle on the oracle poller.
type PollerControl interface {
	Start(ctx context.Context)
	Stop()
}

// Recorder persists confirmed transactions to the history log.
type Recorder interface {
	AppendTx(ctx context.Context, entry domain.TxEntry) error
}

// Dialer opens a chain client; substituted in tests.
type Dialer func(ctx context.Context, cfg config.ChainConfig) (Client, error)

// Session is the explicit connection object. Zero ambient state: all
// chain access flows through a connected session.
type Session struct {
	cfg    config.ChainConfig
	dial   Dialer
	binder Binder
	poller PollerControl // may be nil
	rec    Recorder      // may be nil
	base   context.Context
	now    func() time.Time
	log    *slog.Logger

	mu        sync.Mutex
	client    Client
	onConfirm func(context.Context)
}

// New builds a disconnected session. poller and rec may be nil.
func New(cfg config.ChainConfig, binder Binder, poller PollerControl, rec Recorder) *Session {
	return &Session{
		cfg:    cfg,
		dial:   dialChain,
		binder: binder,
		poller: poller,
		rec:    rec,
		base:   context.Background(),
		now:    time.Now,
		log:    slog.Default().With("component", "session"),
	}
}

func dialChain(ctx context.Context, cfg config.ChainConfig) (Client, error) {
	return chain.Dial(ctx, cfg)
}

// Connect dials the RPC endpoints, binds the contract to the pipeline
// and starts the oracle poller. Connecting an already-connected session
// is a no-op.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.client != nil {
		s.mu.Unlock()
		return nil
	}

	client, err := s.dial(ctx, s.cfg)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("connect session: %w", err)
	}
	s.client = client
	s.binder.BindChain(client, client)
	poller := s.poller
	s.mu.Unlock()

	// Starting the poller can tear down a previous loop and block on an
	// in-flight poll, and a poll may read back through the session via
	// EthUsdFeed; s.mu must not be held here. The poller outlives the
	// connect request, so it runs off the session's base context.
	if poller != nil {
		poller.Start(s.base)
	}

	if client.CanWrite() {
		s.log.Info("session connected", "signer", client.SignerAddress().Hex())
	} else {
		s.log.Info("session connected read-only")
	}
	return nil
}

// Disconnect stops the poller, detaches the pipeline's chain source and
// releases the client. Safe to call on a disconnected session.
func (s *Session) Disconnect() {
	s.mu.Lock()
	client := s.client
	if client == nil {
		s.mu.Unlock()
		return
	}
	s.client = nil
	poller := s.poller
	s.mu.Unlock()

	// Stop blocks until any in-flight poll returns, and a poll may be
	// waiting on s.active() inside EthUsdFeed; holding s.mu here would
	// deadlock both goroutines. The client is already nil, so such a
	// poll observes a disconnected session and finishes.
	if poller != nil {
		poller.Stop()
	}
	s.binder.UnbindChain()
	client.Close()
	s.log.Info("session disconnected")
}

// Connected reports whether a chain client is bound.
func (s *Session) Connected() bool {
	return s.active() != nil
}

// Signer returns the connected signing address, or "" when the session
// is disconnected or read-only.
func (s *Session) Signer() string {
	client := s.active()
	if client == nil || !client.CanWrite() {
		return ""
	}
	return client.SignerAddress().Hex()
}

// OnConfirm registers a callback invoked after every confirmed
// transaction, typically a stats refresh.
func (s *Session) OnConfirm(fn func(context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConfirm = fn
}

func (s *Session) active() Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// AttachPoller binds the oracle poller the session starts and stops.
// Must be called before Connect.
func (s *Session) AttachPoller(p PollerControl) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.poller = p
}

// EthUsdFeed proxies the Chainlink read through the live client, so the
// oracle's chainlink source follows the session lifecycle.
func (s *Session) EthUsdFeed(ctx context.Context) (float64, error) {
	client := s.active()
	if client == nil {
		return 0, ErrNotConnected
	}
	return client.EthUsdFeed(ctx)
}

// TokenInfo identifies the bound contract. Fields degrade
// individually: a failed read leaves its field at the zero value.
type TokenInfo struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Paused   bool   `json:"paused"`
}

// ComplianceStatus reports a wallet's transfer restrictions.
type ComplianceStatus struct {
	Blacklisted bool `json:"blacklisted"`
	Frozen      bool `json:"frozen"`
}

// Info reads the contract's identity fields through the live client.
func (s *Session) Info(ctx context.Context) (TokenInfo, error) {
	client := s.active()
	if client == nil {
		return TokenInfo{}, ErrNotConnected
	}

	var info TokenInfo
	if v, err := client.Name(ctx); err == nil {
		info.Name = v
	} else {
		s.log.Warn("name read failed", "error", err)
	}
	if v, err := client.Symbol(ctx); err == nil {
		info.Symbol = v
	} else {
		s.log.Warn("symbol read failed", "error", err)
	}
	if v, err := client.Decimals(ctx); err == nil {
		info.Decimals = v
	} else {
		s.log.Warn("decimals read failed", "error", err)
	}
	if v, err := client.Paused(ctx); err == nil {
		info.Paused = v
	} else {
		s.log.Warn("paused read failed", "error", err)
	}
	return info, nil
}

// Balance reads a wallet's token balance.
func (s *Session) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	client := s.active()
	if client == nil {
		return nil, ErrNotConnected
	}
	return client.BalanceOf(ctx, addr)
}

// Compliance reads a wallet's blacklist and freeze flags. Unlike Info
// these are operator-initiated checks, so a failed read is an error.
func (s *Session) Compliance(ctx context.Context, addr common.Address) (ComplianceStatus, error) {
	client := s.active()
	if client == nil {
		return ComplianceStatus{}, ErrNotConnected
	}
	blacklisted, err := client.IsBlacklisted(ctx, addr)
	if err != nil {
		return ComplianceStatus{}, fmt.Errorf("blacklist check: %w", err)
	}
	frozen, err := client.IsFrozen(ctx, addr)
	if err != nil {
		return ComplianceStatus{}, fmt.Errorf("freeze check: %w", err)
	}
	return ComplianceStatus{Blacklisted: blacklisted, Frozen: frozen}, nil
}

// knownRoles maps contract role names to their keccak identifiers.
var knownRoles = map[string]common.Hash{
	"MINTER_ROLE":      crypto.Keccak256Hash([]byte("MINTER_ROLE")),
	"PAUSER_ROLE":      crypto.Keccak256Hash([]byte("PAUSER_ROLE")),
	"BLACKLISTER_ROLE": crypto.Keccak256Hash([]byte("BLACKLISTER_ROLE")),
}

// RoleID maps a role name to its on-chain identifier. Unknown names
// resolve to the zero-hash default admin role.
func RoleID(name string) common.Hash {
	if id, ok := knownRoles[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return id
	}
	return common.Hash{}
}

// Roles probes which contract roles the connected signer holds. A probe
// that errors drops the role rather than failing the whole list.
func (s *Session) Roles(ctx context.Context) ([]string, error) {
	client := s.active()
	if client == nil {
		return nil, ErrNotConnected
	}
	addr := client.SignerAddress()
	if (addr == common.Address{}) {
		return nil, nil
	}

	probes := []struct {
		label string
		id    common.Hash
	}{
		{"Admin", common.Hash{}},
		{"Minter", knownRoles["MINTER_ROLE"]},
		{"Pauser", knownRoles["PAUSER_ROLE"]},
		{"Blacklister", knownRoles["BLACKLISTER_ROLE"]},
	}

	var roles []string
	for _, p := range probes {
		held, err := client.HasRole(ctx, p.id, addr)
		if err != nil {
			s.log.Warn("role probe failed", "role", p.label, "error", err)
			continue
		}
		if held {
			roles = append(roles, p.label)
		}
	}
	return roles, nil
}

// Buy swaps ETH for tokens at the contract rate. amountWei is the ETH
// attached to the call.
func (s *Session) Buy(ctx context.Context, amountWei *big.Int) (domain.TxEntry, error) {
	details := fmt.Sprintf("%s ETH → ILSX", format.Ether(amountWei))
	return s.execute(ctx, "Buy", details, "buyTokensWithETH", amountWei)
}

// Sell swaps tokens back to ETH.
func (s *Session) Sell(ctx context.Context, amount *big.Int) (domain.TxEntry, error) {
	details := fmt.Sprintf("%s ILSX → ETH", format.Amount(amount))
	return s.execute(ctx, "Sell", details, "sellTokensForETH", nil, amount)
}

// Mint issues new tokens to an address.
func (s *Session) Mint(ctx context.Context, to common.Address, amount *big.Int) (domain.TxEntry, error) {
	details := fmt.Sprintf("%s ILSX → %s", format.Amount(amount), to.Hex())
	return s.execute(ctx, "Mint", details, "mint", nil, to, amount)
}

// Burn destroys tokens held by an address.
func (s *Session) Burn(ctx context.Context, from common.Address, amount *big.Int) (domain.TxEntry, error) {
	details := fmt.Sprintf("%s ILSX burned", format.Amount(amount))
	return s.execute(ctx, "Burn", details, "burn", nil, from, amount)
}

// Pause halts transfers.
func (s *Session) Pause(ctx context.Context) (domain.TxEntry, error) {
	return s.execute(ctx, "Pause", "Contract paused", "pause", nil)
}

// Unpause resumes transfers.
func (s *Session) Unpause(ctx context.Context) (domain.TxEntry, error) {
	return s.execute(ctx, "Unpause", "Contract unpaused", "unpause", nil)
}

// Blacklist bars a wallet from transfers.
func (s *Session) Blacklist(ctx context.Context, wallet common.Address) (domain.TxEntry, error) {
	return s.execute(ctx, "Blacklist", wallet.Hex(), "blacklist", nil, wallet)
}

// Unblacklist lifts a wallet's transfer bar.
func (s *Session) Unblacklist(ctx context.Context, wallet common.Address) (domain.TxEntry, error) {
	return s.execute(ctx, "Unblacklist", wallet.Hex(), "unblacklist", nil, wallet)
}

// Freeze locks a wallet's balance in place.
func (s *Session) Freeze(ctx context.Context, wallet common.Address) (domain.TxEntry, error) {
	return s.execute(ctx, "Freeze", wallet.Hex(), "freeze", nil, wallet)
}

// Unfreeze releases a frozen wallet.
func (s *Session) Unfreeze(ctx context.Context, wallet common.Address) (domain.TxEntry, error) {
	return s.execute(ctx, "Unfreeze", wallet.Hex(), "unfreeze", nil, wallet)
}

// SetRate updates the tokens-per-ETH exchange rate.
func (s *Session) SetRate(ctx context.Context, newRate *big.Int) (domain.TxEntry, error) {
	details := fmt.Sprintf("Updated rate to %s ILSX/ETH", format.Amount(newRate))
	return s.execute(ctx, "SetRate", details, "setTokensPerEth", nil, newRate)
}

// FundReserve deposits ETH into the contract reserve.
func (s *Session) FundReserve(ctx context.Context, amountWei *big.Int) (domain.TxEntry, error) {
	details := fmt.Sprintf("%s ETH deposited", format.Ether(amountWei))
	return s.execute(ctx, "FundReserve", details, "fundReserve", amountWei)
}

// WithdrawReserve sends reserve ETH to an address.
func (s *Session) WithdrawReserve(ctx context.Context, to common.Address, amountWei *big.Int) (domain.TxEntry, error) {
	details := fmt.Sprintf("%s ETH to %s", format.Ether(amountWei), to.Hex())
	return s.execute(ctx, "WithdrawReserve", details, "withdrawReserve", nil, to, amountWei)
}

// GrantRole grants a named contract role to an account.
func (s *Session) GrantRole(ctx context.Context, role string, account common.Address) (domain.TxEntry, error) {
	details := fmt.Sprintf("Granted %s to %s", role, account.Hex())
	return s.execute(ctx, "GrantRole", details, "grantRole", nil, [32]byte(RoleID(role)), account)
}

// RevokeRole removes a named contract role from an account.
func (s *Session) RevokeRole(ctx context.Context, role string, account common.Address) (domain.TxEntry, error) {
	details := fmt.Sprintf("Revoked %s from %s", role, account.Hex())
	return s.execute(ctx, "RevokeRole", details, "revokeRole", nil, [32]byte(RoleID(role)), account)
}

// execute runs the submit → confirm → record lifecycle shared by every
// state-changing operation.
func (s *Session) execute(ctx context.Context, action, details, method string, value *big.Int, args ...any) (domain.TxEntry, error) {
	client := s.active()
	if client == nil {
		return domain.TxEntry{}, ErrNotConnected
	}

	tx, err := client.Transact(ctx, method, value, args...)
	if err != nil {
		metrics.TxTotal.WithLabelValues(action, "rejected").Inc()
		s.log.Warn("transaction rejected", "action", action, "error", err)
		return domain.TxEntry{}, &TxError{Action: action, Message: DecodeRevert(err), cause: err}
	}

	hash := tx.Hash().Hex()
	s.log.Info("transaction submitted", "action", action, "tx", hash)

	if _, err := client.WaitMined(ctx, tx); err != nil {
		metrics.TxTotal.WithLabelValues(action, "reverted").Inc()
		s.log.Warn("transaction failed", "action", action, "tx", hash, "error", err)
		return domain.TxEntry{TxHash: hash}, &TxError{Action: action, Message: DecodeRevert(err), cause: err}
	}

	entry := domain.TxEntry{
		ID:      uuid.NewString(),
		Action:  action,
		Details: details,
		TxHash:  hash,
		Time:    s.now(),
	}
	if s.rec != nil {
		if err := s.rec.AppendTx(ctx, entry); err != nil {
			s.log.Warn("record transaction failed", "action", action, "error", err)
		}
	}
	metrics.TxTotal.WithLabelValues(action, "confirmed").Inc()
	s.log.Info("transaction confirmed", "action", action, "tx", hash)

	s.mu.Lock()
	refresh := s.onConfirm
	s.mu.Unlock()
	if refresh != nil {
		refresh(ctx)
	}
	return entry, nil
}
