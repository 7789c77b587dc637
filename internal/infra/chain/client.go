// Package chain reads historical events and current state from the token
// contract, and submits state-changing transactions. Reads fail over from a
// primary to a fallback RPC endpoint; event scans are bounded to a recent
// block window so a cold node is never asked for full history.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/ilsx/dashboard/internal/core/config"
)

// DefaultScanWindow bounds the event fallback scan.
const DefaultScanWindow = 20000

// backend is the subset of the Ethereum RPC surface the read path uses.
// ethclient.Client satisfies it; tests substitute fakes.
type backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Client wraps the token contract on one chain connection.
type Client struct {
	primary  backend
	fallback backend // may be nil

	eth      *ethclient.Client // primary, concrete: bind + receipt waits
	contract common.Address
	feed     common.Address // chainlink aggregator, may be zero
	bound    *bind.BoundContract
	signer   *bind.TransactOpts // nil when no key configured
	window   uint64
	log      *slog.Logger
}

// Dial connects to the configured RPC endpoints and binds the contract.
func Dial(ctx context.Context, cfg config.ChainConfig) (*Client, error) {
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return nil, fmt.Errorf("chain rpc_url required")
	}
	if !common.IsHexAddress(cfg.Contract) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.Contract)
	}

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial primary rpc: %w", err)
	}

	c := &Client{
		primary:  eth,
		eth:      eth,
		contract: common.HexToAddress(cfg.Contract),
		window:   cfg.ScanWindow,
		log:      slog.Default().With("component", "chain"),
	}
	if c.window == 0 {
		c.window = DefaultScanWindow
	}
	if cfg.ChainlinkFeed != "" {
		if !common.IsHexAddress(cfg.ChainlinkFeed) {
			return nil, fmt.Errorf("invalid chainlink feed address %q", cfg.ChainlinkFeed)
		}
		c.feed = common.HexToAddress(cfg.ChainlinkFeed)
	}

	if cfg.FallbackRPCURL != "" {
		fb, err := ethclient.DialContext(ctx, cfg.FallbackRPCURL)
		if err != nil {
			// A dead fallback endpoint is not fatal; log and continue.
			c.log.Warn("dial fallback rpc failed", "error", err)
		} else {
			c.fallback = fb
		}
	}

	c.bound = bind.NewBoundContract(c.contract, tokenABI, eth, eth, eth)

	if key := strings.TrimSpace(cfg.PrivateKey); key != "" {
		signer, err := newSigner(key, cfg.ChainID)
		if err != nil {
			return nil, err
		}
		c.signer = signer
	}

	return c, nil
}

func newSigner(hexKey string, chainID int64) (*bind.TransactOpts, error) {
	priv, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(priv, big.NewInt(chainID))
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	return opts, nil
}

// Close releases the RPC connections.
func (c *Client) Close() {
	if c.eth != nil {
		c.eth.Close()
	}
	if fb, ok := c.fallback.(*ethclient.Client); ok && fb != nil {
		fb.Close()
	}
}

// CanWrite reports whether a signing key is configured.
func (c *Client) CanWrite() bool {
	return c.signer != nil
}

// SignerAddress returns the configured signer address.
func (c *Client) SignerAddress() common.Address {
	if c.signer == nil {
		return common.Address{}
	}
	return c.signer.From
}

// withFailover runs fn against the primary endpoint, retrying once on the
// fallback when one is configured.
func withFailover[T any](ctx context.Context, c *Client, op string, fn func(backend) (T, error)) (T, error) {
	out, err := fn(c.primary)
	if err == nil || c.fallback == nil {
		return out, err
	}
	c.log.Warn("primary rpc failed, trying fallback", "op", op, "error", err)
	return fn(c.fallback)
}

func (c *Client) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := tokenABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &c.contract, Data: data}
	raw, err := withFailover(ctx, c, method, func(b backend) ([]byte, error) {
		return b.CallContract(ctx, msg, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	out, err := tokenABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

func (c *Client) callUint(ctx context.Context, method string, args ...any) (*big.Int, error) {
	out, err := c.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected return type %T", method, out[0])
	}
	return v, nil
}

func (c *Client) callBool(ctx context.Context, method string, args ...any) (bool, error) {
	out, err := c.call(ctx, method, args...)
	if err != nil {
		return false, err
	}
	v, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("%s: unexpected return type %T", method, out[0])
	}
	return v, nil
}

func (c *Client) callString(ctx context.Context, method string) (string, error) {
	out, err := c.call(ctx, method)
	if err != nil {
		return "", err
	}
	v, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("%s: unexpected return type %T", method, out[0])
	}
	return v, nil
}

// Read methods. Each fails independently; callers degrade the affected
// field, never the whole snapshot.

func (c *Client) Name(ctx context.Context) (string, error)   { return c.callString(ctx, "name") }
func (c *Client) Symbol(ctx context.Context) (string, error) { return c.callString(ctx, "symbol") }

func (c *Client) Decimals(ctx context.Context) (uint8, error) {
	out, err := c.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	v, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals: unexpected return type %T", out[0])
	}
	return v, nil
}

func (c *Client) TotalSupply(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, "totalSupply")
}

func (c *Client) TotalMinted(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, "totalMinted")
}

func (c *Client) TotalBurned(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, "totalBurned")
}

func (c *Client) ReserveBalance(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, "reserveBalance")
}

func (c *Client) TokensPerEth(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, "tokensPerEth")
}

func (c *Client) BalanceOf(ctx context.Context, addr common.Address) (*big.Int, error) {
	return c.callUint(ctx, "balanceOf", addr)
}

func (c *Client) Paused(ctx context.Context) (bool, error) {
	return c.callBool(ctx, "paused")
}

func (c *Client) IsBlacklisted(ctx context.Context, addr common.Address) (bool, error) {
	return c.callBool(ctx, "blacklisted", addr)
}

func (c *Client) IsFrozen(ctx context.Context, addr common.Address) (bool, error) {
	return c.callBool(ctx, "frozen", addr)
}

func (c *Client) HasRole(ctx context.Context, role common.Hash, addr common.Address) (bool, error) {
	return c.callBool(ctx, "hasRole", [32]byte(role), addr)
}

// Transact submits a state-changing call and returns the pending
// transaction. value may be nil for non-payable methods.
func (c *Client) Transact(ctx context.Context, method string, value *big.Int, args ...any) (*types.Transaction, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("no signing key configured")
	}
	opts := *c.signer
	opts.Context = ctx
	if value != nil {
		opts.Value = value
	}
	tx, err := c.bound.Transact(&opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", method, err)
	}
	return tx, nil
}

// WaitMined blocks until the transaction is confirmed and reports whether it
// succeeded.
func (c *Client) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return nil, fmt.Errorf("await confirmation: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("transaction %s reverted", tx.Hash().Hex())
	}
	return receipt, nil
}

// EthUsdFeed reads the Chainlink aggregator: scaled answer from
// latestRoundData, decimals applied.
func (c *Client) EthUsdFeed(ctx context.Context) (float64, error) {
	if (c.feed == common.Address{}) {
		return 0, fmt.Errorf("no chainlink feed configured")
	}

	dec, err := c.feedCall(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, ok := dec[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("feed decimals: unexpected type %T", dec[0])
	}

	round, err := c.feedCall(ctx, "latestRoundData")
	if err != nil {
		return 0, err
	}
	answer, ok := round[1].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("feed answer: unexpected type %T", round[1])
	}
	if answer.Sign() <= 0 {
		return 0, fmt.Errorf("feed answer not positive")
	}

	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	value, _ := new(big.Float).Quo(new(big.Float).SetInt(answer), scale).Float64()
	return value, nil
}

func (c *Client) feedCall(ctx context.Context, method string) ([]any, error) {
	data, err := aggregatorABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack feed %s: %w", method, err)
	}
	feed := c.feed
	msg := ethereum.CallMsg{To: &feed, Data: data}
	raw, err := withFailover(ctx, c, "feed."+method, func(b backend) ([]byte, error) {
		return b.CallContract(ctx, msg, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", method, err)
	}
	out, err := aggregatorABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack feed %s: %w", method, err)
	}
	return out, nil
}
