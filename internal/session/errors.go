package session

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrNotConnected is returned by every operation that needs an active
// chain session.
var ErrNotConnected = errors.New("session not connected")

// TxError carries a human-readable failure for a submitted transaction.
type TxError struct {
	Action  string
	Message string
	cause   error
}

func (e *TxError) Error() string { return e.Message }
func (e *TxError) Unwrap() error { return e.cause }

// dataError matches the geth RPC error type that carries revert data.
type dataError interface {
	Error() string
	ErrorData() any
}

var (
	errorStringSelector = selector("Error(string)")
	panicSelector       = selector("Panic(uint256)")

	stringArgs = abi.Arguments{{Type: mustABIType("string")}}
)

// revertTable maps custom-error selectors to readable messages.
var revertTable = map[[4]byte]string{}

func init() {
	for sig, msg := range map[string]string{
		"EnforcedPause()": "the contract is paused",
		"ExpectedPause()": "the contract is not paused",
		"AccessControlUnauthorizedAccount(address,bytes32)": "the connected wallet is missing the required role",
		"ERC20InsufficientBalance(address,uint256,uint256)": "insufficient token balance",
		"ERC20InvalidReceiver(address)":                     "invalid recipient address",
		"ERC20InvalidSender(address)":                       "invalid sender address",
		"OwnableUnauthorizedAccount(address)":               "the connected wallet is not the contract owner",
	} {
		revertTable[selector(sig)] = msg
	}
}

func selector(sig string) [4]byte {
	var s [4]byte
	copy(s[:], crypto.Keccak256([]byte(sig))[:4])
	return s
}

func mustABIType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(err)
	}
	return t
}

// DecodeRevert turns a transaction failure into a readable message.
// ABI revert payloads are decoded through the known-selector table;
// anything else falls back to the cleaned RPC error text.
func DecodeRevert(err error) string {
	if err == nil {
		return ""
	}
	data := revertData(err)
	if len(data) >= 4 {
		var sel [4]byte
		copy(sel[:], data[:4])
		switch sel {
		case errorStringSelector:
			if msg, ok := unpackErrorString(data[4:]); ok {
				return msg
			}
		case panicSelector:
			if len(data) > 4 {
				code := new(big.Int).SetBytes(data[4:])
				return fmt.Sprintf("contract panic (code %#x)", code)
			}
		default:
			if msg, ok := revertTable[sel]; ok {
				return msg
			}
		}
		return "transaction reverted"
	}
	return cleanMessage(err)
}

// revertData walks the unwrap chain looking for RPC revert data.
func revertData(err error) []byte {
	for e := err; e != nil; e = errors.Unwrap(e) {
		de, ok := e.(dataError)
		if !ok {
			continue
		}
		switch v := de.ErrorData().(type) {
		case string:
			if b, err := hexutil.Decode(v); err == nil {
				return b
			}
		case []byte:
			return v
		}
	}
	return nil
}

func unpackErrorString(data []byte) (string, bool) {
	out, err := stringArgs.Unpack(data)
	if err != nil || len(out) == 0 {
		return "", false
	}
	s, ok := out[0].(string)
	return s, ok
}

// cleanMessage strips the geth "execution reverted" framing so the
// caller sees the reason, not the transport noise.
func cleanMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, "execution reverted"); i >= 0 {
		rest := strings.TrimSpace(strings.TrimPrefix(msg[i+len("execution reverted"):], ":"))
		if rest != "" {
			return rest
		}
		return "transaction reverted"
	}
	return msg
}
