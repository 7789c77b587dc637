package session

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

type rpcErr struct {
	msg  string
	data any
}

func (e *rpcErr) Error() string  { return e.msg }
func (e *rpcErr) ErrorData() any { return e.data }

func encodedErrorString(msg string) string {
	packed, err := stringArgs.Pack(msg)
	if err != nil {
		panic(err)
	}
	return hexutil.Encode(append(errorStringSelector[:], packed...))
}

func TestDecodeRevert(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "nil error",
			err:  nil,
			want: "",
		},
		{
			name: "abi error string",
			err:  &rpcErr{msg: "execution reverted", data: encodedErrorString("insufficient reserve")},
			want: "insufficient reserve",
		},
		{
			name: "known custom error",
			err:  &rpcErr{msg: "execution reverted", data: hexutil.Encode(selectorBytes("EnforcedPause()"))},
			want: "the contract is paused",
		},
		{
			name: "access control error",
			err: &rpcErr{
				msg:  "execution reverted",
				data: hexutil.Encode(selectorBytes("AccessControlUnauthorizedAccount(address,bytes32)")),
			},
			want: "the connected wallet is missing the required role",
		},
		{
			name: "unknown custom error",
			err:  &rpcErr{msg: "execution reverted", data: "0xdeadbeef"},
			want: "transaction reverted",
		},
		{
			name: "revert message without data",
			err:  errors.New("execution reverted: rate must be positive"),
			want: "rate must be positive",
		},
		{
			name: "bare revert without reason",
			err:  errors.New("execution reverted"),
			want: "transaction reverted",
		},
		{
			name: "plain transport error",
			err:  errors.New("connection refused"),
			want: "connection refused",
		},
		{
			name: "wrapped data error",
			err:  fmt.Errorf("submit pause: %w", &rpcErr{msg: "execution reverted", data: hexutil.Encode(selectorBytes("ExpectedPause()"))}),
			want: "the contract is not paused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeRevert(tt.err); got != tt.want {
				t.Fatalf("DecodeRevert() = %q, want %q", got, tt.want)
			}
		})
	}
}

func selectorBytes(sig string) []byte {
	s := selector(sig)
	return s[:]
}

func TestDecodeRevertPanic(t *testing.T) {
	data := append(panicSelector[:], make([]byte, 32)...)
	data[len(data)-1] = 0x11 // arithmetic overflow code
	err := &rpcErr{msg: "execution reverted", data: hexutil.Encode(data)}

	if got := DecodeRevert(err); got != "contract panic (code 0x11)" {
		t.Fatalf("DecodeRevert() = %q", got)
	}
}
