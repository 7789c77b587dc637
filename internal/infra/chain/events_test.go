package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ilsx/dashboard/internal/core/domain"
)

type fakeBackend struct {
	head        uint64
	headErr     error
	logs        []types.Log
	logsErr     error
	lastQuery   ethereum.FilterQuery
	blockTimes  map[uint64]uint64
	headerCalls int
}

func (f *fakeBackend) BlockNumber(ctx context.Context) (uint64, error) {
	return f.head, f.headErr
}

func (f *fakeBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.lastQuery = q
	return f.logs, f.logsErr
}

func (f *fakeBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	f.headerCalls++
	ts, ok := f.blockTimes[number.Uint64()]
	if !ok {
		return nil, fmt.Errorf("no header for block %d", number.Uint64())
	}
	return &types.Header{Number: number, Time: ts}, nil
}

func (f *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}

func testClient(b backend) *Client {
	return &Client{
		primary:  b,
		contract: common.HexToAddress("0x1E5B771DF24401F92F67dAEA77333Dc5F1Af71aD"),
		window:   DefaultScanWindow,
		log:      slog.Default(),
	}
}

func mintedLog(t *testing.T, block uint64, to common.Address, amount *big.Int, txHash byte) types.Log {
	t.Helper()
	data, err := tokenABI.Events["Minted"].Inputs.NonIndexed().Pack(amount)
	if err != nil {
		t.Fatalf("pack minted data: %v", err)
	}
	var hash common.Hash
	hash[31] = txHash
	return types.Log{
		BlockNumber: block,
		Topics:      []common.Hash{tokenABI.Events["Minted"].ID, common.BytesToHash(to.Bytes())},
		Data:        data,
		TxHash:      hash,
	}
}

var mintedSpec = EventSpec{Name: "Minted", Kind: domain.KindMint, HasAddress: true, HasAmount: true}

func TestFetchEventsWindow(t *testing.T) {
	tests := []struct {
		head       uint64
		expectFrom uint64
	}{
		{50000, 30000},
		{20000, 0},
		{100, 0},
	}

	for _, tt := range tests {
		fake := &fakeBackend{head: tt.head, blockTimes: map[uint64]uint64{}}
		c := testClient(fake)
		c.FetchEvents(context.Background(), mintedSpec)

		if got := fake.lastQuery.FromBlock.Uint64(); got != tt.expectFrom {
			t.Errorf("head %d: FromBlock = %d, want %d", tt.head, got, tt.expectFrom)
		}
		if got := fake.lastQuery.ToBlock.Uint64(); got != tt.head {
			t.Errorf("head %d: ToBlock = %d, want %d", tt.head, got, tt.head)
		}
	}
}

func TestFetchEventsNormalizes(t *testing.T) {
	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	fake := &fakeBackend{
		head: 1000,
		logs: []types.Log{
			mintedLog(t, 10, to, big.NewInt(5), 1),
			mintedLog(t, 30, to, big.NewInt(7), 2),
			mintedLog(t, 20, to, big.NewInt(6), 3),
		},
		blockTimes: map[uint64]uint64{10: 100, 20: 200, 30: 300},
	}
	c := testClient(fake)

	events := c.FetchEvents(context.Background(), mintedSpec)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp > events[i-1].Timestamp {
			t.Errorf("events not sorted descending at %d", i)
		}
	}
	if events[0].Timestamp != 300 {
		t.Errorf("newest first: got timestamp %d", events[0].Timestamp)
	}
	if events[0].Amount.Int64() != 7 {
		t.Errorf("amount not unpacked: got %v", events[0].Amount)
	}
	if events[0].Address != to.Hex() {
		t.Errorf("address not extracted: got %q", events[0].Address)
	}
	if events[0].TxHash == "" {
		t.Error("tx hash missing")
	}
}

func TestFetchEventsTruncatesToNewest(t *testing.T) {
	to := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	fake := &fakeBackend{head: 100000, blockTimes: map[uint64]uint64{}}
	for i := 0; i < 150; i++ {
		block := uint64(1000 + i)
		fake.logs = append(fake.logs, mintedLog(t, block, to, big.NewInt(int64(i)), byte(i%250+1)))
		fake.blockTimes[block] = block * 10
	}
	c := testClient(fake)

	events := c.FetchEvents(context.Background(), mintedSpec)
	if len(events) != domain.MaxSeriesLen {
		t.Fatalf("expected %d events, got %d", domain.MaxSeriesLen, len(events))
	}
	// Oldest 50 within the window must have been dropped, newest kept.
	if events[0].Timestamp != int64(1149*10) {
		t.Errorf("newest event timestamp = %d", events[0].Timestamp)
	}
	if events[len(events)-1].Timestamp != int64(1050*10) {
		t.Errorf("oldest kept event timestamp = %d", events[len(events)-1].Timestamp)
	}
}

func TestFetchEventsDropsMissingTxHash(t *testing.T) {
	to := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	withHash := mintedLog(t, 10, to, big.NewInt(1), 9)
	withoutHash := mintedLog(t, 20, to, big.NewInt(2), 0) // zero hash
	fake := &fakeBackend{
		head:       1000,
		logs:       []types.Log{withHash, withoutHash},
		blockTimes: map[uint64]uint64{10: 100, 20: 200},
	}
	c := testClient(fake)

	events := c.FetchEvents(context.Background(), mintedSpec)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Timestamp != 100 {
		t.Errorf("wrong event survived: timestamp %d", events[0].Timestamp)
	}
}

func TestFetchEventsErrorsYieldEmpty(t *testing.T) {
	cases := []struct {
		name string
		fake *fakeBackend
	}{
		{"head error", &fakeBackend{headErr: fmt.Errorf("rpc down")}},
		{"scan error", &fakeBackend{head: 1000, logsErr: fmt.Errorf("rpc down")}},
		{"header error", &fakeBackend{
			head:       1000,
			logs:       []types.Log{mintedLog(t, 10, common.Address{}, big.NewInt(1), 1)},
			blockTimes: map[uint64]uint64{}, // no header for block 10
		}},
	}

	for _, tc := range cases {
		c := testClient(tc.fake)
		if events := c.FetchEvents(context.Background(), mintedSpec); len(events) != 0 {
			t.Errorf("%s: expected empty result, got %d events", tc.name, len(events))
		}
	}
}

func TestFetchEventsFailover(t *testing.T) {
	to := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	good := &fakeBackend{
		head:       1000,
		logs:       []types.Log{mintedLog(t, 10, to, big.NewInt(3), 4)},
		blockTimes: map[uint64]uint64{10: 100},
	}
	dead := &fakeBackend{
		headErr: fmt.Errorf("primary down"),
		logsErr: fmt.Errorf("primary down"),
	}
	c := testClient(dead)
	c.fallback = good

	events := c.FetchEvents(context.Background(), mintedSpec)
	if len(events) != 1 {
		t.Fatalf("expected fallback to serve 1 event, got %d", len(events))
	}
}

func TestResolveTimestampsDedupsBlocks(t *testing.T) {
	to := common.HexToAddress("0x00000000000000000000000000000000000000ee")
	fake := &fakeBackend{
		head: 1000,
		logs: []types.Log{
			mintedLog(t, 10, to, big.NewInt(1), 1),
			mintedLog(t, 10, to, big.NewInt(2), 2),
			mintedLog(t, 10, to, big.NewInt(3), 3),
		},
		blockTimes: map[uint64]uint64{10: 100},
	}
	c := testClient(fake)

	events := c.FetchEvents(context.Background(), mintedSpec)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if fake.headerCalls != 1 {
		t.Errorf("expected 1 header fetch for one distinct block, got %d", fake.headerCalls)
	}
}
