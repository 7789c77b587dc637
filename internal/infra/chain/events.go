package chain

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"github.com/ilsx/dashboard/internal/core/domain"
)

// EventSpec describes one contract event for the fallback scan: the solidity
// event name plus which normalized fields it carries. Specs are fixed per
// reporting domain at startup.
type EventSpec struct {
	Name       string
	Kind       domain.EventKind
	HasAddress bool // indexed address in topics[1]
	HasAmount  bool // single non-indexed uint256 in data
}

// EventSource is the reconciliation pipeline's view of the chain client.
type EventSource interface {
	// FetchEvents never returns an error: any failure yields an empty
	// slice so one broken scan cannot halt the surrounding refresh.
	FetchEvents(ctx context.Context, spec EventSpec) []domain.Event
}

// timestampWorkers bounds concurrent header resolution per scan.
const timestampWorkers = 8

// FetchEvents scans the recent block window for the given event, newest 100
// kept, block timestamps resolved concurrently, events without a tx hash
// dropped, result sorted descending by timestamp.
func (c *Client) FetchEvents(ctx context.Context, spec EventSpec) []domain.Event {
	ev, ok := tokenABI.Events[spec.Name]
	if !ok {
		c.log.Error("unknown event in spec", "event", spec.Name)
		return nil
	}

	head, err := withFailover(ctx, c, "blockNumber", func(b backend) (uint64, error) {
		return b.BlockNumber(ctx)
	})
	if err != nil {
		c.log.Error("fetch block height failed", "event", spec.Name, "error", err)
		return nil
	}

	from := uint64(0)
	if head > c.window {
		from = head - c.window
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(head),
		Addresses: []common.Address{c.contract},
		Topics:    [][]common.Hash{{ev.ID}},
	}
	logs, err := withFailover(ctx, c, "filterLogs", func(b backend) ([]types.Log, error) {
		return b.FilterLogs(ctx, query)
	})
	if err != nil {
		c.log.Error("event scan failed", "event", spec.Name, "error", err)
		return nil
	}

	// Logs arrive ascending; keep the newest within the window.
	if len(logs) > domain.MaxSeriesLen {
		logs = logs[len(logs)-domain.MaxSeriesLen:]
	}

	timestamps, err := c.resolveTimestamps(ctx, logs)
	if err != nil {
		c.log.Error("timestamp resolution failed", "event", spec.Name, "error", err)
		return nil
	}

	events := make([]domain.Event, 0, len(logs))
	for _, lg := range logs {
		if lg.Removed || lg.TxHash == (common.Hash{}) {
			continue
		}
		e := domain.Event{
			Kind:      spec.Kind,
			Timestamp: timestamps[lg.BlockNumber],
			TxHash:    lg.TxHash.Hex(),
		}
		if spec.HasAddress && len(lg.Topics) > 1 {
			e.Address = common.BytesToAddress(lg.Topics[1].Bytes()).Hex()
		}
		if spec.HasAmount {
			unpacked, err := tokenABI.Unpack(spec.Name, lg.Data)
			if err != nil || len(unpacked) == 0 {
				c.log.Warn("unpack event data failed", "event", spec.Name, "tx", e.TxHash, "error", err)
			} else if amount, ok := unpacked[0].(*big.Int); ok {
				e.Amount = amount
			}
		}
		events = append(events, e)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp > events[j].Timestamp
	})
	return events
}

// resolveTimestamps fetches each distinct block header once, concurrently.
// Ordering of resolution is irrelevant: every event is tagged with its own
// block's timestamp afterwards.
func (c *Client) resolveTimestamps(ctx context.Context, logs []types.Log) (map[uint64]int64, error) {
	numbers := make(map[uint64]struct{}, len(logs))
	for _, lg := range logs {
		numbers[lg.BlockNumber] = struct{}{}
	}

	var mu sync.Mutex
	out := make(map[uint64]int64, len(numbers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(timestampWorkers)
	for number := range numbers {
		g.Go(func() error {
			header, err := withFailover(gctx, c, "headerByNumber", func(b backend) (*types.Header, error) {
				return b.HeaderByNumber(gctx, new(big.Int).SetUint64(number))
			})
			if err != nil {
				return err
			}
			mu.Lock()
			out[number] = int64(header.Time)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
