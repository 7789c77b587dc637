package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ilsx/dashboard/internal/core/domain"
)

// Fixed keys for the persisted lists.
const (
	txHistoryKey     = "ilsx:tx_history"
	oracleHistoryKey = "ilsx:oracle_history"
	supplyHistoryKey = "ilsx:supply_history"
)

// AppendTx prepends a transaction-log entry, trimming to the retained cap.
func (c *Client) AppendTx(ctx context.Context, entry domain.TxEntry) error {
	return c.push(ctx, txHistoryKey, entry, domain.MaxTxHistory)
}

// Transactions returns up to limit entries, newest first.
func (c *Client) Transactions(ctx context.Context, limit int64) ([]domain.TxEntry, error) {
	return listRange[domain.TxEntry](ctx, c, txHistoryKey, limit)
}

// AppendOracle prepends a retained oracle sample. Value-level dedup happens
// in the poller; this list only caps retention.
func (c *Client) AppendOracle(ctx context.Context, sample domain.OracleSample) error {
	return c.push(ctx, oracleHistoryKey, sample, domain.MaxOracleHistory)
}

// OracleHistory returns up to limit samples, newest first.
func (c *Client) OracleHistory(ctx context.Context, limit int64) ([]domain.OracleSample, error) {
	return listRange[domain.OracleSample](ctx, c, oracleHistoryKey, limit)
}

// AppendSupply records a supply observation unless it matches the newest
// retained value.
func (c *Client) AppendSupply(ctx context.Context, value string) error {
	head, err := c.rdb.LIndex(ctx, supplyHistoryKey, 0).Result()
	if err == nil {
		var latest domain.SupplyPoint
		if json.Unmarshal([]byte(head), &latest) == nil && latest.Value == value {
			return nil
		}
	}
	point := domain.SupplyPoint{Value: value, Time: time.Now()}
	return c.push(ctx, supplyHistoryKey, point, domain.MaxOracleHistory)
}

// SupplyHistory returns up to limit supply points, newest first.
func (c *Client) SupplyHistory(ctx context.Context, limit int64) ([]domain.SupplyPoint, error) {
	return listRange[domain.SupplyPoint](ctx, c, supplyHistoryKey, limit)
}

func (c *Client) push(ctx context.Context, key string, v any, maxLen int64) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s entry: %w", key, err)
	}
	pipe := c.rdb.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, maxLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append to %s: %w", key, err)
	}
	return nil
}

func listRange[T any](ctx context.Context, c *Client, key string, limit int64) ([]T, error) {
	end := limit - 1
	if limit <= 0 {
		end = -1
	}
	raw, err := c.rdb.LRange(ctx, key, 0, end).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	out := make([]T, 0, len(raw))
	for _, item := range raw {
		var v T
		if err := json.Unmarshal([]byte(item), &v); err != nil {
			// A corrupt entry degrades itself, not the whole list.
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
