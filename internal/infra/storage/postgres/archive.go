package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/ilsx/dashboard/internal/core/domain"
)

// Archive persists oracle samples and stats snapshots.
type Archive struct {
	db *DB
}

// NewArchive creates an archive over an open connection.
func NewArchive(db *DB) *Archive {
	return &Archive{db: db}
}

type oracleRow struct {
	EthUsd    float64   `db:"eth_usd"`
	UsdIls    float64   `db:"usd_ils"`
	EthIls    float64   `db:"eth_ils"`
	SampledAt time.Time `db:"sampled_at"`
}

// AppendOracle archives one oracle sample. Satisfies the poller's sink
// interface so the archive receives every retained sample.
func (a *Archive) AppendOracle(ctx context.Context, sample domain.OracleSample) error {
	query := `
		INSERT INTO oracle_samples (eth_usd, usd_ils, eth_ils, sampled_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := a.db.ExecContext(ctx, query,
		sample.EthUsd,
		sample.UsdIls,
		sample.EthIls,
		sample.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("archive oracle sample: %w", err)
	}
	return nil
}

// OracleSeries returns archived samples since the given time, newest
// first, capped at limit.
func (a *Archive) OracleSeries(ctx context.Context, since time.Time, limit int) ([]domain.OracleSample, error) {
	if limit <= 0 {
		limit = domain.MaxOracleHistory
	}
	query := `
		SELECT eth_usd, usd_ils, eth_ils, sampled_at
		FROM oracle_samples
		WHERE sampled_at >= $1
		ORDER BY sampled_at DESC
		LIMIT $2
	`
	var rows []oracleRow
	if err := a.db.SelectContext(ctx, &rows, query, since, limit); err != nil {
		return nil, fmt.Errorf("load oracle series: %w", err)
	}

	samples := make([]domain.OracleSample, 0, len(rows))
	for _, r := range rows {
		samples = append(samples, domain.OracleSample{
			EthUsd:    r.EthUsd,
			UsdIls:    r.UsdIls,
			EthIls:    r.EthIls,
			Timestamp: r.SampledAt,
		})
	}
	return samples, nil
}

// StatsSnapshot is one archived aggregate observation.
type StatsSnapshot struct {
	Stats      domain.Stats
	CapturedAt time.Time
}

type snapshotRow struct {
	TotalMinted    sql.NullString `db:"total_minted"`
	TotalBurned    sql.NullString `db:"total_burned"`
	ReserveBalance sql.NullString `db:"reserve_balance"`
	CurrentRate    sql.NullString `db:"current_rate"`
	TotalSupply    sql.NullString `db:"total_supply"`
	Source         string         `db:"source"`
	CapturedAt     time.Time      `db:"captured_at"`
}

// SaveSnapshot archives one stats snapshot. Nil fields stay NULL so a
// degraded refresh never fabricates zeros.
func (a *Archive) SaveSnapshot(ctx context.Context, stats domain.Stats, at time.Time) error {
	query := `
		INSERT INTO stats_snapshots
			(total_minted, total_burned, reserve_balance, current_rate, total_supply, source, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := a.db.ExecContext(ctx, query,
		nullBig(stats.TotalMinted),
		nullBig(stats.TotalBurned),
		nullBig(stats.ReserveBalance),
		nullBig(stats.CurrentRate),
		nullBig(stats.TotalSupply),
		string(stats.Source),
		at,
	)
	if err != nil {
		return fmt.Errorf("archive stats snapshot: %w", err)
	}
	return nil
}

// Snapshots returns archived snapshots since the given time, newest
// first, capped at limit.
func (a *Archive) Snapshots(ctx context.Context, since time.Time, limit int) ([]StatsSnapshot, error) {
	if limit <= 0 {
		limit = 1000
	}
	query := `
		SELECT total_minted, total_burned, reserve_balance, current_rate, total_supply, source, captured_at
		FROM stats_snapshots
		WHERE captured_at >= $1
		ORDER BY captured_at DESC
		LIMIT $2
	`
	var rows []snapshotRow
	if err := a.db.SelectContext(ctx, &rows, query, since, limit); err != nil {
		return nil, fmt.Errorf("load stats snapshots: %w", err)
	}

	snaps := make([]StatsSnapshot, 0, len(rows))
	for _, r := range rows {
		snaps = append(snaps, StatsSnapshot{
			Stats: domain.Stats{
				TotalMinted:    parseBig(r.TotalMinted),
				TotalBurned:    parseBig(r.TotalBurned),
				ReserveBalance: parseBig(r.ReserveBalance),
				CurrentRate:    parseBig(r.CurrentRate),
				TotalSupply:    parseBig(r.TotalSupply),
				Source:         domain.Source(r.Source),
			},
			CapturedAt: r.CapturedAt,
		})
	}
	return snaps, nil
}

// PruneBefore drops archived rows older than the cutoff and reports how
// many were removed.
func (a *Archive) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64

	res, err := a.db.ExecContext(ctx, `DELETE FROM oracle_samples WHERE sampled_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune oracle samples: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}

	res, err = a.db.ExecContext(ctx, `DELETE FROM stats_snapshots WHERE captured_at < $1`, cutoff)
	if err != nil {
		return total, fmt.Errorf("prune stats snapshots: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}
	return total, nil
}

func nullBig(v *big.Int) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: v.String(), Valid: true}
}

func parseBig(v sql.NullString) *big.Int {
	if !v.Valid {
		return nil
	}
	n, ok := new(big.Int).SetString(v.String, 10)
	if !ok {
		return nil
	}
	return n
}
