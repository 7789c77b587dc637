// Package postgres archives oracle samples and stats snapshots for
// long-range charting. The archive is optional: an empty database URL
// disables it, and write failures degrade to log lines upstream.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver

	"github.com/ilsx/dashboard/internal/core/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps the archive connection.
type DB struct {
	*sqlx.DB
}

// Open connects to the archive database and configures the pool.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	db, err := sqlx.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 10
	}
	minConns := cfg.MinConns
	if minConns <= 0 {
		minConns = 2
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(minConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &DB{DB: db}, nil
}

// Migrate applies the embedded schema migrations.
func (db *DB) Migrate() error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.Up(db.DB.DB, "migrations"); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

// Health checks whether the archive connection is alive.
func (db *DB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}
