// Package postgres wraps database/sql over lib/pq with pool settings, a
// startup ping and a transaction helper.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/config"
	"github.com/lib/pq"
)

// txAttempts bounds how often InTx reruns a transaction that lost a
// serialization or deadlock race.
const txAttempts = 3

type Client struct {
	DB *sql.DB
}

func New(cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return connect(db)
}

// NewFromDSN opens a client for a raw lib/pq DSN; tests use it.
func NewFromDSN(dsn string) (*Client, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	return connect(db)
}

func connect(db *sql.DB) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{DB: db}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// ApplySchema executes the SQL file at path as one batch. The migrations are
// idempotent, so it is safe against an already initialised database.
func (c *Client) ApplySchema(ctx context.Context, path string) error {
	schema, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading schema %s: %w", path, err)
	}
	if _, err := c.DB.ExecContext(ctx, string(schema)); err != nil {
		return fmt.Errorf("applying schema %s: %w", path, err)
	}
	return nil
}

// InTx runs fn inside a transaction and commits it. Concurrent ON CONFLICT
// upserts into the same posting rows can deadlock; such attempts are rolled
// back and fn runs again, so fn must not keep state across calls.
func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 1; attempt <= txAttempts; attempt++ {
		err = c.runTx(ctx, fn)
		if err == nil || !retryableTxError(err) || ctx.Err() != nil {
			return err
		}
		slog.Warn("transaction conflict, retrying", "attempt", attempt, "error", err)
	}
	return err
}

func (c *Client) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// retryableTxError reports serialization failures and detected deadlocks.
func retryableTxError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case "40001", "40P01":
		return true
	}
	return false
}
