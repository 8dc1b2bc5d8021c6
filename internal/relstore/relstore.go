// Package relstore adapts PostgreSQL (via pgx) into the relational store
// contract from spec §2/§5/§6: parameterized query helpers, connection-pool
// lifecycle, and explicit transaction boundaries. No lynx equivalent exists
// (the teacher is a pure AI-framework library with no persistence layer);
// grounded instead on the pack's other examples (codeready-toolchain-tarsy,
// agentoven-agentoven) which both use jackc/pgx/v5 for their relational
// layer — see DESIGN.md.
package relstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// minRecommendedPoolSize and the max_size warning threshold, per spec §5.
const (
	minRecommendedPoolSize = 10
	warnMaxSizeBelow       = 20
)

// Logger is the narrow logging dependency relstore needs, declared here so
// this package does not import internal/logging. internal/logging.Logger
// does not satisfy it directly (its Warn takes logging.Field values);
// cmd/server wraps it in an adapter.
type Logger interface {
	Warn(msg string, kv ...any)
}

// Config configures the connection pool.
type Config struct {
	DSN     string
	MaxSize int32 // pool max connections; warns if < 20
	Logger  Logger
}

func (c *Config) validate() error {
	if c == nil {
		return errors.New("relstore: config is nil")
	}
	if c.DSN == "" {
		return errors.New("relstore: DSN is required")
	}
	if c.MaxSize <= 0 {
		c.MaxSize = minRecommendedPoolSize
	}
	return nil
}

// Store wraps a pgxpool.Pool with the parameterized-query and transaction
// helpers the memory subsystem and journey tracker need.
type Store struct {
	pool *pgxpool.Pool
}

// New builds a Store, opening (but not yet using) the connection pool.
func New(ctx context.Context, cfg *Config) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("relstore: invalid DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxSize

	if cfg.MaxSize < warnMaxSizeBelow && cfg.Logger != nil {
		cfg.Logger.Warn("relstore: pool max_size below recommended minimum", "max_size", cfg.MaxSize, "recommended", warnMaxSizeBelow)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("relstore: failed to open pool: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Health pings the pool.
func (s *Store) Health(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("relstore: health check failed: %w", err)
	}
	return nil
}

// Query runs a parameterized query, scoping the acquisition to this single
// operation (spec §5 shared-resource policy).
func (s *Store) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("relstore: query failed: %w", err)
	}
	return rows, nil
}

// QueryRow runs a parameterized single-row query.
func (s *Store) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return s.pool.QueryRow(ctx, sql, args...)
}

// Exec runs a parameterized statement with no result rows.
func (s *Store) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("relstore: exec failed: %w", err)
	}
	return nil
}

// TxFunc is the unit of work run inside WithinTx.
type TxFunc func(ctx context.Context, tx pgx.Tx) error

// WithinTx runs fn inside one transaction, committing on success and rolling
// back on error or panic. Used by the memory subsystem to keep fact insert +
// source insert + promotion-flag update atomic (spec §4.3 write-path
// consistency).
func (s *Store) WithinTx(ctx context.Context, fn TxFunc) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("relstore: failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	err = fn(ctx, tx)
	return err
}
