package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storeloom/searchcore/internal/config"
)

var (
	// ErrPoolExhausted means no idle connection appeared within the
	// configured acquire timeout. The operation failed; nothing leaked.
	ErrPoolExhausted = errors.New("connection pool exhausted")

	// ErrQueryTimeout means the per-transaction statement timeout fired.
	ErrQueryTimeout = errors.New("query timeout")
)

// Postgres error code for a statement cancelled by statement_timeout.
const queryCanceledCode = "57014"

// Pool wraps pgxpool with tenant-scoped, safety-constrained transactions.
// It is safe for concurrent use; construct once at startup, inject, close
// once at shutdown.
type Pool struct {
	db             *pgxpool.Pool
	acquireTimeout time.Duration
	readTimeout    time.Duration
	closeOnce      sync.Once
}

func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)

	db, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{
		db:             db,
		acquireTimeout: cfg.AcquireTimeout,
		readTimeout:    cfg.ReadStatementTimeout,
	}, nil
}

// Acquire checks out a connection, waiting at most the configured acquire
// timeout when the pool is exhausted. Callers must Release on every path.
func (p *Pool) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	acquireCtx := ctx
	if p.acquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, p.acquireTimeout)
		defer cancel()
	}

	conn, err := p.db.Acquire(acquireCtx)
	if err != nil {
		// Distinguish our bounded wait from a caller-cancelled context.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: no idle connection within %s", ErrPoolExhausted, p.acquireTimeout)
		}
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return conn, nil
}

// RunRead executes fn inside a read-only transaction with the statement
// timeout applied. When tenantID is non-empty it is installed as the
// per-transaction row-level-security context. The connection is returned to
// the pool on every exit path.
func (p *Pool) RunRead(ctx context.Context, tenantID string, fn func(pgx.Tx) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := setTenantContext(ctx, tx, tenantID); err != nil {
		return err
	}

	if p.readTimeout > 0 {
		ms := strconv.FormatInt(p.readTimeout.Milliseconds(), 10)
		if _, err := tx.Exec(ctx, "SELECT set_config('statement_timeout', $1, true)", ms); err != nil {
			return fmt.Errorf("set statement timeout: %w", err)
		}
	}

	if err := fn(tx); err != nil {
		return mapQueryError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit read tx: %w", err)
	}
	return nil
}

// RunWrite executes fn inside a read-write transaction with the tenant
// context applied. No statement timeout is imposed. Rolls back on error,
// always releases the connection.
func (p *Pool) RunWrite(ctx context.Context, tenantID string, fn func(pgx.Tx) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin write tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := setTenantContext(ctx, tx, tenantID); err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		return mapQueryError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit write tx: %w", err)
	}
	return nil
}

func (p *Pool) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

// Close drains and closes all pooled connections. Idempotent.
func (p *Pool) Close() {
	p.closeOnce.Do(p.db.Close)
}

// setTenantContext installs tenantID for row-level isolation. The value is
// transaction-local, so it cannot bleed into the next checkout of the same
// connection.
func setTenantContext(ctx context.Context, tx pgx.Tx, tenantID string) error {
	if tenantID == "" {
		return nil
	}
	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return fmt.Errorf("set tenant context: %w", err)
	}
	return nil
}

func mapQueryError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == queryCanceledCode {
		return fmt.Errorf("%w: %s", ErrQueryTimeout, pgErr.Message)
	}
	return err
}
