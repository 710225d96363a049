package graphpool

import (
	"context"
	"time"
)

const defaultRollbackTimeout = 5 * time.Second

// HealthStatus is the response type for health check endpoints.
type HealthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// HealthCheck verifies that the pool can lease a session and returns a status
// suitable for health check API endpoints.
func HealthCheck(ctx context.Context, p *Pool) (*HealthStatus, error) {
	if err := p.Ping(ctx); err != nil {
		return nil, classify(err, "graphpool: health check failed")
	}

	return &HealthStatus{Status: "ok", Database: "graph"}, nil
}

// WithConn acquires a connection, runs fn with it, and releases it exactly
// once — on success, on error, and on panic. The error fn returns is passed
// to Release, so a Transport-class failure discards the session. This is the
// preferred way to use the pool; manual Acquire/Release is for callers that
// hold a lease across multiple function boundaries.
func WithConn(ctx context.Context, p *Pool, fn func(Connection) error) (err error) {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			conn.Release(nil)
			panic(r)
		}
		conn.Release(err)
	}()

	err = fn(conn)
	return err
}

// WithTx acquires a connection and executes fn within a transaction. If fn
// returns an error or panics, the transaction is rolled back. Otherwise, it
// is committed. The rollback runs under its own bounded deadline so it still
// fires when the caller's context is already canceled.
func WithTx(ctx context.Context, p *Pool, fn func(Connection) error) error {
	return WithConn(ctx, p, func(conn Connection) (err error) {
		if err := conn.Begin(ctx); err != nil {
			return err
		}

		rollbackCtx, cancelRollback := context.WithTimeout(context.Background(), defaultRollbackTimeout)
		defer cancelRollback()

		defer func() {
			if r := recover(); r != nil {
				_ = conn.Rollback(rollbackCtx)
				panic(r)
			}
			if err != nil {
				_ = conn.Rollback(rollbackCtx)
			}
		}()

		err = fn(conn)
		if err != nil {
			return err
		}

		if err := conn.Commit(ctx); err != nil {
			return err
		}

		return nil
	})
}
