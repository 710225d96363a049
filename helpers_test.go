package graphpool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithConn_ReleasesOnSuccess(t *testing.T) {
	t.Parallel()

	tt := &TestTransport{}
	p := newTestPool(t, tt, Config{Capacity: 1})

	err := WithConn(context.Background(), p, func(c Connection) error {
		_, err := c.Run(context.Background(), "RETURN 1", nil)
		return err
	})
	require.NoError(t, err)

	stat := p.Stat()
	assert.Equal(t, 0, stat.LeasedSessions)
	assert.Equal(t, 1, stat.IdleSessions)
}

func TestWithConn_ReleasesAndPropagatesError(t *testing.T) {
	t.Parallel()

	tt := &TestTransport{}
	p := newTestPool(t, tt, Config{Capacity: 1})

	sentinel := errors.New("domain failure")
	err := WithConn(context.Background(), p, func(Connection) error {
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	// An unclassified error is treated as Transport-class: discard.
	assert.Equal(t, 1, tt.Calls("close"))
	assert.Equal(t, 0, p.Stat().TotalSessions)
}

func TestWithConn_QueryErrorRecyclesSession(t *testing.T) {
	t.Parallel()

	tt := &TestTransport{}
	p := newTestPool(t, tt, Config{Capacity: 1})

	err := WithConn(context.Background(), p, func(Connection) error {
		return NewError(KindQuery, "server rejected statement")
	})
	require.True(t, IsQuery(err))

	assert.Equal(t, 0, tt.Calls("close"))
	assert.Equal(t, 1, p.Stat().IdleSessions)
}

func TestWithConn_ReleasesOnPanic(t *testing.T) {
	t.Parallel()

	tt := &TestTransport{}
	p := newTestPool(t, tt, Config{Capacity: 1})

	require.Panics(t, func() {
		_ = WithConn(context.Background(), p, func(Connection) error {
			panic("caller bug")
		})
	})

	stat := p.Stat()
	assert.Equal(t, 0, stat.LeasedSessions, "lease must be returned on panic")
}

func TestWithConn_AcquireFailurePropagates(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, &TestTransport{}, Config{Capacity: 1})
	p.Close()

	err := WithConn(context.Background(), p, func(Connection) error { return nil })
	assert.True(t, IsPoolClosed(err))
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	t.Parallel()

	tt := &TestTransport{}
	p := newTestPool(t, tt, Config{Capacity: 1})

	err := WithTx(context.Background(), p, func(c Connection) error {
		_, err := c.Run(context.Background(), "CREATE (:Node)", nil)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, 1, tt.Calls("begin"))
	assert.Equal(t, 1, tt.Calls("commit"))
	assert.Equal(t, 0, tt.Calls("rollback"))
	assert.Equal(t, 1, p.Stat().IdleSessions)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	t.Parallel()

	tt := &TestTransport{}
	p := newTestPool(t, tt, Config{Capacity: 1})

	sentinel := NewError(KindQuery, "server rejected statement")
	err := WithTx(context.Background(), p, func(Connection) error {
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	assert.Equal(t, 0, tt.Calls("commit"))
	assert.Equal(t, 1, tt.Calls("rollback"))
	// Query-class failure: the session is recycled.
	assert.Equal(t, 1, p.Stat().IdleSessions)
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	t.Parallel()

	tt := &TestTransport{}
	p := newTestPool(t, tt, Config{Capacity: 1})

	require.Panics(t, func() {
		_ = WithTx(context.Background(), p, func(Connection) error {
			panic("caller bug")
		})
	})

	assert.Equal(t, 1, tt.Calls("rollback"))
	assert.Equal(t, 0, tt.Calls("commit"))
	assert.Equal(t, 0, p.Stat().LeasedSessions)
}

func TestWithTx_CommitFailureDiscardsSession(t *testing.T) {
	t.Parallel()

	tt := &TestTransport{
		CommitTxFunc: func(context.Context, TxHandle) error {
			return errors.New("broken pipe")
		},
	}
	p := newTestPool(t, tt, Config{Capacity: 1})

	err := WithTx(context.Background(), p, func(Connection) error { return nil })
	require.Error(t, err)
	assert.True(t, IsTransport(err))

	assert.Equal(t, 1, tt.Calls("close"))
	assert.Equal(t, 0, p.Stat().TotalSessions)
}

func TestWithTx_BeginFailurePropagates(t *testing.T) {
	t.Parallel()

	tt := &TestTransport{
		BeginTxFunc: func(context.Context, SessionHandle) (TxHandle, error) {
			return nil, errors.New("conn reset")
		},
	}
	p := newTestPool(t, tt, Config{Capacity: 1})

	err := WithTx(context.Background(), p, func(Connection) error {
		t.Fatal("fn must not run when begin fails")
		return nil
	})
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.Equal(t, 0, tt.Calls("commit"))
	assert.Equal(t, 0, tt.Calls("rollback"))
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, &TestTransport{}, Config{Capacity: 1})

	status, err := HealthCheck(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "graph", status.Database)
}

func TestHealthCheck_FailsWhenPoolClosed(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, &TestTransport{}, Config{Capacity: 1})
	p.Close()

	_, err := HealthCheck(context.Background(), p)
	require.Error(t, err)
	assert.True(t, IsPoolClosed(err))
}
