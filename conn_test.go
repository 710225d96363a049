package graphpool

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConn_CommitWithoutTransactionFailsFast(t *testing.T) {
	t.Parallel()

	tt := &TestTransport{}
	p := newTestPool(t, tt, Config{Capacity: 1})

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer c.Release(nil)

	err = c.Commit(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindNoActiveTransaction, KindOf(err))
	assert.Equal(t, 0, tt.Calls("commit"), "protocol violation must not reach the transport")
}

func TestConn_RollbackWithoutTransactionFailsFast(t *testing.T) {
	t.Parallel()

	tt := &TestTransport{}
	p := newTestPool(t, tt, Config{Capacity: 1})

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer c.Release(nil)

	err = c.Rollback(context.Background())
	assert.Equal(t, KindNoActiveTransaction, KindOf(err))
	assert.Equal(t, 0, tt.Calls("rollback"))
}

func TestConn_BeginTwiceFailsFast(t *testing.T) {
	t.Parallel()

	tt := &TestTransport{}
	p := newTestPool(t, tt, Config{Capacity: 1})

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer c.Release(nil)

	require.NoError(t, c.Begin(context.Background()))

	err = c.Begin(context.Background())
	assert.Equal(t, KindAlreadyInTransaction, KindOf(err))
	assert.Equal(t, 1, tt.Calls("begin"))

	require.NoError(t, c.Rollback(context.Background()))
}

func TestConn_TransactionRoundTrip(t *testing.T) {
	t.Parallel()

	tt := &TestTransport{}
	p := newTestPool(t, tt, Config{Capacity: 1})

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	id := c.SessionID()

	require.NoError(t, c.Begin(context.Background()))
	_, err = c.Run(context.Background(), "CREATE (:Node)", nil)
	require.NoError(t, err)
	require.NoError(t, c.Commit(context.Background()))
	c.Release(nil)

	// The session went back to idle and is reusable.
	stat := p.Stat()
	assert.Equal(t, 1, stat.IdleSessions)
	assert.Equal(t, 0, stat.LeasedSessions)

	c2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, c2.SessionID())
	c2.Release(nil)
}

func TestConn_TransportFailureInTransactionPoisons(t *testing.T) {
	t.Parallel()

	tt := &TestTransport{
		RunFunc: func(context.Context, SessionHandle, string, map[string]any) (RowStream, error) {
			return nil, errors.New("conn reset")
		},
	}
	p := newTestPool(t, tt, Config{Capacity: 1})

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	id := c.SessionID()

	require.NoError(t, c.Begin(context.Background()))

	_, err = c.Run(context.Background(), "MATCH (n) RETURN n", nil)
	require.Error(t, err)
	require.True(t, IsTransport(err))

	// Commit on the poisoned connection is rejected locally.
	commitErr := c.Commit(context.Background())
	require.Error(t, commitErr)
	assert.True(t, IsTransport(commitErr))
	assert.True(t, strings.Contains(commitErr.Error(), "poisoned"))
	assert.Equal(t, 0, tt.Calls("commit"), "poisoned connection must not issue transport calls")

	c.Release(err)

	// The session was discarded, not recycled.
	assert.Equal(t, 1, tt.Calls("close"))
	stat := p.Stat()
	assert.Equal(t, 0, stat.IdleSessions)
	assert.Equal(t, 0, stat.TotalSessions)

	// A replacement is created lazily and never reuses the poisoned session.
	tt.RunFunc = nil
	c2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, id, c2.SessionID())
	c2.Release(nil)
}

func TestConn_QueryErrorDoesNotPoison(t *testing.T) {
	t.Parallel()

	tt := &TestTransport{
		RunFunc: func(context.Context, SessionHandle, string, map[string]any) (RowStream, error) {
			return nil, WrapError(KindQuery, "bolt: server rejected statement", errors.New("SyntaxError"))
		},
	}
	p := newTestPool(t, tt, Config{Capacity: 1})

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	id := c.SessionID()

	require.NoError(t, c.Begin(context.Background()))

	_, err = c.Run(context.Background(), "MTCH syntax error", nil)
	require.True(t, IsQuery(err))

	// The transaction survives a statement rejection.
	require.NoError(t, c.Commit(context.Background()))
	c.Release(err)

	// Query-class errors recycle the session.
	assert.Equal(t, 0, tt.Calls("close"))
	c2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, c2.SessionID())
	c2.Release(nil)
}

func TestConn_CommitFailurePoisonsAndDiscards(t *testing.T) {
	t.Parallel()

	tt := &TestTransport{
		CommitTxFunc: func(context.Context, TxHandle) error {
			return errors.New("broken pipe")
		},
	}
	p := newTestPool(t, tt, Config{Capacity: 1})

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Begin(context.Background()))

	require.Error(t, c.Commit(context.Background()))

	// Even released "cleanly", the poisoned session is discarded.
	c.Release(nil)
	assert.Equal(t, 1, tt.Calls("close"))
	assert.Equal(t, 0, p.Stat().TotalSessions)
}

func TestConn_MidStreamFailurePoisons(t *testing.T) {
	t.Parallel()

	tt := &TestTransport{
		RunFunc: func(context.Context, SessionHandle, string, map[string]any) (RowStream, error) {
			return RowsThenError(errors.New("conn reset"), NewRow("n", 1)), nil
		},
	}
	p := newTestPool(t, tt, Config{Capacity: 1})

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Begin(context.Background()))

	_, err = c.Run(context.Background(), "MATCH (n) RETURN n", nil)
	require.True(t, IsTransport(err))

	assert.Equal(t, KindTransport, KindOf(c.Commit(context.Background())))
	assert.Equal(t, 0, tt.Calls("commit"))

	c.Release(err)
	assert.Equal(t, 1, tt.Calls("close"))
}

func TestConn_ReleaseWithOpenTransactionRollsBackAndRecycles(t *testing.T) {
	t.Parallel()

	tt := &TestTransport{}
	p := newTestPool(t, tt, Config{Capacity: 1})

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	id := c.SessionID()
	require.NoError(t, c.Begin(context.Background()))

	c.Release(nil)

	assert.Equal(t, 1, tt.Calls("rollback"), "dangling transaction must be rolled back on release")
	assert.Equal(t, 0, tt.Calls("close"))

	c2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, c2.SessionID())
	c2.Release(nil)
}

func TestConn_ReleaseWithOpenTransactionDiscardsWhenRollbackFails(t *testing.T) {
	t.Parallel()

	tt := &TestTransport{
		RollbackTxFunc: func(context.Context, TxHandle) error {
			return errors.New("broken pipe")
		},
	}
	p := newTestPool(t, tt, Config{Capacity: 1})

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Begin(context.Background()))

	c.Release(nil)

	assert.Equal(t, 1, tt.Calls("rollback"))
	assert.Equal(t, 1, tt.Calls("close"))
	assert.Equal(t, 0, p.Stat().TotalSessions)
}

func TestConn_ReleaseTwicePanics(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, &TestTransport{}, Config{Capacity: 1})

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	c.Release(nil)

	assert.Panics(t, func() { c.Release(nil) })
}

func TestConn_UseAfterReleasePanics(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, &TestTransport{}, Config{Capacity: 1})

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	c.Release(nil)

	assert.Panics(t, func() { _, _ = c.Run(context.Background(), "RETURN 1", nil) })
	assert.Panics(t, func() { _ = c.Begin(context.Background()) })
	assert.Panics(t, func() { _ = c.SessionID() })
}

func TestDiscardable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"query", NewError(KindQuery, "x"), false},
		{"timeout", NewError(KindTimeout, "x"), false},
		{"protocol violation", NewError(KindNoActiveTransaction, "x"), false},
		{"transport", NewError(KindTransport, "x"), true},
		{"unclassified", errors.New("boom"), true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, discardable(tt.err))
		})
	}
}
