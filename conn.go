package graphpool

import "context"

// Connection is the contract application code drives a leased session
// through.
//
// All methods require context.Context so cancellation propagates to in-flight
// database operations. A Connection is exclusively owned by one caller for
// the duration of the lease and is not safe for concurrent use; callers must
// serialize their own use of one lease.
//
// Prefer depending on Connection rather than *Conn so application code
// remains testable and decoupled from the concrete driver variant backing the
// lease. Pool management methods (Stat, Close, config knobs) are
// intentionally not part of this contract; they belong on Pool.
type Connection interface {
	// SessionID returns the opaque token identifying the underlying session.
	// The token is stable across leases of the same session.
	SessionID() string

	// Run executes one statement, inside the open transaction if any, and
	// returns all result rows in server order. Prefer the generic Query
	// helper for mapped results.
	Run(ctx context.Context, statement string, params map[string]any) ([]Row, error)

	// Begin opens an explicit transaction. Fails with
	// KindAlreadyInTransaction if one is already open.
	Begin(ctx context.Context) error

	// Commit finalizes the open transaction. Fails with
	// KindNoActiveTransaction if none is open.
	Commit(ctx context.Context) error

	// Rollback abandons the open transaction. Fails with
	// KindNoActiveTransaction if none is open.
	Rollback(ctx context.Context) error

	// Release returns the lease to the pool exactly once. Pass the error that
	// ended the caller's work, or nil on success; a Transport-class error (or
	// a poisoned connection) causes the underlying session to be discarded
	// rather than recycled. The Connection is unusable afterward.
	Release(err error)
}

// Conn is the concrete Connection handed out by Pool.Acquire. Each operation
// consults the transaction state machine for legality first — protocol
// violations are rejected locally with no transport round-trip — then
// delegates to the underlying session and updates the state from the outcome.
type Conn struct {
	sess     *session
	pool     *Pool
	state    txState
	released bool
}

var _ Connection = (*Conn)(nil)

func (c *Conn) SessionID() string {
	c.checkUsable()
	return c.sess.id
}

func (c *Conn) Run(ctx context.Context, statement string, params map[string]any) ([]Row, error) {
	c.checkUsable()
	if err := c.state.checkRun(); err != nil {
		return nil, err
	}
	rows, err := c.sess.run(ctx, statement, params)
	if IsTransport(err) {
		c.state = statePoisoned
	}
	return rows, err
}

func (c *Conn) Begin(ctx context.Context) error {
	c.checkUsable()
	if err := c.state.checkBegin(); err != nil {
		return err
	}
	if err := c.sess.begin(ctx); err != nil {
		if IsTransport(err) {
			// The server may or may not have opened a transaction.
			c.state = statePoisoned
		}
		return err
	}
	c.state = stateInTx
	return nil
}

func (c *Conn) Commit(ctx context.Context) error {
	return c.finalize(ctx, (*session).commit)
}

func (c *Conn) Rollback(ctx context.Context) error {
	return c.finalize(ctx, (*session).rollback)
}

// finalize runs commit or rollback. Any failure poisons the connection: the
// session is left with no usable transaction and an unknowable server-side
// status, so it must not be recycled.
func (c *Conn) finalize(ctx context.Context, op func(*session, context.Context) error) error {
	c.checkUsable()
	if err := c.state.checkFinalize(); err != nil {
		return err
	}
	if err := op(c.sess, ctx); err != nil {
		c.state = statePoisoned
		return err
	}
	c.state = stateIdle
	return nil
}

// Release returns the lease to the pool. A connection released with an open
// transaction is rolled back best-effort first; if that rollback fails the
// session is discarded instead of recycled. Calling Release twice, or using
// the Conn afterward, is a caller bug and panics.
func (c *Conn) Release(err error) {
	if c.released {
		panic("graphpool: Release called twice on the same Conn")
	}
	c.released = true

	discard := c.state == statePoisoned || discardable(err)
	if !discard && c.state == stateInTx {
		ctx, cancel := context.WithTimeout(context.Background(), c.pool.cfg.CloseTimeout)
		if rbErr := c.sess.rollback(ctx); rbErr != nil {
			discard = true
		}
		cancel()
	}

	c.pool.release(c.sess, discard)
	c.sess = nil
}

func (c *Conn) checkUsable() {
	if c.released {
		panic("graphpool: Conn used after Release")
	}
}

// discardable reports whether the error a caller passed to Release forces the
// session to be discarded. Query-class errors leave the session usable;
// unclassified errors are treated conservatively as Transport-class.
func discardable(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindQuery, KindAlreadyInTransaction, KindNoActiveTransaction, KindTimeout, KindPoolClosed:
		return false
	default:
		return true
	}
}
