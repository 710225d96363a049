package graphpool

import "context"

// SessionHandle identifies one live server session to the TransportClient
// that produced it. Handles are opaque to this package and must only be
// passed back to the transport they came from.
type SessionHandle interface{}

// TxHandle identifies an open server-side transaction. A handle is owned by
// exactly one session and becomes invalid after CommitTx or RollbackTx,
// whether or not the call succeeded.
type TxHandle interface{}

// Row is one result row in server-returned order. Values[i] corresponds to
// Keys[i].
type Row struct {
	Keys   []string
	Values []any
}

// Get returns the value for the named column and whether it was present.
func (r Row) Get(key string) (any, bool) {
	for i, k := range r.Keys {
		if k == key {
			return r.Values[i], true
		}
	}
	return nil, false
}

// RowStream is a forward-only cursor over the rows of one statement. The
// caller must call Close when done, whether or not the stream was fully
// consumed.
//
// The usage pattern mirrors database cursors: Next advances and reports
// whether a row is available, Row returns the current row, and Err reports
// the failure that ended iteration early, if any.
type RowStream interface {
	Next(ctx context.Context) bool
	Row() Row
	Err() error
	Close(ctx context.Context) error
}

// TransportClient is the opaque RPC boundary to the database server. This
// package never parses the wire format; it drives these six operations and
// interprets success or failure.
//
// Implementations should classify the errors they return with WrapError:
// server-reported statement errors as KindQuery, everything else as
// KindTransport. Unclassified errors are treated as Transport-class.
//
// A SessionHandle is used by at most one goroutine at a time (lease
// exclusivity is enforced above this layer), so implementations need no
// per-session locking.
type TransportClient interface {
	// Open establishes a new server session.
	Open(ctx context.Context) (SessionHandle, error)

	// Close terminates a server session and frees its resources.
	Close(ctx context.Context, sess SessionHandle) error

	// Run executes one statement on the session. If the session has an open
	// transaction (begun via BeginTx and not yet finalized), the statement
	// runs inside it; otherwise it runs as an implicit single-statement
	// transaction.
	Run(ctx context.Context, sess SessionHandle, statement string, params map[string]any) (RowStream, error)

	// BeginTx starts an explicit transaction on the session.
	BeginTx(ctx context.Context, sess SessionHandle) (TxHandle, error)

	// CommitTx commits the transaction. The handle is invalid afterward even
	// if the commit failed.
	CommitTx(ctx context.Context, tx TxHandle) error

	// RollbackTx rolls the transaction back. The handle is invalid afterward
	// even if the rollback failed.
	RollbackTx(ctx context.Context, tx TxHandle) error
}
