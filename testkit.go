package graphpool

import (
	"context"
	"fmt"
	"sync"
)

// TestTransport is an in-memory TransportClient for unit tests. The zero
// value works: sessions and transactions succeed and statements return no
// rows. Set a Func field to script an operation; every call is counted per
// operation either way, so tests can assert that protocol violations caused
// no transport round-trip.
//
// TestTransport is safe for concurrent use.
type TestTransport struct {
	OpenFunc       func(ctx context.Context) (SessionHandle, error)
	CloseFunc      func(ctx context.Context, sess SessionHandle) error
	RunFunc        func(ctx context.Context, sess SessionHandle, statement string, params map[string]any) (RowStream, error)
	BeginTxFunc    func(ctx context.Context, sess SessionHandle) (TxHandle, error)
	CommitTxFunc   func(ctx context.Context, tx TxHandle) error
	RollbackTxFunc func(ctx context.Context, tx TxHandle) error

	mu     sync.Mutex
	calls  map[string]int
	nextID int
}

var _ TransportClient = (*TestTransport)(nil)

// TestSession is the default SessionHandle produced by TestTransport.
type TestSession struct {
	ID int
}

// TestTx is the default TxHandle produced by TestTransport.
type TestTx struct {
	Session SessionHandle
}

// Calls returns how many times the named operation ("open", "close", "run",
// "begin", "commit", "rollback") has been invoked.
func (t *TestTransport) Calls(op string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[op]
}

func (t *TestTransport) record(op string) {
	t.mu.Lock()
	if t.calls == nil {
		t.calls = make(map[string]int)
	}
	t.calls[op]++
	t.mu.Unlock()
}

func (t *TestTransport) Open(ctx context.Context) (SessionHandle, error) {
	t.record("open")
	if t.OpenFunc != nil {
		return t.OpenFunc(ctx)
	}
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.mu.Unlock()
	return &TestSession{ID: id}, nil
}

func (t *TestTransport) Close(ctx context.Context, sess SessionHandle) error {
	t.record("close")
	if t.CloseFunc != nil {
		return t.CloseFunc(ctx, sess)
	}
	return nil
}

func (t *TestTransport) Run(ctx context.Context, sess SessionHandle, statement string, params map[string]any) (RowStream, error) {
	t.record("run")
	if t.RunFunc != nil {
		return t.RunFunc(ctx, sess, statement, params)
	}
	return RowsOf(), nil
}

func (t *TestTransport) BeginTx(ctx context.Context, sess SessionHandle) (TxHandle, error) {
	t.record("begin")
	if t.BeginTxFunc != nil {
		return t.BeginTxFunc(ctx, sess)
	}
	return &TestTx{Session: sess}, nil
}

func (t *TestTransport) CommitTx(ctx context.Context, tx TxHandle) error {
	t.record("commit")
	if t.CommitTxFunc != nil {
		return t.CommitTxFunc(ctx, tx)
	}
	return nil
}

func (t *TestTransport) RollbackTx(ctx context.Context, tx TxHandle) error {
	t.record("rollback")
	if t.RollbackTxFunc != nil {
		return t.RollbackTxFunc(ctx, tx)
	}
	return nil
}

// NewRow builds a Row from alternating key, value pairs. It panics on odd
// argument counts or non-string keys.
func NewRow(pairs ...any) Row {
	if len(pairs)%2 != 0 {
		panic("graphpool.NewRow: odd number of arguments")
	}
	row := Row{
		Keys:   make([]string, 0, len(pairs)/2),
		Values: make([]any, 0, len(pairs)/2),
	}
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("graphpool.NewRow: key at position %d is %T, not string", i, pairs[i]))
		}
		row.Keys = append(row.Keys, key)
		row.Values = append(row.Values, pairs[i+1])
	}
	return row
}

// RowsOf returns a RowStream over the given in-memory rows.
func RowsOf(rows ...Row) RowStream {
	return &sliceRows{rows: rows, idx: -1}
}

// RowsThenError returns a RowStream that yields the given rows and then fails
// with err, simulating a mid-stream transport failure.
func RowsThenError(err error, rows ...Row) RowStream {
	return &sliceRows{rows: rows, idx: -1, tailErr: err}
}

type sliceRows struct {
	rows    []Row
	idx     int
	tailErr error
	err     error
	closed  bool
}

func (r *sliceRows) Next(ctx context.Context) bool {
	if r.closed || r.err != nil {
		return false
	}
	r.idx++
	if r.idx >= len(r.rows) {
		r.err = r.tailErr
		return false
	}
	return true
}

func (r *sliceRows) Row() Row {
	if r.idx < 0 || r.idx >= len(r.rows) {
		return Row{}
	}
	return r.rows[r.idx]
}

func (r *sliceRows) Err() error {
	return r.err
}

func (r *sliceRows) Close(ctx context.Context) error {
	r.closed = true
	return nil
}
