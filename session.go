package graphpool

import (
	"context"

	"github.com/google/uuid"
)

// session wraps one physical server session. It executes one statement at a
// time and speaks the transaction-control primitives to the transport. It
// knows nothing about pooling; lease exclusivity is enforced by the pool, so
// no internal locking is needed.
type session struct {
	id        string
	transport TransportClient
	handle    SessionHandle

	// tx is the open transaction handle, or nil. At most one transaction is
	// open per session at any time.
	tx TxHandle
}

func newSession(ctx context.Context, transport TransportClient) (*session, error) {
	handle, err := transport.Open(ctx)
	if err != nil {
		return nil, classify(err, "graphpool: failed to open session")
	}
	return &session{
		id:        uuid.NewString(),
		transport: transport,
		handle:    handle,
	}, nil
}

// run executes one statement and eagerly materializes the result rows in
// server-returned order. A failure mid-stream discards the partial sequence;
// rows are never silently truncated. No local transaction state changes on
// query execution.
func (s *session) run(ctx context.Context, statement string, params map[string]any) ([]Row, error) {
	stream, err := s.transport.Run(ctx, s.handle, statement, params)
	if err != nil {
		return nil, classify(err, "graphpool: statement execution failed")
	}

	var rows []Row
	for stream.Next(ctx) {
		rows = append(rows, stream.Row())
	}
	err = stream.Err()
	if cerr := stream.Close(ctx); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, classify(err, "graphpool: result streaming failed")
	}
	return rows, nil
}

func (s *session) begin(ctx context.Context) error {
	if s.tx != nil {
		return NewError(KindAlreadyInTransaction, "graphpool: session already holds an open transaction")
	}
	tx, err := s.transport.BeginTx(ctx, s.handle)
	if err != nil {
		return classify(err, "graphpool: begin transaction failed")
	}
	s.tx = tx
	return nil
}

// commit finalizes the open transaction. The handle is cleared regardless of
// the transport outcome: a failed commit leaves no usable transaction behind.
func (s *session) commit(ctx context.Context) error {
	if s.tx == nil {
		return NewError(KindNoActiveTransaction, "graphpool: session has no open transaction")
	}
	tx := s.tx
	s.tx = nil
	if err := s.transport.CommitTx(ctx, tx); err != nil {
		return classify(err, "graphpool: commit failed")
	}
	return nil
}

// rollback finalizes the open transaction. Like commit, the handle is cleared
// regardless of the transport outcome.
func (s *session) rollback(ctx context.Context) error {
	if s.tx == nil {
		return NewError(KindNoActiveTransaction, "graphpool: session has no open transaction")
	}
	tx := s.tx
	s.tx = nil
	if err := s.transport.RollbackTx(ctx, tx); err != nil {
		return classify(err, "graphpool: rollback failed")
	}
	return nil
}

func (s *session) close(ctx context.Context) error {
	if err := s.transport.Close(ctx, s.handle); err != nil {
		return classify(err, "graphpool: session close failed")
	}
	return nil
}
