// Package bolt adapts the Neo4j Bolt driver to the graphpool.TransportClient
// contract. One transport session maps to one driver session; explicit
// transactions use the driver's explicit transaction API so that commit and
// rollback are driven by the pool's state machine, not by the driver's
// managed-transaction retries.
package bolt

import (
	"context"
	"errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/graphpool-go/graphpool"
)

// Transport is a graphpool.TransportClient backed by a Neo4j driver.
type Transport struct {
	driver   neo4j.DriverWithContext
	database string
}

var _ graphpool.TransportClient = (*Transport)(nil)

// NewTransport wraps an already-constructed driver. database selects the
// target database; empty means the server default.
func NewTransport(driver neo4j.DriverWithContext, database string) *Transport {
	return &Transport{driver: driver, database: database}
}

// sessionHandle tracks the driver session and its open explicit transaction,
// if any, so Run can route statements through the transaction.
type sessionHandle struct {
	sess neo4j.SessionWithContext
	tx   neo4j.ExplicitTransaction
}

type txHandle struct {
	owner *sessionHandle
	tx    neo4j.ExplicitTransaction
}

func (t *Transport) Open(ctx context.Context) (graphpool.SessionHandle, error) {
	sess := t.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: t.database})
	return &sessionHandle{sess: sess}, nil
}

func (t *Transport) Close(ctx context.Context, sess graphpool.SessionHandle) error {
	h := sess.(*sessionHandle)
	if err := h.sess.Close(ctx); err != nil {
		return classify(err, "bolt: session close failed")
	}
	return nil
}

func (t *Transport) Run(ctx context.Context, sess graphpool.SessionHandle, statement string, params map[string]any) (graphpool.RowStream, error) {
	h := sess.(*sessionHandle)

	var (
		res neo4j.ResultWithContext
		err error
	)
	if h.tx != nil {
		res, err = h.tx.Run(ctx, statement, params)
	} else {
		res, err = h.sess.Run(ctx, statement, params)
	}
	if err != nil {
		return nil, classify(err, "bolt: statement run failed")
	}
	return &resultStream{res: res}, nil
}

func (t *Transport) BeginTx(ctx context.Context, sess graphpool.SessionHandle) (graphpool.TxHandle, error) {
	h := sess.(*sessionHandle)
	tx, err := h.sess.BeginTransaction(ctx)
	if err != nil {
		return nil, classify(err, "bolt: begin transaction failed")
	}
	h.tx = tx
	return &txHandle{owner: h, tx: tx}, nil
}

func (t *Transport) CommitTx(ctx context.Context, tx graphpool.TxHandle) error {
	th := tx.(*txHandle)
	th.owner.tx = nil
	if err := th.tx.Commit(ctx); err != nil {
		return classify(err, "bolt: commit failed")
	}
	return nil
}

func (t *Transport) RollbackTx(ctx context.Context, tx graphpool.TxHandle) error {
	th := tx.(*txHandle)
	th.owner.tx = nil
	if err := th.tx.Rollback(ctx); err != nil {
		return classify(err, "bolt: rollback failed")
	}
	return nil
}

// resultStream adapts the driver's result cursor to graphpool.RowStream.
type resultStream struct {
	res neo4j.ResultWithContext
	row graphpool.Row
}

func (r *resultStream) Next(ctx context.Context) bool {
	if !r.res.Next(ctx) {
		return false
	}
	rec := r.res.Record()
	r.row = graphpool.Row{Keys: rec.Keys, Values: rec.Values}
	return true
}

func (r *resultStream) Row() graphpool.Row {
	return r.row
}

func (r *resultStream) Err() error {
	if err := r.res.Err(); err != nil {
		return classify(err, "bolt: result streaming failed")
	}
	return nil
}

func (r *resultStream) Close(ctx context.Context) error {
	if _, err := r.res.Consume(ctx); err != nil {
		return classify(err, "bolt: result consume failed")
	}
	return nil
}

// classify tags driver errors for the pool's recycle-vs-discard decision.
// Server-reported errors (Neo4jError) mean the session itself is fine; every
// other failure is a connectivity or protocol problem.
func classify(err error, msg string) *graphpool.Error {
	var serverErr *db.Neo4jError
	if errors.As(err, &serverErr) {
		return graphpool.WrapError(graphpool.KindQuery, msg, err)
	}
	return graphpool.WrapError(graphpool.KindTransport, msg, err)
}
