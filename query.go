package graphpool

import "context"

// RowMapper converts one result row into a domain value.
type RowMapper[T any] func(Row) (T, error)

// QuerySpec describes one statement: its text, parameters, and how to map
// each result row. A spec is a stateless value consumed per call; there is no
// implicit retry.
type QuerySpec[T any] struct {
	Statement string
	Params    map[string]any
	Map       RowMapper[T]
}

// Query executes spec on the connection and returns the mapped results in
// server-returned order, eagerly materialized. A mapper failure is reported
// as a KindQuery error and does not affect the connection's transaction
// state.
//
// Query is a free function because Go does not allow type parameters on
// methods; it delegates to Connection.Run.
func Query[T any](ctx context.Context, c Connection, spec QuerySpec[T]) ([]T, error) {
	if spec.Map == nil {
		return nil, NewError(KindQuery, "graphpool: QuerySpec.Map is required")
	}
	rows, err := c.Run(ctx, spec.Statement, spec.Params)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		v, err := spec.Map(row)
		if err != nil {
			return nil, WrapError(KindQuery, "graphpool: row mapping failed", err)
		}
		out = append(out, v)
	}
	return out, nil
}
