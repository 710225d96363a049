// Package graphpool provides a bounded, transaction-aware session pool for
// graph databases reached through an opaque transport.
//
// Invariants:
//
//   - I1: a session is leased to at most one Conn at a time.
//   - I2: idle plus leased sessions never exceed the configured capacity.
//   - I3: waiters are served strictly first-in first-out.
//   - I4: a poisoned session is discarded, never recycled.
//   - I5: caller protocol violations fail fast with no transport round-trip.
//
// The package never parses the wire protocol. It drives a TransportClient —
// open/close sessions, run statements, begin/commit/rollback transactions —
// and manages lease lifecycles, transaction legality, and partial-failure
// recovery on top of it. The bolt subpackage adapts the Neo4j Bolt driver to
// the TransportClient contract.
package graphpool
