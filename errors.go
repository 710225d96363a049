package graphpool

import "errors"

// Kind classifies an Error and drives the pool's recycle-vs-discard decision
// on release: only Transport-class failures (and explicit poisoning) cause a
// session to be discarded.
type Kind int

const (
	// KindUnknown is reported by KindOf for errors that did not originate in
	// this package. The pool treats unclassified failures as Transport-class.
	KindUnknown Kind = iota

	// KindTransport is a network or protocol failure. Not locally
	// recoverable; it poisons the transaction state of the session it
	// occurred on.
	KindTransport

	// KindQuery is a server-reported statement error. The session remains
	// usable and its transaction state is unaffected.
	KindQuery

	// KindAlreadyInTransaction rejects Begin on a connection that already
	// holds an open transaction. No transport call is made.
	KindAlreadyInTransaction

	// KindNoActiveTransaction rejects Commit or Rollback on a connection with
	// no open transaction. No transport call is made.
	KindNoActiveTransaction

	// KindTimeout means the pool could not produce a session before the
	// acquire deadline expired.
	KindTimeout

	// KindPoolClosed rejects operations attempted after Pool.Close.
	KindPoolClosed
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindQuery:
		return "query"
	case KindAlreadyInTransaction:
		return "already in transaction"
	case KindNoActiveTransaction:
		return "no active transaction"
	case KindTimeout:
		return "timeout"
	case KindPoolClosed:
		return "pool closed"
	default:
		return "unknown"
	}
}

// Error is the error type returned by every operation in this package. Its
// message is safe for default production logging; the wrapped cause may still
// contain sensitive detail (statement text, server addresses) and is only
// reachable through Unwrap.
type Error struct {
	kind  Kind
	msg   string
	cause error
}

// NewError creates a classified Error with no underlying cause.
func NewError(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// WrapError creates a classified Error wrapping cause. TransportClient
// implementations use it to tag server-reported statement errors as KindQuery
// and everything else as KindTransport.
func WrapError(kind Kind, msg string, cause error) *Error {
	return &Error{kind: kind, msg: msg, cause: cause}
}

func (e *Error) Error() string { return e.msg }
func (e *Error) Unwrap() error { return e.cause }

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.kind }

// KindOf returns the classification of err, unwrapping as needed. It returns
// KindUnknown for nil and for errors that do not carry a classification.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

// IsTransport reports whether err is a Transport-class failure.
func IsTransport(err error) bool { return KindOf(err) == KindTransport }

// IsQuery reports whether err is a server-reported statement error.
func IsQuery(err error) bool { return KindOf(err) == KindQuery }

// IsTimeout reports whether err is an acquire-deadline expiry.
func IsTimeout(err error) bool { return KindOf(err) == KindTimeout }

// IsPoolClosed reports whether err was caused by operating on a closed pool.
func IsPoolClosed(err error) bool { return KindOf(err) == KindPoolClosed }

// classify tags err for callers inside this package. Errors produced by a
// TransportClient that are not already classified are treated as
// Transport-class: an unrecognized failure on the wire cannot be assumed
// locally recoverable.
func classify(err error, msg string) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{kind: KindTransport, msg: msg, cause: err}
}
