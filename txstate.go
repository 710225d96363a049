package graphpool

// txState tracks the transactional status of one leased session. It is
// consulted before every connection operation so that protocol violations
// fail fast without a transport round-trip, and it records poisoning when a
// transport failure leaves the server-side transaction status unknowable.
type txState int

const (
	// stateIdle: no open transaction; statements run auto-committed.
	stateIdle txState = iota

	// stateInTx: an explicit transaction is open.
	stateInTx

	// statePoisoned: the last transport operation failed ambiguously. The
	// session's transactional status is no longer trustworthy; the only
	// remaining operation is discard. Terminal.
	statePoisoned
)

func (s txState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateInTx:
		return "in transaction"
	case statePoisoned:
		return "poisoned"
	default:
		return "invalid"
	}
}

// errPoisoned is returned for any operation attempted on a poisoned
// connection. It is Transport-class: the underlying cause was a transport
// failure and the caller's only recourse is Release.
func errPoisoned() *Error {
	return NewError(KindTransport, "graphpool: session poisoned by an earlier transport failure; release the connection")
}

// checkRun rejects statement execution in states where no transport call may
// be made.
func (s txState) checkRun() *Error {
	if s == statePoisoned {
		return errPoisoned()
	}
	return nil
}

// checkBegin rejects Begin unless the state is idle.
func (s txState) checkBegin() *Error {
	switch s {
	case statePoisoned:
		return errPoisoned()
	case stateInTx:
		return NewError(KindAlreadyInTransaction, "graphpool: transaction already open on this connection")
	default:
		return nil
	}
}

// checkFinalize rejects Commit/Rollback unless a transaction is open.
func (s txState) checkFinalize() *Error {
	switch s {
	case statePoisoned:
		return errPoisoned()
	case stateIdle:
		return NewError(KindNoActiveTransaction, "graphpool: no open transaction on this connection")
	default:
		return nil
	}
}
