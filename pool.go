package graphpool

import (
	"container/list"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Pool owns a bounded set of sessions and hands them out as exclusive leases.
// Sessions are created lazily up to Capacity; callers beyond capacity wait in
// strict FIFO order. All idle/leased/waiter bookkeeping is a single critical
// section under one mutex, and no network I/O happens while it is held.
type Pool struct {
	transport TransportClient
	cfg       Config
	log       *slog.Logger
	shutdown  func()

	mu      sync.Mutex
	idle    []*session
	leased  map[*session]struct{}
	waiters *list.List // of *waiter, FIFO

	// size counts idle + leased sessions plus capacity slots reserved for
	// in-flight session creation. Invariant: size <= cfg.Capacity.
	size   int
	closed bool
}

// handoff is what a releasing goroutine passes to the head waiter. Exactly
// one field is meaningful: a session leased directly to the waiter, a reserved
// capacity slot (both nil) telling the waiter to create its own session, or a
// terminal error.
type handoff struct {
	sess *session
	err  error
}

type waiter struct {
	ch chan handoff
}

// Acquire returns an exclusive lease on a session. It reuses an idle session
// when one exists, creates a new one while under capacity, and otherwise
// waits FIFO behind earlier acquirers. The wait is bounded by the Acquire
// context and by Config.AcquireTimeout, whichever is tighter; expiry returns
// a KindTimeout error, caller cancellation returns the context error.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, NewError(KindPoolClosed, "graphpool: pool is closed")
	}
	if n := len(p.idle); n > 0 {
		s := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.leased[s] = struct{}{}
		p.mu.Unlock()
		return p.newConn(s), nil
	}
	if p.size < p.cfg.Capacity {
		p.size++
		p.mu.Unlock()
		return p.createLeased(ctx)
	}

	w := &waiter{ch: make(chan handoff, 1)}
	elem := p.waiters.PushBack(w)
	p.mu.Unlock()

	select {
	case h := <-w.ch:
		if h.err != nil {
			return nil, h.err
		}
		if h.sess != nil {
			return p.newConn(h.sess), nil
		}
		// A capacity slot was reserved for this waiter.
		return p.createLeased(ctx)

	case <-ctx.Done():
		var stranded *session
		p.mu.Lock()
		select {
		case h := <-w.ch:
			// The wake-up raced our cancellation: undo it without losing
			// the session or the capacity slot. If the pool was closed in
			// the same window the session must be torn down, not recycled.
			switch {
			case h.sess != nil:
				delete(p.leased, h.sess)
				if p.closed {
					p.size--
					stranded = h.sess
				} else {
					p.recycleLocked(h.sess)
				}
			case h.err == nil:
				p.size--
				p.grantSlotLocked()
			}
		default:
			p.waiters.Remove(elem)
		}
		p.mu.Unlock()
		if stranded != nil {
			p.closeSession(stranded)
		}

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, WrapError(KindTimeout, "graphpool: timed out waiting for a free session", ctx.Err())
		}
		return nil, ctx.Err()
	}
}

// createLeased creates a session for a capacity slot the caller has already
// reserved and leases it out. On failure the slot is returned and passed to
// the head waiter, if any.
func (p *Pool) createLeased(ctx context.Context) (*Conn, error) {
	s, err := p.createSession(ctx)

	p.mu.Lock()
	if err != nil {
		p.size--
		p.grantSlotLocked()
		p.mu.Unlock()
		return nil, err
	}
	if p.closed {
		p.size--
		p.mu.Unlock()
		p.closeSession(s)
		return nil, NewError(KindPoolClosed, "graphpool: pool is closed")
	}
	p.leased[s] = struct{}{}
	p.mu.Unlock()

	p.log.Debug("session created", "session_id", s.id)
	return p.newConn(s), nil
}

// createSession opens one session within ConnectTimeout, consulting
// RetryPolicy between failed attempts.
func (p *Pool) createSession(ctx context.Context) (*session, error) {
	for attempt := 0; ; attempt++ {
		connectCtx, cancel := context.WithTimeout(ctx, p.cfg.ConnectTimeout)
		s, err := newSession(connectCtx, p.transport)
		cancel()
		if err == nil {
			return s, nil
		}
		if p.cfg.RetryPolicy == nil {
			return nil, err
		}
		backoff, retry := p.cfg.RetryPolicy(attempt, err)
		if !retry {
			return nil, err
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, WrapError(KindTimeout, "graphpool: timed out creating a session", err)
			}
			return nil, ctx.Err()
		}
	}
}

// release takes a session back from a finished lease. Discarded sessions free
// their capacity slot (granted to the head waiter so it can create a
// replacement); clean sessions are handed to the head waiter directly or
// returned to idle.
//
// Releasing a session this pool did not lease is a programming-error fault.
func (p *Pool) release(s *session, discard bool) {
	p.mu.Lock()
	if _, ok := p.leased[s]; !ok {
		p.mu.Unlock()
		panic("graphpool: release of a session this pool did not lease")
	}
	delete(p.leased, s)

	if p.closed {
		p.size--
		p.mu.Unlock()
		p.closeSession(s)
		return
	}
	if discard {
		p.size--
		p.grantSlotLocked()
		p.mu.Unlock()
		p.log.Warn("session discarded", "session_id", s.id)
		p.closeSession(s)
		return
	}
	p.recycleLocked(s)
	p.mu.Unlock()
}

// recycleLocked puts a clean session back into circulation: leased directly to
// the head waiter when one exists (no re-scan), idle otherwise.
func (p *Pool) recycleLocked(s *session) {
	if front := p.waiters.Front(); front != nil {
		w := p.waiters.Remove(front).(*waiter)
		p.leased[s] = struct{}{}
		w.ch <- handoff{sess: s}
		return
	}
	p.idle = append(p.idle, s)
}

// grantSlotLocked reserves a freed capacity slot for the head waiter so a
// replacement session is created on demand rather than pre-allocated.
func (p *Pool) grantSlotLocked() {
	if p.closed || p.size >= p.cfg.Capacity {
		return
	}
	front := p.waiters.Front()
	if front == nil {
		return
	}
	w := p.waiters.Remove(front).(*waiter)
	p.size++
	w.ch <- handoff{}
}

// Close shuts the pool down: pending acquirers fail with KindPoolClosed, idle
// sessions are closed now, and leased sessions are closed as their leases are
// released. No Acquire succeeds afterward. Close is idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.size -= len(idle)
	for e := p.waiters.Front(); e != nil; e = e.Next() {
		e.Value.(*waiter).ch <- handoff{err: NewError(KindPoolClosed, "graphpool: pool is closed")}
	}
	p.waiters.Init()
	p.mu.Unlock()

	for _, s := range idle {
		p.closeSession(s)
	}
	if p.shutdown != nil {
		p.shutdown()
	}
	p.log.Debug("pool closed")
}

// Ping verifies that a session can be leased, suitable for readiness probes.
func (p *Pool) Ping(ctx context.Context) error {
	c, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	c.Release(nil)
	return nil
}

// Stat is a snapshot of pool occupancy.
type Stat struct {
	// IdleSessions are open sessions not currently leased.
	IdleSessions int

	// LeasedSessions are sessions checked out to callers.
	LeasedSessions int

	// TotalSessions counts idle and leased sessions plus capacity slots
	// reserved for in-flight session creation. Never exceeds Capacity.
	TotalSessions int

	// Waiting is the number of acquirers queued for a session.
	Waiting int

	// Capacity is the configured session limit.
	Capacity int
}

// Stat returns a snapshot of pool statistics.
func (p *Pool) Stat() Stat {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stat{
		IdleSessions:   len(p.idle),
		LeasedSessions: len(p.leased),
		TotalSessions:  p.size,
		Waiting:        p.waiters.Len(),
		Capacity:       p.cfg.Capacity,
	}
}

func (p *Pool) newConn(s *session) *Conn {
	return &Conn{sess: s, pool: p, state: stateIdle}
}

// closeSession tears a session down detached from any caller context.
func (p *Pool) closeSession(s *session) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.CloseTimeout)
	defer cancel()
	if err := s.close(ctx); err != nil {
		p.log.Debug("session close failed", "session_id", s.id, "error", err)
	}
}
