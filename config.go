package graphpool

import "time"

// RetryPolicy decides whether a failed session-creation attempt should be
// retried. attempt counts from 0. Returning retry=false propagates err to the
// caller of Acquire.
//
// The policy applies only to session creation: transport failures on the
// query path always poison the session immediately and are never retried
// here.
type RetryPolicy func(attempt int, err error) (backoff time.Duration, retry bool)

// Config controls the behavior of the session pool.
type Config struct {
	// Capacity bounds |idle| + |leased| sessions. Defaults to 10.
	Capacity int

	// AcquireTimeout bounds how long Acquire waits for a free session.
	// Defaults to 30s. A tighter deadline on the Acquire context still
	// applies.
	AcquireTimeout time.Duration

	// ConnectTimeout bounds the creation of one session. Defaults to 10s.
	ConnectTimeout time.Duration

	// CloseTimeout bounds session teardown and release-path rollbacks, which
	// run detached from any caller context. Defaults to 5s.
	CloseTimeout time.Duration

	// RetryPolicy, when set, retries failed session creation during Acquire.
	// Defaults to nil: no retries.
	RetryPolicy RetryPolicy
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = 10
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 30 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = 5 * time.Second
	}
	return c
}
