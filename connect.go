package graphpool

import (
	"container/list"
	"context"
	"errors"
	"log/slog"
)

// Option configures New for advanced use cases.
type Option func(*poolOptions)

type poolOptions struct {
	logger   *slog.Logger
	shutdown func()
}

// WithLogger routes the pool's operational logging (session creation,
// discard, shutdown) to l instead of slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *poolOptions) {
		o.logger = l
	}
}

// WithShutdownHook registers fn to run once at the end of Pool.Close, after
// idle sessions are closed. Transport adapters use it to tear down resources
// they own, such as the underlying driver.
func WithShutdownHook(fn func()) Option {
	return func(o *poolOptions) {
		o.shutdown = fn
	}
}

// New creates a session pool over the given transport. It verifies
// connectivity by opening one probe session, which is kept warm in the idle
// set rather than thrown away; the remaining sessions are created lazily on
// demand up to Config.Capacity.
func New(ctx context.Context, transport TransportClient, cfg Config, opts ...Option) (*Pool, error) {
	if transport == nil {
		return nil, errors.New("graphpool: a TransportClient is required")
	}
	cfg = cfg.withDefaults()

	var o poolOptions
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	p := &Pool{
		transport: transport,
		cfg:       cfg,
		log:       o.logger,
		shutdown:  o.shutdown,
		leased:    make(map[*session]struct{}),
		waiters:   list.New(),
	}

	probeCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	probe, err := newSession(probeCtx, transport)
	if err != nil {
		// SECURITY: the cause may carry server addresses or credential
		// detail from the transport; keep the outer error safe to log.
		return nil, WrapError(KindTransport, "graphpool: initial session open failed (is the database reachable?)", err)
	}
	p.idle = append(p.idle, probe)
	p.size = 1

	p.log.Debug("pool ready", "capacity", cfg.Capacity, "probe_session_id", probe.id)
	return p, nil
}
