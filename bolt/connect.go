package bolt

import (
	"context"
	"errors"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/graphpool-go/graphpool"
)

// Config identifies the Neo4j server and database to connect to.
type Config struct {
	// URI is the driver target, e.g. "neo4j://host:7687" or
	// "neo4j+s://host" for TLS. Required.
	URI string

	// Username and Password authenticate via basic auth.
	Username string
	Password string

	// Database selects the target database. Empty means the server default.
	Database string
}

// Connect builds a driver for cfg, verifies connectivity, and returns a
// graphpool.Pool running over it. The driver's own connection pool is sized
// to the graphpool capacity so that every leased session can hold a
// connection concurrently.
func Connect(ctx context.Context, cfg Config, poolCfg graphpool.Config, opts ...graphpool.Option) (*graphpool.Pool, error) {
	if cfg.URI == "" {
		return nil, errors.New("bolt: URI is required")
	}

	capacity := poolCfg.Capacity
	if capacity <= 0 {
		capacity = 10
	}

	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *neo4j.Config) {
			c.MaxConnectionPoolSize = capacity
		},
	)
	if err != nil {
		// SECURITY: driver errors can echo the URI, which may carry
		// credentials; keep the outer error safe to log.
		return nil, graphpool.WrapError(graphpool.KindTransport, "bolt: invalid driver configuration", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, graphpool.WrapError(graphpool.KindTransport, "bolt: connectivity verification failed", err)
	}

	closeDriver := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = driver.Close(closeCtx)
	}
	opts = append([]graphpool.Option{graphpool.WithShutdownHook(closeDriver)}, opts...)

	pool, err := graphpool.New(ctx, NewTransport(driver, cfg.Database), poolCfg, opts...)
	if err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return pool, nil
}
