// Package datastore performs idempotent batched upserts of events, daily
// aggregates, per-project telemetry, and facility state against a
// Postgres-compatible remote relational datastore.
package datastore

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// eventBatchSize bounds the largest single insert batch, per spec §4.5.
const eventBatchSize = 500

// updateConcurrency is the width of concurrent update requests when
// splitting daily-metric upserts into insert vs update chunks.
const updateConcurrency = 50

// retentionHorizon is how long events are kept before pruning.
const retentionHorizon = 14 * 24 * time.Hour

// Client wraps a connection pool to the remote datastore and implements
// all idempotent sync operations the exporter needs.
type Client struct {
	pool *pgxpool.Pool
}

// New connects to dsn and returns a ready Client.
func New(ctx context.Context, dsn string) (*Client, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Client{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() {
	c.pool.Close()
}

// Ping verifies connectivity. The open command's datastore health check
// reads the facility row instead of calling Ping.
func (c *Client) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func logBatchFailure(op string, err error) {
	log.Printf("datastore: %s batch failed: %v", op, err)
}
