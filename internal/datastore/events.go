package datastore

import (
	"context"
	"errors"
	"time"

	"github.com/facility-ops/exporter/internal/eventlog"
	"github.com/jackc/pgx/v5"
)

var errBatchPartialFailure = errors.New("one or more rows in batch failed")

// Event is one row of the events table.
type Event struct {
	Project   string
	EventType string
	EventText string
	Timestamp time.Time
}

// FromEntry converts a parsed log entry (already attributed to a
// project slug by the caller) into an Event row.
func FromEntry(slug string, e eventlog.Entry) Event {
	return Event{
		Project:   slug,
		EventType: string(e.EventType),
		EventText: e.Text,
		Timestamp: e.Timestamp,
	}
}

// UpsertEvents inserts events in batches of eventBatchSize, using an
// upsert with conflict target (project, event_type, event_text,
// timestamp) that skips existing rows. A batch that fails is counted
// but does not abort the remaining batches.
func (c *Client) UpsertEvents(ctx context.Context, events []Event) (inserted int, failedBatches int) {
	for start := 0; start < len(events); start += eventBatchSize {
		end := start + eventBatchSize
		if end > len(events) {
			end = len(events)
		}
		chunk := events[start:end]

		batch := &pgx.Batch{}
		for _, e := range chunk {
			batch.Queue(`
				INSERT INTO events (project, event_type, event_text, timestamp)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (project, event_type, event_text, timestamp) DO NOTHING
			`, e.Project, e.EventType, e.EventText, e.Timestamp)
		}

		br := c.pool.SendBatch(ctx, batch)
		ok := true
		for range chunk {
			tag, err := br.Exec()
			if err != nil {
				ok = false
				continue
			}
			inserted += int(tag.RowsAffected())
		}
		if err := br.Close(); err != nil {
			ok = false
		}
		if !ok {
			logBatchFailure("events upsert", errBatchPartialFailure)
			failedBatches++
		}
	}
	return inserted, failedBatches
}

// PruneEvents deletes every event older than the retention horizon.
// Called once per UTC day by the aggregate loop.
func (c *Client) PruneEvents(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-retentionHorizon)
	_, err := c.pool.Exec(ctx, `DELETE FROM events WHERE timestamp < $1`, cutoff)
	return err
}
