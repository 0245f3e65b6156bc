package datastore

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"
)

// DailyMetric is one row of daily_metrics, keyed by (date, project). A nil
// Project denotes the facility-wide aggregate for that date; the schema's
// unique index treats NULL as a distinct participating value (NULLS NOT
// DISTINCT), so exactly one facility-wide row can exist per date.
type DailyMetric struct {
	Date         string
	Project      *string
	Sessions     int
	Messages     int
	ToolCalls    int
	AgentSpawns  int
	TeamMessages int
	Tokens       map[string]int
}

func dailyMetricKey(date string, project *string) string {
	if project == nil {
		return date + "\x00"
	}
	return date + "\x00" + *project
}

// UpsertDailyMetrics fetches the existing (date, project) keys for the
// dates touched by rows, splits rows into inserts and updates, bulk-inserts
// the new ones, and fans updates out across updateConcurrency workers.
// Rows are blind replacements, never accumulating deltas, per spec.
func (c *Client) UpsertDailyMetrics(ctx context.Context, rows []DailyMetric) (inserted, updated int, err error) {
	if len(rows) == 0 {
		return 0, 0, nil
	}

	dateSet := make(map[string]bool, len(rows))
	for _, r := range rows {
		dateSet[r.Date] = true
	}
	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}

	existing := make(map[string]bool)
	qRows, err := c.pool.Query(ctx, `SELECT date, project FROM daily_metrics WHERE date = ANY($1)`, dates)
	if err != nil {
		return 0, 0, err
	}
	for qRows.Next() {
		var date string
		var project *string
		if err := qRows.Scan(&date, &project); err != nil {
			qRows.Close()
			return 0, 0, err
		}
		existing[dailyMetricKey(date, project)] = true
	}
	qRows.Close()
	if err := qRows.Err(); err != nil {
		return 0, 0, err
	}

	var toInsert, toUpdate []DailyMetric
	for _, r := range rows {
		if existing[dailyMetricKey(r.Date, r.Project)] {
			toUpdate = append(toUpdate, r)
		} else {
			toInsert = append(toInsert, r)
		}
	}

	if len(toInsert) > 0 {
		if n, err := c.bulkInsertDailyMetrics(ctx, toInsert); err != nil {
			logBatchFailure("daily_metrics insert", err)
		} else {
			inserted = n
		}
	}

	if len(toUpdate) > 0 {
		n := c.concurrentUpdateDailyMetrics(ctx, toUpdate)
		updated = n
	}

	return inserted, updated, nil
}

func (c *Client) bulkInsertDailyMetrics(ctx context.Context, rows []DailyMetric) (int, error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		tokens, _ := json.Marshal(r.Tokens)
		batch.Queue(`
			INSERT INTO daily_metrics
				(date, project, sessions, messages, tool_calls, agent_spawns, team_messages, tokens)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (date, project) DO NOTHING
		`, r.Date, r.Project, r.Sessions, r.Messages, r.ToolCalls, r.AgentSpawns, r.TeamMessages, tokens)
	}
	br := c.pool.SendBatch(ctx, batch)
	defer br.Close()
	count := 0
	for range rows {
		if _, err := br.Exec(); err == nil {
			count++
		}
	}
	return count, nil
}

// concurrentUpdateDailyMetrics issues one UPDATE per row across
// updateConcurrency workers, per §4.5's "chunks of 50 concurrent requests".
func (c *Client) concurrentUpdateDailyMetrics(ctx context.Context, rows []DailyMetric) int {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(updateConcurrency)

	succeeded := make([]bool, len(rows))
	for i, r := range rows {
		i, r := i, r
		g.Go(func() error {
			tokens, _ := json.Marshal(r.Tokens)
			_, err := c.pool.Exec(gctx, `
				UPDATE daily_metrics
				SET sessions = $3, messages = $4, tool_calls = $5, agent_spawns = $6,
					team_messages = $7, tokens = $8
				WHERE date = $1 AND project IS NOT DISTINCT FROM $2
			`, r.Date, r.Project, r.Sessions, r.Messages, r.ToolCalls, r.AgentSpawns, r.TeamMessages, tokens)
			if err != nil {
				logBatchFailure("daily_metrics update", err)
				return nil
			}
			succeeded[i] = true
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, ok := range succeeded {
		if ok {
			n++
		}
	}
	return n
}

// DeleteProjectDailyMetrics removes every per-project (non-NULL) daily row
// for project, run before a backfill to prevent stale inflated rows from
// surviving recomputation.
func (c *Client) DeleteProjectDailyMetrics(ctx context.Context, project string) error {
	_, err := c.pool.Exec(ctx, `DELETE FROM daily_metrics WHERE project = $1`, project)
	return err
}
