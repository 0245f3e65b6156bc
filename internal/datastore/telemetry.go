package datastore

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5"
)

// ProjectAggregate carries the aggregate-loop-owned columns of one
// project_telemetry row: lifetime and today counters. Agent columns are
// written separately by UpdateAgentState, per the ownership split in §4.8.
type ProjectAggregate struct {
	Project          string
	LifetimeSessions int64
	LifetimeMessages int64
	LifetimeTools    int64
	LifetimeTokens   int64
	TodaySessions    int64
	TodayMessages    int64
	TodayTools       int64
	TodayTokens      int64
}

// UpsertProjectAggregates writes the aggregate columns of project_telemetry
// via a single multi-row upsert on conflict key project. On failure it
// falls back to per-row upserts, logging which rows could not persist, and
// finishes with a read-back consistency probe over the affected slugs.
func (c *Client) UpsertProjectAggregates(ctx context.Context, rows []ProjectAggregate) {
	if len(rows) == 0 {
		return
	}

	if err := c.bulkUpsertAggregates(ctx, rows); err != nil {
		logBatchFailure("project_telemetry bulk upsert", err)
		for _, r := range rows {
			if err := c.upsertOneAggregate(ctx, r); err != nil {
				log.Printf("datastore: project_telemetry upsert failed for %s: %v", r.Project, err)
			}
		}
	}

	c.probeAggregates(ctx, rows)
}

func (c *Client) bulkUpsertAggregates(ctx context.Context, rows []ProjectAggregate) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		queueAggregateUpsert(batch, r)
	}
	br := c.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range rows {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) upsertOneAggregate(ctx context.Context, r ProjectAggregate) error {
	batch := &pgx.Batch{}
	queueAggregateUpsert(batch, r)
	br := c.pool.SendBatch(ctx, batch)
	defer br.Close()
	_, err := br.Exec()
	return err
}

func queueAggregateUpsert(batch *pgx.Batch, r ProjectAggregate) {
	batch.Queue(`
		INSERT INTO project_telemetry
			(project, lifetime_sessions, lifetime_messages, lifetime_tool_calls, lifetime_tokens,
			 today_sessions, today_messages, today_tool_calls, today_tokens)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (project) DO UPDATE SET
			lifetime_sessions = $2, lifetime_messages = $3, lifetime_tool_calls = $4, lifetime_tokens = $5,
			today_sessions = $6, today_messages = $7, today_tool_calls = $8, today_tokens = $9
	`, r.Project, r.LifetimeSessions, r.LifetimeMessages, r.LifetimeTools, r.LifetimeTokens,
		r.TodaySessions, r.TodayMessages, r.TodayTools, r.TodayTokens)
}

// probeAggregates re-reads the affected slugs after an upsert and logs any
// mismatch against what was written. This is a consistency probe, not an
// error path: mismatches are logged, never returned.
func (c *Client) probeAggregates(ctx context.Context, written []ProjectAggregate) {
	projects := make([]string, len(written))
	want := make(map[string]ProjectAggregate, len(written))
	for i, r := range written {
		projects[i] = r.Project
		want[r.Project] = r
	}

	rows, err := c.pool.Query(ctx, `
		SELECT project, lifetime_sessions, lifetime_messages, lifetime_tool_calls, lifetime_tokens,
			today_sessions, today_messages, today_tool_calls, today_tokens
		FROM project_telemetry WHERE project = ANY($1)
	`, projects)
	if err != nil {
		log.Printf("datastore: project_telemetry read-back probe failed: %v", err)
		return
	}
	defer rows.Close()

	seen := make(map[string]bool, len(written))
	for rows.Next() {
		var got ProjectAggregate
		if err := rows.Scan(&got.Project, &got.LifetimeSessions, &got.LifetimeMessages, &got.LifetimeTools,
			&got.LifetimeTokens, &got.TodaySessions, &got.TodayMessages, &got.TodayTools, &got.TodayTokens); err != nil {
			continue
		}
		seen[got.Project] = true
		if w := want[got.Project]; w != got {
			log.Printf("datastore: project_telemetry read-back mismatch for %s: wrote %+v, read %+v", got.Project, w, got)
		}
	}
	for project := range want {
		if !seen[project] {
			log.Printf("datastore: project_telemetry read-back probe found no row for %s", project)
		}
	}
}

// ListProjectAggregates reads every project_telemetry row's aggregate
// columns, used by the daemon to seed in-memory caches on normal startup
// (§4.8's "daemon (normal)" mode).
func (c *Client) ListProjectAggregates(ctx context.Context) ([]ProjectAggregate, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT project, lifetime_sessions, lifetime_messages, lifetime_tool_calls, lifetime_tokens,
			today_sessions, today_messages, today_tool_calls, today_tokens
		FROM project_telemetry
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProjectAggregate
	for rows.Next() {
		var r ProjectAggregate
		if err := rows.Scan(&r.Project, &r.LifetimeSessions, &r.LifetimeMessages, &r.LifetimeTools,
			&r.LifetimeTokens, &r.TodaySessions, &r.TodayMessages, &r.TodayTools, &r.TodayTokens); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AgentState carries the agent-loop-owned columns of one project_telemetry
// row.
type AgentState struct {
	Project      string
	ActiveAgents int
	AgentCount   int
}

// UpdateAgentState writes only the agent columns on per-project telemetry
// rows, per the watcher loop's column ownership. Individual row failures
// are logged but do not block the remaining rows.
func (c *Client) UpdateAgentState(ctx context.Context, rows []AgentState) {
	for _, r := range rows {
		_, err := c.pool.Exec(ctx, `
			UPDATE project_telemetry SET active_agents = $2, agent_count = $3 WHERE project = $1
		`, r.Project, r.ActiveAgents, r.AgentCount)
		if err != nil {
			log.Printf("datastore: agent-state update failed for %s: %v", r.Project, err)
		}
	}
}
