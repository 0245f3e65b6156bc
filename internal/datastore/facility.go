package datastore

import (
	"context"
	"time"
)

// Facility statuses, per §6's facility_status.status enum.
const (
	StatusActive  = "active"
	StatusDormant = "dormant"
)

// FacilityRow is the singleton facility_status row (id = 1).
type FacilityRow struct {
	Status           string
	ActiveAgents     int
	AgentCount       int
	ActiveProjects   []string
	LifetimeSessions int64
	LifetimeMessages int64
	LifetimeTools    int64
	LifetimeTokens   int64
	TodaySessions    int64
	TodayMessages    int64
	TodayTools       int64
	TodayTokens      int64
	UpdatedAt        time.Time
}

// ReadFacility reads the singleton facility_status row, used by the open
// command's datastore health check and telemetry-flowing probe, and by
// the daemon's gap backfill.
func (c *Client) ReadFacility(ctx context.Context) (*FacilityRow, error) {
	var f FacilityRow
	err := c.pool.QueryRow(ctx, `
		SELECT status, active_agents, agent_count, active_projects,
			lifetime_sessions, lifetime_messages, lifetime_tool_calls, lifetime_tokens,
			today_sessions, today_messages, today_tool_calls, today_tokens, updated_at
		FROM facility_status WHERE id = 1
	`).Scan(&f.Status, &f.ActiveAgents, &f.AgentCount, &f.ActiveProjects,
		&f.LifetimeSessions, &f.LifetimeMessages, &f.LifetimeTools, &f.LifetimeTokens,
		&f.TodaySessions, &f.TodayMessages, &f.TodayTools, &f.TodayTokens, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// SetStatus writes the open/closed flag. This is the only write path for
// the status column; it is only ever called by the open/close commands and
// the daemon's auto-close latch.
func (c *Client) SetStatus(ctx context.Context, status string) error {
	_, err := c.pool.Exec(ctx, `UPDATE facility_status SET status = $1 WHERE id = 1`, status)
	return err
}

// FacilityAggregate is the aggregate-loop-owned column set of the facility
// row. Writing it bumps updated_at, which is what the open command's
// telemetry-flowing preflight step and the daemon's gap-backfill threshold
// observe.
type FacilityAggregate struct {
	LifetimeSessions int64
	LifetimeMessages int64
	LifetimeTools    int64
	LifetimeTokens   int64
	TodaySessions    int64
	TodayMessages    int64
	TodayTools       int64
	TodayTokens      int64
}

// UpdateFacilityAggregates writes only the aggregate columns, never status
// or the agent columns.
func (c *Client) UpdateFacilityAggregates(ctx context.Context, a FacilityAggregate) error {
	_, err := c.pool.Exec(ctx, `
		UPDATE facility_status SET
			lifetime_sessions = $1, lifetime_messages = $2, lifetime_tool_calls = $3, lifetime_tokens = $4,
			today_sessions = $5, today_messages = $6, today_tool_calls = $7, today_tokens = $8,
			updated_at = now()
		WHERE id = 1
	`, a.LifetimeSessions, a.LifetimeMessages, a.LifetimeTools, a.LifetimeTokens,
		a.TodaySessions, a.TodayMessages, a.TodayTools, a.TodayTokens)
	return err
}

// UpdateFacilityAgentState writes only the agent columns and the
// open-projects list, never status or the aggregate columns. It
// deliberately does not bump updated_at: the preflight's telemetry-flowing
// check observes aggregate-loop freshness specifically.
func (c *Client) UpdateFacilityAgentState(ctx context.Context, activeAgents, agentCount int, activeProjects []string) error {
	_, err := c.pool.Exec(ctx, `
		UPDATE facility_status SET active_agents = $1, agent_count = $2, active_projects = $3
		WHERE id = 1
	`, activeAgents, agentCount, activeProjects)
	return err
}
