package daemon

import (
	"context"
	"log"
	"time"

	"github.com/facility-ops/exporter/internal/datastore"
	"github.com/facility-ops/exporter/internal/eventlog"
	"github.com/facility-ops/exporter/internal/sessionusage"
	"github.com/facility-ops/exporter/internal/slugs"
)

func logErr(op string, err error) {
	log.Printf("daemon: %s: %v", op, err)
}

// syncDailyMetricsFromStatsCache re-reads stats-cache.json and upserts the
// facility-wide (project = NULL) daily rows. The model-stats file is not
// read here.
func (d *Daemon) syncDailyMetricsFromStatsCache(ctx context.Context) {
	cache, err := sessionusage.ReadStatsCache(d.cfg.Paths.StatsCache)
	if err != nil {
		logErr("read stats-cache.json", err)
		return
	}

	byDate := make(map[string]*datastore.DailyMetric)
	for _, a := range cache.DailyActivity {
		byDate[a.Date] = &datastore.DailyMetric{
			Date:     a.Date,
			Messages: a.MessageCount,
			Sessions: a.SessionCount,
			ToolCalls: a.ToolCallCount,
		}
	}
	for _, mt := range cache.DailyModelTokens {
		row, ok := byDate[mt.Date]
		if !ok {
			row = &datastore.DailyMetric{Date: mt.Date}
			byDate[mt.Date] = row
		}
		row.Tokens = mt.TokensByModel
	}

	rows := make([]datastore.DailyMetric, 0, len(byDate))
	for _, row := range byDate {
		rows = append(rows, *row)
	}
	if _, _, err := d.store.UpsertDailyMetrics(ctx, rows); err != nil {
		logErr("upsert facility-wide daily metrics", err)
	}
}

// syncSessionUsage rescans session files on disk and refreshes today's
// tokens in the per-slug cache.
func (d *Daemon) syncSessionUsage(ctx context.Context) {
	result, err := d.sessions.Scan()
	if err != nil {
		logErr("scan session files", err)
		return
	}

	today := time.Now().UTC().Format("2006-01-02")

	d.mu.Lock()
	for slug, byDate := range result {
		c := d.cacheFor(slug)
		var todayTokens int64
		for _, sum := range byDate[today] {
			todayTokens += int64(sum)
		}
		c.todayTokens = todayTokens
	}
	d.mu.Unlock()
}

// syncPerProjectDailyMetrics rebuilds per-project (non-NULL) daily_metrics
// rows, partitioned by (project, date) per §4.5. Event-type counters come
// from the in-memory entry buffer (the attributed log-entry stream);
// per-model token sums come from the session-usage scanner, keyed the same
// way. Rows are blind replacements, matching the facility-wide sync.
func (d *Daemon) syncPerProjectDailyMetrics(ctx context.Context, tagged []taggedEntry) {
	type key struct{ slug, date string }
	rows := make(map[key]*datastore.DailyMetric)

	row := func(slug, date string) *datastore.DailyMetric {
		k := key{slug, date}
		r, ok := rows[k]
		if !ok {
			project := slug
			r = &datastore.DailyMetric{Date: date, Project: &project, Tokens: map[string]int{}}
			rows[k] = r
		}
		return r
	}

	for _, t := range tagged {
		date := t.entry.Timestamp.UTC().Format("2006-01-02")
		r := row(t.slug, date)
		switch t.entry.EventType {
		case eventlog.EventSessionStart:
			r.Sessions++
		case eventlog.EventTool:
			r.ToolCalls++
		case eventlog.EventAgentSpawn:
			r.AgentSpawns++
		case eventlog.EventMessage:
			r.TeamMessages++
		default:
			r.Messages++
		}
	}

	usage, err := d.sessions.Scan()
	if err != nil {
		logErr("scan session files for daily metrics", err)
	} else {
		for slug, byDate := range usage {
			for date, byModel := range byDate {
				r := row(slug, date)
				for model, tokens := range byModel {
					r.Tokens[model] += tokens
				}
			}
		}
	}

	if len(rows) == 0 {
		return
	}
	out := make([]datastore.DailyMetric, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	if _, _, err := d.store.UpsertDailyMetrics(ctx, out); err != nil {
		logErr("upsert per-project daily metrics", err)
	}
}

// refreshAndUpsertTelemetry pushes the current per-slug caches to
// project_telemetry and recomputes the facility-wide aggregate as the sum
// over every slug's cache, per §4.8's "the daemon never re-reads the event
// log to compute lifetime values" rule.
func (d *Daemon) refreshAndUpsertTelemetry(ctx context.Context) {
	d.mu.Lock()
	rows := make([]datastore.ProjectAggregate, 0, len(d.caches))
	var facility datastore.FacilityAggregate
	for slug, c := range d.caches {
		rows = append(rows, datastore.ProjectAggregate{
			Project:          slug,
			LifetimeSessions: c.lifetimeSessions,
			LifetimeMessages: c.lifetimeMessages,
			LifetimeTools:    c.lifetimeTools,
			LifetimeTokens:   c.lifetimeTokens,
			TodaySessions:    c.todaySessions,
			TodayMessages:    c.todayMessages,
			TodayTools:       c.todayTools,
			TodayTokens:      c.todayTokens,
		})
		facility.LifetimeSessions += c.lifetimeSessions
		facility.LifetimeMessages += c.lifetimeMessages
		facility.LifetimeTools += c.lifetimeTools
		facility.LifetimeTokens += c.lifetimeTokens
		facility.TodaySessions += c.todaySessions
		facility.TodayMessages += c.todayMessages
		facility.TodayTools += c.todayTools
		facility.TodayTokens += c.todayTokens
	}
	d.mu.Unlock()

	d.store.UpsertProjectAggregates(ctx, rows)
	if err := d.store.UpdateFacilityAggregates(ctx, facility); err != nil {
		logErr("update facility aggregates", err)
	}
}

// refreshSlugMap rebuilds the slug map, diffs it against the previous map,
// and rewrites any renamed slug's rows across the datastore, per §4.6.
func (d *Daemon) refreshSlugMap(ctx context.Context) {
	fresh, err := d.resolver.BuildMap(d.cfg.Paths.OrgRoot)
	if err != nil {
		logErr("rebuild slug map", err)
		return
	}

	d.mu.Lock()
	previous := d.slugMap
	d.mu.Unlock()

	renames := slugs.Diff(previous, fresh)
	for _, r := range renames {
		if err := d.store.RewriteSlug(ctx, r.Old, r.New); err != nil {
			logErr("rewrite slug "+r.Old+" -> "+r.New, err)
			continue
		}
		d.mu.Lock()
		if c, ok := d.caches[r.Old]; ok {
			delete(d.caches, r.Old)
			d.caches[r.New] = c
		}
		d.mu.Unlock()
	}

	if err := slugs.SaveMap(d.cfg.Paths.SlugMapFile, fresh); err != nil {
		logErr("save slug map", err)
	}

	d.mu.Lock()
	d.slugMap = fresh
	d.mu.Unlock()
}
