package daemon

import (
	"context"
	"path/filepath"
	"time"

	"github.com/facility-ops/exporter/internal/datastore"
	"github.com/facility-ops/exporter/internal/eventlog"
)

// runBackfill implements §4.8 mode 1: read the whole event log, register
// every project, insert all events, sync daily aggregates from
// stats-cache, delete and rebuild per-project daily rows from session
// files, refresh lifetime counters, update telemetry, verify by read-back.
func (d *Daemon) runBackfill(ctx context.Context) error {
	entries, err := d.tailer.ReadAll()
	if err != nil {
		return err
	}
	tagged := d.attributeEntries(entries)
	return d.ingestAndBackfill(ctx, tagged, tagged)
}

// gapBackfill implements §4.8 mode 2's gap backfill: if the wall-clock gap
// since the facility row's last update exceeds the threshold, replay only
// entries after that instant through the same path as a full backfill.
func (d *Daemon) gapBackfill(ctx context.Context) error {
	facility, err := d.store.ReadFacility(ctx)
	if err != nil {
		return err
	}
	if time.Since(facility.UpdatedAt) < d.cfg.Thresholds.GapBackfill {
		return nil
	}

	entries, err := d.tailer.ReadAll()
	if err != nil {
		return err
	}

	full := d.attributeEntries(entries)
	var replay []taggedEntry
	for _, t := range full {
		if t.entry.Timestamp.After(facility.UpdatedAt) {
			replay = append(replay, t)
		}
	}
	// Daily-metric rows are blind replacements keyed by (project, date),
	// so rebuilding them must use the complete attributed history for the
	// touched projects, not just the gap-window slice used for event
	// insertion and registration.
	return d.ingestAndBackfill(ctx, replay, full)
}

// attributeEntries resolves each entry's project directory name to a
// canonical slug, preferring the current slug map and falling back to a
// fresh resolve for directories the map hasn't seen yet. Entries whose
// directory doesn't resolve are discarded (§4.11's "data" error class:
// missing project is a per-record discard, not a fatal error).
func (d *Daemon) attributeEntries(raw []eventlog.Entry) []taggedEntry {
	d.mu.Lock()
	slugMap := d.slugMap
	d.mu.Unlock()

	out := make([]taggedEntry, 0, len(raw))
	for _, e := range raw {
		slug, ok := slugMap[e.Project]
		if !ok {
			slug, ok = d.resolver.Resolve(filepath.Join(d.cfg.Paths.OrgRoot, e.Project))
		}
		if !ok || slug == "" {
			continue
		}
		out = append(out, taggedEntry{slug: slug, entry: e})
	}
	return out
}

// ingestAndBackfill registers every project touched by tagged, inserts its
// events, and rebuilds per-project daily_metrics rows from dailyHistory —
// the complete attributed history for those projects, since daily rows are
// blind replacements keyed by (project, date) and rebuilding a date from a
// partial slice would silently drop that date's earlier counts. tagged and
// dailyHistory are the same slice for a full backfill; a gap backfill passes
// the gap-window slice as tagged (for event insertion) and the full
// attributed log as dailyHistory (for the daily rebuild).
func (d *Daemon) ingestAndBackfill(ctx context.Context, tagged, dailyHistory []taggedEntry) error {
	seenSlugs := make(map[string]bool)
	events := make([]datastore.Event, 0, len(tagged))
	for _, t := range tagged {
		seenSlugs[t.slug] = true
		events = append(events, datastore.FromEntry(t.slug, t.entry))
	}

	for slug := range seenSlugs {
		public, _ := d.visibility.IsPublic(slug)
		if err := d.store.RegisterProject(ctx, slug, slug, public); err != nil {
			logErr("register project", err)
		}
		if err := d.store.DeleteProjectDailyMetrics(ctx, slug); err != nil {
			logErr("delete stale daily metrics", err)
		}
	}

	if len(events) > 0 {
		d.store.UpsertEvents(ctx, events)
	}

	d.mu.Lock()
	d.entryBuffer = append(d.entryBuffer, tagged...)
	d.mu.Unlock()
	d.pruneEntryBuffer()

	d.syncDailyMetricsFromStatsCache(ctx)
	d.syncPerProjectDailyMetrics(ctx, dailyHistory)
	if err := d.seedCachesFromDatastore(ctx); err != nil {
		logErr("refresh lifetime counters", err)
	}
	d.syncSessionUsage(ctx)
	d.refreshAndUpsertTelemetry(ctx)

	return nil
}
