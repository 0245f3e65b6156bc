package daemon

import (
	"context"
	"time"

	"github.com/facility-ops/exporter/internal/datastore"
)

// aggregateLoop runs every 5s: polls the log tailer, inserts new events,
// re-syncs aggregate metrics, and every SlowCycleEvery iterations (~5 min)
// performs the slower maintenance pass: slug-map refresh, session rescan,
// daily-metric sync, pruning, and buffer trim.
func (d *Daemon) aggregateLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.Intervals.AggregateLoop)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.aggregateTick(ctx)
		}
	}
}

func (d *Daemon) aggregateTick(ctx context.Context) {
	entries, err := d.tailer.Poll()
	if err != nil {
		logErr("poll event log", err)
	}
	if len(entries) > 0 {
		d.bufferAndInsertEvents(ctx, d.attributeEntries(entries))
	}

	d.syncDailyMetricsFromStatsCache(ctx)
	d.refreshAndUpsertTelemetry(ctx)

	d.mu.Lock()
	d.aggregateIteration++
	iter := d.aggregateIteration
	d.mu.Unlock()

	every := d.cfg.Intervals.SlowCycleEvery
	if every <= 0 {
		every = 60
	}
	if iter%every != 0 {
		return
	}

	d.refreshSlugMap(ctx)
	d.syncSessionUsage(ctx)
	d.syncDailyMetricsFromStatsCache(ctx)

	d.mu.Lock()
	bufferSnapshot := make([]taggedEntry, len(d.entryBuffer))
	copy(bufferSnapshot, d.entryBuffer)
	d.mu.Unlock()
	d.syncPerProjectDailyMetrics(ctx, bufferSnapshot)

	d.runPruneIfDateRolled(ctx)
	d.pruneEntryBuffer()
}

// bufferAndInsertEvents appends to the in-memory buffer, inserts into the
// datastore, and bumps per-slug counters in the aggregate cache. Events
// precede per-project activity updates, which precede daily metrics, which
// precede telemetry upserts, per §5's ordering guarantee.
func (d *Daemon) bufferAndInsertEvents(ctx context.Context, tagged []taggedEntry) {
	d.mu.Lock()
	d.entryBuffer = append(d.entryBuffer, tagged...)
	d.mu.Unlock()

	events := make([]datastore.Event, 0, len(tagged))
	for _, t := range tagged {
		events = append(events, datastore.FromEntry(t.slug, t.entry))
	}
	if len(events) > 0 {
		d.store.UpsertEvents(ctx, events)
	}

	d.mu.Lock()
	for _, t := range tagged {
		c := d.cacheFor(t.slug)
		switch t.entry.EventType {
		case "session_start":
			c.lifetimeSessions++
			c.todaySessions++
		case "tool":
			c.lifetimeTools++
			c.todayTools++
		default:
			c.lifetimeMessages++
			c.todayMessages++
		}
	}
	d.mu.Unlock()
}

// runPruneIfDateRolled prunes events past the retention horizon once per
// UTC day.
func (d *Daemon) runPruneIfDateRolled(ctx context.Context) {
	d.mu.Lock()
	today := time.Now().UTC().Format("2006-01-02")
	rolled := d.lastPruneDate != today
	if rolled {
		d.lastPruneDate = today
	}
	d.mu.Unlock()

	if !rolled {
		return
	}
	if err := d.store.PruneEvents(ctx); err != nil {
		logErr("prune events", err)
	}
}

// pruneEntryBuffer trims the in-memory entry buffer to the configured
// retention window (default 31 days).
func (d *Daemon) pruneEntryBuffer() {
	d.mu.Lock()
	defer d.mu.Unlock()

	days := d.cfg.Intervals.EventBufferDays
	if days <= 0 {
		days = 31
	}
	cutoff := time.Now().AddDate(0, 0, -days)

	kept := d.entryBuffer[:0]
	for _, t := range d.entryBuffer {
		if t.entry.Timestamp.After(cutoff) {
			kept = append(kept, t)
		}
	}
	d.entryBuffer = kept
}
