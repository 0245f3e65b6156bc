// Package daemon implements the exporter daemon (C9): single-instance
// startup, backfill and gap-backfill, and the two cooperative polling
// loops that keep the remote datastore in sync with on-disk agent
// activity.
package daemon

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/facility-ops/exporter/internal/config"
	"github.com/facility-ops/exporter/internal/datastore"
	"github.com/facility-ops/exporter/internal/eventlog"
	"github.com/facility-ops/exporter/internal/procwatch"
	"github.com/facility-ops/exporter/internal/sessionusage"
	"github.com/facility-ops/exporter/internal/slugs"
	"github.com/facility-ops/exporter/internal/visibility"
)

// projectCache holds the per-slug state the two loops share. Per §5, each
// loop reads or replaces a cache in whole within one iteration, so no lock
// finer than the daemon-wide mutex is needed on a cooperative scheduler;
// this implementation runs the loops as real goroutines, so mu guards every
// field below for the duration of one iteration's read/replace.
type projectCache struct {
	lifetimeSessions, lifetimeMessages, lifetimeTools, lifetimeTokens int64
	todaySessions, todayMessages, todayTools, todayTokens             int64
	activeAgents, agentCount                                          int
}

// Daemon wires together every component the exporter daemon drives.
type Daemon struct {
	cfg        *config.Config
	store      *datastore.Client
	resolver   *slugs.Resolver
	visibility *visibility.Resolver
	tailer     *eventlog.Tailer
	scanner    *procwatch.Scanner
	window     *procwatch.Window
	sessions   *sessionusage.Scanner

	mu          sync.Mutex
	slugMap     map[string]string // directory name -> slug
	caches      map[string]*projectCache
	entryBuffer []taggedEntry

	lastActiveAgentsInstant time.Time
	autoCloseFired          bool

	aggregateIteration int
	lastPruneDate      string
}

// taggedEntry pairs a parsed log entry with the project slug its directory
// resolved to.
type taggedEntry struct {
	slug  string
	entry eventlog.Entry
}

// New constructs a Daemon ready to run a startup mode and its loops.
func New(cfg *config.Config, store *datastore.Client, enumerate visibility.Enumerator) (*Daemon, error) {
	vis, err := visibility.NewResolver(cfg.Paths.VisibilityFile, enumerate)
	if err != nil {
		return nil, err
	}

	return &Daemon{
		cfg:        cfg,
		store:      store,
		resolver:   slugs.NewResolver(),
		visibility: vis,
		tailer:     eventlog.NewTailer(cfg.Paths.EventLog),
		scanner:    procwatch.NewScanner(),
		window:     procwatch.NewWindow(cfg.Thresholds.WindowSize, cfg.Thresholds.DensityThreshold),
		sessions:   sessionusage.NewScanner(cfg.Paths.SessionRoot, cfg.Paths.OrgRoot, slugs.NewResolver()),
		caches:     make(map[string]*projectCache),
	}, nil
}

func (d *Daemon) cacheFor(slug string) *projectCache {
	c, ok := d.caches[slug]
	if !ok {
		c = &projectCache{}
		d.caches[slug] = c
	}
	return c
}

// Run builds the slug map, diffs it against the persisted map from the
// last run to migrate any renames, executes the requested startup mode,
// then runs the watcher and aggregate loops until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context, backfill bool) error {
	fresh, err := d.resolver.BuildMap(d.cfg.Paths.OrgRoot)
	if err != nil {
		return err
	}
	previous, err := slugs.LoadMap(d.cfg.Paths.SlugMapFile)
	if err != nil {
		log.Printf("daemon: loading persisted slug map failed: %v", err)
		previous = map[string]string{}
	}
	for _, r := range slugs.Diff(previous, fresh) {
		if err := d.store.RewriteSlug(ctx, r.Old, r.New); err != nil {
			log.Printf("daemon: startup slug rename %s -> %s failed: %v", r.Old, r.New, err)
		}
	}
	if err := slugs.SaveMap(d.cfg.Paths.SlugMapFile, fresh); err != nil {
		log.Printf("daemon: saving slug map failed: %v", err)
	}

	d.mu.Lock()
	d.slugMap = fresh
	d.mu.Unlock()

	if backfill {
		if err := d.runBackfill(ctx); err != nil {
			return err
		}
	} else {
		if _, err := d.tailer.ReadAll(); err != nil {
			log.Printf("daemon: initial log read failed: %v", err)
		}
		if err := d.gapBackfill(ctx); err != nil {
			log.Printf("daemon: gap backfill failed: %v", err)
		}
		if err := d.seedCachesFromDatastore(ctx); err != nil {
			log.Printf("daemon: cache seed failed: %v", err)
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		d.watcherLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		d.aggregateLoop(ctx)
	}()
	wg.Wait()
	return nil
}

// seedCachesFromDatastore primes per-slug lifetime/today caches from the
// datastore's project_telemetry rows, per §4.8's daemon-normal startup.
func (d *Daemon) seedCachesFromDatastore(ctx context.Context) error {
	rows, err := d.store.ListProjectAggregates(ctx)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range rows {
		c := d.cacheFor(r.Project)
		c.lifetimeSessions, c.lifetimeMessages, c.lifetimeTools, c.lifetimeTokens =
			r.LifetimeSessions, r.LifetimeMessages, r.LifetimeTools, r.LifetimeTokens
		c.todaySessions, c.todayMessages, c.todayTools, c.todayTokens =
			r.TodaySessions, r.TodayMessages, r.TodayTools, r.TodayTokens
	}
	return nil
}
