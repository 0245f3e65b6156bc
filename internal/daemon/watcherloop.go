package daemon

import (
	"context"
	"log"
	"time"

	"github.com/facility-ops/exporter/internal/datastore"
)

// watcherLoop runs every 250ms: scans processes, feeds the activity
// window, pushes agent-state transitions, and fires the auto-close latch
// after AUTO_CLOSE idle time. Per §4.8 it judges idleness from the
// in-memory window state, never a fresh process scan.
func (d *Daemon) watcherLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.Intervals.WatcherLoop)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.watcherTick(ctx)
		}
	}
}

func (d *Daemon) watcherTick(ctx context.Context) {
	resolve := func(dir string) (string, bool) {
		return d.resolver.Resolve(dir)
	}

	samples, err := d.scanner.Scan(resolve)
	if err != nil {
		logErr("process scan", err)
		return
	}

	result := d.window.Tick(samples)

	// The auto-close idle check must run on every tick from the
	// in-memory window state, not only on ticks that produced
	// transitions — sustained idleness is exactly the case where no
	// transition ever fires.
	facility := d.window.FacilityState()
	anyActive := facility.ActiveCount > 0

	d.mu.Lock()
	if anyActive {
		d.lastActiveAgentsInstant = time.Now()
		d.autoCloseFired = false
	}
	idleFor := time.Since(d.lastActiveAgentsInstant)
	shouldClose := !d.autoCloseFired && !d.lastActiveAgentsInstant.IsZero() && idleFor >= d.cfg.Thresholds.AutoClose
	if shouldClose {
		d.autoCloseFired = true
	}
	d.mu.Unlock()

	if shouldClose {
		if err := d.store.SetStatus(ctx, datastore.StatusDormant); err != nil {
			logErr("auto-close flip", err)
		} else {
			log.Printf("daemon: auto-close latch fired after %s idle", idleFor)
		}
	}

	if len(result.Transitions) == 0 {
		return
	}

	for _, tr := range result.Transitions {
		log.Printf("daemon: transition %s pid=%d slug=%s", tr.Kind, tr.PID, tr.Slug)
	}

	var activeSlugs []string
	agentStates := make([]datastore.AgentState, 0, len(result.BySlug))
	for _, s := range result.BySlug {
		active := 0
		if s.Active {
			active = 1
			activeSlugs = append(activeSlugs, s.Slug)
		}
		agentStates = append(agentStates, datastore.AgentState{
			Project:      s.Slug,
			ActiveAgents: active,
			AgentCount:   s.Count,
		})
	}
	d.store.UpdateAgentState(ctx, agentStates)
	if len(activeSlugs) > 0 {
		if err := d.store.TouchLastActive(ctx, activeSlugs); err != nil {
			logErr("touch last-active", err)
		}
	}

	if err := d.store.UpdateFacilityAgentState(ctx, result.Facility.ActiveCount, result.Facility.AgentCount, result.Facility.ActiveProjects); err != nil {
		logErr("update facility agent state", err)
	}
}
