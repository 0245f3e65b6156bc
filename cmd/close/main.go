package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/facility-ops/exporter/internal/config"
	"github.com/facility-ops/exporter/internal/datastore"
	"github.com/facility-ops/exporter/internal/pidfile"
	"github.com/facility-ops/exporter/internal/preflight"
	"github.com/facility-ops/exporter/internal/servicemgr"
)

func main() {
	home, _ := os.UserHomeDir()
	cfgPath := filepath.Join(home, ".config", "facility", "exporter.yaml")
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "close: loading config: %v\n", err)
		os.Exit(1)
	}

	envPath := filepath.Join(filepath.Dir(cfgPath), ".env")
	ctx := context.Background()

	steps := []preflight.Step{
		{Name: "flip status", Run: func() preflight.Result {
			secrets, err := config.LoadSecrets(envPath)
			if err != nil {
				return preflight.Result{Status: preflight.Fail, Reason: err.Error()}
			}
			store, err := datastore.New(ctx, secrets.URL)
			if err != nil {
				return preflight.Result{Status: preflight.Fail, Reason: err.Error()}
			}
			defer store.Close()
			if err := store.SetStatus(ctx, datastore.StatusDormant); err != nil {
				return preflight.Result{Status: preflight.Fail, Reason: err.Error()}
			}
			return preflight.Result{Status: preflight.Pass}
		}},
		{Name: "stop daemon", Run: func() preflight.Result {
			return stopDaemon(cfg)
		}},
		{Name: "service deregistration", Run: func() preflight.Result {
			return deregisterService(cfg)
		}},
	}

	outcome := preflight.RunAll("facility close", steps)
	if outcome.Failed {
		os.Exit(1)
	}
	fmt.Println("facility close: done")
}

func stopDaemon(cfg *config.Config) preflight.Result {
	pid, ok := pidfile.Read(cfg.Paths.PIDFile)
	if !ok || !pidfile.IsAlive(pid) {
		pidfile.Release(cfg.Paths.PIDFile)
		return preflight.Result{Status: preflight.Pass, Reason: "daemon not running"}
	}

	proc, err := os.FindProcess(int(pid))
	if err != nil {
		return preflight.Result{Status: preflight.Fail, Reason: err.Error()}
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return preflight.Result{Status: preflight.Fail, Reason: err.Error()}
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !pidfile.IsAlive(pid) {
			pidfile.Release(cfg.Paths.PIDFile)
			return preflight.Result{Status: preflight.Pass}
		}
		time.Sleep(250 * time.Millisecond)
	}

	if err := proc.Signal(syscall.SIGKILL); err != nil {
		return preflight.Result{Status: preflight.Fail, Reason: err.Error()}
	}
	pidfile.Release(cfg.Paths.PIDFile)
	return preflight.Result{Status: preflight.Warn, Reason: "escalated to SIGKILL after 5s"}
}

func deregisterService(cfg *config.Config) preflight.Result {
	home, _ := os.UserHomeDir()
	plistPath := filepath.Join(home, "Library", "LaunchAgents", "com.facility.exporter.plist")

	mgr := servicemgr.NewManager("launchctl", "com.facility.exporter")
	if mgr == nil {
		return preflight.Result{Status: preflight.Warn, Reason: "no service manager found on this host"}
	}
	if !mgr.IsLoaded() {
		return preflight.Result{Status: preflight.Pass, Reason: "already unloaded"}
	}
	if err := mgr.Unload(plistPath); err != nil {
		return preflight.Result{Status: preflight.Fail, Reason: err.Error()}
	}
	return preflight.Result{Status: preflight.Pass}
}
