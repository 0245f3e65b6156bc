package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/facility-ops/exporter/internal/config"
	"github.com/facility-ops/exporter/internal/datastore"
	"github.com/facility-ops/exporter/internal/pidfile"
	"github.com/facility-ops/exporter/internal/preflight"
	"github.com/facility-ops/exporter/internal/servicemgr"
)

const httpTimeout = 10 * time.Second

func main() {
	home, _ := os.UserHomeDir()
	cfgPath := filepath.Join(home, ".config", "facility", "exporter.yaml")
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open: loading config: %v\n", err)
		os.Exit(1)
	}

	envPath := filepath.Join(filepath.Dir(cfgPath), ".env")
	siteURL := os.Getenv("SITE_URL")

	var secrets config.Secrets
	var store *datastore.Client
	ctx := context.Background()

	steps := []preflight.Step{
		{Name: "environment", Run: func() preflight.Result {
			s, err := config.LoadSecrets(envPath)
			if err != nil {
				return preflight.Result{Status: preflight.Fail, Reason: err.Error()}
			}
			secrets = s
			return preflight.Result{Status: preflight.Pass}
		}},
		{Name: "datastore", Run: func() preflight.Result {
			start := time.Now()
			s, err := datastore.New(ctx, secrets.URL)
			if err != nil {
				return preflight.Result{Status: preflight.Fail, Reason: classifyDatastoreErr(err)}
			}
			if _, err := s.ReadFacility(ctx); err != nil {
				return preflight.Result{Status: preflight.Fail, Reason: classifyDatastoreErr(err)}
			}
			store = s
			return preflight.Result{Status: preflight.Pass, Reason: fmt.Sprintf("latency %s", time.Since(start))}
		}},
		{Name: "deployment health", Run: func() preflight.Result {
			return httpCheck(http.MethodGet, siteURL+"/api/health")
		}},
		{Name: "site reachable", Run: func() preflight.Result {
			return httpCheck(http.MethodHead, siteURL)
		}},
		{Name: "service registration", Run: func() preflight.Result {
			return registerService(cfg)
		}},
		{Name: "daemon process", Run: func() preflight.Result {
			return waitForDaemon(cfg)
		}},
		{Name: "telemetry flowing", Run: func() preflight.Result {
			return telemetryFlowing(ctx, store, cfg)
		}},
		{Name: "flip", Run: func() preflight.Result {
			if err := store.SetStatus(ctx, datastore.StatusActive); err != nil {
				return preflight.Result{Status: preflight.Fail, Reason: err.Error()}
			}
			f, err := store.ReadFacility(ctx)
			if err != nil || f.Status != datastore.StatusActive {
				return preflight.Result{Status: preflight.Fail, Reason: "read-back disagreed with the written status"}
			}
			return preflight.Result{Status: preflight.Pass}
		}},
	}

	outcome := preflight.RunAll("facility open", steps)
	if outcome.Failed {
		os.Exit(1)
	}

	pid, _ := pidfile.Read(cfg.Paths.PIDFile)
	fmt.Printf("facility open: pid=%d\n", pid)
}

func classifyDatastoreErr(err error) string {
	msg := err.Error()
	if strings.Contains(msg, "401") || strings.Contains(msg, "403") {
		return "authentication error: " + msg
	}
	return msg
}

func httpCheck(method, url string) preflight.Result {
	client := &http.Client{Timeout: httpTimeout}
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return preflight.Result{Status: preflight.Fail, Reason: err.Error()}
	}
	resp, err := client.Do(req)
	if err != nil {
		return preflight.Result{Status: preflight.Fail, Reason: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return preflight.Result{Status: preflight.Fail, Reason: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	return preflight.Result{Status: preflight.Pass}
}

func registerService(cfg *config.Config) preflight.Result {
	home, _ := os.UserHomeDir()
	source := filepath.Join(filepath.Dir(cfg.Paths.PIDFile), "com.facility.exporter.plist")
	userPath := filepath.Join(home, "Library", "LaunchAgents", "com.facility.exporter.plist")

	if err := servicemgr.EnsureSymlink(source, userPath); err != nil {
		return preflight.Result{Status: preflight.Fail, Reason: err.Error()}
	}

	mgr := servicemgr.NewManager("launchctl", "com.facility.exporter")
	if mgr == nil {
		return preflight.Result{Status: preflight.Warn, Reason: "no service manager found on this host"}
	}
	if err := mgr.Load(userPath); err != nil {
		return preflight.Result{Status: preflight.Fail, Reason: err.Error()}
	}
	return preflight.Result{Status: preflight.Pass}
}

func waitForDaemon(cfg *config.Config) preflight.Result {
	if pid, ok := pidfile.Read(cfg.Paths.PIDFile); ok && pidfile.IsAlive(pid) {
		return preflight.Result{Status: preflight.Pass}
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		time.Sleep(500 * time.Millisecond)
		if pid, ok := pidfile.Read(cfg.Paths.PIDFile); ok && pidfile.IsAlive(pid) {
			return preflight.Result{Status: preflight.Pass}
		}
	}

	preflight.TailFile(cfg.Paths.ErrorLog, 10)
	return preflight.Result{Status: preflight.Fail, Reason: "daemon process did not start"}
}

func telemetryFlowing(ctx context.Context, store *datastore.Client, cfg *config.Config) preflight.Result {
	f, err := store.ReadFacility(ctx)
	if err != nil {
		preflight.TailFile(cfg.Paths.ErrorLog, 10)
		return preflight.Result{Status: preflight.Fail, Reason: err.Error()}
	}
	if time.Since(f.UpdatedAt) < 10*time.Second {
		return preflight.Result{Status: preflight.Pass}
	}

	time.Sleep(6 * time.Second)
	f2, err := store.ReadFacility(ctx)
	if err != nil {
		preflight.TailFile(cfg.Paths.ErrorLog, 10)
		return preflight.Result{Status: preflight.Fail, Reason: err.Error()}
	}
	if !f2.UpdatedAt.After(f.UpdatedAt) {
		preflight.TailFile(cfg.Paths.ErrorLog, 10)
		return preflight.Result{Status: preflight.Fail, Reason: "last-update instant did not advance"}
	}
	return preflight.Result{Status: preflight.Pass}
}
