package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/facility-ops/exporter/internal/config"
	"github.com/facility-ops/exporter/internal/daemon"
	"github.com/facility-ops/exporter/internal/datastore"
	"github.com/facility-ops/exporter/internal/pidfile"
	"github.com/facility-ops/exporter/internal/visibility"
)

func main() {
	backfill := flag.Bool("backfill", false, "run a full backfill instead of normal daemon startup")
	configPath := flag.String("config", "", "path to config file (defaults to XDG config dir)")
	envPath := flag.String("env", "", "path to .env file (defaults alongside the config file)")
	flag.Parse()

	cfgPath := *configPath
	if cfgPath == "" {
		home, _ := os.UserHomeDir()
		cfgPath = filepath.Join(home, ".config", "facility", "exporter.yaml")
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	envFile := *envPath
	if envFile == "" {
		envFile = filepath.Join(filepath.Dir(cfgPath), ".env")
	}
	secrets, err := config.LoadSecrets(envFile)
	if err != nil {
		log.Fatalf("loading secrets: %v", err)
	}

	if err := pidfile.Acquire(cfg.Paths.PIDFile); err != nil {
		log.Fatalf("single-instance check: %v", err)
	}
	defer pidfile.Release(cfg.Paths.PIDFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := datastore.New(ctx, secrets.URL)
	if err != nil {
		log.Fatalf("connecting to datastore: %v", err)
	}
	defer store.Close()
	// secrets.Key is required by LoadSecrets (both URL and KEY must be
	// present to start) but unused here: the datastore client speaks
	// the Postgres wire protocol directly against secrets.URL, which
	// already carries its own credentials. KEY exists for the website's
	// REST access to the same datastore, not for this daemon.
	_ = secrets.Key

	d, err := daemon.New(cfg, store, visibility.Enumerator(noRemoteEnumeration))
	if err != nil {
		log.Fatalf("constructing daemon: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("daemon: shutting down")
		pidfile.Release(cfg.Paths.PIDFile)
		cancel()
		os.Exit(0)
	}()

	if err := d.Run(ctx, *backfill); err != nil {
		log.Fatalf("daemon exited: %v", err)
	}
}

// noRemoteEnumeration is the visibility resolver's enumerator. No remote
// repository host is named by this system's scope, so every project
// falls back to the resolver's conservative default (private) until an
// operator seeds internal/visibility's cache file by hand.
func noRemoteEnumeration() ([]visibility.RepoRecord, error) {
	return nil, nil
}
