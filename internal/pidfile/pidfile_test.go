package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestAcquireWritesOwnPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exporter.pid")
	if err := Acquire(path); err != nil {
		t.Fatal(err)
	}

	pid, ok := Read(path)
	if !ok {
		t.Fatal("expected PID file to be readable")
	}
	if int(pid) != os.Getpid() {
		t.Errorf("got pid %d, want %d", pid, os.Getpid())
	}
}

func TestAcquireRefusesWhenAnotherLiveProcessHoldsIt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exporter.pid")
	// PID 1 is always alive on a Linux host and is never this test process.
	if err := os.WriteFile(path, []byte("1"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Acquire(path); err != ErrAlreadyRunning {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestAcquireReclaimsStalePID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exporter.pid")
	// A PID unlikely to be alive.
	if err := os.WriteFile(path, []byte(strconv.Itoa(1<<30)), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Acquire(path); err != nil {
		t.Fatalf("expected stale PID to be reclaimed, got %v", err)
	}
}

func TestReleaseOnMissingFileIsNotAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonexistent.pid")
	if err := Release(path); err != nil {
		t.Fatalf("expected no error releasing a missing PID file, got %v", err)
	}
}
