// Package pidfile implements the exporter daemon's single-instance guard:
// a well-known file holding the daemon's PID, checked for a live,
// non-self process before startup and removed on clean exit.
package pidfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// ErrAlreadyRunning is returned by Acquire when the PID file points at a
// live process that is not the caller.
var ErrAlreadyRunning = fmt.Errorf("another instance is already running")

// Acquire checks path for a live, non-self process and, if none is found,
// writes the caller's PID to it. This is the daemon's single-instance
// invariant (§4.8).
func Acquire(path string) error {
	if pid, ok := readLive(path); ok && pid != int32(os.Getpid()) {
		return ErrAlreadyRunning
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644)
}

// Release removes the PID file, used on clean shutdown (signal or normal
// exit).
func Release(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Read returns the PID recorded at path, or ok=false if the file is
// absent, empty, or unparsable.
func Read(path string) (pid int32, ok bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return int32(n), true
}

// readLive returns the PID at path only if that process is currently
// alive, per C10/C11's "PID file points to a live process" checks.
func readLive(path string) (int32, bool) {
	pid, ok := Read(path)
	if !ok {
		return 0, false
	}
	alive, err := process.PidExists(pid)
	if err != nil || !alive {
		return 0, false
	}
	return pid, true
}

// IsAlive reports whether pid names a currently running process, used by
// the open command's daemon-process preflight step and the close
// command's wait-for-exit poll.
func IsAlive(pid int32) bool {
	alive, err := process.PidExists(pid)
	return err == nil && alive
}
