// Package servicemgr wraps the host service manager's plist-equivalent
// registration and load/unload control, shelled out to the
// launchctl-style CLI the way internal/procwatch's teacher code shelled
// out to tmux.
package servicemgr

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Manager shells out to the host service manager to register, load, and
// unload the exporter daemon's service definition.
type Manager struct {
	binary string // e.g. "launchctl"
	label  string // service identifier, e.g. "com.facility.exporter"
}

// NewManager returns a Manager for the given service-manager binary and
// service label. Returns nil (not an error) when the binary isn't
// installed, matching the teacher's NewTmuxResolver convention of a nil
// receiver meaning "unavailable" rather than forcing every call site to
// handle a lookup error.
func NewManager(binary, label string) *Manager {
	if _, err := exec.LookPath(binary); err != nil {
		return nil
	}
	return &Manager{binary: binary, label: label}
}

// EnsureSymlink creates a symlink at userPath pointing at sourcePath if
// userPath doesn't already exist. Used by the open command's service
// registration step (§4.9 step 5).
func EnsureSymlink(sourcePath, userPath string) error {
	if _, err := os.Lstat(userPath); err == nil {
		return nil
	}
	if _, err := os.Stat(sourcePath); err != nil {
		return fmt.Errorf("service definition source missing: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(userPath), 0755); err != nil {
		return err
	}
	return os.Symlink(sourcePath, userPath)
}

// IsLoaded reports whether the service is currently registered with the
// service manager.
func (m *Manager) IsLoaded() bool {
	if m == nil {
		return false
	}
	out, err := m.run("list")
	if err != nil {
		return false
	}
	return strings.Contains(out, m.label)
}

// Load registers the service. "Already loaded" is treated as success, per
// §4.9 step 5.
func (m *Manager) Load(plistPath string) error {
	if m == nil {
		return fmt.Errorf("service manager unavailable")
	}
	if m.IsLoaded() {
		return nil
	}
	_, err := m.run("load", plistPath)
	return err
}

// Unload deregisters the service, per §4.10's close-command step.
func (m *Manager) Unload(plistPath string) error {
	if m == nil {
		return fmt.Errorf("service manager unavailable")
	}
	_, err := m.run("unload", plistPath)
	return err
}

func (m *Manager) run(args ...string) (string, error) {
	out, err := exec.Command(m.binary, args...).Output()
	return string(out), err
}
