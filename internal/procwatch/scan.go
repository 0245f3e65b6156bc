// Package procwatch enumerates agent processes on the host and maintains
// a sliding window of per-PID activity samples, debouncing noisy CPU
// samples into stable lifecycle transitions.
package procwatch

import (
	"github.com/shirou/gopsutil/v3/process"
)

// agentBinary is the command name of the supervised coding-agent
// process. Per spec §9, the active-process heuristic is host-leaning;
// wakeInhibitor names the known wake-inhibitor binary on this host.
const (
	agentBinary   = "claude"
	wakeInhibitor = "caffeinate"

	// cpuActiveThreshold is the small positive CPU% above which a
	// process is considered doing sustained work.
	cpuActiveThreshold = 1.0
)

// RawSample is one process's raw-active classification for a single
// scan tick.
type RawSample struct {
	PID        int32
	WorkingDir string
	Slug       string
	RawActive  bool
}

// SlugResolver maps a process working directory to a project slug, per
// C6. A false second return means the directory is not a tracked
// project.
type SlugResolver func(workingDir string) (string, bool)

// Scanner enumerates agent processes via gopsutil and classifies each as
// raw-active via the secondary-child heuristic: CPU% above a small
// threshold, or a child process from a known wake-inhibitor binary.
type Scanner struct{}

// NewScanner returns a ready-to-use Scanner.
func NewScanner() *Scanner { return &Scanner{} }

// Scan enumerates running processes, selects those whose command name
// equals the agent binary, resolves each PID's working directory and
// project slug, and classifies it as raw-active. Processes whose
// working directory has no slug are omitted, per the convention that
// null-slug data does not exist downstream.
func (s *Scanner) Scan(resolve SlugResolver) ([]RawSample, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	samples := make([]RawSample, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil || name != agentBinary {
			continue
		}

		cwd, err := p.Cwd()
		if err != nil {
			continue
		}

		slug, ok := resolve(cwd)
		if !ok {
			continue
		}

		samples = append(samples, RawSample{
			PID:        p.Pid,
			WorkingDir: cwd,
			Slug:       slug,
			RawActive:  isRawActive(p),
		})
	}
	return samples, nil
}

// isRawActive reports whether p shows a sustained-work signal: CPU
// utilization above cpuActiveThreshold, or a child process running the
// known wake-inhibitor binary.
func isRawActive(p *process.Process) bool {
	if cpuPct, err := p.CPUPercent(); err == nil && cpuPct > cpuActiveThreshold {
		return true
	}

	children, err := p.Children()
	if err != nil {
		return false
	}
	for _, child := range children {
		if name, err := child.Name(); err == nil && name == wakeInhibitor {
			return true
		}
	}
	return false
}
