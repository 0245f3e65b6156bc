// Package preflight implements the colored step-runner shared by the
// open and close commands: a boxed header followed by one pass/warn/fail
// status line per step.
package preflight

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// Status is a step's outcome.
type Status int

const (
	Pass Status = iota
	Warn
	Fail
)

// Result is one step's outcome and human-readable reason.
type Result struct {
	Status Status
	Reason string
}

// Step is one named, ordered preflight check.
type Step struct {
	Name string
	Run  func() Result
}

// Outcome summarizes a full run: whether any step failed, and every
// step's result in order.
type Outcome struct {
	Failed  bool
	Results []Result
}

var (
	passColor = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
)

// RunAll executes steps in order, printing a colored status line for each.
// A Fail result aborts the remaining steps; Warn continues.
func RunAll(header string, steps []Step) Outcome {
	fmt.Println(boxHeader(header))

	var results []Result
	for i, step := range steps {
		res := step.Run()
		printLine(i+1, step.Name, res)
		results = append(results, res)
		if res.Status == Fail {
			return Outcome{Failed: true, Results: results}
		}
	}
	return Outcome{Failed: false, Results: results}
}

func printLine(n int, name string, res Result) {
	switch res.Status {
	case Pass:
		passColor.Printf("  %d. %-24s ✓ pass\n", n, name)
	case Warn:
		warnColor.Printf("  %d. %-24s ! warn  %s\n", n, name, res.Reason)
	case Fail:
		failColor.Printf("  %d. %-24s ✗ fail  %s\n", n, name, res.Reason)
	}
}

func boxHeader(title string) string {
	return "== " + title + " =="
}

// TailFile prints the last n lines of path to stderr, used by the
// preflight steps that ask for "the last 10 lines of the error log" on
// failure.
func TailFile(path string, n int) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	lines := splitLines(string(data))
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for _, l := range lines {
		fmt.Fprintln(os.Stderr, l)
	}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
