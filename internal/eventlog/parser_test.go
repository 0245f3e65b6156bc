package eventlog

import (
	"testing"
	"time"
)

func TestParseLine(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	_ = now

	tests := []struct {
		name       string
		line       string
		wantOK     bool
		wantProj   string
		wantBranch string
		wantEvent  EventType
	}{
		{
			name:       "four fields with tool marker",
			line:       "10:01 AM|my-project|main|🔧 Edit foo.go",
			wantOK:     true,
			wantProj:   "my-project",
			wantBranch: "main",
			wantEvent:  EventTool,
		},
		{
			name:       "branch dash normalizes to empty",
			line:       "10:01 AM|my-project|-|🏁 done",
			wantOK:     true,
			wantProj:   "my-project",
			wantBranch: "",
			wantEvent:  EventAgentFinish,
		},
		{
			name:      "two fields no project discarded",
			line:      "10:01 AM|🟢 started",
			wantOK:    false,
		},
		{
			name:       "unknown marker",
			line:       "10:01 AM|proj|main|no marker here",
			wantOK:     true,
			wantProj:   "proj",
			wantBranch: "main",
			wantEvent:  EventUnknown,
		},
		{
			name:   "missing timestamp discarded",
			line:   "not-a-time|proj|main|🔧 tool",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, ok := ParseLine(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("ParseLine(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			}
			if !tt.wantOK {
				return
			}
			if entry.Project != tt.wantProj {
				t.Errorf("Project = %q, want %q", entry.Project, tt.wantProj)
			}
			if entry.Branch != tt.wantBranch {
				t.Errorf("Branch = %q, want %q", entry.Branch, tt.wantBranch)
			}
			if entry.EventType != tt.wantEvent {
				t.Errorf("EventType = %q, want %q", entry.EventType, tt.wantEvent)
			}
		})
	}
}

func TestParseTimestampDateless(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	ts, ok := ParseTimestamp("9:30 AM EST", now)
	if !ok {
		t.Fatal("expected ok")
	}
	if ts.Year() != 2026 || ts.Month() != time.March || ts.Day() != 14 {
		t.Errorf("expected today's date, got %v", ts)
	}
	if ts.Hour() != 9 || ts.Minute() != 30 {
		t.Errorf("expected 9:30, got %v", ts)
	}
}

func TestParseTimestampWithDate(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ts, ok := ParseTimestamp("12/25 3:04:05 PM", now)
	if !ok {
		t.Fatal("expected ok")
	}
	if ts.Month() != time.December || ts.Day() != 25 {
		t.Errorf("expected Dec 25, got %v", ts)
	}
	if ts.Year() != 2026 {
		t.Errorf("expected year to default to now's year, got %d", ts.Year())
	}
}
