package eventlog

import (
	"regexp"
	"strings"
	"time"
)

// EventType is the closed set of event-type tags a log line can carry.
type EventType string

const (
	EventTool            EventType = "tool"
	EventRead            EventType = "read"
	EventSearch          EventType = "search"
	EventFetch           EventType = "fetch"
	EventMCP             EventType = "mcp"
	EventSkill           EventType = "skill"
	EventAgentSpawn      EventType = "agent_spawn"
	EventAgentTask       EventType = "agent_task"
	EventAgentFinish     EventType = "agent_finish"
	EventSessionStart    EventType = "session_start"
	EventSessionEnd      EventType = "session_end"
	EventResponseFinish  EventType = "response_finish"
	EventPlan            EventType = "plan"
	EventInputNeeded     EventType = "input_needed"
	EventPermission      EventType = "permission"
	EventQuestion        EventType = "question"
	EventCompleted       EventType = "completed"
	EventCompact         EventType = "compact"
	EventTask            EventType = "task"
	EventMessage         EventType = "message"
	EventUnknown         EventType = "unknown"
)

// markerOrder fixes the iteration order over glyph markers: the first
// matching glyph in this list wins when a body contains more than one.
var markerOrder = []struct {
	glyph string
	event EventType
}{
	{"🔧", EventTool},
	{"📖", EventRead},
	{"🔍", EventSearch},
	{"🌐", EventFetch},
	{"🔌", EventMCP},
	{"🧩", EventSkill},
	{"🐣", EventAgentSpawn},
	{"🤖", EventAgentTask},
	{"🏁", EventAgentFinish},
	{"🟢", EventSessionStart},
	{"🔴", EventSessionEnd},
	{"✅", EventResponseFinish},
	{"📋", EventPlan},
	{"⏸️", EventInputNeeded},
	{"🔐", EventPermission},
	{"❓", EventQuestion},
	{"🏆", EventCompleted},
	{"🗜️", EventCompact},
	{"📌", EventTask},
	{"💬", EventMessage},
}

var ansiEscape = regexp.MustCompile("\x1b\\[[0-9;]*[a-zA-Z]")

// Entry is a parsed, timestamped event line.
type Entry struct {
	Timestamp time.Time
	Project   string
	Branch    string
	EventType EventType
	Text      string
}

// ParseLine strips ANSI escapes, splits the pipe-delimited line, resolves
// the event-type marker, and parses the timestamp. It returns ok=false
// for lines with no parseable timestamp or no project attribution, per
// spec: "an Event without a parsed timestamp is discarded; an Event
// without a project attribution is discarded."
func ParseLine(raw string) (Entry, bool) {
	clean := ansiEscape.ReplaceAllString(raw, "")
	fields := strings.Split(clean, "|")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	var tsField, project, branch, body string
	switch {
	case len(fields) >= 4:
		tsField, project, branch, body = fields[0], fields[1], fields[2], strings.Join(fields[3:], "|")
	case len(fields) >= 2:
		tsField, body = fields[0], strings.Join(fields[1:], "|")
	default:
		return Entry{}, false
	}

	if branch == "-" {
		branch = ""
	}

	if project == "" {
		return Entry{}, false
	}

	ts, ok := ParseTimestamp(tsField, time.Now())
	if !ok {
		return Entry{}, false
	}

	return Entry{
		Timestamp: ts,
		Project:   project,
		Branch:    branch,
		EventType: classify(body),
		Text:      body,
	}, true
}

func classify(body string) EventType {
	for _, m := range markerOrder {
		if strings.Contains(body, m.glyph) {
			return m.event
		}
	}
	return EventUnknown
}

// tzAbbrev matches a timezone abbreviation trailing the meridiem, e.g.
// "10:01 AM PST" -> "10:01 AM". Anchoring on AM|PM keeps it from also
// swallowing the meridiem itself when no timezone abbreviation follows.
var tzAbbrev = regexp.MustCompile(`(AM|PM)\s+[A-Z]{2,5}$`)

// ParseTimestamp supports "MM/DD HH:MM[:SS] AM|PM" and "HH:MM[:SS] AM|PM",
// optionally suffixed with a timezone abbreviation that is stripped before
// parsing. The missing year defaults to now's year; the date-less form
// defaults to today (now's date, in UTC).
func ParseTimestamp(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	s = tzAbbrev.ReplaceAllString(s, "$1")
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	layouts := []string{
		"1/2 3:04:05 PM",
		"1/2 3:04 PM",
		"3:04:05 PM",
		"3:04 PM",
	}

	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		hasDate := strings.Contains(layout, "1/2")
		year := now.Year()
		month := now.Month()
		day := now.Day()
		if hasDate {
			month = t.Month()
			day = t.Day()
		}
		return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), 0, time.UTC), true
	}

	return time.Time{}, false
}
