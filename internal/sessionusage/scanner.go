// Package sessionusage walks per-session record files and aggregates
// token counters per project/date/model, deduplicating by request id
// and session filename.
package sessionusage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/facility-ops/exporter/internal/slugs"
)

// TokenUsage mirrors the optional, open-ended usage object on a session
// record. Missing fields default to zero rather than failing decode.
type TokenUsage struct {
	InputTokens              int `json:"input_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	OutputTokens             int `json:"output_tokens"`
}

// Sum totals the four counters that make up one usage contribution.
func (u TokenUsage) Sum() int {
	return u.InputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens + u.OutputTokens
}

type record struct {
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp"`
	Message   struct {
		Model string      `json:"model"`
		Usage *TokenUsage `json:"usage"`
	} `json:"message"`
}

// Result is the nested slug -> date -> model -> token-sum output.
type Result map[string]map[string]map[string]int

func (r Result) add(slug, date, model string, tokens int) {
	byDate, ok := r[slug]
	if !ok {
		byDate = make(map[string]map[string]int)
		r[slug] = byDate
	}
	byModel, ok := byDate[date]
	if !ok {
		byModel = make(map[string]int)
		byDate[date] = byModel
	}
	byModel[model] += tokens
}

// Scanner walks the per-session root and aggregates token usage.
type Scanner struct {
	sessionRoot string // external per-session root, e.g. ~/.facility/projects
	orgRoot     string // canonical organization root of on-disk project directories
	resolver    *slugs.Resolver
}

// NewScanner returns a Scanner rooted at sessionRoot, matching encoded
// session directories against orgRoot's on-disk project directories.
func NewScanner(sessionRoot, orgRoot string, resolver *slugs.Resolver) *Scanner {
	return &Scanner{sessionRoot: sessionRoot, orgRoot: orgRoot, resolver: resolver}
}

// Scan walks every subdirectory of the session root, resolves it to an
// on-disk project directory and then a slug, and aggregates tokens from
// its session files.
func (s *Scanner) Scan() (Result, error) {
	entries, err := os.ReadDir(s.sessionRoot)
	if err != nil {
		return nil, err
	}

	result := make(Result)
	seen := make(map[string]map[string]bool) // slug -> dedup key -> seen

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		projectDirName, ok := slugs.ResolveSessionDir(s.orgRoot, e.Name())
		if !ok {
			continue
		}

		slug, ok := s.resolver.Resolve(filepath.Join(s.orgRoot, projectDirName))
		if !ok {
			continue
		}

		dedup, ok := seen[slug]
		if !ok {
			dedup = make(map[string]bool)
			seen[slug] = dedup
		}

		sessionDir := filepath.Join(s.sessionRoot, e.Name())
		if err := scanSessionDir(sessionDir, slug, dedup, result); err != nil {
			continue
		}
	}

	return result, nil
}

// scanSessionDir picks up top-level *.jsonl files and nested
// <session-id>/subagents/*.jsonl files, deduplicating by dedup key.
func scanSessionDir(dir, slug string, dedup map[string]bool, result Result) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jsonl") {
			key := e.Name()
			if dedup[key] {
				continue
			}
			dedup[key] = true
			parseFile(filepath.Join(dir, e.Name()), slug, result)
			continue
		}

		if e.IsDir() {
			subDir := filepath.Join(dir, e.Name(), "subagents")
			subEntries, err := os.ReadDir(subDir)
			if err != nil {
				continue
			}
			for _, se := range subEntries {
				if se.IsDir() || !strings.HasSuffix(se.Name(), ".jsonl") {
					continue
				}
				key := e.Name() + "/subagents/" + se.Name()
				if dedup[key] {
					continue
				}
				dedup[key] = true
				parseFile(filepath.Join(subDir, se.Name()), slug, result)
			}
		}
	}
	return nil
}

// parseFile decodes a single session file, pre-filtering lines by a
// substring test for "usage" before JSON decoding. Records with a
// non-empty requestId are deduplicated per-file.
func parseFile(path, slug string, result Result) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	fileSeen := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, "usage") {
			continue
		}

		var rec record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		if rec.Message.Usage == nil {
			continue
		}
		if rec.Message.Model == "" || rec.Timestamp == "" {
			continue
		}
		if rec.RequestID != "" {
			if fileSeen[rec.RequestID] {
				continue
			}
			fileSeen[rec.RequestID] = true
		}

		date := rec.Timestamp
		if len(date) > 10 {
			date = date[:10]
		}

		result.add(slug, date, rec.Message.Model, rec.Message.Usage.Sum())
	}
}
