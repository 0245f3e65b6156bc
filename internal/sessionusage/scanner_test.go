package sessionusage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/facility-ops/exporter/internal/slugs"
)

func writeProject(t *testing.T, orgRoot, name, slug string) {
	t.Helper()
	dir := filepath.Join(orgRoot, name)
	marker := filepath.Join(dir, ".facility")
	if err := os.MkdirAll(marker, 0755); err != nil {
		t.Fatal(err)
	}
	body := "---\ncontent_slug: " + slug + "\n---\n"
	if err := os.WriteFile(filepath.Join(marker, "project.md"), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func dashEncodeForTest(path string) string {
	out := make([]byte, len(path))
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			out[i] = '-'
		} else {
			out[i] = path[i]
		}
	}
	return string(out)
}

func TestScanAggregatesTokensBySlugDateModel(t *testing.T) {
	base := t.TempDir()
	orgRoot := filepath.Join(base, "org")
	writeProject(t, orgRoot, "repo-a", "slug-a")

	sessionRoot := filepath.Join(base, "sessions")
	encoded := dashEncodeForTest(orgRoot) + "-repo-a"
	sessDir := filepath.Join(sessionRoot, encoded)
	if err := os.MkdirAll(sessDir, 0755); err != nil {
		t.Fatal(err)
	}

	line := `{"requestId":"r1","timestamp":"2026-08-01T10:00:00Z","message":{"model":"claude-3","usage":{"input_tokens":10,"output_tokens":5}}}` + "\n" +
		`{"requestId":"r1","timestamp":"2026-08-01T10:00:01Z","message":{"model":"claude-3","usage":{"input_tokens":999,"output_tokens":999}}}` + "\n"
	if err := os.WriteFile(filepath.Join(sessDir, "session1.jsonl"), []byte(line), 0644); err != nil {
		t.Fatal(err)
	}

	resolver := slugs.NewResolver()
	scanner := NewScanner(sessionRoot, orgRoot, resolver)
	result, err := scanner.Scan()
	if err != nil {
		t.Fatal(err)
	}

	got := result["slug-a"]["2026-08-01"]["claude-3"]
	if got != 15 {
		t.Fatalf("expected deduped sum of 15 (first record only), got %d", got)
	}
}

func TestScanSkipsUnresolvedProjects(t *testing.T) {
	base := t.TempDir()
	orgRoot := filepath.Join(base, "org")
	os.MkdirAll(filepath.Join(orgRoot, "untracked"), 0755)

	sessionRoot := filepath.Join(base, "sessions")
	encoded := dashEncodeForTest(orgRoot) + "-untracked"
	os.MkdirAll(filepath.Join(sessionRoot, encoded), 0755)

	resolver := slugs.NewResolver()
	scanner := NewScanner(sessionRoot, orgRoot, resolver)
	result, err := scanner.Scan()
	if err != nil {
		t.Fatal(err)
	}
	if len(result) != 0 {
		t.Fatalf("expected no results for untracked project, got %+v", result)
	}
}
