package slugs

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMarker(t *testing.T, projectDir, contentSlug string) {
	t.Helper()
	markerPath := filepath.Join(projectDir, markerDir)
	if err := os.MkdirAll(markerPath, 0755); err != nil {
		t.Fatal(err)
	}
	body := "---\ncontent_slug: " + contentSlug + "\n---\n"
	if err := os.WriteFile(filepath.Join(markerPath, markerFile), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveUsesContentSlug(t *testing.T) {
	dir := t.TempDir()
	proj := filepath.Join(dir, "my-repo")
	os.MkdirAll(proj, 0755)
	writeMarker(t, proj, "canonical-slug")

	r := NewResolver()
	slug, ok := r.Resolve(proj)
	if !ok || slug != "canonical-slug" {
		t.Fatalf("Resolve = %q, %v, want canonical-slug, true", slug, ok)
	}
}

func TestResolveNoMarkerIsNotTracked(t *testing.T) {
	dir := t.TempDir()
	proj := filepath.Join(dir, "untracked")
	os.MkdirAll(proj, 0755)

	r := NewResolver()
	_, ok := r.Resolve(proj)
	if ok {
		t.Fatal("expected not tracked")
	}
}

func TestResolveFallsBackToBasename(t *testing.T) {
	dir := t.TempDir()
	proj := filepath.Join(dir, "bare-project")
	os.MkdirAll(filepath.Join(proj, markerDir), 0755)

	r := NewResolver()
	slug, ok := r.Resolve(proj)
	if !ok || slug != "bare-project" {
		t.Fatalf("Resolve = %q, %v, want bare-project, true", slug, ok)
	}
}

func TestClearCache(t *testing.T) {
	dir := t.TempDir()
	proj := filepath.Join(dir, "repo")
	os.MkdirAll(proj, 0755)
	writeMarker(t, proj, "first")

	r := NewResolver()
	slug, _ := r.Resolve(proj)
	if slug != "first" {
		t.Fatalf("got %q", slug)
	}

	writeMarker(t, proj, "second")
	slug, _ = r.Resolve(proj)
	if slug != "first" {
		t.Fatal("expected cached value before ClearCache")
	}

	r.ClearCache()
	slug, _ = r.Resolve(proj)
	if slug != "second" {
		t.Fatalf("expected refreshed value after ClearCache, got %q", slug)
	}
}

func TestResolveFallsBackToBasenameOnUnclosedFrontmatter(t *testing.T) {
	dir := t.TempDir()
	proj := filepath.Join(dir, "odd-project")
	markerPath := filepath.Join(proj, markerDir)
	os.MkdirAll(markerPath, 0755)
	os.WriteFile(filepath.Join(markerPath, markerFile), []byte("---\ncontent_slug: x\n"), 0644)

	r := NewResolver()
	slug, ok := r.Resolve(proj)
	if !ok || slug != "odd-project" {
		t.Fatalf("Resolve = %q, %v, want odd-project, true", slug, ok)
	}
}

func TestResolveSessionDirLongestFirst(t *testing.T) {
	dir := t.TempDir()
	orgRoot := filepath.Join(dir, "org")
	os.MkdirAll(filepath.Join(orgRoot, "repo"), 0755)
	os.MkdirAll(filepath.Join(orgRoot, "repo-x"), 0755)

	encoded := dashEncode(orgRoot) + "-repo-x"
	matched, ok := ResolveSessionDir(orgRoot, encoded)
	if !ok || matched != "repo-x" {
		t.Fatalf("ResolveSessionDir = %q, %v, want repo-x, true", matched, ok)
	}
}

func TestResolveSessionDirNoMatchOutsideOrgRoot(t *testing.T) {
	dir := t.TempDir()
	orgRoot := filepath.Join(dir, "org")
	os.MkdirAll(filepath.Join(orgRoot, "repo"), 0755)

	_, ok := ResolveSessionDir(orgRoot, "-some-other-root-repo")
	if ok {
		t.Fatal("expected no match for encoded path outside org root")
	}
}

func TestDiffDetectsRename(t *testing.T) {
	previous := map[string]string{"dir-x": "slug-old"}
	current := map[string]string{"dir-x": "slug-new"}

	renames := Diff(previous, current)
	if len(renames) != 1 || renames[0].Old != "slug-old" || renames[0].New != "slug-new" {
		t.Fatalf("unexpected renames: %+v", renames)
	}
}

func TestSaveAndLoadMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slugmap.toml")
	m := map[string]string{"a": "slug-a", "b": "slug-b"}

	if err := SaveMap(path, m); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadMap(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 2 || loaded["a"] != "slug-a" {
		t.Fatalf("got %+v", loaded)
	}
}

func TestLoadMapMissingFileIsEmpty(t *testing.T) {
	m, err := LoadMap(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(m) != 0 {
		t.Fatalf("expected empty map, got %+v", m)
	}
}
