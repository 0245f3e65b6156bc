package visibility

import (
	"path/filepath"
	"testing"
)

func TestIsPublicConsultsEnumeratorOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.toml")

	calls := 0
	enum := func() ([]RepoRecord, error) {
		calls++
		return []RepoRecord{
			{Name: "open-repo", IsPrivate: false},
			{Name: "secret-repo", IsPrivate: true},
		}, nil
	}

	r, err := NewResolver(path, enum)
	if err != nil {
		t.Fatal(err)
	}

	pub, err := r.IsPublic("open-repo")
	if err != nil || !pub {
		t.Fatalf("want public, got %v, %v", pub, err)
	}

	priv, err := r.IsPublic("secret-repo")
	if err != nil || priv {
		t.Fatalf("want private, got %v, %v", priv, err)
	}

	// unknown repo defaults to private
	unknown, err := r.IsPublic("never-seen")
	if err != nil || unknown {
		t.Fatalf("want conservative default private, got %v, %v", unknown, err)
	}

	if calls != 1 {
		t.Fatalf("expected enumerator to run once, ran %d times", calls)
	}

	// Reload from disk to confirm the cache flushed.
	r2, err := NewResolver(path, func() ([]RepoRecord, error) {
		t.Fatal("enumerator should not run again; cache should be warm")
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	pub2, err := r2.IsPublic("open-repo")
	if err != nil || !pub2 {
		t.Fatalf("want cached public answer, got %v, %v", pub2, err)
	}
}
