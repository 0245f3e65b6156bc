package servicemgr

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureSymlinkCreatesWhenMissing(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.plist")
	if err := os.WriteFile(source, []byte("plist"), 0644); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(dir, "nested", "target.plist")

	if err := EnsureSymlink(source, target); err != nil {
		t.Fatal(err)
	}

	resolved, err := os.Readlink(target)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != source {
		t.Errorf("symlink points at %q, want %q", resolved, source)
	}
}

func TestEnsureSymlinkNoopWhenAlreadyPresent(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.plist")
	os.WriteFile(source, []byte("plist"), 0644)
	target := filepath.Join(dir, "target.plist")
	if err := os.Symlink(source, target); err != nil {
		t.Fatal(err)
	}

	if err := EnsureSymlink(source, target); err != nil {
		t.Fatalf("expected no-op success, got %v", err)
	}
}

func TestEnsureSymlinkFailsWhenSourceMissing(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.plist")

	if err := EnsureSymlink(filepath.Join(dir, "missing.plist"), target); err == nil {
		t.Fatal("expected error when source plist is missing")
	}
}

func TestNewManagerReturnsNilWhenBinaryMissing(t *testing.T) {
	if m := NewManager("definitely-not-a-real-binary-xyz", "com.facility.exporter"); m != nil {
		t.Fatal("expected nil Manager for a missing binary")
	}
}
