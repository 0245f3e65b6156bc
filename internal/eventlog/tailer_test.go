package eventlog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTailerPollAdvancesOffset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.log")
	if err := os.WriteFile(path, []byte("10:00 AM|a|-|🟢 start\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tail := NewTailer(path)
	entries, err := tail.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	offsetAfterFirst := tail.Offset()
	if offsetAfterFirst == 0 {
		t.Fatal("expected nonzero offset after ReadAll")
	}

	more, err := tail.Poll()
	if err != nil {
		t.Fatal(err)
	}
	if len(more) != 0 {
		t.Fatalf("expected no new entries, got %d", len(more))
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("10:01 AM|a|-|🔧 tool\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	more, err = tail.Poll()
	if err != nil {
		t.Fatal(err)
	}
	if len(more) != 1 {
		t.Fatalf("expected 1 new entry, got %d", len(more))
	}
	if tail.Offset() <= offsetAfterFirst {
		t.Error("expected offset to strictly increase")
	}
}

func TestTailerResetsOnTruncation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.log")
	os.WriteFile(path, []byte("10:00 AM|a|-|🟢 start\n10:01 AM|a|-|🔧 tool\n"), 0644)

	tail := NewTailer(path)
	if _, err := tail.ReadAll(); err != nil {
		t.Fatal(err)
	}

	os.WriteFile(path, []byte("10:02 AM|b|-|🏁 done\n"), 0644)

	entries, err := tail.Poll()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Project != "b" {
		t.Fatalf("expected the rotated file's single entry, got %+v", entries)
	}
}

func TestTailerFailedPollDoesNotAdvanceOffset(t *testing.T) {
	tail := NewTailer("/nonexistent/does/not/exist.log")
	entries, err := tail.Poll()
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if entries != nil {
		t.Fatalf("expected nil entries, got %v", entries)
	}
	if tail.Offset() != 0 {
		t.Errorf("expected offset to remain 0, got %d", tail.Offset())
	}
}
