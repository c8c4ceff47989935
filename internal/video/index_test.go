package video

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestIndex(t *testing.T) (*Index, string) {
	t.Helper()
	dir := t.TempDir()
	ix, err := OpenIndex(filepath.Join(dir, "index.db"), testLogger())
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	t.Cleanup(func() { ix.Close() })
	return ix, dir
}

func TestIndexRecordAndStats(t *testing.T) {
	ix, _ := newTestIndex(t)

	if err := ix.Record("abc123", "abc123.m4a", 100); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := ix.Record("def456", "def456.m4a", 200); err != nil {
		t.Fatalf("Record: %v", err)
	}
	// Re-recording the same id replaces, not duplicates.
	if err := ix.Record("abc123", "abc123.m4a", 150); err != nil {
		t.Fatalf("Record: %v", err)
	}

	count, bytes, err := ix.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 entries, got %d", count)
	}
	if bytes != 350 {
		t.Errorf("expected 350 bytes, got %d", bytes)
	}
}

func TestIndexReconcile(t *testing.T) {
	ix, dir := newTestIndex(t)

	// Tracked but missing on disk.
	if err := ix.Record("gone", "gone.m4a", 10); err != nil {
		t.Fatalf("Record: %v", err)
	}
	// On disk but untracked.
	if err := os.WriteFile(filepath.Join(dir, "found.m4a"), []byte("audio"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	// Non-audio files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "index.db-journal"), nil, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := ix.Reconcile(dir); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	count, bytes, err := ix.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 entry after reconcile, got %d", count)
	}
	if bytes != 5 {
		t.Errorf("expected 5 bytes, got %d", bytes)
	}
}
