package workflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.yaml")
	if err := os.WriteFile(path, []byte("nodes:\n  - id: a\n    data: {title: A}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *FileDocument, 4)
	w, err := NewWatcher(path, 20*time.Millisecond, nil, func(doc *FileDocument) {
		reloaded <- doc
	})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("nodes:\n  - id: a\n  - id: b\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case doc := <-reloaded:
		if len(doc.AllNodes()) != 2 {
			t.Errorf("reloaded doc has %d nodes, want 2", len(doc.AllNodes()))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestNewWatcher_MissingDir(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "nope", "flow.yaml"), 0, nil, func(*FileDocument) {})
	if err == nil {
		t.Error("NewWatcher() on a missing directory should fail")
	}
}
