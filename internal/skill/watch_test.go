package skill

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchRediscovers(t *testing.T) {
	root := t.TempDir()
	r := NewRegistry([]string{root}, nil)
	if err := r.Discover(); err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if len(r.List()) != 0 {
		t.Fatalf("catalog should start empty, got %d skills", len(r.List()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx) }()

	// Let the watcher register the path before changing it.
	time.Sleep(100 * time.Millisecond)

	if err := os.MkdirAll(filepath.Join(root, "fresh-skill"), 0o755); err != nil {
		t.Fatalf("MkdirAll returned error: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := r.Get("fresh-skill"); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("watcher did not pick up the new skill")
		}
		time.Sleep(50 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Watch returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not stop after cancellation")
	}
}
