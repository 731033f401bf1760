package source

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatch_DebouncesFixtureChanges(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var changes atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, dir, 100*time.Millisecond, quietLogger(), func() { changes.Add(1) })
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 5; i++ {
		os.WriteFile(filepath.Join(dir, TreeFile), []byte(`{"tags":[]}`), 0o644)
		time.Sleep(10 * time.Millisecond)
	}
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644)

	deadline := time.Now().Add(3 * time.Second)
	for changes.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(300 * time.Millisecond)

	if got := changes.Load(); got != 1 {
		t.Errorf("onChange called %d times, want 1", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop")
	}
}

func TestWatch_NewDirectoryIsWatched(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 8)
	go Watch(ctx, dir, 50*time.Millisecond, quietLogger(), func() { changed <- struct{}{} })
	time.Sleep(100 * time.Millisecond)

	posts := filepath.Join(dir, PostsDir)
	os.Mkdir(posts, 0o755)
	waitChange(t, changed)

	time.Sleep(100 * time.Millisecond)
	os.WriteFile(filepath.Join(posts, "1.json"), []byte(`{}`), 0o644)
	waitChange(t, changed)
}

func waitChange(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change")
	}
}
