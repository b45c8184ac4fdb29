package lock

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

func TestFileLock_AcquireRelease(t *testing.T) {
	dir := t.TempDir()
	l := NewFileLock(dir)
	ctx := context.Background()

	ok, err := l.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !ok {
		t.Fatal("expected to acquire a free lock")
	}

	data, err := os.ReadFile(filepath.Join(dir, MarkerFile))
	if err != nil {
		t.Fatalf("marker not written: %v", err)
	}
	if string(data) != "processing\n" {
		t.Errorf("unexpected marker content %q", data)
	}

	held, _ := l.Held(ctx)
	if !held {
		t.Error("expected Held after Acquire")
	}

	if err := l.Release(ctx); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(l.Path()); !os.IsNotExist(err) {
		t.Errorf("expected marker removed, stat err = %v", err)
	}

	// No temp files left behind
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected empty dir, found %d entries", len(entries))
	}
}

func TestFileLock_Contention(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := NewFileLock(dir)
	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first Acquire = %v, %v", ok, err)
	}

	second := NewFileLock(dir)
	ok, err := second.Acquire(ctx)
	if err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}
	if ok {
		t.Fatal("expected second instance to be refused")
	}

	// Refusal must not touch the marker
	held, _ := first.Held(ctx)
	if !held {
		t.Error("marker changed by refused Acquire")
	}
}

func TestFileLock_ReleaseIdempotent(t *testing.T) {
	l := NewFileLock(t.TempDir())
	ctx := context.Background()

	if err := l.Release(ctx); err != nil {
		t.Fatalf("Release without marker failed: %v", err)
	}
	if ok, _ := l.Acquire(ctx); !ok {
		t.Fatal("expected Acquire to succeed")
	}
	if err := l.Release(ctx); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := l.Release(ctx); err != nil {
		t.Fatalf("second Release failed: %v", err)
	}
}

func TestFileLock_StaleContentIsNotAHolder(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, MarkerFile)
	if err := os.WriteFile(marker, []byte("stopped\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewFileLock(dir)
	ok, err := l.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !ok {
		t.Fatal("expected marker without processing state to be taken over")
	}

	data, _ := os.ReadFile(marker)
	if string(data) != "processing\n" {
		t.Errorf("unexpected marker content %q", data)
	}
}

func TestFileLock_DiscardKeepsReplacedMarker(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	marker := filepath.Join(dir, MarkerFile)
	if err := os.WriteFile(marker, []byte("stopped\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	slow := NewFileLock(dir)
	state, seen, err := slow.inspect()
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if state != "stopped" {
		t.Fatalf("unexpected state %q", state)
	}

	// Another instance clears the leftover and takes the lock first
	if err := os.Remove(marker); err != nil {
		t.Fatal(err)
	}
	fast := NewFileLock(dir)
	if ok, err := fast.Acquire(ctx); err != nil || !ok {
		t.Fatalf("Acquire = %v, %v", ok, err)
	}

	if err := slow.discard(seen); err != nil {
		t.Fatalf("discard failed: %v", err)
	}
	data, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("live marker was removed: %v", err)
	}
	if string(data) != "processing\n" {
		t.Errorf("unexpected marker content %q", data)
	}

	if ok, err := slow.Acquire(ctx); err != nil || ok {
		t.Errorf("second Acquire = %v, %v, want contention", ok, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the marker in %s, got %d entries", dir, len(entries))
	}
}

func TestFileLock_CreatesStorageDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	l := NewFileLock(dir)

	if ok, err := l.Acquire(context.Background()); err != nil || !ok {
		t.Fatalf("Acquire = %v, %v", ok, err)
	}
}

func TestFileLock_ConcurrentAcquire(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := NewFileLock(dir).Acquire(ctx)
			if err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			if ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if n := winners.Load(); n != 1 {
		t.Errorf("expected exactly one holder, got %d", n)
	}
}

func TestFileLock_HeldWithoutMarker(t *testing.T) {
	held, err := NewFileLock(t.TempDir()).Held(context.Background())
	if err != nil {
		t.Fatalf("Held failed: %v", err)
	}
	if held {
		t.Error("expected not held")
	}
}
