package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCursorPutAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, ok, err := store.GetCursor(ctx, "source")
	if err != nil {
		t.Fatalf("get empty cursor: %v", err)
	}
	if ok {
		t.Fatalf("expected no cursor before first put")
	}

	if err := store.PutCursor(ctx, "source", 108); err != nil {
		t.Fatalf("put cursor: %v", err)
	}
	h, ok, err := store.GetCursor(ctx, "source")
	if err != nil || !ok || h != 108 {
		t.Fatalf("cursor = %d ok=%v err=%v", h, ok, err)
	}

	if err := store.PutCursor(ctx, "source", 5108); err != nil {
		t.Fatalf("put cursor update: %v", err)
	}
	h, _, _ = store.GetCursor(ctx, "source")
	if h != 5108 {
		t.Fatalf("cursor not updated: %d", h)
	}
}

func TestMarkProcessedIsCompareAndSet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inserted, err := store.MarkProcessed(ctx, "0xabc", 105)
	if err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	if !inserted {
		t.Fatalf("first insert should win")
	}

	inserted, err = store.MarkProcessed(ctx, "0xabc", 105)
	if err != nil {
		t.Fatalf("mark processed again: %v", err)
	}
	if inserted {
		t.Fatalf("second insert should lose")
	}

	ok, err := store.IsProcessed(ctx, "0xabc")
	if err != nil || !ok {
		t.Fatalf("hash should be processed, ok=%v err=%v", ok, err)
	}
	ok, err = store.IsProcessed(ctx, "0xdef")
	if err != nil || ok {
		t.Fatalf("unknown hash should not be processed, ok=%v err=%v", ok, err)
	}
}

func TestCountAndRecentProcessed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, h := range []string{"0x1", "0x2", "0x3"} {
		if _, err := store.MarkProcessed(ctx, h, 1); err != nil {
			t.Fatalf("mark %s: %v", h, err)
		}
	}

	n, err := store.CountProcessed(ctx)
	if err != nil || n != 3 {
		t.Fatalf("count = %d err=%v", n, err)
	}

	recent, err := store.RecentProcessed(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("recent = %v", recent)
	}
}

func TestPing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("ping failed: %v", err)
	}

	store.Close()
	if err := store.Ping(ctx); err == nil {
		t.Fatalf("expected ping to fail after close")
	}
}

func TestMemoryMarkProcessedConcurrent(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	wins := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted, err := mem.MarkProcessed(ctx, "0xabc", 1)
			if err != nil {
				t.Errorf("mark: %v", err)
				return
			}
			wins <- inserted
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for w := range wins {
		if w {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestMemoryCursor(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	if _, ok, _ := mem.GetCursor(ctx, "source"); ok {
		t.Fatalf("expected no cursor initially")
	}
	if err := mem.PutCursor(ctx, "source", 42); err != nil {
		t.Fatalf("put: %v", err)
	}
	h, ok, _ := mem.GetCursor(ctx, "source")
	if !ok || h != 42 {
		t.Fatalf("cursor = %d ok=%v", h, ok)
	}
}
