package relay

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/openbridge-labs/bridge-relay/internal/storage"
)

type fakeSender struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeSender) Send(ctx context.Context, payload Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestProcessDeliversAndRecords(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{}
	store := storage.NewMemory()
	tracker := NewTracker(store, sender, 1, nil)

	out, err := tracker.Process(ctx, testEvent())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out != Delivered {
		t.Fatalf("outcome = %s, want delivered", out)
	}
	if sender.count() != 1 {
		t.Fatalf("sends = %d", sender.count())
	}
	ok, _ := store.IsProcessed(ctx, testEvent().TxHash.Hex())
	if !ok {
		t.Fatalf("hash should be recorded after success")
	}
}

func TestProcessIsIdempotent(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{}
	tracker := NewTracker(storage.NewMemory(), sender, 1, nil)

	if out, _ := tracker.Process(ctx, testEvent()); out != Delivered {
		t.Fatalf("first outcome = %s", out)
	}
	out, err := tracker.Process(ctx, testEvent())
	if err != nil {
		t.Fatalf("process dup: %v", err)
	}
	if out != AlreadyProcessed {
		t.Fatalf("outcome = %s, want already_processed", out)
	}
	if sender.count() != 1 {
		t.Fatalf("duplicate must not issue a network call, sends = %d", sender.count())
	}
}

func TestProcessFailureLeavesEventRetryable(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{err: errors.New("destination down")}
	store := storage.NewMemory()
	tracker := NewTracker(store, sender, 1, nil)

	out, err := tracker.Process(ctx, testEvent())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out != Failed {
		t.Fatalf("outcome = %s, want failed", out)
	}
	if ok, _ := store.IsProcessed(ctx, testEvent().TxHash.Hex()); ok {
		t.Fatalf("failed delivery must not enter the processed set")
	}

	// A later cycle re-offering the event attempts delivery again.
	sender.err = nil
	out, _ = tracker.Process(ctx, testEvent())
	if out != Delivered {
		t.Fatalf("retry outcome = %s, want delivered", out)
	}
	if sender.count() != 2 {
		t.Fatalf("sends = %d, want 2", sender.count())
	}
}

func TestProcessConcurrentSameHashAtMostOneSuccess(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(storage.NewMemory(), &fakeSender{}, 1, nil)

	const n = 16
	var wg sync.WaitGroup
	outcomes := make(chan Outcome, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := tracker.Process(ctx, testEvent())
			if err != nil {
				t.Errorf("process: %v", err)
				return
			}
			outcomes <- out
		}()
	}
	wg.Wait()
	close(outcomes)

	delivered := 0
	for out := range outcomes {
		switch out {
		case Delivered:
			delivered++
		case AlreadyProcessed, Failed:
		default:
			t.Errorf("unexpected outcome %s", out)
		}
	}
	if delivered != 1 {
		t.Fatalf("delivered = %d, want exactly 1", delivered)
	}
}

func TestOutcomeStrings(t *testing.T) {
	if Delivered.String() != "delivered" ||
		AlreadyProcessed.String() != "already_processed" ||
		Failed.String() != "failed" {
		t.Fatalf("outcome strings changed")
	}
}
