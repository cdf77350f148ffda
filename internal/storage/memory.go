package storage

import (
	"context"
	"sync"
)

// Memory keeps the cursor and processed set in process memory. It serves
// deployments without a DB_PATH and tests; state is lost on restart, so
// a restarted process rescans from START_BLOCK and relies on the
// destination tolerating replays it has already accepted.
type Memory struct {
	mu        sync.Mutex
	cursors   map[string]uint64
	processed map[string]struct{}
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		cursors:   map[string]uint64{},
		processed: map[string]struct{}{},
	}
}

// PutCursor records the latest fully scanned height for a source.
func (m *Memory) PutCursor(_ context.Context, sourceID string, height uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[sourceID] = height
	return nil
}

// GetCursor retrieves the cursor for a source.
func (m *Memory) GetCursor(_ context.Context, sourceID string) (uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.cursors[sourceID]
	return h, ok, nil
}

// MarkProcessed adds a tx hash under the lock, reporting whether this
// call was the first to insert it.
func (m *Memory) MarkProcessed(_ context.Context, txHash string, _ uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.processed[txHash]; dup {
		return false, nil
	}
	m.processed[txHash] = struct{}{}
	return true, nil
}

// IsProcessed reports whether a tx hash has already been relayed.
func (m *Memory) IsProcessed(_ context.Context, txHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.processed[txHash]
	return ok, nil
}

// CountProcessed returns the size of the processed set.
func (m *Memory) CountProcessed(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.processed)), nil
}

// Ping always succeeds; there is nothing to reach.
func (m *Memory) Ping(_ context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error { return nil }
