package scanner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openbridge-labs/bridge-relay/internal/chain"
)

// SourceID keys the scan cursor in the cursor store. The relay watches a
// single source ledger, so the key is fixed.
const SourceID = "source"

// CursorStore persists scan progress across restarts.
type CursorStore interface {
	GetCursor(ctx context.Context, sourceID string) (uint64, bool, error)
	PutCursor(ctx context.Context, sourceID string, height uint64) error
}

// Batch is the result of one successful window fetch. Events are ordered
// as returned by the node. The caller commits the window once every
// event has been offered downstream; an uncommitted window is rescanned
// in full on the next cycle.
type Batch struct {
	Window Window
	Events []chain.LockEvent
}

// Scanner produces decoded bridge events for consecutive safe windows
// and advances the cursor exactly once per committed window.
type Scanner struct {
	client        chain.Client
	decoder       *chain.Decoder
	cursors       CursorStore
	startBlock    uint64
	confirmations uint64
	chunkLimit    uint64
	log           *slog.Logger

	// lastScanned mirrors the persisted cursor; -1 until the first
	// window for a fresh start block commits.
	lastScanned int64
	loaded      bool
}

// New builds a scanner. The cursor is loaded lazily on the first Scan so
// construction never touches the store.
func New(client chain.Client, decoder *chain.Decoder, cursors CursorStore, startBlock, confirmations, chunkLimit uint64, log *slog.Logger) *Scanner {
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{
		client:        client,
		decoder:       decoder,
		cursors:       cursors,
		startBlock:    startBlock,
		confirmations: confirmations,
		chunkLimit:    chunkLimit,
		log:           log,
	}
}

// Scan fetches decoded events for the next safe window. A nil batch with
// a nil error means there is nothing to scan yet. Any error leaves the
// cursor untouched, so the same window is retried on the next cycle;
// duplicates produced by such retries are absorbed downstream by tx-hash
// dedup.
func (s *Scanner) Scan(ctx context.Context) (*Batch, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}

	height, err := s.client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain height: %w", err)
	}

	w, ok := PlanWindow(s.lastScanned, height, s.confirmations, s.chunkLimit)
	if !ok {
		s.log.Debug("no new confirmed blocks",
			"head", height, "last_scanned", s.lastScanned)
		return nil, nil
	}

	logs, err := s.client.FilterLogs(ctx, s.decoder.Query(w.From, w.To))
	if err != nil {
		return nil, fmt.Errorf("fetch logs [%d, %d]: %w", w.From, w.To, err)
	}

	events := make([]chain.LockEvent, 0, len(logs))
	for _, lg := range logs {
		ev, matched, err := s.decoder.Decode(lg)
		if err != nil {
			return nil, fmt.Errorf("decode log in block %d: %w", lg.BlockNumber, err)
		}
		if !matched {
			continue
		}
		events = append(events, *ev)
	}

	s.log.Info("scanned window",
		"from", w.From, "to", w.To, "events", len(events))
	return &Batch{Window: w, Events: events}, nil
}

// Commit persists the window as fully scanned. An empty window must be
// committed too, or it would be rescanned forever.
func (s *Scanner) Commit(ctx context.Context, w Window) error {
	if err := s.cursors.PutCursor(ctx, SourceID, w.To); err != nil {
		return fmt.Errorf("commit window [%d, %d]: %w", w.From, w.To, err)
	}
	s.lastScanned = int64(w.To)
	return nil
}

// LastScanned exposes the in-memory cursor, mainly for observability.
func (s *Scanner) LastScanned() int64 {
	return s.lastScanned
}

func (s *Scanner) load(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	h, ok, err := s.cursors.GetCursor(ctx, SourceID)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}
	if ok {
		s.lastScanned = int64(h)
	} else {
		s.lastScanned = int64(s.startBlock) - 1
	}
	s.loaded = true
	return nil
}
