package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openbridge-labs/bridge-relay/internal/chain"
)

// Outcome is the result of offering one event to the tracker.
type Outcome int

const (
	// Delivered means this call relayed the event and recorded it.
	Delivered Outcome = iota
	// AlreadyProcessed means the tx hash was relayed before; no
	// network call was made, or a concurrent delivery won the record.
	AlreadyProcessed
	// Failed means delivery did not succeed and the event stays
	// eligible for a future attempt.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case AlreadyProcessed:
		return "already_processed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ProcessedStore records which source transactions have been relayed.
// MarkProcessed must be an atomic check-and-set per key: it reports
// whether the caller inserted the hash or lost to an earlier insert.
type ProcessedStore interface {
	IsProcessed(ctx context.Context, txHash string) (bool, error)
	MarkProcessed(ctx context.Context, txHash string, block uint64) (bool, error)
}

// Tracker enforces at-most-one successful relay per source transaction.
// Dedup runs here, on transaction identity, because the destination's
// idempotency semantics are unknown.
type Tracker struct {
	store         ProcessedStore
	sender        Sender
	sourceChainID uint64
	log           *slog.Logger
}

// NewTracker wires the dedup store and the delivery client.
func NewTracker(store ProcessedStore, sender Sender, sourceChainID uint64, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		store:         store,
		sender:        sender,
		sourceChainID: sourceChainID,
		log:           log,
	}
}

// Process turns one event into exactly one delivery attempt outcome.
// The hash is recorded only after the destination confirms, so a failed
// delivery leaves the event re-attemptable.
func (t *Tracker) Process(ctx context.Context, ev chain.LockEvent) (Outcome, error) {
	txHash := ev.TxHash.Hex()

	seen, err := t.store.IsProcessed(ctx, txHash)
	if err != nil {
		return Failed, fmt.Errorf("check processed %s: %w", txHash, err)
	}
	if seen {
		t.log.Warn("skipping already relayed transaction",
			"tx", txHash, "block", ev.BlockNumber)
		return AlreadyProcessed, nil
	}

	payload := NewPayload(ev, t.sourceChainID)
	if err := t.sender.Send(ctx, payload); err != nil {
		t.log.Error("delivery failed, will retry if seen again",
			"tx", txHash, "block", ev.BlockNumber, "error", err)
		return Failed, nil
	}

	inserted, err := t.store.MarkProcessed(ctx, txHash, ev.BlockNumber)
	if err != nil {
		return Failed, fmt.Errorf("mark processed %s: %w", txHash, err)
	}
	if !inserted {
		// A concurrent delivery of the same tx won the record first;
		// report this one as a duplicate so only one caller sees
		// Delivered.
		return AlreadyProcessed, nil
	}

	t.log.Info("relayed event",
		"tx", txHash, "block", ev.BlockNumber,
		"amount", ev.Amount.String(), "destination_chain", ev.DestinationChainID.Uint64())
	return Delivered, nil
}
