package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openbridge-labs/bridge-relay/internal/chain"
	"github.com/openbridge-labs/bridge-relay/internal/metrics"
	"github.com/openbridge-labs/bridge-relay/internal/relay"
	"github.com/openbridge-labs/bridge-relay/internal/scanner"
)

// State labels the orchestrator lifecycle for logs.
type State string

const (
	StateInitializing State = "initializing"
	StateRunning      State = "running"
	StateRecovering   State = "recovering"
	StateShuttingDown State = "shutting_down"
)

// Source produces batches of events for consecutive safe windows and
// commits scan progress.
type Source interface {
	Scan(ctx context.Context) (*scanner.Batch, error)
	Commit(ctx context.Context, w scanner.Window) error
}

// Processor turns one event into a delivery outcome.
type Processor interface {
	Process(ctx context.Context, ev chain.LockEvent) (relay.Outcome, error)
}

// Options tune the orchestrator loop.
type Options struct {
	PollInterval time.Duration
	Cooldown     time.Duration
	// Concurrency bounds in-flight deliveries within one window.
	// One means strictly sequential processing.
	Concurrency int
	Once        bool
	DryRun      bool
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

// Orchestrator drives the scan→process cycle. One cycle completes fully,
// including every delivery attempt of its window, before the next window
// is planned.
type Orchestrator struct {
	source    Source
	processor Processor
	opts      Options

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New wires the scanner and tracker into the cycle loop.
func New(source Source, processor Processor, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 15 * time.Second
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 30 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Orchestrator{
		source:    source,
		processor: processor,
		opts:      opts,
		sleep:     sleepCtx,
	}
}

// Run repeats the cycle until the context is cancelled. Errors escaping
// a cycle body never terminate the loop: they trigger a cooldown and a
// return to running. A nil return means clean shutdown.
func (o *Orchestrator) Run(ctx context.Context) error {
	log := o.opts.Logger
	log.Info("state transition", "state", StateRunning)

	for {
		err := o.safeCycle(ctx)

		if ctx.Err() != nil {
			log.Info("state transition", "state", StateShuttingDown)
			return nil
		}

		if err != nil {
			log.Error("unexpected cycle failure, cooling down",
				"state", StateRecovering, "cooldown", o.opts.Cooldown, "error", err)
			o.opts.Metrics.CycleFailures()
			if serr := o.sleep(ctx, o.opts.Cooldown); serr != nil {
				log.Info("state transition", "state", StateShuttingDown)
				return nil
			}
			log.Info("state transition", "state", StateRunning)
			continue
		}

		if o.opts.Once {
			return nil
		}
		if serr := o.sleep(ctx, o.opts.PollInterval); serr != nil {
			log.Info("state transition", "state", StateShuttingDown)
			return nil
		}
	}
}

// safeCycle shields the loop from panics escaping the cycle body.
func (o *Orchestrator) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()
	return o.cycle(ctx)
}

func (o *Orchestrator) cycle(ctx context.Context) error {
	log := o.opts.Logger
	o.opts.Metrics.Cycles()

	batch, err := o.source.Scan(ctx)
	if err != nil {
		// Transient scan failure: the cursor is untouched, so the same
		// window is retried next cycle. Handled here, not escalated.
		log.Error("scan failed, window will be retried", "error", err)
		o.opts.Metrics.ScanErrors()
		return nil
	}
	if batch == nil {
		return nil
	}

	o.opts.Metrics.EventsScanned(len(batch.Events))

	if o.opts.DryRun {
		for _, ev := range batch.Events {
			log.Info("dry-run: would relay event",
				"tx", ev.TxHash.Hex(), "block", ev.BlockNumber)
		}
	} else if done, err := o.processBatch(ctx, batch.Events); err != nil {
		return err
	} else if !done {
		// Shutdown interrupted the batch between deliveries. Leaving
		// the window uncommitted rescans it in full; dedup absorbs the
		// part already delivered.
		return nil
	}

	if err := o.source.Commit(ctx, batch.Window); err != nil {
		return err
	}
	o.opts.Metrics.SetLastScannedBlock(batch.Window.To)

	log.Info("cycle complete",
		"from", batch.Window.From, "to", batch.Window.To, "events", len(batch.Events))
	return nil
}

// processBatch attempts delivery of every event in the window, in order
// for the sequential case. done is false when cancellation stopped the
// batch early; the in-flight event is always allowed to finish.
func (o *Orchestrator) processBatch(ctx context.Context, events []chain.LockEvent) (done bool, err error) {
	if o.opts.Concurrency <= 1 {
		// Shutdown is observed between events only; a delivery attempt
		// already on the wire must run to completion, or the destination
		// could accept a payload the processed set never records.
		pctx := context.WithoutCancel(ctx)
		for _, ev := range events {
			if ctx.Err() != nil {
				return false, nil
			}
			out, err := o.processor.Process(pctx, ev)
			if err != nil {
				return false, err
			}
			o.observe(ev, out)
		}
		return true, nil
	}

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(o.opts.Concurrency)
	for _, ev := range events {
		if ctx.Err() != nil {
			// Stop dispatching; wait for in-flight deliveries.
			if werr := g.Wait(); werr != nil {
				return false, werr
			}
			return false, nil
		}
		ev := ev
		g.Go(func() error {
			out, err := o.processor.Process(gctx, ev)
			if err != nil {
				return err
			}
			o.observe(ev, out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}
	return true, nil
}

func (o *Orchestrator) observe(ev chain.LockEvent, out relay.Outcome) {
	o.opts.Logger.Info("delivery outcome",
		"tx", ev.TxHash.Hex(), "block", ev.BlockNumber, "outcome", out.String())
	switch out {
	case relay.Delivered:
		o.opts.Metrics.RelaysDelivered()
	case relay.AlreadyProcessed:
		o.opts.Metrics.RelaysDuplicate()
	case relay.Failed:
		o.opts.Metrics.RelaysFailed()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
