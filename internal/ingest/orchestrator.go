package ingest

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"distributionScope/internal/decode"
	"distributionScope/internal/storage"
)

// Orchestrator decides each event type's starting block, runs its backfill,
// then hands off to a live poller. Event types are independent: a failure in
// one does not stop the others.
type Orchestrator struct {
	registry *decode.Registry
	backfill *Backfill
	poller   *Poller
	store    storage.EventStore
	logger   *zap.Logger

	// overrideBlock applies to all active event types when set. Positive
	// means backfill from that block; zero or negative means wipe the
	// type's records and resync from its genesis block.
	overrideBlock *int64
}

func NewOrchestrator(registry *decode.Registry, backfill *Backfill, poller *Poller, store storage.EventStore, logger *zap.Logger, overrideBlock *int64) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		registry:      registry,
		backfill:      backfill,
		poller:        poller,
		store:         store,
		logger:        logger,
		overrideBlock: overrideBlock,
	}
}

// Run starts one ingestion unit per active event type and blocks until all
// of them have stopped.
func (o *Orchestrator) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, spec := range o.registry.Specs() {
		if !spec.Active {
			o.logger.Info("event type inactive, skipping", zap.String("event", spec.Name))
			continue
		}

		wg.Add(1)
		go func(spec decode.EventSpec) {
			defer wg.Done()
			if err := o.runEvent(ctx, spec); err != nil && ctx.Err() == nil {
				o.logger.Error("ingestion stopped",
					zap.Error(err),
					zap.String("event", spec.Name),
				)
			}
		}(spec)
	}

	wg.Wait()
	return ctx.Err()
}

func (o *Orchestrator) runEvent(ctx context.Context, spec decode.EventSpec) error {
	start, err := o.startBlock(ctx, spec)
	if err != nil {
		return err
	}

	reached, err := o.backfill.Run(ctx, spec, start)
	if err != nil {
		// Live polling must not start without a valid cursor.
		return fmt.Errorf("backfill: %w", err)
	}

	return o.poller.Run(ctx, spec, reached+1)
}

// startBlock resolves where ingestion begins: explicit positive override,
// wipe-and-resync on a non-positive override, resume from the store, or the
// type's genesis block.
func (o *Orchestrator) startBlock(ctx context.Context, spec decode.EventSpec) (uint64, error) {
	if o.overrideBlock != nil {
		if *o.overrideBlock > 0 {
			o.logger.Info("start block override",
				zap.String("event", spec.Name),
				zap.Int64("block", *o.overrideBlock),
			)
			return uint64(*o.overrideBlock), nil
		}

		o.logger.Info("wiping stored events for full resync", zap.String("event", spec.Name))
		if err := o.store.DeleteAll(ctx, spec.Name); err != nil {
			return 0, fmt.Errorf("delete events: %w", err)
		}
		return spec.StartBlock, nil
	}

	last, ok, err := o.store.LastBlock(ctx, spec.Name)
	if err != nil {
		return 0, fmt.Errorf("query last block: %w", err)
	}
	if ok {
		o.logger.Info("resuming from store",
			zap.String("event", spec.Name),
			zap.Uint64("last_block", last),
		)
		return last + 1, nil
	}

	o.logger.Info("no stored events, starting from genesis",
		zap.String("event", spec.Name),
		zap.Uint64("genesis", spec.StartBlock),
	)
	return spec.StartBlock, nil
}
