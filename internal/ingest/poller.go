package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"distributionScope/internal/decode"
	"distributionScope/internal/storage"
)

// Poller runs the live loop for one event type. It has two states: polling,
// and terminated on unrecoverable error. Termination is final; restarting is
// an external responsibility.
type Poller struct {
	chain    ChainSource
	reader   decode.ChainReader
	store    storage.EventStore
	logger   *zap.Logger
	interval time.Duration
}

func NewPoller(chain ChainSource, reader decode.ChainReader, store storage.EventStore, logger *zap.Logger, interval time.Duration) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Poller{
		chain:    chain,
		reader:   reader,
		store:    store,
		logger:   logger,
		interval: interval,
	}
}

// Run polls for new logs starting at cursor until the context is cancelled
// or an iteration fails. The sleep between iterations is the only back
// pressure against the node provider.
func (p *Poller) Run(ctx context.Context, spec decode.EventSpec, cursor uint64) error {
	logger := p.logger.With(zap.String("event", spec.Name))
	logger.Info("poller start", zap.Uint64("cursor", cursor), zap.Duration("interval", p.interval))

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		next, err := p.pollOnce(ctx, spec, cursor)
		if err != nil {
			logger.Error("poller terminated",
				zap.Error(err),
				zap.Uint64("cursor", cursor),
			)
			return err
		}
		cursor = next

		timer.Reset(p.interval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// pollOnce fetches logs from cursor to the current head and returns the next
// cursor: one past the highest block observed, or the unchanged cursor when
// the batch was empty. A log arriving later for an already-passed block is
// permanently missed; reorg rollback is out of scope.
func (p *Poller) pollOnce(ctx context.Context, spec decode.EventSpec, cursor uint64) (uint64, error) {
	logs, err := p.chain.FilterLogs(ctx, cursor, 0, spec.Address, spec.Topic0)
	if err != nil {
		return cursor, fmt.Errorf("fetch logs from %d: %w", cursor, err)
	}

	logger := p.logger.With(zap.String("event", spec.Name))
	if len(logs) == 0 {
		logger.Debug("no new events", zap.Uint64("cursor", cursor))
		return cursor, nil
	}

	counts := persistBatch(ctx, p.reader, p.store, spec, logs, logger)
	next := counts.highestBlock + 1
	logger.Info("poll batch complete",
		zap.Int("found", len(logs)),
		zap.Int("inserted", counts.inserted),
		zap.Int("duplicates", counts.duplicates),
		zap.Int("failed", counts.failed),
		zap.Uint64("next_cursor", next),
	)

	return next, nil
}
