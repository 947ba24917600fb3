package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"distributionScope/internal/decode"
	"distributionScope/internal/storage"
)

// ChainSource is the slice of the chain client the ingestion pipeline needs.
type ChainSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, address common.Address, topic0 common.Hash) ([]types.Log, error)
}

// Backfill performs the one-shot catch-up over a closed block range.
type Backfill struct {
	chain        ChainSource
	reader       decode.ChainReader
	store        storage.EventStore
	logger       *zap.Logger
	maxRetries   int
	retryBackoff time.Duration
}

func NewBackfill(chain ChainSource, reader decode.ChainReader, store storage.EventStore, logger *zap.Logger, maxRetries int, retryBackoff time.Duration) *Backfill {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backfill{
		chain:        chain,
		reader:       reader,
		store:        store,
		logger:       logger,
		maxRetries:   maxRetries,
		retryBackoff: retryBackoff,
	}
}

// Run fetches, decodes, and persists every matching log in
// [startBlock, head], where head is the chain head snapshotted once at the
// start. It returns head even when no logs were found, so the caller can
// resume live polling from head+1. A range-fetch failure is fatal to the run.
func (b *Backfill) Run(ctx context.Context, spec decode.EventSpec, startBlock uint64) (uint64, error) {
	head, err := b.chain.LatestBlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("get chain head: %w", err)
	}

	logger := b.logger.With(zap.String("event", spec.Name))
	logger.Info("backfill start", zap.Uint64("from", startBlock), zap.Uint64("to", head))

	if startBlock > head {
		logger.Info("backfill has nothing to do", zap.Uint64("from", startBlock), zap.Uint64("head", head))
		return head, nil
	}

	var logs []types.Log
	err = withRetry(ctx, b.maxRetries, b.retryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = b.chain.FilterLogs(ctx, startBlock, head, spec.Address, spec.Topic0)
		if err != nil {
			logger.Warn("backfill fetch failed",
				zap.Error(err),
				zap.Uint64("from", startBlock),
				zap.Uint64("to", head),
			)
		}
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("fetch logs [%d, %d]: %w", startBlock, head, err)
	}

	counts := persistBatch(ctx, b.reader, b.store, spec, logs, logger)
	logger.Info("backfill complete",
		zap.Uint64("reached_block", head),
		zap.Int("found", len(logs)),
		zap.Int("inserted", counts.inserted),
		zap.Int("duplicates", counts.duplicates),
		zap.Int("skipped_removed", counts.skippedRemoved),
		zap.Int("failed", counts.failed),
	)

	return head, nil
}

type batchCounts struct {
	inserted       int
	duplicates     int
	skippedRemoved int
	failed         int
	highestBlock   uint64
	sawLogs        bool
}

// persistBatch decodes and inserts logs in the order the chain client
// returned them. Decode or enrichment failures drop that single log;
// duplicates are a low-severity non-event. The highest block number observed
// is tracked regardless of per-log outcomes.
func persistBatch(ctx context.Context, reader decode.ChainReader, store storage.EventStore, spec decode.EventSpec, logs []types.Log, logger *zap.Logger) batchCounts {
	var counts batchCounts
	for _, log := range logs {
		counts.sawLogs = true
		if log.BlockNumber > counts.highestBlock {
			counts.highestBlock = log.BlockNumber
		}

		record, err := spec.Decode(ctx, reader, spec, log)
		if err != nil {
			counts.failed++
			logger.Error("decode failed",
				zap.Error(err),
				zap.Uint64("block", log.BlockNumber),
				zap.String("tx_hash", log.TxHash.Hex()),
				zap.Uint("log_index", log.Index),
			)
			continue
		}

		outcome, err := store.Insert(ctx, record)
		if err != nil {
			counts.failed++
			logger.Error("insert failed",
				zap.Error(err),
				zap.Uint64("block", record.BlockNumber),
				zap.String("tx_hash", record.TxHash),
			)
			continue
		}

		switch outcome {
		case storage.OutcomeInserted:
			counts.inserted++
			logger.Info("event stored",
				zap.Uint64("block", record.BlockNumber),
				zap.String("tx_hash", record.TxHash),
				zap.Uint64("log_index", record.LogIndex),
			)
		case storage.OutcomeDuplicate:
			counts.duplicates++
			logger.Debug("duplicate event skipped",
				zap.Uint64("block", record.BlockNumber),
				zap.String("tx_hash", record.TxHash),
			)
		case storage.OutcomeSkippedRemoved:
			counts.skippedRemoved++
			logger.Warn("removed log skipped",
				zap.Uint64("block", record.BlockNumber),
				zap.String("tx_hash", record.TxHash),
			)
		}
	}
	return counts
}
