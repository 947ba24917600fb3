package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"distributionScope/internal/model"
	"distributionScope/internal/storage"
)

// Store provides Postgres persistence for event records. Uniqueness over
// (name, block_number, tx_index, tx_hash) is the exactly-once mechanism; a
// transaction emitting the same event type twice collapses to one row.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Bootstrap creates the backing schema if absent. Safe to call on every
// startup.
func (s *Store) Bootstrap(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS events (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			contract TEXT NOT NULL,
			block_number BIGINT NOT NULL,
			block_hash TEXT NOT NULL,
			tx_index BIGINT NOT NULL,
			tx_hash TEXT NOT NULL,
			log_index BIGINT NOT NULL,
			removed BOOLEAN NOT NULL DEFAULT FALSE,
			data JSONB NOT NULL,
			event_ts TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT uix_name_block_txindex_txhash
				UNIQUE (name, block_number, tx_index, tx_hash)
		)
	`)
	if err != nil {
		return fmt.Errorf("create events table: %w", err)
	}
	return nil
}

// Insert writes a record once. A conflict on the uniqueness constraint is
// reported as OutcomeDuplicate. Records flagged removed are never persisted.
func (s *Store) Insert(ctx context.Context, record model.EventRecord) (storage.Outcome, error) {
	if record.Removed {
		return storage.OutcomeSkippedRemoved, nil
	}

	data, err := record.MarshalData()
	if err != nil {
		return 0, fmt.Errorf("marshal event data: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO events (
			name, contract, block_number, block_hash, tx_index, tx_hash,
			log_index, removed, data, event_ts
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT ON CONSTRAINT uix_name_block_txindex_txhash DO NOTHING
	`,
		record.Name,
		record.Contract,
		int64(record.BlockNumber),
		record.BlockHash,
		int64(record.TxIndex),
		record.TxHash,
		int64(record.LogIndex),
		record.Removed,
		json.RawMessage(data),
		record.Timestamp,
	)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return storage.OutcomeDuplicate, nil
	}
	return storage.OutcomeInserted, nil
}

// LastBlock returns the maximum stored block number for an event type, or
// false if none exist.
func (s *Store) LastBlock(ctx context.Context, eventName string) (uint64, bool, error) {
	var last *int64
	row := s.pool.QueryRow(ctx, `SELECT MAX(block_number) FROM events WHERE name=$1`, eventName)
	if err := row.Scan(&last); err != nil {
		return 0, false, err
	}
	if last == nil {
		return 0, false, nil
	}
	return uint64(*last), true, nil
}

// DeleteAll removes every record of one event type. Operator reset only.
func (s *Store) DeleteAll(ctx context.Context, eventName string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM events WHERE name=$1`, eventName)
	return err
}

// EventsSince returns records of an event type at or after the cutoff, in
// chain order.
func (s *Store) EventsSince(ctx context.Context, eventName string, cutoff time.Time) ([]model.EventRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, contract, block_number, block_hash, tx_index, tx_hash,
		       log_index, removed, data, event_ts
		FROM events
		WHERE name=$1 AND event_ts >= $2
		ORDER BY block_number ASC, log_index ASC
	`, eventName, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.EventRecord
	for rows.Next() {
		var (
			record      model.EventRecord
			blockNumber int64
			txIndex     int64
			logIndex    int64
			data        []byte
		)
		if err := rows.Scan(
			&record.Name,
			&record.Contract,
			&blockNumber,
			&record.BlockHash,
			&txIndex,
			&record.TxHash,
			&logIndex,
			&record.Removed,
			&data,
			&record.Timestamp,
		); err != nil {
			return nil, err
		}
		record.BlockNumber = uint64(blockNumber)
		record.TxIndex = uint64(txIndex)
		record.LogIndex = uint64(logIndex)
		if err := json.Unmarshal(data, &record.Data); err != nil {
			return nil, fmt.Errorf("unmarshal event data: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
