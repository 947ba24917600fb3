package storage

import (
	"context"
	"time"

	"distributionScope/internal/model"
)

// Outcome reports what an insert attempt did.
type Outcome int

const (
	// OutcomeInserted means a new row was written.
	OutcomeInserted Outcome = iota
	// OutcomeDuplicate means the uniqueness constraint already held a row
	// with the same identity. Expected, not an error.
	OutcomeDuplicate
	// OutcomeSkippedRemoved means the record carried removed=true and was
	// not persisted.
	OutcomeSkippedRemoved
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeSkippedRemoved:
		return "skipped_removed"
	default:
		return "unknown"
	}
}

// EventStore persists decoded event records exactly once.
type EventStore interface {
	Bootstrap(ctx context.Context) error
	Insert(ctx context.Context, record model.EventRecord) (Outcome, error)
	LastBlock(ctx context.Context, eventName string) (uint64, bool, error)
	DeleteAll(ctx context.Context, eventName string) error
	EventsSince(ctx context.Context, eventName string, cutoff time.Time) ([]model.EventRecord, error)
}
