package postgres

import (
	"context"
	"testing"

	"distributionScope/internal/model"
	"distributionScope/internal/storage"
)

func TestInsertSkipsRemovedRecord(t *testing.T) {
	// Removed records are rejected before any database access, so a store
	// without a pool is sufficient here.
	store := &Store{}

	outcome, err := store.Insert(context.Background(), model.EventRecord{
		Name:        "TotalDistribution",
		BlockNumber: 100,
		TxHash:      "0xabc",
		Removed:     true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != storage.OutcomeSkippedRemoved {
		t.Fatalf("outcome %v, want skipped_removed", outcome)
	}
}
