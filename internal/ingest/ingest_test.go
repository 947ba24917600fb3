package ingest

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"distributionScope/internal/decode"
	"distributionScope/internal/model"
	"distributionScope/internal/storage"
)

type fakeChain struct {
	head    uint64
	batches [][]types.Log
	calls   int
	err     error
}

func (f *fakeChain) LatestBlockNumber(context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeChain) FilterLogs(_ context.Context, _, _ uint64, _ common.Address, _ common.Hash) ([]types.Log, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.batches) {
		return nil, nil
	}
	batch := f.batches[f.calls]
	f.calls++
	return batch, nil
}

type fakeStore struct {
	records []model.EventRecord
	seen    map[string]struct{}
	deleted []string
	last    uint64
	hasLast bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{seen: make(map[string]struct{})}
}

func (f *fakeStore) Bootstrap(context.Context) error { return nil }

func (f *fakeStore) Insert(_ context.Context, record model.EventRecord) (storage.Outcome, error) {
	if record.Removed {
		return storage.OutcomeSkippedRemoved, nil
	}
	key := record.Key()
	if _, ok := f.seen[key]; ok {
		return storage.OutcomeDuplicate, nil
	}
	f.seen[key] = struct{}{}
	f.records = append(f.records, record)
	return storage.OutcomeInserted, nil
}

func (f *fakeStore) LastBlock(context.Context, string) (uint64, bool, error) {
	return f.last, f.hasLast, nil
}

func (f *fakeStore) DeleteAll(_ context.Context, eventName string) error {
	f.deleted = append(f.deleted, eventName)
	return nil
}

func (f *fakeStore) EventsSince(context.Context, string, time.Time) ([]model.EventRecord, error) {
	return nil, nil
}

type fakeReader struct{}

func (fakeReader) TransactionSender(context.Context, common.Hash) (common.Address, error) {
	return common.HexToAddress("0x1111111111111111111111111111111111111111"), nil
}

func (fakeReader) Balance(context.Context, common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (fakeReader) BlockTimestamp(context.Context, uint64) (uint64, error) {
	return 1700000000, nil
}

func testSpec() decode.EventSpec {
	return decode.EventSpec{
		Name:       "TotalDistribution",
		Contract:   "AIX",
		Fields:     []string{"aix_processed", "aix_distributed", "eth_bought", "eth_distributed"},
		StartBlock: 18607627,
		Active:     true,
		Decode:     decode.DecodeScaledAmounts,
	}
}

func testLog(block uint64, txIndex uint, removed bool) types.Log {
	data := make([]byte, 4*32)
	return types.Log{
		Data:        data,
		BlockNumber: block,
		BlockHash:   common.HexToHash("0xbeef"),
		TxHash:      common.HexToHash(fmt.Sprintf("0x%x%x", block, txIndex)),
		TxIndex:     txIndex,
		Index:       0,
		Removed:     removed,
	}
}

func TestBackfillEmptyRange(t *testing.T) {
	chain := &fakeChain{head: 100}
	store := newFakeStore()
	backfill := NewBackfill(chain, fakeReader{}, store, nil, 0, time.Millisecond)

	reached, err := backfill.Run(context.Background(), testSpec(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reached != 100 {
		t.Fatalf("reached block %d, want 100", reached)
	}
	if len(store.records) != 0 {
		t.Fatalf("expected no inserts, got %d", len(store.records))
	}
}

func TestBackfillInsertsAndSkipsDuplicates(t *testing.T) {
	logs := []types.Log{testLog(101, 0, false), testLog(102, 1, false), testLog(101, 0, false)}
	chain := &fakeChain{head: 110, batches: [][]types.Log{logs}}
	store := newFakeStore()
	backfill := NewBackfill(chain, fakeReader{}, store, nil, 0, time.Millisecond)

	reached, err := backfill.Run(context.Background(), testSpec(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reached != 110 {
		t.Fatalf("reached block %d, want 110", reached)
	}
	if len(store.records) != 2 {
		t.Fatalf("expected 2 inserts, got %d", len(store.records))
	}
	if store.records[0].BlockNumber != 101 || store.records[1].BlockNumber != 102 {
		t.Fatalf("batch order not preserved: %+v", store.records)
	}
}

func TestBackfillRemovedLogNotPersisted(t *testing.T) {
	chain := &fakeChain{head: 110, batches: [][]types.Log{{testLog(105, 0, true)}}}
	store := newFakeStore()
	backfill := NewBackfill(chain, fakeReader{}, store, nil, 0, time.Millisecond)

	if _, err := backfill.Run(context.Background(), testSpec(), 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.records) != 0 {
		t.Fatalf("removed log was persisted")
	}
}

func TestBackfillDecodeFailureContinuesBatch(t *testing.T) {
	bad := testLog(101, 0, false)
	bad.Data = bad.Data[:16]
	logs := []types.Log{bad, testLog(102, 1, false)}
	chain := &fakeChain{head: 110, batches: [][]types.Log{logs}}
	store := newFakeStore()
	backfill := NewBackfill(chain, fakeReader{}, store, nil, 0, time.Millisecond)

	if _, err := backfill.Run(context.Background(), testSpec(), 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.records) != 1 || store.records[0].BlockNumber != 102 {
		t.Fatalf("expected the valid log to survive, got %+v", store.records)
	}
}

func TestBackfillFetchFailureIsFatal(t *testing.T) {
	chain := &fakeChain{head: 110, err: fmt.Errorf("node unreachable")}
	backfill := NewBackfill(chain, fakeReader{}, newFakeStore(), nil, 0, time.Millisecond)

	if _, err := backfill.Run(context.Background(), testSpec(), 100); err == nil {
		t.Fatalf("expected error for failed range fetch")
	}
}

func TestPollerCursorMonotonicity(t *testing.T) {
	chain := &fakeChain{
		batches: [][]types.Log{
			{testLog(100, 0, false), testLog(120, 1, false)},
			{},
			{testLog(125, 0, false)},
		},
	}
	store := newFakeStore()
	poller := NewPoller(chain, fakeReader{}, store, nil, time.Millisecond)
	spec := testSpec()

	cursor := uint64(100)
	var cursors []uint64
	for i := 0; i < 3; i++ {
		next, err := poller.pollOnce(context.Background(), spec, cursor)
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		cursors = append(cursors, next)
		cursor = next
	}

	if cursors[0] != 121 {
		t.Fatalf("cursor after first batch %d, want 121", cursors[0])
	}
	if cursors[1] != 121 {
		t.Fatalf("cursor changed on empty batch: %d", cursors[1])
	}
	if cursors[2] != 126 {
		t.Fatalf("cursor after third batch %d, want 126", cursors[2])
	}
	for i := 1; i < len(cursors); i++ {
		if cursors[i] < cursors[i-1] {
			t.Fatalf("cursor decreased: %v", cursors)
		}
	}
}

func TestPollerFetchFailureTerminates(t *testing.T) {
	chain := &fakeChain{err: fmt.Errorf("rpc timeout")}
	poller := NewPoller(chain, fakeReader{}, newFakeStore(), nil, time.Millisecond)

	if err := poller.Run(context.Background(), testSpec(), 100); err == nil {
		t.Fatalf("expected poller to terminate on fetch failure")
	}
}

func TestOrchestratorStartBlockResume(t *testing.T) {
	store := newFakeStore()
	store.last = 200
	store.hasLast = true
	orch := NewOrchestrator(nil, nil, nil, store, nil, nil)

	start, err := orch.startBlock(context.Background(), testSpec())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start != 201 {
		t.Fatalf("start block %d, want 201", start)
	}
}

func TestOrchestratorStartBlockGenesis(t *testing.T) {
	orch := NewOrchestrator(nil, nil, nil, newFakeStore(), nil, nil)

	start, err := orch.startBlock(context.Background(), testSpec())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start != 18607627 {
		t.Fatalf("start block %d, want genesis", start)
	}
}

func TestOrchestratorStartBlockOverride(t *testing.T) {
	override := int64(5000)
	orch := NewOrchestrator(nil, nil, nil, newFakeStore(), nil, &override)

	start, err := orch.startBlock(context.Background(), testSpec())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start != 5000 {
		t.Fatalf("start block %d, want 5000", start)
	}
}

func TestOrchestratorStartBlockWipeAndResync(t *testing.T) {
	override := int64(0)
	store := newFakeStore()
	store.last = 200
	store.hasLast = true
	orch := NewOrchestrator(nil, nil, nil, store, nil, &override)

	start, err := orch.startBlock(context.Background(), testSpec())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start != 18607627 {
		t.Fatalf("start block %d, want genesis", start)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "TotalDistribution" {
		t.Fatalf("expected delete of TotalDistribution, got %v", store.deleted)
	}
}
