package model

import (
	"bytes"
	"testing"
	"time"
)

func TestKeyIdentity(t *testing.T) {
	record := EventRecord{
		Name:        "TotalDistribution",
		BlockNumber: 18650000,
		TxIndex:     3,
		TxHash:      "0xabc",
		LogIndex:    7,
	}

	if record.Key() != "TotalDistribution:18650000:3:0xabc" {
		t.Fatalf("unexpected key: %s", record.Key())
	}

	// Log index is not part of the identity key.
	other := record
	other.LogIndex = 8
	if record.Key() != other.Key() {
		t.Fatalf("keys should match regardless of log index")
	}
}

func TestMarshalDataStable(t *testing.T) {
	record := EventRecord{
		Name:      "TotalDistribution",
		Timestamp: time.Unix(1700000000, 0).UTC(),
		Data: map[string]any{
			"eth_bought":    3.0,
			"aix_processed": 1.0,
		},
	}

	first, err := record.MarshalData()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	second, err := record.MarshalData()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("payload serialization not stable:\n%s\n%s", first, second)
	}
}
