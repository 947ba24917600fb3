package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventRecord is the normalized representation of a decoded contract event.
// It is written once by the store and never updated.
type EventRecord struct {
	Name        string         `json:"name"`
	Contract    string         `json:"contract"`
	BlockNumber uint64         `json:"block_number"`
	BlockHash   string         `json:"block_hash"`
	TxIndex     uint64         `json:"tx_index"`
	TxHash      string         `json:"tx_hash"`
	LogIndex    uint64         `json:"log_index"`
	Removed     bool           `json:"removed"`
	Data        map[string]any `json:"data"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Key identifies a record for duplicate detection: the store enforces
// uniqueness over (name, block number, tx index, tx hash).
func (r EventRecord) Key() string {
	return fmt.Sprintf("%s:%d:%d:%s", r.Name, r.BlockNumber, r.TxIndex, r.TxHash)
}

// MarshalData encodes the payload for JSONB storage. encoding/json sorts map
// keys, so the same payload always serializes to the same bytes.
func (r EventRecord) MarshalData() ([]byte, error) {
	return json.Marshal(r.Data)
}
