package decode

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"distributionScope/internal/model"
)

// ChainReader provides the on-chain lookups needed to enrich a decoded event.
type ChainReader interface {
	TransactionSender(ctx context.Context, txHash common.Hash) (common.Address, error)
	Balance(ctx context.Context, account common.Address) (*big.Int, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// DecodeFunc converts a raw log into an EventRecord. Each configured event
// kind supplies its own implementation.
type DecodeFunc func(ctx context.Context, reader ChainReader, spec EventSpec, log types.Log) (model.EventRecord, error)

// EventSpec is the static configuration of one tracked event type. Read-only
// after process start.
type EventSpec struct {
	Name         string
	Contract     string
	Address      common.Address
	Topic0       common.Hash
	Fields       []string
	FieldLabels  map[string]string
	ReportTitle  string
	StartBlock   uint64
	Active       bool
	ReportWindow time.Duration
	Decode       DecodeFunc
}

// FieldLabel returns the display name for a payload field, falling back to
// the field name itself.
func (s EventSpec) FieldLabel(field string) string {
	if label, ok := s.FieldLabels[field]; ok {
		return label
	}
	return field
}

// Registry maps event type names to their specs. An unknown name is a
// configuration error, surfaced at startup rather than per event.
type Registry struct {
	specs map[string]EventSpec
	order []string
}

// NewRegistry validates and indexes the given specs.
func NewRegistry(specs ...EventSpec) (*Registry, error) {
	r := &Registry{specs: make(map[string]EventSpec, len(specs))}
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("event spec with empty name")
		}
		if spec.Decode == nil {
			return nil, fmt.Errorf("event %s: missing decode function", spec.Name)
		}
		if len(spec.Fields) == 0 {
			return nil, fmt.Errorf("event %s: no payload fields configured", spec.Name)
		}
		if _, exists := r.specs[spec.Name]; exists {
			return nil, fmt.Errorf("duplicate event spec: %s", spec.Name)
		}
		r.specs[spec.Name] = spec
		r.order = append(r.order, spec.Name)
	}
	return r, nil
}

// Lookup returns the spec for an event type name.
func (r *Registry) Lookup(name string) (EventSpec, error) {
	spec, ok := r.specs[name]
	if !ok {
		return EventSpec{}, fmt.Errorf("unknown event type: %s", name)
	}
	return spec, nil
}

// Specs returns all registered specs in registration order.
func (r *Registry) Specs() []EventSpec {
	out := make([]EventSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.specs[name])
	}
	return out
}
