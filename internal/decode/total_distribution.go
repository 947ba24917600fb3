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

const wordSize = 32

var weiPerEther = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// DefaultSpecs returns the built-in event registry: the TotalDistribution
// event emitted by the AIX distributor contract.
func DefaultSpecs() []EventSpec {
	return []EventSpec{
		{
			Name:     "TotalDistribution",
			Contract: "AIX",
			Address:  common.HexToAddress("0xaBE235136562a5C2B02557E1CaE7E8c85F2a5da0"),
			Topic0:   common.HexToHash("0xe689c8111f40a171596b9d81ac47c6fe406d2297392957c5126c2f7448c58694"),
			Fields:   []string{"aix_processed", "aix_distributed", "eth_bought", "eth_distributed"},
			FieldLabels: map[string]string{
				"aix_processed":   "AIX processed",
				"aix_distributed": "AIX distributed",
				"eth_bought":      "ETH bought",
				"eth_distributed": "ETH distributed",
			},
			ReportTitle:  "Daily $AIX Stats",
			StartBlock:   18607627,
			Active:       true,
			ReportWindow: 4 * time.Hour,
			Decode:       DecodeScaledAmounts,
		},
	}
}

// DecodeScaledAmounts decodes a log whose data is a sequence of unsigned
// 256-bit words, one per configured payload field, each rescaled from wei to
// a display-grade float. The record is then enriched with the transaction
// sender, the sender's balance at decode time, and the block timestamp.
// A removed log still decodes; the store is responsible for skipping it.
func DecodeScaledAmounts(ctx context.Context, reader ChainReader, spec EventSpec, log types.Log) (model.EventRecord, error) {
	words, err := splitWords(log.Data, len(spec.Fields))
	if err != nil {
		return model.EventRecord{}, fmt.Errorf("decode %s data: %w", spec.Name, err)
	}

	data := make(map[string]any, len(spec.Fields)+2)
	for i, field := range spec.Fields {
		data[field] = weiToFloat(words[i])
	}

	sender, err := reader.TransactionSender(ctx, log.TxHash)
	if err != nil {
		return model.EventRecord{}, fmt.Errorf("resolve sender for tx %s: %w", log.TxHash.Hex(), err)
	}

	balance, err := reader.Balance(ctx, sender)
	if err != nil {
		return model.EventRecord{}, fmt.Errorf("fetch balance of %s: %w", sender.Hex(), err)
	}

	ts, err := reader.BlockTimestamp(ctx, log.BlockNumber)
	if err != nil {
		return model.EventRecord{}, fmt.Errorf("fetch timestamp of block %d: %w", log.BlockNumber, err)
	}

	data["distributor_wallet"] = sender.Hex()
	data["distributor_balance"] = weiToFloat(balance)

	return model.EventRecord{
		Name:        spec.Name,
		Contract:    spec.Contract,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash.Hex(),
		TxIndex:     uint64(log.TxIndex),
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
		Removed:     log.Removed,
		Data:        data,
		Timestamp:   time.Unix(int64(ts), 0).UTC(),
	}, nil
}

func splitWords(data []byte, count int) ([]*big.Int, error) {
	if len(data) != count*wordSize {
		return nil, fmt.Errorf("expected %d bytes, got %d", count*wordSize, len(data))
	}
	words := make([]*big.Int, count)
	for i := 0; i < count; i++ {
		words[i] = new(big.Int).SetBytes(data[i*wordSize : (i+1)*wordSize])
	}
	return words, nil
}

// weiToFloat rescales an amount by 1e18. Precision loss past float64 is
// accepted; totals are display grade, not accounting grade.
func weiToFloat(amount *big.Int) float64 {
	value, _ := new(big.Float).Quo(new(big.Float).SetInt(amount), weiPerEther).Float64()
	return value
}
