package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WeightPrecision is the number of decimal places allocations are
// quantized to.
const WeightPrecision = 6

// SumTolerance is the accepted |sum - 1| drift before quantization.
var SumTolerance = decimal.New(1, -6)

// StrategyAllocation is the final, validated symbol -> weight result of
// one strategy evaluation. Weights are non-negative and sum to exactly 1
// after quantization. Treated as immutable once built.
type StrategyAllocation struct {
	CorrelationID uuid.UUID                  `json:"correlationID"`
	AsOf          time.Time                  `json:"asOf"`
	Weights       map[string]decimal.Decimal `json:"weights"`
}

// Symbols returns the allocated symbols in ascending order.
func (a StrategyAllocation) Symbols() []string {
	symbols := make([]string, 0, len(a.Weights))
	for s := range a.Weights {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

func (a StrategyAllocation) Total() decimal.Decimal {
	total := decimal.Zero
	for _, w := range a.Weights {
		total = total.Add(w)
	}
	return total
}

func (a StrategyAllocation) DeepCopy() StrategyAllocation {
	weights := make(map[string]decimal.Decimal, len(a.Weights))
	for s, w := range a.Weights {
		weights[s] = w
	}
	return StrategyAllocation{
		CorrelationID: a.CorrelationID,
		AsOf:          a.AsOf,
		Weights:       weights,
	}
}
