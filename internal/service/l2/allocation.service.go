package l2_service

import (
	"sort"
	"time"

	"stratengine/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationService normalizes a raw evaluation result into a
// validated, sum-to-one strategy allocation.
type AllocationService interface {
	ToAllocation(value domain.Value, correlationID uuid.UUID, asOf time.Time) (*domain.StrategyAllocation, error)
}

type allocationServiceHandler struct{}

func NewAllocationService() AllocationService {
	return allocationServiceHandler{}
}

// ToAllocation accepts a Fragment (weights as given) or a bare Symbol
// (100% to that symbol). Anything else cannot allocate and fails with
// InvalidAllocation naming the value kind.
//
// Quantization policy: weights whose total drifts from 1 by more than
// SumTolerance are normalized, then rounded to 6 decimal places, and
// the signed rounding remainder is added to the largest
// post-quantization weight - ties broken by ascending symbol name - so
// the final sum is exactly 1.
func (h allocationServiceHandler) ToAllocation(value domain.Value, correlationID uuid.UUID, asOf time.Time) (*domain.StrategyAllocation, error) {
	var weights map[string]decimal.Decimal

	switch value.Kind {
	case domain.ValueFragment:
		// fragment weights are already collapsed by symbol
		weights = make(map[string]decimal.Decimal, len(value.Fragment.Weights))
		for symbol, w := range value.Fragment.Weights {
			weights[symbol] = w
		}
	case domain.ValueSymbol:
		weights = map[string]decimal.Decimal{
			value.Symbol: decimal.NewFromInt(1),
		}
	case domain.ValueNumber:
		return nil, domain.NewInvalidAllocation("cannot allocate to a scalar number (%s)", value.Num)
	default:
		return nil, domain.NewInvalidAllocation("cannot allocate to %s result", value.Kind)
	}

	total := decimal.Zero
	for symbol, w := range weights {
		if w.IsNegative() {
			return nil, domain.NewInvalidAllocation("negative weight %s for %s", w, symbol)
		}
		total = total.Add(w)
	}
	if total.IsZero() {
		return nil, domain.NewInvalidAllocation("total weight is zero")
	}

	// drop zero weights, normalize the rest
	symbols := make([]string, 0, len(weights))
	for symbol, w := range weights {
		if w.IsZero() {
			continue
		}
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	// totals already within tolerance of 1 are taken as given;
	// anything else is renormalized before quantization
	one := decimal.NewFromInt(1)
	normalize := total.Sub(one).Abs().Cmp(domain.SumTolerance) > 0

	quantized := make(map[string]decimal.Decimal, len(symbols))
	quantizedSum := decimal.Zero
	for _, symbol := range symbols {
		w := weights[symbol]
		if normalize {
			w = w.Div(total)
		}
		w = w.Round(domain.WeightPrecision)
		quantized[symbol] = w
		quantizedSum = quantizedSum.Add(w)
	}

	// redistribute the rounding remainder to the largest weight,
	// ties broken by ascending symbol name
	remainder := one.Sub(quantizedSum)
	if !remainder.IsZero() {
		largest := symbols[0]
		for _, symbol := range symbols[1:] {
			if quantized[symbol].Cmp(quantized[largest]) > 0 {
				largest = symbol
			}
		}
		adjusted := quantized[largest].Add(remainder)
		if adjusted.IsNegative() {
			return nil, domain.NewInvalidAllocation("rounding remainder %s exceeds largest weight", remainder)
		}
		quantized[largest] = adjusted
	}

	return &domain.StrategyAllocation{
		CorrelationID: correlationID,
		AsOf:          asOf,
		Weights:       quantized,
	}, nil
}
