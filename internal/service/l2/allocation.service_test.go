package l2_service

import (
	"testing"

	"stratengine/internal/domain"
	"stratengine/internal/lang"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func Test_ToAllocation(t *testing.T) {
	svc := NewAllocationService()
	correlationID := uuid.New()

	fragment := func(weights map[string]string) domain.Value {
		frag := domain.NewPortfolioFragment(lang.Pos{})
		for symbol, w := range weights {
			frag.AddWeight(symbol, decimal.RequireFromString(w))
		}
		return domain.FragmentValue(frag)
	}

	t.Run("bare symbol allocates fully", func(t *testing.T) {
		alloc, err := svc.ToAllocation(domain.SymbolValue("AAPL"), correlationID, testAsOf)
		require.NoError(t, err)
		require.Equal(t, correlationID, alloc.CorrelationID)
		require.Len(t, alloc.Weights, 1)
		require.True(t, alloc.Weights["AAPL"].Equal(decimal.NewFromInt(1)))
	})

	t.Run("fragment is normalized to sum one", func(t *testing.T) {
		alloc, err := svc.ToAllocation(fragment(map[string]string{"AAPL": "2", "MSFT": "2"}), correlationID, testAsOf)
		require.NoError(t, err)
		require.True(t, alloc.Weights["AAPL"].Equal(decimal.RequireFromString("0.5")))
		require.True(t, alloc.Weights["MSFT"].Equal(decimal.RequireFromString("0.5")))
		require.True(t, alloc.Total().Equal(decimal.NewFromInt(1)))
	})

	t.Run("zero weights are dropped", func(t *testing.T) {
		alloc, err := svc.ToAllocation(fragment(map[string]string{"AAPL": "1", "MSFT": "0"}), correlationID, testAsOf)
		require.NoError(t, err)
		require.Len(t, alloc.Weights, 1)
		require.True(t, alloc.Weights["AAPL"].Equal(decimal.NewFromInt(1)))
	})

	t.Run("near-equal weights quantize to an exact sum", func(t *testing.T) {
		alloc, err := svc.ToAllocation(fragment(map[string]string{"A": "0.5", "B": "0.5000001"}), correlationID, testAsOf)
		require.NoError(t, err)
		require.True(t, alloc.Total().Equal(decimal.NewFromInt(1)),
			"total = %s", alloc.Total())
	})

	t.Run("totals within tolerance skip renormalization", func(t *testing.T) {
		// renormalizing would wash B's half-up rounding out to zero
		alloc, err := svc.ToAllocation(fragment(map[string]string{"A": "1", "B": "0.0000005"}), correlationID, testAsOf)
		require.NoError(t, err)
		require.True(t, alloc.Total().Equal(decimal.NewFromInt(1)), "total = %s", alloc.Total())
		require.True(t, alloc.Weights["A"].Equal(decimal.RequireFromString("0.999999")), "A = %s", alloc.Weights["A"])
		require.True(t, alloc.Weights["B"].Equal(decimal.RequireFromString("0.000001")), "B = %s", alloc.Weights["B"])
	})

	t.Run("thirds remainder lands on the alphabetically first of tied largest", func(t *testing.T) {
		alloc, err := svc.ToAllocation(fragment(map[string]string{"A": "1", "B": "1", "C": "1"}), correlationID, testAsOf)
		require.NoError(t, err)
		require.True(t, alloc.Total().Equal(decimal.NewFromInt(1)), "total = %s", alloc.Total())
		require.True(t, alloc.Weights["A"].Equal(decimal.RequireFromString("0.333334")), "A = %s", alloc.Weights["A"])
		require.True(t, alloc.Weights["B"].Equal(decimal.RequireFromString("0.333333")))
		require.True(t, alloc.Weights["C"].Equal(decimal.RequireFromString("0.333333")))
	})

	t.Run("negative weight is rejected", func(t *testing.T) {
		_, err := svc.ToAllocation(fragment(map[string]string{"AAPL": "-0.2", "MSFT": "1.2"}), correlationID, testAsOf)
		require.Error(t, err)

		var invalid *domain.InvalidAllocation
		require.ErrorAs(t, err, &invalid)
		require.Contains(t, invalid.Message, "negative weight")
	})

	t.Run("zero total never divides", func(t *testing.T) {
		_, err := svc.ToAllocation(fragment(map[string]string{"AAPL": "0", "MSFT": "0"}), correlationID, testAsOf)
		require.Error(t, err)

		var invalid *domain.InvalidAllocation
		require.ErrorAs(t, err, &invalid)
		require.Contains(t, invalid.Message, "total weight is zero")
	})

	t.Run("scalar number cannot allocate", func(t *testing.T) {
		_, err := svc.ToAllocation(domain.NumberValue(decimal.NewFromInt(42)), correlationID, testAsOf)
		require.Error(t, err)

		var invalid *domain.InvalidAllocation
		require.ErrorAs(t, err, &invalid)
		require.Contains(t, invalid.Message, "scalar number")
	})

	t.Run("bool cannot allocate", func(t *testing.T) {
		_, err := svc.ToAllocation(domain.BoolValue(true), correlationID, testAsOf)
		require.Error(t, err)

		var invalid *domain.InvalidAllocation
		require.ErrorAs(t, err, &invalid)
		require.Contains(t, invalid.Message, "cannot allocate to bool result")
	})
}
