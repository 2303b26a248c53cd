package l2_service

import (
	"testing"

	"stratengine/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func Test_comparisonOperators(t *testing.T) {
	ec := newTestContext(newFakeIndicatorService(nil))

	for _, tc := range []struct {
		source string
		want   bool
	}{
		{`(> 2 1)`, true},
		{`(> 1 2)`, false},
		{`(< 1 2)`, true},
		{`(>= 2 2)`, true},
		{`(<= 3 2)`, false},
		{`(= 0.5 0.50)`, true},
		{`(= 0.5 0.51)`, false},
	} {
		t.Run(tc.source, func(t *testing.T) {
			v, _, err := evalSource(t, tc.source, ec)
			require.NoError(t, err)
			require.Equal(t, domain.ValueBool, v.Kind)
			require.Equal(t, tc.want, v.Bool)
		})
	}

	t.Run("non-numeric operand", func(t *testing.T) {
		_, _, err := evalSource(t, `(> "AAPL" 1)`, ec)
		require.Error(t, err)

		var evalErr *domain.EvaluationError
		require.ErrorAs(t, err, &evalErr)
		require.Contains(t, evalErr.Message, "requires numeric arguments")
	})
}

func Test_assetOp(t *testing.T) {
	v, _, err := evalSource(t, `(asset "AAPL")`, newTestContext(newFakeIndicatorService(nil)))
	require.NoError(t, err)
	require.Equal(t, domain.ValueFragment, v.Kind)
	requireWeight(t, v.Fragment, "AAPL", "1")

	_, _, err = evalSource(t, `(asset 5)`, newTestContext(newFakeIndicatorService(nil)))
	require.Error(t, err)
	var evalErr *domain.EvaluationError
	require.ErrorAs(t, err, &evalErr)
	require.Contains(t, evalErr.Message, "expects a symbol")
}

func Test_weightEqualOp(t *testing.T) {
	t.Run("splits evenly across symbols", func(t *testing.T) {
		v, _, err := evalSource(t, `(weight-equal "AAPL" "MSFT")`, newTestContext(newFakeIndicatorService(nil)))
		require.NoError(t, err)
		requireWeight(t, v.Fragment, "AAPL", "0.5")
		requireWeight(t, v.Fragment, "MSFT", "0.5")
	})

	t.Run("nested fragments are scaled within their share", func(t *testing.T) {
		v, _, err := evalSource(t, `(weight-equal "AAPL" (weight-equal "MSFT" "GOOG"))`,
			newTestContext(newFakeIndicatorService(nil)))
		require.NoError(t, err)
		requireWeight(t, v.Fragment, "AAPL", "0.5")
		requireWeight(t, v.Fragment, "MSFT", "0.25")
		requireWeight(t, v.Fragment, "GOOG", "0.25")
	})

	t.Run("duplicate symbols are summed", func(t *testing.T) {
		v, _, err := evalSource(t, `(weight-equal "AAPL" "AAPL")`, newTestContext(newFakeIndicatorService(nil)))
		require.NoError(t, err)
		requireWeight(t, v.Fragment, "AAPL", "1")
	})

	t.Run("zero-total nested fragment is rejected", func(t *testing.T) {
		_, _, err := evalSource(t, `(weight-equal "AAPL" {:MSFT 0})`, newTestContext(newFakeIndicatorService(nil)))
		require.Error(t, err)
		var evalErr *domain.EvaluationError
		require.ErrorAs(t, err, &evalErr)
		require.Contains(t, evalErr.Message, "zero-total fragment")
	})
}

func Test_weightSpecifiedOp(t *testing.T) {
	t.Run("explicit weights", func(t *testing.T) {
		v, _, err := evalSource(t, `(weight-specified 0.7 "AAPL" 0.3 "MSFT")`,
			newTestContext(newFakeIndicatorService(nil)))
		require.NoError(t, err)
		requireWeight(t, v.Fragment, "AAPL", "0.7")
		requireWeight(t, v.Fragment, "MSFT", "0.3")
	})

	t.Run("nested target normalized within its weight", func(t *testing.T) {
		v, _, err := evalSource(t, `(weight-specified 0.5 "AAPL" 0.5 (weight-equal "MSFT" "GOOG"))`,
			newTestContext(newFakeIndicatorService(nil)))
		require.NoError(t, err)
		requireWeight(t, v.Fragment, "AAPL", "0.5")
		requireWeight(t, v.Fragment, "MSFT", "0.25")
		requireWeight(t, v.Fragment, "GOOG", "0.25")
	})

	t.Run("odd argument count", func(t *testing.T) {
		_, _, err := evalSource(t, `(weight-specified 0.7 "AAPL" 0.3)`, newTestContext(newFakeIndicatorService(nil)))
		require.Error(t, err)
		var evalErr *domain.EvaluationError
		require.ErrorAs(t, err, &evalErr)
		require.Contains(t, evalErr.Message, "weight/target pairs")
	})

	t.Run("negative weight", func(t *testing.T) {
		_, _, err := evalSource(t, `(weight-specified -0.1 "AAPL" 1.1 "MSFT")`,
			newTestContext(newFakeIndicatorService(nil)))
		require.Error(t, err)
		var evalErr *domain.EvaluationError
		require.ErrorAs(t, err, &evalErr)
		require.Contains(t, evalErr.Message, "non-negative")
	})
}

func Test_mergeOp(t *testing.T) {
	t.Run("fragments merge without rescaling", func(t *testing.T) {
		v, _, err := evalSource(t, `(merge {:AAPL 0.6} {:MSFT 0.4})`, newTestContext(newFakeIndicatorService(nil)))
		require.NoError(t, err)
		requireWeight(t, v.Fragment, "AAPL", "0.6")
		requireWeight(t, v.Fragment, "MSFT", "0.4")
	})

	t.Run("overlapping symbols are summed", func(t *testing.T) {
		v, _, err := evalSource(t, `(merge {:AAPL 0.6} {:AAPL 0.2 :MSFT 0.2})`,
			newTestContext(newFakeIndicatorService(nil)))
		require.NoError(t, err)
		requireWeight(t, v.Fragment, "AAPL", "0.8")
		requireWeight(t, v.Fragment, "MSFT", "0.2")
	})

	t.Run("bare symbols merge at weight one", func(t *testing.T) {
		v, _, err := evalSource(t, `(merge "AAPL" {:MSFT 1})`, newTestContext(newFakeIndicatorService(nil)))
		require.NoError(t, err)
		requireWeight(t, v.Fragment, "AAPL", "1")
		requireWeight(t, v.Fragment, "MSFT", "1")
	})

	t.Run("number cannot be merged", func(t *testing.T) {
		_, _, err := evalSource(t, `(merge 1 "AAPL")`, newTestContext(newFakeIndicatorService(nil)))
		require.Error(t, err)
		var evalErr *domain.EvaluationError
		require.ErrorAs(t, err, &evalErr)
		require.Contains(t, evalErr.Message, "cannot merge number value")
	})
}

func Test_indicatorOp(t *testing.T) {
	t.Run("returns indicator value", func(t *testing.T) {
		indicators := newFakeIndicatorService(map[string]decimal.Decimal{
			"AAPL/sma": decimal.RequireFromString("187.5"),
		})
		v, _, err := evalSource(t, `(indicator "AAPL" "sma" {:window 20})`, newTestContext(indicators))
		require.NoError(t, err)
		require.Equal(t, domain.ValueNumber, v.Kind)
		require.True(t, v.Num.Equal(decimal.RequireFromString("187.5")))
	})

	t.Run("lookup failure carries symbol and indicator", func(t *testing.T) {
		_, _, err := evalSource(t, `(indicator "ZZZ" "price")`, newTestContext(newFakeIndicatorService(nil)))
		require.Error(t, err)
		var evalErr *domain.EvaluationError
		require.ErrorAs(t, err, &evalErr)
		require.Contains(t, evalErr.Message, "indicator ZZZ/price")
	})

	t.Run("params must be a map literal", func(t *testing.T) {
		_, _, err := evalSource(t, `(indicator "AAPL" "sma" 20)`, newTestContext(newFakeIndicatorService(nil)))
		require.Error(t, err)
		var evalErr *domain.EvaluationError
		require.ErrorAs(t, err, &evalErr)
		require.Contains(t, evalErr.Message, "must be a map literal")
	})
}

func Test_selectTopOp(t *testing.T) {
	indicators := newFakeIndicatorService(map[string]decimal.Decimal{
		"AAPL/momentum": decimal.RequireFromString("0.20"),
		"MSFT/momentum": decimal.RequireFromString("0.10"),
		"GOOG/momentum": decimal.RequireFromString("0.15"),
	})

	t.Run("equal-weights the highest scorers", func(t *testing.T) {
		v, _, err := evalSource(t, `(select-top 2 "momentum" "AAPL" "MSFT" "GOOG")`, newTestContext(indicators))
		require.NoError(t, err)
		requireWeight(t, v.Fragment, "AAPL", "0.5")
		requireWeight(t, v.Fragment, "GOOG", "0.5")
		_, hasMSFT := v.Fragment.Weights["MSFT"]
		require.False(t, hasMSFT)
	})

	t.Run("score ties break by ascending symbol", func(t *testing.T) {
		tied := newFakeIndicatorService(map[string]decimal.Decimal{
			"AAPL/momentum": decimal.RequireFromString("0.10"),
			"MSFT/momentum": decimal.RequireFromString("0.10"),
			"GOOG/momentum": decimal.RequireFromString("0.10"),
		})
		v, _, err := evalSource(t, `(select-top 2 "momentum" "MSFT" "GOOG" "AAPL")`, newTestContext(tied))
		require.NoError(t, err)
		requireWeight(t, v.Fragment, "AAPL", "0.5")
		requireWeight(t, v.Fragment, "GOOG", "0.5")
	})

	t.Run("count larger than candidate set selects everything", func(t *testing.T) {
		v, _, err := evalSource(t, `(select-top 10 "momentum" "AAPL" "MSFT")`, newTestContext(indicators))
		require.NoError(t, err)
		requireWeight(t, v.Fragment, "AAPL", "0.5")
		requireWeight(t, v.Fragment, "MSFT", "0.5")
	})

	t.Run("empty candidate list falls back to the universe", func(t *testing.T) {
		v, _, err := evalSource(t, `(select-top 1 "momentum")`,
			newTestContext(indicators, "AAPL", "MSFT", "GOOG"))
		require.NoError(t, err)
		requireWeight(t, v.Fragment, "AAPL", "1")
	})

	t.Run("no candidates and no universe is an error", func(t *testing.T) {
		_, _, err := evalSource(t, `(select-top 1 "momentum")`, newTestContext(indicators))
		require.Error(t, err)
		var evalErr *domain.EvaluationError
		require.ErrorAs(t, err, &evalErr)
		require.Contains(t, evalErr.Message, "no candidate symbols")
	})

	t.Run("non-positive count", func(t *testing.T) {
		_, _, err := evalSource(t, `(select-top 0 "momentum" "AAPL")`, newTestContext(indicators))
		require.Error(t, err)
		var evalErr *domain.EvaluationError
		require.ErrorAs(t, err, &evalErr)
		require.Contains(t, evalErr.Message, "must be positive")
	})
}

func Test_selectTopOp_batchPricing(t *testing.T) {
	t.Run("price ranking uses one snapshot call and skips the indicator service", func(t *testing.T) {
		indicators := newFakeIndicatorService(nil)
		md := &fakeMarketData{prices: map[string]decimal.Decimal{
			"AAPL": decimal.NewFromInt(200),
			"GOOG": decimal.NewFromInt(150),
			"MSFT": decimal.NewFromInt(400),
		}}
		ec := NewEvalContext(EvalContextOpts{
			Indicators: indicators,
			MarketData: md,
			AsOf:       testAsOf,
		})

		v, _, err := evalSource(t, `(select-top 2 "price" "AAPL" "GOOG" "MSFT")`, ec)
		require.NoError(t, err)
		requireWeight(t, v.Fragment, "MSFT", "0.5")
		requireWeight(t, v.Fragment, "AAPL", "0.5")
		require.Equal(t, 1, md.calls)
		require.Empty(t, indicators.calls)
	})

	t.Run("snapshot prices seed the memo for later price references", func(t *testing.T) {
		indicators := newFakeIndicatorService(nil)
		md := &fakeMarketData{prices: map[string]decimal.Decimal{
			"AAPL": decimal.NewFromInt(200),
			"MSFT": decimal.NewFromInt(400),
		}}
		ec := NewEvalContext(EvalContextOpts{
			Indicators: indicators,
			MarketData: md,
			AsOf:       testAsOf,
		})

		_, _, err := evalSource(t, `(select-top 1 "price" "AAPL" "MSFT")`, ec)
		require.NoError(t, err)

		v, _, err := evalSource(t, `(indicator "MSFT" "price")`, ec)
		require.NoError(t, err)
		require.True(t, v.Num.Equal(decimal.NewFromInt(400)))
		require.Equal(t, 1, md.calls)
		require.Empty(t, indicators.calls)
	})

	t.Run("snapshot failure is an evaluation error", func(t *testing.T) {
		md := &fakeMarketData{prices: map[string]decimal.Decimal{
			"AAPL": decimal.NewFromInt(200),
		}}
		ec := NewEvalContext(EvalContextOpts{
			Indicators: newFakeIndicatorService(nil),
			MarketData: md,
			AsOf:       testAsOf,
		})

		_, _, err := evalSource(t, `(select-top 1 "price" "AAPL" "GOOG")`, ec)
		require.Error(t, err)

		var evalErr *domain.EvaluationError
		require.ErrorAs(t, err, &evalErr)
		require.Contains(t, evalErr.Message, "failed to price candidates")
	})

	t.Run("non-price rankings keep using the indicator service", func(t *testing.T) {
		indicators := newFakeIndicatorService(map[string]decimal.Decimal{
			"AAPL/momentum": decimal.RequireFromString("0.2"),
			"MSFT/momentum": decimal.RequireFromString("0.1"),
		})
		md := &fakeMarketData{}
		ec := NewEvalContext(EvalContextOpts{
			Indicators: indicators,
			MarketData: md,
			AsOf:       testAsOf,
		})

		v, _, err := evalSource(t, `(select-top 1 "momentum" "AAPL" "MSFT")`, ec)
		require.NoError(t, err)
		requireWeight(t, v.Fragment, "AAPL", "1")
		require.Zero(t, md.calls)
	})
}

func Test_selectBottomOp(t *testing.T) {
	indicators := newFakeIndicatorService(map[string]decimal.Decimal{
		"AAPL/volatility": decimal.RequireFromString("0.30"),
		"MSFT/volatility": decimal.RequireFromString("0.18"),
		"GOOG/volatility": decimal.RequireFromString("0.25"),
	})

	v, _, err := evalSource(t, `(select-bottom 2 "volatility" "AAPL" "MSFT" "GOOG")`, newTestContext(indicators))
	require.NoError(t, err)
	requireWeight(t, v.Fragment, "MSFT", "0.5")
	requireWeight(t, v.Fragment, "GOOG", "0.5")
}
