package l1_service

import (
	"fmt"
	"math"
	"time"

	"stratengine/internal/domain"

	"github.com/maja42/goval"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// constructFunctionMap exposes bar-history primitives to formula
// indicators. Each function reads from the already-fetched bar slice,
// so a formula evaluation makes no further market-data calls.
func constructFunctionMap(symbol string, bars []domain.Bar) map[string]goval.ExpressionFunction {
	return map[string]goval.ExpressionFunction{
		// price(daysAgo)
		"price": func(args ...interface{}) (interface{}, error) {
			if len(args) < 1 {
				return 0, fmt.Errorf("price needs 1 arg, got %d", len(args))
			}
			n, err := intArg(args[0])
			if err != nil {
				return 0, err
			}
			idx := len(bars) - 1 - n
			if idx < 0 {
				return 0, fmt.Errorf("price(%d) exceeds available history for %s", n, symbol)
			}
			f, _ := bars[idx].Close.Float64()
			return f, nil
		},

		// volume(daysAgo)
		"volume": func(args ...interface{}) (interface{}, error) {
			if len(args) < 1 {
				return 0, fmt.Errorf("volume needs 1 arg, got %d", len(args))
			}
			n, err := intArg(args[0])
			if err != nil {
				return 0, err
			}
			idx := len(bars) - 1 - n
			if idx < 0 {
				return 0, fmt.Errorf("volume(%d) exceeds available history for %s", n, symbol)
			}
			f, _ := bars[idx].Volume.Float64()
			return f, nil
		},

		// sma(window)
		"sma": func(args ...interface{}) (interface{}, error) {
			if len(args) < 1 {
				return 0, fmt.Errorf("sma needs 1 arg, got %d", len(args))
			}
			w, err := intArg(args[0])
			if err != nil {
				return 0, err
			}
			d, err := smaFromBars(bars, w, symbol)
			if err != nil {
				return 0, err
			}
			f, _ := d.Float64()
			return f, nil
		},

		// momentum(window)
		"momentum": func(args ...interface{}) (interface{}, error) {
			if len(args) < 1 {
				return 0, fmt.Errorf("momentum needs 1 arg, got %d", len(args))
			}
			w, err := intArg(args[0])
			if err != nil {
				return 0, err
			}
			d, err := momentumFromBars(bars, w, symbol)
			if err != nil {
				return 0, err
			}
			f, _ := d.Float64()
			return f, nil
		},

		// stdev(window) - annualized stdev of daily returns
		"stdev": func(args ...interface{}) (interface{}, error) {
			if len(args) < 1 {
				return 0, fmt.Errorf("stdev needs 1 arg, got %d", len(args))
			}
			w, err := intArg(args[0])
			if err != nil {
				return 0, err
			}
			d, err := volatilityFromBars(bars, w, symbol)
			if err != nil {
				return 0, err
			}
			f, _ := d.Float64()
			return f, nil
		},
	}
}

func intArg(arg interface{}) (int, error) {
	switch v := arg.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	}
	return 0, fmt.Errorf("expected numeric arg, got %T", arg)
}

func (h *indicatorServiceHandler) evaluateFormula(
	formula string,
	symbol string,
	bars []domain.Bar,
	params map[string]decimal.Decimal,
	asOf time.Time,
) (decimal.Decimal, error) {
	eval := goval.NewEvaluator()
	variables := map[string]interface{}{
		"symbol":      symbol,
		"currentDate": asOf.Format(dateLayout),
	}
	for name, value := range params {
		f, _ := value.Float64()
		variables[normalizeParamName(name)] = f
	}

	functions := constructFunctionMap(symbol, bars)
	result, err := eval.Evaluate(formula, variables, functions)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to evaluate formula indicator for %s: %w", symbol, err)
	}

	r, ok := result.(float64)
	if !ok {
		if i, isInt := result.(int); isInt {
			r = float64(i)
			ok = true
		}
	}
	if !ok {
		return decimal.Zero, fmt.Errorf("formula indicator for %s did not produce a number, got %T", symbol, result)
	}
	if math.IsNaN(r) {
		return decimal.Zero, fmt.Errorf("formula indicator for %s produced NaN", symbol)
	}
	if math.IsInf(r, 0) {
		return decimal.Zero, fmt.Errorf("formula indicator for %s produced infinity", symbol)
	}

	return decimal.NewFromFloat(r), nil
}
