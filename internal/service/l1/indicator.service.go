package l1_service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"stratengine/internal/domain"
	"stratengine/internal/repository"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"
)

// lookbackDays bounds how much bar history one indicator computation
// may consume.
const lookbackDays = 400

// IndicatorService computes a named indicator for a symbol as of a
// timestamp. Pure function of its inputs for a fixed market-data
// snapshot - the evaluator relies on that for memoization.
type IndicatorService interface {
	Get(ctx context.Context, symbol string, indicator string, params map[string]decimal.Decimal, asOf time.Time) (decimal.Decimal, error)
}

type indicatorServiceHandler struct {
	MarketData repository.MarketDataPort
	Formulas   map[string]string

	mu       sync.Mutex
	barCache map[string][]domain.Bar
}

// NewIndicatorService builds the service. formulas maps custom
// indicator names to goval expressions evaluated over bar history; pass
// nil when only the built-ins are needed.
func NewIndicatorService(marketData repository.MarketDataPort, formulas map[string]string) IndicatorService {
	return &indicatorServiceHandler{
		MarketData: marketData,
		Formulas:   formulas,
		barCache:   map[string][]domain.Bar{},
	}
}

func (h *indicatorServiceHandler) Get(ctx context.Context, symbol string, indicator string, params map[string]decimal.Decimal, asOf time.Time) (decimal.Decimal, error) {
	bars, err := h.barHistory(ctx, symbol, asOf)
	if err != nil {
		return decimal.Zero, err
	}

	switch indicator {
	case "price":
		if len(bars) == 0 {
			return decimal.Zero, fmt.Errorf("no price history for %s as of %s", symbol, asOf.Format("2006-01-02"))
		}
		return bars[len(bars)-1].Close, nil
	case "volume":
		if len(bars) == 0 {
			return decimal.Zero, fmt.Errorf("no volume history for %s as of %s", symbol, asOf.Format("2006-01-02"))
		}
		return bars[len(bars)-1].Volume, nil
	case "sma":
		return smaFromBars(bars, windowParam(params, 20), symbol)
	case "momentum":
		return momentumFromBars(bars, windowParam(params, 30), symbol)
	case "volatility":
		return volatilityFromBars(bars, windowParam(params, 30), symbol)
	case "rsi":
		return rsiFromBars(bars, windowParam(params, 14), symbol)
	}

	if formula, ok := h.Formulas[indicator]; ok {
		return h.evaluateFormula(formula, symbol, bars, params, asOf)
	}

	return decimal.Zero, fmt.Errorf("unknown indicator %q", indicator)
}

func (h *indicatorServiceHandler) barHistory(ctx context.Context, symbol string, asOf time.Time) ([]domain.Bar, error) {
	start := asOf.AddDate(0, 0, -lookbackDays)
	key := fmt.Sprintf("%s|%s|%s", symbol, start.Format("2006-01-02"), asOf.Format("2006-01-02"))

	h.mu.Lock()
	cached, ok := h.barCache[key]
	h.mu.Unlock()
	if ok {
		return cached, nil
	}

	bars, err := h.MarketData.BarHistory(ctx, symbol, start, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to get bar history for %s: %w", symbol, err)
	}
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})

	h.mu.Lock()
	h.barCache[key] = bars
	h.mu.Unlock()

	return bars, nil
}

func windowParam(params map[string]decimal.Decimal, fallback int) int {
	if params == nil {
		return fallback
	}
	w, ok := params["window"]
	if !ok {
		return fallback
	}
	n := int(w.IntPart())
	if n <= 0 {
		return fallback
	}
	return n
}

func closes(bars []domain.Bar) []float64 {
	out := make([]float64, 0, len(bars))
	for _, b := range bars {
		f, _ := b.Close.Float64()
		out = append(out, f)
	}
	return out
}

func lastN(values []float64, n int) ([]float64, bool) {
	if len(values) < n {
		return nil, false
	}
	return values[len(values)-n:], true
}

func smaFromBars(bars []domain.Bar, window int, symbol string) (decimal.Decimal, error) {
	series, ok := lastN(closes(bars), window)
	if !ok {
		return decimal.Zero, fmt.Errorf("insufficient history for sma(%d) on %s: have %d bars", window, symbol, len(bars))
	}
	mean, err := stats.Mean(series)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to compute sma for %s: %w", symbol, err)
	}
	return decimal.NewFromFloat(mean), nil
}

// momentumFromBars is the percent change of close over the window.
func momentumFromBars(bars []domain.Bar, window int, symbol string) (decimal.Decimal, error) {
	series, ok := lastN(closes(bars), window+1)
	if !ok {
		return decimal.Zero, fmt.Errorf("insufficient history for momentum(%d) on %s: have %d bars", window, symbol, len(bars))
	}
	first := series[0]
	last := series[len(series)-1]
	if first == 0 {
		return decimal.Zero, fmt.Errorf("cannot compute momentum for %s: zero starting price", symbol)
	}
	return decimal.NewFromFloat((last - first) / first), nil
}

// volatilityFromBars is the annualized standard deviation of daily
// returns over the window.
func volatilityFromBars(bars []domain.Bar, window int, symbol string) (decimal.Decimal, error) {
	series, ok := lastN(closes(bars), window+1)
	if !ok {
		return decimal.Zero, fmt.Errorf("insufficient history for volatility(%d) on %s: have %d bars", window, symbol, len(bars))
	}
	returns := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		if series[i-1] == 0 {
			return decimal.Zero, fmt.Errorf("cannot compute volatility for %s: zero price in window", symbol)
		}
		returns = append(returns, (series[i]-series[i-1])/series[i-1])
	}
	stdev, err := stats.StandardDeviationSample(returns)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to compute volatility for %s: %w", symbol, err)
	}
	return decimal.NewFromFloat(stdev * math.Sqrt(252)), nil
}

func rsiFromBars(bars []domain.Bar, window int, symbol string) (decimal.Decimal, error) {
	series, ok := lastN(closes(bars), window+1)
	if !ok {
		return decimal.Zero, fmt.Errorf("insufficient history for rsi(%d) on %s: have %d bars", window, symbol, len(bars))
	}

	var gains, losses float64
	for i := 1; i < len(series); i++ {
		change := series[i] - series[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	if losses == 0 {
		return decimal.NewFromInt(100), nil
	}
	rs := (gains / float64(window)) / (losses / float64(window))
	return decimal.NewFromFloat(100 - 100/(1+rs)), nil
}

func normalizeParamName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}
