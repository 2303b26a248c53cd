package l2_service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"stratengine/internal/domain"
	"stratengine/internal/lang"
	"stratengine/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// fakeIndicatorService serves scripted values keyed "SYMBOL/indicator"
// and counts lookups per key, so tests can pin short-circuit and
// memoization behavior.
type fakeIndicatorService struct {
	values map[string]decimal.Decimal
	calls  map[string]int
}

func newFakeIndicatorService(values map[string]decimal.Decimal) *fakeIndicatorService {
	return &fakeIndicatorService{
		values: values,
		calls:  map[string]int{},
	}
}

func (f *fakeIndicatorService) Get(ctx context.Context, symbol string, indicator string, params map[string]decimal.Decimal, asOf time.Time) (decimal.Decimal, error) {
	key := symbol + "/" + indicator
	f.calls[key]++
	v, ok := f.values[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("no data for %s", key)
	}
	return v, nil
}

// fakeMarketData serves scripted closing prices and counts snapshot
// calls. An unscripted symbol is an error, like the real backends.
type fakeMarketData struct {
	prices map[string]decimal.Decimal
	calls  int
}

func (f *fakeMarketData) PricesAsOf(ctx context.Context, symbols []string, asOf time.Time) ([]domain.AssetPrice, error) {
	f.calls++
	out := make([]domain.AssetPrice, 0, len(symbols))
	for _, s := range symbols {
		p, ok := f.prices[s]
		if !ok {
			return nil, fmt.Errorf("no price for %s", s)
		}
		out = append(out, domain.AssetPrice{Symbol: s, Price: p, Date: asOf})
	}
	return out, nil
}

func (f *fakeMarketData) BarHistory(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	return nil, nil
}

var testAsOf = util.NewDate(2025, 6, 2)

func newTestContext(indicators *fakeIndicatorService, universe ...string) *EvalContext {
	return NewEvalContext(EvalContextOpts{
		Indicators: indicators,
		AsOf:       testAsOf,
		Universe:   universe,
	})
}

func mustParse(t *testing.T, source string) *lang.Node {
	t.Helper()
	node, err := lang.Parse(source)
	require.NoError(t, err)
	return node
}

func evalSource(t *testing.T, source string, ec *EvalContext) (domain.Value, domain.Trace, error) {
	t.Helper()
	tb := domain.NewTraceBuilder()
	v, err := NewDSLEvaluator().Evaluate(context.Background(), mustParse(t, source), ec, tb)
	return v, tb.Build(), err
}

func requireWeight(t *testing.T, frag *domain.PortfolioFragment, symbol string, expected string) {
	t.Helper()
	w, ok := frag.Weights[symbol]
	require.True(t, ok, "fragment missing %s: %s", symbol, frag)
	require.True(t, w.Equal(decimal.RequireFromString(expected)), "weight for %s: got %s, want %s", symbol, w, expected)
}
