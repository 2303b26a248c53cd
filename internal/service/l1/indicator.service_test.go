package l1_service

import (
	"context"
	"testing"
	"time"

	"stratengine/internal/domain"
	"stratengine/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeMarketData struct {
	bars  map[string][]domain.Bar
	calls int
}

func (f *fakeMarketData) PricesAsOf(ctx context.Context, symbols []string, asOf time.Time) ([]domain.AssetPrice, error) {
	out := make([]domain.AssetPrice, 0, len(symbols))
	for _, s := range symbols {
		bars := f.bars[s]
		last := bars[len(bars)-1]
		out = append(out, domain.AssetPrice{Symbol: s, Price: last.Close, Date: last.Date})
	}
	return out, nil
}

func (f *fakeMarketData) BarHistory(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	f.calls++
	return f.bars[symbol], nil
}

func barsFromCloses(symbol string, start time.Time, closes []float64) []domain.Bar {
	bars := make([]domain.Bar, 0, len(closes))
	for i, c := range closes {
		bars = append(bars, domain.Bar{
			Symbol: symbol,
			Date:   start.AddDate(0, 0, i),
			Close:  decimal.NewFromFloat(c),
			Volume: decimal.NewFromInt(1000),
		})
	}
	return bars
}

func Test_indicatorService(t *testing.T) {
	asOf := util.NewDate(2025, 6, 2)
	start := asOf.AddDate(0, 0, -9)
	md := &fakeMarketData{
		bars: map[string][]domain.Bar{
			"AAPL": barsFromCloses("AAPL", start, []float64{100, 102, 104, 106, 108, 110, 112, 114, 116, 118}),
		},
	}

	t.Run("price is the latest close", func(t *testing.T) {
		svc := NewIndicatorService(md, nil)

		got, err := svc.Get(context.Background(), "AAPL", "price", nil, asOf)
		require.NoError(t, err)
		require.True(t, got.Equal(decimal.NewFromInt(118)), "got %s", got)
	})

	t.Run("sma over window", func(t *testing.T) {
		svc := NewIndicatorService(md, nil)

		params := map[string]decimal.Decimal{"window": decimal.NewFromInt(4)}
		got, err := svc.Get(context.Background(), "AAPL", "sma", params, asOf)
		require.NoError(t, err)
		// (112+114+116+118)/4
		require.True(t, got.Equal(decimal.NewFromInt(115)), "got %s", got)
	})

	t.Run("momentum is percent change over window", func(t *testing.T) {
		svc := NewIndicatorService(md, nil)

		params := map[string]decimal.Decimal{"window": decimal.NewFromInt(9)}
		got, err := svc.Get(context.Background(), "AAPL", "momentum", params, asOf)
		require.NoError(t, err)
		require.True(t, got.Equal(decimal.NewFromFloat(0.18)), "got %s", got)
	})

	t.Run("insufficient history fails", func(t *testing.T) {
		svc := NewIndicatorService(md, nil)

		params := map[string]decimal.Decimal{"window": decimal.NewFromInt(50)}
		_, err := svc.Get(context.Background(), "AAPL", "sma", params, asOf)
		require.ErrorContains(t, err, "insufficient history")
	})

	t.Run("unknown indicator fails", func(t *testing.T) {
		svc := NewIndicatorService(md, nil)

		_, err := svc.Get(context.Background(), "AAPL", "bogus", nil, asOf)
		require.ErrorContains(t, err, "unknown indicator")
	})

	t.Run("bar history is cached per symbol and day", func(t *testing.T) {
		local := &fakeMarketData{bars: md.bars}
		svc := NewIndicatorService(local, nil)

		_, err := svc.Get(context.Background(), "AAPL", "price", nil, asOf)
		require.NoError(t, err)
		_, err = svc.Get(context.Background(), "AAPL", "sma", map[string]decimal.Decimal{"window": decimal.NewFromInt(4)}, asOf)
		require.NoError(t, err)
		require.Equal(t, 1, local.calls)
	})

	t.Run("formula indicator evaluates goval expression", func(t *testing.T) {
		svc := NewIndicatorService(md, map[string]string{
			"riskadj": "momentum(9) / stdev(9)",
			"spread":  "price(0) - sma(lookback)",
		})

		got, err := svc.Get(context.Background(), "AAPL", "spread", map[string]decimal.Decimal{"lookback": decimal.NewFromInt(4)}, asOf)
		require.NoError(t, err)
		require.True(t, got.Equal(decimal.NewFromInt(3)), "got %s", got)

		_, err = svc.Get(context.Background(), "AAPL", "riskadj", nil, asOf)
		require.NoError(t, err)
	})
}
