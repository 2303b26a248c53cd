package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stratengine/internal/domain"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
)

// alpacaMarketDataHandler implements MarketDataPort over the Alpaca
// market data API.
type alpacaMarketDataHandler struct {
	MdClient *marketdata.Client
}

func NewAlpacaMarketData(apiKey, apiSecret, endpoint string) MarketDataPort {
	mdClient := marketdata.NewClient(marketdata.ClientOpts{
		BaseURL:   endpoint,
		APIKey:    apiKey,
		APISecret: apiSecret,
	})

	return &alpacaMarketDataHandler{
		MdClient: mdClient,
	}
}

// PricesAsOf returns the last daily close at or before asOf for each
// symbol. A symbol with no bars in the lookback window is an error -
// callers depend on every requested symbol being priced.
func (h alpacaMarketDataHandler) PricesAsOf(ctx context.Context, symbols []string, asOf time.Time) ([]domain.AssetPrice, error) {
	out := make([]domain.AssetPrice, 0, len(symbols))

	for _, symbol := range symbols {
		bars, err := h.BarHistory(ctx, symbol, asOf.AddDate(0, 0, -10), asOf)
		if err != nil {
			return nil, err
		}
		if len(bars) == 0 {
			return nil, fmt.Errorf("failed to get price for %s: no bars at or before %s", symbol, asOf.Format("2006-01-02"))
		}
		last := bars[len(bars)-1]
		out = append(out, domain.AssetPrice{
			Symbol: symbol,
			Price:  last.Close,
			Date:   last.Date,
		})
	}

	return out, nil
}

func (h alpacaMarketDataHandler) BarHistory(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	results, err := h.MdClient.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get bars for %s: %w", symbol, err)
	}

	out := make([]domain.Bar, 0, len(results))
	for _, bar := range results {
		out = append(out, domain.Bar{
			Symbol: symbol,
			Date:   bar.Timestamp.UTC(),
			Close:  decimal.NewFromFloat(bar.Close),
			Volume: decimal.NewFromInt(int64(bar.Volume)),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})

	return out, nil
}
