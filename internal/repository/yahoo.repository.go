package repository

import (
	"context"
	"fmt"
	"time"

	"stratengine/internal/domain"
	"stratengine/pkg/yahoofinance"

	"github.com/shopspring/decimal"
)

// yahooMarketDataHandler implements MarketDataPort over the Yahoo
// Finance chart endpoint. Adjusted closes are used so indicator windows
// spanning splits stay comparable.
type yahooMarketDataHandler struct {
	Client *yahoofinance.Client
}

func NewYahooMarketData(client *yahoofinance.Client) MarketDataPort {
	return &yahooMarketDataHandler{Client: client}
}

func (h yahooMarketDataHandler) PricesAsOf(ctx context.Context, symbols []string, asOf time.Time) ([]domain.AssetPrice, error) {
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

func (h yahooMarketDataHandler) BarHistory(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	bars, err := h.Client.GetDailyBars(symbol, start, end)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Bar, 0, len(bars))
	for _, bar := range bars {
		out = append(out, domain.Bar{
			Symbol: symbol,
			Date:   bar.Date,
			Close:  bar.AdjClose,
			Volume: decimal.NewFromInt(bar.Volume),
		})
	}
	return out, nil
}
