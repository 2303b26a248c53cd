package yahoofinance

import (
	"fmt"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/shopspring/decimal"
)

// Client fetches daily adjusted bars from Yahoo Finance. Used as the
// market-data backend for local runs where no Alpaca keys are set.
type Client struct{}

func NewClient() *Client {
	return &Client{}
}

type DailyBar struct {
	Date     time.Time
	Close    decimal.Decimal
	AdjClose decimal.Decimal
	Volume   int64
}

func (c Client) GetDailyBars(symbol string, start, end time.Time) ([]DailyBar, error) {
	params := &chart.Params{
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Symbol:   symbol,
		Interval: datetime.OneDay,
	}
	iter := chart.Get(params)

	bars := []DailyBar{}
	for iter.Next() {
		bar := iter.Bar()
		bars = append(bars, DailyBar{
			Date:     time.Unix(int64(bar.Timestamp), 0).UTC(),
			Close:    bar.Close,
			AdjClose: bar.AdjClose,
			Volume:   int64(bar.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to get bars for %s: %w", symbol, err)
	}

	return bars, nil
}
