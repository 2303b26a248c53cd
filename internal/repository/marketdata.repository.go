package repository

import (
	"context"
	"time"

	"stratengine/internal/domain"
)

// MarketDataPort is read-only snapshot access to prices and bar history
// as of a given timestamp. Implementations own timeouts and retries; the
// evaluator treats calls as synchronous.
type MarketDataPort interface {
	PricesAsOf(ctx context.Context, symbols []string, asOf time.Time) ([]domain.AssetPrice, error)
	BarHistory(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}
