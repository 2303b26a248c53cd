package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AssetPrice struct {
	Symbol string
	Price  decimal.Decimal
	Date   time.Time
}

// Bar is one daily observation from a market-data snapshot.
type Bar struct {
	Symbol string
	Date   time.Time
	Close  decimal.Decimal
	Volume decimal.Decimal
}
