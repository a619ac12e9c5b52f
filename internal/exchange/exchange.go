package exchange

import (
	"context"
	"errors"

	"CloudTrader/internal/model"

	"github.com/shopspring/decimal"
)

// ErrUnavailable marks transient data unavailability: no candles, no quote,
// rate limiting or a server-side hiccup. Callers skip and try again later.
var ErrUnavailable = errors.New("exchange data unavailable")

// MarketData defines read access to public market data.
type MarketData interface {
	Markets(ctx context.Context, quote string) ([]string, error)
	DailyCandles(ctx context.Context, market string, count int) (model.PriceSeries, error)
	CurrentPrice(ctx context.Context, market string) (decimal.Decimal, error)
}

// Account defines access to the private trading account.
type Account interface {
	Holdings(ctx context.Context) ([]model.Holding, error)
	Balance(ctx context.Context, currency string) (decimal.Decimal, error)
	OpenSellOrders(ctx context.Context, market string) ([]model.OpenOrder, error)
	MarketBuy(ctx context.Context, market string, amount decimal.Decimal) (model.OrderRef, error)
	MarketSell(ctx context.Context, market string, volume decimal.Decimal) (model.OrderRef, error)
}

// Exchange is a full exchange connection.
type Exchange interface {
	MarketData
	Account
	Name() string
}
