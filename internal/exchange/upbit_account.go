package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"CloudTrader/internal/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type upbitBalance struct {
	Currency     string          `json:"currency"`
	Balance      decimal.Decimal `json:"balance"`
	Locked       decimal.Decimal `json:"locked"`
	AvgBuyPrice  decimal.Decimal `json:"avg_buy_price"`
	UnitCurrency string          `json:"unit_currency"`
}

type upbitOrder struct {
	UUID            string              `json:"uuid"`
	Side            string              `json:"side"`
	OrdType         string              `json:"ord_type"`
	Price           decimal.NullDecimal `json:"price"`
	State           string              `json:"state"`
	Market          string              `json:"market"`
	CreatedAt       time.Time           `json:"created_at"`
	Volume          decimal.NullDecimal `json:"volume"`
	RemainingVolume decimal.NullDecimal `json:"remaining_volume"`
}

func (o upbitOrder) ref() model.OrderRef {
	return model.OrderRef{
		UUID:      o.UUID,
		Market:    o.Market,
		Side:      model.Side(o.Side),
		OrdType:   o.OrdType,
		Price:     o.Price.Decimal,
		Volume:    o.Volume.Decimal,
		State:     o.State,
		CreatedAt: o.CreatedAt,
	}
}

// Holdings returns every non-empty balance of the account, cash included.
func (u *Upbit) Holdings(ctx context.Context) ([]model.Holding, error) {
	var balances []upbitBalance
	err := u.do(ctx, request{method: http.MethodGet, path: "/v1/accounts", private: true}, &balances)
	if err != nil {
		return nil, fmt.Errorf("fetch accounts: %w", err)
	}
	out := make([]model.Holding, 0, len(balances))
	for _, b := range balances {
		out = append(out, model.Holding{
			Currency:    b.Currency,
			Balance:     b.Balance,
			Locked:      b.Locked,
			AvgBuyPrice: b.AvgBuyPrice,
		})
	}
	return out, nil
}

// Balance returns the free balance of one currency, zero when not held.
func (u *Upbit) Balance(ctx context.Context, currency string) (decimal.Decimal, error) {
	holdings, err := u.Holdings(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	for _, h := range holdings {
		if h.Currency == currency {
			return h.Balance, nil
		}
	}
	return decimal.Zero, nil
}

// OpenSellOrders returns waiting ask orders of a market.
func (u *Upbit) OpenSellOrders(ctx context.Context, market string) ([]model.OpenOrder, error) {
	var orders []upbitOrder
	err := u.do(ctx, request{
		method:  http.MethodGet,
		path:    "/v1/orders",
		query:   url.Values{"market": {market}, "state": {"wait"}},
		private: true,
	}, &orders)
	if err != nil {
		return nil, fmt.Errorf("fetch open orders %s: %w", market, err)
	}
	out := make([]model.OpenOrder, 0, len(orders))
	for _, o := range orders {
		if model.Side(o.Side) != model.SideAsk {
			continue
		}
		out = append(out, model.OpenOrder{
			UUID:            o.UUID,
			Market:          o.Market,
			Side:            model.SideAsk,
			RemainingVolume: o.RemainingVolume.Decimal,
		})
	}
	return out, nil
}

// MarketBuy spends amount of the quote currency at market price.
func (u *Upbit) MarketBuy(ctx context.Context, market string, amount decimal.Decimal) (model.OrderRef, error) {
	return u.placeOrder(ctx, map[string]string{
		"market":   market,
		"side":     string(model.SideBid),
		"ord_type": "price",
		"price":    amount.String(),
	})
}

// MarketSell sells volume of the base currency at market price.
func (u *Upbit) MarketSell(ctx context.Context, market string, volume decimal.Decimal) (model.OrderRef, error) {
	return u.placeOrder(ctx, map[string]string{
		"market":   market,
		"side":     string(model.SideAsk),
		"ord_type": "market",
		"volume":   volume.String(),
	})
}

func (u *Upbit) placeOrder(ctx context.Context, body map[string]string) (model.OrderRef, error) {
	var order upbitOrder
	err := u.do(ctx, request{method: http.MethodPost, path: "/v1/orders", body: body, private: true}, &order)
	if err != nil {
		u.log.Error("place order failed",
			zap.String("market", body["market"]), zap.String("side", body["side"]), zap.Error(err))
		return model.OrderRef{}, fmt.Errorf("place %s order %s: %w", body["side"], body["market"], err)
	}
	u.log.Info("place order success",
		zap.String("uuid", order.UUID), zap.String("market", order.Market),
		zap.String("side", order.Side), zap.String("state", order.State))
	return order.ref(), nil
}
