// Package portfolio builds the periodic account summary.
package portfolio

import (
	"context"
	"fmt"
	"strings"
	"time"

	"CloudTrader/internal/model"

	"github.com/shopspring/decimal"
)

// Account is the read-only part of the exchange a report needs.
type Account interface {
	Holdings(ctx context.Context) ([]model.Holding, error)
	OpenSellOrders(ctx context.Context, market string) ([]model.OpenOrder, error)
}

// Line is one held market in a summary.
type Line struct {
	Market      string
	Quantity    decimal.Decimal // free balance plus waiting sell volume
	AvgBuyPrice decimal.Decimal
	Value       decimal.Decimal // AvgBuyPrice * Quantity
}

// Summary is an account snapshot valued at average buy prices.
type Summary struct {
	Cash  decimal.Decimal
	Lines []Line
	Total decimal.Decimal
	At    time.Time
}

// Build snapshots the account. Holdings outside universe are ignored;
// volume locked in waiting sell orders counts as still held.
func Build(ctx context.Context, account Account, universe []string, quote string) (Summary, error) {
	holdings, err := account.Holdings(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch holdings: %w", err)
	}

	tradable := make(map[string]bool, len(universe))
	for _, m := range universe {
		tradable[m] = true
	}

	s := Summary{Cash: decimal.Zero, At: time.Now()}
	for _, h := range holdings {
		if h.Currency == quote {
			s.Cash = h.Balance
			break
		}
	}
	s.Total = s.Cash

	for _, h := range holdings {
		if h.Currency == quote {
			continue
		}
		market := model.MarketFor(quote, h.Currency)
		if !tradable[market] {
			continue
		}

		qty := h.Balance
		orders, err := account.OpenSellOrders(ctx, market)
		if err != nil {
			return Summary{}, fmt.Errorf("fetch open orders %s: %w", market, err)
		}
		for _, o := range orders {
			if o.Side == model.SideAsk {
				qty = qty.Add(o.RemainingVolume)
			}
		}

		value := h.AvgBuyPrice.Mul(qty)
		s.Lines = append(s.Lines, Line{Market: market, Quantity: qty, AvgBuyPrice: h.AvgBuyPrice, Value: value})
		s.Total = s.Total.Add(value)
	}
	return s, nil
}

// Format renders the summary as a chat message.
func Format(s Summary) string {
	var b strings.Builder
	b.WriteString("Holdings:\n")
	for _, l := range s.Lines {
		b.WriteString(fmt.Sprintf("%s: qty %s, value %s KRW\n", l.Market, l.Quantity.String(), l.Value.StringFixed(0)))
	}
	b.WriteString(fmt.Sprintf("Cash: %s KRW\n", s.Cash.StringFixed(0)))
	b.WriteString(fmt.Sprintf("Total assets: %s KRW", s.Total.StringFixed(0)))
	return b.String()
}
