package exchange

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"CloudTrader/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var errSellRejected = errors.New("mock: sell rejected")

// Mock is an in-memory Exchange for tests and dry runs. Quotes follow a
// scripted path per market; a NaN step means the quote is unavailable and
// the last step repeats once the path is exhausted.
type Mock struct {
	mu sync.Mutex

	Quote    string
	series   map[string]model.PriceSeries
	paths    map[string][]float64
	cursor   map[string]int
	cash     decimal.Decimal
	holdings map[string]model.Holding
	open     map[string][]model.OpenOrder

	Buys  []model.OrderRef
	Sells []model.OrderRef

	// Error injection. A non-nil error is returned by the matching call.
	MarketsErr error
	CandlesErr map[string]error
	BuyErr     error
	SellErr    error
	// SellFailures makes the next n sells fail.
	SellFailures int
}

// NewMock returns an empty mock holding cash in the quote currency.
func NewMock(quote string, cash float64) *Mock {
	return &Mock{
		Quote:      quote,
		series:     make(map[string]model.PriceSeries),
		paths:      make(map[string][]float64),
		cursor:     make(map[string]int),
		cash:       decimal.NewFromFloat(cash),
		holdings:   make(map[string]model.Holding),
		open:       make(map[string][]model.OpenOrder),
		CandlesErr: make(map[string]error),
	}
}

func (m *Mock) Name() string { return "mock" }

// SetSeries registers the daily candles served for a market.
func (m *Mock) SetSeries(series model.PriceSeries) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[series.Market] = series
}

// SetPrices scripts the quotes CurrentPrice returns for a market.
func (m *Mock) SetPrices(market string, prices ...float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths[market] = prices
	m.cursor[market] = 0
}

// SetHolding overrides the balance of one currency.
func (m *Mock) SetHolding(h model.Holding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holdings[h.Currency] = h
}

// AddOpenSell registers a waiting ask order.
func (m *Mock) AddOpenSell(market string, remaining float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open[market] = append(m.open[market], model.OpenOrder{
		UUID:            uuid.NewString(),
		Market:          market,
		Side:            model.SideAsk,
		RemainingVolume: decimal.NewFromFloat(remaining),
	})
}

// Quoted returns how many quotes of a market were consumed.
func (m *Mock) Quoted(market string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor[market]
}

// Orders returns copies of the placed buy and sell orders.
func (m *Mock) Orders() (buys, sells []model.OrderRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.OrderRef(nil), m.Buys...), append([]model.OrderRef(nil), m.Sells...)
}

func (m *Mock) Markets(_ context.Context, quote string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarketsErr != nil {
		return nil, m.MarketsErr
	}
	var out []string
	for market := range m.series {
		if model.QuoteOf(market) == quote {
			out = append(out, market)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Mock) DailyCandles(_ context.Context, market string, count int) (model.PriceSeries, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.CandlesErr[market]; err != nil {
		return model.PriceSeries{}, err
	}
	s, ok := m.series[market]
	if !ok || len(s.Candles) == 0 {
		return model.PriceSeries{}, fmt.Errorf("%w: no candles for %s", ErrUnavailable, market)
	}
	candles := s.Candles
	if count > 0 && len(candles) > count {
		candles = candles[len(candles)-count:]
	}
	return model.PriceSeries{Market: market, Candles: append([]model.Candle(nil), candles...)}, nil
}

func (m *Mock) CurrentPrice(_ context.Context, market string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.nextPrice(market)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no quote for %s", ErrUnavailable, market)
	}
	return p, nil
}

// nextPrice consumes one step of the path. Caller holds mu.
func (m *Mock) nextPrice(market string) (decimal.Decimal, bool) {
	path := m.paths[market]
	if len(path) == 0 {
		return decimal.Zero, false
	}
	i := m.cursor[market]
	if i >= len(path) {
		i = len(path) - 1
	} else {
		m.cursor[market] = i + 1
	}
	if math.IsNaN(path[i]) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(path[i]), true
}

// lastPrice returns the most recent valid quote without consuming a step.
func (m *Mock) lastPrice(market string) decimal.Decimal {
	path := m.paths[market]
	i := m.cursor[market] - 1
	if i >= len(path) {
		i = len(path) - 1
	}
	for ; i >= 0; i-- {
		if !math.IsNaN(path[i]) {
			return decimal.NewFromFloat(path[i])
		}
	}
	return decimal.Zero
}

func (m *Mock) Holdings(_ context.Context) ([]model.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Holding{{Currency: m.Quote, Balance: m.cash, AvgBuyPrice: decimal.Zero}}
	currencies := make([]string, 0, len(m.holdings))
	for c := range m.holdings {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)
	for _, c := range currencies {
		out = append(out, m.holdings[c])
	}
	return out, nil
}

func (m *Mock) Balance(_ context.Context, currency string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if currency == m.Quote {
		return m.cash, nil
	}
	return m.holdings[currency].Balance, nil
}

func (m *Mock) OpenSellOrders(_ context.Context, market string) ([]model.OpenOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.OpenOrder(nil), m.open[market]...), nil
}

// MarketBuy fills at the last quoted price.
func (m *Mock) MarketBuy(_ context.Context, market string, amount decimal.Decimal) (model.OrderRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BuyErr != nil {
		return model.OrderRef{}, m.BuyErr
	}
	if amount.GreaterThan(m.cash) {
		return model.OrderRef{}, fmt.Errorf("insufficient funds: have %s, need %s", m.cash, amount)
	}
	price := m.lastPrice(market)
	if !price.IsPositive() {
		return model.OrderRef{}, fmt.Errorf("%w: no fill price for %s", ErrUnavailable, market)
	}

	currency := model.CurrencyOf(market)
	volume := amount.Div(price)
	h := m.holdings[currency]
	total := h.Balance.Add(volume)
	h.AvgBuyPrice = h.AvgBuyPrice.Mul(h.Balance).Add(amount).Div(total)
	h.Currency = currency
	h.Balance = total
	m.holdings[currency] = h
	m.cash = m.cash.Sub(amount)

	ref := model.OrderRef{
		UUID:      uuid.NewString(),
		Market:    market,
		Side:      model.SideBid,
		OrdType:   "price",
		Price:     amount,
		State:     "done",
		CreatedAt: time.Now(),
	}
	m.Buys = append(m.Buys, ref)
	return ref, nil
}

// MarketSell fills at the last quoted price.
func (m *Mock) MarketSell(_ context.Context, market string, volume decimal.Decimal) (model.OrderRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SellFailures > 0 {
		m.SellFailures--
		return model.OrderRef{}, errSellRejected
	}
	if m.SellErr != nil {
		return model.OrderRef{}, m.SellErr
	}

	currency := model.CurrencyOf(market)
	h := m.holdings[currency]
	if volume.GreaterThan(h.Balance) {
		return model.OrderRef{}, fmt.Errorf("insufficient volume: have %s, need %s", h.Balance, volume)
	}
	h.Balance = h.Balance.Sub(volume)
	if h.Balance.IsZero() {
		delete(m.holdings, currency)
	} else {
		m.holdings[currency] = h
	}
	m.cash = m.cash.Add(volume.Mul(m.lastPrice(market)))

	ref := model.OrderRef{
		UUID:      uuid.NewString(),
		Market:    market,
		Side:      model.SideAsk,
		OrdType:   "market",
		Volume:    volume,
		State:     "done",
		CreatedAt: time.Now(),
	}
	m.Sells = append(m.Sells, ref)
	return ref, nil
}
