package model

import (
	"strings"
	"time"
)

// Candle represents a single OHLCV bar.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool {
	return c.Close > c.Open
}

// PriceSeries holds daily candles for one market in chronological order.
// The final candle is the session that is still trading.
type PriceSeries struct {
	Market  string
	Candles []Candle
}

// Len returns the number of candles.
func (s PriceSeries) Len() int { return len(s.Candles) }

// Entry is a market that fired the entry signal and waits to be bought.
type Entry struct {
	Market    string
	ScannedAt time.Time
	Close     float64
}

// MarketFor builds an exchange market code such as "KRW-BTC".
func MarketFor(quote, currency string) string {
	return quote + "-" + currency
}

// CurrencyOf returns the base currency of a market code ("KRW-BTC" -> "BTC").
func CurrencyOf(market string) string {
	if i := strings.IndexByte(market, '-'); i >= 0 {
		return market[i+1:]
	}
	return market
}

// QuoteOf returns the quote currency of a market code ("KRW-BTC" -> "KRW").
func QuoteOf(market string) string {
	if i := strings.IndexByte(market, '-'); i >= 0 {
		return market[:i]
	}
	return ""
}
