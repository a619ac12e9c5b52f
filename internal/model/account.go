package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the exchange order side.
type Side string

const (
	SideBid Side = "bid" // buy
	SideAsk Side = "ask" // sell
)

// Holding is one currency balance of the trading account.
type Holding struct {
	Currency    string
	Balance     decimal.Decimal
	Locked      decimal.Decimal
	AvgBuyPrice decimal.Decimal
}

// OpenOrder is an order that has not been completely filled.
type OpenOrder struct {
	UUID            string
	Market          string
	Side            Side
	RemainingVolume decimal.Decimal
}

// OrderRef is the exchange acknowledgement of a placed order.
type OrderRef struct {
	UUID      string
	Market    string
	Side      Side
	OrdType   string
	Price     decimal.Decimal // KRW notional for market buys
	Volume    decimal.Decimal // base quantity for market sells
	State     string
	CreatedAt time.Time
}
