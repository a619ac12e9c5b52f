package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExitReason tells why a position stopped being monitored.
type ExitReason string

const (
	ExitTrailingStop ExitReason = "TRAILING_STOP"
	ExitStopLoss     ExitReason = "STOP_LOSS"
	ExitNoBalance    ExitReason = "NO_BALANCE"
	ExitInterrupted  ExitReason = "INTERRUPTED"
)

// Label returns the human readable form used in notifications.
func (r ExitReason) Label() string {
	switch r {
	case ExitTrailingStop:
		return "Trailing Stop"
	case ExitStopLoss:
		return "Stop Loss"
	case ExitNoBalance:
		return "No Balance"
	case ExitInterrupted:
		return "Interrupted"
	default:
		return string(r)
	}
}

// Closed reports whether the position was sold.
func (r ExitReason) Closed() bool {
	return r == ExitTrailingStop || r == ExitStopLoss
}

// Position is an open position owned by a single exit monitor.
type Position struct {
	Market       string
	EntryPrice   decimal.Decimal
	TrailingHigh decimal.Decimal
	Armed        bool
	LastPrice    decimal.Decimal
	OpenedAt     time.Time
}

// ExitReport is the outcome of monitoring one position.
type ExitReport struct {
	Market       string
	Reason       ExitReason
	EntryPrice   decimal.Decimal
	ExitPrice    decimal.Decimal
	TrailingHigh decimal.Decimal
	Armed        bool
	Volume       decimal.Decimal
	Samples      int
	OpenedAt     time.Time
	ClosedAt     time.Time
	Order        *OrderRef
}

// ReturnPct is the percentage change from entry to exit price.
func (r ExitReport) ReturnPct() float64 {
	if r.EntryPrice.IsZero() || r.ExitPrice.IsZero() {
		return 0
	}
	pct, _ := r.ExitPrice.Sub(r.EntryPrice).Div(r.EntryPrice).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}
