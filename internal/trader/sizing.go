package trader

import (
	"time"

	"github.com/shopspring/decimal"
)

// BuyAmount sizes a market buy as min(maxAmount, balance). ok is false when
// the result is below minAmount and no order should be placed.
func BuyAmount(balance, minAmount, maxAmount decimal.Decimal) (amount decimal.Decimal, ok bool) {
	amount = decimal.Min(maxAmount, balance)
	if amount.LessThan(minAmount) {
		return decimal.Zero, false
	}
	return amount, true
}

// NextBoundary returns the first multiple of step after t's truncation to
// step, e.g. 09:07:30 -> 09:10:00 for a five minute step.
func NextBoundary(t time.Time, step time.Duration) time.Time {
	if step <= 0 {
		return t
	}
	return t.Truncate(step).Add(step)
}
