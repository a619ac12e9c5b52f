package calculator

import (
	"math"

	"CloudTrader/internal/model"
)

// RollingHighLow scans each trailing window of the given size and returns the
// highest high and lowest low ending at every index. Indexes without a full
// window are NaN.
func RollingHighLow(candles []model.Candle, window int) (highs, lows []float64) {
	n := len(candles)
	highs = nanSlice(n)
	lows = nanSlice(n)
	if window <= 0 {
		return highs, lows
	}
	for i := window - 1; i < n; i++ {
		high := math.Inf(-1)
		low := math.Inf(1)
		for j := i - window + 1; j <= i; j++ {
			if candles[j].High > high {
				high = candles[j].High
			}
			if candles[j].Low < low {
				low = candles[j].Low
			}
		}
		highs[i] = high
		lows[i] = low
	}
	return highs, lows
}

// RollingMidpoint returns (highest high + lowest low) / 2 over each trailing window.
func RollingMidpoint(candles []model.Candle, window int) []float64 {
	highs, lows := RollingHighLow(candles, window)
	mid := make([]float64, len(candles))
	for i := range mid {
		mid[i] = (highs[i] + lows[i]) / 2
	}
	return mid
}

// Shift moves values forward by periods, padding the head with NaN.
// A negative period pulls later values back, padding the tail.
func Shift(values []float64, periods int) []float64 {
	n := len(values)
	out := nanSlice(n)
	for i := range out {
		src := i - periods
		if src >= 0 && src < n {
			out[i] = values[src]
		}
	}
	return out
}

// At returns values[i], or NaN when i is out of range.
func At(values []float64, i int) float64 {
	if i < 0 || i >= len(values) {
		return math.NaN()
	}
	return values[i]
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
