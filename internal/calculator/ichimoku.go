package calculator

import "CloudTrader/internal/model"

// IchimokuParams configures the overlay windows.
type IchimokuParams struct {
	Conversion   int
	Base         int
	SpanB        int
	Displacement int
}

// DefaultIchimoku is the classic 9/26/52 setup displaced by 26 periods.
var DefaultIchimoku = IchimokuParams{Conversion: 9, Base: 26, SpanB: 52, Displacement: 26}

// Overlay holds the four Ichimoku lines, aligned index-for-index with the candles.
// Undefined values are NaN.
type Overlay struct {
	Tenkan []float64 // conversion line
	Kijun  []float64 // base line
	SpanA  []float64 // leading span A, already displaced
	SpanB  []float64 // leading span B, already displaced
}

// Ichimoku computes the overlay with the default parameters.
func Ichimoku(candles []model.Candle) Overlay {
	return IchimokuWith(candles, DefaultIchimoku)
}

// IchimokuWith computes the overlay with custom parameters.
func IchimokuWith(candles []model.Candle, p IchimokuParams) Overlay {
	tenkan := RollingMidpoint(candles, p.Conversion)
	kijun := RollingMidpoint(candles, p.Base)

	spanA := make([]float64, len(candles))
	for i := range spanA {
		spanA[i] = (tenkan[i] + kijun[i]) / 2
	}

	return Overlay{
		Tenkan: tenkan,
		Kijun:  kijun,
		SpanA:  Shift(spanA, p.Displacement),
		SpanB:  Shift(RollingMidpoint(candles, p.SpanB), p.Displacement),
	}
}
