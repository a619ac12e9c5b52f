package strategy

import (
	"fmt"

	"CloudTrader/internal/calculator"
	"CloudTrader/internal/model"
)

// Conditions is the breakdown of the entry signal for one evaluation candle.
type Conditions struct {
	Candle model.Candle
	Close  float64

	Tenkan     float64
	Kijun      float64
	TenkanNext float64
	KijunNext  float64
	SpanA      float64
	SpanB      float64

	C1 bool // bullish candle crossed by rising conversion and base lines
	C2 bool // no line above the close
	C3 bool // lines cross or pass below the candle
	C4 bool // body longer than both wicks together
	C5 bool // no cloud above the candle
}

// Selected is the conjunction of all five conditions.
func (c Conditions) Selected() bool {
	return c.C1 && c.C2 && c.C3 && c.C4 && c.C5
}

// String renders the breakdown for logs.
func (c Conditions) String() string {
	return fmt.Sprintf("close=%.8g c1=%v c2=%v c3=%v c4=%v c5=%v", c.Close, c.C1, c.C2, c.C3, c.C4, c.C5)
}

// Check evaluates the entry conditions on the latest closed candle.
//
// The last candle of the series is the session still trading. Its conversion
// and base line values act as the one-period-ahead view that the crossover
// and overhead checks compare against. Any NaN operand makes its comparison
// false, so a series too short for a window never selects.
func Check(series model.PriceSeries) Conditions {
	return CheckWith(series, calculator.DefaultIchimoku)
}

// CheckWith is Check with custom Ichimoku windows.
func CheckWith(series model.PriceSeries, p calculator.IchimokuParams) Conditions {
	candles := series.Candles
	if len(candles) < 2 {
		return Conditions{}
	}
	ov := calculator.IchimokuWith(candles, p)

	i := len(candles) - 2
	c := candles[i]
	cond := Conditions{
		Candle:     c,
		Close:      c.Close,
		Tenkan:     calculator.At(ov.Tenkan, i),
		Kijun:      calculator.At(ov.Kijun, i),
		TenkanNext: calculator.At(ov.Tenkan, i+1),
		KijunNext:  calculator.At(ov.Kijun, i+1),
		SpanA:      calculator.At(ov.SpanA, i),
		SpanB:      calculator.At(ov.SpanB, i),
	}

	rising := c.Bullish() && cond.TenkanNext > cond.Tenkan && cond.KijunNext > cond.Kijun
	cond.C1 = rising && cond.Tenkan > c.Open && cond.Kijun > c.Open

	cond.C2 = cond.TenkanNext < c.Close && cond.KijunNext < c.Close

	// Implied by C2; kept as its own check.
	cond.C3 = cond.TenkanNext < c.Close || cond.KijunNext < c.Close

	body := c.Close - c.Open
	upperWick := c.High - c.Close
	lowerWick := c.Open - c.Low
	cond.C4 = body > upperWick+lowerWick

	cond.C5 = c.Close > cond.SpanA && c.Close > cond.SpanB

	return cond
}

// Evaluate reports whether the series fires the entry signal.
func Evaluate(series model.PriceSeries) bool {
	return Check(series).Selected()
}
