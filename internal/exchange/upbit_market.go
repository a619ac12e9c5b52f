package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"CloudTrader/internal/model"

	"github.com/shopspring/decimal"
)

// Upbit timestamps without an offset are Korea Standard Time.
var kst = time.FixedZone("KST", 9*60*60)

// maxCandleCount is the largest page /v1/candles/days serves.
const maxCandleCount = 200

type upbitMarket struct {
	Market      string `json:"market"`
	KoreanName  string `json:"korean_name"`
	EnglishName string `json:"english_name"`
}

// upbitCandle is the JSON shape of /v1/candles/days.
type upbitCandle struct {
	Market        string  `json:"market"`
	CandleTimeKST string  `json:"candle_date_time_kst"`
	Open          float64 `json:"opening_price"`
	High          float64 `json:"high_price"`
	Low           float64 `json:"low_price"`
	Close         float64 `json:"trade_price"`
	Volume        float64 `json:"candle_acc_trade_volume"`
}

type upbitTicker struct {
	Market     string          `json:"market"`
	TradePrice decimal.Decimal `json:"trade_price"`
}

// Markets lists every market quoted in the given currency, sorted.
func (u *Upbit) Markets(ctx context.Context, quote string) ([]string, error) {
	var markets []upbitMarket
	err := u.do(ctx, request{
		method: http.MethodGet,
		path:   "/v1/market/all",
		query:  url.Values{"isDetails": {"false"}},
	}, &markets)
	if err != nil {
		return nil, fmt.Errorf("fetch markets: %w", err)
	}
	prefix := quote + "-"
	out := make([]string, 0, len(markets))
	for _, m := range markets {
		if strings.HasPrefix(m.Market, prefix) {
			out = append(out, m.Market)
		}
	}
	sort.Strings(out)
	return out, nil
}

// DailyCandles returns up to count daily candles in chronological order.
// The newest candle is today's running session.
func (u *Upbit) DailyCandles(ctx context.Context, market string, count int) (model.PriceSeries, error) {
	if count <= 0 || count > maxCandleCount {
		count = maxCandleCount
	}
	var raw []upbitCandle
	err := u.do(ctx, request{
		method: http.MethodGet,
		path:   "/v1/candles/days",
		query:  url.Values{"market": {market}, "count": {strconv.Itoa(count)}},
	}, &raw)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("fetch candles %s: %w", market, err)
	}
	if len(raw) == 0 {
		return model.PriceSeries{}, fmt.Errorf("%w: no candles for %s", ErrUnavailable, market)
	}

	candles := make([]model.Candle, 0, len(raw))
	for _, rc := range raw {
		ts, err := time.ParseInLocation("2006-01-02T15:04:05", rc.CandleTimeKST, kst)
		if err != nil {
			return model.PriceSeries{}, fmt.Errorf("parse candle time %q: %w", rc.CandleTimeKST, err)
		}
		candles = append(candles, model.Candle{
			Time:   ts,
			Open:   rc.Open,
			High:   rc.High,
			Low:    rc.Low,
			Close:  rc.Close,
			Volume: rc.Volume,
		})
	}
	// Upbit returns newest first.
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
	return model.PriceSeries{Market: market, Candles: candles}, nil
}

// CurrentPrice returns the last trade price of a market.
func (u *Upbit) CurrentPrice(ctx context.Context, market string) (decimal.Decimal, error) {
	var tickers []upbitTicker
	err := u.do(ctx, request{
		method: http.MethodGet,
		path:   "/v1/ticker",
		query:  url.Values{"markets": {market}},
	}, &tickers)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch price %s: %w", market, err)
	}
	for _, t := range tickers {
		if t.Market == market && t.TradePrice.IsPositive() {
			return t.TradePrice, nil
		}
	}
	return decimal.Zero, fmt.Errorf("%w: no quote for %s", ErrUnavailable, market)
}
