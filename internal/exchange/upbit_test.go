package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func newTestUpbit(t *testing.T, handler http.HandlerFunc) *Upbit {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewUpbit(srv.URL, "access", "secret", "", 1000, zap.NewNop())
}

func TestUpbit_DailyCandlesSortedAscending(t *testing.T) {
	u := newTestUpbit(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/candles/days" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("market"); got != "KRW-BTC" {
			t.Errorf("unexpected market %q", got)
		}
		if got := r.URL.Query().Get("count"); got != "3" {
			t.Errorf("unexpected count %q", got)
		}
		w.Write([]byte(`[
			{"market":"KRW-BTC","candle_date_time_kst":"2024-03-03T09:00:00","opening_price":3,"high_price":4,"low_price":2,"trade_price":3.5,"candle_acc_trade_volume":10},
			{"market":"KRW-BTC","candle_date_time_kst":"2024-03-02T09:00:00","opening_price":2,"high_price":3,"low_price":1,"trade_price":2.5,"candle_acc_trade_volume":20},
			{"market":"KRW-BTC","candle_date_time_kst":"2024-03-01T09:00:00","opening_price":1,"high_price":2,"low_price":0.5,"trade_price":1.5,"candle_acc_trade_volume":30}
		]`))
	})

	series, err := u.DailyCandles(context.Background(), "KRW-BTC", 3)
	if err != nil {
		t.Fatalf("daily candles: %v", err)
	}
	if series.Len() != 3 {
		t.Fatalf("expected 3 candles, got %d", series.Len())
	}
	for i := 1; i < series.Len(); i++ {
		if !series.Candles[i-1].Time.Before(series.Candles[i].Time) {
			t.Errorf("candles not ascending at %d", i)
		}
	}
	first := series.Candles[0]
	if first.Open != 1 || first.Close != 1.5 || first.Volume != 30 {
		t.Errorf("unexpected first candle %+v", first)
	}
	if got := first.Time.UTC().Hour(); got != 0 {
		t.Errorf("expected 09:00 KST to be 00:00 UTC, got hour %d", got)
	}
}

func TestUpbit_DailyCandlesEmptyIsUnavailable(t *testing.T) {
	u := newTestUpbit(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	_, err := u.DailyCandles(context.Background(), "KRW-NEW", 200)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestUpbit_MarketsFilteredByQuote(t *testing.T) {
	u := newTestUpbit(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"market":"KRW-ETH"},{"market":"BTC-ETH"},{"market":"KRW-BTC"},{"market":"USDT-BTC"}]`))
	})
	markets, err := u.Markets(context.Background(), "KRW")
	if err != nil {
		t.Fatalf("markets: %v", err)
	}
	if len(markets) != 2 || markets[0] != "KRW-BTC" || markets[1] != "KRW-ETH" {
		t.Errorf("unexpected markets %v", markets)
	}
}

func TestUpbit_CurrentPrice(t *testing.T) {
	u := newTestUpbit(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("markets"); got != "KRW-BTC" {
			t.Errorf("unexpected markets param %q", got)
		}
		w.Write([]byte(`[{"market":"KRW-BTC","trade_price":51234000.5}]`))
	})
	price, err := u.CurrentPrice(context.Background(), "KRW-BTC")
	if err != nil {
		t.Fatalf("current price: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("51234000.5")) {
		t.Errorf("unexpected price %s", price)
	}
}

func TestUpbit_RateLimitIsUnavailable(t *testing.T) {
	u := newTestUpbit(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"name":"too_many_requests","message":"slow down"}}`))
	})
	_, err := u.CurrentPrice(context.Background(), "KRW-BTC")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Name != "too_many_requests" {
		t.Errorf("expected APIError with name, got %v", err)
	}
}

func TestUpbit_ClientErrorIsNotUnavailable(t *testing.T) {
	u := newTestUpbit(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"name":"insufficient_funds_bid","message":"not enough KRW"}}`))
	})
	_, err := u.MarketBuy(context.Background(), "KRW-BTC", decimal.NewFromInt(10000))
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrUnavailable) {
		t.Errorf("400 should not be ErrUnavailable: %v", err)
	}
}

func TestUpbit_HoldingsSigned(t *testing.T) {
	u := newTestUpbit(t, func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			t.Errorf("missing bearer token: %q", auth)
		}
		tok, err := jwt.Parse(strings.TrimPrefix(auth, "Bearer "), func(*jwt.Token) (any, error) {
			return []byte("secret"), nil
		})
		if err != nil || !tok.Valid {
			t.Errorf("invalid token: %v", err)
		} else if claims := tok.Claims.(jwt.MapClaims); claims["access_key"] != "access" || claims["nonce"] == "" {
			t.Errorf("unexpected claims %v", claims)
		}
		w.Write([]byte(`[
			{"currency":"KRW","balance":"10000.0","locked":"0.0","avg_buy_price":"0","unit_currency":"KRW"},
			{"currency":"BTC","balance":"0.5","locked":"0.1","avg_buy_price":"50000000","unit_currency":"KRW"}
		]`))
	})

	holdings, err := u.Holdings(context.Background())
	if err != nil {
		t.Fatalf("holdings: %v", err)
	}
	if len(holdings) != 2 {
		t.Fatalf("expected 2 holdings, got %d", len(holdings))
	}
	if !holdings[1].Balance.Equal(decimal.RequireFromString("0.5")) || !holdings[1].Locked.Equal(decimal.RequireFromString("0.1")) {
		t.Errorf("unexpected BTC holding %+v", holdings[1])
	}

	bal, err := u.Balance(context.Background(), "ETH")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !bal.IsZero() {
		t.Errorf("expected zero balance for missing currency, got %s", bal)
	}
}

func TestUpbit_OpenSellOrdersQueryHash(t *testing.T) {
	u := newTestUpbit(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != "wait" || q.Get("market") != "KRW-ETH" {
			t.Errorf("unexpected query %v", q)
		}
		tok, _, err := jwt.NewParser().ParseUnverified(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "), jwt.MapClaims{})
		if err != nil {
			t.Errorf("parse token: %v", err)
			return
		}
		claims := tok.Claims.(jwt.MapClaims)
		if claims["query_hash_alg"] != "SHA512" || claims["query_hash"] == nil {
			t.Errorf("expected query hash claims, got %v", claims)
		}
		w.Write([]byte(`[
			{"uuid":"a","side":"ask","ord_type":"limit","price":"3000000","state":"wait","market":"KRW-ETH","volume":"1.0","remaining_volume":"0.4"},
			{"uuid":"b","side":"bid","ord_type":"limit","price":"2000000","state":"wait","market":"KRW-ETH","volume":"1.0","remaining_volume":"1.0"},
			{"uuid":"c","side":"ask","ord_type":"market","price":null,"state":"wait","market":"KRW-ETH","volume":"0.2","remaining_volume":"0.2"}
		]`))
	})

	orders, err := u.OpenSellOrders(context.Background(), "KRW-ETH")
	if err != nil {
		t.Fatalf("open orders: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 ask orders, got %d", len(orders))
	}
	if !orders[0].RemainingVolume.Equal(decimal.RequireFromString("0.4")) {
		t.Errorf("unexpected remaining volume %s", orders[0].RemainingVolume)
	}
}

func TestUpbit_MarketOrderBodies(t *testing.T) {
	var bodies []map[string]string
	u := newTestUpbit(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/orders" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		bodies = append(bodies, body)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"uuid":"u-1","side":"` + body["side"] + `","ord_type":"` + body["ord_type"] + `","state":"wait","market":"` + body["market"] + `","created_at":"2024-03-01T10:00:00+09:00"}`))
	})

	buy, err := u.MarketBuy(context.Background(), "KRW-BTC", decimal.NewFromInt(50000))
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if buy.UUID != "u-1" || buy.Side != "bid" {
		t.Errorf("unexpected buy ref %+v", buy)
	}
	if _, err := u.MarketSell(context.Background(), "KRW-BTC", decimal.RequireFromString("0.001")); err != nil {
		t.Fatalf("sell: %v", err)
	}

	if len(bodies) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(bodies))
	}
	if b := bodies[0]; b["side"] != "bid" || b["ord_type"] != "price" || b["price"] != "50000" {
		t.Errorf("unexpected buy body %v", b)
	}
	if b := bodies[1]; b["side"] != "ask" || b["ord_type"] != "market" || b["volume"] != "0.001" {
		t.Errorf("unexpected sell body %v", b)
	}
}
