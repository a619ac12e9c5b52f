package portfolio

import (
	"context"
	"errors"
	"strings"
	"testing"

	"CloudTrader/internal/exchange"
	"CloudTrader/internal/model"
	"CloudTrader/internal/recorder"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type captureNotifier struct{ msgs []string }

func (c *captureNotifier) Notify(_ context.Context, text string) { c.msgs = append(c.msgs, text) }

func TestBuild_AddsWaitingSellVolume(t *testing.T) {
	mock := exchange.NewMock("KRW", 10000)
	mock.SetHolding(model.Holding{Currency: "BTC", Balance: decimal.NewFromInt(2), AvgBuyPrice: decimal.NewFromInt(500)})
	mock.AddOpenSell("KRW-BTC", 1)

	s, err := Build(context.Background(), mock, []string{"KRW-BTC"}, "KRW")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(s.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(s.Lines))
	}
	l := s.Lines[0]
	if !l.Quantity.Equal(decimal.NewFromInt(3)) {
		t.Errorf("expected adjusted quantity 3, got %s", l.Quantity)
	}
	if !l.Value.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("expected value 1500, got %s", l.Value)
	}
	if !s.Total.Equal(decimal.NewFromInt(11500)) {
		t.Errorf("expected total 11500, got %s", s.Total)
	}
}

func TestBuild_IgnoresMarketsOutsideUniverse(t *testing.T) {
	mock := exchange.NewMock("KRW", 1000)
	mock.SetHolding(model.Holding{Currency: "BTC", Balance: decimal.NewFromInt(1), AvgBuyPrice: decimal.NewFromInt(100)})
	mock.SetHolding(model.Holding{Currency: "DUST", Balance: decimal.NewFromInt(50), AvgBuyPrice: decimal.NewFromInt(1)})

	s, err := Build(context.Background(), mock, []string{"KRW-BTC", "KRW-ETH"}, "KRW")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(s.Lines) != 1 || s.Lines[0].Market != "KRW-BTC" {
		t.Errorf("unexpected lines %+v", s.Lines)
	}
	if !s.Total.Equal(decimal.NewFromInt(1100)) {
		t.Errorf("expected total 1100, got %s", s.Total)
	}
}

func TestFormat(t *testing.T) {
	s := Summary{
		Cash:  decimal.NewFromInt(10000),
		Lines: []Line{{Market: "KRW-BTC", Quantity: decimal.NewFromInt(3), Value: decimal.NewFromInt(1500)}},
		Total: decimal.NewFromInt(11500),
	}
	want := "Holdings:\nKRW-BTC: qty 3, value 1500 KRW\nCash: 10000 KRW\nTotal assets: 11500 KRW"
	if got := Format(s); got != want {
		t.Errorf("unexpected report:\n%s\nwant:\n%s", got, want)
	}
}

type failingAccount struct{}

func (failingAccount) Holdings(context.Context) ([]model.Holding, error) {
	return nil, errors.New("timeout")
}

func (failingAccount) OpenSellOrders(context.Context, string) ([]model.OpenOrder, error) {
	return nil, nil
}

func TestReporter_ContainsErrors(t *testing.T) {
	n := &captureNotifier{}
	r := NewReporter(failingAccount{}, nil, "KRW", n, recorder.NewNoopRecorder(), zap.NewNop())
	r.Run(context.Background())
	if len(n.msgs) != 1 || !strings.HasPrefix(n.msgs[0], "Error building report") {
		t.Errorf("expected one error notification, got %v", n.msgs)
	}
}

func TestReporter_SendsReport(t *testing.T) {
	n := &captureNotifier{}
	mock := exchange.NewMock("KRW", 10000)
	r := NewReporter(mock, []string{"KRW-BTC"}, "KRW", n, recorder.NewNoopRecorder(), zap.NewNop())
	r.Run(context.Background())
	if len(n.msgs) != 1 || !strings.Contains(n.msgs[0], "Total assets: 10000 KRW") {
		t.Errorf("unexpected report %v", n.msgs)
	}
}
