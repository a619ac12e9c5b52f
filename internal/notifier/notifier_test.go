package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"CloudTrader/internal/model"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type fakeSink struct {
	name  string
	fails int
	sent  []string
	calls int
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Send(_ context.Context, text string) error {
	f.calls++
	if f.calls <= f.fails {
		return errors.New("boom")
	}
	f.sent = append(f.sent, text)
	return nil
}

func TestDiscordNotifier_Send(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordNotifier(srv.URL, "")
	d.now = func() time.Time { return time.Date(2024, 3, 1, 9, 5, 0, 0, time.Local) }
	if err := d.Send(context.Background(), "Selected KRW-BTC"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got["content"] != "[2024-03-01 09:05:00] Selected KRW-BTC" {
		t.Errorf("unexpected content %q", got["content"])
	}
}

func TestDiscordNotifier_Truncates(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordNotifier(srv.URL, "")
	if err := d.Send(context.Background(), strings.Repeat("가", 3000)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if n := utf8.RuneCountInString(got["content"]); n != discordMaxContent {
		t.Errorf("expected %d runes, got %d", discordMaxContent, n)
	}
}

func TestDiscordNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"You are being rate limited."}`))
	}))
	defer srv.Close()

	err := NewDiscordNotifier(srv.URL, "").Send(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestMulti_ContinuesPastFailure(t *testing.T) {
	bad := &fakeSink{name: "bad", fails: 1}
	good := &fakeSink{name: "good"}
	err := Multi{bad, good}.Send(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Errorf("expected error naming the failing sink, got %v", err)
	}
	if len(good.sent) != 1 {
		t.Errorf("good sink should still receive the message")
	}
}

func TestDispatcher_RetriesThenDelivers(t *testing.T) {
	sink := &fakeSink{name: "fake", fails: 2}
	d := NewDispatcher(sink, 3, zap.NewNop())
	d.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	d.Start()

	d.Notify(context.Background(), "Buy KRW-BTC")
	d.Close()
	if sink.calls != 3 || len(sink.sent) != 1 {
		t.Errorf("expected delivery on 3rd attempt, calls=%d sent=%d", sink.calls, len(sink.sent))
	}
}

func TestDispatcher_GivesUp(t *testing.T) {
	sink := &fakeSink{name: "fake", fails: 100}
	d := NewDispatcher(sink, 2, zap.NewNop())
	d.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	d.Start()

	d.Notify(context.Background(), "lost")
	d.Close()
	if sink.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", sink.calls)
	}
}

// stuckSink blocks every send until released.
type stuckSink struct {
	entered chan struct{}
	release chan struct{}
	sent    []string
}

func (s *stuckSink) Name() string { return "stuck" }

func (s *stuckSink) Send(_ context.Context, text string) error {
	s.entered <- struct{}{}
	<-s.release
	s.sent = append(s.sent, text)
	return nil
}

func TestDispatcher_NotifyDoesNotBlock(t *testing.T) {
	sink := &stuckSink{entered: make(chan struct{}, 10), release: make(chan struct{})}
	d := newDispatcher(sink, 3, 1, zap.NewNop())
	d.Start()

	start := time.Now()
	d.Notify(context.Background(), "first")
	<-sink.entered
	d.Notify(context.Background(), "queued")
	d.Notify(context.Background(), "overflow")
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Notify blocked the caller for %s", elapsed)
	}

	close(sink.release)
	d.Close()
	if len(sink.sent) != 2 || sink.sent[0] != "first" || sink.sent[1] != "queued" {
		t.Errorf("expected first and queued delivered, overflow dropped, got %v", sink.sent)
	}
}

func TestDispatcher_DropsAfterClose(t *testing.T) {
	sink := &fakeSink{name: "fake"}
	d := NewDispatcher(sink, 0, zap.NewNop())
	d.Start()
	d.Close()

	d.Notify(context.Background(), "late")
	d.Close()
	if sink.calls != 0 {
		t.Errorf("expected no delivery after close, got %d calls", sink.calls)
	}
}

func TestTelegramNotifier_Send(t *testing.T) {
	var chat, text string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bot","username":"cloud_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			r.ParseForm()
			chat, text = r.FormValue("chat_id"), r.FormValue("text")
			w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"},"text":"ok"}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	tg, err := newTelegramNotifier("TOKEN", 42, "", srv.URL+"/bot%s/%s", zap.NewNop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := tg.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if chat != "42" || text != "hello" {
		t.Errorf("unexpected message chat=%q text=%q", chat, text)
	}
}

func TestFormatExit(t *testing.T) {
	rep := model.ExitReport{
		Market:     "KRW-BTC",
		Reason:     model.ExitStopLoss,
		EntryPrice: decimal.NewFromInt(100),
		ExitPrice:  decimal.NewFromInt(96),
	}
	if got := FormatExit(rep); got != "Sell KRW-BTC at 96 KRW, Stop Loss (-4.00%)" {
		t.Errorf("unexpected exit message %q", got)
	}
	rep.Reason = model.ExitNoBalance
	if got := FormatExit(rep); !strings.HasPrefix(got, "Stopped monitoring KRW-BTC") {
		t.Errorf("unexpected no-balance message %q", got)
	}
}

func TestFormatBuy(t *testing.T) {
	got := FormatBuy("KRW-ETH", decimal.RequireFromString("3512000"), decimal.NewFromInt(50000))
	if got != "Buy KRW-ETH at 3512000 KRW, Amount: 50000" {
		t.Errorf("unexpected buy message %q", got)
	}
}

func TestFormatPositions(t *testing.T) {
	if got := FormatPositions(nil); got != "No open positions" {
		t.Errorf("unexpected empty message %q", got)
	}
	got := FormatPositions([]model.Position{{
		Market:       "KRW-BTC",
		EntryPrice:   decimal.NewFromInt(100),
		TrailingHigh: decimal.NewFromInt(105),
		Armed:        true,
		LastPrice:    decimal.NewFromInt(104),
	}})
	if !strings.Contains(got, "KRW-BTC: entry 100, last 104, armed, high 105") {
		t.Errorf("unexpected positions message %q", got)
	}
}
