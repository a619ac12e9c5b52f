// Package trader runs the scan and buy cycle and hands every filled buy to
// its own exit monitor.
package trader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"CloudTrader/internal/exchange"
	"CloudTrader/internal/exit"
	"CloudTrader/internal/model"
	"CloudTrader/internal/notifier"
	"CloudTrader/internal/recorder"
	"CloudTrader/internal/strategy"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Notifier receives best-effort chat messages.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// Config configures a Trader.
type Config struct {
	Quote          string
	CandleCount    int
	MinOrderAmount decimal.Decimal
	MaxOrderAmount decimal.Decimal
	ScanInterval   time.Duration
	BuyAlignment   time.Duration
	Exit           exit.Config
}

// Trader owns the scan loop, the buyer and the exit monitors.
type Trader struct {
	cfg      Config
	ex       exchange.Exchange
	universe []string
	notifier Notifier
	rec      recorder.Recorder
	log      *zap.Logger

	monitor  *exit.Monitor
	registry *Registry

	entries chan model.Entry
	// pending holds markets queued for the buyer and not yet handled.
	mu       sync.Mutex
	pending  map[string]bool
	monitors sync.WaitGroup

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg Config, ex exchange.Exchange, universe []string, n Notifier, rec recorder.Recorder, log *zap.Logger) *Trader {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = time.Minute
	}
	t := &Trader{
		cfg:      cfg,
		ex:       ex,
		universe: universe,
		notifier: n,
		rec:      rec,
		log:      log,
		registry: NewRegistry(),
		entries:  make(chan model.Entry, len(universe)+1),
		pending:  make(map[string]bool),
		now:      time.Now,
		sleep:    sleep,
	}
	t.monitor = exit.NewMonitor(cfg.Exit, ex, n, log.Named("exit"))
	t.monitor.OnSample = t.registry.Update
	return t
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Registry exposes the monitored positions.
func (t *Trader) Registry() *Registry { return t.registry }

// Run scans every ScanInterval and buys selected markets until ctx is
// cancelled. Exit monitors keep running until ctx ends; use Wait to join them.
func (t *Trader) Run(ctx context.Context) error {
	t.log.Info("trader started",
		zap.Int("markets", len(t.universe)),
		zap.Duration("scan_interval", t.cfg.ScanInterval),
		zap.String("min_order", t.cfg.MinOrderAmount.String()),
		zap.String("max_order", t.cfg.MaxOrderAmount.String()))

	var buyer sync.WaitGroup
	buyer.Add(1)
	go func() {
		defer buyer.Done()
		t.buyLoop(ctx)
	}()

	for {
		t.Scan(ctx)
		if t.sleep(ctx, t.cfg.ScanInterval) != nil {
			break
		}
	}
	buyer.Wait()
	t.log.Info("trader stopped")
	return nil
}

// Wait blocks until every exit monitor has returned.
func (t *Trader) Wait() { t.monitors.Wait() }

// Scan evaluates the universe once and enqueues markets that fired.
// Markets already queued or under exit monitoring are skipped, so a market
// whose buy failed is selected again by the next scan.
func (t *Trader) Scan(ctx context.Context) []model.Entry {
	scannedAt := t.now()
	var selected []model.Entry
	for _, market := range t.universe {
		if ctx.Err() != nil {
			return selected
		}
		if t.isPending(market) || t.registry.Has(market) {
			t.log.Debug("already queued or monitored", zap.String("market", market))
			continue
		}

		cond, err := t.check(ctx, market)
		if err != nil {
			if errors.Is(err, exchange.ErrUnavailable) {
				t.log.Debug("no candles", zap.String("market", market), zap.Error(err))
				continue
			}
			if ctx.Err() != nil {
				return selected
			}
			t.log.Warn("check failed", zap.String("market", market), zap.Error(err))
			t.notifier.Notify(ctx, notifier.FormatCheckError(market, err))
			continue
		}
		if !cond.Selected() {
			continue
		}

		date := cond.Candle.Time.Format("2006-01-02")
		t.log.Info("market selected", zap.String("market", market), zap.String("candle", date), zap.Stringer("conditions", cond))
		t.notifier.Notify(ctx, notifier.FormatSelected(market))
		if err := t.rec.RecordSignal(&recorder.SignalEvent{
			Market:     market,
			CandleDate: date,
			Close:      cond.Close,
			Tenkan:     cond.Tenkan,
			Kijun:      cond.Kijun,
			SpanA:      cond.SpanA,
			SpanB:      cond.SpanB,
		}); err != nil {
			t.log.Error("record signal", zap.Error(err))
		}

		entry := model.Entry{Market: market, ScannedAt: scannedAt, Close: cond.Close}
		selected = append(selected, entry)
		t.setPending(market, true)
		select {
		case t.entries <- entry:
		case <-ctx.Done():
			t.setPending(market, false)
			return selected
		}
	}
	return selected
}

func (t *Trader) isPending(market string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending[market]
}

func (t *Trader) setPending(market string, v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v {
		t.pending[market] = true
	} else {
		delete(t.pending, market)
	}
}

func (t *Trader) check(ctx context.Context, market string) (cond strategy.Conditions, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluate %s: %v", market, r)
		}
	}()
	series, err := t.ex.DailyCandles(ctx, market, t.cfg.CandleCount)
	if err != nil {
		return strategy.Conditions{}, err
	}
	return strategy.Check(series), nil
}

func (t *Trader) buyLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-t.entries:
			if err := t.waitUntil(ctx, NextBoundary(e.ScannedAt, t.cfg.BuyAlignment)); err != nil {
				return
			}
			t.Buy(ctx, e)
		}
	}
}

func (t *Trader) waitUntil(ctx context.Context, at time.Time) error {
	return t.sleep(ctx, at.Sub(t.now()))
}

// Buy places the market buy for one entry and starts its exit monitor.
// Every failure is reported and contained, and the market becomes
// selectable again.
func (t *Trader) Buy(ctx context.Context, e model.Entry) {
	market := e.Market
	log := t.log.With(zap.String("market", market))
	defer t.setPending(market, false)

	if !t.registry.Claim(model.Position{Market: market, OpenedAt: t.now()}) {
		log.Info("already monitoring, skipping buy")
		return
	}
	started := false
	defer func() {
		if !started {
			t.registry.Release(market)
		}
	}()

	price, err := t.ex.CurrentPrice(ctx, market)
	if err != nil {
		log.Warn("no price before buy", zap.Error(err))
		t.notifier.Notify(ctx, notifier.FormatNoPrice(market))
		return
	}

	cash, err := t.ex.Balance(ctx, t.cfg.Quote)
	if err != nil {
		log.Error("read balance", zap.Error(err))
		t.notifier.Notify(ctx, notifier.FormatBuyError(market, err))
		return
	}
	amount, ok := BuyAmount(cash, t.cfg.MinOrderAmount, t.cfg.MaxOrderAmount)
	if !ok {
		log.Info("balance below minimum order, skipping", zap.String("cash", cash.String()))
		return
	}

	order, err := t.ex.MarketBuy(ctx, market, amount)
	if err != nil {
		log.Error("buy failed", zap.Error(err))
		t.notifier.Notify(ctx, notifier.FormatBuyError(market, err))
		return
	}
	log.Info("bought", zap.String("price", price.String()), zap.String("amount", amount.String()), zap.String("order", order.UUID))
	t.notifier.Notify(ctx, notifier.FormatBuy(market, price, amount))
	quote, _ := price.Float64()
	if err := t.rec.RecordOrder(&recorder.OrderEvent{Order: order, Quote: quote, Note: "entry"}); err != nil {
		log.Error("record order", zap.Error(err))
	}

	t.registry.Update(model.Position{Market: market, EntryPrice: price, TrailingHigh: price, OpenedAt: t.now()})
	started = true
	t.monitors.Add(1)
	go t.watch(ctx, market, price)
}

func (t *Trader) watch(ctx context.Context, market string, entry decimal.Decimal) {
	defer t.monitors.Done()
	defer t.registry.Release(market)

	rep := t.monitor.Run(ctx, market, entry)
	if err := t.rec.RecordExit(&rep); err != nil {
		t.log.Error("record exit", zap.String("market", market), zap.Error(err))
	}
	if rep.Order != nil {
		quote, _ := rep.ExitPrice.Float64()
		if err := t.rec.RecordOrder(&recorder.OrderEvent{Order: *rep.Order, Quote: quote, Note: string(rep.Reason)}); err != nil {
			t.log.Error("record order", zap.String("market", market), zap.Error(err))
		}
	}

	if rep.Reason == model.ExitInterrupted {
		t.log.Info("monitor interrupted, position left open",
			zap.String("market", market), zap.String("entry", entry.String()))
		return
	}
	t.notifier.Notify(ctx, notifier.FormatExit(rep))
}
