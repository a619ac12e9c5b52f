// Package exit watches an open position and sells it on a trailing stop or
// a stop loss.
package exit

import (
	"context"
	"fmt"
	"time"

	"CloudTrader/internal/model"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Venue is the part of the exchange a monitor needs.
type Venue interface {
	CurrentPrice(ctx context.Context, market string) (decimal.Decimal, error)
	Balance(ctx context.Context, currency string) (decimal.Decimal, error)
	MarketSell(ctx context.Context, market string, volume decimal.Decimal) (model.OrderRef, error)
}

// Alerter receives best-effort operator messages.
type Alerter interface {
	Notify(ctx context.Context, text string)
}

// Params are the exit thresholds as fractions of the entry price.
type Params struct {
	TrailingStartPct float64
	TrailingStopPct  float64
	StopLossPct      float64
}

// DefaultParams arm the trailing stop at +4%, trail by 2.7% and stop out at -4%.
var DefaultParams = Params{TrailingStartPct: 0.04, TrailingStopPct: 0.027, StopLossPct: 0.04}

// Config configures a Monitor.
type Config struct {
	Params
	PollInterval time.Duration
	// MaxBackoff caps the wait between retries of a missing quote.
	MaxBackoff time.Duration
	// AlertAfter consecutive missing quotes trigger one alert.
	AlertAfter int
}

// Monitor runs the exit state machine for one position at a time. A single
// Monitor value may serve many positions concurrently; Run keeps all state
// on its own stack.
type Monitor struct {
	cfg    Config
	venue  Venue
	alerts Alerter
	log    *zap.Logger

	// OnSample, when set, receives a copy of the position after each quote.
	OnSample func(model.Position)

	wait func(ctx context.Context, d time.Duration) error
	now  func() time.Time
}

// NewMonitor creates a monitor. Zero config fields fall back to defaults.
func NewMonitor(cfg Config, venue Venue, alerts Alerter, log *zap.Logger) *Monitor {
	if cfg.TrailingStartPct <= 0 {
		cfg.TrailingStartPct = DefaultParams.TrailingStartPct
	}
	if cfg.TrailingStopPct <= 0 {
		cfg.TrailingStopPct = DefaultParams.TrailingStopPct
	}
	if cfg.StopLossPct <= 0 {
		cfg.StopLossPct = DefaultParams.StopLossPct
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.MaxBackoff < cfg.PollInterval {
		cfg.MaxBackoff = cfg.PollInterval
	}
	if cfg.AlertAfter <= 0 {
		cfg.AlertAfter = 30
	}
	return &Monitor{
		cfg:    cfg,
		venue:  venue,
		alerts: alerts,
		log:    log,
		wait:   sleep,
		now:    time.Now,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Step applies one price sample to the position and returns the exit reason,
// or "" when the position stays open. Once armed a position stays armed and
// its trailing high never decreases.
func Step(pos *model.Position, p decimal.Decimal, params Params) model.ExitReason {
	one := decimal.NewFromInt(1)
	pos.LastPrice = p

	arm := pos.EntryPrice.Mul(one.Add(decimal.NewFromFloat(params.TrailingStartPct)))
	if p.GreaterThanOrEqual(arm) {
		pos.Armed = true
		pos.TrailingHigh = decimal.Max(pos.TrailingHigh, p)
	}

	trail := pos.TrailingHigh.Mul(one.Sub(decimal.NewFromFloat(params.TrailingStopPct)))
	if pos.Armed && trail.GreaterThanOrEqual(p) {
		return model.ExitTrailingStop
	}

	stop := pos.EntryPrice.Mul(one.Sub(decimal.NewFromFloat(params.StopLossPct)))
	if stop.GreaterThanOrEqual(p) {
		return model.ExitStopLoss
	}
	return ""
}

// Run monitors market from entryPrice until the position is sold, the
// balance disappears, or ctx is cancelled. It blocks for the lifetime of
// the position. Missing quotes and failed sells never end the run.
func (m *Monitor) Run(ctx context.Context, market string, entryPrice decimal.Decimal) model.ExitReport {
	pos := model.Position{
		Market:       market,
		EntryPrice:   entryPrice,
		TrailingHigh: entryPrice,
		OpenedAt:     m.now(),
	}
	log := m.log.With(zap.String("market", market), zap.String("entry", entryPrice.String()))
	log.Info("monitoring position",
		zap.Float64("trailing_start", m.cfg.TrailingStartPct),
		zap.Float64("trailing_stop", m.cfg.TrailingStopPct),
		zap.Float64("stop_loss", m.cfg.StopLossPct))

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.cfg.PollInterval
	bo.MaxInterval = m.cfg.MaxBackoff
	bo.MaxElapsedTime = 0
	bo.Reset()

	samples, misses := 0, 0
	for {
		if ctx.Err() != nil {
			return m.report(pos, model.ExitInterrupted, samples, nil)
		}

		price, err := m.venue.CurrentPrice(ctx, market)
		if err != nil {
			if ctx.Err() != nil {
				return m.report(pos, model.ExitInterrupted, samples, nil)
			}
			misses++
			log.Debug("quote unavailable", zap.Int("misses", misses), zap.Error(err))
			if misses == m.cfg.AlertAfter {
				log.Warn("quote feed down", zap.Int("misses", misses))
				m.alert(ctx, fmt.Sprintf("No price for %s after %d attempts, still holding", market, misses))
			}
			if m.wait(ctx, bo.NextBackOff()) != nil {
				return m.report(pos, model.ExitInterrupted, samples, nil)
			}
			continue
		}
		if misses >= m.cfg.AlertAfter {
			log.Info("quote feed recovered", zap.Int("misses", misses))
			m.alert(ctx, fmt.Sprintf("Price feed for %s recovered", market))
		}
		misses = 0
		bo.Reset()

		samples++
		wasArmed := pos.Armed
		reason := Step(&pos, price, m.cfg.Params)
		if pos.Armed && !wasArmed {
			log.Info("trailing stop armed", zap.String("price", price.String()))
		}
		if m.OnSample != nil {
			m.OnSample(pos)
		}

		if reason != "" {
			rep, done, err := m.sell(ctx, pos, reason, samples)
			if done {
				return rep
			}
			log.Warn("sell failed, retrying next tick", zap.String("reason", string(reason)), zap.Error(err))
			m.alert(ctx, fmt.Sprintf("Error selling %s: %v", market, err))
		}

		if m.wait(ctx, m.cfg.PollInterval) != nil {
			return m.report(pos, model.ExitInterrupted, samples, nil)
		}
	}
}

// sell liquidates the whole base currency balance. done is false when the
// caller should keep monitoring and try again.
func (m *Monitor) sell(ctx context.Context, pos model.Position, reason model.ExitReason, samples int) (model.ExitReport, bool, error) {
	currency := model.CurrencyOf(pos.Market)
	volume, err := m.venue.Balance(ctx, currency)
	if err != nil {
		if ctx.Err() != nil {
			return m.report(pos, model.ExitInterrupted, samples, nil), true, nil
		}
		return model.ExitReport{}, false, fmt.Errorf("balance %s: %w", currency, err)
	}
	if !volume.IsPositive() {
		m.log.Warn("nothing to sell", zap.String("market", pos.Market))
		return m.report(pos, model.ExitNoBalance, samples, nil), true, nil
	}

	order, err := m.venue.MarketSell(ctx, pos.Market, volume)
	if err != nil {
		if ctx.Err() != nil {
			return m.report(pos, model.ExitInterrupted, samples, nil), true, nil
		}
		return model.ExitReport{}, false, err
	}

	rep := m.report(pos, reason, samples, &order)
	rep.Volume = volume
	m.log.Info("position closed",
		zap.String("market", pos.Market),
		zap.String("reason", string(reason)),
		zap.String("exit", pos.LastPrice.String()),
		zap.String("high", pos.TrailingHigh.String()),
		zap.String("volume", volume.String()))
	return rep, true, nil
}

func (m *Monitor) report(pos model.Position, reason model.ExitReason, samples int, order *model.OrderRef) model.ExitReport {
	return model.ExitReport{
		Market:       pos.Market,
		Reason:       reason,
		EntryPrice:   pos.EntryPrice,
		ExitPrice:    pos.LastPrice,
		TrailingHigh: pos.TrailingHigh,
		Armed:        pos.Armed,
		Samples:      samples,
		OpenedAt:     pos.OpenedAt,
		ClosedAt:     m.now(),
		Order:        order,
	}
}

func (m *Monitor) alert(ctx context.Context, text string) {
	if m.alerts != nil {
		m.alerts.Notify(ctx, text)
	}
}
