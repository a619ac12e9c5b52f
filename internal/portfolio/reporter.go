package portfolio

import (
	"context"
	"fmt"

	"CloudTrader/internal/recorder"

	"go.uber.org/zap"
)

// Notifier receives the report text.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// Reporter builds, sends and journals portfolio summaries.
type Reporter struct {
	account  Account
	universe []string
	quote    string
	notifier Notifier
	rec      recorder.Recorder
	log      *zap.Logger
}

func NewReporter(account Account, universe []string, quote string, n Notifier, rec recorder.Recorder, log *zap.Logger) *Reporter {
	return &Reporter{
		account:  account,
		universe: universe,
		quote:    quote,
		notifier: n,
		rec:      rec,
		log:      log,
	}
}

// Text builds a summary and returns the formatted report.
func (r *Reporter) Text(ctx context.Context) (string, error) {
	s, err := Build(ctx, r.account, r.universe, r.quote)
	if err != nil {
		return "", err
	}
	cash, _ := s.Cash.Float64()
	total, _ := s.Total.Float64()
	if err := r.rec.RecordReport(&recorder.ReportEvent{Cash: cash, Holdings: len(s.Lines), Total: total}); err != nil {
		r.log.Error("record report", zap.Error(err))
	}
	r.log.Info("portfolio report built",
		zap.Int("holdings", len(s.Lines)),
		zap.String("cash", s.Cash.StringFixed(0)),
		zap.String("total", s.Total.StringFixed(0)))
	return Format(s), nil
}

// Run sends one report. Failures are logged and notified, never returned.
func (r *Reporter) Run(ctx context.Context) {
	text, err := r.Text(ctx)
	if err != nil {
		r.log.Error("portfolio report failed", zap.Error(err))
		r.notifier.Notify(ctx, fmt.Sprintf("Error building report: %v", err))
		return
	}
	r.notifier.Notify(ctx, text)
}
