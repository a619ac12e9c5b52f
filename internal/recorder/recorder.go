package recorder

import "CloudTrader/internal/model"

// SignalEvent holds one market that fired the entry signal.
type SignalEvent struct {
	Market     string
	CandleDate string // evaluation candle, YYYY-MM-DD
	Close      float64
	Tenkan     float64
	Kijun      float64
	SpanA      float64
	SpanB      float64
}

// OrderEvent records an order acknowledged by the exchange.
type OrderEvent struct {
	Order model.OrderRef
	Quote float64 // price seen just before the order
	Note  string
}

// ReportEvent records the totals of one portfolio report.
type ReportEvent struct {
	Cash     float64
	Holdings int
	Total    float64
}

// Recorder journals trading events for later analysis. Nothing reads the
// journal back at runtime.
type Recorder interface {
	RecordSignal(evt *SignalEvent) error
	RecordOrder(evt *OrderEvent) error
	RecordExit(rep *model.ExitReport) error
	RecordReport(evt *ReportEvent) error
	Close() error
}
