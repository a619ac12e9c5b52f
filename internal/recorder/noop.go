package recorder

import "CloudTrader/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordSignal(_ *SignalEvent) error     { return nil }
func (n *NoopRecorder) RecordOrder(_ *OrderEvent) error       { return nil }
func (n *NoopRecorder) RecordExit(_ *model.ExitReport) error  { return nil }
func (n *NoopRecorder) RecordReport(_ *ReportEvent) error     { return nil }
func (n *NoopRecorder) Close() error                          { return nil }
