package scheduler

import (
	"context"
	"fmt"

	"CloudTrader/internal/model"
	"CloudTrader/internal/notifier"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reporter produces portfolio reports.
type Reporter interface {
	Run(ctx context.Context)
	Text(ctx context.Context) (string, error)
}

// PositionSource lists the positions under exit monitoring.
type PositionSource interface {
	Positions() []model.Position
}

// Scheduler owns the periodic report job and answers chat commands.
type Scheduler struct {
	Cron      *cron.Cron
	Reporter  Reporter
	Positions PositionSource
	Ctx       context.Context

	log *zap.Logger
}

// NewScheduler creates a new Scheduler. A panicking job is logged and the
// next run is skipped while one is still in progress.
func NewScheduler(ctx context.Context, rep Reporter, positions PositionSource, log *zap.Logger) *Scheduler {
	cl := cronLogger{log.Sugar()}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		Reporter:  rep,
		Positions: positions,
		Ctx:       ctx,
		log:       log,
	}
}

// Register adds the report job. reportCron accepts six-field specs and
// descriptors such as "@every 4h", which runs at a fixed rate from Start.
func (s *Scheduler) Register(reportCron string) error {
	if _, err := s.Cron.AddFunc(reportCron, s.reportTask); err != nil {
		return fmt.Errorf("register report task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.Cron.Entries())))
}

// Stop stops the cron scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RunReportNow sends a report immediately, outside the schedule.
func (s *Scheduler) RunReportNow() {
	s.reportTask()
}

func (s *Scheduler) reportTask() {
	s.log.Info("running portfolio report")
	s.Reporter.Run(s.Ctx)
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	switch command {
	case "/report":
		text, err := s.Reporter.Text(ctx)
		if err != nil {
			s.log.Error("report command", zap.Error(err))
			return fmt.Sprintf("Error building report: %v", err)
		}
		return text
	case "/positions":
		return notifier.FormatPositions(s.Positions.Positions())
	default:
		return notifier.FormatHelp()
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
