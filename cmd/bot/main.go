package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"CloudTrader/internal/config"
	"CloudTrader/internal/exchange"
	"CloudTrader/internal/exit"
	"CloudTrader/internal/logging"
	"CloudTrader/internal/notifier"
	"CloudTrader/internal/portfolio"
	"CloudTrader/internal/recorder"
	"CloudTrader/internal/scheduler"
	"CloudTrader/internal/trader"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const appName = "CloudTrader"

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("config validation", zap.Error(err))
	}
	log.Info("starting", zap.String("app", appName), zap.String("config", cfgPath))

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Init exchange
	upbit := exchange.NewUpbit(cfg.Upbit.BaseURL, cfg.Upbit.AccessKey, cfg.Upbit.SecretKey,
		cfg.Proxy, cfg.Upbit.RequestsPerSecond, log.Named("upbit"))

	universe := cfg.Trading.Tickers
	if len(universe) == 0 {
		universe, err = upbit.Markets(ctx, cfg.Trading.Quote)
		if err != nil {
			log.Fatal("list markets", zap.Error(err))
		}
	}
	log.Info("tradable universe", zap.Int("markets", len(universe)), zap.String("quote", cfg.Trading.Quote))

	// Init notifiers
	var sinks notifier.Multi
	if cfg.Discord.WebhookURL != "" {
		sinks = append(sinks, notifier.NewDiscordNotifier(cfg.Discord.WebhookURL, cfg.Proxy))
	}
	var tn *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" {
		tn, err = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log.Named("telegram"))
		if err != nil {
			log.Warn("telegram disabled", zap.Error(err))
		} else {
			sinks = append(sinks, tn)
		}
	}
	if len(sinks) == 0 {
		log.Fatal("no notification sink available")
	}
	dispatch := notifier.NewDispatcher(sinks, 3, log.Named("notify"))
	dispatch.Start()
	defer dispatch.Close()

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log.Named("recorder"))
		if err != nil {
			log.Warn("init sqlite recorder failed, using noop", zap.Error(err))
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Init trader
	t := trader.New(trader.Config{
		Quote:          cfg.Trading.Quote,
		CandleCount:    cfg.Trading.CandleCount,
		MinOrderAmount: decimal.NewFromFloat(cfg.Trading.MinOrderAmount),
		MaxOrderAmount: decimal.NewFromFloat(cfg.Trading.MaxOrderAmount),
		ScanInterval:   cfg.Schedule.ScanInterval,
		BuyAlignment:   cfg.Schedule.BuyAlignment,
		Exit: exit.Config{
			Params: exit.Params{
				TrailingStartPct: cfg.Trading.TrailingStartPct,
				TrailingStopPct:  cfg.Trading.TrailingStopPct,
				StopLossPct:      cfg.Trading.StopLossPct,
			},
			PollInterval: cfg.Schedule.PollInterval,
			MaxBackoff:   cfg.Quotes.MaxBackoff,
			AlertAfter:   cfg.Quotes.AlertAfter,
		},
	}, upbit, universe, dispatch, rec, log.Named("trader"))

	// Init scheduler
	reporter := portfolio.NewReporter(upbit, universe, cfg.Trading.Quote, dispatch, rec, log.Named("portfolio"))
	sched := scheduler.NewScheduler(ctx, reporter, t.Registry(), log.Named("scheduler"))
	if err := sched.Register(cfg.Schedule.ReportCron); err != nil {
		log.Fatal("register cron tasks", zap.Error(err))
	}
	sched.Start()
	defer sched.Stop()

	// Start Telegram polling
	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info("telegram polling started")
	}

	dispatch.Notify(ctx, notifier.FormatStarted(appName, len(universe)))
	sched.RunReportNow()

	log.Info("running, press Ctrl+C to stop")
	if err := t.Run(ctx); err != nil {
		log.Error("trader stopped with error", zap.Error(err))
	}

	log.Info("shutdown signal received, waiting for exit monitors")
	t.Wait()
	log.Info("stopped", zap.String("app", appName))
}
