package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. It is loaded once at start and
// passed by value to the components that need it.
type Config struct {
	Upbit struct {
		AccessKey         string  `yaml:"access_key"`
		SecretKey         string  `yaml:"secret_key"`
		BaseURL           string  `yaml:"base_url"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
	} `yaml:"upbit"`
	Discord struct {
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"discord"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	Trading struct {
		Quote            string   `yaml:"quote"`
		Tickers          []string `yaml:"tickers"`
		CandleCount      int      `yaml:"candle_count"`
		MinOrderAmount   float64  `yaml:"min_order_amount"`
		MaxOrderAmount   float64  `yaml:"max_order_amount"`
		TrailingStartPct float64  `yaml:"trailing_start_pct"`
		TrailingStopPct  float64  `yaml:"trailing_stop_pct"`
		StopLossPct      float64  `yaml:"stop_loss_pct"`
	} `yaml:"trading"`
	Schedule struct {
		ScanInterval time.Duration `yaml:"scan_interval"`
		PollInterval time.Duration `yaml:"poll_interval"`
		BuyAlignment time.Duration `yaml:"buy_alignment"`
		ReportCron   string        `yaml:"report_cron"`
	} `yaml:"schedule"`
	Quotes struct {
		AlertAfter int           `yaml:"alert_after"`
		MaxBackoff time.Duration `yaml:"max_backoff"`
	} `yaml:"quotes"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies .env and environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	// Secrets usually live in .env next to the binary; a missing file is fine.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("UPBIT_ACCESS_KEY"); v != "" {
		c.Upbit.AccessKey = v
	}
	if v := os.Getenv("UPBIT_SECRET_KEY"); v != "" {
		c.Upbit.SecretKey = v
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		c.Discord.WebhookURL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		var id int64
		if _, err := fmt.Sscanf(v, "%d", &id); err == nil {
			c.Telegram.ChatID = id
		}
	}
	if v := os.Getenv("TICKERS"); v != "" {
		c.Trading.Tickers = splitList(v)
	}
	if v := os.Getenv("MAX_ORDER_AMOUNT"); v != "" {
		var amount float64
		if _, err := fmt.Sscanf(v, "%f", &amount); err == nil {
			c.Trading.MaxOrderAmount = amount
		}
	}
	if v := os.Getenv("REPORT_CRON"); v != "" {
		c.Schedule.ReportCron = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) applyDefaults() {
	if c.Upbit.BaseURL == "" {
		c.Upbit.BaseURL = "https://api.upbit.com"
	}
	if c.Upbit.RequestsPerSecond == 0 {
		c.Upbit.RequestsPerSecond = 8
	}
	if c.Trading.Quote == "" {
		c.Trading.Quote = "KRW"
	}
	if c.Trading.CandleCount == 0 {
		c.Trading.CandleCount = 200
	}
	if c.Trading.MinOrderAmount == 0 {
		c.Trading.MinOrderAmount = 6000
	}
	if c.Trading.MaxOrderAmount == 0 {
		c.Trading.MaxOrderAmount = 50000
	}
	if c.Trading.TrailingStartPct == 0 {
		c.Trading.TrailingStartPct = 0.04
	}
	if c.Trading.TrailingStopPct == 0 {
		c.Trading.TrailingStopPct = 0.027
	}
	if c.Trading.StopLossPct == 0 {
		c.Trading.StopLossPct = 0.04
	}
	if c.Schedule.ScanInterval == 0 {
		c.Schedule.ScanInterval = 60 * time.Second
	}
	if c.Schedule.PollInterval == 0 {
		c.Schedule.PollInterval = 10 * time.Second
	}
	if c.Schedule.BuyAlignment == 0 {
		c.Schedule.BuyAlignment = 5 * time.Minute
	}
	if c.Schedule.ReportCron == "" {
		c.Schedule.ReportCron = "@every 4h"
	}
	if c.Quotes.AlertAfter == 0 {
		c.Quotes.AlertAfter = 30
	}
	if c.Quotes.MaxBackoff == 0 {
		c.Quotes.MaxBackoff = time.Minute
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/cloud_trader.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Upbit.AccessKey == "" || c.Upbit.SecretKey == "" {
		return fmt.Errorf("upbit.access_key and upbit.secret_key are required")
	}
	if c.Discord.WebhookURL == "" && c.Telegram.BotToken == "" {
		return fmt.Errorf("discord.webhook_url or telegram.bot_token is required")
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram.chat_id is required with telegram.bot_token")
	}
	if c.Trading.MinOrderAmount <= 0 {
		return fmt.Errorf("trading.min_order_amount must be positive")
	}
	if c.Trading.MaxOrderAmount < c.Trading.MinOrderAmount {
		return fmt.Errorf("trading.max_order_amount must be >= trading.min_order_amount")
	}
	for name, pct := range map[string]float64{
		"trading.trailing_start_pct": c.Trading.TrailingStartPct,
		"trading.trailing_stop_pct":  c.Trading.TrailingStopPct,
		"trading.stop_loss_pct":      c.Trading.StopLossPct,
	} {
		if pct <= 0 || pct >= 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	if c.Schedule.ScanInterval <= 0 || c.Schedule.PollInterval <= 0 {
		return fmt.Errorf("schedule intervals must be positive")
	}
	if c.Schedule.BuyAlignment <= 0 {
		return fmt.Errorf("schedule.buy_alignment must be positive")
	}
	if c.Quotes.AlertAfter <= 0 {
		return fmt.Errorf("quotes.alert_after must be positive")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
