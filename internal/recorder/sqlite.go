package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"CloudTrader/internal/model"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists the trading journal to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log *zap.Logger
	now func() time.Time
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log *zap.Logger) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets sqlite3 or a dashboard read while the bot writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log, now: time.Now}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			market      TEXT NOT NULL,
			candle_date TEXT,
			close       REAL,
			tenkan      REAL,
			kijun       REAL,
			span_a      REAL,
			span_b      REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_market ON signals(market, candle_date)`,

		`CREATE TABLE IF NOT EXISTS orders (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			uuid       TEXT,
			market     TEXT NOT NULL,
			side       TEXT NOT NULL,
			ord_type   TEXT,
			price      TEXT,
			volume     TEXT,
			state      TEXT,
			quote      REAL,
			note       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_ts ON orders(timestamp)`,

		`CREATE TABLE IF NOT EXISTS exits (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp     INTEGER NOT NULL,
			market        TEXT NOT NULL,
			reason        TEXT NOT NULL,
			entry_price   TEXT,
			exit_price    TEXT,
			trailing_high TEXT,
			armed         INTEGER,
			volume        TEXT,
			samples       INTEGER,
			opened_at     INTEGER,
			return_pct    REAL,
			order_uuid    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exits_ts ON exits(timestamp)`,

		`CREATE TABLE IF NOT EXISTS reports (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			cash      REAL,
			holdings  INTEGER,
			total     REAL
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordSignal(evt *SignalEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO signals
		(timestamp, market, candle_date, close, tenkan, kijun, span_a, span_b)
		VALUES (?,?,?,?,?,?,?,?)`,
		r.now().Unix(), evt.Market, evt.CandleDate, evt.Close,
		evt.Tenkan, evt.Kijun, evt.SpanA, evt.SpanB,
	)
	return err
}

func (r *SQLiteRecorder) RecordOrder(evt *OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o := evt.Order
	_, err := r.db.Exec(`INSERT INTO orders
		(timestamp, uuid, market, side, ord_type, price, volume, state, quote, note)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		r.now().Unix(), o.UUID, o.Market, string(o.Side), o.OrdType,
		o.Price.String(), o.Volume.String(), o.State, evt.Quote, evt.Note,
	)
	return err
}

func (r *SQLiteRecorder) RecordExit(rep *model.ExitReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var orderUUID string
	if rep.Order != nil {
		orderUUID = rep.Order.UUID
	}
	_, err := r.db.Exec(`INSERT INTO exits
		(timestamp, market, reason, entry_price, exit_price, trailing_high, armed,
		 volume, samples, opened_at, return_pct, order_uuid)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		rep.ClosedAt.Unix(), rep.Market, string(rep.Reason),
		rep.EntryPrice.String(), rep.ExitPrice.String(), rep.TrailingHigh.String(), rep.Armed,
		rep.Volume.String(), rep.Samples, rep.OpenedAt.Unix(), rep.ReturnPct(), orderUUID,
	)
	return err
}

func (r *SQLiteRecorder) RecordReport(evt *ReportEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO reports (timestamp, cash, holdings, total) VALUES (?,?,?,?)`,
		r.now().Unix(), evt.Cash, evt.Holdings, evt.Total,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("closing sqlite recorder")
	return r.db.Close()
}
