package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"BreakoutScreener/internal/logger"
	"BreakoutScreener/internal/model"
)

// SQLiteRecorder persists snapshots to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across queries.
	db.SetMaxOpenConns(1)

	// WAL lets external readers query while the screener writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cycles (
			cycle_id      TEXT PRIMARY KEY,
			timestamp     INTEGER NOT NULL,
			sector        TEXT,
			market_closed INTEGER NOT NULL,
			evaluated     INTEGER NOT NULL,
			omitted       INTEGER NOT NULL,
			breakouts     INTEGER NOT NULL,
			duration_ms   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_ts ON cycles(timestamp)`,

		`CREATE TABLE IF NOT EXISTS breakout_results (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id        TEXT NOT NULL REFERENCES cycles(cycle_id),
			timestamp       INTEGER NOT NULL,
			instrument_key  TEXT NOT NULL,
			name            TEXT,
			sector          TEXT,
			price           REAL,
			reference_high  REAL,
			vwap            REAL,
			rsi             REAL,
			breakout        INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_ts ON breakout_results(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_results_key ON breakout_results(instrument_key)`,

		`CREATE TABLE IF NOT EXISTS omissions (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id       TEXT NOT NULL REFERENCES cycles(cycle_id),
			instrument_key TEXT NOT NULL,
			reason         TEXT NOT NULL,
			detail         TEXT
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (r *SQLiteRecorder) RecordSnapshot(snap *model.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ts := snap.EvaluatedAt.UnixMilli()
	breakouts := len(snap.Breakouts())
	if _, err := tx.Exec(`INSERT INTO cycles
		(cycle_id, timestamp, sector, market_closed, evaluated, omitted, breakouts, duration_ms)
		VALUES (?,?,?,?,?,?,?,?)`,
		snap.CycleID, ts, snap.Sector, boolInt(snap.MarketClosed),
		len(snap.Results), len(snap.Omitted), breakouts, snap.Duration.Milliseconds(),
	); err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}

	for _, res := range snap.Results {
		if _, err := tx.Exec(`INSERT INTO breakout_results
			(cycle_id, timestamp, instrument_key, name, sector, price, reference_high, vwap, rsi, breakout)
			VALUES (?,?,?,?,?,?,?,?,?,?)`,
			snap.CycleID, res.EvaluatedAt.UnixMilli(), res.InstrumentID, res.Name, res.Sector,
			res.LivePrice, res.ReferenceLevel, nullable(res.VWAP), nullable(res.RSI), boolInt(res.Breakout),
		); err != nil {
			return fmt.Errorf("insert result %s: %w", res.InstrumentID, err)
		}
	}
	for _, o := range snap.Omitted {
		if _, err := tx.Exec(`INSERT INTO omissions (cycle_id, instrument_key, reason, detail) VALUES (?,?,?,?)`,
			snap.CycleID, o.InstrumentID, string(o.Reason), o.Detail,
		); err != nil {
			return fmt.Errorf("insert omission %s: %w", o.InstrumentID, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecentBreakouts(limit int) ([]BreakoutRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT cycle_id, timestamp, instrument_key, name, sector, price, reference_high, vwap, rsi
		FROM breakout_results WHERE breakout = 1
		ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BreakoutRecord
	for rows.Next() {
		var (
			rec       BreakoutRecord
			ts        int64
			vwap, rsi sql.NullFloat64
		)
		if err := rows.Scan(&rec.CycleID, &ts, &rec.InstrumentID, &rec.Name, &rec.Sector,
			&rec.Price, &rec.ReferenceLevel, &vwap, &rsi); err != nil {
			return nil, err
		}
		rec.EvaluatedAt = time.UnixMilli(ts)
		if vwap.Valid {
			rec.VWAP = &vwap.Float64
		}
		if rsi.Valid {
			rec.RSI = &rsi.Float64
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullable(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func (r *SQLiteRecorder) Close() error {
	logger.Info("closing sqlite recorder")
	return r.db.Close()
}
