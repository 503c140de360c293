package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"RateSentinel/internal/logger"
	"RateSentinel/internal/model"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists rate history to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log *logrus.Entry
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, l *logrus.Logger) (*SQLiteRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode for concurrent readers (dashboards) while the service writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: logger.Component(l, "recorder")}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.WithField("path", dbPath).Info("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rate_samples (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp       INTEGER NOT NULL,
			cycle_id        TEXT NOT NULL,
			symbol          TEXT NOT NULL,
			target_currency TEXT,
			network         TEXT,
			rate            REAL,
			raw_rate        REAL,
			source          TEXT,
			healthy         INTEGER,
			guard_triggered INTEGER,
			observed_at     INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_samples_ts ON rate_samples(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_samples_symbol ON rate_samples(symbol, timestamp)`,

		`CREATE TABLE IF NOT EXISTS reference_history (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp    INTEGER NOT NULL,
			cycle_id     TEXT NOT NULL,
			previous     REAL,
			value        REAL NOT NULL,
			sample_count INTEGER,
			status       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reference_ts ON reference_history(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordSamples(batch *SampleBatch) error {
	if len(batch.Samples) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO rate_samples
		(timestamp, cycle_id, symbol, target_currency, network, rate, raw_rate,
		 source, healthy, guard_triggered, observed_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, s := range batch.Samples {
		if _, err := stmt.Exec(
			batch.At.Unix(), batch.CycleID, s.Symbol, s.TargetCurrency, s.Network,
			s.Rate, s.RawRate, s.Source, s.Healthy, s.GuardTriggered, s.ObservedAt.Unix(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert sample %s: %w", s.Symbol, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordReference(evt *model.ReferenceEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO reference_history
		(timestamp, cycle_id, previous, value, sample_count, status)
		VALUES (?,?,?,?,?,?)`,
		evt.ComputedAt.Unix(), evt.CycleID, evt.Previous, evt.Value,
		evt.SampleCount, string(evt.Status),
	)
	return err
}

func (r *SQLiteRecorder) RecentReferences(limit int) ([]model.ReferenceEvent, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(`SELECT timestamp, cycle_id, previous, value, sample_count, status
		FROM reference_history ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ReferenceEvent
	for rows.Next() {
		var (
			ts     int64
			evt    model.ReferenceEvent
			status string
		)
		if err := rows.Scan(&ts, &evt.CycleID, &evt.Previous, &evt.Value, &evt.SampleCount, &status); err != nil {
			return nil, err
		}
		evt.ComputedAt = time.Unix(ts, 0).UTC()
		evt.Status = model.Status(status)
		out = append(out, evt)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("closing sqlite recorder")
	return r.db.Close()
}
