package recorder

import (
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/AnbuPalani1991/alltimehigh-scanner/internal/model"
)

// SQLiteRecorder persists scan history to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	logger *zap.Logger
	mu     sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *zap.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboards can read while a scan writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scans (
			scan_id     TEXT PRIMARY KEY,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			duration_ms INTEGER,
			total       INTEGER,
			succeeded   INTEGER,
			failed      INTEGER,
			ath_count   INTEGER,
			threshold   REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scans_started ON scans(started_at)`,

		`CREATE TABLE IF NOT EXISTS ath_hits (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			scan_id      TEXT NOT NULL,
			ticker       TEXT NOT NULL,
			exchange     TEXT,
			name         TEXT,
			latest_close REAL,
			high_close   REAL,
			ratio        REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_hits_scan ON ath_hits(scan_id)`,
		`CREATE INDEX IF NOT EXISTS idx_hits_ticker ON ath_hits(ticker)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordScan writes the scan summary row and one row per flagged symbol,
// in a single transaction.
func (r *SQLiteRecorder) RecordScan(snap *model.ScanSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO scans
		(scan_id, started_at, finished_at, duration_ms, total, succeeded, failed, ath_count, threshold)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		snap.ScanID, snap.StartedAt.Unix(), snap.FinishedAt.Unix(), snap.DurationMS,
		snap.TotalSymbols, snap.Succeeded, snap.Failed, snap.ATHCount, snap.Threshold,
	); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO ath_hits
		(scan_id, ticker, exchange, name, latest_close, high_close, ratio)
		VALUES (?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range snap.ATHStocks {
		if _, err := stmt.Exec(snap.ScanID, rec.Ticker, rec.Exchange, rec.Name,
			rec.LatestClose, rec.HighClose, rec.Ratio); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}
