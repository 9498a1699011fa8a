package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"TdxBridge/internal/logging"
)

// SQLiteRecorder persists history to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *logging.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *logging.Logger) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the gateway read history while the scheduler writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sync_runs (
			id           TEXT PRIMARY KEY,
			triggered_by TEXT NOT NULL,
			started_at   INTEGER NOT NULL,
			finished_at  INTEGER NOT NULL,
			downloaded   INTEGER,
			total_remote INTEGER,
			missing      TEXT,
			error        TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_started ON sync_runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS job_runs (
			id          TEXT PRIMARY KEY,
			job         TEXT NOT NULL,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			status      TEXT,
			error       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_job_started ON job_runs(started_at)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordSync(run *SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	missing := run.Missing
	if missing == nil {
		missing = []string{}
	}
	encoded, err := json.Marshal(missing)
	if err != nil {
		return fmt.Errorf("encode missing: %w", err)
	}

	_, err = r.db.Exec(`INSERT INTO sync_runs
		(id, triggered_by, started_at, finished_at, downloaded, total_remote, missing, error)
		VALUES (?,?,?,?,?,?,?,?)`,
		run.ID, run.Trigger, run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(),
		run.Downloaded, run.TotalRemote, string(encoded), run.Error,
	)
	return err
}

func (r *SQLiteRecorder) RecordJob(run *JobRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	_, err := r.db.Exec(`INSERT INTO job_runs
		(id, job, started_at, finished_at, status, error)
		VALUES (?,?,?,?,?,?)`,
		run.ID, run.Job, run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(),
		run.Status, run.Error,
	)
	return err
}

func (r *SQLiteRecorder) RecentSyncs(limit int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(`SELECT id, triggered_by, started_at, finished_at, downloaded, total_remote, missing, error
		FROM sync_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sync runs: %w", err)
	}
	defer rows.Close()

	runs := []SyncRun{}
	for rows.Next() {
		var (
			run              SyncRun
			started, ended   int64
			missing, errText sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Trigger, &started, &ended,
			&run.Downloaded, &run.TotalRemote, &missing, &errText); err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		run.StartedAt = time.UnixMilli(started)
		run.FinishedAt = time.UnixMilli(ended)
		run.Error = errText.String
		run.Missing = []string{}
		if missing.Valid && missing.String != "" {
			if err := json.Unmarshal([]byte(missing.String), &run.Missing); err != nil {
				return nil, fmt.Errorf("decode missing of %s: %w", run.ID, err)
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}

// Open returns a SQLite recorder for dbPath, or a NoopRecorder when the
// path is empty or the database cannot be opened.
func Open(dbPath string, logger *logging.Logger) Recorder {
	if dbPath == "" {
		return NewNoopRecorder()
	}
	rec, err := NewSQLiteRecorder(dbPath, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("sqlite recorder unavailable, history disabled")
		return NewNoopRecorder()
	}
	return rec
}
