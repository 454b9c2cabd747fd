package artifact

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists job results and run reports in a local SQLite
// database. Results survive process restarts, which is what makes the
// skip-existing policy useful across invocations.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the
// schema. WAL mode keeps concurrent readers cheap during a run.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS results (
		job_name    TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		output_path TEXT NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (job_name, fingerprint)
	);

	CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		successful  INTEGER NOT NULL,
		started_at  DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_jobs (
		run_id   TEXT NOT NULL,
		position INTEGER NOT NULL,
		job_name TEXT NOT NULL,
		status   TEXT NOT NULL,
		error    TEXT DEFAULT '',
		PRIMARY KEY (run_id, job_name),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_results_fingerprint ON results(fingerprint);
	CREATE INDEX IF NOT EXISTS idx_run_jobs_run_id ON run_jobs(run_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate sqlite schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// HasResult implements Cache. A missing row is a normal false.
func (s *SQLiteStore) HasResult(ctx context.Context, job string, fp Fingerprint) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM results WHERE job_name = ? AND fingerprint = ?`,
		job, string(fp)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query result for %q: %w", job, err)
	}
	return true, nil
}

// PutResult implements Store. Re-running a job overwrites its record.
func (s *SQLiteStore) PutResult(ctx context.Context, job string, fp Fingerprint, outputPath string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO results (job_name, fingerprint, output_path)
		VALUES (?, ?, ?)
		ON CONFLICT(job_name, fingerprint) DO UPDATE SET
			output_path = excluded.output_path,
			created_at = CURRENT_TIMESTAMP
	`, job, string(fp), outputPath)
	if err != nil {
		return fmt.Errorf("store result for %q: %w", job, err)
	}
	return nil
}

// RunRecord is a finished run as persisted for later inspection.
type RunRecord struct {
	ID          string
	Fingerprint Fingerprint
	Successful  bool
	StartedAt   time.Time
	FinishedAt  time.Time
	Jobs        []RunJobRecord
}

// RunJobRecord is one job's outcome within a persisted run, in report
// order.
type RunJobRecord struct {
	Name   string
	Status string
	Error  string
}

// SaveRun persists a run report atomically.
func (s *SQLiteStore) SaveRun(ctx context.Context, run RunRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run transaction: %w", err)
	}
	defer tx.Rollback()

	successful := 0
	if run.Successful {
		successful = 1
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, fingerprint, successful, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, string(run.Fingerprint), successful, run.StartedAt.UTC(), run.FinishedAt.UTC()); err != nil {
		return fmt.Errorf("insert run %q: %w", run.ID, err)
	}

	for i, job := range run.Jobs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_jobs (run_id, position, job_name, status, error)
			VALUES (?, ?, ?, ?, ?)
		`, run.ID, i, job.Name, job.Status, job.Error); err != nil {
			return fmt.Errorf("insert outcome of %q for run %q: %w", job.Name, run.ID, err)
		}
	}

	return tx.Commit()
}

// GetRun loads a persisted run by ID, with job outcomes in report order.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	run := RunRecord{ID: id}
	var successful int
	var fp string
	err := s.db.QueryRowContext(ctx,
		`SELECT fingerprint, successful, started_at, finished_at FROM runs WHERE id = ?`,
		id).Scan(&fp, &successful, &run.StartedAt, &run.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query run %q: %w", id, err)
	}
	run.Fingerprint = Fingerprint(fp)
	run.Successful = successful != 0

	rows, err := s.db.QueryContext(ctx,
		`SELECT job_name, status, error FROM run_jobs WHERE run_id = ? ORDER BY position`,
		id)
	if err != nil {
		return nil, fmt.Errorf("query outcomes for run %q: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var job RunJobRecord
		if err := rows.Scan(&job.Name, &job.Status, &job.Error); err != nil {
			return nil, fmt.Errorf("scan outcome for run %q: %w", id, err)
		}
		run.Jobs = append(run.Jobs, job)
	}
	return &run, rows.Err()
}
