// Package ledger is the persistent idempotency store: which meetings have
// been processed, under what content fingerprint, and the outcome history
// of past runs. It is the single source of truth for the reprocess decision.
package ledger

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding processed-meeting records and runs.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "debrief.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Single connection keeps the check-then-commit sequence serialized
	// and avoids "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Processed meetings ---

// ShouldProcess decides whether a meeting needs (re)processing: yes when no
// record exists for its id, when force is set, or when the stored
// fingerprint differs from the current one (content changed since last run).
func (s *Store) ShouldProcess(ctx context.Context, meetingID, fingerprint string, force bool) (bool, error) {
	if force {
		return true, nil
	}

	var stored string
	err := s.db.QueryRowContext(ctx, "SELECT fingerprint FROM processed_meetings WHERE meeting_id = ?", meetingID).Scan(&stored)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading processed record for %s: %w", meetingID, err)
	}
	return stored != fingerprint, nil
}

// Commit records a meeting as processed. Called only after a fully
// successful pipeline run; upserts so a forced reprocess overwrites the
// prior record instead of duplicating it.
func (s *Store) Commit(ctx context.Context, meetingID, title, fingerprint string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO processed_meetings (meeting_id, title, fingerprint, processed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(meeting_id) DO UPDATE SET
			title = excluded.title,
			fingerprint = excluded.fingerprint,
			processed_at = excluded.processed_at`,
		meetingID, title, fingerprint, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("committing processed record for %s: %w", meetingID, err)
	}
	return nil
}

// GetProcessed returns the processed record for a meeting, or ErrNotFound.
func (s *Store) GetProcessed(meetingID string) (ProcessedRecord, error) {
	var r ProcessedRecord
	var processedAt string
	err := s.db.QueryRow(`
		SELECT meeting_id, title, fingerprint, processed_at
		FROM processed_meetings WHERE meeting_id = ?`, meetingID,
	).Scan(&r.MeetingID, &r.Title, &r.Fingerprint, &processedAt)
	if err == sql.ErrNoRows {
		return ProcessedRecord{}, ErrNotFound
	}
	if err != nil {
		return ProcessedRecord{}, err
	}
	t, err := time.Parse(time.RFC3339, processedAt)
	if err != nil {
		return ProcessedRecord{}, fmt.Errorf("parsing processed_at: %w", err)
	}
	r.ProcessedAt = t
	return r, nil
}

// ListProcessed returns the most recently processed meetings, newest first.
func (s *Store) ListProcessed(limit int) ([]ProcessedRecord, error) {
	rows, err := s.db.Query(`
		SELECT meeting_id, title, fingerprint, processed_at
		FROM processed_meetings ORDER BY processed_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ProcessedRecord
	for rows.Next() {
		var r ProcessedRecord
		var processedAt string
		if err := rows.Scan(&r.MeetingID, &r.Title, &r.Fingerprint, &processedAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, processedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing processed_at: %w", err)
		}
		r.ProcessedAt = t
		results = append(results, r)
	}
	return results, rows.Err()
}

// CountProcessed returns the total number of processed meetings.
func (s *Store) CountProcessed() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM processed_meetings").Scan(&n)
	return n, err
}

// --- Runs ---

// SaveRun records a finished run and its per-meeting outcomes in one
// transaction.
func (s *Store) SaveRun(run Run, meetings []RunMeeting) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning run transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (id, started_at, finished_at, completed, skipped, failed)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.FinishedAt.UTC().Format(time.RFC3339),
		run.Completed, run.Skipped, run.Failed,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}

	for _, m := range meetings {
		_, err = tx.Exec(`
			INSERT INTO run_meetings (run_id, meeting_id, title, status, detail)
			VALUES (?, ?, ?, ?, ?)`,
			run.ID, m.MeetingID, m.Title, m.Status, m.Detail,
		)
		if err != nil {
			return fmt.Errorf("inserting run meeting %s/%s: %w", run.ID, m.MeetingID, err)
		}
	}

	return tx.Commit()
}

// ListRuns returns recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, completed, skipped, failed
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Run
	for rows.Next() {
		var r Run
		var startedAt, finishedAt string
		if err := rows.Scan(&r.ID, &startedAt, &finishedAt, &r.Completed, &r.Skipped, &r.Failed); err != nil {
			return nil, err
		}
		if r.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
			return nil, fmt.Errorf("parsing started_at: %w", err)
		}
		if r.FinishedAt, err = time.Parse(time.RFC3339, finishedAt); err != nil {
			return nil, fmt.Errorf("parsing finished_at: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// RunMeetings returns the per-meeting outcomes for a run.
func (s *Store) RunMeetings(runID string) ([]RunMeeting, error) {
	rows, err := s.db.Query(`
		SELECT run_id, meeting_id, title, status, detail
		FROM run_meetings WHERE run_id = ?`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []RunMeeting
	for rows.Next() {
		var m RunMeeting
		if err := rows.Scan(&m.RunID, &m.MeetingID, &m.Title, &m.Status, &m.Detail); err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}
