// Package store keeps extraction runs in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure Go driver

	"github.com/lenhanpham/gaussian-extractor/internal/extract"
	"github.com/lenhanpham/gaussian-extractor/internal/gaussian"
)

const busyTimeout = 5 * time.Second

// Store wraps the results database.
type Store struct {
	db *sql.DB
}

// Run is the metadata of one extraction run.
type Run struct {
	ID            string
	StartedAt     time.Time
	Directory     string
	Temperature   float64
	Concentration float64 // mol/L
	FilesTotal    int
	FilesOK       int
}

// NewRun returns run metadata with a fresh ID.
func NewRun(dir string, started time.Time) Run {
	return Run{ID: uuid.NewString(), StartedAt: started, Directory: dir}
}

// Open opens or creates the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// dsn builds a file URI for path. The path is percent-encoded so that '?',
// '#' and '%' in file names are not read as URI syntax.
func dsn(path string) string {
	pragmas := []string{
		"journal_mode(WAL)",
		fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()),
		"synchronous(NORMAL)",
		"foreign_keys(ON)",
	}
	q := make([]string, 0, len(pragmas))
	for _, p := range pragmas {
		q = append(q, "_pragma="+p)
	}
	u := url.URL{
		Scheme:   "file",
		Opaque:   (&url.URL{Path: path}).EscapedPath(),
		RawQuery: strings.Join(q, "&"),
	}
	return u.String()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		directory TEXT NOT NULL,
		temperature REAL NOT NULL,
		concentration REAL NOT NULL,
		files_total INTEGER NOT NULL,
		files_ok INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS results (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		file_name TEXT NOT NULL,
		etg_kj REAL NOT NULL,
		low_freq REAL NOT NULL,
		gibbs_au REAL NOT NULL,
		nuclear REAL NOT NULL,
		scf REAL NOT NULL,
		zpe REAL NOT NULL,
		status TEXT NOT NULL CHECK(status IN ('DONE', 'ERROR', 'UNDONE')),
		phase_corr INTEGER NOT NULL,
		rounds INTEGER NOT NULL,
		PRIMARY KEY (run_id, file_name)
	);

	CREATE INDEX IF NOT EXISTS idx_results_file ON results(file_name);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun stores the run and all its results in one transaction.
func (s *Store) SaveRun(ctx context.Context, run Run, results []extract.Result) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, started_at, directory, temperature, concentration, files_total, files_ok)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(time.RFC3339Nano), run.Directory,
		run.Temperature, run.Concentration, run.FilesTotal, run.FilesOK)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO results (run_id, file_name, etg_kj, low_freq, gibbs_au, nuclear, scf, zpe, status, phase_corr, rounds)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare result insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range results {
		if _, err = stmt.ExecContext(ctx, run.ID, r.FileName, r.ETGKJ, r.LowFreq, r.Gibbs,
			r.Nuclear, r.SCF, r.ZPE, string(r.Status), r.PhaseCorr, r.Rounds); err != nil {
			return fmt.Errorf("insert result %s: %w", r.FileName, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Runs lists stored runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, started_at, directory, temperature, concentration, files_total, files_ok
	FROM runs
	ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var r Run
		var started string
		if err := rows.Scan(&r.ID, &started, &r.Directory, &r.Temperature, &r.Concentration, &r.FilesTotal, &r.FilesOK); err != nil {
			return nil, err
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse started_at of run %s: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Results returns the results of one run ordered by file name.
func (s *Store) Results(ctx context.Context, runID string) ([]extract.Result, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT file_name, etg_kj, low_freq, gibbs_au, nuclear, scf, zpe, status, phase_corr, rounds
	FROM results
	WHERE run_id = ?
	ORDER BY file_name`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []extract.Result
	for rows.Next() {
		var r extract.Result
		var status string
		if err := rows.Scan(&r.FileName, &r.ETGKJ, &r.LowFreq, &r.Gibbs, &r.Nuclear, &r.SCF, &r.ZPE,
			&status, &r.PhaseCorr, &r.Rounds); err != nil {
			return nil, err
		}
		r.Status = gaussian.Status(status)
		results = append(results, r)
	}
	return results, rows.Err()
}
