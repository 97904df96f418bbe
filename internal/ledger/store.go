package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"dubline/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes; older ledgers must be
// removed by the operator.
const schemaVersion = 1

// timeLayout keeps fixed-width fractions so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrSchemaMismatch indicates the database schema version doesn't match.
var ErrSchemaMismatch = errors.New("ledger schema version mismatch")

// Store wraps the ledger database.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open creates or connects to the ledger at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: ledger path is empty", services.ErrConfiguration)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Close closes the database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// RecordStart inserts a running row. Re-recording an existing run id (a
// resumed run in the same process) resets it to running.
func (s *Store) RecordStart(ctx context.Context, runID, workDir, fingerprint, stage string, resumed bool) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("%w: run id is required", services.ErrValidation)
	}
	ts := s.now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, work_dir, fingerprint, status, stage, resumed, started_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(run_id) DO UPDATE SET
            status = excluded.status,
            stage = excluded.stage,
            resumed = excluded.resumed,
            started_at = excluded.started_at,
            finished_at = NULL,
            error_message = NULL`,
		runID, workDir, fingerprint, StatusRunning, stage, boolToInt(resumed), ts,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordFinish stores a run's outcome and its degraded chunks.
func (s *Store) RecordFinish(ctx context.Context, runID string, out Outcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin finish tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var errMsg sql.NullString
	if out.Err != nil {
		errMsg = sql.NullString{String: out.Err.Error(), Valid: true}
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE runs SET status = ?, stage = ?, chunk_count = ?, degraded_count = ?,
            untranslated_count = ?, synthesis_calls = ?, output_path = ?,
            error_message = ?, finished_at = ?
         WHERE run_id = ?`,
		out.Status, out.Stage, out.ChunkCount, len(out.Degraded),
		out.UntranslatedCount, out.SynthesisCalls, nullString(out.OutputPath),
		errMsg, s.now().UTC().Format(timeLayout), runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: run %s", services.ErrNotFound, runID)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM degraded_chunks WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("clear degraded chunks: %w", err)
	}
	for _, d := range out.Degraded {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO degraded_chunks (run_id, chunk_index, start_seconds, end_seconds, reason)
             VALUES (?, ?, ?, ?, ?)`,
			runID, d.ChunkIndex, d.Start, d.End, d.Reason,
		); err != nil {
			return fmt.Errorf("insert degraded chunk %d: %w", d.ChunkIndex, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit finish: %w", err)
	}
	return nil
}

const runColumns = `run_id, work_dir, fingerprint, status, stage, resumed, chunk_count,
    degraded_count, untranslated_count, synthesis_calls, output_path, error_message,
    started_at, finished_at`

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, rowid DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun fetches one run; a missing run returns ErrNotFound.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE run_id = ?", runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: run %s", services.ErrNotFound, runID)
	}
	return run, err
}

// DegradedChunks lists a run's degraded chunks by index.
func (s *Store) DegradedChunks(ctx context.Context, runID string) ([]DegradedChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_index, start_seconds, end_seconds, reason
         FROM degraded_chunks WHERE run_id = ? ORDER BY chunk_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("list degraded chunks: %w", err)
	}
	defer rows.Close()

	var out []DegradedChunk
	for rows.Next() {
		var d DegradedChunk
		if err := rows.Scan(&d.ChunkIndex, &d.Start, &d.End, &d.Reason); err != nil {
			return nil, fmt.Errorf("scan degraded chunk: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run                Run
		resumed            int
		outputPath, errMsg sql.NullString
		startedAt          string
		finishedAt         sql.NullString
	)
	if err := row.Scan(
		&run.RunID, &run.WorkDir, &run.Fingerprint, &run.Status, &run.Stage, &resumed,
		&run.ChunkCount, &run.DegradedCount, &run.UntranslatedCount, &run.SynthesisCalls,
		&outputPath, &errMsg, &startedAt, &finishedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Resumed = resumed != 0
	run.OutputPath = outputPath.String
	run.ErrorMessage = errMsg.String
	run.StartedAt = parseTime(startedAt)
	if finishedAt.Valid {
		run.FinishedAt = parseTime(finishedAt.String)
	}
	return run, nil
}

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullString(v string) sql.NullString {
	if strings.TrimSpace(v) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
