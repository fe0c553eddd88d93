// Package history journals rename outcomes to a SQLite database so operators
// can audit what was renamed to what, and find orphans after the fact.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harrison/seqwatch/internal/logger"
	"github.com/harrison/seqwatch/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// ErrNoRun is returned when recording before StartRun.
var ErrNoRun = errors.New("no active run")

// Run describes one watch session.
type Run struct {
	ID        string
	Directory string
	Pattern   string
	Digits    int
	Seed      int
	StartedAt time.Time
	EndedAt   sql.NullTime
	Processed int64
	Succeeded int64
	Failed    int64
	Orphaned  int64
}

// Entry is one journaled rename outcome.
type Entry struct {
	ID           int64
	RunID        string
	OriginalName string
	NewName      string
	State        string
	OrphanPath   string
	ErrorMessage string
	DurationMs   int64
	RecordedAt   time.Time
}

// Store manages the history database.
type Store struct {
	db     *sql.DB
	dbPath string
	logger logger.Logger

	mu    sync.Mutex
	runID string
}

// NewStore opens (creating if needed) the database at dbPath.
func NewStore(dbPath string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := execWithRetry(db, schemaSQL, 5, 10*time.Millisecond); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath, logger: log}, nil
}

// execWithRetry executes a statement with exponential backoff on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.dbPath
}

// StartRun opens a new run and makes it the target of subsequent records.
func (s *Store) StartRun(ctx context.Context, dir, pattern string, digits, seed int) (string, error) {
	id := uuid.New().String()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, directory, pattern, digits, seed, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, dir, pattern, digits, seed, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	s.mu.Lock()
	s.runID = id
	s.mu.Unlock()
	return id, nil
}

// RunID returns the active run, or "" before StartRun.
func (s *Store) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// FinishRun stamps the active run with its end time and final counters.
func (s *Store) FinishRun(ctx context.Context, stats models.PoolStats) error {
	id := s.RunID()
	if id == "" {
		return ErrNoRun
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET ended_at = ?, processed = ?, succeeded = ?, failed = ?, orphaned = ? WHERE run_id = ?`,
		time.Now().UTC(), stats.Processed, stats.Succeeded, stats.Failed, stats.Orphaned, id,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// Record journals one rename result under the active run.
func (s *Store) Record(ctx context.Context, result models.RenameResult) error {
	id := s.RunID()
	if id == "" {
		return ErrNoRun
	}

	var errMsg sql.NullString
	if result.Err != nil {
		errMsg = sql.NullString{String: result.Err.Error(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO renames (run_id, original_name, new_name, state, orphan_path, error_message, duration_ms, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		result.Item.Name,
		nullString(result.NewName),
		result.State.String(),
		nullString(result.OrphanPath),
		errMsg,
		result.Duration.Milliseconds(),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert rename: %w", err)
	}
	return nil
}

// ObserveResult implements worker.Observer. Journal failures are logged and
// never affect the rename pipeline.
func (s *Store) ObserveResult(result models.RenameResult) {
	if err := s.Record(context.Background(), result); err != nil {
		s.logger.LogWarn(fmt.Sprintf("History: failed to record %s: %v", result.Item.Name, err))
	}
}

// ObserveBatch implements worker.Observer.
func (s *Store) ObserveBatch(int) {}

// Recent returns up to limit entries, newest first. An empty state matches all.
func (s *Store) Recent(ctx context.Context, limit int, state string) ([]Entry, error) {
	query := `SELECT id, run_id, original_name, new_name, state, orphan_path, error_message, duration_ms, recorded_at
		FROM renames`
	args := []interface{}{}
	if state != "" {
		query += ` WHERE state = ?`
		args = append(args, state)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query renames: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var newName, orphanPath, errMsg sql.NullString
		if err := rows.Scan(&e.ID, &e.RunID, &e.OriginalName, &newName, &e.State, &orphanPath, &errMsg, &e.DurationMs, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan rename: %w", err)
		}
		e.NewName = newName.String
		e.OrphanPath = orphanPath.String
		e.ErrorMessage = errMsg.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Runs returns up to limit runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, directory, pattern, digits, seed, started_at, ended_at, processed, succeeded, failed, orphaned
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Directory, &r.Pattern, &r.Digits, &r.Seed, &r.StartedAt, &r.EndedAt,
			&r.Processed, &r.Succeeded, &r.Failed, &r.Orphaned); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
