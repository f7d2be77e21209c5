package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// ErrRunNotFound is returned by GetRun when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const runsSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	created_at      TEXT NOT NULL,
	strategy        TEXT NOT NULL DEFAULT '',
	symbols         TEXT NOT NULL DEFAULT '',
	start_date      TEXT NOT NULL DEFAULT '',
	end_date        TEXT NOT NULL DEFAULT '',
	initial_cash    REAL NOT NULL DEFAULT 0,
	commission_rate REAL NOT NULL DEFAULT 0,
	total_return_pct REAL NOT NULL DEFAULT 0,
	max_drawdown_pct REAL NOT NULL DEFAULT 0,
	sharpe_ratio    REAL NOT NULL DEFAULT 0,
	trade_count     INTEGER NOT NULL DEFAULT 0,
	result          BLOB
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, ensures the
// schema exists, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(runsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing runs schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts a run record.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		return errors.New("run ID must be set")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (
			id, created_at, strategy, symbols, start_date, end_date,
			initial_cash, commission_rate,
			total_return_pct, max_drawdown_pct, sharpe_ratio, trade_count, result
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.CreatedAt.UTC().Format(time.RFC3339),
		run.Strategy,
		strings.Join(run.Symbols, ","),
		formatDate(run.StartDate),
		formatDate(run.EndDate),
		run.InitialCash,
		run.CommissionRate,
		run.TotalReturnPct,
		run.MaxDrawdownPct,
		run.SharpeRatio,
		run.TradeCount,
		[]byte(run.Result),
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun retrieves a run by ID, including its full result payload.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, strategy, symbols, start_date, end_date,
		       initial_cash, commission_rate,
		       total_return_pct, max_drawdown_pct, sharpe_ratio, trade_count, result
		FROM runs WHERE id = ?`, id)

	run, err := scanRun(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first, without result
// payloads.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, strategy, symbols, start_date, end_date,
		       initial_cash, commission_rate,
		       total_return_pct, max_drawdown_pct, sharpe_ratio, trade_count
		FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows, false)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner, withResult bool) (*Run, error) {
	var run Run
	var createdAt, symbols, start, end string

	dests := []any{
		&run.ID, &createdAt, &run.Strategy, &symbols, &start, &end,
		&run.InitialCash, &run.CommissionRate,
		&run.TotalReturnPct, &run.MaxDrawdownPct, &run.SharpeRatio, &run.TradeCount,
	}
	var result []byte
	if withResult {
		dests = append(dests, &result)
	}
	if err := row.Scan(dests...); err != nil {
		return nil, err
	}

	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		run.CreatedAt = t
	}
	if symbols != "" {
		run.Symbols = strings.Split(symbols, ",")
	}
	run.StartDate = parseDate(start)
	run.EndDate = parseDate(end)
	run.Result = result
	return &run, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}
