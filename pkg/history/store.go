package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	pferrors "github.com/pbelyakov/planforge/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	ticket_key  TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	maturity    TEXT NOT NULL,
	confidence  REAL NOT NULL,
	tokens_used INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	output_dir  TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_ticket ON runs(ticket_key);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
`

// Store is the run-history database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the history database at path and applies
// the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, pferrors.NewStoreErrorWithCause("history_open", path, "failed to create database directory", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, pferrors.NewStoreErrorWithCause("history_open", path, "failed to open database", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, pferrors.NewStoreErrorWithCause("history_open", path, "failed to apply schema", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts a run. A missing ID gets a fresh UUID; a zero CreatedAt
// gets the current time.
func (s *Store) RecordRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, ticket_key, outcome, maturity, confidence, tokens_used, duration_ms, output_dir, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.TicketKey, run.Outcome, run.Maturity, run.Confidence,
		run.TokensUsed, run.Duration.Milliseconds(), run.OutputDir, run.CreatedAt.Unix())
	if err != nil {
		return pferrors.NewStoreErrorWithCause("record_run", s.path, "failed to insert run", err)
	}
	return nil
}

// QueryRuns returns runs matching the options, newest first.
func (s *Store) QueryRuns(ctx context.Context, opts QueryOptions) ([]Run, error) {
	query, args := buildRunsQuery(opts)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, pferrors.NewStoreErrorWithCause("query_runs", s.path, "query failed", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			durationMS int64
			createdAt  int64
		)
		if err := rows.Scan(&r.ID, &r.TicketKey, &r.Outcome, &r.Maturity,
			&r.Confidence, &r.TokensUsed, &durationMS, &r.OutputDir, &createdAt); err != nil {
			return nil, pferrors.NewStoreErrorWithCause("query_runs", s.path, "scan failed", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.CreatedAt = time.Unix(createdAt, 0)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func buildRunsQuery(opts QueryOptions) (string, []any) {
	var (
		conds []string
		args  []any
	)

	if opts.TicketKey != "" {
		conds = append(conds, "ticket_key = ?")
		args = append(args, opts.TicketKey)
	}
	if opts.Outcome != "" {
		conds = append(conds, "outcome = ?")
		args = append(args, opts.Outcome)
	}
	if opts.MinConfidence != nil {
		conds = append(conds, "confidence >= ?")
		args = append(args, *opts.MinConfidence)
	}
	if opts.Since != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, opts.Since.Unix())
	}
	if opts.Until != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, opts.Until.Unix())
	}

	query := "SELECT id, ticket_key, outcome, maturity, confidence, tokens_used, duration_ms, output_dir, created_at FROM runs"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	return query, args
}
