// Package store provides the SQLite ledger that records which submission
// scripts a sweep generated and the summary rows aggregated from its runs.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/sweep/internal/aggregate"
	"github.com/nvandessel/sweep/internal/constants"
	"github.com/nvandessel/sweep/internal/jobs"
	"github.com/nvandessel/sweep/internal/models"
	"github.com/nvandessel/sweep/internal/tables"
)

// Sweep is one recorded generate invocation.
type Sweep struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	DataDir        string    `json:"data_dir"`
	JobDir         string    `json:"job_dir"`
	Executable     string    `json:"executable"`
	Template       string    `json:"template"`
	Conditions     int       `json:"conditions"`
	Replicates     int       `json:"replicates"`
	SeedOffset     int       `json:"seed_offset"`
	SeedsPerTask   int       `json:"seeds_per_task"`
	ParallelPerJob int       `json:"parallel_per_job"`
}

var (
	_ jobs.Recorder      = (*Ledger)(nil)
	_ aggregate.Recorder = (*Ledger)(nil)
)

// Ledger records sweeps, their scripts and aggregated summaries.
type Ledger struct {
	mu      sync.Mutex
	db      *sql.DB
	path    string
	sweepID string
}

// Open opens (creating if needed) the ledger database at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Ledger{db: db, path: path}, nil
}

// Path returns the database file path.
func (l *Ledger) Path() string {
	return l.path
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// BeginSweep records a new sweep and makes it the target of subsequent
// RecordScript calls. The assigned ID is returned.
func (l *Ledger) BeginSweep(ctx context.Context, s Sweep) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO sweeps (id, created_at, data_dir, job_dir, executable, template,
			conditions, replicates, seed_offset, seeds_per_task, parallel_per_job)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.CreatedAt.Format(time.RFC3339Nano), s.DataDir, s.JobDir, s.Executable, s.Template,
		s.Conditions, s.Replicates, s.SeedOffset, s.SeedsPerTask, s.ParallelPerJob)
	if err != nil {
		return "", fmt.Errorf("failed to insert sweep: %w", err)
	}

	l.sweepID = s.ID
	return s.ID, nil
}

// RecordScript records a written script under the current sweep.
func (l *Ledger) RecordScript(ctx context.Context, s jobs.Script) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sweepID == "" {
		return fmt.Errorf("no sweep started")
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO scripts (sweep_id, condition_index, phase, job_name, path,
			shard, seed_offset, array_length, args)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.sweepID, s.Condition, int(s.Phase), s.JobName, s.Path, s.Shard, s.SeedOffset, s.ArrayLength, s.Args)
	if err != nil {
		return fmt.Errorf("failed to insert script: %w", err)
	}
	return nil
}

// Sweeps returns every recorded sweep, oldest first.
func (l *Ledger) Sweeps(ctx context.Context) ([]Sweep, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, created_at, data_dir, job_dir, executable, template,
			conditions, replicates, seed_offset, seeds_per_task, parallel_per_job
		FROM sweeps ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sweeps: %w", err)
	}
	defer rows.Close()

	var out []Sweep
	for rows.Next() {
		var s Sweep
		var created string
		if err := rows.Scan(&s.ID, &created, &s.DataDir, &s.JobDir, &s.Executable, &s.Template,
			&s.Conditions, &s.Replicates, &s.SeedOffset, &s.SeedsPerTask, &s.ParallelPerJob); err != nil {
			return nil, fmt.Errorf("failed to scan sweep: %w", err)
		}
		s.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Scripts returns the scripts recorded for sweepID ordered by condition and
// phase.
func (l *Ledger) Scripts(ctx context.Context, sweepID string) ([]jobs.Script, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.QueryContext(ctx, `
		SELECT condition_index, phase, job_name, path, shard, seed_offset, array_length, args
		FROM scripts WHERE sweep_id = ? ORDER BY condition_index, phase`, sweepID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scripts: %w", err)
	}
	defer rows.Close()

	var out []jobs.Script
	for rows.Next() {
		var s jobs.Script
		var phase int
		if err := rows.Scan(&s.Condition, &phase, &s.JobName, &s.Path, &s.Shard, &s.SeedOffset, &s.ArrayLength, &s.Args); err != nil {
			return nil, fmt.Errorf("failed to scan script: %w", err)
		}
		s.Phase = models.Phase(phase)
		if !s.Phase.Valid() {
			return nil, fmt.Errorf("script %s has unknown phase %d", s.JobName, phase)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RecordRun stores the summary rows aggregated from one run directory,
// replacing any rows previously recorded for it.
func (l *Ledger) RecordRun(ctx context.Context, run string, rows []*tables.Row) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM summary_fields WHERE run = ?`, run); err != nil {
		return fmt.Errorf("failed to clear run %s: %w", run, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO summary_fields (run, update_id, position, field, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		update := row.Value(constants.UpdateField)
		for i, field := range row.Fields() {
			if _, err := stmt.ExecContext(ctx, run, update, i, field, row.Value(field)); err != nil {
				return fmt.Errorf("failed to insert %s/%s/%s: %w", run, update, field, err)
			}
		}
	}

	return tx.Commit()
}

// RunSummary returns the rows recorded for run, one per update, with fields
// in their original order.
func (l *Ledger) RunSummary(ctx context.Context, run string) ([]*tables.Row, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.QueryContext(ctx, `
		SELECT update_id, field, value FROM summary_fields
		WHERE run = ? ORDER BY CAST(update_id AS INTEGER), update_id, position`, run)
	if err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}
	defer rows.Close()

	var out []*tables.Row
	byUpdate := make(map[string]*tables.Row)
	for rows.Next() {
		var update, field, value string
		if err := rows.Scan(&update, &field, &value); err != nil {
			return nil, fmt.Errorf("failed to scan summary field: %w", err)
		}
		row, ok := byUpdate[update]
		if !ok {
			row = tables.NewRow()
			byUpdate[update] = row
			out = append(out, row)
		}
		row.Set(field, value)
	}
	return out, rows.Err()
}
