package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"comparativo/internal/core"
	"comparativo/internal/query"
	"comparativo/internal/snapshots"

	_ "modernc.org/sqlite"
)

// DefaultSQLiteTable is the snapshot table created by the embedded migrations.
const DefaultSQLiteTable = "Historico_Asignaciones"

// SQLiteRepository is a local snapshot source. It also records the audit
// trail of executed comparisons.
type SQLiteRepository struct {
	*SQLRepository
	dbPath string
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	base, err := newSQLRepository(db, query.SQLite, DefaultSQLiteTable)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{SQLRepository: base, dbPath: dbPath}, nil
}

// Import loads fixture snapshots into the table. With replace set, existing
// rows of each imported snapshot are deleted first. It returns the number of
// inserted rows.
func (r *SQLiteRepository) Import(ctx context.Context, f snapshots.Fixture, replace bool) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	table := r.builder.Table()
	if replace {
		del := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, query.ColSnapshot)
		for _, s := range f.Snapshots {
			if _, err := tx.ExecContext(ctx, del, s.ID); err != nil {
				return 0, fmt.Errorf("clear snapshot %s: %w", s.ID, err)
			}
		}
	}

	ins, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s, %s, %s, %s, %s) VALUES (?, ?, ?, ?, ?)",
		table, query.ColSnapshot, query.ColEntity, query.ColPeriod, query.ColValue, query.ColType))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()

	n := 0
	for _, s := range f.Snapshots {
		for _, row := range s.Rows {
			if _, err := ins.ExecContext(ctx, s.ID,
				nullable(row.Entity), nullable(row.Period), nullable(row.Value), nullable(row.Type)); err != nil {
				return 0, fmt.Errorf("insert row of %s: %w", s.ID, err)
			}
			n++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}

	slog.InfoContext(ctx, "Snapshots imported into SQLite",
		"snapshots", len(f.Snapshots),
		"rows", n,
		"replace", replace,
		"db_path", r.dbPath)

	return n, nil
}

// RecordRun implements snapshots.RunRecorder
func (r *SQLiteRepository) RecordRun(ctx context.Context, run core.Run) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO comparison_runs (run_id, base, actual, rows_count, duration_ms, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Base, run.Actual, run.Rows, run.Duration.Milliseconds(), run.ExecutedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns implements snapshots.RunLister
func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]core.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT run_id, base, actual, rows_count, duration_ms, executed_at
		 FROM comparison_runs ORDER BY executed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []core.Run
	for rows.Next() {
		var (
			run        core.Run
			durationMS int64
			executedAt string
		)
		if err := rows.Scan(&run.ID, &run.Base, &run.Actual, &run.Rows, &durationMS, &executedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		if t, err := time.Parse(time.RFC3339Nano, executedAt); err == nil {
			run.ExecutedAt = t
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
