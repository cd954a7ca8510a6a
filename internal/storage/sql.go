package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"comparativo/internal/core"
	"comparativo/internal/query"
)

// SQLRepository reads snapshots through database/sql. It backs both the
// sqlite and the SQL Server sources.
type SQLRepository struct {
	db      *sql.DB
	builder *query.Builder
}

func newSQLRepository(db *sql.DB, dialect query.Dialect, table string) (*SQLRepository, error) {
	b, err := query.NewBuilder(dialect, table)
	if err != nil {
		return nil, err
	}
	return &SQLRepository{db: db, builder: b}, nil
}

// DB exposes the underlying pool.
func (r *SQLRepository) DB() *sql.DB { return r.db }

func (r *SQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping implements snapshots.Pinger
func (r *SQLRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", r.builder.Dialect(), err)
	}
	return nil
}

// ListSnapshots implements snapshots.Catalog
func (r *SQLRepository) ListSnapshots(ctx context.Context) ([]string, error) {
	st := r.builder.Snapshots()
	rows, err := r.db.QueryContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()
	return scanIdentifiers(rows)
}

// Compare implements snapshots.Comparer
func (r *SQLRepository) Compare(ctx context.Context, base, actual string) ([]core.DiffRow, error) {
	if err := (core.ComparisonRequest{Base: base, Actual: actual}).Validate(); err != nil {
		return nil, err
	}
	st, err := r.builder.Comparison(base, actual)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, fmt.Errorf("compare snapshots: %w", err)
	}
	defer rows.Close()

	out, err := scanComparison(rows)
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "Comparison query completed",
		"dialect", r.builder.Dialect(),
		"base", base,
		"actual", actual,
		"rows", len(out),
		"duration_ms", time.Since(start).Milliseconds())

	return out, nil
}

// SnapshotRows implements snapshots.RowReader
func (r *SQLRepository) SnapshotRows(ctx context.Context, snapshot string) ([]core.SnapshotRow, error) {
	st, err := r.builder.SnapshotRows(snapshot)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", snapshot, err)
	}
	defer rows.Close()
	return scanSnapshotRows(rows)
}
