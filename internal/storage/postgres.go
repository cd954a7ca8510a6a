package storage

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"comparativo/internal/core"
	"comparativo/internal/query"
)

// PostgresRepository reads snapshots through a pgx pool.
type PostgresRepository struct {
	pool    *pgxpool.Pool
	builder *query.Builder
}

// PostgresDSN builds a pgx connection URL.
func PostgresDSN(cfg ServerConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Server, strconv.Itoa(port)),
		Path:     "/" + cfg.Database,
		RawQuery: url.Values{"sslmode": {"prefer"}, "application_name": {"comparativo"}}.Encode(),
	}
	return u.String()
}

func NewPostgresRepository(ctx context.Context, cfg ServerConfig) (*PostgresRepository, error) {
	b, err := query.NewBuilder(query.Postgres, cfg.Table)
	if err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(PostgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	repo := &PostgresRepository{pool: pool, builder: b}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := repo.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// Ping implements snapshots.Pinger
func (r *PostgresRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// ListSnapshots implements snapshots.Catalog
func (r *PostgresRepository) ListSnapshots(ctx context.Context) ([]string, error) {
	st := r.builder.Snapshots()
	rows, err := r.pool.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()
	return scanIdentifiers(rows)
}

// Compare implements snapshots.Comparer
func (r *PostgresRepository) Compare(ctx context.Context, base, actual string) ([]core.DiffRow, error) {
	if err := (core.ComparisonRequest{Base: base, Actual: actual}).Validate(); err != nil {
		return nil, err
	}
	st, err := r.builder.Comparison(base, actual)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, fmt.Errorf("compare snapshots: %w", err)
	}
	defer rows.Close()
	return scanComparison(rows)
}

// SnapshotRows implements snapshots.RowReader
func (r *PostgresRepository) SnapshotRows(ctx context.Context, snapshot string) ([]core.SnapshotRow, error) {
	st, err := r.builder.SnapshotRows(snapshot)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", snapshot, err)
	}
	defer rows.Close()
	return scanSnapshotRows(rows)
}
