package storage

import (
	"database/sql"
	"fmt"

	"comparativo/internal/core"
)

// rowIterator is satisfied by both *sql.Rows and pgx.Rows.
type rowIterator interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// rawSide holds one side of a joined row exactly as the database returned it.
type rawSide struct {
	present int64
	entity  sql.NullString
	period  sql.NullString
	typ     sql.NullString
	value   sql.NullString
}

func (s *rawSide) dest() []any {
	return []any{&s.present, &s.entity, &s.period, &s.typ, &s.value}
}

func (s *rawSide) row() *core.SnapshotRow {
	if s.present == 0 {
		return nil
	}
	return &core.SnapshotRow{
		EntityID:      s.entity.String,
		Period:        core.ParsePeriod(s.period.String),
		PortfolioType: s.typ.String,
		Value:         core.ParseValue(s.value.String),
	}
}

// scanComparison reads the result of query.Builder.Comparison.
func scanComparison(rows rowIterator) ([]core.DiffRow, error) {
	var out []core.DiffRow
	for rows.Next() {
		var base, actual rawSide
		if err := rows.Scan(append(base.dest(), actual.dest()...)...); err != nil {
			return nil, fmt.Errorf("scan comparison row: %w", err)
		}
		out = append(out, core.JoinedRow{Base: base.row(), Actual: actual.row()}.Diff())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comparison rows: %w", err)
	}
	return out, nil
}

// scanSnapshotRows reads the result of query.Builder.SnapshotRows.
func scanSnapshotRows(rows rowIterator) ([]core.SnapshotRow, error) {
	var out []core.SnapshotRow
	for rows.Next() {
		var entity, period, typ, value sql.NullString
		if err := rows.Scan(&entity, &period, &typ, &value); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		out = append(out, core.SnapshotRow{
			EntityID:      entity.String,
			Period:        core.ParsePeriod(period.String),
			PortfolioType: typ.String,
			Value:         core.ParseValue(value.String),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return out, nil
}

func scanIdentifiers(rows rowIterator) ([]string, error) {
	var out []string
	for rows.Next() {
		var id sql.NullString
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan snapshot id: %w", err)
		}
		if id.Valid {
			out = append(out, id.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot ids: %w", err)
	}
	return out, nil
}
