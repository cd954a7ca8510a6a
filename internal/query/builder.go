// Package query renders the SQL statements used to read snapshots.
//
// Snapshot identifiers are always bound parameters. The table identifier
// cannot be bound, so it is validated against a strict pattern and quoted
// for the target dialect before it is placed in the statement text.
package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

type Dialect string

const (
	SQLite    Dialect = "sqlite"
	Postgres  Dialect = "postgres"
	SQLServer Dialect = "sqlserver"
)

// Source table columns.
const (
	ColSnapshot = "asignacion"
	ColEntity   = "afiliacion"
	ColPeriod   = "periodo_mora"
	ColValue    = "vlr_cartera"
	ColType     = "tipo_cartera"
)

var (
	ErrInvalidTable   = errors.New("invalid table identifier")
	ErrUnknownDialect = errors.New("unknown SQL dialect")
	ErrEmptySnapshot  = errors.New("empty snapshot identifier")
)

var tablePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Statement is SQL text plus its positional arguments.
type Statement struct {
	SQL  string
	Args []any
}

// Builder renders statements for one dialect and source table.
type Builder struct {
	dialect Dialect
	table   string
}

// NewBuilder validates table and returns a builder for dialect.
func NewBuilder(dialect Dialect, table string) (*Builder, error) {
	switch dialect {
	case SQLite, Postgres, SQLServer:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, dialect)
	}
	if !tablePattern.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	return &Builder{dialect: dialect, table: table}, nil
}

func (b *Builder) Dialect() Dialect { return b.dialect }

// Table returns the quoted table identifier.
func (b *Builder) Table() string {
	parts := strings.Split(b.table, ".")
	for i, p := range parts {
		parts[i] = b.quote(p)
	}
	return strings.Join(parts, ".")
}

func (b *Builder) quote(ident string) string {
	if b.dialect == SQLServer {
		return "[" + ident + "]"
	}
	return `"` + ident + `"`
}

// placeholder returns the n-th (1-based) bind marker.
func (b *Builder) placeholder(n int) string {
	switch b.dialect {
	case Postgres:
		return fmt.Sprintf("$%d", n)
	case SQLServer:
		return fmt.Sprintf("@p%d", n)
	default:
		return "?"
	}
}

func (b *Builder) asText(expr string) string {
	if b.dialect == SQLServer {
		return "CAST(" + expr + " AS NVARCHAR(64))"
	}
	return "CAST(" + expr + " AS TEXT)"
}

// Snapshots lists distinct snapshot identifiers, newest (descending) first.
func (b *Builder) Snapshots() Statement {
	return Statement{SQL: fmt.Sprintf(
		"SELECT DISTINCT %[1]s FROM %[2]s WHERE %[1]s IS NOT NULL ORDER BY %[1]s DESC",
		ColSnapshot, b.Table(),
	)}
}

// Comparison renders the full outer join of two snapshots keyed on
// (entity, period). Each side is returned as raw text columns plus a presence
// flag; value coercion and status classification happen in the caller.
//
// Result columns, in order:
//
//	base_present, base_entity, base_period, base_type, base_value,
//	actual_present, actual_entity, actual_period, actual_type, actual_value
func (b *Builder) Comparison(base, actual string) (Statement, error) {
	if strings.TrimSpace(base) == "" || strings.TrimSpace(actual) == "" {
		return Statement{}, ErrEmptySnapshot
	}

	side := func(n int) string {
		return fmt.Sprintf(`SELECT
        1 AS presente,
        %[1]s,
        %[2]s,
        %[3]s AS periodo_txt,
        %[4]s AS valor_txt,
        %[5]s
    FROM %[6]s
    WHERE %[7]s = %[8]s`,
			ColEntity, ColPeriod, b.asText(ColPeriod), b.asText(ColValue), ColType,
			b.Table(), ColSnapshot, b.placeholder(n))
	}

	sql := fmt.Sprintf(`WITH base AS (
    %[1]s
),
actual AS (
    %[2]s
)
SELECT
    CASE WHEN b.presente IS NULL THEN 0 ELSE 1 END AS base_present,
    b.%[3]s AS base_entity,
    b.periodo_txt AS base_period,
    b.%[4]s AS base_type,
    b.valor_txt AS base_value,
    CASE WHEN a.presente IS NULL THEN 0 ELSE 1 END AS actual_present,
    a.%[3]s AS actual_entity,
    a.periodo_txt AS actual_period,
    a.%[4]s AS actual_type,
    a.valor_txt AS actual_value
FROM base b
FULL OUTER JOIN actual a
    ON b.%[3]s = a.%[3]s
    AND b.%[5]s = a.%[5]s`,
		side(1), side(2), ColEntity, ColType, ColPeriod)

	return Statement{SQL: sql, Args: []any{base, actual}}, nil
}

// SnapshotRows selects the raw rows of one snapshot.
func (b *Builder) SnapshotRows(snapshot string) (Statement, error) {
	if strings.TrimSpace(snapshot) == "" {
		return Statement{}, ErrEmptySnapshot
	}
	return Statement{
		SQL: fmt.Sprintf("SELECT %s, %s, %s, %s FROM %s WHERE %s = %s",
			ColEntity, b.asText(ColPeriod), ColType, b.asText(ColValue),
			b.Table(), ColSnapshot, b.placeholder(1)),
		Args: []any{snapshot},
	}, nil
}

// Ping is a trivial statement used by readiness checks.
func (b *Builder) Ping() Statement {
	return Statement{SQL: "SELECT 1"}
}
