package core

import (
	"github.com/shopspring/decimal"
)

// JoinedRow is one output row of the full outer join of two snapshots on
// (entity, period). A nil side means the key had no row in that snapshot.
type JoinedRow struct {
	Base   *SnapshotRow
	Actual *SnapshotRow
}

// Diff coalesces the key columns (base first) and classifies the pair.
func (j JoinedRow) Diff() DiffRow {
	var (
		row           DiffRow
		before, after decimal.NullDecimal
	)
	if j.Base != nil {
		row.EntityID = j.Base.EntityID
		row.Period = j.Base.Period
		row.PortfolioType = j.Base.PortfolioType
		before = j.Base.Value
	}
	if j.Actual != nil {
		if row.EntityID == "" {
			row.EntityID = j.Actual.EntityID
		}
		if !row.Period.Valid {
			row.Period = j.Actual.Period
		}
		if row.PortfolioType == "" {
			row.PortfolioType = j.Actual.PortfolioType
		}
		after = j.Actual.Value
	}

	row.Before = zeroFill(before)
	row.After = zeroFill(after)
	row.Delta = row.After.Sub(row.Before)
	row.Status = Classify(before, after)
	return row
}

// Classify derives the status from value presence and magnitude. The checks
// run in order, so a pair with no value on either side is StatusNew.
func Classify(before, after decimal.NullDecimal) Status {
	switch {
	case !before.Valid:
		return StatusNew
	case !after.Valid:
		return StatusRemoved
	case before.Decimal.LessThan(after.Decimal):
		return StatusIncreased
	case before.Decimal.GreaterThan(after.Decimal):
		return StatusDecreased
	default:
		return StatusUnchanged
	}
}

func zeroFill(v decimal.NullDecimal) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal
}

// joinable reports whether r can match a row of the other snapshot. SQL
// equality never holds for NULL keys, which scan as empty values.
func (r SnapshotRow) joinable() bool {
	return r.Period.Valid && r.EntityID != ""
}

type joinKey struct {
	entity string
	period int
}

// Diff full-outer-joins two in-memory snapshots and classifies every output
// row. It behaves like the SQL join: rows with an absent period or an empty
// entity never match, and duplicate keys on both sides produce their cross
// product. Output keeps
// base order, followed by unmatched actual rows in their own order.
func Diff(base, actual []SnapshotRow) []DiffRow {
	index := make(map[joinKey][]int, len(actual))
	for i, r := range actual {
		if !r.joinable() {
			continue
		}
		k := joinKey{entity: r.EntityID, period: r.Period.YYYYMM}
		index[k] = append(index[k], i)
	}

	matched := make([]bool, len(actual))
	out := make([]DiffRow, 0, len(base)+len(actual))
	for i := range base {
		b := &base[i]
		if b.joinable() {
			if hits := index[joinKey{entity: b.EntityID, period: b.Period.YYYYMM}]; len(hits) > 0 {
				for _, j := range hits {
					matched[j] = true
					out = append(out, JoinedRow{Base: b, Actual: &actual[j]}.Diff())
				}
				continue
			}
		}
		out = append(out, JoinedRow{Base: b}.Diff())
	}
	for j := range actual {
		if !matched[j] {
			out = append(out, JoinedRow{Actual: &actual[j]}.Diff())
		}
	}
	return out
}
