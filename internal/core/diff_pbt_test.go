package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

func genSnapshotRow() gopter.Gen {
	return gopter.CombineGens(
		gen.OneConstOf("E1", "E2", "E3", "E4", "E5"),
		gen.IntRange(201701, 202612),
		gen.IntRange(0, 9),
		gen.OneConstOf("Consumo", "Vivienda", "Tarjeta", ""),
		gen.Int64Range(-5000, 500000),
		gen.IntRange(0, 9),
	).Map(func(v []interface{}) SnapshotRow {
		r := SnapshotRow{
			EntityID:      v[0].(string),
			PortfolioType: v[3].(string),
		}
		if v[2].(int) > 0 {
			r.Period = PeriodOf(v[1].(int))
		}
		if v[5].(int) > 0 {
			r.Value = decimal.NewNullDecimal(decimal.New(v[4].(int64), -2))
		}
		return r
	})
}

func genSnapshot() gopter.Gen {
	return gen.SliceOf(genSnapshotRow())
}

func genNullDecimal() gopter.Gen {
	return gopter.CombineGens(gen.Int64Range(-100, 100), gen.Bool()).Map(func(v []interface{}) decimal.NullDecimal {
		if !v[1].(bool) {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(decimal.NewFromInt(v[0].(int64)))
	})
}

func TestDiffProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every status is one of the five known labels", prop.ForAll(
		func(a, b []SnapshotRow) bool {
			for _, r := range Diff(a, b) {
				if !r.Status.Valid() {
					return false
				}
			}
			return true
		},
		genSnapshot(), genSnapshot(),
	))

	properties.Property("status is a deterministic function of the values", prop.ForAll(
		func(before, after decimal.NullDecimal) bool {
			got := Classify(before, after)
			switch {
			case !before.Valid:
				return got == StatusNew
			case !after.Valid:
				return got == StatusRemoved
			case before.Decimal.LessThan(after.Decimal):
				return got == StatusIncreased
			case before.Decimal.GreaterThan(after.Decimal):
				return got == StatusDecreased
			}
			return got == StatusUnchanged
		},
		genNullDecimal(), genNullDecimal(),
	))

	properties.Property("running the same comparison twice yields the same rows", prop.ForAll(
		func(a, b []SnapshotRow) bool {
			less := func(x, y DiffRow) bool {
				if x.EntityID != y.EntityID {
					return x.EntityID < y.EntityID
				}
				if x.Period.YYYYMM != y.Period.YYYYMM {
					return x.Period.YYYYMM < y.Period.YYYYMM
				}
				return x.Delta.LessThan(y.Delta)
			}
			return cmp.Equal(Diff(a, b), Diff(a, b), decimalEqual, cmpopts.SortSlices(less))
		},
		genSnapshot(), genSnapshot(),
	))

	properties.Property("sum(after) - sum(before) equals sum(delta) for any filter", prop.ForAll(
		func(a, b []SnapshotRow, dropType string, dropRange int) bool {
			rows := Diff(a, b)
			f := DefaultFilterState(rows)
			f, _ = f.ToggleType(dropType)
			f, _ = f.ToggleRange(string(PeriodRanges[dropRange]))
			for _, subset := range [][]DiffRow{rows, f.Apply(rows)} {
				tot := Summarize(subset)
				if !tot.After.Sub(tot.Before).Equal(tot.Delta) {
					return false
				}
				sum := decimal.Zero
				for _, g := range Aggregate(subset) {
					sum = sum.Add(g.Delta)
				}
				if !sum.Equal(tot.Delta) {
					return false
				}
			}
			return true
		},
		genSnapshot(), genSnapshot(),
		gen.OneConstOf("Consumo", "Vivienda", "Tarjeta"),
		gen.IntRange(0, len(PeriodRanges)-1),
	))

	properties.Property("equal values present on both sides are unchanged", prop.ForAll(
		func(a []SnapshotRow) bool {
			for _, r := range Diff(a, a) {
				// Absent periods never join; absent values are StatusNew.
				if !r.Period.Valid || r.Status == StatusUnchanged || r.Status == StatusNew {
					continue
				}
				// Duplicate keys cross-match rows with different values.
				if !hasDuplicateKey(a, r) {
					return false
				}
			}
			return true
		},
		genSnapshot(),
	))

	properties.Property("toggling a member twice restores the selection", prop.ForAll(
		func(members []string, pick int) bool {
			s := NewSelection(members)
			if len(s.Universe()) == 0 {
				return true
			}
			m := s.Universe()[pick%len(s.Universe())]
			once, _ := s.Toggle(m)
			twice, _ := once.Toggle(m)
			return !once.Equal(s) && twice.Equal(s)
		},
		gen.SliceOf(gen.OneConstOf("A", "B", "C", "D")),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}

func hasDuplicateKey(rows []SnapshotRow, r DiffRow) bool {
	n := 0
	for _, s := range rows {
		if s.EntityID == r.EntityID && s.Period.Valid && s.Period == r.Period {
			n++
		}
	}
	return n > 1
}
