package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

type (
	// SummaryRow aggregates the diff rows sharing one status.
	SummaryRow struct {
		Status   Status          `json:"status"`
		Before   decimal.Decimal `json:"value_before"`
		After    decimal.Decimal `json:"value_after"`
		Delta    decimal.Decimal `json:"delta"`
		Entities int             `json:"entities"`
	}

	// Totals are the headline sums of a set of diff rows.
	Totals struct {
		Before   decimal.Decimal `json:"value_before"`
		After    decimal.Decimal `json:"value_after"`
		Delta    decimal.Decimal `json:"delta"`
		Rows     int             `json:"rows"`
		Entities int             `json:"entities"`
	}

	// Scale converts raw amounts into a display unit.
	Scale struct {
		Name    string
		Divisor decimal.Decimal
		Suffix  string
	}
)

var (
	Billions = Scale{Name: "billions", Divisor: decimal.New(1, 9), Suffix: "Mil M"}
	Millions = Scale{Name: "millions", Divisor: decimal.New(1, 6), Suffix: "Mill"}
)

func (s Scale) Apply(d decimal.Decimal) decimal.Decimal {
	return d.Div(s.Divisor)
}

// Aggregate groups rows by status, summing values and counting distinct
// entities per group. Groups follow StatusOrder; unknown statuses come last
// in label order. Statuses with no rows are omitted.
func Aggregate(rows []DiffRow) []SummaryRow {
	groups := make(map[Status]*SummaryRow)
	entities := make(map[Status]map[string]struct{})
	for _, r := range rows {
		g, ok := groups[r.Status]
		if !ok {
			g = &SummaryRow{Status: r.Status}
			groups[r.Status] = g
			entities[r.Status] = make(map[string]struct{})
		}
		g.Before = g.Before.Add(r.Before)
		g.After = g.After.Add(r.After)
		g.Delta = g.Delta.Add(r.Delta)
		entities[r.Status][r.EntityID] = struct{}{}
	}

	out := make([]SummaryRow, 0, len(groups))
	for st, g := range groups {
		g.Entities = len(entities[st])
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].Status.Rank(), out[j].Status.Rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].Status < out[j].Status
	})
	return out
}

// Summarize computes the headline totals of rows.
func Summarize(rows []DiffRow) Totals {
	var t Totals
	seen := make(map[string]struct{})
	for _, r := range rows {
		t.Before = t.Before.Add(r.Before)
		t.After = t.After.Add(r.After)
		t.Delta = t.Delta.Add(r.Delta)
		seen[r.EntityID] = struct{}{}
	}
	t.Rows = len(rows)
	t.Entities = len(seen)
	return t
}

// StatusCounts returns the number of rows per status.
func StatusCounts(rows []DiffRow) map[Status]int {
	out := make(map[Status]int, len(StatusOrder))
	for _, r := range rows {
		out[r.Status]++
	}
	return out
}
