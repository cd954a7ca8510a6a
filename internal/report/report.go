// Package report turns a session view into what the page, the JSON API and
// the exports show: headline cards, the per-status table, chart specs and the
// filter toggles.
package report

import (
	"fmt"

	"github.com/shopspring/decimal"

	"comparativo/internal/core"
	"comparativo/internal/session"
)

// DefaultRowLimit caps the diff rows rendered in the HTML table.
const DefaultRowLimit = 500

// Banner messages shown after a run.
const (
	MsgRunSucceeded = "✅ Comparativo completo generado. Usa los filtros de abajo para analizar."
	msgRunFailed    = "❌ Error al generar el comparativo: %v"
)

type (
	Card struct {
		Label string          `json:"label"`
		Value string          `json:"value"`
		Raw   decimal.Decimal `json:"raw"`
	}

	SummaryLine struct {
		Status   core.Status `json:"estado"`
		Before   string      `json:"valor_anterior_total"`
		After    string      `json:"valor_actual_total"`
		Delta    string      `json:"diferencia_total"`
		Entities int         `json:"cantidad_afiliaciones"`
		Color    string      `json:"color"`
	}

	Toggle struct {
		Value  string `json:"value"`
		Label  string `json:"label"`
		Active bool   `json:"active"`
	}

	Banner struct {
		Kind string `json:"kind"`
		Text string `json:"text"`
	}

	Report struct {
		Run          *core.Run         `json:"run,omitempty"`
		Cards        []Card            `json:"cards"`
		Summary      []SummaryLine     `json:"summary"`
		SummaryRaw   []core.SummaryRow `json:"summary_raw"`
		Charts       Charts            `json:"charts"`
		TypeToggles  []Toggle          `json:"type_toggles"`
		RangeToggles []Toggle          `json:"range_toggles"`
		Rows         []core.DiffRow    `json:"rows"`
		RowCount     int               `json:"row_count"`
		RawCount     int               `json:"raw_count"`
		Truncated    bool              `json:"truncated"`
	}

	// Options tune Build.
	Options struct {
		// RowLimit caps Rows; zero uses DefaultRowLimit, negative keeps all.
		RowLimit int
	}
)

// SuccessBanner is shown after a completed run.
func SuccessBanner() Banner {
	return Banner{Kind: "success", Text: MsgRunSucceeded}
}

// ErrorBanner is shown when a run fails.
func ErrorBanner(err error) Banner {
	return Banner{Kind: "error", Text: fmt.Sprintf(msgRunFailed, err)}
}

// HasRun reports whether the report belongs to an executed comparison.
func (r Report) HasRun() bool {
	return r.Run != nil
}

// Build formats v for display.
func Build(v session.View, opts Options) Report {
	limit := opts.RowLimit
	if limit == 0 {
		limit = DefaultRowLimit
	}

	rows := v.Rows
	truncated := false
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
		truncated = true
	}

	return Report{
		Run:          v.Run,
		Cards:        Cards(v.Totals),
		Summary:      SummaryLines(v.Summary),
		SummaryRaw:   v.Summary,
		Charts:       BuildCharts(v.Summary),
		TypeToggles:  TypeToggles(v.Filters.Types),
		RangeToggles: RangeToggles(v.Filters.Ranges),
		Rows:         rows,
		RowCount:     len(v.Rows),
		RawCount:     v.RawCount,
		Truncated:    truncated,
	}
}

// Cards are the three headline totals in billions.
func Cards(t core.Totals) []Card {
	return []Card{
		{Label: "Valor Total Anterior", Value: Money(t.Before, core.Billions), Raw: t.Before},
		{Label: "Valor Total Actual", Value: Money(t.After, core.Billions), Raw: t.After},
		{Label: "Diferencia Total", Value: Money(t.Delta, core.Billions), Raw: t.Delta},
	}
}

// SummaryLines formats the per-status table in millions.
func SummaryLines(summary []core.SummaryRow) []SummaryLine {
	out := make([]SummaryLine, len(summary))
	for i, s := range summary {
		out[i] = SummaryLine{
			Status:   s.Status,
			Before:   Money(s.Before, core.Millions),
			After:    Money(s.After, core.Millions),
			Delta:    Money(s.Delta, core.Millions),
			Entities: s.Entities,
			Color:    StatusColor(s.Status),
		}
	}
	return out
}

// TypeToggles renders the type mosaic: one button per type with a check
// mark prefix when active.
func TypeToggles(sel core.Selection) []Toggle {
	universe := sel.Universe()
	out := make([]Toggle, len(universe))
	for i, t := range universe {
		active := sel.Contains(t)
		mark := "⬜"
		if active {
			mark = "✅"
		}
		out[i] = Toggle{Value: t, Label: mark + " " + t, Active: active}
	}
	return out
}

// RangeToggles renders the period range switches.
func RangeToggles(sel core.Selection) []Toggle {
	universe := sel.Universe()
	out := make([]Toggle, len(universe))
	for i, r := range universe {
		out[i] = Toggle{Value: r, Label: r, Active: sel.Contains(r)}
	}
	return out
}
