package google

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"comparativo/internal/core"
)

const lastColumn = "J"

var historyHeader = []any{"ejecutado", "run_id", "asignacion_base", "asignacion_actual", "estado", "valor_anterior", "valor_actual", "diferencia", "afiliaciones", "filas"}

// historyRows lays out run as sheet rows, one per status. A run without
// rows still leaves one line so every execution is visible.
func historyRows(run core.Run) [][]any {
	executed := run.ExecutedAt.UTC().Format(time.RFC3339)
	if len(run.Summary) == 0 {
		return [][]any{{executed, run.ID, run.Base, run.Actual, "", "0", "0", "0", 0, run.Rows}}
	}
	out := make([][]any, 0, len(run.Summary))
	for _, s := range run.Summary {
		out = append(out, []any{
			executed,
			run.ID,
			run.Base,
			run.Actual,
			string(s.Status),
			s.Before.String(),
			s.After.String(),
			s.Delta.String(),
			s.Entities,
			run.Rows,
		})
	}
	return out
}

func headerMatches(row []any) bool {
	got := toStrings(row)
	if len(got) < len(historyHeader) {
		return false
	}
	for i, h := range historyHeader {
		if !strings.EqualFold(got[i], fmt.Sprint(h)) {
			return false
		}
	}
	return true
}

// parseHistory groups sheet lines back into runs by run_id. The header and
// malformed lines are skipped.
func parseHistory(values [][]any) []core.Run {
	byID := map[string]*core.Run{}
	var order []string
	for _, raw := range values {
		cols := toStrings(raw)
		if len(cols) < len(historyHeader) {
			continue
		}
		executed, err := time.Parse(time.RFC3339, cols[0])
		if err != nil {
			continue
		}
		id := cols[1]
		run, ok := byID[id]
		if !ok {
			rows, _ := strconv.Atoi(cols[9])
			run = &core.Run{ID: id, Base: cols[2], Actual: cols[3], ExecutedAt: executed, Rows: rows}
			byID[id] = run
			order = append(order, id)
		}
		if cols[4] == "" {
			continue
		}
		entities, _ := strconv.Atoi(cols[8])
		run.Summary = append(run.Summary, core.SummaryRow{
			Status:   core.Status(cols[4]),
			Before:   parseAmount(cols[5]),
			After:    parseAmount(cols[6]),
			Delta:    parseAmount(cols[7]),
			Entities: entities,
		})
	}

	out := make([]core.Run, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExecutedAt.After(out[j].ExecutedAt) })
	return out
}

func parseAmount(s string) decimal.Decimal {
	v := core.ParseValue(s)
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
