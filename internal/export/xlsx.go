package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"comparativo/internal/core"
	"comparativo/internal/report"
	"comparativo/internal/session"
)

const (
	sheetSummary = "Resumen"
	sheetDetail  = "Detalle"
)

var detailHeader = []any{"afiliacion", "periodo_mora", "rango_periodo", "tipo_cartera", "valor_anterior", "valor_actual", "diferencia", "estado"}

// WriteXLSX writes a workbook with the headline totals and per-status summary
// on one sheet and every filtered diff row on another. Amounts are written as
// numbers in pesos.
func WriteXLSX(w io.Writer, v session.View) error {
	if v.Run == nil {
		return ErrNothingToExport
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetDetail); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	_ = f.SetCellValue(sheetSummary, "A1", "Comparativo de Asignaciones")
	_ = f.SetCellValue(sheetSummary, "A2", "Asignación base")
	_ = f.SetCellValue(sheetSummary, "B2", v.Run.Base)
	_ = f.SetCellValue(sheetSummary, "A3", "Asignación actual")
	_ = f.SetCellValue(sheetSummary, "B3", v.Run.Actual)
	_ = f.SetCellValue(sheetSummary, "A4", "Ejecutado")
	_ = f.SetCellValue(sheetSummary, "B4", v.Run.ExecutedAt.Format("2006-01-02 15:04:05"))

	row := 6
	for _, c := range report.Cards(v.Totals) {
		_ = f.SetCellValue(sheetSummary, cell("A", row), c.Label)
		_ = f.SetCellValue(sheetSummary, cell("B", row), c.Raw.InexactFloat64())
		_ = f.SetCellValue(sheetSummary, cell("C", row), c.Value)
		row++
	}

	row++
	header := []any{"estado", "valor_anterior_total", "valor_actual_total", "diferencia_total", "cantidad_afiliaciones"}
	if err := f.SetSheetRow(sheetSummary, cell("A", row), &header); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	for _, s := range v.Summary {
		row++
		line := []any{string(s.Status), s.Before.InexactFloat64(), s.After.InexactFloat64(), s.Delta.InexactFloat64(), s.Entities}
		if err := f.SetSheetRow(sheetSummary, cell("A", row), &line); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}

	if err := f.SetSheetRow(sheetDetail, "A1", &detailHeader); err != nil {
		return fmt.Errorf("write detail header: %w", err)
	}
	for i, r := range v.Rows {
		line := detailLine(r)
		if err := f.SetSheetRow(sheetDetail, cell("A", i+2), &line); err != nil {
			return fmt.Errorf("write detail row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func detailLine(r core.DiffRow) []any {
	var period any
	if r.Period.Valid {
		period = r.Period.YYYYMM
	}
	return []any{
		r.EntityID,
		period,
		string(r.Range()),
		r.PortfolioType,
		r.Before.InexactFloat64(),
		r.After.InexactFloat64(),
		r.Delta.InexactFloat64(),
		string(r.Status),
	}
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
