package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"comparativo/internal/report"
	"comparativo/internal/session"
)

// pdfSafe replaces glyphs outside the cp1252 core fonts.
var pdfSafe = strings.NewReplacer("≤", "<=", "✅", "", "⬜", "")

// WritePDF writes a one-page summary: run header, headline totals, the
// per-status table and the active filters.
func WritePDF(w io.Writer, v session.View) error {
	if v.Run == nil {
		return ErrNothingToExport
	}
	r := report.Build(v, report.Options{RowLimit: -1})

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string { return tr(pdfSafe.Replace(s)) }

	pdf.SetFont("Arial", "B", 14)
	pdf.AddPage()
	pdf.Cell(0, 8, text("Comparativo de Asignaciones"))
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, text(fmt.Sprintf("Asignación base: %s", v.Run.Base)))
	pdf.Ln(5)
	pdf.Cell(0, 6, text(fmt.Sprintf("Asignación actual: %s", v.Run.Actual)))
	pdf.Ln(5)
	pdf.Cell(0, 6, text(fmt.Sprintf("Ejecutado: %s", v.Run.ExecutedAt.Format("2006-01-02 15:04:05"))))
	pdf.Ln(5)
	pdf.Cell(0, 6, text(fmt.Sprintf("Filas filtradas: %s de %s", report.Count(r.RowCount), report.Count(r.RawCount))))
	pdf.Ln(8)

	for _, c := range r.Cards {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(60, 6, text(c.Label), "1", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(50, 6, text(c.Value), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(6)

	widths := []float64{35, 40, 40, 40, 30}
	pdf.SetFont("Arial", "B", 9)
	for i, h := range []string{"Estado", "Anterior", "Actual", "Diferencia", "Afiliaciones"} {
		pdf.CellFormat(widths[i], 6, text(h), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, s := range r.Summary {
		pdf.CellFormat(widths[0], 6, text(string(s.Status)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, text(s.Before), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 6, text(s.After), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 6, text(s.Delta), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 6, report.Count(s.Entities), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 9)
	pdf.MultiCell(0, 5, text("Tipos de cartera: "+joinActive(r.TypeToggles)), "", "L", false)
	pdf.MultiCell(0, 5, text("Rangos de periodo: "+joinActive(r.RangeToggles)), "", "L", false)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func joinActive(toggles []report.Toggle) string {
	var active []string
	for _, t := range toggles {
		if t.Active {
			active = append(active, t.Value)
		}
	}
	if len(active) == 0 {
		return "(ninguno)"
	}
	return strings.Join(active, ", ")
}
