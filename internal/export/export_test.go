package export

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"comparativo/internal/core"
	"comparativo/internal/session"
)

func sampleView(t *testing.T) session.View {
	t.Helper()
	rows := []core.DiffRow{
		{EntityID: "E1", Period: core.PeriodOf(201801), PortfolioType: "Consumo", Before: decimal.NewFromInt(100), After: decimal.NewFromInt(150), Delta: decimal.NewFromInt(50), Status: core.StatusIncreased},
		{EntityID: "E2", Period: core.PeriodOf(202503), PortfolioType: "Tarjeta de Crédito", After: decimal.NewFromInt(2500000000), Delta: decimal.NewFromInt(2500000000), Status: core.StatusNew},
		{EntityID: "E3", PortfolioType: "Consumo", Before: decimal.NewFromInt(7), Delta: decimal.NewFromInt(-7), Status: core.StatusRemoved},
	}
	run := core.Run{ID: "r1", Base: "2024-06", Actual: "2024/12", Rows: len(rows), ExecutedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
	return session.New("s").WithRun(run, rows).View()
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "comparativo.pdf", Filename(nil, FormatPDF))
	assert.Equal(t, "comparativo_2024-06_vs_2024-12.xlsx", Filename(&core.Run{Base: "2024-06", Actual: "2024/12"}, FormatXLSX))
	assert.Equal(t, "comparativo_a-b_vs_c.xlsx", Filename(&core.Run{Base: "a b", Actual: "../c"}, FormatXLSX))
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleView(t)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetSummary, sheetDetail}, f.GetSheetList())

	base, err := f.GetCellValue(sheetSummary, "B2")
	require.NoError(t, err)
	assert.Equal(t, "2024-06", base)

	label, _ := f.GetCellValue(sheetSummary, "A6")
	assert.Equal(t, "Valor Total Anterior", label)
	headline, _ := f.GetCellValue(sheetSummary, "C7")
	assert.Equal(t, "$3 Mil M", headline)

	rows, err := f.GetRows(sheetDetail)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "afiliacion", rows[0][0])
	assert.Equal(t, []string{"E1", "201801", "≤ 2018", "Consumo", "100", "150", "50", "AUMENTÓ"}, rows[1])
	assert.Equal(t, "Sin dato", rows[3][2])
	assert.Equal(t, "", rows[3][1])
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, sampleView(t)))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 500)
}

func TestExportWithoutRun(t *testing.T) {
	v := session.New("s").View()
	assert.True(t, errors.Is(WriteXLSX(&bytes.Buffer{}, v), ErrNothingToExport))
	assert.True(t, errors.Is(WritePDF(&bytes.Buffer{}, v), ErrNothingToExport))
}
