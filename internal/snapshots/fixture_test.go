package snapshots

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comparativo/internal/core"
)

func TestParseFixture(t *testing.T) {
	f, err := ParseFixture([]byte(`
snapshots:
  - id: "2024-01"
    rows:
      - afiliacion: "E1"
        periodo_mora: 201801.0
        tipo_cartera: Consumo
        vlr_cartera: 1500.25
      - afiliacion: "E2"
        tipo_cartera: Vivienda
        vlr_cartera: "1,5"
`))
	require.NoError(t, err)

	rows := f.Rows()["2024-01"]
	require.Len(t, rows, 2)
	assert.Equal(t, core.PeriodOf(201801), rows[0].Period)
	assert.Equal(t, "1500.25", rows[0].Value.Decimal.String())
	assert.False(t, rows[1].Period.Valid)
	assert.False(t, rows[1].Value.Valid, "a comma is not a decimal separator")
}

func TestParseFixture_MissingID(t *testing.T) {
	_, err := ParseFixture([]byte("snapshots:\n  - rows: []\n"))
	assert.True(t, errors.Is(err, core.ErrEmptySnapshotID))
}

func TestLoadFixtureDir_MergesFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("a.yaml", "snapshots:\n  - id: S1\n    rows:\n      - {afiliacion: E1, periodo_mora: 201801, vlr_cartera: 1}\n")
	write("b.yml", "snapshots:\n  - id: S1\n    rows:\n      - {afiliacion: E2, periodo_mora: 201801, vlr_cartera: 2}\n")
	write("notes.txt", "ignored")

	f, err := LoadFixtureDir(dir)
	require.NoError(t, err)
	assert.Len(t, f.Rows()["S1"], 2)
}

func TestLoadFixtureFile_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("snapshots: [\n"), 0o644))
	_, err := LoadFixtureFile(path)
	assert.Error(t, err)
}
