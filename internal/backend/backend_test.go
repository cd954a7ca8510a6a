package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comparativo/internal/config"
	"comparativo/internal/snapshots"
)

func TestFromAppConfig(t *testing.T) {
	bc, err := FromAppConfig(&config.Config{
		DataBackend:    "sqlserver",
		DatabaseServer: "db",
		DatabaseName:   "cartera",
		SourceTable:    "dbo.Historico_Asignaciones",
		DatabasePort:   1433,
	})
	require.NoError(t, err)
	assert.Equal(t, SQLServer, bc.Type)
	assert.Equal(t, "dbo.Historico_Asignaciones", bc.Table)
	assert.Equal(t, 1433, bc.Port)
	assert.Equal(t, "data", bc.DataDirectory)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.ErrorContains(t, err, `unknown backend "sheets"`)

	_, err = FromAppConfig(nil)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: Memory, DataDirectory: "data"}, false},
		{"memory without dir", Config{Type: Memory}, true},
		{"sqlite without path", Config{Type: SQLite}, true},
		{"postgres without server", Config{Type: Postgres, Database: "d", Table: "t"}, true},
		{"postgres without table", Config{Type: Postgres, Server: "s", Database: "d"}, true},
		{"postgres complete", Config{Type: Postgres, Server: "s", Database: "d", Table: "t"}, false},
		{"unknown", Config{Type: "sheets"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			assert.Equal(t, tt.wantErr, err != nil, "Validate() = %v", err)
		})
	}
}

func TestOpenMemory(t *testing.T) {
	dir := t.TempDir()
	fixture := "snapshots:\n  - id: \"2024-06\"\n    rows:\n      - {afiliacion: \"1\", periodo_mora: 201801, tipo_cartera: \"Consumo\", vlr_cartera: \"100\"}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(fixture), 0o644))

	src, err := Open(context.Background(), Config{Type: Memory, DataDirectory: dir}, nil)
	require.NoError(t, err)
	defer src.Close()

	require.NoError(t, src.Ping(context.Background()))
	ids, err := src.ListSnapshots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-06"}, ids)
}

func TestOpenSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.db")
	src, err := Open(context.Background(), Config{Type: SQLite, SQLiteDBPath: path}, nil)
	require.NoError(t, err)
	defer func() { assert.NoError(t, src.Close()) }()

	ids, err := src.ListSnapshots(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRunHistoryThroughSource(t *testing.T) {
	sqlite, err := Open(context.Background(), Config{Type: SQLite, SQLiteDBPath: filepath.Join(t.TempDir(), "h.db")}, nil)
	require.NoError(t, err)
	defer sqlite.Close()

	_, ok := snapshots.RecorderOf(sqlite)
	assert.True(t, ok, "sqlite records runs")
	_, ok = snapshots.ListerOf(sqlite)
	assert.True(t, ok, "sqlite lists runs")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("snapshots: []\n"), 0o644))
	mem, err := Open(context.Background(), Config{Type: Memory, DataDirectory: dir}, nil)
	require.NoError(t, err)

	_, ok = snapshots.RecorderOf(mem)
	assert.False(t, ok)
	_, ok = snapshots.ListerOf(mem)
	assert.False(t, ok)

	var none *Source
	assert.Nil(t, none.Unwrap())
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	_, err := Open(context.Background(), Config{Type: Postgres}, nil)
	assert.Error(t, err)
}

func TestNilSourceClose(t *testing.T) {
	var s *Source
	assert.NoError(t, s.Close())
}

func TestTypes(t *testing.T) {
	assert.Equal(t, []Type{"memory", "sqlite", "postgres", "sqlserver"}, Types())
}
