// Package snapshots defines the ports of snapshot sources and the YAML
// fixture format used to seed them.
package snapshots

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"comparativo/internal/core"
)

type (
	// Fixture is a set of snapshots described in YAML. Values and periods are
	// kept as raw text so they go through the same coercion as database rows.
	Fixture struct {
		Snapshots []FixtureSnapshot `yaml:"snapshots"`
	}

	FixtureSnapshot struct {
		ID   string       `yaml:"id"`
		Rows []FixtureRow `yaml:"rows"`
	}

	// FixtureRow mirrors one source table row.
	FixtureRow struct {
		Entity string `yaml:"afiliacion"`
		Period string `yaml:"periodo_mora"`
		Type   string `yaml:"tipo_cartera"`
		Value  string `yaml:"vlr_cartera"`
	}
)

// SnapshotRow coerces the raw fixture columns.
func (r FixtureRow) SnapshotRow() core.SnapshotRow {
	return core.SnapshotRow{
		EntityID:      r.Entity,
		Period:        core.ParsePeriod(r.Period),
		PortfolioType: r.Type,
		Value:         core.ParseValue(r.Value),
	}
}

// ParseFixture decodes a YAML fixture document.
func ParseFixture(data []byte) (Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Fixture{}, fmt.Errorf("decode fixture: %w", err)
	}
	for i, s := range f.Snapshots {
		if s.ID == "" {
			return Fixture{}, fmt.Errorf("snapshot %d: %w", i, core.ErrEmptySnapshotID)
		}
	}
	return f, nil
}

// LoadFixtureFile reads and decodes one fixture file.
func LoadFixtureFile(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture %s: %w", path, err)
	}
	f, err := ParseFixture(data)
	if err != nil {
		return Fixture{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// LoadFixtureDir merges every *.yaml and *.yml file of dir, in name order.
// A missing directory yields an empty fixture.
func LoadFixtureDir(dir string) (Fixture, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		m, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return Fixture{}, err
		}
		paths = append(paths, m...)
	}
	sort.Strings(paths)

	var merged Fixture
	for _, p := range paths {
		f, err := LoadFixtureFile(p)
		if err != nil {
			return Fixture{}, err
		}
		merged.Snapshots = append(merged.Snapshots, f.Snapshots...)
	}
	return merged, nil
}

// Rows groups the fixture rows by snapshot identifier. Snapshots repeated
// across files are concatenated.
func (f Fixture) Rows() map[string][]core.SnapshotRow {
	out := make(map[string][]core.SnapshotRow, len(f.Snapshots))
	for _, s := range f.Snapshots {
		rows := out[s.ID]
		for _, r := range s.Rows {
			rows = append(rows, r.SnapshotRow())
		}
		out[s.ID] = rows
	}
	return out
}
