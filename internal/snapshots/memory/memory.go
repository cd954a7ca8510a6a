package memory

import (
	"context"
	"sort"
	"sync"

	"comparativo/internal/core"
	"comparativo/internal/snapshots"
)

// Store is an in-memory snapshot source. The diff runs in Go with the same
// join and classification rules as the SQL backends.
type Store struct {
	mu   sync.RWMutex
	rows map[string][]core.SnapshotRow
}

func New(rows map[string][]core.SnapshotRow) *Store {
	s := &Store{rows: make(map[string][]core.SnapshotRow, len(rows))}
	for id, r := range rows {
		s.rows[id] = append([]core.SnapshotRow(nil), r...)
	}
	return s
}

// NewFromFiles loads every YAML fixture in dir.
func NewFromFiles(dir string) (*Store, error) {
	f, err := snapshots.LoadFixtureDir(dir)
	if err != nil {
		return nil, err
	}
	return New(f.Rows()), nil
}

// Put replaces the rows of one snapshot.
func (s *Store) Put(id string, rows []core.SnapshotRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[id] = append([]core.SnapshotRow(nil), rows...)
}

// ListSnapshots implements snapshots.Catalog
func (s *Store) ListSnapshots(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.rows))
	for id := range s.rows {
		out = append(out, id)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

// Compare implements snapshots.Comparer
func (s *Store) Compare(ctx context.Context, base, actual string) ([]core.DiffRow, error) {
	if err := (core.ComparisonRequest{Base: base, Actual: actual}).Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.Diff(s.rows[base], s.rows[actual]), nil
}

// SnapshotRows implements snapshots.RowReader
func (s *Store) SnapshotRows(_ context.Context, snapshot string) ([]core.SnapshotRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.SnapshotRow(nil), s.rows[snapshot]...), nil
}

// Ping implements snapshots.Pinger
func (s *Store) Ping(_ context.Context) error { return nil }
