// Package memory is an in-process history sheet for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"comparativo/internal/core"
)

type Store struct {
	mu   sync.Mutex
	runs []core.Run
	seen map[string]struct{}
}

func New() *Store {
	return &Store{seen: make(map[string]struct{})}
}

// AppendRun stores the run once; redelivered runs are ignored.
func (s *Store) AppendRun(_ context.Context, run core.Run) (string, error) {
	if run.ID == "" {
		return "", fmt.Errorf("run without id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[run.ID]; !dup {
		s.seen[run.ID] = struct{}{}
		s.runs = append(s.runs, run)
	}
	return fmt.Sprintf("mem:%s", run.ID), nil
}

// ListRuns returns stored runs, newest first.
func (s *Store) ListRuns(_ context.Context, limit int) ([]core.Run, error) {
	s.mu.Lock()
	out := append([]core.Run(nil), s.runs...)
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].ExecutedAt.After(out[j].ExecutedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
