package snapshots

import (
	"context"

	"comparativo/internal/core"
)

// Ports for snapshot sources.
type (
	// Catalog lists the available snapshot identifiers, newest first.
	Catalog interface {
		ListSnapshots(ctx context.Context) ([]string, error)
	}

	// Comparer runs the full outer join of two snapshots and returns one
	// classified row per output pair.
	Comparer interface {
		Compare(ctx context.Context, base, actual string) ([]core.DiffRow, error)
	}

	// RowReader returns the rows of a single snapshot.
	RowReader interface {
		SnapshotRows(ctx context.Context, snapshot string) ([]core.SnapshotRow, error)
	}

	// Pinger reports whether the source is reachable.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	// RunRecorder keeps an audit trail of executed comparisons.
	RunRecorder interface {
		RecordRun(ctx context.Context, run core.Run) error
	}

	// RunLister returns recorded comparisons, newest first.
	RunLister interface {
		ListRuns(ctx context.Context, limit int) ([]core.Run, error)
	}

	// Source is everything the report needs from a snapshot backend.
	Source interface {
		Catalog
		Comparer
		Pinger
	}
)

// Wrapper is implemented by sources that decorate another one.
type Wrapper interface {
	Unwrap() Source
}

// RecorderOf returns the RunRecorder behind src, looking through wrappers.
func RecorderOf(src Source) (RunRecorder, bool) {
	for src != nil {
		if r, ok := src.(RunRecorder); ok {
			return r, true
		}
		w, ok := src.(Wrapper)
		if !ok {
			break
		}
		src = w.Unwrap()
	}
	return nil, false
}

// ListerOf returns the RunLister behind src, looking through wrappers.
func ListerOf(src Source) (RunLister, bool) {
	for src != nil {
		if l, ok := src.(RunLister); ok {
			return l, true
		}
		w, ok := src.(Wrapper)
		if !ok {
			break
		}
		src = w.Unwrap()
	}
	return nil, false
}
