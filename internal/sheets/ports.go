// Package sheets defines the spreadsheet ports used by the history worker.
package sheets

import (
	"context"

	"comparativo/internal/core"
)

// Ports for outbound adapters.
type (
	// HistoryWriter appends one executed comparison to the history sheet,
	// one line per status, and returns the written range.
	HistoryWriter interface {
		AppendRun(ctx context.Context, run core.Run) (rowRef string, err error)
	}

	// HistoryReader reads recorded comparisons back, newest first.
	HistoryReader interface {
		ListRuns(ctx context.Context, limit int) ([]core.Run, error)
	}
)
