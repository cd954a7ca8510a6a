package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"comparativo/internal/amqp"
	"comparativo/internal/core"
	"comparativo/internal/sheets"
	"comparativo/internal/snapshots"
)

// HistoryWorker copies executed comparisons to the history sheet.
type HistoryWorker struct {
	writer    sheets.HistoryWriter
	reader    sheets.HistoryReader
	batchSize int
}

func NewHistoryWorker(writer sheets.HistoryWriter, reader sheets.HistoryReader, batchSize int) *HistoryWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &HistoryWorker{
		writer:    writer,
		reader:    reader,
		batchSize: batchSize,
	}
}

// HandleComparisonExecuted appends the run carried by msg.
func (w *HistoryWorker) HandleComparisonExecuted(ctx context.Context, msg *amqp.ComparisonExecutedMessage) error {
	if msg == nil {
		return errors.New("nil message")
	}

	slog.InfoContext(ctx, "Processing comparison message",
		"run_id", msg.RunID,
		"base", msg.Base,
		"actual", msg.Actual,
		"rows", msg.Rows)

	ref, err := w.writer.AppendRun(ctx, msg.Run())
	if err != nil {
		return fmt.Errorf("append run %s to history: %w", msg.RunID, err)
	}

	slog.InfoContext(ctx, "Comparison appended to history",
		"run_id", msg.RunID,
		"sheets_ref", ref,
		"statuses", len(msg.Summary))
	return nil
}

// StartupBackfill appends recorded runs that the history sheet does not have
// yet. It recovers from messages lost while the worker was down.
func (w *HistoryWorker) StartupBackfill(ctx context.Context, recorded snapshots.RunLister) error {
	if recorded == nil || w.reader == nil {
		return nil
	}

	runs, err := recorded.ListRuns(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list recorded runs: %w", err)
	}
	if len(runs) == 0 {
		slog.InfoContext(ctx, "No recorded runs found on startup")
		return nil
	}

	written, err := w.reader.ListRuns(ctx, 0)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	seen := make(map[string]struct{}, len(written))
	for _, r := range written {
		seen[r.ID] = struct{}{}
	}

	var missing []core.Run
	for _, r := range runs {
		if _, ok := seen[r.ID]; !ok {
			missing = append(missing, r)
		}
	}
	if len(missing) == 0 {
		slog.InfoContext(ctx, "History sheet up to date", "recorded", len(runs))
		return nil
	}

	successCount, errorCount := 0, 0
	// oldest first so the sheet stays chronological
	for i := len(missing) - 1; i >= 0; i-- {
		r := missing[i]
		if _, err := w.writer.AppendRun(ctx, r); err != nil {
			slog.ErrorContext(ctx, "Failed to backfill run", "run_id", r.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup backfill completed",
		"missing", len(missing),
		"appended", successCount,
		"errors", errorCount)

	if errorCount > 0 {
		return fmt.Errorf("backfill: %d of %d runs failed", errorCount, len(missing))
	}
	return nil
}
