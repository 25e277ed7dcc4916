package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/rosterimport/internal/logging"
	"github.com/google/uuid"
)

// Executor commits confirmed rows to a Store in fixed-size batches.
//
// Batches are submitted sequentially in row order so ProcessedRows and
// CurrentRow only grow, and a failure in batch N means batches after N were
// never attempted. A failed batch stops the run; committed batches stay.
type Executor struct {
	store     Store
	batchSize int
}

// NewExecutor returns an executor; batchSize <= 0 uses DefaultBatchSize.
func NewExecutor(store Store, batchSize int) *Executor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Executor{store: store, batchSize: batchSize}
}

// ExecuteRequest is one execute run's input.
type ExecuteRequest struct {
	RecordType RecordType
	FileName   string
	Rows       []PreviewRow
	Options    ImportOptions

	// Cancelled is polled between batches, never during one.
	Cancelled func() bool
}

// Execute moves progress to importing and submits req.Rows. It ends in
// complete, error (returning *BackendError), or idle when cancelled. The
// returned result is non-nil whenever any batch was attempted.
func (e *Executor) Execute(ctx context.Context, req ExecuteRequest, progress *ProgressTracker) (*ImportResult, error) {
	start := time.Now()
	batchID := uuid.New().String()
	logger := logging.WithFields(ctx, "batch_id", batchID, "record_type", req.RecordType, "rows", len(req.Rows))

	if err := progress.Transition(StatusImporting, "Importing"); err != nil {
		return nil, err
	}
	progress.Update(func(p *ImportProgress) {
		p.TotalRows = len(req.Rows)
		p.ProcessedRows, p.CurrentRow = 0, 0
		p.SuccessCount, p.ErrorCount, p.WarningCount = 0, 0, 0
		p.Errors = nil
	})

	result := &ImportResult{BatchID: batchID, RecordType: req.RecordType}
	finish := func() *ImportResult {
		result.Progress = progress.Snapshot()
		result.Duration = time.Since(start)
		return result
	}

	if len(req.Rows) == 0 {
		_ = progress.Transition(StatusComplete, "No rows to import")
		logger.Info("import finished with nothing to commit")
		return finish(), nil
	}

	total := len(req.Rows)
	for offset, seq := 0, 1; offset < total; offset, seq = offset+e.batchSize, seq+1 {
		if req.Cancelled != nil && req.Cancelled() {
			processed := progress.Snapshot().ProcessedRows
			_ = progress.Transition(StatusIdle, fmt.Sprintf("Import cancelled after %d of %d rows", processed, total))
			logger.Warn("import cancelled", "processed", processed)
			return finish(), nil
		}

		end := min(offset+e.batchSize, total)
		batch := req.Rows[offset:end]

		breq := BatchRequest{
			BatchID:    batchID,
			Sequence:   seq,
			RecordType: req.RecordType,
			FileName:   req.FileName,
			Items:      make([]RawRecord, len(batch)),
			RowNumbers: make([]int, len(batch)),
			Options:    req.Options,
		}
		warnings := 0
		for i, row := range batch {
			breq.Items[i] = row.Data
			breq.RowNumbers[i] = row.RowNumber
			if row.Status() == RowWarning {
				warnings++
			}
		}

		logger.Debug("submitting batch", "batch", seq, "size", len(batch))

		resp, err := e.store.CommitBatch(ctx, breq)
		if err != nil {
			berr := &BackendError{Batch: seq, Err: err}
			_ = progress.Transition(StatusError, berr.Error())
			logger.Warn("batch submission failed", "batch", seq, "error", err)
			return finish(), berr
		}

		result.Batches++
		result.SkippedCount += resp.SkippedCount
		result.ImportedIDs = append(result.ImportedIDs, resp.ImportedIDs...)

		lastRow := batch[len(batch)-1].RowNumber
		progress.Update(func(p *ImportProgress) {
			p.ProcessedRows += len(batch)
			p.CurrentRow = lastRow
			p.SuccessCount += resp.SuccessCount
			p.ErrorCount += resp.ErrorCount
			p.WarningCount += warnings
			for _, be := range resp.Errors {
				p.Errors = append(p.Errors, ValidationIssue{
					RowNumber: be.Row,
					Column:    be.Column,
					Message:   be.Message,
					Severity:  SeverityError,
				})
			}
			p.Message = fmt.Sprintf("Imported batch %d (%d of %d rows)", seq, p.ProcessedRows, total)
		})
	}

	snap := progress.Snapshot()
	_ = progress.Transition(StatusComplete, fmt.Sprintf("Imported %d of %d rows", snap.SuccessCount, total))
	logger.Info("import complete",
		slog.Int("batches", result.Batches),
		slog.Int("success", snap.SuccessCount),
		slog.Int("errors", snap.ErrorCount),
	)
	return finish(), nil
}
