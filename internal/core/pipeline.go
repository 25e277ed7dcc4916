package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/JonMunkholm/rosterimport/internal/logging"
)

// PipelineConfig wires a Pipeline to its collaborators.
type PipelineConfig struct {
	Store       Store
	Spreadsheet []SpreadsheetStrategy
	BatchSize   int
	Defaults    ImportOptions
}

// Pipeline stages one file at a time for review and commits it on confirmation.
//
// One run is active at most: Preview and Execute return ErrRunActive while
// another Preview or Execute is in flight. Progress is mutated only by the
// stage that owns the run and is observable through Progress and Subscribe.
type Pipeline struct {
	parser   *Parser
	executor *Executor
	rollback *RollbackCoordinator
	store    Store
	defaults ImportOptions
	progress *ProgressTracker

	mu            sync.Mutex
	running       bool
	preview       *PreviewResult
	options       ImportOptions
	fileName      string
	cancelPreview context.CancelFunc
	cancelled     atomic.Bool
}

// NewPipeline returns an idle pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	defaults := cfg.Defaults
	if defaults == (ImportOptions{}) {
		defaults = DefaultImportOptions()
	}
	return &Pipeline{
		parser:   NewParser(cfg.Spreadsheet...),
		executor: NewExecutor(cfg.Store, cfg.BatchSize),
		rollback: NewRollbackCoordinator(cfg.Store),
		store:    cfg.Store,
		defaults: defaults.withDefaults(),
		progress: NewProgressTracker(),
	}
}

// Defaults returns the options applied when a caller sends none.
func (p *Pipeline) Defaults() ImportOptions {
	return p.defaults
}

// Preview parses, normalizes, and validates file, then waits in the
// validating state for Execute. A previous staged preview is discarded.
// Parse failures move progress to error and return a *ParseError.
func (p *Pipeline) Preview(ctx context.Context, file FileInput, opts ImportOptions) (*PreviewResult, error) {
	opts = opts.withDefaults()

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, ErrRunActive
	}
	if err := p.progress.Clear(); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.running = true
	p.preview = nil
	p.cancelPreview = cancel
	p.mu.Unlock()

	defer func() {
		cancel()
		p.mu.Lock()
		p.running = false
		p.cancelPreview = nil
		p.mu.Unlock()
	}()

	logger := logging.WithFields(ctx, "file", file.Name)

	if err := p.progress.Transition(StatusParsing, "Parsing "+file.Name); err != nil {
		return nil, err
	}

	parsed, err := p.parser.Parse(runCtx, file)
	if err != nil {
		if runCtx.Err() != nil && ctx.Err() == nil {
			_ = p.progress.Transition(StatusIdle, "Preview cancelled")
			return nil, fmt.Errorf("preview cancelled: %w", context.Canceled)
		}
		_ = p.progress.Transition(StatusError, err.Error())
		logger.Warn("parse failed", "error", err)
		return nil, err
	}

	normalizeParsed(parsed)
	rt := InferRecordType(parsed.Columns, opts.DataType)

	if err := p.progress.Transition(StatusValidating, "Validating"); err != nil {
		return nil, err
	}

	result, err := BuildPreview(parsed, rt, opts)
	if err != nil {
		_ = p.progress.Transition(StatusIdle, err.Error())
		return nil, err
	}

	p.progress.Update(func(pr *ImportProgress) {
		pr.TotalRows = result.TotalRows
		pr.WarningCount = result.WarningRows
		pr.Message = fmt.Sprintf("%d rows ready for review", result.TotalRows)
	})

	p.mu.Lock()
	p.preview = result
	p.options = opts
	p.fileName = file.Name
	p.mu.Unlock()

	logger.Info("preview built",
		"format", result.DetectedFormat,
		"record_type", result.RecordType,
		"rows", result.TotalRows,
		"errors", result.ErrorRows,
		"warnings", result.WarningRows,
	)
	return result.Clone(), nil
}

// Staged returns a copy of the current staged preview, or nil.
func (p *Pipeline) Staged() *PreviewResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.preview.Clone()
}

// SetRowEnabled excludes a row from (or restores it to) the commit set.
func (p *Pipeline) SetRowEnabled(rowNumber int, enabled bool) (*PreviewResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil, ErrRunActive
	}
	if p.preview == nil || p.progress.Snapshot().Status != StatusValidating {
		return nil, ErrNoPreview
	}
	if err := p.preview.SetRowEnabled(rowNumber, enabled); err != nil {
		return nil, err
	}
	return p.preview.Clone(), nil
}

// Execute commits the staged preview. It blocks until the run completes,
// fails, or is cancelled at a batch boundary.
func (p *Pipeline) Execute(ctx context.Context, conf Confirmation) (*ImportResult, error) {
	req, err := p.beginExecute(conf)
	if err != nil {
		return nil, err
	}
	return p.runExecute(ctx, req)
}

// ExecuteAsync checks conf like Execute, then runs the import in the
// background and reports the outcome to done (which may be nil).
func (p *Pipeline) ExecuteAsync(ctx context.Context, conf Confirmation, done func(*ImportResult, error)) error {
	req, err := p.beginExecute(conf)
	if err != nil {
		return err
	}
	go func() {
		res, err := p.runExecute(ctx, req)
		if done != nil {
			done(res, err)
		}
	}()
	return nil
}

// beginExecute validates the confirmation and claims the run.
func (p *Pipeline) beginExecute(conf Confirmation) (ExecuteRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ExecuteRequest{}, ErrRunActive
	}
	if !conf.Confirmed {
		return ExecuteRequest{}, ErrNotConfirmed
	}
	if p.preview == nil || p.progress.Snapshot().Status != StatusValidating {
		return ExecuteRequest{}, ErrNoPreview
	}
	if p.preview.ErrorRows > 0 && !p.options.SkipInvalidRows && !conf.AcceptErrors {
		return ExecuteRequest{}, ErrUnacceptedErrors
	}

	p.running = true
	p.cancelled.Store(false)
	return ExecuteRequest{
		RecordType: p.preview.RecordType,
		FileName:   p.fileName,
		Rows:       p.preview.commitRows(p.options, conf.AcceptErrors),
		Options:    p.options,
		Cancelled:  p.cancelled.Load,
	}, nil
}

func (p *Pipeline) runExecute(ctx context.Context, req ExecuteRequest) (*ImportResult, error) {
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	return p.executor.Execute(ctx, req, p.progress)
}

// Cancel stops the active run. An import stops at the next batch boundary
// and a preview abandons its parse; without an active run the staged preview
// is discarded.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		p.cancelled.Store(true)
		if p.cancelPreview != nil {
			p.cancelPreview()
		}
		return
	}

	p.preview = nil
	_ = p.progress.Clear()
}

// Reset discards the staged preview and returns to idle.
func (p *Pipeline) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrRunActive
	}
	p.preview = nil
	p.fileName = ""
	return p.progress.Clear()
}

// Progress returns a snapshot of the current progress.
func (p *Pipeline) Progress() ImportProgress {
	return p.progress.Snapshot()
}

// Subscribe streams progress changes. Call the returned func when done.
func (p *Pipeline) Subscribe() (<-chan ImportProgress, func()) {
	return p.progress.Subscribe()
}

// History lists committed import batches.
func (p *Pipeline) History(ctx context.Context, page, pageSize int) (*BatchPage, error) {
	page, pageSize = NormalizePage(page, pageSize)
	res, err := p.store.ListBatches(ctx, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return res, nil
}

// Rollback reverses a committed batch. It never changes pipeline state.
func (p *Pipeline) Rollback(ctx context.Context, batchID string) (*RollbackResult, error) {
	return p.rollback.Rollback(ctx, batchID)
}

// Close releases progress listeners. The pipeline must not be used afterwards.
func (p *Pipeline) Close() {
	p.Cancel()
	p.progress.Close()
}

// IsActive reports whether a preview or execute is in flight.
func (p *Pipeline) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
