package core

import (
	"context"
	"fmt"
	"sync"
)

// memStore is an in-memory Store that records every request.
type memStore struct {
	mu       sync.Mutex
	requests []BatchRequest

	// failOn makes the Nth CommitBatch call (1-based) fail.
	failOn int
	// onCommit runs after a batch is recorded, outside the lock.
	onCommit func(call int)

	rollbackErr error
	rolledBack  []string
}

func (m *memStore) CommitBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	m.mu.Lock()
	call := len(m.requests) + 1
	if m.failOn == call {
		m.mu.Unlock()
		return nil, fmt.Errorf("backend unavailable")
	}
	m.requests = append(m.requests, req)
	hook := m.onCommit
	m.mu.Unlock()

	ids := make([]string, len(req.Items))
	for i := range req.Items {
		ids[i] = fmt.Sprintf("%d-%d", req.Sequence, i)
	}
	if hook != nil {
		hook(call)
	}
	return &BatchResponse{
		TotalProcessed: len(req.Items),
		SuccessCount:   len(req.Items),
		Errors:         []BatchError{},
		ImportedIDs:    ids,
	}, nil
}

func (m *memStore) ListBatches(ctx context.Context, page, pageSize int) (*BatchPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &BatchPage{Batches: []ImportBatch{}, Page: page, PageSize: pageSize, Total: len(m.requests)}, nil
}

func (m *memStore) RollbackBatch(ctx context.Context, batchID string) (*RollbackResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rollbackErr != nil {
		return nil, m.rollbackErr
	}
	m.rolledBack = append(m.rolledBack, batchID)
	return &RollbackResult{BatchID: batchID, RowsDeleted: 3}, nil
}

func (m *memStore) calls() []BatchRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]BatchRequest(nil), m.requests...)
}

// stagedRows returns n valid people rows numbered from 1.
func stagedRows(n int) []PreviewRow {
	rows := make([]PreviewRow, n)
	for i := range rows {
		rec := NewRawRecord(2)
		rec.Set("name", fmt.Sprintf("Person %d", i+1))
		rec.Set("email", fmt.Sprintf("p%d@example.com", i+1))
		rows[i] = PreviewRow{RowNumber: i + 1, Data: rec}
	}
	return rows
}

// importingTracker returns a tracker ready for an execute run.
func importingTracker() *ProgressTracker {
	tr := NewProgressTracker()
	_ = tr.Transition(StatusParsing, "")
	_ = tr.Transition(StatusValidating, "")
	return tr
}
